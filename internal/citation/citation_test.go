package citation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func intPtr(i int) *int { return &i }

func TestFormatPageRange(t *testing.T) {
	assert.Equal(t, "26-27", FormatPageRange(intPtr(26), intPtr(27)))
	assert.Equal(t, "26", FormatPageRange(intPtr(26), intPtr(26)))
	assert.Equal(t, "26", FormatPageRange(intPtr(26), nil))
	assert.Equal(t, "27", FormatPageRange(nil, intPtr(27)))
	assert.Equal(t, "unknown", FormatPageRange(nil, nil))
}

func TestRenderCitation_MarkerItem(t *testing.T) {
	got := RenderCitation(Input{
		Family: "ISO26262", Part: "6", Year: "2018",
		Reference: "8.4.5 item a", AnchorType: "marker", AnchorLabelNorm: "a",
		PagePDFStart: intPtr(26), PagePDFEnd: intPtr(27),
	})
	assert.Equal(t, "ISO 26262-6:2018, 8.4.5(a), PDF pages 26-27", got)
}

func TestRenderCitation_MarkerNote(t *testing.T) {
	got := RenderCitation(Input{
		Family: "ISO26262", Part: "6", Year: "2018",
		Reference: "8.4.5 note x", AnchorType: "marker", AnchorLabelNorm: "NOTE 1",
		PagePDFStart: intPtr(26), PagePDFEnd: intPtr(27),
	})
	assert.Equal(t, "ISO 26262-6:2018, 8.4.5, NOTE 1, PDF pages 26-27", got)
}

func TestRenderCitation_NoAnchor(t *testing.T) {
	got := RenderCitation(Input{
		Family: "ISO26262", Part: "8", Year: "2018", Reference: "5.1",
	})
	assert.Equal(t, "ISO 26262-8:2018, 5.1, PDF pages unknown", got)
}

func TestRenderCitation_UnreferencedChunk(t *testing.T) {
	got := RenderCitation(Input{Family: "ISO26262", Part: "1", Year: "2018"})
	assert.Contains(t, got, "(unreferenced chunk)")
}

func TestMarkerBaseReference(t *testing.T) {
	assert.Equal(t, "8.4.5", MarkerBaseReference("8.4.5 item a"))
	assert.Equal(t, "8.4.5", MarkerBaseReference("8.4.5 note x"))
	assert.Equal(t, "8.4.5", MarkerBaseReference("8.4.5 para 2"))
	assert.Equal(t, "Table 3", MarkerBaseReference("Table 3 row 2"))
	assert.Equal(t, "8.4.5", MarkerBaseReference("8.4.5"))
}
