package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/PLeVasseur/iso26262-retrieval/internal/store"
)

// seedChunkStore writes a tiny fixture corpus (two clauses) directly via
// raw SQL, standing in for the external ingestion pipeline this module
// assumes has already populated the chunks/nodes tables.
func seedChunkStore(t *testing.T, dbPath string) {
	t.Helper()

	st, err := store.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()

	_, err = st.DB().Exec(`
		INSERT INTO chunks (chunk_id, doc_id, type, ref, heading, text, citation_anchor_id, anchor_type, anchor_label_norm)
		VALUES
			('c1', 'ISO26262-6-2018', 'clause', '8.4.5', 'ASIL decomposition', 'ASIL decomposition requirements for embedded software.', 'c1', 'clause', '8.4.5'),
			('c2', 'ISO26262-6-2018', 'clause', '8.4.6', 'Verification', 'Verification of decomposed elements.', 'c2', 'clause', '8.4.6')
	`)
	require.NoError(t, err)
}

// writeProjectConfig writes a minimal project config pointing at dbPath
// with a static embedding provider, so tests never touch the network.
func writeProjectConfig(t *testing.T, dir, dbPath string) {
	t.Helper()
	content := "version: 1\nstore:\n  db_path: " + dbPath + "\nembeddings:\n  provider: static\n  model: \"\"\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".iso26262ret.yaml"), []byte(content), 0o644))
}

func TestEmbedRunAndQuery_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "chunks.db")
	seedChunkStore(t, dbPath)
	writeProjectConfig(t, dir, dbPath)

	oldWd, err := os.Getwd()
	require.NoError(t, err)
	defer func() { _ = os.Chdir(oldWd) }()
	require.NoError(t, os.Chdir(dir))

	embedCmd := newEmbedRunCmd()
	embedCmd.SetOut(&bytes.Buffer{})
	embedCmd.SetArgs([]string{"--manifest", ""})
	require.NoError(t, embedCmd.Execute())

	queryCmd := newQueryCmd()
	var buf bytes.Buffer
	queryCmd.SetOut(&buf)
	queryCmd.SetArgs([]string{"ASIL decomposition", "--limit", "5"})
	require.NoError(t, queryCmd.Execute())
	require.NotEmpty(t, buf.String())
}

func TestVersionCmd_DefaultOutput(t *testing.T) {
	cmd := newVersionCmd()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetArgs([]string{})

	require.NoError(t, cmd.Execute())
	require.Contains(t, buf.String(), "iso26262ret")
}

func TestRootCmd_HasExpectedSubcommands(t *testing.T) {
	root := NewRootCmd()
	names := make(map[string]bool)
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"embed", "query", "validate", "version"} {
		require.True(t, names[want], "expected subcommand %q", want)
	}
}
