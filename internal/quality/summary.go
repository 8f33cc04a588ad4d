package quality

// Summary holds the aggregate pinpoint quality metrics the stage gates are
// evaluated against, plus informational counters. Metric fields are nil
// when the underlying record set is empty (pending, not zero).
type Summary struct {
	TotalQueries                int
	TableQueries                int
	HighConfidenceQueries       int
	PinpointAt1Relevance        *float64
	TableRowAccuracyAt1         *float64
	FallbackRatio               *float64
	DeterminismTop1             *float64
	LatencyOverheadP95Ms        *float64
	CitationAnchorMismatchCount int
	Warnings                    []string
}

// Summarize aggregates per-query records into a Summary.
// highConfidenceQueries is carried separately since it describes the gold
// probe-synthesis step, not any one evaluated record.
func Summarize(records []QueryEvalRecord, highConfidenceQueries int) Summary {
	s := Summary{
		TotalQueries:          len(records),
		HighConfidenceQueries: highConfidenceQueries,
	}
	if len(records) == 0 {
		return s
	}

	var tableRecords []QueryEvalRecord
	pinpointHits, fallbacks, deterministic := 0, 0, 0
	overheadDeltas := make([]float64, 0, len(records))

	for _, r := range records {
		if r.IsTableQuery {
			tableRecords = append(tableRecords, r)
			s.TableQueries++
		}
		if r.PinpointTopUnitHit {
			pinpointHits++
		}
		if r.PinpointFallbackUsed {
			fallbacks++
		}
		if r.DeterminismMatch {
			deterministic++
		}
		s.CitationAnchorMismatchCount += r.PinpointMismatchCount
		overheadDeltas = append(overheadDeltas, r.OverheadDeltaMs)
	}

	s.PinpointAt1Relevance = ratio(pinpointHits, len(records))
	s.FallbackRatio = ratio(fallbacks, len(records))
	s.DeterminismTop1 = ratio(deterministic, len(records))

	if len(tableRecords) > 0 {
		tableHits := 0
		for _, r := range tableRecords {
			if r.PinpointTopUnitHit {
				tableHits++
			}
		}
		s.TableRowAccuracyAt1 = ratio(tableHits, len(tableRecords))
	}

	if p95, ok := percentile95(overheadDeltas); ok {
		s.LatencyOverheadP95Ms = &p95
	}

	return s
}

func ratio(numerator, denominator int) *float64 {
	if denominator == 0 {
		return nil
	}
	v := float64(numerator) / float64(denominator)
	return &v
}
