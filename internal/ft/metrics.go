package ft

// MetricsReport carries the derived figures the metrics command prints.
// It is computed read-only from registry counts.
type MetricsReport struct {
	Stats RegistryStats

	// Stability is the fraction of recorded moves the system itself
	// performed: 1.0 means no file was moved or lost outside the tool.
	Stability float64

	// DuplicationRate is the fraction of known files that are duplicates.
	DuplicationRate float64

	// CorrectionRate is the fraction of classified files a human has had
	// to correct; a proxy for classifier accuracy.
	CorrectionRate float64
}

// Metrics derives the accuracy and stability figures from registry counts.
func (s *FTService) Metrics() (*MetricsReport, error) {
	stats, err := s.registry.Stats()
	if err != nil {
		return nil, err
	}

	report := &MetricsReport{Stats: *stats, Stability: 1}

	if drift := stats.ExternalMoves + stats.MissingFiles; drift > 0 {
		report.Stability = float64(stats.TotalMoves) / float64(stats.TotalMoves+drift)
	}
	if stats.TotalFiles > 0 {
		report.DuplicationRate = float64(stats.DuplicateFiles) / float64(stats.TotalFiles)
	}
	if stats.ClassifiedFiles > 0 {
		report.CorrectionRate = float64(stats.Corrections) / float64(stats.ClassifiedFiles)
	}
	return report, nil
}
