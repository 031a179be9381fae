package ft

import "testing"

func TestNormalizeFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"report.pdf", "report"},
		{"report (1).pdf", "report"},
		{"report (12).pdf", "report"},
		{"Report_copy.pdf", "report"},
		{"report - copy 2.pdf", "report"},
		{"report copy (1).pdf", "report"},
		{"notes v2.txt", "notes"},
		{"notes_3.txt", "notes"},
		{"plain", "plain"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := NormalizeFilename(tt.in); got != tt.want {
			t.Errorf("NormalizeFilename(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSimilarityRatio(t *testing.T) {
	tests := []struct {
		a, b string
		want float64
	}{
		{"report", "report", 1},
		{"", "", 1},
		{"abcd", "abcx", 0.75},
		{"abc", "", 0},
	}
	for _, tt := range tests {
		if got := SimilarityRatio(tt.a, tt.b); got != tt.want {
			t.Errorf("SimilarityRatio(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}

	// Symmetry
	if SimilarityRatio("kitten", "sitting") != SimilarityRatio("sitting", "kitten") {
		t.Error("SimilarityRatio is not symmetric")
	}
}

func TestLevenshtein(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"kitten", "sitting", 3},
		{"flaw", "lawn", 2},
		{"", "abc", 3},
		{"same", "same", 0},
	}
	for _, tt := range tests {
		if got := levenshtein(tt.a, tt.b); got != tt.want {
			t.Errorf("levenshtein(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}
