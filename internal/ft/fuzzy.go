package ft

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// Suffix noise stripped before filenames are compared: counter suffixes
// like " (1)", copy markers, and trailing version tokens.
var (
	counterSuffix = regexp.MustCompile(`\s*\(\d+\)$`)
	copySuffix    = regexp.MustCompile(`(?i)[\s_-]*(copy(\s*\d+)?|copy of)$`)
	versionSuffix = regexp.MustCompile(`(?i)[\s_-]+v?\d+$`)
)

// NormalizeFilename reduces a filename to its comparison form: lowercase
// stem with counter, copy and version suffixes removed.
func NormalizeFilename(name string) string {
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	stem = strings.ToLower(strings.TrimSpace(stem))
	for {
		next := counterSuffix.ReplaceAllString(stem, "")
		next = copySuffix.ReplaceAllString(next, "")
		next = versionSuffix.ReplaceAllString(next, "")
		next = strings.TrimSpace(next)
		if next == stem {
			return stem
		}
		stem = next
	}
}

// SimilarityRatio is a Levenshtein ratio in [0,1]; 1 means equal strings.
func SimilarityRatio(a, b string) float64 {
	if a == b {
		return 1
	}
	longest := len(a)
	if len(b) > longest {
		longest = len(b)
	}
	if longest == 0 {
		return 1
	}
	return 1 - float64(levenshtein(a, b))/float64(longest)
}

// levenshtein computes edit distance with a two-row table.
func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min3(curr[j-1]+1, prev[j]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}

// suggestNearDuplicates runs the fuzzy filename stage over files outside any
// confirmed group. Pairs above the similarity threshold go to the review
// queue as suggestions; nothing is merged automatically. Pairs already
// suggested are not repeated.
func (s *FTService) suggestNearDuplicates(ctx context.Context, candidates []*FileRecord, confirmed map[string]bool, now time.Time) (int, error) {
	var loose []*FileRecord
	for _, rec := range candidates {
		if !confirmed[rec.ID] && rec.State != StateError {
			loose = append(loose, rec)
		}
	}
	if len(loose) < 2 {
		return 0, nil
	}

	existing, err := s.registry.ListNearDuplicates()
	if err != nil {
		return 0, fmt.Errorf("loading review queue: %w", err)
	}
	seen := make(map[string]bool, len(existing))
	for _, p := range existing {
		seen[p.FileIDA+"|"+p.FileIDB] = true
	}

	var pairs []*NearDuplicate
	for i := 0; i < len(loose); i++ {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		nameA := NormalizeFilename(filepath.Base(loose[i].Location()))
		for j := i + 1; j < len(loose); j++ {
			nameB := NormalizeFilename(filepath.Base(loose[j].Location()))
			ratio := SimilarityRatio(nameA, nameB)
			if ratio < s.tuning.FuzzyThreshold {
				continue
			}
			key := loose[i].ID + "|" + loose[j].ID
			if seen[key] {
				continue
			}
			seen[key] = true
			pairs = append(pairs, &NearDuplicate{
				ID:         s.idgen.New(),
				FileIDA:    loose[i].ID,
				FileIDB:    loose[j].ID,
				Similarity: ratio,
				CreatedAt:  now,
			})
		}
	}

	if len(pairs) == 0 {
		return 0, nil
	}
	if err := s.registry.AddNearDuplicates(pairs); err != nil {
		return 0, fmt.Errorf("queueing near-duplicates: %w", err)
	}
	return len(pairs), nil
}
