package ft

import (
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// lowQualityName matches filenames that look like throwaway copies.
var lowQualityName = regexp.MustCompile(`(?i)(copy|backup|\(\d+\)|~)`)

// selectCanonical picks the authoritative member of a confirmed duplicate
// group by additive scoring. The scoring is deterministic: identical inputs
// always re-select the same member, with ties broken by lowest file ID.
//
// Score terms:
//   +10 newest modification time in the group (mtime ties go to lowest ID)
//   +20 path matches a preferred prefix
//   +10 scaled down with path depth: 10 * (1 - depth/maxDepth)
//    +5 filename free of copy/backup markers
//   +15 at most, scaled by access-time rank; contributes 0 where the
//       filesystem does not track access times
func (s *FTService) selectCanonical(members []*FileRecord, structure *Structure) *FileRecord {
	newest := newestMember(members)
	maxDepth := 0
	for _, m := range members {
		if d := pathDepth(m.Location()); d > maxDepth {
			maxDepth = d
		}
	}
	atimeRank := accessRanks(members)

	var winner *FileRecord
	var winnerScore float64
	for _, m := range members {
		score := 0.0
		if m.ID == newest.ID {
			score += 10
		}
		if structure != nil && hasPreferredPrefix(m.Location(), structure.PreferredPrefixes) {
			score += 20
		}
		if maxDepth > 0 {
			depthScore := 10 * (1 - float64(pathDepth(m.Location()))/float64(maxDepth))
			if depthScore > 0 {
				score += depthScore
			}
		}
		if !lowQualityName.MatchString(filepath.Base(m.Location())) {
			score += 5
		}
		score += atimeRank[m.ID]

		if winner == nil || score > winnerScore || (score == winnerScore && m.ID < winner.ID) {
			winner = m
			winnerScore = score
		}
	}
	return winner
}

// newestMember returns the member with the latest modification time, ties
// broken by lowest ID.
func newestMember(members []*FileRecord) *FileRecord {
	newest := members[0]
	for _, m := range members[1:] {
		if m.ModifiedAt.After(newest.ModifiedAt) {
			newest = m
		} else if m.ModifiedAt.Equal(newest.ModifiedAt) && m.ID < newest.ID {
			newest = m
		}
	}
	return newest
}

func hasPreferredPrefix(path string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if prefix != "" && strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// pathDepth counts directory segments above the filename.
func pathDepth(path string) int {
	clean := filepath.ToSlash(filepath.Clean(path))
	clean = strings.TrimPrefix(clean, "/")
	return strings.Count(clean, "/")
}

// accessRanks spreads up to 15 points across members by access-time order,
// most recently accessed first. Members without access-time metadata score 0.
func accessRanks(members []*FileRecord) map[string]float64 {
	ranks := make(map[string]float64, len(members))

	var tracked []*FileRecord
	for _, m := range members {
		if m.AccessedAt.Valid {
			tracked = append(tracked, m)
		}
	}
	if len(tracked) == 0 {
		return ranks
	}
	if len(tracked) == 1 {
		ranks[tracked[0].ID] = 15
		return ranks
	}

	sort.Slice(tracked, func(i, j int) bool {
		if !tracked[i].AccessedAt.Time.Equal(tracked[j].AccessedAt.Time) {
			return tracked[i].AccessedAt.Time.After(tracked[j].AccessedAt.Time)
		}
		return tracked[i].ID < tracked[j].ID
	})
	for i, m := range tracked {
		ranks[m.ID] = 15 * float64(len(tracked)-1-i) / float64(len(tracked)-1)
	}
	return ranks
}
