// Package ranking orders the results of one exam into a leaderboard.
package ranking

import (
	"sort"
	"strings"

	"dus-exam-service/internal/domain"
)

// Build sorts results by total net descending and assigns sequential 1-based
// ranks. Ties go to the earlier completion, then to the lower result id, so
// equal nets still get distinct positions.
func Build(examID string, results []domain.Result) domain.Leaderboard {
	sorted := make([]domain.Result, len(results))
	copy(sorted, results)
	sort.SliceStable(sorted, func(i, j int) bool {
		return less(sorted[i], sorted[j])
	})

	entries := make([]domain.LeaderboardEntry, 0, len(sorted))
	for i, r := range sorted {
		entries = append(entries, domain.LeaderboardEntry{
			Rank:            i + 1,
			ResultID:        r.ID,
			StudentName:     r.StudentName,
			FoundationalNet: r.Foundational.Net,
			ClinicalNet:     r.Clinical.Net,
			TotalNet:        r.TotalNet,
			CompletedAt:     r.CompletedAt,
		})
	}
	lb := domain.Leaderboard{ExamID: examID, Entries: entries, Total: len(entries)}
	if len(sorted) > 0 {
		lb.ExamTitle = sorted[0].ExamTitle
	}
	return lb
}

func less(a, b domain.Result) bool {
	if a.TotalNet != b.TotalNet {
		return a.TotalNet > b.TotalNet
	}
	if !a.CompletedAt.Equal(b.CompletedAt) {
		return a.CompletedAt.Before(b.CompletedAt)
	}
	return a.ID < b.ID
}

// Filter keeps entries whose student name contains term, case-insensitively.
// Ranks are those of the unfiltered board; Total still counts every entrant.
// The term is trimmed first, so a blank search returns the whole board.
func Filter(lb domain.Leaderboard, term string) domain.Leaderboard {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return lb
	}
	filtered := make([]domain.LeaderboardEntry, 0, len(lb.Entries))
	for _, e := range lb.Entries {
		if strings.Contains(strings.ToLower(e.StudentName), term) {
			filtered = append(filtered, e)
		}
	}
	lb.Entries = filtered
	return lb
}

// Position returns the rank of resultID among results and the entrant count.
func Position(results []domain.Result, resultID string) (int, int, error) {
	lb := Build("", results)
	for _, e := range lb.Entries {
		if e.ResultID == resultID {
			return e.Rank, lb.Total, nil
		}
	}
	return 0, lb.Total, domain.ErrResultNotFound
}
