package matching

import (
	"sort"

	"github.com/maxaizer/placement-matcher/internal/domain/models"
)

type Ranked struct {
	Candidate models.Candidate
	Score     Score
}

// Rank orders by total score descending, then by candidate ID ascending.
func Rank(ranked []Ranked) []Ranked {
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Score.Total != ranked[j].Score.Total {
			return ranked[i].Score.Total > ranked[j].Score.Total
		}
		return ranked[i].Candidate.ID < ranked[j].Candidate.ID
	})
	return ranked
}

func Top(ranked []Ranked, n int) []Ranked {
	if n < 0 {
		n = 0
	}
	if len(ranked) <= n {
		return ranked
	}
	return ranked[:n]
}
