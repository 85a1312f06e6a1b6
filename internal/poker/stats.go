package poker

import (
	"math"
	"sort"
)

// NamedVote pairs a voter with their numeric estimate. The "?" sentinel
// never reaches stats computation.
type NamedVote struct {
	Username string
	Value    int
}

// RoundStats is computed fresh at every reveal and never stored.
type RoundStats struct {
	Average  float64  `json:"average"`
	Median   int      `json:"median"`
	Outliers []string `json:"outliers"`
}

// ComputeStats derives the reveal statistics from the round's numeric
// votes. Votes not present in the deck are ignored. Outliers are voters
// whose estimate sits at least stepThreshold deck positions away from the
// deck-indexed median; distance is measured in scale steps, not raw value,
// so a 5→13 gap counts the same at every end of the scale. Returns nil when
// no numeric vote landed on the deck.
func ComputeStats(deck []int, votes []NamedVote, stepThreshold int) *RoundStats {
	indexOf := make(map[int]int, len(deck))
	for i, v := range deck {
		indexOf[v] = i
	}

	var onScale []NamedVote
	for _, nv := range votes {
		if _, ok := indexOf[nv.Value]; ok {
			onScale = append(onScale, nv)
		}
	}
	if len(onScale) == 0 {
		return nil
	}

	sum := 0
	for _, nv := range onScale {
		sum += nv.Value
	}
	avg := float64(sum) / float64(len(onScale))

	idxs := make([]int, 0, len(onScale))
	for _, nv := range onScale {
		idxs = append(idxs, indexOf[nv.Value])
	}
	sort.Ints(idxs)
	medianIdx := idxs[len(idxs)/2]

	outliers := []string{}
	for _, nv := range onScale {
		if abs(indexOf[nv.Value]-medianIdx) >= stepThreshold {
			outliers = append(outliers, nv.Username)
		}
	}

	return &RoundStats{
		Average:  math.Round(avg*100) / 100,
		Median:   deck[medianIdx],
		Outliers: outliers,
	}
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
