package simulator

import (
	"math"
	"sort"

	"golang.org/x/exp/rand"

	"github.com/draftforge/engine/pkg/types"
)

// fieldModel is an ownership-weighted sample of opponent lineups. Each entry
// is a distinct set of pool indices drawn so that a player's appearance rate
// tracks projected field ownership. The sample is built once per request and
// re-scored every trial.
type fieldModel struct {
	entries [][]int
	payout  types.PayoutCurve
}

// buildFieldModel draws sampleSize opponent lineups of lineupSize distinct
// players each, weighted by ownership. Positional and salary validity of
// opponents is deliberately loose; the field only needs a realistic score
// distribution, not contest-legal rosters.
func buildFieldModel(pool []types.Player, payout types.PayoutCurve, sampleSize, lineupSize int, seed int64) *fieldModel {
	rng := rand.New(rand.NewSource(trialSeed(seed, fieldSeedStream)))

	weights := make([]float64, len(pool))
	total := 0.0
	for i, p := range pool {
		w := p.OwnershipValue()
		if p.InjuryStatus.Unavailable() {
			w = 0
		}
		weights[i] = w
		total += w
	}
	if total <= 0 {
		for i := range weights {
			weights[i] = 1
		}
		total = float64(len(weights))
	}

	if lineupSize > len(pool) {
		lineupSize = len(pool)
	}

	fm := &fieldModel{
		entries: make([][]int, 0, sampleSize),
		payout:  payout,
	}
	picked := make([]bool, len(pool))
	for e := 0; e < sampleSize; e++ {
		entry := make([]int, 0, lineupSize)
		remaining := total
		for i := range picked {
			picked[i] = false
		}
		for len(entry) < lineupSize && remaining > 1e-12 {
			target := rng.Float64() * remaining
			cum := 0.0
			idx := -1
			for i, w := range weights {
				if picked[i] || w <= 0 {
					continue
				}
				cum += w
				if target < cum {
					idx = i
					break
				}
			}
			if idx < 0 {
				break
			}
			picked[idx] = true
			remaining -= weights[idx]
			entry = append(entry, idx)
		}
		sort.Ints(entry)
		fm.entries = append(fm.entries, entry)
	}
	return fm
}

// scoreTrial sums one trial's player outcomes for every field entry
func (fm *fieldModel) scoreTrial(playerScores []float64, out []float64) []float64 {
	if cap(out) < len(fm.entries) {
		out = make([]float64, len(fm.entries))
	}
	out = out[:len(fm.entries)]
	for e, entry := range fm.entries {
		s := 0.0
		for _, idx := range entry {
			s += playerScores[idx]
		}
		out[e] = s
	}
	return out
}

// placement scales a lineup's standing within the sampled field up to the
// full contest and returns the projected 1-based finishing rank.
func (fm *fieldModel) placement(lineupScore float64, fieldScores []float64) int {
	beaten := 0
	for _, s := range fieldScores {
		if s > lineupScore {
			beaten++
		}
	}
	frac := float64(beaten+1) / float64(len(fieldScores)+1)
	rank := int(math.Ceil(frac * float64(fm.payout.FieldSize)))
	if rank < 1 {
		rank = 1
	}
	if rank > fm.payout.FieldSize {
		rank = fm.payout.FieldSize
	}
	return rank
}

// payoutForScore converts a trial score into contest winnings
func (fm *fieldModel) payoutForScore(lineupScore float64, fieldScores []float64) float64 {
	return fm.payout.PayoutForRank(fm.placement(lineupScore, fieldScores))
}
