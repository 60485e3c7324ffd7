// Package aggregator merges solver output with simulation statistics into a
// single ranked view for callers.
package aggregator

import (
	"fmt"
	"sort"

	"github.com/draftforge/engine/pkg/types"
)

// RankKey selects the sort dimension for ranked results
type RankKey string

const (
	RankByProjection RankKey = "projection"
	RankByMean       RankKey = "mean"
	RankByWinProb    RankKey = "win_probability"
	RankByROI        RankKey = "roi"
	RankByLeverage   RankKey = "leverage"
)

func (k RankKey) Valid() bool {
	switch k {
	case RankByProjection, RankByMean, RankByWinProb, RankByROI, RankByLeverage:
		return true
	}
	return false
}

// Rank pairs each lineup with its simulation result (matched by signature),
// sorts descending by the requested key and assigns 1-based ranks. The sort
// is stable with signature tie-breaks, so identical inputs always produce
// identical orderings. Lineups without a matching simulation result sort
// after those with one under simulation-derived keys.
func Rank(lineups []types.Lineup, simResults []types.SimulationResult, key RankKey) ([]types.RankedResult, error) {
	if !key.Valid() {
		return nil, fmt.Errorf("unknown rank key %q", key)
	}
	if len(lineups) == 0 {
		return []types.RankedResult{}, nil
	}

	bySig := make(map[string]*types.SimulationResult, len(simResults))
	for i := range simResults {
		bySig[simResults[i].LineupSignature] = &simResults[i]
	}

	ranked := make([]types.RankedResult, len(lineups))
	for i, lu := range lineups {
		ranked[i] = types.RankedResult{
			Lineup:     lu,
			Simulation: bySig[lu.Signature],
		}
	}

	sort.SliceStable(ranked, func(a, b int) bool {
		va, oka := sortValue(ranked[a], key)
		vb, okb := sortValue(ranked[b], key)
		if oka != okb {
			return oka
		}
		if va != vb {
			return va > vb
		}
		return ranked[a].Lineup.Signature < ranked[b].Lineup.Signature
	})

	for i := range ranked {
		ranked[i].Rank = i + 1
	}
	return ranked, nil
}

// sortValue extracts the key's value; the second return reports whether the
// result carries usable simulation data for that key.
func sortValue(r types.RankedResult, key RankKey) (float64, bool) {
	sim := r.Simulation
	simOK := sim != nil && !sim.Failed

	switch key {
	case RankByProjection:
		return r.Lineup.ProjectedPoints, true
	case RankByMean:
		if !simOK {
			return 0, false
		}
		return sim.MeanScore, true
	case RankByWinProb:
		if !simOK {
			return 0, false
		}
		return sim.WinProbability, true
	case RankByROI:
		if !simOK {
			return 0, false
		}
		return sim.ROI, true
	case RankByLeverage:
		// Upside per unit of expected field popularity: boom rate against
		// how often the lineup merely cashes.
		if !simOK {
			return 0, false
		}
		return sim.BoomRate * (1 - sim.WinProbability), true
	}
	return 0, false
}
