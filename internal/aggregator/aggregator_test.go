package aggregator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/draftforge/engine/pkg/types"
)

func rankedFixtures() ([]types.Lineup, []types.SimulationResult) {
	lineups := []types.Lineup{
		{Signature: "aaa", ProjectedPoints: 140},
		{Signature: "bbb", ProjectedPoints: 155},
		{Signature: "ccc", ProjectedPoints: 150},
	}
	results := []types.SimulationResult{
		{LineupSignature: "aaa", MeanScore: 152, WinProbability: 0.30, ROI: 0.4, BoomRate: 0.25},
		{LineupSignature: "bbb", MeanScore: 149, WinProbability: 0.10, ROI: -0.2, BoomRate: 0.40},
		{LineupSignature: "ccc", MeanScore: 151, WinProbability: 0.20, ROI: 0.1, BoomRate: 0.15},
	}
	return lineups, results
}

func signatures(ranked []types.RankedResult) []string {
	out := make([]string, len(ranked))
	for i, r := range ranked {
		out[i] = r.Lineup.Signature
	}
	return out
}

func TestRank_ByProjection(t *testing.T) {
	lineups, results := rankedFixtures()
	ranked, err := Rank(lineups, results, RankByProjection)
	require.NoError(t, err)

	assert.Equal(t, []string{"bbb", "ccc", "aaa"}, signatures(ranked))
	for i, r := range ranked {
		assert.Equal(t, i+1, r.Rank)
		require.NotNil(t, r.Simulation)
	}
}

func TestRank_ByMeanAndWinProbability(t *testing.T) {
	lineups, results := rankedFixtures()

	byMean, err := Rank(lineups, results, RankByMean)
	require.NoError(t, err)
	assert.Equal(t, []string{"aaa", "ccc", "bbb"}, signatures(byMean))

	byWin, err := Rank(lineups, results, RankByWinProb)
	require.NoError(t, err)
	assert.Equal(t, []string{"aaa", "ccc", "bbb"}, signatures(byWin))

	byROI, err := Rank(lineups, results, RankByROI)
	require.NoError(t, err)
	assert.Equal(t, []string{"aaa", "ccc", "bbb"}, signatures(byROI))
}

func TestRank_TiesBreakBySignature(t *testing.T) {
	lineups := []types.Lineup{
		{Signature: "zzz", ProjectedPoints: 150},
		{Signature: "aaa", ProjectedPoints: 150},
		{Signature: "mmm", ProjectedPoints: 150},
	}
	ranked, err := Rank(lineups, nil, RankByProjection)
	require.NoError(t, err)
	assert.Equal(t, []string{"aaa", "mmm", "zzz"}, signatures(ranked))
}

func TestRank_MissingSimulationSortsLast(t *testing.T) {
	lineups, results := rankedFixtures()
	lineups = append(lineups, types.Lineup{Signature: "ddd", ProjectedPoints: 160})
	failed := types.SimulationResult{LineupSignature: "ddd", Failed: true, Reason: "numeric"}
	results = append(results, failed)

	ranked, err := Rank(lineups, results, RankByMean)
	require.NoError(t, err)
	assert.Equal(t, "ddd", ranked[len(ranked)-1].Lineup.Signature,
		"failed simulations rank after usable ones")
}

func TestRank_EmptyInputPassthrough(t *testing.T) {
	ranked, err := Rank(nil, nil, RankByProjection)
	require.NoError(t, err)
	assert.Empty(t, ranked)
}

func TestRank_UnknownKey(t *testing.T) {
	lineups, results := rankedFixtures()
	_, err := Rank(lineups, results, RankKey("vibes"))
	assert.Error(t, err)
}
