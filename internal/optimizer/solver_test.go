package optimizer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/draftforge/engine/pkg/config"
	"github.com/draftforge/engine/pkg/logger"
	"github.com/draftforge/engine/pkg/types"
)

func fptr(v float64) *float64 { return &v }

// nflPool builds a three-game NFL slate with enough depth at every position
// to generate diverse batches.
func nflPool() []types.Player {
	return []types.Player{
		// Quarterbacks
		{ID: "mahomes", Name: "Mahomes", Team: "KC", Opponent: "BUF", Positions: []string{"QB"}, Salary: 7800, Projection: 24.0, Ceil: fptr(38.0), Floor: fptr(14.0), Ownership: fptr(0.22), GameID: "g1"},
		{ID: "allen", Name: "Allen", Team: "BUF", Opponent: "KC", Positions: []string{"QB"}, Salary: 7600, Projection: 23.0, Ceil: fptr(37.0), Floor: fptr(13.0), Ownership: fptr(0.18), GameID: "g1"},
		{ID: "hurts", Name: "Hurts", Team: "PHI", Opponent: "NYG", Positions: []string{"QB"}, Salary: 7200, Projection: 22.0, Ceil: fptr(34.0), Floor: fptr(13.5), Ownership: fptr(0.15), GameID: "g3"},
		{ID: "purdy", Name: "Purdy", Team: "SF", Opponent: "DAL", Positions: []string{"QB"}, Salary: 6800, Projection: 19.0, Ceil: fptr(29.0), Floor: fptr(11.0), Ownership: fptr(0.09), GameID: "g2"},
		// Running backs
		{ID: "mccaffrey", Name: "McCaffrey", Team: "SF", Opponent: "DAL", Positions: []string{"RB"}, Salary: 9000, Projection: 24.0, Ceil: fptr(35.0), Floor: fptr(15.0), Ownership: fptr(0.35), GameID: "g2"},
		{ID: "barkley", Name: "Barkley", Team: "NYG", Opponent: "PHI", Positions: []string{"RB"}, Salary: 7000, Projection: 16.0, Ceil: fptr(26.0), Floor: fptr(9.0), Ownership: fptr(0.16), GameID: "g3"},
		{ID: "pacheco", Name: "Pacheco", Team: "KC", Opponent: "BUF", Positions: []string{"RB"}, Salary: 6200, Projection: 15.0, Ceil: fptr(24.0), Floor: fptr(8.0), Ownership: fptr(0.14), GameID: "g1"},
		{ID: "pollard", Name: "Pollard", Team: "DAL", Opponent: "SF", Positions: []string{"RB"}, Salary: 6000, Projection: 14.0, Ceil: fptr(22.0), Floor: fptr(8.0), Ownership: fptr(0.12), GameID: "g2"},
		{ID: "cook", Name: "Cook", Team: "BUF", Opponent: "KC", Positions: []string{"RB"}, Salary: 5800, Projection: 13.0, Ceil: fptr(21.0), Floor: fptr(7.0), Ownership: fptr(0.10), GameID: "g1"},
		{ID: "swift", Name: "Swift", Team: "PHI", Opponent: "NYG", Positions: []string{"RB"}, Salary: 5600, Projection: 12.5, Ceil: fptr(20.0), Floor: fptr(7.0), Ownership: fptr(0.08), GameID: "g3"},
		// Wide receivers
		{ID: "lamb", Name: "Lamb", Team: "DAL", Opponent: "SF", Positions: []string{"WR"}, Salary: 8000, Projection: 19.0, Ceil: fptr(31.0), Floor: fptr(10.0), Ownership: fptr(0.28), GameID: "g2"},
		{ID: "brown", Name: "Brown", Team: "PHI", Opponent: "NYG", Positions: []string{"WR"}, Salary: 7800, Projection: 18.0, Ceil: fptr(30.0), Floor: fptr(9.5), Ownership: fptr(0.24), GameID: "g3"},
		{ID: "diggs", Name: "Diggs", Team: "BUF", Opponent: "KC", Positions: []string{"WR"}, Salary: 7100, Projection: 17.0, Ceil: fptr(28.0), Floor: fptr(9.0), Ownership: fptr(0.20), GameID: "g1"},
		{ID: "aiyuk", Name: "Aiyuk", Team: "SF", Opponent: "DAL", Positions: []string{"WR"}, Salary: 6600, Projection: 15.5, Ceil: fptr(26.0), Floor: fptr(8.0), Ownership: fptr(0.13), GameID: "g2"},
		{ID: "rice", Name: "Rice", Team: "KC", Opponent: "BUF", Positions: []string{"WR"}, Salary: 6400, Projection: 16.0, Ceil: fptr(27.0), Floor: fptr(8.5), Ownership: fptr(0.17), GameID: "g1"},
		{ID: "smith", Name: "Smith", Team: "PHI", Opponent: "NYG", Positions: []string{"WR"}, Salary: 6300, Projection: 14.0, Ceil: fptr(23.0), Floor: fptr(7.5), Ownership: fptr(0.11), GameID: "g3"},
		{ID: "shepard", Name: "Shepard", Team: "NYG", Opponent: "PHI", Positions: []string{"WR"}, Salary: 3400, Projection: 7.0, Ceil: fptr(13.0), Floor: fptr(3.0), Ownership: fptr(0.03), GameID: "g3"},
		{ID: "hardman", Name: "Hardman", Team: "KC", Opponent: "BUF", Positions: []string{"WR"}, Salary: 3200, Projection: 6.5, Ceil: fptr(13.0), Floor: fptr(2.5), Ownership: fptr(0.04), GameID: "g1"},
		// Tight ends
		{ID: "kelce", Name: "Kelce", Team: "KC", Opponent: "BUF", Positions: []string{"TE"}, Salary: 6500, Projection: 16.0, Ceil: fptr(26.0), Floor: fptr(9.0), Ownership: fptr(0.25), GameID: "g1"},
		{ID: "kittle", Name: "Kittle", Team: "SF", Opponent: "DAL", Positions: []string{"TE"}, Salary: 5400, Projection: 12.0, Ceil: fptr(21.0), Floor: fptr(6.0), Ownership: fptr(0.12), GameID: "g2"},
		{ID: "kincaid", Name: "Kincaid", Team: "BUF", Opponent: "KC", Positions: []string{"TE"}, Salary: 4400, Projection: 10.0, Ceil: fptr(17.0), Floor: fptr(5.0), Ownership: fptr(0.07), GameID: "g1"},
		{ID: "goedert", Name: "Goedert", Team: "PHI", Opponent: "NYG", Positions: []string{"TE"}, Salary: 4300, Projection: 9.0, Ceil: fptr(15.0), Floor: fptr(4.5), Ownership: fptr(0.06), GameID: "g3"},
		// Defenses
		{ID: "sf-dst", Name: "49ers", Team: "SF", Opponent: "DAL", Positions: []string{"DST"}, Salary: 3300, Projection: 8.0, Ceil: fptr(15.0), Floor: fptr(2.0), Ownership: fptr(0.14), GameID: "g2"},
		{ID: "phi-dst", Name: "Eagles", Team: "PHI", Opponent: "NYG", Positions: []string{"DST"}, Salary: 3100, Projection: 7.5, Ceil: fptr(14.0), Floor: fptr(2.0), Ownership: fptr(0.11), GameID: "g3"},
		{ID: "buf-dst", Name: "Bills", Team: "BUF", Opponent: "KC", Positions: []string{"DST"}, Salary: 3000, Projection: 7.0, Ceil: fptr(13.0), Floor: fptr(1.5), Ownership: fptr(0.08), GameID: "g1"},
		{ID: "dal-dst", Name: "Cowboys", Team: "DAL", Opponent: "SF", Positions: []string{"DST"}, Salary: 2900, Projection: 6.0, Ceil: fptr(12.0), Floor: fptr(1.0), Ownership: fptr(0.06), GameID: "g2"},
	}
}

func nflTemplate() types.RosterTemplate {
	return types.RosterTemplate{
		Name: "nfl-classic",
		Slots: []types.RosterSlot{
			{Name: "QB", Eligible: []string{"QB"}, Count: 1},
			{Name: "RB", Eligible: []string{"RB"}, Count: 2},
			{Name: "WR", Eligible: []string{"WR"}, Count: 3},
			{Name: "TE", Eligible: []string{"TE"}, Count: 1},
			{Name: "FLEX", Eligible: []string{"RB", "WR", "TE"}, Count: 1},
			{Name: "DST", Eligible: []string{"DST"}, Count: 1},
		},
	}
}

func buildTestConstraints(t *testing.T, pool []types.Player, raw types.RawConstraints) *ConstraintSet {
	t.Helper()
	cs, err := BuildConstraints(pool, nflTemplate(), raw, logger.GetLogger().WithField("test", t.Name()))
	require.NoError(t, err)
	return cs
}

func solveBatch(t *testing.T, pool []types.Player, raw types.RawConstraints, count int, seed int64) *SolveResult {
	t.Helper()
	cs := buildTestConstraints(t, pool, raw)
	solver := NewSolver(config.Default(), logger.GetLogger().WithField("test", t.Name()))
	res, err := solver.Solve(context.Background(), SolveRequest{
		Pool:        pool,
		Template:    nflTemplate(),
		Constraints: cs,
		LineupCount: count,
		Objective:   ObjectiveBalanced,
		Seed:        seed,
	})
	require.NoError(t, err)
	require.NotNil(t, res)
	return res
}

func TestSolve_GeneratesValidLineups(t *testing.T) {
	pool := nflPool()
	res := solveBatch(t, pool, types.RawConstraints{SalaryCap: 50000, Diversity: 0.2}, 5, 42)

	assert.False(t, res.Infeasible)
	require.Len(t, res.Lineups, 5)

	byID := make(map[string]types.Player)
	for _, p := range pool {
		byID[p.ID] = p
	}
	slots := nflTemplate().Expand()

	for _, lineup := range res.Lineups {
		assert.Len(t, lineup.Players, 9, "NFL classic lineup should have 9 players")
		assert.LessOrEqual(t, lineup.TotalSalary, 50000)
		assert.NotEmpty(t, lineup.Signature)

		seen := make(map[string]bool)
		salary := 0
		for i, lp := range lineup.Players {
			assert.False(t, seen[lp.ID], "player %s appears twice", lp.ID)
			seen[lp.ID] = true
			salary += lp.Salary

			p, ok := byID[lp.ID]
			require.True(t, ok, "lineup player %s not in pool", lp.ID)
			assert.True(t, playerEligibleForSlot(p, slots[i]),
				"player %s not eligible for slot %s", lp.ID, slots[i].Name)
		}
		assert.Equal(t, salary, lineup.TotalSalary)
	}
}

func TestSolve_RespectsLocksAndBans(t *testing.T) {
	res := solveBatch(t, nflPool(), types.RawConstraints{
		SalaryCap: 50000,
		Locks:     []string{"mahomes"},
		Bans:      []string{"mccaffrey"},
		Diversity: 0.2,
	}, 4, 7)

	require.Len(t, res.Lineups, 4)
	for _, lineup := range res.Lineups {
		assert.True(t, lineup.Contains("mahomes"), "locked player missing")
		assert.False(t, lineup.Contains("mccaffrey"), "banned player present")
	}
}

func TestSolve_ExposureCapCeiling(t *testing.T) {
	// max 0.4 over 5 lineups allows ceil(0.4*5) = 2 appearances
	res := solveBatch(t, nflPool(), types.RawConstraints{
		SalaryCap:      50000,
		Diversity:      0.2,
		ExposureLimits: map[string]types.ExposureLimit{"mccaffrey": {Max: 0.4}},
	}, 5, 11)

	require.Len(t, res.Lineups, 5)
	count := 0
	for _, lineup := range res.Lineups {
		if lineup.Contains("mccaffrey") {
			count++
		}
	}
	assert.LessOrEqual(t, count, 2, "exposure cap ceil(0.4*5)=2 violated")

	require.NotNil(t, res.Exposure)
	assert.Equal(t, 5, res.Exposure.TotalLineups)
	assert.Empty(t, res.Exposure.Violations)
}

func TestSolve_MinExposureForcesInclusion(t *testing.T) {
	res := solveBatch(t, nflPool(), types.RawConstraints{
		SalaryCap:      50000,
		Diversity:      0.2,
		ExposureLimits: map[string]types.ExposureLimit{"shepard": {Min: 1.0, Max: 1.0}},
	}, 3, 3)

	require.Len(t, res.Lineups, 3)
	for _, lineup := range res.Lineups {
		assert.True(t, lineup.Contains("shepard"), "min-exposure player missing")
	}
}

func TestSolve_UniquenessAcrossBatch(t *testing.T) {
	// diversity 0.34 over 9 slots requires ceil(0.34*9) = 4 differing players
	res := solveBatch(t, nflPool(), types.RawConstraints{SalaryCap: 50000, Diversity: 0.34}, 4, 19)

	require.GreaterOrEqual(t, len(res.Lineups), 2)
	for i := 0; i < len(res.Lineups); i++ {
		for j := i + 1; j < len(res.Lineups); j++ {
			diff := res.Lineups[i].DifferingPlayers(res.Lineups[j])
			assert.GreaterOrEqual(t, diff, 4,
				"lineups %d and %d differ by only %d players", i, j, diff)
		}
	}
}

func TestSolve_StackRule(t *testing.T) {
	res := solveBatch(t, nflPool(), types.RawConstraints{
		SalaryCap: 50000,
		Diversity: 0.2,
		Stacks: []types.StackRule{
			{Team: "KC", Positions: []string{"QB", "WR", "TE"}, MinPlayers: 3, MaxPlayers: 4},
		},
	}, 3, 5)

	require.NotEmpty(t, res.Lineups)
	byID := make(map[string]types.Player)
	for _, p := range nflPool() {
		byID[p.ID] = p
	}
	for _, lineup := range res.Lineups {
		count := countStackPlayers(lineup.PlayerIDs(), byID, types.StackRule{
			Team: "KC", Positions: []string{"QB", "WR", "TE"}, MinPlayers: 3, MaxPlayers: 4,
		})
		assert.GreaterOrEqual(t, count, 3, "KC stack minimum not met")
		assert.LessOrEqual(t, count, 4, "KC stack maximum exceeded")
	}
}

func TestSolve_GroupRule(t *testing.T) {
	res := solveBatch(t, nflPool(), types.RawConstraints{
		SalaryCap: 50000,
		Diversity: 0.2,
		GroupRules: []types.GroupRule{
			{PlayerIDs: []string{"mccaffrey", "barkley", "pacheco"}, Kind: types.GroupAtMost, Count: 1},
		},
	}, 3, 13)

	require.NotEmpty(t, res.Lineups)
	for _, lineup := range res.Lineups {
		count := 0
		for _, id := range []string{"mccaffrey", "barkley", "pacheco"} {
			if lineup.Contains(id) {
				count++
			}
		}
		assert.LessOrEqual(t, count, 1, "at-most group rule violated")
	}
}

func TestSolve_Deterministic(t *testing.T) {
	raw := types.RawConstraints{SalaryCap: 50000, Diversity: 0.25}
	first := solveBatch(t, nflPool(), raw, 5, 42)
	second := solveBatch(t, nflPool(), raw, 5, 42)

	require.Equal(t, len(first.Lineups), len(second.Lineups))
	for i := range first.Lineups {
		assert.Equal(t, first.Lineups[i].Signature, second.Lineups[i].Signature,
			"lineup %d differs between identical runs", i)
		assert.Equal(t, first.Lineups[i].TotalSalary, second.Lineups[i].TotalSalary)
	}
}

func TestSolve_FirstLineupMaximizesObjective(t *testing.T) {
	// With no ownership penalty the first lineup should beat any later one.
	res := solveBatch(t, nflPool(), types.RawConstraints{SalaryCap: 50000, Diversity: 0.2}, 4, 1)

	require.NotEmpty(t, res.Lineups)
	sc := newScorer(ObjectiveBalanced, config.Default().DuplicateRiskWeight, config.Default().LeverageWeight)
	byID := make(map[string]types.Player)
	for _, p := range nflPool() {
		byID[p.ID] = p
	}
	objective := func(l types.Lineup) float64 {
		total := 0.0
		for _, lp := range l.Players {
			total += sc.Score(byID[lp.ID])
		}
		return total
	}
	best := objective(res.Lineups[0])
	for _, lineup := range res.Lineups[1:] {
		assert.LessOrEqual(t, objective(lineup), best+scoreEpsilon,
			"later lineup outscores the first under the same objective")
	}
}

func TestSolve_LockAgainstOwnExposureCapReportsExposure(t *testing.T) {
	// A locked player capped at ceil(0.2*5)=1 appearance deadlocks the batch
	// after the first lineup; the reason must name exposure, not uniqueness.
	res := solveBatch(t, nflPool(), types.RawConstraints{
		SalaryCap:      50000,
		Locks:          []string{"mahomes"},
		ExposureLimits: map[string]types.ExposureLimit{"mahomes": {Max: 0.2}},
	}, 5, 8)

	require.Len(t, res.Lineups, 1)
	require.NotEmpty(t, res.Reasons)
	assert.Contains(t, res.Reasons[0], "exposure")
	assert.NotContains(t, res.Reasons[0], "distinct")
}

func TestSolve_FullBatchOfTwenty(t *testing.T) {
	// diversity 0.3 over 9 slots requires ceil(0.3*9) = 3 differing players
	res := solveBatch(t, nflPool(), types.RawConstraints{SalaryCap: 50000, Diversity: 0.3}, 20, 42)

	assert.False(t, res.Infeasible)
	require.Len(t, res.Lineups, 20)

	seen := make(map[string]bool)
	for i, lineup := range res.Lineups {
		assert.LessOrEqual(t, lineup.TotalSalary, 50000)
		assert.False(t, seen[lineup.Signature], "duplicate lineup %d", i)
		seen[lineup.Signature] = true
		for j := i + 1; j < len(res.Lineups); j++ {
			assert.GreaterOrEqual(t, lineup.DifferingPlayers(res.Lineups[j]), 3)
		}
	}
}

func TestSolve_DeadlineReturnsPartialResult(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cs := buildTestConstraints(t, nflPool(), types.RawConstraints{SalaryCap: 50000})
	solver := NewSolver(config.Default(), logger.GetLogger().WithField("test", t.Name()))
	res, err := solver.Solve(ctx, SolveRequest{
		Pool:        nflPool(),
		Template:    nflTemplate(),
		Constraints: cs,
		LineupCount: 5,
		Objective:   ObjectiveBalanced,
		Seed:        1,
	})
	require.NoError(t, err)
	assert.True(t, res.Incomplete)
	assert.Empty(t, res.Lineups)
	assert.NotEmpty(t, res.Reasons)
}

func TestSolve_ExhaustionReportsPartial(t *testing.T) {
	// A tiny pool can only support a couple of distinct lineups.
	pool := make([]types.Player, 0, 13)
	for _, p := range nflPool() {
		switch p.ID {
		case "mahomes", "allen",
			"mccaffrey", "pacheco", "cook",
			"lamb", "diggs", "rice", "hardman",
			"kelce", "kincaid",
			"sf-dst", "buf-dst":
			pool = append(pool, p)
		}
	}
	res := solveBatch(t, pool, types.RawConstraints{SalaryCap: 52000, Diversity: 0.9}, 10, 2)

	require.NotEmpty(t, res.Lineups, "the first lineup is affordable and must be produced")
	assert.Less(t, len(res.Lineups), 10)
	assert.False(t, res.Infeasible)
	assert.NotEmpty(t, res.Reasons, "partial batches must carry reasons")
	assert.False(t, res.Incomplete)
}
