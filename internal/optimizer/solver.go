package optimizer

import (
	"context"
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"
	"golang.org/x/exp/rand"

	"github.com/draftforge/engine/pkg/config"
	"github.com/draftforge/engine/pkg/types"
)

// batchState tags the batch loop's position in the generation state machine,
// keeping termination and partial-result conditions auditable.
type batchState string

const (
	stateSolving           batchState = "solving"
	stateAccepted          batchState = "accepted"
	stateRejectedDuplicate batchState = "rejected_duplicate"
	stateRejectedExposure  batchState = "rejected_exposure"
	stateExhausted         batchState = "exhausted"
)

const (
	nodeBudgetPerLineup = 200000
	deadlineCheckStride = 2048
	scoreEpsilon        = 1e-9
)

// SolveRequest carries one optimization request into the solver
type SolveRequest struct {
	Pool        []types.Player
	Template    types.RosterTemplate
	Constraints *ConstraintSet
	LineupCount int
	Objective   Objective
	Seed        int64
}

// SolveResult is the batch outcome. Incomplete marks deadline expiry,
// Infeasible marks exhaustion before LineupCount lineups were produced;
// Reasons explains both in plain language.
type SolveResult struct {
	Lineups    []types.Lineup
	Infeasible bool
	Incomplete bool
	Reasons    []string
	Exposure   *ExposureReport
}

// Solver generates batches of near-optimal, diverse lineups. The batch loop
// is strictly sequential: each accepted lineup updates exposure counters and
// the accepted-signature set that constrain the next solve.
type Solver struct {
	cfg *config.Config
	log *logrus.Entry
}

// NewSolver creates a solver bound to engine configuration
func NewSolver(cfg *config.Config, log *logrus.Entry) *Solver {
	return &Solver{cfg: cfg, log: log}
}

// Solve produces up to LineupCount lineups via iterative greedy-with-backoff:
// one branch-and-bound solve per lineup, then uniqueness and exposure gates,
// with a temporary ban on the weakest player of a rejected candidate before
// the retry. Deterministic for a fixed seed.
func (s *Solver) Solve(ctx context.Context, req SolveRequest) (*SolveResult, error) {
	cs := req.Constraints
	result := &SolveResult{}

	poolByID := make(map[string]types.Player, len(req.Pool))
	for _, p := range req.Pool {
		poolByID[p.ID] = p
	}

	scorer := newScorer(req.Objective, s.cfg.DuplicateRiskWeight, s.cfg.LeverageWeight)
	tracker := newExposureTracker(cs.Exposure, req.LineupCount)
	rng := rand.New(rand.NewSource(uint64(req.Seed)))

	excludedSigs := make(map[string]bool)
	accepted := make([]types.Lineup, 0, req.LineupCount)

	minSalary := cs.MinSalary
	if frac := int(s.cfg.MinSalaryFraction * float64(cs.SalaryCap)); frac > minSalary {
		minSalary = frac
	}

	state := stateSolving
	tempBans := make(map[string]bool)
	rejects := 0

	for len(accepted) < req.LineupCount && state != stateExhausted {
		if err := ctx.Err(); err != nil {
			result.Incomplete = true
			result.Reasons = append(result.Reasons,
				(&types.TimeoutError{Stage: fmt.Sprintf("lineup generation after %d/%d lineups", len(accepted), req.LineupCount)}).Error())
			break
		}

		banned := make(map[string]bool, len(cs.Bans)+len(tempBans))
		for id := range cs.Bans {
			banned[id] = true
		}
		for id := range tempBans {
			banned[id] = true
		}
		for id := range tracker.cappedPlayers() {
			if !cs.Locks[id] {
				banned[id] = true
			}
		}

		forced := make(map[string]bool, len(cs.Locks))
		for id := range cs.Locks {
			forced[id] = true
		}
		for _, id := range tracker.forcedPlayers() {
			if !banned[id] {
				forced[id] = true
			}
		}

		cand, found := s.solveOne(ctx, req, scorer, banned, forced, excludedSigs, minSalary)
		if !found {
			state = stateExhausted
			result.Reasons = append(result.Reasons, s.exhaustionReason(len(accepted), req.LineupCount, tracker, tempBans))
			continue
		}

		switch {
		case s.violatesUniqueness(cand, accepted, cs.Uniqueness):
			state = stateRejectedDuplicate
		case s.violatesExposure(cand, tracker):
			state = stateRejectedExposure
		default:
			state = stateAccepted
		}

		if state != stateAccepted {
			rejects++
			if rejects > s.cfg.MaxRejectsPerLineup {
				cause := "no sufficiently distinct lineup found"
				if state == stateRejectedExposure {
					cause = "exposure limits left no acceptable lineup"
				}
				state = stateExhausted
				result.Reasons = append(result.Reasons, fmt.Sprintf(
					"%s after %d attempts (produced %d/%d)",
					cause, rejects, len(accepted), req.LineupCount))
				continue
			}
			banID := s.backoffBan(cand, forced, scorer, poolByID, rng)
			if banID == "" {
				state = stateExhausted
				result.Reasons = append(result.Reasons, fmt.Sprintf(
					"candidate rejected but every player is locked (produced %d/%d)", len(accepted), req.LineupCount))
				continue
			}
			tempBans[banID] = true
			state = stateSolving
			continue
		}

		lineup := s.toLineup(cand, req.Template, poolByID)
		accepted = append(accepted, lineup)
		excludedSigs[lineup.Signature] = true
		tracker.record(lineup.PlayerIDs())
		tempBans = make(map[string]bool)
		rejects = 0
		state = stateSolving

		s.log.WithFields(logrus.Fields{
			"lineup_number":    len(accepted),
			"signature":        lineup.Signature,
			"projected_points": lineup.ProjectedPoints,
			"total_salary":     lineup.TotalSalary,
		}).Debug("Accepted lineup")
	}

	result.Lineups = accepted
	result.Exposure = tracker.report()
	if len(accepted) < req.LineupCount && !result.Incomplete {
		result.Infeasible = len(accepted) == 0
		if len(accepted) > 0 {
			result.Reasons = append(result.Reasons, fmt.Sprintf(
				"partial result: produced %d of %d requested lineups", len(accepted), req.LineupCount))
		}
	}

	return result, nil
}

// exhaustionReason attributes batch exhaustion to the constraint that most
// plausibly caused it, so callers get a diagnosable message.
func (s *Solver) exhaustionReason(produced, requested int, tracker *exposureTracker, tempBans map[string]bool) string {
	capped := tracker.cappedPlayers()
	if len(capped) > 0 {
		ids := make([]string, 0, len(capped))
		for id := range capped {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		return fmt.Sprintf("exposure cap reached for player %s after %d/%d lineups", ids[0], produced, requested)
	}
	if len(tempBans) > 0 {
		return fmt.Sprintf("uniqueness threshold left no feasible lineup after %d/%d lineups", produced, requested)
	}
	return fmt.Sprintf("no feasible lineup remains after %d/%d lineups", produced, requested)
}

func (s *Solver) violatesUniqueness(cand *candidate, accepted []types.Lineup, uniqueness int) bool {
	if uniqueness <= 0 {
		return false
	}
	for _, lineup := range accepted {
		diff := 0
		seen := make(map[string]bool, len(lineup.Players))
		for _, p := range lineup.Players {
			seen[p.ID] = true
		}
		for _, id := range cand.sortedIDs {
			if !seen[id] {
				diff++
			}
		}
		if diff < uniqueness {
			return true
		}
	}
	return false
}

// violatesExposure catches the corner where a forced inclusion collides with
// a cap. Caps are normally enforced by pre-solve bans, so this only fires on
// contradictory lock/exposure combinations.
func (s *Solver) violatesExposure(cand *candidate, tracker *exposureTracker) bool {
	for _, id := range cand.sortedIDs {
		if tracker.atCap(id) {
			return true
		}
	}
	return false
}

// backoffBan picks the weakest non-forced player of a rejected candidate.
// The seeded jitter occasionally bans the second-weakest instead, which
// keeps retry paths from collapsing into the same dead end.
func (s *Solver) backoffBan(cand *candidate, forced map[string]bool, sc *scorer, pool map[string]types.Player, rng *rand.Rand) string {
	type weak struct {
		id    string
		score float64
	}
	weakest := make([]weak, 0, len(cand.sortedIDs))
	for _, id := range cand.sortedIDs {
		if forced[id] {
			continue
		}
		weakest = append(weakest, weak{id: id, score: sc.Score(pool[id])})
	}
	if len(weakest) == 0 {
		return ""
	}
	sort.Slice(weakest, func(i, j int) bool {
		if weakest[i].score != weakest[j].score {
			return weakest[i].score < weakest[j].score
		}
		return weakest[i].id < weakest[j].id
	})
	if len(weakest) > 1 && rng.Float64() < 0.3 {
		return weakest[1].id
	}
	return weakest[0].id
}

func (s *Solver) toLineup(cand *candidate, template types.RosterTemplate, pool map[string]types.Player) types.Lineup {
	slots := template.Expand()
	players := make([]types.LineupPlayer, len(slots))
	totalSalary := 0
	projected := 0.0

	for i, id := range cand.idsByTemplateSlot {
		p := pool[id]
		players[i] = types.LineupPlayer{
			ID:         p.ID,
			Name:       p.Name,
			Team:       p.Team,
			Slot:       slots[i].Name,
			Salary:     p.Salary,
			Projection: p.Projection,
		}
		totalSalary += p.Salary
		projected += p.Projection
	}

	lineup := types.Lineup{
		Signature:       cand.signature,
		Players:         players,
		TotalSalary:     totalSalary,
		ProjectedPoints: projected,
	}
	lineup.StackDescription = describeStack(players, pool)
	return lineup
}
