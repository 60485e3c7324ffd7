package optimizer

import (
	"fmt"
	"math"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/draftforge/engine/pkg/types"
)

// ConstraintSet is the normalized, immutable constraint model the solver
// works against. Built once per request, never mutated afterwards.
type ConstraintSet struct {
	SalaryCap  int
	MinSalary  int
	Locks      map[string]bool
	Bans       map[string]bool
	Exposure   map[string]types.ExposureLimit
	Stacks     []types.StackRule
	GroupRules []types.GroupRule
	// Uniqueness is the minimum number of differing players required between
	// any two lineups in the output batch.
	Uniqueness int
	// Notes carries non-fatal normalization decisions (e.g. players dropped
	// for OUT/INACTIVE status) back to the caller.
	Notes []string
}

// BuildConstraints validates and normalizes a raw constraint request against
// the pool and roster template. It is a pure transform: every violated rule
// is collected into a single ValidationError so the caller sees them all at
// once, and provably infeasible requests are rejected before the solver runs.
func BuildConstraints(pool []types.Player, template types.RosterTemplate, raw types.RawConstraints, log *logrus.Entry) (*ConstraintSet, error) {
	verr := &types.ValidationError{}

	if err := template.Validate(); err != nil {
		verr.Add("%v", err)
	}
	if raw.SalaryCap <= 0 {
		verr.Add("salary cap must be positive, got %d", raw.SalaryCap)
	}
	if raw.MinSalary < 0 {
		verr.Add("min salary must be non-negative, got %d", raw.MinSalary)
	}
	if raw.MinSalary > raw.SalaryCap {
		verr.Add("min salary %d exceeds salary cap %d", raw.MinSalary, raw.SalaryCap)
	}
	if raw.Diversity < 0 || raw.Diversity > 1 {
		verr.Add("diversity must be in [0,1], got %.2f", raw.Diversity)
	}

	byID := make(map[string]types.Player, len(pool))
	teams := make(map[string]bool)
	for _, p := range pool {
		if err := p.Validate(); err != nil {
			verr.Add("%v", err)
			continue
		}
		if _, dup := byID[p.ID]; dup {
			verr.Add("duplicate player id %s in pool", p.ID)
			continue
		}
		byID[p.ID] = p
		teams[p.Team] = true
	}

	cs := &ConstraintSet{
		SalaryCap:  raw.SalaryCap,
		MinSalary:  raw.MinSalary,
		Locks:      make(map[string]bool, len(raw.Locks)),
		Bans:       make(map[string]bool, len(raw.Bans)),
		Exposure:   make(map[string]types.ExposureLimit, len(raw.ExposureLimits)),
		Stacks:     raw.Stacks,
		GroupRules: raw.GroupRules,
		Uniqueness: int(math.Ceil(raw.Diversity * float64(template.TotalSlots()))),
	}

	for _, id := range raw.Locks {
		if _, ok := byID[id]; !ok {
			verr.Add("locked player %s not in pool", id)
			continue
		}
		cs.Locks[id] = true
	}
	for _, id := range raw.Bans {
		if _, ok := byID[id]; !ok {
			verr.Add("banned player %s not in pool", id)
			continue
		}
		if cs.Locks[id] {
			verr.Add("player %s is both locked and banned", id)
			continue
		}
		cs.Bans[id] = true
	}

	// Players ruled out by injury status become implicit bans.
	for _, p := range pool {
		if p.InjuryStatus.Unavailable() && !cs.Bans[p.ID] {
			if cs.Locks[p.ID] {
				verr.Add("locked player %s has status %s", p.ID, p.InjuryStatus)
				continue
			}
			cs.Bans[p.ID] = true
			cs.Notes = append(cs.Notes, fmt.Sprintf("player %s excluded: status %s", p.ID, p.InjuryStatus))
		}
	}

	for id, limit := range raw.ExposureLimits {
		if _, ok := byID[id]; !ok {
			verr.Add("exposure limit references unknown player %s", id)
			continue
		}
		if limit.Min < 0 || limit.Max > 1 || limit.Min > limit.Max {
			verr.Add("player %s exposure bounds [%.2f,%.2f] invalid", id, limit.Min, limit.Max)
			continue
		}
		cs.Exposure[id] = limit
	}

	for _, stack := range raw.Stacks {
		if !teams[stack.Team] {
			verr.Add("stack rule references unknown team %s", stack.Team)
		}
		if stack.MinPlayers < 0 || stack.MaxPlayers < stack.MinPlayers {
			verr.Add("stack rule for team %s has invalid bounds [%d,%d]", stack.Team, stack.MinPlayers, stack.MaxPlayers)
		}
	}

	for i, rule := range raw.GroupRules {
		if len(rule.PlayerIDs) == 0 {
			verr.Add("group rule %d has no players", i)
			continue
		}
		switch rule.Kind {
		case types.GroupAtLeast, types.GroupAtMost, types.GroupExactly:
		default:
			verr.Add("group rule %d has unknown kind %q", i, rule.Kind)
		}
		if rule.Count < 0 || rule.Count > len(rule.PlayerIDs) {
			verr.Add("group rule %d count %d outside [0,%d]", i, rule.Count, len(rule.PlayerIDs))
		}
		for _, id := range rule.PlayerIDs {
			if _, ok := byID[id]; !ok {
				verr.Add("group rule %d references unknown player %s", i, id)
			}
		}
	}

	if verr.HasViolations() {
		return nil, verr
	}

	// Feasibility probe: a bipartite matching over slot eligibility proves
	// whether the template can be filled with the locks placed, and a cost
	// lower bound proves salary-cap infeasibility. Both checks only reject
	// requests that no assignment can satisfy.
	minCost, err := probeRoster(pool, template, cs)
	if err != nil {
		return nil, err
	}
	if minCost > cs.SalaryCap {
		return nil, &types.InfeasibleError{Reasons: []string{
			fmt.Sprintf("even the cheapest possible roster costs at least %d, above salary cap %d", minCost, cs.SalaryCap),
		}}
	}

	log.WithFields(logrus.Fields{
		"pool_size":    len(pool),
		"locks":        len(cs.Locks),
		"bans":         len(cs.Bans),
		"uniqueness":   cs.Uniqueness,
		"min_roster":   minCost,
		"salary_cap":   cs.SalaryCap,
	}).Debug("Constraint set built")

	return cs, nil
}

// probeRoster proves fillability of the expanded template via augmenting-path
// bipartite matching (locks saturated first, then every remaining slot) and
// returns a lower bound on the cheapest roster cost. Matching never drops an
// already-placed player when it reroutes assignments, so a multi-position
// lock cannot block a later lock out of its only slot.
func probeRoster(pool []types.Player, template types.RosterTemplate, cs *ConstraintSet) (int, error) {
	slots := template.Expand()

	avail := make([]types.Player, 0, len(pool))
	for _, p := range pool {
		if !cs.Bans[p.ID] {
			avail = append(avail, p)
		}
	}

	slotOf := make([]int, len(avail)) // player index -> slot index
	playerOf := make([]int, len(slots))
	for i := range slotOf {
		slotOf[i] = -1
	}
	for i := range playerOf {
		playerOf[i] = -1
	}

	// Augment from a player: claim a free eligible slot, or evict the
	// current occupant into another slot it also fits.
	var place func(p int, seen []bool) bool
	place = func(p int, seen []bool) bool {
		for s := range slots {
			if seen[s] || !playerEligibleForSlot(avail[p], slots[s]) {
				continue
			}
			seen[s] = true
			if playerOf[s] == -1 || place(playerOf[s], seen) {
				playerOf[s] = p
				slotOf[p] = s
				return true
			}
		}
		return false
	}

	lockIdx := make([]int, 0, len(cs.Locks))
	for i, p := range avail {
		if cs.Locks[p.ID] {
			lockIdx = append(lockIdx, i)
		}
	}
	sort.Slice(lockIdx, func(a, b int) bool { return avail[lockIdx[a]].ID < avail[lockIdx[b]].ID })
	for _, p := range lockIdx {
		if !place(p, make([]bool, len(slots))) {
			return 0, &types.InfeasibleError{Reasons: []string{
				fmt.Sprintf("locked players cannot all fit the roster template (player %s has no remaining slot)", avail[p].ID),
			}}
		}
	}

	// Augment from a slot: claim a free eligible player, or reroute the
	// player's current slot elsewhere. Matched players stay matched.
	var fill func(s int, seen []bool) bool
	fill = func(s int, seen []bool) bool {
		for p := range avail {
			if seen[p] || !playerEligibleForSlot(avail[p], slots[s]) {
				continue
			}
			seen[p] = true
			if slotOf[p] == -1 || fill(slotOf[p], seen) {
				slotOf[p] = s
				playerOf[s] = p
				return true
			}
		}
		return false
	}

	for s := range slots {
		if playerOf[s] != -1 {
			continue
		}
		if !fill(s, make([]bool, len(avail))) {
			return 0, &types.InfeasibleError{Reasons: []string{
				"roster template cannot be filled from the available pool",
			}}
		}
	}

	// Cost lower bound: every roster pays all locks plus that many distinct
	// non-lock players, so the cheapest such combination never exceeds the
	// true minimum.
	total := 0
	others := make([]int, 0, len(avail))
	for _, p := range avail {
		if cs.Locks[p.ID] {
			total += p.Salary
		} else {
			others = append(others, p.Salary)
		}
	}
	sort.Ints(others)
	need := len(slots) - len(lockIdx)
	for i := 0; i < need && i < len(others); i++ {
		total += others[i]
	}
	return total, nil
}

func playerEligibleForSlot(p types.Player, slot types.RosterSlot) bool {
	for _, tag := range slot.Eligible {
		if p.HasPosition(tag) {
			return true
		}
	}
	return false
}
