package optimizer

import (
	"context"
	"sort"

	"github.com/draftforge/engine/pkg/types"
)

// candidate is one complete slot assignment found by the search
type candidate struct {
	idsByTemplateSlot []string
	sortedIDs         []string
	signature         string
	salary            int
	score             float64
}

// searchSlot is one expanded template slot with its ordered candidate list
type searchSlot struct {
	templateIndex int
	players       []int // indices into the pool, best objective first
}

// search carries the request-local state of one branch-and-bound solve
type search struct {
	ctx          context.Context
	pool         []types.Player
	scores       []float64
	slots        []searchSlot
	suffixMax    []float64
	cs           *ConstraintSet
	forced       map[string]bool
	forcedTotal  int
	excludedSigs map[string]bool
	minSalary    int
	widthLimit   int

	// per-player rule membership, precomputed
	stackRules [][]int
	groupRules [][]int

	// mutable search state
	used        []bool
	chosen      []int
	stackCounts []int
	groupCounts []int
	salary      int
	score       float64
	forcedSeen  int

	best      *candidate
	bestSlots []int
	nodes     int
	aborted   bool
}

// solveOne runs a single branch-and-bound solve over the expanded template:
// maximize the blended objective subject to salary, lock/ban, stack and
// group constraints, skipping any exact player set already accepted.
// Ties break toward lower salary, then the lexicographically smaller id set.
func (s *Solver) solveOne(ctx context.Context, req SolveRequest, sc *scorer, banned, forced map[string]bool, excludedSigs map[string]bool, minSalary int) (*candidate, bool) {
	cs := req.Constraints
	slots := req.Template.Expand()

	scores := make([]float64, len(req.Pool))
	for i, p := range req.Pool {
		scores[i] = sc.Score(p)
	}

	srch := &search{
		ctx:          ctx,
		pool:         req.Pool,
		scores:       scores,
		cs:           cs,
		forced:       forced,
		excludedSigs: excludedSigs,
		minSalary:    minSalary,
		widthLimit:   s.cfg.CandidatesPerSlot,
		used:         make([]bool, len(req.Pool)),
		stackCounts:  make([]int, len(cs.Stacks)),
		groupCounts:  make([]int, len(cs.GroupRules)),
	}
	srch.buildRuleMembership()

	// Candidate lists per slot: forced players first so locks and exposure
	// floors are placed before the width limit can cut the list off.
	for templateIdx, slot := range slots {
		eligible := make([]int, 0, len(req.Pool))
		for i, p := range req.Pool {
			if banned[p.ID] {
				continue
			}
			if playerEligibleForSlot(p, slot) {
				eligible = append(eligible, i)
			}
		}
		if len(eligible) == 0 {
			return nil, false
		}
		sort.SliceStable(eligible, func(a, b int) bool {
			pa, pb := req.Pool[eligible[a]], req.Pool[eligible[b]]
			fa, fb := forced[pa.ID], forced[pb.ID]
			if fa != fb {
				return fa
			}
			sa, sb := scores[eligible[a]], scores[eligible[b]]
			if sa != sb {
				return sa > sb
			}
			if pa.Salary != pb.Salary {
				return pa.Salary < pb.Salary
			}
			return pa.ID < pb.ID
		})
		srch.slots = append(srch.slots, searchSlot{templateIndex: templateIdx, players: eligible})
	}

	// Most-constrained slots first for early failures.
	sort.SliceStable(srch.slots, func(a, b int) bool {
		return len(srch.slots[a].players) < len(srch.slots[b].players)
	})

	srch.chosen = make([]int, len(srch.slots))
	srch.suffixMax = make([]float64, len(srch.slots)+1)
	for i := len(srch.slots) - 1; i >= 0; i-- {
		maxScore := 0.0
		for _, idx := range srch.slots[i].players {
			if scores[idx] > maxScore {
				maxScore = scores[idx]
			}
		}
		srch.suffixMax[i] = srch.suffixMax[i+1] + maxScore
	}

	for id := range forced {
		if _, ok := findPlayer(req.Pool, id); ok && !banned[id] {
			srch.forcedTotal++
		}
	}

	srch.descend(0)

	if srch.best == nil {
		return nil, false
	}

	// Map search order back to template order.
	ids := make([]string, len(slots))
	for searchIdx, poolIdx := range srch.bestSlots {
		ids[srch.slots[searchIdx].templateIndex] = req.Pool[poolIdx].ID
	}
	srch.best.idsByTemplateSlot = ids
	return srch.best, true
}

func (s *search) buildRuleMembership() {
	s.stackRules = make([][]int, len(s.pool))
	s.groupRules = make([][]int, len(s.pool))

	for i, p := range s.pool {
		for r, rule := range s.cs.Stacks {
			if p.Team != rule.Team {
				continue
			}
			if len(rule.Positions) == 0 {
				s.stackRules[i] = append(s.stackRules[i], r)
				continue
			}
			for _, pos := range rule.Positions {
				if p.HasPosition(pos) {
					s.stackRules[i] = append(s.stackRules[i], r)
					break
				}
			}
		}
		for r, rule := range s.cs.GroupRules {
			for _, id := range rule.PlayerIDs {
				if id == p.ID {
					s.groupRules[i] = append(s.groupRules[i], r)
					break
				}
			}
		}
	}
}

func (s *search) descend(slotIdx int) {
	s.nodes++
	if s.aborted || s.nodes > nodeBudgetPerLineup {
		s.aborted = true
		return
	}
	if s.nodes%deadlineCheckStride == 0 && s.ctx.Err() != nil {
		s.aborted = true
		return
	}

	slotsLeft := len(s.slots) - slotIdx
	if s.forcedTotal-s.forcedSeen > slotsLeft {
		return
	}

	if slotIdx == len(s.slots) {
		s.acceptLeaf()
		return
	}

	// Optimistic bound: even a perfect fill of the remaining slots cannot
	// beat the incumbent.
	if s.best != nil && s.score+s.suffixMax[slotIdx] < s.best.score-scoreEpsilon {
		return
	}

	tried := 0
	for _, poolIdx := range s.slots[slotIdx].players {
		if s.used[poolIdx] {
			continue
		}
		p := s.pool[poolIdx]
		if s.salary+p.Salary > s.cs.SalaryCap {
			continue
		}
		if !s.rulesAllow(poolIdx) {
			continue
		}

		isForced := s.forced[p.ID]
		if !isForced {
			if tried >= s.widthLimit {
				break
			}
			tried++
		}

		s.place(slotIdx, poolIdx, isForced)
		s.descend(slotIdx + 1)
		s.unplace(slotIdx, poolIdx, isForced)

		if s.aborted {
			return
		}
	}
}

func (s *search) place(slotIdx, poolIdx int, isForced bool) {
	p := s.pool[poolIdx]
	s.used[poolIdx] = true
	s.chosen[slotIdx] = poolIdx
	s.salary += p.Salary
	s.score += s.scores[poolIdx]
	if isForced {
		s.forcedSeen++
	}
	for _, r := range s.stackRules[poolIdx] {
		s.stackCounts[r]++
	}
	for _, r := range s.groupRules[poolIdx] {
		s.groupCounts[r]++
	}
}

func (s *search) unplace(slotIdx, poolIdx int, isForced bool) {
	p := s.pool[poolIdx]
	s.used[poolIdx] = false
	s.salary -= p.Salary
	s.score -= s.scores[poolIdx]
	if isForced {
		s.forcedSeen--
	}
	for _, r := range s.stackRules[poolIdx] {
		s.stackCounts[r]--
	}
	for _, r := range s.groupRules[poolIdx] {
		s.groupCounts[r]--
	}
}

// rulesAllow rejects a player whose placement would break a hard upper bound
func (s *search) rulesAllow(poolIdx int) bool {
	for _, r := range s.stackRules[poolIdx] {
		if s.stackCounts[r]+1 > s.cs.Stacks[r].MaxPlayers {
			return false
		}
	}
	for _, r := range s.groupRules[poolIdx] {
		rule := s.cs.GroupRules[r]
		if (rule.Kind == types.GroupAtMost || rule.Kind == types.GroupExactly) && s.groupCounts[r]+1 > rule.Count {
			return false
		}
	}
	return true
}

func (s *search) acceptLeaf() {
	if s.salary < s.minSalary {
		return
	}
	if s.forcedSeen < s.forcedTotal {
		return
	}
	for r, rule := range s.cs.Stacks {
		if s.stackCounts[r] < rule.MinPlayers {
			return
		}
	}
	for r, rule := range s.cs.GroupRules {
		switch rule.Kind {
		case types.GroupAtLeast:
			if s.groupCounts[r] < rule.Count {
				return
			}
		case types.GroupExactly:
			if s.groupCounts[r] != rule.Count {
				return
			}
		}
	}

	ids := make([]string, len(s.chosen))
	for i, poolIdx := range s.chosen {
		ids[i] = s.pool[poolIdx].ID
	}
	sorted := canonicalIDs(ids)
	sig := LineupSignature(ids)
	if s.excludedSigs[sig] {
		return
	}

	if s.best != nil {
		if s.score < s.best.score-scoreEpsilon {
			return
		}
		if s.score <= s.best.score+scoreEpsilon {
			// Equal objective: prefer lower salary, then smaller id set.
			if s.salary > s.best.salary {
				return
			}
			if s.salary == s.best.salary && !lessIDSets(sorted, s.best.sortedIDs) {
				return
			}
		}
	}

	s.best = &candidate{
		sortedIDs: sorted,
		signature: sig,
		salary:    s.salary,
		score:     s.score,
	}
	s.bestSlots = make([]int, len(s.chosen))
	copy(s.bestSlots, s.chosen)
}

func findPlayer(pool []types.Player, id string) (types.Player, bool) {
	for _, p := range pool {
		if p.ID == id {
			return p, true
		}
	}
	return types.Player{}, false
}
