package optimizer

import (
	"fmt"
	"math"
	"sort"

	"github.com/draftforge/engine/pkg/types"
)

// PlayerExposure reports how often one player appeared across the batch
type PlayerExposure struct {
	PlayerID    string  `json:"player_id"`
	Count       int     `json:"count"`
	Fraction    float64 `json:"fraction"`
	MaxAllowed  float64 `json:"max_allowed"`
	MinRequired float64 `json:"min_required"`
	IsViolation bool    `json:"is_violation"`
}

// ExposureReport summarizes batch-level exposure after solving completes
type ExposureReport struct {
	TotalLineups int              `json:"total_lineups"`
	Players      []PlayerExposure `json:"players"`
	Violations   []string         `json:"violations"`
}

// exposureTracker owns the request-local exposure counters for the batch
// loop. It is mutated only by the sequential solve loop, never shared.
//
// Rounding rule: a player with maxExposure m over a batch of N lineups may
// appear in at most ceil(m*N) lineups. The ceiling keeps small batches
// usable (max 0.3 over 3 lineups still allows one appearance).
type exposureTracker struct {
	limits    map[string]types.ExposureLimit
	counts    map[string]int
	accepted  int
	batchSize int
}

func newExposureTracker(limits map[string]types.ExposureLimit, batchSize int) *exposureTracker {
	return &exposureTracker{
		limits:    limits,
		counts:    make(map[string]int),
		batchSize: batchSize,
	}
}

// capFor returns the absolute appearance cap for a player
func (t *exposureTracker) capFor(id string) int {
	limit, ok := t.limits[id]
	if !ok {
		return t.batchSize
	}
	return int(math.Ceil(limit.Max * float64(t.batchSize)))
}

// minFor returns the absolute appearance floor for a player
func (t *exposureTracker) minFor(id string) int {
	limit, ok := t.limits[id]
	if !ok {
		return 0
	}
	return int(math.Ceil(limit.Min * float64(t.batchSize)))
}

// atCap reports whether the player has used up its exposure budget
func (t *exposureTracker) atCap(id string) bool {
	return t.counts[id] >= t.capFor(id)
}

// cappedPlayers returns the set of players no further lineup may contain
func (t *exposureTracker) cappedPlayers() map[string]bool {
	capped := make(map[string]bool)
	for id := range t.limits {
		if t.atCap(id) {
			capped[id] = true
		}
	}
	return capped
}

// forcedPlayers returns players whose remaining minimum-exposure need equals
// the remaining batch capacity: they must appear in every lineup from here.
func (t *exposureTracker) forcedPlayers() []string {
	remaining := t.batchSize - t.accepted
	forced := make([]string, 0)
	for id := range t.limits {
		need := t.minFor(id) - t.counts[id]
		if need > 0 && need >= remaining {
			forced = append(forced, id)
		}
	}
	sort.Strings(forced)
	return forced
}

// record books one accepted lineup into the counters
func (t *exposureTracker) record(playerIDs []string) {
	for _, id := range playerIDs {
		t.counts[id]++
	}
	t.accepted++
}

// report builds the final exposure summary over the produced batch
func (t *exposureTracker) report() *ExposureReport {
	report := &ExposureReport{TotalLineups: t.accepted}
	if t.accepted == 0 {
		return report
	}

	ids := make([]string, 0, len(t.counts))
	for id := range t.counts {
		ids = append(ids, id)
	}
	for id := range t.limits {
		if _, seen := t.counts[id]; !seen {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	for _, id := range ids {
		count := t.counts[id]
		fraction := float64(count) / float64(t.accepted)
		entry := PlayerExposure{
			PlayerID:   id,
			Count:      count,
			Fraction:   fraction,
			MaxAllowed: 1.0,
		}
		if limit, ok := t.limits[id]; ok {
			entry.MaxAllowed = limit.Max
			entry.MinRequired = limit.Min
			if count > t.capFor(id) || count < t.minFor(id) {
				entry.IsViolation = true
				report.Violations = append(report.Violations,
					fmt.Sprintf("player %s appeared in %d/%d lineups, bounds [%.0f%%, %.0f%%]",
						id, count, t.accepted, limit.Min*100, limit.Max*100))
			}
		}
		report.Players = append(report.Players, entry)
	}

	sort.Slice(report.Players, func(i, j int) bool {
		if report.Players[i].Count != report.Players[j].Count {
			return report.Players[i].Count > report.Players[j].Count
		}
		return report.Players[i].PlayerID < report.Players[j].PlayerID
	})

	return report
}
