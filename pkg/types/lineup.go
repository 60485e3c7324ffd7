package types

// LineupPlayer is one slot assignment inside a generated lineup
type LineupPlayer struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Team       string  `json:"team"`
	Slot       string  `json:"slot"`
	Salary     int     `json:"salary"`
	Projection float64 `json:"projection"`
}

// Lineup is a full slot assignment produced by the solver. Signature is a
// stable hash of the sorted player-id set, used for dedup and duplicate-risk
// estimation.
type Lineup struct {
	Signature        string         `json:"signature"`
	Players          []LineupPlayer `json:"players"`
	TotalSalary      int            `json:"total_salary"`
	ProjectedPoints  float64        `json:"projected_points"`
	StackDescription string         `json:"stack_description,omitempty"`
}

// PlayerIDs returns the ids in slot order
func (l Lineup) PlayerIDs() []string {
	ids := make([]string, len(l.Players))
	for i, p := range l.Players {
		ids[i] = p.ID
	}
	return ids
}

// Contains reports whether the lineup uses the given player
func (l Lineup) Contains(playerID string) bool {
	for _, p := range l.Players {
		if p.ID == playerID {
			return true
		}
	}
	return false
}

// DifferingPlayers counts players of other that do not appear in l.
// Lineups always have equal size, so the count is symmetric.
func (l Lineup) DifferingPlayers(other Lineup) int {
	seen := make(map[string]bool, len(l.Players))
	for _, p := range l.Players {
		seen[p.ID] = true
	}
	diff := 0
	for _, p := range other.Players {
		if !seen[p.ID] {
			diff++
		}
	}
	return diff
}
