package types

import "fmt"

// InjuryStatus represents a player's availability designation
type InjuryStatus string

const (
	InjuryActive       InjuryStatus = "ACTIVE"
	InjuryQuestionable InjuryStatus = "QUESTIONABLE"
	InjuryDoubtful     InjuryStatus = "DOUBTFUL"
	InjuryOut          InjuryStatus = "OUT"
	InjuryInactive     InjuryStatus = "INACTIVE"
)

// Unavailable reports whether the status rules a player out of the slate
func (s InjuryStatus) Unavailable() bool {
	return s == InjuryOut || s == InjuryInactive
}

// Player represents one eligible player in a slate pool.
// Floor, Ceil and Ownership are optional upstream signals; nil means the
// engine falls back to position-based defaults.
type Player struct {
	ID              string       `json:"id"`
	Name            string       `json:"name"`
	Team            string       `json:"team"`
	Opponent        string       `json:"opponent"`
	Positions       []string     `json:"positions"`
	Salary          int          `json:"salary"`
	Projection      float64      `json:"projection"`
	Floor           *float64     `json:"floor,omitempty"`
	Ceil            *float64     `json:"ceil,omitempty"`
	Ownership       *float64     `json:"ownership,omitempty"`
	BoomProbability float64      `json:"boom_probability"`
	BustProbability float64      `json:"bust_probability"`
	InjuryStatus    InjuryStatus `json:"injury_status"`
	GameID          string       `json:"game_id"`
}

// FloorValue returns the floor projection, defaulting to a fraction of the
// mean projection when the upstream feed did not supply one.
func (p Player) FloorValue() float64 {
	if p.Floor != nil {
		return *p.Floor
	}
	return p.Projection * 0.6
}

// CeilValue returns the ceiling projection with the same defaulting rule.
func (p Player) CeilValue() float64 {
	if p.Ceil != nil {
		return *p.Ceil
	}
	return p.Projection * 1.5
}

// OwnershipValue returns projected field ownership as a fraction in [0,1].
func (p Player) OwnershipValue() float64 {
	if p.Ownership != nil {
		return *p.Ownership
	}
	return 0.05
}

// HasPosition reports whether the player is eligible for the given slot tag
func (p Player) HasPosition(position string) bool {
	for _, pos := range p.Positions {
		if pos == position {
			return true
		}
	}
	return false
}

// Validate checks the pool-level invariants for a single player record
func (p Player) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("player missing id")
	}
	if len(p.Positions) == 0 {
		return fmt.Errorf("player %s has no eligible positions", p.ID)
	}
	if p.Salary <= 0 {
		return fmt.Errorf("player %s has non-positive salary %d", p.ID, p.Salary)
	}
	if p.Projection < 0 {
		return fmt.Errorf("player %s has negative projection %.2f", p.ID, p.Projection)
	}
	if p.GameID == "" {
		return fmt.Errorf("player %s missing game id", p.ID)
	}
	if p.Floor != nil && p.Ceil != nil && *p.Floor > *p.Ceil {
		return fmt.Errorf("player %s floor %.2f above ceiling %.2f", p.ID, *p.Floor, *p.Ceil)
	}
	if p.Ownership != nil && (*p.Ownership < 0 || *p.Ownership > 1) {
		return fmt.Errorf("player %s ownership %.2f outside [0,1]", p.ID, *p.Ownership)
	}
	return nil
}

// RosterSlot defines one slot in a roster template
type RosterSlot struct {
	Name     string   `json:"name"`
	Eligible []string `json:"eligible"`
	Count    int      `json:"count"`
}

// RosterTemplate is the ordered list of slots a lineup must fill. Name
// identifies the contest format (e.g. "nfl-classic") for logs and requests.
type RosterTemplate struct {
	Name  string       `json:"name"`
	Slots []RosterSlot `json:"slots"`
}

// TotalSlots returns the lineup size implied by the template
func (rt RosterTemplate) TotalSlots() int {
	total := 0
	for _, slot := range rt.Slots {
		total += slot.Count
	}
	return total
}

// Expand flattens the template into one entry per individual slot,
// preserving template order.
func (rt RosterTemplate) Expand() []RosterSlot {
	expanded := make([]RosterSlot, 0, rt.TotalSlots())
	for _, slot := range rt.Slots {
		for i := 0; i < slot.Count; i++ {
			expanded = append(expanded, RosterSlot{Name: slot.Name, Eligible: slot.Eligible, Count: 1})
		}
	}
	return expanded
}

// Validate checks template-level invariants
func (rt RosterTemplate) Validate() error {
	if len(rt.Slots) == 0 {
		return fmt.Errorf("roster template has no slots")
	}
	for _, slot := range rt.Slots {
		if slot.Count <= 0 {
			return fmt.Errorf("slot %s has non-positive count %d", slot.Name, slot.Count)
		}
		if len(slot.Eligible) == 0 {
			return fmt.Errorf("slot %s has empty eligibility set", slot.Name)
		}
	}
	return nil
}
