package types

// GroupRuleKind selects the cardinality operator for a group rule
type GroupRuleKind string

const (
	GroupAtLeast GroupRuleKind = "AT_LEAST"
	GroupAtMost  GroupRuleKind = "AT_MOST"
	GroupExactly GroupRuleKind = "EXACTLY"
)

// ExposureLimit bounds the fraction of a lineup batch containing a player
type ExposureLimit struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// StackRule requires between MinPlayers and MaxPlayers from a team, counted
// over the listed positions only. An empty Positions list counts everyone.
type StackRule struct {
	Team       string   `json:"team"`
	Positions  []string `json:"positions,omitempty"`
	MinPlayers int      `json:"min_players"`
	MaxPlayers int      `json:"max_players"`
}

// GroupRule applies a cardinality constraint over an arbitrary player set
type GroupRule struct {
	PlayerIDs []string      `json:"player_ids"`
	Kind      GroupRuleKind `json:"kind"`
	Count     int           `json:"count"`
}

// RawConstraints is the caller-supplied constraint request, validated and
// normalized by the constraint builder before any solving happens.
type RawConstraints struct {
	SalaryCap      int                      `json:"salary_cap"`
	MinSalary      int                      `json:"min_salary,omitempty"`
	Locks          []string                 `json:"locks,omitempty"`
	Bans           []string                 `json:"bans,omitempty"`
	ExposureLimits map[string]ExposureLimit `json:"exposure_limits,omitempty"`
	Stacks         []StackRule              `json:"stacks,omitempty"`
	GroupRules     []GroupRule              `json:"group_rules,omitempty"`
	// Diversity is the fraction of the roster that must differ between any
	// two output lineups; the builder turns it into an absolute player count.
	Diversity float64 `json:"diversity"`
}
