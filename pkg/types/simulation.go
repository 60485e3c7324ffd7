package types

import "fmt"

// DistributionKind selects the marginal outcome distribution for sampling
type DistributionKind string

const (
	DistributionNormal    DistributionKind = "normal"
	DistributionLogNormal DistributionKind = "lognormal"
	DistributionEmpirical DistributionKind = "empirical"
)

// Valid reports whether the kind is one the simulator supports
func (d DistributionKind) Valid() bool {
	switch d {
	case DistributionNormal, DistributionLogNormal, DistributionEmpirical:
		return true
	}
	return false
}

// PayoutTier maps an inclusive rank range to a payout amount
type PayoutTier struct {
	MinRank int     `json:"min_rank"`
	MaxRank int     `json:"max_rank"`
	Payout  float64 `json:"payout"`
}

// PayoutCurve describes the contest economics used for win%/ROI estimation
type PayoutCurve struct {
	FieldSize int          `json:"field_size"`
	EntryFee  float64      `json:"entry_fee"`
	Tiers     []PayoutTier `json:"tiers"`
}

// PayoutForRank looks up the payout for a 1-based finishing rank
func (pc PayoutCurve) PayoutForRank(rank int) float64 {
	for _, tier := range pc.Tiers {
		if rank >= tier.MinRank && rank <= tier.MaxRank {
			return tier.Payout
		}
	}
	return 0
}

// PayingPositions returns the worst rank that still pays
func (pc PayoutCurve) PayingPositions() int {
	worst := 0
	for _, tier := range pc.Tiers {
		if tier.Payout > 0 && tier.MaxRank > worst {
			worst = tier.MaxRank
		}
	}
	return worst
}

// Validate checks curve invariants
func (pc PayoutCurve) Validate() error {
	if pc.FieldSize <= 0 {
		return fmt.Errorf("payout curve field size must be positive, got %d", pc.FieldSize)
	}
	if pc.EntryFee < 0 {
		return fmt.Errorf("payout curve entry fee must be non-negative, got %.2f", pc.EntryFee)
	}
	for _, tier := range pc.Tiers {
		if tier.MinRank < 1 || tier.MaxRank < tier.MinRank {
			return fmt.Errorf("payout tier has invalid rank range [%d,%d]", tier.MinRank, tier.MaxRank)
		}
	}
	return nil
}

// SimulationResult aggregates one lineup's distributional statistics over a
// full set of Monte Carlo trials. Immutable once produced.
type SimulationResult struct {
	LineupSignature string          `json:"lineup_signature"`
	Iterations      int             `json:"iterations"`
	Seed            int64           `json:"seed"`
	MeanScore       float64         `json:"mean_score"`
	StddevScore     float64         `json:"stddev_score"`
	MinScore        float64         `json:"min_score"`
	MaxScore        float64         `json:"max_score"`
	Percentiles     map[int]float64 `json:"percentiles"`
	WinProbability  float64         `json:"win_probability"`
	ROI             float64         `json:"roi"`
	BoomRate        float64         `json:"boom_rate"`
	BustRate        float64         `json:"bust_rate"`
	// Failed marks lineups whose simulation aborted on a numeric error;
	// Reason carries the diagnostic. Other lineups in the batch still run.
	Failed bool   `json:"failed,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// RankedResult pairs a lineup with its simulation statistics after ranking
type RankedResult struct {
	Rank       int               `json:"rank"`
	Lineup     Lineup            `json:"lineup"`
	Simulation *SimulationResult `json:"simulation,omitempty"`
}
