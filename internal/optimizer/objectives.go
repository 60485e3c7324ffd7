package optimizer

import (
	"math"

	"github.com/draftforge/engine/pkg/types"
)

// Objective represents different optimization strategies
type Objective string

const (
	ObjectiveBalanced Objective = "balanced" // projection-led blend, default
	ObjectiveCeiling  Objective = "ceiling"  // GPP tournaments - maximize upside
	ObjectiveFloor    Objective = "floor"    // cash games - maximize safety
	ObjectiveLeverage Objective = "leverage" // low-ownership, high-ceiling hunting
)

// Valid reports whether the objective is a known preset
func (o Objective) Valid() bool {
	switch o {
	case ObjectiveBalanced, ObjectiveCeiling, ObjectiveFloor, ObjectiveLeverage, "":
		return true
	}
	return false
}

// scorer computes per-player objective values for the solver. The base value
// is a blend of projection/floor/ceiling chosen by the preset; the batch
// objective then subtracts a duplicate-risk penalty and adds a leverage
// bonus, weighted by lambda and beta respectively.
type scorer struct {
	objective Objective
	lambda    float64 // duplicate-risk weight
	beta      float64 // leverage weight
}

func newScorer(objective Objective, lambda, beta float64) *scorer {
	if objective == "" {
		objective = ObjectiveBalanced
	}
	return &scorer{objective: objective, lambda: lambda, beta: beta}
}

// Score returns the value the solver maximizes for one player.
func (s *scorer) Score(p types.Player) float64 {
	base := s.baseValue(p)

	// Duplicate risk grows with how chalky the player is: a field full of
	// the same high-owned players makes the finished lineup easy to copy.
	duplicateRisk := p.OwnershipValue()

	// Leverage rewards unrealized upside the field is not paying for.
	leverage := math.Max(0, p.CeilValue()-p.Projection) * (1 - p.OwnershipValue())

	return base - s.lambda*duplicateRisk + s.beta*leverage
}

func (s *scorer) baseValue(p types.Player) float64 {
	switch s.objective {
	case ObjectiveCeiling:
		return 0.25*p.Projection + 0.75*p.CeilValue()
	case ObjectiveFloor:
		return 0.35*p.Projection + 0.65*p.FloorValue()
	case ObjectiveLeverage:
		// Projection still anchors the value so the solver does not chase
		// zero-ownership punts with no scoring upside.
		return 0.6*p.Projection + 0.4*p.CeilValue()*(1-p.OwnershipValue())
	default:
		return p.Projection
	}
}
