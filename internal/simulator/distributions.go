package simulator

import (
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/draftforge/engine/pkg/types"
)

// Availability knockout probabilities for injury-flagged players. OUT and
// INACTIVE players never score; QUESTIONABLE and DOUBTFUL players sit out
// some fraction of trials.
const (
	questionableOutProb = 0.15
	doubtfulOutProb     = 0.40
)

// marginal maps a standard normal draw onto one player's outcome
// distribution, keeping the requested shape so the Cholesky transform only
// has to supply the correlation structure.
type marginal struct {
	kind    types.DistributionKind
	mean    float64
	stddev  float64
	floor   float64
	ceil    float64
	outProb float64

	// log-normal parameters, precomputed when applicable
	logMu    float64
	logSigma float64
}

func newMarginal(p types.Player, kind types.DistributionKind, defaultVarianceFraction float64) marginal {
	m := marginal{
		kind:  kind,
		mean:  p.Projection,
		floor: p.FloorValue(),
		ceil:  p.CeilValue(),
	}

	if p.Floor != nil && p.Ceil != nil && *p.Ceil > *p.Floor {
		m.stddev = (*p.Ceil - *p.Floor) / 4
	} else {
		m.stddev = defaultVarianceFraction * p.Projection
	}
	if m.stddev <= 0 {
		m.stddev = 1e-6
	}

	switch p.InjuryStatus {
	case types.InjuryOut, types.InjuryInactive:
		m.outProb = 1
	case types.InjuryQuestionable:
		m.outProb = questionableOutProb
	case types.InjuryDoubtful:
		m.outProb = doubtfulOutProb
	}

	if kind == types.DistributionLogNormal && m.mean > 0 {
		cv := m.stddev / m.mean
		m.logSigma = math.Sqrt(math.Log(1 + cv*cv))
		m.logMu = math.Log(m.mean) - m.logSigma*m.logSigma/2
	}

	return m
}

// sample maps a correlated standard normal value z to a fantasy score.
// The availability knockout draws from the trial's own stream so it stays
// deterministic per trial index.
func (m marginal) sample(rng *rand.Rand, z float64) float64 {
	if m.outProb >= 1 {
		return 0
	}
	if m.outProb > 0 && rng.Float64() < m.outProb {
		return 0
	}

	switch m.kind {
	case types.DistributionLogNormal:
		if m.mean <= 0 {
			return 0
		}
		return math.Exp(m.logMu + m.logSigma*z)
	case types.DistributionEmpirical:
		return m.quantile(distuv.UnitNormal.CDF(z))
	default:
		return m.mean + m.stddev*z
	}
}

// quantile walks the piecewise-linear curve through floor, projection and
// ceiling, treating the projection as the median outcome.
func (m marginal) quantile(u float64) float64 {
	switch {
	case u <= 0:
		return m.floor
	case u >= 1:
		return m.ceil
	case u <= 0.5:
		return m.floor + 2*u*(m.mean-m.floor)
	default:
		return m.mean + 2*(u-0.5)*(m.ceil-m.mean)
	}
}

func buildMarginals(pool []types.Player, kind types.DistributionKind, defaultVarianceFraction float64) []marginal {
	marginals := make([]marginal, len(pool))
	for i, p := range pool {
		marginals[i] = newMarginal(p, kind, defaultVarianceFraction)
	}
	return marginals
}
