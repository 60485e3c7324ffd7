// Package engine is the lineup optimization and outcome-simulation core:
// given a validated player pool it produces diverse salary-cap-compliant
// lineups and estimates each lineup's distribution of outcomes against a
// simulated contest field. The engine performs no I/O; every input arrives
// as an in-memory argument and every result leaves the same way.
package engine

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/draftforge/engine/internal/aggregator"
	"github.com/draftforge/engine/internal/optimizer"
	"github.com/draftforge/engine/internal/simulator"
	"github.com/draftforge/engine/pkg/config"
	"github.com/draftforge/engine/pkg/logger"
	"github.com/draftforge/engine/pkg/types"
)

// Objective re-exports the solver's objective presets for callers
type Objective = optimizer.Objective

const (
	ObjectiveBalanced = optimizer.ObjectiveBalanced
	ObjectiveCeiling  = optimizer.ObjectiveCeiling
	ObjectiveFloor    = optimizer.ObjectiveFloor
	ObjectiveLeverage = optimizer.ObjectiveLeverage
)

// RankKey re-exports the aggregator's sort dimensions
type RankKey = aggregator.RankKey

const (
	RankByProjection = aggregator.RankByProjection
	RankByMean       = aggregator.RankByMean
	RankByWinProb    = aggregator.RankByWinProb
	RankByROI        = aggregator.RankByROI
	RankByLeverage   = aggregator.RankByLeverage
)

// defaultSeed is used when a request omits its seed, keeping unseeded runs
// reproducible too.
const defaultSeed int64 = 1

// OptimizeRequest is the full envelope for one lineup generation run
type OptimizeRequest struct {
	SlateID     string                `json:"slate_id"`
	Players     []types.Player        `json:"players"`
	Template    types.RosterTemplate  `json:"roster_template"`
	Constraints types.RawConstraints  `json:"constraints"`
	LineupCount int                   `json:"lineup_count"`
	Objective   Objective             `json:"objective,omitempty"`
	Seed        *int64                `json:"seed,omitempty"`
}

// OptimizeResponse reports the generated batch. Infeasible means hard
// constraints admit no lineup at all; Incomplete means the deadline expired
// or the search exhausted before LineupCount lineups. Reasons carries the
// plain-language diagnostics in both cases.
type OptimizeResponse struct {
	RunID      string                    `json:"run_id"`
	Lineups    []types.Lineup            `json:"lineups"`
	Infeasible bool                      `json:"infeasible"`
	Incomplete bool                      `json:"incomplete"`
	Reasons    []string                  `json:"reasons,omitempty"`
	Exposure   *optimizer.ExposureReport `json:"exposure,omitempty"`
	RuntimeMs  int64                     `json:"runtime_ms"`
}

// SimulateRequest is the envelope for one Monte Carlo batch
type SimulateRequest struct {
	Lineups      []types.Lineup         `json:"lineups"`
	Players      []types.Player         `json:"players"`
	Iterations   int                    `json:"iterations"`
	Seed         *int64                 `json:"seed,omitempty"`
	Distribution types.DistributionKind `json:"distribution,omitempty"`
	Payout       types.PayoutCurve      `json:"payout_curve"`
}

// SimulateResponse carries per-lineup statistics. Incomplete marks deadline
// expiry; the results then aggregate only the trials that finished.
type SimulateResponse struct {
	RunID      string                   `json:"run_id"`
	Results    []types.SimulationResult `json:"results"`
	Incomplete bool                     `json:"incomplete"`
	Reasons    []string                 `json:"reasons,omitempty"`
	ComputedAt time.Time                `json:"computed_at"`
}

// Engine wires configuration into the optimizer, simulator and aggregator.
// It holds no mutable request state and is safe for concurrent use.
type Engine struct {
	cfg *config.Config
	log *logrus.Logger
}

// New creates an engine; a nil config falls back to built-in defaults
func New(cfg *config.Config) *Engine {
	if cfg == nil {
		cfg = config.Default()
	}
	return &Engine{cfg: cfg, log: logger.GetLogger()}
}

// Optimize validates the request, builds the constraint set and runs the
// sequential batch solve. Infeasibility and timeouts degrade to a flagged
// response, never an error; only malformed requests return one.
func (e *Engine) Optimize(ctx context.Context, req OptimizeRequest) (*OptimizeResponse, error) {
	runID := uuid.New().String()
	log := logger.WithOptimizationContext(runID, req.SlateID, req.LineupCount)
	start := time.Now()

	if err := e.validateOptimize(&req); err != nil {
		log.WithError(err).Warn("Optimization request rejected")
		return nil, err
	}

	cs, err := optimizer.BuildConstraints(req.Players, req.Template, req.Constraints, log)
	if err != nil {
		var infeasible *types.InfeasibleError
		if errors.As(err, &infeasible) {
			return &OptimizeResponse{
				RunID:      runID,
				Lineups:    []types.Lineup{},
				Infeasible: true,
				Reasons:    infeasible.Reasons,
				RuntimeMs:  time.Since(start).Milliseconds(),
			}, nil
		}
		return nil, err
	}

	ctx, cancel := e.withDeadline(ctx, e.cfg.OptimizationTimeout)
	defer cancel()

	solver := optimizer.NewSolver(e.cfg, log)
	res, err := solver.Solve(ctx, optimizer.SolveRequest{
		Pool:        req.Players,
		Template:    req.Template,
		Constraints: cs,
		LineupCount: req.LineupCount,
		Objective:   req.Objective,
		Seed:        seedOrDefault(req.Seed),
	})
	if err != nil {
		return nil, err
	}

	log.WithFields(logrus.Fields{
		"produced":   len(res.Lineups),
		"infeasible": res.Infeasible,
		"incomplete": res.Incomplete,
		"runtime_ms": time.Since(start).Milliseconds(),
	}).Info("Optimization run finished")

	return &OptimizeResponse{
		RunID:      runID,
		Lineups:    res.Lineups,
		Infeasible: res.Infeasible,
		Incomplete: res.Incomplete,
		Reasons:    res.Reasons,
		Exposure:   res.Exposure,
		RuntimeMs:  time.Since(start).Milliseconds(),
	}, nil
}

// Simulate builds the correlation model over the supplied pool and runs the
// correlated Monte Carlo batch. A correlation matrix that cannot be repaired
// to positive semi-definite is fatal for the whole request; per-lineup
// numeric failures are reported inside the affected result only.
func (e *Engine) Simulate(ctx context.Context, req SimulateRequest) (*SimulateResponse, error) {
	runID := uuid.New().String()
	log := logger.WithSimulationContext(runID, len(req.Lineups), req.Iterations)

	if req.Distribution == "" {
		req.Distribution = types.DistributionNormal
	}

	corr, err := optimizer.BuildCorrelationMatrix(req.Players)
	if err != nil {
		log.WithError(err).Error("Correlation model construction failed")
		return nil, err
	}

	ctx, cancel := e.withDeadline(ctx, e.cfg.SimulationTimeout)
	defer cancel()

	sim := simulator.NewSimulator(e.cfg)
	results, err := sim.Simulate(ctx, simulator.Request{
		Lineups:      req.Lineups,
		Pool:         req.Players,
		Correlation:  corr,
		Iterations:   req.Iterations,
		Seed:         seedOrDefault(req.Seed),
		Distribution: req.Distribution,
		Payout:       req.Payout,
	})

	resp := &SimulateResponse{
		RunID:      runID,
		Results:    results,
		ComputedAt: time.Now().UTC(),
	}
	if err != nil {
		var timeout *types.TimeoutError
		if errors.As(err, &timeout) {
			resp.Incomplete = true
			resp.Reasons = append(resp.Reasons, timeout.Error())
			log.Warn("Simulation returned partial results on deadline")
			return resp, nil
		}
		return nil, err
	}

	log.Info("Simulation run finished")
	return resp, nil
}

// Rank merges lineups with their simulation results into a stable ranked
// ordering by the requested key.
func (e *Engine) Rank(lineups []types.Lineup, results []types.SimulationResult, key RankKey) ([]types.RankedResult, error) {
	return aggregator.Rank(lineups, results, key)
}

func (e *Engine) validateOptimize(req *OptimizeRequest) error {
	verr := &types.ValidationError{}
	if len(req.Players) == 0 {
		verr.Add("player pool is empty")
	}
	for _, p := range req.Players {
		if err := p.Validate(); err != nil {
			verr.Add("%v", err)
		}
	}
	if err := req.Template.Validate(); err != nil {
		verr.Add("%v", err)
	}
	if req.LineupCount <= 0 {
		verr.Add("lineup count must be positive, got %d", req.LineupCount)
	}
	if req.LineupCount > e.cfg.MaxLineups {
		verr.Add("lineup count %d exceeds maximum %d", req.LineupCount, e.cfg.MaxLineups)
	}
	if req.Objective == "" {
		req.Objective = ObjectiveBalanced
	}
	if !req.Objective.Valid() {
		verr.Add("unknown objective %q", req.Objective)
	}
	if verr.HasViolations() {
		return verr
	}
	return nil
}

func (e *Engine) withDeadline(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok || timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

func seedOrDefault(seed *int64) int64 {
	if seed != nil {
		return *seed
	}
	return defaultSeed
}
