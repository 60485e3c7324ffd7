package simulator

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/sirupsen/logrus"
	"golang.org/x/exp/rand"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/draftforge/engine/internal/optimizer"
	"github.com/draftforge/engine/pkg/config"
	"github.com/draftforge/engine/pkg/logger"
	"github.com/draftforge/engine/pkg/types"
)

// fieldSeedStream is the reserved RNG stream for field construction so it
// never collides with a trial index.
const fieldSeedStream = ^uint64(0)

const ctxCheckStride = 256

var percentileLadder = []int{10, 25, 50, 75, 90, 99}

// Request carries everything one simulation batch needs. The pool and
// correlation matrix are treated as immutable for the duration of the call.
type Request struct {
	Lineups      []types.Lineup
	Pool         []types.Player
	Correlation  *optimizer.CorrelationMatrix
	Iterations   int
	Seed         int64
	Distribution types.DistributionKind
	Payout       types.PayoutCurve
}

// Simulator runs correlated Monte Carlo outcome trials over a lineup batch
type Simulator struct {
	cfg *config.Config
	log *logrus.Entry
}

func NewSimulator(cfg *config.Config) *Simulator {
	return &Simulator{
		cfg: cfg,
		log: logger.GetLogger().WithField("component", "simulator"),
	}
}

// moments is one worker partition's accumulated statistics for one lineup.
// Partitions merge with the parallel variance combination formula, never by
// re-summing raw samples.
type moments struct {
	n         float64
	mean      float64
	m2        float64
	min       float64
	max       float64
	boomCount int
	bustCount int
	winCount  int
	payoutSum float64
}

func newMoments() moments {
	return moments{min: math.Inf(1), max: math.Inf(-1)}
}

func (m *moments) observe(score float64, boom, bust, win bool, payout float64) {
	m.n++
	delta := score - m.mean
	m.mean += delta / m.n
	m.m2 += delta * (score - m.mean)
	if score < m.min {
		m.min = score
	}
	if score > m.max {
		m.max = score
	}
	if boom {
		m.boomCount++
	}
	if bust {
		m.bustCount++
	}
	if win {
		m.winCount++
	}
	m.payoutSum += payout
}

func (m *moments) merge(o moments) {
	if o.n == 0 {
		return
	}
	if m.n == 0 {
		*m = o
		return
	}
	n := m.n + o.n
	delta := o.mean - m.mean
	m.mean += delta * o.n / n
	m.m2 += o.m2 + delta*delta*m.n*o.n/n
	m.n = n
	if o.min < m.min {
		m.min = o.min
	}
	if o.max > m.max {
		m.max = o.max
	}
	m.boomCount += o.boomCount
	m.bustCount += o.bustCount
	m.winCount += o.winCount
	m.payoutSum += o.payoutSum
}

// Simulate runs req.Iterations correlated trials and aggregates per-lineup
// statistics. Trial t always draws from the RNG stream keyed by (seed, t),
// so results are identical regardless of worker count or scheduling. On
// deadline expiry the completed trials are aggregated and a TimeoutError is
// returned alongside them.
func (s *Simulator) Simulate(ctx context.Context, req Request) ([]types.SimulationResult, error) {
	if err := s.validate(req); err != nil {
		return nil, err
	}

	iterations := req.Iterations
	if iterations > s.cfg.MaxSimulations {
		s.log.WithFields(logrus.Fields{
			"requested": iterations,
			"cap":       s.cfg.MaxSimulations,
		}).Warn("Iteration count capped")
		iterations = s.cfg.MaxSimulations
	}

	chol, err := req.Correlation.Cholesky()
	if err != nil {
		return nil, err
	}
	lower := flattenLower(chol)

	marginals := buildMarginals(req.Pool, req.Distribution, s.cfg.DefaultVariance)

	// Resolve lineup players to pool indices up front. A lineup referencing
	// a player outside the pool fails alone; the batch continues.
	results := make([]types.SimulationResult, len(req.Lineups))
	lineupIdx := make([][]int, 0, len(req.Lineups))
	active := make([]int, 0, len(req.Lineups))
	lineupSize := 0
	for i, lu := range req.Lineups {
		results[i] = types.SimulationResult{
			LineupSignature: lu.Signature,
			Seed:            req.Seed,
		}
		indices, resolveErr := resolveLineup(lu, req.Correlation)
		if resolveErr != nil {
			results[i].Failed = true
			results[i].Reason = resolveErr.Error()
			continue
		}
		lineupIdx = append(lineupIdx, indices)
		active = append(active, i)
		if len(indices) > lineupSize {
			lineupSize = len(indices)
		}
	}
	if len(active) == 0 {
		return results, nil
	}

	field := buildFieldModel(req.Pool, req.Payout, s.cfg.FieldSampleSize, lineupSize, req.Seed)

	nPlayers := len(req.Pool)
	scores := make([][]float64, len(active))
	for i := range scores {
		scores[i] = make([]float64, iterations)
	}
	done := make([]bool, iterations)

	workers := s.cfg.SimulationWorkers
	if workers > iterations {
		workers = iterations
	}
	partials := make([][]moments, workers)

	g, gctx := errgroup.WithContext(ctx)
	chunk := (iterations + workers - 1) / workers
	for w := 0; w < workers; w++ {
		w := w
		lo := w * chunk
		hi := lo + chunk
		if hi > iterations {
			hi = iterations
		}
		g.Go(func() error {
			part := make([]moments, len(active))
			for i := range part {
				part[i] = newMoments()
			}
			partials[w] = part

			normals := make([]float64, nPlayers)
			correlated := make([]float64, nPlayers)
			playerScores := make([]float64, nPlayers)
			var fieldScores []float64

			for t := lo; t < hi; t++ {
				if (t-lo)%ctxCheckStride == 0 && gctx.Err() != nil {
					return nil
				}

				rng := rand.New(rand.NewSource(trialSeed(req.Seed, uint64(t))))
				for i := 0; i < nPlayers; i++ {
					normals[i] = rng.NormFloat64()
				}
				correlate(lower, normals, correlated)
				for i := 0; i < nPlayers; i++ {
					playerScores[i] = marginals[i].sample(rng, correlated[i])
				}
				fieldScores = field.scoreTrial(playerScores, fieldScores)

				for li, indices := range lineupIdx {
					score := 0.0
					for _, idx := range indices {
						score += playerScores[idx]
					}
					scores[li][t] = score

					lu := req.Lineups[active[li]]
					boom := score >= s.cfg.BoomFactor*lu.ProjectedPoints
					bust := score <= s.cfg.BustFactor*lu.ProjectedPoints
					payout := field.payoutForScore(score, fieldScores)
					part[li].observe(score, boom, bust, payout > 0, payout)
				}
				done[t] = true
			}
			return nil
		})
	}
	_ = g.Wait()

	completed := 0
	for _, d := range done {
		if d {
			completed++
		}
	}

	for li, resultIdx := range active {
		merged := newMoments()
		for w := 0; w < workers; w++ {
			if partials[w] != nil {
				merged.merge(partials[w][li])
			}
		}
		s.finalize(&results[resultIdx], merged, scores[li], done, req.Payout)
	}

	s.log.WithFields(logrus.Fields{
		"lineups":    len(req.Lineups),
		"iterations": completed,
		"seed":       req.Seed,
	}).Info("Simulation batch complete")

	if completed < iterations {
		return results, &types.TimeoutError{Stage: fmt.Sprintf("simulation after %d/%d trials", completed, iterations)}
	}
	return results, nil
}

func (s *Simulator) validate(req Request) error {
	verr := &types.ValidationError{}
	if len(req.Lineups) == 0 {
		verr.Add("simulation requires at least one lineup")
	}
	if len(req.Pool) == 0 {
		verr.Add("simulation requires a non-empty player pool")
	}
	if req.Correlation == nil {
		verr.Add("simulation requires a correlation matrix")
	}
	if req.Iterations <= 0 {
		verr.Add("iterations must be positive, got %d", req.Iterations)
	}
	if !req.Distribution.Valid() {
		verr.Add("unknown distribution %q", req.Distribution)
	}
	if err := req.Payout.Validate(); err != nil {
		verr.Add("%v", err)
	}
	if verr.HasViolations() {
		return verr
	}
	return nil
}

// finalize turns merged moments plus the raw trial scores into the
// per-lineup result. Non-finite aggregates mark the lineup failed without
// touching the rest of the batch.
func (s *Simulator) finalize(res *types.SimulationResult, m moments, trialScores []float64, done []bool, payout types.PayoutCurve) {
	if m.n == 0 {
		res.Failed = true
		res.Reason = "no completed trials"
		return
	}
	if !isFinite(m.mean) || !isFinite(m.m2) {
		res.Failed = true
		res.Reason = (&types.NumericError{Detail: "non-finite score aggregate"}).Error()
		return
	}

	res.Iterations = int(m.n)
	res.MeanScore = m.mean
	if m.n > 1 {
		res.StddevScore = math.Sqrt(m.m2 / (m.n - 1))
	}
	res.MinScore = m.min
	res.MaxScore = m.max
	res.BoomRate = float64(m.boomCount) / m.n
	res.BustRate = float64(m.bustCount) / m.n
	res.WinProbability = float64(m.winCount) / m.n
	if payout.EntryFee > 0 {
		res.ROI = (m.payoutSum/m.n - payout.EntryFee) / payout.EntryFee
	}

	sorted := make([]float64, 0, int(m.n))
	for t, score := range trialScores {
		if done[t] {
			sorted = append(sorted, score)
		}
	}
	sort.Float64s(sorted)
	res.Percentiles = make(map[int]float64, len(percentileLadder))
	for _, p := range percentileLadder {
		res.Percentiles[p] = stat.Quantile(float64(p)/100, stat.Empirical, sorted, nil)
	}
}

func resolveLineup(lu types.Lineup, corr *optimizer.CorrelationMatrix) ([]int, error) {
	indices := make([]int, 0, len(lu.Players))
	for _, lp := range lu.Players {
		idx, ok := corr.Index(lp.ID)
		if !ok {
			return nil, fmt.Errorf("lineup %s references player %s outside the simulated pool", lu.Signature, lp.ID)
		}
		indices = append(indices, idx)
	}
	return indices, nil
}

// flattenLower extracts the Cholesky factor into plain row slices so the
// per-trial transform is a tight loop with no interface dispatch.
func flattenLower(chol *mat.Cholesky) [][]float64 {
	var l mat.TriDense
	chol.LTo(&l)
	n, _ := l.Dims()
	rows := make([][]float64, n)
	for i := 0; i < n; i++ {
		rows[i] = make([]float64, i+1)
		for j := 0; j <= i; j++ {
			rows[i][j] = l.At(i, j)
		}
	}
	return rows
}

// correlate computes out = L * normals
func correlate(lower [][]float64, normals, out []float64) {
	for i, row := range lower {
		sum := 0.0
		for j, lij := range row {
			sum += lij * normals[j]
		}
		out[i] = sum
	}
}

// trialSeed derives an independent RNG stream for (seed, stream) with a
// splitmix-style mix so neighboring trial indices do not share structure.
func trialSeed(seed int64, stream uint64) uint64 {
	x := uint64(seed)*0x9E3779B97F4A7C15 + (stream+1)*0xBF58476D1CE4E5B9
	x ^= x >> 31
	x *= 0x94D049BB133111EB
	x ^= x >> 27
	return x
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
