package optimizer

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/draftforge/engine/pkg/types"
)

// Rule strengths, expressed as pairwise correlations. The 0.8/0.3 relative
// strengths from the game model are scaled by 0.5 so stacked rules compose
// without saturating the matrix.
const (
	corrQBPassCatcher = 0.40  // QB with same-team WR/TE
	corrSameTeamSkill = 0.15  // other same-team skill pairs
	corrRBOppDefense  = -0.30 // RB against the opposing DST
	corrPassOppDefense = -0.20 // QB/WR/TE against the opposing DST
	corrSameGame      = 0.10  // opposing sides of the same game (game script)

	psdTolerance = 1e-9
)

// CorrelationMatrix holds the pairwise correlation structure for a pool,
// guaranteed symmetric and positive semi-definite after construction.
type CorrelationMatrix struct {
	ids    []string
	index  map[string]int
	matrix *mat.SymDense
}

// BuildCorrelationMatrix derives the correlation structure from team, game
// and position relationships. Raw rule composition can leave the matrix
// indefinite, so a nearest-PSD projection (eigenvalue clipping) runs before
// the matrix is handed to the simulator.
func BuildCorrelationMatrix(pool []types.Player) (*CorrelationMatrix, error) {
	n := len(pool)
	cm := &CorrelationMatrix{
		ids:    make([]string, n),
		index:  make(map[string]int, n),
		matrix: mat.NewSymDense(n, nil),
	}

	for i, p := range pool {
		cm.ids[i] = p.ID
		cm.index[p.ID] = i
		cm.matrix.SetSym(i, i, 1.0)
	}

	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			cm.matrix.SetSym(i, j, pairCorrelation(pool[i], pool[j]))
		}
	}

	if err := cm.repairPSD(); err != nil {
		return nil, err
	}

	return cm, nil
}

// pairCorrelation applies the rules in priority order; the first matching
// rule wins, unrelated players (different games) stay at zero.
func pairCorrelation(a, b types.Player) float64 {
	if a.GameID != b.GameID {
		return 0
	}

	if a.Team == b.Team {
		if qbWithPassCatcher(a, b) {
			return corrQBPassCatcher
		}
		if isSkillPosition(a) && isSkillPosition(b) {
			return corrSameTeamSkill
		}
		return 0
	}

	// Opposing sides of the same game.
	if (hasTag(a, "RB") && hasTag(b, "DST")) || (hasTag(b, "RB") && hasTag(a, "DST")) {
		return corrRBOppDefense
	}
	if (isPassGame(a) && hasTag(b, "DST")) || (isPassGame(b) && hasTag(a, "DST")) {
		return corrPassOppDefense
	}
	return corrSameGame
}

func qbWithPassCatcher(a, b types.Player) bool {
	return (hasTag(a, "QB") && (hasTag(b, "WR") || hasTag(b, "TE"))) ||
		(hasTag(b, "QB") && (hasTag(a, "WR") || hasTag(a, "TE")))
}

func isPassGame(p types.Player) bool {
	return hasTag(p, "QB") || hasTag(p, "WR") || hasTag(p, "TE")
}

func isSkillPosition(p types.Player) bool {
	return hasTag(p, "QB") || hasTag(p, "RB") || hasTag(p, "WR") || hasTag(p, "TE")
}

func hasTag(p types.Player, tag string) bool {
	return p.HasPosition(tag)
}

// repairPSD clips negative eigenvalues and renormalizes the diagonal back to
// unit correlations. One pass is normally enough; a second pass catches
// drift introduced by the renormalization.
func (cm *CorrelationMatrix) repairPSD() error {
	for attempt := 0; attempt < 2; attempt++ {
		if cm.minEigenvalue() >= -psdTolerance {
			return nil
		}
		cm.clipEigenvalues()
	}
	if cm.minEigenvalue() < -psdTolerance {
		return &types.NumericError{Detail: "correlation matrix could not be repaired to PSD"}
	}
	return nil
}

func (cm *CorrelationMatrix) minEigenvalue() float64 {
	var eig mat.EigenSym
	if ok := eig.Factorize(cm.matrix, false); !ok {
		return -1
	}
	values := eig.Values(nil)
	min := values[0]
	for _, v := range values[1:] {
		if v < min {
			min = v
		}
	}
	return min
}

func (cm *CorrelationMatrix) clipEigenvalues() {
	n := cm.matrix.SymmetricDim()

	var eig mat.EigenSym
	if ok := eig.Factorize(cm.matrix, true); !ok {
		return
	}
	values := eig.Values(nil)
	var vectors mat.Dense
	eig.VectorsTo(&vectors)

	for i, v := range values {
		if v < 0 {
			values[i] = 0
		}
	}

	// Reconstruct Q * diag(values) * Q^T.
	scaled := mat.NewDense(n, n, nil)
	for j := 0; j < n; j++ {
		for i := 0; i < n; i++ {
			scaled.Set(i, j, vectors.At(i, j)*values[j])
		}
	}
	var rebuilt mat.Dense
	rebuilt.Mul(scaled, vectors.T())

	// Renormalize so the diagonal stays at exactly 1.
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			dii, djj := rebuilt.At(i, i), rebuilt.At(j, j)
			if dii <= 0 || djj <= 0 {
				cm.matrix.SetSym(i, j, 0)
				continue
			}
			if i == j {
				cm.matrix.SetSym(i, i, 1.0)
			} else {
				cm.matrix.SetSym(i, j, rebuilt.At(i, j)/math.Sqrt(dii*djj))
			}
		}
	}
}

// At returns the correlation between two players by id; unknown ids are
// treated as uncorrelated.
func (cm *CorrelationMatrix) At(id1, id2 string) float64 {
	i, ok1 := cm.index[id1]
	j, ok2 := cm.index[id2]
	if !ok1 || !ok2 {
		return 0
	}
	return cm.matrix.At(i, j)
}

// IDs returns the pool ids in matrix order
func (cm *CorrelationMatrix) IDs() []string {
	return cm.ids
}

// Index returns the matrix row for a player id
func (cm *CorrelationMatrix) Index(id string) (int, bool) {
	i, ok := cm.index[id]
	return i, ok
}

// Sym exposes the underlying symmetric matrix for the sampling transform
func (cm *CorrelationMatrix) Sym() *mat.SymDense {
	return cm.matrix
}

// Cholesky computes the lower-triangular factor used to correlate standard
// normal draws. A vanishing jitter is added when the clipped matrix sits on
// the PSD boundary and the factorization fails.
func (cm *CorrelationMatrix) Cholesky() (*mat.Cholesky, error) {
	var chol mat.Cholesky
	if chol.Factorize(cm.matrix) {
		return &chol, nil
	}

	n := cm.matrix.SymmetricDim()
	jittered := mat.NewSymDense(n, nil)
	jittered.CopySym(cm.matrix)
	for i := 0; i < n; i++ {
		jittered.SetSym(i, i, jittered.At(i, i)+1e-8)
	}
	if chol.Factorize(jittered) {
		return &chol, nil
	}
	return nil, &types.NumericError{Detail: "Cholesky factorization failed on repaired correlation matrix"}
}
