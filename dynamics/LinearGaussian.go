package dynamics

import (
	"fmt"

	"golang.org/x/exp/rand"

	"gonum.org/v1/gonum/mat"

	"github.com/samuelfneumann/gosafe/timestep"
)

// linearGaussian is a forward model that is linear in the features
// [1, state, action]. It predicts the next-state delta, plus reward
// and cost when those heads are enabled, and reports its per-output
// residual variance from the last fit as the predictive variance.
//
// Each Train call fits the model by ridge regression on a bootstrap
// resample of the batch. The resampling is what makes an ensemble of
// these members disagree in states the data covers poorly, which is
// exactly the signal conservative planners penalize.
type linearGaussian struct {
	stateDim  int
	actionDim int

	rewardHead bool
	costHead   bool

	ridge float64
	rng   *rand.Rand

	// weights is nil until the first Train call; before that,
	// predictions are zero deltas with unit variance
	weights *mat.Dense // featureDim x outputDim
	resVar  []float64  // per-output residual variance
}

func newLinearGaussian(stateDim, actionDim int, rewardHead, costHead bool,
	ridge float64, seed uint64) *linearGaussian {
	return &linearGaussian{
		stateDim:   stateDim,
		actionDim:  actionDim,
		rewardHead: rewardHead,
		costHead:   costHead,
		ridge:      ridge,
		rng:        rand.New(rand.NewSource(seed)),
	}
}

// featureDim returns the size of the feature vector [1, state, action]
func (l *linearGaussian) featureDim() int {
	return 1 + l.stateDim + l.actionDim
}

// outputDim returns the number of predicted quantities: the state
// delta plus any enabled heads
func (l *linearGaussian) outputDim() int {
	out := l.stateDim
	if l.rewardHead {
		out++
	}
	if l.costHead {
		out++
	}
	return out
}

// features fills row i of X with the feature vector for (state, action)
func (l *linearGaussian) features(x []float64, state, action mat.Vector) {
	x[0] = 1.0
	for i := 0; i < l.stateDim; i++ {
		x[1+i] = state.AtVec(i)
	}
	for i := 0; i < l.actionDim; i++ {
		x[1+l.stateDim+i] = action.AtVec(i)
	}
}

// Predict implements the Member interface. Predict never mutates its
// inputs and is a pure function of the current weights.
func (l *linearGaussian) Predict(state, action mat.Vector) (Prediction,
	error) {
	if state.Len() != l.stateDim || action.Len() != l.actionDim {
		return Prediction{}, fmt.Errorf("predict: shape mismatch: got "+
			"(%v, %v), model expects (%v, %v)", state.Len(), action.Len(),
			l.stateDim, l.actionDim)
	}

	delta := mat.NewVecDense(l.stateDim, nil)
	varVec := mat.NewVecDense(l.stateDim, nil)
	pred := Prediction{Delta: delta, Var: varVec}

	if l.weights == nil {
		// Untrained model: predict no motion with unit uncertainty
		for i := 0; i < l.stateDim; i++ {
			varVec.SetVec(i, 1.0)
		}
		return pred, nil
	}

	x := make([]float64, l.featureDim())
	l.features(x, state, action)
	feat := mat.NewVecDense(len(x), x)

	out := mat.NewVecDense(l.outputDim(), nil)
	out.MulVec(l.weights.T(), feat)

	for i := 0; i < l.stateDim; i++ {
		delta.SetVec(i, out.AtVec(i))
		varVec.SetVec(i, l.resVar[i])
	}
	next := l.stateDim
	if l.rewardHead {
		pred.Reward = out.AtVec(next)
		next++
	}
	if l.costHead {
		pred.Cost = out.AtVec(next)
	}
	return pred, nil
}

// Train fits the model by ridge regression on a bootstrap resample of
// the batch
func (l *linearGaussian) Train(batch []timestep.Transition) error {
	if len(batch) == 0 {
		return fmt.Errorf("train: empty batch")
	}

	n := len(batch)
	d := l.featureDim()
	k := l.outputDim()

	X := mat.NewDense(n, d, nil)
	Y := mat.NewDense(n, k, nil)

	for row := 0; row < n; row++ {
		t := batch[l.rng.Intn(n)]
		if t.State.Len() != l.stateDim || t.Action.Len() != l.actionDim {
			return fmt.Errorf("train: transition shape mismatch: got "+
				"(%v, %v), model expects (%v, %v)", t.State.Len(),
				t.Action.Len(), l.stateDim, l.actionDim)
		}

		l.features(X.RawRowView(row), t.State, t.Action)

		for i := 0; i < l.stateDim; i++ {
			Y.Set(row, i, t.NextState.AtVec(i)-t.State.AtVec(i))
		}
		col := l.stateDim
		if l.rewardHead {
			Y.Set(row, col, t.Reward)
			col++
		}
		if l.costHead {
			Y.Set(row, col, t.Cost)
		}
	}

	// Normal equations with ridge regularization:
	// W = (X'X + ridge*I)^-1 X'Y
	var gram mat.Dense
	gram.Mul(X.T(), X)
	for i := 0; i < d; i++ {
		gram.Set(i, i, gram.At(i, i)+l.ridge)
	}

	var xty mat.Dense
	xty.Mul(X.T(), Y)

	weights := mat.NewDense(d, k, nil)
	if err := weights.Solve(&gram, &xty); err != nil {
		return fmt.Errorf("train: singular feature matrix: %w", err)
	}
	l.weights = weights

	// Residual variance per output dimension
	var pred mat.Dense
	pred.Mul(X, weights)

	resVar := make([]float64, k)
	for j := 0; j < k; j++ {
		var ss float64
		for i := 0; i < n; i++ {
			r := Y.At(i, j) - pred.At(i, j)
			ss += r * r
		}
		resVar[j] = ss / float64(n)
	}
	l.resVar = resVar

	return nil
}
