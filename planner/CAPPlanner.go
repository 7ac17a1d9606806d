// Package planner implements sampling-based trajectory optimizers for
// model-based constrained RL
package planner

import (
	"fmt"
	"math"
	"sort"

	"golang.org/x/exp/rand"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/samuelfneumann/gosafe/dynamics"
	"github.com/samuelfneumann/gosafe/lagrange"
	"github.com/samuelfneumann/gosafe/utils/floatutils"
)

// CAPPlanner chooses actions by cross-entropy search over candidate
// action sequences, scored against an ensemble of learned dynamics
// models with a Conservative Adaptive Penalty: each sequence's
// predicted return is penalized by its predicted cost, weighted by the
// current Lagrange multiplier, and by the disagreement across ensemble
// members along its rollouts. The disagreement term is what makes the
// planner conservative in states the models know little about.
//
// A CAPPlanner is not safe for concurrent use. Each Plan call is a
// single blocking computation; the dynamics model must not be trained
// while a Plan call is in flight.
type CAPPlanner struct {
	cfg        Config
	ensemble   *dynamics.Ensemble
	lagrangian lagrange.Lagrangian

	actionDim int
	stdNormal distuv.Normal

	// prevMean seeds the next call's distribution with the previous
	// plan shifted by one step; nil after Reset
	prevMean *mat.Dense
}

// Diagnostics reports observability statistics from a single Plan
// call
type Diagnostics struct {
	// FeasiblePerRound counts the candidate sequences whose predicted
	// cost return was within the cost limit, for each CEM round
	FeasiblePerRound []int

	// Cost-return statistics across the final elite set
	EliteCostMin  float64
	EliteCostMean float64
	EliteCostMax  float64

	// Variance-penalty statistics across the final elite set
	VarPenaltyMin  float64
	VarPenaltyMean float64
	VarPenaltyMax  float64
}

// candidate is one sampled action sequence together with its
// evaluation, averaged over particles
type candidate struct {
	actions      *mat.Dense // Horizon x actionDim
	rewardReturn float64
	costReturn   float64
	varPenalty   float64
	feasible     bool
}

// score returns the penalized score of a candidate; higher is better
func (c candidate) score(multiplier, varPenaltyWeight float64) float64 {
	return c.rewardReturn - multiplier*c.costReturn -
		varPenaltyWeight*c.varPenalty
}

// New returns a new CAPPlanner planning through the argument ensemble,
// with the cost penalty read from the argument Lagrangian
func New(c Config, ensemble *dynamics.Ensemble,
	lagrangian lagrange.Lagrangian, seed uint64) (*CAPPlanner, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("new: %w", err)
	}
	if ensemble == nil {
		return nil, fmt.Errorf("new: no dynamics ensemble given")
	}
	if lagrangian == nil {
		return nil, fmt.Errorf("new: no lagrangian given")
	}
	if ensemble.ActionDim() <= 0 {
		return nil, fmt.Errorf("new: action dimension must be > 0")
	}

	return &CAPPlanner{
		cfg:        c,
		ensemble:   ensemble,
		lagrangian: lagrangian,
		actionDim:  ensemble.ActionDim(),
		stdNormal: distuv.Normal{
			Mu:    0,
			Sigma: 1,
			Src:   rand.NewSource(seed),
		},
	}, nil
}

// Reset discards the previous plan so that the next Plan call starts
// its search from scratch. Call at episode boundaries.
func (p *CAPPlanner) Reset() {
	p.prevMean = nil
}

// Plan runs the full cross-entropy search from the argument state and
// returns the first action of the refined plan. The Lagrange
// multiplier is read once at the start of the call and used as a
// snapshot throughout.
func (p *CAPPlanner) Plan(state mat.Vector) (*mat.VecDense, Diagnostics,
	error) {
	if state.Len() != p.ensemble.StateDim() {
		return nil, Diagnostics{}, fmt.Errorf("plan: state dimension %v "+
			"does not match ensemble state dimension %v", state.Len(),
			p.ensemble.StateDim())
	}

	H, A := p.cfg.Horizon, p.actionDim
	multiplier := p.lagrangian.Multiplier()

	mean := p.initMean()
	variance := mat.NewDense(H, A, nil)
	for t := 0; t < H; t++ {
		for j := 0; j < A; j++ {
			variance.Set(t, j, p.cfg.InitVar)
		}
	}

	diag := Diagnostics{FeasiblePerRound: make([]int, p.cfg.NumIterations)}
	var elites []candidate

	for iter := 0; iter < p.cfg.NumIterations; iter++ {
		candidates := make([]candidate, p.cfg.NumSamples)
		feasibleCount := 0

		for i := range candidates {
			actions := p.sample(mean, variance)
			cand, err := p.evaluate(state, actions)
			if err != nil {
				return nil, Diagnostics{}, fmt.Errorf("plan: %w", err)
			}
			candidates[i] = cand
			if cand.feasible {
				feasibleCount++
			}
		}
		diag.FeasiblePerRound[iter] = feasibleCount

		elites = selectElites(candidates, p.cfg.NumElites, multiplier,
			p.cfg.VarPenaltyWeight)
		p.refit(mean, variance, elites)
	}

	p.eliteStats(&diag, elites)

	action := mat.NewVecDense(A, nil)
	for j := 0; j < A; j++ {
		action.SetVec(j, floatutils.Clip(mean.At(0, j), p.cfg.ActionMin,
			p.cfg.ActionMax))
	}

	p.prevMean = mean
	return action, diag, nil
}

// initMean returns the initial distribution mean: the previous plan
// shifted left by one step and zero-padded, or all zeros on the first
// call of an episode
func (p *CAPPlanner) initMean() *mat.Dense {
	H, A := p.cfg.Horizon, p.actionDim
	mean := mat.NewDense(H, A, nil)

	if p.prevMean != nil {
		for t := 0; t+1 < H; t++ {
			for j := 0; j < A; j++ {
				mean.Set(t, j, p.prevMean.At(t+1, j))
			}
		}
	}
	return mean
}

// sample draws one action sequence from the truncated Gaussian
// N(mean, variance) clipped element-wise to the feasible action range
func (p *CAPPlanner) sample(mean, variance *mat.Dense) *mat.Dense {
	H, A := p.cfg.Horizon, p.actionDim
	actions := mat.NewDense(H, A, nil)

	for t := 0; t < H; t++ {
		for j := 0; j < A; j++ {
			a := mean.At(t, j) +
				math.Sqrt(variance.At(t, j))*p.stdNormal.Rand()
			actions.Set(t, j, floatutils.Clip(a, p.cfg.ActionMin,
				p.cfg.ActionMax))
		}
	}
	return actions
}

// evaluate unrolls NumParticles rollouts of an action sequence through
// the ensemble and returns the candidate with particle-averaged
// metrics. Particles are assigned to ensemble members round-robin.
func (p *CAPPlanner) evaluate(state mat.Vector,
	actions *mat.Dense) (candidate, error) {
	numMembers := p.ensemble.NumMembers()
	var rewardReturn, costReturn, varPenalty float64

	for particle := 0; particle < p.cfg.NumParticles; particle++ {
		member := particle % numMembers

		reward, cost, disagreement, err := p.rollout(state, actions, member)
		if err != nil {
			return candidate{}, err
		}
		rewardReturn += reward
		costReturn += cost
		varPenalty += disagreement
	}

	n := float64(p.cfg.NumParticles)
	cand := candidate{
		actions:      actions,
		rewardReturn: rewardReturn / n,
		costReturn:   costReturn / n,
		varPenalty:   varPenalty / n,
	}
	cand.feasible = cand.costReturn <= p.cfg.CostLimit
	return cand, nil
}

// rollout unrolls one particle through a single ensemble member,
// returning the discounted reward return, discounted cost return, and
// accumulated cross-member disagreement along the trajectory
func (p *CAPPlanner) rollout(state mat.Vector, actions *mat.Dense,
	member int) (reward, cost, disagreement float64, err error) {
	current := mat.VecDenseCopyOf(state)
	rewardDiscount, costDiscount := 1.0, 1.0

	for t := 0; t < p.cfg.Horizon; t++ {
		action := actions.RowView(t)

		preds, err := p.ensemble.PredictAll(current, action)
		if err != nil {
			return 0, 0, 0, fmt.Errorf("rollout: step %v: %w", t, err)
		}

		pred := preds[member]
		if math.IsNaN(pred.Reward) || math.IsNaN(pred.Cost) {
			return 0, 0, 0, fmt.Errorf("rollout: step %v: member %v "+
				"predicted NaN reward or cost", t, member)
		}

		reward += rewardDiscount * pred.Reward
		cost += costDiscount * pred.Cost
		disagreement += memberDisagreement(preds)

		if pred.Terminal {
			break
		}

		current = pred.NextState(current)
		rewardDiscount *= p.cfg.Gamma
		costDiscount *= p.cfg.CostGamma
	}
	return reward, cost, disagreement, nil
}

// memberDisagreement returns the mean across state dimensions of the
// variance across members' predicted deltas. With a single member the
// disagreement is always zero: no epistemic signal exists.
func memberDisagreement(preds []dynamics.Prediction) float64 {
	if len(preds) < 2 {
		return 0
	}

	dims := preds[0].Delta.Len()
	deltas := make([]float64, len(preds))
	var total float64

	for j := 0; j < dims; j++ {
		for i, pred := range preds {
			deltas[i] = pred.Delta.AtVec(j)
		}
		total += stat.Variance(deltas, nil)
	}
	return total / float64(dims)
}

// selectElites returns the elite candidates for one CEM round. When
// enough feasible candidates exist, the elites are the best-scoring
// feasible ones. When the round is globally infeasible, the elites are
// the candidates with the lowest cost returns regardless of reward, so
// that the distribution is pulled toward constraint satisfaction
// rather than starving the elite set.
func selectElites(candidates []candidate, numElites int,
	multiplier, varPenaltyWeight float64) []candidate {
	feasible := make([]candidate, 0, len(candidates))
	for _, c := range candidates {
		if c.feasible {
			feasible = append(feasible, c)
		}
	}

	if len(feasible) >= numElites {
		sort.SliceStable(feasible, func(i, j int) bool {
			return feasible[i].score(multiplier, varPenaltyWeight) >
				feasible[j].score(multiplier, varPenaltyWeight)
		})
		return feasible[:numElites]
	}

	byCost := make([]candidate, len(candidates))
	copy(byCost, candidates)
	sort.SliceStable(byCost, func(i, j int) bool {
		return byCost[i].costReturn < byCost[j].costReturn
	})
	return byCost[:numElites]
}

// refit updates the sampling distribution toward the elites with
// momentum, clamping the variance to [Epsilon*InitVar, InitVar] so the
// distribution neither collapses prematurely nor exceeds its initial
// spread
func (p *CAPPlanner) refit(mean, variance *mat.Dense, elites []candidate) {
	H, A := p.cfg.Horizon, p.actionDim
	m := p.cfg.Momentum
	n := float64(len(elites))
	varFloor := p.cfg.Epsilon * p.cfg.InitVar

	for t := 0; t < H; t++ {
		for j := 0; j < A; j++ {
			var eliteMean, eliteVar float64
			for _, e := range elites {
				eliteMean += e.actions.At(t, j)
			}
			eliteMean /= n
			for _, e := range elites {
				d := e.actions.At(t, j) - eliteMean
				eliteVar += d * d
			}
			eliteVar /= n

			mean.Set(t, j, m*mean.At(t, j)+(1-m)*eliteMean)

			v := m*variance.At(t, j) + (1-m)*eliteVar
			variance.Set(t, j, floatutils.Clip(v, varFloor, p.cfg.InitVar))
		}
	}
}

// eliteStats fills the Diagnostics' final-elite statistics
func (p *CAPPlanner) eliteStats(diag *Diagnostics, elites []candidate) {
	if len(elites) == 0 {
		return
	}

	diag.EliteCostMin = math.Inf(1)
	diag.EliteCostMax = math.Inf(-1)
	diag.VarPenaltyMin = math.Inf(1)
	diag.VarPenaltyMax = math.Inf(-1)

	for _, e := range elites {
		diag.EliteCostMin = math.Min(diag.EliteCostMin, e.costReturn)
		diag.EliteCostMax = math.Max(diag.EliteCostMax, e.costReturn)
		diag.EliteCostMean += e.costReturn
		diag.VarPenaltyMin = math.Min(diag.VarPenaltyMin, e.varPenalty)
		diag.VarPenaltyMax = math.Max(diag.VarPenaltyMax, e.varPenalty)
		diag.VarPenaltyMean += e.varPenalty
	}
	diag.EliteCostMean /= float64(len(elites))
	diag.VarPenaltyMean /= float64(len(elites))
}
