// Package lagrangianac implements a Lagrangian linear-Gaussian
// actor-critic for constrained environments.
//
// The agent learns linear reward and cost critics and a Gaussian
// policy with linear mean and log-standard-deviation. The policy
// gradient follows the cost-penalized advantage
//
//	(A_reward - λ*A_cost) / (1 + λ)
//
// where λ is a dual-ascent Lagrange multiplier updated once per
// episode cycle from the mean episodic cost. The agent is the
// non-planning sibling of CAP-PETS: it shares the same multiplier
// invariant (non-negative, growing under constraint violation) but
// trains a critic-guided policy instead of planning explicitly.
package lagrangianac

import (
	"fmt"
	"math"

	"golang.org/x/exp/rand"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/samuelfneumann/gosafe/agent"
	"github.com/samuelfneumann/gosafe/environment"
	"github.com/samuelfneumann/gosafe/lagrange"
	ts "github.com/samuelfneumann/gosafe/timestep"
)

func init() {
	agent.Register("LagrangianAC", func(env environment.Environment,
		seed uint64) (agent.Agent, error) {
		return New(env, DefaultConfig(), seed)
	})
}

// LagrangianAC is a constrained linear-Gaussian actor-critic agent
type LagrangianAC struct {
	cfg        Config
	lagrangian *lagrange.Lagrange

	features   int
	actionDims int

	// Linear function approximation weights
	meanWeights       *mat.Dense // actionDims x features
	logStdWeights     *mat.Dense // actionDims x features
	criticWeights     *mat.VecDense
	costCriticWeights *mat.VecDense

	stdNormal distuv.Normal

	step     ts.TimeStep
	action   *mat.VecDense
	nextStep ts.TimeStep

	eval bool

	episodeCost float64
	cycleCosts  []float64
}

// New creates a LagrangianAC agent on the argument environment
func New(env environment.Environment, c Config,
	seed uint64) (*LagrangianAC, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("new: %w", err)
	}

	actionSpec := env.ActionSpec()
	if actionSpec.Cardinality != environment.Continuous {
		return nil, fmt.Errorf("new: LagrangianAC requires continuous " +
			"actions")
	}

	features := env.ObservationSpec().Shape.Len()
	actionDims := actionSpec.Shape.Len()

	lagrangian, err := lagrange.New(c.Lagrange)
	if err != nil {
		return nil, fmt.Errorf("new: %w", err)
	}

	return &LagrangianAC{
		cfg:               c,
		lagrangian:        lagrangian,
		features:          features,
		actionDims:        actionDims,
		meanWeights:       mat.NewDense(actionDims, features, nil),
		logStdWeights:     mat.NewDense(actionDims, features, nil),
		criticWeights:     mat.NewVecDense(features, nil),
		costCriticWeights: mat.NewVecDense(features, nil),
		stdNormal: distuv.Normal{
			Mu:    0,
			Sigma: 1,
			Src:   rand.NewSource(seed),
		},
	}, nil
}

// policy computes the Gaussian policy's mean and standard deviation
// in the argument state
func (l *LagrangianAC) policy(obs mat.Vector) (mean, std *mat.VecDense) {
	mean = mat.NewVecDense(l.actionDims, nil)
	mean.MulVec(l.meanWeights, obs)

	logStd := mat.NewVecDense(l.actionDims, nil)
	logStd.MulVec(l.logStdWeights, obs)

	std = mat.NewVecDense(l.actionDims, nil)
	for i := 0; i < l.actionDims; i++ {
		std.SetVec(i, math.Exp(logStd.AtVec(i)))
	}
	return mean, std
}

// SelectAction samples an action from the Gaussian policy; in
// evaluation mode the mean action is returned instead
func (l *LagrangianAC) SelectAction(t ts.TimeStep) (*mat.VecDense, error) {
	mean, std := l.policy(t.Observation)
	if l.eval {
		return mean, nil
	}

	action := mat.NewVecDense(l.actionDims, nil)
	for i := 0; i < l.actionDims; i++ {
		action.SetVec(i, mean.AtVec(i)+std.AtVec(i)*l.stdNormal.Rand())
	}
	return action, nil
}

// ObserveFirst records the first timestep in an episode
func (l *LagrangianAC) ObserveFirst(t ts.TimeStep) error {
	if !t.First() {
		return fmt.Errorf("observeFirst: timestep %v is not the first of "+
			"an episode", t.Number)
	}
	l.step = t
	l.nextStep = t
	l.episodeCost = 0
	return nil
}

// Observe records that an action lead to some timestep
func (l *LagrangianAC) Observe(action mat.Vector,
	nextStep ts.TimeStep) error {
	a, ok := action.(*mat.VecDense)
	if !ok {
		a = mat.VecDenseCopyOf(action)
	}

	l.step = l.nextStep
	l.action = a
	l.nextStep = nextStep
	l.episodeCost += nextStep.Cost
	return nil
}

// Step performs one actor-critic update on the last transition using
// the cost-penalized advantage
func (l *LagrangianAC) Step() error {
	if l.eval || l.action == nil {
		return nil
	}

	obs := l.step.Observation
	nextObs := l.nextStep.Observation
	gamma := l.cfg.Gamma
	if l.nextStep.Last() {
		gamma = 0
	}

	// TD errors of the reward and cost critics
	v := mat.Dot(l.criticWeights, obs)
	vNext := mat.Dot(l.criticWeights, nextObs)
	tdReward := l.nextStep.Reward + gamma*vNext - v

	vc := mat.Dot(l.costCriticWeights, obs)
	vcNext := mat.Dot(l.costCriticWeights, nextObs)
	tdCost := l.nextStep.Cost + gamma*vcNext - vc

	if math.IsNaN(tdReward) || math.IsNaN(tdCost) {
		return fmt.Errorf("step: NaN TD error")
	}

	// Critic updates
	for i := 0; i < l.features; i++ {
		l.criticWeights.SetVec(i, l.criticWeights.AtVec(i)+
			l.cfg.CriticLR*tdReward*obs.AtVec(i))
		l.costCriticWeights.SetVec(i, l.costCriticWeights.AtVec(i)+
			l.cfg.CriticLR*tdCost*obs.AtVec(i))
	}

	// Penalized advantage
	multiplier := l.lagrangian.Multiplier()
	advantage := (tdReward - multiplier*tdCost) / (1 + multiplier)

	// Actor update along the Gaussian score function
	mean, std := l.policy(obs)
	for i := 0; i < l.actionDims; i++ {
		diff := l.action.AtVec(i) - mean.AtVec(i)
		sigma2 := std.AtVec(i) * std.AtVec(i)

		meanScore := diff / sigma2
		logStdScore := diff*diff/sigma2 - 1

		for j := 0; j < l.features; j++ {
			l.meanWeights.Set(i, j, l.meanWeights.At(i, j)+
				l.cfg.ActorLR*advantage*meanScore*obs.AtVec(j))
			l.logStdWeights.Set(i, j, l.logStdWeights.At(i, j)+
				l.cfg.ActorLR*advantage*logStdScore*obs.AtVec(j))
		}
	}
	return nil
}

// EndEpisode updates the Lagrange multiplier from the mean episodic
// cost once per episode cycle
func (l *LagrangianAC) EndEpisode() error {
	l.cycleCosts = append(l.cycleCosts, l.episodeCost)
	l.episodeCost = 0
	l.action = nil

	if l.eval || len(l.cycleCosts) < l.cfg.UpdateMultiplierEvery {
		return nil
	}

	meanEpCost := stat.Mean(l.cycleCosts, nil)
	l.cycleCosts = l.cycleCosts[:0]

	if err := l.lagrangian.Update(meanEpCost); err != nil {
		return fmt.Errorf("endEpisode: %w", err)
	}
	return nil
}

// Eval sets the policy to evaluation mode
func (l *LagrangianAC) Eval() { l.eval = true }

// Train sets the policy to training mode
func (l *LagrangianAC) Train() { l.eval = false }

// IsEval indicates if the policy is in evaluation mode
func (l *LagrangianAC) IsEval() bool { return l.eval }

// Multiplier returns the current cost penalty, implementing
// agent.Constrained
func (l *LagrangianAC) Multiplier() float64 {
	return l.lagrangian.Multiplier()
}
