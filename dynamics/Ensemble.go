package dynamics

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/samuelfneumann/gosafe/timestep"
)

// Config describes an Ensemble. The flags select which prediction
// heads exist on the members: when UseCost is set, the per-state cost
// is either predicted by the members themselves (CostFunc == nil) or
// computed in closed form from the predicted next state (CostFunc !=
// nil), as with geometric hazard-proximity costs.
type Config struct {
	StateDim   int
	ActionDim  int
	NumMembers int

	// UseReward and UseCost declare that planners will consume
	// predicted rewards and costs. RewardHead and CostHead declare
	// that the members themselves learn those quantities; when a
	// needed quantity has no head, a closed-form function must be
	// supplied instead.
	UseReward  bool
	UseCost    bool
	RewardHead bool
	CostHead   bool

	// CostFunc, when non-nil, computes the cost of a state directly.
	// It takes precedence over a learned cost head.
	CostFunc func(obs mat.Vector) float64

	// UseTerminal declares that planners will consume predicted
	// episode termination. Members do not learn termination; a
	// closed-form TerminalFunc must be supplied.
	UseTerminal  bool
	TerminalFunc func(obs mat.Vector) bool

	// Ridge regularization and seed for the default linear-Gaussian
	// members
	Ridge float64
	Seed  uint64
}

// Validate returns an error describing why the Config is invalid, or
// nil if it is valid
func (c Config) Validate() error {
	if c.ActionDim <= 0 {
		return fmt.Errorf("validate: action dimension must be > 0")
	}
	if c.StateDim <= 0 {
		return fmt.Errorf("validate: state dimension must be > 0")
	}
	if c.NumMembers < 1 {
		return fmt.Errorf("validate: ensemble needs at least one member")
	}
	if c.UseCost && !c.CostHead && c.CostFunc == nil {
		return fmt.Errorf("validate: cost requested but members have no " +
			"cost head and no cost function was supplied")
	}
	if c.UseReward && !c.RewardHead {
		return fmt.Errorf("validate: reward requested but members have no " +
			"reward head")
	}
	if c.UseTerminal && c.TerminalFunc == nil {
		return fmt.Errorf("validate: terminal prediction requested but no " +
			"terminal function was supplied")
	}
	if c.Ridge < 0 {
		return fmt.Errorf("validate: ridge must be >= 0")
	}
	return nil
}

// Ensemble owns a fixed set of independently trained Members sharing
// identical state and action shape contracts. The Ensemble produces
// per-member predictions only; aggregating them (mean and variance
// across members) is the caller's job.
type Ensemble struct {
	members   []Member
	stateDim  int
	actionDim int

	useReward    bool
	useCost      bool
	costFunc     func(obs mat.Vector) float64
	terminalFunc func(obs mat.Vector) bool
}

// New creates an Ensemble of linear-Gaussian members according to the
// Config. Each member is seeded differently so that bootstrap
// resampling during training decorrelates the members.
func New(c Config) (*Ensemble, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("new: %w", err)
	}

	members := make([]Member, c.NumMembers)
	for i := range members {
		members[i] = newLinearGaussian(c.StateDim, c.ActionDim, c.RewardHead,
			c.CostHead, c.Ridge, c.Seed+uint64(i))
	}

	return newEnsemble(c, members), nil
}

// NewFromMembers creates an Ensemble from pre-constructed members, for
// callers that supply their own model class. All members must share
// the Config's shape contract.
func NewFromMembers(c Config, members []Member) (*Ensemble, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("newFromMembers: %w", err)
	}
	if len(members) != c.NumMembers {
		return nil, fmt.Errorf("newFromMembers: expected %v members, got %v",
			c.NumMembers, len(members))
	}

	return newEnsemble(c, members), nil
}

func newEnsemble(c Config, members []Member) *Ensemble {
	var terminalFunc func(obs mat.Vector) bool
	if c.UseTerminal {
		terminalFunc = c.TerminalFunc
	}
	return &Ensemble{
		members:      members,
		stateDim:     c.StateDim,
		actionDim:    c.ActionDim,
		useReward:    c.UseReward,
		useCost:      c.UseCost,
		costFunc:     c.CostFunc,
		terminalFunc: terminalFunc,
	}
}

// NumMembers returns the number of members in the ensemble
func (e *Ensemble) NumMembers() int {
	return len(e.members)
}

// StateDim returns the dimensionality of states the ensemble predicts
func (e *Ensemble) StateDim() int {
	return e.stateDim
}

// ActionDim returns the dimensionality of actions the ensemble accepts
func (e *Ensemble) ActionDim() int {
	return e.actionDim
}

// PredictsCost returns whether predictions carry a meaningful cost,
// either from a learned head or a closed-form cost function
func (e *Ensemble) PredictsCost() bool {
	return e.useCost
}

// Predict returns member i's forward prediction for a state-action
// pair. When the ensemble carries a closed-form cost function, the
// prediction's Cost is computed from the predicted next state.
func (e *Ensemble) Predict(i int, state, action mat.Vector) (Prediction,
	error) {
	if i < 0 || i >= len(e.members) {
		return Prediction{}, fmt.Errorf("predict: no member %v in ensemble "+
			"of %v", i, len(e.members))
	}
	if state.Len() != e.stateDim {
		return Prediction{}, fmt.Errorf("predict: state dimension %v does "+
			"not match ensemble state dimension %v", state.Len(), e.stateDim)
	}
	if action.Len() != e.actionDim {
		return Prediction{}, fmt.Errorf("predict: action dimension %v does "+
			"not match ensemble action dimension %v", action.Len(), e.actionDim)
	}

	pred, err := e.members[i].Predict(state, action)
	if err != nil {
		return Prediction{}, fmt.Errorf("predict: member %v: %w", i, err)
	}

	if (e.useCost && e.costFunc != nil) || e.terminalFunc != nil {
		next := pred.NextState(state)
		if e.useCost && e.costFunc != nil {
			pred.Cost = e.costFunc(next)
		}
		if e.terminalFunc != nil {
			pred.Terminal = e.terminalFunc(next)
		}
	}
	return pred, nil
}

// PredictAll returns every member's forward prediction for a
// state-action pair, in member order
func (e *Ensemble) PredictAll(state, action mat.Vector) ([]Prediction,
	error) {
	preds := make([]Prediction, len(e.members))
	for i := range e.members {
		pred, err := e.Predict(i, state, action)
		if err != nil {
			return nil, fmt.Errorf("predictAll: %w", err)
		}
		preds[i] = pred
	}
	return preds, nil
}

// Train fits every member on the batch. Members bootstrap-resample
// the batch internally, so handing each member the same batch still
// produces decorrelated models. Train must never overlap a planning
// call.
func (e *Ensemble) Train(batch []timestep.Transition) error {
	if len(batch) == 0 {
		return fmt.Errorf("train: empty batch")
	}
	for i, m := range e.members {
		if err := m.Train(batch); err != nil {
			return fmt.Errorf("train: member %v: %w", i, err)
		}
	}
	return nil
}
