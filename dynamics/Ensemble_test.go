package dynamics

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/samuelfneumann/gosafe/timestep"
)

func validEnsembleConfig() Config {
	return Config{
		StateDim:   1,
		ActionDim:  1,
		NumMembers: 3,
		UseReward:  true,
		UseCost:    true,
		RewardHead: true,
		CostHead:   true,
		Ridge:      0.0,
		Seed:       14,
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"zero state dim", func(c *Config) { c.StateDim = 0 }},
		{"zero action dim", func(c *Config) { c.ActionDim = 0 }},
		{"no members", func(c *Config) { c.NumMembers = 0 }},
		{"cost without head or function", func(c *Config) {
			c.CostHead = false
			c.CostFunc = nil
		}},
		{"reward without head", func(c *Config) { c.RewardHead = false }},
		{"terminal without function", func(c *Config) { c.UseTerminal = true }},
		{"negative ridge", func(c *Config) { c.Ridge = -1 }},
	}

	for _, test := range tests {
		c := validEnsembleConfig()
		test.modify(&c)
		if err := c.Validate(); err == nil {
			t.Errorf("%v: expected validation error", test.name)
		}
	}

	if err := validEnsembleConfig().Validate(); err != nil {
		t.Errorf("valid config rejected: %v", err)
	}
}

func TestUntrainedMemberPredictsNoMotion(t *testing.T) {
	e, err := New(validEnsembleConfig())
	if err != nil {
		t.Fatal(err)
	}

	state := mat.NewVecDense(1, []float64{0.7})
	action := mat.NewVecDense(1, []float64{-0.3})

	pred, err := e.Predict(0, state, action)
	if err != nil {
		t.Fatal(err)
	}
	if pred.Delta.AtVec(0) != 0 {
		t.Errorf("untrained member predicted motion: %v", pred.Delta.AtVec(0))
	}
	if pred.Var.AtVec(0) != 1 {
		t.Errorf("untrained member should report unit variance, got %v",
			pred.Var.AtVec(0))
	}
	if next := pred.NextState(state).AtVec(0); next != 0.7 {
		t.Errorf("expected next state 0.7, got %v", next)
	}
}

func TestPredictShapeErrors(t *testing.T) {
	e, err := New(validEnsembleConfig())
	if err != nil {
		t.Fatal(err)
	}

	good := mat.NewVecDense(1, []float64{0})
	bad := mat.NewVecDense(2, []float64{0, 0})

	if _, err := e.Predict(0, bad, good); err == nil {
		t.Error("expected error for wrong state dimension")
	}
	if _, err := e.Predict(0, good, bad); err == nil {
		t.Error("expected error for wrong action dimension")
	}
	if _, err := e.Predict(5, good, good); err == nil {
		t.Error("expected error for out-of-range member index")
	}
	if _, err := e.Predict(-1, good, good); err == nil {
		t.Error("expected error for negative member index")
	}
}

func TestPredictAllReturnsEveryMember(t *testing.T) {
	e, err := New(validEnsembleConfig())
	if err != nil {
		t.Fatal(err)
	}

	state := mat.NewVecDense(1, []float64{0})
	action := mat.NewVecDense(1, []float64{0})

	preds, err := e.PredictAll(state, action)
	if err != nil {
		t.Fatal(err)
	}
	if len(preds) != e.NumMembers() {
		t.Errorf("expected %v predictions, got %v", e.NumMembers(),
			len(preds))
	}
}

// linearBatch builds transitions from the deterministic system
// s' = s + 0.5a with reward 2a and cost 1 when a > 0
func linearBatch() []timestep.Transition {
	var batch []timestep.Transition
	for _, s := range []float64{-1, -0.5, 0, 0.5, 1} {
		for _, a := range []float64{-1, -0.5, 0, 0.5, 1} {
			next := s + 0.5*a
			cost := 0.0
			if a > 0 {
				cost = 1.0
			}
			batch = append(batch, timestep.Transition{
				State:     mat.NewVecDense(1, []float64{s}),
				Action:    mat.NewVecDense(1, []float64{a}),
				Reward:    2 * a,
				Cost:      cost,
				Discount:  0.99,
				NextState: mat.NewVecDense(1, []float64{next}),
			})
		}
	}
	return batch
}

func TestTrainRecoversLinearDynamics(t *testing.T) {
	c := validEnsembleConfig()
	c.NumMembers = 1
	e, err := New(c)
	if err != nil {
		t.Fatal(err)
	}

	if err := e.Train(linearBatch()); err != nil {
		t.Fatal(err)
	}

	state := mat.NewVecDense(1, []float64{0.25})
	action := mat.NewVecDense(1, []float64{0.8})

	pred, err := e.Predict(0, state, action)
	if err != nil {
		t.Fatal(err)
	}

	// The delta and reward are exactly linear in the features, so the
	// fit recovers them from any bootstrap resample
	if math.Abs(pred.Delta.AtVec(0)-0.4) > 1e-6 {
		t.Errorf("expected delta 0.4, got %v", pred.Delta.AtVec(0))
	}
	if math.Abs(pred.Reward-1.6) > 1e-6 {
		t.Errorf("expected reward 1.6, got %v", pred.Reward)
	}
	if pred.Var.AtVec(0) > 1e-6 {
		t.Errorf("expected near-zero residual variance, got %v",
			pred.Var.AtVec(0))
	}
}

func TestCostFuncOverridesCostHead(t *testing.T) {
	c := validEnsembleConfig()
	c.NumMembers = 1
	c.CostHead = false
	c.CostFunc = func(obs mat.Vector) float64 {
		if obs.AtVec(0) > 0.5 {
			return 1.0
		}
		return 0.0
	}

	e, err := New(c)
	if err != nil {
		t.Fatal(err)
	}

	action := mat.NewVecDense(1, []float64{0})

	// Untrained members predict zero deltas, so the closed-form cost is
	// evaluated at the current state
	pred, err := e.Predict(0, mat.NewVecDense(1, []float64{0.7}), action)
	if err != nil {
		t.Fatal(err)
	}
	if pred.Cost != 1.0 {
		t.Errorf("expected closed-form cost 1, got %v", pred.Cost)
	}

	pred, err = e.Predict(0, mat.NewVecDense(1, []float64{0.2}), action)
	if err != nil {
		t.Fatal(err)
	}
	if pred.Cost != 0.0 {
		t.Errorf("expected closed-form cost 0, got %v", pred.Cost)
	}
}

func TestTerminalFuncFlagsPredictedNextState(t *testing.T) {
	c := validEnsembleConfig()
	c.NumMembers = 1
	c.UseTerminal = true
	c.TerminalFunc = func(obs mat.Vector) bool {
		return obs.AtVec(0) > 0.5
	}

	e, err := New(c)
	if err != nil {
		t.Fatal(err)
	}

	action := mat.NewVecDense(1, []float64{0})

	// Untrained members predict zero deltas, so termination is evaluated
	// at the current state
	pred, err := e.Predict(0, mat.NewVecDense(1, []float64{0.7}), action)
	if err != nil {
		t.Fatal(err)
	}
	if !pred.Terminal {
		t.Error("expected terminal prediction for state past the threshold")
	}

	pred, err = e.Predict(0, mat.NewVecDense(1, []float64{0.2}), action)
	if err != nil {
		t.Fatal(err)
	}
	if pred.Terminal {
		t.Error("expected non-terminal prediction for state below the " +
			"threshold")
	}
}

func TestTrainRejectsEmptyBatch(t *testing.T) {
	e, err := New(validEnsembleConfig())
	if err != nil {
		t.Fatal(err)
	}
	if err := e.Train(nil); err == nil {
		t.Error("expected error for empty batch")
	}
}

func TestNewFromMembersChecksCount(t *testing.T) {
	c := validEnsembleConfig()
	members := []Member{
		newLinearGaussian(1, 1, true, true, 0, 1),
	}
	if _, err := NewFromMembers(c, members); err == nil {
		t.Error("expected error for member count mismatch")
	}
}
