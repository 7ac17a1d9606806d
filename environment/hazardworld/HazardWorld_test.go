package hazardworld

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r1"

	"github.com/samuelfneumann/gosafe/environment"
)

// pointStarter always starts the robot at the same position
func pointStarter(x, y float64, seed uint64) environment.UniformStarter {
	return environment.NewUniformStarter([]r1.Interval{
		{Min: x, Max: x},
		{Min: y, Max: y},
	}, seed)
}

func TestObservationLayout(t *testing.T) {
	goal := Position{X: 1.0, Y: 1.0}
	hazards := []Position{{X: -1.0, Y: 0.5}}

	h, first, err := New(goal, hazards, pointStarter(0.5, -0.5, 1), 100, 0.99)
	if err != nil {
		t.Fatal(err)
	}

	obs := first.Observation
	if obs.Len() != ObsDim(1) {
		t.Fatalf("expected observation of length %v, got %v", ObsDim(1),
			obs.Len())
	}

	// Starting velocity is zero; goal and hazard offsets are egocentric
	expected := []float64{0, 0, 0.5, 1.5, -1.5, 1.0}
	for i, e := range expected {
		if math.Abs(obs.AtVec(i)-e) > 1e-12 {
			t.Errorf("obs[%v]: expected %v, got %v", i, e, obs.AtVec(i))
		}
	}

	if got := h.ObservationSpec().Shape.Len(); got != ObsDim(1) {
		t.Errorf("observation spec length %v does not match obs dim %v",
			got, ObsDim(1))
	}
	if got := h.ActionSpec().Shape.Len(); got != ActionDims {
		t.Errorf("expected action spec length %v, got %v", ActionDims, got)
	}
}

func TestStepInsideHazardIncursCost(t *testing.T) {
	goal := Position{X: 2.0, Y: 2.0}
	hazards := []Position{{X: 0.0, Y: 0.0}}

	// Start inside the hazard; a zero action keeps the robot there
	h, first, err := New(goal, hazards, pointStarter(0.05, 0.0, 1), 100, 0.99)
	if err != nil {
		t.Fatal(err)
	}

	action := mat.NewVecDense(2, nil)
	step, done := h.Step(action)
	if step.Cost != 1.0 {
		t.Errorf("expected unit cost inside hazard, got %v", step.Cost)
	}
	if done {
		t.Error("episode ended inside hazard")
	}

	// The closed-form cost function must agree with the environment
	costFunc := h.CostFunc()
	if costFunc(first.Observation) != 1.0 {
		t.Error("cost function disagrees with environment inside hazard")
	}
	if costFunc(step.Observation) != step.Cost {
		t.Error("cost function disagrees with environment cost")
	}
}

func TestStepOutsideHazardIsFree(t *testing.T) {
	goal := Position{X: 2.0, Y: 2.0}
	hazards := []Position{{X: -1.5, Y: -1.5}}

	h, _, err := New(goal, hazards, pointStarter(0.0, 0.0, 1), 100, 0.99)
	if err != nil {
		t.Fatal(err)
	}

	step, _ := h.Step(mat.NewVecDense(2, []float64{0.5, 0}))
	if step.Cost != 0.0 {
		t.Errorf("expected no cost away from hazards, got %v", step.Cost)
	}
}

func TestReachingGoalEndsEpisodeWithBonus(t *testing.T) {
	goal := Position{X: 0.1, Y: 0.0}
	hazards := []Position{{X: -1.5, Y: -1.5}}

	// Start just outside the goal radius moving toward it
	h, _, err := New(goal, hazards, pointStarter(-0.25, 0.0, 1), 100, 0.99)
	if err != nil {
		t.Fatal(err)
	}

	var done bool
	var step = h.Reset()
	action := mat.NewVecDense(2, []float64{1.0, 0.0})
	for i := 0; i < 100 && !done; i++ {
		step, done = h.Step(action)
	}

	if !done {
		t.Fatal("episode never reached the goal")
	}
	if !step.Last() {
		t.Error("final timestep not marked Last")
	}
	if !h.AtGoal(step.Observation) {
		t.Error("episode ended before reaching the goal")
	}
	// The final transition banks the goal bonus on top of progress
	if step.Reward < GoalBonus {
		t.Errorf("expected reward of at least the goal bonus, got %v",
			step.Reward)
	}
}

func TestProgressRewardSign(t *testing.T) {
	goal := Position{X: 1.0, Y: 0.0}
	hazards := []Position{{X: -1.5, Y: -1.5}}

	h, _, err := New(goal, hazards, pointStarter(0.0, 0.0, 1), 100, 0.99)
	if err != nil {
		t.Fatal(err)
	}

	toward, _ := h.Step(mat.NewVecDense(2, []float64{1.0, 0.0}))
	if toward.Reward <= 0 {
		t.Errorf("moving toward the goal earned reward %v", toward.Reward)
	}

	h.Reset()
	away, _ := h.Step(mat.NewVecDense(2, []float64{-1.0, 0.0}))
	if away.Reward >= 0 {
		t.Errorf("moving away from the goal earned reward %v", away.Reward)
	}
}

func TestEpisodeCutoff(t *testing.T) {
	goal := Position{X: 2.0, Y: 2.0}
	hazards := []Position{{X: -1.5, Y: -1.5}}

	cutoff := 3
	h, _, err := New(goal, hazards, pointStarter(-2.0, 0.0, 1), cutoff, 0.99)
	if err != nil {
		t.Fatal(err)
	}

	action := mat.NewVecDense(2, nil)
	var done bool
	var step = h.Reset()
	steps := 0
	for !done {
		step, done = h.Step(action)
		steps++
		if steps > cutoff {
			t.Fatal("episode ran past its cutoff")
		}
	}
	if steps != cutoff {
		t.Errorf("expected episode of %v steps, got %v", cutoff, steps)
	}
	if !step.Last() {
		t.Error("cutoff timestep not marked Last")
	}
}

func TestActionsAndVelocitiesAreClipped(t *testing.T) {
	goal := Position{X: 2.0, Y: 2.0}
	hazards := []Position{{X: -1.5, Y: -1.5}}

	h, _, err := New(goal, hazards, pointStarter(0.0, 0.0, 1), 1000, 0.99)
	if err != nil {
		t.Fatal(err)
	}

	// Wildly out-of-range actions must not produce runaway velocities
	action := mat.NewVecDense(2, []float64{1e6, -1e6})
	for i := 0; i < 200; i++ {
		step, done := h.Step(action)
		vx, vy := step.Observation.AtVec(0), step.Observation.AtVec(1)
		if math.Abs(vx) > SpeedBound || math.Abs(vy) > SpeedBound {
			t.Fatalf("velocity (%v, %v) outside speed bound", vx, vy)
		}
		if done {
			break
		}
	}
}

func TestNewRejectsBadArguments(t *testing.T) {
	goal := Position{X: 1.0, Y: 1.0}

	if _, _, err := New(goal, nil, pointStarter(0, 0, 1), 100,
		0.99); err == nil {
		t.Error("expected error for no hazards")
	}
	if _, _, err := New(goal, []Position{{X: 0, Y: 0}}, pointStarter(0, 0, 1),
		0, 0.99); err == nil {
		t.Error("expected error for non-positive cutoff")
	}
}
