package lagrange

import (
	"math"
	"testing"
)

func validPIDConfig() PIDConfig {
	return PIDConfig{
		CostLimit:      1.0,
		InitMultiplier: 0.0,
		MultiplierMax:  100.0,
		Kp:             1.0,
		Ki:             0.1,
		Kd:             0.0,
		WarmupCycles:   0,
	}
}

func TestPIDGrowsUnderSustainedViolation(t *testing.T) {
	p, err := NewPID(validPIDConfig())
	if err != nil {
		t.Fatal(err)
	}

	// A constant violation of 1 above the limit integrates up: with
	// Kp = 1 and Ki = 0.1 the multiplier reads 1.1, 1.2, 1.3, ...
	prev := p.Multiplier()
	for i := 1; i <= 5; i++ {
		if err := p.Update(2.0); err != nil {
			t.Fatal(err)
		}
		expected := 1.0 + 0.1*float64(i)
		if math.Abs(p.Multiplier()-expected) > tolerance {
			t.Errorf("update %v: expected multiplier %v, got %v", i,
				expected, p.Multiplier())
		}
		if p.Multiplier() <= prev {
			t.Errorf("update %v: multiplier did not grow under sustained "+
				"violation: %v -> %v", i, prev, p.Multiplier())
		}
		prev = p.Multiplier()
	}
}

func TestPIDPositionFormTracksEasingViolation(t *testing.T) {
	p, err := NewPID(validPIDConfig())
	if err != nil {
		t.Fatal(err)
	}

	// The position-form law recomputes the multiplier from the current
	// error each cycle, so an easing violation lowers the multiplier
	// even while the constraint is still violated: the costs 2, 2, 1.5
	// give multipliers 1.1, 1.2, 0.75
	costs := []float64{2.0, 2.0, 1.5}
	expected := []float64{1.1, 1.2, 0.75}
	for i, cost := range costs {
		if err := p.Update(cost); err != nil {
			t.Fatal(err)
		}
		if math.Abs(p.Multiplier()-expected[i]) > tolerance {
			t.Errorf("update %v: expected multiplier %v, got %v", i,
				expected[i], p.Multiplier())
		}
	}

	// Sustained feasibility then drives the multiplier to zero, never
	// below
	for i := 0; i < 2; i++ {
		if err := p.Update(0.0); err != nil {
			t.Fatal(err)
		}
		if p.Multiplier() != 0 {
			t.Errorf("expected multiplier clipped at 0, got %v",
				p.Multiplier())
		}
	}
}

func TestPIDRelaxesWhenFeasible(t *testing.T) {
	p, err := NewPID(validPIDConfig())
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 5; i++ {
		if err := p.Update(2.0); err != nil {
			t.Fatal(err)
		}
	}
	high := p.Multiplier()

	for i := 0; i < 20; i++ {
		if err := p.Update(0.5); err != nil {
			t.Fatal(err)
		}
		if p.Multiplier() < 0 {
			t.Fatalf("multiplier went negative: %v", p.Multiplier())
		}
	}
	if p.Multiplier() >= high {
		t.Errorf("multiplier did not relax after sustained feasibility: "+
			"%v -> %v", high, p.Multiplier())
	}
}

func TestPIDIntegralClampedAtZero(t *testing.T) {
	p, err := NewPID(validPIDConfig())
	if err != nil {
		t.Fatal(err)
	}

	// Long feasible stretch must not bank negative integral that could
	// mask a later violation
	for i := 0; i < 100; i++ {
		if err := p.Update(0.0); err != nil {
			t.Fatal(err)
		}
	}

	if err := p.Update(2.0); err != nil {
		t.Fatal(err)
	}
	// err = 1, integral = 1: kp*1 + ki*1 = 1.1 (+ kd*derivative = 0)
	if p.Multiplier() < 1.0 {
		t.Errorf("feasible stretch masked a violation: multiplier %v",
			p.Multiplier())
	}
}

func TestPIDWarmupHoldsMultiplier(t *testing.T) {
	c := validPIDConfig()
	c.InitMultiplier = 0.5
	c.WarmupCycles = 3
	p, err := NewPID(c)
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 3; i++ {
		if p.Active() {
			t.Errorf("cycle %v: controller active during warm-up", i)
		}
		if err := p.Update(10.0); err != nil {
			t.Fatal(err)
		}
		if p.Multiplier() != 0.5 {
			t.Errorf("cycle %v: multiplier moved during warm-up: %v", i,
				p.Multiplier())
		}
	}

	if err := p.Update(10.0); err != nil {
		t.Fatal(err)
	}
	if !p.Active() {
		t.Error("controller inactive after warm-up")
	}
	if p.Multiplier() == 0.5 {
		t.Error("multiplier did not react after warm-up")
	}
}

func TestPIDClipsAtMax(t *testing.T) {
	c := validPIDConfig()
	c.MultiplierMax = 2.0
	p, err := NewPID(c)
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 50; i++ {
		if err := p.Update(100.0); err != nil {
			t.Fatal(err)
		}
		if p.Multiplier() > 2.0 {
			t.Fatalf("multiplier exceeded max: %v", p.Multiplier())
		}
	}
	if p.Multiplier() != 2.0 {
		t.Errorf("expected multiplier clipped to 2, got %v", p.Multiplier())
	}
}

func TestPIDDerivativeDampsRisingCost(t *testing.T) {
	c := validPIDConfig()
	c.Kp = 1.0
	c.Ki = 0.0
	c.Kd = 1.0
	p, err := NewPID(c)
	if err != nil {
		t.Fatal(err)
	}

	// First update: err = 1, derivative = 1 - 0 = 1
	if err := p.Update(2.0); err != nil {
		t.Fatal(err)
	}
	if math.Abs(p.Multiplier()-2.0) > tolerance {
		t.Errorf("expected multiplier 2 with rising error, got %v",
			p.Multiplier())
	}

	// Same cost again: derivative = 0, only the proportional term stays
	if err := p.Update(2.0); err != nil {
		t.Fatal(err)
	}
	if math.Abs(p.Multiplier()-1.0) > tolerance {
		t.Errorf("expected multiplier 1 with flat error, got %v",
			p.Multiplier())
	}
}

func TestPIDConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*PIDConfig)
	}{
		{"negative gain", func(c *PIDConfig) { c.Kp = -1 }},
		{"all gains zero", func(c *PIDConfig) {
			c.Kp, c.Ki, c.Kd = 0, 0, 0
		}},
		{"negative init", func(c *PIDConfig) { c.InitMultiplier = -1 }},
		{"zero max", func(c *PIDConfig) { c.MultiplierMax = 0 }},
		{"init above max", func(c *PIDConfig) {
			c.InitMultiplier = 200
		}},
		{"negative warmup", func(c *PIDConfig) { c.WarmupCycles = -1 }},
		{"infinite cost limit", func(c *PIDConfig) {
			c.CostLimit = math.Inf(1)
		}},
	}

	for _, test := range tests {
		c := validPIDConfig()
		test.modify(&c)
		if err := c.Validate(); err == nil {
			t.Errorf("%v: expected validation error", test.name)
		}
	}

	if err := validPIDConfig().Validate(); err != nil {
		t.Errorf("valid config rejected: %v", err)
	}
}
