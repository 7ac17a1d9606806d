package lagrange

import (
	"fmt"
	"math"
)

// PIDConfig describes a PIDLagrangian controller
type PIDConfig struct {
	CostLimit      float64 `yaml:"cost_limit"`
	InitMultiplier float64 `yaml:"init_multiplier"`
	MultiplierMax  float64 `yaml:"multiplier_max"`

	Kp float64 `yaml:"kp"`
	Ki float64 `yaml:"ki"`
	Kd float64 `yaml:"kd"`

	// WarmupCycles is the number of update cycles to hold the
	// multiplier at its initial value before reacting to cost
	// feedback. Early-training cost statistics are unreliable, so the
	// controller ignores them.
	WarmupCycles int `yaml:"warmup_cycles"`
}

// Validate returns an error describing why the PIDConfig is invalid,
// or nil if it is valid
func (c PIDConfig) Validate() error {
	if c.Kp < 0 || c.Ki < 0 || c.Kd < 0 {
		return fmt.Errorf("validate: PID gains must be >= 0")
	}
	if c.Kp == 0 && c.Ki == 0 && c.Kd == 0 {
		return fmt.Errorf("validate: at least one PID gain must be > 0")
	}
	if c.InitMultiplier < 0 {
		return fmt.Errorf("validate: initial multiplier must be >= 0")
	}
	if c.MultiplierMax <= 0 {
		return fmt.Errorf("validate: multiplier max must be > 0")
	}
	if c.InitMultiplier > c.MultiplierMax {
		return fmt.Errorf("validate: initial multiplier %v above max %v",
			c.InitMultiplier, c.MultiplierMax)
	}
	if c.WarmupCycles < 0 {
		return fmt.Errorf("validate: warmup cycles must be >= 0")
	}
	if math.IsNaN(c.CostLimit) || math.IsInf(c.CostLimit, 0) {
		return fmt.Errorf("validate: cost limit must be finite")
	}
	return nil
}

// PIDLagrangian regulates the cost penalty with a
// proportional-integral-derivative law on the constraint error
// Jc - costLimit. Compared to dual ascent, the proportional term reacts
// immediately to violations and the derivative term damps overshoot.
//
// The integral term is clamped at zero from below: periods of running
// under the cost limit cannot bank credit that would later mask a
// violation.
type PIDLagrangian struct {
	costLimit     float64
	multiplierMax float64
	kp, ki, kd    float64

	warmupCycles int
	cycles       int

	integral  float64
	prevError float64

	multiplier float64
}

// NewPID returns a new PIDLagrangian controller
func NewPID(c PIDConfig) (*PIDLagrangian, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("newPID: %w", err)
	}

	return &PIDLagrangian{
		costLimit:     c.CostLimit,
		multiplierMax: c.MultiplierMax,
		kp:            c.Kp,
		ki:            c.Ki,
		kd:            c.Kd,
		warmupCycles:  c.WarmupCycles,
		multiplier:    c.InitMultiplier,
	}, nil
}

// Update performs one PID step on the multiplier given the mean
// episodic cost of the last cycle. During warm-up the controller
// consumes the cost but holds the multiplier at its initial value.
func (p *PIDLagrangian) Update(meanEpCost float64) error {
	if math.IsNaN(meanEpCost) || math.IsInf(meanEpCost, 0) {
		return fmt.Errorf("update: mean episodic cost is not finite: %v",
			meanEpCost)
	}

	if p.cycles < p.warmupCycles {
		p.cycles++
		return nil
	}
	p.cycles++

	err := meanEpCost - p.costLimit

	p.integral += err
	if p.integral < 0 {
		p.integral = 0
	}

	derivative := err - p.prevError
	p.prevError = err

	raw := p.kp*err + p.ki*p.integral + p.kd*derivative
	if raw < 0 {
		raw = 0
	} else if raw > p.multiplierMax {
		raw = p.multiplierMax
	}
	p.multiplier = raw

	return nil
}

// Multiplier returns the current cost penalty
func (p *PIDLagrangian) Multiplier() float64 {
	return p.multiplier
}

// CostLimit returns the constraint threshold the controller regulates
// toward
func (p *PIDLagrangian) CostLimit() float64 {
	return p.costLimit
}

// Active returns whether the controller has finished its warm-up
// period and is reacting to cost feedback
func (p *PIDLagrangian) Active() bool {
	return p.cycles >= p.warmupCycles
}
