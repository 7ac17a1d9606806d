package lagrange

import (
	"fmt"
	"math"
)

// Config describes a dual-ascent Lagrange controller. Configs are
// yaml-serializable so that experiment settings can be stored with
// results.
type Config struct {
	CostLimit      float64 `yaml:"cost_limit"`
	InitMultiplier float64 `yaml:"init_multiplier"`
	LearningRate   float64 `yaml:"learning_rate"`
	MultiplierMax  float64 `yaml:"multiplier_max"`
}

// Validate returns an error describing why the Config is invalid, or
// nil if it is valid
func (c Config) Validate() error {
	if c.LearningRate <= 0 {
		return fmt.Errorf("validate: learning rate must be > 0")
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
	if math.IsNaN(c.CostLimit) || math.IsInf(c.CostLimit, 0) {
		return fmt.Errorf("validate: cost limit must be finite")
	}
	return nil
}

// Lagrange adapts the cost penalty by dual ascent: the multiplier
// moves proportionally to the constraint violation and is projected
// back onto [0, MultiplierMax] after every step. It has no integral or
// derivative terms, giving a smoother, lower-variance multiplier than
// PIDLagrangian at the price of responsiveness.
type Lagrange struct {
	costLimit     float64
	learningRate  float64
	multiplierMax float64
	multiplier    float64
}

// New returns a new dual-ascent Lagrange controller
func New(c Config) (*Lagrange, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("new: %w", err)
	}

	return &Lagrange{
		costLimit:     c.CostLimit,
		learningRate:  c.LearningRate,
		multiplierMax: c.MultiplierMax,
		multiplier:    c.InitMultiplier,
	}, nil
}

// Update performs one dual-ascent step on the multiplier given the
// mean episodic cost of the last cycle
func (l *Lagrange) Update(meanEpCost float64) error {
	if math.IsNaN(meanEpCost) || math.IsInf(meanEpCost, 0) {
		return fmt.Errorf("update: mean episodic cost is not finite: %v",
			meanEpCost)
	}

	l.multiplier += l.learningRate * (meanEpCost - l.costLimit)
	if l.multiplier < 0 {
		l.multiplier = 0
	} else if l.multiplier > l.multiplierMax {
		l.multiplier = l.multiplierMax
	}
	return nil
}

// Multiplier returns the current cost penalty
func (l *Lagrange) Multiplier() float64 {
	return l.multiplier
}

// CostLimit returns the constraint threshold the controller regulates
// toward
func (l *Lagrange) CostLimit() float64 {
	return l.costLimit
}
