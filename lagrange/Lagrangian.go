// Package lagrange implements controllers for the cost penalty
// (Lagrange multiplier) of constrained RL algorithms.
//
// A Lagrangian maintains a non-negative scalar multiplier that weighs
// the cost term in an otherwise unconstrained objective. The
// multiplier is adapted online from the error between the observed
// mean episodic cost and a configured cost limit: sustained
// constraint violation drives it up, sustained satisfaction drives it
// back toward zero. Two controllers are provided, a simple dual-ascent
// Lagrange and a more responsive PIDLagrangian.
//
// The cost limit that a controller regulates toward is always taken
// from the controller's own Config. Components that also need the
// limit (e.g. a planner's feasibility test) should be constructed from
// the same Config value rather than carrying a second copy.
package lagrange

// Lagrangian is a feedback controller for the cost penalty of a
// constrained algorithm.
//
// Update consumes the mean episodic cost of the last training cycle
// and adjusts the multiplier. Multiplier returns the current penalty,
// which is always non-negative. Consumers must read the multiplier
// once per cycle and treat the value as a snapshot: the controller is
// only ever updated between cycles, never during an in-flight
// planning call or policy update.
type Lagrangian interface {
	// Update adjusts the multiplier given the mean episodic cost of
	// the last cycle. A NaN or infinite cost is a numerical invariant
	// violation and results in an error; the multiplier is left
	// unchanged in that case.
	Update(meanEpCost float64) error

	// Multiplier returns the current cost penalty, always >= 0
	Multiplier() float64
}
