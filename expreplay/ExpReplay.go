// Package expreplay implements experience replay buffers for
// constrained environments. Buffers store full transitions, including
// the per-step cost, and are the training data source for learned
// dynamics models.
package expreplay

import (
	"fmt"

	"github.com/samuelfneumann/gosafe/timestep"
)

// ExperienceReplayer implements an experience replay buffer
type ExperienceReplayer interface {
	// Add adds a transition to the buffer
	Add(t timestep.Transition) error

	// Sample samples a batch of transitions from the buffer
	Sample() ([]timestep.Transition, error)

	// Capacity returns the current number of samples in the buffer
	Capacity() int

	// MaxCapacity returns the maximum allowable samples in the buffer
	MaxCapacity() int

	// MinCapacity returns the number of samples required to be in
	// the buffer before the buffer can be sampled
	MinCapacity() int

	// BatchSize returns the number of samples returned by Sample()
	BatchSize() int
}

// Config implements a specific configuration of an ExperienceReplayer
type Config struct {
	SampleMethod      SelectorType
	SampleSize        int
	MaxReplayCapacity int
	MinReplayCapacity int
}

// Create creates and returns the ExperienceReplayer with the
// specified Config
func (c Config) Create(seed uint64) (ExperienceReplayer, error) {
	sampler, err := CreateSelector(c.SampleMethod, c.SampleSize, seed)
	if err != nil {
		return nil, fmt.Errorf("create: %w", err)
	}
	return New(sampler, c.MinReplayCapacity, c.MaxReplayCapacity)
}

// cache implements a concrete ExperienceReplayer. Transitions are
// removed first-in-first-out once the buffer is full.
type cache struct {
	data []timestep.Transition
	next int
	full bool

	sampler Selector

	minCapacity int
	maxCapacity int
}

// New creates and returns a new ExperienceReplayer. The sampler
// parameter determines how batches are drawn from the buffer. Old
// transitions are overwritten FiFo once maxCapacity is reached.
func New(sampler Selector, minCapacity, maxCapacity int) (
	ExperienceReplayer, error) {
	if minCapacity <= 0 {
		return nil, fmt.Errorf("new: minCapacity must be > 0")
	}
	if maxCapacity < minCapacity {
		return nil, fmt.Errorf("new: maxCapacity (%v) must be >= "+
			"minCapacity (%v)", maxCapacity, minCapacity)
	}
	if maxCapacity < sampler.BatchSize() {
		return nil, fmt.Errorf("new: cannot have batch size (%v) > max "+
			"buffer capacity (%v)", sampler.BatchSize(), maxCapacity)
	}

	return &cache{
		data:        make([]timestep.Transition, 0, maxCapacity),
		sampler:     sampler,
		minCapacity: minCapacity,
		maxCapacity: maxCapacity,
	}, nil
}

// Add adds a transition to the buffer, overwriting the oldest
// transition if the buffer is full
func (c *cache) Add(t timestep.Transition) error {
	if t.State == nil || t.Action == nil || t.NextState == nil {
		return fmt.Errorf("add: transition has nil state, action, or " +
			"next state")
	}

	if !c.full {
		c.data = append(c.data, t)
		if len(c.data) == c.maxCapacity {
			c.full = true
		}
		return nil
	}

	c.data[c.next] = t
	c.next = (c.next + 1) % c.maxCapacity
	return nil
}

// Sample samples a batch of transitions from the buffer
func (c *cache) Sample() ([]timestep.Transition, error) {
	if c.Capacity() < c.minCapacity {
		return nil, fmt.Errorf("sample: buffer has %v samples, needs %v "+
			"before sampling", c.Capacity(), c.minCapacity)
	}

	indices := c.sampler.choose(c)
	batch := make([]timestep.Transition, len(indices))
	for i, index := range indices {
		batch[i] = c.data[index]
	}
	return batch, nil
}

// Capacity returns the current number of samples in the buffer
func (c *cache) Capacity() int {
	return len(c.data)
}

// MaxCapacity returns the maximum allowable samples in the buffer
func (c *cache) MaxCapacity() int {
	return c.maxCapacity
}

// MinCapacity returns the number of samples required to be in the
// buffer before the buffer can be sampled
func (c *cache) MinCapacity() int {
	return c.minCapacity
}

// BatchSize returns the number of samples returned by Sample()
func (c *cache) BatchSize() int {
	return c.sampler.BatchSize()
}
