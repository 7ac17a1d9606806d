package expreplay

import (
	"fmt"

	"golang.org/x/exp/rand"

	"github.com/samuelfneumann/gosafe/utils/intutils"
)

// SelectorType names a method of drawing samples from a replay buffer
type SelectorType string

const (
	Uniform SelectorType = "Uniform"
	Recent  SelectorType = "Recent"
)

// Selector implements functionality for choosing how data should be
// sampled from an experience replay buffer
type Selector interface {
	// choose selects the indices at which data should be sampled from
	// the experience replay buffer
	choose(c *cache) []int

	// BatchSize returns the number of elements that will be selected
	BatchSize() int
}

// CreateSelector is a factory for Selectors
func CreateSelector(t SelectorType, samples int, seed uint64) (Selector,
	error) {
	switch t {
	case Uniform:
		return NewUniformSelector(samples, seed), nil
	case Recent:
		return NewRecentSelector(samples), nil
	default:
		return nil, fmt.Errorf("createSelector: no such selector type %v", t)
	}
}

// uniformSelector is a Selector which selects data from an experience
// replay buffer uniformly randomly
type uniformSelector struct {
	samples int
	rng     *rand.Rand
}

// NewUniformSelector returns a new Selector which selects data
// uniformly randomly from an experience replay buffer
func NewUniformSelector(samples int, seed uint64) Selector {
	return &uniformSelector{
		samples: samples,
		rng:     rand.New(rand.NewSource(seed)),
	}
}

// BatchSize gets the number of samples in a batch drawn from the buffer
func (u *uniformSelector) BatchSize() int {
	return u.samples
}

// choose selects a number of indices at which to draw data from the
// buffer
func (u *uniformSelector) choose(c *cache) []int {
	selected := make([]int, u.BatchSize())
	for i := range selected {
		selected[i] = u.rng.Intn(c.Capacity())
	}
	return selected
}

// recentSelector is a Selector which selects the most recently added
// data from an experience replay buffer
type recentSelector struct {
	samples int
}

// NewRecentSelector returns a new Selector which draws the most
// recently added data from an experience replay buffer
func NewRecentSelector(samples int) Selector {
	return &recentSelector{samples: samples}
}

// BatchSize gets the number of samples in a batch drawn from the buffer
func (r *recentSelector) BatchSize() int {
	return r.samples
}

// choose selects a number of indices at which to draw data from the
// buffer
func (r *recentSelector) choose(c *cache) []int {
	n := intutils.Min(r.BatchSize(), c.Capacity())
	selected := make([]int, n)

	// Walk backward from the most recent insertion position
	pos := c.next - 1
	if !c.full {
		pos = len(c.data) - 1
	}
	for i := 0; i < n; i++ {
		if pos < 0 {
			pos += c.Capacity()
		}
		selected[i] = pos
		pos--
	}
	return selected
}
