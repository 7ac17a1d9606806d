package agent

import (
	"fmt"
	"sort"

	"github.com/samuelfneumann/gosafe/environment"
)

// Constructor builds an Agent on an environment from a seed
type Constructor func(env environment.Environment, seed uint64) (Agent,
	error)

// factory maps algorithm names to constructors. The map is built
// explicitly at startup by each algorithm package's Register call; no
// reflection or type scanning is involved.
var factory = map[string]Constructor{}

// Register associates an algorithm name with a Constructor. Register
// panics if the name is already taken, since a collision is a
// programming error.
func Register(name string, c Constructor) {
	if _, ok := factory[name]; ok {
		panic(fmt.Sprintf("register: agent type %v already registered", name))
	}
	factory[name] = c
}

// Create constructs the named agent on the argument environment
func Create(name string, env environment.Environment, seed uint64) (Agent,
	error) {
	c, ok := factory[name]
	if !ok {
		return nil, fmt.Errorf("create: no such agent type %v (have %v)",
			name, Registered())
	}
	return c(env, seed)
}

// Registered returns the sorted names of all registered agent types
func Registered() []string {
	names := make([]string, 0, len(factory))
	for name := range factory {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
