package main

import (
	"fmt"
	"log"

	"gonum.org/v1/gonum/spatial/r1"

	"github.com/samuelfneumann/gosafe/agent"
	"github.com/samuelfneumann/gosafe/agent/modelbased/cappets"
	"github.com/samuelfneumann/gosafe/environment"
	"github.com/samuelfneumann/gosafe/environment/hazardworld"
	"github.com/samuelfneumann/gosafe/experiment"
	"github.com/samuelfneumann/gosafe/experiment/tracker"
)

func main() {
	var seed uint64 = 192382

	// Create the environment: a goal across the arena with two hazards
	// on the direct path
	bounds := r1.Interval{Min: -1.5, Max: -1.0}

	s := environment.NewUniformStarter([]r1.Interval{bounds, bounds}, seed)
	goal := hazardworld.Position{X: 1.5, Y: 1.5}
	hazards := []hazardworld.Position{
		{X: 0.0, Y: 0.0},
		{X: 0.75, Y: 0.75},
	}
	h, _, err := hazardworld.New(goal, hazards, s, 250, 0.99)
	if err != nil {
		log.Fatalf("could not create environment: %v", err)
	}

	// Create the learning algorithm
	config := cappets.DefaultConfig()
	config.Planner.CostLimit = 5.0
	config.Lagrange.CostLimit = 5.0

	a, err := config.CreateAgent(h, seed)
	if err != nil {
		log.Fatalf("could not create agent: %v", err)
	}

	// Experiment
	returns := tracker.NewReturn("./data.bin")
	costs := tracker.NewEpisodicCost("./cost.bin")
	e := experiment.NewOnline(h, a, 50_000, true, returns, costs)
	if err := e.Run(); err != nil {
		log.Fatalf("experiment failed: %v", err)
	}
	if err := e.Save(); err != nil {
		log.Fatalf("could not save experiment data: %v", err)
	}

	costData, err := tracker.LoadData("./cost.bin")
	if err != nil {
		log.Fatalf("could not load cost data: %v", err)
	}
	n := len(costData)
	if n > 10 {
		costData = costData[n-10:]
	}
	fmt.Println("last episodic costs:", costData)
	fmt.Println("final multiplier:", a.(agent.Constrained).Multiplier())
}
