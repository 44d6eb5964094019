// Command analyze prints quick, human-readable heuristics about the tuning
// profiles in the project's configs directory. It summarizes the world size,
// element counts and vehicle dynamics, drives a test car straight from the
// start to the first scenario, and highlights profiles whose pacing looks off.
package main

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"

	"github.com/wricardo/drivesim/game/config"
	"github.com/wricardo/drivesim/game/engine"
)

const (
	probeStep    = 1.0 / 60
	probeTimeout = 30.0
)

// Analysis is the summary of one profile
type Analysis struct {
	Name          string
	WorldWidth    float64
	WorldHeight   float64
	ElementCounts map[engine.ElementKind]int

	MaxSpeed         float64 // world units per second
	TimeToMaxSpeed   float64 // seconds
	BrakingDistance  float64 // from top speed, world units
	CoastingDistance float64 // from top speed until friction stops the car

	FirstScenarioTime float64 // seconds of full throttle from the start, 0 when unreached
	FirstScenarioKind engine.ElementKind

	Warnings []string
}

// analyzeProfile computes the heuristics for a validated profile
func analyzeProfile(t *engine.Tuning) Analysis {
	world := engine.NewWorld(t)
	v := t.Vehicle

	a := Analysis{
		Name:          t.Name,
		WorldWidth:    world.Network.Width,
		WorldHeight:   world.Network.Height,
		ElementCounts: engine.CountElements(world.Elements),
		MaxSpeed:      v.MaxSpeed(),
	}

	a.TimeToMaxSpeed = a.MaxSpeed / v.Acceleration
	a.BrakingDistance = a.MaxSpeed * a.MaxSpeed / (2 * v.BrakeDeceleration)
	// Speed decays as f^t, so the distance rolled is v / -ln(f)
	a.CoastingDistance = a.MaxSpeed / -math.Log(v.Friction)

	a.FirstScenarioTime, a.FirstScenarioKind = probeFirstScenario(world, t)

	if a.BrakingDistance > t.World.ElementSetback {
		a.Warnings = append(a.Warnings, fmt.Sprintf(
			"braking from top speed takes %.0f units, more than the %.0f between neighbouring elements",
			a.BrakingDistance, t.World.ElementSetback))
	}
	switch {
	case a.FirstScenarioTime == 0:
		a.Warnings = append(a.Warnings, fmt.Sprintf(
			"driving straight from the start reaches no element within %.0fs", probeTimeout))
	case a.FirstScenarioTime < 1:
		a.Warnings = append(a.Warnings, "the first scenario triggers within a second of starting")
	}
	if len(world.Elements) < engine.ScenariosPerRun {
		a.Warnings = append(a.Warnings, fmt.Sprintf(
			"only %d elements for %d scenarios per run", len(world.Elements), engine.ScenariosPerRun))
	}

	return a
}

// probeFirstScenario holds the accelerator from the start position and
// reports when the car first comes within trigger range of an element
func probeFirstScenario(world *engine.World, t *engine.Tuning) (float64, engine.ElementKind) {
	car := engine.NewVehicleController(world, t.Vehicle)
	car.Place(world.Start, world.StartHeading)

	in := engine.InputState{Accelerate: true}
	for elapsed := 0.0; elapsed < probeTimeout; elapsed += probeStep {
		pos := car.Vehicle().Position
		for _, el := range world.Elements {
			if el.Position.Dist(pos) < t.Scenario.TriggerRadius {
				return math.Max(elapsed, probeStep), el.Kind
			}
		}
		car.Tick(probeStep, in)
	}
	return 0, ""
}

func printAnalysis(a Analysis) {
	fmt.Printf("Name: %s\n", a.Name)
	fmt.Printf("World: %.0f x %.0f\n", a.WorldWidth, a.WorldHeight)

	kinds := make([]string, 0, len(a.ElementCounts))
	total := 0
	for kind, n := range a.ElementCounts {
		kinds = append(kinds, string(kind))
		total += n
	}
	sort.Strings(kinds)
	fmt.Printf("Elements: %d\n", total)
	for _, kind := range kinds {
		fmt.Printf("  %-20s %d\n", kind, a.ElementCounts[engine.ElementKind(kind)])
	}

	fmt.Printf("Top speed: %.0f units/s, reached in %.1fs\n", a.MaxSpeed, a.TimeToMaxSpeed)
	fmt.Printf("Braking distance: %.0f units\n", a.BrakingDistance)
	fmt.Printf("Coasting distance: %.0f units\n", a.CoastingDistance)
	if a.FirstScenarioTime > 0 {
		fmt.Printf("First scenario: %s after %.1fs\n", a.FirstScenarioKind, a.FirstScenarioTime)
	}

	if len(a.Warnings) == 0 {
		fmt.Printf("✅ Pacing looks reasonable\n")
		return
	}
	for _, w := range a.Warnings {
		fmt.Printf("⚠️  %s\n", w)
	}
}

func analyzeConfig(path string) {
	tuning, err := config.ReadProfile(path)
	if err != nil {
		fmt.Printf("Error reading profile: %v\n", err)
		return
	}
	printAnalysis(analyzeProfile(tuning))
}

func main() {
	configDir := "configs"
	if len(os.Args) > 1 {
		configDir = os.Args[1]
	}

	files, err := filepath.Glob(filepath.Join(configDir, "*.json"))
	if err != nil {
		fmt.Printf("Error finding profiles: %v\n", err)
		os.Exit(1)
	}

	for _, file := range files {
		fmt.Printf("\n=== Analyzing %s ===\n", filepath.Base(file))
		analyzeConfig(file)
	}
}
