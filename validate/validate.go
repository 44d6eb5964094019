// Command validate checks the tuning profiles in a configs directory
// (../configs unless a directory is given). For each profile it checks:
//   - JSON structure, with unknown keys reported as errors
//   - The profile passes engine validation once defaults are applied
//   - The start position and every road element lie on the road
//   - Every element kind has at least one scenario in the catalog
//   - Trigger zones of neighbouring elements do not overlap
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/wricardo/drivesim/game/config"
	"github.com/wricardo/drivesim/game/engine"
)

// ValidationResult captures the outcome of validating a single file.
// Errors make a profile invalid; Info lists passed checks and warnings.
type ValidationResult struct {
	File   string
	Valid  bool
	Errors []string
	Info   []string
}

func (r *ValidationResult) fail(format string, args ...interface{}) {
	r.Valid = false
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

func (r *ValidationResult) note(format string, args ...interface{}) {
	r.Info = append(r.Info, fmt.Sprintf(format, args...))
}

// validateConfig loads and validates a single profile file against the
// scenario catalog
func validateConfig(filePath string, catalog []engine.Scenario) ValidationResult {
	result := ValidationResult{
		File:   filepath.Base(filePath),
		Valid:  true,
		Errors: []string{},
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		result.fail("Failed to read file: %v", err)
		return result
	}

	// Strict decode catches misspelled keys that defaults would hide
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(engine.DefaultTuning()); err != nil {
		result.fail("Invalid JSON: %v", err)
		return result
	}

	tuning, err := config.ReadProfile(filePath)
	if err != nil {
		result.fail("%v", err)
		return result
	}
	result.note("✓ Profile %q passes tuning validation", tuning.Name)

	world := engine.NewWorld(tuning)
	checkWorld(&result, world, tuning)
	checkCatalog(&result, world, catalog)
	return result
}

// checkWorld verifies that everything a run depends on is placed on the road
func checkWorld(result *ValidationResult, world *engine.World, tuning *engine.Tuning) {
	v := tuning.Vehicle
	start := engine.Footprint(world.Start, world.StartHeading, v.Width, v.Length)
	if !world.IsWithinRoad(start) {
		result.fail("Start position (%.0f, %.0f) does not fit on the road", world.Start.X, world.Start.Y)
	} else {
		result.note("✓ Start position (%.0f, %.0f) is on the road", world.Start.X, world.Start.Y)
	}

	if len(world.Elements) == 0 {
		result.fail("World has no road elements")
		return
	}

	offRoad := 0
	for _, el := range world.Elements {
		if !world.ContainsPoint(el.Position) {
			offRoad++
			result.fail("Element #%d (%s) at (%.0f, %.0f) is off the road", el.ID, el.Kind, el.Position.X, el.Position.Y)
		}
	}
	if offRoad == 0 {
		result.note("✓ All %d elements are on the road", len(world.Elements))
	}

	if len(world.Elements) < engine.ScenariosPerRun {
		result.note("⚠ Only %d elements for %d scenarios per run; elements re-arm after all have fired",
			len(world.Elements), engine.ScenariosPerRun)
	}

	radius := tuning.Scenario.TriggerRadius
	for i, a := range world.Elements {
		for _, b := range world.Elements[i+1:] {
			if d := a.Position.Dist(b.Position); d < 2*radius {
				result.note("⚠ Trigger zones of #%d (%s) and #%d (%s) overlap (%.0f apart, radius %.0f)",
					a.ID, a.Kind, b.ID, b.Kind, d, radius)
			}
		}
	}
}

// checkCatalog reports element kinds that have no authored scenario
func checkCatalog(result *ValidationResult, world *engine.World, catalog []engine.Scenario) {
	if err := engine.ValidateCatalog(catalog); err != nil {
		result.fail("Scenario catalog: %v", err)
		return
	}

	covered := make(map[engine.ElementKind]bool)
	for _, s := range catalog {
		covered[s.TriggerKind] = true
	}

	missing := make(map[engine.ElementKind]bool)
	for _, el := range world.Elements {
		if !covered[el.Kind] && !missing[el.Kind] {
			missing[el.Kind] = true
			result.note("⚠ No scenario is written for %s; another question is asked instead", el.Kind)
		}
	}
	if len(missing) == 0 {
		result.note("✓ Every element kind has a scenario")
	}
}

// validateDir validates every *.json profile in dir
func validateDir(dir string, catalog []engine.Scenario) ([]ValidationResult, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, err
	}
	results := make([]ValidationResult, 0, len(files))
	for _, file := range files {
		results = append(results, validateConfig(file, catalog))
	}
	return results, nil
}

// main validates the profiles, printing a concise report and exiting with
// non-zero status if any are invalid.
func main() {
	configDir := "../configs"
	if len(os.Args) > 1 {
		configDir = os.Args[1]
	}

	results, err := validateDir(configDir, engine.DefaultCatalog())
	if err != nil {
		fmt.Printf("Error finding config files: %v\n", err)
		os.Exit(1)
	}
	if len(results) == 0 {
		fmt.Printf("No profiles found in %s\n", configDir)
		os.Exit(1)
	}

	allValid := true
	for _, result := range results {
		fmt.Printf("\n%s %s\n", strings.Repeat("=", 20), result.File)

		if result.Valid {
			fmt.Println("✅ VALID")
		} else {
			fmt.Println("❌ INVALID")
			allValid = false
			for _, err := range result.Errors {
				fmt.Println("  ❌ " + err)
			}
		}
		for _, info := range result.Info {
			fmt.Println("  " + info)
		}
	}

	fmt.Printf("\n%s\n", strings.Repeat("=", 40))
	if allValid {
		fmt.Println("✅ All configurations are valid!")
	} else {
		fmt.Println("❌ Some configurations have errors")
		os.Exit(1)
	}
}
