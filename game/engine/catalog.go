package engine

import (
	"fmt"
	"math/rand"
)

var defaultCatalog = []Scenario{
	{
		ID:                 "tl-red",
		Title:              "Red light ahead",
		Prompt:             "The traffic light ahead is red. What do you do?",
		Options:            []string{"Accelerate to get through", "Stop behind the stop line and wait for green", "Slow down and roll through if clear", "Sound the horn and continue"},
		CorrectOptionIndex: 1,
		Explanation:        "A red signal means stop behind the line until the light turns green.",
		TriggerKind:        TrafficLight,
	},
	{
		ID:                 "tl-amber",
		Title:              "Amber light",
		Prompt:             "The light turns amber as you approach and you can stop safely. What should you do?",
		Options:            []string{"Stop", "Speed up", "Change lanes", "Flash your headlights"},
		CorrectOptionIndex: 0,
		Explanation:        "Amber means stop unless you are so close that stopping would be unsafe.",
		TriggerKind:        TrafficLight,
	},
	{
		ID:                 "tl-green-pedestrian",
		Title:              "Green light, pedestrian still crossing",
		Prompt:             "Your light turns green but a pedestrian is still finishing crossing. What do you do?",
		Options:            []string{"Go, you have right of way", "Wait until the pedestrian has crossed", "Drive around the pedestrian", "Sound the horn"},
		CorrectOptionIndex: 1,
		Explanation:        "Green means go only when it is safe. Give way to people still on the crossing.",
		TriggerKind:        TrafficLight,
	},
	{
		ID:                 "tl-flashing-amber",
		Title:              "Flashing amber",
		Prompt:             "A traffic light is flashing amber. What does it mean?",
		Options:            []string{"The lights are broken, treat it as green", "Proceed with caution and give way", "Stop and wait for green", "Only buses may proceed"},
		CorrectOptionIndex: 1,
		Explanation:        "Flashing amber allows you to proceed with caution while giving way to others.",
		TriggerKind:        TrafficLight,
	},
	{
		ID:                 "tl-out-of-order",
		Title:              "Signals out of order",
		Prompt:             "The traffic lights at a junction are not working. How do you proceed?",
		Options:            []string{"Treat it as an unmarked junction and proceed with great care", "Drive through at normal speed", "Turn around", "Wait until the lights are repaired"},
		CorrectOptionIndex: 0,
		Explanation:        "With lights out, nobody has priority. Approach slowly and be ready to stop.",
		TriggerKind:        TrafficLight,
	},
	{
		ID:                 "pc-waiting",
		Title:              "Pedestrian waiting at a zebra crossing",
		Prompt:             "A pedestrian is waiting at the kerb of a zebra crossing. What should you do?",
		Options:            []string{"Continue, they have not stepped out yet", "Be ready to stop and let them cross", "Wave them across", "Sound the horn to warn them"},
		CorrectOptionIndex: 1,
		Explanation:        "Slow down and be prepared to stop for people waiting to cross.",
		TriggerKind:        PedestrianCrossing,
	},
	{
		ID:                 "pc-overtaking",
		Title:              "Overtaking near a crossing",
		Prompt:             "May you overtake another vehicle on the approach to a pedestrian crossing?",
		Options:            []string{"Yes, if the crossing is empty", "Yes, at low speed", "No, never on the zigzag approach", "Only if the other vehicle is slow"},
		CorrectOptionIndex: 2,
		Explanation:        "Overtaking on the approach to a crossing can hide pedestrians from view.",
		TriggerKind:        PedestrianCrossing,
	},
	{
		ID:                 "pc-parking",
		Title:              "Stopping on a crossing",
		Prompt:             "Traffic ahead is queueing across a pedestrian crossing. What should you do?",
		Options:            []string{"Stop on the crossing", "Keep the crossing clear and wait before it", "Reverse away", "Use the opposite lane"},
		CorrectOptionIndex: 1,
		Explanation:        "Never stop on a crossing. Wait behind it until there is space beyond.",
		TriggerKind:        PedestrianCrossing,
	},
	{
		ID:                 "pc-elderly",
		Title:              "Slow pedestrian",
		Prompt:             "An elderly person is crossing slowly. What do you do?",
		Options:            []string{"Rev the engine so they hurry", "Wait patiently until they reach the kerb", "Edge forward behind them", "Drive around them"},
		CorrectOptionIndex: 1,
		Explanation:        "Give pedestrians the time they need and do not hurry them.",
		TriggerKind:        PedestrianCrossing,
	},
	{
		ID:                 "pc-ball",
		Title:              "Ball rolling onto the road",
		Prompt:             "A ball rolls onto the road near a crossing. What should you expect?",
		Options:            []string{"Nothing, it is just a ball", "A child may run after it", "The ball will stop by itself", "Another vehicle will hit it"},
		CorrectOptionIndex: 1,
		Explanation:        "A ball on the road often means a child is about to follow it. Slow down and be ready to stop.",
		TriggerKind:        PedestrianCrossing,
	},
	{
		ID:                 "ss-full-stop",
		Title:              "Stop sign",
		Prompt:             "You reach a stop sign and the road looks clear. What do you do?",
		Options:            []string{"Slow down and continue", "Come to a complete stop, then proceed when safe", "Continue at the same speed", "Stop only if another vehicle is visible"},
		CorrectOptionIndex: 1,
		Explanation:        "A stop sign always requires a complete stop at the line.",
		TriggerKind:        StopSign,
	},
	{
		ID:                 "ss-where",
		Title:              "Where to stop",
		Prompt:             "Where must you stop at a stop sign with a painted line?",
		Options:            []string{"Behind the stop line", "In the middle of the junction", "Anywhere near the sign", "After the junction"},
		CorrectOptionIndex: 0,
		Explanation:        "Stop with the front of your vehicle behind the stop line.",
		TriggerKind:        StopSign,
	},
	{
		ID:                 "ss-view",
		Title:              "Limited view at a stop sign",
		Prompt:             "After stopping at the line you still cannot see the cross traffic. What now?",
		Options:            []string{"Drive out quickly", "Creep forward slowly until you can see, then proceed", "Reverse and find another route", "Sound the horn and go"},
		CorrectOptionIndex: 1,
		Explanation:        "Edge forward carefully until you have a clear view before pulling out.",
		TriggerKind:        StopSign,
	},
	{
		ID:                 "sz-speed",
		Title:              "School zone",
		Prompt:             "You enter a school zone during school hours. What is the correct behaviour?",
		Options:            []string{"Keep your normal speed", "Reduce speed and watch for children", "Use the horn continuously", "Overtake slower vehicles"},
		CorrectOptionIndex: 1,
		Explanation:        "School zones require reduced speed and extra attention for children.",
		TriggerKind:        SchoolZone,
	},
	{
		ID:                 "sz-bus",
		Title:              "School bus stopped",
		Prompt:             "A school bus has stopped with its hazard lights on. What should you do?",
		Options:            []string{"Pass quickly", "Pass slowly and be ready to stop for children", "Sound the horn while passing", "Overtake on the right"},
		CorrectOptionIndex: 1,
		Explanation:        "Children may cross in front of or behind the bus. Pass slowly, ready to stop.",
		TriggerKind:        SchoolZone,
	},
	{
		ID:                 "sz-patrol",
		Title:              "School crossing patrol",
		Prompt:             "A school crossing patrol shows a stop sign. What must you do?",
		Options:            []string{"Stop", "Slow down", "Continue if no children are visible", "Flash your lights"},
		CorrectOptionIndex: 0,
		Explanation:        "You must stop when a school crossing patrol shows a stop sign.",
		TriggerKind:        SchoolZone,
	},
	{
		ID:                 "ix-right-of-way",
		Title:              "Unmarked intersection",
		Prompt:             "At an unmarked intersection, who has right of way?",
		Options:            []string{"The faster vehicle", "Traffic from the right", "Traffic from the left", "The larger vehicle"},
		CorrectOptionIndex: 1,
		Explanation:        "Without signs or markings, give way to traffic coming from the right.",
		TriggerKind:        Intersection,
	},
	{
		ID:                 "ix-box",
		Title:              "Queueing traffic at a junction",
		Prompt:             "Traffic beyond the intersection is at a standstill. Should you enter the junction?",
		Options:            []string{"Yes, to keep your place", "No, wait until your exit is clear", "Yes, if the light is green", "Only when turning"},
		CorrectOptionIndex: 1,
		Explanation:        "Do not enter a junction unless your exit is clear, or you will block cross traffic.",
		TriggerKind:        Intersection,
	},
	{
		ID:                 "ix-turn-left",
		Title:              "Turning at the intersection",
		Prompt:             "You intend to turn at the intersection ahead. When should you signal?",
		Options:            []string{"After turning", "In good time before the turn", "Only if other traffic is present", "Signals are optional at intersections"},
		CorrectOptionIndex: 1,
		Explanation:        "Signal early so other road users can anticipate your manoeuvre.",
		TriggerKind:        Intersection,
	},
	{
		ID:                 "ix-emergency",
		Title:              "Emergency vehicle at the junction",
		Prompt:             "An ambulance with sirens approaches the intersection behind you. What do you do?",
		Options:            []string{"Stop immediately in the junction", "Pull over safely and let it pass without entering the junction dangerously", "Speed up to stay ahead", "Ignore it"},
		CorrectOptionIndex: 1,
		Explanation:        "Help emergency vehicles pass, but only move over when it is safe and legal.",
		TriggerKind:        Intersection,
	},
}

// DefaultCatalog returns a copy of the authored scenario catalog
func DefaultCatalog() []Scenario {
	out := make([]Scenario, len(defaultCatalog))
	for i, s := range defaultCatalog {
		s.Options = append([]string(nil), s.Options...)
		out[i] = s
	}
	return out
}

// ValidateCatalog checks that a catalog is a complete pool of CatalogSize
// well formed scenarios
func ValidateCatalog(catalog []Scenario) error {
	if len(catalog) != CatalogSize {
		return fmt.Errorf("catalog validation: need exactly %d scenarios, got %d", CatalogSize, len(catalog))
	}
	seen := make(map[string]bool, len(catalog))
	for i, s := range catalog {
		if s.ID == "" {
			return fmt.Errorf("catalog validation: scenario %d has no id", i)
		}
		if seen[s.ID] {
			return fmt.Errorf("catalog validation: duplicate scenario id '%s'", s.ID)
		}
		seen[s.ID] = true
		if len(s.Options) < 2 {
			return fmt.Errorf("catalog validation: scenario '%s' needs at least 2 options", s.ID)
		}
		if s.CorrectOptionIndex < 0 || s.CorrectOptionIndex >= len(s.Options) {
			return fmt.Errorf("catalog validation: scenario '%s' correct_option_index %d out of range", s.ID, s.CorrectOptionIndex)
		}
		switch s.TriggerKind {
		case PedestrianCrossing, TrafficLight, StopSign, SchoolZone, Intersection:
		default:
			return fmt.Errorf("catalog validation: scenario '%s' has unknown trigger_kind '%s'", s.ID, s.TriggerKind)
		}
	}
	return nil
}

// SampleRun draws n distinct scenarios from the catalog using a partial Fisher-Yates shuffle
func SampleRun(rng *rand.Rand, catalog []Scenario, n int) []Scenario {
	if n > len(catalog) {
		n = len(catalog)
	}
	idx := make([]int, len(catalog))
	for i := range idx {
		idx[i] = i
	}
	run := make([]Scenario, 0, n)
	for i := 0; i < n; i++ {
		j := i + rng.Intn(len(idx)-i)
		idx[i], idx[j] = idx[j], idx[i]
		run = append(run, catalog[idx[i]])
	}
	return run
}
