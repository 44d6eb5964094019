package engine

import (
	"fmt"
	"math"
	"strings"
)

// Tuning is a named set of simulation constants loaded from a JSON profile
type Tuning struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Seed        int64          `json:"seed"` // 0 picks a time based seed
	Viewport    Viewport       `json:"viewport"`
	World       WorldTuning    `json:"world"`
	Vehicle     VehicleTuning  `json:"vehicle"`
	Scenario    ScenarioTuning `json:"scenario"`
	Loop        LoopTuning     `json:"loop"`
	Messages    Messages       `json:"messages"`
}

// WorldTuning sizes the road network and positions its elements
type WorldTuning struct {
	Scale           float64 `json:"scale"`
	MinWidth        float64 `json:"min_width"`
	MinHeight       float64 `json:"min_height"`
	RoadWidth       float64 `json:"road_width"`
	MainRoadWidth   float64 `json:"main_road_width"`
	CrossRoadOffset float64 `json:"cross_road_offset"`
	PointStep       float64 `json:"point_step"`
	ElementSetback  float64 `json:"element_setback"`
	LightInterval   float64 `json:"light_interval"`
	StopSignOffset  float64 `json:"stop_sign_offset"`
	StartMargin     float64 `json:"start_margin"`
	BuildingSize    float64 `json:"building_size"`
	BuildingGap     float64 `json:"building_gap"`
}

// VehicleTuning holds the physics constants of the car
type VehicleTuning struct {
	Width                float64 `json:"width"`
	Length               float64 `json:"length"`
	MaxSpeedKmh          float64 `json:"max_speed_kmh"`
	UnitsPerKmh          float64 `json:"units_per_kmh"`
	Acceleration         float64 `json:"acceleration"`
	BrakeDeceleration    float64 `json:"brake_deceleration"`
	ReverseSpeedKmh      float64 `json:"reverse_speed_kmh"`
	Friction             float64 `json:"friction"` // fraction of speed kept after one second coasting
	MinSteerSpeed        float64 `json:"min_steer_speed"`
	TurnRate             float64 `json:"turn_rate"`
	SteerResponse        float64 `json:"steer_response"`
	SteerDamping         float64 `json:"steer_damping"`
	EmergencyBrakeFactor float64 `json:"emergency_brake_factor"`
}

// MaxSpeed is the speed ceiling in world units per second
func (v VehicleTuning) MaxSpeed() float64 { return v.MaxSpeedKmh * v.UnitsPerKmh }

// ReverseSpeed is the magnitude of the reverse floor in world units per second
func (v VehicleTuning) ReverseSpeed() float64 { return v.ReverseSpeedKmh * v.UnitsPerKmh }

// HalfDiagonal is the radius of the circle enclosing the vehicle footprint
func (v VehicleTuning) HalfDiagonal() float64 { return math.Hypot(v.Width/2, v.Length/2) }

// ScenarioTuning controls triggering and pacing of scenarios
type ScenarioTuning struct {
	TriggerRadius    float64 `json:"trigger_radius"`
	DisplayDelay     float64 `json:"display_delay"`     // seconds between answer and resume
	AdvisoryDuration float64 `json:"advisory_duration"` // seconds an advisory stays visible
	ReportTimeout    float64 `json:"report_timeout"`    // seconds allowed for the result hand-off
}

// LoopTuning controls frame pacing and error containment
type LoopTuning struct {
	TargetFPS            int     `json:"target_fps"`
	MaxDelta             float64 `json:"max_delta"`
	MaxConsecutiveErrors int     `json:"max_consecutive_errors"`
	BroadcastEvery       int     `json:"broadcast_every"`
}

// Messages are the user facing texts of a profile
type Messages struct {
	Welcome          string `json:"welcome"`
	StayOnRoad       string `json:"stay_on_road"`
	Correct          string `json:"correct"`
	Incorrect        string `json:"incorrect"`
	Finished         string `json:"finished"`
	Paused           string `json:"paused"`
	SubmissionSaved  string `json:"submission_saved"`
	SubmissionFailed string `json:"submission_failed"`
	Fatal            string `json:"fatal"`
}

// DefaultTuning returns the canonical constant set used when no profile is given
func DefaultTuning() *Tuning {
	return &Tuning{
		Name:        "standard",
		Description: "Standard learner profile: 60 km/h ceiling on the city grid",
		Viewport:    Viewport{Width: 800, Height: 600},
		World: WorldTuning{
			Scale:           3,
			MinWidth:        1800,
			MinHeight:       2400,
			RoadWidth:       120,
			MainRoadWidth:   140,
			CrossRoadOffset: 600,
			PointStep:       10,
			ElementSetback:  200,
			LightInterval:   1200,
			StopSignOffset:  450,
			StartMargin:     120,
			BuildingSize:    140,
			BuildingGap:     50,
		},
		Vehicle: VehicleTuning{
			Width:                36,
			Length:               64,
			MaxSpeedKmh:          60,
			UnitsPerKmh:          5,
			Acceleration:         100,
			BrakeDeceleration:    260,
			ReverseSpeedKmh:      10,
			Friction:             0.6,
			MinSteerSpeed:        8,
			TurnRate:             2.4,
			SteerResponse:        8,
			SteerDamping:         0.02,
			EmergencyBrakeFactor: 0.3,
		},
		Scenario: ScenarioTuning{
			TriggerRadius:    100,
			DisplayDelay:     2.5,
			AdvisoryDuration: 2,
			ReportTimeout:    10,
		},
		Loop: LoopTuning{
			TargetFPS:            60,
			MaxDelta:             0.1,
			MaxConsecutiveErrors: 5,
			BroadcastEvery:       6,
		},
		Messages: Messages{
			Welcome:          "Drive along the road. Scenarios appear as you approach road elements.",
			StayOnRoad:       "Stay on the road!",
			Correct:          "Correct! +%d points",
			Incorrect:        "Incorrect. %s",
			Finished:         "Run complete: %d of %d correct",
			Paused:           "Paused",
			SubmissionSaved:  "Results submitted",
			SubmissionFailed: "Results could not be submitted, your score is shown below",
			Fatal:            "The simulation stopped after repeated errors",
		},
	}
}

// ValidateTuning validates a tuning profile for correctness and drivability
func ValidateTuning(t *Tuning) error {
	if t == nil {
		return fmt.Errorf("tuning validation: tuning is required")
	}
	if t.Name == "" {
		return fmt.Errorf("tuning validation: name is required")
	}
	if t.Description == "" {
		return fmt.Errorf("tuning validation: description is required")
	}
	if t.Viewport.Width <= 0 || t.Viewport.Height <= 0 {
		return fmt.Errorf("tuning validation: viewport must be positive, got %.0fx%.0f", t.Viewport.Width, t.Viewport.Height)
	}

	w := t.World
	if w.Scale <= 0 {
		return fmt.Errorf("tuning validation: world.scale must be positive, got %v", w.Scale)
	}
	if w.RoadWidth <= 0 || w.MainRoadWidth <= 0 {
		return fmt.Errorf("tuning validation: road widths must be positive")
	}
	narrowest := math.Min(w.RoadWidth, w.MainRoadWidth)
	if w.PointStep <= 0 || w.PointStep > narrowest/2 {
		return fmt.Errorf("tuning validation: world.point_step must be in (0, %.1f], got %v", narrowest/2, w.PointStep)
	}
	if w.CrossRoadOffset <= narrowest {
		return fmt.Errorf("tuning validation: world.cross_road_offset must exceed the road width")
	}
	if 2*w.CrossRoadOffset+w.RoadWidth >= w.MinHeight {
		return fmt.Errorf("tuning validation: cross roads do not fit into world.min_height %v", w.MinHeight)
	}
	if w.StopSignOffset <= w.MainRoadWidth/2 || 2*w.StopSignOffset >= w.MinWidth {
		return fmt.Errorf("tuning validation: world.stop_sign_offset must place stop signs on the cross roads")
	}
	if w.StartMargin < t.Vehicle.HalfDiagonal() {
		return fmt.Errorf("tuning validation: world.start_margin must clear the vehicle footprint")
	}
	if w.BuildingSize < 0 || w.BuildingGap < 0 {
		return fmt.Errorf("tuning validation: building dimensions cannot be negative")
	}

	v := t.Vehicle
	if v.Width <= 0 || v.Length <= 0 {
		return fmt.Errorf("tuning validation: vehicle dimensions must be positive")
	}
	if v.HalfDiagonal() > narrowest/2 {
		return fmt.Errorf("tuning validation: vehicle half diagonal %.1f exceeds half the narrowest road %.1f",
			v.HalfDiagonal(), narrowest/2)
	}
	if v.MaxSpeedKmh <= 0 || v.UnitsPerKmh <= 0 {
		return fmt.Errorf("tuning validation: vehicle.max_speed_kmh and vehicle.units_per_kmh must be positive")
	}
	if v.ReverseSpeedKmh < 0 || v.ReverseSpeedKmh > v.MaxSpeedKmh {
		return fmt.Errorf("tuning validation: vehicle.reverse_speed_kmh must be between 0 and max_speed_kmh (%v), got %v",
			v.MaxSpeedKmh, v.ReverseSpeedKmh)
	}
	if v.Acceleration <= 0 || v.BrakeDeceleration <= 0 {
		return fmt.Errorf("tuning validation: acceleration and brake_deceleration must be positive")
	}
	if v.Friction <= 0 || v.Friction >= 1 {
		return fmt.Errorf("tuning validation: vehicle.friction must be in (0, 1), got %v", v.Friction)
	}
	if v.SteerDamping < 0 || v.SteerDamping >= 1 {
		return fmt.Errorf("tuning validation: vehicle.steer_damping must be in [0, 1), got %v", v.SteerDamping)
	}
	if v.EmergencyBrakeFactor < 0 || v.EmergencyBrakeFactor >= 1 {
		return fmt.Errorf("tuning validation: vehicle.emergency_brake_factor must be in [0, 1), got %v", v.EmergencyBrakeFactor)
	}
	if v.TurnRate <= 0 || v.SteerResponse <= 0 || v.MinSteerSpeed < 0 {
		return fmt.Errorf("tuning validation: steering constants must be positive")
	}

	s := t.Scenario
	if s.TriggerRadius <= 0 {
		return fmt.Errorf("tuning validation: scenario.trigger_radius must be positive")
	}
	if w.ElementSetback < 2*s.TriggerRadius {
		return fmt.Errorf("tuning validation: world.element_setback %v must be at least twice the trigger radius %v",
			w.ElementSetback, s.TriggerRadius)
	}
	if w.CrossRoadOffset-w.ElementSetback < 2*s.TriggerRadius {
		return fmt.Errorf("tuning validation: world.cross_road_offset leaves no room between spine elements")
	}
	if s.DisplayDelay < 0 || s.AdvisoryDuration < 0 {
		return fmt.Errorf("tuning validation: scenario delays cannot be negative")
	}
	if s.ReportTimeout <= 0 {
		return fmt.Errorf("tuning validation: scenario.report_timeout must be positive")
	}

	l := t.Loop
	if l.TargetFPS <= 0 || l.TargetFPS > 240 {
		return fmt.Errorf("tuning validation: loop.target_fps must be between 1 and 240, got %d", l.TargetFPS)
	}
	if l.MaxDelta <= 0 {
		return fmt.Errorf("tuning validation: loop.max_delta must be positive")
	}
	if l.MaxConsecutiveErrors < 1 {
		return fmt.Errorf("tuning validation: loop.max_consecutive_errors must be at least 1")
	}
	if l.BroadcastEvery < 1 {
		return fmt.Errorf("tuning validation: loop.broadcast_every must be at least 1")
	}

	m := t.Messages
	if m.StayOnRoad == "" {
		return fmt.Errorf("tuning validation: messages.stay_on_road is required")
	}
	if !strings.Contains(m.Correct, "%d") {
		return fmt.Errorf("tuning validation: messages.correct must contain %%d for points")
	}
	if strings.Count(m.Finished, "%d") != 2 {
		return fmt.Errorf("tuning validation: messages.finished must contain two %%d verbs for correct and total")
	}
	if !strings.Contains(m.Incorrect, "%s") {
		return fmt.Errorf("tuning validation: messages.incorrect must contain %%s for the explanation")
	}

	return nil
}
