package engine

import (
	"math"
	"time"
)

// ElementKind identifies the kind of a scripted road element
type ElementKind string

const (
	PedestrianCrossing ElementKind = "pedestrian_crossing"
	TrafficLight       ElementKind = "traffic_light"
	StopSign           ElementKind = "stop_sign"
	SchoolZone         ElementKind = "school_zone"
	Intersection       ElementKind = "intersection"
)

// ElementKinds lists every element kind in placement priority order
var ElementKinds = []ElementKind{Intersection, TrafficLight, PedestrianCrossing, StopSign, SchoolZone}

// LightState is the signal shown by a traffic light
type LightState string

const (
	LightNone   LightState = ""
	LightRed    LightState = "red"
	LightYellow LightState = "yellow"
	LightGreen  LightState = "green"
)

// Orientation of a straight road segment
type Orientation string

const (
	Vertical   Orientation = "vertical"
	Horizontal Orientation = "horizontal"
)

const (
	// ScenariosPerRun is the number of scenarios presented in one run
	ScenariosPerRun = 5
	// CatalogSize is the number of authored scenarios a run samples from
	CatalogSize = 20
	// PointsPerCorrect is awarded for each correct answer
	PointsPerCorrect = 20

	MaxRecentNotices = 16
	speedEpsilon     = 0.5
)

// Vec2 is a point or direction in world units. Y grows downward.
type Vec2 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Add returns v+o
func (v Vec2) Add(o Vec2) Vec2 { return Vec2{v.X + o.X, v.Y + o.Y} }

// Sub returns v-o
func (v Vec2) Sub(o Vec2) Vec2 { return Vec2{v.X - o.X, v.Y - o.Y} }

// Scale returns v*s
func (v Vec2) Scale(s float64) Vec2 { return Vec2{v.X * s, v.Y * s} }

// Len returns the euclidean length of v
func (v Vec2) Len() float64 { return math.Hypot(v.X, v.Y) }

// Dist returns the euclidean distance between v and o
func (v Vec2) Dist(o Vec2) float64 { return math.Hypot(v.X-o.X, v.Y-o.Y) }

// Viewport is the size of the render surface the world is scaled from
type Viewport struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// RoadPoint is one sampled centreline point of a road
type RoadPoint struct {
	Position Vec2    `json:"position"`
	Width    float64 `json:"width"`
}

// RoadSegment is a straight road sampled at bounded intervals
type RoadSegment struct {
	ID          string      `json:"id"`
	Orientation Orientation `json:"orientation"`
	IsMainRoad  bool        `json:"is_main_road"`
	Width       float64     `json:"width"`
	Points      []RoadPoint `json:"points"`
}

// RoadNetwork is the immutable drivable area of the world
type RoadNetwork struct {
	Width    float64       `json:"width"`
	Height   float64       `json:"height"`
	Segments []RoadSegment `json:"segments"`
}

// Building is a static block drawn between roads
type Building struct {
	Min Vec2 `json:"min"`
	Max Vec2 `json:"max"`
}

// RoadElement is a scripted element that can trigger a scenario once
type RoadElement struct {
	ID        int         `json:"id"`
	Kind      ElementKind `json:"kind"`
	Position  Vec2        `json:"position"`
	Light     LightState  `json:"light,omitempty"`
	Triggered bool        `json:"triggered"`
}

// Vehicle is the player's car
type Vehicle struct {
	Position        Vec2    `json:"position"`
	Heading         float64 `json:"heading"` // radians, 0 points along +X
	Speed           float64 `json:"speed"`   // world units per second, negative when reversing
	AngularVelocity float64 `json:"angular_velocity"`
	Width           float64 `json:"width"`
	Length          float64 `json:"length"`
}

// VehicleMode is the controller state
type VehicleMode string

const (
	Driving VehicleMode = "driving"
	Stopped VehicleMode = "stopped"
)

// Phase is the scenario engine state
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhasePresenting Phase = "presenting"
	PhaseFinished   Phase = "finished"
)

// Scenario is one authored driving theory question
type Scenario struct {
	ID                 string      `json:"id"`
	Title              string      `json:"title"`
	Prompt             string      `json:"prompt"`
	Options            []string    `json:"options"`
	CorrectOptionIndex int         `json:"correct_option_index"`
	Explanation        string      `json:"explanation"`
	TriggerKind        ElementKind `json:"trigger_kind"`
}

// ScenarioResult records the answer given to one scenario
type ScenarioResult struct {
	ScenarioID     string      `json:"scenario_id"`
	ElementKind    ElementKind `json:"element_kind"`
	SelectedOption int         `json:"selected_option"`
	CorrectOption  int         `json:"correct_option"`
	IsCorrect      bool        `json:"is_correct"`
	PointsEarned   int         `json:"points_earned"`
	AnsweredAt     time.Time   `json:"answered_at"`
}

// RunStats accumulates the outcome of one run
type RunStats struct {
	RunID              string           `json:"run_id"`
	ScenariosCompleted int              `json:"scenarios_completed"`
	CorrectCount       int              `json:"correct_count"`
	Score              int              `json:"score"`
	StartedAt          time.Time        `json:"started_at"`
	PerScenario        []ScenarioResult `json:"per_scenario"`
}

// SubmissionPayload is handed to the external results collaborator
type SubmissionPayload struct {
	RunID                   string           `json:"run_id" bson:"run_id"`
	ScenariosCompletedCount int              `json:"scenarios_completed_count" bson:"scenarios_completed_count"`
	CorrectCount            int              `json:"correct_count" bson:"correct_count"`
	WrongCount              int              `json:"wrong_count" bson:"wrong_count"`
	Score                   int              `json:"score" bson:"score"`
	ScorePercentage         float64          `json:"score_percentage" bson:"score_percentage"`
	ElapsedSeconds          float64          `json:"elapsed_seconds" bson:"elapsed_seconds"`
	PerScenario             []ScenarioResult `json:"per_scenario" bson:"per_scenario"`
	SubmittedAt             time.Time        `json:"submitted_at" bson:"submitted_at"`
}

// Acknowledgment is the collaborator's reply to a submission
type Acknowledgment struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// SubmissionState tracks the asynchronous result hand-off
type SubmissionState string

const (
	SubmissionNotStarted SubmissionState = "not_started"
	SubmissionPending    SubmissionState = "pending"
	SubmissionSubmitted  SubmissionState = "submitted"
	SubmissionFailed     SubmissionState = "failed"
	SubmissionSkipped    SubmissionState = "skipped"
)

// SubmissionStatus is the reporter's view of the hand-off
type SubmissionStatus struct {
	State   SubmissionState `json:"state"`
	Message string          `json:"message,omitempty"`
}

// NoticeKind classifies messages on the advisory channel
type NoticeKind string

const (
	NoticeAdvisory   NoticeKind = "advisory"
	NoticeTrigger    NoticeKind = "trigger"
	NoticeAnswer     NoticeKind = "answer"
	NoticeFinished   NoticeKind = "finished"
	NoticeSubmission NoticeKind = "submission"
	NoticeFatal      NoticeKind = "fatal"
	NoticePause      NoticeKind = "pause"
	NoticeReset      NoticeKind = "reset"
)

// Notice is a user-visible, non-blocking message
type Notice struct {
	Seq     uint64     `json:"seq"` // increases by one per notice over the simulation's lifetime
	Kind    NoticeKind `json:"kind"`
	Message string     `json:"message"`
	Frame   uint64     `json:"frame"`
}

// ScenarioView is the presentable part of the current scenario
type ScenarioView struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Prompt      string          `json:"prompt"`
	Options     []string        `json:"options"`
	ElementKind ElementKind     `json:"element_kind"`
	Answered    bool            `json:"answered"`
	Result      *ScenarioResult `json:"result,omitempty"`
	Explanation string          `json:"explanation,omitempty"` // revealed once answered
}

// State is a serializable snapshot of a simulation
type State struct {
	ConfigName  string             `json:"config_name"`
	Frame       uint64             `json:"frame"`
	Phase       Phase              `json:"phase"`
	VehicleMode VehicleMode        `json:"vehicle_mode"`
	Paused      bool               `json:"paused"`
	Vehicle     Vehicle            `json:"vehicle"`
	SpeedKmh    float64            `json:"speed_kmh"`
	OnRoad      bool               `json:"on_road"`
	Scenario    *ScenarioView      `json:"scenario,omitempty"`
	Stats       RunStats           `json:"stats"`
	Remaining   int                `json:"remaining"`
	Advisory    string             `json:"advisory,omitempty"`
	Notices     []Notice           `json:"notices"`
	Elements    []RoadElement      `json:"elements"`
	Submission  SubmissionStatus   `json:"submission"`
	Payload     *SubmissionPayload `json:"payload,omitempty"`
	Fatal       string             `json:"fatal,omitempty"`
	LoopActive  bool               `json:"loop_active"`
}
