package service

import (
	"time"

	"github.com/wricardo/drivesim/game/engine"
)

// SessionInfo provides information about a driving session
type SessionInfo struct {
	ID             string         `json:"id"`
	ConfigName     string         `json:"config_name"`
	CreatedAt      time.Time      `json:"created_at"`
	LastAccessedAt time.Time      `json:"last_accessed_at"`
	State          *engine.State  `json:"state"`
	Tuning         *engine.Tuning `json:"tuning,omitempty"`
}

// DriveRequest holds a set of controls down for a while
type DriveRequest struct {
	Controls []engine.Control `json:"controls"`
	Seconds  float64          `json:"seconds"`
}

// Drive stop reasons
const (
	StopDuration    = "duration"
	StopScenario    = "scenario"
	StopFinished    = "finished"
	StopLoopStopped = "loop_stopped"
	StopPaused      = "paused"
)

// DriveResult summarises a Drive call
type DriveResult struct {
	StartPosition engine.Vec2     `json:"start_position"`
	EndPosition   engine.Vec2     `json:"end_position"`
	Distance      float64         `json:"distance"`
	Elapsed       float64         `json:"elapsed_seconds"`
	StopReason    string          `json:"stop_reason"`
	OffRoad       bool            `json:"off_road,omitempty"`
	Advisory      string          `json:"advisory,omitempty"`
	State         *engine.State   `json:"state"`
	Events        []engine.Notice `json:"events,omitempty"`
}

// AnswerResult is the outcome of answering the scenario on screen
type AnswerResult struct {
	Accepted    bool                   `json:"accepted"`
	Result      *engine.ScenarioResult `json:"result,omitempty"`
	Explanation string                 `json:"explanation,omitempty"`
	Message     string                 `json:"message"`
	State       *engine.State          `json:"state"`
}

// ResultInfo is the finished-run summary and the hand-off status
type ResultInfo struct {
	Finished   bool                      `json:"finished"`
	Payload    *engine.SubmissionPayload `json:"payload,omitempty"`
	Submission engine.SubmissionStatus   `json:"submission"`
	Stats      engine.RunStats           `json:"stats"`
}

// WorldInfo is the static part of a session's world
type WorldInfo struct {
	Network      engine.RoadNetwork   `json:"network"`
	Elements     []engine.RoadElement `json:"elements"`
	Buildings    []engine.Building    `json:"buildings"`
	Start        engine.Vec2          `json:"start"`
	StartHeading float64              `json:"start_heading"`
	Viewport     engine.Viewport      `json:"viewport"`
}

// ConfigInfo provides information about a tuning profile
type ConfigInfo struct {
	Filename    string  `json:"filename"`
	ConfigID    string  `json:"config_id"` // The identifier to use for session creation
	Name        string  `json:"name"`      // Display name
	Description string  `json:"description"`
	MaxSpeedKmh float64 `json:"max_speed_kmh"`
	WorldWidth  float64 `json:"world_width"`
	WorldHeight float64 `json:"world_height"`
	Elements    int     `json:"elements"`
}
