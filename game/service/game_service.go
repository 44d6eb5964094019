package service

import (
	"context"
	"time"

	"github.com/wricardo/drivesim/game/engine"
)

// GameService defines all driving-session operations
type GameService interface {
	// Session Management
	CreateSession(ctx context.Context, configName string) (*SessionInfo, error)
	GetSession(ctx context.Context, sessionID string) (*SessionInfo, error)
	ListSessions(ctx context.Context) ([]*SessionInfo, error)
	DeleteSession(ctx context.Context, sessionID string) error

	// Driving and scenarios
	SendInput(ctx context.Context, sessionID string, ev engine.InputEvent) (*engine.State, error)
	Drive(ctx context.Context, sessionID string, req DriveRequest) (*DriveResult, error)
	SubmitAnswer(ctx context.Context, sessionID string, option int) (*AnswerResult, error)
	Proceed(ctx context.Context, sessionID string) (*ResultInfo, error)
	Reset(ctx context.Context, sessionID string) (*engine.State, error)
	TogglePause(ctx context.Context, sessionID string) (*engine.State, error)

	// Views
	GetState(ctx context.Context, sessionID string) (*engine.State, error)
	GetResult(ctx context.Context, sessionID string) (*ResultInfo, error)
	GetFrame(ctx context.Context, sessionID string) (*engine.DisplayList, error)
	GetWorld(ctx context.Context, sessionID string) (*WorldInfo, error)

	// Configuration
	ListConfigs(ctx context.Context) ([]*ConfigInfo, error)
	LoadConfig(ctx context.Context, configName string) (*engine.Tuning, error)
	SaveConfig(ctx context.Context, configName string, tuning *engine.Tuning) error
	ListScenarios(ctx context.Context) ([]engine.Scenario, error)
}

// SessionManager defines session storage operations
type SessionManager interface {
	Create(id string, tuning *engine.Tuning) (*Session, error)
	Get(id string) (*Session, error)
	List() []*Session
	Delete(id string) error
	UpdateLastAccessed(id string) error
}

// ConfigManager handles tuning profile loading
type ConfigManager interface {
	LoadConfig(name string) (*engine.Tuning, error)
	ListConfigs() ([]*ConfigInfo, error)
	GetDefault() *engine.Tuning
	SaveConfig(name string, tuning *engine.Tuning) error
}

// Session represents an active driving session. The simulation is only ever
// touched on the runner goroutine.
type Session struct {
	ID             string
	Runner         *engine.Runner
	Tuning         *engine.Tuning
	CreatedAt      time.Time
	LastAccessedAt time.Time
}
