package service_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wricardo/drivesim/game/engine"
	"github.com/wricardo/drivesim/game/service"
)

var errMockNotFound = errors.New("session not found")

// MockSessionManager implements service.SessionManager for testing
type MockSessionManager struct {
	mu       sync.Mutex
	sessions map[string]*service.Session
}

func NewMockSessionManager(t *testing.T) *MockSessionManager {
	m := &MockSessionManager{sessions: make(map[string]*service.Session)}
	t.Cleanup(func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		for _, s := range m.sessions {
			s.Runner.Stop()
		}
	})
	return m
}

func (m *MockSessionManager) Create(id string, tuning *engine.Tuning) (*service.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Generate ID if empty (mimics real session manager behavior)
	if id == "" {
		id = fmt.Sprintf("test_%d", len(m.sessions)+1)
	}
	if _, exists := m.sessions[id]; exists {
		return nil, errors.New("session already exists")
	}

	sim, err := engine.NewSimulation(tuning, nil)
	if err != nil {
		return nil, err
	}
	runner := engine.NewRunner(engine.NewRenderLoop(sim), engine.RunnerHooks{})
	runner.Start()

	session := &service.Session{
		ID:             id,
		Runner:         runner,
		Tuning:         tuning,
		CreatedAt:      time.Now(),
		LastAccessedAt: time.Now(),
	}
	m.sessions[id] = session
	return session, nil
}

func (m *MockSessionManager) Get(id string) (*service.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, exists := m.sessions[id]
	if !exists {
		return nil, errMockNotFound
	}
	return session, nil
}

func (m *MockSessionManager) List() []*service.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]*service.Session, 0, len(m.sessions))
	for _, session := range m.sessions {
		result = append(result, session)
	}
	return result
}

func (m *MockSessionManager) Delete(id string) error {
	m.mu.Lock()
	session, exists := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !exists {
		return errMockNotFound
	}
	session.Runner.Stop()
	return nil
}

func (m *MockSessionManager) UpdateLastAccessed(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if session, exists := m.sessions[id]; exists {
		session.LastAccessedAt = time.Now()
		return nil
	}
	return errMockNotFound
}

// MockConfigManager implements service.ConfigManager for testing
type MockConfigManager struct {
	mu      sync.Mutex
	configs map[string]*engine.Tuning
}

func NewMockConfigManager() *MockConfigManager {
	standard := engine.DefaultTuning()
	standard.Seed = 1

	learner := engine.DefaultTuning()
	learner.Name = "learner"
	learner.Description = "Slow car"
	learner.Vehicle.MaxSpeedKmh = 40
	learner.Seed = 2

	return &MockConfigManager{
		configs: map[string]*engine.Tuning{
			"standard": standard,
			"learner":  learner,
		},
	}
}

func (m *MockConfigManager) LoadConfig(name string) (*engine.Tuning, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if config, exists := m.configs[name]; exists {
		return config, nil
	}
	return nil, errors.New("configuration not found")
}

func (m *MockConfigManager) ListConfigs() ([]*service.ConfigInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var configs []*service.ConfigInfo
	for id, config := range m.configs {
		configs = append(configs, &service.ConfigInfo{
			Filename:    id + ".json",
			ConfigID:    id,
			Name:        config.Name,
			Description: config.Description,
			MaxSpeedKmh: config.Vehicle.MaxSpeedKmh,
		})
	}
	return configs, nil
}

func (m *MockConfigManager) GetDefault() *engine.Tuning {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.configs["standard"]
}

func (m *MockConfigManager) SaveConfig(name string, config *engine.Tuning) error {
	if err := engine.ValidateTuning(config); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.configs[name] = config
	return nil
}

func newTestService(t *testing.T) service.GameService {
	t.Helper()
	return service.NewGameService(NewMockSessionManager(t), NewMockConfigManager())
}

func newTestSession(t *testing.T, svc service.GameService) string {
	t.Helper()
	info, err := svc.CreateSession(context.Background(), "")
	require.NoError(t, err)
	return info.ID
}

func TestGameService_CreateSession(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	t.Run("with default config", func(t *testing.T) {
		info, err := svc.CreateSession(ctx, "")
		require.NoError(t, err)
		assert.NotEmpty(t, info.ID)
		assert.Equal(t, "standard", info.ConfigName)
		require.NotNil(t, info.State)
		assert.Equal(t, engine.PhaseIdle, info.State.Phase)
		assert.True(t, info.State.LoopActive)
		assert.Len(t, info.State.Elements, 12)
	})

	t.Run("with specific config", func(t *testing.T) {
		info, err := svc.CreateSession(ctx, "learner")
		require.NoError(t, err)
		assert.Equal(t, "learner", info.ConfigName)
		assert.Equal(t, 40.0, info.Tuning.Vehicle.MaxSpeedKmh)
	})

	t.Run("unknown config lists the alternatives", func(t *testing.T) {
		_, err := svc.CreateSession(ctx, "motorway")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "config 'motorway' not found")
		assert.Contains(t, err.Error(), "learner")
		assert.Contains(t, err.Error(), "standard")
	})
}

func TestGameService_SessionLifecycle(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	first := newTestSession(t, svc)
	second := newTestSession(t, svc)

	sessions, err := svc.ListSessions(ctx)
	require.NoError(t, err)
	assert.Len(t, sessions, 2)

	info, err := svc.GetSession(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, first, info.ID)

	require.NoError(t, svc.DeleteSession(ctx, second))
	_, err = svc.GetSession(ctx, second)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "session not found")

	sessions, err = svc.ListSessions(ctx)
	require.NoError(t, err)
	assert.Len(t, sessions, 1)
}

func TestGameService_UnknownSession(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.GetState(ctx, "missing")
	assert.ErrorIs(t, err, errMockNotFound)
	_, err = svc.SendInput(ctx, "missing", engine.InputEvent{Type: engine.KeyDown, Control: engine.ControlBrake})
	assert.ErrorIs(t, err, errMockNotFound)
	_, err = svc.Drive(ctx, "missing", service.DriveRequest{Seconds: 1})
	assert.ErrorIs(t, err, errMockNotFound)
	_, err = svc.SubmitAnswer(ctx, "missing", 0)
	assert.ErrorIs(t, err, errMockNotFound)
	_, err = svc.GetFrame(ctx, "missing")
	assert.ErrorIs(t, err, errMockNotFound)
}

func TestGameService_SendInput(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	id := newTestSession(t, svc)

	t.Run("rejects unknown controls", func(t *testing.T) {
		_, err := svc.SendInput(ctx, id, engine.InputEvent{Type: engine.KeyDown, Control: "horn"})
		assert.ErrorIs(t, err, engine.ErrInvalidInput)
	})

	t.Run("pause command", func(t *testing.T) {
		st, err := svc.SendInput(ctx, id, engine.InputEvent{Type: engine.CommandEvent, Command: engine.CommandTogglePause})
		require.NoError(t, err)
		assert.True(t, st.Paused)

		st, err = svc.TogglePause(ctx, id)
		require.NoError(t, err)
		assert.False(t, st.Paused)
	})
}

func TestGameService_Drive(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	t.Run("validates the request", func(t *testing.T) {
		id := newTestSession(t, svc)
		_, err := svc.Drive(ctx, id, service.DriveRequest{Seconds: 0})
		assert.ErrorIs(t, err, service.ErrInvalidDrive)
		_, err = svc.Drive(ctx, id, service.DriveRequest{Seconds: service.MaxDriveSeconds + 1})
		assert.ErrorIs(t, err, service.ErrInvalidDrive)
		_, err = svc.Drive(ctx, id, service.DriveRequest{Seconds: 1, Controls: []engine.Control{"fly"}})
		assert.ErrorIs(t, err, engine.ErrInvalidInput)
	})

	t.Run("accelerates up the main road and releases the controls", func(t *testing.T) {
		id := newTestSession(t, svc)
		result, err := svc.Drive(ctx, id, service.DriveRequest{
			Controls: []engine.Control{engine.ControlAccelerate},
			Seconds:  0.5,
		})
		require.NoError(t, err)
		assert.Equal(t, service.StopDuration, result.StopReason)
		assert.Greater(t, result.Distance, 0.0)
		// Start heading points to -Y
		assert.Less(t, result.EndPosition.Y, result.StartPosition.Y)
		assert.GreaterOrEqual(t, result.Elapsed, 0.5)
		assert.False(t, result.OffRoad)

		info, err := svc.GetSession(ctx, id)
		require.NoError(t, err)
		assert.True(t, info.State.OnRoad)
	})

	t.Run("paused session does not move", func(t *testing.T) {
		id := newTestSession(t, svc)
		_, err := svc.TogglePause(ctx, id)
		require.NoError(t, err)

		result, err := svc.Drive(ctx, id, service.DriveRequest{
			Controls: []engine.Control{engine.ControlAccelerate},
			Seconds:  2,
		})
		require.NoError(t, err)
		assert.Equal(t, service.StopPaused, result.StopReason)
		assert.Equal(t, 0.0, result.Distance)
		assert.Less(t, result.Elapsed, 1.0)
	})

	t.Run("cancelled context", func(t *testing.T) {
		id := newTestSession(t, svc)
		cctx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
		defer cancel()

		_, err := svc.Drive(cctx, id, service.DriveRequest{
			Controls: []engine.Control{engine.ControlAccelerate},
			Seconds:  5,
		})
		assert.ErrorIs(t, err, context.DeadlineExceeded)

		// Controls were released regardless
		st, err := svc.GetState(ctx, id)
		require.NoError(t, err)
		time.Sleep(200 * time.Millisecond)
		later, err := svc.GetState(ctx, id)
		require.NoError(t, err)
		assert.LessOrEqual(t, later.Vehicle.Speed, st.Vehicle.Speed)
	})
}

func TestGameService_SubmitAnswerWithoutScenario(t *testing.T) {
	svc := newTestService(t)
	id := newTestSession(t, svc)

	result, err := svc.SubmitAnswer(context.Background(), id, 0)
	require.NoError(t, err)
	assert.False(t, result.Accepted)
	assert.Nil(t, result.Result)
	assert.Equal(t, "no scenario is waiting for an answer", result.Message)
	assert.Equal(t, 0, result.State.Stats.Score)
}

func TestGameService_ProceedBeforeFinish(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	id := newTestSession(t, svc)

	_, err := svc.Proceed(ctx, id)
	assert.ErrorIs(t, err, engine.ErrNotFinished)

	result, err := svc.GetResult(ctx, id)
	require.NoError(t, err)
	assert.False(t, result.Finished)
	assert.Nil(t, result.Payload)
	assert.Equal(t, engine.SubmissionNotStarted, result.Submission.State)
}

func TestGameService_Reset(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	id := newTestSession(t, svc)

	before, err := svc.GetState(ctx, id)
	require.NoError(t, err)

	after, err := svc.Reset(ctx, id)
	require.NoError(t, err)
	assert.NotEqual(t, before.Stats.RunID, after.Stats.RunID)
	assert.Equal(t, engine.PhaseIdle, after.Phase)
	assert.Equal(t, 0, after.Stats.Score)
}

func TestGameService_Views(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	id := newTestSession(t, svc)

	t.Run("frame", func(t *testing.T) {
		frame, err := svc.GetFrame(ctx, id)
		require.NoError(t, err)
		assert.NotEmpty(t, frame.Ops)
		assert.Equal(t, 800.0, frame.Width)
	})

	t.Run("world", func(t *testing.T) {
		world, err := svc.GetWorld(ctx, id)
		require.NoError(t, err)
		assert.Len(t, world.Elements, 12)
		assert.NotEmpty(t, world.Network.Segments)
		assert.Equal(t, engine.Vec2{X: 1200, Y: 2280}, world.Start)
	})

	t.Run("scenarios", func(t *testing.T) {
		scenarios, err := svc.ListScenarios(ctx)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, len(scenarios), engine.ScenariosPerRun)
	})
}

func TestGameService_Configs(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	configs, err := svc.ListConfigs(ctx)
	require.NoError(t, err)
	assert.Len(t, configs, 2)

	custom := engine.DefaultTuning()
	custom.Name = "custom"
	custom.Vehicle.MaxSpeedKmh = 30
	require.NoError(t, svc.SaveConfig(ctx, "custom", custom))

	loaded, err := svc.LoadConfig(ctx, "custom")
	require.NoError(t, err)
	assert.Equal(t, 30.0, loaded.Vehicle.MaxSpeedKmh)

	info, err := svc.CreateSession(ctx, "custom")
	require.NoError(t, err)
	assert.True(t, strings.EqualFold(info.ConfigName, "custom"))

	bad := engine.DefaultTuning()
	bad.Vehicle.Friction = 2
	assert.Error(t, svc.SaveConfig(ctx, "bad", bad))
}
