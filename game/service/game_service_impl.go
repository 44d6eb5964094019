package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/wricardo/drivesim/game/engine"
)

// MaxDriveSeconds caps how long a single Drive call may hold the controls
const MaxDriveSeconds = 10.0

var ErrInvalidDrive = errors.New("invalid drive request")

// gameServiceImpl implements the GameService interface
type gameServiceImpl struct {
	sessions     SessionManager
	configs      ConfigManager
	pollInterval time.Duration
}

// NewGameService creates a new game service instance
func NewGameService(sessions SessionManager, configs ConfigManager) GameService {
	return &gameServiceImpl{
		sessions:     sessions,
		configs:      configs,
		pollInterval: 50 * time.Millisecond,
	}
}

// getConfigID returns the config_id for a given profile name, used for consistent API responses
func (s *gameServiceImpl) getConfigID(name string) string {
	availableConfigs, err := s.configs.ListConfigs()
	if err == nil {
		for _, cfg := range availableConfigs {
			if cfg.Name == name {
				return cfg.ConfigID
			}
		}
	}
	if name == "" {
		return "default"
	}
	return name
}

// session looks a session up and marks it as used
func (s *gameServiceImpl) session(id string) (*Session, error) {
	sess, err := s.sessions.Get(id)
	if err != nil {
		return nil, fmt.Errorf("session not found: %w", err)
	}
	_ = s.sessions.UpdateLastAccessed(id)
	return sess, nil
}

// snapshot runs fn on the session's runner and returns the state afterwards
func (s *gameServiceImpl) snapshot(ctx context.Context, sess *Session, fn func(*engine.Simulation) error) (*engine.State, error) {
	var st engine.State
	err := sess.Runner.Do(ctx, func(sim *engine.Simulation) error {
		if fn != nil {
			if err := fn(sim); err != nil {
				return err
			}
		}
		st = sim.Snapshot()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &st, nil
}

func (s *gameServiceImpl) info(ctx context.Context, sess *Session, configID string) (*SessionInfo, error) {
	st, err := s.snapshot(ctx, sess, nil)
	if err != nil {
		return nil, err
	}
	if configID == "" {
		configID = s.getConfigID(sess.Tuning.Name)
	}
	return &SessionInfo{
		ID:             sess.ID,
		ConfigName:     configID,
		CreatedAt:      sess.CreatedAt,
		LastAccessedAt: sess.LastAccessedAt,
		State:          st,
		Tuning:         sess.Tuning,
	}, nil
}

// CreateSession creates a new driving session
func (s *gameServiceImpl) CreateSession(ctx context.Context, configName string) (*SessionInfo, error) {
	var tuning *engine.Tuning
	var err error
	if configName != "" {
		tuning, err = s.configs.LoadConfig(configName)
		if err != nil {
			// Provide helpful error message with available options
			if strings.Contains(err.Error(), "configuration not found") {
				availableConfigs, listErr := s.configs.ListConfigs()
				if listErr == nil && len(availableConfigs) > 0 {
					var configIDs []string
					for _, cfg := range availableConfigs {
						configIDs = append(configIDs, cfg.ConfigID)
					}
					return nil, fmt.Errorf("config '%s' not found. Available configs: %v", configName, configIDs)
				}
				return nil, fmt.Errorf("config '%s' not found. Use /api/configs to list available configurations", configName)
			}
			return nil, fmt.Errorf("failed to load config %s: %w", configName, err)
		}
	} else {
		tuning = s.configs.GetDefault()
	}

	// Let session manager generate a proper 4-character ID
	sess, err := s.sessions.Create("", tuning)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return s.info(ctx, sess, configName)
}

// GetSession retrieves session information
func (s *gameServiceImpl) GetSession(ctx context.Context, sessionID string) (*SessionInfo, error) {
	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	return s.info(ctx, sess, "")
}

// ListSessions returns all active sessions
func (s *gameServiceImpl) ListSessions(ctx context.Context) ([]*SessionInfo, error) {
	sessions := s.sessions.List()
	result := make([]*SessionInfo, 0, len(sessions))
	for _, sess := range sessions {
		info, err := s.info(ctx, sess, "")
		if err != nil {
			// Session stopped while listing
			continue
		}
		result = append(result, info)
	}
	return result, nil
}

// DeleteSession removes a session and stops its runner
func (s *gameServiceImpl) DeleteSession(ctx context.Context, sessionID string) error {
	return s.sessions.Delete(sessionID)
}

// SendInput applies one key transition or command
func (s *gameServiceImpl) SendInput(ctx context.Context, sessionID string, ev engine.InputEvent) (*engine.State, error) {
	if err := ev.Validate(); err != nil {
		return nil, err
	}
	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	return s.snapshot(ctx, sess, func(sim *engine.Simulation) error {
		return sim.HandleInput(ev)
	})
}

// Drive holds the requested controls for up to req.Seconds of wall time and
// releases them. It stops early when a scenario comes up, the run finishes,
// the loop stops or the session is paused.
func (s *gameServiceImpl) Drive(ctx context.Context, sessionID string, req DriveRequest) (*DriveResult, error) {
	if req.Seconds <= 0 || req.Seconds > MaxDriveSeconds {
		return nil, fmt.Errorf("%w: seconds must be in (0, %g]", ErrInvalidDrive, MaxDriveSeconds)
	}
	var in engine.InputState
	for _, c := range req.Controls {
		if err := (engine.InputEvent{Type: engine.KeyDown, Control: c}).Validate(); err != nil {
			return nil, err
		}
		switch c {
		case engine.ControlAccelerate:
			in.Accelerate = true
		case engine.ControlBrake:
			in.Brake = true
		case engine.ControlSteerLeft:
			in.SteerLeft = true
		case engine.ControlSteerRight:
			in.SteerRight = true
		}
	}

	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}

	start, err := s.snapshot(ctx, sess, func(sim *engine.Simulation) error {
		if sim.Phase() == engine.PhaseIdle && !sim.Paused() {
			sim.SetInput(in)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	began := time.Now()
	reason := driveStopReason(start)
	if reason == "" {
		reason, err = s.holdControls(ctx, sess, began.Add(time.Duration(req.Seconds*float64(time.Second))))
	}

	// Always release, even when the caller has gone away.
	end, releaseErr := s.snapshot(context.WithoutCancel(ctx), sess, func(sim *engine.Simulation) error {
		sim.SetInput(engine.InputState{})
		return nil
	})
	if err != nil {
		return nil, err
	}
	if releaseErr != nil {
		return nil, releaseErr
	}

	result := &DriveResult{
		StartPosition: start.Vehicle.Position,
		EndPosition:   end.Vehicle.Position,
		Distance:      start.Vehicle.Position.Dist(end.Vehicle.Position),
		Elapsed:       time.Since(began).Seconds(),
		StopReason:    reason,
		Advisory:      end.Advisory,
		State:         end,
	}
	var seen uint64
	if len(start.Notices) > 0 {
		seen = start.Notices[len(start.Notices)-1].Seq
	}
	for _, n := range end.Notices {
		if n.Seq > seen {
			result.Events = append(result.Events, n)
			if n.Kind == engine.NoticeAdvisory {
				result.OffRoad = true
			}
		}
	}
	return result, nil
}

func (s *gameServiceImpl) holdControls(ctx context.Context, sess *Session, deadline time.Time) (string, error) {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case now := <-ticker.C:
			st, err := sess.Runner.Snapshot(ctx)
			if err != nil {
				if errors.Is(err, engine.ErrRunnerStopped) {
					return StopLoopStopped, nil
				}
				return "", err
			}
			if reason := driveStopReason(&st); reason != "" {
				return reason, nil
			}
			if !now.Before(deadline) {
				return StopDuration, nil
			}
		}
	}
}

// driveStopReason reports why driving cannot continue, or "" if it can
func driveStopReason(st *engine.State) string {
	switch {
	case !st.LoopActive:
		return StopLoopStopped
	case st.Phase == engine.PhaseFinished:
		return StopFinished
	case st.Phase == engine.PhasePresenting:
		return StopScenario
	case st.Paused:
		return StopPaused
	}
	return ""
}

// SubmitAnswer answers the scenario on screen. Option indexes start at 0.
func (s *gameServiceImpl) SubmitAnswer(ctx context.Context, sessionID string, option int) (*AnswerResult, error) {
	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}

	out := &AnswerResult{}
	st, err := s.snapshot(ctx, sess, func(sim *engine.Simulation) error {
		res, ok := sim.SubmitAnswer(option)
		out.Accepted = ok
		if ok {
			out.Result = &res
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	out.State = st

	if out.Accepted && st.Scenario != nil {
		out.Explanation = st.Scenario.Explanation
	}
	switch {
	case !out.Accepted:
		out.Message = "no scenario is waiting for an answer"
	case out.Result.IsCorrect:
		out.Message = fmt.Sprintf(sess.Tuning.Messages.Correct, out.Result.PointsEarned)
	default:
		out.Message = fmt.Sprintf(sess.Tuning.Messages.Incorrect, out.Explanation)
	}
	return out, nil
}

// Proceed finalizes a finished run and starts the result hand-off
func (s *gameServiceImpl) Proceed(ctx context.Context, sessionID string) (*ResultInfo, error) {
	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	st, err := s.snapshot(ctx, sess, func(sim *engine.Simulation) error {
		if _, err := sim.Proceed(); err != nil && !errors.Is(err, engine.ErrAlreadyFinalized) {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resultInfo(st), nil
}

// Reset starts a new run in the session
func (s *gameServiceImpl) Reset(ctx context.Context, sessionID string) (*engine.State, error) {
	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	return s.snapshot(ctx, sess, func(sim *engine.Simulation) error {
		sim.Reset()
		return nil
	})
}

// TogglePause pauses or resumes the session
func (s *gameServiceImpl) TogglePause(ctx context.Context, sessionID string) (*engine.State, error) {
	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	return s.snapshot(ctx, sess, func(sim *engine.Simulation) error {
		sim.TogglePause()
		return nil
	})
}

// GetState returns the current snapshot
func (s *gameServiceImpl) GetState(ctx context.Context, sessionID string) (*engine.State, error) {
	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	return s.snapshot(ctx, sess, nil)
}

// GetResult returns the run statistics and, once proceeded, the payload
func (s *gameServiceImpl) GetResult(ctx context.Context, sessionID string) (*ResultInfo, error) {
	st, err := s.GetState(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return resultInfo(st), nil
}

func resultInfo(st *engine.State) *ResultInfo {
	return &ResultInfo{
		Finished:   st.Phase == engine.PhaseFinished,
		Payload:    st.Payload,
		Submission: st.Submission,
		Stats:      st.Stats,
	}
}

// GetFrame returns the last painted frame as a display list
func (s *gameServiceImpl) GetFrame(ctx context.Context, sessionID string) (*engine.DisplayList, error) {
	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	return sess.Runner.DisplayList(ctx)
}

// GetWorld returns the road network and elements of a session
func (s *gameServiceImpl) GetWorld(ctx context.Context, sessionID string) (*WorldInfo, error) {
	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	var info WorldInfo
	err = sess.Runner.Do(ctx, func(sim *engine.Simulation) error {
		w := sim.World()
		info = WorldInfo{
			Network:      w.Network,
			Elements:     w.ElementsSnapshot(),
			Buildings:    append([]engine.Building(nil), w.Buildings...),
			Start:        w.Start,
			StartHeading: w.StartHeading,
			Viewport:     sim.Tuning().Viewport,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &info, nil
}

// ListConfigs returns available tuning profiles
func (s *gameServiceImpl) ListConfigs(ctx context.Context) ([]*ConfigInfo, error) {
	return s.configs.ListConfigs()
}

// LoadConfig loads a tuning profile
func (s *gameServiceImpl) LoadConfig(ctx context.Context, configName string) (*engine.Tuning, error) {
	return s.configs.LoadConfig(configName)
}

// SaveConfig saves a tuning profile
func (s *gameServiceImpl) SaveConfig(ctx context.Context, configName string, tuning *engine.Tuning) error {
	return s.configs.SaveConfig(configName, tuning)
}

// ListScenarios returns the built-in scenario catalog
func (s *gameServiceImpl) ListScenarios(ctx context.Context) ([]engine.Scenario, error) {
	return engine.DefaultCatalog(), nil
}
