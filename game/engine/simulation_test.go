package engine

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSim(t *testing.T, opts ...Option) *Simulation {
	t.Helper()
	tuning := DefaultTuning()
	tuning.Seed = 42
	sim, err := NewSimulation(tuning, nil, opts...)
	require.NoError(t, err)
	return sim
}

// frameClock hands out frame timestamps 16ms apart
type frameClock struct {
	now time.Time
}

func newFrameClock() *frameClock {
	return &frameClock{now: time.Unix(1700000000, 0)}
}

func (c *frameClock) next() time.Time {
	c.now = c.now.Add(16 * time.Millisecond)
	return c.now
}

func (c *frameClock) skip(d time.Duration) time.Time {
	c.now = c.now.Add(d)
	return c.now
}

// mainRoadStops are element positions on the main road, one per scenario
var mainRoadStops = []Vec2{{1200, 2000}, {1200, 1600}, {1200, 1400}, {1200, 1200}, {1200, 800}}

// playRun drives a simulation through a whole run, answering every scenario
// correctly when correct is set.
func playRun(t *testing.T, sim *Simulation, loop *RenderLoop, clock *frameClock, correct bool) {
	t.Helper()
	for i, stop := range mainRoadStops {
		sim.controller.Place(stop, -math.Pi/2)
		loop.Frame(clock.next(), nil)
		require.Equal(t, PhasePresenting, sim.Phase(), "scenario %d", i)
		require.Equal(t, Stopped, sim.VehicleMode())

		option := 0
		if correct {
			option = sim.scenarios.current.CorrectOptionIndex
		} else if sim.scenarios.current.CorrectOptionIndex == 0 {
			option = 1
		}
		_, ok := sim.SubmitAnswer(option)
		require.True(t, ok)
		if i < len(mainRoadStops)-1 {
			sim.scheduler.Advance(sim.tuning.Scenario.DisplayDelay)
			require.Equal(t, PhaseIdle, sim.Phase())
		}
	}
	require.Equal(t, PhaseFinished, sim.Phase())
}

func TestNewSimulationRejectsInvalidInput(t *testing.T) {
	bad := DefaultTuning()
	bad.Vehicle.Width = 0
	_, err := NewSimulation(bad, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tuning validation")

	_, err = NewSimulation(DefaultTuning(), DefaultCatalog()[:2])
	require.Error(t, err)
	assert.Contains(t, err.Error(), "catalog validation")
}

func TestInitialSnapshot(t *testing.T) {
	sim := newTestSim(t)
	st := sim.Snapshot()

	assert.Equal(t, "standard", st.ConfigName)
	assert.Equal(t, PhaseIdle, st.Phase)
	assert.Equal(t, Driving, st.VehicleMode)
	assert.Equal(t, sim.World().Start, st.Vehicle.Position)
	assert.Equal(t, 0.0, st.SpeedKmh)
	assert.True(t, st.OnRoad)
	assert.True(t, st.LoopActive)
	assert.Nil(t, st.Scenario)
	assert.Nil(t, st.Payload)
	assert.Equal(t, ScenariosPerRun, st.Remaining)
	assert.Len(t, st.Elements, 12)
	assert.NotEmpty(t, st.Stats.RunID)
	assert.Equal(t, SubmissionNotStarted, st.Submission.State)
	require.Len(t, st.Notices, 1)
	assert.Equal(t, sim.Tuning().Messages.Welcome, st.Notices[0].Message)
}

func TestHandleInput(t *testing.T) {
	sim := newTestSim(t)

	require.NoError(t, sim.HandleInput(InputEvent{Type: KeyDown, Control: ControlAccelerate}))
	require.NoError(t, sim.HandleInput(InputEvent{Type: KeyDown, Control: ControlSteerLeft}))
	assert.Equal(t, InputState{Accelerate: true, SteerLeft: true}, sim.Input())

	require.NoError(t, sim.HandleInput(InputEvent{Type: KeyUp, Control: ControlAccelerate}))
	assert.Equal(t, InputState{SteerLeft: true}, sim.Input())

	require.NoError(t, sim.HandleInput(InputEvent{Type: CommandEvent, Command: CommandTogglePause}))
	assert.True(t, sim.Paused())
}

func TestHandleInputRejectsUnknownEvents(t *testing.T) {
	sim := newTestSim(t)
	tests := []struct {
		name string
		ev   InputEvent
	}{
		{"unknown type", InputEvent{Type: "jump"}},
		{"unknown control", InputEvent{Type: KeyDown, Control: "horn"}},
		{"missing control", InputEvent{Type: KeyUp}},
		{"unknown command", InputEvent{Type: CommandEvent, Command: "self_destruct"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := sim.HandleInput(tt.ev)
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}
	assert.Equal(t, InputState{}, sim.Input())
}

func TestProceedBeforeFinish(t *testing.T) {
	sim := newTestSim(t)
	_, err := sim.Proceed()
	assert.ErrorIs(t, err, ErrNotFinished)

	err = sim.HandleInput(InputEvent{Type: CommandEvent, Command: CommandProceed})
	assert.ErrorIs(t, err, ErrNotFinished)
	assert.Nil(t, sim.Payload())
}

func TestResetStartsFreshRun(t *testing.T) {
	sim := newTestSim(t)
	loop := NewRenderLoop(sim)
	clock := newFrameClock()
	firstRun := sim.Stats().RunID

	sim.controller.Place(Vec2{1200, 2000}, -math.Pi/2)
	loop.Frame(clock.next(), nil)
	require.Equal(t, PhasePresenting, sim.Phase())
	_, ok := sim.SubmitAnswer(0)
	require.True(t, ok)
	require.Equal(t, 1, sim.scheduler.PendingCount())
	sim.SetInput(InputState{Accelerate: true})

	require.NoError(t, sim.HandleInput(InputEvent{Type: CommandEvent, Command: CommandReset}))

	st := sim.Snapshot()
	assert.NotEqual(t, firstRun, st.Stats.RunID)
	assert.Equal(t, 0, sim.scheduler.PendingCount(), "pending timers are cancelled")
	assert.Equal(t, PhaseIdle, st.Phase)
	assert.Equal(t, Driving, st.VehicleMode)
	assert.Equal(t, sim.World().Start, st.Vehicle.Position)
	assert.Zero(t, st.Stats.ScenariosCompleted)
	assert.Equal(t, ScenariosPerRun, st.Remaining)
	assert.Equal(t, InputState{}, sim.Input())
	for _, el := range st.Elements {
		assert.False(t, el.Triggered)
	}
}

func TestFullRunPresentsDistinctScenarios(t *testing.T) {
	sim := newTestSim(t)
	loop := NewRenderLoop(sim)
	playRun(t, sim, loop, newFrameClock(), true)

	stats := sim.Stats()
	assert.Equal(t, ScenariosPerRun, stats.ScenariosCompleted)
	assert.Equal(t, 100, stats.Score)

	seen := make(map[string]bool)
	for _, r := range stats.PerScenario {
		assert.False(t, seen[r.ScenarioID])
		seen[r.ScenarioID] = true
	}

	p, err := sim.Proceed()
	require.NoError(t, err)
	assert.InDelta(t, 100.0, p.ScorePercentage, 1e-9)
	assert.Equal(t, stats.RunID, p.RunID)
	assert.Equal(t, SubmissionSkipped, sim.Submission().State)

	// A second proceed is harmless.
	require.NoError(t, sim.HandleInput(InputEvent{Type: CommandEvent, Command: CommandProceed}))
	assert.Equal(t, p, *sim.Payload())
}

func TestFastFrameDoesNotSkipElements(t *testing.T) {
	tuning := DefaultTuning()
	tuning.Seed = 42
	tuning.Vehicle.MaxSpeedKmh = 600
	tuning.Vehicle.Acceleration = 100000
	sim, err := NewSimulation(tuning, nil)
	require.NoError(t, err)
	loop := NewRenderLoop(sim)
	clock := newFrameClock()

	loop.Frame(clock.next(), nil)
	sim.controller.Place(Vec2{1200, 2150}, -math.Pi/2)
	sim.SetInput(InputState{Accelerate: true})
	loop.Frame(clock.skip(100*time.Millisecond), nil)

	require.Less(t, sim.Vehicle().Position.Y, 1900.0, "the frame carried the car past the light")
	require.Equal(t, PhasePresenting, sim.Phase())
	assert.Equal(t, TrafficLight, sim.scenarios.element.Kind)
	assert.Equal(t, Vec2{1200, 2000}, sim.scenarios.element.Position)
}

func TestOffRoadAdvisoryShowsAndClears(t *testing.T) {
	var notices []Notice
	sim := newTestSim(t, WithNoticeListener(func(n Notice) { notices = append(notices, n) }))
	loop := NewRenderLoop(sim)
	clock := newFrameClock()

	loop.Frame(clock.next(), nil)
	sim.controller.Place(Vec2{1230, 1000}, 0)
	sim.controller.vehicle.Speed = 300
	loop.Frame(clock.skip(100*time.Millisecond), nil)

	st := sim.Snapshot()
	assert.False(t, st.OnRoad)
	assert.Equal(t, sim.Tuning().Messages.StayOnRoad, st.Advisory)
	require.NotEmpty(t, notices)
	assert.Equal(t, NoticeAdvisory, notices[len(notices)-1].Kind)

	sim.controller.Stop()
	sim.controller.Resume()
	for i := 0; i < 25; i++ {
		loop.Frame(clock.skip(100*time.Millisecond), nil)
	}
	st = sim.Snapshot()
	assert.True(t, st.OnRoad)
	assert.Empty(t, st.Advisory)
}

func TestNoticesAreBounded(t *testing.T) {
	sim := newTestSim(t)
	for i := 0; i < 40; i++ {
		sim.TogglePause()
	}
	st := sim.Snapshot()
	assert.Len(t, st.Notices, MaxRecentNotices)
	assert.False(t, st.Paused)
	assert.Equal(t, NoticePause, st.Notices[MaxRecentNotices-1].Kind)

	// Sequence numbers keep counting after older notices are dropped
	for i := 1; i < len(st.Notices); i++ {
		assert.Equal(t, st.Notices[i-1].Seq+1, st.Notices[i].Seq)
	}
	assert.Greater(t, st.Notices[0].Seq, uint64(40-MaxRecentNotices))
}

func TestSnapshotIsACopy(t *testing.T) {
	sim := newTestSim(t)
	st := sim.Snapshot()
	st.Elements[0].Triggered = true
	st.Notices[0].Message = "changed"

	again := sim.Snapshot()
	assert.False(t, again.Elements[0].Triggered)
	assert.NotEqual(t, "changed", again.Notices[0].Message)
}
