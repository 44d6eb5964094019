package engine

import (
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/lucsky/cuid"
)

// Control is a held driving input
type Control string

const (
	ControlAccelerate Control = "accelerate"
	ControlBrake      Control = "brake"
	ControlSteerLeft  Control = "steer_left"
	ControlSteerRight Control = "steer_right"
)

// Command is a discrete, non driving input
type Command string

const (
	CommandTogglePause Command = "toggle_pause"
	CommandReset       Command = "reset_run"
	CommandProceed     Command = "proceed"
)

// InputEventType distinguishes key transitions from commands
type InputEventType string

const (
	KeyDown      InputEventType = "key_down"
	KeyUp        InputEventType = "key_up"
	CommandEvent InputEventType = "command"
)

// InputEvent is one user input, from a keyboard, pointer or remote client
type InputEvent struct {
	Type    InputEventType `json:"type"`
	Control Control        `json:"control,omitempty"`
	Command Command        `json:"command,omitempty"`
}

var (
	ErrInvalidInput = errors.New("invalid input event")
	ErrNotFinished  = errors.New("run is not finished")
)

// Validate checks that the event names a known control or command
func (e InputEvent) Validate() error {
	switch e.Type {
	case KeyDown, KeyUp:
		switch e.Control {
		case ControlAccelerate, ControlBrake, ControlSteerLeft, ControlSteerRight:
			return nil
		}
		return fmt.Errorf("%w: unknown control '%s'", ErrInvalidInput, e.Control)
	case CommandEvent:
		switch e.Command {
		case CommandTogglePause, CommandReset, CommandProceed:
			return nil
		}
		return fmt.Errorf("%w: unknown command '%s'", ErrInvalidInput, e.Command)
	}
	return fmt.Errorf("%w: unknown type '%s'", ErrInvalidInput, e.Type)
}

// Engine provides the operations a driving session exposes
type Engine interface {
	// Run lifecycle
	Reset()
	Proceed() (SubmissionPayload, error)
	TogglePause() bool

	// Input
	HandleInput(ev InputEvent) error
	SubmitAnswer(option int) (ScenarioResult, bool)

	// Views
	Snapshot() State
	World() *World
	Tuning() *Tuning
	Stats() RunStats
}

// Simulation ties the world, vehicle, scenario engine, timers and reporter
// together. It is not safe for concurrent use; one goroutine owns it.
type Simulation struct {
	tuning     *Tuning
	catalog    []Scenario
	world      *World
	controller *VehicleController
	scenarios  *ScenarioEngine
	scheduler  *Scheduler
	reporter   *ResultReporter
	painter    Painter

	rng      *rand.Rand
	clock    func() time.Time
	listener func(Notice)

	input         InputState
	paused        bool
	onRoad        bool
	lastPos       Vec2 // vehicle position before the current frame's tick
	advisory      string
	advisoryTimer *Timer
	fatal         string
	frame         uint64
	generation    uint64
	notices       []Notice
	noticeSeq     uint64
}

// Option configures a Simulation
type Option func(*Simulation)

// WithSink sets the collaborator that receives finished runs
func WithSink(sink ResultSink) Option {
	return func(s *Simulation) { s.reporter.sink = sink }
}

// WithRand sets the random source used to sample scenarios
func WithRand(rng *rand.Rand) Option {
	return func(s *Simulation) { s.rng = rng }
}

// WithClock sets the wall clock used for timestamps
func WithClock(clock func() time.Time) Option {
	return func(s *Simulation) { s.clock = clock }
}

// WithNoticeListener receives every notice as it is emitted
func WithNoticeListener(fn func(Notice)) Option {
	return func(s *Simulation) { s.listener = fn }
}

// NewSimulation creates a simulation and starts its first run. A nil catalog
// uses the built-in one.
func NewSimulation(tuning *Tuning, catalog []Scenario, opts ...Option) (*Simulation, error) {
	if err := ValidateTuning(tuning); err != nil {
		return nil, err
	}
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	if err := ValidateCatalog(catalog); err != nil {
		return nil, err
	}

	s := &Simulation{
		tuning:    tuning,
		catalog:   catalog,
		world:     NewWorld(tuning),
		scheduler: NewScheduler(),
		reporter:  NewResultReporter(nil, time.Duration(tuning.Scenario.ReportTimeout*float64(time.Second))),
		clock:     time.Now,
	}
	s.controller = NewVehicleController(s.world, tuning.Vehicle)
	s.scenarios = NewScenarioEngine(s.world, s.controller, s.scheduler, tuning.Scenario, tuning.Messages)
	s.scenarios.notify = s.emit

	for _, opt := range opts {
		opt(s)
	}
	if s.rng == nil {
		seed := tuning.Seed
		if seed == 0 {
			seed = time.Now().UnixNano()
		}
		s.rng = rand.New(rand.NewSource(seed))
	}
	s.scenarios.clock = s.clock
	s.reporter.clock = s.clock

	s.Reset()
	s.notices = nil
	if tuning.Messages.Welcome != "" {
		s.emit(NoticeAdvisory, tuning.Messages.Welcome)
	}
	return s, nil
}

// Reset starts a fresh run: elements re-armed, vehicle at the start, a new
// scenario sample, new statistics and no pending timers.
func (s *Simulation) Reset() {
	s.scheduler.CancelAll()
	s.world.ResetElements()
	s.controller.Reset()
	s.lastPos = s.controller.Vehicle().Position
	s.scenarios.Start(SampleRun(s.rng, s.catalog, ScenariosPerRun), cuid.New())
	s.reporter.Reset()
	s.input = InputState{}
	s.paused = false
	s.onRoad = true
	s.advisory = ""
	s.advisoryTimer = nil
	s.fatal = ""
	s.generation++
	s.emit(NoticeReset, "new run")
}

// HandleInput applies a key transition or a command
func (s *Simulation) HandleInput(ev InputEvent) error {
	if err := ev.Validate(); err != nil {
		return err
	}
	switch ev.Type {
	case KeyDown, KeyUp:
		s.setControl(ev.Control, ev.Type == KeyDown)
	case CommandEvent:
		switch ev.Command {
		case CommandTogglePause:
			s.TogglePause()
		case CommandReset:
			s.Reset()
		case CommandProceed:
			if _, err := s.Proceed(); err != nil && !errors.Is(err, ErrAlreadyFinalized) {
				return err
			}
		}
	}
	return nil
}

func (s *Simulation) setControl(c Control, down bool) {
	switch c {
	case ControlAccelerate:
		s.input.Accelerate = down
	case ControlBrake:
		s.input.Brake = down
	case ControlSteerLeft:
		s.input.SteerLeft = down
	case ControlSteerRight:
		s.input.SteerRight = down
	}
}

// SetInput replaces the held controls at once
func (s *Simulation) SetInput(in InputState) { s.input = in }

// Input returns the held controls
func (s *Simulation) Input() InputState { return s.input }

// SubmitAnswer forwards an answer to the scenario engine
func (s *Simulation) SubmitAnswer(option int) (ScenarioResult, bool) {
	return s.scenarios.SubmitAnswer(option)
}

// Proceed finalizes a finished run and starts the result hand-off
func (s *Simulation) Proceed() (SubmissionPayload, error) {
	if s.scenarios.Phase() != PhaseFinished {
		return SubmissionPayload{}, ErrNotFinished
	}
	payload, err := s.reporter.Finalize(s.scenarios.Stats())
	if err != nil {
		return payload, err
	}
	s.emit(NoticeSubmission, fmt.Sprintf("submitting results for run %s", payload.RunID))
	return payload, nil
}

// TogglePause freezes or unfreezes physics and timers and returns the new state
func (s *Simulation) TogglePause() bool {
	s.paused = !s.paused
	if s.paused {
		s.emit(NoticePause, s.tuning.Messages.Paused)
	} else {
		s.emit(NoticePause, "resumed")
	}
	return s.paused
}

// Paused reports whether the simulation is paused
func (s *Simulation) Paused() bool { return s.paused }

// Phase returns the scenario engine state
func (s *Simulation) Phase() Phase { return s.scenarios.Phase() }

// Vehicle returns a copy of the vehicle
func (s *Simulation) Vehicle() Vehicle { return s.controller.Vehicle() }

// VehicleMode returns whether the vehicle is driving or stopped
func (s *Simulation) VehicleMode() VehicleMode { return s.controller.Mode() }

// World returns the world. Callers must not mutate it.
func (s *Simulation) World() *World { return s.world }

// Tuning returns the profile the simulation was built from
func (s *Simulation) Tuning() *Tuning { return s.tuning }

// Stats returns a copy of the run statistics
func (s *Simulation) Stats() RunStats { return s.scenarios.Stats() }

// Payload returns the finalized payload or nil
func (s *Simulation) Payload() *SubmissionPayload { return s.reporter.Payload() }

// Submission returns the result hand-off status
func (s *Simulation) Submission() SubmissionStatus { return s.reporter.Status() }

// Fatal returns the fatal error message, if the loop gave up
func (s *Simulation) Fatal() string { return s.fatal }

// advanceTimers fires due timers unless paused
func (s *Simulation) advanceTimers(dt float64) {
	if s.paused {
		return
	}
	s.scheduler.Advance(dt)
}

func (s *Simulation) tickVehicle(dt float64) {
	s.lastPos = s.controller.Vehicle().Position
	if s.paused || s.controller.Mode() != Driving {
		return
	}
	res := s.controller.Tick(dt, s.input)
	s.onRoad = !res.OffRoad
	if res.OffRoad {
		s.showAdvisory(s.tuning.Messages.StayOnRoad)
	}
}

func (s *Simulation) checkScenario() {
	if s.paused {
		return
	}
	pos := s.controller.Vehicle().Position
	s.scenarios.CheckPath(s.lastPos, pos)
	s.lastPos = pos
}

// showAdvisory puts a message on screen for the advisory duration. While one
// is visible further advisories are dropped.
func (s *Simulation) showAdvisory(msg string) {
	if s.advisoryTimer.Pending() {
		return
	}
	s.advisory = msg
	s.emit(NoticeAdvisory, msg)
	s.advisoryTimer = s.scheduler.After(s.tuning.Scenario.AdvisoryDuration, func() {
		s.advisory = ""
	})
}

func (s *Simulation) setFatal(msg string) {
	s.fatal = msg
	s.emit(NoticeFatal, msg)
}

func (s *Simulation) emit(kind NoticeKind, msg string) {
	s.noticeSeq++
	n := Notice{Seq: s.noticeSeq, Kind: kind, Message: msg, Frame: s.frame}
	s.notices = append(s.notices, n)
	if len(s.notices) > MaxRecentNotices {
		s.notices = append(s.notices[:0], s.notices[len(s.notices)-MaxRecentNotices:]...)
	}
	if s.listener != nil {
		s.listener(n)
	}
}

// Snapshot returns a serializable copy of the simulation state
func (s *Simulation) Snapshot() State {
	v := s.controller.Vehicle()
	return State{
		ConfigName:  s.tuning.Name,
		Frame:       s.frame,
		Phase:       s.scenarios.Phase(),
		VehicleMode: s.controller.Mode(),
		Paused:      s.paused,
		Vehicle:     v,
		SpeedKmh:    s.controller.SpeedKmh(),
		OnRoad:      s.onRoad,
		Scenario:    s.scenarios.Current(),
		Stats:       s.scenarios.Stats(),
		Remaining:   s.scenarios.Remaining(),
		Advisory:    s.advisory,
		Notices:     append([]Notice{}, s.notices...),
		Elements:    s.world.ElementsSnapshot(),
		Submission:  s.reporter.Status(),
		Payload:     s.reporter.Payload(),
		Fatal:       s.fatal,
		LoopActive:  s.active(),
	}
}

// active reports whether the render loop should keep scheduling frames
func (s *Simulation) active() bool {
	if s.fatal != "" {
		return false
	}
	return !(s.scenarios.Phase() == PhaseFinished && s.reporter.Finalized())
}
