package engine

import (
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
)

// Frame steps, in execution order
const (
	StepTimers   = "timers"
	StepVehicle  = "vehicle"
	StepScenario = "scenario"
	StepReport   = "report"
	StepRender   = "render"
)

// RenderLoop advances a simulation once per display frame: timers, vehicle
// physics, the scenario check, then painting back to front. Each phase is
// guarded so a failure is logged and the next frame still runs; too many
// failing frames in a row stop the loop for good.
type RenderLoop struct {
	sim       *Simulation
	painter   Painter
	maxDelta  float64
	maxErrors int

	last        time.Time
	started     bool
	consecutive int
	generation  uint64
	logger      *log.Entry
}

// NewRenderLoop creates a loop for sim using its loop tuning
func NewRenderLoop(sim *Simulation) *RenderLoop {
	return &RenderLoop{
		sim:        sim,
		maxDelta:   sim.tuning.Loop.MaxDelta,
		maxErrors:  sim.tuning.Loop.MaxConsecutiveErrors,
		generation: sim.generation,
		logger:     log.WithField("component", "render_loop"),
	}
}

// WithLogger sets the log entry used for phase errors
func (l *RenderLoop) WithLogger(entry *log.Entry) *RenderLoop {
	l.logger = entry
	return l
}

// Sim returns the simulation driven by the loop
func (l *RenderLoop) Sim() *Simulation { return l.sim }

// Active reports whether frames should still be scheduled. The loop stops
// after a fatal error or once a finished run has been handed off.
func (l *RenderLoop) Active() bool { return l.sim.active() }

// ConsecutiveErrors returns the number of failing frames in a row
func (l *RenderLoop) ConsecutiveErrors() int { return l.consecutive }

// Frame runs one frame and reports whether another should be scheduled.
// A nil canvas skips painting.
func (l *RenderLoop) Frame(now time.Time, c Canvas) bool {
	if l.generation != l.sim.generation {
		// The run was reset: start pacing and error counting afresh.
		l.generation = l.sim.generation
		l.started = false
		l.consecutive = 0
	}
	if !l.Active() {
		l.Idle(c)
		return false
	}

	dt := l.delta(now)
	l.sim.frame++
	failed := 0

	run := func(phase string, fn func()) {
		if err := guard(phase, fn); err != nil {
			failed++
			l.logger.WithFields(log.Fields{
				"phase":       phase,
				"frame":       l.sim.frame,
				"consecutive": l.consecutive + 1,
			}).WithError(err).Warn("frame phase failed")
		}
	}

	run(StepTimers, func() { l.sim.advanceTimers(dt) })
	run(StepVehicle, func() { l.sim.tickVehicle(dt) })
	run(StepScenario, func() { l.sim.checkScenario() })
	run(StepReport, func() { l.pollReporter() })
	if c != nil {
		for _, layer := range LayerOrder {
			layer := layer
			run(StepRender+":"+string(layer), func() { l.painter.paintLayer(layer, c, l.sim) })
		}
	}

	if failed == 0 {
		l.consecutive = 0
		return l.Active()
	}
	l.consecutive++
	if l.consecutive >= l.maxErrors {
		l.logger.WithFields(log.Fields{
			"frame":       l.sim.frame,
			"consecutive": l.consecutive,
		}).Error("render loop stopped after repeated failures")
		l.sim.setFatal(l.sim.tuning.Messages.Fatal)
		if c != nil {
			_ = guard(StepRender, func() { l.painter.paintLayer(LayerUI, c, l.sim) })
		}
	}
	return l.Active()
}

// Idle keeps a stopped loop responsive: it applies result hand-off outcomes
// without advancing the simulation and repaints when something changed.
func (l *RenderLoop) Idle(c Canvas) bool {
	var changed bool
	if err := guard(StepReport, func() { changed = l.pollReporter() }); err != nil {
		l.logger.WithError(err).Debug("idle poll failed")
	}
	if changed && c != nil {
		l.Paint(c)
	}
	return changed
}

// Paint draws the current state without advancing it
func (l *RenderLoop) Paint(c Canvas) {
	for _, layer := range LayerOrder {
		layer := layer
		if err := guard(StepRender, func() { l.painter.paintLayer(layer, c, l.sim) }); err != nil {
			l.logger.WithError(err).WithField("layer", layer).Debug("paint failed")
		}
	}
}

func (l *RenderLoop) pollReporter() bool {
	changed := l.sim.reporter.Poll()
	if changed {
		st := l.sim.reporter.Status()
		msg := st.Message
		switch st.State {
		case SubmissionSubmitted:
			if msg == "" {
				msg = l.sim.tuning.Messages.SubmissionSaved
			}
		case SubmissionFailed:
			msg = l.sim.tuning.Messages.SubmissionFailed
		}
		l.sim.emit(NoticeSubmission, msg)
	}
	return changed
}

// delta returns the clamped seconds since the previous frame
func (l *RenderLoop) delta(now time.Time) float64 {
	if !l.started {
		l.started = true
		l.last = now
		return 0
	}
	dt := now.Sub(l.last).Seconds()
	l.last = now
	return clamp(dt, 0, l.maxDelta)
}

// guard runs fn and converts a panic into an error
func guard(phase string, fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s: %v", phase, r)
		}
	}()
	fn()
	return nil
}
