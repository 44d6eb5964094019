package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

var ErrRunnerStopped = errors.New("runner stopped")

// RunnerHooks are called on the runner goroutine and must not block
type RunnerHooks struct {
	// AfterFrame receives a snapshot every loop.broadcast_every frames and
	// after every command.
	AfterFrame func(State)
}

// Runner schedules a RenderLoop from a ticker for headless sessions. All access
// to the simulation happens on the runner goroutine; other goroutines submit
// work through Do.
type Runner struct {
	loop     *RenderLoop
	canvas   *DisplayList
	interval time.Duration
	every    int
	hooks    RunnerHooks
	logger   *log.Entry

	commands  chan func()
	quit      chan struct{}
	done      chan struct{}
	startOnce sync.Once
	stopOnce  sync.Once
	frames    uint64
}

// NewRunner creates a runner that paints into a display list sized to the viewport
func NewRunner(loop *RenderLoop, hooks RunnerHooks) *Runner {
	t := loop.sim.tuning
	return &Runner{
		loop:     loop,
		canvas:   NewDisplayList(t.Viewport.Width, t.Viewport.Height),
		interval: time.Second / time.Duration(t.Loop.TargetFPS),
		every:    t.Loop.BroadcastEvery,
		hooks:    hooks,
		logger:   loop.logger,
		commands: make(chan func()),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the runner goroutine. Calling it again has no effect.
func (r *Runner) Start() {
	r.startOnce.Do(func() {
		go r.run()
	})
}

// Stop terminates the runner and waits for its goroutine to exit
func (r *Runner) Stop() {
	r.stopOnce.Do(func() { close(r.quit) })
	r.startOnce.Do(func() { close(r.done) }) // never started
	<-r.done
}

// Done is closed once the runner has stopped
func (r *Runner) Done() <-chan struct{} { return r.done }

func (r *Runner) run() {
	defer close(r.done)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.quit:
			return
		case cmd := <-r.commands:
			cmd()
			r.publish()
		case now := <-ticker.C:
			r.tick(now)
		}
	}
}

func (r *Runner) tick(now time.Time) {
	if !r.loop.Active() {
		if r.loop.Idle(nil) {
			r.canvas.Clear()
			r.loop.Paint(r.canvas)
			r.publish()
		}
		return
	}
	r.canvas.Clear()
	r.loop.Frame(now, r.canvas)
	r.frames++
	if r.frames%uint64(r.every) == 0 || !r.loop.Active() {
		r.publish()
	}
}

func (r *Runner) publish() {
	if r.hooks.AfterFrame == nil {
		return
	}
	if err := guard("after_frame", func() { r.hooks.AfterFrame(r.loop.sim.Snapshot()) }); err != nil {
		r.logger.WithError(err).Warn("after frame hook failed")
	}
}

// Do runs fn on the runner goroutine and waits for its result
func (r *Runner) Do(ctx context.Context, fn func(*Simulation) error) error {
	errc := make(chan error, 1)
	cmd := func() {
		var err error
		if perr := guard("command", func() { err = fn(r.loop.sim) }); perr != nil {
			err = fmt.Errorf("command failed: %w", perr)
		}
		errc <- err
	}

	select {
	case r.commands <- cmd:
	case <-r.done:
		return ErrRunnerStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-errc:
		return err
	case <-r.done:
		return ErrRunnerStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Snapshot returns the current state
func (r *Runner) Snapshot(ctx context.Context) (State, error) {
	var st State
	err := r.Do(ctx, func(s *Simulation) error {
		st = s.Snapshot()
		return nil
	})
	return st, err
}

// DisplayList returns a copy of the last painted frame
func (r *Runner) DisplayList(ctx context.Context) (*DisplayList, error) {
	var dl *DisplayList
	err := r.Do(ctx, func(s *Simulation) error {
		if len(r.canvas.Ops) == 0 {
			r.loop.Paint(r.canvas)
		}
		dl = r.canvas.Clone()
		return nil
	})
	return dl, err
}
