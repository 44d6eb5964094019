package engine

import (
	"fmt"
	"math"
	"time"
)

// vehicleCommander is the part of the vehicle controller the scenario engine drives
type vehicleCommander interface {
	Stop()
	Resume()
}

// ScenarioEngine is the state machine that presents scenarios as the vehicle
// reaches road elements and scores the answers. At most one scenario is
// active at a time; a run ends after ScenariosPerRun answers.
type ScenarioEngine struct {
	world     *World
	vehicle   vehicleCommander
	scheduler *Scheduler
	tuning    ScenarioTuning
	messages  Messages
	notify    func(NoticeKind, string)
	clock     func() time.Time

	phase    Phase
	queue    []Scenario
	current  *Scenario
	element  RoadElement
	answered bool
	result   *ScenarioResult
	stats    RunStats
	resume   *Timer
}

// NewScenarioEngine creates an idle engine with an empty queue
func NewScenarioEngine(world *World, vehicle vehicleCommander, scheduler *Scheduler, tuning ScenarioTuning, messages Messages) *ScenarioEngine {
	return &ScenarioEngine{
		world:     world,
		vehicle:   vehicle,
		scheduler: scheduler,
		tuning:    tuning,
		messages:  messages,
		notify:    func(NoticeKind, string) {},
		clock:     time.Now,
		phase:     PhaseIdle,
	}
}

// Start begins a new run with a pre-sampled queue
func (e *ScenarioEngine) Start(queue []Scenario, runID string) {
	e.resume.Cancel()
	e.resume = nil
	e.phase = PhaseIdle
	e.queue = append([]Scenario(nil), queue...)
	e.current = nil
	e.answered = false
	e.result = nil
	e.stats = RunStats{
		RunID:       runID,
		StartedAt:   e.clock(),
		PerScenario: []ScenarioResult{},
	}
}

// Phase returns the current state
func (e *ScenarioEngine) Phase() Phase { return e.phase }

// Remaining returns how many scenarios are still queued
func (e *ScenarioEngine) Remaining() int { return len(e.queue) }

// Stats returns a copy of the run statistics
func (e *ScenarioEngine) Stats() RunStats {
	s := e.stats
	s.PerScenario = append([]ScenarioResult(nil), e.stats.PerScenario...)
	return s
}

// Current returns the scenario on screen, or nil
func (e *ScenarioEngine) Current() *ScenarioView {
	if e.current == nil {
		return nil
	}
	view := &ScenarioView{
		ID:          e.current.ID,
		Title:       e.current.Title,
		Prompt:      e.current.Prompt,
		Options:     append([]string(nil), e.current.Options...),
		ElementKind: e.element.Kind,
		Answered:    e.answered,
	}
	if e.answered && e.result != nil {
		r := *e.result
		view.Result = &r
		view.Explanation = e.current.Explanation
	}
	return view
}

// Check triggers a scenario when the vehicle is within range of an untriggered
// element. Elements are tested in placement order so the first one in range wins.
// It is a no-op unless the engine is idle.
func (e *ScenarioEngine) Check(pos Vec2) bool {
	return e.CheckPath(pos, pos)
}

// CheckPath is Check for a vehicle that moved from one point to another during
// the frame. The element whose trigger zone the path enters first wins, so a
// fast frame cannot carry the vehicle through a zone unnoticed. Elements entered
// at the same point fall back to placement order.
func (e *ScenarioEngine) CheckPath(from, to Vec2) bool {
	if e.phase != PhaseIdle || len(e.queue) == 0 {
		return false
	}
	e.rearmIfExhausted(to)

	hit := -1
	first := math.Inf(1)
	for i, el := range e.world.Elements {
		if el.Triggered {
			continue
		}
		if t, ok := pathEntry(from, to, el.Position, e.tuning.TriggerRadius); ok && t < first {
			hit, first = i, t
		}
	}
	if hit < 0 {
		return false
	}

	el := &e.world.Elements[hit]
	el.Triggered = true
	scenario := e.take(el.Kind)
	e.current = &scenario
	e.element = *el
	e.answered = false
	e.result = nil
	e.phase = PhasePresenting
	e.vehicle.Stop()
	e.notify(NoticeTrigger, scenario.Title)
	return true
}

// pathEntry returns the fraction of the segment from a to b at which it first
// comes closer than r to p
func pathEntry(a, b, p Vec2, r float64) (float64, bool) {
	f := a.Sub(p)
	c := f.X*f.X + f.Y*f.Y - r*r
	if c < 0 {
		return 0, true
	}
	d := b.Sub(a)
	qa := d.X*d.X + d.Y*d.Y
	if qa == 0 {
		return 0, false
	}
	qb := 2 * (f.X*d.X + f.Y*d.Y)
	disc := qb*qb - 4*qa*c
	if disc <= 0 {
		return 0, false
	}
	t := (-qb - math.Sqrt(disc)) / (2 * qa)
	if t < 0 || t > 1 {
		return 0, false
	}
	return t, true
}

// take removes the first queued scenario matching kind, falling back to the head of the queue
func (e *ScenarioEngine) take(kind ElementKind) Scenario {
	idx := 0
	for i, s := range e.queue {
		if s.TriggerKind == kind {
			idx = i
			break
		}
	}
	s := e.queue[idx]
	e.queue = append(e.queue[:idx], e.queue[idx+1:]...)
	return s
}

// rearmIfExhausted re-arms distant elements once all of them have fired so an
// unfinished run always has something left to reach.
func (e *ScenarioEngine) rearmIfExhausted(pos Vec2) {
	if len(e.world.Elements) == 0 {
		return
	}
	for _, el := range e.world.Elements {
		if !el.Triggered {
			return
		}
	}
	for i := range e.world.Elements {
		if e.world.Elements[i].Position.Dist(pos) >= 2*e.tuning.TriggerRadius {
			e.world.Elements[i].Triggered = false
		}
	}
}

// SubmitAnswer scores the answer to the scenario on screen. Only the first
// answer per scenario is accepted; anything submitted outside a presentation
// is ignored and reported as not accepted. An out of range option is wrong.
func (e *ScenarioEngine) SubmitAnswer(option int) (ScenarioResult, bool) {
	if e.phase != PhasePresenting || e.answered || e.current == nil {
		return ScenarioResult{}, false
	}

	res := ScenarioResult{
		ScenarioID:     e.current.ID,
		ElementKind:    e.element.Kind,
		SelectedOption: option,
		CorrectOption:  e.current.CorrectOptionIndex,
		IsCorrect:      option == e.current.CorrectOptionIndex,
		AnsweredAt:     e.clock(),
	}
	if res.IsCorrect {
		res.PointsEarned = PointsPerCorrect
	}

	e.answered = true
	e.result = &res
	e.stats.PerScenario = append(e.stats.PerScenario, res)
	e.stats.ScenariosCompleted++
	if res.IsCorrect {
		e.stats.CorrectCount++
		e.stats.Score += res.PointsEarned
		e.notify(NoticeAnswer, fmt.Sprintf(e.messages.Correct, res.PointsEarned))
	} else {
		e.notify(NoticeAnswer, fmt.Sprintf(e.messages.Incorrect, e.current.Explanation))
	}

	if e.stats.ScenariosCompleted >= ScenariosPerRun {
		e.phase = PhaseFinished
		e.notify(NoticeFinished, fmt.Sprintf(e.messages.Finished, e.stats.CorrectCount, e.stats.ScenariosCompleted))
		return res, true
	}

	e.resume = e.scheduler.After(e.tuning.DisplayDelay, e.resumeDriving)
	return res, true
}

func (e *ScenarioEngine) resumeDriving() {
	e.resume = nil
	e.current = nil
	e.answered = false
	e.result = nil
	e.phase = PhaseIdle
	e.vehicle.Resume()
}
