package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
)

var (
	ErrAlreadyFinalized = errors.New("results already finalized for this run")
	ErrNoSink           = errors.New("no result sink configured")
)

// ResultSink is the external collaborator that stores a finished run.
// Submit is always called off the simulation goroutine.
type ResultSink interface {
	Submit(ctx context.Context, payload SubmissionPayload) (Acknowledgment, error)
}

type submissionOutcome struct {
	runID string
	ack   Acknowledgment
	err   error
}

// ResultReporter packages a finished run and hands it to the sink without
// blocking the loop. The score shown to the driver never depends on the
// outcome of the hand-off.
type ResultReporter struct {
	sink     ResultSink
	timeout  time.Duration
	clock    func() time.Time
	payload  *SubmissionPayload
	status   SubmissionStatus
	outcomes chan submissionOutcome
}

// NewResultReporter creates a reporter. A nil sink skips the hand-off.
func NewResultReporter(sink ResultSink, timeout time.Duration) *ResultReporter {
	return &ResultReporter{
		sink:     sink,
		timeout:  timeout,
		clock:    time.Now,
		status:   SubmissionStatus{State: SubmissionNotStarted},
		outcomes: make(chan submissionOutcome, 8),
	}
}

// BuildPayload derives the submission payload from run statistics
func BuildPayload(stats RunStats, now time.Time) SubmissionPayload {
	p := SubmissionPayload{
		RunID:                   stats.RunID,
		ScenariosCompletedCount: stats.ScenariosCompleted,
		CorrectCount:            stats.CorrectCount,
		WrongCount:              stats.ScenariosCompleted - stats.CorrectCount,
		Score:                   stats.Score,
		PerScenario:             append([]ScenarioResult{}, stats.PerScenario...),
		SubmittedAt:             now,
	}
	if stats.ScenariosCompleted > 0 {
		p.ScorePercentage = float64(stats.CorrectCount) / float64(stats.ScenariosCompleted) * 100
	}
	if !stats.StartedAt.IsZero() {
		p.ElapsedSeconds = now.Sub(stats.StartedAt).Seconds()
	}
	return p
}

// Finalize builds the payload and starts the hand-off. It may be called
// once per run; later calls return the same payload and ErrAlreadyFinalized.
func (r *ResultReporter) Finalize(stats RunStats) (SubmissionPayload, error) {
	if r.payload != nil {
		return *r.payload, ErrAlreadyFinalized
	}
	payload := BuildPayload(stats, r.clock())
	r.payload = &payload

	if r.sink == nil {
		r.status = SubmissionStatus{State: SubmissionSkipped, Message: ErrNoSink.Error()}
		return payload, nil
	}
	r.status = SubmissionStatus{State: SubmissionPending}
	go r.handOff(payload)
	return payload, nil
}

func (r *ResultReporter) handOff(payload SubmissionPayload) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	ack, err := r.submit(ctx, payload)
	if err != nil {
		log.WithError(err).WithField("run_id", payload.RunID).Warn("result hand-off failed")
	}
	select {
	case r.outcomes <- submissionOutcome{runID: payload.RunID, ack: ack, err: err}:
	default:
		log.WithField("run_id", payload.RunID).Warn("dropping result hand-off outcome, queue full")
	}
}

func (r *ResultReporter) submit(ctx context.Context, payload SubmissionPayload) (ack Acknowledgment, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("result sink panicked: %v", rec)
		}
	}()
	return r.sink.Submit(ctx, payload)
}

// Poll applies hand-off outcomes that arrived since the last call and reports
// whether the status changed. It must be called from the simulation goroutine.
func (r *ResultReporter) Poll() bool {
	changed := false
	for {
		select {
		case o := <-r.outcomes:
			if r.payload == nil || o.runID != r.payload.RunID {
				continue // outcome of a run that was reset
			}
			switch {
			case o.err != nil:
				r.status = SubmissionStatus{State: SubmissionFailed, Message: o.err.Error()}
			case !o.ack.Success:
				r.status = SubmissionStatus{State: SubmissionFailed, Message: o.ack.Message}
			default:
				r.status = SubmissionStatus{State: SubmissionSubmitted, Message: o.ack.Message}
			}
			changed = true
		default:
			return changed
		}
	}
}

// Status returns the hand-off status
func (r *ResultReporter) Status() SubmissionStatus { return r.status }

// Payload returns the finalized payload, or nil before Finalize
func (r *ResultReporter) Payload() *SubmissionPayload {
	if r.payload == nil {
		return nil
	}
	p := *r.payload
	return &p
}

// Finalized reports whether the hand-off has been initiated for this run
func (r *ResultReporter) Finalized() bool { return r.payload != nil }

// Reset forgets the current run. Outcomes still in flight are discarded by Poll.
func (r *ResultReporter) Reset() {
	r.payload = nil
	r.status = SubmissionStatus{State: SubmissionNotStarted}
}
