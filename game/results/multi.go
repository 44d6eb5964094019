package results

import (
	"context"
	"fmt"
	"strings"

	"github.com/wricardo/drivesim/game/engine"
)

// MultiSink submits to every sink in order and stops at the first failure
type MultiSink []engine.ResultSink

// Submit implements engine.ResultSink
func (m MultiSink) Submit(ctx context.Context, payload engine.SubmissionPayload) (engine.Acknowledgment, error) {
	if len(m) == 0 {
		return engine.Acknowledgment{}, engine.ErrNoSink
	}
	messages := make([]string, 0, len(m))
	for i, sink := range m {
		ack, err := sink.Submit(ctx, payload)
		if err != nil {
			return engine.Acknowledgment{}, fmt.Errorf("sink %d: %w", i, err)
		}
		if !ack.Success {
			return ack, nil
		}
		if ack.Message != "" {
			messages = append(messages, ack.Message)
		}
	}
	return engine.Acknowledgment{Success: true, Message: strings.Join(messages, "; ")}, nil
}
