package results

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/wricardo/drivesim/game/engine"
)

// HTTPSubmitter posts payloads as JSON and expects {"success": bool, "message": string}
type HTTPSubmitter struct {
	URL    string
	Token  string
	Client *http.Client
}

// NewHTTPSubmitter creates a submitter for the given endpoint
func NewHTTPSubmitter(url, token string) *HTTPSubmitter {
	return &HTTPSubmitter{URL: url, Token: token, Client: http.DefaultClient}
}

// Submit implements engine.ResultSink
func (h *HTTPSubmitter) Submit(ctx context.Context, payload engine.SubmissionPayload) (engine.Acknowledgment, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return engine.Acknowledgment{}, fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.URL, bytes.NewReader(body))
	if err != nil {
		return engine.Acknowledgment{}, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if h.Token != "" {
		req.Header.Set("Authorization", "Bearer "+h.Token)
	}

	client := h.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return engine.Acknowledgment{}, fmt.Errorf("failed to submit results: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return engine.Acknowledgment{}, fmt.Errorf("results endpoint returned %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}

	var ack engine.Acknowledgment
	if err := json.NewDecoder(resp.Body).Decode(&ack); err != nil {
		return engine.Acknowledgment{}, fmt.Errorf("failed to decode acknowledgment: %w", err)
	}
	return ack, nil
}
