package results

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/wricardo/drivesim/game/engine"
)

var ErrRunNotFound = errors.New("run not found")

// FileStore keeps submitted runs as JSON files
type FileStore struct {
	dir string
}

// NewFileStore creates the results directory if needed
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create results directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// Submit implements engine.ResultSink
func (fs *FileStore) Submit(ctx context.Context, payload engine.SubmissionPayload) (engine.Acknowledgment, error) {
	if err := ctx.Err(); err != nil {
		return engine.Acknowledgment{}, err
	}
	if payload.RunID == "" || strings.ContainsAny(payload.RunID, `/\`) {
		return engine.Acknowledgment{Success: false, Message: fmt.Sprintf("bad run id '%s'", payload.RunID)}, nil
	}

	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return engine.Acknowledgment{}, fmt.Errorf("failed to marshal payload: %w", err)
	}
	if err := os.WriteFile(fs.path(payload.RunID), data, 0644); err != nil {
		return engine.Acknowledgment{}, fmt.Errorf("failed to write results file: %w", err)
	}
	return engine.Acknowledgment{Success: true, Message: "saved " + payload.RunID + ".json"}, nil
}

// Load reads a stored run
func (fs *FileStore) Load(runID string) (*engine.SubmissionPayload, error) {
	data, err := os.ReadFile(fs.path(runID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrRunNotFound
		}
		return nil, fmt.Errorf("failed to read results file: %w", err)
	}

	var payload engine.SubmissionPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("failed to unmarshal results: %w", err)
	}
	return &payload, nil
}

// Delete removes a stored run
func (fs *FileStore) Delete(runID string) error {
	if !fs.Exists(runID) {
		return ErrRunNotFound
	}
	if err := os.Remove(fs.path(runID)); err != nil {
		return fmt.Errorf("failed to remove results file: %w", err)
	}
	return nil
}

// List returns the stored run ids in order
func (fs *FileStore) List() ([]string, error) {
	entries, err := os.ReadDir(fs.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read results directory: %w", err)
	}

	var ids []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(entry.Name(), ".json"))
	}
	sort.Strings(ids)
	return ids, nil
}

// Exists checks if a run file exists
func (fs *FileStore) Exists(runID string) bool {
	_, err := os.Stat(fs.path(runID))
	return err == nil
}

func (fs *FileStore) path(runID string) string {
	return filepath.Join(fs.dir, runID+".json")
}
