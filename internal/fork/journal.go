package fork

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/commatools/forkswitch/internal/fork/storage"
)

// Step statuses recorded in the journal.
const (
	StepPending = "pending"
	StepOK      = "ok"
	StepFailed  = "failed"
	StepSkipped = "skipped"
)

// StepRecord captures the outcome of one sub-step of a multi-step operation.
type StepRecord struct {
	Name   string `json:"name"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// Journal records an in-progress switch or clone so a crash mid-operation
// leaves a deterministic account of which steps ran. It is written before
// and after every step and removed once the operation completes.
type Journal struct {
	Op       string       `json:"op"`
	From     string       `json:"from,omitempty"`
	Target   string       `json:"target"`
	StartedA time.Time    `json:"started_at"`
	Steps    []StepRecord `json:"steps"`

	storage *storage.Storage `json:"-"`
	path    string           `json:"-"`
}

// NewJournal starts a journal for the given operation and persists its
// initial pending state.
func NewJournal(st *storage.Storage, path, op, from, target string, stepNames []string) (*Journal, error) {
	j := &Journal{
		Op:       op,
		From:     from,
		Target:   target,
		StartedA: time.Now().UTC(),
		storage:  st,
		path:     path,
	}
	for _, name := range stepNames {
		j.Steps = append(j.Steps, StepRecord{Name: name, Status: StepPending})
	}
	if err := j.flush(); err != nil {
		return nil, err
	}
	return j, nil
}

// LoadJournal reads a leftover journal, returning (nil, nil) when none exists.
func LoadJournal(st *storage.Storage, path string) (*Journal, error) {
	data, err := st.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read journal: %w", err)
	}
	var j Journal
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("decode journal: %w", err)
	}
	j.storage = st
	j.path = path
	return &j, nil
}

// Record sets the outcome of a named step and persists the journal.
func (j *Journal) Record(stepName string, err error) {
	for i := range j.Steps {
		if j.Steps[i].Name != stepName {
			continue
		}
		if err != nil {
			j.Steps[i].Status = StepFailed
			j.Steps[i].Error = err.Error()
		} else {
			j.Steps[i].Status = StepOK
		}
		break
	}
	// A journal write failure must not interrupt the operation itself.
	_ = j.flush()
}

// Skip marks a step that was not applicable.
func (j *Journal) Skip(stepName string) {
	for i := range j.Steps {
		if j.Steps[i].Name == stepName {
			j.Steps[i].Status = StepSkipped
			break
		}
	}
	_ = j.flush()
}

// Failed returns the records of every step that reported an error.
func (j *Journal) Failed() []StepRecord {
	var failed []StepRecord
	for _, s := range j.Steps {
		if s.Status == StepFailed {
			failed = append(failed, s)
		}
	}
	return failed
}

// Close removes the journal file, marking the operation complete.
func (j *Journal) Close() error {
	if err := j.storage.Remove(j.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove journal: %w", err)
	}
	return nil
}

func (j *Journal) flush() error {
	data, err := json.MarshalIndent(j, "", "  ")
	if err != nil {
		return fmt.Errorf("encode journal: %w", err)
	}
	return j.storage.WriteFile(j.path, data)
}
