// Package journal persists one record per scenario run so pass/fail history survives the
// process that produced it.
package journal

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	syncErrors "github.com/harunnryd/synccheck/internal/errors"

	"github.com/natefinch/atomic"
)

type Outcome string

const (
	OutcomePass Outcome = "pass"
	OutcomeFail Outcome = "fail"
)

type StepRecord struct {
	Name     string        `json:"name" yaml:"name"`
	Duration time.Duration `json:"duration_ns" yaml:"duration_ns"`
	Error    string        `json:"error,omitempty" yaml:"error,omitempty"`
}

type RunRecord struct {
	RunID      string       `json:"run_id" yaml:"run_id"`
	Scenario   string       `json:"scenario" yaml:"scenario"`
	OrderSeed  int64        `json:"order_seed" yaml:"order_seed"`
	StartedAt  time.Time    `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time    `json:"finished_at" yaml:"finished_at"`
	Outcome    Outcome      `json:"outcome" yaml:"outcome"`
	Category   string       `json:"category,omitempty" yaml:"category,omitempty"`
	Error      string       `json:"error,omitempty" yaml:"error,omitempty"`
	Steps      []StepRecord `json:"steps,omitempty" yaml:"steps,omitempty"`
}

func (r RunRecord) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

type Store struct {
	dir string
	mu  sync.Mutex
}

func Open(dir string) (*Store, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, syncErrors.InvalidInput("journal directory is empty")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create journal directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) Dir() string {
	return s.dir
}

// Record writes rec to <dir>/<runID>.json, replacing any earlier record for the same run.
func (s *Store) Record(rec RunRecord) error {
	if strings.TrimSpace(rec.RunID) == "" {
		return syncErrors.InvalidInput("run record has no run id")
	}
	if strings.ContainsAny(rec.RunID, `/\`) {
		return syncErrors.InvalidInput(fmt.Sprintf("run id %q is not a file name", rec.RunID))
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return atomic.WriteFile(filepath.Join(s.dir, rec.RunID+".json"), bytes.NewReader(data))
}

// List returns every record, oldest first.
func (s *Store) List() ([]RunRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	paths, err := filepath.Glob(filepath.Join(s.dir, "*.json"))
	if err != nil {
		return nil, err
	}

	records := make([]RunRecord, 0, len(paths))
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if len(data) == 0 {
			continue
		}
		var rec RunRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			return nil, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
		}
		records = append(records, rec)
	}

	sort.SliceStable(records, func(i, j int) bool {
		if records[i].StartedAt.Equal(records[j].StartedAt) {
			return records[i].RunID < records[j].RunID
		}
		return records[i].StartedAt.Before(records[j].StartedAt)
	})
	return records, nil
}

// Prune deletes records that started before cutoff and returns how many were removed.
func (s *Store) Prune(cutoff time.Time) (int, error) {
	records, err := s.List()
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, rec := range records {
		if !rec.StartedAt.Before(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, rec.RunID+".json")); err != nil && !os.IsNotExist(err) {
			return count, err
		}
		count++
	}
	return count, nil
}
