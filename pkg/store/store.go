// Package store provides in-memory storage for batch evaluation jobs.
package store

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lemonberrylabs/deskcalc/pkg/batch"
)

// Errors returned by Store, wrapped with the batch ID.
var (
	ErrNotFound  = errors.New("not found")
	ErrNotActive = errors.New("is not active")
)

// BatchState represents the state of a batch job.
type BatchState string

const (
	BatchRunning   BatchState = "RUNNING"
	BatchSucceeded BatchState = "SUCCEEDED"
	BatchFailed    BatchState = "FAILED"
	BatchCancelled BatchState = "CANCELLED"
)

// Batch represents a stored batch job.
type Batch struct {
	Name        string          `json:"name"`
	ID          string          `json:"id"`
	DisplayName string          `json:"displayName,omitempty"`
	Strict      bool            `json:"strict,omitempty"`
	State       BatchState      `json:"state"`
	Entries     []batch.Entry   `json:"expressions"`
	Outcomes    []batch.Outcome `json:"results,omitempty"`
	Failed      int             `json:"failedExpectations"`
	Error       string          `json:"error,omitempty"`
	CreateTime  time.Time       `json:"createTime"`
	EndTime     time.Time       `json:"endTime,omitempty"`
}

// Done reports whether the batch reached a terminal state.
func (b *Batch) Done() bool {
	return b.State != BatchRunning
}

func (b *Batch) clone() *Batch {
	c := *b
	c.Entries = append([]batch.Entry(nil), b.Entries...)
	c.Outcomes = append([]batch.Outcome(nil), b.Outcomes...)
	return &c
}

// Store is a thread-safe in-memory storage for batch jobs.
type Store struct {
	mu      sync.RWMutex
	batches map[string]*Batch
}

// New creates a new empty store.
func New() *Store {
	return &Store{
		batches: make(map[string]*Batch),
	}
}

// CreateBatch creates a new running batch record.
func (s *Store) CreateBatch(displayName string, entries []batch.Entry, strict bool) *Batch {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.NewString()
	b := &Batch{
		Name:        "batches/" + id,
		ID:          id,
		DisplayName: displayName,
		Strict:      strict,
		State:       BatchRunning,
		Entries:     append([]batch.Entry(nil), entries...),
		CreateTime:  time.Now(),
	}
	s.batches[id] = b
	return b.clone()
}

// GetBatch retrieves a copy of a batch by ID.
func (s *Store) GetBatch(id string) (*Batch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.batches[id]
	if !ok {
		return nil, fmt.Errorf("batch '%s' %w", id, ErrNotFound)
	}
	return b.clone(), nil
}

// ListBatches returns copies of all batches, newest first.
func (s *Store) ListBatches() []*Batch {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*Batch, 0, len(s.batches))
	for _, b := range s.batches {
		result = append(result, b.clone())
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreateTime.Equal(result[j].CreateTime) {
			return result[i].ID < result[j].ID
		}
		return result[i].CreateTime.After(result[j].CreateTime)
	})
	return result
}

// CompleteBatch marks a running batch as succeeded with its report.
func (s *Store) CompleteBatch(id string, report *batch.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := s.active(id)
	if err != nil {
		return err
	}

	b.State = BatchSucceeded
	b.EndTime = time.Now()
	b.Outcomes = append([]batch.Outcome(nil), report.Outcomes...)
	b.Failed = report.Failed
	return nil
}

// FailBatch marks a running batch as failed.
func (s *Store) FailBatch(id string, err error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, aerr := s.active(id)
	if aerr != nil {
		return aerr
	}

	b.State = BatchFailed
	b.EndTime = time.Now()
	b.Error = err.Error()
	return nil
}

// CancelBatch marks a running batch as cancelled, keeping any partial outcomes.
func (s *Store) CancelBatch(id string, partial *batch.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := s.active(id)
	if err != nil {
		return err
	}

	b.State = BatchCancelled
	b.EndTime = time.Now()
	if partial != nil {
		b.Outcomes = append([]batch.Outcome(nil), partial.Outcomes...)
		b.Failed = partial.Failed
	}
	return nil
}

// DeleteBatch removes a batch regardless of its state.
func (s *Store) DeleteBatch(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.batches[id]; !ok {
		return fmt.Errorf("batch '%s' %w", id, ErrNotFound)
	}
	delete(s.batches, id)
	return nil
}

// active returns the live record of a running batch. Caller holds s.mu.
func (s *Store) active(id string) (*Batch, error) {
	b, ok := s.batches[id]
	if !ok {
		return nil, fmt.Errorf("batch '%s' %w", id, ErrNotFound)
	}
	if b.State != BatchRunning {
		return nil, fmt.Errorf("batch '%s' %w (state: %s)", id, ErrNotActive, b.State)
	}
	return b, nil
}
