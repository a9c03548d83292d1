package jobstore

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryStore is an in-process Store used by tests and single-process runs
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*Record
}

// NewMemoryStore creates an empty MemoryStore
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]*Record)}
}

// Create persists a new record in submitted state
func (m *MemoryStore) Create(ctx context.Context, rec *Record) error {
	if rec.ID == "" {
		return fmt.Errorf("record id cannot be empty")
	}
	if rec.State != StateSubmitted {
		return fmt.Errorf("new records must start in %s state, got %s", StateSubmitted, rec.State)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.records[rec.ID]; exists {
		return fmt.Errorf("job %s already exists", rec.ID)
	}

	stored := *rec
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now()
	}
	m.records[rec.ID] = &stored
	return nil
}

// SetState advances the job through the state machine
func (m *MemoryStore) SetState(ctx context.Context, id string, state State, progress string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[id]
	if !ok {
		return ErrNotFound
	}
	if !IsValidTransition(rec.State, state) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, rec.State, state)
	}

	rec.State = state
	rec.Progress = progress
	return nil
}

// SetResult moves the job to done and stores the result payload
func (m *MemoryStore) SetResult(ctx context.Context, id string, result []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[id]
	if !ok {
		return ErrNotFound
	}
	if !IsValidTransition(rec.State, StateDone) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, rec.State, StateDone)
	}

	rec.State = StateDone
	rec.Progress = ""
	rec.Result = result
	rec.Error = ""
	return nil
}

// SetError moves the job to failed and stores the error message
func (m *MemoryStore) SetError(ctx context.Context, id string, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[id]
	if !ok {
		return ErrNotFound
	}
	if !IsValidTransition(rec.State, StateFailed) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, rec.State, StateFailed)
	}

	rec.State = StateFailed
	rec.Progress = ""
	rec.Result = nil
	rec.Error = message
	return nil
}

// Get returns a copy of the record for id
func (m *MemoryStore) Get(ctx context.Context, id string) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.records[id]
	if !ok {
		return nil, ErrNotFound
	}

	copied := *rec
	return &copied, nil
}

// Consume returns the record and deletes it when terminal
func (m *MemoryStore) Consume(ctx context.Context, id string) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[id]
	if !ok {
		return nil, ErrNotFound
	}

	copied := *rec
	if copied.State.IsTerminal() {
		delete(m.records, id)
	}
	return &copied, nil
}
