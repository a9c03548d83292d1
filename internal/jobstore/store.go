package jobstore

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when no record exists for a job identifier.
// Unknown and consumed jobs are indistinguishable to callers.
var ErrNotFound = errors.New("job not found")

// ErrInvalidTransition is returned when a state change violates the
// state machine.
var ErrInvalidTransition = errors.New("invalid state transition")

// Record is the durable, queryable state of one job. Terminal records hold
// exactly one of Result or Error. InputPath and Params are written once at
// submission and read by the worker process that executes the job.
type Record struct {
	ID        string    `json:"id"`
	State     State     `json:"state"`
	Progress  string    `json:"progress,omitempty"`
	InputPath string    `json:"input_path,omitempty"`
	Params    []byte    `json:"params,omitempty"`
	Result    []byte    `json:"result,omitempty"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Store is the durable key-value record of job state, readable from a
// different process than the one executing the job.
type Store interface {
	// Create persists a new record. The record's state must be submitted.
	Create(ctx context.Context, rec *Record) error

	// SetState advances the job to a non-terminal state with a progress
	// label, validating the transition.
	SetState(ctx context.Context, id string, state State, progress string) error

	// SetResult moves the job to done and stores the formatted result.
	SetResult(ctx context.Context, id string, result []byte) error

	// SetError moves the job to failed and stores the error message.
	SetError(ctx context.Context, id string, message string) error

	// Get returns the record for id, or ErrNotFound. Get never mutates
	// the record.
	Get(ctx context.Context, id string) (*Record, error)

	// Consume returns the record for id and, when the record is terminal,
	// deletes it so a second read behaves like an unknown id.
	Consume(ctx context.Context, id string) (*Record, error)
}
