package jobstore

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore persists job records as one Redis hash per job, readable by the
// API process while a worker process mutates them. Terminal records expire
// after the retention period.
type RedisStore struct {
	client    *redis.Client
	keyPrefix string
	retention time.Duration
}

// NewRedisStore creates a RedisStore on an existing client
func NewRedisStore(client *redis.Client, keyPrefix string, retention time.Duration) *RedisStore {
	if keyPrefix == "" {
		keyPrefix = "speakerscribe:job"
	}
	return &RedisStore{
		client:    client,
		keyPrefix: keyPrefix,
		retention: retention,
	}
}

func (r *RedisStore) key(id string) string {
	return fmt.Sprintf("%s:%s", r.keyPrefix, id)
}

// Create persists a new record in submitted state
func (r *RedisStore) Create(ctx context.Context, rec *Record) error {
	if rec.ID == "" {
		return fmt.Errorf("record id cannot be empty")
	}
	if rec.State != StateSubmitted {
		return fmt.Errorf("new records must start in %s state, got %s", StateSubmitted, rec.State)
	}

	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	key := r.key(rec.ID)
	if err := r.client.HSet(ctx, key,
		"state", string(rec.State),
		"progress", rec.Progress,
		"input_path", rec.InputPath,
		"params", string(rec.Params),
		"created_at", strconv.FormatInt(createdAt.UnixMilli(), 10),
	).Err(); err != nil {
		return fmt.Errorf("failed to create job record: %w", err)
	}

	if r.retention > 0 {
		if err := r.client.Expire(ctx, key, r.retention).Err(); err != nil {
			return fmt.Errorf("failed to set job retention: %w", err)
		}
	}
	return nil
}

// SetState advances the job through the state machine
func (r *RedisStore) SetState(ctx context.Context, id string, state State, progress string) error {
	current, err := r.currentState(ctx, id)
	if err != nil {
		return err
	}
	if !IsValidTransition(current, state) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current, state)
	}

	if err := r.client.HSet(ctx, r.key(id),
		"state", string(state),
		"progress", progress,
	).Err(); err != nil {
		return fmt.Errorf("failed to update job state: %w", err)
	}
	return nil
}

// SetResult moves the job to done and stores the result payload
func (r *RedisStore) SetResult(ctx context.Context, id string, result []byte) error {
	current, err := r.currentState(ctx, id)
	if err != nil {
		return err
	}
	if !IsValidTransition(current, StateDone) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current, StateDone)
	}

	if err := r.client.HSet(ctx, r.key(id),
		"state", string(StateDone),
		"progress", "",
		"result", string(result),
		"error", "",
	).Err(); err != nil {
		return fmt.Errorf("failed to store job result: %w", err)
	}
	return nil
}

// SetError moves the job to failed and stores the error message
func (r *RedisStore) SetError(ctx context.Context, id string, message string) error {
	current, err := r.currentState(ctx, id)
	if err != nil {
		return err
	}
	if !IsValidTransition(current, StateFailed) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current, StateFailed)
	}

	if err := r.client.HSet(ctx, r.key(id),
		"state", string(StateFailed),
		"progress", "",
		"result", "",
		"error", message,
	).Err(); err != nil {
		return fmt.Errorf("failed to store job error: %w", err)
	}
	return nil
}

// Get returns the record for id
func (r *RedisStore) Get(ctx context.Context, id string) (*Record, error) {
	fields, err := r.client.HGetAll(ctx, r.key(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read job record: %w", err)
	}
	if len(fields) == 0 {
		return nil, ErrNotFound
	}
	return recordFromHash(id, fields)
}

// Consume returns the record and deletes it when terminal
func (r *RedisStore) Consume(ctx context.Context, id string) (*Record, error) {
	rec, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if rec.State.IsTerminal() {
		if err := r.client.Del(ctx, r.key(id)).Err(); err != nil {
			return nil, fmt.Errorf("failed to delete consumed job record: %w", err)
		}
	}
	return rec, nil
}

func (r *RedisStore) currentState(ctx context.Context, id string) (State, error) {
	state, err := r.client.HGet(ctx, r.key(id), "state").Result()
	if err == redis.Nil {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to read job state: %w", err)
	}
	return State(state), nil
}

// recordFromHash maps the stored hash fields back into a Record
func recordFromHash(id string, fields map[string]string) (*Record, error) {
	state := State(fields["state"])
	if !state.IsValid() {
		return nil, fmt.Errorf("corrupt job record %s: unknown state %q", id, fields["state"])
	}

	rec := &Record{
		ID:        id,
		State:     state,
		Progress:  fields["progress"],
		InputPath: fields["input_path"],
		Error:     fields["error"],
	}
	if params := fields["params"]; params != "" {
		rec.Params = []byte(params)
	}
	if result := fields["result"]; result != "" {
		rec.Result = []byte(result)
	}
	if createdAt := fields["created_at"]; createdAt != "" {
		millis, err := strconv.ParseInt(createdAt, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("corrupt job record %s: bad created_at %q", id, createdAt)
		}
		rec.CreatedAt = time.UnixMilli(millis)
	}
	return rec, nil
}
