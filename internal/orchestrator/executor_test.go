package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"speakerscribe/internal/jobstore"
	"speakerscribe/internal/performance"
	"speakerscribe/internal/transcriber"
	"speakerscribe/internal/transcript"
)

// seedJob persists a submitted record with a real input file on disk
func seedJob(t *testing.T, store *jobstore.MemoryStore, params Params) (string, string) {
	t.Helper()
	params.Normalize()
	paramsJSON, err := json.Marshal(params)
	require.NoError(t, err)

	inputPath := filepath.Join(t.TempDir(), "job-input.wav")
	require.NoError(t, os.WriteFile(inputPath, []byte("fake audio"), 0o600))

	jobID := "job-under-test"
	require.NoError(t, store.Create(context.Background(), &jobstore.Record{
		ID:        jobID,
		State:     jobstore.StateSubmitted,
		InputPath: inputPath,
		Params:    paramsJSON,
	}))
	return jobID, inputPath
}

func newExecutor(t *testing.T, store *jobstore.MemoryStore, tr *MockTranscriber, d *MockDiarizer, c *MockConverter) *Executor {
	t.Helper()
	return NewExecutor(store, tr, d, c, time.Minute, performance.NewMonitor(zaptest.NewLogger(t)), zaptest.NewLogger(t))
}

func TestExecutor_Execute_Success(t *testing.T) {
	t.Run("should drive a job to done and delete the input file", func(t *testing.T) {
		// Arrange
		store := jobstore.NewMemoryStore()
		jobID, inputPath := seedJob(t, store, Params{SpeakerCount: 2})

		tr := &MockTranscriber{result: &transcript.TranscriptionResult{
			Language: "en",
			Segments: []transcript.Segment{
				{Start: 0.0, End: 4.8, Text: "hello how are you"},
				{Start: 5.1, End: 9.95, Text: "fine thanks and you"},
			},
		}}
		d := &MockDiarizer{turns: []transcript.SpeakerTurn{
			{Start: 0.0, End: 5.0, Label: "SPEAKER_00"},
			{Start: 5.0, End: 10.0, Label: "SPEAKER_01"},
		}}
		c := &MockConverter{}
		executor := newExecutor(t, store, tr, d, c)

		// Act
		executor.Execute(context.Background(), jobID)

		// Assert
		rec, err := store.Get(context.Background(), jobID)
		require.NoError(t, err)
		assert.Equal(t, jobstore.StateDone, rec.State)
		assert.Empty(t, rec.Error)

		var envelope resultEnvelope
		require.NoError(t, json.Unmarshal(rec.Result, &envelope))
		require.Len(t, envelope.Results, 2)
		assert.Equal(t, 0, envelope.Results[0].Speaker)
		assert.Equal(t, "hello how are you", envelope.Results[0].Text)
		assert.Equal(t, 1, envelope.Results[1].Speaker)
		assert.Equal(t, 9.95, envelope.Results[1].End)

		assert.NoFileExists(t, inputPath, "input file must be cleaned up on success")
		assert.Equal(t, 0, c.calls, "no conversion on the happy path")
	})

	t.Run("should pass the job parameters to the capabilities", func(t *testing.T) {
		// Arrange
		store := jobstore.NewMemoryStore()
		jobID, inputPath := seedJob(t, store, Params{
			SpeakerCount:      3,
			Language:          "ko",
			Temperature:       0.1,
			NoSpeechThreshold: 0.4,
			InitialPrompt:     "a conversation",
		})
		tr := &MockTranscriber{}
		d := &MockDiarizer{}
		executor := newExecutor(t, store, tr, d, &MockConverter{})

		// Act
		executor.Execute(context.Background(), jobID)

		// Assert
		assert.Equal(t, inputPath, tr.lastPath)
		assert.Equal(t, "ko", tr.lastOpts.Language)
		assert.Equal(t, 0.1, tr.lastOpts.Temperature)
		assert.Equal(t, 0.4, tr.lastOpts.NoSpeechThreshold)
		assert.Equal(t, "a conversation", tr.lastOpts.InitialPrompt)
		// Diarization is told the exact expected speaker count.
		assert.Equal(t, 3, d.lastMin)
		assert.Equal(t, 3, d.lastMax)
	})

	t.Run("should produce only valid utterances", func(t *testing.T) {
		// Arrange - one whitespace-only segment and one off-grid segment
		store := jobstore.NewMemoryStore()
		jobID, _ := seedJob(t, store, Params{SpeakerCount: 2})
		tr := &MockTranscriber{result: &transcript.TranscriptionResult{
			Language: "en",
			Segments: []transcript.Segment{
				{Start: 0.0, End: 1.0, Text: "   "},
				{Start: 1.0, End: 2.0, Text: "kept"},
				{Start: 50.0, End: 51.0, Text: "nobody talking here"},
			},
		}}
		d := &MockDiarizer{turns: []transcript.SpeakerTurn{{Start: 0.0, End: 2.0, Label: "SPEAKER_00"}}}
		executor := newExecutor(t, store, tr, d, &MockConverter{})

		// Act
		executor.Execute(context.Background(), jobID)

		// Assert
		rec, err := store.Get(context.Background(), jobID)
		require.NoError(t, err)
		var envelope resultEnvelope
		require.NoError(t, json.Unmarshal(rec.Result, &envelope))
		require.Len(t, envelope.Results, 2)
		for _, u := range envelope.Results {
			assert.NoError(t, u.Validate())
		}
		assert.Equal(t, transcript.UnknownSpeaker, envelope.Results[1].Speaker)
	})
}

func TestExecutor_Execute_MissingInput(t *testing.T) {
	t.Run("should fail without retrying when the input file is gone", func(t *testing.T) {
		// Arrange
		store := jobstore.NewMemoryStore()
		jobID, inputPath := seedJob(t, store, Params{SpeakerCount: 2})
		require.NoError(t, os.Remove(inputPath))

		tr := &MockTranscriber{}
		executor := newExecutor(t, store, tr, &MockDiarizer{}, &MockConverter{})

		// Act
		executor.Execute(context.Background(), jobID)

		// Assert
		rec, err := store.Get(context.Background(), jobID)
		require.NoError(t, err)
		assert.Equal(t, jobstore.StateFailed, rec.State)
		assert.Equal(t, "input file no longer exists", rec.Error)
		assert.Equal(t, 0, tr.calls, "no model work after a missing input")
	})
}

func TestExecutor_Execute_TranscriptionFailure(t *testing.T) {
	t.Run("should fail terminally with the capability's message and clean up", func(t *testing.T) {
		// Arrange
		store := jobstore.NewMemoryStore()
		jobID, inputPath := seedJob(t, store, Params{SpeakerCount: 2})
		tr := &MockTranscriber{err: errors.New("transcription failed: CUDA out of memory")}
		d := &MockDiarizer{}
		executor := newExecutor(t, store, tr, d, &MockConverter{})

		// Act
		executor.Execute(context.Background(), jobID)

		// Assert
		rec, err := store.Get(context.Background(), jobID)
		require.NoError(t, err)
		assert.Equal(t, jobstore.StateFailed, rec.State)
		assert.Equal(t, "transcription failed: CUDA out of memory", rec.Error)
		assert.Nil(t, rec.Result)
		assert.NoFileExists(t, inputPath, "input file must be cleaned up on failure")
		assert.Empty(t, d.calls, "transcription failure is not retried")
	})
}

func TestExecutor_Execute_DiarizationFallback(t *testing.T) {
	t.Run("should complete using the converted copy when the retry succeeds", func(t *testing.T) {
		// Arrange - diarization rejects the original container only
		store := jobstore.NewMemoryStore()
		jobID, inputPath := seedJob(t, store, Params{SpeakerCount: 2})
		tr := &MockTranscriber{result: &transcript.TranscriptionResult{
			Language: "en",
			Segments: []transcript.Segment{{Start: 0.0, End: 2.0, Text: "hello"}},
		}}
		d := &MockDiarizer{
			turns:    []transcript.SpeakerTurn{{Start: 0.0, End: 2.0, Label: "SPEAKER_01"}},
			failures: map[string]error{inputPath: errors.New("unsupported codec")},
		}
		c := &MockConverter{}
		executor := newExecutor(t, store, tr, d, c)

		// Act
		executor.Execute(context.Background(), jobID)

		// Assert
		rec, err := store.Get(context.Background(), jobID)
		require.NoError(t, err)
		assert.Equal(t, jobstore.StateDone, rec.State)

		var envelope resultEnvelope
		require.NoError(t, json.Unmarshal(rec.Result, &envelope))
		require.Len(t, envelope.Results, 1)
		assert.Equal(t, 1, envelope.Results[0].Speaker)

		require.Len(t, d.calls, 2)
		assert.Equal(t, inputPath, d.calls[0])
		assert.Equal(t, inputPath+".wav", d.calls[1])
		assert.NoFileExists(t, inputPath+".wav", "converted copy must not remain on disk")
		assert.NoFileExists(t, inputPath)
	})

	t.Run("should fail with the original cause when the retry also fails", func(t *testing.T) {
		// Arrange
		store := jobstore.NewMemoryStore()
		jobID, inputPath := seedJob(t, store, Params{SpeakerCount: 2})
		tr := &MockTranscriber{}
		d := &MockDiarizer{failures: map[string]error{
			inputPath:          errors.New("original container rejected"),
			inputPath + ".wav": errors.New("converted copy rejected"),
		}}
		c := &MockConverter{}
		executor := newExecutor(t, store, tr, d, c)

		// Act
		executor.Execute(context.Background(), jobID)

		// Assert - the first failure's message is preserved
		rec, err := store.Get(context.Background(), jobID)
		require.NoError(t, err)
		assert.Equal(t, jobstore.StateFailed, rec.State)
		assert.Equal(t, "original container rejected", rec.Error)
		require.Len(t, d.calls, 2, "exactly one retry")
		assert.NoFileExists(t, inputPath+".wav", "converted copy deleted even when the retry fails")
		assert.NoFileExists(t, inputPath)
	})

	t.Run("should fail with the original cause when conversion fails", func(t *testing.T) {
		// Arrange
		store := jobstore.NewMemoryStore()
		jobID, inputPath := seedJob(t, store, Params{SpeakerCount: 2})
		tr := &MockTranscriber{}
		d := &MockDiarizer{failures: map[string]error{inputPath: errors.New("original container rejected")}}
		c := &MockConverter{err: errors.New("ffmpeg conversion failed")}
		executor := newExecutor(t, store, tr, d, c)

		// Act
		executor.Execute(context.Background(), jobID)

		// Assert
		rec, err := store.Get(context.Background(), jobID)
		require.NoError(t, err)
		assert.Equal(t, jobstore.StateFailed, rec.State)
		assert.Equal(t, "original container rejected", rec.Error)
		require.Len(t, d.calls, 1, "no retry without a converted copy")
	})
}

func TestExecutor_Execute_CorruptParams(t *testing.T) {
	t.Run("should fail and clean up when parameters cannot be decoded", func(t *testing.T) {
		// Arrange
		store := jobstore.NewMemoryStore()
		inputPath := filepath.Join(t.TempDir(), "input.wav")
		require.NoError(t, os.WriteFile(inputPath, []byte("fake audio"), 0o600))
		require.NoError(t, store.Create(context.Background(), &jobstore.Record{
			ID:        "job-1",
			State:     jobstore.StateSubmitted,
			InputPath: inputPath,
			Params:    []byte("not json"),
		}))
		executor := newExecutor(t, store, &MockTranscriber{}, &MockDiarizer{}, &MockConverter{})

		// Act
		executor.Execute(context.Background(), "job-1")

		// Assert
		rec, err := store.Get(context.Background(), "job-1")
		require.NoError(t, err)
		assert.Equal(t, jobstore.StateFailed, rec.State)
		assert.NoFileExists(t, inputPath)
	})
}

func TestExecutor_Execute_UnknownJob(t *testing.T) {
	t.Run("should skip a dequeued id with no record", func(t *testing.T) {
		store := jobstore.NewMemoryStore()
		tr := &MockTranscriber{}
		executor := newExecutor(t, store, tr, &MockDiarizer{}, &MockConverter{})

		executor.Execute(context.Background(), "ghost-job")

		assert.Equal(t, 0, tr.calls)
	})
}

func TestExecutor_Execute_Timeout(t *testing.T) {
	t.Run("should fail a job that exceeds the execution ceiling and still clean up", func(t *testing.T) {
		// Arrange - a transcriber that never returns until cancelled
		store := jobstore.NewMemoryStore()
		jobID, inputPath := seedJob(t, store, Params{SpeakerCount: 2})

		executor := NewExecutor(store, &blockingTranscriber{}, &MockDiarizer{}, &MockConverter{},
			50*time.Millisecond, performance.NewMonitor(zaptest.NewLogger(t)), zaptest.NewLogger(t))

		// Act
		executor.Execute(context.Background(), jobID)

		// Assert
		rec, err := store.Get(context.Background(), jobID)
		require.NoError(t, err)
		assert.Equal(t, jobstore.StateFailed, rec.State)
		assert.Contains(t, rec.Error, "timed out")
		assert.NoFileExists(t, inputPath, "input file must be cleaned up on timeout")
	})
}

func TestExecutor_Execute_StatePublication(t *testing.T) {
	t.Run("should publish each stage before running it", func(t *testing.T) {
		// Arrange - the transcriber observes the published state mid-stage
		store := jobstore.NewMemoryStore()
		jobID, _ := seedJob(t, store, Params{SpeakerCount: 2})

		var observed jobstore.State
		tr := &observingTranscriber{store: store, jobID: jobID, observed: &observed}
		executor := NewExecutor(store, tr, &MockDiarizer{}, &MockConverter{}, time.Minute,
			performance.NewMonitor(zaptest.NewLogger(t)), zaptest.NewLogger(t))

		// Act
		executor.Execute(context.Background(), jobID)

		// Assert
		assert.Equal(t, jobstore.StateTranscribing, observed,
			"a concurrent poller must observe the stage before it runs")
	})
}

// blockingTranscriber holds the transcription stage open until the execution
// context expires
type blockingTranscriber struct{}

func (b *blockingTranscriber) Transcribe(ctx context.Context, audioPath string, opts transcriber.Options) (*transcript.TranscriptionResult, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

// observingTranscriber records the job's published state at the moment the
// transcription stage runs
type observingTranscriber struct {
	store    *jobstore.MemoryStore
	jobID    string
	observed *jobstore.State
}

func (o *observingTranscriber) Transcribe(ctx context.Context, audioPath string, opts transcriber.Options) (*transcript.TranscriptionResult, error) {
	rec, err := o.store.Get(ctx, o.jobID)
	if err == nil {
		*o.observed = rec.State
	}
	return &transcript.TranscriptionResult{Language: "en"}, nil
}
