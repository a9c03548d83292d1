package orchestrator

import (
	"context"
	"fmt"
	"os"
	"sync"

	"speakerscribe/internal/transcriber"
	"speakerscribe/internal/transcript"
)

// MockTranscriber is a mock implementation of the transcription capability
type MockTranscriber struct {
	mu       sync.Mutex
	result   *transcript.TranscriptionResult
	err      error
	calls    int
	lastPath string
	lastOpts transcriber.Options
}

func (m *MockTranscriber) Transcribe(ctx context.Context, audioPath string, opts transcriber.Options) (*transcript.TranscriptionResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.lastPath = audioPath
	m.lastOpts = opts
	if m.err != nil {
		return nil, m.err
	}
	if m.result != nil {
		return m.result, nil
	}
	return &transcript.TranscriptionResult{Language: "en"}, nil
}

// MockDiarizer is a mock implementation of the diarization capability. Paths
// present in failures error out; everything else returns the configured turns.
type MockDiarizer struct {
	mu       sync.Mutex
	turns    []transcript.SpeakerTurn
	failures map[string]error
	calls    []string
	lastMin  int
	lastMax  int
}

func (m *MockDiarizer) Diarize(ctx context.Context, audioPath string, minSpeakers, maxSpeakers int) ([]transcript.SpeakerTurn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, audioPath)
	m.lastMin = minSpeakers
	m.lastMax = maxSpeakers
	if err, ok := m.failures[audioPath]; ok {
		return nil, err
	}
	return m.turns, nil
}

// MockConverter is a mock implementation of the fallback converter. On
// success it creates the output file so deletion can be asserted.
type MockConverter struct {
	mu    sync.Mutex
	err   error
	calls int
}

func (m *MockConverter) ConvertToWAV(ctx context.Context, srcPath string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return "", m.err
	}
	outPath := srcPath + ".wav"
	if err := os.WriteFile(outPath, []byte("RIFFxxxxWAVE"), 0o600); err != nil {
		return "", fmt.Errorf("mock converter: %w", err)
	}
	return outPath, nil
}
