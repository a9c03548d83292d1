package transcriber

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"speakerscribe/internal/transcript"
)

//go:embed assets/whisper_helper.py
var whisperHelperScript []byte

// WhisperTranscriber implements Transcriber by running a Whisper helper
// process that emits the recognized segments as JSON on stdout
type WhisperTranscriber struct {
	pythonPath string
	model      string
	device     string
	logger     *zap.Logger
	scriptPath string
}

// NewWhisperTranscriber creates a new WhisperTranscriber. The helper script
// is materialized once and reused for every job handled by this process.
// device selects where the model runs; empty or "auto" lets the helper pick.
func NewWhisperTranscriber(pythonPath, model, device string, logger *zap.Logger) (*WhisperTranscriber, error) {
	if pythonPath == "" {
		pythonPath = "python3"
	}
	if device == "" {
		device = "auto"
	}

	scriptFile, err := os.CreateTemp("", "whisper_helper_*.py")
	if err != nil {
		return nil, fmt.Errorf("failed to create helper script: %w", err)
	}
	if _, err := scriptFile.Write(whisperHelperScript); err != nil {
		scriptFile.Close()
		os.Remove(scriptFile.Name())
		return nil, fmt.Errorf("failed to write helper script: %w", err)
	}
	if err := scriptFile.Close(); err != nil {
		os.Remove(scriptFile.Name())
		return nil, fmt.Errorf("failed to close helper script: %w", err)
	}

	return &WhisperTranscriber{
		pythonPath: pythonPath,
		model:      model,
		device:     device,
		logger:     logger,
		scriptPath: scriptFile.Name(),
	}, nil
}

// helperOutput matches the JSON emitted by the whisper helper script
type helperOutput struct {
	Language string `json:"language"`
	Segments []struct {
		Start float64 `json:"start"`
		End   float64 `json:"end"`
		Text  string  `json:"text"`
	} `json:"segments"`
}

// Transcribe runs the helper process over the audio file and parses its output
func (w *WhisperTranscriber) Transcribe(ctx context.Context, audioPath string, opts Options) (*transcript.TranscriptionResult, error) {
	w.logger.Info("starting transcription",
		zap.String("audio", audioPath),
		zap.String("model", w.model),
		zap.String("language", opts.Language))

	args := []string{
		w.scriptPath,
		"--audio", audioPath,
		"--model", w.model,
		"--language", opts.Language,
		"--temperature", strconv.FormatFloat(opts.Temperature, 'f', -1, 64),
		"--no-speech-threshold", strconv.FormatFloat(opts.EffectiveNoSpeechThreshold(), 'f', -1, 64),
		"--initial-prompt", opts.InitialPrompt,
		"--device", w.device,
	}

	cmd := exec.CommandContext(ctx, w.pythonPath, args...)
	out, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return nil, fmt.Errorf("transcription failed: %s", strings.TrimSpace(string(exitErr.Stderr)))
		}
		return nil, fmt.Errorf("failed to run transcription helper: %w", err)
	}

	var parsed helperOutput
	if err := json.Unmarshal(out, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse transcription output: %w", err)
	}

	result := &transcript.TranscriptionResult{Language: parsed.Language}
	for _, seg := range parsed.Segments {
		segment := transcript.Segment{
			Start: seg.Start,
			End:   seg.End,
			Text:  strings.TrimSpace(seg.Text),
		}
		if err := segment.Validate(); err != nil {
			w.logger.Warn("dropping malformed segment from model output",
				zap.Float64("start", seg.Start),
				zap.Float64("end", seg.End),
				zap.Error(err))
			continue
		}
		result.Segments = append(result.Segments, segment)
	}

	w.logger.Info("transcription completed",
		zap.String("language", result.Language),
		zap.Int("segments", len(result.Segments)))
	return result, nil
}

// Close removes the materialized helper script
func (w *WhisperTranscriber) Close() error {
	if w.scriptPath == "" {
		return nil
	}
	if err := os.Remove(w.scriptPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove helper script: %w", err)
	}
	w.scriptPath = ""
	return nil
}
