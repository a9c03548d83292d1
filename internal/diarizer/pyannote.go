package diarizer

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

//go:embed assets/pyannote_helper.py
var pyannoteHelperScript []byte

// PyannoteDiarizer implements Diarizer by running a pyannote helper process
// that emits the speaker turns as JSON on stdout
type PyannoteDiarizer struct {
	pythonPath string
	model      string
	device     string
	logger     *zap.Logger
	scriptPath string
}

// NewPyannoteDiarizer creates a new PyannoteDiarizer. The helper script is
// materialized once and reused for every job handled by this process.
// device selects where the pipeline runs; empty or "auto" lets the helper
// pick.
func NewPyannoteDiarizer(pythonPath, model, device string, logger *zap.Logger) (*PyannoteDiarizer, error) {
	if pythonPath == "" {
		pythonPath = "python3"
	}
	if device == "" {
		device = "auto"
	}

	scriptFile, err := os.CreateTemp("", "pyannote_helper_*.py")
	if err != nil {
		return nil, fmt.Errorf("failed to create helper script: %w", err)
	}
	if _, err := scriptFile.Write(pyannoteHelperScript); err != nil {
		scriptFile.Close()
		os.Remove(scriptFile.Name())
		return nil, fmt.Errorf("failed to write helper script: %w", err)
	}
	if err := scriptFile.Close(); err != nil {
		os.Remove(scriptFile.Name())
		return nil, fmt.Errorf("failed to close helper script: %w", err)
	}

	return &PyannoteDiarizer{
		pythonPath: pythonPath,
		model:      model,
		device:     device,
		logger:     logger,
		scriptPath: scriptFile.Name(),
	}, nil
}

// helperOutput matches the JSON emitted by the pyannote helper script
type helperOutput struct {
	Segments []struct {
		Start   float64 `json:"start"`
		End     float64 `json:"end"`
		Speaker string  `json:"speaker"`
	} `json:"segments"`
}

// Diarize runs the helper process over the audio file and parses its output
func (d *PyannoteDiarizer) Diarize(ctx context.Context, audioPath string, minSpeakers, maxSpeakers int) ([]transcript.SpeakerTurn, error) {
	d.logger.Info("starting diarization",
		zap.String("audio", audioPath),
		zap.String("model", d.model),
		zap.Int("min_speakers", minSpeakers),
		zap.Int("max_speakers", maxSpeakers))

	args := []string{
		d.scriptPath,
		"--audio", audioPath,
		"--model", d.model,
		"--min-speakers", strconv.Itoa(minSpeakers),
		"--max-speakers", strconv.Itoa(maxSpeakers),
		"--device", d.device,
	}

	cmd := exec.CommandContext(ctx, d.pythonPath, args...)
	out, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return nil, fmt.Errorf("diarization failed: %s", strings.TrimSpace(string(exitErr.Stderr)))
		}
		return nil, fmt.Errorf("failed to run diarization helper: %w", err)
	}

	var parsed helperOutput
	if err := json.Unmarshal(out, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse diarization output: %w", err)
	}

	turns := make([]transcript.SpeakerTurn, 0, len(parsed.Segments))
	for _, seg := range parsed.Segments {
		turn := transcript.SpeakerTurn{
			Start: seg.Start,
			End:   seg.End,
			Label: seg.Speaker,
		}
		if err := turn.Validate(); err != nil {
			d.logger.Warn("dropping malformed turn from model output",
				zap.Float64("start", seg.Start),
				zap.Float64("end", seg.End),
				zap.Error(err))
			continue
		}
		turns = append(turns, turn)
	}

	d.logger.Info("diarization completed", zap.Int("turns", len(turns)))
	return turns, nil
}

// Close removes the materialized helper script
func (d *PyannoteDiarizer) Close() error {
	if d.scriptPath == "" {
		return nil
	}
	if err := os.Remove(d.scriptPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove helper script: %w", err)
	}
	d.scriptPath = ""
	return nil
}
