package media

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"go.uber.org/zap"
)

// Converter re-encodes media files to the canonical mono 16 kHz 16-bit PCM
// WAV format used for the diarization fallback retry
type Converter struct {
	ffmpegPath string
	logger     *zap.Logger
}

// NewConverter creates a new Converter instance
func NewConverter(ffmpegPath string, logger *zap.Logger) *Converter {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	return &Converter{
		ffmpegPath: ffmpegPath,
		logger:     logger,
	}
}

// ConvertToWAV re-encodes srcPath into a canonical PCM WAV copy next to the
// original and returns the copy's path. The caller owns the returned file and
// is responsible for deleting it.
func (c *Converter) ConvertToWAV(ctx context.Context, srcPath string) (string, error) {
	outPath := srcPath + ".wav"

	c.logger.Info("converting media to canonical WAV",
		zap.String("source", srcPath),
		zap.String("output", outPath))

	args := []string{
		"-y", // Overwrite a stale copy from an earlier attempt
		"-i", srcPath,
		"-acodec", "pcm_s16le", // 16-bit PCM
		"-ar", "16000", // Sample rate: 16kHz
		"-ac", "1", // Mono channel
		outPath,
	}

	cmd := exec.CommandContext(ctx, c.ffmpegPath, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		c.logger.Warn("ffmpeg conversion failed",
			zap.Error(err),
			zap.String("stderr", lastStderrLine(stderr.String())))
		return "", fmt.Errorf("ffmpeg conversion failed: %w", err)
	}

	c.logger.Info("conversion completed", zap.String("output", outPath))
	return outPath, nil
}

// lastStderrLine extracts the final non-empty stderr line, which is where
// ffmpeg reports its actual failure reason
func lastStderrLine(output string) string {
	lines := strings.Split(strings.TrimSpace(output), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line
		}
	}
	return ""
}
