package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/salesreel/salesreel/internal/models"
)

const (
	// DefaultSyncTolerance is how far the audio/video duration ratio may
	// drift from 1.0 before the narration gets time-stretched. Within it,
	// padding or trimming is inaudible and avoids re-timing artifacts.
	DefaultSyncTolerance = 0.02

	// ffmpeg's atempo filter only accepts factors in [0.5, 2.0]; ratios
	// outside that range are decomposed into a chain.
	atempoMin = 0.5
	atempoMax = 2.0
)

// FFmpeg shells out to the ffmpeg/ffprobe binaries for duration probing and
// audio/video muxing.
type FFmpeg struct {
	ffmpegPath  string
	ffprobePath string

	// Tolerance overrides DefaultSyncTolerance when > 0.
	Tolerance float64
}

func NewFFmpeg(ffmpegPath, ffprobePath string) *FFmpeg {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &FFmpeg{
		ffmpegPath:  ffmpegPath,
		ffprobePath: ffprobePath,
		Tolerance:   DefaultSyncTolerance,
	}
}

// Probe returns a media file's duration in seconds via ffprobe.
func (f *FFmpeg) Probe(ctx context.Context, path string) (float64, error) {
	if _, err := os.Stat(path); err != nil {
		return 0, fmt.Errorf("cannot probe %s: %w", path, err)
	}

	args := []string{
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	}

	cmd := exec.CommandContext(ctx, f.ffprobePath, args...)
	output, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe failed for %s: %w%s", path, err, exitStderr(err))
	}

	duration, err := strconv.ParseFloat(strings.TrimSpace(string(output)), 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse ffprobe duration for %s: %w", path, err)
	}
	return duration, nil
}

// AtempoChain decomposes an arbitrary tempo ratio into factors ffmpeg's
// atempo filter accepts. Each factor lies within [0.5, 2.0]; applied in
// sequence they multiply back to the requested ratio.
func AtempoChain(ratio float64) ([]float64, error) {
	if math.IsNaN(ratio) || math.IsInf(ratio, 0) || ratio <= 0 {
		return nil, fmt.Errorf("invalid tempo ratio %v", ratio)
	}

	var factors []float64
	for ratio > atempoMax {
		factors = append(factors, atempoMax)
		ratio /= atempoMax
	}
	for ratio < atempoMin {
		factors = append(factors, atempoMin)
		ratio /= atempoMin
	}
	factors = append(factors, ratio)
	return factors, nil
}

// ChooseStrategy picks how to align narration to video length given their
// duration ratio. Within tolerance the tempo is left alone: shorter audio
// gets silence padding, longer audio gets cut at the video end. Beyond it
// the audio is time-stretched.
func ChooseStrategy(ratio, tolerance float64) models.SyncStrategy {
	if tolerance <= 0 {
		tolerance = DefaultSyncTolerance
	}
	if math.Abs(ratio-1) <= tolerance {
		if ratio < 1 {
			return models.SyncStrategyPad
		}
		return models.SyncStrategyTrim
	}
	return models.SyncStrategyStretch
}

// SyncAudioToVideo aligns audioPath to videoPath's duration and muxes both
// into outputPath. The video stream is copied untouched; the audio is
// re-encoded to AAC. Returns the audio/video duration ratio and the strategy
// that was applied.
func (f *FFmpeg) SyncAudioToVideo(ctx context.Context, videoPath, audioPath, outputPath string) (float64, models.SyncStrategy, error) {
	videoDur, err := f.Probe(ctx, videoPath)
	if err != nil {
		return 0, "", err
	}
	audioDur, err := f.Probe(ctx, audioPath)
	if err != nil {
		return 0, "", err
	}
	return f.sync(ctx, videoPath, audioPath, outputPath, videoDur, audioDur)
}

// sync does the actual alignment once durations are known, so callers that
// already probed the inputs don't probe twice.
func (f *FFmpeg) sync(ctx context.Context, videoPath, audioPath, outputPath string, videoDur, audioDur float64) (float64, models.SyncStrategy, error) {
	if videoDur <= 0 {
		return 0, "", fmt.Errorf("video %s has zero duration", videoPath)
	}

	ratio := audioDur / videoDur
	strategy := ChooseStrategy(ratio, f.tolerance())

	log.Printf("[FFmpeg] Syncing audio %.2fs to video %.2fs (ratio %.3f, strategy %s)", audioDur, videoDur, ratio, strategy)

	args, err := f.syncArgs(videoPath, audioPath, outputPath, strategy, ratio)
	if err != nil {
		return ratio, strategy, err
	}
	if err := f.runFFmpeg(ctx, args); err != nil {
		return ratio, strategy, err
	}
	return ratio, strategy, nil
}

// syncArgs builds the ffmpeg invocation for a given strategy.
func (f *FFmpeg) syncArgs(videoPath, audioPath, outputPath string, strategy models.SyncStrategy, ratio float64) ([]string, error) {
	args := []string{
		"-i", videoPath,
		"-i", audioPath,
		"-map", "0:v:0", // video stream from the clip
		"-map", "1:a:0", // audio stream from the narration
	}

	switch strategy {
	case models.SyncStrategyStretch:
		factors, err := AtempoChain(ratio)
		if err != nil {
			return nil, err
		}
		args = append(args, "-af", atempoFilter(factors))
	case models.SyncStrategyPad:
		// apad makes the narration endless; -shortest cuts it at video end
		args = append(args, "-af", "apad")
	case models.SyncStrategyTrim:
		// audio is marginally longer; -shortest alone cuts it
	default:
		return nil, fmt.Errorf("unknown sync strategy %q", strategy)
	}

	args = append(args,
		"-c:v", "copy", // never re-encode the video stream
		"-c:a", "aac",
		"-shortest",
		"-y",
		outputPath,
	)
	return args, nil
}

// atempoFilter renders a factor chain as an -af expression.
func atempoFilter(factors []float64) string {
	parts := make([]string, len(factors))
	for i, factor := range factors {
		parts[i] = fmt.Sprintf("atempo=%.6f", factor)
	}
	return strings.Join(parts, ",")
}

func (f *FFmpeg) tolerance() float64 {
	if f.Tolerance > 0 {
		return f.Tolerance
	}
	return DefaultSyncTolerance
}

func (f *FFmpeg) runFFmpeg(ctx context.Context, args []string) error {
	cmd := exec.CommandContext(ctx, f.ffmpegPath, args...)

	var stderr strings.Builder
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg failed: %w: %s", err, lastLines(stderr.String(), 5))
	}
	return nil
}

// exitStderr pulls captured stderr out of an exec error for error messages.
func exitStderr(err error) string {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
		return ": " + strings.TrimSpace(string(exitErr.Stderr))
	}
	return ""
}

// lastLines keeps the tail of ffmpeg's stderr, where the actual error lives
// after pages of progress output.
func lastLines(s string, n int) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, " | ")
}
