package services

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/salesreel/salesreel/internal/models"
)

// MergeAudioVideo validates the inputs, aligns the narration to the video's
// length and muxes both into outputPath. The returned MergeResult is non-nil
// even on failure so callers can relay it as-is; the error carries the same
// cause for Go-side handling.
func (f *FFmpeg) MergeAudioVideo(ctx context.Context, videoPath, audioPath, outputPath string, overwrite bool) (*models.MergeResult, error) {
	res := &models.MergeResult{}

	if _, err := os.Stat(videoPath); err != nil {
		return failMerge(res, fmt.Errorf("video file not found: %s", videoPath))
	}
	if _, err := os.Stat(audioPath); err != nil {
		return failMerge(res, fmt.Errorf("audio file not found: %s", audioPath))
	}
	if _, err := os.Stat(outputPath); err == nil && !overwrite {
		return failMerge(res, fmt.Errorf("output file already exists: %s (use overwrite to replace it)", outputPath))
	}

	videoDur, err := f.Probe(ctx, videoPath)
	if err != nil {
		return failMerge(res, err)
	}
	res.InputVideo = &models.MediaInfo{Path: videoPath, Duration: videoDur}

	audioDur, err := f.Probe(ctx, audioPath)
	if err != nil {
		return failMerge(res, err)
	}
	res.InputAudio = &models.MediaInfo{Path: audioPath, Duration: audioDur}

	if dir := filepath.Dir(outputPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return failMerge(res, fmt.Errorf("failed to create output directory %s: %w", dir, err))
		}
	}

	ratio, strategy, err := f.sync(ctx, videoPath, audioPath, outputPath, videoDur, audioDur)
	res.SpeedRatio = ratio
	res.Strategy = strategy
	if err != nil {
		return failMerge(res, err)
	}

	outputDur, err := f.Probe(ctx, outputPath)
	if err != nil {
		return failMerge(res, err)
	}
	res.Output = &models.MediaInfo{Path: outputPath, Duration: outputDur}
	res.Success = true

	log.Printf("[FFmpeg] Merge complete: %s (%.2fs, ratio %.3f, %s)", outputPath, outputDur, ratio, strategy)
	return res, nil
}

func failMerge(res *models.MergeResult, err error) (*models.MergeResult, error) {
	res.Success = false
	res.Error = err.Error()
	return res, err
}
