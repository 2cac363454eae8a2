package services

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/salesreel/salesreel/internal/models"
	"github.com/salesreel/salesreel/internal/storage"
)

// Narrator lays the project's narration over its generated video. It wires
// the TTS provider, the file store and the merge core into the single
// operation behind the video/narrate endpoint.
type Narrator struct {
	tts    TTSClient
	ffmpeg *FFmpeg
	files  *storage.FileStore
}

func NewNarrator(tts TTSClient, ffmpeg *FFmpeg, files *storage.FileStore) *Narrator {
	return &Narrator{tts: tts, ffmpeg: ffmpeg, files: files}
}

// Narrate produces the narrated cut of the project's generated video.
//
// Two branches run concurrently: one ensures narration audio exists (the
// stored speech is reused while its file is still on disk, otherwise TTS runs
// again and project.Speech is refreshed), the other verifies the video file
// and probes its duration. The join muxes both into narrated_{uuid}.mp4 in
// the project's video directory.
func (n *Narrator) Narrate(ctx context.Context, project *models.Project) (*models.VideoInfo, error) {
	if project.Video == nil || project.Video.Status != models.VideoStatusCompleted {
		return videoFailure(fmt.Errorf("project has no completed video to narrate"))
	}
	videoPath := project.Video.LocalPath
	if videoPath == "" {
		return videoFailure(fmt.Errorf("generated video has no local file"))
	}

	// Written by one goroutine each, read only after g.Wait().
	var (
		audioPath string
		videoDur  float64
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		path, err := n.ensureNarration(gctx, project)
		if err != nil {
			return err
		}
		audioPath = path
		return nil
	})

	g.Go(func() error {
		if _, err := os.Stat(videoPath); err != nil {
			return fmt.Errorf("video file not found: %s", videoPath)
		}
		dur, err := n.ffmpeg.Probe(gctx, videoPath)
		if err != nil {
			return fmt.Errorf("failed to probe video: %w", err)
		}
		videoDur = dur
		return nil
	})

	if err := g.Wait(); err != nil {
		return videoFailure(err)
	}

	outDir, err := n.files.EnsureVideoDir(project.ID)
	if err != nil {
		return videoFailure(err)
	}
	filename := fmt.Sprintf("narrated_%s.mp4", uuid.New().String())
	outputPath := filepath.Join(outDir, filename)

	result, err := n.ffmpeg.MergeAudioVideo(ctx, videoPath, audioPath, outputPath, true)
	if err != nil {
		return videoFailure(err)
	}

	log.Printf("[Narrate] Project %s narrated (video %.2fs, ratio %.3f, strategy %s)",
		project.ID, videoDur, result.SpeedRatio, result.Strategy)

	info := &models.VideoInfo{
		Status:    models.VideoStatusCompleted,
		LocalPath: outputPath,
		Path:      models.VideoServePath(project.ID, filename),
	}
	if result.Output != nil {
		info.Duration = result.Output.Duration
	}
	return info, nil
}

// ensureNarration returns the path of the project's narration audio, reusing
// the stored speech when its file still exists on disk.
func (n *Narrator) ensureNarration(ctx context.Context, project *models.Project) (string, error) {
	if project.Speech != nil && project.Speech.Status == models.SpeechStatusSuccess && project.Speech.FullPath != "" {
		if _, err := os.Stat(project.Speech.FullPath); err == nil {
			log.Printf("[Narrate] Reusing narration %s", project.Speech.FullPath)
			return project.Speech.FullPath, nil
		}
		log.Printf("[Narrate] Stored narration %s is gone, regenerating", project.Speech.FullPath)
	}

	if project.Script == nil || *project.Script == "" {
		return "", fmt.Errorf("project has no script to narrate")
	}

	info, err := n.tts.GenerateSpeech(ctx, *project.Script, project.ID)
	if err != nil {
		return "", fmt.Errorf("failed to generate narration: %w", err)
	}
	project.Speech = info
	return info.FullPath, nil
}
