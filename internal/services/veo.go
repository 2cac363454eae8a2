package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"google.golang.org/genai"

	"github.com/salesreel/salesreel/internal/config"
	"github.com/salesreel/salesreel/internal/models"
)

// ---------------------------------------------------------------------------
// Veo Video Generation Service
// Alternative image-to-video provider backed by the Google Gen AI SDK. The
// product photo is passed as the first frame and the marketing script drives
// the motion.
// ---------------------------------------------------------------------------

const (
	veoPollInterval    = 10 * time.Second
	veoMaxPollDuration = 5 * time.Minute // Max time to wait for a single video
	veoAspectRatio     = "16:9"
)

// VeoClient generates videos via Google's Veo models. It needs a Gemini API
// key; the same key serves both Gemini and Veo.
type VeoClient struct {
	apiKey string
	model  string
}

func NewVeoClient(cfg *config.Config) *VeoClient {
	if cfg.GeminiKey == "" {
		log.Printf("[Veo] Warning: GEMINI_API_KEY is not set")
	}
	return &VeoClient{
		apiKey: cfg.GeminiKey,
		model:  cfg.VeoModel,
	}
}

var _ VideoGenerator = (*VeoClient)(nil)

// GenerateVideo renders the clip and writes it into req.OutputDir under a
// fresh UUID name. Veo hands back raw bytes rather than a hosted URL, so the
// output directory is required.
func (s *VeoClient) GenerateVideo(ctx context.Context, req VideoRequest) (*models.VideoInfo, error) {
	if len(req.Image) == 0 {
		return videoFailure(fmt.Errorf("image data is required for video generation"))
	}
	if req.OutputDir == "" {
		return videoFailure(fmt.Errorf("output directory is required for Veo generation"))
	}

	videoBytes, err := s.render(ctx, req)
	if err != nil {
		return videoFailure(err)
	}

	if err := os.MkdirAll(req.OutputDir, 0o755); err != nil {
		return videoFailure(fmt.Errorf("failed to create output directory: %w", err))
	}
	filename := uuid.New().String() + ".mp4"
	videoPath := filepath.Join(req.OutputDir, filename)
	if err := os.WriteFile(videoPath, videoBytes, 0o644); err != nil {
		return videoFailure(fmt.Errorf("failed to write video file: %w", err))
	}

	log.Printf("[Veo] Video saved to %s (%d bytes)", videoPath, len(videoBytes))
	return &models.VideoInfo{
		Status:    models.VideoStatusCompleted,
		LocalPath: videoPath,
		Path:      models.VideoServePath(req.ProjectID, filename),
	}, nil
}

// render runs the async Veo operation to completion and returns the MP4 bytes.
func (s *VeoClient) render(ctx context.Context, req VideoRequest) ([]byte, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  s.apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	mimeType := req.MimeType
	if mimeType == "" {
		mimeType = "image/jpeg"
	}
	firstFrame := &genai.Image{
		ImageBytes: req.Image,
		MIMEType:   mimeType,
	}

	genConfig := &genai.GenerateVideosConfig{
		AspectRatio:      veoAspectRatio,
		PersonGeneration: "allow_adult",
		NumberOfVideos:   1,
	}

	log.Printf("[Veo] Starting video generation (model=%s, promptLen=%d, imageSize=%d bytes)",
		s.model, len(req.Prompt), len(req.Image))

	operation, err := client.Models.GenerateVideos(ctx, s.model, req.Prompt, firstFrame, genConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to start video generation: %w", err)
	}

	log.Printf("[Veo] Operation started: %s", operation.Name)

	deadline := time.Now().Add(veoMaxPollDuration)
	pollCount := 0
	for !operation.Done {
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("video generation timed out after %v (polled %d times)", veoMaxPollDuration, pollCount)
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("video generation cancelled: %w", ctx.Err())
		case <-time.After(veoPollInterval):
		}

		pollCount++
		operation, err = client.Operations.GetVideosOperation(ctx, operation, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to poll operation (attempt %d): %w", pollCount, err)
		}

		log.Printf("[Veo] Poll %d: done=%v", pollCount, operation.Done)
	}

	if operation.Error != nil && len(operation.Error) > 0 {
		errJSON, _ := json.Marshal(operation.Error)
		return nil, fmt.Errorf("video generation operation failed: %s", string(errJSON))
	}
	if operation.Response == nil {
		return nil, fmt.Errorf("no response in completed operation after %d polls (operation: %s)", pollCount, operation.Name)
	}

	// Videos can be withheld by the safety filters rather than failing outright.
	if operation.Response.RAIMediaFilteredCount > 0 {
		reasons := "unknown"
		if len(operation.Response.RAIMediaFilteredReasons) > 0 {
			reasons = strings.Join(operation.Response.RAIMediaFilteredReasons, ", ")
		}
		return nil, fmt.Errorf("video blocked by safety filters: %d video(s) filtered, reasons: %s",
			operation.Response.RAIMediaFilteredCount, reasons)
	}
	if len(operation.Response.GeneratedVideos) == 0 {
		return nil, fmt.Errorf("no videos in response")
	}

	video := operation.Response.GeneratedVideos[0]
	if video.Video == nil {
		return nil, fmt.Errorf("generated video object is nil")
	}

	downloadURI := genai.NewDownloadURIFromVideo(video.Video)
	videoBytes, err := client.Files.Download(ctx, downloadURI, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to download generated video: %w", err)
	}
	if len(videoBytes) == 0 {
		return nil, fmt.Errorf("downloaded video is empty (0 bytes)")
	}

	log.Printf("[Veo] Video generated successfully (%d bytes, %d polls)", len(videoBytes), pollCount)
	return videoBytes, nil
}
