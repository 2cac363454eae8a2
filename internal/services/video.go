package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/salesreel/salesreel/internal/config"
	"github.com/salesreel/salesreel/internal/models"
)

// ---------------------------------------------------------------------------
// Image-to-Video Generation
// Providers turn a product photo plus a marketing script into a short video
// clip. All of them implement VideoGenerator and report results through
// models.VideoInfo so handlers can store the outcome verbatim.
// ---------------------------------------------------------------------------

// VideoGenerator produces a video clip from a still image and a prompt.
type VideoGenerator interface {
	GenerateVideo(ctx context.Context, req VideoRequest) (*models.VideoInfo, error)
}

// VideoRequest carries everything a provider needs to render one clip.
type VideoRequest struct {
	ProjectID string
	Prompt    string // narration script doubling as the motion prompt
	Image     []byte // raw source image bytes
	MimeType  string // e.g. "image/jpeg"; providers default it when empty
	OutputDir string // where the finished clip is written; empty skips download

	// Optional Kling motion controls.
	StaticMask   []byte
	DynamicMasks []DynamicMask
}

// DynamicMask pairs a mask image with the trajectory its region should follow.
type DynamicMask struct {
	Mask         []byte
	Trajectories []TrajectoryPoint
}

// TrajectoryPoint is a single pixel coordinate on the source image.
type TrajectoryPoint struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// NewVideoGenerator picks the video provider from config. The mock flag wins
// over the provider setting so local development never hits a paid API.
func NewVideoGenerator(cfg *config.Config) VideoGenerator {
	if cfg.UseMockVideoGen {
		log.Printf("[Video] Using mock video generator (USE_MOCK_VIDEO_GEN=true)")
		return NewMockVideoGenerator()
	}

	switch cfg.VideoProvider {
	case "kling":
		return NewKlingClient(cfg)
	case "veo":
		return NewVeoClient(cfg)
	case "mock":
		log.Printf("[Video] Using mock video generator")
		return NewMockVideoGenerator()
	default:
		log.Printf("[Video] Unrecognized video provider %q, using Kling", cfg.VideoProvider)
		return NewKlingClient(cfg)
	}
}

// videoFailure wraps an error into the failed VideoInfo shape handlers store
// on the project, returning both so callers can log and persist in one step.
func videoFailure(err error) (*models.VideoInfo, error) {
	return &models.VideoInfo{
		Status: models.VideoStatusFailed,
		Error:  err.Error(),
	}, err
}

const mockVideoDelay = 3 * time.Second

// MockVideoGenerator fakes a successful generation without touching disk or
// the network. Handy for frontend work and tests.
type MockVideoGenerator struct {
	delay time.Duration
}

func NewMockVideoGenerator() *MockVideoGenerator {
	return &MockVideoGenerator{delay: mockVideoDelay}
}

var _ VideoGenerator = (*MockVideoGenerator)(nil)

// GenerateVideo simulates provider latency, then reports a completed clip with
// a placeholder URL. No file is written.
func (m *MockVideoGenerator) GenerateVideo(ctx context.Context, req VideoRequest) (*models.VideoInfo, error) {
	log.Printf("[Video] Mock generation for project %s (promptLen=%d)", req.ProjectID, len(req.Prompt))

	if m.delay > 0 {
		select {
		case <-ctx.Done():
			return videoFailure(fmt.Errorf("video generation cancelled: %w", ctx.Err()))
		case <-time.After(m.delay):
		}
	}

	return &models.VideoInfo{
		Status:   models.VideoStatusCompleted,
		URL:      "/api/videos/" + uuid.New().String(),
		Duration: 10,
		Mock:     true,
	}, nil
}
