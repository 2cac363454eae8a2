package services

import (
	"context"
	"log"
	"path/filepath"
	"time"

	"github.com/salesreel/salesreel/internal/config"
	"github.com/salesreel/salesreel/internal/models"
	"github.com/salesreel/salesreel/internal/storage"
)

// TTSClient converts script text into narration audio for a project. Each
// provider wipes the project's previous narration before writing the new
// take, so at most one speech file exists per project.
type TTSClient interface {
	GenerateSpeech(ctx context.Context, text, projectID string) (*models.SpeechInfo, error)
}

// NewTTSClient returns the configured narration provider. USE_MOCK_TTS wins
// over TTS_PROVIDER; unrecognized providers fall back to ElevenLabs.
func NewTTSClient(cfg *config.Config, files *storage.FileStore) TTSClient {
	if cfg.UseMockTTS {
		log.Printf("[TTS] Using mock TTS client")
		return NewMockTTSClient(files)
	}

	switch cfg.TTSProvider {
	case "elevenlabs", "":
		return NewElevenLabsClient(cfg, files)
	case "openai":
		return NewOpenAITTSClient(cfg, files)
	case "cartesia":
		return NewCartesiaClient(cfg, files)
	case "mock":
		return NewMockTTSClient(files)
	default:
		log.Printf("[TTS] Unrecognized TTS provider %q, using ElevenLabs", cfg.TTSProvider)
		return NewElevenLabsClient(cfg, files)
	}
}

// speechFailure pairs an error with a storable SpeechInfo so handlers can
// persist the failure on the project and still report it.
func speechFailure(err error) (*models.SpeechInfo, error) {
	return &models.SpeechInfo{
		Status:      models.SpeechStatusError,
		GeneratedAt: time.Now().UTC(),
		Error:       err.Error(),
	}, err
}

func speechSuccess(projectID, fullPath string) *models.SpeechInfo {
	return &models.SpeechInfo{
		Status:      models.SpeechStatusSuccess,
		Path:        models.SpeechServePath(projectID, filepath.Base(fullPath)),
		FullPath:    fullPath,
		GeneratedAt: time.Now().UTC(),
	}
}

// MockTTSClient writes an empty narration file without calling any API.
// Useful for development and tests where TTS credits are not available.
type MockTTSClient struct {
	files *storage.FileStore
}

var _ TTSClient = (*MockTTSClient)(nil)

func NewMockTTSClient(files *storage.FileStore) *MockTTSClient {
	return &MockTTSClient{files: files}
}

func (c *MockTTSClient) GenerateSpeech(ctx context.Context, text, projectID string) (*models.SpeechInfo, error) {
	if _, err := c.files.CleanSpeeches(projectID); err != nil {
		return speechFailure(err)
	}

	outputPath, err := c.files.NewSpeechPath(projectID, true)
	if err != nil {
		return speechFailure(err)
	}
	if err := c.files.SaveBytes(outputPath, []byte{}); err != nil {
		return speechFailure(err)
	}

	log.Printf("[TTS] Mock speech file created: %s", outputPath)
	return speechSuccess(projectID, outputPath), nil
}
