package services

import (
	"context"
	"fmt"
	"io"
	"log"

	openai "github.com/sashabaranov/go-openai"

	"github.com/salesreel/salesreel/internal/config"
	"github.com/salesreel/salesreel/internal/models"
	"github.com/salesreel/salesreel/internal/storage"
)

// OpenAITTSClient narrates scripts with the OpenAI speech endpoint.
type OpenAITTSClient struct {
	client *openai.Client
	model  string
	voice  string
	files  *storage.FileStore
}

var _ TTSClient = (*OpenAITTSClient)(nil)

func NewOpenAITTSClient(cfg *config.Config, files *storage.FileStore) *OpenAITTSClient {
	clientCfg := openai.DefaultConfig(cfg.OpenAIKey)
	if cfg.OpenAIBaseURL != "" {
		clientCfg.BaseURL = cfg.OpenAIBaseURL
	}

	return &OpenAITTSClient{
		client: openai.NewClientWithConfig(clientCfg),
		model:  cfg.OpenAITTSModel,
		voice:  cfg.OpenAITTSVoice,
		files:  files,
	}
}

// GenerateSpeech converts text to narration audio and stores it under the
// project's speech directory.
func (c *OpenAITTSClient) GenerateSpeech(ctx context.Context, text, projectID string) (*models.SpeechInfo, error) {
	if _, err := c.files.CleanSpeeches(projectID); err != nil {
		return speechFailure(err)
	}

	outputPath, err := c.files.NewSpeechPath(projectID, false)
	if err != nil {
		return speechFailure(err)
	}

	log.Printf("[TTS] Generating speech for project %s via OpenAI (voice=%s, model=%s, textLen=%d)",
		projectID, c.voice, c.model, len(text))

	resp, err := c.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(c.model),
		Input:          text,
		Voice:          openai.SpeechVoice(c.voice),
		ResponseFormat: openai.SpeechResponseFormatMp3,
	})
	if err != nil {
		return speechFailure(fmt.Errorf("openai speech request failed: %w", err))
	}
	defer resp.Close()

	audio, err := io.ReadAll(resp)
	if err != nil {
		return speechFailure(fmt.Errorf("failed to read openai audio: %w", err))
	}
	if len(audio) == 0 {
		return speechFailure(fmt.Errorf("openai returned empty audio"))
	}

	if err := c.files.SaveBytes(outputPath, audio); err != nil {
		return speechFailure(err)
	}

	log.Printf("[TTS] Speech generated: %s (%d bytes)", outputPath, len(audio))
	return speechSuccess(projectID, outputPath), nil
}
