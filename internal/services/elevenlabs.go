package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/salesreel/salesreel/internal/config"
	"github.com/salesreel/salesreel/internal/models"
	"github.com/salesreel/salesreel/internal/storage"
)

const elevenLabsOutputFormat = "mp3_44100_128"

// ElevenLabsClient narrates scripts through the ElevenLabs REST API. The
// response body of a successful call is the MP3 audio itself.
type ElevenLabsClient struct {
	apiKey  string
	baseURL string
	voiceID string
	modelID string
	files   *storage.FileStore
	client  *http.Client
}

var _ TTSClient = (*ElevenLabsClient)(nil)

func NewElevenLabsClient(cfg *config.Config, files *storage.FileStore) *ElevenLabsClient {
	if cfg.ElevenLabsKey == "" {
		log.Printf("[TTS] Warning: ELEVEN_LABS_API_KEY not set")
	}

	return &ElevenLabsClient{
		apiKey:  cfg.ElevenLabsKey,
		baseURL: cfg.ElevenLabsBaseURL,
		voiceID: cfg.ElevenLabsVoiceID,
		modelID: cfg.ElevenLabsModelID,
		files:   files,
		client:  &http.Client{Timeout: 90 * time.Second},
	}
}

type elevenLabsRequest struct {
	Text    string `json:"text"`
	ModelID string `json:"model_id"`
}

// GenerateSpeech converts text to narration audio and stores it under the
// project's speech directory.
func (c *ElevenLabsClient) GenerateSpeech(ctx context.Context, text, projectID string) (*models.SpeechInfo, error) {
	if _, err := c.files.CleanSpeeches(projectID); err != nil {
		return speechFailure(err)
	}

	outputPath, err := c.files.NewSpeechPath(projectID, false)
	if err != nil {
		return speechFailure(err)
	}

	body, err := json.Marshal(elevenLabsRequest{Text: text, ModelID: c.modelID})
	if err != nil {
		return speechFailure(fmt.Errorf("failed to marshal ElevenLabs request: %w", err))
	}

	url := fmt.Sprintf("%s/%s?output_format=%s", c.baseURL, c.voiceID, elevenLabsOutputFormat)

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(body))
	if err != nil {
		return speechFailure(fmt.Errorf("failed to create ElevenLabs request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("xi-api-key", c.apiKey)

	log.Printf("[TTS] Generating speech for project %s via ElevenLabs (voice=%s, model=%s, textLen=%d)",
		projectID, c.voiceID, c.modelID, len(text))

	resp, err := c.client.Do(req)
	if err != nil {
		return speechFailure(fmt.Errorf("ElevenLabs request failed: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return speechFailure(fmt.Errorf("ElevenLabs returned status %d: %s", resp.StatusCode, string(respBody)))
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return speechFailure(fmt.Errorf("failed to read ElevenLabs audio: %w", err))
	}
	if len(audio) == 0 {
		return speechFailure(fmt.Errorf("ElevenLabs returned empty audio"))
	}

	if err := c.files.SaveBytes(outputPath, audio); err != nil {
		return speechFailure(err)
	}

	log.Printf("[TTS] Speech generated: %s (%d bytes)", outputPath, len(audio))
	return speechSuccess(projectID, outputPath), nil
}
