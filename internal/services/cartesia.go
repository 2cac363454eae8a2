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

const (
	cartesiaAPIVersion = "2024-06-10"

	// Fallback voice when CARTESIA_VOICE_ID is not configured
	cartesiaDefaultVoiceID = "a0e99841-438c-4a64-b679-ae501e7d6091"
)

// CartesiaClient narrates scripts through Cartesia's bytes endpoint.
type CartesiaClient struct {
	apiKey  string
	baseURL string
	voiceID string
	modelID string
	files   *storage.FileStore
	client  *http.Client
}

var _ TTSClient = (*CartesiaClient)(nil)

func NewCartesiaClient(cfg *config.Config, files *storage.FileStore) *CartesiaClient {
	voiceID := cfg.CartesiaVoiceID
	if voiceID == "" {
		voiceID = cartesiaDefaultVoiceID
	}

	return &CartesiaClient{
		apiKey:  cfg.CartesiaKey,
		baseURL: cfg.CartesiaURL,
		voiceID: voiceID,
		modelID: cfg.CartesiaModelID,
		files:   files,
		client:  &http.Client{Timeout: 60 * time.Second},
	}
}

type cartesiaRequest struct {
	ModelID      string               `json:"model_id"`
	Transcript   string               `json:"transcript"`
	Voice        cartesiaVoice        `json:"voice"`
	OutputFormat cartesiaOutputFormat `json:"output_format"`
}

type cartesiaVoice struct {
	Mode string `json:"mode"`
	ID   string `json:"id"`
}

type cartesiaOutputFormat struct {
	Container  string `json:"container"`
	SampleRate int    `json:"sample_rate"`
	BitRate    int    `json:"bit_rate,omitempty"`
}

// GenerateSpeech converts text to narration audio and stores it under the
// project's speech directory.
func (c *CartesiaClient) GenerateSpeech(ctx context.Context, text, projectID string) (*models.SpeechInfo, error) {
	if _, err := c.files.CleanSpeeches(projectID); err != nil {
		return speechFailure(err)
	}

	outputPath, err := c.files.NewSpeechPath(projectID, false)
	if err != nil {
		return speechFailure(err)
	}

	body, err := json.Marshal(cartesiaRequest{
		ModelID:    c.modelID,
		Transcript: text,
		Voice: cartesiaVoice{
			Mode: "id",
			ID:   c.voiceID,
		},
		OutputFormat: cartesiaOutputFormat{
			Container:  "mp3",
			SampleRate: 44100,
			BitRate:    192000,
		},
	})
	if err != nil {
		return speechFailure(fmt.Errorf("failed to marshal Cartesia request: %w", err))
	}

	url := fmt.Sprintf("%s/tts/bytes", c.baseURL)

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(body))
	if err != nil {
		return speechFailure(fmt.Errorf("failed to create Cartesia request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", c.apiKey)
	req.Header.Set("Cartesia-Version", cartesiaAPIVersion)

	log.Printf("[TTS] Generating speech for project %s via Cartesia (voice=%s, model=%s, textLen=%d)",
		projectID, c.voiceID, c.modelID, len(text))

	resp, err := c.client.Do(req)
	if err != nil {
		return speechFailure(fmt.Errorf("Cartesia request failed: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return speechFailure(fmt.Errorf("Cartesia returned status %d: %s", resp.StatusCode, string(respBody)))
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return speechFailure(fmt.Errorf("failed to read Cartesia audio: %w", err))
	}
	if len(audio) == 0 {
		return speechFailure(fmt.Errorf("Cartesia returned empty audio"))
	}

	if err := c.files.SaveBytes(outputPath, audio); err != nil {
		return speechFailure(err)
	}

	log.Printf("[TTS] Speech generated: %s (%d bytes)", outputPath, len(audio))
	return speechSuccess(projectID, outputPath), nil
}
