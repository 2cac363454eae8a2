package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Enums

type VideoStatus string

const (
	VideoStatusProcessing VideoStatus = "processing"
	VideoStatusCompleted  VideoStatus = "completed"
	VideoStatusFailed     VideoStatus = "failed"
)

type SpeechStatus string

const (
	SpeechStatusSuccess SpeechStatus = "success"
	SpeechStatusError   SpeechStatus = "error"
)

// SyncStrategy is how the merge core aligned narration to video length.
type SyncStrategy string

const (
	SyncStrategyStretch SyncStrategy = "stretch" // atempo chain on the audio
	SyncStrategyPad     SyncStrategy = "pad"     // silence appended, cut at video end
	SyncStrategyTrim    SyncStrategy = "trim"    // audio cut at video end
)

// Models

// Project is the unit of work: images, a generated script, narration audio
// and generated videos, keyed by UUID and persisted as JSON in Redis.
type Project struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	Description   string         `json:"description"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	ImagePath     *string        `json:"image_path"` // primary image URL path, kept for older clients
	Images        []ProjectImage `json:"images"`
	Script        *string        `json:"script"`
	Speech        *SpeechInfo    `json:"speech,omitempty"`
	Video         *VideoInfo     `json:"video"`
	NarratedVideo *VideoInfo     `json:"narrated_video,omitempty"`
}

// NewProject builds an empty project with a fresh UUID and both timestamps
// set to now.
func NewProject(name, description string) *Project {
	now := time.Now().UTC()
	return &Project{
		ID:          uuid.New().String(),
		Name:        name,
		Description: description,
		CreatedAt:   now,
		UpdatedAt:   now,
		Images:      []ProjectImage{},
	}
}

// Touch bumps updated_at. Call before every save that follows a mutation.
func (p *Project) Touch() {
	p.UpdatedAt = time.Now().UTC()
}

type ProjectImage struct {
	ID   int    `json:"id"`
	Path string `json:"path"` // "/api/images/{projectID}-image-{id}"
}

// ImageServePath builds the public URL path for a stored project image.
func ImageServePath(projectID string, imageID int) string {
	return fmt.Sprintf("/api/images/%s-image-%d", projectID, imageID)
}

// SpeechServePath is the API path narration audio is served from.
func SpeechServePath(projectID, filename string) string {
	return fmt.Sprintf("/api/speeches/%s/%s", projectID, filename)
}

// VideoServePath is the API path generated videos are served from.
func VideoServePath(projectID, filename string) string {
	return fmt.Sprintf("/api/videos/%s/%s", projectID, filename)
}

// VideoInfo describes one generated (or narrated) video. A failed attempt is
// recorded with status "failed" and the provider's error message so clients
// can surface it.
type VideoInfo struct {
	Status    VideoStatus `json:"status"`
	URL       string      `json:"url,omitempty"`      // provider download URL
	Duration  float64     `json:"duration,omitempty"` // seconds
	LocalPath string      `json:"local_path,omitempty"`
	Path      string      `json:"path,omitempty"` // serving path "/api/videos/{projectID}/{file}"
	Error     string      `json:"error,omitempty"`
	Mock      bool        `json:"mock,omitempty"`
}

// SpeechInfo describes the narration audio generated for a project. Only one
// narration exists per project at a time; regeneration replaces it.
type SpeechInfo struct {
	Status      SpeechStatus `json:"status"`
	Path        string       `json:"path,omitempty"` // "/api/speeches/{projectID}/{file}"
	FullPath    string       `json:"full_path,omitempty"`
	GeneratedAt time.Time    `json:"generated_at"`
	Error       string       `json:"error,omitempty"`
}

// Merge core

type MediaInfo struct {
	Path     string  `json:"path"`
	Duration float64 `json:"duration"` // seconds
}

// MergeResult is the structured outcome of one audio/video merge. Failures
// set Success=false and Error; the probe fields are filled as far as the run
// got.
type MergeResult struct {
	Success    bool         `json:"success"`
	InputVideo *MediaInfo   `json:"input_video,omitempty"`
	InputAudio *MediaInfo   `json:"input_audio,omitempty"`
	Output     *MediaInfo   `json:"output,omitempty"`
	SpeedRatio float64      `json:"speed_ratio,omitempty"` // audio duration / video duration
	Strategy   SyncStrategy `json:"strategy,omitempty"`
	Error      string       `json:"error,omitempty"`
}

// DTOs for API requests

type CreateProjectRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type UpdateScriptRequest struct {
	Script string `json:"script"`
}
