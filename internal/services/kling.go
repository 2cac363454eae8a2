package services

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/salesreel/salesreel/internal/config"
	"github.com/salesreel/salesreel/internal/models"
)

// ---------------------------------------------------------------------------
// Kling Image-to-Video Service
// Talks to the Kling REST API: submit an image2video task, poll it until it
// settles, then download the finished clip next to the project's other videos.
// Auth is a short-lived HS256 JWT signed with the account's secret key.
// ---------------------------------------------------------------------------

const (
	klingImage2VideoPath = "/v1/videos/image2video"
	klingPollInterval    = 5 * time.Second
	klingMaxAttempts     = 100
	klingRequestTimeout  = 60 * time.Second
	klingDownloadTimeout = 120 * time.Second
	klingTokenTTL        = 30 * time.Minute
	klingTokenBackdate   = 5 * time.Second
)

// KlingClient generates videos through the Kling image2video API.
type KlingClient struct {
	accessKey string
	secretKey string
	endpoint  string
	model     string
	mode      string
	duration  string
	cfgScale  float64

	client       *http.Client
	pollInterval time.Duration
	maxAttempts  int
}

func NewKlingClient(cfg *config.Config) *KlingClient {
	if cfg.KlingAccessKey == "" || cfg.KlingSecretKey == "" {
		log.Printf("[Kling] Warning: KLING_ACCESS_KEY or KLING_SECRET_KEY is not set")
	}
	return &KlingClient{
		accessKey:    cfg.KlingAccessKey,
		secretKey:    cfg.KlingSecretKey,
		endpoint:     strings.TrimRight(cfg.KlingEndpoint, "/"),
		model:        cfg.KlingModel,
		mode:         cfg.KlingMode,
		duration:     cfg.KlingDuration,
		cfgScale:     cfg.KlingCFGScale,
		client:       &http.Client{Timeout: klingRequestTimeout},
		pollInterval: klingPollInterval,
		maxAttempts:  klingMaxAttempts,
	}
}

var _ VideoGenerator = (*KlingClient)(nil)

// ---------------------------------------------------------------------------
// Request / Response types
// ---------------------------------------------------------------------------

// klingSubmitRequest is the body for POST /v1/videos/image2video.
// Duration is a string because the API rejects numeric values.
type klingSubmitRequest struct {
	ModelName    string             `json:"model_name"`
	Mode         string             `json:"mode"`
	Duration     string             `json:"duration"`
	Prompt       string             `json:"prompt"`
	CFGScale     float64            `json:"cfg_scale"`
	Image        string             `json:"image"`
	StaticMask   string             `json:"static_mask,omitempty"`
	DynamicMasks []klingDynamicMask `json:"dynamic_masks,omitempty"`
}

type klingDynamicMask struct {
	Mask         string            `json:"mask"`
	Trajectories []TrajectoryPoint `json:"trajectories"`
}

// klingResponse is the envelope every Kling endpoint returns.
// code 0 means success; anything else carries a human-readable message.
type klingResponse struct {
	Code      int           `json:"code"`
	Message   string        `json:"message"`
	RequestID string        `json:"request_id"`
	Data      klingTaskData `json:"data"`
}

type klingTaskData struct {
	TaskID        string          `json:"task_id"`
	TaskStatus    string          `json:"task_status"` // submitted | processing | succeed | failed
	TaskStatusMsg string          `json:"task_status_msg"`
	TaskResult    klingTaskResult `json:"task_result"`
}

type klingTaskResult struct {
	Videos []klingVideo `json:"videos"`
}

type klingVideo struct {
	ID       string `json:"id"`
	URL      string `json:"url"`
	Duration string `json:"duration"` // seconds, returned as a string
}

// ---------------------------------------------------------------------------
// Auth
// ---------------------------------------------------------------------------

type klingJWTHeader struct {
	Alg string `json:"alg"`
	Typ string `json:"typ"`
}

type klingJWTClaims struct {
	Iss string `json:"iss"`
	Exp int64  `json:"exp"`
	Nbf int64  `json:"nbf"`
}

// klingToken builds the HS256 JWT the Kling API expects: compact base64url
// segments without padding, a 30 minute expiry, and a not-before backdated
// a few seconds to absorb clock skew.
func klingToken(accessKey, secretKey string, now time.Time) (string, error) {
	header, err := json.Marshal(klingJWTHeader{Alg: "HS256", Typ: "JWT"})
	if err != nil {
		return "", fmt.Errorf("failed to encode token header: %w", err)
	}
	claims, err := json.Marshal(klingJWTClaims{
		Iss: accessKey,
		Exp: now.Add(klingTokenTTL).Unix(),
		Nbf: now.Add(-klingTokenBackdate).Unix(),
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode token claims: %w", err)
	}

	enc := base64.RawURLEncoding
	signing := enc.EncodeToString(header) + "." + enc.EncodeToString(claims)
	mac := hmac.New(sha256.New, []byte(secretKey))
	mac.Write([]byte(signing))
	return signing + "." + enc.EncodeToString(mac.Sum(nil)), nil
}

// ---------------------------------------------------------------------------
// Generation flow
// ---------------------------------------------------------------------------

// GenerateVideo submits the image2video task, waits for it to finish and, when
// req.OutputDir is set, downloads the clip there. Failures come back as a
// failed VideoInfo alongside the error so callers can persist the outcome.
func (c *KlingClient) GenerateVideo(ctx context.Context, req VideoRequest) (*models.VideoInfo, error) {
	if len(req.Image) == 0 {
		return videoFailure(fmt.Errorf("image data is required for video generation"))
	}

	taskID, err := c.submitTask(ctx, req)
	if err != nil {
		return videoFailure(err)
	}
	log.Printf("[Kling] Task submitted for project %s, id=%s", req.ProjectID, taskID)

	info, err := c.awaitTask(ctx, taskID)
	if err != nil {
		return info, err
	}

	if req.OutputDir != "" {
		if err := c.download(ctx, info, req); err != nil {
			return videoFailure(fmt.Errorf("failed to download generated video: %w", err))
		}
	}
	return info, nil
}

// submitTask creates the generation task and returns its id.
func (c *KlingClient) submitTask(ctx context.Context, req VideoRequest) (string, error) {
	token, err := klingToken(c.accessKey, c.secretKey, time.Now())
	if err != nil {
		return "", err
	}

	payload := klingSubmitRequest{
		ModelName: c.model,
		Mode:      c.mode,
		Duration:  c.duration,
		Prompt:    req.Prompt,
		CFGScale:  c.cfgScale,
		Image:     base64.StdEncoding.EncodeToString(req.Image),
	}
	if len(req.StaticMask) > 0 {
		payload.StaticMask = base64.StdEncoding.EncodeToString(req.StaticMask)
	}
	for _, m := range req.DynamicMasks {
		payload.DynamicMasks = append(payload.DynamicMasks, klingDynamicMask{
			Mask:         base64.StdEncoding.EncodeToString(m.Mask),
			Trajectories: m.Trajectories,
		})
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+klingImage2VideoPath, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("video generation request failed with status %d: %s", resp.StatusCode, string(respBody))
	}

	var envelope klingResponse
	if err := json.Unmarshal(respBody, &envelope); err != nil {
		return "", fmt.Errorf("failed to parse submit response: %w (body: %s)", err, string(respBody))
	}
	if envelope.Code != 0 {
		return "", fmt.Errorf("video generation request failed: %s", envelope.Message)
	}
	if envelope.Data.TaskID == "" {
		return "", fmt.Errorf("no task_id in submit response: %s", string(respBody))
	}
	return envelope.Data.TaskID, nil
}

// awaitTask polls the task until it succeeds, fails, or the attempt budget
// runs out. Transport errors and non-zero envelope codes are tolerated; when
// the API complains about the token it is regenerated before the next poll.
func (c *KlingClient) awaitTask(ctx context.Context, taskID string) (*models.VideoInfo, error) {
	token, err := klingToken(c.accessKey, c.secretKey, time.Now())
	if err != nil {
		return videoFailure(err)
	}

	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return videoFailure(fmt.Errorf("video generation cancelled: %w", ctx.Err()))
			case <-time.After(c.pollInterval):
			}
		}

		envelope, err := c.queryTask(ctx, taskID, token)
		if err != nil {
			if ctx.Err() != nil {
				return videoFailure(fmt.Errorf("video generation cancelled: %w", ctx.Err()))
			}
			log.Printf("[Kling] Poll %d failed: %v", attempt, err)
			continue
		}

		if envelope.Code != 0 {
			log.Printf("[Kling] Poll %d rejected: %s", attempt, envelope.Message)
			msg := strings.ToLower(envelope.Message)
			if strings.Contains(msg, "token") || strings.Contains(msg, "auth") {
				if fresh, tokenErr := klingToken(c.accessKey, c.secretKey, time.Now()); tokenErr == nil {
					token = fresh
					log.Printf("[Kling] Regenerated API token")
				}
			}
			continue
		}

		switch envelope.Data.TaskStatus {
		case "failed":
			msg := envelope.Data.TaskStatusMsg
			if msg == "" {
				msg = "Unknown error"
			}
			return videoFailure(fmt.Errorf("video generation failed: %s", msg))
		case "succeed":
			videos := envelope.Data.TaskResult.Videos
			if len(videos) == 0 {
				return videoFailure(fmt.Errorf("no video in generation result"))
			}
			log.Printf("[Kling] Task %s completed after %d polls", taskID, attempt)
			return &models.VideoInfo{
				Status:   models.VideoStatusCompleted,
				URL:      videos[0].URL,
				Duration: parseKlingDuration(videos[0].Duration),
			}, nil
		}

		log.Printf("[Kling] Poll %d: status=%s", attempt, envelope.Data.TaskStatus)
	}

	return videoFailure(fmt.Errorf("maximum polling attempts reached for task %s", taskID))
}

// queryTask fetches the current state of a generation task.
func (c *KlingClient) queryTask(ctx context.Context, taskID, token string) (*klingResponse, error) {
	url := fmt.Sprintf("%s%s/%s", c.endpoint, klingImage2VideoPath, taskID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status check failed with status %d: %s", resp.StatusCode, string(body))
	}

	var envelope klingResponse
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("failed to parse status response: %w (body: %s)", err, string(body))
	}
	return &envelope, nil
}

// download streams the finished clip into req.OutputDir under a fresh UUID
// name and fills the local and serving paths on info.
func (c *KlingClient) download(ctx context.Context, info *models.VideoInfo, req VideoRequest) error {
	if info.URL == "" {
		return fmt.Errorf("generation result has no video URL")
	}
	if err := os.MkdirAll(req.OutputDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, info.URL, nil)
	if err != nil {
		return fmt.Errorf("failed to create download request: %w", err)
	}

	downloadClient := &http.Client{Timeout: klingDownloadTimeout}
	resp, err := downloadClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("download request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("video download returned status %d", resp.StatusCode)
	}

	filename := uuid.New().String() + ".mp4"
	videoPath := filepath.Join(req.OutputDir, filename)
	out, err := os.Create(videoPath)
	if err != nil {
		return fmt.Errorf("failed to create video file: %w", err)
	}
	n, err := io.Copy(out, resp.Body)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(videoPath)
		return fmt.Errorf("failed to write video file: %w", err)
	}

	info.LocalPath = videoPath
	info.Path = models.VideoServePath(req.ProjectID, filename)
	log.Printf("[Kling] Video saved to %s (%d bytes)", videoPath, n)
	return nil
}

// parseKlingDuration converts the API's string duration to seconds,
// returning 0 when the field is absent or malformed.
func parseKlingDuration(s string) float64 {
	if s == "" {
		return 0
	}
	d, err := strconv.ParseFloat(s, 64)
	if err != nil {
		log.Printf("[Kling] Unparseable video duration %q", s)
		return 0
	}
	return d
}
