package mergeapi

import (
	"context"
	"encoding/json"
	"log"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/salesreel/salesreel/internal/models"
	"github.com/salesreel/salesreel/internal/storage"
)

// Merger runs the actual merge. *services.FFmpeg implements it.
type Merger interface {
	MergeAudioVideo(ctx context.Context, videoPath, audioPath, outputPath string, overwrite bool) (*models.MergeResult, error)
}

type Handler struct {
	merger Merger
	files  *storage.FileStore
}

func NewHandler(merger Merger, files *storage.FileStore) *Handler {
	return &Handler{merger: merger, files: files}
}

var (
	videoExts = map[string]bool{".mp4": true, ".webm": true, ".avi": true, ".mov": true}
	audioExts = map[string]bool{".mp3": true, ".wav": true, ".aac": true, ".m4a": true}
)

// Health handles GET /health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// mergeDetails is the duration summary returned alongside a merge.
type mergeDetails struct {
	InputVideoDuration float64 `json:"input_video_duration"`
	InputAudioDuration float64 `json:"input_audio_duration"`
	OutputDuration     float64 `json:"output_duration"`
	SpeedRatio         float64 `json:"speed_ratio"`
}

// MergeAudioVideo handles POST /api/v1/merge-audio-video. Uploads go to a
// per-request scratch directory that is removed when the request finishes;
// only the merged output stays on disk.
func (h *Handler) MergeAudioVideo(w http.ResponseWriter, r *http.Request) {
	video, videoName, ok := h.formUpload(w, r, "video_file", videoExts,
		"No video file provided", "Video type not allowed. Use mp4, webm, avi or mov")
	if !ok {
		return
	}
	defer video.Close()

	audio, audioName, ok := h.formUpload(w, r, "audio_file", audioExts,
		"No audio file provided", "Audio type not allowed. Use mp3, wav, aac or m4a")
	if !ok {
		return
	}
	defer audio.Close()

	format := strings.ToLower(strings.TrimSpace(r.FormValue("output_format")))
	if format == "" {
		format = "mp4"
	}
	if !videoExts["."+format] {
		respondError(w, http.StatusBadRequest, "Output format not allowed. Use mp4, webm, avi or mov")
		return
	}

	processID := uuid.New().String()
	scratch, err := h.files.ScratchDir(processID)
	if err != nil {
		log.Printf("[Merge] Failed to create scratch directory for %s: %v", processID, err)
		respondError(w, http.StatusInternalServerError, "Failed to prepare working directory")
		return
	}
	defer h.files.RemoveScratch(processID)

	videoPath := filepath.Join(scratch, videoName)
	if _, err := h.files.SaveStream(videoPath, video); err != nil {
		log.Printf("[Merge] Failed to save video upload for %s: %v", processID, err)
		respondError(w, http.StatusInternalServerError, "Failed to save video upload")
		return
	}
	audioPath := filepath.Join(scratch, audioName)
	if _, err := h.files.SaveStream(audioPath, audio); err != nil {
		log.Printf("[Merge] Failed to save audio upload for %s: %v", processID, err)
		respondError(w, http.StatusInternalServerError, "Failed to save audio upload")
		return
	}

	outputPath := h.files.OutputPath(processID, format)
	log.Printf("[Merge] Process %s: %s + %s -> %s", processID, videoName, audioName, filepath.Base(outputPath))

	result, err := h.merger.MergeAudioVideo(r.Context(), videoPath, audioPath, outputPath, true)
	if err != nil {
		log.Printf("[Merge] Process %s failed: %v", processID, err)
		respondError(w, http.StatusInternalServerError, result.Error)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"process_id": processID,
		"output_url": "/api/media/" + filepath.Base(outputPath),
		"details":    detailsFor(result),
	})
}

// ServeMedia handles GET /api/media/{filename}
func (h *Handler) ServeMedia(w http.ResponseWriter, r *http.Request) {
	path, err := h.files.ResolveOutput(chi.URLParam(r, "filename"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid file name")
		return
	}
	if _, err := os.Stat(path); err != nil {
		respondError(w, http.StatusNotFound, "File not found")
		return
	}
	http.ServeFile(w, r, path)
}

// formUpload pulls one multipart file field and checks its extension. It
// writes the error response itself and returns the sanitized filename.
func (h *Handler) formUpload(w http.ResponseWriter, r *http.Request, field string,
	allowed map[string]bool, missingMsg, typeMsg string) (multipart.File, string, bool) {

	file, header, err := r.FormFile(field)
	if err != nil {
		respondError(w, http.StatusBadRequest, missingMsg)
		return nil, "", false
	}
	if !allowed[strings.ToLower(filepath.Ext(header.Filename))] {
		file.Close()
		respondError(w, http.StatusBadRequest, typeMsg)
		return nil, "", false
	}
	return file, storage.SafeName(header.Filename), true
}

func detailsFor(res *models.MergeResult) mergeDetails {
	d := mergeDetails{SpeedRatio: res.SpeedRatio}
	if res.InputVideo != nil {
		d.InputVideoDuration = res.InputVideo.Duration
	}
	if res.InputAudio != nil {
		d.InputAudioDuration = res.InputAudio.Duration
	}
	if res.Output != nil {
		d.OutputDuration = res.Output.Duration
	}
	return d
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError keeps the sidecar's error shape: {"success": false, "error": msg}.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]any{"success": false, "error": message})
}
