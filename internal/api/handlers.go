package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/salesreel/salesreel/internal/models"
	"github.com/salesreel/salesreel/internal/services"
	"github.com/salesreel/salesreel/internal/storage"
	"github.com/salesreel/salesreel/internal/store"
)

// VideoNarrator produces the narrated cut of a project's generated video.
type VideoNarrator interface {
	Narrate(ctx context.Context, project *models.Project) (*models.VideoInfo, error)
}

type Handler struct {
	store    *store.Store
	files    *storage.FileStore
	scripts  services.ScriptGenerator
	tts      services.TTSClient
	video    services.VideoGenerator
	narrator VideoNarrator
}

func NewHandler(st *store.Store, files *storage.FileStore, scripts services.ScriptGenerator,
	tts services.TTSClient, video services.VideoGenerator, narrator VideoNarrator) *Handler {
	return &Handler{
		store:    st,
		files:    files,
		scripts:  scripts,
		tts:      tts,
		video:    video,
		narrator: narrator,
	}
}

// Accepted upload types for project images, keyed by file extension.
var imageMIMETypes = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
}

// Index handles GET / with a small endpoint catalog for manual checks.
func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"service": "salesreel-api",
		"version": "1.0.0",
		"endpoints": map[string]string{
			"projects":       "/api/projects",
			"images":         "/api/projects/{projectID}/images",
			"script":         "/api/projects/{projectID}/script/generate",
			"speech":         "/api/projects/{projectID}/speech/generate",
			"video":          "/api/projects/{projectID}/video/generate",
			"narrated_video": "/api/projects/{projectID}/video/narrate",
			"health":         "/health",
		},
	})
}

// Health handles GET /health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// ---------------------------------------------------------------------------
// Projects
// ---------------------------------------------------------------------------

// CreateProject handles POST /api/projects
func (h *Handler) CreateProject(w http.ResponseWriter, r *http.Request) {
	var req models.CreateProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		respondError(w, http.StatusBadRequest, "Project name is required")
		return
	}

	project := models.NewProject(req.Name, req.Description)
	if err := h.store.SaveProject(r.Context(), project); err != nil {
		log.Printf("[API] Failed to create project: %v", err)
		respondError(w, http.StatusInternalServerError, "Failed to create project")
		return
	}

	log.Printf("[API] Created project %s (%s)", project.ID, project.Name)
	respondJSON(w, http.StatusCreated, map[string]any{"success": true, "project": project})
}

// ListProjects handles GET /api/projects
func (h *Handler) ListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := h.store.ListProjects(r.Context())
	if err != nil {
		log.Printf("[API] Failed to list projects: %v", err)
		respondError(w, http.StatusInternalServerError, "Failed to list projects")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"success": true, "projects": projects})
}

// GetProject handles GET /api/projects/{projectID}
func (h *Handler) GetProject(w http.ResponseWriter, r *http.Request) {
	project, ok := h.loadProject(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"success": true, "project": project})
}

// DeleteProject handles DELETE /api/projects/{projectID}. It removes the
// Redis document with every stored image, then the project's files on disk.
func (h *Handler) DeleteProject(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectID")

	err := h.store.DeleteProject(r.Context(), projectID)
	if errors.Is(err, store.ErrNotFound) {
		respondError(w, http.StatusNotFound, "Project not found")
		return
	}
	if err != nil {
		log.Printf("[API] Failed to delete project %s: %v", projectID, err)
		respondError(w, http.StatusInternalServerError, "Failed to delete project")
		return
	}

	h.files.RemoveProject(projectID)

	respondJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Project deleted successfully"})
}

// ---------------------------------------------------------------------------
// Images
// ---------------------------------------------------------------------------

// UploadImage handles POST /api/projects/{projectID}/images
func (h *Handler) UploadImage(w http.ResponseWriter, r *http.Request) {
	project, ok := h.loadProject(w, r)
	if !ok {
		return
	}

	mimeType, data, ok := h.readImageUpload(w, r)
	if !ok {
		return
	}

	imageID, err := h.store.SaveImage(r.Context(), project.ID, mimeType, data)
	if err != nil {
		log.Printf("[API] Failed to store image for %s: %v", project.ID, err)
		respondError(w, http.StatusInternalServerError, "Failed to store image")
		return
	}
	if _, err := h.store.RefreshImageMetadata(r.Context(), project.ID); err != nil {
		log.Printf("[API] Failed to refresh images for %s: %v", project.ID, err)
		respondError(w, http.StatusInternalServerError, "Failed to update project images")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"message":    "Image uploaded successfully",
		"image_id":   imageID,
		"image_path": models.ImageServePath(project.ID, imageID),
	})
}

// ListImages handles GET /api/projects/{projectID}/images
func (h *Handler) ListImages(w http.ResponseWriter, r *http.Request) {
	project, ok := h.loadProject(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"success": true, "images": project.Images})
}

// DeleteImage handles DELETE /api/projects/{projectID}/images/{imageID}
func (h *Handler) DeleteImage(w http.ResponseWriter, r *http.Request) {
	project, ok := h.loadProject(w, r)
	if !ok {
		return
	}

	imageID, err := strconv.Atoi(chi.URLParam(r, "imageID"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid image ID")
		return
	}

	err = h.store.DeleteImage(r.Context(), project.ID, imageID)
	if errors.Is(err, store.ErrNotFound) {
		respondError(w, http.StatusNotFound, "Image not found")
		return
	}
	if err != nil {
		log.Printf("[API] Failed to delete image %d of %s: %v", imageID, project.ID, err)
		respondError(w, http.StatusInternalServerError, "Failed to delete image")
		return
	}

	updated, err := h.store.RefreshImageMetadata(r.Context(), project.ID)
	if err != nil {
		log.Printf("[API] Failed to refresh images for %s: %v", project.ID, err)
		respondError(w, http.StatusInternalServerError, "Failed to update project images")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Image deleted successfully",
		"images":  updated.Images,
	})
}

// UploadLegacyImage handles PUT and POST /api/projects/{projectID}/image, the
// single-image route older clients still use. PUT replaces every stored
// image; POST adds alongside them.
func (h *Handler) UploadLegacyImage(w http.ResponseWriter, r *http.Request) {
	project, ok := h.loadProject(w, r)
	if !ok {
		return
	}

	mimeType, data, ok := h.readImageUpload(w, r)
	if !ok {
		return
	}

	if r.Method == http.MethodPut {
		ids, err := h.store.ListImageIDs(r.Context(), project.ID)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "Failed to replace images")
			return
		}
		for _, id := range ids {
			if err := h.store.DeleteImage(r.Context(), project.ID, id); err != nil && !errors.Is(err, store.ErrNotFound) {
				respondError(w, http.StatusInternalServerError, "Failed to replace images")
				return
			}
		}
	}

	imageID, err := h.store.SaveImage(r.Context(), project.ID, mimeType, data)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to store image")
		return
	}
	if _, err := h.store.RefreshImageMetadata(r.Context(), project.ID); err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to update project images")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"message":    "Image uploaded successfully",
		"image_path": models.ImageServePath(project.ID, imageID),
	})
}

// ServeImage handles GET /api/images/{projectID}-image-{imageID}
func (h *Handler) ServeImage(w http.ResponseWriter, r *http.Request) {
	projectID, imageID, err := store.ParseImageRef(chi.URLParam(r, "ref"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid image reference")
		return
	}

	data, mimeType, err := h.store.GetImage(r.Context(), projectID, imageID)
	if errors.Is(err, store.ErrNotFound) {
		respondError(w, http.StatusNotFound, "Image not found")
		return
	}
	if err != nil {
		log.Printf("[API] Failed to load image %s-image-%d: %v", projectID, imageID, err)
		respondError(w, http.StatusInternalServerError, "Failed to load image")
		return
	}

	w.Header().Set("Content-Type", mimeType)
	w.Write(data)
}

// ServeLegacyImage handles GET /api/images/{projectID}/{filename}
func (h *Handler) ServeLegacyImage(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectID")
	filename := chi.URLParam(r, "filename")

	data, mimeType, err := h.store.GetLegacyImage(r.Context(), projectID, filename)
	if errors.Is(err, store.ErrNotFound) {
		respondError(w, http.StatusNotFound, "Image not found")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to load image")
		return
	}

	w.Header().Set("Content-Type", mimeType)
	w.Write(data)
}

// ---------------------------------------------------------------------------
// Script
// ---------------------------------------------------------------------------

// GenerateScript handles POST /api/projects/{projectID}/script/generate
func (h *Handler) GenerateScript(w http.ResponseWriter, r *http.Request) {
	project, ok := h.loadProject(w, r)
	if !ok {
		return
	}

	data, mimeType, ok := h.projectImage(w, r, project)
	if !ok {
		return
	}

	script, err := h.scripts.GenerateScript(r.Context(), data, mimeType, project.Name, project.Description)
	if err != nil {
		log.Printf("[API] Script generation failed for %s: %v", project.ID, err)
		respondError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to generate script: %v", err))
		return
	}

	project.Script = &script
	project.Touch()
	if err := h.store.SaveProject(r.Context(), project); err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to save project")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"success": true, "script": script})
}

// UpdateScript handles PUT /api/projects/{projectID}/script
func (h *Handler) UpdateScript(w http.ResponseWriter, r *http.Request) {
	project, ok := h.loadProject(w, r)
	if !ok {
		return
	}

	var req models.UpdateScriptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.Script) == "" {
		respondError(w, http.StatusBadRequest, "Script is required")
		return
	}

	project.Script = &req.Script
	project.Touch()
	if err := h.store.SaveProject(r.Context(), project); err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to save project")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Script updated successfully",
		"script":  req.Script,
	})
}

// ---------------------------------------------------------------------------
// Speech
// ---------------------------------------------------------------------------

// GenerateSpeech handles POST /api/projects/{projectID}/speech/generate. The
// provider replaces any previous narration; the outcome is stored on the
// project either way.
func (h *Handler) GenerateSpeech(w http.ResponseWriter, r *http.Request) {
	project, ok := h.loadProject(w, r)
	if !ok {
		return
	}
	if project.Script == nil || *project.Script == "" {
		respondError(w, http.StatusBadRequest, "No script found. Generate a script first")
		return
	}

	info, ttsErr := h.tts.GenerateSpeech(r.Context(), *project.Script, project.ID)
	project.Speech = info
	project.Touch()
	if err := h.store.SaveProject(r.Context(), project); err != nil {
		log.Printf("[API] Failed to persist speech result for %s: %v", project.ID, err)
	}
	if ttsErr != nil {
		respondError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to generate speech: %v", ttsErr))
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"success": true, "speech": info})
}

// ServeSpeech handles GET /api/speeches/{projectID}/{filename}
func (h *Handler) ServeSpeech(w http.ResponseWriter, r *http.Request) {
	path, err := h.files.ResolveSpeech(chi.URLParam(r, "projectID"), chi.URLParam(r, "filename"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid file name")
		return
	}
	if _, err := os.Stat(path); err != nil {
		respondError(w, http.StatusNotFound, "Speech file not found")
		return
	}

	w.Header().Set("Content-Type", "audio/mpeg")
	http.ServeFile(w, r, path)
}

// ---------------------------------------------------------------------------
// Video
// ---------------------------------------------------------------------------

// GenerateVideo handles POST /api/projects/{projectID}/video/generate. The
// project is marked processing before the provider runs so a client polling
// GET /api/projects/{projectID} sees the in-flight state, then the final
// VideoInfo (completed or failed) replaces it.
func (h *Handler) GenerateVideo(w http.ResponseWriter, r *http.Request) {
	project, ok := h.loadProject(w, r)
	if !ok {
		return
	}
	if project.Script == nil || *project.Script == "" {
		respondError(w, http.StatusBadRequest, "No script found. Generate a script first")
		return
	}

	data, mimeType, ok := h.projectImage(w, r, project)
	if !ok {
		return
	}

	project.Video = &models.VideoInfo{Status: models.VideoStatusProcessing}
	project.Touch()
	if err := h.store.SaveProject(r.Context(), project); err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to save project")
		return
	}

	outputDir, err := h.files.EnsureVideoDir(project.ID)
	if err != nil {
		h.storeVideoResult(r.Context(), project, &models.VideoInfo{
			Status: models.VideoStatusFailed,
			Error:  err.Error(),
		})
		respondError(w, http.StatusInternalServerError, "Failed to prepare video directory")
		return
	}

	info, genErr := h.video.GenerateVideo(r.Context(), services.VideoRequest{
		ProjectID: project.ID,
		Prompt:    *project.Script,
		Image:     data,
		MimeType:  mimeType,
		OutputDir: outputDir,
	})
	h.storeVideoResult(r.Context(), project, info)

	if genErr != nil {
		respondError(w, http.StatusInternalServerError, info.Error)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"success": true, "video": info})
}

// NarrateVideo handles POST /api/projects/{projectID}/video/narrate
func (h *Handler) NarrateVideo(w http.ResponseWriter, r *http.Request) {
	project, ok := h.loadProject(w, r)
	if !ok {
		return
	}
	if project.Video == nil || project.Video.Status != models.VideoStatusCompleted || project.Video.LocalPath == "" {
		respondError(w, http.StatusBadRequest, "No completed video found. Generate a video first")
		return
	}

	info, narrErr := h.narrator.Narrate(r.Context(), project)
	project.NarratedVideo = info
	project.Touch()
	if err := h.store.SaveProject(r.Context(), project); err != nil {
		log.Printf("[API] Failed to persist narrated video for %s: %v", project.ID, err)
	}
	if narrErr != nil {
		respondError(w, http.StatusInternalServerError, info.Error)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"success": true, "video": info})
}

// ServeVideo handles GET /api/videos/{projectID}/{filename}
func (h *Handler) ServeVideo(w http.ResponseWriter, r *http.Request) {
	path, err := h.files.ResolveVideo(chi.URLParam(r, "projectID"), chi.URLParam(r, "filename"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid file name")
		return
	}
	if _, err := os.Stat(path); err != nil {
		respondError(w, http.StatusNotFound, "Video not found")
		return
	}

	w.Header().Set("Content-Type", "video/mp4")
	http.ServeFile(w, r, path)
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// loadProject fetches the project from the URL parameter and writes the
// error response itself when that fails.
func (h *Handler) loadProject(w http.ResponseWriter, r *http.Request) (*models.Project, bool) {
	projectID := chi.URLParam(r, "projectID")

	project, err := h.store.GetProject(r.Context(), projectID)
	if errors.Is(err, store.ErrNotFound) {
		respondError(w, http.StatusNotFound, "Project not found")
		return nil, false
	}
	if err != nil {
		log.Printf("[API] Failed to load project %s: %v", projectID, err)
		respondError(w, http.StatusInternalServerError, "Failed to load project")
		return nil, false
	}
	return project, true
}

// readImageUpload pulls the "image" multipart field, checks the extension
// and returns the MIME type with the raw bytes.
func (h *Handler) readImageUpload(w http.ResponseWriter, r *http.Request) (string, []byte, bool) {
	file, header, err := r.FormFile("image")
	if err != nil {
		respondError(w, http.StatusBadRequest, "No image file provided")
		return "", nil, false
	}
	defer file.Close()

	mimeType, allowed := imageMIMETypes[strings.ToLower(filepath.Ext(header.Filename))]
	if !allowed {
		respondError(w, http.StatusBadRequest, "File type not allowed. Use png, jpg, jpeg or gif")
		return "", nil, false
	}

	data, err := io.ReadAll(file)
	if err != nil || len(data) == 0 {
		respondError(w, http.StatusBadRequest, "Empty image upload")
		return "", nil, false
	}
	return mimeType, data, true
}

// projectImage resolves the image used for generation: an explicit image_id
// query parameter wins, then the first uploaded image, then the legacy
// single-image path. It writes the error response itself on failure.
func (h *Handler) projectImage(w http.ResponseWriter, r *http.Request, project *models.Project) ([]byte, string, bool) {
	var (
		data     []byte
		mimeType string
		err      error
	)

	switch {
	case r.URL.Query().Get("image_id") != "":
		imageID, convErr := strconv.Atoi(r.URL.Query().Get("image_id"))
		if convErr != nil {
			respondError(w, http.StatusBadRequest, "Invalid image_id")
			return nil, "", false
		}
		data, mimeType, err = h.store.GetImage(r.Context(), project.ID, imageID)
	case len(project.Images) > 0:
		data, mimeType, err = h.store.GetImage(r.Context(), project.ID, project.Images[0].ID)
	case project.ImagePath != nil && *project.ImagePath != "":
		data, mimeType, err = h.imageByPath(r.Context(), *project.ImagePath)
	default:
		respondError(w, http.StatusBadRequest, "No image found for this project. Upload an image first")
		return nil, "", false
	}

	if errors.Is(err, store.ErrNotFound) {
		respondError(w, http.StatusNotFound, "Image not found")
		return nil, "", false
	}
	if err != nil {
		log.Printf("[API] Failed to load image for %s: %v", project.ID, err)
		respondError(w, http.StatusInternalServerError, "Failed to load image")
		return nil, "", false
	}
	return data, mimeType, true
}

// imageByPath loads an image through its serving path, accepting both the
// "{projectID}-image-{id}" format and the legacy "{projectID}/{filename}" one.
func (h *Handler) imageByPath(ctx context.Context, imagePath string) ([]byte, string, error) {
	ref := strings.TrimPrefix(imagePath, "/api/images/")
	if strings.Contains(ref, "-image-") {
		projectID, imageID, err := store.ParseImageRef(ref)
		if err != nil {
			return nil, "", err
		}
		return h.store.GetImage(ctx, projectID, imageID)
	}
	if parts := strings.SplitN(ref, "/", 2); len(parts) == 2 {
		return h.store.GetLegacyImage(ctx, parts[0], parts[1])
	}
	return nil, "", store.ErrNotFound
}

// storeVideoResult records the provider outcome on the project. Persistence
// failures are logged, not surfaced: the generation result still reaches the
// client in the response.
func (h *Handler) storeVideoResult(ctx context.Context, project *models.Project, info *models.VideoInfo) {
	project.Video = info
	project.Touch()
	if err := h.store.SaveProject(ctx, project); err != nil {
		log.Printf("[API] Failed to persist video result for %s: %v", project.ID, err)
	}
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
