package storage

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

const dirMode = 0o755

// FileStore keeps all generated media on local disk, one subdirectory per
// project for videos and speeches, a flat outputs dir for merge results and
// a per-request scratch area for sidecar uploads.
type FileStore struct {
	VideoDir  string
	SpeechDir string
	UploadDir string
	OutputDir string
}

func New(videoDir, speechDir, uploadDir, outputDir string) (*FileStore, error) {
	fs := &FileStore{
		VideoDir:  videoDir,
		SpeechDir: speechDir,
		UploadDir: uploadDir,
		OutputDir: outputDir,
	}

	for _, dir := range []string{videoDir, speechDir, uploadDir, outputDir} {
		if err := os.MkdirAll(dir, dirMode); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return fs, nil
}

// EnsureVideoDir creates (if needed) and returns the video directory for a project.
func (f *FileStore) EnsureVideoDir(projectID string) (string, error) {
	return f.ensureProjectDir(f.VideoDir, projectID)
}

// EnsureSpeechDir creates (if needed) and returns the speech directory for a project.
func (f *FileStore) EnsureSpeechDir(projectID string) (string, error) {
	return f.ensureProjectDir(f.SpeechDir, projectID)
}

func (f *FileStore) ensureProjectDir(root, projectID string) (string, error) {
	dir, err := securePath(root, projectID)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, dirMode); err != nil {
		return "", fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return dir, nil
}

// NewVideoPath returns a fresh destination for a generated project video.
func (f *FileStore) NewVideoPath(projectID string) (string, error) {
	dir, err := f.EnsureVideoDir(projectID)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, uuid.New().String()+".mp4"), nil
}

// NewSpeechPath returns a fresh destination for generated narration audio.
// Mock narration gets a distinct prefix so it is obvious in the tree.
func (f *FileStore) NewSpeechPath(projectID string, mock bool) (string, error) {
	dir, err := f.EnsureSpeechDir(projectID)
	if err != nil {
		return "", err
	}
	prefix := "speech"
	if mock {
		prefix = "mock_speech"
	}
	return filepath.Join(dir, fmt.Sprintf("%s_%d.mp3", prefix, time.Now().Unix())), nil
}

// CleanSpeeches removes previously generated narration files for a project so
// regenerating never leaves stale takes behind. Returns how many were removed.
func (f *FileStore) CleanSpeeches(projectID string) (int, error) {
	dir, err := securePath(f.SpeechDir, projectID)
	if err != nil {
		return 0, err
	}

	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to list speech directory %s: %w", dir, err)
	}

	removed := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".mp3") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := os.Remove(path); err != nil {
			log.Printf("[Storage] Failed to remove old speech file %s: %v", path, err)
			continue
		}
		removed++
	}

	return removed, nil
}

// ScratchDir creates a per-request working directory for sidecar uploads.
func (f *FileStore) ScratchDir(processID string) (string, error) {
	dir, err := securePath(f.UploadDir, processID)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, dirMode); err != nil {
		return "", fmt.Errorf("failed to create scratch directory %s: %w", dir, err)
	}
	return dir, nil
}

// RemoveScratch deletes a request's scratch directory. Best effort: merge
// results have already been moved out by the time this runs.
func (f *FileStore) RemoveScratch(processID string) {
	dir, err := securePath(f.UploadDir, processID)
	if err != nil {
		return
	}
	if err := os.RemoveAll(dir); err != nil {
		log.Printf("[Storage] Failed to remove scratch directory %s: %v", dir, err)
	}
}

// OutputPath returns the destination for a merged file.
func (f *FileStore) OutputPath(processID, ext string) string {
	return filepath.Join(f.OutputDir, fmt.Sprintf("merged_%s.%s", processID, ext))
}

// RemoveProject deletes every file generated for a project. Best effort.
func (f *FileStore) RemoveProject(projectID string) {
	for _, root := range []string{f.VideoDir, f.SpeechDir} {
		dir, err := securePath(root, projectID)
		if err != nil {
			continue
		}
		if err := os.RemoveAll(dir); err != nil {
			log.Printf("[Storage] Failed to remove project directory %s: %v", dir, err)
		}
	}
}

// ResolveVideo maps a project ID and filename to a servable path under VideoDir.
func (f *FileStore) ResolveVideo(projectID, filename string) (string, error) {
	return securePath(f.VideoDir, projectID, filename)
}

// ResolveSpeech maps a project ID and filename to a servable path under SpeechDir.
func (f *FileStore) ResolveSpeech(projectID, filename string) (string, error) {
	return securePath(f.SpeechDir, projectID, filename)
}

// ResolveOutput maps a filename to a servable path under OutputDir.
func (f *FileStore) ResolveOutput(filename string) (string, error) {
	return securePath(f.OutputDir, filename)
}

// SaveStream writes a reader to path, creating parent directories as needed.
func (f *FileStore) SaveStream(path string, r io.Reader) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(path), dirMode); err != nil {
		return 0, fmt.Errorf("failed to create directory %s: %w", filepath.Dir(path), err)
	}

	out, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("failed to create file %s: %w", path, err)
	}

	n, err := io.Copy(out, r)
	if err != nil {
		out.Close()
		os.Remove(path)
		return 0, fmt.Errorf("failed to write file %s: %w", path, err)
	}
	if err := out.Close(); err != nil {
		return 0, fmt.Errorf("failed to close file %s: %w", path, err)
	}

	return n, nil
}

// SaveBytes writes data to path, creating parent directories as needed.
func (f *FileStore) SaveBytes(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), dirMode); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write file %s: %w", path, err)
	}
	return nil
}

// SafeName reduces an uploaded filename to a single safe path component.
// Anything outside [A-Za-z0-9._-] becomes an underscore and leading dots are
// stripped so uploads can never hide or escape.
func SafeName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))

	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.' || r == '-' || r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}

	cleaned := strings.TrimLeft(b.String(), ".")
	if cleaned == "" {
		return "upload"
	}
	return cleaned
}

// securePath joins parts under root, rejecting anything that could step
// outside it. Every part must be a plain name: no separators, no "..",
// no absolute paths.
func securePath(root string, parts ...string) (string, error) {
	for _, p := range parts {
		if p == "" || p == "." || p == ".." {
			return "", fmt.Errorf("invalid path component %q", p)
		}
		if filepath.IsAbs(p) || strings.ContainsAny(p, `/\`) {
			return "", fmt.Errorf("invalid path component %q", p)
		}
	}
	return filepath.Join(append([]string{root}, parts...)...), nil
}
