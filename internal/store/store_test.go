package store

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"

	"github.com/salesreel/salesreel/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewWithClient(client)
}

func TestSaveAndGetProject(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p := models.NewProject("Blender", "600W kitchen blender")
	if err := s.SaveProject(ctx, p); err != nil {
		t.Fatalf("failed to save project: %v", err)
	}

	got, err := s.GetProject(ctx, p.ID)
	if err != nil {
		t.Fatalf("failed to get project: %v", err)
	}
	if got.Name != "Blender" || got.Description != "600W kitchen blender" {
		t.Errorf("unexpected project: %+v", got)
	}
	if got.Images == nil || len(got.Images) != 0 {
		t.Errorf("expected empty images list, got %v", got.Images)
	}
}

func TestGetProjectNotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetProject(context.Background(), "no-such-id")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestListProjectsNewestFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, name := range []string{"first", "second", "third"} {
		p := models.NewProject(name, "")
		p.CreatedAt = base.Add(time.Duration(i) * time.Hour)
		if err := s.SaveProject(ctx, p); err != nil {
			t.Fatalf("failed to save %s: %v", name, err)
		}
	}

	projects, err := s.ListProjects(ctx)
	if err != nil {
		t.Fatalf("failed to list projects: %v", err)
	}
	if len(projects) != 3 {
		t.Fatalf("expected 3 projects, got %d", len(projects))
	}
	if projects[0].Name != "third" || projects[2].Name != "first" {
		t.Errorf("expected newest first, got %s, %s, %s",
			projects[0].Name, projects[1].Name, projects[2].Name)
	}
}

func TestListProjectsEmpty(t *testing.T) {
	s := newTestStore(t)

	projects, err := s.ListProjects(context.Background())
	if err != nil {
		t.Fatalf("failed to list projects: %v", err)
	}
	if projects == nil {
		t.Error("expected empty slice, got nil")
	}
	if len(projects) != 0 {
		t.Errorf("expected no projects, got %d", len(projects))
	}
}

func TestSaveImageAssignsSequentialIDs(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p := models.NewProject("Chair", "")
	if err := s.SaveProject(ctx, p); err != nil {
		t.Fatalf("failed to save project: %v", err)
	}

	id1, err := s.SaveImage(ctx, p.ID, "image/png", []byte{0x89, 0x50})
	if err != nil {
		t.Fatalf("failed to save first image: %v", err)
	}
	id2, err := s.SaveImage(ctx, p.ID, "image/jpeg", []byte{0xff, 0xd8})
	if err != nil {
		t.Fatalf("failed to save second image: %v", err)
	}

	if id1 != 1 || id2 != 2 {
		t.Errorf("expected ids 1 and 2, got %d and %d", id1, id2)
	}

	// Deleting id 1 must not renumber id 2
	if err := s.DeleteImage(ctx, p.ID, id1); err != nil {
		t.Fatalf("failed to delete image: %v", err)
	}
	next, err := s.NextImageID(ctx, p.ID)
	if err != nil {
		t.Fatalf("failed to get next id: %v", err)
	}
	if next != 3 {
		t.Errorf("expected next id 3 after deleting image 1, got %d", next)
	}

	ids, err := s.ListImageIDs(ctx, p.ID)
	if err != nil {
		t.Fatalf("failed to list image ids: %v", err)
	}
	if len(ids) != 1 || ids[0] != 2 {
		t.Errorf("expected remaining id [2], got %v", ids)
	}
}

func TestGetImageRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	raw := []byte{0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a}
	id, err := s.SaveImage(ctx, "proj-1", "image/png", raw)
	if err != nil {
		t.Fatalf("failed to save image: %v", err)
	}

	data, mimeType, err := s.GetImage(ctx, "proj-1", id)
	if err != nil {
		t.Fatalf("failed to get image: %v", err)
	}
	if mimeType != "image/png" {
		t.Errorf("expected image/png, got %s", mimeType)
	}
	if !bytes.Equal(data, raw) {
		t.Errorf("image bytes did not round-trip: got %v", data)
	}
}

func TestGetImageBareBase64(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// Old entries stored bare base64 without the data: prefix
	if err := s.client.Set(ctx, ImageKey("proj-1", 1), "/9j/4AA=", 0).Err(); err != nil {
		t.Fatalf("failed to seed image: %v", err)
	}

	data, mimeType, err := s.GetImage(ctx, "proj-1", 1)
	if err != nil {
		t.Fatalf("failed to get image: %v", err)
	}
	if mimeType != "image/jpeg" {
		t.Errorf("expected jpeg fallback, got %s", mimeType)
	}
	if len(data) == 0 {
		t.Error("expected decoded bytes")
	}
}

func TestDeleteImageNotFound(t *testing.T) {
	s := newTestStore(t)

	err := s.DeleteImage(context.Background(), "proj-1", 42)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestRefreshImageMetadata(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p := models.NewProject("Desk", "")
	if err := s.SaveProject(ctx, p); err != nil {
		t.Fatalf("failed to save project: %v", err)
	}

	for i := 0; i < 2; i++ {
		if _, err := s.SaveImage(ctx, p.ID, "image/jpeg", []byte{byte(i)}); err != nil {
			t.Fatalf("failed to save image: %v", err)
		}
	}

	updated, err := s.RefreshImageMetadata(ctx, p.ID)
	if err != nil {
		t.Fatalf("failed to refresh metadata: %v", err)
	}
	if len(updated.Images) != 2 {
		t.Fatalf("expected 2 images, got %d", len(updated.Images))
	}
	if updated.ImagePath == nil || *updated.ImagePath != updated.Images[0].Path {
		t.Errorf("expected image_path to point at the first image, got %v", updated.ImagePath)
	}
	if updated.Images[0].Path != models.ImageServePath(p.ID, 1) {
		t.Errorf("unexpected image path: %s", updated.Images[0].Path)
	}

	// Remove everything; the primary image path must clear
	for _, id := range []int{1, 2} {
		if err := s.DeleteImage(ctx, p.ID, id); err != nil {
			t.Fatalf("failed to delete image %d: %v", id, err)
		}
	}
	updated, err = s.RefreshImageMetadata(ctx, p.ID)
	if err != nil {
		t.Fatalf("failed to refresh metadata: %v", err)
	}
	if len(updated.Images) != 0 {
		t.Errorf("expected no images, got %v", updated.Images)
	}
	if updated.ImagePath != nil {
		t.Errorf("expected image_path cleared, got %v", *updated.ImagePath)
	}
}

func TestDeleteProjectRemovesImages(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p := models.NewProject("Kettle", "")
	if err := s.SaveProject(ctx, p); err != nil {
		t.Fatalf("failed to save project: %v", err)
	}
	if _, err := s.SaveImage(ctx, p.ID, "image/png", []byte{1}); err != nil {
		t.Fatalf("failed to save image: %v", err)
	}

	// Seed an old-format image referenced by image_path
	legacyPath := "/api/images/" + p.ID + "/photo.jpg"
	p.ImagePath = &legacyPath
	if err := s.client.Set(ctx, LegacyImageKey(p.ID, "photo.jpg"), "/9j/4AA=", 0).Err(); err != nil {
		t.Fatalf("failed to seed legacy image: %v", err)
	}
	if err := s.SaveProject(ctx, p); err != nil {
		t.Fatalf("failed to save project: %v", err)
	}

	if err := s.DeleteProject(ctx, p.ID); err != nil {
		t.Fatalf("failed to delete project: %v", err)
	}

	if _, err := s.GetProject(ctx, p.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected project gone, got %v", err)
	}
	if _, _, err := s.GetImage(ctx, p.ID, 1); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected image gone, got %v", err)
	}
	if _, _, err := s.GetLegacyImage(ctx, p.ID, "photo.jpg"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected legacy image gone, got %v", err)
	}
}

func TestDeleteProjectNotFound(t *testing.T) {
	s := newTestStore(t)

	err := s.DeleteProject(context.Background(), "no-such-id")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestParseImageRef(t *testing.T) {
	projectID, imageID, err := ParseImageRef("3fa85f64-5717-4562-b3fc-2c963f66afa6-image-3")
	if err != nil {
		t.Fatalf("failed to parse reference: %v", err)
	}
	if projectID != "3fa85f64-5717-4562-b3fc-2c963f66afa6" {
		t.Errorf("unexpected project id: %s", projectID)
	}
	if imageID != 3 {
		t.Errorf("expected image id 3, got %d", imageID)
	}

	for _, bad := range []string{"no-marker", "p-image-x", "p-image-1-image-2"} {
		if _, _, err := ParseImageRef(bad); err == nil {
			t.Errorf("expected error for %q", bad)
		}
	}
}

func TestDataURLCodec(t *testing.T) {
	raw := []byte("fake image bytes")
	url := BuildDataURL("image/gif", raw)

	mimeType, data, err := ParseDataURL(url)
	if err != nil {
		t.Fatalf("failed to parse data URL: %v", err)
	}
	if mimeType != "image/gif" {
		t.Errorf("expected image/gif, got %s", mimeType)
	}
	if !bytes.Equal(data, raw) {
		t.Errorf("bytes did not round-trip: %q", data)
	}

	if _, _, err := ParseDataURL("data:image/png;base64"); err == nil {
		t.Error("expected error for data URL without payload")
	}
	if _, _, err := ParseDataURL("not-base64!!!"); err == nil {
		t.Error("expected error for invalid base64")
	}
}
