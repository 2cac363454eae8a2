package models

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestNewProject(t *testing.T) {
	p := NewProject("Air Fryer", "compact 4L air fryer")

	if p.ID == "" {
		t.Fatal("expected a generated project ID")
	}
	if p.Name != "Air Fryer" {
		t.Errorf("expected name=Air Fryer, got %q", p.Name)
	}
	if p.Images == nil {
		t.Error("expected images to be initialized, got nil")
	}
	if p.CreatedAt.IsZero() || p.UpdatedAt.IsZero() {
		t.Error("expected timestamps to be set")
	}
}

func TestProjectJSONContract(t *testing.T) {
	p := NewProject("Lamp", "")

	data, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("failed to marshal project: %v", err)
	}

	var doc map[string]interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("failed to unmarshal result: %v", err)
	}

	// Null-but-present fields older clients rely on
	for _, key := range []string{"image_path", "script", "video"} {
		v, ok := doc[key]
		if !ok {
			t.Errorf("expected %q to be present", key)
			continue
		}
		if v != nil {
			t.Errorf("expected %q to be null on a new project, got %v", key, v)
		}
	}

	if _, ok := doc["images"].([]interface{}); !ok {
		t.Errorf("expected images to marshal as an array, got %T", doc["images"])
	}

	// A fresh project has no narration or narrated video yet
	if _, ok := doc["speech"]; ok {
		t.Error("expected speech to be omitted on a new project")
	}
	if _, ok := doc["narrated_video"]; ok {
		t.Error("expected narrated_video to be omitted on a new project")
	}
}

func TestProjectRoundTrip(t *testing.T) {
	p := NewProject("Bottle", "insulated steel bottle")
	script := "Meet the bottle that keeps up with you."
	p.Script = &script
	p.Images = []ProjectImage{{ID: 1, Path: ImageServePath(p.ID, 1)}}
	p.Video = &VideoInfo{
		Status:   VideoStatusCompleted,
		URL:      "https://cdn.example.com/v/abc.mp4",
		Duration: 10.5,
		Path:     "/api/videos/" + p.ID + "/abc.mp4",
	}

	data, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("failed to marshal project: %v", err)
	}

	var got Project
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("failed to unmarshal project: %v", err)
	}

	if got.ID != p.ID {
		t.Errorf("expected id=%s, got %s", p.ID, got.ID)
	}
	if got.Script == nil || *got.Script != script {
		t.Errorf("expected script to round-trip, got %v", got.Script)
	}
	if got.Video == nil || got.Video.Status != VideoStatusCompleted {
		t.Errorf("expected completed video, got %+v", got.Video)
	}
	if got.Video.Duration != 10.5 {
		t.Errorf("expected duration=10.5, got %v", got.Video.Duration)
	}
	if len(got.Images) != 1 || got.Images[0].ID != 1 {
		t.Errorf("expected one image with id=1, got %+v", got.Images)
	}
}

func TestImageServePath(t *testing.T) {
	path := ImageServePath("abc-123", 7)
	if path != "/api/images/abc-123-image-7" {
		t.Errorf("unexpected image path: %s", path)
	}
	if !strings.HasPrefix(path, "/api/images/") {
		t.Errorf("expected /api/images/ prefix, got %s", path)
	}
}

func TestVideoStatus(t *testing.T) {
	statuses := []VideoStatus{
		VideoStatusProcessing,
		VideoStatusCompleted,
		VideoStatusFailed,
	}

	for _, status := range statuses {
		if status == "" {
			t.Errorf("empty status found")
		}
	}
}

func TestMergeResultJSON(t *testing.T) {
	res := MergeResult{
		Success:    true,
		InputVideo: &MediaInfo{Path: "in.mp4", Duration: 10},
		InputAudio: &MediaInfo{Path: "in.mp3", Duration: 12},
		Output:     &MediaInfo{Path: "out.mp4", Duration: 10},
		SpeedRatio: 1.2,
		Strategy:   SyncStrategyStretch,
	}

	data, err := json.Marshal(res)
	if err != nil {
		t.Fatalf("failed to marshal merge result: %v", err)
	}

	var doc map[string]interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("failed to unmarshal result: %v", err)
	}

	if doc["success"] != true {
		t.Errorf("expected success=true, got %v", doc["success"])
	}
	if doc["speed_ratio"].(float64) != 1.2 {
		t.Errorf("expected speed_ratio=1.2, got %v", doc["speed_ratio"])
	}
	if doc["strategy"] != "stretch" {
		t.Errorf("expected strategy=stretch, got %v", doc["strategy"])
	}
	if _, ok := doc["error"]; ok {
		t.Error("expected error to be omitted on success")
	}

	failed := MergeResult{Success: false, Error: "audio file not found"}
	data, err = json.Marshal(failed)
	if err != nil {
		t.Fatalf("failed to marshal failed result: %v", err)
	}
	if !strings.Contains(string(data), `"error":"audio file not found"`) {
		t.Errorf("expected error message in JSON, got %s", data)
	}
}
