package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/salesreel/salesreel/internal/config"
	"github.com/salesreel/salesreel/internal/models"
)

func TestNewVideoGeneratorSelection(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.Config
		want string
	}{
		{"kling", config.Config{VideoProvider: "kling"}, "kling"},
		{"veo", config.Config{VideoProvider: "veo"}, "veo"},
		{"mock", config.Config{VideoProvider: "mock"}, "mock"},
		{"unknown falls back to kling", config.Config{VideoProvider: "runway"}, "kling"},
		{"mock flag wins", config.Config{VideoProvider: "kling", UseMockVideoGen: true}, "mock"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var got string
			switch NewVideoGenerator(&tc.cfg).(type) {
			case *KlingClient:
				got = "kling"
			case *VeoClient:
				got = "veo"
			case *MockVideoGenerator:
				got = "mock"
			default:
				got = fmt.Sprintf("%T", NewVideoGenerator(&tc.cfg))
			}
			if got != tc.want {
				t.Errorf("provider = %s, want %s", got, tc.want)
			}
		})
	}
}

func TestMockVideoGeneratorGenerateVideo(t *testing.T) {
	gen := &MockVideoGenerator{} // zero delay keeps the test instant
	info, err := gen.GenerateVideo(context.Background(), VideoRequest{ProjectID: "proj-1", Prompt: "hello"})
	if err != nil {
		t.Fatalf("GenerateVideo: %v", err)
	}
	if info.Status != models.VideoStatusCompleted {
		t.Errorf("status = %q", info.Status)
	}
	if !strings.HasPrefix(info.URL, "/api/videos/") {
		t.Errorf("url = %q", info.URL)
	}
	if info.Duration != 10 {
		t.Errorf("duration = %v, want 10", info.Duration)
	}
	if !info.Mock {
		t.Error("mock flag should be set")
	}
	if info.LocalPath != "" {
		t.Errorf("mock must not write files, got local path %q", info.LocalPath)
	}
}

func TestMockVideoGeneratorHonorsContext(t *testing.T) {
	gen := &MockVideoGenerator{delay: time.Minute}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	info, err := gen.GenerateVideo(ctx, VideoRequest{ProjectID: "proj-1"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if info.Status != models.VideoStatusFailed {
		t.Errorf("status = %q", info.Status)
	}
}

func TestVideoFailure(t *testing.T) {
	info, err := videoFailure(errors.New("boom"))
	if err == nil || err.Error() != "boom" {
		t.Fatalf("err = %v", err)
	}
	if info.Status != models.VideoStatusFailed {
		t.Errorf("status = %q", info.Status)
	}
	if info.Error != "boom" {
		t.Errorf("error field = %q", info.Error)
	}
}
