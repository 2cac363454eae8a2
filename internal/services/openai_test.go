package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/salesreel/salesreel/internal/config"
)

type capturedChatRequest struct {
	Model       string  `json:"model"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float32 `json:"temperature"`
	Messages    []struct {
		Role    string          `json:"role"`
		Content json.RawMessage `json:"content"`
	} `json:"messages"`
}

func TestGenerateScript(t *testing.T) {
	var captured capturedChatRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			http.NotFound(w, r)
			return
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"choices":[{"message":{"role":"assistant","content":"Introducing the Widget."}}]}`)
	}))
	defer srv.Close()

	cfg := &config.Config{
		OpenAIKey:     "test-key",
		OpenAIBaseURL: srv.URL + "/v1",
		OpenAIModel:   "gpt-4o",
	}
	svc := NewOpenAIService(cfg, config.DefaultPrompts())

	script, err := svc.GenerateScript(context.Background(), []byte{0xff, 0xd8, 0xff}, "image/jpeg", "Widget", "A premium widget")
	if err != nil {
		t.Fatalf("GenerateScript() error = %v", err)
	}
	if script != "Introducing the Widget." {
		t.Errorf("script = %q", script)
	}

	if captured.Model != "gpt-4o" {
		t.Errorf("model = %q", captured.Model)
	}
	if captured.MaxTokens != 500 {
		t.Errorf("max_tokens = %d, want 500", captured.MaxTokens)
	}
	if captured.Temperature != 0.7 {
		t.Errorf("temperature = %v, want 0.7", captured.Temperature)
	}
	if len(captured.Messages) != 2 {
		t.Fatalf("messages = %d, want 2", len(captured.Messages))
	}
	if captured.Messages[0].Role != "system" {
		t.Errorf("first message role = %q", captured.Messages[0].Role)
	}

	// The user turn is multipart: a text part plus the image as a data URL.
	var parts []struct {
		Type     string `json:"type"`
		Text     string `json:"text"`
		ImageURL struct {
			URL string `json:"url"`
		} `json:"image_url"`
	}
	if err := json.Unmarshal(captured.Messages[1].Content, &parts); err != nil {
		t.Fatalf("user content is not multipart: %v", err)
	}
	if len(parts) != 2 {
		t.Fatalf("user parts = %d, want 2", len(parts))
	}
	if !strings.Contains(parts[0].Text, "product named 'Widget'") {
		t.Errorf("text part = %q", parts[0].Text)
	}
	if !strings.Contains(parts[0].Text, "Product description: A premium widget") {
		t.Errorf("text part missing description: %q", parts[0].Text)
	}
	if !strings.HasPrefix(parts[1].ImageURL.URL, "data:image/jpeg;base64,") {
		t.Errorf("image part = %q", parts[1].ImageURL.URL)
	}
}

func TestGenerateScriptNoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"choices":[]}`)
	}))
	defer srv.Close()

	cfg := &config.Config{OpenAIKey: "k", OpenAIBaseURL: srv.URL + "/v1", OpenAIModel: "gpt-4o"}
	svc := NewOpenAIService(cfg, config.DefaultPrompts())

	if _, err := svc.GenerateScript(context.Background(), []byte{1}, "image/png", "Widget", ""); err == nil {
		t.Error("expected error for empty choices")
	}
}

func TestGenerateScriptRequiresImage(t *testing.T) {
	cfg := &config.Config{OpenAIKey: "k", OpenAIModel: "gpt-4o"}
	svc := NewOpenAIService(cfg, config.DefaultPrompts())

	if _, err := svc.GenerateScript(context.Background(), nil, "", "Widget", ""); err == nil {
		t.Error("expected error for missing image data")
	}
}

func TestBuildScriptUserMessage(t *testing.T) {
	got := buildScriptUserMessage("Lamp", "")
	if got != "Create a marketing script for the product named 'Lamp'. Base your script on the features and benefits visible in the image." {
		t.Errorf("message = %q", got)
	}

	withDesc := buildScriptUserMessage("Lamp", "warm light")
	if !strings.Contains(withDesc, ". Product description: warm light. Base your script") {
		t.Errorf("message = %q", withDesc)
	}
}

func TestNewScriptGeneratorFallsBackToOpenAI(t *testing.T) {
	cfg := &config.Config{LLMProvider: "mistral", OpenAIKey: "k", OpenAIModel: "gpt-4o"}

	gen := NewScriptGenerator(cfg, config.DefaultPrompts())
	if gen == nil {
		t.Fatal("expected a generator")
	}
	if _, ok := gen.(*OpenAIService); !ok {
		t.Errorf("generator type = %T, want *OpenAIService", gen)
	}
}
