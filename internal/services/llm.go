package services

import (
	"context"
	"log"

	"github.com/salesreel/salesreel/internal/config"
)

// ScriptGenerator turns a product photo into marketing narration copy.
type ScriptGenerator interface {
	// GenerateScript drafts a sales script for the product shown in the
	// image. mimeType describes the image bytes; name and description come
	// from the project.
	GenerateScript(ctx context.Context, image []byte, mimeType, name, description string) (string, error)
}

// NewScriptGenerator returns the configured LLM provider. Unrecognized
// providers fall back to OpenAI, which also covers any OpenAI-compatible
// endpoint via OPENAI_BASE_URL.
func NewScriptGenerator(cfg *config.Config, prompts *config.Prompts) ScriptGenerator {
	switch cfg.LLMProvider {
	case "openai", "":
	default:
		log.Printf("[LLM] Unrecognized LLM provider %q, using OpenAI", cfg.LLMProvider)
	}
	return NewOpenAIService(cfg, prompts)
}
