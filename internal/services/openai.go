package services

import (
	"context"
	"encoding/base64"
	"fmt"
	"log"

	openai "github.com/sashabaranov/go-openai"

	"github.com/salesreel/salesreel/internal/config"
)

// OpenAIService drafts marketing scripts from product photos with a vision
// chat completion.
type OpenAIService struct {
	client  *openai.Client
	model   string
	prompts config.ScriptPrompt
}

func NewOpenAIService(cfg *config.Config, prompts *config.Prompts) *OpenAIService {
	clientCfg := openai.DefaultConfig(cfg.OpenAIKey)
	if cfg.OpenAIBaseURL != "" {
		clientCfg.BaseURL = cfg.OpenAIBaseURL
	}

	return &OpenAIService{
		client:  openai.NewClientWithConfig(clientCfg),
		model:   cfg.OpenAIModel,
		prompts: prompts.Script,
	}
}

// GenerateScript sends the product image plus project context to the model
// and returns the drafted script.
func (s *OpenAIService) GenerateScript(ctx context.Context, image []byte, mimeType, name, description string) (string, error) {
	if len(image) == 0 {
		return "", fmt.Errorf("no image data provided")
	}
	if mimeType == "" {
		mimeType = "image/jpeg"
	}

	imageURL := fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(image))

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: s.prompts.System,
			},
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{
						Type: openai.ChatMessagePartTypeText,
						Text: buildScriptUserMessage(name, description),
					},
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL: imageURL,
						},
					},
				},
			},
		},
		MaxTokens:   s.prompts.MaxTokens,
		Temperature: s.prompts.Temperature,
	})
	if err != nil {
		return "", fmt.Errorf("openai request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response from openai")
	}

	script := resp.Choices[0].Message.Content
	log.Printf("[LLM] Generated script for %q (%d chars)", name, len(script))
	return script, nil
}

// buildScriptUserMessage puts the project context into the user turn.
func buildScriptUserMessage(name, description string) string {
	msg := fmt.Sprintf("Create a marketing script for the product named '%s'", name)
	if description != "" {
		msg += fmt.Sprintf(". Product description: %s", description)
	}
	msg += ". Base your script on the features and benefits visible in the image."
	return msg
}
