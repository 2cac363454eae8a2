package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Prompts holds the tunable prompt presets. They ship with compiled-in
// defaults and can be overridden per deployment with a YAML file, so copy
// changes don't require a rebuild.
type Prompts struct {
	Script ScriptPrompt `yaml:"script"`
}

// ScriptPrompt drives the marketing-script LLM call.
type ScriptPrompt struct {
	System      string  `yaml:"system"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float32 `yaml:"temperature"`
}

const defaultScriptSystemPrompt = `You are a professional marketing copywriter specializing in creating compelling sales scripts for product videos. Your task is to create a brief, engaging sales script based on the product image provided. The script should:

1. Highlight the key features and benefits
2. Use persuasive and professional language
3. Be 150-200 words in length
4. Have a clear structure with an attention-grabbing opening, compelling middle, and strong call to action
5. Focus on emotional appeal and value proposition

The script will be used as a voiceover for a short sales video.`

// DefaultPrompts returns the compiled-in presets.
func DefaultPrompts() *Prompts {
	return &Prompts{
		Script: ScriptPrompt{
			System:      defaultScriptSystemPrompt,
			MaxTokens:   500,
			Temperature: 0.7,
		},
	}
}

// LoadPrompts reads presets from path. A missing file falls back to the
// defaults; a present but unparseable file is an error. Fields left empty in
// the file keep their default values.
func LoadPrompts(path string) (*Prompts, error) {
	prompts := DefaultPrompts()

	if path == "" {
		return prompts, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return prompts, nil
		}
		return nil, fmt.Errorf("failed to read prompts file %s: %w", path, err)
	}

	var overrides Prompts
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return nil, fmt.Errorf("failed to parse prompts file %s: %w", path, err)
	}

	if overrides.Script.System != "" {
		prompts.Script.System = overrides.Script.System
	}
	if overrides.Script.MaxTokens > 0 {
		prompts.Script.MaxTokens = overrides.Script.MaxTokens
	}
	if overrides.Script.Temperature > 0 {
		prompts.Script.Temperature = overrides.Script.Temperature
	}

	return prompts, nil
}
