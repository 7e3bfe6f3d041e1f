package llm

import (
	"artsheets/internal/config"
	"fmt"
	"strings"
)

const (
	BackendVolcengine = "volcengine"
	BackendOpenAI     = "openai"
)

// NewBackend instantiates the generation backend selected by GENERATION_BACKEND.
func NewBackend(cfg config.Config) (Backend, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.GenerationBackend)) {
	case "", BackendVolcengine:
		return NewVolcengineBackend(cfg.VolcengineAPIKey, cfg.VolcengineModel)
	case BackendOpenAI:
		return NewOpenAIBackend(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIImageModel)
	default:
		return nil, fmt.Errorf("unsupported generation backend: %s", cfg.GenerationBackend)
	}
}
