package llm

import (
	"artsheets/internal/catalog"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// OpenAIBackend calls an OpenAI compatible images API.
type OpenAIBackend struct {
	client *openai.Client
	model  string
}

func NewOpenAIBackend(apiKey, baseURL, model string) (*OpenAIBackend, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("openai api key is not configured")
	}
	openAIConfig := openai.DefaultConfig(apiKey)
	if trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/"); trimmed != "" {
		openAIConfig.BaseURL = trimmed
	}
	model = strings.TrimSpace(model)
	if model == "" {
		model = "gpt-image-1"
	}
	return &OpenAIBackend{
		client: openai.NewClientWithConfig(openAIConfig),
		model:  model,
	}, nil
}

func (o *OpenAIBackend) Name() string {
	return BackendOpenAI
}

func (o *OpenAIBackend) GenerateImage(ctx context.Context, req ImageRequest) (*ImageResult, error) {
	logger := backendLogger(ctx, o.Name(), o.model)
	logger.WithField("prompt_preview", logSnippet(req.Prompt)).Debug("llm_generate_image_start")

	resp, err := o.client.CreateImage(ctx, buildOpenAIRequest(o.model, req))
	if err != nil {
		logger.WithError(err).Warn("llm_generate_image_failed")
		return nil, fmt.Errorf("openai create image: %w", err)
	}
	for _, data := range resp.Data {
		result := &ImageResult{URL: strings.TrimSpace(data.URL), B64JSON: strings.TrimSpace(data.B64JSON)}
		if result.URL != "" || result.B64JSON != "" {
			return result, nil
		}
	}
	return nil, errors.New("openai returned no image")
}

func buildOpenAIRequest(model string, req ImageRequest) openai.ImageRequest {
	size := "1024x1536"
	if req.Orientation == catalog.OrientationLandscape {
		size = "1536x1024"
	}
	request := openai.ImageRequest{
		Prompt: req.Prompt,
		Model:  model,
		N:      1,
		Size:   size,
	}
	// gpt-image models always answer with base64 and reject response_format
	if !strings.HasPrefix(model, "gpt-image") {
		request.ResponseFormat = openai.CreateImageResponseFormatB64JSON
	}
	return request
}

var _ Backend = (*OpenAIBackend)(nil)
