package llm

import (
	"artsheets/internal/catalog"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/volcengine/volcengine-go-sdk/service/arkruntime"
	volcModel "github.com/volcengine/volcengine-go-sdk/service/arkruntime/model"
	"github.com/volcengine/volcengine-go-sdk/volcengine"
)

//文档:https://www.volcengine.com/docs/82379/1824121

// 3:4 与 4:3 的推荐像素值
const (
	volcenginePortraitSize  = "1728x2304"
	volcengineLandscapeSize = "2304x1728"
)

// VolcengineBackend generates sheets with the Ark Seedream models.
type VolcengineBackend struct {
	client *arkruntime.Client
	model  string
}

func NewVolcengineBackend(apiKey, model string) (*VolcengineBackend, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("volcengine api key is not configured")
	}
	model = strings.TrimSpace(model)
	if model == "" {
		model = "doubao-seedream-4-0-250828"
	}
	return &VolcengineBackend{
		client: arkruntime.NewClientWithApiKey(apiKey),
		model:  model,
	}, nil
}

func (v *VolcengineBackend) Name() string {
	return BackendVolcengine
}

func (v *VolcengineBackend) GenerateImage(ctx context.Context, req ImageRequest) (*ImageResult, error) {
	logger := backendLogger(ctx, v.Name(), v.model)
	logger.WithField("prompt_preview", logSnippet(req.Prompt)).Debug("llm_generate_image_start")

	stream, err := v.client.GenerateImagesStreaming(ctx, buildVolcengineRequest(v.model, req))
	if err != nil {
		logger.WithError(err).Warn("llm_generate_image_failed")
		return nil, fmt.Errorf("volcengine generate images: %w", err)
	}
	defer stream.Close()

	var imageURL, failure string
	for {
		recv, err := stream.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			logger.WithError(err).Warn("llm_generate_image_stream_failed")
			return nil, fmt.Errorf("volcengine stream: %w", err)
		}
		switch recv.Type {
		case "image_generation.partial_failed":
			if recv.Error != nil {
				failure = strings.TrimSpace(recv.Error.Code + " " + recv.Error.Message)
			}
		case "image_generation.partial_succeeded":
			if recv.Error == nil && recv.Url != nil && imageURL == "" {
				imageURL = strings.TrimSpace(*recv.Url)
			}
		}
	}

	if imageURL == "" {
		if failure == "" {
			failure = "no image returned"
		}
		return nil, fmt.Errorf("volcengine: %s", failure)
	}
	return &ImageResult{URL: imageURL}, nil
}

func buildVolcengineRequest(model string, req ImageRequest) volcModel.GenerateImagesRequest {
	size := volcenginePortraitSize
	if req.Orientation == catalog.OrientationLandscape {
		size = volcengineLandscapeSize
	}
	var sequential volcModel.SequentialImageGeneration = "disabled"
	return volcModel.GenerateImagesRequest{
		Model:                     model,
		Prompt:                    req.Prompt,
		Size:                      volcengine.String(size),
		ResponseFormat:            volcengine.String(volcModel.GenerateImagesResponseFormatURL),
		Watermark:                 volcengine.Bool(req.Watermark),
		SequentialImageGeneration: &sequential,
	}
}

var _ Backend = (*VolcengineBackend)(nil)
