// Package llm turns a validated worksheet request into stored images by
// calling an external image generation backend.
package llm

import (
	"artsheets/internal/catalog"
	"context"
	"fmt"
)

// ImageRequest is a single image generation call.
type ImageRequest struct {
	Prompt      string
	Orientation catalog.Orientation
	Watermark   bool
}

// ImageResult carries either a downloadable URL or inline base64 data.
type ImageResult struct {
	URL     string
	B64JSON string
}

// Backend is an external image generation service.
type Backend interface {
	Name() string
	GenerateImage(ctx context.Context, req ImageRequest) (*ImageResult, error)
}

// GenerationBackendError wraps any failure that prevented a full batch from being produced.
type GenerationBackendError struct {
	Backend string
	Cause   error
}

func (e *GenerationBackendError) Error() string {
	return fmt.Sprintf("generation backend %s failed: %v", e.Backend, e.Cause)
}

func (e *GenerationBackendError) Unwrap() error {
	return e.Cause
}
