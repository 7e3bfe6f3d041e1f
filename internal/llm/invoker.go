package llm

import (
	"artsheets/internal/catalog"
	"artsheets/internal/metrics"
	"artsheets/internal/storage"
	"artsheets/internal/utils"
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const (
	categorySheets     = "sheets"
	categoryThumbnails = "thumbnails"
	cleanupTimeout     = 30 * time.Second
)

// GeneratedImage is one stored image of a batch.
type GeneratedImage struct {
	Ordinal       int
	Prompt        string
	ImagePath     string
	ThumbnailPath string
}

// InvokerOptions tunes batch generation.
type InvokerOptions struct {
	Concurrency    int
	MaxAttempts    int
	ThumbnailWidth int
	HTTPClient     *http.Client
}

// Invoker produces a whole batch of stored images or nothing.
type Invoker struct {
	backend        Backend
	store          storage.Storage
	client         *http.Client
	concurrency    int
	maxAttempts    int
	thumbnailWidth int
}

func NewInvoker(backend Backend, store storage.Storage, opts InvokerOptions) *Invoker {
	inv := &Invoker{
		backend:        backend,
		store:          store,
		client:         opts.HTTPClient,
		concurrency:    opts.Concurrency,
		maxAttempts:    opts.MaxAttempts,
		thumbnailWidth: opts.ThumbnailWidth,
	}
	if inv.client == nil {
		inv.client = &http.Client{Timeout: 60 * time.Second}
	}
	if inv.concurrency <= 0 {
		inv.concurrency = 1
	}
	if inv.maxAttempts <= 0 {
		inv.maxAttempts = 1
	}
	if inv.thumbnailWidth <= 0 {
		inv.thumbnailWidth = 320
	}
	return inv
}

// Generate returns exactly count stored images, or a *GenerationBackendError.
// Images stored before a failure are deleted again.
func (inv *Invoker) Generate(ctx context.Context, spec catalog.Spec, count int) ([]GeneratedImage, error) {
	if count <= 0 {
		return nil, inv.fail(fmt.Errorf("invalid image count %d", count))
	}

	batchID := uuid.NewString()
	results := make([]GeneratedImage, count)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(inv.concurrency)
	for i := 0; i < count; i++ {
		i := i
		g.Go(func() error {
			return inv.generateOne(gctx, spec, batchID, i+1, count, &results[i])
		})
	}
	if err := g.Wait(); err != nil {
		inv.discard(ctx, batchID, results)
		return nil, inv.fail(err)
	}

	logrus.WithFields(logrus.Fields{
		"backend":  inv.backend.Name(),
		"batch_id": batchID,
		"count":    count,
	}).Info("sheet_images_generated")
	return results, nil
}

func (inv *Invoker) generateOne(ctx context.Context, spec catalog.Spec, batchID string, ordinal, count int, out *GeneratedImage) error {
	prompt := BuildPrompt(spec, ordinal, count)
	out.Ordinal = ordinal
	out.Prompt = prompt

	result, err := inv.callWithRetry(ctx, ImageRequest{
		Prompt:      prompt,
		Orientation: spec.Orientation,
		Watermark:   spec.IncludeWatermark,
	})
	if err != nil {
		return err
	}

	payload, err := utils.ResolveImage(ctx, inv.client, result.URL, result.B64JSON)
	if err != nil {
		return fmt.Errorf("fetch image %d: %w", ordinal, err)
	}

	baseName := fmt.Sprintf("%s-%d", batchID, ordinal)
	imagePath, err := inv.store.Save(ctx, payload.Data, storage.SaveOptions{
		Category:  categorySheets,
		BaseName:  baseName,
		Extension: payload.Ext,
	})
	if err != nil {
		return fmt.Errorf("store image %d: %w", ordinal, err)
	}
	out.ImagePath = imagePath

	thumb, err := utils.RenderThumbnail(payload.Data, inv.thumbnailWidth)
	if err != nil {
		logrus.WithError(err).WithField("image_path", imagePath).Warn("sheet_thumbnail_skipped")
		out.ThumbnailPath = imagePath
		return nil
	}
	thumbPath, err := inv.store.Save(ctx, thumb, storage.SaveOptions{
		Category:  categoryThumbnails,
		BaseName:  baseName,
		Extension: "png",
	})
	if err != nil {
		return fmt.Errorf("store thumbnail %d: %w", ordinal, err)
	}
	out.ThumbnailPath = thumbPath
	return nil
}

func (inv *Invoker) callWithRetry(ctx context.Context, req ImageRequest) (*ImageResult, error) {
	var lastErr error
	for attempt := 1; attempt <= inv.maxAttempts; attempt++ {
		result, err := inv.call(ctx, req)
		if err == nil {
			return result, nil
		}
		lastErr = err
		metrics.RecordBackendError(inv.backend.Name())
		if ctx.Err() != nil {
			break
		}
		if attempt < inv.maxAttempts {
			logrus.WithError(err).WithFields(logrus.Fields{
				"backend": inv.backend.Name(),
				"attempt": attempt,
			}).Warn("llm_generate_image_retry")
		}
	}
	return nil, lastErr
}

type callResult struct {
	result *ImageResult
	err    error
}

// call returns as soon as ctx is done even when the backend ignores cancellation.
func (inv *Invoker) call(ctx context.Context, req ImageRequest) (*ImageResult, error) {
	done := make(chan callResult, 1)
	go func() {
		result, err := inv.backend.GenerateImage(ctx, req)
		done <- callResult{result: result, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-done:
		if res.err == nil && res.result == nil {
			return nil, errors.New("backend returned no result")
		}
		return res.result, res.err
	}
}

func (inv *Invoker) discard(ctx context.Context, batchID string, results []GeneratedImage) {
	var keys []string
	for _, r := range results {
		if r.ImagePath != "" {
			keys = append(keys, r.ImagePath)
		}
		if r.ThumbnailPath != "" && r.ThumbnailPath != r.ImagePath {
			keys = append(keys, r.ThumbnailPath)
		}
	}
	if len(keys) == 0 {
		return
	}
	cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()
	if err := storage.DeleteAll(cleanupCtx, inv.store, keys...); err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"batch_id": batchID,
			"keys":     keys,
		}).Warn("partial_batch_cleanup_failed")
	}
}

func (inv *Invoker) fail(cause error) error {
	return &GenerationBackendError{Backend: inv.backend.Name(), Cause: cause}
}

// Name reports the configured backend.
func (inv *Invoker) Name() string {
	return inv.backend.Name()
}
