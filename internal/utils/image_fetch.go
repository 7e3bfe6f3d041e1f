package utils

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const maxImageBytes = 32 << 20

// ImagePayload is a decoded image ready to be stored.
type ImagePayload struct {
	Data     []byte
	MimeType string
	Ext      string
}

// ResolveImage returns the bytes of an image given either an inline base64
// payload (plain or data URL) or a remote URL. Inline data wins when both are set.
func ResolveImage(ctx context.Context, client *http.Client, imageURL, base64Payload string) (*ImagePayload, error) {
	imageURL = strings.TrimSpace(imageURL)
	base64Payload = strings.TrimSpace(base64Payload)

	switch {
	case base64Payload != "":
		return decodeInline(base64Payload)
	case strings.HasPrefix(imageURL, "data:"):
		return decodeInline(imageURL)
	case imageURL != "":
		return downloadImage(ctx, client, imageURL)
	default:
		return nil, errors.New("image payload empty")
	}
}

func decodeInline(payload string) (*ImagePayload, error) {
	data, ext, err := DecodeMediaPayload(payload)
	if err != nil {
		return nil, err
	}
	return &ImagePayload{Data: data, MimeType: ContentTypeForExtension(ext), Ext: ext}, nil
}

func downloadImage(ctx context.Context, client *http.Client, imageURL string) (*ImagePayload, error) {
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create image request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download image: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download image http %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read image body: %w", err)
	}
	if len(data) == 0 {
		return nil, errors.New("image payload empty")
	}
	if len(data) > maxImageBytes {
		return nil, fmt.Errorf("image exceeds %d bytes", maxImageBytes)
	}

	ext := ExtensionFromMime(resp.Header.Get("Content-Type"))
	if ext == "" {
		ext = ExtensionFromMime(http.DetectContentType(data))
	}
	if ext == "" {
		ext = "jpg"
	}
	return &ImagePayload{Data: data, MimeType: ContentTypeForExtension(ext), Ext: ext}, nil
}
