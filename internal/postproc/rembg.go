package postproc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// BackgroundRemover cuts the background out of an image, returning image
// bytes with an alpha channel encoding the foreground.
type BackgroundRemover interface {
	Remove(ctx context.Context, data []byte) ([]byte, error)
}

// RembgClient calls a rembg-compatible HTTP service.
type RembgClient struct {
	endpoint   string
	httpClient *http.Client
}

// NewRembgClient builds a client for the given endpoint URL.
func NewRembgClient(endpoint string, httpClient *http.Client) (*RembgClient, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil, errors.New("rembg: endpoint is required")
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &RembgClient{endpoint: endpoint, httpClient: httpClient}, nil
}

var _ BackgroundRemover = (*RembgClient)(nil)

// Remove posts the image to the service and returns the cut-out payload.
func (c *RembgClient) Remove(ctx context.Context, data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, errors.New("rembg: empty image payload")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("rembg: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rembg: http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("rembg: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	out, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("rembg: read response: %w", err)
	}
	if len(out) == 0 {
		return nil, errors.New("rembg: empty response")
	}
	return out, nil
}
