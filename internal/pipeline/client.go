package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"io"
	"net/http"
	"net/url"
	"time"
)

const defaultGenerateTimeout = 5 * time.Minute

// Options controls how the inference client is configured.
type Options struct {
	// BaseURL of the inference sidecar that holds the model on the GPU.
	BaseURL string

	// HTTPClient overrides the default client, mainly for tests.
	HTTPClient *http.Client
}

// Client drives the diffusion model through the local inference sidecar's
// HTTP API. The sidecar owns the model weights and the device; this
// client only translates generate/reclaim calls into requests against it.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

var _ Pipeline = (*Client)(nil)

// NewClient validates the sidecar address and returns a client.
func NewClient(opts Options) (*Client, error) {
	u, err := url.Parse(opts.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid pipeline base URL %q", opts.BaseURL)
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultGenerateTimeout}
	}

	return &Client{
		baseURL:    u.String(),
		httpClient: httpClient,
	}, nil
}

type generateRequest struct {
	Prompt string `json:"prompt"`
	Steps  int    `json:"steps"`
}

// Generate requests one image from the sidecar and decodes the PNG body.
func (c *Client) Generate(ctx context.Context, prompt string, steps int) (image.Image, error) {
	body, err := json.Marshal(generateRequest{Prompt: prompt, Steps: steps})
	if err != nil {
		return nil, fmt.Errorf("encode generate request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/generate", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build generate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("generate: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("generate: sidecar returned %s: %s", resp.Status, readErrorBody(resp.Body))
	}

	img, err := png.Decode(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("decode generated image: %w", err)
	}
	return img, nil
}

// Reclaim asks the sidecar to drop its transient allocations (the
// equivalent of emptying the CUDA cache between jobs).
func (c *Client) Reclaim(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/reclaim", nil)
	if err != nil {
		return fmt.Errorf("build reclaim request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("reclaim: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("reclaim: sidecar returned %s", resp.Status)
	}
	return nil
}

// readErrorBody returns a bounded excerpt of an error response body.
func readErrorBody(r io.Reader) string {
	b, err := io.ReadAll(io.LimitReader(r, 512))
	if err != nil || len(b) == 0 {
		return "(no body)"
	}
	return string(bytes.TrimSpace(b))
}
