package recognition

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/vinscan/vinscan/internal/shared"
)

// Config points the sidecar clients at the recognition services.
type Config struct {
	TextURL    string
	BarcodeURL string
	QualityURL string
	Timeout    time.Duration
}

// Client talks to the recognition sidecars over JSON HTTP. One Client serves
// all three contracts; each endpoint may be left unconfigured, in which case
// its calls report shared.ErrUnavailable.
type Client struct {
	httpClient *http.Client
	cfg        Config
}

func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		cfg:        cfg,
	}
}

type frameRequest struct {
	ImageID     string `json:"image_id,omitempty"`
	ImageBase64 string `json:"image_base64,omitempty"`
	ImageURL    string `json:"image_url,omitempty"`
	MIME        string `json:"mime,omitempty"`
}

type textResponse struct {
	Text string `json:"text"`
}

type barcodeResponse struct {
	Barcodes []Barcode `json:"barcodes"`
}

func newFrameRequest(img Image) frameRequest {
	req := frameRequest{ImageID: img.ID, ImageURL: img.URL, MIME: img.MIME}
	if len(img.Data) > 0 {
		req.ImageBase64 = base64.StdEncoding.EncodeToString(img.Data)
	}
	return req
}

func (c *Client) Recognize(ctx context.Context, img Image) (TextResult, error) {
	if c.cfg.TextURL == "" {
		return TextResult{}, shared.ErrUnavailable
	}
	start := time.Now()
	var resp textResponse
	if err := c.post(ctx, c.cfg.TextURL+"/v1/recognize", newFrameRequest(img), &resp); err != nil {
		return TextResult{}, err
	}
	return TextResult{Text: resp.Text, Duration: time.Since(start)}, nil
}

func (c *Client) Scan(ctx context.Context, img Image) ([]Barcode, error) {
	if c.cfg.BarcodeURL == "" {
		return nil, shared.ErrUnavailable
	}
	var resp barcodeResponse
	if err := c.post(ctx, c.cfg.BarcodeURL+"/v1/scan", newFrameRequest(img), &resp); err != nil {
		return nil, err
	}
	return resp.Barcodes, nil
}

func (c *Client) Analyze(ctx context.Context, img Image) (QualityReport, error) {
	if c.cfg.QualityURL == "" {
		return QualityReport{}, shared.ErrUnavailable
	}
	var resp QualityReport
	if err := c.post(ctx, c.cfg.QualityURL+"/v1/analyze", newFrameRequest(img), &resp); err != nil {
		return QualityReport{}, err
	}
	return resp, nil
}

func (c *Client) post(ctx context.Context, url string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusServiceUnavailable {
		return shared.ErrUnavailable
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("sidecar returned status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// IsAvailable probes the text sidecar's health endpoint.
func (c *Client) IsAvailable(ctx context.Context) bool {
	if c.cfg.TextURL == "" {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.TextURL+"/healthz", nil)
	if err != nil {
		return false
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}
