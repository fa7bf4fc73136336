package client

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/storyloom/api/internal/config"
)

// ImageGenerator is the illustration capability consumed by the pipeline
type ImageGenerator interface {
	GenerateImage(ctx context.Context, req *ImageRequest) ([]byte, error)
}

// ImageRequest describes one illustration. ReferenceImageURL points at a
// fixed character reference; PreviousImage carries the prior section's
// rendered image so consecutive illustrations stay visually consistent.
type ImageRequest struct {
	Prompt            string
	ReferenceImageURL string
	PreviousImage     []byte
}

// ImageClient talks to an image generation API returning base64 payloads
type ImageClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
	size       string
}

type imageGenerationRequest struct {
	Model             string `json:"model"`
	Prompt            string `json:"prompt"`
	Size              string `json:"size,omitempty"`
	ResponseFormat    string `json:"response_format"`
	ReferenceImageURL string `json:"reference_image_url,omitempty"`
	PreviousImageB64  string `json:"previous_image_b64,omitempty"`
}

type imageGenerationResponse struct {
	Data []struct {
		B64JSON string `json:"b64_json"`
	} `json:"data"`
}

// NewImageClient creates a new image generation client
func NewImageClient(cfg *config.ImageConfig) *ImageClient {
	return &ImageClient{
		httpClient: &http.Client{
			Timeout: 3 * time.Minute,
		},
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		size:    cfg.Size,
	}
}

// GenerateImage renders one illustration and returns the raw image bytes
func (c *ImageClient) GenerateImage(ctx context.Context, imgReq *ImageRequest) ([]byte, error) {
	reqBody := imageGenerationRequest{
		Model:             c.model,
		Prompt:            imgReq.Prompt,
		Size:              c.size,
		ResponseFormat:    "b64_json",
		ReferenceImageURL: imgReq.ReferenceImageURL,
	}
	if len(imgReq.PreviousImage) > 0 {
		reqBody.PreviousImageB64 = base64.StdEncoding.EncodeToString(imgReq.PreviousImage)
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/images/generations", bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("image API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var genResp imageGenerationResponse
	if err := json.Unmarshal(respBody, &genResp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	if len(genResp.Data) == 0 || genResp.Data[0].B64JSON == "" {
		return nil, fmt.Errorf("no image data in response")
	}

	raw, err := base64.StdEncoding.DecodeString(genResp.Data[0].B64JSON)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image payload: %w", err)
	}

	return raw, nil
}

// IsConfigured returns true if the client has valid configuration
func (c *ImageClient) IsConfigured() bool {
	return c.apiKey != ""
}
