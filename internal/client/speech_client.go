package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/storyloom/api/internal/config"
)

// SpeechSynthesizer is the narration capability consumed by the pipeline
type SpeechSynthesizer interface {
	SynthesizeSpeech(ctx context.Context, text, voiceID string) ([]byte, error)
}

// SpeechClient talks to an ElevenLabs-compatible text-to-speech API
type SpeechClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
}

type speechRequest struct {
	Text    string `json:"text"`
	ModelID string `json:"model_id,omitempty"`
}

// NewSpeechClient creates a new text-to-speech client
func NewSpeechClient(cfg *config.SpeechConfig) *SpeechClient {
	return &SpeechClient{
		httpClient: &http.Client{
			Timeout: 2 * time.Minute,
		},
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
	}
}

// SynthesizeSpeech narrates the given text with the given voice and returns
// raw audio bytes (mp3)
func (c *SpeechClient) SynthesizeSpeech(ctx context.Context, text, voiceID string) ([]byte, error) {
	reqBody := speechRequest{
		Text:    text,
		ModelID: c.model,
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/v1/text-to-speech/%s", c.baseURL, voiceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")
	req.Header.Set("xi-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("speech API error (status %d): %s", resp.StatusCode, string(audio))
	}

	return audio, nil
}

// IsConfigured returns true if the client has valid configuration
func (c *SpeechClient) IsConfigured() bool {
	return c.apiKey != ""
}
