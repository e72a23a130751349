// Package asrclient runs speech recognition against an external
// transcription provider and stages its output (JSON + WebVTT) back into
// object storage.
package asrclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/videoannot/ingestworker/internal/domain/repository"
)

// Config holds the settings needed to run a transcription job and stage its
// output.
type Config struct {
	BaseURL           string
	APIKey            string
	Model             string
	Language          string
	RawBucket         string
	TranscriptBucket  string
	SignedURLTTL      time.Duration
	PollInterval      time.Duration
	MaxWait           time.Duration
}

// Client implements repository.ASRClient against a Replicate-style
// prediction API: submit a prediction with a signed GET URL for the audio,
// poll until terminal, then stage the parsed output back to object storage.
type Client struct {
	httpClient *http.Client
	storage    repository.ObjectStorage
	cfg        Config
}

func NewClient(storage repository.ObjectStorage, cfg Config) *Client {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.MaxWait <= 0 {
		cfg.MaxWait = 30 * time.Minute
	}
	if cfg.Language == "" {
		cfg.Language = "en"
	}
	return &Client{httpClient: &http.Client{Timeout: 30 * time.Second}, storage: storage, cfg: cfg}
}

func (c *Client) Run(ctx context.Context, videoUID, inputObjectName string) (*repository.ASRResult, error) {
	audioURL, err := c.storage.GeneratePresignedDownloadURL(ctx, c.cfg.RawBucket, inputObjectName, c.cfg.SignedURLTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to sign audio URL: %w", err)
	}

	predictionID, err := c.submit(ctx, audioURL)
	if err != nil {
		return nil, err
	}

	output, err := c.wait(ctx, predictionID)
	if err != nil {
		return nil, err
	}

	rawSegments, _ := output["segments"].([]any)
	if len(rawSegments) == 0 {
		return nil, fmt.Errorf("asr output for %s has no segments", videoUID)
	}

	segments, err := parseSegments(rawSegments)
	if err != nil {
		return nil, err
	}

	jsonKey := videoUID + "/asr.json"
	if err := c.uploadJSON(ctx, jsonKey, output); err != nil {
		return nil, err
	}

	vttKey := videoUID + "/subs.vtt"
	if err := c.uploadText(ctx, vttKey, generateVTT(rawSegments), "text/vtt"); err != nil {
		return nil, err
	}

	return &repository.ASRResult{
		Segments:       segments,
		TranscriptPath: jsonKey,
		VTTPath:        vttKey,
		DurationSec:    segments[len(segments)-1].TEnd,
	}, nil
}

type submitRequest struct {
	Version string         `json:"version"`
	Input   map[string]any `json:"input"`
}

type submitResponse struct {
	ID string `json:"id"`
}

func (c *Client) submit(ctx context.Context, audioURL string) (string, error) {
	body, err := json.Marshal(submitRequest{
		Version: c.cfg.Model,
		Input: map[string]any{
			"audio_file":   audioURL,
			"language":     c.cfg.Language,
			"align_output": true,
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode asr request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/predictions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build asr request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Token "+c.cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to submit asr job: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return "", fmt.Errorf("asr provider rejected the API token")
	}
	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("asr job submission failed: HTTP %d: %s", resp.StatusCode, readBody(resp.Body))
	}

	var out submitResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode asr submit response: %w", err)
	}
	return out.ID, nil
}

type predictionResponse struct {
	Status string         `json:"status"`
	Output map[string]any `json:"output"`
	Error  any            `json:"error"`
}

func (c *Client) wait(ctx context.Context, predictionID string) (map[string]any, error) {
	deadline := time.Now().Add(c.cfg.MaxWait)

	for {
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("asr prediction %s timed out after %s", predictionID, c.cfg.MaxWait)
		}

		pred, err := c.getPrediction(ctx, predictionID)
		if err != nil {
			return nil, err
		}

		switch pred.Status {
		case "succeeded":
			if pred.Output == nil {
				return nil, fmt.Errorf("asr prediction %s returned an empty output", predictionID)
			}
			return pred.Output, nil
		case "failed":
			return nil, fmt.Errorf("asr prediction %s failed: %v", predictionID, pred.Error)
		case "canceled":
			return nil, fmt.Errorf("asr prediction %s was canceled", predictionID)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.cfg.PollInterval):
		}
	}
}

func (c *Client) getPrediction(ctx context.Context, predictionID string) (*predictionResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/predictions/"+predictionID, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build asr poll request: %w", err)
	}
	req.Header.Set("Authorization", "Token "+c.cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to poll asr prediction: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("asr prediction poll failed: HTTP %d: %s", resp.StatusCode, readBody(resp.Body))
	}

	var out predictionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode asr prediction response: %w", err)
	}
	return &out, nil
}

func (c *Client) uploadJSON(ctx context.Context, key string, data map[string]any) error {
	body, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode asr transcript: %w", err)
	}
	return c.uploadText(ctx, key, string(body), "application/json")
}

func (c *Client) uploadText(ctx context.Context, key, content, contentType string) error {
	putURL, err := c.storage.GeneratePresignedUploadURL(ctx, c.cfg.TranscriptBucket, key, 5*time.Minute)
	if err != nil {
		return fmt.Errorf("failed to sign transcript upload URL for %s: %w", key, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, putURL, strings.NewReader(content))
	if err != nil {
		return fmt.Errorf("failed to build transcript upload request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", key, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("failed to upload %s: HTTP %d: %s", key, resp.StatusCode, readBody(resp.Body))
	}
	return nil
}

func readBody(r io.Reader) string {
	b, _ := io.ReadAll(io.LimitReader(r, 4096))
	return string(b)
}

var _ repository.ASRClient = (*Client)(nil)
