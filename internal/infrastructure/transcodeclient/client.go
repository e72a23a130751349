// Package transcodeclient submits MP4->HLS transcode jobs to an external
// transcoding service and polls them to completion.
package transcodeclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/videoannot/ingestworker/internal/domain/repository"
)

const (
	stateSucceeded = "SUCCEEDED"
	stateFailed    = "FAILED"
)

// Config holds the settings needed to reach the transcode service.
type Config struct {
	BaseURL      string
	APIKey       string
	TemplateID   string
	PollInterval time.Duration
	MaxWait      time.Duration
}

// Client implements repository.TranscoderClient against a vendor HTTP API:
// POST /jobs to submit, GET /jobs/{name} to poll.
type Client struct {
	httpClient *http.Client
	cfg        Config
}

func NewClient(cfg Config) *Client {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 10 * time.Second
	}
	if cfg.MaxWait <= 0 {
		cfg.MaxWait = 30 * time.Minute
	}
	return &Client{httpClient: &http.Client{Timeout: 30 * time.Second}, cfg: cfg}
}

type submitRequest struct {
	InputURI   string `json:"input_uri"`
	OutputURI  string `json:"output_uri"`
	TemplateID string `json:"template_id"`
}

type submitResponse struct {
	Name string `json:"name"`
}

func (c *Client) SubmitJob(ctx context.Context, inputPath, outputPrefix string) (string, error) {
	body, err := json.Marshal(submitRequest{
		InputURI:   inputPath,
		OutputURI:  outputPrefix,
		TemplateID: c.cfg.TemplateID,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode transcode job request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/jobs", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build transcode job request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.setAuth(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to submit transcode job: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("transcode job submission failed: HTTP %d: %s", resp.StatusCode, readBody(resp.Body))
	}

	var out submitResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode transcode job response: %w", err)
	}
	return out.Name, nil
}

type jobStatusResponse struct {
	State   string `json:"state"`
	HLSPath string `json:"hls_path"`
	Error   string `json:"error"`
}

func (c *Client) WaitForJob(ctx context.Context, jobName string) (*repository.TranscodeJobResult, error) {
	deadline := time.Now().Add(c.cfg.MaxWait)

	for {
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("transcode job %s timed out after %s", jobName, c.cfg.MaxWait)
		}

		status, err := c.getJob(ctx, jobName)
		if err != nil {
			return nil, err
		}

		switch status.State {
		case stateSucceeded:
			return &repository.TranscodeJobResult{Succeeded: true, HLSPath: status.HLSPath}, nil
		case stateFailed:
			return &repository.TranscodeJobResult{Succeeded: false, Error: status.Error}, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.cfg.PollInterval):
		}
	}
}

func (c *Client) getJob(ctx context.Context, jobName string) (*jobStatusResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/jobs/"+jobName, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build job status request: %w", err)
	}
	c.setAuth(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to query transcode job: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("transcode job query failed: HTTP %d: %s", resp.StatusCode, readBody(resp.Body))
	}

	var out jobStatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode job status response: %w", err)
	}
	return &out, nil
}

func (c *Client) setAuth(req *http.Request) {
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}
}

func readBody(r io.Reader) string {
	b, _ := io.ReadAll(io.LimitReader(r, 4096))
	return string(b)
}

var _ repository.TranscoderClient = (*Client)(nil)
