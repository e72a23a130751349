package asrclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type mockStorage struct {
	downloadURLFn func(ctx context.Context, bucket, key string, expiry time.Duration) (string, error)
	uploadURLFn   func(ctx context.Context, bucket, key string, expiry time.Duration) (string, error)
}

func (m *mockStorage) GeneratePresignedDownloadURL(ctx context.Context, bucket, key string, expiry time.Duration) (string, error) {
	if m.downloadURLFn != nil {
		return m.downloadURLFn(ctx, bucket, key, expiry)
	}
	return "http://example.test/" + bucket + "/" + key, nil
}

func (m *mockStorage) GeneratePresignedUploadURL(ctx context.Context, bucket, key string, expiry time.Duration) (string, error) {
	if m.uploadURLFn != nil {
		return m.uploadURLFn(ctx, bucket, key, expiry)
	}
	return "http://example.test/" + bucket + "/" + key, nil
}

func (m *mockStorage) Exists(ctx context.Context, bucket, key string) (bool, error) {
	return true, nil
}

func TestClient_Run_Succeeds(t *testing.T) {
	apiServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/predictions":
			w.WriteHeader(http.StatusCreated)
			json.NewEncoder(w).Encode(submitResponse{ID: "pred-1"})
		case r.Method == http.MethodGet && r.URL.Path == "/predictions/pred-1":
			json.NewEncoder(w).Encode(predictionResponse{
				Status: "succeeded",
				Output: map[string]any{
					"segments": []any{
						map[string]any{"start": 0.0, "end": 2.5, "text": "hello there", "language": "en"},
						map[string]any{"start": 2.5, "end": 5.0, "text": "general kenobi", "language": "en"},
					},
				},
			})
		default:
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
	}))
	defer apiServer.Close()

	uploadServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer uploadServer.Close()

	storage := &mockStorage{
		uploadURLFn: func(ctx context.Context, bucket, key string, expiry time.Duration) (string, error) {
			return uploadServer.URL + "/" + key, nil
		},
	}

	client := NewClient(storage, Config{
		BaseURL:          apiServer.URL,
		APIKey:           "test-token",
		Model:            "owner/model:version",
		RawBucket:        "raw-uploads",
		TranscriptBucket: "transcripts",
		PollInterval:     time.Millisecond,
	})

	result, err := client.Run(context.Background(), "video-uid-1", "uploads/video.mp4")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Segments) != 2 {
		t.Fatalf("got %d segments, want 2", len(result.Segments))
	}
	if result.DurationSec != 5.0 {
		t.Errorf("DurationSec = %v, want 5.0", result.DurationSec)
	}
	if result.TranscriptPath != "video-uid-1/asr.json" {
		t.Errorf("TranscriptPath = %q, want video-uid-1/asr.json", result.TranscriptPath)
	}
	if result.VTTPath != "video-uid-1/subs.vtt" {
		t.Errorf("VTTPath = %q, want video-uid-1/subs.vtt", result.VTTPath)
	}
}

func TestClient_Run_PredictionFails(t *testing.T) {
	apiServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/predictions":
			json.NewEncoder(w).Encode(submitResponse{ID: "pred-1"})
		case r.Method == http.MethodGet:
			json.NewEncoder(w).Encode(predictionResponse{Status: "failed", Error: "model crashed"})
		}
	}))
	defer apiServer.Close()

	client := NewClient(&mockStorage{}, Config{
		BaseURL:          apiServer.URL,
		RawBucket:        "raw-uploads",
		TranscriptBucket: "transcripts",
		PollInterval:     time.Millisecond,
	})

	_, err := client.Run(context.Background(), "video-uid-1", "uploads/video.mp4")
	if err == nil {
		t.Fatal("expected an error when the prediction fails")
	}
}
