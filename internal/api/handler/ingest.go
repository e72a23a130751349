package handler

import (
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/videoannot/ingestworker/internal/domain/model"
)

// IngestTask is one unit of work handed from the webhook handler to the
// worker pool that actually runs the pipeline. The handler never calls the
// controller inline: it validates, enqueues, and returns 200 immediately.
type IngestTask struct {
	ObjectKey   string
	ContentHash string
}

// pushEnvelope is the outer delivery wrapper the ingress event arrives in:
// a base64-encoded JSON payload plus delivery metadata.
type pushEnvelope struct {
	Message struct {
		Data        string            `json:"data"`
		MessageID   string            `json:"messageId"`
		PublishTime string            `json:"publishTime"`
		Attributes  map[string]string `json:"attributes,omitempty"`
	} `json:"message"`
}

// objectEvent is the decoded payload carried in Message.Data.
type objectEvent struct {
	Bucket      string `json:"bucket"`
	Name        string `json:"name"`
	Etag        string `json:"etag"`
	TimeCreated string `json:"timeCreated"`
}

type acceptedResponse struct {
	Status   string `json:"status"`
	VideoUID string `json:"video_uid"`
}

const maxIngestBodyBytes = 1 << 20 // 1 MiB; a storage-event notification is a few hundred bytes

// IngestHandler decodes a video-ingestion push event and hands it off to a
// worker pool for asynchronous processing. It never runs the pipeline
// itself: the HTTP response carries only the accept/reject decision.
type IngestHandler struct {
	jobs   chan<- IngestTask
	logger *slog.Logger
}

func NewIngestHandler(jobs chan<- IngestTask, logger *slog.Logger) *IngestHandler {
	return &IngestHandler{jobs: jobs, logger: logger}
}

// Handle decodes the push envelope, validates the embedded object event, and
// enqueues an IngestTask. Responds 200 with {status:"accepted", video_uid}
// on success, 400 on a malformed body, and 500 if the worker pool's queue is
// saturated (operator-visible backpressure rather than a silent drop).
func (h *IngestHandler) Handle(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxIngestBodyBytes+1))
	if err != nil {
		Error(w, http.StatusBadRequest, "read_failed", "failed to read request body")
		return
	}
	if len(body) > maxIngestBodyBytes {
		Error(w, http.StatusBadRequest, "payload_too_large", "request body exceeds size limit")
		return
	}

	var envelope pushEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		Error(w, http.StatusBadRequest, "invalid_json", "request body is not valid JSON")
		return
	}

	raw, err := base64.StdEncoding.DecodeString(envelope.Message.Data)
	if err != nil {
		Error(w, http.StatusBadRequest, "invalid_data", "message.data is not valid base64")
		return
	}

	var event objectEvent
	if err := json.Unmarshal(raw, &event); err != nil {
		Error(w, http.StatusBadRequest, "invalid_event", "decoded message.data is not a valid object event")
		return
	}

	if event.Bucket == "" || event.Name == "" || event.Etag == "" || event.TimeCreated == "" {
		Error(w, http.StatusBadRequest, "incomplete_event",
			"event must carry bucket, name, etag, and timeCreated")
		return
	}

	videoUID := model.DeriveVideoUID(event.Name)

	select {
	case h.jobs <- IngestTask{ObjectKey: event.Name, ContentHash: event.Etag}:
	default:
		h.logger.Error("ingest queue saturated, rejecting delivery",
			slog.String("video_uid", videoUID), slog.String("message_id", envelope.Message.MessageID))
		Error(w, http.StatusInternalServerError, "queue_saturated", "ingest worker pool is at capacity")
		return
	}

	JSON(w, http.StatusOK, acceptedResponse{Status: "accepted", VideoUID: videoUID})
}
