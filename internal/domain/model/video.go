package model

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Status represents the processing state of a video.
type Status string

const (
	StatusProcessing Status = "PROCESSING"
	StatusReady      Status = "READY"
	StatusError      Status = "ERROR"
)

// Valid status transitions. Status never moves backward.
var validTransitions = map[Status][]Status{
	StatusProcessing: {StatusReady, StatusError},
	StatusReady:      {},
	StatusError:      {},
}

func (s Status) IsValid() bool {
	switch s {
	case StatusProcessing, StatusReady, StatusError:
		return true
	default:
		return false
	}
}

func (s Status) CanTransitionTo(next Status) bool {
	allowed, exists := validTransitions[s]
	if !exists {
		return false
	}
	for _, status := range allowed {
		if status == next {
			return true
		}
	}
	return false
}

func (s Status) String() string {
	return string(s)
}

var videoUIDNamespace = uuid.MustParse("6f8e2c9a-9b1a-4e9a-9f3e-9f9a1a0a3b2d")

// Video is a single ingested asset identified by a stable video_uid.
type Video struct {
	ID                       uuid.UUID
	VideoUID                 string
	Status                   Status
	StoragePath              string
	HLSPath                  *string
	StructuredTranscriptPath *string
	CreatedAt                time.Time
	UpdatedAt                time.Time
}

var (
	ErrEmptyVideoUID     = errors.New("video_uid cannot be empty")
	ErrEmptyStoragePath  = errors.New("storage_path cannot be empty")
	ErrInvalidTransition = errors.New("invalid status transition")
)

// NewVideo creates a Video in PROCESSING status.
func NewVideo(videoUID, storagePath string) (*Video, error) {
	if videoUID == "" {
		return nil, ErrEmptyVideoUID
	}
	if storagePath == "" {
		return nil, ErrEmptyStoragePath
	}

	now := time.Now()
	return &Video{
		ID:          uuid.New(),
		VideoUID:    videoUID,
		Status:      StatusProcessing,
		StoragePath: storagePath,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// DeriveVideoUID derives a stable video_uid from an ingress object key.
// If the key carries a valid UUID token, it is used verbatim; otherwise a
// deterministic UUID5 over the key is returned. Same key always yields the
// same video_uid.
func DeriveVideoUID(objectKey string) string {
	if id, err := uuid.Parse(objectKey); err == nil {
		return id.String()
	}
	for _, part := range splitPath(objectKey) {
		if id, err := uuid.Parse(part); err == nil {
			return id.String()
		}
	}
	return uuid.NewSHA1(videoUIDNamespace, []byte(objectKey)).String()
}

func splitPath(key string) []string {
	var parts []string
	start := 0
	for i := 0; i < len(key); i++ {
		if key[i] == '/' {
			parts = append(parts, key[start:i])
			start = i + 1
		}
	}
	parts = append(parts, key[start:])
	return parts
}

// TransitionTo moves the video to next, rejecting backward or invalid moves.
func (v *Video) TransitionTo(next Status) error {
	if !next.IsValid() {
		return ErrInvalidTransition
	}
	if !v.Status.CanTransitionTo(next) {
		return ErrInvalidTransition
	}
	v.Status = next
	v.UpdatedAt = time.Now()
	return nil
}

// MarkReady transitions to READY, recording the (possibly nil) HLS and
// transcript paths. Transcoding failure is non-fatal, so hlsPath may be nil.
func (v *Video) MarkReady(hlsPath, transcriptPath *string) error {
	if err := v.TransitionTo(StatusReady); err != nil {
		return err
	}
	v.HLSPath = hlsPath
	v.StructuredTranscriptPath = transcriptPath
	return nil
}

// MarkError transitions to ERROR on a fatal failure.
func (v *Video) MarkError() error {
	return v.TransitionTo(StatusError)
}

func (v *Video) IsReady() bool {
	return v.Status == StatusReady
}
