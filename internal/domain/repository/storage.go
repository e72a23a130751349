package repository

import (
	"context"
	"time"
)

// ObjectStorage defines the interface for object storage operations used by
// the ingestion pipeline. Implementations should be provided by the
// infrastructure layer (e.g., GCS, MinIO, S3).
type ObjectStorage interface {
	// GeneratePresignedDownloadURL creates a presigned GET URL for an
	// object, valid for the specified duration. Used to hand external
	// services (transcoder, ASR) read access to a raw upload without
	// granting them bucket credentials.
	GeneratePresignedDownloadURL(ctx context.Context, bucket, key string, expiry time.Duration) (string, error)

	// GeneratePresignedUploadURL creates a presigned PUT URL, used when an
	// external service needs to write a result (e.g. ASR transcript/VTT)
	// back into our bucket.
	GeneratePresignedUploadURL(ctx context.Context, bucket, key string, expiry time.Duration) (string, error)

	// Exists checks whether an object is present in the given bucket.
	Exists(ctx context.Context, bucket, key string) (bool, error)
}
