package usecase

import (
	"context"
	"strconv"

	"github.com/videoannot/ingestworker/internal/domain/repository"
)

// NotifierAdapter wraps repository.NotifierGateway with the top-level
// ingestion-failure notification shape; per-segment not-found notifications
// are built directly inside AnnotationOrchestrator since they need
// segment/lemma context this adapter doesn't carry.
type NotifierAdapter struct {
	gateway repository.NotifierGateway
}

func NewNotifierAdapter(gateway repository.NotifierGateway) *NotifierAdapter {
	return &NotifierAdapter{gateway: gateway}
}

// NotifyIngestFailure reports that an ingest job failed terminally. Dispatch
// errors are logged by the gateway implementation and never returned here:
// a notification outage must never fail the ingestion run that triggered it.
func (n *NotifierAdapter) NotifyIngestFailure(ctx context.Context, videoUID, objectKey string, werr *WorkflowError) {
	_ = n.gateway.Notify(ctx, repository.Notification{
		Severity: repository.SeverityError,
		Title:    "video ingestion failed",
		Content: map[string]string{
			"video_uid":  videoUID,
			"object_key": objectKey,
			"stage":      werr.Stage,
			"error":      werr.Error(),
			"retryable":  boolToYesNo(werr.Retryable),
		},
	})
}

// NotifyIngestSuccess reports a completed ingestion run, matching the
// original system's success-card behavior for operator visibility.
func (n *NotifierAdapter) NotifyIngestSuccess(ctx context.Context, videoUID string, segmentsInserted, occurrencesInserted int) {
	_ = n.gateway.Notify(ctx, repository.Notification{
		Severity: repository.SeveritySuccess,
		Title:    "video ingestion complete",
		Content: map[string]string{
			"video_uid":             videoUID,
			"segments_inserted":    strconv.Itoa(segmentsInserted),
			"occurrences_inserted": strconv.Itoa(occurrencesInserted),
		},
	})
}

func boolToYesNo(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
