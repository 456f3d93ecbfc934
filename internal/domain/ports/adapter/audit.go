package adapter

import (
	"context"

	"agri-sponsorship/internal/domain/model"
)

// AuditSink accepts structured before/after records for admin mutations.
// Sink failures are logged, never propagated: audit must not block the
// business operation it describes.
type AuditSink interface {
	Record(ctx context.Context, rec *model.AuditRecord) error
}
