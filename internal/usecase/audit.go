package usecase

import (
	"context"
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"agri-sponsorship/internal/domain/model"
	"agri-sponsorship/internal/domain/ports/adapter"
)

func newAuditRecord(action string, actor model.Actor, entityType, entityID, reason string, before, after map[string]any) *model.AuditRecord {
	now := time.Now()
	return &model.AuditRecord{
		ID:          ulid.MustNew(ulid.Timestamp(now), rand.Reader).String(),
		Action:      action,
		ActorUserID: actor.UserID,
		OnBehalfOf:  actor.OnBehalfOfSponsorID,
		EntityType:  entityType,
		EntityID:    entityID,
		Reason:      reason,
		BeforeState: before,
		AfterState:  after,
		RecordedAt:  now,
	}
}

// emitAudit records an audit entry; sink failures are logged, never returned.
func emitAudit(ctx context.Context, sink adapter.AuditSink, log *zerolog.Logger, rec *model.AuditRecord) {
	if sink == nil {
		return
	}
	if err := sink.Record(ctx, rec); err != nil {
		log.Error().Err(err).Str("action", rec.Action).Str("entity_id", rec.EntityID).Msg("audit record failed")
	}
}
