package postgres

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v4/pgxpool"

	"agri-sponsorship/internal/domain/model"
	"agri-sponsorship/internal/domain/ports/adapter"
)

var _ adapter.AuditSink = (*auditSink)(nil)

// auditSink appends admin mutation records to audit_log. Writes run outside
// the business transaction on purpose: audit must never roll back the
// operation it describes, and callers already treat sink errors as
// log-and-continue.
type auditSink struct {
	pool *pgxpool.Pool
}

func NewAuditSink(pool *pgxpool.Pool) adapter.AuditSink {
	return &auditSink{pool: pool}
}

func (s *auditSink) Record(ctx context.Context, rec *model.AuditRecord) error {
	before, err := json.Marshal(rec.BeforeState)
	if err != nil {
		return err
	}
	after, err := json.Marshal(rec.AfterState)
	if err != nil {
		return err
	}
	const q = `
INSERT INTO audit_log (id, action, actor_user_id, on_behalf_of, entity_type, entity_id, reason, before_state, after_state, recorded_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10);
`
	_, err = s.pool.Exec(ctx, q,
		rec.ID, rec.Action, rec.ActorUserID, rec.OnBehalfOf, rec.EntityType, rec.EntityID, rec.Reason, before, after, rec.RecordedAt,
	)
	return err
}
