package model

import "time"

// Actor identifies who performs an operation. Admins acting on behalf of a
// sponsor carry that sponsor explicitly instead of mutating ambient state,
// so the audit trail is a first-class argument.
type Actor struct {
	UserID              string
	OnBehalfOfSponsorID string // empty when acting as self
}

func (a Actor) OnBehalfOf() bool { return a.OnBehalfOfSponsorID != "" }

// EffectiveSponsorID resolves the sponsor an operation applies to.
func (a Actor) EffectiveSponsorID(requested string) string {
	if a.OnBehalfOfSponsorID != "" {
		return a.OnBehalfOfSponsorID
	}
	if requested != "" {
		return requested
	}
	return a.UserID
}

// AuditRecord is the structured before/after snapshot emitted for every
// admin mutation (approve, refund, deactivate, generate).
type AuditRecord struct {
	ID          string // ULID, sortable by emission time
	Action      string
	ActorUserID string
	OnBehalfOf  string
	EntityType  string
	EntityID    string
	Reason      string
	BeforeState map[string]any
	AfterState  map[string]any
	RecordedAt  time.Time
}
