package delivery

import (
	"context"

	"agri-sponsorship/internal/domain/ports/adapter"
)

var _ adapter.DeliveryAdapter = (*Noop)(nil)

// Noop accepts every delivery without doing anything. Used in tests and
// one-off tooling that must not reach recipients.
type Noop struct{}

func (Noop) SendRedemptionLink(ctx context.Context, params adapter.SendLinkParams) error {
	return nil
}
