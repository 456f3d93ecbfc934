package delivery

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"agri-sponsorship/internal/domain"
	"agri-sponsorship/internal/domain/ports/adapter"
	"agri-sponsorship/internal/infra/logging"
)

var _ adapter.DeliveryAdapter = (*LogDelivery)(nil)

// LogDelivery writes redemption links to the log instead of a messaging
// relay. Default in dev; production wires an SMS/WhatsApp gateway behind the
// same port.
type LogDelivery struct {
	base string // redemption link base URL
	dev  bool
	log  *zerolog.Logger
}

func NewLogDelivery(redemptionBase string, dev bool, logger *zerolog.Logger) *LogDelivery {
	l := logger.With().Str("component", "LogDelivery").Logger()
	return &LogDelivery{base: strings.TrimRight(redemptionBase, "/"), dev: dev, log: &l}
}

func (d *LogDelivery) SendRedemptionLink(ctx context.Context, params adapter.SendLinkParams) error {
	if params.Phone == "" || params.Code == "" {
		return domain.ErrInvalidArgument
	}
	link := fmt.Sprintf("%s/redeem/%s", d.base, params.Code)
	d.log.Info().
		Str("phone", logging.Redact(params.Phone, d.dev)).
		Str("channel", params.Channel).
		Str("link", link).
		Msg("redemption link delivered")
	return nil
}
