package adapter

import "context"

// SendLinkParams describes one redemption-link delivery to a recipient.
type SendLinkParams struct {
	Phone         string
	RecipientName string
	Channel       string // SMS | WhatsApp
	Code          string
	CustomMessage string
}

// DeliveryAdapter is the messaging collaborator (SMS/WhatsApp relay).
// A non-nil error means the recipient was not reached; the caller records
// the failure for that unit of work without touching code state.
type DeliveryAdapter interface {
	SendRedemptionLink(ctx context.Context, params SendLinkParams) error
}
