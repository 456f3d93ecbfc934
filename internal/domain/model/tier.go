package model

import (
	"strings"
	"time"

	"agri-sponsorship/internal/domain"
)

// TierName is one of the five entitlement classes sold on the platform.
type TierName string

const (
	TierTrial TierName = "Trial"
	TierS     TierName = "S"
	TierM     TierName = "M"
	TierL     TierName = "L"
	TierXL    TierName = "XL"
)

// SubscriptionTier defines the entitlement characteristics of a purchasable
// tier: how much of a farmer's analysis data a sponsor at this tier may see,
// and the purchase quantity window enforced at order time.
type SubscriptionTier struct {
	ID                   string
	TierName             TierName
	DisplayName          string
	DataAccessPercentage int // 0, 30, 60 or 100
	MinPurchaseQuantity  int
	MaxPurchaseQuantity  int
	MonthlyPrice         int64 // minor currency units
	Currency             string
	CreatedAt            time.Time
}

func (t *SubscriptionTier) IsZero() bool { return t == nil || t.ID == "" }

// ParseTierName normalizes user input ("xl", "Xl") to a TierName.
func ParseTierName(s string) (TierName, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "TRIAL":
		return TierTrial, nil
	case "S":
		return TierS, nil
	case "M":
		return TierM, nil
	case "L":
		return TierL, nil
	case "XL":
		return TierXL, nil
	}
	return "", domain.ErrInvalidArgument
}

// NewSubscriptionTier validates and constructs a tier.
func NewSubscriptionTier(id string, name TierName, displayName string, accessPct, minQty, maxQty int, price int64, currency string) (*SubscriptionTier, error) {
	if id == "" || displayName == "" || currency == "" {
		return nil, domain.ErrInvalidArgument
	}
	switch accessPct {
	case 0, 30, 60, 100:
	default:
		return nil, domain.ErrInvalidArgument
	}
	if minQty <= 0 || maxQty < minQty || price < 0 {
		return nil, domain.ErrInvalidArgument
	}
	return &SubscriptionTier{
		ID:                   id,
		TierName:             name,
		DisplayName:          displayName,
		DataAccessPercentage: accessPct,
		MinPurchaseQuantity:  minQty,
		MaxPurchaseQuantity:  maxQty,
		MonthlyPrice:         price,
		Currency:             currency,
		CreatedAt:            time.Now(),
	}, nil
}

// AccessTierLabel maps an access percentage to the marketing label shown to
// sponsors. Informational only.
func AccessTierLabel(accessPercentage int) string {
	switch accessPercentage {
	case 30:
		return "S/M"
	case 60:
		return "L"
	case 100:
		return "XL"
	}
	return "Unknown"
}
