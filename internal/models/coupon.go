package models

import (
	"time"

	"github.com/uptrace/bun"
)

// CouponCampaign groups codes minted for one purpose, e.g. the monthly
// welcome promotion printed on every postcard back.
type CouponCampaign struct {
	bun.BaseModel `bun:"table:coupon_campaigns"`

	ID              int64     `bun:"id,pk,autoincrement" json:"id"`
	CampaignName    string    `bun:"campaign_name,unique" json:"campaignName"`
	CampaignType    string    `bun:"campaign_type" json:"campaignType"`
	Description     string    `bun:"description" json:"description,omitempty"`
	MaxRedemptions  int       `bun:"max_redemptions" json:"maxRedemptions"`
	DiscountPercent int       `bun:"discount_percent" json:"discountPercent"`
	CreatedAt       time.Time `bun:"created_at" json:"createdAt"`
	ExpiresAt       time.Time `bun:"expires_at" json:"expiresAt"`
	IsActive        bool      `bun:"is_active" json:"isActive"`
}

type CouponCode struct {
	bun.BaseModel `bun:"table:coupon_codes"`

	ID             int64     `bun:"id,pk,autoincrement" json:"id"`
	CampaignID     int64     `bun:"campaign_id" json:"campaignId"`
	Code           string    `bun:"code,unique" json:"code"`
	StripeCouponID string    `bun:"stripe_coupon_id" json:"stripeCouponId,omitempty"`
	StripePromoID  string    `bun:"stripe_promo_id" json:"stripePromoId,omitempty"`
	MaxRedemptions int       `bun:"max_redemptions" json:"maxRedemptions"`
	TimesRedeemed  int       `bun:"times_redeemed" json:"timesRedeemed"`
	CreatedAt      time.Time `bun:"created_at" json:"createdAt"`
	ExpiresAt      time.Time `bun:"expires_at" json:"expiresAt"`
	IsActive       bool      `bun:"is_active" json:"isActive"`

	Campaign *CouponCampaign `bun:"rel:belongs-to,join:campaign_id=id" json:"campaign,omitempty"`
}

// CouponDistribution records that a code was printed on a specific
// postcard, for redemption-rate analytics.
type CouponDistribution struct {
	bun.BaseModel `bun:"table:coupon_distributions"`

	ID               int64     `bun:"id,pk,autoincrement" json:"id"`
	CouponCodeID     int64     `bun:"coupon_code_id" json:"couponCodeId"`
	TransactionID    string    `bun:"transaction_id" json:"transactionId"`
	RecipientName    string    `bun:"recipient_name" json:"recipientName,omitempty"`
	RecipientAddress string    `bun:"recipient_address" json:"recipientAddress,omitempty"`
	PostcardSize     string    `bun:"postcard_size" json:"postcardSize,omitempty"`
	SentAt           time.Time `bun:"sent_at" json:"sentAt"`
}

// CouponRedemption is unique per (coupon_code_id, transaction_id); the
// constraint is what makes Redeem idempotent under concurrent calls.
type CouponRedemption struct {
	bun.BaseModel `bun:"table:coupon_redemptions"`

	ID                    int64     `bun:"id,pk,autoincrement" json:"id"`
	CouponCodeID          int64     `bun:"coupon_code_id,unique:code_txn" json:"couponCodeId"`
	TransactionID         string    `bun:"transaction_id,unique:code_txn" json:"transactionId"`
	StripePaymentIntentID string    `bun:"stripe_payment_intent_id" json:"stripePaymentIntentId,omitempty"`
	CustomerEmail         string    `bun:"customer_email" json:"customerEmail,omitempty"`
	RedeemedAt            time.Time `bun:"redeemed_at" json:"redeemedAt"`
	RedemptionValueCents  int       `bun:"redemption_value_cents" json:"redemptionValueCents"`
}

// PromoValidation is the result of validating a promo code.
type PromoValidation struct {
	Valid           bool   `json:"valid"`
	DiscountPercent int    `json:"discount_percent,omitempty"`
	RemainingUses   int    `json:"remaining_uses,omitempty"`
	Message         string `json:"message"`
}
