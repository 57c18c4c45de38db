package coupon

import (
	"context"
	"fmt"
	"time"

	"postcard-service/internal/logger"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
)

// StripeGateway implements Gateway on the Stripe promotions API.
type StripeGateway struct {
	client *client.API
	log    *logger.Logger
}

func NewStripeGateway(secretKey string, log *logger.Logger) *StripeGateway {
	return &StripeGateway{
		client: client.New(secretKey, nil),
		log:    log,
	}
}

func (g *StripeGateway) FindPromotionCode(ctx context.Context, code string) (*PromotionCode, error) {
	params := &stripe.PromotionCodeListParams{
		Code: stripe.String(code),
	}
	params.Context = ctx
	params.Filters.AddFilter("limit", "", "1")

	iter := g.client.PromotionCodes.List(params)
	for iter.Next() {
		pc := iter.PromotionCode()
		normalized := &PromotionCode{
			ID:             pc.ID,
			Active:         pc.Active,
			MaxRedemptions: int(pc.MaxRedemptions),
			TimesRedeemed:  int(pc.TimesRedeemed),
		}
		if pc.Coupon != nil {
			normalized.PercentOff = int(pc.Coupon.PercentOff)
		}
		if pc.ExpiresAt > 0 {
			normalized.ExpiresAt = time.Unix(pc.ExpiresAt, 0)
		}
		return normalized, nil
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return nil, nil
}

// CreatePromotion mints a one-shot percent-off coupon and a customer-facing
// promotion code bound to it.
func (g *StripeGateway) CreatePromotion(ctx context.Context, code string, percentOff, maxRedemptions int, expiresAt time.Time) (string, string, error) {
	couponParams := &stripe.CouponParams{
		Name:       stripe.String(code),
		PercentOff: stripe.Float64(float64(percentOff)),
		Duration:   stripe.String(string(stripe.CouponDurationOnce)),
	}
	couponParams.Context = ctx

	c, err := g.client.Coupons.New(couponParams)
	if err != nil {
		return "", "", fmt.Errorf("create coupon: %w", err)
	}

	promoParams := &stripe.PromotionCodeParams{
		Coupon:         stripe.String(c.ID),
		Code:           stripe.String(code),
		MaxRedemptions: stripe.Int64(int64(maxRedemptions)),
		ExpiresAt:      stripe.Int64(expiresAt.Unix()),
	}
	promoParams.Context = ctx

	promo, err := g.client.PromotionCodes.New(promoParams)
	if err != nil {
		return "", "", fmt.Errorf("create promotion code: %w", err)
	}

	g.log.Info("STRIPE", fmt.Sprintf("created promotion %s (coupon %s) for code %s", promo.ID, c.ID, code))
	return c.ID, promo.ID, nil
}
