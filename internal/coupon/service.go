package coupon

import (
	"context"
	"fmt"
	"strings"
	"time"

	"postcard-service/internal/coupon/db"
	"postcard-service/internal/errs"
	"postcard-service/internal/logger"
	"postcard-service/internal/models"
)

// monthlyCodePrefix is printed on every postcard back; the suffix rolls to
// the month the recipient is likely to read it in, so a card mailed late in
// a month never carries an already-stale code.
const (
	monthlyCodePrefix  = "XLWelcome"
	mailTransitDays    = 32
	monthlyDiscountPct = 100
	monthlyMaxRedeems  = 500
	perCodeMaxRedeems  = 500
)

// MonthlyCode derives the current welcome code from the clock alone, so the
// back-face renderer and the coupon job always agree without coordination.
func MonthlyCode(now time.Time) string {
	return monthlyCodePrefix + now.AddDate(0, 0, mailTransitDays).Format("Jan")
}

// Store is the persistence surface the service needs.
type Store interface {
	GetCodeWithCampaign(ctx context.Context, code string) (*models.CouponCode, error)
	GetCodeByExactValue(ctx context.Context, code string) (*models.CouponCode, error)
	CreateCampaignWithCode(ctx context.Context, campaign *models.CouponCampaign, code *models.CouponCode) error
	RecordRedemption(ctx context.Context, redemption *models.CouponRedemption) error
	RecordDistribution(ctx context.Context, dist *models.CouponDistribution) error
	DistributionCount(ctx context.Context, couponCodeID int64) (int, error)
	RedemptionCount(ctx context.Context, couponCodeID int64) (int, error)
}

// Gateway is the payment-provider side of promotions.
type Gateway interface {
	FindPromotionCode(ctx context.Context, code string) (*PromotionCode, error)
	CreatePromotion(ctx context.Context, code string, percentOff int, maxRedemptions int, expiresAt time.Time) (couponID, promoID string, err error)
}

// PromotionCode is the provider-side view of a code, normalized away from
// the vendor SDK types.
type PromotionCode struct {
	ID             string
	Active         bool
	PercentOff     int
	MaxRedemptions int
	TimesRedeemed  int
	ExpiresAt      time.Time
}

type Service struct {
	store   Store
	gateway Gateway
	log     *logger.Logger
	now     func() time.Time
}

func NewService(store Store, gateway Gateway, log *logger.Logger) *Service {
	return &Service{store: store, gateway: gateway, log: log, now: time.Now}
}

// Validate checks a promo code against the local store first, then the
// payment provider. Validation never mutates anything.
func (s *Service) Validate(ctx context.Context, code string) (*models.PromoValidation, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return &models.PromoValidation{Valid: false, Message: "No promo code provided"}, nil
	}

	local, localErr := s.store.GetCodeWithCampaign(ctx, code)
	if localErr != nil {
		// The gateway is the ultimate source of truth; a local outage must
		// not reject a code the gateway would accept.
		s.log.Warn("COUPON", fmt.Sprintf("local lookup for %s failed, consulting gateway: %v", code, localErr))
	}
	if local != nil {
		return s.validateLocal(local), nil
	}

	remote, err := s.gateway.FindPromotionCode(ctx, code)
	if err != nil {
		if localErr != nil {
			return nil, errs.Transient(err, "coupon lookup failed locally and at the gateway")
		}
		return nil, errs.Transient(err, "promotion lookup failed")
	}
	if remote == nil || !remote.Active {
		return &models.PromoValidation{Valid: false, Message: "Invalid promo code"}, nil
	}
	if !remote.ExpiresAt.IsZero() && remote.ExpiresAt.Before(s.now()) {
		return &models.PromoValidation{Valid: false, Message: "This promo code has expired"}, nil
	}
	if remote.MaxRedemptions > 0 && remote.TimesRedeemed >= remote.MaxRedemptions {
		return &models.PromoValidation{Valid: false, Message: "This promo code has reached its limit"}, nil
	}
	return &models.PromoValidation{
		Valid:           true,
		DiscountPercent: remote.PercentOff,
		RemainingUses:   remote.MaxRedemptions - remote.TimesRedeemed,
		Message:         "Promo code applied",
	}, nil
}

func (s *Service) validateLocal(code *models.CouponCode) *models.PromoValidation {
	if !code.IsActive {
		return &models.PromoValidation{Valid: false, Message: "Invalid promo code"}
	}
	if !code.ExpiresAt.IsZero() && code.ExpiresAt.Before(s.now()) {
		return &models.PromoValidation{Valid: false, Message: "This promo code has expired"}
	}
	if code.MaxRedemptions > 0 && code.TimesRedeemed >= code.MaxRedemptions {
		return &models.PromoValidation{Valid: false, Message: "This promo code has reached its limit"}
	}

	discount := 0
	if code.Campaign != nil {
		discount = code.Campaign.DiscountPercent
	}
	return &models.PromoValidation{
		Valid:           true,
		DiscountPercent: discount,
		RemainingUses:   code.MaxRedemptions - code.TimesRedeemed,
		Message:         "Promo code applied",
	}
}

// Redeem consumes one use of a code for a transaction. Replaying the same
// (code, transaction) pair is a no-op so webhook retries cannot double-burn
// a redemption.
func (s *Service) Redeem(ctx context.Context, code, transactionID, paymentRef, email string, valueCents int) error {
	local, err := s.store.GetCodeWithCampaign(ctx, code)
	if err != nil {
		return errs.Transient(err, "coupon lookup failed")
	}
	if local == nil {
		return errs.NotFound("unknown promo code %q", code)
	}
	if v := s.validateLocal(local); !v.Valid {
		return errs.Validation("%s", v.Message)
	}

	err = s.store.RecordRedemption(ctx, &models.CouponRedemption{
		CouponCodeID:          local.ID,
		TransactionID:         transactionID,
		StripePaymentIntentID: paymentRef,
		CustomerEmail:         email,
		RedeemedAt:            s.now(),
		RedemptionValueCents:  valueCents,
	})
	if err == db.ErrAlreadyRedeemed {
		s.log.Info("COUPON", fmt.Sprintf("redemption replay for %s on %s ignored", code, transactionID))
		return nil
	}
	if err != nil {
		return errs.Transient(err, "record redemption")
	}

	s.log.Info("COUPON", fmt.Sprintf("code %s redeemed by %s", code, transactionID))
	return nil
}

// EnsureMonthlyCoupon creates the current month's welcome code on the
// provider and locally if it does not exist yet. Safe to call repeatedly;
// the daily job and the admin endpoint both go through here.
func (s *Service) EnsureMonthlyCoupon(ctx context.Context) (string, error) {
	now := s.now()
	code := MonthlyCode(now)

	existing, err := s.store.GetCodeByExactValue(ctx, code)
	if err != nil {
		return "", errs.Transient(err, "coupon lookup failed")
	}
	if existing != nil {
		return code, nil
	}

	target := now.AddDate(0, 0, mailTransitDays)
	expires := time.Date(target.Year(), target.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0)

	couponID, promoID, err := s.gateway.CreatePromotion(ctx, code, monthlyDiscountPct, monthlyMaxRedeems, expires)
	if err != nil {
		return "", errs.Transient(err, "create provider promotion for %s", code)
	}

	campaign := &models.CouponCampaign{
		CampaignName:    "monthly-welcome-" + target.Format("2006-01"),
		CampaignType:    "monthly_welcome",
		Description:     "First postcard free, printed on every card back",
		MaxRedemptions:  monthlyMaxRedeems,
		DiscountPercent: monthlyDiscountPct,
		CreatedAt:       now,
		ExpiresAt:       expires,
		IsActive:        true,
	}
	couponCode := &models.CouponCode{
		Code:           code,
		StripeCouponID: couponID,
		StripePromoID:  promoID,
		MaxRedemptions: perCodeMaxRedeems,
		CreatedAt:      now,
		ExpiresAt:      expires,
		IsActive:       true,
	}
	if err := s.store.CreateCampaignWithCode(ctx, campaign, couponCode); err != nil {
		// A concurrent creator winning the unique-code race is fine.
		if isUniqueViolation(err) {
			return code, nil
		}
		return "", errs.Transient(err, "persist monthly coupon %s", code)
	}

	s.log.Info("COUPON", "created monthly coupon "+code)
	return code, nil
}

// RecordDistribution notes that a rendered back face carried the code.
func (s *Service) RecordDistribution(ctx context.Context, code string, order *models.Order) error {
	local, err := s.store.GetCodeByExactValue(ctx, code)
	if err != nil {
		return errs.Transient(err, "coupon lookup failed")
	}
	if local == nil {
		return errs.NotFound("unknown promo code %q", code)
	}
	return s.store.RecordDistribution(ctx, &models.CouponDistribution{
		CouponCodeID:     local.ID,
		TransactionID:    order.TransactionID,
		RecipientName:    order.RecipientName,
		RecipientAddress: order.AddressLine1,
		PostcardSize:     string(order.SizeClass),
		SentAt:           s.now(),
	})
}

// Status summarizes a code for the monitoring endpoint.
type Status struct {
	Code          string `json:"code"`
	Active        bool   `json:"active"`
	Distributed   int    `json:"distributed"`
	Redeemed      int    `json:"redeemed"`
	RemainingUses int    `json:"remainingUses"`
}

func (s *Service) CodeStatus(ctx context.Context, code string) (*Status, error) {
	local, err := s.store.GetCodeWithCampaign(ctx, code)
	if err != nil {
		return nil, errs.Transient(err, "coupon lookup failed")
	}
	if local == nil {
		return nil, errs.NotFound("unknown promo code %q", code)
	}

	distributed, err := s.store.DistributionCount(ctx, local.ID)
	if err != nil {
		return nil, errs.Transient(err, "distribution count")
	}
	redeemed, err := s.store.RedemptionCount(ctx, local.ID)
	if err != nil {
		return nil, errs.Transient(err, "redemption count")
	}

	return &Status{
		Code:          local.Code,
		Active:        local.IsActive,
		Distributed:   distributed,
		Redeemed:      redeemed,
		RemainingUses: local.MaxRedemptions - local.TimesRedeemed,
	}, nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") || strings.Contains(msg, "duplicate")
}
