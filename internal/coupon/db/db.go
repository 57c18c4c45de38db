package db

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"postcard-service/internal/models"

	"github.com/uptrace/bun"
)

type DB struct {
	Bun *bun.DB
}

// GetCodeWithCampaign loads a code (case-insensitive) together with its
// campaign. Returns (nil, nil) when the code is unknown locally.
func (d *DB) GetCodeWithCampaign(ctx context.Context, code string) (*models.CouponCode, error) {
	var coupon models.CouponCode
	err := d.Bun.NewSelect().
		Model(&coupon).
		Relation("Campaign").
		Where("lower(code) = ?", strings.ToLower(code)).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &coupon, nil
}

// GetCodeByExactValue fetches a code by its stored value.
func (d *DB) GetCodeByExactValue(ctx context.Context, code string) (*models.CouponCode, error) {
	var coupon models.CouponCode
	err := d.Bun.NewSelect().
		Model(&coupon).
		Where("code = ?", code).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &coupon, nil
}

// CreateCampaignWithCode inserts a campaign and its single code in one
// transaction. The unique code constraint makes concurrent creation of the
// same monthly code a no-op race loser, not a duplicate.
func (d *DB) CreateCampaignWithCode(ctx context.Context, campaign *models.CouponCampaign, code *models.CouponCode) error {
	return d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(campaign).Exec(ctx); err != nil {
			return err
		}
		code.CampaignID = campaign.ID
		_, err := tx.NewInsert().Model(code).Exec(ctx)
		return err
	})
}

var ErrAlreadyRedeemed = errors.New("coupon already redeemed for this transaction")

// RecordRedemption inserts a redemption and bumps the code's counter. The
// (coupon_code_id, transaction_id) unique constraint turns a replay into
// ErrAlreadyRedeemed so the counter is only ever bumped once per order.
func (d *DB) RecordRedemption(ctx context.Context, redemption *models.CouponRedemption) error {
	return d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewInsert().
			Model(redemption).
			On("CONFLICT (coupon_code_id, transaction_id) DO NOTHING").
			Exec(ctx)
		if err != nil {
			return err
		}
		inserted, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if inserted == 0 {
			return ErrAlreadyRedeemed
		}

		_, err = tx.NewUpdate().
			Model((*models.CouponCode)(nil)).
			Set("times_redeemed = times_redeemed + 1").
			Where("id = ?", redemption.CouponCodeID).
			Exec(ctx)
		return err
	})
}

// RecordDistribution logs that a code was printed on a postcard back.
func (d *DB) RecordDistribution(ctx context.Context, dist *models.CouponDistribution) error {
	if dist.SentAt.IsZero() {
		dist.SentAt = time.Now()
	}
	_, err := d.Bun.NewInsert().Model(dist).Exec(ctx)
	return err
}

// DistributionCount reports how many postcards carried a given code.
func (d *DB) DistributionCount(ctx context.Context, couponCodeID int64) (int, error) {
	return d.Bun.NewSelect().
		Model((*models.CouponDistribution)(nil)).
		Where("coupon_code_id = ?", couponCodeID).
		Count(ctx)
}

// RedemptionCount reports confirmed redemptions for a code.
func (d *DB) RedemptionCount(ctx context.Context, couponCodeID int64) (int, error) {
	return d.Bun.NewSelect().
		Model((*models.CouponRedemption)(nil)).
		Where("coupon_code_id = ?", couponCodeID).
		Count(ctx)
}
