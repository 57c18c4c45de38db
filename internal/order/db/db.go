package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"postcard-service/internal/models"

	"github.com/uptrace/bun"
)

type DB struct {
	Bun *bun.DB
}

// GetOrderByTransactionID fetches one order. Returns (nil, nil) when the
// transaction is unknown.
func (d *DB) GetOrderByTransactionID(ctx context.Context, transactionID string) (*models.Order, error) {
	var order models.Order
	err := d.Bun.NewSelect().
		Model(&order).
		Where("transaction_id = ?", transactionID).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// UpsertOrder inserts the order, or refreshes every mutable column when the
// transaction ID already exists. The client may resubmit the same request
// after a connectivity blip; the last write wins, except that a known
// customer email is never replaced by an empty one.
func (d *DB) UpsertOrder(ctx context.Context, order *models.Order) error {
	_, err := d.Bun.NewInsert().
		Model(order).
		On("CONFLICT (transaction_id) DO UPDATE").
		Set("status = EXCLUDED.status").
		Set("recipient_name = EXCLUDED.recipient_name").
		Set("address_line_1 = EXCLUDED.address_line_1").
		Set("address_line_2 = EXCLUDED.address_line_2").
		Set("city = EXCLUDED.city").
		Set("state = EXCLUDED.state").
		Set("postal_code = EXCLUDED.postal_code").
		Set("message = EXCLUDED.message").
		Set("return_address_text = EXCLUDED.return_address_text").
		Set("size_class = EXCLUDED.size_class").
		Set("template_type = EXCLUDED.template_type").
		Set("front_image_refs = EXCLUDED.front_image_refs").
		Set("front_artifact_url = EXCLUDED.front_artifact_url").
		Set("back_artifact_url = EXCLUDED.back_artifact_url").
		Set("customer_email = CASE WHEN EXCLUDED.customer_email = '' THEN customer_email ELSE EXCLUDED.customer_email END").
		Exec(ctx)
	return err
}

// UpdateStatus moves an order to the given status and stamps the matching
// timestamp column.
func (d *DB) UpdateStatus(ctx context.Context, transactionID string, status models.OrderStatus) error {
	q := d.Bun.NewUpdate().
		Model((*models.Order)(nil)).
		Set("status = ?", status).
		Where("transaction_id = ?", transactionID)

	now := time.Now()
	switch status {
	case models.StatusPaymentConfirmed:
		q = q.Set("payment_confirmed_at = ?", now)
	case models.StatusSubmittedToPrint:
		q = q.Set("print_submitted_at = ?", now)
	}

	_, err := q.Exec(ctx)
	return err
}

// UpdatePaymentDetails stores the payment reference and, when the order has
// no email yet, the customer email. An email captured at generation time is
// never overwritten by the webhook payload.
func (d *DB) UpdatePaymentDetails(ctx context.Context, transactionID, paymentRef, email string) error {
	q := d.Bun.NewUpdate().
		Model((*models.Order)(nil)).
		Set("payment_reference = ?", paymentRef).
		Where("transaction_id = ?", transactionID)
	if email != "" {
		q = q.Set("customer_email = CASE WHEN customer_email = '' THEN ? ELSE customer_email END", email)
	}
	_, err := q.Exec(ctx)
	return err
}

// UpdateVendorID records the print vendor's order identifier.
func (d *DB) UpdateVendorID(ctx context.Context, transactionID, vendorID string) error {
	_, err := d.Bun.NewUpdate().
		Model((*models.Order)(nil)).
		Set("print_vendor_order_id = ?", vendorID).
		Where("transaction_id = ?", transactionID).
		Exec(ctx)
	return err
}

// UpsertCustomer folds one confirmed order into the CRM aggregate.
func (d *DB) UpsertCustomer(ctx context.Context, email string, amountCents int, orderedAt time.Time) error {
	customer := &models.Customer{
		Email:           email,
		TotalOrders:     1,
		TotalSpentCents: amountCents,
		FirstOrderDate:  &orderedAt,
		LastOrderDate:   &orderedAt,
		CreatedAt:       orderedAt,
	}
	_, err := d.Bun.NewInsert().
		Model(customer).
		On("CONFLICT (email) DO UPDATE").
		Set("total_orders = customer.total_orders + 1").
		Set("total_spent_cents = customer.total_spent_cents + EXCLUDED.total_spent_cents").
		Set("last_order_date = EXCLUDED.last_order_date").
		Exec(ctx)
	return err
}

// OrdersByStatus lists orders in a given state, oldest first.
func (d *DB) OrdersByStatus(ctx context.Context, status models.OrderStatus) ([]models.Order, error) {
	var orders []models.Order
	err := d.Bun.NewSelect().
		Model(&orders).
		Where("status = ?", status).
		Order("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return orders, nil
}
