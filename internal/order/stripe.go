package order

import (
	"context"
	"encoding/json"
	"fmt"

	"postcard-service/internal/config"
	"postcard-service/internal/errs"
	"postcard-service/internal/logger"
	"postcard-service/internal/models"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
	"github.com/stripe/stripe-go/v82/webhook"
)

// PaymentGateway is the payment-provider surface the orchestrator needs.
type PaymentGateway interface {
	CreateCheckoutSession(ctx context.Context, order *models.Order, successURL, cancelURL string) (sessionID, checkoutURL string, err error)
	CreatePaymentIntent(ctx context.Context, order *models.Order, discountPercent int) (clientSecret, intentID string, amountCents int64, err error)
	ParseWebhook(payload []byte, signature string) (*WebhookEvent, error)
}

// WebhookEvent is a gateway callback reduced to what the orchestrator acts
// on. Confirmed is nil for event types that do not complete a payment.
type WebhookEvent struct {
	ID        string
	Type      string
	Confirmed *models.PaymentConfirmed
}

// StripePayments implements PaymentGateway on stripe-go. Both payment flows
// stamp the transaction ID into gateway metadata, which is the only way the
// webhook can find its way back to the order.
type StripePayments struct {
	client  *client.API
	cfg     config.StripeConfig
	pricing config.PricingConfig
	log     *logger.Logger
}

func NewStripePayments(cfg config.StripeConfig, pricing config.PricingConfig, log *logger.Logger) *StripePayments {
	return &StripePayments{
		client:  client.New(cfg.SecretKey, nil),
		cfg:     cfg,
		pricing: pricing,
		log:     log,
	}
}

func (p *StripePayments) priceCents(size models.SizeClass) int64 {
	if size == models.SizeXL {
		return p.pricing.XLCents
	}
	return p.pricing.RegularCents
}

func (p *StripePayments) CreateCheckoutSession(ctx context.Context, order *models.Order, successURL, cancelURL string) (string, string, error) {
	if successURL == "" {
		successURL = p.cfg.SuccessURL
	}
	if cancelURL == "" {
		cancelURL = p.cfg.CancelURL
	}

	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(successURL),
		CancelURL:  stripe.String(cancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(string(stripe.CurrencyUSD)),
					UnitAmount: stripe.Int64(p.priceCents(order.SizeClass)),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(fmt.Sprintf("XLPostcards %s postcard", order.SizeClass)),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
		AllowPromotionCodes: stripe.Bool(true),
	}
	params.Context = ctx
	params.AddMetadata("transaction_id", order.TransactionID)
	if order.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(order.CustomerEmail)
	}

	session, err := p.client.CheckoutSessions.New(params)
	if err != nil {
		return "", "", errs.Transient(err, "create checkout session for %s", order.TransactionID)
	}

	p.log.LogTransaction("CHECKOUT", order.TransactionID, "created session "+session.ID)
	return session.ID, session.URL, nil
}

func (p *StripePayments) CreatePaymentIntent(ctx context.Context, order *models.Order, discountPercent int) (string, string, int64, error) {
	amount := p.priceCents(order.SizeClass)
	if discountPercent > 0 {
		amount = amount * int64(100-discountPercent) / 100
	}
	if amount <= 0 {
		return "", "", 0, errs.Validation("fully discounted orders use the free-postcard flow")
	}

	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(amount),
		Currency: stripe.String(string(stripe.CurrencyUSD)),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	params.AddMetadata("transaction_id", order.TransactionID)
	if order.CustomerEmail != "" {
		params.ReceiptEmail = stripe.String(order.CustomerEmail)
	}

	intent, err := p.client.PaymentIntents.New(params)
	if err != nil {
		return "", "", 0, errs.Transient(err, "create payment intent for %s", order.TransactionID)
	}

	p.log.LogTransaction("INTENT", order.TransactionID, fmt.Sprintf("created %s for %d cents", intent.ID, amount))
	return intent.ClientSecret, intent.ID, amount, nil
}

// ParseWebhook verifies the callback signature when a secret is configured
// and normalizes the two payment-completion shapes into one message.
func (p *StripePayments) ParseWebhook(payload []byte, signature string) (*WebhookEvent, error) {
	var event stripe.Event
	if p.cfg.WebhookSecret != "" {
		verified, err := webhook.ConstructEvent(payload, signature, p.cfg.WebhookSecret)
		if err != nil {
			return nil, errs.Validation("webhook signature verification failed: %v", err)
		}
		event = verified
	} else {
		if err := json.Unmarshal(payload, &event); err != nil {
			return nil, errs.Validation("malformed webhook payload: %v", err)
		}
		p.log.LogDegraded("STRIPE", "webhook accepted without signature verification")
	}

	result := &WebhookEvent{ID: event.ID, Type: string(event.Type)}

	switch event.Type {
	case "checkout.session.completed":
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			return nil, errs.Validation("malformed checkout session event: %v", err)
		}
		confirmed := &models.PaymentConfirmed{
			TransactionID:    session.Metadata["transaction_id"],
			PaymentReference: session.ID,
		}
		if session.CustomerDetails != nil {
			confirmed.CustomerEmail = session.CustomerDetails.Email
		}
		if confirmed.TransactionID == "" {
			return nil, errs.Validation("checkout session %s carries no transaction id", session.ID)
		}
		result.Confirmed = confirmed

	case "payment_intent.succeeded":
		var intent stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
			return nil, errs.Validation("malformed payment intent event: %v", err)
		}
		confirmed := &models.PaymentConfirmed{
			TransactionID:    intent.Metadata["transaction_id"],
			PaymentReference: intent.ID,
			CustomerEmail:    intent.ReceiptEmail,
		}
		if confirmed.TransactionID == "" {
			return nil, errs.Validation("payment intent %s carries no transaction id", intent.ID)
		}
		result.Confirmed = confirmed
	}

	return result, nil
}
