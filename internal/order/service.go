package order

import (
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"strings"
	"time"

	"postcard-service/internal/config"
	"postcard-service/internal/coupon"
	"postcard-service/internal/errs"
	"postcard-service/internal/logger"
	"postcard-service/internal/models"
	"postcard-service/internal/notify"
	"postcard-service/internal/print"
	"postcard-service/internal/storage"
	"postcard-service/internal/template"
	"postcard-service/internal/utils"
)

// DBLayer is the order persistence surface.
type DBLayer interface {
	GetOrderByTransactionID(ctx context.Context, transactionID string) (*models.Order, error)
	UpsertOrder(ctx context.Context, order *models.Order) error
	UpdateStatus(ctx context.Context, transactionID string, status models.OrderStatus) error
	UpdatePaymentDetails(ctx context.Context, transactionID, paymentRef, email string) error
	UpdateVendorID(ctx context.Context, transactionID, vendorID string) error
	UpsertCustomer(ctx context.Context, email string, amountCents int, orderedAt time.Time) error
	OrdersByStatus(ctx context.Context, status models.OrderStatus) ([]models.Order, error)
}

// StatusCache is the Redis-backed webhook guard and status mirror.
type StatusCache interface {
	ClaimWebhookEvent(ctx context.Context, eventID string) (bool, error)
	ReleaseWebhookEvent(ctx context.Context, eventID string) error
	CacheStatus(ctx context.Context, transactionID, status string)
	GetStatus(ctx context.Context, transactionID string) string
}

// EventPublisher streams lifecycle events. May be nil when disabled.
type EventPublisher interface {
	PublishOrderEvent(ctx context.Context, eventType string, order *models.Order) error
}

// Renderer is the compositing engine surface.
type Renderer interface {
	RenderFront(ctx context.Context, templateType string, refs []string, size models.SizeClass) (image.Image, error)
	RenderBack(order *models.Order, promoCode string) (image.Image, []template.Event)
}

// CouponManager is the promo-code surface the orchestrator needs.
type CouponManager interface {
	Validate(ctx context.Context, code string) (*models.PromoValidation, error)
	Redeem(ctx context.Context, code, transactionID, paymentRef, email string, valueCents int) error
	RecordDistribution(ctx context.Context, code string, order *models.Order) error
}

// OrderService drives a transaction through generate → await-payment →
// payment-confirmed → submit-to-print → notify.
type OrderService struct {
	DB       DBLayer
	Cache    StatusCache
	Events   EventPublisher
	Engine   Renderer
	Uploader storage.Uploader
	Printer  print.Submitter
	Notifier notify.Dispatcher
	Coupons  CouponManager
	Payments PaymentGateway

	cfg *config.Config
	log *logger.Logger
	now func() time.Time
}

func NewOrderService(db DBLayer, cache StatusCache, events EventPublisher, engine Renderer,
	uploader storage.Uploader, printer print.Submitter, notifier notify.Dispatcher,
	coupons CouponManager, payments PaymentGateway, cfg *config.Config, log *logger.Logger) *OrderService {
	return &OrderService{
		DB:       db,
		Cache:    cache,
		Events:   events,
		Engine:   engine,
		Uploader: uploader,
		Printer:  printer,
		Notifier: notifier,
		Coupons:  coupons,
		Payments: payments,
		cfg:      cfg,
		log:      log,
		now:      time.Now,
	}
}

const (
	eventOrderCreated     = "order.created"
	eventPaymentConfirmed = "order.payment_confirmed"
	eventOrderSubmitted   = "order.submitted_to_print"
	eventOrderFailed      = "order.failed"
)

// GeneratePostcard composites both faces, uploads artifacts and persists the
// order in ready_for_payment. Resubmitting the same transaction ID
// regenerates and overwrites while the order is still unpaid; past that the
// stored artifacts are returned unchanged.
func (s *OrderService) GeneratePostcard(ctx context.Context, req *models.PostcardRequest) (*models.GenerateResponse, error) {
	if missing := req.RecipientInfo.Validate(); len(missing) > 0 {
		return nil, errs.Validation("missing recipient fields: %s", strings.Join(missing, ", "))
	}
	refs := req.ImageRefs()
	if len(refs) == 0 {
		return nil, errs.Validation("at least one front image is required")
	}
	if len(refs) > 9 {
		return nil, errs.Validation("at most 9 front images are supported, got %d", len(refs))
	}
	if strings.TrimSpace(req.Message) == "" {
		return nil, errs.Validation("message is required")
	}

	size := req.PostcardSize
	if size != models.SizeRegular && size != models.SizeXL {
		size = models.SizeRegular
	}
	templateType := req.TemplateType
	if templateType == "" {
		templateType = template.DefaultTemplate
	}
	transactionID := req.TransactionID
	if transactionID == "" {
		transactionID = utils.GenerateTransactionID()
	} else {
		existing, err := s.DB.GetOrderByTransactionID(ctx, transactionID)
		if err != nil {
			return nil, errs.Transient(err, "load order %s", transactionID)
		}
		// Once money has moved the artifacts are frozen; a regeneration
		// replay must not rewind the status and re-open the print path.
		if existing != nil {
			switch existing.Status {
			case models.StatusFailed:
				return nil, errs.InvalidState("transaction %s already failed, start a new one", transactionID)
			case models.StatusPaymentConfirmed, models.StatusSubmittedToPrint:
				s.log.LogTransaction("GENERATE", transactionID, "already "+string(existing.Status)+", returning stored artifacts")
				return &models.GenerateResponse{
					Success:       true,
					TransactionID: transactionID,
					FrontURL:      existing.FrontArtifactURL,
					BackURL:       existing.BackArtifactURL,
					Status:        string(existing.Status),
				}, nil
			}
		}
	}

	order := &models.Order{
		TransactionID:     transactionID,
		Status:            models.StatusPendingPayment,
		RecipientName:     req.RecipientInfo.To,
		AddressLine1:      req.RecipientInfo.AddressLine1,
		AddressLine2:      req.RecipientInfo.AddressLine2,
		City:              req.RecipientInfo.City,
		State:             req.RecipientInfo.State,
		PostalCode:        req.RecipientInfo.Zipcode,
		Message:           req.Message,
		ReturnAddressText: req.ReturnAddressText,
		SizeClass:         size,
		TemplateType:      templateType,
		FrontImageRefs:    refs,
		CustomerEmail:     req.UserEmail,
		CreatedAt:         s.now(),
	}

	s.log.LogTransaction("GENERATE", transactionID, fmt.Sprintf("compositing %s/%s with %d photos", size, templateType, len(refs)))

	front, err := s.Engine.RenderFront(ctx, templateType, refs, size)
	if err != nil {
		return nil, err
	}
	promoCode := coupon.MonthlyCode(s.now())
	back, renderEvents := s.Engine.RenderBack(order, promoCode)

	frontBytes, err := template.EncodeJPEG(front)
	if err != nil {
		return nil, err
	}
	backBytes, err := template.EncodeJPEG(back)
	if err != nil {
		return nil, err
	}

	order.FrontArtifactURL = s.uploadOrInline(ctx, frontBytes, transactionID+"-front")
	order.BackArtifactURL = s.uploadOrInline(ctx, backBytes, transactionID+"-back")
	order.Status = models.StatusReadyForPayment

	if err := s.DB.UpsertOrder(ctx, order); err != nil {
		return nil, errs.Transient(err, "persist order %s", transactionID)
	}
	s.Cache.CacheStatus(ctx, transactionID, string(order.Status))
	s.applyRenderEvents(ctx, order, renderEvents)
	s.publish(ctx, eventOrderCreated, order)

	return &models.GenerateResponse{
		Success:       true,
		TransactionID: transactionID,
		FrontURL:      order.FrontArtifactURL,
		BackURL:       order.BackArtifactURL,
		Status:        string(order.Status),
	}, nil
}

// uploadOrInline pushes an artifact to hosted storage, degrading to an
// inline data URI when the upload fails. The order still completes; the
// inline path is flagged because print deliverability suffers.
func (s *OrderService) uploadOrInline(ctx context.Context, data []byte, publicID string) string {
	url, err := s.Uploader.UploadImage(ctx, data, publicID)
	if err != nil {
		s.log.LogDegraded("STORAGE", fmt.Sprintf("upload of %s failed, falling back to inline data URI: %v", publicID, err))
		return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(data)
	}
	return url
}

// applyRenderEvents commits the side effects compositing asked for. All are
// best effort; a failed distribution record never fails the order.
func (s *OrderService) applyRenderEvents(ctx context.Context, order *models.Order, events []template.Event) {
	for _, ev := range events {
		switch ev.Kind {
		case template.EventPromoDistributed:
			if err := s.Coupons.RecordDistribution(ctx, ev.Detail, order); err != nil {
				s.log.Warn("COUPON", fmt.Sprintf("distribution record for %s on %s failed: %v", ev.Detail, order.TransactionID, err))
			}
		case template.EventAssetMissing:
			s.log.LogDegraded("TEMPLATE", fmt.Sprintf("render of %s missing asset %s", order.TransactionID, ev.Detail))
		}
	}
}

// ConfirmPayment advances an order to payment_confirmed. Replays are no-ops;
// the email captured at generation wins over the webhook's.
func (s *OrderService) ConfirmPayment(ctx context.Context, msg models.PaymentConfirmed) error {
	order, err := s.DB.GetOrderByTransactionID(ctx, msg.TransactionID)
	if err != nil {
		return errs.Transient(err, "load order %s", msg.TransactionID)
	}
	if order == nil {
		return errs.NotFound("unknown transaction %s", msg.TransactionID)
	}

	switch order.Status {
	case models.StatusPaymentConfirmed, models.StatusSubmittedToPrint:
		s.log.LogTransaction("CONFIRM", msg.TransactionID, "payment already confirmed, ignoring replay")
		return nil
	case models.StatusFailed:
		return errs.InvalidState("transaction %s already failed", msg.TransactionID)
	}

	if err := s.DB.UpdatePaymentDetails(ctx, msg.TransactionID, msg.PaymentReference, msg.CustomerEmail); err != nil {
		return errs.Transient(err, "store payment details for %s", msg.TransactionID)
	}
	if err := s.DB.UpdateStatus(ctx, msg.TransactionID, models.StatusPaymentConfirmed); err != nil {
		return errs.Transient(err, "advance %s to payment_confirmed", msg.TransactionID)
	}
	order.Status = models.StatusPaymentConfirmed
	order.PaymentReference = msg.PaymentReference
	s.Cache.CacheStatus(ctx, msg.TransactionID, string(order.Status))
	s.log.LogTransaction("CONFIRM", msg.TransactionID, "payment confirmed via "+msg.PaymentReference)

	email := order.CustomerEmail
	if email == "" {
		email = msg.CustomerEmail
	}
	if email != "" {
		if err := s.DB.UpsertCustomer(ctx, email, int(s.priceCents(order.SizeClass)), s.now()); err != nil {
			s.log.Warn("DATABASE", fmt.Sprintf("customer aggregate for %s failed: %v", email, err))
		}
	}

	s.publish(ctx, eventPaymentConfirmed, order)
	return nil
}

// SubmitToPrint hands a confirmed order to the vendor. A terminal vendor
// failure marks the order failed and fans out the compensating
// notifications; the payment reference rides along so the admin can refund.
func (s *OrderService) SubmitToPrint(ctx context.Context, transactionID string) (string, error) {
	order, err := s.DB.GetOrderByTransactionID(ctx, transactionID)
	if err != nil {
		return "", errs.Transient(err, "load order %s", transactionID)
	}
	if order == nil {
		return "", errs.NotFound("unknown transaction %s", transactionID)
	}

	switch order.Status {
	case models.StatusSubmittedToPrint:
		s.log.LogTransaction("PRINT", transactionID, "already submitted, ignoring replay")
		return order.PrintVendorID, nil
	case models.StatusPaymentConfirmed:
		// the only state print submission may start from
	default:
		return "", errs.InvalidState("transaction %s is %s, not payment_confirmed", transactionID, order.Status)
	}

	result, err := s.Printer.Submit(ctx, order)
	if err != nil {
		if errs.IsFatal(err) {
			s.failOrder(ctx, order, err)
		}
		return "", err
	}

	if err := s.DB.UpdateVendorID(ctx, transactionID, result.VendorID); err != nil {
		s.log.Error("DATABASE", fmt.Sprintf("vendor id for %s not stored: %v", transactionID, err))
	}
	if err := s.DB.UpdateStatus(ctx, transactionID, models.StatusSubmittedToPrint); err != nil {
		return "", errs.Transient(err, "advance %s to submitted_to_print", transactionID)
	}
	order.Status = models.StatusSubmittedToPrint
	order.PrintVendorID = result.VendorID
	s.Cache.CacheStatus(ctx, transactionID, string(order.Status))
	s.log.LogTransaction("PRINT", transactionID, "submitted as vendor order "+result.VendorID)

	s.Notifier.OrderSuccess(order, result.ProofURL)
	s.publish(ctx, eventOrderSubmitted, order)
	return result.VendorID, nil
}

// failOrder is the compensating path for a paid order that cannot be
// printed: terminal state, customer credit notice, admin refund alert.
func (s *OrderService) failOrder(ctx context.Context, order *models.Order, cause error) {
	s.log.Error("ORDER", fmt.Sprintf("order %s failed after payment: %v", order.TransactionID, cause))

	if err := s.DB.UpdateStatus(ctx, order.TransactionID, models.StatusFailed); err != nil {
		s.log.Error("DATABASE", fmt.Sprintf("failed-state write for %s: %v", order.TransactionID, err))
	}
	order.Status = models.StatusFailed
	s.Cache.CacheStatus(ctx, order.TransactionID, string(order.Status))

	s.Notifier.CustomerCredit(order, cause.Error())
	s.Notifier.AdminRefundNeeded(order, cause.Error())
	s.publish(ctx, eventOrderFailed, order)
}

// HandleWebhook is the gateway callback entry point. Duplicate deliveries of
// one event are serialized through the Redis claim; only the first proceeds.
func (s *OrderService) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	event, err := s.Payments.ParseWebhook(payload, signature)
	if err != nil {
		return err
	}
	if event.Confirmed == nil {
		s.log.Debug("STRIPE", "ignoring webhook event type "+event.Type)
		return nil
	}

	claimed, err := s.Cache.ClaimWebhookEvent(ctx, event.ID)
	if err != nil {
		s.log.Warn("REDIS", "webhook claim failed, proceeding without dedup: "+err.Error())
	} else if !claimed {
		s.log.LogTransaction("WEBHOOK", event.Confirmed.TransactionID, "duplicate delivery of "+event.ID+" skipped")
		return nil
	}

	if err := s.ConfirmPayment(ctx, *event.Confirmed); err != nil {
		// Release so the gateway's retry can land once the fault clears.
		if errs.IsTransient(err) && claimed {
			_ = s.Cache.ReleaseWebhookEvent(ctx, event.ID)
		}
		return err
	}

	if _, err := s.SubmitToPrint(ctx, event.Confirmed.TransactionID); err != nil {
		// Fatal submission failures already ran the compensation path;
		// surfacing the error to the gateway would only provoke retries
		// against a terminally failed order.
		if errs.IsFatal(err) {
			return nil
		}
		return err
	}
	return nil
}

// ProcessFreePostcard is the 100%-discount path: validate, generate, redeem,
// print, without touching the payment gateway.
func (s *OrderService) ProcessFreePostcard(ctx context.Context, req *models.FreePostcardRequest) (*models.GenerateResponse, error) {
	validation, err := s.Coupons.Validate(ctx, req.PromoCode)
	if err != nil {
		return nil, err
	}
	if !validation.Valid {
		return nil, errs.Validation("%s", validation.Message)
	}
	if validation.DiscountPercent < 100 {
		return nil, errs.Validation("promo code %s is %d%% off, not a free postcard", req.PromoCode, validation.DiscountPercent)
	}

	resp, err := s.GeneratePostcard(ctx, &req.PostcardRequest)
	if err != nil {
		return nil, err
	}
	paymentRef := "promo:" + req.PromoCode

	if err := s.Coupons.Redeem(ctx, req.PromoCode, resp.TransactionID, paymentRef, req.UserEmail, int(s.priceCents(req.PostcardSize))); err != nil {
		return nil, err
	}
	if err := s.ConfirmPayment(ctx, models.PaymentConfirmed{
		TransactionID:    resp.TransactionID,
		PaymentReference: paymentRef,
		CustomerEmail:    req.UserEmail,
	}); err != nil {
		return nil, err
	}
	if _, err := s.SubmitToPrint(ctx, resp.TransactionID); err != nil {
		return nil, err
	}

	resp.Status = string(models.StatusSubmittedToPrint)
	return resp, nil
}

// CreatePaymentSession generates the postcard, then opens a hosted checkout
// session for it.
func (s *OrderService) CreatePaymentSession(ctx context.Context, req *models.CreatePaymentSessionRequest) (*models.PaymentSessionResponse, error) {
	resp, err := s.GeneratePostcard(ctx, &req.PostcardRequest)
	if err != nil {
		return nil, err
	}
	order, err := s.DB.GetOrderByTransactionID(ctx, resp.TransactionID)
	if err != nil || order == nil {
		return nil, errs.Transient(err, "reload order %s", resp.TransactionID)
	}

	sessionID, checkoutURL, err := s.Payments.CreateCheckoutSession(ctx, order, req.SuccessURL, req.CancelURL)
	if err != nil {
		return nil, err
	}
	if err := s.DB.UpdatePaymentDetails(ctx, order.TransactionID, sessionID, ""); err != nil {
		s.log.Warn("DATABASE", fmt.Sprintf("session ref for %s not stored: %v", order.TransactionID, err))
	}

	return &models.PaymentSessionResponse{
		Success:       true,
		SessionID:     sessionID,
		CheckoutURL:   checkoutURL,
		TransactionID: order.TransactionID,
	}, nil
}

// CreatePaymentIntent opens an in-app payment-sheet intent for an existing
// order, applying a promo discount server-side first.
func (s *OrderService) CreatePaymentIntent(ctx context.Context, req *models.CreatePaymentIntentRequest) (*models.PaymentIntentResponse, error) {
	order, err := s.DB.GetOrderByTransactionID(ctx, req.TransactionID)
	if err != nil {
		return nil, errs.Transient(err, "load order %s", req.TransactionID)
	}
	if order == nil {
		return nil, errs.NotFound("unknown transaction %s", req.TransactionID)
	}
	if order.Status != models.StatusReadyForPayment && order.Status != models.StatusPendingPayment {
		return nil, errs.InvalidState("transaction %s is %s, not awaiting payment", req.TransactionID, order.Status)
	}

	discount := 0
	if req.PromoCode != "" {
		validation, err := s.Coupons.Validate(ctx, req.PromoCode)
		if err != nil {
			return nil, err
		}
		if !validation.Valid {
			return nil, errs.Validation("%s", validation.Message)
		}
		discount = validation.DiscountPercent
	}

	if order.CustomerEmail == "" && req.UserEmail != "" {
		order.CustomerEmail = req.UserEmail
	}

	clientSecret, intentID, amount, err := s.Payments.CreatePaymentIntent(ctx, order, discount)
	if err != nil {
		return nil, err
	}
	if err := s.DB.UpdatePaymentDetails(ctx, order.TransactionID, intentID, req.UserEmail); err != nil {
		s.log.Warn("DATABASE", fmt.Sprintf("intent ref for %s not stored: %v", order.TransactionID, err))
	}

	return &models.PaymentIntentResponse{
		Success:         true,
		ClientSecret:    clientSecret,
		PaymentIntentID: intentID,
		AmountCents:     amount,
	}, nil
}

// TransactionStatus returns the stored order for the polling endpoint. When
// the store is unreachable the Redis status mirror still answers with the
// last known status so client polling keeps working through a DB blip.
func (s *OrderService) TransactionStatus(ctx context.Context, transactionID string) (*models.Order, error) {
	order, err := s.DB.GetOrderByTransactionID(ctx, transactionID)
	if err != nil {
		if status := s.Cache.GetStatus(ctx, transactionID); status != "" {
			s.log.LogDegraded("ORDER", "serving cached status for "+transactionID+" during store outage")
			return &models.Order{TransactionID: transactionID, Status: models.OrderStatus(status)}, nil
		}
		return nil, errs.Transient(err, "load order %s", transactionID)
	}
	if order == nil {
		return nil, errs.NotFound("unknown transaction %s", transactionID)
	}
	return order, nil
}

// ResumePendingPrints re-drives orders that confirmed payment but never
// reached the vendor, as happens when the process dies between the two
// transitions. Runs once at startup; each submission is replay-safe.
func (s *OrderService) ResumePendingPrints(ctx context.Context) {
	orders, err := s.DB.OrdersByStatus(ctx, models.StatusPaymentConfirmed)
	if err != nil {
		s.log.Error("ORDER", fmt.Sprintf("pending print sweep failed: %v", err))
		return
	}
	for i := range orders {
		txn := orders[i].TransactionID
		if _, err := s.SubmitToPrint(ctx, txn); err != nil {
			s.log.Warn("ORDER", fmt.Sprintf("resumed print for %s failed: %v", txn, err))
		}
	}
}

func (s *OrderService) priceCents(size models.SizeClass) int64 {
	if size == models.SizeXL {
		return s.cfg.Pricing.XLCents
	}
	return s.cfg.Pricing.RegularCents
}

func (s *OrderService) publish(ctx context.Context, eventType string, order *models.Order) {
	if s.Events == nil {
		return
	}
	if err := s.Events.PublishOrderEvent(ctx, eventType, order); err != nil {
		s.log.Warn("KAFKA", fmt.Sprintf("publish %s for %s failed: %v", eventType, order.TransactionID, err))
	}
}
