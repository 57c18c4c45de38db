package order

import (
	"context"
	"image"
	"strings"
	"testing"
	"time"

	"postcard-service/internal/config"
	"postcard-service/internal/errs"
	"postcard-service/internal/logger"
	"postcard-service/internal/models"
	"postcard-service/internal/print"
	"postcard-service/internal/template"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockDB struct{ mock.Mock }

func (m *MockDB) GetOrderByTransactionID(ctx context.Context, transactionID string) (*models.Order, error) {
	args := m.Called(ctx, transactionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Order), args.Error(1)
}

func (m *MockDB) UpsertOrder(ctx context.Context, order *models.Order) error {
	return m.Called(ctx, order).Error(0)
}

func (m *MockDB) UpdateStatus(ctx context.Context, transactionID string, status models.OrderStatus) error {
	return m.Called(ctx, transactionID, status).Error(0)
}

func (m *MockDB) UpdatePaymentDetails(ctx context.Context, transactionID, paymentRef, email string) error {
	return m.Called(ctx, transactionID, paymentRef, email).Error(0)
}

func (m *MockDB) UpdateVendorID(ctx context.Context, transactionID, vendorID string) error {
	return m.Called(ctx, transactionID, vendorID).Error(0)
}

func (m *MockDB) UpsertCustomer(ctx context.Context, email string, amountCents int, orderedAt time.Time) error {
	return m.Called(ctx, email, amountCents, orderedAt).Error(0)
}

func (m *MockDB) OrdersByStatus(ctx context.Context, status models.OrderStatus) ([]models.Order, error) {
	args := m.Called(ctx, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Order), args.Error(1)
}

type MockCache struct{ mock.Mock }

func (m *MockCache) ClaimWebhookEvent(ctx context.Context, eventID string) (bool, error) {
	args := m.Called(ctx, eventID)
	return args.Bool(0), args.Error(1)
}

func (m *MockCache) ReleaseWebhookEvent(ctx context.Context, eventID string) error {
	return m.Called(ctx, eventID).Error(0)
}

func (m *MockCache) CacheStatus(ctx context.Context, transactionID, status string) {
	m.Called(ctx, transactionID, status)
}

func (m *MockCache) GetStatus(ctx context.Context, transactionID string) string {
	return m.Called(ctx, transactionID).String(0)
}

type MockRenderer struct{ mock.Mock }

func (m *MockRenderer) RenderFront(ctx context.Context, templateType string, refs []string, size models.SizeClass) (image.Image, error) {
	args := m.Called(ctx, templateType, refs, size)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(image.Image), args.Error(1)
}

func (m *MockRenderer) RenderBack(order *models.Order, promoCode string) (image.Image, []template.Event) {
	args := m.Called(order, promoCode)
	return args.Get(0).(image.Image), args.Get(1).([]template.Event)
}

type MockUploader struct{ mock.Mock }

func (m *MockUploader) UploadImage(ctx context.Context, data []byte, publicID string) (string, error) {
	args := m.Called(ctx, data, publicID)
	return args.String(0), args.Error(1)
}

type MockPrinter struct{ mock.Mock }

func (m *MockPrinter) Submit(ctx context.Context, order *models.Order) (print.Result, error) {
	args := m.Called(ctx, order)
	return args.Get(0).(print.Result), args.Error(1)
}

type MockNotifier struct{ mock.Mock }

func (m *MockNotifier) OrderSuccess(order *models.Order, proofURL string) {
	m.Called(order, proofURL)
}

func (m *MockNotifier) CustomerCredit(order *models.Order, reason string) {
	m.Called(order, reason)
}

func (m *MockNotifier) AdminRefundNeeded(order *models.Order, reason string) {
	m.Called(order, reason)
}

type MockCoupons struct{ mock.Mock }

func (m *MockCoupons) Validate(ctx context.Context, code string) (*models.PromoValidation, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PromoValidation), args.Error(1)
}

func (m *MockCoupons) Redeem(ctx context.Context, code, transactionID, paymentRef, email string, valueCents int) error {
	return m.Called(ctx, code, transactionID, paymentRef, email, valueCents).Error(0)
}

func (m *MockCoupons) RecordDistribution(ctx context.Context, code string, order *models.Order) error {
	return m.Called(ctx, code, order).Error(0)
}

type MockPayments struct{ mock.Mock }

func (m *MockPayments) CreateCheckoutSession(ctx context.Context, order *models.Order, successURL, cancelURL string) (string, string, error) {
	args := m.Called(ctx, order, successURL, cancelURL)
	return args.String(0), args.String(1), args.Error(2)
}

func (m *MockPayments) CreatePaymentIntent(ctx context.Context, order *models.Order, discountPercent int) (string, string, int64, error) {
	args := m.Called(ctx, order, discountPercent)
	return args.String(0), args.String(1), args.Get(2).(int64), args.Error(3)
}

func (m *MockPayments) ParseWebhook(payload []byte, signature string) (*WebhookEvent, error) {
	args := m.Called(payload, signature)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*WebhookEvent), args.Error(1)
}

type fixture struct {
	svc      *OrderService
	db       *MockDB
	cache    *MockCache
	renderer *MockRenderer
	uploader *MockUploader
	printer  *MockPrinter
	notifier *MockNotifier
	coupons  *MockCoupons
	payments *MockPayments
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := logger.NewLogger()
	t.Cleanup(log.Close)

	f := &fixture{
		db:       new(MockDB),
		cache:    new(MockCache),
		renderer: new(MockRenderer),
		uploader: new(MockUploader),
		printer:  new(MockPrinter),
		notifier: new(MockNotifier),
		coupons:  new(MockCoupons),
		payments: new(MockPayments),
	}
	cfg := &config.Config{Pricing: config.PricingConfig{RegularCents: 299, XLCents: 399}}
	f.svc = NewOrderService(f.db, f.cache, nil, f.renderer, f.uploader, f.printer, f.notifier, f.coupons, f.payments, cfg, log)
	return f
}

func validRequest() *models.PostcardRequest {
	return &models.PostcardRequest{
		Message: "Hello from the coast",
		RecipientInfo: models.Recipient{
			To:           "Sal Khan",
			AddressLine1: "1 Academy Way",
			City:         "Mountain View",
			State:        "CA",
			Zipcode:      "94040",
		},
		PostcardSize:   models.SizeXL,
		TemplateType:   "two_side_by_side",
		FrontImageURIs: []string{"https://photos.example.com/a.jpg", "https://photos.example.com/b.jpg"},
		UserEmail:      "sender@example.com",
		TransactionID:  "txn_existing",
	}
}

func blank() image.Image { return image.NewNRGBA(image.Rect(0, 0, 4, 4)) }

func TestGeneratePostcardHappyPath(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.renderer.On("RenderFront", mock.Anything, "two_side_by_side", mock.Anything, models.SizeXL).Return(blank(), nil)
	f.renderer.On("RenderBack", mock.Anything, mock.Anything).Return(blank(), []template.Event{
		{Kind: template.EventPromoDistributed, Detail: "XLWelcomeApr"},
	})
	f.uploader.On("UploadImage", mock.Anything, mock.Anything, "txn_existing-front").Return("https://cdn.example.com/front.jpg", nil)
	f.uploader.On("UploadImage", mock.Anything, mock.Anything, "txn_existing-back").Return("https://cdn.example.com/back.jpg", nil)
	f.db.On("GetOrderByTransactionID", mock.Anything, "txn_existing").Return(nil, nil)
	f.db.On("UpsertOrder", mock.Anything, mock.MatchedBy(func(o *models.Order) bool {
		return o.Status == models.StatusReadyForPayment &&
			o.FrontArtifactURL == "https://cdn.example.com/front.jpg" &&
			o.CustomerEmail == "sender@example.com"
	})).Return(nil)
	f.cache.On("CacheStatus", mock.Anything, "txn_existing", "ready_for_payment").Return()
	f.coupons.On("RecordDistribution", mock.Anything, "XLWelcomeApr", mock.Anything).Return(nil)

	resp, err := f.svc.GeneratePostcard(ctx, validRequest())
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, "txn_existing", resp.TransactionID)
	assert.Equal(t, "ready_for_payment", resp.Status)
	f.db.AssertExpectations(t)
	f.coupons.AssertExpectations(t)
}

func TestGeneratePostcardUploadFailureFallsBackToDataURI(t *testing.T) {
	f := newFixture(t)

	f.renderer.On("RenderFront", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(blank(), nil)
	f.renderer.On("RenderBack", mock.Anything, mock.Anything).Return(blank(), []template.Event(nil))
	f.uploader.On("UploadImage", mock.Anything, mock.Anything, mock.Anything).Return("", assert.AnError)
	f.db.On("GetOrderByTransactionID", mock.Anything, "txn_existing").Return(nil, nil)
	f.db.On("UpsertOrder", mock.Anything, mock.MatchedBy(func(o *models.Order) bool {
		return strings.HasPrefix(o.FrontArtifactURL, "data:image/jpeg;base64,") &&
			strings.HasPrefix(o.BackArtifactURL, "data:image/jpeg;base64,")
	})).Return(nil)
	f.cache.On("CacheStatus", mock.Anything, mock.Anything, mock.Anything).Return()

	resp, err := f.svc.GeneratePostcard(context.Background(), validRequest())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(resp.FrontURL, "data:image/jpeg;base64,"))
}

func TestGeneratePostcardValidation(t *testing.T) {
	f := newFixture(t)

	req := validRequest()
	req.RecipientInfo.Zipcode = ""
	_, err := f.svc.GeneratePostcard(context.Background(), req)
	assert.True(t, errs.IsValidation(err))

	req = validRequest()
	req.FrontImageURIs = nil
	_, err = f.svc.GeneratePostcard(context.Background(), req)
	assert.True(t, errs.IsValidation(err))

	req = validRequest()
	req.Message = "   "
	_, err = f.svc.GeneratePostcard(context.Background(), req)
	assert.True(t, errs.IsValidation(err))
}

func TestGeneratePostcardDoesNotRewindPaidOrder(t *testing.T) {
	f := newFixture(t)
	paid := &models.Order{
		TransactionID:    "txn_existing",
		Status:           models.StatusPaymentConfirmed,
		FrontArtifactURL: "https://cdn.example.com/front.jpg",
		BackArtifactURL:  "https://cdn.example.com/back.jpg",
	}
	f.db.On("GetOrderByTransactionID", mock.Anything, "txn_existing").Return(paid, nil)

	resp, err := f.svc.GeneratePostcard(context.Background(), validRequest())
	require.NoError(t, err)
	assert.Equal(t, "payment_confirmed", resp.Status)
	assert.Equal(t, "https://cdn.example.com/front.jpg", resp.FrontURL)
	f.db.AssertNotCalled(t, "UpsertOrder", mock.Anything, mock.Anything)
	f.renderer.AssertNotCalled(t, "RenderFront", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestGeneratePostcardRejectsFailedOrder(t *testing.T) {
	f := newFixture(t)
	failed := &models.Order{TransactionID: "txn_existing", Status: models.StatusFailed}
	f.db.On("GetOrderByTransactionID", mock.Anything, "txn_existing").Return(failed, nil)

	_, err := f.svc.GeneratePostcard(context.Background(), validRequest())
	assert.True(t, errs.IsInvalidState(err))
	f.db.AssertNotCalled(t, "UpsertOrder", mock.Anything, mock.Anything)
}

func TestConfirmPaymentAdvancesOrder(t *testing.T) {
	f := newFixture(t)
	order := &models.Order{
		TransactionID: "txn_1",
		Status:        models.StatusReadyForPayment,
		SizeClass:     models.SizeRegular,
		CustomerEmail: "sticky@example.com",
	}
	f.db.On("GetOrderByTransactionID", mock.Anything, "txn_1").Return(order, nil)
	f.db.On("UpdatePaymentDetails", mock.Anything, "txn_1", "pi_9", "other@example.com").Return(nil)
	f.db.On("UpdateStatus", mock.Anything, "txn_1", models.StatusPaymentConfirmed).Return(nil)
	f.db.On("UpsertCustomer", mock.Anything, "sticky@example.com", 299, mock.Anything).Return(nil)
	f.cache.On("CacheStatus", mock.Anything, "txn_1", "payment_confirmed").Return()

	err := f.svc.ConfirmPayment(context.Background(), models.PaymentConfirmed{
		TransactionID:    "txn_1",
		PaymentReference: "pi_9",
		CustomerEmail:    "other@example.com",
	})
	require.NoError(t, err)
	f.db.AssertExpectations(t)
}

func TestConfirmPaymentReplayIsNoop(t *testing.T) {
	f := newFixture(t)
	order := &models.Order{TransactionID: "txn_1", Status: models.StatusPaymentConfirmed}
	f.db.On("GetOrderByTransactionID", mock.Anything, "txn_1").Return(order, nil)

	err := f.svc.ConfirmPayment(context.Background(), models.PaymentConfirmed{TransactionID: "txn_1"})
	require.NoError(t, err)
	f.db.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything)
}

func TestConfirmPaymentUnknownTransaction(t *testing.T) {
	f := newFixture(t)
	f.db.On("GetOrderByTransactionID", mock.Anything, "txn_ghost").Return(nil, nil)

	err := f.svc.ConfirmPayment(context.Background(), models.PaymentConfirmed{TransactionID: "txn_ghost"})
	assert.True(t, errs.IsNotFound(err))
}

func TestSubmitToPrintRequiresConfirmedPayment(t *testing.T) {
	f := newFixture(t)
	order := &models.Order{TransactionID: "txn_1", Status: models.StatusReadyForPayment}
	f.db.On("GetOrderByTransactionID", mock.Anything, "txn_1").Return(order, nil)

	_, err := f.svc.SubmitToPrint(context.Background(), "txn_1")
	assert.True(t, errs.IsInvalidState(err))
	f.printer.AssertNotCalled(t, "Submit", mock.Anything, mock.Anything)
}

func TestSubmitToPrintSuccess(t *testing.T) {
	f := newFixture(t)
	order := &models.Order{TransactionID: "txn_1", Status: models.StatusPaymentConfirmed}
	f.db.On("GetOrderByTransactionID", mock.Anything, "txn_1").Return(order, nil)
	f.printer.On("Submit", mock.Anything, order).Return(print.Result{VendorID: "sp_55", ProofURL: "https://vendor/proof.pdf"}, nil)
	f.db.On("UpdateVendorID", mock.Anything, "txn_1", "sp_55").Return(nil)
	f.db.On("UpdateStatus", mock.Anything, "txn_1", models.StatusSubmittedToPrint).Return(nil)
	f.cache.On("CacheStatus", mock.Anything, "txn_1", "submitted_to_print").Return()
	f.notifier.On("OrderSuccess", mock.Anything, "https://vendor/proof.pdf").Return()

	vendorID, err := f.svc.SubmitToPrint(context.Background(), "txn_1")
	require.NoError(t, err)
	assert.Equal(t, "sp_55", vendorID)
	f.notifier.AssertExpectations(t)
}

func TestSubmitToPrintReplayReturnsVendorID(t *testing.T) {
	f := newFixture(t)
	order := &models.Order{TransactionID: "txn_1", Status: models.StatusSubmittedToPrint, PrintVendorID: "sp_55"}
	f.db.On("GetOrderByTransactionID", mock.Anything, "txn_1").Return(order, nil)

	vendorID, err := f.svc.SubmitToPrint(context.Background(), "txn_1")
	require.NoError(t, err)
	assert.Equal(t, "sp_55", vendorID)
	f.printer.AssertNotCalled(t, "Submit", mock.Anything, mock.Anything)
}

func TestSubmitToPrintFatalFailureCompensates(t *testing.T) {
	f := newFixture(t)
	order := &models.Order{
		TransactionID:    "txn_1",
		Status:           models.StatusPaymentConfirmed,
		CustomerEmail:    "payer@example.com",
		PaymentReference: "pi_9",
	}
	f.db.On("GetOrderByTransactionID", mock.Anything, "txn_1").Return(order, nil)
	f.printer.On("Submit", mock.Anything, order).Return(print.Result{}, errs.Fatal(assert.AnError, "vendor rejected"))
	f.db.On("UpdateStatus", mock.Anything, "txn_1", models.StatusFailed).Return(nil)
	f.cache.On("CacheStatus", mock.Anything, "txn_1", "failed").Return()
	f.notifier.On("CustomerCredit", order, mock.Anything).Return()
	f.notifier.On("AdminRefundNeeded", order, mock.Anything).Return()

	_, err := f.svc.SubmitToPrint(context.Background(), "txn_1")
	require.Error(t, err)
	assert.True(t, errs.IsFatal(err))
	f.notifier.AssertExpectations(t)
	f.db.AssertExpectations(t)
}

func TestSubmitToPrintTransientFailureDoesNotFailOrder(t *testing.T) {
	f := newFixture(t)
	order := &models.Order{TransactionID: "txn_1", Status: models.StatusPaymentConfirmed}
	f.db.On("GetOrderByTransactionID", mock.Anything, "txn_1").Return(order, nil)
	f.printer.On("Submit", mock.Anything, order).Return(print.Result{}, errs.Transient(assert.AnError, "vendor busy"))

	_, err := f.svc.SubmitToPrint(context.Background(), "txn_1")
	require.Error(t, err)
	f.db.AssertNotCalled(t, "UpdateStatus", mock.Anything, "txn_1", models.StatusFailed)
	f.notifier.AssertNotCalled(t, "CustomerCredit", mock.Anything, mock.Anything)
}

func TestHandleWebhookDuplicateSkipped(t *testing.T) {
	f := newFixture(t)
	f.payments.On("ParseWebhook", mock.Anything, "sig").Return(&WebhookEvent{
		ID:   "evt_1",
		Type: "checkout.session.completed",
		Confirmed: &models.PaymentConfirmed{
			TransactionID:    "txn_1",
			PaymentReference: "cs_1",
		},
	}, nil)
	f.cache.On("ClaimWebhookEvent", mock.Anything, "evt_1").Return(false, nil)

	err := f.svc.HandleWebhook(context.Background(), []byte("{}"), "sig")
	require.NoError(t, err)
	f.db.AssertNotCalled(t, "GetOrderByTransactionID", mock.Anything, mock.Anything)
}

func TestHandleWebhookIgnoresIrrelevantEvents(t *testing.T) {
	f := newFixture(t)
	f.payments.On("ParseWebhook", mock.Anything, "sig").Return(&WebhookEvent{ID: "evt_2", Type: "charge.updated"}, nil)

	err := f.svc.HandleWebhook(context.Background(), []byte("{}"), "sig")
	require.NoError(t, err)
	f.cache.AssertNotCalled(t, "ClaimWebhookEvent", mock.Anything, mock.Anything)
}

func TestHandleWebhookConfirmsAndSubmits(t *testing.T) {
	f := newFixture(t)
	order := &models.Order{TransactionID: "txn_1", Status: models.StatusReadyForPayment, SizeClass: models.SizeRegular}

	f.payments.On("ParseWebhook", mock.Anything, "sig").Return(&WebhookEvent{
		ID:   "evt_1",
		Type: "payment_intent.succeeded",
		Confirmed: &models.PaymentConfirmed{
			TransactionID:    "txn_1",
			PaymentReference: "pi_1",
		},
	}, nil)
	f.cache.On("ClaimWebhookEvent", mock.Anything, "evt_1").Return(true, nil)
	f.db.On("GetOrderByTransactionID", mock.Anything, "txn_1").Return(order, nil)
	f.db.On("UpdatePaymentDetails", mock.Anything, "txn_1", "pi_1", "").Return(nil)
	f.db.On("UpdateStatus", mock.Anything, "txn_1", models.StatusPaymentConfirmed).Return(nil)
	f.cache.On("CacheStatus", mock.Anything, "txn_1", mock.Anything).Return()
	f.printer.On("Submit", mock.Anything, mock.Anything).Return(print.Result{VendorID: "sp_1"}, nil)
	f.db.On("UpdateVendorID", mock.Anything, "txn_1", "sp_1").Return(nil)
	f.db.On("UpdateStatus", mock.Anything, "txn_1", models.StatusSubmittedToPrint).Return(nil)
	f.notifier.On("OrderSuccess", mock.Anything, mock.Anything).Return()

	err := f.svc.HandleWebhook(context.Background(), []byte("{}"), "sig")
	require.NoError(t, err)
	f.printer.AssertExpectations(t)
}

func TestProcessFreePostcardRequiresFullDiscount(t *testing.T) {
	f := newFixture(t)
	f.coupons.On("Validate", mock.Anything, "HALFOFF").Return(&models.PromoValidation{
		Valid:           true,
		DiscountPercent: 50,
	}, nil)

	req := &models.FreePostcardRequest{PostcardRequest: *validRequest(), PromoCode: "HALFOFF"}
	_, err := f.svc.ProcessFreePostcard(context.Background(), req)
	assert.True(t, errs.IsValidation(err))
}

func TestProcessFreePostcardRedeemsAtOrderValue(t *testing.T) {
	f := newFixture(t)
	req := &models.FreePostcardRequest{PostcardRequest: *validRequest(), PromoCode: "XLWelcomeApr"}

	f.coupons.On("Validate", mock.Anything, "XLWelcomeApr").Return(&models.PromoValidation{
		Valid:           true,
		DiscountPercent: 100,
	}, nil)
	f.renderer.On("RenderFront", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(blank(), nil)
	f.renderer.On("RenderBack", mock.Anything, mock.Anything).Return(blank(), []template.Event(nil))
	f.uploader.On("UploadImage", mock.Anything, mock.Anything, mock.Anything).Return("https://cdn.example.com/face.jpg", nil)
	f.db.On("GetOrderByTransactionID", mock.Anything, "txn_existing").Return(nil, nil).Once()
	f.db.On("UpsertOrder", mock.Anything, mock.Anything).Return(nil)
	f.cache.On("CacheStatus", mock.Anything, "txn_existing", mock.Anything).Return()
	f.coupons.On("Redeem", mock.Anything, "XLWelcomeApr", "txn_existing", "promo:XLWelcomeApr", "sender@example.com", 399).Return(nil)

	ready := &models.Order{
		TransactionID: "txn_existing",
		Status:        models.StatusReadyForPayment,
		SizeClass:     models.SizeXL,
		CustomerEmail: "sender@example.com",
	}
	f.db.On("GetOrderByTransactionID", mock.Anything, "txn_existing").Return(ready, nil).Once()
	f.db.On("UpdatePaymentDetails", mock.Anything, "txn_existing", "promo:XLWelcomeApr", "sender@example.com").Return(nil)
	f.db.On("UpdateStatus", mock.Anything, "txn_existing", models.StatusPaymentConfirmed).Return(nil)
	f.db.On("UpsertCustomer", mock.Anything, "sender@example.com", 399, mock.Anything).Return(nil)

	confirmed := &models.Order{TransactionID: "txn_existing", Status: models.StatusPaymentConfirmed}
	f.db.On("GetOrderByTransactionID", mock.Anything, "txn_existing").Return(confirmed, nil).Once()
	f.printer.On("Submit", mock.Anything, confirmed).Return(print.Result{VendorID: "sp_3"}, nil)
	f.db.On("UpdateVendorID", mock.Anything, "txn_existing", "sp_3").Return(nil)
	f.db.On("UpdateStatus", mock.Anything, "txn_existing", models.StatusSubmittedToPrint).Return(nil)
	f.notifier.On("OrderSuccess", mock.Anything, mock.Anything).Return()

	resp, err := f.svc.ProcessFreePostcard(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "submitted_to_print", resp.Status)
	f.coupons.AssertExpectations(t)
}

func TestTransactionStatusServesCacheDuringStoreOutage(t *testing.T) {
	f := newFixture(t)
	f.db.On("GetOrderByTransactionID", mock.Anything, "txn_1").Return(nil, assert.AnError)
	f.cache.On("GetStatus", mock.Anything, "txn_1").Return("payment_confirmed")

	order, err := f.svc.TransactionStatus(context.Background(), "txn_1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusPaymentConfirmed, order.Status)
}

func TestTransactionStatusStoreOutageWithoutCacheFails(t *testing.T) {
	f := newFixture(t)
	f.db.On("GetOrderByTransactionID", mock.Anything, "txn_1").Return(nil, assert.AnError)
	f.cache.On("GetStatus", mock.Anything, "txn_1").Return("")

	_, err := f.svc.TransactionStatus(context.Background(), "txn_1")
	assert.True(t, errs.IsTransient(err))
}

func TestResumePendingPrintsSubmitsStrandedOrders(t *testing.T) {
	f := newFixture(t)
	stranded := models.Order{TransactionID: "txn_1", Status: models.StatusPaymentConfirmed}
	f.db.On("OrdersByStatus", mock.Anything, models.StatusPaymentConfirmed).Return([]models.Order{stranded}, nil)
	f.db.On("GetOrderByTransactionID", mock.Anything, "txn_1").Return(&stranded, nil)
	f.printer.On("Submit", mock.Anything, mock.Anything).Return(print.Result{VendorID: "sp_7"}, nil)
	f.db.On("UpdateVendorID", mock.Anything, "txn_1", "sp_7").Return(nil)
	f.db.On("UpdateStatus", mock.Anything, "txn_1", models.StatusSubmittedToPrint).Return(nil)
	f.cache.On("CacheStatus", mock.Anything, "txn_1", "submitted_to_print").Return()
	f.notifier.On("OrderSuccess", mock.Anything, mock.Anything).Return()

	f.svc.ResumePendingPrints(context.Background())
	f.printer.AssertExpectations(t)
	f.db.AssertExpectations(t)
}

func TestTransactionStatusUnknown(t *testing.T) {
	f := newFixture(t)
	f.db.On("GetOrderByTransactionID", mock.Anything, "txn_ghost").Return(nil, nil)

	_, err := f.svc.TransactionStatus(context.Background(), "txn_ghost")
	assert.True(t, errs.IsNotFound(err))
}

func TestOrderLifecycleGenerateConfirmSubmit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req := validRequest()
	req.TemplateType = "single"
	req.FrontImageURIs = req.FrontImageURIs[:1]
	req.Message = "Happy Birthday!"

	f.renderer.On("RenderFront", mock.Anything, "single", mock.Anything, models.SizeXL).Return(blank(), nil)
	f.renderer.On("RenderBack", mock.Anything, mock.Anything).Return(blank(), []template.Event(nil))
	f.uploader.On("UploadImage", mock.Anything, mock.Anything, mock.Anything).Return("https://cdn.example.com/face.jpg", nil)
	f.db.On("GetOrderByTransactionID", mock.Anything, "txn_existing").Return(nil, nil).Once()
	f.db.On("UpsertOrder", mock.Anything, mock.Anything).Return(nil)
	f.cache.On("CacheStatus", mock.Anything, "txn_existing", mock.Anything).Return()

	resp, err := f.svc.GeneratePostcard(ctx, req)
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, "ready_for_payment", resp.Status)
	assert.NotEmpty(t, resp.FrontURL)
	assert.NotEmpty(t, resp.BackURL)

	ready := &models.Order{
		TransactionID: "txn_existing",
		Status:        models.StatusReadyForPayment,
		SizeClass:     models.SizeXL,
		CustomerEmail: "sender@example.com",
	}
	f.db.On("GetOrderByTransactionID", mock.Anything, "txn_existing").Return(ready, nil).Once()
	f.db.On("UpdatePaymentDetails", mock.Anything, "txn_existing", "pi_77", "sender@example.com").Return(nil)
	f.db.On("UpdateStatus", mock.Anything, "txn_existing", models.StatusPaymentConfirmed).Return(nil)
	f.db.On("UpsertCustomer", mock.Anything, "sender@example.com", 399, mock.Anything).Return(nil)

	err = f.svc.ConfirmPayment(ctx, models.PaymentConfirmed{
		TransactionID:    "txn_existing",
		PaymentReference: "pi_77",
		CustomerEmail:    "sender@example.com",
	})
	require.NoError(t, err)

	confirmed := &models.Order{
		TransactionID: "txn_existing",
		Status:        models.StatusPaymentConfirmed,
		CustomerEmail: "sender@example.com",
	}
	f.db.On("GetOrderByTransactionID", mock.Anything, "txn_existing").Return(confirmed, nil).Once()
	f.printer.On("Submit", mock.Anything, confirmed).Return(print.Result{VendorID: "sp_900"}, nil)
	f.db.On("UpdateVendorID", mock.Anything, "txn_existing", "sp_900").Return(nil)
	f.db.On("UpdateStatus", mock.Anything, "txn_existing", models.StatusSubmittedToPrint).Return(nil)
	f.notifier.On("OrderSuccess", confirmed, "").Return()

	vendorID, err := f.svc.SubmitToPrint(ctx, "txn_existing")
	require.NoError(t, err)
	assert.Equal(t, "sp_900", vendorID)
	f.notifier.AssertNumberOfCalls(t, "OrderSuccess", 1)
	f.db.AssertExpectations(t)
}
