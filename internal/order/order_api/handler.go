package order_api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"postcard-service/internal/coupon"
	"postcard-service/internal/errs"
	"postcard-service/internal/logger"
	"postcard-service/internal/models"
	"postcard-service/internal/order"
	"postcard-service/internal/utils"

	"github.com/go-chi/chi/v5"
)

var timeNow = time.Now

type Handler struct {
	OrderService  *order.OrderService
	CouponService *coupon.Service
	Logger        *logger.Logger
}

func NewHandler(orderService *order.OrderService, couponService *coupon.Service, log *logger.Logger) *Handler {
	return &Handler{
		OrderService:  orderService,
		CouponService: couponService,
		Logger:        log,
	}
}

// Routes mounts every endpoint on a chi router.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/health", h.Health)
	r.Post("/log-app-error", h.LogAppError)

	r.Route("/postcards", func(r chi.Router) {
		r.Post("/generate-complete-postcard", h.GeneratePostcard)
		r.Post("/submit-to-stannp", h.SubmitToStannp)
		r.Post("/process-free-postcard", h.ProcessFreePostcard)
		r.Get("/transaction-status/{transactionId}", h.TransactionStatus)
	})
	r.Route("/payments", func(r chi.Router) {
		r.Post("/create-payment-session", h.CreatePaymentSession)
		r.Post("/create-payment-intent", h.CreatePaymentIntent)
		r.Post("/stripe-webhook", h.StripeWebhook)
	})
	r.Route("/coupons", func(r chi.Router) {
		r.Post("/validate-promo-code", h.ValidatePromoCode)
		r.Post("/create-monthly-coupon", h.CreateMonthlyCoupon)
		r.Get("/coupon-status", h.CouponStatus)
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.Logger.Error("API", fmt.Sprintf("failed to encode response: %v", err))
	}
}

// writeError maps the service error taxonomy onto HTTP statuses.
func (h *Handler) writeError(w http.ResponseWriter, context string, err error) {
	status := http.StatusInternalServerError
	message := "internal error"

	var appErr *errs.Error
	if errors.As(err, &appErr) {
		status = appErr.StatusCode()
		message = appErr.Message
	}

	h.Logger.Error("API", fmt.Sprintf("%s: %v", context, err))
	h.writeJSON(w, status, utils.ErrorResponse(context+" failed", message))
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.writeJSON(w, http.StatusBadRequest, utils.ErrorResponse("invalid request body", err.Error()))
		return false
	}
	return true
}

func (h *Handler) GeneratePostcard(w http.ResponseWriter, r *http.Request) {
	var req models.PostcardRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.Logger.Info("API", fmt.Sprintf("GeneratePostcard: txn=%s size=%s template=%s", req.TransactionID, req.PostcardSize, req.TemplateType))

	resp, err := h.OrderService.GeneratePostcard(r.Context(), &req)
	if err != nil {
		h.writeError(w, "generate postcard", err)
		return
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) SubmitToStannp(w http.ResponseWriter, r *http.Request) {
	var req models.StannpSubmissionRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.Logger.Info("API", "SubmitToStannp: txn="+req.TransactionID)

	vendorID, err := h.OrderService.SubmitToPrint(r.Context(), req.TransactionID)
	if err != nil {
		h.writeError(w, "submit to print", err)
		return
	}
	h.writeJSON(w, http.StatusOK, utils.SuccessResponse("submitted to print", map[string]string{
		"status":        string(models.StatusSubmittedToPrint),
		"vendorOrderId": vendorID,
	}))
}

func (h *Handler) TransactionStatus(w http.ResponseWriter, r *http.Request) {
	transactionID := chi.URLParam(r, "transactionId")

	stored, err := h.OrderService.TransactionStatus(r.Context(), transactionID)
	if err != nil {
		h.writeError(w, "transaction status", err)
		return
	}
	h.writeJSON(w, http.StatusOK, stored)
}

func (h *Handler) ProcessFreePostcard(w http.ResponseWriter, r *http.Request) {
	var req models.FreePostcardRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.Logger.Info("API", fmt.Sprintf("ProcessFreePostcard: code=%s txn=%s", req.PromoCode, req.TransactionID))

	resp, err := h.OrderService.ProcessFreePostcard(r.Context(), &req)
	if err != nil {
		h.writeError(w, "free postcard", err)
		return
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) CreatePaymentSession(w http.ResponseWriter, r *http.Request) {
	var req models.CreatePaymentSessionRequest
	if !h.decode(w, r, &req) {
		return
	}

	resp, err := h.OrderService.CreatePaymentSession(r.Context(), &req)
	if err != nil {
		h.writeError(w, "create payment session", err)
		return
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) CreatePaymentIntent(w http.ResponseWriter, r *http.Request) {
	var req models.CreatePaymentIntentRequest
	if !h.decode(w, r, &req) {
		return
	}

	resp, err := h.OrderService.CreatePaymentIntent(r.Context(), &req)
	if err != nil {
		h.writeError(w, "create payment intent", err)
		return
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) StripeWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, utils.ErrorResponse("webhook", "unreadable payload"))
		return
	}

	if err := h.OrderService.HandleWebhook(r.Context(), payload, r.Header.Get("Stripe-Signature")); err != nil {
		h.writeError(w, "webhook", err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"received": "true"})
}

func (h *Handler) ValidatePromoCode(w http.ResponseWriter, r *http.Request) {
	var req models.PromoCodeValidationRequest
	if !h.decode(w, r, &req) {
		return
	}

	validation, err := h.CouponService.Validate(r.Context(), req.Code)
	if err != nil {
		h.writeError(w, "validate promo code", err)
		return
	}
	h.writeJSON(w, http.StatusOK, validation)
}

func (h *Handler) CreateMonthlyCoupon(w http.ResponseWriter, r *http.Request) {
	code, err := h.CouponService.EnsureMonthlyCoupon(r.Context())
	if err != nil {
		h.writeError(w, "create monthly coupon", err)
		return
	}
	h.writeJSON(w, http.StatusOK, utils.SuccessResponse("monthly coupon ready", map[string]string{"code": code}))
}

func (h *Handler) CouponStatus(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	if code == "" {
		code = coupon.MonthlyCode(timeNow())
	}

	status, err := h.CouponService.CodeStatus(r.Context(), code)
	if err != nil {
		h.writeError(w, "coupon status", err)
		return
	}
	h.writeJSON(w, http.StatusOK, status)
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "postcard-service"})
}

// LogAppError ingests client-side error telemetry. Log only, never fail.
func (h *Handler) LogAppError(w http.ResponseWriter, r *http.Request) {
	var entry models.AppErrorLog
	if !h.decode(w, r, &entry) {
		return
	}
	h.Logger.Error("CLIENT", fmt.Sprintf("[%s] %s (build %v)", entry.Level, entry.Message, entry.BuildInfo))
	h.writeJSON(w, http.StatusOK, map[string]string{"logged": "true"})
}
