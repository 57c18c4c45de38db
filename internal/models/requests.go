package models

// PostcardRequest is the client payload for complete postcard generation.
// Field names track the mobile client's JSON shape.
type PostcardRequest struct {
	Message           string    `json:"message"`
	RecipientInfo     Recipient `json:"recipientInfo"`
	PostcardSize      SizeClass `json:"postcardSize"`
	ReturnAddressText string    `json:"returnAddressText,omitempty"`
	TransactionID     string    `json:"transactionId,omitempty"`
	FrontImageURI     string    `json:"frontImageUri,omitempty"` // legacy single-image field
	FrontImageURIs    []string  `json:"frontImageUris,omitempty"`
	TemplateType      string    `json:"templateType,omitempty"`
	UserEmail         string    `json:"userEmail,omitempty"`
}

// ImageRefs merges the legacy single-image field with the multi-image list.
func (r *PostcardRequest) ImageRefs() []string {
	if len(r.FrontImageURIs) > 0 {
		return r.FrontImageURIs
	}
	if r.FrontImageURI != "" {
		return []string{r.FrontImageURI}
	}
	return nil
}

type GenerateResponse struct {
	Success       bool   `json:"success"`
	TransactionID string `json:"transactionId"`
	FrontURL      string `json:"frontUrl"`
	BackURL       string `json:"backUrl"`
	Status        string `json:"status"`
}

type PaymentConfirmedRequest struct {
	TransactionID         string `json:"transactionId"`
	StripePaymentIntentID string `json:"stripePaymentIntentId"`
	UserEmail             string `json:"userEmail,omitempty"`
}

type StannpSubmissionRequest struct {
	TransactionID string `json:"transactionId"`
}

type PromoCodeValidationRequest struct {
	Code          string `json:"code"`
	TransactionID string `json:"transactionId,omitempty"`
}

type FreePostcardRequest struct {
	PostcardRequest
	PromoCode string `json:"promoCode"`
}

type CreatePaymentSessionRequest struct {
	PostcardRequest
	SuccessURL string `json:"successUrl,omitempty"`
	CancelURL  string `json:"cancelUrl,omitempty"`
}

type PaymentSessionResponse struct {
	Success       bool   `json:"success"`
	SessionID     string `json:"sessionId"`
	CheckoutURL   string `json:"checkoutUrl"`
	TransactionID string `json:"transactionId"`
}

type CreatePaymentIntentRequest struct {
	TransactionID string `json:"transactionId"`
	PromoCode     string `json:"promoCode,omitempty"`
	UserEmail     string `json:"userEmail,omitempty"`
}

type PaymentIntentResponse struct {
	Success         bool   `json:"success"`
	ClientSecret    string `json:"clientSecret"`
	PaymentIntentID string `json:"paymentIntentId"`
	AmountCents     int64  `json:"amountCents"`
}

// PaymentConfirmed is the single normalized message both webhook event
// shapes (checkout session vs. payment sheet) resolve to.
type PaymentConfirmed struct {
	TransactionID    string
	PaymentReference string
	CustomerEmail    string
}

type AppErrorLog struct {
	Timestamp  string            `json:"timestamp"`
	Level      string            `json:"level"`
	Message    string            `json:"message"`
	StackTrace string            `json:"stackTrace,omitempty"`
	UserAgent  string            `json:"userAgent,omitempty"`
	BuildInfo  map[string]string `json:"buildInfo"`
}
