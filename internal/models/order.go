package models

import (
	"strings"
	"time"

	"github.com/uptrace/bun"
)

type OrderStatus string

const (
	StatusPendingPayment   OrderStatus = "pending_payment"
	StatusReadyForPayment  OrderStatus = "ready_for_payment"
	StatusPaymentConfirmed OrderStatus = "payment_confirmed"
	StatusSubmittedToPrint OrderStatus = "submitted_to_print"
	StatusFailed           OrderStatus = "failed"
)

type SizeClass string

const (
	SizeRegular SizeClass = "regular"
	SizeXL      SizeClass = "xl"
)

// Order is one customer's postcard request, tracked through its lifecycle.
// The transaction ID is the only join key across components.
type Order struct {
	bun.BaseModel `bun:"table:orders"`

	TransactionID     string      `bun:"transaction_id,pk" json:"transactionId"`
	Status            OrderStatus `bun:"status" json:"status"`
	RecipientName     string      `bun:"recipient_name" json:"recipientName"`
	AddressLine1      string      `bun:"address_line_1" json:"addressLine1"`
	AddressLine2      string      `bun:"address_line_2" json:"addressLine2,omitempty"`
	City              string      `bun:"city" json:"city"`
	State             string      `bun:"state" json:"state"`
	PostalCode        string      `bun:"postal_code" json:"postalCode"`
	Message           string      `bun:"message" json:"message"`
	ReturnAddressText string      `bun:"return_address_text" json:"returnAddressText,omitempty"`
	SizeClass         SizeClass   `bun:"size_class" json:"postcardSize"`
	TemplateType      string      `bun:"template_type" json:"templateType"`
	FrontImageRefs    []string    `bun:"front_image_refs" json:"frontImageRefs,omitempty"`
	FrontArtifactURL  string      `bun:"front_artifact_url" json:"frontUrl"`
	BackArtifactURL   string      `bun:"back_artifact_url" json:"backUrl"`
	CustomerEmail     string      `bun:"customer_email" json:"userEmail,omitempty"`
	PaymentReference  string      `bun:"payment_reference" json:"paymentReference,omitempty"`
	PrintVendorID     string      `bun:"print_vendor_order_id" json:"vendorOrderId,omitempty"`

	CreatedAt          time.Time  `bun:"created_at" json:"createdAt"`
	PaymentConfirmedAt *time.Time `bun:"payment_confirmed_at,nullzero" json:"paymentConfirmedAt,omitempty"`
	PrintSubmittedAt   *time.Time `bun:"print_submitted_at,nullzero" json:"printSubmittedAt,omitempty"`
}

// Recipient mirrors the client payload shape.
type Recipient struct {
	To           string `json:"to"`
	AddressLine1 string `json:"addressLine1"`
	AddressLine2 string `json:"addressLine2,omitempty"`
	City         string `json:"city,omitempty"`
	State        string `json:"state,omitempty"`
	Zipcode      string `json:"zipcode,omitempty"`
}

// CityStateZip renders the last address line, trimming dangling separators
// when fields are missing.
func (r Recipient) CityStateZip() string {
	line := strings.TrimSpace(r.City + ", " + r.State + " " + r.Zipcode)
	return strings.Trim(line, ", ")
}

func (r Recipient) Validate() []string {
	var missing []string
	if strings.TrimSpace(r.To) == "" {
		missing = append(missing, "to")
	}
	if strings.TrimSpace(r.AddressLine1) == "" {
		missing = append(missing, "addressLine1")
	}
	if strings.TrimSpace(r.City) == "" {
		missing = append(missing, "city")
	}
	if strings.TrimSpace(r.State) == "" {
		missing = append(missing, "state")
	}
	if strings.TrimSpace(r.Zipcode) == "" {
		missing = append(missing, "zipcode")
	}
	return missing
}

// Customer is a best-effort CRM aggregate keyed by email. It is updated
// opportunistically and is never a hard dependency of fulfillment.
type Customer struct {
	bun.BaseModel `bun:"table:customers,alias:customer"`

	ID              int64      `bun:"id,pk,autoincrement" json:"id"`
	Email           string     `bun:"email,unique" json:"email"`
	TotalOrders     int        `bun:"total_orders" json:"totalOrders"`
	TotalSpentCents int        `bun:"total_spent_cents" json:"totalSpentCents"`
	FirstOrderDate  *time.Time `bun:"first_order_date,nullzero" json:"firstOrderDate,omitempty"`
	LastOrderDate   *time.Time `bun:"last_order_date,nullzero" json:"lastOrderDate,omitempty"`
	CreatedAt       time.Time  `bun:"created_at" json:"createdAt"`
}

// OrderEvent is the lifecycle event published to Kafka on transitions.
type OrderEvent struct {
	Type          string    `json:"type"`
	TransactionID string    `json:"transaction_id"`
	Status        string    `json:"status"`
	Timestamp     time.Time `json:"timestamp"`
}
