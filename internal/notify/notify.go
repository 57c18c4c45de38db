package notify

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"postcard-service/internal/config"
	"postcard-service/internal/logger"
	"postcard-service/internal/models"

	gomail "gopkg.in/gomail.v2"
)

// Dispatcher fans out post-transition emails. Every send is best effort; a
// notification failure is logged and never propagates into the order flow.
type Dispatcher interface {
	OrderSuccess(order *models.Order, proofURL string)
	CustomerCredit(order *models.Order, reason string)
	AdminRefundNeeded(order *models.Order, reason string)
}

type sender interface {
	DialAndSend(m ...*gomail.Message) error
}

type EmailDispatcher struct {
	cfg       config.EmailConfig
	assetRoot string
	send      sender
	client    *http.Client
	log       *logger.Logger
}

func NewEmailDispatcher(cfg config.EmailConfig, assetRoot string, log *logger.Logger) *EmailDispatcher {
	return &EmailDispatcher{
		cfg:       cfg,
		assetRoot: assetRoot,
		send:      gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword),
		client:    &http.Client{Timeout: 15 * time.Second},
		log:       log,
	}
}

// OrderSuccess thanks the customer and attaches the print proof PDF, or a
// generated receipt when the proof cannot be fetched. Skipped when the order
// carries no email address.
func (d *EmailDispatcher) OrderSuccess(order *models.Order, proofURL string) {
	if order.CustomerEmail == "" {
		return
	}

	m := d.newMessage(order.CustomerEmail, "Your postcard is on its way!")
	m.SetBody("text/html", fmt.Sprintf(
		"<p>Hi!</p><p>Your postcard to <b>%s</b> has been sent to print and will be mailed shortly.</p><p>Order reference: %s</p>",
		order.RecipientName, order.TransactionID))

	if pdf := d.attachmentPDF(order, proofURL); pdf != nil {
		m.Attach("postcard-receipt.pdf", gomail.SetCopyFunc(func(w io.Writer) error {
			_, err := w.Write(pdf)
			return err
		}))
	}

	d.deliver(m, order.TransactionID, "order success")
}

func (d *EmailDispatcher) attachmentPDF(order *models.Order, proofURL string) []byte {
	if proofURL != "" {
		if pdf, err := d.fetchProof(proofURL); err == nil {
			return pdf
		} else {
			d.log.LogDegraded("NOTIFY", fmt.Sprintf("proof fetch for %s failed, using generated receipt: %v", order.TransactionID, err))
		}
	}
	pdf, err := BuildReceiptPDF(order, d.assetRoot)
	if err != nil {
		d.log.LogDegraded("NOTIFY", fmt.Sprintf("receipt for %s skipped: %v", order.TransactionID, err))
		return nil
	}
	return pdf
}

func (d *EmailDispatcher) fetchProof(proofURL string) ([]byte, error) {
	resp, err := d.client.Get(proofURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, 10<<20))
}

// CustomerCredit tells a paying customer their card could not be printed and
// a replacement credit applies.
func (d *EmailDispatcher) CustomerCredit(order *models.Order, reason string) {
	if order.CustomerEmail == "" {
		return
	}

	m := d.newMessage(order.CustomerEmail, "About your postcard order")
	m.SetBody("text/html", fmt.Sprintf(
		"<p>We hit a problem printing your postcard to <b>%s</b> (order %s).</p>"+
			"<p>Your payment has been credited toward your next postcard, no action needed. Sorry for the trouble!</p>",
		order.RecipientName, order.TransactionID))

	d.deliver(m, order.TransactionID, "customer credit ("+reason+")")
}

// AdminRefundNeeded alerts operations that a paid order failed fulfillment
// and needs a manual refund decision.
func (d *EmailDispatcher) AdminRefundNeeded(order *models.Order, reason string) {
	m := d.newMessage(d.cfg.AdminAddress, "ACTION NEEDED: paid order failed fulfillment")
	m.SetBody("text/html", fmt.Sprintf(
		"<p>Order <b>%s</b> failed after payment.</p><ul>"+
			"<li>Customer: %s</li><li>Payment ref: %s</li><li>Reason: %s</li></ul>"+
			"<p>Review and refund or resubmit manually.</p>",
		order.TransactionID, order.CustomerEmail, order.PaymentReference, reason))

	d.deliver(m, order.TransactionID, "admin refund alert")
}

func (d *EmailDispatcher) newMessage(to, subject string) *gomail.Message {
	m := gomail.NewMessage()
	m.SetHeader("From", d.cfg.FromAddress)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	return m
}

func (d *EmailDispatcher) deliver(m *gomail.Message, transactionID, kind string) {
	if err := d.send.DialAndSend(m); err != nil {
		d.log.Error("NOTIFY", fmt.Sprintf("%s email for %s failed: %v", kind, transactionID, err))
		return
	}
	d.log.Info("NOTIFY", fmt.Sprintf("%s email sent for %s", kind, transactionID))
}
