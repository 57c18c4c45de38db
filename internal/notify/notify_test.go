package notify

import (
	"testing"

	"postcard-service/internal/config"
	"postcard-service/internal/logger"
	"postcard-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gomail "gopkg.in/gomail.v2"
)

type capturingSender struct {
	sent []*gomail.Message
	err  error
}

func (c *capturingSender) DialAndSend(m ...*gomail.Message) error {
	if c.err != nil {
		return c.err
	}
	c.sent = append(c.sent, m...)
	return nil
}

func testDispatcher(t *testing.T) (*EmailDispatcher, *capturingSender) {
	t.Helper()
	log := logger.NewLogger()
	t.Cleanup(log.Close)

	cap := &capturingSender{}
	d := NewEmailDispatcher(config.EmailConfig{
		FromAddress:  "XLPostcards <notifications@xlpostcards.test>",
		AdminAddress: "ops@xlpostcards.test",
	}, t.TempDir(), log)
	d.send = cap
	return d, cap
}

func notifyOrder() *models.Order {
	return &models.Order{
		TransactionID:    "txn_1700000000_000000021",
		RecipientName:    "Katherine Johnson",
		AddressLine1:     "1 Orbit Lane",
		City:             "Hampton",
		State:            "VA",
		PostalCode:       "23666",
		SizeClass:        models.SizeRegular,
		CustomerEmail:    "sender@example.com",
		PaymentReference: "pi_test_123",
	}
}

func TestOrderSuccessSendsToCustomer(t *testing.T) {
	d, cap := testDispatcher(t)

	d.OrderSuccess(notifyOrder(), "")

	require.Len(t, cap.sent, 1)
	assert.Equal(t, []string{"sender@example.com"}, cap.sent[0].GetHeader("To"))
}

func TestOrderSuccessSkipsWithoutEmail(t *testing.T) {
	d, cap := testDispatcher(t)

	order := notifyOrder()
	order.CustomerEmail = ""
	d.OrderSuccess(order, "")

	assert.Empty(t, cap.sent)
}

func TestAdminRefundGoesToAdminAddress(t *testing.T) {
	d, cap := testDispatcher(t)

	d.AdminRefundNeeded(notifyOrder(), "print vendor rejected payload")

	require.Len(t, cap.sent, 1)
	assert.Equal(t, []string{"ops@xlpostcards.test"}, cap.sent[0].GetHeader("To"))
}

func TestSendFailureIsSwallowed(t *testing.T) {
	d, cap := testDispatcher(t)
	cap.err = assert.AnError

	// Must not panic or propagate anything.
	d.OrderSuccess(notifyOrder(), "")
	d.CustomerCredit(notifyOrder(), "vendor down")
	d.AdminRefundNeeded(notifyOrder(), "vendor down")
	assert.Empty(t, cap.sent)
}
