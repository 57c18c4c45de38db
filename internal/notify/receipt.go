package notify

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"postcard-service/internal/errs"
	"postcard-service/internal/models"

	"github.com/signintech/gopdf"
)

// BuildReceiptPDF renders a one-page order receipt for email attachment.
func BuildReceiptPDF(order *models.Order, assetRoot string) ([]byte, error) {
	pdf := gopdf.GoPdf{}
	pdf.Start(gopdf.Config{PageSize: *gopdf.PageSizeA4})
	pdf.AddPage()

	fontPath := filepath.Join(assetRoot, "fonts", "OpenSans-Regular.ttf")
	if err := pdf.AddTTFFont("receipt", fontPath); err != nil {
		return nil, errs.Transient(err, "load receipt font")
	}

	line := func(y float64, size float64, text string) {
		pdf.SetFont("receipt", "", size)
		pdf.SetXY(50, y)
		pdf.Cell(nil, text)
	}

	submitted := "pending"
	if order.PrintSubmittedAt != nil {
		submitted = order.PrintSubmittedAt.Format(time.RFC1123)
	}
	destination := strings.TrimSpace(fmt.Sprintf("%s, %s, %s %s",
		order.AddressLine1, order.City, order.State, order.PostalCode))

	line(60, 22, "XLPostcards Receipt")
	line(110, 12, "Order: "+order.TransactionID)
	line(135, 12, "Recipient: "+order.RecipientName)
	line(160, 12, "Destination: "+destination)
	line(185, 12, "Size: "+string(order.SizeClass))
	line(210, 12, "Submitted to print: "+submitted)
	line(250, 10, "Thank you for sending a little joy through the mail.")

	return pdf.GetBytesPdf(), nil
}
