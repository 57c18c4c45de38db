package template

import (
	"fmt"
	"image"
	"strings"

	"postcard-service/internal/models"
	"postcard-service/internal/textflow"

	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"
	qrcode "github.com/skip2/go-qrcode"
)

// EventKind labels a side effect that compositing wants applied. The
// renderer itself never touches storage; the caller applies events after the
// image is safely produced.
type EventKind string

const (
	EventPromoDistributed EventKind = "promo_distributed"
	EventAssetMissing     EventKind = "asset_missing"
)

type Event struct {
	Kind   EventKind
	Detail string
}

// backGeometry holds per-size pixel placement for the back face.
type backGeometry struct {
	marginX         float64
	returnAddrY     float64
	returnLineH     float64
	separatorEndX   float64
	messageStartY   float64 // used when no return address is present
	messageLineH    float64
	messageMaxWidth float64
	messageFontSize float64
	addressFontSize float64
	recipientX      float64
	recipientLineH  float64
	logoWidth       int
	promoBoxW       float64
	promoBoxH       float64
	promoBoxRightIn float64
	promoBoxY       float64
	promoTitleSize  float64
	promoSubSize    float64
	promoCodeSize   float64
	promoLineH      float64
}

var backGeometries = map[models.SizeClass]backGeometry{
	models.SizeXL: {
		marginX:         108,
		returnAddrY:     108,
		returnLineH:     40,
		separatorEndX:   1400,
		messageStartY:   150,
		messageLineH:    50,
		messageMaxWidth: 1400,
		messageFontSize: 32,
		addressFontSize: 28,
		recipientX:      800, // offset from the right edge
		recipientLineH:  46,
		logoWidth:       600,
		promoBoxW:       700,
		promoBoxH:       300,
		promoBoxRightIn: 50,
		promoBoxY:       100,
		promoTitleSize:  36,
		promoSubSize:    28,
		promoCodeSize:   32,
		promoLineH:      40,
	},
	models.SizeRegular: {
		marginX:         108,
		returnAddrY:     108,
		returnLineH:     40,
		separatorEndX:   900,
		messageStartY:   150,
		messageLineH:    50,
		messageMaxWidth: 900,
		messageFontSize: 28,
		addressFontSize: 24,
		recipientX:      680,
		recipientLineH:  46,
		logoWidth:       400,
		promoBoxW:       500,
		promoBoxH:       220,
		promoBoxRightIn: 40,
		promoBoxY:       80,
		promoTitleSize:  28,
		promoSubSize:    22,
		promoCodeSize:   26,
		promoLineH:      32,
	},
}

const (
	maxReturnAddressLines = 3
	maxMessageLines       = 20
	recipientBottomOffset = 360
	qrSize                = 120
)

// RenderBack draws the address side: sender return address, the wrapped
// message, the recipient block with a QR indicia, the brand logo, and a
// promo box when a code is supplied. It returns the rendered image plus the
// side-effect events the caller should apply; nothing is persisted here.
func (e *Engine) RenderBack(order *models.Order, promoCode string) (image.Image, []Event) {
	geo, ok := backGeometries[order.SizeClass]
	if !ok {
		geo = backGeometries[models.SizeRegular]
	}
	w, h := CanvasSize(order.SizeClass)

	dc := gg.NewContext(w, h)
	dc.SetRGB(1, 1, 1)
	dc.Clear()
	dc.SetRGB(0, 0, 0)

	var events []Event

	messageY := geo.messageStartY
	if lines := returnAddressLines(order.ReturnAddressText); len(lines) > 0 {
		dc.SetFontFace(e.assets.FontFace(geo.addressFontSize))
		y := geo.returnAddrY
		for _, line := range lines {
			dc.DrawString(line, geo.marginX, y)
			y += geo.returnLineH
		}

		sepY := y + 20 - geo.returnLineH
		dc.SetRGB255(150, 150, 150)
		dc.SetLineWidth(2)
		dc.DrawLine(geo.marginX, sepY, geo.separatorEndX, sepY)
		dc.Stroke()
		dc.SetRGB(0, 0, 0)

		messageY = sepY + 30 + geo.messageLineH
	}

	e.drawMessage(dc, order.Message, geo, messageY)
	e.drawRecipient(dc, order, geo, float64(w), float64(h))
	e.drawIndicia(dc, order, geo, float64(w), float64(h))

	if logo, ok := e.assets.Logo(); ok {
		scaled := imaging.Resize(logo, geo.logoWidth, 0, imaging.Lanczos)
		dc.DrawImage(scaled, 50, h-scaled.Bounds().Dy()-50)
	} else {
		events = append(events, Event{Kind: EventAssetMissing, Detail: logoFile})
	}

	if promoCode != "" {
		e.drawPromoBox(dc, promoCode, geo, float64(w))
		events = append(events, Event{Kind: EventPromoDistributed, Detail: promoCode})
	}

	return dc.Image(), events
}

func returnAddressLines(text string) []string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		lines = append(lines, line)
		if len(lines) == maxReturnAddressLines {
			break
		}
	}
	return lines
}

func (e *Engine) drawMessage(dc *gg.Context, message string, geo backGeometry, startY float64) {
	dc.SetFontFace(e.assets.FontFace(geo.messageFontSize))
	measure := func(s string) float64 {
		w, _ := dc.MeasureString(s)
		return w
	}

	lines := textflow.Wrap(message, geo.messageMaxWidth-geo.marginX, measure)
	if len(lines) > maxMessageLines {
		lines = lines[:maxMessageLines]
	}

	y := startY
	for _, line := range lines {
		if line != "" {
			dc.DrawString(line, geo.marginX, y)
		}
		y += geo.messageLineH
	}
}

func (e *Engine) drawRecipient(dc *gg.Context, order *models.Order, geo backGeometry, w, h float64) {
	lines := []string{order.RecipientName, order.AddressLine1}
	if strings.TrimSpace(order.AddressLine2) != "" {
		lines = append(lines, order.AddressLine2)
	}
	cityLine := models.Recipient{
		City:    order.City,
		State:   order.State,
		Zipcode: order.PostalCode,
	}.CityStateZip()
	if cityLine != "" {
		lines = append(lines, cityLine)
	}

	dc.SetFontFace(e.assets.FontFace(geo.addressFontSize))
	x := w - geo.recipientX
	y := h - recipientBottomOffset
	for _, line := range lines {
		dc.DrawString(line, x, y)
		y += geo.recipientLineH
	}
}

// drawIndicia places a small QR encoding the transaction ID alongside the
// recipient block so a printed card can be traced back to its order.
func (e *Engine) drawIndicia(dc *gg.Context, order *models.Order, geo backGeometry, w, h float64) {
	q, err := qrcode.New(order.TransactionID, qrcode.Medium)
	if err != nil {
		e.log.LogDegraded("TEMPLATE", fmt.Sprintf("indicia qr for %s: %v", order.TransactionID, err))
		return
	}
	q.DisableBorder = true
	x := int(w-geo.recipientX) - qrSize - 40
	y := int(h - recipientBottomOffset)
	dc.DrawImage(q.Image(qrSize), x, y)
}

func (e *Engine) drawPromoBox(dc *gg.Context, code string, geo backGeometry, w float64) {
	x := w - geo.promoBoxW - geo.promoBoxRightIn
	y := geo.promoBoxY

	dc.SetRGB255(0xf8, 0xf8, 0xf8)
	dc.DrawRoundedRectangle(x, y, geo.promoBoxW, geo.promoBoxH, 15)
	dc.Fill()

	dc.SetRGB255(0xf2, 0x89, 0x14)
	dc.SetLineWidth(6)
	dc.DrawRoundedRectangle(x+3, y+3, geo.promoBoxW-6, geo.promoBoxH-6, 15)
	dc.Stroke()

	dc.SetRGB(0, 0, 0)
	cx := x + geo.promoBoxW/2
	lineY := y + geo.promoLineH*1.5

	draw := func(face float64, bold bool, text string) {
		if bold {
			dc.SetFontFace(e.assets.BoldFace(face))
		} else {
			dc.SetFontFace(e.assets.FontFace(face))
		}
		dc.DrawStringAnchored(text, cx, lineY, 0.5, 0.5)
		lineY += geo.promoLineH
	}

	draw(geo.promoTitleSize, true, "Get XLPostcards App!")
	draw(geo.promoSubSize, false, "Download from App/Play Store")
	draw(geo.promoCodeSize, true, "Code: "+code)
	draw(geo.promoSubSize, false, "First postcard FREE!")
}
