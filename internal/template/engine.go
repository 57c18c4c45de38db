package template

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"

	"postcard-service/internal/errs"
	"postcard-service/internal/logger"
	"postcard-service/internal/models"

	"github.com/disintegration/imaging"
)

// Canvas dimensions in pixels at print resolution.
const (
	RegularWidth  = 1800
	RegularHeight = 1200
	XLWidth       = 2700
	XLHeight      = 1800
)

const jpegQuality = 95

// CanvasSize returns the front/back canvas dimensions for a size class.
func CanvasSize(size models.SizeClass) (w, h int) {
	if size == models.SizeXL {
		return XLWidth, XLHeight
	}
	return RegularWidth, RegularHeight
}

// Engine composites postcard faces. It is safe for concurrent use.
type Engine struct {
	loader *Loader
	assets *Assets
	log    *logger.Logger
}

func NewEngine(loader *Loader, assets *Assets, log *logger.Logger) *Engine {
	return &Engine{loader: loader, assets: assets, log: log}
}

// RenderFront composites the source photos into the named template layout on
// a white canvas. Unknown template names fall back to the single-photo
// layout; too few photos for the requested layout is a validation error.
func (e *Engine) RenderFront(ctx context.Context, templateType string, refs []string, size models.SizeClass) (image.Image, error) {
	layout, ok := layouts[templateType]
	if !ok {
		e.log.Warn("TEMPLATE", "unknown template type '"+templateType+"', using "+DefaultTemplate)
		layout = layouts[DefaultTemplate]
	}
	if len(refs) < layout.MinPhotos {
		return nil, errs.Validation("template %s requires %d photos, got %d", templateType, layout.MinPhotos, len(refs))
	}

	w, h := CanvasSize(size)
	canvas := imaging.New(w, h, color.White)

	for i, cell := range layout.Cells(w, h) {
		photo := e.loader.Load(ctx, refs[i])
		canvas = pasteCell(canvas, photo, cell)
	}
	return canvas, nil
}

// pasteCell fits the photo to the cell interior and pastes it. A bordered
// cell keeps a white frame by shrinking the photo area inward.
func pasteCell(canvas *image.NRGBA, photo image.Image, cell Cell) *image.NRGBA {
	inner := cell.Rect
	if cell.Border > 0 {
		inner = image.Rect(
			cell.Rect.Min.X+cell.Border,
			cell.Rect.Min.Y+cell.Border,
			cell.Rect.Max.X-cell.Border,
			cell.Rect.Max.Y-cell.Border,
		)
		// The frame itself: fill the full cell white before pasting.
		white := imaging.New(cell.Rect.Dx(), cell.Rect.Dy(), color.White)
		canvas = imaging.Paste(canvas, white, cell.Rect.Min)
	}
	fitted := resizeAndCrop(photo, inner.Dx(), inner.Dy())
	return imaging.Paste(canvas, fitted, inner.Min)
}

// resizeAndCrop center-crops the source to the target aspect ratio, then
// resizes to the exact target dimensions.
func resizeAndCrop(src image.Image, targetW, targetH int) image.Image {
	srcW := src.Bounds().Dx()
	srcH := src.Bounds().Dy()
	if srcW == 0 || srcH == 0 || targetW <= 0 || targetH <= 0 {
		return imaging.New(max(targetW, 1), max(targetH, 1), color.White)
	}

	srcRatio := float64(srcW) / float64(srcH)
	targetRatio := float64(targetW) / float64(targetH)

	cropped := src
	if srcRatio > targetRatio {
		// Source is wider: trim the sides.
		cropW := int(float64(srcH) * targetRatio)
		cropped = imaging.CropCenter(src, cropW, srcH)
	} else if srcRatio < targetRatio {
		// Source is taller: trim top and bottom.
		cropH := int(float64(srcW) / targetRatio)
		cropped = imaging.CropCenter(src, srcW, cropH)
	}
	return imaging.Resize(cropped, targetW, targetH, imaging.Lanczos)
}

// EncodeJPEG serializes a rendered face as a print-quality JPEG.
func EncodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, errs.Fatal(err, "encode jpeg")
	}
	return buf.Bytes(), nil
}
