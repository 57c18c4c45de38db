package template

import (
	"fmt"
	"image"
	"path/filepath"

	"postcard-service/internal/logger"

	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
)

// Assets resolves decorative files (logo, fonts) from a single configured
// root. A missing asset degrades the render, never fails it.
type Assets struct {
	root string
	log  *logger.Logger
}

func NewAssets(root string, log *logger.Logger) *Assets {
	return &Assets{root: root, log: log}
}

const (
	logoFile    = "logo.png"
	regularFont = "fonts/OpenSans-Regular.ttf"
	boldFont    = "fonts/OpenSans-Bold.ttf"
)

// Logo returns the brand logo, or (nil, false) when the asset is missing.
func (a *Assets) Logo() (image.Image, bool) {
	path := filepath.Join(a.root, logoFile)
	img, err := imaging.Open(path)
	if err != nil {
		a.log.LogDegraded("ASSETS", fmt.Sprintf("logo not available at %s: %v", path, err))
		return nil, false
	}
	return img, true
}

// FontFace loads the regular typeface at the given point size, falling back
// to a builtin bitmap face when the file is missing.
func (a *Assets) FontFace(points float64) font.Face {
	return a.face(regularFont, points)
}

// BoldFace loads the bold typeface at the given point size.
func (a *Assets) BoldFace(points float64) font.Face {
	return a.face(boldFont, points)
}

func (a *Assets) face(rel string, points float64) font.Face {
	path := filepath.Join(a.root, rel)
	face, err := gg.LoadFontFace(path, points)
	if err != nil {
		a.log.LogDegraded("ASSETS", fmt.Sprintf("font not available at %s: %v", path, err))
		return basicfont.Face7x13
	}
	return face
}
