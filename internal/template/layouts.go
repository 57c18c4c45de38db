package template

import "image"

// Cell is one photo slot on the front face. A non-zero Border draws a white
// frame around the photo inside the cell.
type Cell struct {
	Rect   image.Rectangle
	Border int
}

// Layout is a named photo-arrangement algorithm. Cells returns the slots in
// photo order for a canvas of the given dimensions; gaps are internal only,
// never at the canvas edge.
type Layout struct {
	MinPhotos int
	Cells     func(w, h int) []Cell
}

const (
	gapWide   = 20 // layouts with up to five photos
	gapNarrow = 15 // denser grids
)

// DefaultTemplate is the fallback applied for unknown template types.
const DefaultTemplate = "single"

var layouts = map[string]Layout{
	"single": {
		MinPhotos: 1,
		Cells: func(w, h int) []Cell {
			return []Cell{{Rect: image.Rect(0, 0, w, h)}}
		},
	},
	"two_side_by_side": {
		MinPhotos: 2,
		Cells: func(w, h int) []Cell {
			pw := (w - gapWide) / 2
			return []Cell{
				{Rect: image.Rect(0, 0, pw, h)},
				{Rect: image.Rect(pw+gapWide, 0, pw+gapWide+pw, h)},
			}
		},
	},
	"two_vertical": {
		MinPhotos: 2,
		Cells: func(w, h int) []Cell {
			ph := (h - gapWide) / 2
			return []Cell{
				{Rect: image.Rect(0, 0, w, ph)},
				{Rect: image.Rect(0, ph+gapWide, w, ph+gapWide+ph)},
			}
		},
	},
	// One large photo on the left half, two stacked on the right half.
	"three_photos": {
		MinPhotos: 3,
		Cells: func(w, h int) []Cell {
			lw := w/2 - gapWide/2
			rh := (h - gapWide) / 2
			rx := lw + gapWide
			return []Cell{
				{Rect: image.Rect(0, 0, lw, h)},
				{Rect: image.Rect(rx, 0, rx+lw, rh)},
				{Rect: image.Rect(rx, rh+gapWide, rx+lw, rh+gapWide+rh)},
			}
		},
	},
	"three_horizontal": {
		MinPhotos: 3,
		Cells: func(w, h int) []Cell {
			pw := (w - 2*gapNarrow) / 3
			return []Cell{
				{Rect: image.Rect(0, 0, pw, h)},
				{Rect: image.Rect(pw+gapNarrow, 0, pw+gapNarrow+pw, h)},
				{Rect: image.Rect((pw+gapNarrow)*2, 0, (pw+gapNarrow)*2+pw, h)},
			}
		},
	},
	// Three narrow full-width strips stacked vertically.
	"three_bookmarks": {
		MinPhotos: 3,
		Cells: func(w, h int) []Cell {
			ph := (h - 2*gapNarrow) / 3
			return []Cell{
				{Rect: image.Rect(0, 0, w, ph)},
				{Rect: image.Rect(0, ph+gapNarrow, w, ph+gapNarrow+ph)},
				{Rect: image.Rect(0, (ph+gapNarrow)*2, w, (ph+gapNarrow)*2+ph)},
			}
		},
	},
	// One wide photo on top, two below splitting the width.
	"three_sideways": {
		MinPhotos: 3,
		Cells: func(w, h int) []Cell {
			th := int(float64(h) * 0.4)
			bh := h - th - gapNarrow
			bw := (w - gapNarrow) / 2
			return []Cell{
				{Rect: image.Rect(0, 0, w, th)},
				{Rect: image.Rect(0, th+gapNarrow, bw, th+gapNarrow+bh)},
				{Rect: image.Rect(bw+gapNarrow, th+gapNarrow, bw+gapNarrow+bw, th+gapNarrow+bh)},
			}
		},
	},
	"four_quarters": {
		MinPhotos: 4,
		Cells:     quarterCells,
	},
	// Four quarters with a fifth photo overlaid in the center behind a
	// white frame.
	"five_collage": {
		MinPhotos: 5,
		Cells: func(w, h int) []Cell {
			qw := (w - gapWide) / 2
			qh := (h - gapWide) / 2
			cw := int(float64(qw) * 0.7)
			ch := int(float64(qh) * 0.7)
			const border = 8
			cx := (w - cw - 2*border) / 2
			cy := (h - ch - 2*border) / 2
			cells := quarterCells(w, h)
			cells = append(cells, Cell{
				Rect:   image.Rect(cx, cy, cx+cw+2*border, cy+ch+2*border),
				Border: border,
			})
			return cells
		},
	},
	"six_grid": {
		MinPhotos: 6,
		Cells:     gridCells(3, 2),
	},
	// One large photo on the left half, a 2x3 grid on the right half.
	"seven_mosaic": {
		MinPhotos: 7,
		Cells: func(w, h int) []Cell {
			lw := w/2 - gapNarrow/2
			rx := lw + gapNarrow
			cw := (w - rx - gapNarrow) / 2
			ch := (h - 2*gapNarrow) / 3
			cells := []Cell{{Rect: image.Rect(0, 0, lw, h)}}
			for row := 0; row < 3; row++ {
				for col := 0; col < 2; col++ {
					x := rx + col*(cw+gapNarrow)
					y := row * (ch + gapNarrow)
					cells = append(cells, Cell{Rect: image.Rect(x, y, x+cw, y+ch)})
				}
			}
			return cells
		},
	},
	"eight_grid": {
		MinPhotos: 8,
		Cells:     gridCells(4, 2),
	},
	"nine_grid": {
		MinPhotos: 9,
		Cells:     gridCells(3, 3),
	},
}

func quarterCells(w, h int) []Cell {
	qw := (w - gapWide) / 2
	qh := (h - gapWide) / 2
	return []Cell{
		{Rect: image.Rect(0, 0, qw, qh)},
		{Rect: image.Rect(qw+gapWide, 0, qw+gapWide+qw, qh)},
		{Rect: image.Rect(0, qh+gapWide, qw, qh+gapWide+qh)},
		{Rect: image.Rect(qw+gapWide, qh+gapWide, qw+gapWide+qw, qh+gapWide+qh)},
	}
}

func gridCells(cols, rows int) func(w, h int) []Cell {
	return func(w, h int) []Cell {
		cw := (w - (cols-1)*gapNarrow) / cols
		ch := (h - (rows-1)*gapNarrow) / rows
		cells := make([]Cell, 0, cols*rows)
		for row := 0; row < rows; row++ {
			for col := 0; col < cols; col++ {
				x := col * (cw + gapNarrow)
				y := row * (ch + gapNarrow)
				cells = append(cells, Cell{Rect: image.Rect(x, y, x+cw, y+ch)})
			}
		}
		return cells
	}
}

// SupportedTemplates lists the registered template names.
func SupportedTemplates() []string {
	names := make([]string, 0, len(layouts))
	for name := range layouts {
		names = append(names, name)
	}
	return names
}
