// Package export renders a board to PDF.
package export

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"sparkboard/internal/models"

	"github.com/jung-kurt/gofpdf"
)

const (
	pageWidth  = 297.0 // A4 landscape, mm
	pageHeight = 210.0
	margin     = 10.0

	// maxScale caps enlargement of small boards, in mm per canvas pixel.
	maxScale = 0.5

	arrowHeadLength = 15.0 // canvas pixels
	arrowHeadAngle  = math.Pi / 6

	ptPerMM = 72.0 / 25.4
)

// transform maps canvas pixels onto the page.
type transform struct {
	minX, minY float64
	scale      float64
}

func (t transform) x(v float64) float64    { return margin + (v-t.minX)*t.scale }
func (t transform) y(v float64) float64    { return margin + (v-t.minY)*t.scale }
func (t transform) size(v float64) float64 { return v * t.scale }

func fit(elements models.Elements) transform {
	bounds, ok := elements.Bounds()
	if !ok {
		return transform{scale: maxScale}
	}
	w := math.Max(bounds.Width(), 1)
	h := math.Max(bounds.Height(), 1)
	scale := math.Min((pageWidth-2*margin)/w, (pageHeight-2*margin)/h)
	return transform{minX: bounds.MinX, minY: bounds.MinY, scale: math.Min(scale, maxScale)}
}

// WritePDF renders elements in paint order onto one A4 landscape page, scaled
// to fit, and writes the document to w. Eraser strokes are skipped.
func WritePDF(w io.Writer, title string, elements models.Elements) error {
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetTitle(title, true)
	pdf.SetCreator("sparkboard", true)
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPage()
	pdf.SetFont("Helvetica", "", 12)

	tr := fit(elements)
	translate := pdf.UnicodeTranslatorFromDescriptor("")

	for _, el := range elements {
		drawElement(pdf, tr, translate, el)
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("failed to render PDF: %w", err)
	}
	return nil
}

func drawElement(pdf *gofpdf.Fpdf, tr transform, translate func(string) string, el models.Element) {
	base := el.Common()
	r, g, b := parseColor(base.Color)
	pdf.SetDrawColor(r, g, b)
	pdf.SetTextColor(r, g, b)
	pdf.SetLineWidth(math.Max(tr.size(base.StrokeWidth), 0.1))
	pdf.SetLineCapStyle("round")
	pdf.SetLineJoinStyle("round")

	switch v := el.(type) {
	case models.Stroke:
		if v.Type == models.ToolEraser {
			return
		}
		if len(v.Points) == 1 {
			pdf.SetFillColor(r, g, b)
			pdf.Circle(tr.x(v.Points[0].X), tr.y(v.Points[0].Y), math.Max(tr.size(v.StrokeWidth)/2, 0.1), "F")
			return
		}
		for i := 1; i < len(v.Points); i++ {
			pdf.Line(
				tr.x(v.Points[i-1].X), tr.y(v.Points[i-1].Y),
				tr.x(v.Points[i].X), tr.y(v.Points[i].Y),
			)
		}

	case models.Rectangle:
		bounds := v.Bounds()
		pdf.Rect(tr.x(bounds.MinX), tr.y(bounds.MinY), tr.size(bounds.Width()), tr.size(bounds.Height()), "D")

	case models.Circle:
		a := v.Anchor()
		pdf.Circle(tr.x(a.X), tr.y(a.Y), tr.size(v.Radius), "D")

	case models.Line:
		a := v.Anchor()
		pdf.Line(tr.x(a.X), tr.y(a.Y), tr.x(v.EndX), tr.y(v.EndY))
		if v.Type == models.ToolArrow {
			angle := math.Atan2(v.EndY-a.Y, v.EndX-a.X)
			for _, side := range []float64{-1, 1} {
				hx := v.EndX - arrowHeadLength*math.Cos(angle+side*arrowHeadAngle)
				hy := v.EndY - arrowHeadLength*math.Sin(angle+side*arrowHeadAngle)
				pdf.Line(tr.x(v.EndX), tr.y(v.EndY), tr.x(hx), tr.y(hy))
			}
		}

	case models.Text:
		a := v.Anchor()
		pdf.SetFontSize(math.Max(tr.size(v.FontSize)*ptPerMM, 1))
		pdf.Text(tr.x(a.X), tr.y(a.Y), translate(v.Text))
	}
}

// parseColor reads #RRGGBB or #RGB. Anything else is black.
func parseColor(hex string) (int, int, int) {
	hex = strings.TrimPrefix(hex, "#")
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) != 6 {
		return 0, 0, 0
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return 0, 0, 0
	}
	return int(v >> 16 & 0xFF), int(v >> 8 & 0xFF), int(v & 0xFF)
}
