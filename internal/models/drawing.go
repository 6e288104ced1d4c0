package models

import (
	"fmt"
	"math"

	"github.com/google/uuid"
)

// DefaultText is the placeholder a new text element starts with.
const DefaultText = "Click to type"

// NewElement starts a new element for tool at start. Shapes begin degenerate
// (zero size) and grow through UpdateElement while the pointer drags.
func NewElement(tool Tool, start Point, color string, strokeWidth, fontSize float64) (Element, error) {
	base := Base{
		ID:          uuid.NewString(),
		Type:        tool,
		Color:       color,
		StrokeWidth: strokeWidth,
		Points:      []Point{start},
	}

	switch tool {
	case ToolPen, ToolEraser:
		return Stroke{Base: base}, nil
	case ToolRectangle:
		return Rectangle{Base: base}, nil
	case ToolCircle:
		return Circle{Base: base}, nil
	case ToolLine, ToolArrow:
		return Line{Base: base, EndX: start.X, EndY: start.Y}, nil
	case ToolText:
		return Text{Base: base, Text: DefaultText, FontSize: fontSize}, nil
	default:
		return nil, fmt.Errorf("tool %q does not create elements", tool)
	}
}

// UpdateElement returns el advanced to the pointer position current, given the
// drag started at start. The input is never modified.
func UpdateElement(el Element, current, start Point) Element {
	switch v := el.(type) {
	case Stroke:
		points := make([]Point, len(v.Points), len(v.Points)+1)
		copy(points, v.Points)
		v.Points = append(points, current)
		return v
	case Rectangle:
		v.Base = v.Common()
		v.Width = current.X - start.X
		v.Height = current.Y - start.Y
		return v
	case Circle:
		v.Base = v.Common()
		v.Radius = math.Hypot(current.X-start.X, current.Y-start.Y)
		return v
	case Line:
		v.Base = v.Common()
		v.EndX = current.X
		v.EndY = current.Y
		return v
	case Text:
		return CloneElement(v)
	default:
		return el
	}
}

// WithText returns a copy of t carrying s.
func WithText(t Text, s string) Text {
	t.Base = t.Common()
	t.Text = s
	return t
}
