package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

/*
LEARNING: CLOSED SUM TYPES IN GO

A drawing element is one of a fixed set of variants. Go has no union types, so
the variants share an interface with an unexported marker method: only types in
this package can satisfy Element, and every type switch over it lists the full
set. The "type" field on the wire is the discriminant used to pick the concrete
struct when decoding.

Elements are values. Edits return a new value with its own Points slice, so two
history snapshots never share mutable state.
*/

// Tool identifies a drawing tool. Every tool except ToolSelect produces an element.
type Tool string

const (
	ToolPen       Tool = "pen"
	ToolEraser    Tool = "eraser"
	ToolRectangle Tool = "rectangle"
	ToolCircle    Tool = "circle"
	ToolLine      Tool = "line"
	ToolArrow     Tool = "arrow"
	ToolText      Tool = "text"
	ToolSelect    Tool = "select"
)

// ErrUnknownElementType is returned when decoding an element with an unrecognised discriminant.
var ErrUnknownElementType = errors.New("unknown element type")

// Point is a canvas coordinate. Also used for cursor positions.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Rect is an axis-aligned bounding box.
type Rect struct {
	MinX float64
	MinY float64
	MaxX float64
	MaxY float64
}

func (r Rect) Width() float64  { return r.MaxX - r.MinX }
func (r Rect) Height() float64 { return r.MaxY - r.MinY }

// Union returns the smallest rect containing both.
func (r Rect) Union(o Rect) Rect {
	return Rect{
		MinX: math.Min(r.MinX, o.MinX),
		MinY: math.Min(r.MinY, o.MinY),
		MaxX: math.Max(r.MaxX, o.MaxX),
		MaxY: math.Max(r.MaxY, o.MaxY),
	}
}

// Element is implemented by Stroke, Rectangle, Circle, Line and Text.
type Element interface {
	ElementID() string
	Kind() Tool
	// Common returns the shared fields with a private copy of Points.
	Common() Base
	Bounds() Rect
	isElement()
}

// Base holds the fields every variant carries. Points[0] is the anchor for shapes.
type Base struct {
	ID          string  `json:"id"`
	Type        Tool    `json:"type"`
	Color       string  `json:"color"`
	StrokeWidth float64 `json:"strokeWidth"`
	Points      []Point `json:"points"`
}

func (b Base) ElementID() string { return b.ID }
func (b Base) Kind() Tool        { return b.Type }

func (b Base) Common() Base {
	b.Points = clonePoints(b.Points)
	return b
}

// Anchor returns the first point, or the origin for an element with no points.
func (b Base) Anchor() Point {
	if len(b.Points) == 0 {
		return Point{}
	}
	return b.Points[0]
}

func (Base) isElement() {}

// Stroke is a freehand trail drawn with the pen or eraser.
type Stroke struct {
	Base
}

// Rectangle is anchored at Points[0]; Width and Height may be negative when dragged up or left.
type Rectangle struct {
	Base
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Circle is centred at Points[0].
type Circle struct {
	Base
	Radius float64 `json:"radius"`
}

// Line runs from Points[0] to (EndX, EndY). Arrows use the same layout.
type Line struct {
	Base
	EndX float64 `json:"endX"`
	EndY float64 `json:"endY"`
}

// Text is drawn with its baseline starting at Points[0].
type Text struct {
	Base
	Text     string  `json:"text"`
	FontSize float64 `json:"fontSize"`
}

func (s Stroke) Bounds() Rect {
	if len(s.Points) == 0 {
		return Rect{}
	}
	r := Rect{MinX: s.Points[0].X, MinY: s.Points[0].Y, MaxX: s.Points[0].X, MaxY: s.Points[0].Y}
	for _, p := range s.Points[1:] {
		r = r.Union(Rect{MinX: p.X, MinY: p.Y, MaxX: p.X, MaxY: p.Y})
	}
	pad := s.StrokeWidth / 2
	return Rect{MinX: r.MinX - pad, MinY: r.MinY - pad, MaxX: r.MaxX + pad, MaxY: r.MaxY + pad}
}

func (r Rectangle) Bounds() Rect {
	a := r.Anchor()
	return Rect{
		MinX: math.Min(a.X, a.X+r.Width),
		MinY: math.Min(a.Y, a.Y+r.Height),
		MaxX: math.Max(a.X, a.X+r.Width),
		MaxY: math.Max(a.Y, a.Y+r.Height),
	}
}

func (c Circle) Bounds() Rect {
	a := c.Anchor()
	return Rect{MinX: a.X - c.Radius, MinY: a.Y - c.Radius, MaxX: a.X + c.Radius, MaxY: a.Y + c.Radius}
}

func (l Line) Bounds() Rect {
	a := l.Anchor()
	return Rect{
		MinX: math.Min(a.X, l.EndX),
		MinY: math.Min(a.Y, l.EndY),
		MaxX: math.Max(a.X, l.EndX),
		MaxY: math.Max(a.Y, l.EndY),
	}
}

// Bounds approximates the text box from the font size; glyph metrics are a renderer concern.
func (t Text) Bounds() Rect {
	a := t.Anchor()
	width := float64(len([]rune(t.Text))) * t.FontSize * 0.6
	return Rect{MinX: a.X, MinY: a.Y - t.FontSize, MaxX: a.X + width, MaxY: a.Y}
}

// UnmarshalElement decodes one element, choosing the variant from its "type" field.
func UnmarshalElement(data []byte) (Element, error) {
	var head struct {
		Type Tool `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("failed to decode element: %w", err)
	}

	switch head.Type {
	case ToolPen, ToolEraser:
		var s Stroke
		return decodeVariant(data, &s)
	case ToolRectangle:
		var r Rectangle
		return decodeVariant(data, &r)
	case ToolCircle:
		var c Circle
		return decodeVariant(data, &c)
	case ToolLine, ToolArrow:
		var l Line
		return decodeVariant(data, &l)
	case ToolText:
		var t Text
		return decodeVariant(data, &t)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownElementType, head.Type)
	}
}

func decodeVariant[T Element](data []byte, dst *T) (Element, error) {
	if err := json.Unmarshal(data, dst); err != nil {
		return nil, fmt.Errorf("failed to decode element: %w", err)
	}
	return *dst, nil
}

// Elements is an ordered element list. Order is insertion order and paint order.
type Elements []Element

// MarshalJSON encodes a nil list as [] so receivers always see an array.
func (e Elements) MarshalJSON() ([]byte, error) {
	if e == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]Element(e))
}

func (e *Elements) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("failed to decode element list: %w", err)
	}

	out := make(Elements, 0, len(raw))
	for i, item := range raw {
		el, err := UnmarshalElement(item)
		if err != nil {
			return fmt.Errorf("element %d: %w", i, err)
		}
		out = append(out, el)
	}

	*e = out
	return nil
}

// Clone returns a new list whose elements own their point slices.
func (e Elements) Clone() Elements {
	if e == nil {
		return Elements{}
	}
	out := make(Elements, len(e))
	for i, el := range e {
		out[i] = CloneElement(el)
	}
	return out
}

// IDs returns element identifiers in paint order.
func (e Elements) IDs() []string {
	ids := make([]string, len(e))
	for i, el := range e {
		ids[i] = el.ElementID()
	}
	return ids
}

// Bounds returns the union of all element bounds. ok is false for an empty list.
func (e Elements) Bounds() (r Rect, ok bool) {
	for i, el := range e {
		if i == 0 {
			r = el.Bounds()
			continue
		}
		r = r.Union(el.Bounds())
	}
	return r, len(e) > 0
}

// Validate enforces the element list invariants: non-empty unique ids and
// variant fields consistent with the discriminant.
func (e Elements) Validate() error {
	seen := make(map[string]struct{}, len(e))
	for i, el := range e {
		if el == nil {
			return fmt.Errorf("element %d is null", i)
		}
		id := el.ElementID()
		if id == "" {
			return fmt.Errorf("element %d has no id", i)
		}
		if _, dup := seen[id]; dup {
			return fmt.Errorf("duplicate element id %q", id)
		}
		seen[id] = struct{}{}

		if err := validateElement(el); err != nil {
			return fmt.Errorf("element %q: %w", id, err)
		}
	}
	return nil
}

func validateElement(el Element) error {
	base := el.Common()
	if base.StrokeWidth < 0 {
		return errors.New("negative stroke width")
	}

	switch v := el.(type) {
	case Stroke:
		if v.Type != ToolPen && v.Type != ToolEraser {
			return fmt.Errorf("stroke with type %q", v.Type)
		}
		if len(v.Points) == 0 {
			return errors.New("stroke has no points")
		}
	case Rectangle:
		if v.Type != ToolRectangle {
			return fmt.Errorf("rectangle with type %q", v.Type)
		}
		if len(v.Points) == 0 {
			return errors.New("rectangle has no anchor")
		}
	case Circle:
		if v.Type != ToolCircle {
			return fmt.Errorf("circle with type %q", v.Type)
		}
		if len(v.Points) == 0 {
			return errors.New("circle has no center")
		}
		if v.Radius < 0 {
			return errors.New("negative radius")
		}
	case Line:
		if v.Type != ToolLine && v.Type != ToolArrow {
			return fmt.Errorf("line with type %q", v.Type)
		}
		if len(v.Points) == 0 {
			return errors.New("line has no start point")
		}
	case Text:
		if v.Type != ToolText {
			return fmt.Errorf("text with type %q", v.Type)
		}
		if len(v.Points) == 0 {
			return errors.New("text has no anchor")
		}
		if v.FontSize <= 0 {
			return errors.New("font size must be positive")
		}
	default:
		return fmt.Errorf("%w: %T", ErrUnknownElementType, el)
	}
	return nil
}

// ElementValue wraps a single optional element for JSON fields.
type ElementValue struct {
	Value Element
}

// Current wraps el for an optional message field; nil stays nil.
func Current(el Element) *ElementValue {
	if el == nil {
		return nil
	}
	return &ElementValue{Value: el}
}

// Unwrap returns the wrapped element, nil-safe.
func (v *ElementValue) Unwrap() Element {
	if v == nil {
		return nil
	}
	return v.Value
}

func (v ElementValue) MarshalJSON() ([]byte, error) {
	if v.Value == nil {
		return []byte("null"), nil
	}
	return json.Marshal(v.Value)
}

func (v *ElementValue) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		v.Value = nil
		return nil
	}
	el, err := UnmarshalElement(data)
	if err != nil {
		return err
	}
	v.Value = el
	return nil
}

// CloneElement returns a copy of el that shares no slices with it.
func CloneElement(el Element) Element {
	switch v := el.(type) {
	case Stroke:
		v.Base = v.Common()
		return v
	case Rectangle:
		v.Base = v.Common()
		return v
	case Circle:
		v.Base = v.Common()
		return v
	case Line:
		v.Base = v.Common()
		return v
	case Text:
		v.Base = v.Common()
		return v
	default:
		return el
	}
}

func clonePoints(points []Point) []Point {
	if points == nil {
		return []Point{}
	}
	out := make([]Point, len(points))
	copy(out, points)
	return out
}
