package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnmarshalElementPicksVariant(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Element
	}{
		{
			name: "pen",
			raw:  `{"id":"p1","type":"pen","color":"#000","strokeWidth":5,"points":[{"x":1,"y":2},{"x":3,"y":4}]}`,
			want: Stroke{Base: Base{ID: "p1", Type: ToolPen, Color: "#000", StrokeWidth: 5, Points: []Point{{1, 2}, {3, 4}}}},
		},
		{
			name: "eraser",
			raw:  `{"id":"e1","type":"eraser","color":"#fff","strokeWidth":20,"points":[{"x":0,"y":0}]}`,
			want: Stroke{Base: Base{ID: "e1", Type: ToolEraser, Color: "#fff", StrokeWidth: 20, Points: []Point{{0, 0}}}},
		},
		{
			name: "rectangle",
			raw:  `{"id":"r1","type":"rectangle","color":"#f00","strokeWidth":2,"points":[{"x":10,"y":10}],"width":30,"height":-5}`,
			want: Rectangle{Base: Base{ID: "r1", Type: ToolRectangle, Color: "#f00", StrokeWidth: 2, Points: []Point{{10, 10}}}, Width: 30, Height: -5},
		},
		{
			name: "circle",
			raw:  `{"id":"c1","type":"circle","color":"#0f0","strokeWidth":1,"points":[{"x":5,"y":5}],"radius":12.5}`,
			want: Circle{Base: Base{ID: "c1", Type: ToolCircle, Color: "#0f0", StrokeWidth: 1, Points: []Point{{5, 5}}}, Radius: 12.5},
		},
		{
			name: "arrow",
			raw:  `{"id":"a1","type":"arrow","color":"#00f","strokeWidth":3,"points":[{"x":0,"y":0}],"endX":40,"endY":20}`,
			want: Line{Base: Base{ID: "a1", Type: ToolArrow, Color: "#00f", StrokeWidth: 3, Points: []Point{{0, 0}}}, EndX: 40, EndY: 20},
		},
		{
			name: "text",
			raw:  `{"id":"t1","type":"text","color":"#333","strokeWidth":1,"points":[{"x":7,"y":8}],"text":"hello","fontSize":24}`,
			want: Text{Base: Base{ID: "t1", Type: ToolText, Color: "#333", StrokeWidth: 1, Points: []Point{{7, 8}}}, Text: "hello", FontSize: 24},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			el, err := UnmarshalElement([]byte(tt.raw))
			require.NoError(t, err)
			assert.Equal(t, tt.want, el)

			encoded, err := json.Marshal(el)
			require.NoError(t, err)
			assert.JSONEq(t, tt.raw, string(encoded))
		})
	}
}

func TestUnmarshalElementUnknownType(t *testing.T) {
	_, err := UnmarshalElement([]byte(`{"id":"x","type":"hexagon"}`))
	assert.ErrorIs(t, err, ErrUnknownElementType)

	_, err = UnmarshalElement([]byte(`{"id":"x","type":"select"}`))
	assert.ErrorIs(t, err, ErrUnknownElementType)
}

func TestElementsJSON(t *testing.T) {
	var nilList Elements
	encoded, err := json.Marshal(nilList)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(encoded))

	var decoded Elements
	err = json.Unmarshal([]byte(`[{"id":"a","type":"pen","color":"#000","strokeWidth":1,"points":[{"x":0,"y":0}]},{"id":"b","type":"wiggle"}]`), &decoded)
	assert.ErrorIs(t, err, ErrUnknownElementType)
	assert.ErrorContains(t, err, "element 1")
}

func TestElementsValidate(t *testing.T) {
	pen := Stroke{Base: Base{ID: "a", Type: ToolPen, StrokeWidth: 1, Points: []Point{{0, 0}}}}
	rect := Rectangle{Base: Base{ID: "b", Type: ToolRectangle, StrokeWidth: 1, Points: []Point{{0, 0}}}, Width: 4, Height: 4}

	assert.NoError(t, Elements{pen, rect}.Validate())
	assert.NoError(t, Elements{}.Validate())

	assert.ErrorContains(t, Elements{pen, pen}.Validate(), "duplicate element id")

	noID := pen
	noID.ID = ""
	assert.ErrorContains(t, Elements{noID}.Validate(), "no id")

	mislabeled := rect
	mislabeled.Type = ToolCircle
	assert.ErrorContains(t, Elements{mislabeled}.Validate(), "rectangle with type")

	badCircle := Circle{Base: Base{ID: "c", Type: ToolCircle, Points: []Point{{0, 0}}}, Radius: -1}
	assert.ErrorContains(t, Elements{badCircle}.Validate(), "negative radius")

	badText := Text{Base: Base{ID: "t", Type: ToolText, Points: []Point{{0, 0}}}, Text: "x"}
	assert.ErrorContains(t, Elements{badText}.Validate(), "font size")

	assert.ErrorContains(t, Elements{nil}.Validate(), "null")
}

func TestBounds(t *testing.T) {
	rect := Rectangle{Base: Base{Type: ToolRectangle, Points: []Point{{10, 10}}}, Width: -4, Height: 6}
	assert.Equal(t, Rect{MinX: 6, MinY: 10, MaxX: 10, MaxY: 16}, rect.Bounds())

	circle := Circle{Base: Base{Type: ToolCircle, Points: []Point{{0, 0}}}, Radius: 3}
	assert.Equal(t, Rect{MinX: -3, MinY: -3, MaxX: 3, MaxY: 3}, circle.Bounds())

	stroke := Stroke{Base: Base{Type: ToolPen, StrokeWidth: 2, Points: []Point{{0, 0}, {4, -2}}}}
	assert.Equal(t, Rect{MinX: -1, MinY: -3, MaxX: 5, MaxY: 1}, stroke.Bounds())

	all, ok := Elements{rect, circle}.Bounds()
	require.True(t, ok)
	assert.Equal(t, Rect{MinX: -3, MinY: -3, MaxX: 10, MaxY: 16}, all)

	_, ok = Elements{}.Bounds()
	assert.False(t, ok)
}

func TestCloneDoesNotSharePoints(t *testing.T) {
	orig := Elements{Stroke{Base: Base{ID: "a", Type: ToolPen, Points: []Point{{1, 1}}}}}
	cloned := orig.Clone()

	cloned[0].(Stroke).Points[0].X = 99

	assert.Equal(t, 1.0, orig[0].(Stroke).Points[0].X)
}

func TestElementValue(t *testing.T) {
	msg := NewDrawingUpdate(Elements{}, nil)
	encoded, err := json.Marshal(msg)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"drawing_update","elements":[]}`, string(encoded))

	var decoded DrawingUpdateMessage
	require.NoError(t, json.Unmarshal([]byte(`{"type":"drawing_update","elements":[],"currentElement":{"id":"c","type":"circle","color":"#000","strokeWidth":1,"points":[{"x":0,"y":0}],"radius":2}}`), &decoded))
	require.NotNil(t, decoded.InProgress())
	assert.Equal(t, ToolCircle, decoded.InProgress().Kind())

	require.NoError(t, json.Unmarshal([]byte(`{"type":"drawing_update","elements":[],"element":null}`), &decoded))
	assert.Nil(t, decoded.Element.Unwrap())
}
