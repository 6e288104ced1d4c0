package export

import (
	"bytes"
	"testing"

	"sparkboard/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWritePDF(t *testing.T) {
	base := func(id string, tool models.Tool, pts ...models.Point) models.Base {
		return models.Base{ID: id, Type: tool, Color: "#FF6B6B", StrokeWidth: 3, Points: pts}
	}
	elements := models.Elements{
		models.Stroke{Base: base("pen", models.ToolPen, models.Point{X: 0, Y: 0}, models.Point{X: 50, Y: 80})},
		models.Stroke{Base: base("dot", models.ToolPen, models.Point{X: 5, Y: 5})},
		models.Stroke{Base: base("eraser", models.ToolEraser, models.Point{X: 10, Y: 10}, models.Point{X: 20, Y: 20})},
		models.Rectangle{Base: base("rect", models.ToolRectangle, models.Point{X: 100, Y: 100}), Width: -40, Height: 30},
		models.Circle{Base: base("circle", models.ToolCircle, models.Point{X: 300, Y: 200}), Radius: 25},
		models.Line{Base: base("arrow", models.ToolArrow, models.Point{X: 0, Y: 300}), EndX: 200, EndY: 250},
		models.Text{Base: base("text", models.ToolText, models.Point{X: 40, Y: 400}), Text: "Grüße", FontSize: 24},
	}

	var buf bytes.Buffer
	require.NoError(t, WritePDF(&buf, "Session a1b2c3d4", elements))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
}

func TestWritePDFEmptyBoard(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WritePDF(&buf, "empty", nil))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
}

func TestFitKeepsBoardOnPage(t *testing.T) {
	elements := models.Elements{
		models.Rectangle{Base: models.Base{Type: models.ToolRectangle, Points: []models.Point{{X: -500, Y: -100}}}, Width: 3000, Height: 900},
	}
	tr := fit(elements)

	assert.InDelta(t, margin, tr.x(-500), 1e-9)
	assert.LessOrEqual(t, tr.x(2500), pageWidth-margin+1e-9)
	assert.LessOrEqual(t, tr.y(800), pageHeight-margin+1e-9)
}

func TestParseColor(t *testing.T) {
	r, g, b := parseColor("#4ECDC4")
	assert.Equal(t, []int{0x4E, 0xCD, 0xC4}, []int{r, g, b})

	r, g, b = parseColor("#f0a")
	assert.Equal(t, []int{0xFF, 0x00, 0xAA}, []int{r, g, b})

	r, g, b = parseColor("red")
	assert.Equal(t, []int{0, 0, 0}, []int{r, g, b})
}
