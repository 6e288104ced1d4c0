package collaboration

import (
	"math/rand/v2"

	"sparkboard/internal/config"
)

// Palette is the fixed set of participant colors.
var Palette = []string{
	"#FF6B6B",
	"#4ECDC4",
	"#45B7D1",
	"#96CEB4",
	"#FFEAA7",
	"#DDA0DD",
	"#98D8C8",
}

// ColorPicker chooses the color for the next participant joining room.
type ColorPicker interface {
	Pick(room *Room) string
}

// NewColorPicker returns the picker for a config.ColorAssignment mode.
// Unknown modes pick randomly.
func NewColorPicker(mode string) ColorPicker {
	if mode == config.ColorRoundRobin {
		return roundRobinColors{}
	}
	return randomColors{}
}

type randomColors struct{}

func (randomColors) Pick(*Room) string {
	return Palette[rand.IntN(len(Palette))]
}

// roundRobinColors indexes the palette by join order within the room, so the
// first len(Palette) joiners of a session get distinct colors.
type roundRobinColors struct{}

func (roundRobinColors) Pick(room *Room) string {
	return Palette[room.joins%len(Palette)]
}
