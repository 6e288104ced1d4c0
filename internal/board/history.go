// Package board keeps a client's local view of the drawing: undo/redo history,
// the live in-progress element, local persistence, and the backup taken
// before joining a session.
package board

import "sparkboard/internal/models"

// History is a linear undo stack of element lists. Committing after an undo
// discards the redo branch.
type History struct {
	entries []models.Elements
	index   int
}

func NewHistory(initial models.Elements) *History {
	h := &History{}
	h.Reset(initial)
	return h
}

// Commit pushes elements as the newest entry.
func (h *History) Commit(elements models.Elements) {
	h.entries = append(h.entries[:h.index+1], elements.Clone())
	h.index = len(h.entries) - 1
}

// Undo steps back one entry and returns it.
func (h *History) Undo() (models.Elements, bool) {
	if !h.CanUndo() {
		return nil, false
	}
	h.index--
	return h.entries[h.index].Clone(), true
}

func (h *History) Redo() (models.Elements, bool) {
	if !h.CanRedo() {
		return nil, false
	}
	h.index++
	return h.entries[h.index].Clone(), true
}

func (h *History) CanUndo() bool { return h.index > 0 }
func (h *History) CanRedo() bool { return h.index < len(h.entries)-1 }

// Reset drops every entry and starts over from elements.
func (h *History) Reset(elements models.Elements) {
	if elements == nil {
		elements = models.Elements{}
	}
	h.entries = []models.Elements{elements.Clone()}
	h.index = 0
}

func (h *History) Current() models.Elements {
	return h.entries[h.index].Clone()
}

func (h *History) Len() int { return len(h.entries) }
