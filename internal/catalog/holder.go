package catalog

import (
	"sync/atomic"

	"studiobook/internal/models"
)

// Holder publishes the current catalog to concurrent readers. Reloads swap the whole snapshot.
type Holder struct {
	current atomic.Pointer[Catalog]
}

func NewHolder(c *Catalog) *Holder {
	h := &Holder{}
	if c != nil {
		h.current.Store(c)
	}
	return h
}

// Load returns the current catalog, or nil before the first Store.
func (h *Holder) Load() *Catalog {
	return h.current.Load()
}

func (h *Holder) Store(c *Catalog) {
	h.current.Store(c)
}

// CalendarID returns the calendar of a studio in the current catalog.
func (h *Holder) CalendarID(studio models.Studio) (string, bool) {
	c := h.Load()
	if c == nil {
		return "", false
	}
	s, ok := c.Studio(studio)
	if !ok || s.CalendarID == "" {
		return "", false
	}
	return s.CalendarID, true
}
