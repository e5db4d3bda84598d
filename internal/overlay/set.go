package overlay

import (
	"fmt"
	"sync"

	"gifsmith/internal/faults"
	"gifsmith/internal/geometry"
)

// DefaultMaxOverlays caps how many layers one edit session may hold.
const DefaultMaxOverlays = 4

// Set is the ordered collection of overlays for one edit session. Slice
// order is z-order: index 0 paints first (bottom).
type Set struct {
	maxItems int // immutable after NewSet

	mu    sync.Mutex
	items []TextOverlay
}

// NewSet creates an empty session capped at maxItems layers; zero or
// negative means DefaultMaxOverlays.
func NewSet(maxItems int) *Set {
	if maxItems <= 0 {
		maxItems = DefaultMaxOverlays
	}
	return &Set{maxItems: maxItems}
}

// Add appends a new overlay with default styling and returns it.
func (s *Set) Add(text string) (TextOverlay, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.items) >= s.maxItems {
		return TextOverlay{}, faults.Wrap(faults.ErrValidation, "overlay", "add",
			fmt.Sprintf("overlay limit %d reached", s.maxItems), nil)
	}
	item := New(text)
	if res := Validate(item); !res.OK {
		return TextOverlay{}, res.Err()
	}
	s.items = append(s.items, item)
	return item, nil
}

// Import replaces the session contents with externally supplied overlays,
// validating each. Ids are preserved so callers can round-trip sessions.
func (s *Set) Import(overlays []TextOverlay) error {
	if len(overlays) > s.maxItems {
		return faults.Wrap(faults.ErrValidation, "overlay", "import",
			fmt.Sprintf("%d overlays exceed limit %d", len(overlays), s.maxItems), nil)
	}
	imported := make([]TextOverlay, 0, len(overlays))
	seen := make(map[string]struct{}, len(overlays))
	for _, o := range overlays {
		if res := Validate(o); !res.OK {
			return res.Err()
		}
		if _, dup := seen[o.ID]; dup {
			return faults.Wrap(faults.ErrValidation, "overlay", "import",
				fmt.Sprintf("duplicate overlay id %s", o.ID), nil)
		}
		seen[o.ID] = struct{}{}
		o.Dragging = false
		imported = append(imported, o.clone())
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = imported
	return nil
}

// SetText replaces the text of the identified overlay.
func (s *Set) SetText(id, text string) error {
	return s.mutate(id, "set-text", func(o *TextOverlay) {
		o.Text = text
	})
}

// SetStyle replaces the style of the identified overlay.
func (s *Set) SetStyle(id string, style Style) error {
	return s.mutate(id, "set-style", func(o *TextOverlay) {
		o.Style = style
	})
}

// SetPosition moves the identified overlay, clamping into the soft bounds so
// mid-drag updates cannot park text where it would clip.
func (s *Set) SetPosition(id string, pos geometry.Position) error {
	return s.mutate(id, "set-position", func(o *TextOverlay) {
		o.Position = clampPosition(pos)
	})
}

// SetDragging toggles the transient drag flag without touching stored
// geometry or style.
func (s *Set) SetDragging(id string, dragging bool) error {
	return s.mutate(id, "set-dragging", func(o *TextOverlay) {
		o.Dragging = dragging
	})
}

// Duplicate deep-copies an overlay under a fresh id, offset so the copy is
// visible next to its source.
func (s *Set) Duplicate(id string) (TextOverlay, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.items) >= s.maxItems {
		return TextOverlay{}, faults.Wrap(faults.ErrValidation, "overlay", "duplicate",
			fmt.Sprintf("overlay limit %d reached", s.maxItems), nil)
	}
	idx := s.indexLocked(id)
	if idx < 0 {
		return TextOverlay{}, notFound("duplicate", id)
	}
	copied := s.items[idx].clone()
	copied.ID = New("").ID
	copied.Dragging = false
	copied.Position = clampPosition(geometry.Position{
		X: copied.Position.X + DuplicateOffset,
		Y: copied.Position.Y + DuplicateOffset,
	})
	if res := Validate(copied); !res.OK {
		return TextOverlay{}, res.Err()
	}
	s.items = append(s.items, copied)
	return copied, nil
}

// Remove deletes the identified overlay.
func (s *Set) Remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.indexLocked(id)
	if idx < 0 {
		return notFound("remove", id)
	}
	s.items = append(s.items[:idx], s.items[idx+1:]...)
	return nil
}

// Clear drops every overlay. Called when a new source media starts a fresh
// edit session.
func (s *Set) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = nil
}

// Get returns the identified overlay.
func (s *Set) Get(id string) (TextOverlay, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.indexLocked(id)
	if idx < 0 {
		return TextOverlay{}, false
	}
	return s.items[idx].clone(), true
}

// List returns a copy of the overlays in z-order.
func (s *Set) List() []TextOverlay {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]TextOverlay, len(s.items))
	for i, o := range s.items {
		out[i] = o.clone()
	}
	return out
}

// Len returns the overlay count.
func (s *Set) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

func (s *Set) mutate(id, op string, apply func(*TextOverlay)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.indexLocked(id)
	if idx < 0 {
		return notFound(op, id)
	}
	candidate := s.items[idx].clone()
	apply(&candidate)
	if res := Validate(candidate); !res.OK {
		return res.Err()
	}
	s.items[idx] = candidate
	return nil
}

func (s *Set) indexLocked(id string) int {
	for i := range s.items {
		if s.items[i].ID == id {
			return i
		}
	}
	return -1
}

func clampPosition(pos geometry.Position) geometry.Position {
	return geometry.Position{
		X: geometry.Clamp(pos.X, PositionMin, PositionMax),
		Y: geometry.Clamp(pos.Y, PositionMin, PositionMax),
	}
}

func notFound(op, id string) error {
	return faults.Wrap(faults.ErrValidation, "overlay", op, fmt.Sprintf("overlay %s not found", id), nil)
}
