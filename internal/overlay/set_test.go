package overlay_test

import (
	"errors"
	"testing"

	"gifsmith/internal/faults"
	"gifsmith/internal/geometry"
	"gifsmith/internal/overlay"
)

func TestAddAssignsDefaultsAndID(t *testing.T) {
	set := overlay.NewSet(0)
	item, err := set.Add("Hello")
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if item.ID == "" {
		t.Fatal("expected generated id")
	}
	if item.Position.X != 50 || item.Position.Y != 50 {
		t.Fatalf("expected centered default, got %+v", item.Position)
	}
	if item.Style.FontSize != 24 || item.Style.Opacity != 1 {
		t.Fatalf("unexpected default style %+v", item.Style)
	}
}

func TestAddEnforcesLimit(t *testing.T) {
	set := overlay.NewSet(2)
	for i := 0; i < 2; i++ {
		if _, err := set.Add("x"); err != nil {
			t.Fatalf("Add %d: %v", i, err)
		}
	}
	if _, err := set.Add("overflow"); !errors.Is(err, faults.ErrValidation) {
		t.Fatalf("expected validation error at limit, got %v", err)
	}
}

func TestEveryMutatorValidates(t *testing.T) {
	set := overlay.NewSet(0)
	item, err := set.Add("Hello")
	if err != nil {
		t.Fatalf("Add: %v", err)
	}

	bad := item.Style
	bad.Opacity = 1.5
	if err := set.SetStyle(item.ID, bad); !errors.Is(err, faults.ErrValidation) {
		t.Fatalf("opacity 1.5 accepted: %v", err)
	}

	bad = item.Style
	bad.FontSize = 0
	if err := set.SetStyle(item.ID, bad); !errors.Is(err, faults.ErrValidation) {
		t.Fatalf("font size 0 accepted: %v", err)
	}

	bad = item.Style
	bad.Color = "red"
	if err := set.SetStyle(item.ID, bad); !errors.Is(err, faults.ErrValidation) {
		t.Fatalf("non-hex color accepted: %v", err)
	}

	// The stored overlay is untouched after rejected mutations.
	stored, ok := set.Get(item.ID)
	if !ok {
		t.Fatal("overlay vanished")
	}
	if stored.Style.Opacity != 1 || stored.Style.FontSize != 24 {
		t.Fatalf("rejected mutation leaked into storage: %+v", stored.Style)
	}

	if err := set.Import([]overlay.TextOverlay{{ID: "a", Position: geometry.Position{X: 150, Y: 50}, Style: overlay.DefaultStyle()}}); !errors.Is(err, faults.ErrValidation) {
		t.Fatalf("import accepted x=150: %v", err)
	}
}

func TestImportEnforcesLayerCap(t *testing.T) {
	set := overlay.NewSet(2)
	over := []overlay.TextOverlay{overlay.New("a"), overlay.New("b"), overlay.New("c")}
	if err := set.Import(over); !errors.Is(err, faults.ErrValidation) {
		t.Fatalf("import over the cap accepted: %v", err)
	}
	if set.Len() != 0 {
		t.Fatalf("rejected import left %d overlays", set.Len())
	}
	if err := set.Import(over[:2]); err != nil {
		t.Fatalf("import at the cap: %v", err)
	}
}

func TestSetPositionClampsToSoftBounds(t *testing.T) {
	set := overlay.NewSet(0)
	item, _ := set.Add("Hello")

	if err := set.SetPosition(item.ID, geometry.Position{X: 0, Y: 100}); err != nil {
		t.Fatalf("SetPosition: %v", err)
	}
	got, _ := set.Get(item.ID)
	if got.Position.X != overlay.PositionMin || got.Position.Y != overlay.PositionMax {
		t.Fatalf("expected clamp to [%v,%v], got %+v", overlay.PositionMin, overlay.PositionMax, got.Position)
	}
}

func TestDuplicateDeepCopies(t *testing.T) {
	set := overlay.NewSet(0)
	item, _ := set.Add("Hello")
	if err := set.SetPosition(item.ID, geometry.Position{X: 93, Y: 94}); err != nil {
		t.Fatalf("SetPosition: %v", err)
	}

	copied, err := set.Duplicate(item.ID)
	if err != nil {
		t.Fatalf("Duplicate: %v", err)
	}
	if copied.ID == item.ID {
		t.Fatal("duplicate shares id with source")
	}
	if copied.Position.X != overlay.PositionMax || copied.Position.Y != overlay.PositionMax {
		t.Fatalf("offset not clamped: %+v", copied.Position)
	}

	// Mutating the copy leaves the source alone.
	if err := set.SetText(copied.ID, "changed"); err != nil {
		t.Fatalf("SetText: %v", err)
	}
	source, _ := set.Get(item.ID)
	if source.Text != "Hello" {
		t.Fatalf("duplicate aliases source text: %q", source.Text)
	}
}

func TestDraggingFlagDoesNotTouchGeometry(t *testing.T) {
	set := overlay.NewSet(0)
	item, _ := set.Add("Hello")
	if err := set.SetDragging(item.ID, true); err != nil {
		t.Fatalf("SetDragging: %v", err)
	}
	got, _ := set.Get(item.ID)
	if !got.Dragging {
		t.Fatal("dragging flag not set")
	}
	if got.Position != item.Position || got.Style != item.Style {
		t.Fatal("dragging flag changed geometry or style")
	}
}

func TestClearDropsEverything(t *testing.T) {
	set := overlay.NewSet(0)
	set.Add("a")
	set.Add("b")
	set.Clear()
	if set.Len() != 0 {
		t.Fatalf("expected empty set, got %d", set.Len())
	}
}

func TestHasText(t *testing.T) {
	o := overlay.New("   ")
	if o.HasText() {
		t.Fatal("whitespace-only text should not count as ink")
	}
	o.Text = " hi "
	if !o.HasText() {
		t.Fatal("expected HasText for non-empty trimmed text")
	}
}
