package obs

import (
	"reflect"
	"testing"
)

func TestDirectory_StartsStale(t *testing.T) {
	d := NewDirectory()
	if !d.Stale() {
		t.Error("new directory should be stale")
	}
	if _, ok := d.Current(); ok {
		t.Error("new directory should have no current scene")
	}
	if got := d.Snapshot().Scenes; got == nil || len(got) != 0 {
		t.Errorf("Snapshot().Scenes = %v, want empty non-nil slice", got)
	}
}

func TestDirectory_ReplaceIsWholesale(t *testing.T) {
	d := NewDirectory()
	d.Replace([]string{"Cam1", "Cam2", "Cam3"})
	d.Replace([]string{"Cam3", "Cam1"})

	if got := d.Scenes(); !reflect.DeepEqual(got, []string{"Cam3", "Cam1"}) {
		t.Errorf("Scenes() = %v, want [Cam3 Cam1]", got)
	}
	if d.Contains("Cam2") {
		t.Error("Cam2 should be gone after replace")
	}
	if !d.Contains("Cam1") {
		t.Error("Cam1 should be present")
	}
	if d.Stale() {
		t.Error("directory should not be stale after replace")
	}
}

func TestDirectory_ReplaceCopiesInput(t *testing.T) {
	d := NewDirectory()
	in := []string{"Cam1"}
	d.Replace(in)
	in[0] = "mutated"

	out := d.Scenes()
	out[0] = "mutated too"

	if got := d.Scenes(); got[0] != "Cam1" {
		t.Errorf("directory shares memory with callers: %v", got)
	}
}

func TestDirectory_CurrentLastWriteWins(t *testing.T) {
	d := NewDirectory()

	d.SetCurrent("Cam1") // optimistic
	d.SetCurrent("Cam2") // confirmation event

	if got, ok := d.Current(); !ok || got != "Cam2" {
		t.Errorf("Current() = %q, %v; want Cam2, true", got, ok)
	}
}

func TestDirectory_Invalidate(t *testing.T) {
	d := NewDirectory()
	d.Replace([]string{"Cam1"})
	d.SetCurrent("Cam1")

	d.Invalidate()

	if _, ok := d.Current(); ok {
		t.Error("Invalidate should clear the current scene")
	}
	if !d.Stale() {
		t.Error("Invalidate should mark the listing stale")
	}
	if !d.Contains("Cam1") {
		t.Error("Invalidate should keep the last listing for display")
	}

	d.Replace([]string{"Cam1"})
	if d.Stale() {
		t.Error("Replace should clear the stale flag")
	}
}
