package obs

import (
	"slices"
	"sync"
	"time"
)

// Directory caches the scenes OBS reported in its most recent listing and
// the current program scene.
//
// The listing is only ever replaced as a whole. The current scene is set
// optimistically when a switch is issued and overwritten by the next
// CurrentProgramSceneChanged event.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
type Directory struct {
	mu         sync.RWMutex
	scenes     []string
	index      map[string]struct{}
	current    string
	hasCurrent bool
	stale      bool
	updatedAt  time.Time
}

// DirectorySnapshot is a point-in-time copy of a Directory.
type DirectorySnapshot struct {
	Scenes    []string  `json:"scenes"`
	Current   string    `json:"current,omitempty"`
	Stale     bool      `json:"stale"`
	UpdatedAt time.Time `json:"updated_at,omitzero"`
}

// NewDirectory returns an empty, stale directory.
func NewDirectory() *Directory {
	return &Directory{
		index: make(map[string]struct{}),
		stale: true,
	}
}

// Replace swaps in a complete scene listing and clears the stale flag.
func (d *Directory) Replace(scenes []string) {
	list := slices.Clone(scenes)
	index := make(map[string]struct{}, len(list))
	for _, s := range list {
		index[s] = struct{}{}
	}

	d.mu.Lock()
	d.scenes = list
	d.index = index
	d.stale = false
	d.updatedAt = time.Now()
	d.mu.Unlock()
}

// SetCurrent records name as the current program scene.
func (d *Directory) SetCurrent(name string) {
	d.mu.Lock()
	d.current = name
	d.hasCurrent = name != ""
	d.mu.Unlock()
}

// Current returns the current program scene, if known.
func (d *Directory) Current() (string, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.current, d.hasCurrent
}

// Contains reports whether name was in the latest listing.
func (d *Directory) Contains(name string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.index[name]
	return ok
}

// Scenes returns a copy of the latest listing in server order.
func (d *Directory) Scenes() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return slices.Clone(d.scenes)
}

// Stale reports whether the listing predates the current session.
func (d *Directory) Stale() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.stale
}

// Invalidate forgets the current scene and marks the listing stale. It is
// called when the connection drops; the listing itself is kept for display
// until the next Replace.
func (d *Directory) Invalidate() {
	d.mu.Lock()
	d.current = ""
	d.hasCurrent = false
	d.stale = true
	d.mu.Unlock()
}

// Snapshot returns a copy of the directory state.
func (d *Directory) Snapshot() DirectorySnapshot {
	d.mu.RLock()
	defer d.mu.RUnlock()
	scenes := make([]string, len(d.scenes))
	copy(scenes, d.scenes)
	return DirectorySnapshot{
		Scenes:    scenes,
		Current:   d.current,
		Stale:     d.stale,
		UpdatedAt: d.updatedAt,
	}
}
