package groups

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
)

// Store owns the scene groups and their hidden sets.
//
// Every committed mutation writes the whole document through the Repository.
// A failed write is logged and leaves the store dirty; the next mutation
// writes the full document again. Mutations never fail because of persistence.
//
// Hidden sets are kept per group name alongside the groups, mirroring the
// persisted document. They are removed with their group and cleaned up by
// Reconcile.
//
// All public methods are thread-safe.
type Store struct {
	mu              sync.RWMutex
	groups          map[string]*group
	hidden          map[string]map[string]struct{}
	defaultInterval float64
	version         uint64

	saveMu       sync.Mutex
	savedVersion uint64
	dirty        bool

	repo   Repository
	logger Logger

	listenersMu sync.RWMutex
	listeners   []func(Change)
}

type group struct {
	scenes   []string
	interval float64
}

// NewStore creates an empty store. Call Load to read the saved document.
// defaultInterval is used for groups whose stored interval is unusable.
func NewStore(repo Repository, defaultInterval float64) *Store {
	if !ValidInterval(defaultInterval) {
		defaultInterval = 30
	}
	return &Store{
		groups:          make(map[string]*group),
		hidden:          make(map[string]map[string]struct{}),
		defaultInterval: defaultInterval,
		repo:            repo,
		logger:          noopLogger{},
	}
}

// SetLogger sets the logger for the store.
func (s *Store) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	s.logger = logger
}

// OnChange registers a listener called after every committed mutation,
// outside the store's locks.
func (s *Store) OnChange(fn func(Change)) {
	s.listenersMu.Lock()
	s.listeners = append(s.listeners, fn)
	s.listenersMu.Unlock()
}

// DefaultInterval returns the interval used when none is given.
func (s *Store) DefaultInterval() float64 {
	return s.defaultInterval
}

// ─── Persistence ───────────────────────────────────────────────────

// Load replaces the in-memory state with the saved document. A missing or
// unreadable document leaves the store empty; the problem is logged, never
// returned.
func (s *Store) Load(ctx context.Context) {
	doc, err := s.repo.Load(ctx)
	switch {
	case errors.Is(err, ErrNoDocument):
		s.logger.Info("no saved scene groups, starting empty")
		doc = NewDocument()
	case err != nil:
		s.logger.Warn("saved scene groups unreadable, starting empty", "error", err)
		doc = NewDocument()
	}

	groups, hidden := s.fromDocument(doc)

	s.mu.Lock()
	s.groups = groups
	s.hidden = hidden
	s.version++
	v := s.version
	s.mu.Unlock()

	// The loaded state matches storage; nothing to write back.
	s.saveMu.Lock()
	s.savedVersion = v
	s.dirty = false
	s.saveMu.Unlock()

	s.logger.Info("scene groups loaded", "groups", len(groups))
	s.notify(Change{Kind: ChangeLoaded})
}

// fromDocument sanitises a document into store state: blank names and
// duplicate scenes are dropped and unusable intervals replaced.
func (s *Store) fromDocument(doc *Document) (map[string]*group, map[string]map[string]struct{}) {
	groups := make(map[string]*group, len(doc.SceneGroups))
	for name, gd := range doc.SceneGroups {
		if strings.TrimSpace(name) == "" {
			s.logger.Warn("skipping group with empty name")
			continue
		}
		interval := gd.Interval
		if !ValidInterval(interval) {
			s.logger.Warn("group has invalid interval, using default",
				"group", name, "interval", gd.Interval, "default", s.defaultInterval)
			interval = s.defaultInterval
		}
		groups[name] = &group{scenes: dedupe(gd.Scenes), interval: interval}
	}

	hidden := make(map[string]map[string]struct{}, len(doc.HiddenScenes))
	for name, scenes := range doc.HiddenScenes {
		set := make(map[string]struct{}, len(scenes))
		for _, sc := range scenes {
			if sc != "" {
				set[sc] = struct{}{}
			}
		}
		if len(set) > 0 {
			hidden[name] = set
		}
	}
	return groups, hidden
}

// Save writes the current state unconditionally.
func (s *Store) Save(ctx context.Context) error {
	s.mu.RLock()
	doc := s.documentLocked()
	v := s.version
	s.mu.RUnlock()

	return s.persist(ctx, doc, v)
}

// Snapshot returns the current state as a settings document.
func (s *Store) Snapshot() *Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.documentLocked()
}

// Dirty reports whether the last write failed and storage is behind.
func (s *Store) Dirty() bool {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()
	return s.dirty
}

func (s *Store) documentLocked() *Document {
	doc := NewDocument()
	for name, g := range s.groups {
		scenes := make([]string, len(g.scenes))
		copy(scenes, g.scenes)
		doc.SceneGroups[name] = GroupDocument{Scenes: scenes, Interval: g.interval}
	}
	for name, set := range s.hidden {
		if len(set) > 0 {
			doc.HiddenScenes[name] = sortedKeys(set)
		}
	}
	return doc
}

// persist writes doc unless a newer version has already been written.
func (s *Store) persist(ctx context.Context, doc *Document, version uint64) error {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	if version < s.savedVersion {
		return nil
	}
	if err := s.repo.Save(ctx, doc); err != nil {
		s.dirty = true
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	s.savedVersion = version
	s.dirty = false
	return nil
}

// commitLocked is called with s.mu held for writing after a mutation. It
// bumps the version and returns what persistAndNotify needs once the lock is
// released.
func (s *Store) commitLocked() (*Document, uint64) {
	s.version++
	return s.documentLocked(), s.version
}

func (s *Store) persistAndNotify(ctx context.Context, doc *Document, version uint64, change Change) {
	if err := s.persist(ctx, doc, version); err != nil {
		s.logger.Error("failed to save scene groups, will retry on next change", "error", err)
	}
	s.notify(change)
}

func (s *Store) notify(change Change) {
	s.listenersMu.RLock()
	listeners := slices.Clone(s.listeners)
	s.listenersMu.RUnlock()

	for _, fn := range listeners {
		func() {
			defer func() {
				if r := recover(); r != nil {
					s.logger.Error("group change listener panic", "panic", r)
				}
			}()
			fn(change)
		}()
	}
}

// ─── Mutations ─────────────────────────────────────────────────────

// Create adds a group holding the given scenes, duplicates dropped. The
// group is stored whole or not at all.
func (s *Store) Create(ctx context.Context, name string, interval float64, scenes ...string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("%w: group name is empty", ErrInvalidName)
	}
	if !ValidInterval(interval) {
		return fmt.Errorf("%w: %v", ErrInvalidInterval, interval)
	}
	if slices.Contains(scenes, "") {
		return fmt.Errorf("%w: scene name is empty", ErrInvalidName)
	}

	s.mu.Lock()
	if _, exists := s.groups[name]; exists {
		s.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrDuplicateGroup, name)
	}
	s.groups[name] = &group{scenes: dedupe(scenes), interval: interval}
	// A leftover hidden set under a reused name must not leak into the new group.
	delete(s.hidden, name)
	doc, v := s.commitLocked()
	s.mu.Unlock()

	s.logger.Info("group created", "group", name, "interval", interval)
	s.persistAndNotify(ctx, doc, v, Change{Kind: ChangeCreated, Name: name})
	return nil
}

// Delete removes a group and its hidden set. Listeners receive
// ChangeDeleted so an active rotation can be stopped.
func (s *Store) Delete(ctx context.Context, name string) error {
	s.mu.Lock()
	if _, ok := s.groups[name]; !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrGroupNotFound, name)
	}
	delete(s.groups, name)
	delete(s.hidden, name)
	doc, v := s.commitLocked()
	s.mu.Unlock()

	s.logger.Info("group deleted", "group", name)
	s.persistAndNotify(ctx, doc, v, Change{Kind: ChangeDeleted, Name: name})
	return nil
}

// Rename moves a group to a new name, keeping its scenes, interval and
// hidden set.
func (s *Store) Rename(ctx context.Context, oldName, newName string) error {
	newName = strings.TrimSpace(newName)
	if newName == "" {
		return fmt.Errorf("%w: group name is empty", ErrInvalidName)
	}

	s.mu.Lock()
	g, ok := s.groups[oldName]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrGroupNotFound, oldName)
	}
	if newName == oldName {
		s.mu.Unlock()
		return nil
	}
	if _, exists := s.groups[newName]; exists {
		s.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrDuplicateGroup, newName)
	}
	delete(s.groups, oldName)
	s.groups[newName] = g
	if set, ok := s.hidden[oldName]; ok {
		s.hidden[newName] = set
	} else {
		delete(s.hidden, newName)
	}
	delete(s.hidden, oldName)
	doc, v := s.commitLocked()
	s.mu.Unlock()

	s.logger.Info("group renamed", "from", oldName, "to", newName)
	s.persistAndNotify(ctx, doc, v, Change{Kind: ChangeRenamed, Name: newName, OldName: oldName})
	return nil
}

// AddScene appends scene to the group's rotation. Adding a scene that is
// already present is a no-op.
func (s *Store) AddScene(ctx context.Context, name, scene string) error {
	if scene == "" {
		return fmt.Errorf("%w: scene name is empty", ErrInvalidName)
	}

	s.mu.Lock()
	g, ok := s.groups[name]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrGroupNotFound, name)
	}
	if slices.Contains(g.scenes, scene) {
		s.mu.Unlock()
		return nil
	}
	g.scenes = append(g.scenes, scene)
	doc, v := s.commitLocked()
	s.mu.Unlock()

	s.logger.Debug("scene added to group", "group", name, "scene", scene)
	s.persistAndNotify(ctx, doc, v, Change{Kind: ChangeUpdated, Name: name})
	return nil
}

// RemoveScene drops scene from the group. Removing an absent scene is a
// no-op. The scene also leaves the hidden set.
func (s *Store) RemoveScene(ctx context.Context, name, scene string) error {
	s.mu.Lock()
	g, ok := s.groups[name]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrGroupNotFound, name)
	}
	idx := slices.Index(g.scenes, scene)
	if idx < 0 {
		s.mu.Unlock()
		return nil
	}
	g.scenes = slices.Delete(g.scenes, idx, idx+1)
	if set, ok := s.hidden[name]; ok {
		delete(set, scene)
		if len(set) == 0 {
			delete(s.hidden, name)
		}
	}
	doc, v := s.commitLocked()
	s.mu.Unlock()

	s.logger.Debug("scene removed from group", "group", name, "scene", scene)
	s.persistAndNotify(ctx, doc, v, Change{Kind: ChangeUpdated, Name: name})
	return nil
}

// SetInterval changes how long each scene stays on program. A value outside
// [MinInterval, MaxInterval] is rejected and the previous interval kept. Running rotations pick
// the change up at their next pass.
func (s *Store) SetInterval(ctx context.Context, name string, seconds float64) error {
	if !ValidInterval(seconds) {
		return fmt.Errorf("%w: %v", ErrInvalidInterval, seconds)
	}

	s.mu.Lock()
	g, ok := s.groups[name]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrGroupNotFound, name)
	}
	if g.interval == seconds {
		s.mu.Unlock()
		return nil
	}
	g.interval = seconds
	doc, v := s.commitLocked()
	s.mu.Unlock()

	s.logger.Info("group interval changed", "group", name, "interval", seconds)
	s.persistAndNotify(ctx, doc, v, Change{Kind: ChangeUpdated, Name: name})
	return nil
}

// ToggleHidden flips whether scene is skipped by rotation and returns the
// new state. Toggling a scene that is not in the group's list is a no-op
// that reports false.
func (s *Store) ToggleHidden(ctx context.Context, name, scene string) (bool, error) {
	s.mu.Lock()
	g, ok := s.groups[name]
	if !ok {
		s.mu.Unlock()
		return false, fmt.Errorf("%w: %q", ErrGroupNotFound, name)
	}
	if !slices.Contains(g.scenes, scene) {
		s.mu.Unlock()
		return false, nil
	}

	set := s.hidden[name]
	_, wasHidden := set[scene]
	if wasHidden {
		delete(set, scene)
		if len(set) == 0 {
			delete(s.hidden, name)
		}
	} else {
		if set == nil {
			set = make(map[string]struct{})
			s.hidden[name] = set
		}
		set[scene] = struct{}{}
	}
	doc, v := s.commitLocked()
	s.mu.Unlock()

	s.logger.Debug("scene visibility toggled", "group", name, "scene", scene, "hidden", !wasHidden)
	s.persistAndNotify(ctx, doc, v, Change{Kind: ChangeUpdated, Name: name})
	return !wasHidden, nil
}

// ─── Queries ───────────────────────────────────────────────────────

// Get returns a copy of one group.
func (s *Store) Get(name string) (Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	g, ok := s.groups[name]
	if !ok {
		return Group{}, fmt.Errorf("%w: %q", ErrGroupNotFound, name)
	}
	return s.groupLocked(name, g), nil
}

// Exists reports whether a group with this name exists.
func (s *Store) Exists(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.groups[name]
	return ok
}

// List returns copies of all groups sorted by name.
func (s *Store) List() []Group {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Group, 0, len(s.groups))
	for name, g := range s.groups {
		out = append(out, s.groupLocked(name, g))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Visible returns the group's scenes minus its hidden set, in rotation
// order, with the current interval.
func (s *Store) Visible(name string) (View, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	g, ok := s.groups[name]
	if !ok {
		return View{}, fmt.Errorf("%w: %q", ErrGroupNotFound, name)
	}
	set := s.hidden[name]
	scenes := make([]string, 0, len(g.scenes))
	for _, sc := range g.scenes {
		if _, hidden := set[sc]; !hidden {
			scenes = append(scenes, sc)
		}
	}
	return View{Name: name, Scenes: scenes, Interval: secondsToDuration(g.interval)}, nil
}

// Hidden returns the group's hidden scenes, sorted.
func (s *Store) Hidden(name string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.groups[name]; !ok {
		return nil, fmt.Errorf("%w: %q", ErrGroupNotFound, name)
	}
	return sortedKeys(s.hidden[name]), nil
}

func (s *Store) groupLocked(name string, g *group) Group {
	return Group{
		Name:     name,
		Scenes:   slices.Clone(g.scenes),
		Interval: g.interval,
		Hidden:   sortedKeys(s.hidden[name]),
	}
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func dedupe(scenes []string) []string {
	out := make([]string, 0, len(scenes))
	seen := make(map[string]struct{}, len(scenes))
	for _, sc := range scenes {
		if sc == "" {
			continue
		}
		if _, dup := seen[sc]; dup {
			continue
		}
		seen[sc] = struct{}{}
		out = append(out, sc)
	}
	return out
}
