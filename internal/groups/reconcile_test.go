package groups

import (
	"context"
	"reflect"
	"slices"
	"testing"
)

type sceneSet map[string]bool

func (s sceneSet) Contains(name string) bool { return s[name] }

func liveScenes(names ...string) sceneSet {
	s := make(sceneSet, len(names))
	for _, n := range names {
		s[n] = true
	}
	return s
}

func TestReconcile_HidesMissingScenes(t *testing.T) {
	s, repo := newTestStore(t)
	mustCreate(t, s, "Intro", 5, "Cam1", "Cam2")
	before := repo.getSaveCount()

	report := s.Reconcile(context.Background(), liveScenes("Cam1", "Cam3"))

	if !reflect.DeepEqual(report.NewlyHidden, map[string][]string{"Intro": {"Cam2"}}) {
		t.Errorf("NewlyHidden = %v, want Intro: [Cam2]", report.NewlyHidden)
	}

	g, _ := s.Get("Intro")
	if !reflect.DeepEqual(g.Scenes, []string{"Cam1", "Cam2"}) {
		t.Errorf("Scenes = %v, reconcile must not remove scenes", g.Scenes)
	}
	if !reflect.DeepEqual(g.Hidden, []string{"Cam2"}) {
		t.Errorf("Hidden = %v, want [Cam2]", g.Hidden)
	}

	view, _ := s.Visible("Intro")
	if !reflect.DeepEqual(view.Scenes, []string{"Cam1"}) {
		t.Errorf("Visible = %v, want [Cam1]", view.Scenes)
	}

	if repo.getSaveCount() != before+1 {
		t.Error("reconcile should save")
	}
}

func TestReconcile_AlwaysSaves(t *testing.T) {
	s, repo := newTestStore(t)
	mustCreate(t, s, "Intro", 5, "Cam1")
	before := repo.getSaveCount()

	report := s.Reconcile(context.Background(), liveScenes("Cam1"))

	if report.Changed() {
		t.Errorf("report = %+v, want no changes", report)
	}
	if repo.getSaveCount() != before+1 {
		t.Error("reconcile should save even without changes")
	}
}

func TestReconcile_NeverUnhides(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	mustCreate(t, s, "Intro", 5, "Cam1", "Cam2")

	s.Reconcile(ctx, liveScenes("Cam1"))
	s.Reconcile(ctx, liveScenes("Cam1", "Cam2"))

	hidden, _ := s.Hidden("Intro")
	if !reflect.DeepEqual(hidden, []string{"Cam2"}) {
		t.Errorf("Hidden = %v, reappearing scene should stay hidden until toggled", hidden)
	}
}

func TestReconcile_ReportsOnlyNewlyHidden(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	mustCreate(t, s, "Intro", 5, "Cam1", "Cam2")

	s.Reconcile(ctx, liveScenes("Cam1"))
	report := s.Reconcile(ctx, liveScenes("Cam1"))

	if len(report.NewlyHidden) != 0 {
		t.Errorf("NewlyHidden = %v, already hidden scenes should not be reported again", report.NewlyHidden)
	}
}

func TestReconcile_PrunesOrphanedHiddenSets(t *testing.T) {
	repo := &mockRepository{doc: &Document{
		SceneGroups: map[string]GroupDocument{
			"Intro": {Scenes: []string{"Cam1", "Cam2"}, Interval: 5},
		},
		HiddenScenes: map[string][]string{
			"Intro": {"Cam2", "Ghost"},
			"Gone":  {"Cam9"},
		},
	}}
	s := NewStore(repo, 30)
	s.Load(context.Background())

	report := s.Reconcile(context.Background(), liveScenes("Cam1", "Cam2"))

	if !reflect.DeepEqual(report.PrunedGroups, []string{"Gone"}) {
		t.Errorf("PrunedGroups = %v, want [Gone]", report.PrunedGroups)
	}
	if report.PrunedEntries != 1 {
		t.Errorf("PrunedEntries = %d, want 1", report.PrunedEntries)
	}

	doc := repo.lastSaved()
	want := map[string][]string{"Intro": {"Cam2"}}
	if !reflect.DeepEqual(doc.HiddenScenes, want) {
		t.Errorf("saved hidden_scenes = %v, want %v", doc.HiddenScenes, want)
	}
}

func TestReconcile_HiddenIsSubsetOfScenes(t *testing.T) {
	repo := &mockRepository{doc: &Document{
		SceneGroups: map[string]GroupDocument{
			"A": {Scenes: []string{"s1", "s2", "s3"}, Interval: 1},
			"B": {Scenes: []string{"s3", "s4"}, Interval: 1},
			"C": {Scenes: []string{}, Interval: 1},
		},
		HiddenScenes: map[string][]string{
			"A": {"s1", "x"},
			"B": {"s9"},
			"C": {"s1"},
			"D": {"s4"},
		},
	}}
	s := NewStore(repo, 30)
	s.Load(context.Background())

	lives := []sceneSet{
		liveScenes("s1", "s2", "s3", "s4"),
		liveScenes("s2"),
		liveScenes(),
		liveScenes("s1", "s4", "s5"),
	}

	for i, live := range lives {
		s.Reconcile(context.Background(), live)

		for _, g := range s.List() {
			for _, h := range g.Hidden {
				if !slices.Contains(g.Scenes, h) {
					t.Errorf("pass %d: group %s hides %q which is not in %v", i, g.Name, h, g.Scenes)
				}
			}
		}
		for name := range s.Snapshot().HiddenScenes {
			if !s.Exists(name) {
				t.Errorf("pass %d: hidden set for deleted group %q survived", i, name)
			}
		}
	}
}

func TestReconcile_NotifiesOnlyOnChange(t *testing.T) {
	s, _ := newTestStore(t)
	mustCreate(t, s, "Intro", 5, "Cam1")

	rec := &changeRecorder{}
	s.OnChange(rec.record)

	s.Reconcile(context.Background(), liveScenes("Cam1"))
	if n := len(rec.getChanges()); n != 0 {
		t.Errorf("got %d change notifications for a no-op reconcile", n)
	}

	s.Reconcile(context.Background(), liveScenes())
	if n := len(rec.getChanges()); n != 1 {
		t.Errorf("got %d change notifications, want 1", n)
	}
}
