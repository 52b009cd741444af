package api

import (
	"net/http"
	"reflect"
	"testing"
)

func createTestGroup(t *testing.T, env *testEnv, body any) groupResponse {
	t.Helper()
	w := env.do(t, http.MethodPost, "/api/v1/groups", body)
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d: %s", w.Code, w.Body.String())
	}
	var g groupResponse
	decodeBody(t, w, &g)
	return g
}

func TestListGroups_Empty(t *testing.T) {
	env := newTestEnv(t, "", nil)

	var resp struct {
		Groups []groupResponse `json:"groups"`
		Count  int             `json:"count"`
	}
	decodeBody(t, env.do(t, http.MethodGet, "/api/v1/groups", nil), &resp)
	if resp.Count != 0 || resp.Groups == nil {
		t.Errorf("groups = %+v, want an empty list", resp)
	}
}

func TestCreateGroup(t *testing.T) {
	env := newTestEnv(t, "", nil)

	interval := 5.0
	g := createTestGroup(t, env, map[string]any{"name": " Intro ", "interval": interval, "scenes": []string{"Cam1", "Cam2", "Cam1"}})

	if g.Name != "Intro" {
		t.Errorf("Name = %q, want trimmed Intro", g.Name)
	}
	if g.Interval != 5 {
		t.Errorf("Interval = %v, want 5", g.Interval)
	}
	if !reflect.DeepEqual(g.Scenes, []string{"Cam1", "Cam2"}) {
		t.Errorf("Scenes = %v, want [Cam1 Cam2]", g.Scenes)
	}
	if g.Rotating {
		t.Error("a new group should not be rotating")
	}
}

func TestCreateGroup_DefaultInterval(t *testing.T) {
	env := newTestEnv(t, "", nil)

	g := createTestGroup(t, env, map[string]any{"name": "Intro"})
	if g.Interval != 30 {
		t.Errorf("Interval = %v, want default 30", g.Interval)
	}
}

func TestCreateGroup_Errors(t *testing.T) {
	tests := []struct {
		name     string
		body     any
		wantCode int
	}{
		{"invalid json", "{", http.StatusBadRequest},
		{"empty name", map[string]any{"name": "  "}, http.StatusBadRequest},
		{"zero interval", map[string]any{"name": "A", "interval": 0}, http.StatusBadRequest},
		{"negative interval", map[string]any{"name": "A", "interval": -1}, http.StatusBadRequest},
		{"interval past duration range", map[string]any{"name": "A", "interval": 1e10}, http.StatusBadRequest},
		{"empty scene name", map[string]any{"name": "A", "scenes": []string{"Cam1", ""}}, http.StatusBadRequest},
		{"duplicate", map[string]any{"name": "Intro", "scenes": []string{"Cam9"}}, http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, "", nil)
			createTestGroup(t, env, map[string]any{"name": "Intro"})

			w := env.do(t, http.MethodPost, "/api/v1/groups", tt.body)
			if w.Code != tt.wantCode {
				t.Errorf("status = %d, want %d: %s", w.Code, tt.wantCode, w.Body.String())
			}

			// A rejected create leaves nothing behind.
			if w := env.do(t, http.MethodGet, "/api/v1/groups/A", nil); w.Code != http.StatusNotFound {
				t.Errorf("GET /groups/A status = %d, want 404", w.Code)
			}
			var intro groupResponse
			decodeBody(t, env.do(t, http.MethodGet, "/api/v1/groups/Intro", nil), &intro)
			if len(intro.Scenes) != 0 {
				t.Errorf("Intro scenes = %v, want none", intro.Scenes)
			}
		})
	}
}

func TestGetGroup(t *testing.T) {
	env := newTestEnv(t, "", nil)
	createTestGroup(t, env, map[string]any{"name": "Opening Titles", "scenes": []string{"Slate"}})

	w := env.do(t, http.MethodGet, "/api/v1/groups/Opening%20Titles", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var g groupResponse
	decodeBody(t, w, &g)
	if g.Name != "Opening Titles" {
		t.Errorf("Name = %q", g.Name)
	}

	if w := env.do(t, http.MethodGet, "/api/v1/groups/Nope", nil); w.Code != http.StatusNotFound {
		t.Errorf("missing group status = %d, want 404", w.Code)
	}
}

func TestUpdateGroup(t *testing.T) {
	env := newTestEnv(t, "", nil)
	createTestGroup(t, env, map[string]any{"name": "Intro"})
	createTestGroup(t, env, map[string]any{"name": "Break"})

	w := env.do(t, http.MethodPatch, "/api/v1/groups/Intro", map[string]any{"name": "Opening", "interval": 8})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	var g groupResponse
	decodeBody(t, w, &g)
	if g.Name != "Opening" || g.Interval != 8 {
		t.Errorf("group = %+v, want Opening/8", g)
	}

	tests := []struct {
		name     string
		path     string
		body     any
		wantCode int
	}{
		{"no fields", "/api/v1/groups/Opening", map[string]any{}, http.StatusBadRequest},
		{"rename onto existing", "/api/v1/groups/Opening", map[string]any{"name": "Break"}, http.StatusConflict},
		{"bad interval", "/api/v1/groups/Opening", map[string]any{"interval": 0}, http.StatusBadRequest},
		{"missing group", "/api/v1/groups/Intro", map[string]any{"interval": 3}, http.StatusNotFound},
		{"rename onto existing with interval", "/api/v1/groups/Opening", map[string]any{"name": "Break", "interval": 3}, http.StatusConflict},
		{"blank rename with interval", "/api/v1/groups/Opening", map[string]any{"name": " ", "interval": 3}, http.StatusBadRequest},
		{"rename with bad interval", "/api/v1/groups/Opening", map[string]any{"name": "Closing", "interval": -1}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if w := env.do(t, http.MethodPatch, tt.path, tt.body); w.Code != tt.wantCode {
				t.Errorf("status = %d, want %d", w.Code, tt.wantCode)
			}

			// Rejected updates change neither field.
			var g groupResponse
			w := env.do(t, http.MethodGet, "/api/v1/groups/Opening", nil)
			if w.Code != http.StatusOK {
				t.Fatalf("GET /groups/Opening status = %d", w.Code)
			}
			decodeBody(t, w, &g)
			if g.Interval != 8 {
				t.Errorf("Opening interval = %v, want 8", g.Interval)
			}
			if w := env.do(t, http.MethodGet, "/api/v1/groups/Closing", nil); w.Code != http.StatusNotFound {
				t.Errorf("GET /groups/Closing status = %d, want 404", w.Code)
			}
		})
	}
}

func TestDeleteGroup(t *testing.T) {
	env := newTestEnv(t, "", nil)
	createTestGroup(t, env, map[string]any{"name": "Intro", "scenes": []string{"Cam1"}})

	if w := env.do(t, http.MethodPost, "/api/v1/groups/Intro/rotation/start", nil); w.Code != http.StatusOK {
		t.Fatalf("start status = %d", w.Code)
	}

	if w := env.do(t, http.MethodDelete, "/api/v1/groups/Intro", nil); w.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", w.Code)
	}
	if env.svc.IsRotating("Intro") {
		t.Error("deleting a group should stop its rotation")
	}
	if w := env.do(t, http.MethodDelete, "/api/v1/groups/Intro", nil); w.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", w.Code)
	}
}

func TestGroupScenes(t *testing.T) {
	env := newTestEnv(t, "", nil)
	createTestGroup(t, env, map[string]any{"name": "Intro", "scenes": []string{"Cam1"}})

	w := env.do(t, http.MethodPost, "/api/v1/groups/Intro/scenes", map[string]string{"scene": "Cam2"})
	var g groupResponse
	decodeBody(t, w, &g)
	if !reflect.DeepEqual(g.Scenes, []string{"Cam1", "Cam2"}) {
		t.Errorf("after add Scenes = %v", g.Scenes)
	}

	if w := env.do(t, http.MethodPost, "/api/v1/groups/Intro/scenes", map[string]string{"scene": ""}); w.Code != http.StatusBadRequest {
		t.Errorf("empty scene status = %d, want 400", w.Code)
	}

	w = env.do(t, http.MethodDelete, "/api/v1/groups/Intro/scenes/Cam1", nil)
	decodeBody(t, w, &g)
	if !reflect.DeepEqual(g.Scenes, []string{"Cam2"}) {
		t.Errorf("after remove Scenes = %v", g.Scenes)
	}

	if w := env.do(t, http.MethodDelete, "/api/v1/groups/Nope/scenes/Cam1", nil); w.Code != http.StatusNotFound {
		t.Errorf("missing group status = %d, want 404", w.Code)
	}
}

func TestToggleHidden(t *testing.T) {
	env := newTestEnv(t, "", nil)
	createTestGroup(t, env, map[string]any{"name": "Intro", "scenes": []string{"Cam1", "Cam 2"}})

	var resp struct {
		Hidden bool `json:"hidden"`
	}
	decodeBody(t, env.do(t, http.MethodPost, "/api/v1/groups/Intro/scenes/Cam%202/hidden", nil), &resp)
	if !resp.Hidden {
		t.Error("first toggle should hide the scene")
	}

	var g groupResponse
	decodeBody(t, env.do(t, http.MethodGet, "/api/v1/groups/Intro", nil), &g)
	if !reflect.DeepEqual(g.Hidden, []string{"Cam 2"}) {
		t.Errorf("Hidden = %v, want [Cam 2]", g.Hidden)
	}

	decodeBody(t, env.do(t, http.MethodPost, "/api/v1/groups/Intro/scenes/Cam%202/hidden", nil), &resp)
	if resp.Hidden {
		t.Error("second toggle should unhide the scene")
	}

	// Not a member: no-op.
	decodeBody(t, env.do(t, http.MethodPost, "/api/v1/groups/Intro/scenes/Other/hidden", nil), &resp)
	if resp.Hidden {
		t.Error("toggling a non-member should report not hidden")
	}
}

func TestRotationEndpoints(t *testing.T) {
	env := newTestEnv(t, "", nil)
	createTestGroup(t, env, map[string]any{"name": "A", "interval": 3600, "scenes": []string{"Cam1"}})
	createTestGroup(t, env, map[string]any{"name": "B", "interval": 3600, "scenes": []string{"Cam2"}})

	for _, g := range []string{"A", "B", "A"} {
		if w := env.do(t, http.MethodPost, "/api/v1/groups/"+g+"/rotation/start", nil); w.Code != http.StatusOK {
			t.Fatalf("start %s status = %d", g, w.Code)
		}
	}
	if w := env.do(t, http.MethodPost, "/api/v1/groups/Nope/rotation/start", nil); w.Code != http.StatusNotFound {
		t.Errorf("start unknown status = %d, want 404", w.Code)
	}

	var list struct {
		Count int `json:"count"`
	}
	decodeBody(t, env.do(t, http.MethodGet, "/api/v1/rotations", nil), &list)
	if list.Count != 2 {
		t.Errorf("rotations count = %d, want 2", list.Count)
	}

	var stop struct {
		WasRotating bool `json:"was_rotating"`
	}
	decodeBody(t, env.do(t, http.MethodPost, "/api/v1/groups/A/rotation/stop", nil), &stop)
	if !stop.WasRotating {
		t.Error("A was rotating")
	}
	decodeBody(t, env.do(t, http.MethodPost, "/api/v1/groups/A/rotation/stop", nil), &stop)
	if stop.WasRotating {
		t.Error("stopping an idle group should report was_rotating=false")
	}

	var all struct {
		Stopped []string `json:"stopped"`
	}
	decodeBody(t, env.do(t, http.MethodPost, "/api/v1/rotations/stop", nil), &all)
	if !reflect.DeepEqual(all.Stopped, []string{"B"}) {
		t.Errorf("stopped = %v, want [B]", all.Stopped)
	}
}
