package api

import (
	"net/http"
	"reflect"
	"testing"

	"github.com/nerrad567/scene-rotator/internal/obs"
)

func TestListScenes(t *testing.T) {
	env := newTestEnv(t, "", nil)

	var before obs.DirectorySnapshot
	decodeBody(t, env.do(t, http.MethodGet, "/api/v1/scenes", nil), &before)
	if !before.Stale {
		t.Error("directory should be stale before the first listing")
	}

	env.obs.emitSceneList([]string{"Cam1", "Cam2"}, "Cam2")

	var after obs.DirectorySnapshot
	decodeBody(t, env.do(t, http.MethodGet, "/api/v1/scenes", nil), &after)
	if !reflect.DeepEqual(after.Scenes, []string{"Cam1", "Cam2"}) || after.Current != "Cam2" || after.Stale {
		t.Errorf("scenes = %+v", after)
	}
}

func TestCurrentScene(t *testing.T) {
	env := newTestEnv(t, "", nil)

	if w := env.do(t, http.MethodGet, "/api/v1/scenes/current", nil); w.Code != http.StatusNotFound {
		t.Errorf("status before any scene = %d, want 404", w.Code)
	}

	env.obs.emitSceneList([]string{"Cam1"}, "Cam1")

	w := env.do(t, http.MethodGet, "/api/v1/scenes/current", nil)
	var resp map[string]string
	decodeBody(t, w, &resp)
	if w.Code != http.StatusOK || resp["scene"] != "Cam1" {
		t.Errorf("current = %d %v, want 200 Cam1", w.Code, resp)
	}
}

func TestSwitchScene(t *testing.T) {
	env := newTestEnv(t, "", nil)

	w := env.do(t, http.MethodPost, "/api/v1/scenes/switch", map[string]string{"scene": "Cam3"})
	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202: %s", w.Code, w.Body.String())
	}
	if got := env.obs.getSwitches(); !reflect.DeepEqual(got, []string{"Cam3"}) {
		t.Errorf("switches = %v, want [Cam3]", got)
	}
	if cur, _ := env.svc.CurrentScene(); cur != "Cam3" {
		t.Errorf("CurrentScene() = %q, want Cam3", cur)
	}
}

func TestSwitchScene_Errors(t *testing.T) {
	tests := []struct {
		name      string
		body      any
		switchErr error
		wantCode  int
		wantError string
	}{
		{"invalid json", "{", nil, http.StatusBadRequest, ErrCodeBadRequest},
		{"empty scene", map[string]string{"scene": ""}, nil, http.StatusBadRequest, ErrCodeValidation},
		{"not connected", map[string]string{"scene": "Cam1"}, obs.ErrNotConnected, http.StatusServiceUnavailable, ErrCodeUnavailable},
		{"obs rejected", map[string]string{"scene": "Cam1"}, obs.ErrRequestFailed, http.StatusBadGateway, ErrCodeBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, "", nil)
			env.obs.switchErr = tt.switchErr

			w := env.do(t, http.MethodPost, "/api/v1/scenes/switch", tt.body)
			if w.Code != tt.wantCode {
				t.Errorf("status = %d, want %d", w.Code, tt.wantCode)
			}
			if code := errorCode(t, w); code != tt.wantError {
				t.Errorf("code = %q, want %q", code, tt.wantError)
			}
		})
	}
}

func TestRefreshScenes(t *testing.T) {
	env := newTestEnv(t, "", nil)
	env.obs.scenes = []string{"Cam1", "Cam2", "Cam3"}

	w := env.do(t, http.MethodPost, "/api/v1/scenes/refresh", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	var resp struct {
		Scenes []string `json:"scenes"`
		Count  int      `json:"count"`
	}
	decodeBody(t, w, &resp)
	if resp.Count != 3 || !reflect.DeepEqual(resp.Scenes, env.obs.scenes) {
		t.Errorf("refresh = %+v", resp)
	}
}
