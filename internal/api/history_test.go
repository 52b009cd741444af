package api

import (
	"context"
	"net/http"
	"testing"

	"github.com/nerrad567/scene-rotator/internal/history"
	"github.com/nerrad567/scene-rotator/internal/infrastructure/database"
	_ "github.com/nerrad567/scene-rotator/migrations"
)

func newHistoryRepository(t *testing.T) *history.SQLiteRepository {
	t.Helper()

	db, err := database.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory() error = %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // test cleanup

	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	return history.NewSQLiteRepository(db.DB)
}

func TestListHistory_Disabled(t *testing.T) {
	env := newTestEnv(t, "", nil)

	w := env.do(t, http.MethodGet, "/api/v1/history", nil)
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", w.Code)
	}
}

func TestListHistory(t *testing.T) {
	env := newTestEnv(t, "", newHistoryRepository(t))

	for _, scene := range []string{"Cam1", "Cam2", "Cam3"} {
		if w := env.do(t, http.MethodPost, "/api/v1/scenes/switch", map[string]string{"scene": scene}); w.Code != http.StatusAccepted {
			t.Fatalf("switch %s status = %d", scene, w.Code)
		}
	}

	var result history.ListResult
	decodeBody(t, env.do(t, http.MethodGet, "/api/v1/history?limit=2", nil), &result)

	if result.Total != 3 {
		t.Errorf("Total = %d, want 3", result.Total)
	}
	if len(result.Entries) != 2 {
		t.Fatalf("len(Entries) = %d, want 2", len(result.Entries))
	}
	if result.Entries[0].Scene != "Cam3" || result.Entries[0].Source != history.SourceOperator {
		t.Errorf("newest entry = %+v, want Cam3 from operator", result.Entries[0])
	}

	decodeBody(t, env.do(t, http.MethodGet, "/api/v1/history?source=rotation", nil), &result)
	if result.Total != 0 {
		t.Errorf("rotation Total = %d, want 0", result.Total)
	}
}

func TestListHistory_BadQuery(t *testing.T) {
	env := newTestEnv(t, "", newHistoryRepository(t))

	for _, q := range []string{"limit=abc", "limit=-1", "offset=x"} {
		t.Run(q, func(t *testing.T) {
			w := env.do(t, http.MethodGet, "/api/v1/history?"+q, nil)
			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", w.Code)
			}
		})
	}
}

func TestGroupHistory(t *testing.T) {
	repo := newHistoryRepository(t)
	env := newTestEnv(t, "", repo)
	createTestGroup(t, env, map[string]any{"name": "Intro"})

	ctx := context.Background()
	for _, e := range []history.Entry{
		{Scene: "Cam1", Source: history.SourceRotation, Group: "Intro"},
		{Scene: "Cam2", Source: history.SourceRotation, Group: "Intro"},
		{Scene: "Cam9", Source: history.SourceRotation, Group: "Break"},
	} {
		if err := repo.Record(ctx, &e); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}

	w := env.do(t, http.MethodGet, "/api/v1/groups/Intro/history?limit=10", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Group   string          `json:"group"`
		Entries []history.Entry `json:"entries"`
		Count   int             `json:"count"`
	}
	decodeBody(t, w, &resp)
	if resp.Count != 2 || resp.Entries[0].Group != "Intro" || resp.Entries[1].Group != "Intro" {
		t.Errorf("history = %+v, want the two Intro entries", resp)
	}

	tests := []struct {
		name     string
		path     string
		wantCode int
	}{
		{"missing group", "/api/v1/groups/Nope/history", http.StatusNotFound},
		{"bad limit", "/api/v1/groups/Intro/history?limit=-2", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if w := env.do(t, http.MethodGet, tt.path, nil); w.Code != tt.wantCode {
				t.Errorf("status = %d, want %d", w.Code, tt.wantCode)
			}
		})
	}
}

func TestGroupHistory_Disabled(t *testing.T) {
	env := newTestEnv(t, "", nil)
	createTestGroup(t, env, map[string]any{"name": "Intro"})

	if w := env.do(t, http.MethodGet, "/api/v1/groups/Intro/history", nil); w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", w.Code)
	}
}

func TestQueryInt(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"", 0, false},
		{"10", 10, false},
		{"0", 0, false},
		{"-3", 0, true},
		{"ten", 0, true},
	}
	for _, tt := range tests {
		got, err := queryInt(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("queryInt(%q) = %d, %v", tt.in, got, err)
		}
	}
}
