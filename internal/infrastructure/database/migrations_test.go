package database

import (
	"context"
	"testing"
	"testing/fstest"
)

// withMigrations swaps the package migration source for the test.
func withMigrations(t *testing.T, files fstest.MapFS) {
	t.Helper()
	origFS, origDir := MigrationsFS, MigrationsDir
	t.Cleanup(func() {
		MigrationsFS, MigrationsDir = origFS, origDir
	})
	if files == nil {
		MigrationsFS = nil
	} else {
		MigrationsFS = files
	}
	MigrationsDir = "."
}

func twoMigrations() fstest.MapFS {
	return fstest.MapFS{
		"20261001_090000_create_switches.up.sql": {Data: []byte(`
			CREATE TABLE switches (id INTEGER PRIMARY KEY, scene TEXT NOT NULL);
			CREATE INDEX idx_switches_scene ON switches(scene);
		`)},
		"20261001_090000_create_switches.down.sql": {Data: []byte(`DROP TABLE switches;`)},
		"20261002_090000_add_source.up.sql":        {Data: []byte(`ALTER TABLE switches ADD COLUMN source TEXT;`)},
		"20261002_090000_add_source.down.sql":      {Data: []byte(`ALTER TABLE switches DROP COLUMN source;`)},
		"README.md":                                {Data: []byte("not a migration")},
	}
}

func tableExists(t *testing.T, db *DB, name string) bool {
	t.Helper()
	var count int
	err := db.QueryRowContext(context.Background(),
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", name,
	).Scan(&count)
	if err != nil {
		t.Fatalf("sqlite_master query: %v", err)
	}
	return count == 1
}

func TestMigrate(t *testing.T) {
	withMigrations(t, twoMigrations())
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	if !tableExists(t, db, "switches") {
		t.Fatal("switches table not created")
	}
	if _, err := db.ExecContext(ctx, "INSERT INTO switches (scene, source) VALUES ('Cam1', 'rotation')"); err != nil {
		t.Errorf("second migration not applied: %v", err)
	}

	applied, pending, err := db.MigrationStatus(ctx)
	if err != nil {
		t.Fatalf("MigrationStatus() error = %v", err)
	}
	if len(applied) != 2 || len(pending) != 0 {
		t.Errorf("applied=%d pending=%d, want 2 and 0", len(applied), len(pending))
	}
	if applied[0].Version != "20261001_090000" || applied[0].AppliedAt.IsZero() {
		t.Errorf("applied[0] = %+v", applied[0])
	}

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("second Migrate() error = %v", err)
	}
}

func TestMigrate_FailureKeepsEarlierMigrations(t *testing.T) {
	files := twoMigrations()
	files["20261003_090000_broken.up.sql"] = &fstest.MapFile{Data: []byte(`CREATE TABLE oops (`)}
	withMigrations(t, files)
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.Migrate(ctx); err == nil {
		t.Fatal("Migrate() should fail on broken SQL")
	}

	applied, pending, err := db.MigrationStatus(ctx)
	if err != nil {
		t.Fatalf("MigrationStatus() error = %v", err)
	}
	if len(applied) != 2 || len(pending) != 1 || pending[0].Name != "broken" {
		t.Errorf("applied=%d pending=%+v", len(applied), pending)
	}
}

func TestMigrateDown(t *testing.T) {
	withMigrations(t, twoMigrations())
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	for i := 0; i < 2; i++ {
		if err := db.MigrateDown(ctx); err != nil {
			t.Fatalf("MigrateDown() error = %v", err)
		}
	}
	if tableExists(t, db, "switches") {
		t.Error("switches table should have been dropped")
	}

	applied, _, err := db.MigrationStatus(ctx)
	if err != nil {
		t.Fatalf("MigrationStatus() error = %v", err)
	}
	if len(applied) != 0 {
		t.Errorf("applied = %d after full rollback, want 0", len(applied))
	}

	// Nothing left to roll back.
	if err := db.MigrateDown(ctx); err != nil {
		t.Errorf("MigrateDown() on empty history error = %v", err)
	}
}

func TestMigrateDown_NoDownSQL(t *testing.T) {
	withMigrations(t, fstest.MapFS{
		"20261001_090000_one_way.up.sql": {Data: []byte(`CREATE TABLE one_way (id INTEGER);`)},
	})
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	if err := db.MigrateDown(ctx); err == nil {
		t.Error("MigrateDown() should fail without down SQL")
	}
}

func TestMigrate_NoMigrations(t *testing.T) {
	withMigrations(t, nil)
	db := openTestDB(t)

	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate() with no migrations error = %v", err)
	}
}

func TestParseMigrationFile(t *testing.T) {
	tests := []struct {
		filename string
		want     migrationFile
		wantOK   bool
	}{
		{"20261019_120000_switch_history.up.sql", migrationFile{"20261019_120000", "switch_history", true}, true},
		{"20261019_120000_switch_history.down.sql", migrationFile{"20261019_120000", "switch_history", false}, true},
		{"20261020_080000_add_group_index.up.sql", migrationFile{"20261020_080000", "add_group_index", true}, true},
		{"20261020_080000.up.sql", migrationFile{"20261020_080000", "20261020_080000", true}, true},
		{"readme.txt", migrationFile{}, false},
		{"20261019_120000_switch_history.sql", migrationFile{}, false},
		{"invalid.up.sql", migrationFile{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			got, ok := parseMigrationFile(tt.filename)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && got != tt.want {
				t.Errorf("parseMigrationFile(%q) = %+v, want %+v", tt.filename, got, tt.want)
			}
		})
	}
}

func TestLoadMigrations_PairsAndOrders(t *testing.T) {
	files := twoMigrations()
	files["20261005_090000_orphan.down.sql"] = &fstest.MapFile{Data: []byte(`DROP TABLE x;`)}

	got, err := loadMigrations(files, ".")
	if err != nil {
		t.Fatalf("loadMigrations() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d migrations, want 2 (orphan down file ignored)", len(got))
	}
	if got[0].Name != "create_switches" || got[1].Name != "add_source" {
		t.Errorf("order = %s, %s", got[0].Name, got[1].Name)
	}
	if got[0].DownSQL == "" || got[1].DownSQL == "" {
		t.Error("down SQL not paired with its up file")
	}
}
