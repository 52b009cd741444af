// Package database opens the SQLite file that backs the switch history.
//
// Open configures WAL mode and a busy timeout, limits the pool to one
// connection, and sets the file to 0600. Migrate applies the versioned
// .up.sql files registered in MigrationsFS; each carries a matching
// .down.sql for MigrateDown.
//
//	db, err := database.Open(database.Config{
//	    Path:        cfg.Database.Path,
//	    WALMode:     cfg.Database.WALMode,
//	    BusyTimeout: cfg.Database.BusyTimeout,
//	})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
package database
