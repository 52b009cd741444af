package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Switch sources.
const (
	SourceOperator = "operator"
	SourceRotation = "rotation"
	SourceMQTT     = "mqtt"

	// SourceExternal marks a program change made in OBS itself.
	SourceExternal = "obs"
)

const (
	defaultLimit = 50
	maxLimit     = 500

	// Fixed-width UTC timestamps sort correctly as TEXT.
	timeLayout = "2006-01-02T15:04:05.000000Z"
)

// ErrInvalidEntry is returned by Record for an entry without a scene or source.
var ErrInvalidEntry = errors.New("history: scene and source are required")

// Entry is one program scene switch.
type Entry struct {
	ID        int64     `json:"id"`
	Scene     string    `json:"scene"`
	Source    string    `json:"source"`
	Group     string    `json:"group,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Filter selects entries for List.
type Filter struct {
	Group  string // optional
	Source string // optional
	Limit  int    // default 50, max 500
	Offset int
}

// ListResult is one page of entries, newest first.
type ListResult struct {
	Entries []Entry `json:"entries"`
	Total   int     `json:"total"`
	Limit   int     `json:"limit"`
	Offset  int     `json:"offset"`
}

// Repository stores the switch history.
type Repository interface {
	Record(ctx context.Context, entry *Entry) error
	List(ctx context.Context, filter Filter) (*ListResult, error)
	ListByGroup(ctx context.Context, group string, limit int) ([]Entry, error)
	Prune(ctx context.Context, before time.Time) (int64, error)
}

// SQLiteRepository keeps the history in the switch_history table.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository returns a repository over an already migrated db.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Record inserts entry, filling in CreatedAt when zero and ID on success.
func (r *SQLiteRepository) Record(ctx context.Context, entry *Entry) error {
	if entry == nil || entry.Scene == "" || entry.Source == "" {
		return ErrInvalidEntry
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	entry.CreatedAt = entry.CreatedAt.UTC()

	res, err := r.db.ExecContext(ctx,
		`INSERT INTO switch_history (scene, source, group_name, created_at) VALUES (?, ?, ?, ?)`,
		entry.Scene, entry.Source, entry.Group, entry.CreatedAt.Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("inserting switch history: %w", err)
	}

	if id, err := res.LastInsertId(); err == nil {
		entry.ID = id
	}
	return nil
}

// List returns entries matching filter, newest first.
func (r *SQLiteRepository) List(ctx context.Context, filter Filter) (*ListResult, error) {
	if filter.Limit <= 0 {
		filter.Limit = defaultLimit
	}
	if filter.Limit > maxLimit {
		filter.Limit = maxLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	var conditions []string
	var args []any
	if filter.Group != "" {
		conditions = append(conditions, "group_name = ?")
		args = append(args, filter.Group)
	}
	if filter.Source != "" {
		conditions = append(conditions, "source = ?")
		args = append(args, filter.Source)
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM switch_history %s", where) //nolint:gosec // only placeholders are interpolated
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting switch history: %w", err)
	}

	query := fmt.Sprintf( //nolint:gosec // only placeholders are interpolated
		"SELECT id, scene, source, group_name, created_at FROM switch_history %s ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?",
		where,
	)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying switch history: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var e Entry
		var createdAt string
		if err := rows.Scan(&e.ID, &e.Scene, &e.Source, &e.Group, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning switch history: %w", err)
		}
		t, err := time.Parse(timeLayout, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing switch history timestamp %q: %w", createdAt, err)
		}
		e.CreatedAt = t
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating switch history: %w", err)
	}

	return &ListResult{
		Entries: entries,
		Total:   total,
		Limit:   filter.Limit,
		Offset:  filter.Offset,
	}, nil
}

// ListByGroup returns the newest limit switches a group's rotation issued.
func (r *SQLiteRepository) ListByGroup(ctx context.Context, group string, limit int) ([]Entry, error) {
	res, err := r.List(ctx, Filter{Group: group, Limit: limit})
	if err != nil {
		return nil, err
	}
	return res.Entries, nil
}

// Prune deletes entries older than before and returns how many went.
func (r *SQLiteRepository) Prune(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		"DELETE FROM switch_history WHERE created_at < ?",
		before.UTC().Format(timeLayout),
	)
	if err != nil {
		return 0, fmt.Errorf("pruning switch history: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("pruning switch history: %w", err)
	}
	return n, nil
}
