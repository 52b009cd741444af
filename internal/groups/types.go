package groups

import (
	"context"
	"math"
	"time"
)

// Group is a read-only copy of one scene group.
type Group struct {
	Name string `json:"name"`

	// Scenes is the rotation order. Names are unique within a group.
	Scenes []string `json:"scenes"`

	// Interval is the time each scene stays on program, in seconds.
	Interval float64 `json:"interval"`

	// Hidden lists scenes skipped by rotation, sorted.
	Hidden []string `json:"hidden"`
}

// View is what a rotation pass works from: the visible scenes in order and
// the interval to wait after each one.
type View struct {
	Name     string
	Scenes   []string
	Interval time.Duration
}

// ChangeKind classifies a committed store mutation.
type ChangeKind string

// Change kinds.
const (
	ChangeCreated ChangeKind = "created"
	ChangeDeleted ChangeKind = "deleted"
	ChangeRenamed ChangeKind = "renamed"
	ChangeUpdated ChangeKind = "updated"
	ChangeLoaded  ChangeKind = "loaded"
)

// Change describes a committed mutation. OldName is set for renames.
type Change struct {
	Kind    ChangeKind
	Name    string
	OldName string
}

// SceneSet answers whether a scene currently exists in OBS.
// *obs.Directory satisfies it.
type SceneSet interface {
	Contains(name string) bool
}

// Repository loads and saves the settings document.
type Repository interface {
	// Load returns ErrNoDocument when nothing has been saved, or an error
	// wrapping ErrPersistence when the stored data is unreadable.
	Load(ctx context.Context) (*Document, error)

	// Save replaces the stored document.
	Save(ctx context.Context, doc *Document) error
}

// Logger defines the logging interface used by the Store.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Interval bounds in seconds. A rotation faster than MinInterval would
// flood OBS with switch requests; MaxInterval keeps every interval
// representable as a time.Duration.
const (
	MinInterval = 0.1
	MaxInterval = 1e9
)

// ValidInterval reports whether seconds is a usable rotation interval.
// NaN and infinities are rejected.
func ValidInterval(seconds float64) bool {
	return seconds >= MinInterval && seconds <= MaxInterval
}

// maxDurationSeconds is the largest whole number of seconds a
// time.Duration can hold.
const maxDurationSeconds = float64(math.MaxInt64 / int64(time.Second))

// secondsToDuration converts seconds, saturating at both ends instead of
// overflowing.
func secondsToDuration(s float64) time.Duration {
	switch {
	case math.IsNaN(s) || s <= 0:
		return 0
	case s >= maxDurationSeconds:
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(s * float64(time.Second))
}
