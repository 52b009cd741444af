package groups

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// Document is the persisted settings document:
//
//	{"scene_groups": {"Intro": {"scenes": ["Cam1","Cam2"], "interval": 5}},
//	 "hidden_scenes": {"Intro": ["Cam2"]}}
type Document struct {
	SceneGroups  map[string]GroupDocument `json:"scene_groups"`
	HiddenScenes map[string][]string      `json:"hidden_scenes"`
}

// GroupDocument is one entry of scene_groups.
type GroupDocument struct {
	Scenes   []string `json:"scenes"`
	Interval float64  `json:"interval"`
}

// NewDocument returns an empty document with both maps allocated.
func NewDocument() *Document {
	return &Document{
		SceneGroups:  make(map[string]GroupDocument),
		HiddenScenes: make(map[string][]string),
	}
}

// JSONFileRepository stores the document as a JSON file.
//
// Writes go to a temporary file in the same directory which is then renamed
// over the target, so a crash never leaves a half-written document.
type JSONFileRepository struct {
	path            string
	defaultInterval float64
	mu              sync.Mutex
}

// Ensure JSONFileRepository implements Repository.
var _ Repository = (*JSONFileRepository)(nil)

// NewJSONFileRepository creates a repository at path. defaultInterval is
// assigned to groups migrated from the legacy plugin format.
func NewJSONFileRepository(path string, defaultInterval float64) *JSONFileRepository {
	return &JSONFileRepository{path: path, defaultInterval: defaultInterval}
}

// Path returns the file location.
func (r *JSONFileRepository) Path() string {
	return r.path
}

// Load reads and parses the document. Unknown top-level and per-group fields
// are ignored.
func (r *JSONFileRepository) Load(_ context.Context) (*Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNoDocument
		}
		return nil, fmt.Errorf("%w: reading %s: %w", ErrPersistence, r.path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrNoDocument
	}

	return decodeDocument(data, r.defaultInterval)
}

// decodeDocument accepts the current format and the legacy plugin format,
// where the file was a bare {"group": ["scene", ...]} map.
func decodeDocument(data []byte, defaultInterval float64) (*Document, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return nil, fmt.Errorf("%w: malformed document: %w", ErrPersistence, err)
	}

	_, hasGroups := top["scene_groups"]
	_, hasHidden := top["hidden_scenes"]
	if hasGroups || hasHidden {
		doc := NewDocument()
		if err := json.Unmarshal(data, doc); err != nil {
			return nil, fmt.Errorf("%w: malformed document: %w", ErrPersistence, err)
		}
		if doc.SceneGroups == nil {
			doc.SceneGroups = make(map[string]GroupDocument)
		}
		if doc.HiddenScenes == nil {
			doc.HiddenScenes = make(map[string][]string)
		}
		return doc, nil
	}

	doc := NewDocument()
	for name, raw := range top {
		var scenes []string
		if err := json.Unmarshal(raw, &scenes); err != nil {
			return nil, fmt.Errorf("%w: unrecognised document layout at %q", ErrPersistence, name)
		}
		doc.SceneGroups[name] = GroupDocument{Scenes: scenes, Interval: defaultInterval}
	}
	return doc, nil
}

// Save writes the document atomically with 0600 permissions.
func (r *JSONFileRepository) Save(_ context.Context, doc *Document) error {
	data, err := encodeDocument(doc)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	dir := filepath.Dir(r.path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("%w: creating %s: %w", ErrPersistence, dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(r.path)+"-*.tmp")
	if err != nil {
		return fmt.Errorf("%w: creating temp file: %w", ErrPersistence, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: writing temp file: %w", ErrPersistence, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: syncing temp file: %w", ErrPersistence, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: closing temp file: %w", ErrPersistence, err)
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return fmt.Errorf("%w: chmod temp file: %w", ErrPersistence, err)
	}
	if err := os.Rename(tmpName, r.path); err != nil {
		return fmt.Errorf("%w: replacing %s: %w", ErrPersistence, r.path, err)
	}
	return nil
}

// encodeDocument renders the document deterministically. Map keys are sorted
// by encoding/json; scene lists keep their order.
func encodeDocument(doc *Document) ([]byte, error) {
	if doc == nil {
		doc = NewDocument()
	}
	out := Document{SceneGroups: doc.SceneGroups, HiddenScenes: doc.HiddenScenes}
	if out.SceneGroups == nil {
		out.SceneGroups = map[string]GroupDocument{}
	}
	if out.HiddenScenes == nil {
		out.HiddenScenes = map[string][]string{}
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("%w: encoding document: %w", ErrPersistence, err)
	}
	return append(data, '\n'), nil
}
