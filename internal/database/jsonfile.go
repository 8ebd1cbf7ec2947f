package database

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/bryan-buckman/syllabus/internal/model"
)

// JSONFileStore keeps the mapping in a pretty-printed JSON object on disk.
type JSONFileStore struct {
	path string
}

var _ Store = (*JSONFileStore)(nil)

// NewJSONFile returns a store backed by the file at path. The file is not
// touched until Load, Save or Init.
func NewJSONFile(path string) *JSONFileStore {
	return &JSONFileStore{path: path}
}

// Path returns the backing file path.
func (s *JSONFileStore) Path() string { return s.path }

func (s *JSONFileStore) Backend() string { return BackendJSON }

func (s *JSONFileStore) Close() error { return nil }

// Load reads the file. The file is expected to be provisioned ahead of time,
// so a missing file is an error rather than an empty map.
func (s *JSONFileStore) Load(_ context.Context) (model.LearnedState, error) {
	payload, err := os.ReadFile(s.path)
	if err != nil {
		return nil, unavailable("read learned state", err)
	}
	var raw map[string]*bool
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, unavailable("decode learned state", err)
	}
	if raw == nil {
		return nil, unavailable("decode learned state", errors.New("top-level value is not an object"))
	}
	m := make(model.LearnedState, len(raw))
	for title, v := range raw {
		if v == nil {
			return nil, unavailable("decode learned state", fmt.Errorf("value of %q is null", title))
		}
		m[title] = *v
	}
	return m, nil
}

// Save writes the full mapping to a temp file in the same directory and
// renames it over the old one.
func (s *JSONFileStore) Save(_ context.Context, m model.LearnedState) error {
	payload, err := encodeLearned(m)
	if err != nil {
		return unavailable("encode learned state", err)
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return unavailable("create learned state dir", err)
	}
	tmp, err := os.CreateTemp(dir, ".learned-*.json")
	if err != nil {
		return unavailable("create temp file", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		return unavailable("write learned state", err)
	}
	if err := tmp.Close(); err != nil {
		return unavailable("close learned state", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return unavailable("chmod learned state", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return unavailable("replace learned state", err)
	}
	return nil
}

// Init creates an empty mapping if the file does not exist yet.
// It reports whether a file was created.
func (s *JSONFileStore) Init(ctx context.Context) (bool, error) {
	if _, err := os.Stat(s.path); err == nil {
		return false, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return false, unavailable("stat learned state", err)
	}
	if err := s.Save(ctx, model.LearnedState{}); err != nil {
		return false, err
	}
	return true, nil
}

// encodeLearned renders m with sorted keys, 4-space indent and raw UTF-8 so
// the file stays diff-friendly and hand-editable.
func encodeLearned(m model.LearnedState) ([]byte, error) {
	if m == nil {
		m = model.LearnedState{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(map[string]bool(m)); err != nil {
		return nil, fmt.Errorf("marshal: %w", err)
	}
	return buf.Bytes(), nil
}
