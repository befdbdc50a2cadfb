// Package storage implements the Persistence Layer (C8): atomic JSON
// writes with backup sidecars, as specified in spec.md §4.8, plus an
// optional bbolt-backed alternate store for embedders that want a single
// file instead of a directory of JSON documents.
package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/nmichlo/playerid-go/pkg/playerid/model"
)

// SaveJSON serializes value to path atomically: write to a temp file in
// the same directory, fsync, back up any existing target to
// "<target>.backup", then rename the temp file over the target. A failed
// write at any step before the final rename leaves the previous file
// untouched (I6, P7). The temp file name is suffixed with a uuid so
// concurrent writers (e.g. the Gallery Store and the Anchor Store saving
// at the same moment) never collide on the same temp path, matching the
// atomic-write idiom used across the example pack's storage layers.
func SaveJSON(path string, value interface{}) error {
	if validator, ok := value.(Validator); ok {
		if err := validator.Validate(); err != nil {
			return fmt.Errorf("%w: %v", model.ErrWriteFailed, err)
		}
	}

	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: marshal: %v", model.ErrWriteFailed, err)
	}

	dir := filepath.Dir(path)
	tmpPath := filepath.Join(dir, fmt.Sprintf(".%s.tmp.%s", filepath.Base(path), uuid.New().String()))

	f, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("%w: open temp file: %v", model.ErrWriteFailed, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("%w: write temp file: %v", model.ErrWriteFailed, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("%w: fsync temp file: %v", model.ErrWriteFailed, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("%w: close temp file: %v", model.ErrWriteFailed, err)
	}

	if _, err := os.Stat(path); err == nil {
		if err := copyFile(path, path+".backup"); err != nil {
			os.Remove(tmpPath)
			return fmt.Errorf("%w: backup previous file: %v", model.ErrWriteFailed, err)
		}
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("%w: rename temp file: %v", model.ErrWriteFailed, err)
	}
	return nil
}

// Validator is an optional interface a persisted value can implement to
// reject structurally-invalid data before it ever reaches disk.
type Validator interface {
	Validate() error
}

// LoadJSON reads and decodes path into out. Returns model.ErrNotFound if
// the file is absent (the engine treats that as an empty store), or
// model.ErrSchemaInvalid wrapping the decode error on malformed JSON.
// Syntactically malformed JSON is rejected before anything is decoded
// into out; a type mismatch or a failed Validate returns ErrSchemaInvalid
// after out has already been partly or fully filled.
func LoadJSON(path string, out interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return model.ErrNotFound
		}
		return fmt.Errorf("%w: %v", model.ErrWriteFailed, err)
	}

	var probe json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return fmt.Errorf("%w: %v", model.ErrSchemaInvalid, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: %v", model.ErrSchemaInvalid, err)
	}
	if validator, ok := out.(Validator); ok {
		if err := validator.Validate(); err != nil {
			return fmt.Errorf("%w: %v", model.ErrSchemaInvalid, err)
		}
	}
	return nil
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0o644)
}
