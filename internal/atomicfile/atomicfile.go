// Package atomicfile writes whole JSON documents with crash-safe
// visibility: content lands in a temporary file in the destination
// directory and is renamed over the target in one step. A reader never
// observes a partially-written document, only the old content or the new.
package atomicfile

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// WriteJSON atomically replaces path with the JSON encoding of v.
// The temporary file is created in the same directory as path so the final
// rename stays within one filesystem.
func WriteJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(path)
	tmp := filepath.Join(dir, fmt.Sprintf(".%s.%s.tmp", filepath.Base(path), uuid.New().String()[:8]))

	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write temporary file: %w", err)
	}

	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}

	return nil
}

// ReadJSON reads the JSON document at path into v.
// Returns the underlying os error unwrapped-checkable via os.IsNotExist.
func ReadJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("corrupt document at %s: %w", path, err)
	}

	return nil
}
