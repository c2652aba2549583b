// Package export writes a computed travel-time table to disk.
package export

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"transitmatrix/internal/transit"
)

// WriteJSON writes table to path as two-space indented JSON. The file is
// written to a temporary sibling and renamed, so an existing file is only
// replaced by a complete one.
func WriteJSON(path string, table *transit.Table) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".travel-times-*.json")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	if err := enc.Encode(table); err != nil {
		return fmt.Errorf("encode travel times: %w", err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}
