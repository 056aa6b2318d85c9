package export

import (
	"fmt"
	"os"
	"path/filepath"
)

// Save writes the result into dir under its own filename and returns the path.
func Save(dir string, res *Result) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	path := filepath.Join(dir, res.Filename)
	if err := os.WriteFile(path, res.Data, 0644); err != nil {
		return "", fmt.Errorf("write %s: %w", res.Filename, err)
	}
	return path, nil
}
