// Package filex holds small filesystem helpers for the client side.
package filex

import (
	"fmt"
	"os"
	"path/filepath"
)

// EnsureSubDir resolves dirName relative to the working directory, creates it
// when missing, and returns the absolute path.
func EnsureSubDir(dirName string) (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("resolving working directory: %w", err)
	}

	dir := filepath.Join(cwd, dirName)
	if err := os.MkdirAll(dir, 0o770); err != nil {
		return "", fmt.Errorf("creating %s: %w", dir, err)
	}
	return dir, nil
}
