package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// LocalStore files finished render outputs on the local filesystem under a
// dated directory tree.
type LocalStore struct {
	outputDir string
}

// NewLocalStore creates a local output store.
func NewLocalStore(outputDir string) *LocalStore {
	return &LocalStore{outputDir: outputDir}
}

// SaveResult moves a finished output into the store and returns its final
// path: outputs/2025/08/29/20250829_143022_jobname.mp4.
func (ls *LocalStore) SaveResult(name, srcPath string) (string, error) {
	now := time.Now()
	dateDir := filepath.Join(ls.outputDir,
		fmt.Sprintf("%d", now.Year()),
		fmt.Sprintf("%02d", now.Month()),
		fmt.Sprintf("%02d", now.Day()))

	if err := os.MkdirAll(dateDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create date directory: %v", err)
	}

	timestamp := now.Format("20060102_150405")
	ext := filepath.Ext(srcPath)
	if ext == "" {
		ext = ".mp4"
	}
	finalPath := filepath.Join(dateDir,
		fmt.Sprintf("%s_%s%s", timestamp, sanitizeFilename(name), ext))

	if err := moveFile(srcPath, finalPath); err != nil {
		return "", fmt.Errorf("failed to store output: %v", err)
	}
	return finalPath, nil
}

// moveFile renames when possible and falls back to copy+remove across
// filesystems.
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Remove(src)
}

// sanitizeFilename strips path separators and characters that are invalid
// in filenames, and bounds the length.
func sanitizeFilename(name string) string {
	result := filepath.Base(name)
	for _, c := range []string{"\\", ":", "*", "?", "\"", "<", ">", "|"} {
		result = strings.ReplaceAll(result, c, "_")
	}
	result = strings.TrimSpace(result)
	if result == "" || result == "." {
		result = "untitled"
	}
	if len(result) > 100 {
		result = result[:100]
	}
	return result
}
