package util

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

func EnsureDir(path string) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", path, err)
	}
	return nil
}

func SafeJoin(root, name string) string {
	return filepath.Join(root, filepath.Base(name))
}

// SaveUpload stores an uploaded file under root, stripping any path from the
// client-supplied name. It returns the stored path, the content hash and the
// byte count.
func SaveUpload(root, name string, r io.Reader) (path, sha string, size int64, err error) {
	if err := EnsureDir(root); err != nil {
		return "", "", 0, err
	}
	path = SafeJoin(root, name)
	f, err := os.Create(path)
	if err != nil {
		return "", "", 0, fmt.Errorf("create upload file: %w", err)
	}
	defer f.Close()

	raw, err := io.ReadAll(r)
	if err != nil {
		return "", "", 0, fmt.Errorf("read upload: %w", err)
	}
	if _, err := f.Write(raw); err != nil {
		return "", "", 0, fmt.Errorf("write upload: %w", err)
	}
	return path, SHA256Hex(raw), int64(len(raw)), nil
}
