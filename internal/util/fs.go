package util

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func EnsureDir(path string) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", path, err)
	}
	return nil
}

// SafeJoin joins root with the base name of name, dropping any directory parts
// a client may have sent.
func SafeJoin(root, name string) string {
	return filepath.Join(root, filepath.Base(name))
}

// SafeKey joins object key segments, rejecting traversal and empty parts.
func SafeKey(parts ...string) (string, error) {
	clean := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.Trim(strings.TrimSpace(p), "/")
		if p == "" || p == "." || p == ".." || strings.Contains(p, "..") {
			return "", fmt.Errorf("invalid key segment %q", p)
		}
		clean = append(clean, p)
	}
	return strings.Join(clean, "/"), nil
}
