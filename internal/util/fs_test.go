package util

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSafeJoinDropsDirectories(t *testing.T) {
	got := SafeJoin("/data/in", "../../etc/passwd")
	if got != filepath.Join("/data/in", "passwd") {
		t.Fatalf("unexpected join: %s", got)
	}
}

func TestSafeKey(t *testing.T) {
	key, err := SafeKey("reports", "abc", "resume.md")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if key != "reports/abc/resume.md" {
		t.Fatalf("unexpected key: %s", key)
	}
	if _, err := SafeKey("reports", "..", "x"); err == nil {
		t.Fatalf("expected traversal to be rejected")
	}
	if _, err := SafeKey("reports", ""); err == nil {
		t.Fatalf("expected empty segment to be rejected")
	}
}

func TestWriteTextAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "out.md")
	if err := WriteTextAtomic(path, "# Résumé"); err != nil {
		t.Fatalf("write: %v", err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(b) != "# Résumé" {
		t.Fatalf("unexpected content: %q", b)
	}
	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Fatalf("expected temp file to be renamed away, found %d entries", len(entries))
	}
}
