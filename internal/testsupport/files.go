package testsupport

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

// WriteFile creates path, and any missing parents, with content.
func WriteFile(t testing.TB, path, content string) string {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

// WriteSized fills path with size bytes of a repeating pattern. A size <= 0
// writes a single byte.
func WriteSized(t testing.TB, path string, size int) string {
	t.Helper()
	return WriteFile(t, path, string(bytes.Repeat([]byte{0x42}, max(size, 1))))
}

// Drop writes name into the inbox of the configured tree.
func Drop(t testing.TB, inbox, name, content string) string {
	t.Helper()
	return WriteFile(t, filepath.Join(inbox, name), content)
}
