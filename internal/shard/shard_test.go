package shard_test

import (
	"path/filepath"
	"slices"
	"testing"

	"tracksync/internal/shard"
)

func TestDeriveShardArity(t *testing.T) {
	p := shard.Derive("aabbccddeeff")
	if got := p.String(); got != "/aa/bb/cc/dd/eeff" {
		t.Fatalf("String() = %q", got)
	}
	if !p.Complete() {
		t.Fatal("expected complete path")
	}
}

func TestDeriveIsDeterministic(t *testing.T) {
	fp := "0123456789abcdef0123456789abcdef"
	first := shard.Derive(fp)
	for range 10 {
		if again := shard.Derive(fp); again != first {
			t.Fatalf("Derive not deterministic: %v vs %v", again, first)
		}
	}
}

func TestDeriveShortFingerprints(t *testing.T) {
	cases := []struct {
		fingerprint string
		logical     string
		segments    []string
	}{
		{"", "////", []string{"", "", "", "", ""}},
		{"a", "/a///", []string{"a", "", "", "", ""}},
		{"ab", "/ab///", []string{"ab", "", "", "", ""}},
		{"abc", "/ab/c//", []string{"ab", "c", "", "", ""}},
		{"aabbccdd", "/aa/bb/cc/dd", []string{"aa", "bb", "cc", "dd", ""}},
		{"aabbccdde", "/aa/bb/cc/dd/e", []string{"aa", "bb", "cc", "dd", "e"}},
	}
	for _, tc := range cases {
		t.Run(tc.fingerprint, func(t *testing.T) {
			p := shard.Derive(tc.fingerprint)
			if got := p.String(); got != tc.logical {
				t.Fatalf("String() = %q, want %q", got, tc.logical)
			}
			if got := p.Segments(); !slices.Equal(got, tc.segments) {
				t.Fatalf("Segments() = %q, want %q", got, tc.segments)
			}
			if p.Complete() {
				t.Fatal("short fingerprint reported complete")
			}
		})
	}
}

func TestJoinCollapsesEmptySegments(t *testing.T) {
	root := filepath.Join("/srv", "Library")
	if got := shard.Derive("aabbccddeeff").Join(root); got != filepath.Join(root, "aa", "bb", "cc", "dd", "eeff") {
		t.Fatalf("Join() = %q", got)
	}
	if got := shard.Derive("ab").Join(root); got != filepath.Join(root, "ab") {
		t.Fatalf("Join() for short fingerprint = %q", got)
	}
}

func TestSafeRejectsTraversal(t *testing.T) {
	cases := map[string]bool{
		"aabbccddeeff": true,
		"ab":           true,
		"..bbccddee":   false,
		"aa..ccddee":   false,
		"aabbccdd..":   false,
		"a/bbccddee":   false,
		"aabbccdde/f":  false,
		"aa\x00bccdd":  false,
		".abbccdd":     true,
	}
	for fp, want := range cases {
		if got := shard.Derive(fp).Safe(); got != want {
			t.Fatalf("Safe(%q) = %v, want %v", fp, got, want)
		}
	}
}
