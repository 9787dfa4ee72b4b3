// Package shard maps content fingerprints to fan-out directory paths.
//
// A fingerprint is split into four two-byte shards followed by the remaining
// bytes, so "aabbccddeeff" becomes /aa/bb/cc/dd/eeff. Derivation is pure and
// performs no I/O.
package shard

import (
	"path/filepath"
	"strings"
)

// Depth is the number of two-byte shard directories above the remainder.
const Depth = 4

// Width is the byte length of each shard directory name.
const Width = 2

// Path is the sharded location derived from one fingerprint. The zero value
// corresponds to the empty fingerprint.
type Path struct {
	shards    [Depth]string
	remainder string
}

// Derive splits fingerprint into Depth shards of Width bytes and a remainder.
// Short fingerprints yield shorter or empty segments; they are kept verbatim.
func Derive(fingerprint string) Path {
	var p Path
	rest := fingerprint
	for i := range Depth {
		n := min(Width, len(rest))
		p.shards[i] = rest[:n]
		rest = rest[n:]
	}
	p.remainder = rest
	return p
}

// Shards returns the four shard segments in order.
func (p Path) Shards() [Depth]string {
	return p.shards
}

// Remainder returns the fingerprint bytes after the shards.
func (p Path) Remainder() string {
	return p.remainder
}

// Segments returns all five segments verbatim, empty ones included.
func (p Path) Segments() []string {
	out := make([]string, 0, Depth+1)
	out = append(out, p.shards[:]...)
	return append(out, p.remainder)
}

// String renders the logical path rooted at "/". Shards are always emitted,
// even when empty; the remainder only when present.
//
//	Derive("aabbccddeeff").String() == "/aa/bb/cc/dd/eeff"
//	Derive("ab").String()           == "/ab///"
func (p Path) String() string {
	var b strings.Builder
	for _, s := range p.shards {
		b.WriteByte('/')
		b.WriteString(s)
	}
	if p.remainder != "" {
		b.WriteByte('/')
		b.WriteString(p.remainder)
	}
	return b.String()
}

// Join returns the physical directory for p under root. Empty segments
// collapse because filesystems cannot hold empty directory names.
func (p Path) Join(root string) string {
	parts := make([]string, 0, Depth+2)
	parts = append(parts, root)
	parts = append(parts, p.Segments()...)
	return filepath.Join(parts...)
}

// Complete reports whether every shard has full Width and a remainder exists.
func (p Path) Complete() bool {
	for _, s := range p.shards {
		if len(s) != Width {
			return false
		}
	}
	return p.remainder != ""
}

// Safe reports whether every non-empty segment is usable as a single
// directory name: no separators, no NUL, and not "." or "..".
func (p Path) Safe() bool {
	for _, seg := range p.Segments() {
		if seg == "" {
			continue
		}
		if seg == "." || seg == ".." {
			return false
		}
		if strings.ContainsAny(seg, "/\\\x00") {
			return false
		}
	}
	return true
}
