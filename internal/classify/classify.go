// Package classify decides whether a dropped file may enter the ingest
// pipeline, based solely on its extension.
package classify

import (
	"maps"
	"path/filepath"
	"slices"
)

// Verdict is the outcome of classification.
type Verdict int

const (
	Unsupported Verdict = iota
	Supported
)

func (v Verdict) String() string {
	if v == Supported {
		return "supported"
	}
	return "unsupported"
}

// DefaultExtension is the only extension accepted out of the box.
const DefaultExtension = ".mp3"

// DefaultMediaType is the media type reported for DefaultExtension.
const DefaultMediaType = "audio/mp3"

// Classifier holds an extension allow-list. Matching is exact and
// case-sensitive: ".MP3" is not ".mp3".
type Classifier struct {
	allowed map[string]string
}

// New builds a classifier from an extension to media type map. An empty map
// falls back to Default.
func New(allowed map[string]string) *Classifier {
	if len(allowed) == 0 {
		return Default()
	}
	return &Classifier{allowed: maps.Clone(allowed)}
}

// Default accepts only DefaultExtension.
func Default() *Classifier {
	return &Classifier{allowed: map[string]string{DefaultExtension: DefaultMediaType}}
}

// Classify reports whether ext (including the leading dot) is on the allow-list.
// The empty extension is always unsupported.
func (c *Classifier) Classify(ext string) Verdict {
	if ext == "" {
		return Unsupported
	}
	if _, ok := c.allowed[ext]; ok {
		return Supported
	}
	return Unsupported
}

// ClassifyName classifies by the extension of a file name.
func (c *Classifier) ClassifyName(name string) Verdict {
	return c.Classify(filepath.Ext(name))
}

// MediaType returns the media type for a supported extension.
func (c *Classifier) MediaType(ext string) (string, bool) {
	if ext == "" {
		return "", false
	}
	mediaType, ok := c.allowed[ext]
	return mediaType, ok
}

// Extensions lists the allow-list in sorted order.
func (c *Classifier) Extensions() []string {
	return slices.Sorted(maps.Keys(c.allowed))
}
