// Package media holds the file description exchanged between the ingest
// pipeline and its metadata, catalog, and upload collaborators.
package media

// File describes one audio file as it moves through ingest. Name, Path,
// MediaType and Size are known before metadata loading; Fingerprint and Tags
// are filled by the metadata collaborator.
type File struct {
	Name        string            `json:"name"`
	Path        string            `json:"path"`
	MediaType   string            `json:"type"`
	Size        int64             `json:"size"`
	Fingerprint string            `json:"hash,omitempty"`
	Tags        map[string]string `json:"tags,omitempty"`
}

// Identity is the catalog account the daemon runs as.
type Identity struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Username string `json:"username"`
}
