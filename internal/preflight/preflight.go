package preflight

import (
	"context"

	"tracksync/internal/config"
)

// Result reports the outcome of a single preflight check. A failed Optional
// check is a warning; any other failure should stop the daemon from starting.
type Result struct {
	Name     string `json:"name"`
	Passed   bool   `json:"passed"`
	Optional bool   `json:"optional,omitempty"`
	Detail   string `json:"detail"`
}

// RunAll executes all applicable preflight checks for the given config.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Inbox directory", cfg.Paths.InboxDir),
		CheckDirectoryAccess("Library directory", cfg.Paths.LibraryDir),
		CheckDirectoryAccess("Quarantine directory", cfg.Paths.QuarantineDir),
		CheckDirectoryAccess("State directory", cfg.Paths.StateDir),
		CheckSameDevice("Inbox/library filesystem", cfg.Paths.InboxDir, cfg.Paths.LibraryDir),
		CheckSameDevice("Inbox/quarantine filesystem", cfg.Paths.InboxDir, cfg.Paths.QuarantineDir),
		CheckFreeSpace("Library free space", cfg.Paths.LibraryDir),
	}
	if cfg.Catalog.Enabled {
		results = append(results, CheckCatalog(ctx, cfg.Catalog.URL))
	}
	return results
}

// Blocking returns the failed checks that are not optional.
func Blocking(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if !r.Passed && !r.Optional {
			out = append(out, r)
		}
	}
	return out
}
