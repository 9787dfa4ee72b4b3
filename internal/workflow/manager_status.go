package workflow

import (
	"slices"

	"tracksync/internal/ingest"
)

// StatusSummary represents lightweight workflow diagnostics.
type StatusSummary struct {
	Running     bool           `json:"running"`
	Workers     int            `json:"workers"`
	Queued      int            `json:"queued"`
	Active      []string       `json:"active"`
	Processed   int            `json:"processed"`
	Relocated   int            `json:"relocated"`
	Quarantined int            `json:"quarantined"`
	Duplicates  int            `json:"duplicates"`
	Failed      int            `json:"failed"`
	LastError   string         `json:"last_error,omitempty"`
	LastRecord  *ingest.Record `json:"-"`
}

// Status returns the latest workflow information.
func (m *Manager) Status() StatusSummary {
	m.mu.RLock()
	defer m.mu.RUnlock()

	summary := StatusSummary{
		Running:     m.running,
		Workers:     m.workers,
		Queued:      len(m.jobs),
		Active:      make([]string, 0, len(m.active)),
		Processed:   m.processed,
		Relocated:   m.relocated,
		Quarantined: m.quarantined,
		Duplicates:  m.duplicates,
		Failed:      m.failed,
	}
	for path := range m.active {
		summary.Active = append(summary.Active, path)
	}
	slices.Sort(summary.Active)
	if m.lastErr != nil {
		summary.LastError = m.lastErr.Error()
	}
	if m.lastRecord != nil {
		copy := *m.lastRecord
		summary.LastRecord = &copy
	}
	return summary
}
