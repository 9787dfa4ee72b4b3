package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Record describes a ledger entry in a transport-friendly format.
type Record struct {
	ID                 int64  `json:"id"`
	RequestID          string `json:"requestId"`
	SourcePath         string `json:"sourcePath"`
	FileName           string `json:"fileName"`
	Stage              string `json:"stage"`
	FailedStage        string `json:"failedStage,omitempty"`
	MediaType          string `json:"mediaType,omitempty"`
	SizeBytes          int64  `json:"sizeBytes"`
	Fingerprint        string `json:"fingerprint,omitempty"`
	Destination        string `json:"destination,omitempty"`
	ErrorKind          string `json:"errorKind,omitempty"`
	ErrorMessage       string `json:"errorMessage,omitempty"`
	RelocationAttempts int    `json:"relocationAttempts"`
	CreatedAt          string `json:"createdAt,omitempty"`
	UpdatedAt          string `json:"updatedAt,omitempty"`
	FinishedAt         string `json:"finishedAt,omitempty"`
	DurationMillis     int64  `json:"durationMillis"`
}

// WorkflowStatus summarizes worker pool state.
type WorkflowStatus struct {
	Running     bool     `json:"running"`
	Workers     int      `json:"workers"`
	Queued      int      `json:"queued"`
	Active      []string `json:"active"`
	Processed   int      `json:"processed"`
	Relocated   int      `json:"relocated"`
	Quarantined int      `json:"quarantined"`
	Duplicates  int      `json:"duplicates"`
	Failed      int      `json:"failed"`
	LastError   string   `json:"lastError,omitempty"`
}

// CheckResult mirrors a preflight check outcome.
type CheckResult struct {
	Name     string `json:"name"`
	Passed   bool   `json:"passed"`
	Optional bool   `json:"optional"`
	Detail   string `json:"detail,omitempty"`
}

// Identity is the catalog account the daemon authenticated as.
type Identity struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running      bool           `json:"running"`
	PID          int            `json:"pid"`
	Offline      bool           `json:"offline"`
	InboxDir     string         `json:"inboxDir"`
	LedgerPath   string         `json:"ledgerPath"`
	LockFilePath string         `json:"lockFilePath"`
	Identity     *Identity      `json:"identity,omitempty"`
	Workflow     WorkflowStatus `json:"workflow"`
	Ledger       map[string]int `json:"ledger"`
	Preflight    []CheckResult  `json:"preflight"`
}

// RecordListResponse wraps a collection of records.
type RecordListResponse struct {
	Records []Record `json:"records"`
}

// RecordResponse wraps a single record.
type RecordResponse struct {
	Record Record `json:"record"`
}

// IngestRequest asks the daemon to run paths through the pipeline.
type IngestRequest struct {
	Paths []string `json:"paths"`
}

// IngestRejection explains why a path was not submitted.
type IngestRejection struct {
	Path  string `json:"path"`
	Error string `json:"error"`
}

// IngestResponse lists accepted and rejected paths.
type IngestResponse struct {
	Submitted []string          `json:"submitted"`
	Rejected  []IngestRejection `json:"rejected,omitempty"`
}

// ErrorResponse is the body of every non-2xx API answer.
type ErrorResponse struct {
	Error string `json:"error"`
}
