package models

// RunResponse is the immediate response for POST /api/v1/runs.
type RunResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Total  int    `json:"total"`
}

// RunStatusResponse is the response for GET /api/v1/runs/:id.
type RunStatusResponse struct {
	ID        string         `json:"id"`
	Status    string         `json:"status"` // "processing", "completed", "partial", "failed"
	Completed int            `json:"completed"`
	Failed    int            `json:"failed"`
	Total     int            `json:"total"`
	Records   int            `json:"records"`
	Queries   []QueryOutcome `json:"queries,omitempty"`
}

// QueryOutcome summarises one finished query of a run.
type QueryOutcome struct {
	Query      Query        `json:"query"`
	Records    int          `json:"records"`
	Dataset    string       `json:"dataset,omitempty"`
	StopReason string       `json:"stop_reason,omitempty"`
	DurationMs int64        `json:"duration_ms"`
	Error      *ErrorDetail `json:"error,omitempty"`
}
