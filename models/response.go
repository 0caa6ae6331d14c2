package models

// HarvestResponse is the response for POST /api/v1/harvest.
type HarvestResponse struct {
	Success bool  `json:"success"`
	Query   Query `json:"query"`

	// Records are the deduplicated listings in first-seen order.
	Records []NormalizedRecord `json:"records"`
	Count   int                `json:"count"`

	// Dataset is where the sink stored the records (file path or
	// collection name). Empty when nothing was persisted.
	Dataset string `json:"dataset,omitempty"`

	// StopReason explains why the scroll loop ended.
	StopReason string `json:"stop_reason,omitempty"`

	Timing TimingInfo `json:"timing"`

	// CacheStatus indicates whether the response was served from cache.
	// Values: "hit", "miss", or empty (caching not requested).
	CacheStatus string `json:"cache_status,omitempty"`

	// Error is populated only when Success is false.
	Error *ErrorDetail `json:"error,omitempty"`
}

// TimingInfo breaks down the time spent in each phase.
type TimingInfo struct {
	TotalMs   int64 `json:"total_ms"`
	HarvestMs int64 `json:"harvest_ms"`
}

// HealthResponse is the response for GET /api/v1/health.
type HealthResponse struct {
	Status    string    `json:"status"` // "healthy" or "degraded"
	Uptime    string    `json:"uptime"`
	PoolStats PoolStats `json:"pool_stats"`
	Version   string    `json:"version"`
}

// PoolStats reports the state of the browser page pool.
type PoolStats struct {
	MaxPages    int `json:"max_pages"`
	ActivePages int `json:"active_pages"`
}
