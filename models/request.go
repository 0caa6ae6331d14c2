package models

// HarvestRequest is the payload for POST /api/v1/harvest.
type HarvestRequest struct {
	// Location is the area half of the search query. Required.
	Location string `json:"location" binding:"required"`

	// Term is the category half of the search query. Required.
	Term string `json:"term" binding:"required"`

	// Timeout is the maximum duration in seconds for the whole harvest
	// (navigation + scrolling + persistence). Default: 600. Max: 1800.
	Timeout int `json:"timeout,omitempty" binding:"omitempty,min=1,max=1800"`

	// MaxAge allows serving a cached response younger than this many
	// milliseconds. 0 disables the cache lookup.
	MaxAge int `json:"max_age,omitempty" binding:"omitempty,min=0"`
}

// Defaults applies default values to unset fields.
func (r *HarvestRequest) Defaults() {
	if r.Timeout == 0 {
		r.Timeout = 600
	}
}

// Query returns the query this request asks for.
func (r *HarvestRequest) Query() Query {
	return Query{Location: r.Location, Term: r.Term}
}

// RunRequest is the payload for POST /api/v1/runs. Every location is
// combined with every term.
type RunRequest struct {
	Locations []string `json:"locations" binding:"required,min=1,max=100"`
	Terms     []string `json:"terms" binding:"required,min=1,max=50"`
}
