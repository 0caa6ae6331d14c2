package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/harvest/cache"
	"github.com/use-agent/harvest/harvest"
	"github.com/use-agent/harvest/models"
	"github.com/use-agent/harvest/runner"
	"github.com/use-agent/harvest/webhook"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubRunner struct {
	mu     sync.Mutex
	calls  []models.Query
	result func(q models.Query) *runner.Result
}

func (s *stubRunner) RunOne(_ context.Context, q models.Query) *runner.Result {
	s.mu.Lock()
	s.calls = append(s.calls, q)
	s.mu.Unlock()
	return s.result(q)
}

func (s *stubRunner) RunAll(ctx context.Context, queries []models.Query, onResult func(*runner.Result)) *runner.Summary {
	sum := &runner.Summary{Total: len(queries)}
	for _, q := range queries {
		res := s.RunOne(ctx, q)
		if res.Err != nil {
			sum.Failed++
		} else {
			sum.Completed++
		}
		sum.Records += len(res.Records)
		sum.Results = append(sum.Results, res)
		onResult(res)
	}
	return sum
}

func ok(q models.Query) *runner.Result {
	return &runner.Result{
		Query:   q,
		Records: []models.NormalizedRecord{{Title: "A", Location: q.Location, SearchTerm: q.Term}},
		Dataset: "data_scraped/x.csv",
		Stop:    harvest.StopStagnation,
	}
}

func postJSON(h gin.HandlerFunc, path string, body any) *httptest.ResponseRecorder {
	r := gin.New()
	r.POST(path, h)
	b, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return v
}

func TestHarvest_Success(t *testing.T) {
	rn := &stubRunner{result: ok}
	w := postJSON(Harvest(rn, nil), "/harvest", gin.H{"location": " Domlur ", "term": "drill machine"})

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body)
	}
	resp := decode[models.HarvestResponse](t, w)
	if !resp.Success || resp.Count != 1 || resp.StopReason != "stagnation" {
		t.Errorf("resp = %+v", resp)
	}
	if rn.calls[0].Location != "Domlur" {
		t.Errorf("location not trimmed: %q", rn.calls[0].Location)
	}
}

func TestHarvest_InvalidInput(t *testing.T) {
	rn := &stubRunner{result: ok}
	tests := []struct {
		name string
		body any
	}{
		{"missing term", gin.H{"location": "Domlur"}},
		{"blank location", gin.H{"location": "   ", "term": "drill"}},
		{"timeout too large", gin.H{"location": "Domlur", "term": "drill", "timeout": 5000}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := postJSON(Harvest(rn, nil), "/harvest", tt.body)
			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", w.Code)
			}
		})
	}
	if len(rn.calls) != 0 {
		t.Errorf("runner called %d times for invalid input", len(rn.calls))
	}
}

func TestHarvest_PartialResultsOnTimeout(t *testing.T) {
	rn := &stubRunner{result: func(q models.Query) *runner.Result {
		res := ok(q)
		res.Stop = harvest.StopCanceled
		res.Err = models.NewHarvestError(models.ErrCodeTimeout, "harvest deadline exceeded", context.DeadlineExceeded)
		return res
	}}
	w := postJSON(Harvest(rn, nil), "/harvest", gin.H{"location": "Domlur", "term": "drill"})

	if w.Code != http.StatusGatewayTimeout {
		t.Fatalf("status = %d, want 504", w.Code)
	}
	resp := decode[models.HarvestResponse](t, w)
	if resp.Success || resp.Error == nil || resp.Error.Code != models.ErrCodeTimeout {
		t.Errorf("resp = %+v", resp)
	}
	if resp.Count != 1 || resp.Dataset == "" {
		t.Errorf("partial records should be returned: %+v", resp)
	}
}

func TestHarvest_EmptyResultIs422(t *testing.T) {
	rn := &stubRunner{result: func(q models.Query) *runner.Result {
		return &runner.Result{Query: q, Stop: harvest.StopContainerGone, Err: models.ErrEmptyResult}
	}}
	w := postJSON(Harvest(rn, nil), "/harvest", gin.H{"location": "Domlur", "term": "drill"})

	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", w.Code)
	}
	resp := decode[models.HarvestResponse](t, w)
	if resp.Records == nil {
		t.Error("records should encode as [] not null")
	}
}

func TestHarvest_Cache(t *testing.T) {
	rn := &stubRunner{result: ok}
	cc := cache.New(10, 0, nil)
	h := Harvest(rn, cc)
	body := gin.H{"location": "Domlur", "term": "drill", "max_age": 60000}

	first := decode[models.HarvestResponse](t, postJSON(h, "/harvest", body))
	second := decode[models.HarvestResponse](t, postJSON(h, "/harvest", body))

	if first.CacheStatus != "miss" || second.CacheStatus != "hit" {
		t.Errorf("cache status = %q then %q", first.CacheStatus, second.CacheStatus)
	}
	if len(rn.calls) != 1 {
		t.Errorf("runner calls = %d, want 1", len(rn.calls))
	}
	if second.Count != 1 {
		t.Errorf("cached count = %d", second.Count)
	}
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []*webhook.Event
}

func (n *recordingNotifier) Notify(ev *webhook.Event) <-chan struct{} {
	n.mu.Lock()
	n.events = append(n.events, ev)
	n.mu.Unlock()
	done := make(chan struct{})
	close(done)
	return done
}

func TestRuns_PostThenGet(t *testing.T) {
	rn := &stubRunner{result: func(q models.Query) *runner.Result {
		if q.Location == "Attur" {
			return &runner.Result{Query: q, Err: models.ErrNoContainer}
		}
		return ok(q)
	}}
	store := NewRunStore()
	n := &recordingNotifier{}

	r := gin.New()
	r.POST("/runs", PostRun(context.Background(), rn, store, n))
	r.GET("/runs/:id", GetRun(store))

	b, _ := json.Marshal(gin.H{"locations": []string{"Domlur", "Attur", " "}, "terms": []string{"drill", "saw"}})
	req := httptest.NewRequest(http.MethodPost, "/runs", bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body)
	}
	created := decode[models.RunResponse](t, w)
	if created.Total != 4 || created.Status != RunProcessing || created.ID == "" {
		t.Fatalf("created = %+v", created)
	}

	store.Wait()

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/runs/"+created.ID, nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	st := decode[models.RunStatusResponse](t, w)
	if st.Status != RunPartial || st.Completed != 2 || st.Failed != 2 || st.Records != 2 || len(st.Queries) != 4 {
		t.Errorf("status = %+v", st)
	}
	if st.Queries[2].Error == nil || st.Queries[2].Error.Code != models.ErrCodeNoContainer {
		t.Errorf("Attur outcome = %+v", st.Queries[2])
	}

	if len(n.events) != 1 || n.events[0].Type != webhook.EventRunCompleted || n.events[0].RunID != created.ID {
		t.Errorf("events = %+v", n.events)
	}
}

func TestRuns_NotFound(t *testing.T) {
	r := gin.New()
	r.GET("/runs/:id", GetRun(NewRunStore()))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/runs/nope", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestRunStore_Sweep(t *testing.T) {
	store := NewRunStore()
	done := store.create(1)
	store.finish(done, &runner.Summary{Total: 1, Completed: 1})
	running := store.create(1)

	store.Sweep(-time.Second)

	if _, ok := store.Get(done); ok {
		t.Error("finished run should be swept")
	}
	if _, ok := store.Get(running); !ok {
		t.Error("running run must survive a sweep")
	}
}

type fixedPool models.PoolStats

func (p fixedPool) Stats() models.PoolStats { return models.PoolStats(p) }

func TestHealth(t *testing.T) {
	tests := []struct {
		stats models.PoolStats
		want  string
	}{
		{models.PoolStats{MaxPages: 1, ActivePages: 0}, "healthy"},
		{models.PoolStats{MaxPages: 1, ActivePages: 1}, "degraded"},
	}
	for _, tt := range tests {
		r := gin.New()
		r.GET("/health", Health(fixedPool(tt.stats), time.Now()))
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

		resp := decode[models.HealthResponse](t, w)
		if resp.Status != tt.want {
			t.Errorf("stats %+v: status = %q, want %q", tt.stats, resp.Status, tt.want)
		}
	}
}
