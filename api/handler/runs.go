package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/use-agent/harvest/models"
	"github.com/use-agent/harvest/runner"
	"github.com/use-agent/harvest/webhook"
)

// Run statuses.
const (
	RunProcessing = "processing"
	RunCompleted  = "completed"
	RunPartial    = "partial"
	RunFailed     = "failed"
)

// BatchRunner harvests a list of queries sequentially.
type BatchRunner interface {
	RunAll(ctx context.Context, queries []models.Query, onResult func(*runner.Result)) *runner.Summary
}

// EventNotifier receives the run.completed event.
type EventNotifier interface {
	Notify(event *webhook.Event) <-chan struct{}
}

type runJob struct {
	status    models.RunStatusResponse
	createdAt time.Time
}

// RunStore holds in-flight and finished runs. It is safe for concurrent use.
type RunStore struct {
	mu   sync.RWMutex
	runs map[string]*runJob
	wg   sync.WaitGroup
}

// NewRunStore creates an empty store.
func NewRunStore() *RunStore {
	return &RunStore{runs: make(map[string]*runJob)}
}

func (s *RunStore) create(total int) string {
	id := uuid.NewString()
	s.mu.Lock()
	s.runs[id] = &runJob{
		status: models.RunStatusResponse{
			ID:     id,
			Status: RunProcessing,
			Total:  total,
		},
		createdAt: time.Now(),
	}
	s.mu.Unlock()
	return id
}

func (s *RunStore) record(id string, res *runner.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.runs[id]
	if !ok {
		return
	}
	st := &job.status
	if res.Err != nil {
		st.Failed++
	} else {
		st.Completed++
	}
	st.Records += len(res.Records)
	st.Queries = append(st.Queries, res.Outcome())
}

func (s *RunStore) finish(id string, sum *runner.Summary) models.RunStatusResponse {
	s.mu.Lock()
	defer s.mu.Unlock()
	job := s.runs[id]
	st := &job.status
	switch {
	case sum.Total > 0 && sum.Failed == sum.Total:
		st.Status = RunFailed
	case sum.Failed > 0 || sum.Completed+sum.Failed < sum.Total:
		st.Status = RunPartial
	default:
		st.Status = RunCompleted
	}
	return snapshot(st)
}

// Get returns a copy of a run's status.
func (s *RunStore) Get(id string) (models.RunStatusResponse, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.runs[id]
	if !ok {
		return models.RunStatusResponse{}, false
	}
	return snapshot(&job.status), true
}

// Sweep drops finished runs older than maxAge.
func (s *RunStore) Sweep(maxAge time.Duration) {
	cutoff := time.Now().Add(-maxAge)
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, job := range s.runs {
		if job.status.Status != RunProcessing && job.createdAt.Before(cutoff) {
			delete(s.runs, id)
		}
	}
}

// Wait blocks until every background run has finished.
func (s *RunStore) Wait() {
	s.wg.Wait()
}

func snapshot(st *models.RunStatusResponse) models.RunStatusResponse {
	out := *st
	out.Queries = append([]models.QueryOutcome(nil), st.Queries...)
	return out
}

// PostRun returns a handler for POST /api/v1/runs.
// It plans locations × terms and harvests them in the background.
// ctx bounds every run started through this handler; cancel it on shutdown.
func PostRun(ctx context.Context, rn BatchRunner, store *RunStore, notifier EventNotifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.RunRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			invalidInput(c, err.Error())
			return
		}

		queries := runner.Plan(nonBlank(req.Locations), nonBlank(req.Terms))
		if len(queries) == 0 {
			invalidInput(c, "locations and terms must contain at least one non-blank entry")
			return
		}

		id := store.create(len(queries))
		store.wg.Add(1)
		go func() {
			defer store.wg.Done()
			sum := rn.RunAll(ctx, queries, func(res *runner.Result) {
				store.record(id, res)
			})
			final := store.finish(id, sum)

			slog.Info("run finished",
				"id", id,
				"status", final.Status,
				"completed", final.Completed,
				"failed", final.Failed,
				"total", final.Total,
			)
			if notifier != nil {
				notifier.Notify(webhook.NewEvent(webhook.EventRunCompleted, id, final))
			}
		}()

		c.JSON(http.StatusAccepted, models.RunResponse{
			ID:     id,
			Status: RunProcessing,
			Total:  len(queries),
		})
	}
}

// GetRun returns a handler for GET /api/v1/runs/:id.
func GetRun(store *RunStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		st, ok := store.Get(c.Param("id"))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{
				"success": false,
				"error": models.ErrorDetail{
					Code:    models.ErrCodeInvalidInput,
					Message: "run not found",
				},
			})
			return
		}
		c.JSON(http.StatusOK, st)
	}
}

func nonBlank(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
