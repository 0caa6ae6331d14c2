package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/harvest/cache"
	"github.com/use-agent/harvest/models"
	"github.com/use-agent/harvest/runner"
)

// QueryRunner harvests one query end to end.
type QueryRunner interface {
	RunOne(ctx context.Context, q models.Query) *runner.Result
}

// Harvest returns a handler for POST /api/v1/harvest.
//
// Orchestration flow:
//  1. Parse & validate request, apply defaults.
//  2. Cache lookup when max_age is set.
//  3. RunOne under the request timeout (open → harvest → persist).
//  4. Respond; partial records ride along with an error.
//  5. Cache store for successful harvests.
func Harvest(rn QueryRunner, cc *cache.Cache) gin.HandlerFunc {
	return func(c *gin.Context) {
		totalStart := time.Now()

		// ── 1. Parse request ────────────────────────────────────────
		var req models.HarvestRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			invalidInput(c, err.Error())
			return
		}
		req.Location = strings.TrimSpace(req.Location)
		req.Term = strings.TrimSpace(req.Term)
		if req.Location == "" || req.Term == "" {
			invalidInput(c, "location and term must not be blank")
			return
		}
		req.Defaults()
		q := req.Query()

		// ── 2. Cache lookup ─────────────────────────────────────────
		if cc != nil && req.MaxAge > 0 {
			if cached, hit := cc.Get(cache.Key(q), req.MaxAge); hit {
				resp := *cached
				resp.CacheStatus = "hit"
				resp.Timing = models.TimingInfo{TotalMs: time.Since(totalStart).Milliseconds()}
				c.JSON(http.StatusOK, resp)
				return
			}
		}

		// ── 3. Harvest ──────────────────────────────────────────────
		ctx, cancel := context.WithTimeout(c.Request.Context(), time.Duration(req.Timeout)*time.Second)
		defer cancel()

		res := rn.RunOne(ctx, q)

		resp := &models.HarvestResponse{
			Success:    res.Err == nil,
			Query:      q,
			Records:    res.Records,
			Count:      len(res.Records),
			Dataset:    res.Dataset,
			StopReason: string(res.Stop),
			Timing: models.TimingInfo{
				TotalMs:   time.Since(totalStart).Milliseconds(),
				HarvestMs: res.Duration.Milliseconds(),
			},
		}
		if resp.Records == nil {
			resp.Records = []models.NormalizedRecord{}
		}

		// ── 4. Error path ───────────────────────────────────────────
		if res.Err != nil {
			he := asHarvestError(res.Err)
			resp.Error = he.ToDetail()
			c.JSON(mapErrorToStatus(he), resp)
			return
		}

		// ── 5. Cache store ──────────────────────────────────────────
		if cc != nil && req.MaxAge > 0 {
			cc.Set(cache.Key(q), resp)
			resp.CacheStatus = "miss"
		}

		c.JSON(http.StatusOK, resp)
	}
}
