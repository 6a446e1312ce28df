package handler

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/ecoaudit/scanner/models"
	"github.com/ecoaudit/scanner/webhook"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const (
	batchRetention = time.Hour
	batchSweep     = 5 * time.Minute
)

// batchJob is one batch run. Results are indexed like the request URLs.
type batchJob struct {
	mu        sync.Mutex
	id        string
	status    string
	completed int
	failed    int
	results   []*models.ScanResponse
	createdAt time.Time
}

func (j *batchJob) record(idx int, resp *models.ScanResponse) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.results[idx] = resp
	j.completed++
	if !resp.Success {
		j.failed++
	}
}

func (j *batchJob) finish() string {
	j.mu.Lock()
	defer j.mu.Unlock()
	switch {
	case j.failed == len(j.results):
		j.status = models.BatchFailed
	case j.failed > 0:
		j.status = models.BatchPartial
	default:
		j.status = models.BatchCompleted
	}
	return j.status
}

func (j *batchJob) snapshot() models.BatchStatusResponse {
	j.mu.Lock()
	defer j.mu.Unlock()
	results := make([]*models.ScanResponse, len(j.results))
	copy(results, j.results)
	return models.BatchStatusResponse{
		ID:        j.id,
		Status:    j.status,
		Completed: j.completed,
		Total:     len(j.results),
		Results:   results,
	}
}

// Batches runs batch scans in the background and answers status queries.
type Batches struct {
	ctx      context.Context
	scanner  Scanner
	history  History
	notifier *webhook.Notifier
	jobs     sync.Map // id → *batchJob
	wg       sync.WaitGroup
}

// NewBatches creates a batch runner. Jobs run under ctx; finished jobs are
// forgotten after an hour.
func NewBatches(ctx context.Context, sc Scanner, hist History, notifier *webhook.Notifier) *Batches {
	b := &Batches{ctx: ctx, scanner: sc, history: hist, notifier: notifier}
	go b.expireLoop()
	return b
}

// Post returns a handler for POST /api/v1/batch/scan.
func (b *Batches) Post() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.BatchRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, models.ErrCodeInvalidInput, err.Error())
			return
		}

		job := &batchJob{
			id:        "batch-" + uuid.NewString(),
			status:    models.BatchProcessing,
			results:   make([]*models.ScanResponse, len(req.URLs)),
			createdAt: time.Now(),
		}
		b.jobs.Store(job.id, job)

		b.wg.Add(1)
		go func() {
			defer b.wg.Done()
			b.run(job, req)
		}()

		c.JSON(http.StatusAccepted, models.BatchResponse{
			ID:     job.id,
			Status: models.BatchProcessing,
			Total:  len(req.URLs),
		})
	}
}

// Get returns a handler for GET /api/v1/batch/:id.
func (b *Batches) Get() gin.HandlerFunc {
	return func(c *gin.Context) {
		val, ok := b.jobs.Load(c.Param("id"))
		if !ok {
			respondError(c, models.ErrCodeNotFound, "batch job not found")
			return
		}
		c.JSON(http.StatusOK, val.(*batchJob).snapshot())
	}
}

// Wait blocks until running batches have finished.
func (b *Batches) Wait() {
	b.wg.Wait()
}

// run scans every URL, at most one per pooled page at a time.
func (b *Batches) run(job *batchJob, req models.BatchRequest) {
	limit := b.scanner.Stats().MaxPages
	if limit <= 0 {
		limit = 5
	}

	var g errgroup.Group
	g.SetLimit(limit)
	for i, targetURL := range req.URLs {
		g.Go(func() error {
			sreq := &models.ScanRequest{
				URL:     targetURL,
				Timeout: req.Options.Timeout,
				Stealth: req.Options.Stealth,
				Headers: req.Options.Headers,
			}
			sreq.Defaults()

			start := time.Now()
			resp, _ := performScan(b.ctx, b.scanner, b.history, sreq)
			resp.Timing.TotalMs = time.Since(start).Milliseconds()
			job.record(i, resp)
			return nil
		})
	}
	_ = g.Wait()

	status := job.finish()
	snap := job.snapshot()
	slog.Info("batch job finished",
		"id", job.id,
		"status", status,
		"completed", snap.Completed,
		"total", snap.Total,
	)

	if req.WebhookURL != "" && b.notifier != nil {
		b.notifier.DeliverAsync(b.ctx, req.WebhookURL, req.WebhookSecret,
			webhook.NewEvent(webhook.EventBatchCompleted, job.id, snap))
	}
}

func (b *Batches) expireLoop() {
	ticker := time.NewTicker(batchSweep)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			b.expire(time.Now().Add(-batchRetention))
		case <-b.ctx.Done():
			return
		}
	}
}

func (b *Batches) expire(cutoff time.Time) {
	b.jobs.Range(func(key, value any) bool {
		job := value.(*batchJob)
		job.mu.Lock()
		done := job.status != models.BatchProcessing
		old := job.createdAt.Before(cutoff)
		job.mu.Unlock()
		if done && old {
			b.jobs.Delete(key)
		}
		return true
	})
}
