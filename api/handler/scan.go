package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/ecoaudit/scanner/cache"
	"github.com/ecoaudit/scanner/interceptor"
	"github.com/ecoaudit/scanner/models"
	"github.com/ecoaudit/scanner/store"
	"github.com/gin-gonic/gin"
)

// Scanner loads a page and measures its network footprint.
type Scanner interface {
	Scan(ctx context.Context, req *models.ScanRequest) (*interceptor.Result, error)
	Stats() models.PoolStats
}

// History persists finished scans. A nil History disables persistence.
type History interface {
	Save(ctx context.Context, rec *store.ScanRecord) error
	Get(ctx context.Context, id string) (*store.ScanRecord, error)
	List(ctx context.Context, url string, limit int) ([]store.ScanRecord, error)
}

// Scan returns a handler for POST /api/v1/scan.
//
// Flow:
//  1. Parse & validate request, apply defaults.
//  2. Serve from cache when max_age allows.
//  3. Scanner.Scan        → interceptor.Result (records scan_ms)
//  4. Persist to history; failures are logged, never returned.
//  5. Cache and respond.
func Scan(sc Scanner, cc *cache.Cache, hist History) gin.HandlerFunc {
	return func(c *gin.Context) {
		totalStart := time.Now()

		var req models.ScanRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, models.ScanResponse{
				Success: false,
				Error: &models.ErrorDetail{
					Code:    models.ErrCodeInvalidInput,
					Message: err.Error(),
				},
			})
			return
		}
		req.Defaults()

		maxAge := time.Duration(req.MaxAge) * time.Millisecond
		useCache := cc != nil && maxAge > 0
		if useCache {
			if cached, hit := cc.Get(cache.Key(&req), maxAge); hit {
				resp := *cached
				resp.CacheStatus = "hit"
				resp.Timing = models.TimingInfo{TotalMs: time.Since(totalStart).Milliseconds()}
				c.JSON(http.StatusOK, resp)
				return
			}
		}

		resp, scanErr := performScan(c.Request.Context(), sc, hist, &req)
		resp.Timing.TotalMs = time.Since(totalStart).Milliseconds()
		if scanErr != nil {
			c.JSON(mapErrorToStatus(scanErr), resp)
			return
		}

		if useCache {
			resp.CacheStatus = "miss"
			cc.Set(cache.Key(&req), resp)
		}
		c.JSON(http.StatusOK, resp)
	}
}

// performScan runs one scan and builds its response. The returned error is
// non-nil only when the scan itself failed; resp is always populated.
func performScan(ctx context.Context, sc Scanner, hist History, req *models.ScanRequest) (*models.ScanResponse, *models.ScanError) {
	scanStart := time.Now()
	result, err := sc.Scan(ctx, req)
	timing := models.TimingInfo{ScanMs: time.Since(scanStart).Milliseconds()}

	if err != nil {
		scanErr := asScanError(err)
		return &models.ScanResponse{
			Success: false,
			Error:   scanErr.ToDetail(),
			Partial: scanErr.Partial,
			Timing:  timing,
		}, scanErr
	}

	resp := &models.ScanResponse{
		Success: true,
		Result:  result,
		Timing:  timing,
	}

	if hist != nil {
		rec := store.NewRecord(*result)
		if err := hist.Save(context.WithoutCancel(ctx), rec); err != nil {
			slog.Warn("failed to persist scan", "url", result.URL, "error", err)
		} else {
			resp.ID = rec.ID
		}
	}
	return resp, nil
}

func asScanError(err error) *models.ScanError {
	var scanErr *models.ScanError
	if errors.As(err, &scanErr) {
		return scanErr
	}
	return models.NewScanError(models.ErrCodeInternal, err.Error(), err)
}

// respondError writes a structured error response with the matching status.
func respondError(c *gin.Context, code, message string) {
	e := models.NewScanError(code, message, nil)
	c.JSON(mapErrorToStatus(e), models.ScanResponse{
		Success: false,
		Error:   e.ToDetail(),
	})
}

// mapErrorToStatus translates error codes to HTTP status codes.
func mapErrorToStatus(e *models.ScanError) int {
	switch e.Code {
	case models.ErrCodeTimeout:
		return http.StatusGatewayTimeout // 504
	case models.ErrCodeNavigation:
		return http.StatusBadGateway // 502
	case models.ErrCodeActionFailed:
		return http.StatusUnprocessableEntity // 422
	case models.ErrCodeInvalidInput:
		return http.StatusBadRequest // 400
	case models.ErrCodeNotFound:
		return http.StatusNotFound // 404
	case models.ErrCodeRateLimited:
		return http.StatusTooManyRequests // 429
	case models.ErrCodeUnauthorized:
		return http.StatusUnauthorized // 401
	default:
		return http.StatusInternalServerError // 500
	}
}
