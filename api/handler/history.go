package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/ecoaudit/scanner/models"
	"github.com/ecoaudit/scanner/store"
	"github.com/gin-gonic/gin"
)

const historyDisabled = "scan history is disabled"

// ListScans returns a handler for GET /api/v1/scans?url=&limit=.
func ListScans(hist History) gin.HandlerFunc {
	return func(c *gin.Context) {
		if hist == nil {
			respondError(c, models.ErrCodeNotFound, historyDisabled)
			return
		}

		limit := 0
		if raw := c.Query("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 0 {
				respondError(c, models.ErrCodeInvalidInput, "limit must be a non-negative integer")
				return
			}
			limit = n
		}

		records, err := hist.List(c.Request.Context(), c.Query("url"), limit)
		if err != nil {
			respondError(c, models.ErrCodeInternal, err.Error())
			return
		}

		entries := make([]models.HistoryEntry, 0, len(records))
		for i := range records {
			entries = append(entries, toHistoryEntry(&records[i]))
		}
		c.JSON(http.StatusOK, models.HistoryResponse{Scans: entries, Total: len(entries)})
	}
}

// GetScan returns a handler for GET /api/v1/scans/:id.
func GetScan(hist History) gin.HandlerFunc {
	return func(c *gin.Context) {
		if hist == nil {
			respondError(c, models.ErrCodeNotFound, historyDisabled)
			return
		}

		rec, err := hist.Get(c.Request.Context(), c.Param("id"))
		switch {
		case errors.Is(err, store.ErrNotFound):
			respondError(c, models.ErrCodeNotFound, "scan not found")
			return
		case err != nil:
			respondError(c, models.ErrCodeInternal, err.Error())
			return
		}
		c.JSON(http.StatusOK, toHistoryEntry(rec))
	}
}

func toHistoryEntry(rec *store.ScanRecord) models.HistoryEntry {
	return models.HistoryEntry{
		ID:        rec.ID,
		CreatedAt: rec.CreatedAt.Unix(),
		Result:    rec.Result(),
	}
}
