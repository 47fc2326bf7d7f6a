package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/daichi-okamoto/ai-shift-app-sub000/internal/models"
	"github.com/daichi-okamoto/ai-shift-app-sub000/internal/schedule"
	"github.com/gin-gonic/gin"
)

// errHandled signals that a handler already wrote the response from inside a
// transaction callback; the transaction still rolls back.
var errHandled = errors.New("response already written")

// Handler holds the dependencies of the HTTP layer.
type Handler struct {
	store       schedule.Store
	svc         *schedule.Service
	healthCheck func(ctx context.Context) error
}

// NewHandler creates the API handler. healthCheck may be nil when the service
// runs without a database (liveness only).
func NewHandler(store schedule.Store, svc *schedule.Service, healthCheck func(ctx context.Context) error) *Handler {
	return &Handler{store: store, svc: svc, healthCheck: healthCheck}
}

// ready rejects data requests while the server runs without a database.
func (h *Handler) ready(c *gin.Context) bool {
	if h.store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Database not available"})
		return false
	}
	return true
}

// Health handles GET /health and /ready
func (h *Handler) Health(c *gin.Context) {
	if h.healthCheck == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "database": "not configured"})
		return
	}
	if err := h.healthCheck(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "database": "unreachable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func unitIDParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid unit id"})
		return 0, false
	}
	return id, true
}

// GetShifts handles GET /units/:id/shifts?from=YYYY-MM-DD&to=YYYY-MM-DD
func (h *Handler) GetShifts(c *gin.Context) {
	ctx := c.Request.Context()
	if !h.ready(c) {
		return
	}
	unitID, ok := unitIDParam(c)
	if !ok {
		return
	}
	from, to := c.Query("from"), c.Query("to")
	if _, err := models.ParseDate(from); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "from must be YYYY-MM-DD"})
		return
	}
	if _, err := models.ParseDate(to); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "to must be YYYY-MM-DD"})
		return
	}

	var shifts []models.Shift
	err := h.store.WithTx(ctx, func(tx schedule.Tx) error {
		if _, err := tx.Unit(ctx, unitID); err != nil {
			return err
		}
		loaded, err := tx.ShiftsInRange(ctx, unitID, from, to)
		if err != nil {
			return err
		}
		for i := range loaded {
			assignments, err := tx.AssignmentsByShift(ctx, loaded[i].ID)
			if err != nil {
				return err
			}
			loaded[i].Assignments = assignments
		}
		shifts = loaded
		return nil
	})
	if err != nil {
		h.renderError(c, err, "Failed to fetch shifts")
		return
	}
	c.JSON(http.StatusOK, gin.H{"shifts": shifts})
}

// BulkUpsertShifts handles POST /units/:id/shifts/bulk
func (h *Handler) BulkUpsertShifts(c *gin.Context) {
	ctx := c.Request.Context()
	if !h.ready(c) {
		return
	}
	unitID, ok := unitIDParam(c)
	if !ok {
		return
	}
	var entries []models.BatchShiftEntry
	if err := c.ShouldBindJSON(&entries); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	if len(entries) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "At least one entry is required"})
		return
	}
	if err := h.svc.BatchUpsert(ctx, unitID, entries); err != nil {
		h.renderError(c, err, "Failed to apply shift edits")
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": len(entries)})
}

// DeleteShiftRange handles DELETE /units/:id/shifts
func (h *Handler) DeleteShiftRange(c *gin.Context) {
	ctx := c.Request.Context()
	if !h.ready(c) {
		return
	}
	unitID, ok := unitIDParam(c)
	if !ok {
		return
	}
	var req models.DeleteRangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	result, err := h.svc.DeleteRange(ctx, unitID, req)
	if err != nil {
		h.renderError(c, err, "Failed to delete shifts")
		return
	}
	c.JSON(http.StatusOK, result)
}

// GenerateSchedule handles POST /units/:id/schedule/generate
func (h *Handler) GenerateSchedule(c *gin.Context) {
	ctx := c.Request.Context()
	if !h.ready(c) {
		return
	}
	unitID, ok := unitIDParam(c)
	if !ok {
		return
	}
	var opts schedule.GenerateOptions
	if err := c.ShouldBindJSON(&opts); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	result, err := h.svc.Generate(ctx, unitID, opts)
	if err != nil {
		h.renderError(c, err, "Failed to generate schedule")
		return
	}
	c.JSON(http.StatusOK, result)
}

// renderError maps domain errors to HTTP responses.
func (h *Handler) renderError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, schedule.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	case errors.Is(err, schedule.ErrMemberNotInUnit):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, schedule.ErrInvalidRange):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, schedule.ErrEmptyRoster):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, schedule.ErrInvalidWindow):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, schedule.ErrSolverFailure):
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	default:
		c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": fallback})
	}
}
