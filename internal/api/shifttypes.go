package api

import (
	"net/http"
	"strconv"

	"github.com/daichi-okamoto/ai-shift-app-sub000/internal/models"
	"github.com/daichi-okamoto/ai-shift-app-sub000/internal/schedule"
	"github.com/gin-gonic/gin"
)

func orgIDParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid organization id"})
		return 0, false
	}
	return id, true
}

// GetShiftTypes handles GET /organizations/:id/shift-types
func (h *Handler) GetShiftTypes(c *gin.Context) {
	ctx := c.Request.Context()
	if !h.ready(c) {
		return
	}
	orgID, ok := orgIDParam(c)
	if !ok {
		return
	}
	var types []models.ShiftType
	err := h.store.WithTx(ctx, func(tx schedule.Tx) error {
		var err error
		types, err = tx.ShiftTypes(ctx, orgID)
		return err
	})
	if err != nil {
		h.renderError(c, err, "Failed to fetch shift types")
		return
	}
	c.JSON(http.StatusOK, gin.H{"shift_types": types})
}

// CreateShiftType handles POST /organizations/:id/shift-types
func (h *Handler) CreateShiftType(c *gin.Context) {
	ctx := c.Request.Context()
	if !h.ready(c) {
		return
	}
	orgID, ok := orgIDParam(c)
	if !ok {
		return
	}
	var payload models.ShiftType
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	if payload.Code == "" || payload.Name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "code and name are required"})
		return
	}
	payload.OrgID = orgID
	err := h.store.WithTx(ctx, func(tx schedule.Tx) error {
		return tx.CreateShiftType(ctx, &payload)
	})
	if err != nil {
		h.renderError(c, err, "Failed to create shift type")
		return
	}
	c.JSON(http.StatusCreated, payload)
}

// ProvisionDefaultShiftTypes handles POST /organizations/:id/shift-types/defaults.
// It idempotently creates the system-managed OFF and NIGHT_AFTER types,
// intended to run at organization bootstrap.
func (h *Handler) ProvisionDefaultShiftTypes(c *gin.Context) {
	ctx := c.Request.Context()
	if !h.ready(c) {
		return
	}
	orgID, ok := orgIDParam(c)
	if !ok {
		return
	}
	var types []models.ShiftType
	err := h.store.WithTx(ctx, func(tx schedule.Tx) error {
		if err := schedule.ProvisionSystemShiftTypes(ctx, tx, orgID); err != nil {
			return err
		}
		var err error
		types, err = tx.ShiftTypes(ctx, orgID)
		return err
	})
	if err != nil {
		h.renderError(c, err, "Failed to provision shift types")
		return
	}
	c.JSON(http.StatusOK, gin.H{"shift_types": types})
}

// UpdateShiftType handles PUT /shift-types/:id
func (h *Handler) UpdateShiftType(c *gin.Context) {
	ctx := c.Request.Context()
	if !h.ready(c) {
		return
	}
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid shift type id"})
		return
	}
	var payload models.ShiftType
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	err = h.store.WithTx(ctx, func(tx schedule.Tx) error {
		existing, err := tx.ShiftTypeByID(ctx, id)
		if err != nil {
			return err
		}
		if schedule.IsSystemShiftType(existing.Code) && payload.Code != existing.Code {
			c.JSON(http.StatusBadRequest, gin.H{"error": "System shift type codes cannot be changed"})
			return errHandled
		}
		existing.Code = payload.Code
		existing.Name = payload.Name
		existing.StartAt = payload.StartAt
		existing.EndAt = payload.EndAt
		existing.BreakMinutes = payload.BreakMinutes
		payload = existing
		return tx.UpdateShiftType(ctx, &existing)
	})
	if err == errHandled {
		return
	}
	if err != nil {
		h.renderError(c, err, "Failed to update shift type")
		return
	}
	c.JSON(http.StatusOK, payload)
}

// DeleteShiftType handles DELETE /shift-types/:id
func (h *Handler) DeleteShiftType(c *gin.Context) {
	ctx := c.Request.Context()
	if !h.ready(c) {
		return
	}
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid shift type id"})
		return
	}
	err = h.store.WithTx(ctx, func(tx schedule.Tx) error {
		existing, err := tx.ShiftTypeByID(ctx, id)
		if err != nil {
			return err
		}
		if schedule.IsSystemShiftType(existing.Code) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "System shift types cannot be deleted"})
			return errHandled
		}
		return tx.DeleteShiftType(ctx, id)
	})
	if err == errHandled {
		return
	}
	if err != nil {
		h.renderError(c, err, "Failed to delete shift type")
		return
	}
	c.Status(http.StatusNoContent)
}
