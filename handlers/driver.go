package handlers

import (
	"net/http"

	"food-distribution-api/middleware"
	"food-distribution-api/models"

	"github.com/gin-gonic/gin"
)

type AvailabilityRequest struct {
	Available *bool `json:"available" binding:"required"`
}

// SetAvailability lets a driver go on or off duty. Only available drivers
// can be assigned new orders.
func (h *Handler) SetAvailability(c *gin.Context) {
	var req AvailabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	driverID := middleware.GetUserID(c)
	if err := h.accounts.SetDriverAvailability(c.Request.Context(), driverID, *req.Available); err != nil {
		h.respondError(c, err)
		return
	}
	h.log.Info("driver availability changed", "user_id", driverID, "available", *req.Available)
	c.JSON(http.StatusOK, gin.H{"message": "Availability updated", "available": *req.Available})
}

// ListAvailableDrivers lists the drivers an admin can assign right now.
func (h *Handler) ListAvailableDrivers(c *gin.Context) {
	drivers, err := h.accounts.ListUsers(c.Request.Context(), models.RoleDriver)
	if err != nil {
		h.respondError(c, err)
		return
	}
	available := make([]models.User, 0, len(drivers))
	for _, d := range drivers {
		if d.Available {
			available = append(available, d)
		}
	}
	c.JSON(http.StatusOK, gin.H{"count": len(available), "drivers": available})
}
