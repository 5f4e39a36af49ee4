package handlers

import (
	"fmt"
	"net/http"
	"sort"
	"time"

	"food-distribution-api/middleware"
	"food-distribution-api/models"

	"github.com/gin-gonic/gin"
)

type aggregateLine struct {
	ProductID string `json:"product_id"`
	NameEN    string `json:"name_en,omitempty"`
	NameFR    string `json:"name_fr,omitempty"`
	Unit      string `json:"unit,omitempty"`
	Quantity  int64  `json:"quantity"`
}

// GetDailyAggregate returns the procurement list: total quantity per
// product over the day's orders still PLACED (admin only).
// ?date=YYYY-MM-DD defaults to today.
func (h *Handler) GetDailyAggregate(c *gin.Context) {
	loc := h.engine.Location()
	date := time.Now().In(loc)
	if v := c.Query("date"); v != "" {
		d, err := time.ParseInLocation(dateLayout, v, loc)
		if err != nil {
			badRequest(c, fmt.Errorf("date must be YYYY-MM-DD"))
			return
		}
		date = d
	}

	ctx := c.Request.Context()
	totals, err := h.engine.DailyAggregate(ctx, middleware.GetActor(c), date)
	if err != nil {
		h.respondError(c, err)
		return
	}

	lines := make([]aggregateLine, 0, len(totals))
	for productID, qty := range totals {
		line := aggregateLine{ProductID: productID, Quantity: qty}
		if p, err := h.accounts.GetProduct(ctx, productID); err == nil {
			line.NameEN, line.NameFR, line.Unit = p.NameEN, p.NameFR, p.Unit
		}
		lines = append(lines, line)
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].ProductID < lines[j].ProductID })

	c.JSON(http.StatusOK, gin.H{
		"date":      date.Format(dateLayout),
		"time_zone": loc.String(),
		"count":     len(lines),
		"products":  lines,
	})
}

// AdminGetAllUsers returns all users (admin only). ?role= filters.
func (h *Handler) AdminGetAllUsers(c *gin.Context) {
	role := models.UserRole(c.Query("role"))
	if role != "" && !role.Valid() {
		badRequest(c, fmt.Errorf("unknown role %q", role))
		return
	}
	users, err := h.accounts.ListUsers(c.Request.Context(), role)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(users), "users": users})
}
