package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"food-distribution-api/middleware"
	"food-distribution-api/models"
	"food-distribution-api/orders"
	"food-distribution-api/statemachine"

	"github.com/gin-gonic/gin"
)

const dateLayout = "2006-01-02"

type PlaceOrderRequest struct {
	Lines []statemachine.LineInput `json:"lines" binding:"required,min=1,dive"`
}

// PlaceOrder creates an order in PLACED for the calling restaurant. Demo
// users place orders in the demo dataset.
func (h *Handler) PlaceOrder(c *gin.Context) {
	var req PlaceOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	res, err := h.engine.SubmitAction(c.Request.Context(), middleware.GetActor(c), "", models.ActionCreateOrder, orders.Payload{Lines: req.Lines})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"message":   "Order placed successfully",
		"order":     res.Order,
		"published": res.Published,
	})
}

// ListOrders returns the caller's visible orders, newest first.
// Filters: state, restaurant_id, driver_id, date (YYYY-MM-DD), limit.
func (h *Handler) ListOrders(c *gin.Context) {
	f := orders.ListFilter{
		State:        models.OrderState(c.Query("state")),
		RestaurantID: c.Query("restaurant_id"),
		DriverID:     c.Query("driver_id"),
	}
	if f.State != "" && !validState(f.State) {
		badRequest(c, fmt.Errorf("unknown state %q", f.State))
		return
	}
	if v := c.Query("date"); v != "" {
		d, err := time.ParseInLocation(dateLayout, v, h.engine.Location())
		if err != nil {
			badRequest(c, fmt.Errorf("date must be YYYY-MM-DD"))
			return
		}
		f.Date = d
	}
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			badRequest(c, fmt.Errorf("limit must be a non-negative integer"))
			return
		}
		f.Limit = n
	}

	views, err := h.engine.ListOrders(c.Request.Context(), middleware.GetActor(c), f)
	if err != nil {
		h.respondError(c, err)
		return
	}

	// Dashboard summary by state
	summary := map[string]int{}
	for _, v := range views {
		summary[string(v.State)]++
	}
	c.JSON(http.StatusOK, gin.H{
		"order_summary": summary,
		"count":         len(views),
		"orders":        views,
	})
}

// GetOrder returns one order, with the fields the caller may see and the
// actions the state machine would accept next.
func (h *Handler) GetOrder(c *gin.Context) {
	view, err := h.engine.GetOrder(c.Request.Context(), middleware.GetActor(c), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"order":              view,
		"valid_next_actions": statemachine.ValidActionsFrom(view.State),
	})
}

// GetAuditTrail returns the order's audit history (admin only)
func (h *Handler) GetAuditTrail(c *gin.Context) {
	entries, err := h.engine.AuditTrail(c.Request.Context(), middleware.GetActor(c), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"order_id": c.Param("id"),
		"count":    len(entries),
		"audit":    entries,
	})
}

func validState(s models.OrderState) bool {
	for _, st := range models.States() {
		if st == s {
			return true
		}
	}
	return false
}
