package handlers

import (
	"fmt"
	"net/http"

	"food-distribution-api/middleware"
	"food-distribution-api/models"
	"food-distribution-api/orders"
	"food-distribution-api/statemachine"

	"github.com/gin-gonic/gin"
)

// SubmitAction performs one lifecycle action on an order. The body is
// action-specific: {"prices": {...}} for set_line_prices,
// {"driver_id": "..."} for assign_driver, empty otherwise.
func (h *Handler) SubmitAction(c *gin.Context) {
	action, ok := models.ParseAction(c.Param("action"))
	if !ok || !action.Mutates() || action == models.ActionCreateOrder {
		badRequest(c, fmt.Errorf("unknown action %q", c.Param("action")))
		return
	}

	var payload orders.Payload
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&payload); err != nil {
			badRequest(c, err)
			return
		}
	}

	orderID := c.Param("id")
	res, err := h.engine.SubmitAction(c.Request.Context(), middleware.GetActor(c), orderID, action, payload)
	if err != nil {
		body := gin.H{}
		if orders.CodeOf(err) == orders.CodeInvalidTransition {
			// Tell the client what would have worked instead.
			if current, gerr := h.engine.GetOrder(c.Request.Context(), middleware.GetActor(c), orderID); gerr == nil {
				body["current_state"] = current.State
				body["valid_next_actions"] = statemachine.ValidActionsFrom(current.State)
			}
		}
		h.respondErrorWith(c, err, body)
		return
	}

	message := "Order updated"
	if !res.Changed {
		message = "Already confirmed"
	}
	c.JSON(http.StatusOK, gin.H{
		"message":   message,
		"order":     res.Order,
		"changed":   res.Changed,
		"published": res.Published,
	})
}
