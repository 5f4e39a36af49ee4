package handlers

import (
	"net/http"

	"food-distribution-api/models"
	"food-distribution-api/statemachine"

	"github.com/gin-gonic/gin"
)

// GetStateMachineInfo returns the full state machine for informational purposes
func (h *Handler) GetStateMachineInfo(c *gin.Context) {
	var terminal []models.OrderState
	for _, s := range models.States() {
		if s.Terminal() {
			terminal = append(terminal, s)
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"state_machine":   statemachine.GetAllTransitions(),
		"terminal_states": terminal,
		"completion":      "AWAITING_CONFIRMATION becomes COMPLETED once both the driver and the restaurant have confirmed",
		"description":     "B2B Food Distribution Order Lifecycle State Machine",
	})
}
