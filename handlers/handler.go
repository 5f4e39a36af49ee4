package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"food-distribution-api/orders"
	"food-distribution-api/store"

	"github.com/gin-gonic/gin"
)

// Handler holds the dependencies of every HTTP handler.
type Handler struct {
	engine *orders.Engine
	// accounts is the production store, which owns users and products for
	// both datasets.
	accounts *store.Store

	jwtSecret []byte
	tokenTTL  time.Duration
	heartbeat time.Duration
	log       *slog.Logger
}

type Options struct {
	JWTSecret []byte
	TokenTTL  time.Duration
	// Heartbeat is the interval between keep-alive events on the event
	// stream.
	Heartbeat time.Duration
	Logger    *slog.Logger
}

func New(engine *orders.Engine, accounts *store.Store, opts Options) *Handler {
	if opts.TokenTTL <= 0 {
		opts.TokenTTL = 24 * time.Hour
	}
	if opts.Heartbeat <= 0 {
		opts.Heartbeat = 25 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Handler{
		engine:    engine,
		accounts:  accounts,
		jwtSecret: opts.JWTSecret,
		tokenTTL:  opts.TokenTTL,
		heartbeat: opts.Heartbeat,
		log:       opts.Logger.With("component", "http"),
	}
}

// mapErrorToStatus translates engine and store errors into HTTP statuses.
func mapErrorToStatus(err error) int {
	var oe *orders.Error
	if errors.As(err, &oe) {
		switch oe.Code {
		case orders.CodeUnauthorized:
			return http.StatusForbidden
		case orders.CodeInvalidTransition:
			return http.StatusUnprocessableEntity
		case orders.CodeConflict:
			return http.StatusConflict
		case orders.CodeUnknown:
			return http.StatusGatewayTimeout
		case orders.CodeNotFound:
			return http.StatusNotFound
		case orders.CodeInvalidInput:
			return http.StatusBadRequest
		default:
			return http.StatusServiceUnavailable
		}
	}
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrDuplicateUser):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// respondError writes the error body {"error": code, "reason": reason}.
func (h *Handler) respondError(c *gin.Context, err error) {
	h.respondErrorWith(c, err, gin.H{})
}

// respondErrorWith is respondError with extra fields in the body.
func (h *Handler) respondErrorWith(c *gin.Context, err error, body gin.H) {
	status := mapErrorToStatus(err)

	var oe *orders.Error
	if errors.As(err, &oe) {
		body["error"] = string(oe.Code)
		if oe.Reason != "" {
			body["reason"] = oe.Reason
		}
	} else {
		switch {
		case errors.Is(err, store.ErrNotFound):
			body["error"] = string(orders.CodeNotFound)
		case errors.Is(err, store.ErrDuplicateUser):
			body["error"] = string(orders.CodeConflict)
			body["reason"] = "email_taken"
		default:
			body["error"] = "internal"
		}
	}

	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
	}
	c.JSON(status, body)
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": string(orders.CodeInvalidInput), "reason": err.Error()})
}
