package routes

import (
	"food-distribution-api/handlers"
	"food-distribution-api/middleware"
	"food-distribution-api/models"

	"github.com/gin-gonic/gin"
)

func SetupRoutes(r *gin.Engine, h *handlers.Handler, jwtSecret []byte) {
	// ── Public routes ──────────────────────────────────────────────
	public := r.Group("/api")
	{
		// Auth
		public.POST("/auth/register", h.Register)
		public.POST("/auth/login", h.Login)

		// State machine info
		public.GET("/state-machine", h.GetStateMachineInfo)
	}

	// ── Authenticated routes ───────────────────────────────────────
	// Order authorization is decided per order by the policy engine, so
	// these routes only require a valid session.
	auth := r.Group("/api")
	auth.Use(middleware.AuthRequired(jwtSecret))
	{
		auth.GET("/profile", h.GetProfile)
		auth.GET("/products", h.ListProducts)

		auth.POST("/orders", h.PlaceOrder)
		auth.GET("/orders", h.ListOrders)
		auth.GET("/orders/:id", h.GetOrder)
		auth.POST("/orders/:id/actions/:action", h.SubmitAction)
		auth.GET("/orders/:id/audit", h.GetAuditTrail)

		auth.GET("/events", h.StreamEvents)
	}

	// ── Driver routes ──────────────────────────────────────────────
	driver := r.Group("/api/driver")
	driver.Use(middleware.AuthRequired(jwtSecret), middleware.RoleRequired(models.RoleDriver))
	{
		driver.PUT("/availability", h.SetAvailability)
	}

	// ── Admin routes ───────────────────────────────────────────────
	admin := r.Group("/api/admin")
	admin.Use(middleware.AuthRequired(jwtSecret), middleware.RoleRequired(models.RoleAdmin))
	{
		admin.POST("/products", h.CreateProduct)
		admin.PUT("/products/:id", h.UpdateProduct)
		admin.GET("/aggregate", h.GetDailyAggregate)
		admin.GET("/users", h.AdminGetAllUsers)
		admin.GET("/drivers/available", h.ListAvailableDrivers)
	}
}
