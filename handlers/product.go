package handlers

import (
	"net/http"

	"food-distribution-api/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type CreateProductRequest struct {
	// ID is an optional stable SKU; a UUID is generated when empty.
	ID     string `json:"id" binding:"omitempty,max=36"`
	NameEN string `json:"name_en" binding:"required"`
	NameFR string `json:"name_fr" binding:"required"`
	Unit   string `json:"unit" binding:"required"`
}

type UpdateProductRequest struct {
	NameEN *string `json:"name_en"`
	NameFR *string `json:"name_fr"`
	Unit   *string `json:"unit"`
	Active *bool   `json:"active"`
}

// ListProducts returns the catalog. Only admins see inactive products,
// and only when asking with ?all=true.
func (h *Handler) ListProducts(c *gin.Context) {
	activeOnly := !(c.Query("all") == "true" && c.GetString("role") == string(models.RoleAdmin))
	products, err := h.accounts.ListProducts(c.Request.Context(), activeOnly)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"count":    len(products),
		"products": products,
	})
}

// CreateProduct adds an active product to the catalog
func (h *Handler) CreateProduct(c *gin.Context) {
	var req CreateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	product := models.Product{
		ID:     req.ID,
		NameEN: req.NameEN,
		NameFR: req.NameFR,
		Unit:   req.Unit,
		Active: true,
	}
	if product.ID == "" {
		product.ID = uuid.NewString()
	} else if _, err := h.accounts.GetProduct(c.Request.Context(), product.ID); err == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "conflict", "reason": "product id already exists"})
		return
	}

	if err := h.accounts.CreateProduct(c.Request.Context(), &product); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Product added", "product": product})
}

// UpdateProduct edits names, unit or the active flag. Deactivating a
// product only stops new orders from using it.
func (h *Handler) UpdateProduct(c *gin.Context) {
	ctx := c.Request.Context()
	product, err := h.accounts.GetProduct(ctx, c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	var req UpdateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if req.NameEN != nil {
		product.NameEN = *req.NameEN
	}
	if req.NameFR != nil {
		product.NameFR = *req.NameFR
	}
	if req.Unit != nil {
		product.Unit = *req.Unit
	}
	if req.Active != nil {
		product.Active = *req.Active
	}

	if err := h.accounts.UpdateProduct(ctx, product); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Product updated", "product": product})
}
