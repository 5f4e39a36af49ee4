package handlers

import (
	"context"
	"errors"
	"net/http"

	"food-distribution-api/middleware"
	"food-distribution-api/models"
	"food-distribution-api/store"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

type RegisterRequest struct {
	Name     string          `json:"name" binding:"required"`
	Email    string          `json:"email" binding:"required,email"`
	Password string          `json:"password" binding:"required,min=6"`
	Role     models.UserRole `json:"role" binding:"required"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// Register creates a new user account. Admins cannot self-register; the
// first admin comes from the bootstrap configuration.
func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	if !req.Role.Valid() || req.Role == models.RoleAdmin {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_input", "reason": "role must be restaurant, driver, or demo"})
		return
	}

	user, err := createUser(c.Request.Context(), h.accounts, req.Name, req.Email, req.Password, req.Role)
	if err != nil {
		h.respondError(c, err)
		return
	}

	token, err := middleware.GenerateToken(user, h.jwtSecret, h.tokenTTL)
	if err != nil {
		h.respondError(c, err)
		return
	}

	h.log.Info("user registered", "user_id", user.ID, "role", user.Role)
	c.JSON(http.StatusCreated, gin.H{
		"message": "Account created successfully",
		"token":   token,
		"user":    user,
	})
}

// Login authenticates a user and returns a JWT
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	user, err := h.accounts.GetUserByEmail(c.Request.Context(), req.Email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated", "reason": "Invalid email or password"})
			return
		}
		h.respondError(c, err)
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated", "reason": "Invalid email or password"})
		return
	}

	token, err := middleware.GenerateToken(user, h.jwtSecret, h.tokenTTL)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Login successful",
		"token":   token,
		"user":    user,
	})
}

// GetProfile returns the authenticated user's profile
func (h *Handler) GetProfile(c *gin.Context) {
	user, err := h.accounts.GetUser(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

// BootstrapAdmin creates the configured admin unless a user with that
// email already exists. It reports whether a user was created.
func BootstrapAdmin(ctx context.Context, accounts *store.Store, name, email, password string) (bool, error) {
	if email == "" {
		return false, nil
	}
	_, err := accounts.GetUserByEmail(ctx, email)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return false, err
	}
	if name == "" {
		name = "Administrator"
	}
	if _, err := createUser(ctx, accounts, name, email, password, models.RoleAdmin); err != nil {
		return false, err
	}
	return true, nil
}

func createUser(ctx context.Context, accounts *store.Store, name, email, password string, role models.UserRole) (*models.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	user := &models.User{
		ID:           uuid.NewString(),
		DisplayName:  name,
		Email:        email,
		PasswordHash: string(hash),
		Role:         role,
	}
	if err := accounts.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}
