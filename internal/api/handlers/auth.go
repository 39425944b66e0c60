package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/driftbyte/snapharbor/internal/auth"
	"github.com/driftbyte/snapharbor/internal/database"
	"github.com/driftbyte/snapharbor/internal/logging"
	"github.com/driftbyte/snapharbor/internal/models"
)

const accessTokenCookieName = "sh_access"

func isSecureRequest(c *gin.Context) bool {
	if c.Request.TLS != nil {
		return true
	}
	proto := c.GetHeader("X-Forwarded-Proto")
	return strings.EqualFold(proto, "https")
}

func setAuthCookie(c *gin.Context, jwtManager *auth.JWTManager, accessToken string) {
	secure := isSecureRequest(c)
	maxAge := int(time.Until(jwtManager.GetAccessTokenExpiry()).Seconds())
	if maxAge < 0 {
		maxAge = 0
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(accessTokenCookieName, accessToken, maxAge, "/api/v1", "", secure, true)
}

func clearAuthCookie(c *gin.Context) {
	secure := isSecureRequest(c)
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(accessTokenCookieName, "", -1, "/api/v1", "", secure, true)
}

// AuthHandler handles authentication requests
type AuthHandler struct {
	store      *database.Store
	jwtManager *auth.JWTManager
	activity   *logging.ActivityLogger
	bcryptCost int
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(store *database.Store, jwtManager *auth.JWTManager, activity *logging.ActivityLogger, bcryptCost int) *AuthHandler {
	return &AuthHandler{
		store:      store,
		jwtManager: jwtManager,
		activity:   activity,
		bcryptCost: bcryptCost,
	}
}

// Login handles user login
func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	user, err := h.store.GetUserByUsername(req.Username)
	if errors.Is(err, database.ErrUserNotFound) {
		_ = h.activity.LogLogin(nil, req.Username, false, "unknown user")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	if !user.IsActive {
		c.JSON(http.StatusForbidden, gin.H{"error": "Account is disabled"})
		return
	}

	if err := auth.VerifyPassword(req.Password, user.PasswordHash); err != nil {
		_ = h.activity.LogLogin(&user.ID, req.Username, false, "bad password")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	token, err := h.jwtManager.GenerateAccessToken(user)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
		return
	}

	setAuthCookie(c, h.jwtManager, token)
	_ = h.activity.LogLogin(&user.ID, req.Username, true, "")

	c.JSON(http.StatusOK, models.LoginResponse{
		AccessToken: token,
		User:        user,
	})
}

// SetupStatus reports whether the system requires initial setup
func (h *AuthHandler) SetupStatus(c *gin.Context) {
	needsSetup, err := h.needsSetup()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"requires_setup": needsSetup})
}

// SetupInitialAdmin creates the first owner user when no users exist
func (h *AuthHandler) SetupInitialAdmin(c *gin.Context) {
	needsSetup, err := h.needsSetup()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}
	if !needsSetup {
		c.JSON(http.StatusConflict, gin.H{"error": "Setup already completed"})
		return
	}

	var req struct {
		Username string `json:"username" binding:"required,min=3,max=50"`
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required,min=8"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := models.NewUser(req.Username, req.Email, req.Password, models.RoleOwner, h.bcryptCost)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create user"})
		return
	}

	if err := h.store.CreateUser(user); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save user"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Owner user created",
		"user": gin.H{
			"id":       user.ID,
			"username": user.Username,
			"email":    user.Email,
			"role":     user.Role,
		},
	})
}

func (h *AuthHandler) needsSetup() (bool, error) {
	count, err := h.store.CountUsers()
	if err != nil {
		return false, err
	}
	return count == 0, nil
}

// Logout clears the session cookie
func (h *AuthHandler) Logout(c *gin.Context) {
	clearAuthCookie(c)
	c.JSON(http.StatusOK, gin.H{"message": "Logged out successfully"})
}

// GetCurrentUser returns the current authenticated user
func (h *AuthHandler) GetCurrentUser(c *gin.Context) {
	userID, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	id, ok := userID.(uuid.UUID)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	user, err := h.store.GetUserByID(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get user"})
		return
	}

	c.JSON(http.StatusOK, user)
}
