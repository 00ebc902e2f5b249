package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"log/slog"

	"github.com/Troviny/troviny-backend/internal/metrics"
	"github.com/Troviny/troviny-backend/internal/middleware"
	"github.com/Troviny/troviny-backend/internal/rate"
	"github.com/Troviny/troviny-backend/internal/security"
	"github.com/Troviny/troviny-backend/internal/storage"
)

type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Store is the persistence surface the auth handlers need. *storage.Store
// satisfies it; tests plug in an in-memory fake.
type Store interface {
	CreateUser(ctx context.Context, n storage.NewUser) (*storage.User, error)
	GetUserByUsername(ctx context.Context, username string) (*storage.User, error)
	UsernameExists(ctx context.Context, username string) (bool, error)
	EmailExists(ctx context.Context, email string) (bool, error)
	RevokeTokenPair(ctx context.Context, refreshJTI string, refreshExpiresAt time.Time, accessToken string, accessExpiresAt time.Time) error
	IsRefreshTokenRevoked(ctx context.Context, jti string) (bool, error)
	InsertAudit(ctx context.Context, log storage.AuditLog) error
}

type AuthHandler struct {
	Store       Store
	Logger      *slog.Logger
	JWTSecret   []byte
	JWTIssuer   string
	AccessTTL   time.Duration
	RefreshTTL  time.Duration
	Argon2      security.Argon2Params
	RateLimiter rate.Limiter
	Clock       Clock
}

type registerRequest struct {
	Username       string `json:"username" binding:"required,max=20"`
	Email          string `json:"email" binding:"required,email"`
	Password       string `json:"password" binding:"required"`
	PhoneNumber    string `json:"phone_number"`
	Address        string `json:"address"`
	ProfilePicture string `json:"profile_picture"`
	Country        string `json:"country"`
	City           string `json:"city"`
	Role           string `json:"role"`
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type logoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type refreshRequest struct {
	Refresh string `json:"refresh"`
}

type registerResponse struct {
	User   profileResponse     `json:"user"`
	Tokens *security.TokenPair `json:"tokens"`
}

type loginResponse struct {
	UserID int64               `json:"user_id"`
	Tokens *security.TokenPair `json:"tokens"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func NewAuthHandler(store Store, logger *slog.Logger, jwtSecret string, issuer string, accessTTL, refreshTTL time.Duration, argon2 security.Argon2Params, limiter rate.Limiter) *AuthHandler {
	return &AuthHandler{
		Store:       store,
		Logger:      logger,
		JWTSecret:   []byte(jwtSecret),
		JWTIssuer:   issuer,
		AccessTTL:   accessTTL,
		RefreshTTL:  refreshTTL,
		Argon2:      argon2,
		RateLimiter: limiter,
		Clock:       systemClock{},
	}
}

func (h *AuthHandler) RegisterRoutes(r *gin.Engine) {
	r.POST("/auth/register", h.Register)
	r.POST("/auth/login", h.Login)
	r.POST("/auth/logout", middleware.RequireAuth(h.JWTSecret), h.Logout)
	r.POST("/auth/refreshToken", h.RefreshToken)
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Code: "INVALID_REQUEST", Message: "invalid payload"})
		return
	}

	ctx := c.Request.Context()

	// Username first, then email; first failure wins. The unique
	// constraints below are what actually settle a registration race.
	taken, err := h.Store.UsernameExists(ctx, req.Username)
	if err != nil {
		h.Logger.Error("username lookup failed", "error", err)
		c.JSON(http.StatusInternalServerError, errorResponse{Code: "INTERNAL_ERROR", Message: "internal error"})
		return
	}
	if taken {
		c.JSON(http.StatusBadRequest, errorResponse{Code: "DUPLICATE_USERNAME", Message: "Username is already taken."})
		return
	}

	taken, err = h.Store.EmailExists(ctx, req.Email)
	if err != nil {
		h.Logger.Error("email lookup failed", "error", err)
		c.JSON(http.StatusInternalServerError, errorResponse{Code: "INTERNAL_ERROR", Message: "internal error"})
		return
	}
	if taken {
		c.JSON(http.StatusBadRequest, errorResponse{Code: "DUPLICATE_EMAIL", Message: "A user with this email already exists."})
		return
	}

	hash, err := security.HashPassword(req.Password, h.Argon2)
	if err != nil {
		h.Logger.Error("password hash failed", "error", err)
		c.JSON(http.StatusInternalServerError, errorResponse{Code: "INTERNAL_ERROR", Message: "internal error"})
		return
	}

	user, err := h.Store.CreateUser(ctx, storage.NewUser{
		Username:       req.Username,
		Email:          req.Email,
		PasswordHash:   hash,
		PhoneNumber:    req.PhoneNumber,
		Address:        req.Address,
		ProfilePicture: req.ProfilePicture,
		Country:        req.Country,
		City:           req.City,
		Role:           req.Role,
	})
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrDuplicateUsername):
			c.JSON(http.StatusBadRequest, errorResponse{Code: "DUPLICATE_USERNAME", Message: "Username is already taken."})
		case errors.Is(err, storage.ErrDuplicateEmail):
			c.JSON(http.StatusBadRequest, errorResponse{Code: "DUPLICATE_EMAIL", Message: "A user with this email already exists."})
		default:
			h.Logger.Error("user insert failed", "error", err)
			c.JSON(http.StatusInternalServerError, errorResponse{Code: "INTERNAL_ERROR", Message: "internal error"})
		}
		return
	}

	tokens, err := security.NewTokenPair(user.ID, h.JWTSecret, h.AccessTTL, h.RefreshTTL, h.Clock.Now(), h.JWTIssuer)
	if err != nil {
		h.Logger.Error("jwt sign failed", "error", err)
		c.JSON(http.StatusInternalServerError, errorResponse{Code: "INTERNAL_ERROR", Message: "internal error"})
		return
	}

	h.audit(ctx, c, user.ID, "auth.register", &user.ID)
	metrics.Registrations.Inc()

	c.JSON(http.StatusCreated, registerResponse{User: newProfileResponse(user), Tokens: tokens})
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Code: "INVALID_REQUEST", Message: "invalid payload"})
		return
	}

	ctx := c.Request.Context()

	allowed, retryAfter, err := h.RateLimiter.Allow(ctx, c.ClientIP(), h.Clock.Now())
	if err != nil {
		// a broken limiter must not lock everyone out
		h.Logger.Error("rate limiter failed", "error", err)
		allowed = true
	}
	if !allowed {
		metrics.LoginAttempts.WithLabelValues("rate_limited").Inc()
		c.Header("Retry-After", strconv.Itoa(int(retryAfter.Seconds())+1))
		c.JSON(http.StatusTooManyRequests, errorResponse{Code: "RATE_LIMITED", Message: "too many requests"})
		return
	}

	user, err := h.Store.GetUserByUsername(ctx, req.Username)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			metrics.LoginAttempts.WithLabelValues("invalid_credentials").Inc()
			c.JSON(http.StatusBadRequest, errorResponse{Code: "INVALID_CREDENTIALS", Message: "Invalid username or password."})
			return
		}
		h.Logger.Error("login lookup failed", "error", err)
		c.JSON(http.StatusInternalServerError, errorResponse{Code: "INTERNAL_ERROR", Message: "internal error"})
		return
	}

	// Credentials are checked before the activation flag so a wrong
	// password on an inactive account still reads as invalid credentials.
	ok, err := security.VerifyPassword(req.Password, user.PasswordHash)
	if err != nil || !ok {
		metrics.LoginAttempts.WithLabelValues("invalid_credentials").Inc()
		c.JSON(http.StatusBadRequest, errorResponse{Code: "INVALID_CREDENTIALS", Message: "Invalid username or password."})
		return
	}

	if !user.IsActive {
		metrics.LoginAttempts.WithLabelValues("inactive").Inc()
		c.JSON(http.StatusBadRequest, errorResponse{Code: "ACCOUNT_INACTIVE", Message: "This account is inactive. Contact support."})
		return
	}

	tokens, err := security.NewTokenPair(user.ID, h.JWTSecret, h.AccessTTL, h.RefreshTTL, h.Clock.Now(), h.JWTIssuer)
	if err != nil {
		h.Logger.Error("jwt sign failed", "error", err)
		c.JSON(http.StatusInternalServerError, errorResponse{Code: "INTERNAL_ERROR", Message: "internal error"})
		return
	}

	h.audit(ctx, c, user.ID, "auth.login", &user.ID)
	metrics.LoginAttempts.WithLabelValues("success").Inc()

	c.JSON(http.StatusOK, loginResponse{UserID: user.ID, Tokens: tokens})
}

func (h *AuthHandler) Logout(c *gin.Context) {
	accessToken, ok := middleware.AccessTokenFromContext(c)
	if !ok {
		c.JSON(http.StatusBadRequest, errorResponse{Code: "INVALID_TOKEN", Message: "Invalid token format"})
		return
	}

	var req logoutRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.RefreshToken == "" {
		c.JSON(http.StatusBadRequest, errorResponse{Code: "INVALID_REQUEST", Message: "Refresh token is required"})
		return
	}

	ctx := c.Request.Context()

	refreshClaims, err := security.ParseTokenOfType(req.RefreshToken, h.JWTSecret, security.TokenTypeRefresh)
	if err != nil || refreshClaims.ExpiresAt == nil {
		c.JSON(http.StatusBadRequest, errorResponse{Code: "INVALID_TOKEN", Message: "Invalid or expired refresh token"})
		return
	}

	revoked, err := h.Store.IsRefreshTokenRevoked(ctx, refreshClaims.ID)
	if err != nil {
		h.Logger.Error("revocation lookup failed", "error", err)
		c.JSON(http.StatusInternalServerError, errorResponse{Code: "INTERNAL_ERROR", Message: "internal error"})
		return
	}
	if revoked {
		c.JSON(http.StatusBadRequest, errorResponse{Code: "INVALID_TOKEN", Message: "Invalid or expired refresh token"})
		return
	}

	accessClaims, err := security.ParseToken(accessToken, h.JWTSecret)
	if err != nil || accessClaims.ExpiresAt == nil {
		c.JSON(http.StatusBadRequest, errorResponse{Code: "INVALID_TOKEN", Message: "Invalid token format"})
		return
	}

	userID, _ := middleware.UserIDFromContext(c)
	if err := h.Store.RevokeTokenPair(ctx, refreshClaims.ID, refreshClaims.ExpiresAt.Time, accessToken, accessClaims.ExpiresAt.Time); err != nil {
		h.Logger.Error("token revocation failed", "error", err)
		c.JSON(http.StatusInternalServerError, errorResponse{Code: "INTERNAL_ERROR", Message: "internal error"})
		return
	}

	h.audit(ctx, c, userID, "auth.logout", nil)
	metrics.TokensRevoked.Inc()

	c.JSON(http.StatusOK, gin.H{"message": "Logged out successfully"})
}

func (h *AuthHandler) RefreshToken(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Refresh == "" {
		c.JSON(http.StatusBadRequest, errorResponse{Code: "INVALID_REQUEST", Message: "invalid payload"})
		return
	}

	ctx := c.Request.Context()

	claims, err := security.ParseTokenOfType(req.Refresh, h.JWTSecret, security.TokenTypeRefresh)
	if err != nil {
		c.JSON(http.StatusUnauthorized, errorResponse{Code: "INVALID_TOKEN", Message: "Invalid or expired refresh token"})
		return
	}

	revoked, err := h.Store.IsRefreshTokenRevoked(ctx, claims.ID)
	if err != nil {
		h.Logger.Error("revocation lookup failed", "error", err)
		c.JSON(http.StatusInternalServerError, errorResponse{Code: "INTERNAL_ERROR", Message: "internal error"})
		return
	}
	if revoked {
		c.JSON(http.StatusUnauthorized, errorResponse{Code: "INVALID_TOKEN", Message: "Invalid or expired refresh token"})
		return
	}

	userID, err := claims.UserID()
	if err != nil {
		c.JSON(http.StatusUnauthorized, errorResponse{Code: "INVALID_TOKEN", Message: "Invalid or expired refresh token"})
		return
	}

	access, err := security.NewAccessToken(userID, h.JWTSecret, h.AccessTTL, h.Clock.Now(), h.JWTIssuer)
	if err != nil {
		h.Logger.Error("jwt sign failed", "error", err)
		c.JSON(http.StatusInternalServerError, errorResponse{Code: "INTERNAL_ERROR", Message: "internal error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"access": access})
}

func (h *AuthHandler) audit(ctx context.Context, c *gin.Context, actorID int64, action string, entityID *int64) {
	if err := h.Store.InsertAudit(ctx, storage.AuditLog{
		ActorID:    actorID,
		Action:     action,
		EntityType: "user",
		EntityID:   entityID,
		IP:         c.ClientIP(),
		UserAgent:  c.Request.UserAgent(),
	}); err != nil {
		h.Logger.Error("audit log failed", "error", err)
	}
}
