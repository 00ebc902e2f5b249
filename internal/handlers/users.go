package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"log/slog"

	"github.com/Troviny/troviny-backend/internal/middleware"
	"github.com/Troviny/troviny-backend/internal/storage"
)

// UserStore is the read surface the profile handlers need.
type UserStore interface {
	GetUserByID(ctx context.Context, id int64) (*storage.User, error)
	ListUsers(ctx context.Context) ([]storage.User, error)
	InsertAudit(ctx context.Context, log storage.AuditLog) error
}

type UserHandler struct {
	Store  UserStore
	Logger *slog.Logger
}

// profileResponse is the account as exposed over the API. The password
// hash never leaves the storage layer.
type profileResponse struct {
	ID             int64  `json:"id"`
	Username       string `json:"username"`
	Email          string `json:"email"`
	PhoneNumber    string `json:"phone_number"`
	Address        string `json:"address"`
	ProfilePicture string `json:"profile_picture"`
	Country        string `json:"country"`
	City           string `json:"city"`
	Role           string `json:"role"`
	IsActive       bool   `json:"is_active"`
	IsStaff        bool   `json:"is_staff"`
}

func newProfileResponse(u *storage.User) profileResponse {
	return profileResponse{
		ID:             u.ID,
		Username:       u.Username,
		Email:          u.Email,
		PhoneNumber:    u.PhoneNumber,
		Address:        u.Address,
		ProfilePicture: u.ProfilePicture,
		Country:        u.Country,
		City:           u.City,
		Role:           u.Role,
		IsActive:       u.IsActive,
		IsStaff:        u.IsStaff,
	}
}

func NewUserHandler(store UserStore, logger *slog.Logger) *UserHandler {
	return &UserHandler{Store: store, Logger: logger}
}

func (h *UserHandler) RegisterRoutes(r *gin.Engine, jwtSecret []byte) {
	group := r.Group("/user", middleware.RequireAuth(jwtSecret))
	group.GET("/", h.CurrentProfile)
	group.GET("/single_profile/:id", h.SingleProfile)
	group.GET("/all_users", h.AllUsers)
}

func (h *UserHandler) CurrentProfile(c *gin.Context) {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse{Code: "UNAUTHORIZED", Message: "missing user"})
		return
	}

	user, err := h.Store.GetUserByID(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, errorResponse{Code: "NOT_FOUND", Message: "User not found"})
			return
		}
		h.Logger.Error("profile lookup failed", "error", err)
		c.JSON(http.StatusInternalServerError, errorResponse{Code: "INTERNAL_ERROR", Message: "internal error"})
		return
	}

	h.audit(c, userID, "read.profile", &userID)

	c.JSON(http.StatusOK, newProfileResponse(user))
}

func (h *UserHandler) SingleProfile(c *gin.Context) {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse{Code: "UNAUTHORIZED", Message: "missing user"})
		return
	}

	targetID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusNotFound, errorResponse{Code: "NOT_FOUND", Message: "User not found"})
		return
	}

	user, err := h.Store.GetUserByID(c.Request.Context(), targetID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, errorResponse{Code: "NOT_FOUND", Message: "User not found"})
			return
		}
		h.Logger.Error("profile lookup failed", "error", err)
		c.JSON(http.StatusInternalServerError, errorResponse{Code: "INTERNAL_ERROR", Message: "internal error"})
		return
	}

	h.audit(c, userID, "read.single_profile", &targetID)

	c.JSON(http.StatusOK, newProfileResponse(user))
}

func (h *UserHandler) AllUsers(c *gin.Context) {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse{Code: "UNAUTHORIZED", Message: "missing user"})
		return
	}

	users, err := h.Store.ListUsers(c.Request.Context())
	if err != nil {
		h.Logger.Error("user list failed", "error", err)
		c.JSON(http.StatusInternalServerError, errorResponse{Code: "INTERNAL_ERROR", Message: "internal error"})
		return
	}

	h.audit(c, userID, "read.all_users", nil)

	profiles := make([]profileResponse, 0, len(users))
	for i := range users {
		profiles = append(profiles, newProfileResponse(&users[i]))
	}
	c.JSON(http.StatusOK, profiles)
}

func (h *UserHandler) audit(c *gin.Context, actorID int64, action string, entityID *int64) {
	if err := h.Store.InsertAudit(c.Request.Context(), storage.AuditLog{
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
