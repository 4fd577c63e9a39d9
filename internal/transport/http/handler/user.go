package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/ErlanBelekov/tourbook/internal/domain"
	"github.com/gin-gonic/gin"
)

type userUsecaser interface {
	Me(ctx context.Context, userID string) (*domain.User, error)
	ListUsers(ctx context.Context) ([]*domain.User, error)
	DeleteUser(ctx context.Context, userID string) error
}

type UserHandler struct {
	userUsecase userUsecaser
	logger      *slog.Logger
}

func NewUserHandler(userUsecase userUsecaser, logger *slog.Logger) *UserHandler {
	return &UserHandler{
		userUsecase: userUsecase,
		logger:      logger.With("component", "user_handler"),
	}
}

// GET /api/v1/users/me
func (h *UserHandler) Me(c *gin.Context) {
	current, ok := requireUser(c)
	if !ok {
		return
	}

	user, err := h.userUsecase.Me(c.Request.Context(), current.ID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": statusSuccess,
		"data":   gin.H{"user": toUserResponse(user)},
	})
}

// GET /api/v1/users (admin)
func (h *UserHandler) List(c *gin.Context) {
	users, err := h.userUsecase.ListUsers(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}

	out := make([]userResponse, 0, len(users))
	for _, u := range users {
		out = append(out, toUserResponse(u))
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  statusSuccess,
		"results": len(out),
		"data":    gin.H{"users": out},
	})
}

// DELETE /api/v1/users/:id (admin)
func (h *UserHandler) Delete(c *gin.Context) {
	if err := h.userUsecase.DeleteUser(c.Request.Context(), c.Param("id")); err != nil {
		_ = c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}
