package handler

import (
	"net/http"

	"github.com/ErlanBelekov/tourbook/internal/transport/http/middleware"
	"github.com/gin-gonic/gin"
)

// ViewHandler renders the pages that personalize on the logged-in user.
type ViewHandler struct{}

func NewViewHandler() *ViewHandler {
	return &ViewHandler{}
}

// GET /
func (h *ViewHandler) Overview(c *gin.Context) {
	data := gin.H{"title": "All Tours"}
	if user, ok := middleware.CurrentUser(c); ok {
		data["user"] = toUserResponse(user)
	}
	c.HTML(http.StatusOK, "overview.tmpl", data)
}

// GET /me
func (h *ViewHandler) Account(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	c.HTML(http.StatusOK, "account.tmpl", gin.H{
		"title": "Your account",
		"user":  toUserResponse(user),
	})
}
