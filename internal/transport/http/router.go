package httptransport

import (
	"html/template"
	"log/slog"

	"github.com/ErlanBelekov/tourbook/internal/domain"
	"github.com/ErlanBelekov/tourbook/internal/transport/http/handler"
	"github.com/ErlanBelekov/tourbook/internal/transport/http/middleware"
	"github.com/gin-gonic/gin"

	sloggin "github.com/samber/slog-gin"
)

type Handlers struct {
	Auth    *handler.AuthHandler
	Users   *handler.UserHandler
	Booking *handler.BookingHandler
	Views   *handler.ViewHandler
}

type RouterDeps struct {
	Logger        *slog.Logger
	Normalizer    *middleware.Normalizer
	Authenticator *middleware.Authenticator
	// RateLimit guards /api; nil disables it.
	RateLimit gin.HandlerFunc
	Templates *template.Template
}

// resetPasswordPrefix carries a plaintext reset token in its last segment.
const resetPasswordPrefix = "/api/v1/users/resetPassword/"

// accessLogConfig keeps reset tokens out of the access log. Request ids come
// from the context handler.
func accessLogConfig() sloggin.Config {
	cfg := sloggin.DefaultConfig()
	cfg.WithRequestID = false
	cfg.Filters = []sloggin.Filter{sloggin.IgnorePathPrefix(resetPasswordPrefix)}
	return cfg
}

func NewRouter(deps RouterDeps, h Handlers) *gin.Engine {
	r := gin.New()
	r.SetHTMLTemplate(deps.Templates)

	// Access log and metrics wrap the normalizer so they see the status it
	// writes; the normalizer wraps Recovery.
	r.Use(middleware.RequestID())
	r.Use(sloggin.NewWithConfig(deps.Logger, accessLogConfig()))
	r.Use(middleware.Metrics())
	r.Use(deps.Normalizer.Handler())
	r.Use(deps.Normalizer.Recovery())
	r.Use(middleware.Security())
	r.NoRoute(middleware.NotFound())

	protect := deps.Authenticator.Protect()

	// Pages
	r.GET("/", deps.Authenticator.IsLoggedIn(), h.Views.Overview)
	r.GET("/me", protect, h.Views.Account)

	api := r.Group("/api")
	if deps.RateLimit != nil {
		api.Use(deps.RateLimit)
	}

	// Public auth routes
	users := api.Group("/v1/users")
	users.POST("/signup", h.Auth.Signup)
	users.POST("/login", h.Auth.Login)
	users.GET("/logout", h.Auth.Logout)
	users.POST("/forgotPassword", h.Auth.ForgotPassword)
	users.PATCH("/resetPassword/:token", h.Auth.ResetPassword)

	// Protected user routes
	me := users.Group("", protect)
	me.PATCH("/updateMyPassword", h.Auth.UpdatePassword)
	me.GET("/me", h.Users.Me)

	// Admin user management
	admin := users.Group("", protect, middleware.RestrictTo(domain.RoleAdmin))
	admin.GET("", h.Users.List)
	admin.DELETE("/:id", h.Users.Delete)

	bookings := api.Group("/v1/bookings", protect)
	bookings.GET("/checkout-session/:tourId", h.Booking.CheckoutSession)

	return r
}
