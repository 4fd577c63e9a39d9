package handler

import (
	"log/slog"
	"net/http"

	"github.com/ErlanBelekov/tourbook/internal/payment"
	"github.com/gin-gonic/gin"
)

type BookingHandler struct {
	payments payment.Provider
	baseURL  string
	logger   *slog.Logger
}

func NewBookingHandler(payments payment.Provider, baseURL string, logger *slog.Logger) *BookingHandler {
	return &BookingHandler{
		payments: payments,
		baseURL:  baseURL,
		logger:   logger.With("component", "booking_handler"),
	}
}

// GET /api/v1/bookings/checkout-session/:tourId
// The client redirects to the provider with the returned session id.
func (h *BookingHandler) CheckoutSession(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}

	tourID := c.Param("tourId")
	base := publicBaseURL(c, h.baseURL)

	sess, err := h.payments.CreateCheckoutSession(c.Request.Context(), payment.CheckoutRequest{
		TourID:        tourID,
		CustomerEmail: user.Email,
		SuccessURL:    base + "/?tour=" + tourID,
		CancelURL:     base + "/tour/" + tourID,
	})
	if err != nil {
		_ = c.Error(err)
		return
	}

	h.logger.InfoContext(c.Request.Context(), "checkout session created", "session_id", sess.ID, "tour_id", tourID)
	c.JSON(http.StatusOK, gin.H{"status": statusSuccess, "session": sess})
}
