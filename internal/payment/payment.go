package payment

import (
	"context"
	"errors"

	"github.com/ErlanBelekov/tourbook/internal/apperr"
	"github.com/google/uuid"
)

type CheckoutRequest struct {
	TourID        string
	CustomerEmail string
	SuccessURL    string
	CancelURL     string
}

type CheckoutSession struct {
	ID         string `json:"id"`
	TourID     string `json:"tourId"`
	Email      string `json:"customerEmail"`
	SuccessURL string `json:"successUrl"`
	CancelURL  string `json:"cancelUrl"`
}

type Provider interface {
	CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error)
}

// LocalProvider issues checkout sessions without talking to a payment
// processor. Used until a hosted checkout is wired in.
type LocalProvider struct{}

func NewLocalProvider() *LocalProvider {
	return &LocalProvider{}
}

func (p *LocalProvider) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, err := uuid.Parse(req.TourID); err != nil {
		return nil, &apperr.CastError{Field: "tourId", Value: req.TourID, Err: err}
	}
	if req.CustomerEmail == "" {
		return nil, apperr.Internal("checkout session without customer", errors.New("empty customer email"))
	}

	return &CheckoutSession{
		ID:         "cs_local_" + uuid.NewString(),
		TourID:     req.TourID,
		Email:      req.CustomerEmail,
		SuccessURL: req.SuccessURL,
		CancelURL:  req.CancelURL,
	}, nil
}
