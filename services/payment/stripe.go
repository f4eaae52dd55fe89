package payment

import (
	"context"
	"errors"
	"fmt"
	"math"

	"pagoda/models"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/paymentintent"
	"go.uber.org/zap"
)

// ErrPaymentNotSettled is returned while the booking's PaymentIntent has not been paid.
var ErrPaymentNotSettled = errors.New("payment has not been completed")

// StripeIssuer looks up the Stripe PaymentIntent of a booking's electronic payment and hands
// its id back as the payment reference once the intent has succeeded.
type StripeIssuer struct {
	currency string
	logger   *zap.Logger
	create   func(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
	get      func(id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
}

// NewStripeIssuer sets the process-wide Stripe key, as the rest of the service does.
func NewStripeIssuer(key, currency string, logger *zap.Logger) *StripeIssuer {
	stripe.Key = key
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StripeIssuer{
		currency: currency,
		logger:   logger,
		create:   paymentintent.New,
		get:      paymentintent.Get,
	}
}

// methodTypes maps a payment mode to the Stripe payment method types it may settle with.
func methodTypes(mode models.PaymentMode) []string {
	switch mode {
	case models.PaymentCard:
		return []string{"card"}
	case models.PaymentOnlineBanking:
		return []string{"fpx"}
	}
	return nil
}

// IssueReference creates the booking's PaymentIntent, or finds it again through the
// idempotency key, and reads its current status. Only a succeeded intent yields a reference.
func (s *StripeIssuer) IssueReference(ctx context.Context, mode models.PaymentMode, amount float64, bookingNumber string) (string, error) {
	types := methodTypes(mode)
	if len(types) == 0 {
		return "", fmt.Errorf("payment mode %s has no processor reference", mode)
	}
	cents := int64(math.Round(amount * 100))
	if cents <= 0 {
		return "", fmt.Errorf("invalid payment amount %.2f", amount)
	}

	params := &stripe.PaymentIntentParams{
		Amount:             stripe.Int64(cents),
		Currency:           stripe.String(s.currency),
		PaymentMethodTypes: stripe.StringSlice(types),
		Description:        stripe.String("Light offering " + bookingNumber),
	}
	params.Context = ctx
	params.AddMetadata("booking_number", bookingNumber)
	params.AddMetadata("payment_mode", string(mode))
	if bookingNumber != "" {
		params.SetIdempotencyKey(fmt.Sprintf("light-%s-%s", bookingNumber, mode))
	}

	pi, err := s.create(params)
	if err != nil {
		s.logger.Error("stripe payment intent failed", zap.String("booking_number", bookingNumber), zap.Error(err))
		return "", fmt.Errorf("create payment intent: %w", err)
	}

	// A replayed create returns the stored response, so the live status is read separately.
	getParams := &stripe.PaymentIntentParams{}
	getParams.Context = ctx
	current, err := s.get(pi.ID, getParams)
	if err != nil {
		s.logger.Error("stripe payment intent lookup failed", zap.String("payment_intent", pi.ID), zap.Error(err))
		return "", fmt.Errorf("get payment intent: %w", err)
	}
	if current.Status != stripe.PaymentIntentStatusSucceeded {
		s.logger.Info("stripe payment intent not settled",
			zap.String("booking_number", bookingNumber),
			zap.String("payment_intent", current.ID),
			zap.String("status", string(current.Status)),
		)
		return "", fmt.Errorf("%w: payment intent %s is %s", ErrPaymentNotSettled, current.ID, current.Status)
	}

	s.logger.Info("stripe payment intent settled",
		zap.String("booking_number", bookingNumber),
		zap.String("payment_intent", current.ID),
	)
	return current.ID, nil
}
