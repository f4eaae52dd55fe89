package bookingapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"pagoda/models"

	"go.uber.org/zap"
)

// BookingAPI is the part of the booking backend a reservation page talks to.
type BookingAPI interface {
	Reserve(ctx context.Context, req models.ReserveRequest, idempotencyKey string) (*models.Reservation, error)
	Confirm(ctx context.Context, bookingID string, req models.ConfirmRequest, idempotencyKey string) error
}

// Client is the HTTP implementation of BookingAPI.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	logger  *zap.Logger
}

// New builds a Client. A nil http.Client gets a 15 second timeout; a nil logger is a no-op.
func New(baseURL, token string, hc *http.Client, logger *zap.Logger) *Client {
	baseURL = strings.TrimRight(baseURL, "/")
	if hc == nil {
		hc = &http.Client{Timeout: 15 * time.Second}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL: baseURL,
		token:   token,
		http:    hc,
		logger:  logger,
	}
}

// Reserve holds a light unit for the devotee and returns the server-issued expiry.
func (c *Client) Reserve(ctx context.Context, req models.ReserveRequest, idempotencyKey string) (*models.Reservation, error) {
	path := c.baseURL + "/api/light-bookings/reserve"

	env, err := c.doJSON(ctx, "reserve", http.MethodPost, path, req, idempotencyKey)
	if err != nil {
		return nil, err
	}

	var out models.Reservation
	if len(env.Data) == 0 {
		return nil, fmt.Errorf("reserve: response carried no data")
	}
	if err := json.Unmarshal(env.Data, &out); err != nil {
		return nil, fmt.Errorf("reserve: failed to decode reservation: %w", err)
	}
	if out.Booking.BookingID == "" || out.ReservedUntil.IsZero() {
		return nil, fmt.Errorf("reserve: response missing booking_id or reserved_until")
	}

	c.logger.Debug("reservation created",
		zap.String("booking_id", out.Booking.BookingID),
		zap.String("booking_number", out.Booking.BookingNumber),
		zap.Time("reserved_until", out.ReservedUntil),
	)
	return &out, nil
}

// Confirm records the payment against a reserved booking.
func (c *Client) Confirm(ctx context.Context, bookingID string, req models.ConfirmRequest, idempotencyKey string) error {
	if bookingID == "" {
		return fmt.Errorf("confirm: booking id required")
	}
	path := fmt.Sprintf("%s/api/light-bookings/%s/confirm-payment", c.baseURL, url.PathEscape(bookingID))

	if _, err := c.doJSON(ctx, "confirm", http.MethodPost, path, req, idempotencyKey); err != nil {
		return err
	}
	c.logger.Debug("payment confirmed", zap.String("booking_id", bookingID), zap.String("mode", string(req.PaymentMode)))
	return nil
}

// doJSON sends body as JSON and decodes the response envelope. Any {success:false} answer
// becomes an *APIError regardless of status code.
func (c *Client) doJSON(ctx context.Context, op, method, path string, body any, idempotencyKey string) (*models.APIEnvelope, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to encode request: %w", op, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, path, bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("%s: failed to build request: %w", op, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if idempotencyKey != "" {
		httpReq.Header.Set("Idempotency-Key", idempotencyKey)
	}
	if c.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.token)
	}

	rsp, err := c.http.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, fmt.Errorf("%s: request failed: %w", op, err)
	}
	defer rsp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(rsp.Body, 1<<20))
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, fmt.Errorf("%s: failed to read response: %w", op, err)
	}

	var env models.APIEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, &UnexpectedStatusError{Method: method, Path: path, Code: rsp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}

	if !env.Success {
		msg := env.Message
		if msg == "" {
			msg = http.StatusText(rsp.StatusCode)
		}
		c.logger.Info("booking backend rejected request",
			zap.String("op", op),
			zap.Int("status", rsp.StatusCode),
			zap.String("message", msg),
		)
		return nil, &APIError{Op: op, Status: rsp.StatusCode, Message: msg}
	}
	if rsp.StatusCode < 200 || rsp.StatusCode >= 300 {
		return nil, &UnexpectedStatusError{Method: method, Path: path, Code: rsp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}
	return &env, nil
}
