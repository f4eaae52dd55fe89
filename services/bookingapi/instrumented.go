package bookingapi

import (
	"context"
	"time"

	"pagoda/models"
)

// Observer is told about every call made through an instrumented BookingAPI.
type Observer interface {
	ObserveBackend(op string, elapsed time.Duration, err error)
}

type instrumented struct {
	next BookingAPI
	obs  Observer
	now  func() time.Time
}

// Instrument wraps api so that obs sees the latency and result of each call.
func Instrument(api BookingAPI, obs Observer) BookingAPI {
	if obs == nil {
		return api
	}
	return &instrumented{next: api, obs: obs, now: time.Now}
}

func (i *instrumented) Reserve(ctx context.Context, req models.ReserveRequest, idempotencyKey string) (*models.Reservation, error) {
	start := i.now()
	res, err := i.next.Reserve(ctx, req, idempotencyKey)
	i.obs.ObserveBackend("reserve", i.now().Sub(start), err)
	return res, err
}

func (i *instrumented) Confirm(ctx context.Context, bookingID string, req models.ConfirmRequest, idempotencyKey string) error {
	start := i.now()
	err := i.next.Confirm(ctx, bookingID, req, idempotencyKey)
	i.obs.ObserveBackend("confirm", i.now().Sub(start), err)
	return err
}
