package reservation

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"pagoda/models"
	"pagoda/services/bookingapi"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type harness struct {
	ctrl     *Controller
	clock    *ManualClock
	backend  *fakeBackend
	view     *recordingView
	outcomes *outcomeLog
}

func newHarness(t *testing.T, opts Options) *harness {
	t.Helper()
	clock := NewManualClock(testStart)
	backend := newFakeBackend(testStart.Add(10 * time.Minute))
	view := newRecordingView()
	outcomes := &outcomeLog{}

	opts.PageID = "page-1"
	opts.Clock = clock
	if opts.Outcomes == nil {
		opts.Outcomes = outcomes
	}
	ctrl := New(backend, view, opts)
	t.Cleanup(ctrl.Teardown)

	return &harness{ctrl: ctrl, clock: clock, backend: backend, view: view, outcomes: outcomes}
}

func (h *harness) reserve(t *testing.T) {
	t.Helper()
	require.NoError(t, h.ctrl.Submit(context.Background(), validForm()))
	require.Equal(t, models.StateReserved, h.ctrl.State())
}

func TestSubmit_ReservesAndStartsCountdown(t *testing.T) {
	h := newHarness(t, Options{})
	h.reserve(t)

	snap := h.ctrl.Snapshot()
	assert.Equal(t, "b-1", snap.BookingID)
	assert.Equal(t, "LB0001", snap.BookingNumber)
	assert.True(t, snap.ReservedUntil.Equal(testStart.Add(10*time.Minute)))
	assert.Equal(t, 5, snap.Period.Days())

	assert.True(t, h.view.formDisabled)
	assert.True(t, h.view.paymentShown)
	assert.Equal(t, "LB0001", h.view.paymentNumber)

	text, urgent := h.view.lastRender()
	assert.Equal(t, "10:00", text)
	assert.False(t, urgent)
	assert.Equal(t, 10*time.Minute, h.ctrl.Remaining())

	h.clock.Advance(time.Second)
	text, _ = h.view.lastRender()
	assert.Equal(t, "9:59", text)
	assert.InDelta(t, float64(600_000), float64(h.ctrl.Remaining().Milliseconds()), 1000)

	req := h.backend.lastReserve
	assert.Equal(t, "tower-a/block-3/unit-12", req.UnitID)
	assert.Equal(t, "2025-01-01", req.OfferingDateFrom)
	assert.Equal(t, "2025-01-05", req.OfferingDateTo)
	assert.Equal(t, 88.0, req.Amount)
	assert.Empty(t, req.DevoteeNRIC)
}

func TestSubmit_ValidationFailsWithoutNetwork(t *testing.T) {
	h := newHarness(t, Options{})

	form := validForm()
	form.DevoteeName = "   "
	err := h.ctrl.Submit(context.Background(), form)

	require.ErrorIs(t, err, ErrValidation)
	reserves, _ := h.backend.calls()
	assert.Zero(t, reserves)
	assert.Equal(t, "Devotee name is required", h.view.lastError())
	assert.Equal(t, models.StateIdle, h.ctrl.State())
}

func TestSubmit_RejectsInvertedPeriod(t *testing.T) {
	h := newHarness(t, Options{})

	form := validForm()
	form.DateFrom, form.DateTo = "2025-01-05", "2025-01-01"
	err := h.ctrl.Submit(context.Background(), form)

	require.ErrorIs(t, err, ErrInvalidOfferingPeriod)
	require.ErrorIs(t, err, ErrValidation)
	reserves, _ := h.backend.calls()
	assert.Zero(t, reserves)
}

func TestSubmit_BackendRejectionSurfacesMessage(t *testing.T) {
	h := newHarness(t, Options{})
	h.backend.reserveFn = func(ctx context.Context, req models.ReserveRequest) (*models.Reservation, error) {
		return nil, &bookingapi.APIError{Op: "reserve", Status: http.StatusConflict, Message: "Light unit is no longer available"}
	}

	err := h.ctrl.Submit(context.Background(), validForm())

	var rejected *ReserveRejectedError
	require.True(t, errors.As(err, &rejected))
	assert.Equal(t, "Light unit is no longer available", rejected.Message)
	assert.Equal(t, "Light unit is no longer available", h.view.lastError())
	assert.Equal(t, models.StateIdle, h.ctrl.State())
	assert.False(t, h.view.formDisabled)
	assert.Zero(t, h.view.renderCount())
	assert.Zero(t, h.clock.Pending())

	// The user may resubmit; nothing was retried automatically.
	reserves, _ := h.backend.calls()
	assert.Equal(t, 1, reserves)
	h.backend.reserveFn = newFakeBackend(testStart.Add(10 * time.Minute)).reserveFn
	h.reserve(t)
}

func TestSubmit_TransportErrorUsesGenericMessage(t *testing.T) {
	h := newHarness(t, Options{})
	h.backend.reserveFn = func(ctx context.Context, req models.ReserveRequest) (*models.Reservation, error) {
		return nil, errors.New("dial tcp: connection refused")
	}

	err := h.ctrl.Submit(context.Background(), validForm())
	require.Error(t, err)
	assert.Equal(t, reserveFailedMessage, h.view.lastError())
	assert.Equal(t, models.StateIdle, h.ctrl.State())
}

func TestSubmit_SecondSubmitWhileReserving(t *testing.T) {
	h := newHarness(t, Options{})
	entered := make(chan struct{})
	release := make(chan struct{})
	h.backend.reserveFn = func(ctx context.Context, req models.ReserveRequest) (*models.Reservation, error) {
		close(entered)
		<-release
		return &models.Reservation{
			Booking:       models.ReservedBooking{BookingID: "b-1"},
			ReservedUntil: testStart.Add(10 * time.Minute),
		}, nil
	}

	errCh := make(chan error, 1)
	go func() { errCh <- h.ctrl.Submit(context.Background(), validForm()) }()
	<-entered

	assert.ErrorIs(t, h.ctrl.Submit(context.Background(), validForm()), ErrSubmissionInFlight)
	close(release)
	require.NoError(t, <-errCh)

	assert.ErrorIs(t, h.ctrl.Submit(context.Background(), validForm()), ErrAlreadyReserved)
	reserves, _ := h.backend.calls()
	assert.Equal(t, 1, reserves)
}

func TestCountdown_UrgencyAndSingleExpiry(t *testing.T) {
	h := newHarness(t, Options{})
	h.reserve(t)

	h.clock.Advance(8 * time.Minute)
	text, urgent := h.view.lastRender()
	assert.Equal(t, "2:00", text)
	assert.False(t, urgent, "exactly two minutes left is not yet urgent")

	h.clock.Advance(time.Second)
	text, urgent = h.view.lastRender()
	assert.Equal(t, "1:59", text)
	assert.True(t, urgent)

	h.clock.Advance(time.Minute + 58*time.Second) // t = 9:59
	text, _ = h.view.lastRender()
	assert.Equal(t, "0:01", text)
	assert.Equal(t, models.StateReserved, h.ctrl.State())

	h.clock.Advance(2 * time.Second) // t = 10:01
	assert.Equal(t, models.StateExpired, h.ctrl.State())
	assert.Equal(t, 1, h.view.countState(models.StateExpired))
	text, _ = h.view.lastRender()
	assert.Equal(t, "0:00", text)
	assert.Empty(t, h.view.navs(), "redirect waits for the delay")

	renders := h.view.renderCount()
	h.clock.Advance(2 * time.Second) // t = 10:03
	assert.Equal(t, []models.Destination{models.DestinationBack}, h.view.navs())

	h.clock.Advance(time.Hour)
	assert.Equal(t, renders, h.view.renderCount(), "no ticks after expiry")
	assert.Equal(t, 1, h.view.countState(models.StateExpired))
	assert.Zero(t, h.clock.Pending())

	outcomes := h.outcomes.all()
	require.Len(t, outcomes, 1)
	assert.Equal(t, models.StateExpired, outcomes[0].State)
	assert.Equal(t, "b-1", outcomes[0].BookingID)
}

func TestCountdown_ReservationAlreadyPast(t *testing.T) {
	h := newHarness(t, Options{})
	h.backend.reserveFn = func(ctx context.Context, req models.ReserveRequest) (*models.Reservation, error) {
		return &models.Reservation{
			Booking:       models.ReservedBooking{BookingID: "b-2"},
			ReservedUntil: testStart.Add(-time.Second),
		}, nil
	}

	require.NoError(t, h.ctrl.Submit(context.Background(), validForm()))
	assert.Equal(t, models.StateExpired, h.ctrl.State())
	assert.Equal(t, 1, h.clock.Pending(), "only the redirect remains scheduled")
}

func TestConfirm_MissingModeMakesNoCall(t *testing.T) {
	h := newHarness(t, Options{})
	h.reserve(t)

	err := h.ctrl.ConfirmPayment(context.Background(), "", "")
	require.ErrorIs(t, err, ErrMissingPaymentMode)

	_, confirms := h.backend.calls()
	assert.Zero(t, confirms)
	assert.Equal(t, models.StateReserved, h.ctrl.State())
}

func TestConfirm_UnknownModeMakesNoCall(t *testing.T) {
	h := newHarness(t, Options{})
	h.reserve(t)

	err := h.ctrl.ConfirmPayment(context.Background(), "CHEQUE", "")
	require.ErrorIs(t, err, ErrInvalidPaymentMode)

	_, confirms := h.backend.calls()
	assert.Zero(t, confirms)
}

func TestConfirm_RequiresReservation(t *testing.T) {
	h := newHarness(t, Options{})

	err := h.ctrl.ConfirmPayment(context.Background(), models.PaymentCash, "")
	require.ErrorIs(t, err, ErrNotReserved)
	_, confirms := h.backend.calls()
	assert.Zero(t, confirms)
}

func TestConfirm_SuccessStopsCountdown(t *testing.T) {
	h := newHarness(t, Options{})
	h.reserve(t)
	h.clock.Advance(30 * time.Second)

	require.NoError(t, h.ctrl.ConfirmPayment(context.Background(), models.PaymentCash, "RCPT-9"))
	assert.Equal(t, models.StateConfirmed, h.ctrl.State())
	assert.Equal(t, "RCPT-9", h.backend.lastConfirm.PaymentReference)

	renders := h.view.renderCount()
	h.clock.Advance(time.Hour)
	assert.Equal(t, renders, h.view.renderCount())
	assert.Equal(t, []models.Destination{models.DestinationBookingsList}, h.view.navs())
	assert.Zero(t, h.clock.Pending())

	require.NotEmpty(t, h.view.notices)
	assert.Equal(t, models.MessageSuccess, h.view.notices[len(h.view.notices)-1].Level)

	outcomes := h.outcomes.all()
	require.Len(t, outcomes, 1)
	assert.Equal(t, models.StateConfirmed, outcomes[0].State)
	assert.Equal(t, models.PaymentCash, outcomes[0].PaymentMode)

	assert.ErrorIs(t, h.ctrl.ConfirmPayment(context.Background(), models.PaymentCash, ""), ErrSessionClosed)
}

func TestConfirm_FallsBackWhenBookingsListUnavailable(t *testing.T) {
	h := newHarness(t, Options{})
	h.view.bookingsListOK = false
	h.reserve(t)

	require.NoError(t, h.ctrl.ConfirmPayment(context.Background(), models.PaymentEWallet, ""))
	h.clock.Advance(DefaultConfirmRedirectDelay)

	assert.Equal(t, []models.Destination{models.DestinationBack}, h.view.navs())
}

func TestConfirm_RejectionKeepsReservation(t *testing.T) {
	h := newHarness(t, Options{})
	h.reserve(t)
	h.backend.confirmFn = func(ctx context.Context, bookingID string, req models.ConfirmRequest) error {
		return &bookingapi.APIError{Op: "confirm", Status: http.StatusGone, Message: "Reservation expired"}
	}

	err := h.ctrl.ConfirmPayment(context.Background(), models.PaymentCard, "txn-1")

	var rejected *ConfirmRejectedError
	require.True(t, errors.As(err, &rejected))
	assert.Equal(t, "Reservation expired", rejected.Message)
	assert.Equal(t, "Reservation expired", h.view.lastError())
	assert.Equal(t, models.StateReserved, h.ctrl.State())

	renders := h.view.renderCount()
	h.clock.Advance(time.Second)
	assert.Equal(t, renders+1, h.view.renderCount(), "countdown keeps running")

	h.backend.confirmFn = func(ctx context.Context, bookingID string, req models.ConfirmRequest) error { return nil }
	require.NoError(t, h.ctrl.ConfirmPayment(context.Background(), models.PaymentCard, "txn-1"))
	_, confirms := h.backend.calls()
	assert.Equal(t, 2, confirms)
}

func TestConfirm_LateSuccessAfterExpiryIsIgnored(t *testing.T) {
	h := newHarness(t, Options{})
	h.reserve(t)

	entered := make(chan struct{})
	release := make(chan struct{})
	h.backend.confirmFn = func(ctx context.Context, bookingID string, req models.ConfirmRequest) error {
		close(entered)
		<-release
		return nil
	}

	errCh := make(chan error, 1)
	go func() { errCh <- h.ctrl.ConfirmPayment(context.Background(), models.PaymentCash, "") }()
	<-entered

	assert.ErrorIs(t, h.ctrl.ConfirmPayment(context.Background(), models.PaymentCash, ""), ErrConfirmInFlight)

	h.clock.Advance(10 * time.Minute)
	require.Equal(t, models.StateExpired, h.ctrl.State())

	close(release)
	require.ErrorIs(t, <-errCh, ErrStaleResult)
	assert.Equal(t, models.StateExpired, h.ctrl.State())
	assert.Zero(t, h.view.countState(models.StateConfirmed))

	outcomes := h.outcomes.all()
	require.Len(t, outcomes, 1)
	assert.Equal(t, models.StateExpired, outcomes[0].State)
}

func TestConfirm_IssuesReferenceForCard(t *testing.T) {
	issuer := &fakeIssuer{ref: "pi_123"}
	h := newHarness(t, Options{References: issuer})
	h.reserve(t)

	require.NoError(t, h.ctrl.ConfirmPayment(context.Background(), "card", ""))
	assert.Equal(t, 1, issuer.calls)
	assert.Equal(t, models.PaymentCard, h.backend.lastConfirm.PaymentMode)
	assert.Equal(t, "pi_123", h.backend.lastConfirm.PaymentReference)
}

func TestConfirm_NoReferenceIssuedForCashOrGivenReference(t *testing.T) {
	issuer := &fakeIssuer{ref: "pi_123"}
	h := newHarness(t, Options{References: issuer})
	h.reserve(t)

	require.NoError(t, h.ctrl.ConfirmPayment(context.Background(), models.PaymentCash, ""))
	assert.Zero(t, issuer.calls)
	assert.Empty(t, h.backend.lastConfirm.PaymentReference)
}

func TestConfirm_IssuerFailureKeepsReservation(t *testing.T) {
	issuer := &fakeIssuer{err: errors.New("stripe unavailable")}
	h := newHarness(t, Options{References: issuer})
	h.reserve(t)

	err := h.ctrl.ConfirmPayment(context.Background(), models.PaymentOnlineBanking, "")
	require.Error(t, err)
	assert.Equal(t, issueFailedMessage, h.view.lastError())
	assert.Equal(t, models.StateReserved, h.ctrl.State())
	_, confirms := h.backend.calls()
	assert.Zero(t, confirms)
}

func TestConfirm_UnsettledPaymentKeepsReservation(t *testing.T) {
	issuer := &fakeIssuer{err: fmt.Errorf("payment has not been completed: payment intent pi_unpaid is requires_payment_method")}
	h := newHarness(t, Options{References: issuer})
	h.reserve(t)

	err := h.ctrl.ConfirmPayment(context.Background(), models.PaymentCard, "")
	require.Error(t, err)
	assert.Equal(t, models.StateReserved, h.ctrl.State())
	assert.Zero(t, h.view.countState(models.StateConfirmed))
	assert.Empty(t, h.outcomes.all())
	_, confirms := h.backend.calls()
	assert.Zero(t, confirms)

	h.clock.Advance(time.Second)
	text, _ := h.view.lastRender()
	assert.Equal(t, "9:59", text, "countdown keeps running")
}

func TestTerminalStatesClearSessionFields(t *testing.T) {
	assertCleared := func(t *testing.T, snap models.ReservationSession, state models.SessionState) {
		t.Helper()
		assert.Equal(t, state, snap.State)
		assert.Empty(t, snap.BookingID)
		assert.Empty(t, snap.BookingNumber)
		assert.True(t, snap.ReservedUntil.IsZero())
		assert.Empty(t, snap.UnitReference)
		assert.Empty(t, snap.Devotee.Name)
		assert.Zero(t, snap.Amount)
	}

	t.Run("confirmed", func(t *testing.T) {
		h := newHarness(t, Options{})
		h.reserve(t)
		require.NoError(t, h.ctrl.ConfirmPayment(context.Background(), models.PaymentCash, "RCPT-1"))

		assertCleared(t, h.ctrl.Snapshot(), models.StateConfirmed)
		outcomes := h.outcomes.all()
		require.Len(t, outcomes, 1)
		assert.Equal(t, "b-1", outcomes[0].BookingID)
		assert.Equal(t, "LB0001", outcomes[0].BookingNumber)
	})

	t.Run("expired", func(t *testing.T) {
		h := newHarness(t, Options{})
		h.reserve(t)
		h.clock.Advance(10 * time.Minute)

		assertCleared(t, h.ctrl.Snapshot(), models.StateExpired)
		outcomes := h.outcomes.all()
		require.Len(t, outcomes, 1)
		assert.Equal(t, "b-1", outcomes[0].BookingID)
		assert.False(t, outcomes[0].ReservedUntil.IsZero())
	})
}

func TestIdempotencyKeysPerRequest(t *testing.T) {
	h := newHarness(t, Options{})
	h.reserve(t)
	require.NoError(t, h.ctrl.ConfirmPayment(context.Background(), models.PaymentCash, ""))

	require.Len(t, h.backend.lastKeys, 2)
	assert.NotEmpty(t, h.backend.lastKeys[0])
	assert.NotEqual(t, h.backend.lastKeys[0], h.backend.lastKeys[1])
}

func TestTeardown_IsIdempotentAndClears(t *testing.T) {
	h := newHarness(t, Options{})
	h.reserve(t)
	h.clock.Advance(5 * time.Second)

	assert.NotPanics(t, h.ctrl.Teardown)
	first := h.ctrl.Snapshot()
	assert.NotPanics(t, h.ctrl.Teardown)
	second := h.ctrl.Snapshot()

	for _, snap := range []models.ReservationSession{first, second} {
		assert.Empty(t, snap.BookingID)
		assert.Empty(t, snap.BookingNumber)
		assert.True(t, snap.ReservedUntil.IsZero())
		assert.Empty(t, snap.UnitReference)
		assert.Empty(t, snap.Devotee.Name)
		assert.Equal(t, models.StateCancelled, snap.State)
	}
	assert.Zero(t, h.clock.Pending())

	renders := h.view.renderCount()
	h.clock.Advance(time.Hour)
	assert.Equal(t, renders, h.view.renderCount())

	outcomes := h.outcomes.all()
	require.Len(t, outcomes, 1)
	assert.Equal(t, models.StateCancelled, outcomes[0].State)

	assert.ErrorIs(t, h.ctrl.Submit(context.Background(), validForm()), ErrSessionClosed)
	assert.ErrorIs(t, h.ctrl.ConfirmPayment(context.Background(), models.PaymentCash, ""), ErrSessionClosed)
}

func TestTeardown_BeforeAnyReservation(t *testing.T) {
	h := newHarness(t, Options{})
	h.ctrl.Teardown()
	h.ctrl.Teardown()

	assert.Equal(t, models.StateCancelled, h.ctrl.State())
	assert.Empty(t, h.outcomes.all())
}

func TestTeardown_AbortsInFlightReserve(t *testing.T) {
	h := newHarness(t, Options{})
	entered := make(chan struct{})
	h.backend.reserveFn = func(ctx context.Context, req models.ReserveRequest) (*models.Reservation, error) {
		close(entered)
		<-ctx.Done()
		return nil, ctx.Err()
	}

	errCh := make(chan error, 1)
	go func() { errCh <- h.ctrl.Submit(context.Background(), validForm()) }()
	<-entered

	h.ctrl.Teardown()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, ErrStaleResult)
	case <-time.After(time.Second):
		t.Fatal("reserve request was not aborted by teardown")
	}
	assert.Zero(t, h.clock.Pending())
}

func TestTeardown_CancelsPendingRedirect(t *testing.T) {
	h := newHarness(t, Options{})
	h.reserve(t)
	h.clock.Advance(10 * time.Minute)
	require.Equal(t, models.StateExpired, h.ctrl.State())

	h.ctrl.Teardown()
	h.clock.Advance(time.Minute)

	assert.Empty(t, h.view.navs())
	assert.Equal(t, models.StateExpired, h.ctrl.State())
	assert.Len(t, h.outcomes.all(), 1)
}
