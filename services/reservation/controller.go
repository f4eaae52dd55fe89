package reservation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"pagoda/models"
	"pagoda/services/bookingapi"

	"go.uber.org/zap"
)

const (
	reserveFailedMessage = "Failed to reserve the light. Please try again."
	confirmFailedMessage = "Failed to confirm payment. Please try again."
	issueFailedMessage   = "The electronic payment could not be verified. Please complete the payment and try again."
	expiredMessage       = "Your reservation has expired. Please select a light again."
	outcomeTimeout       = 5 * time.Second
)

// Controller drives one light booking attempt from form submission through payment
// confirmation or expiry. It is owned by the page that created it and must be torn down
// when that page goes away.
type Controller struct {
	api  Backend
	view View
	opts Options
	log  *zap.Logger

	// life is cancelled on teardown so in-flight requests abort.
	life   context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	session  models.ReservationSession
	mode     models.PaymentMode
	ticker   Timer
	tickGen  int64
	redirect Timer
	disposed bool
}

// New returns an idle controller bound to view.
func New(api Backend, view View, opts Options) *Controller {
	opts = opts.withDefaults()
	life, cancel := context.WithCancel(context.Background())
	return &Controller{
		api:     api,
		view:    view,
		opts:    opts,
		log:     opts.Logger.With(zap.String("page_id", opts.PageID)),
		life:    life,
		cancel:  cancel,
		session: models.ReservationSession{State: models.StateIdle},
	}
}

// effects are view calls collected under the lock and run after it is released.
type effects []func()

func (fx *effects) add(f func()) { *fx = append(*fx, f) }

func (fx effects) run() {
	for _, f := range fx {
		f()
	}
}

// Submit validates the form and reserves the unit. On success the form is locked, the
// payment panel is shown and the countdown starts.
func (c *Controller) Submit(ctx context.Context, form models.BookingForm) error {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return ErrSessionClosed
	}
	switch state := c.session.State; {
	case state == models.StateReserving:
		c.mu.Unlock()
		return ErrSubmissionInFlight
	case state.Terminal():
		c.mu.Unlock()
		return ErrSessionClosed
	case state != models.StateIdle:
		c.mu.Unlock()
		return ErrAlreadyReserved
	}

	devotee, period, err := ValidateForm(form)
	if err != nil {
		c.mu.Unlock()
		var fe *FieldError
		if errors.As(err, &fe) {
			c.view.ShowError(fe.Message)
		}
		return err
	}

	c.session.State = models.StateReserving
	c.session.UnitReference = strings.TrimSpace(form.UnitReference)
	c.session.Amount = form.Amount
	c.session.Devotee = devotee
	c.session.Period = period
	req := models.ReserveRequest{
		UnitID:           c.session.UnitReference,
		DevoteeName:      devotee.Name,
		DevoteeNRIC:      devotee.NRIC,
		DevoteePhone:     devotee.Contact,
		DevoteeEmail:     devotee.Email,
		OfferingDateFrom: period.From.Format(models.DateLayout),
		OfferingDateTo:   period.To.Format(models.DateLayout),
		Amount:           form.Amount,
	}
	key := c.opts.NewIdempotencyKey()
	c.mu.Unlock()

	c.view.SetFormDisabled(true)
	c.view.StateChanged(models.StateReserving)

	reqCtx, done := c.requestContext(ctx)
	res, err := c.api.Reserve(reqCtx, req, key)
	done()

	c.mu.Lock()
	if c.disposed || c.session.State != models.StateReserving {
		c.mu.Unlock()
		if err == nil {
			c.log.Warn("reservation arrived after the page closed",
				zap.String("booking_id", res.Booking.BookingID))
		}
		return ErrStaleResult
	}

	if err != nil {
		c.session.State = models.StateIdle
		c.mu.Unlock()

		msg := backendMessage(err, reserveFailedMessage)
		c.log.Info("reservation failed", zap.String("unit_id", req.UnitID), zap.Error(err))
		c.view.ShowError(msg)
		c.view.SetFormDisabled(false)
		c.view.StateChanged(models.StateIdle)

		var apiErr *bookingapi.APIError
		if errors.As(err, &apiErr) {
			return &ReserveRejectedError{Message: msg, Err: err}
		}
		return fmt.Errorf("reserve: %w", err)
	}

	c.session.BookingID = res.Booking.BookingID
	c.session.BookingNumber = res.Booking.BookingNumber
	c.session.ReservedUntil = res.ReservedUntil
	c.session.State = models.StateReserved
	number := res.Booking.BookingNumber

	var fx effects
	fx.add(func() {
		c.view.StateChanged(models.StateReserved)
		c.view.SetFormDisabled(true)
		c.view.ShowPaymentPanel(number)
	})
	c.startCountdownLocked(&fx)
	c.mu.Unlock()

	c.log.Info("light reserved",
		zap.String("booking_id", res.Booking.BookingID),
		zap.String("booking_number", number),
		zap.Time("reserved_until", res.ReservedUntil),
	)
	fx.run()
	return nil
}

// ConfirmPayment records the payment against the held reservation. A rejection leaves the
// reservation in place and the countdown running, so the user can retry until expiry.
func (c *Controller) ConfirmPayment(ctx context.Context, mode models.PaymentMode, reference string) error {
	mode = models.PaymentMode(strings.ToUpper(strings.TrimSpace(string(mode))))
	reference = strings.TrimSpace(reference)

	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return ErrSessionClosed
	}
	if mode == "" {
		c.mu.Unlock()
		c.view.ShowError("Please select a payment mode")
		return ErrMissingPaymentMode
	}
	if !mode.Valid() {
		c.mu.Unlock()
		c.view.ShowError("Unsupported payment mode")
		return fmt.Errorf("%w: %s", ErrInvalidPaymentMode, mode)
	}
	switch state := c.session.State; {
	case state == models.StatePaymentPending:
		c.mu.Unlock()
		return ErrConfirmInFlight
	case state.Terminal():
		c.mu.Unlock()
		return ErrSessionClosed
	case state != models.StateReserved:
		c.mu.Unlock()
		return ErrNotReserved
	}

	c.session.State = models.StatePaymentPending
	bookingID := c.session.BookingID
	number := c.session.BookingNumber
	amount := c.session.Amount
	key := c.opts.NewIdempotencyKey()
	c.mu.Unlock()

	c.view.StateChanged(models.StatePaymentPending)

	reqCtx, done := c.requestContext(ctx)
	defer done()

	var err error
	issuing := false
	if reference == "" && mode.Electronic() && c.opts.References != nil {
		issuing = true
		reference, err = c.opts.References.IssueReference(reqCtx, mode, amount, number)
	}
	if err == nil {
		issuing = false
		err = c.api.Confirm(reqCtx, bookingID, models.ConfirmRequest{
			PaymentMode:      mode,
			PaymentReference: reference,
		}, key)
	}

	c.mu.Lock()
	if c.disposed || c.session.State != models.StatePaymentPending {
		state := c.session.State
		c.mu.Unlock()
		c.log.Info("confirmation result ignored",
			zap.String("booking_id", bookingID),
			zap.String("state", string(state)),
			zap.Error(err),
		)
		return ErrStaleResult
	}

	if err != nil {
		c.session.State = models.StateReserved
		c.mu.Unlock()

		c.log.Info("payment confirmation failed", zap.String("booking_id", bookingID), zap.Error(err))
		if issuing {
			c.view.ShowError(issueFailedMessage)
			c.view.StateChanged(models.StateReserved)
			return fmt.Errorf("issue payment reference: %w", err)
		}

		msg := backendMessage(err, confirmFailedMessage)
		c.view.ShowError(msg)
		c.view.StateChanged(models.StateReserved)

		var apiErr *bookingapi.APIError
		if errors.As(err, &apiErr) {
			return &ConfirmRejectedError{Message: msg, Err: err}
		}
		return fmt.Errorf("confirm payment: %w", err)
	}

	c.stopCountdownLocked()
	c.session.State = models.StateConfirmed
	c.mode = mode
	outcome := c.outcomeLocked()
	c.clearLocked()
	c.scheduleRedirectLocked(c.opts.ConfirmRedirectDelay, models.DestinationBookingsList)

	var fx effects
	notice := "Payment confirmed."
	if number != "" {
		notice = fmt.Sprintf("Payment confirmed. Booking number: %s", number)
	}
	fx.add(func() {
		c.view.StateChanged(models.StateConfirmed)
		c.view.Notify(models.MessageSuccess, notice)
	})
	c.recordLocked(&fx, outcome)
	c.mu.Unlock()

	c.log.Info("booking confirmed", zap.String("booking_id", bookingID), zap.String("mode", string(mode)))
	fx.run()
	return nil
}

// Teardown stops every timer, aborts in-flight requests and clears the session. It is safe
// to call any number of times.
func (c *Controller) Teardown() {
	var fx effects

	c.mu.Lock()
	if !c.disposed {
		c.disposed = true
		c.cancel()
		c.stopCountdownLocked()
		if c.redirect != nil {
			c.redirect.Stop()
			c.redirect = nil
		}

		final := c.session.State
		if !final.Terminal() {
			if c.session.BookingID != "" {
				c.session.State = models.StateCancelled
				c.recordLocked(&fx, c.outcomeLocked())
			}
			final = models.StateCancelled
		}
		c.session.State = final
		c.clearLocked()
	}
	c.mu.Unlock()

	fx.run()
}

// Snapshot returns a copy of the session.
func (c *Controller) Snapshot() models.ReservationSession {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// State returns the current lifecycle state.
func (c *Controller) State() models.SessionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.State
}

// Remaining is the time left on the reservation, or zero when no countdown runs.
func (c *Controller) Remaining() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.session.State.Counting() {
		return 0
	}
	return c.session.ReservedUntil.Sub(c.opts.Clock.Now())
}

// requestContext returns a context that ends with parent or with the controller.
func (c *Controller) requestContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	stop := context.AfterFunc(c.life, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

// startCountdownLocked replaces any running countdown and renders the first tick at once.
func (c *Controller) startCountdownLocked(fx *effects) {
	c.stopCountdownLocked()
	c.tickGen++
	gen := c.tickGen
	c.ticker = c.opts.Clock.Every(c.opts.TickInterval, func() { c.tick(gen) })
	c.tickLocked(fx)
}

func (c *Controller) stopCountdownLocked() {
	if c.ticker != nil {
		c.ticker.Stop()
		c.ticker = nil
	}
}

func (c *Controller) tick(gen int64) {
	c.mu.Lock()
	if c.disposed || gen != c.tickGen {
		c.mu.Unlock()
		return
	}
	var fx effects
	c.tickLocked(&fx)
	c.mu.Unlock()
	fx.run()
}

// tickLocked recomputes the remaining time from the server-issued expiry on every call.
func (c *Controller) tickLocked(fx *effects) {
	if !c.session.State.Counting() {
		c.stopCountdownLocked()
		return
	}
	remaining := c.session.ReservedUntil.Sub(c.opts.Clock.Now())
	if remaining <= 0 {
		c.expireLocked(fx)
		return
	}
	text := FormatRemaining(remaining)
	urgent := Urgent(remaining, c.opts.UrgencyThreshold)
	fx.add(func() { c.view.RenderCountdown(text, urgent) })
}

func (c *Controller) expireLocked(fx *effects) {
	c.stopCountdownLocked()
	c.session.State = models.StateExpired
	outcome := c.outcomeLocked()
	c.clearLocked()
	c.scheduleRedirectLocked(c.opts.ExpiryRedirectDelay, models.DestinationBack)

	c.log.Info("reservation expired", zap.String("booking_id", outcome.BookingID))
	fx.add(func() {
		c.view.RenderCountdown(FormatRemaining(0), true)
		c.view.StateChanged(models.StateExpired)
		c.view.Notify(models.MessageWarning, expiredMessage)
	})
	c.recordLocked(fx, outcome)
}

// clearLocked drops every session field except the state.
func (c *Controller) clearLocked() {
	c.session = models.ReservationSession{State: c.session.State}
	c.mode = ""
}

func (c *Controller) scheduleRedirectLocked(delay time.Duration, dest models.Destination) {
	if c.redirect != nil {
		c.redirect.Stop()
	}
	c.redirect = c.opts.Clock.AfterFunc(delay, func() { c.navigate(dest) })
}

func (c *Controller) navigate(dest models.Destination) {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return
	}
	c.redirect = nil
	c.mu.Unlock()

	if !c.view.Navigate(dest) && dest != models.DestinationBack {
		c.view.Navigate(models.DestinationBack)
	}
}

func (c *Controller) outcomeLocked() models.SessionOutcome {
	return models.SessionOutcome{
		PageID:        c.opts.PageID,
		BookingID:     c.session.BookingID,
		BookingNumber: c.session.BookingNumber,
		UnitReference: c.session.UnitReference,
		Amount:        c.session.Amount,
		DevoteeName:   c.session.Devotee.Name,
		PaymentMode:   c.mode,
		State:         c.session.State,
		ReservedUntil: c.session.ReservedUntil,
		RecordedAt:    c.opts.Clock.Now(),
	}
}

func (c *Controller) recordLocked(fx *effects, outcome models.SessionOutcome) {
	rec := c.opts.Outcomes
	if rec == nil {
		return
	}
	fx.add(func() {
		ctx, cancel := context.WithTimeout(context.Background(), outcomeTimeout)
		defer cancel()
		rec.RecordOutcome(ctx, outcome)
	})
}

// backendMessage returns the backend's own wording when there is one.
func backendMessage(err error, fallback string) string {
	var apiErr *bookingapi.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return fallback
}
