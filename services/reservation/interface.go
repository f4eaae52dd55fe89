package reservation

import (
	"context"
	"time"

	"pagoda/models"
	"pagoda/services/bookingapi"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// View is the page hosting a controller. The controller never calls it while holding its
// own lock, so implementations may call back into the controller.
type View interface {
	ShowError(message string)
	Notify(level models.MessageLevel, message string)
	SetFormDisabled(disabled bool)
	ShowPaymentPanel(bookingNumber string)
	RenderCountdown(text string, urgent bool)
	StateChanged(state models.SessionState)
	// Navigate asks the host to leave the page. It returns false when dest is unavailable.
	Navigate(dest models.Destination) bool
}

// ReferenceIssuer obtains a processor reference for electronic payments entered without one.
type ReferenceIssuer interface {
	IssueReference(ctx context.Context, mode models.PaymentMode, amount float64, bookingNumber string) (string, error)
}

// OutcomeRecorder receives every terminal session outcome that followed a reservation.
type OutcomeRecorder interface {
	RecordOutcome(ctx context.Context, outcome models.SessionOutcome)
}

// OutcomeFunc adapts a function to OutcomeRecorder.
type OutcomeFunc func(ctx context.Context, outcome models.SessionOutcome)

func (f OutcomeFunc) RecordOutcome(ctx context.Context, outcome models.SessionOutcome) {
	f(ctx, outcome)
}

// Options configures a Controller. Zero values fall back to the defaults below.
type Options struct {
	PageID               string
	Clock                Clock
	TickInterval         time.Duration
	UrgencyThreshold     time.Duration
	ExpiryRedirectDelay  time.Duration
	ConfirmRedirectDelay time.Duration
	References           ReferenceIssuer
	Outcomes             OutcomeRecorder
	NewIdempotencyKey    func() string
	Logger               *zap.Logger
}

const (
	DefaultTickInterval         = time.Second
	DefaultUrgencyThreshold     = 2 * time.Minute
	DefaultExpiryRedirectDelay  = 3 * time.Second
	DefaultConfirmRedirectDelay = 2 * time.Second
)

func (o Options) withDefaults() Options {
	if o.Clock == nil {
		o.Clock = SystemClock{}
	}
	if o.TickInterval <= 0 {
		o.TickInterval = DefaultTickInterval
	}
	if o.UrgencyThreshold <= 0 {
		o.UrgencyThreshold = DefaultUrgencyThreshold
	}
	if o.ExpiryRedirectDelay <= 0 {
		o.ExpiryRedirectDelay = DefaultExpiryRedirectDelay
	}
	if o.ConfirmRedirectDelay <= 0 {
		o.ConfirmRedirectDelay = DefaultConfirmRedirectDelay
	}
	if o.NewIdempotencyKey == nil {
		o.NewIdempotencyKey = func() string { return uuid.New().String() }
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

// Backend is the booking backend as seen by the controller.
type Backend = bookingapi.BookingAPI
