package reservation

import (
	"context"
	"sync"
	"time"

	"pagoda/models"
)

var testStart = time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)

// fakeBackend answers reserve/confirm from overridable funcs and counts calls.
type fakeBackend struct {
	mu           sync.Mutex
	reserveCalls int
	confirmCalls int
	lastReserve  models.ReserveRequest
	lastConfirm  models.ConfirmRequest
	lastKeys     []string

	reserveFn func(ctx context.Context, req models.ReserveRequest) (*models.Reservation, error)
	confirmFn func(ctx context.Context, bookingID string, req models.ConfirmRequest) error
}

func newFakeBackend(reservedUntil time.Time) *fakeBackend {
	return &fakeBackend{
		reserveFn: func(ctx context.Context, req models.ReserveRequest) (*models.Reservation, error) {
			return &models.Reservation{
				Booking:       models.ReservedBooking{BookingID: "b-1", BookingNumber: "LB0001"},
				ReservedUntil: reservedUntil,
			}, nil
		},
		confirmFn: func(ctx context.Context, bookingID string, req models.ConfirmRequest) error {
			return nil
		},
	}
}

func (f *fakeBackend) Reserve(ctx context.Context, req models.ReserveRequest, key string) (*models.Reservation, error) {
	f.mu.Lock()
	f.reserveCalls++
	f.lastReserve = req
	f.lastKeys = append(f.lastKeys, key)
	fn := f.reserveFn
	f.mu.Unlock()
	return fn(ctx, req)
}

func (f *fakeBackend) Confirm(ctx context.Context, bookingID string, req models.ConfirmRequest, key string) error {
	f.mu.Lock()
	f.confirmCalls++
	f.lastConfirm = req
	f.lastKeys = append(f.lastKeys, key)
	fn := f.confirmFn
	f.mu.Unlock()
	return fn(ctx, bookingID, req)
}

func (f *fakeBackend) calls() (reserve, confirm int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reserveCalls, f.confirmCalls
}

// recordingView keeps every call the controller made.
type recordingView struct {
	mu             sync.Mutex
	errors         []string
	notices        []models.PageMessage
	formDisabled   bool
	paymentNumber  string
	paymentShown   bool
	renders        []string
	urgent         []bool
	states         []models.SessionState
	navigations    []models.Destination
	bookingsListOK bool
}

func newRecordingView() *recordingView {
	return &recordingView{bookingsListOK: true}
}

func (v *recordingView) ShowError(message string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.errors = append(v.errors, message)
}

func (v *recordingView) Notify(level models.MessageLevel, message string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.notices = append(v.notices, models.PageMessage{Level: level, Text: message})
}

func (v *recordingView) SetFormDisabled(disabled bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.formDisabled = disabled
}

func (v *recordingView) ShowPaymentPanel(bookingNumber string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.paymentShown = true
	v.paymentNumber = bookingNumber
}

func (v *recordingView) RenderCountdown(text string, urgent bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.renders = append(v.renders, text)
	v.urgent = append(v.urgent, urgent)
}

func (v *recordingView) StateChanged(state models.SessionState) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.states = append(v.states, state)
}

func (v *recordingView) Navigate(dest models.Destination) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if dest == models.DestinationBookingsList && !v.bookingsListOK {
		return false
	}
	v.navigations = append(v.navigations, dest)
	return true
}

func (v *recordingView) lastRender() (string, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if len(v.renders) == 0 {
		return "", false
	}
	return v.renders[len(v.renders)-1], v.urgent[len(v.urgent)-1]
}

func (v *recordingView) renderCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.renders)
}

func (v *recordingView) countState(state models.SessionState) int {
	v.mu.Lock()
	defer v.mu.Unlock()
	n := 0
	for _, s := range v.states {
		if s == state {
			n++
		}
	}
	return n
}

func (v *recordingView) lastError() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	if len(v.errors) == 0 {
		return ""
	}
	return v.errors[len(v.errors)-1]
}

func (v *recordingView) navs() []models.Destination {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]models.Destination(nil), v.navigations...)
}

// outcomeLog collects recorded outcomes.
type outcomeLog struct {
	mu       sync.Mutex
	outcomes []models.SessionOutcome
}

func (l *outcomeLog) RecordOutcome(ctx context.Context, o models.SessionOutcome) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.outcomes = append(l.outcomes, o)
}

func (l *outcomeLog) all() []models.SessionOutcome {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]models.SessionOutcome(nil), l.outcomes...)
}

type fakeIssuer struct {
	ref   string
	err   error
	calls int
}

func (f *fakeIssuer) IssueReference(ctx context.Context, mode models.PaymentMode, amount float64, bookingNumber string) (string, error) {
	f.calls++
	return f.ref, f.err
}

func validForm() models.BookingForm {
	return models.BookingForm{
		UnitReference: "tower-a/block-3/unit-12",
		Amount:        88,
		DevoteeName:   "Tan Ah Kow",
		DevoteePhone:  "012-3456789",
		DevoteeEmail:  "tan@example.com",
		DateFrom:      "2025-01-01",
		DateTo:        "2025-01-05",
	}
}
