package pages

import (
	"context"
	"strings"
	"sync"
	"time"

	"pagoda/models"
	"pagoda/services/reservation"
)

const maxMessages = 20

// Page is one open booking form. It renders the controller's effects into a snapshot that
// clients poll or stream, and owns the controller for its whole life.
type Page struct {
	id          string
	unitLabel   string
	deviceToken string
	clock       reservation.Clock
	listEnabled bool
	ctrl        *reservation.Controller

	mu         sync.Mutex
	snap       models.PageSnapshot
	subs       map[*Subscription]struct{}
	lastActive time.Time
	closed     bool

	// mirror receives every published snapshot, outside mu.
	mirror func(models.PageSnapshot)
}

func newPage(id string, req models.OpenPageRequest, clock reservation.Clock, listEnabled bool) *Page {
	now := clock.Now()
	return &Page{
		id:          id,
		unitLabel:   strings.TrimSpace(req.UnitLabel),
		deviceToken: strings.TrimSpace(req.DeviceToken),
		clock:       clock,
		listEnabled: listEnabled,
		subs:        make(map[*Subscription]struct{}),
		lastActive:  now,
		snap: models.PageSnapshot{
			PageID:    id,
			UnitLabel: strings.TrimSpace(req.UnitLabel),
			Form: models.BookingForm{
				UnitReference: strings.TrimSpace(req.UnitReference),
				Amount:        req.Amount,
			},
			State:     models.StateIdle,
			UpdatedAt: now,
			Version:   1,
		},
	}
}

func (p *Page) ID() string { return p.id }

// Controller returns the reservation controller driving the page.
func (p *Page) Controller() *reservation.Controller { return p.ctrl }

// Snapshot returns a copy of what the page currently shows.
func (p *Page) Snapshot() models.PageSnapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return cloneSnapshot(p.snap)
}

// UpdateForm replaces the editable form fields. The unit and amount stay pinned to the
// selection the page was opened with.
func (p *Page) UpdateForm(form models.BookingForm) (models.PageSnapshot, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return models.PageSnapshot{}, ErrPageClosed
	}
	p.lastActive = p.clock.Now()
	if p.snap.FormDisabled {
		p.mu.Unlock()
		return models.PageSnapshot{}, ErrFormLocked
	}
	form.UnitReference = p.snap.Form.UnitReference
	form.Amount = p.snap.Form.Amount
	p.snap.Form = form
	p.snap.DurationLabel = form.Period().Label()
	snap, mirror := p.publishLocked()
	p.mu.Unlock()

	mirror(snap)
	return snap, nil
}

// Submit reserves the unit with the given form, or with the synced form when nil.
func (p *Page) Submit(ctx context.Context, form *models.BookingForm) error {
	if form != nil {
		if _, err := p.UpdateForm(*form); err != nil {
			return err
		}
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrPageClosed
	}
	p.lastActive = p.clock.Now()
	current := p.snap.Form
	p.mu.Unlock()

	return p.ctrl.Submit(ctx, current)
}

// ConfirmPayment forwards the payment entered in the payment panel.
func (p *Page) ConfirmPayment(ctx context.Context, mode models.PaymentMode, reference string) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrPageClosed
	}
	p.lastActive = p.clock.Now()
	p.mu.Unlock()

	return p.ctrl.ConfirmPayment(ctx, mode, reference)
}

// Subscribe returns a handle that receives the current snapshot and every later change.
// The handle must be released; closing the page releases it too.
func (p *Page) Subscribe() (*Subscription, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, ErrPageClosed
	}
	p.lastActive = p.clock.Now()

	s := &Subscription{page: p, ch: make(chan models.PageSnapshot, 1)}
	s.ch <- cloneSnapshot(p.snap)
	p.subs[s] = struct{}{}
	return s, nil
}

// Close tears the controller down, publishes the final snapshot and releases every
// subscription. Later calls do nothing.
func (p *Page) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()

	p.ctrl.Teardown()

	p.mu.Lock()
	p.snap.Closed = true
	p.snap.State = p.ctrl.State()
	p.snap.PaymentVisible = false
	p.snap.Countdown = ""
	p.snap.Urgent = false
	snap, mirror := p.publishLocked()
	for s := range p.subs {
		delete(p.subs, s)
		close(s.ch)
	}
	p.mu.Unlock()

	mirror(snap)
}

// idleSince reports how long the page has been inactive, whether anyone is subscribed and
// whether its session has ended.
func (p *Page) idleSince(now time.Time) (idle time.Duration, watched, ended bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return now.Sub(p.lastActive), len(p.subs) > 0, p.snap.State.Terminal()
}

func (p *Page) touch() {
	p.mu.Lock()
	p.lastActive = p.clock.Now()
	p.mu.Unlock()
}

func (p *Page) ShowError(message string) {
	p.update(func(s *models.PageSnapshot) {
		p.appendMessageLocked(models.MessageError, message)
	})
}

func (p *Page) Notify(level models.MessageLevel, message string) {
	p.update(func(s *models.PageSnapshot) {
		p.appendMessageLocked(level, message)
	})
}

func (p *Page) SetFormDisabled(disabled bool) {
	p.update(func(s *models.PageSnapshot) {
		s.FormDisabled = disabled
	})
}

func (p *Page) ShowPaymentPanel(bookingNumber string) {
	p.update(func(s *models.PageSnapshot) {
		s.PaymentVisible = true
		s.BookingNumber = bookingNumber
		s.PaymentModes = append([]models.PaymentMode(nil), models.PaymentModes...)
	})
}

func (p *Page) RenderCountdown(text string, urgent bool) {
	p.update(func(s *models.PageSnapshot) {
		s.Countdown = text
		s.Urgent = urgent
	})
}

func (p *Page) StateChanged(state models.SessionState) {
	p.update(func(s *models.PageSnapshot) {
		s.State = state
		if state.Terminal() {
			s.PaymentVisible = false
		}
	})
}

func (p *Page) Navigate(dest models.Destination) bool {
	if dest == models.DestinationBookingsList && !p.listEnabled {
		return false
	}
	p.update(func(s *models.PageSnapshot) {
		s.NavigateTo = dest
	})
	return true
}

// update applies fn and publishes the result. Effects arriving after Close are dropped.
func (p *Page) update(fn func(s *models.PageSnapshot)) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	fn(&p.snap)
	snap, mirror := p.publishLocked()
	p.mu.Unlock()

	mirror(snap)
}

func (p *Page) appendMessageLocked(level models.MessageLevel, text string) {
	p.snap.Messages = append(p.snap.Messages, models.PageMessage{
		Level: level,
		Text:  text,
		At:    p.clock.Now(),
	})
	if n := len(p.snap.Messages); n > maxMessages {
		p.snap.Messages = append([]models.PageMessage(nil), p.snap.Messages[n-maxMessages:]...)
	}
}

// publishLocked bumps the version and hands the newest snapshot to every subscriber,
// replacing one it has not read yet.
func (p *Page) publishLocked() (models.PageSnapshot, func(models.PageSnapshot)) {
	p.snap.Version++
	p.snap.UpdatedAt = p.clock.Now()
	snap := cloneSnapshot(p.snap)

	for s := range p.subs {
		select {
		case <-s.ch:
		default:
		}
		s.ch <- cloneSnapshot(snap)
	}

	mirror := p.mirror
	if mirror == nil {
		mirror = func(models.PageSnapshot) {}
	}
	return snap, mirror
}

func cloneSnapshot(s models.PageSnapshot) models.PageSnapshot {
	s.Messages = append([]models.PageMessage(nil), s.Messages...)
	s.PaymentModes = append([]models.PaymentMode(nil), s.PaymentModes...)
	return s
}

// Subscription is a handle on a page's snapshot stream.
type Subscription struct {
	page *Page
	ch   chan models.PageSnapshot
	once sync.Once
}

// C yields snapshots, newest only when the reader falls behind. It is closed on release.
func (s *Subscription) C() <-chan models.PageSnapshot { return s.ch }

// Release detaches the handle. It is safe to call more than once and after the page closed.
func (s *Subscription) Release() {
	s.once.Do(func() {
		p := s.page
		p.mu.Lock()
		defer p.mu.Unlock()
		if _, ok := p.subs[s]; ok {
			delete(p.subs, s)
			close(s.ch)
		}
	})
}
