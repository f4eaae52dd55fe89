package pages

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"pagoda/database/repository/snapshot"
	"pagoda/models"
	"pagoda/services/reservation"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrPageNotFound     = errors.New("page not found")
	ErrPageClosed       = errors.New("page is closed")
	ErrFormLocked       = errors.New("form is locked while a reservation is held")
	ErrInvalidSelection = errors.New("invalid light selection")
)

const (
	mirrorTimeout  = 2 * time.Second
	receiptTimeout = 5 * time.Second
)

// ReceiptEnqueuer schedules the receipt push for a confirmed booking.
type ReceiptEnqueuer interface {
	EnqueueReceipt(ctx context.Context, payload models.ReceiptPayload) error
}

// Observer is told about page lifecycle events, typically to export metrics.
type Observer interface {
	PageOpened()
	PageClosed()
	SnapshotMirrorFailed()
	ReceiptQueued()
}

// Config wires a Registry. Backend is required; everything else is optional.
type Config struct {
	Backend    reservation.Backend
	References reservation.ReferenceIssuer
	Outcomes   []reservation.OutcomeRecorder
	Snapshots  snapshotRepo.SnapshotStore
	Receipts   ReceiptEnqueuer
	Observer   Observer

	Clock                reservation.Clock
	TickInterval         time.Duration
	UrgencyThreshold     time.Duration
	ExpiryRedirectDelay  time.Duration
	ConfirmRedirectDelay time.Duration
	IdleTTL              time.Duration
	BookingsListEnabled  bool
	NewID                func() string
	Logger               *zap.Logger
}

// Registry hosts the open pages of this instance. A page is built on Open and torn down on
// Close, by the janitor once idle, or on Shutdown.
type Registry struct {
	cfg Config
	log *zap.Logger

	mu    sync.RWMutex
	pages map[string]*Page
}

func NewRegistry(cfg Config) (*Registry, error) {
	if cfg.Backend == nil {
		return nil, errors.New("pages: booking backend is required")
	}
	if cfg.Clock == nil {
		cfg.Clock = reservation.SystemClock{}
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = 30 * time.Minute
	}
	if cfg.NewID == nil {
		cfg.NewID = func() string { return uuid.New().String() }
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Registry{
		cfg:   cfg,
		log:   cfg.Logger,
		pages: make(map[string]*Page),
	}, nil
}

// Open creates a page for a unit picked in the selection step.
func (r *Registry) Open(ctx context.Context, req models.OpenPageRequest) (*Page, error) {
	if strings.TrimSpace(req.UnitReference) == "" {
		return nil, fmt.Errorf("%w: unit_id is required", ErrInvalidSelection)
	}
	if req.Amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", ErrInvalidSelection)
	}

	id := r.cfg.NewID()
	page := newPage(id, req, r.cfg.Clock, r.cfg.BookingsListEnabled)
	page.mirror = r.mirrorFor(id)
	page.ctrl = reservation.New(r.cfg.Backend, page, reservation.Options{
		PageID:               id,
		Clock:                r.cfg.Clock,
		TickInterval:         r.cfg.TickInterval,
		UrgencyThreshold:     r.cfg.UrgencyThreshold,
		ExpiryRedirectDelay:  r.cfg.ExpiryRedirectDelay,
		ConfirmRedirectDelay: r.cfg.ConfirmRedirectDelay,
		References:           r.cfg.References,
		Outcomes:             r.outcomesFor(page),
		Logger:               r.log,
	})

	r.mu.Lock()
	r.pages[id] = page
	r.mu.Unlock()

	if r.cfg.Observer != nil {
		r.cfg.Observer.PageOpened()
	}
	r.log.Info("booking page opened",
		zap.String("page_id", id),
		zap.String("unit_id", req.UnitReference),
		zap.Float64("amount", req.Amount),
	)
	if page.mirror != nil {
		page.mirror(page.Snapshot())
	}
	return page, nil
}

// Get returns a live page and marks it active.
func (r *Registry) Get(id string) (*Page, error) {
	r.mu.RLock()
	page, ok := r.pages[id]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrPageNotFound
	}
	page.touch()
	return page, nil
}

// Snapshot answers from the local page, or from the mirror when another instance hosts it.
func (r *Registry) Snapshot(ctx context.Context, id string) (models.PageSnapshot, error) {
	if page, err := r.Get(id); err == nil {
		return page.Snapshot(), nil
	}
	if r.cfg.Snapshots == nil {
		return models.PageSnapshot{}, ErrPageNotFound
	}
	snap, err := r.cfg.Snapshots.Load(ctx, id)
	if errors.Is(err, snapshotRepo.ErrNotFound) {
		return models.PageSnapshot{}, ErrPageNotFound
	}
	if err != nil {
		return models.PageSnapshot{}, fmt.Errorf("load mirrored snapshot: %w", err)
	}
	return *snap, nil
}

// Close tears a page down and forgets it.
func (r *Registry) Close(id string) error {
	r.mu.Lock()
	page, ok := r.pages[id]
	delete(r.pages, id)
	r.mu.Unlock()
	if !ok {
		return ErrPageNotFound
	}

	page.Close()
	if r.cfg.Observer != nil {
		r.cfg.Observer.PageClosed()
	}
	r.log.Info("booking page closed", zap.String("page_id", id), zap.String("state", string(page.Snapshot().State)))
	return nil
}

// Len is the number of open pages.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.pages)
}

// Sweep closes every page idle for longer than the TTL, and returns how many it closed.
// A subscriber keeps a page alive only while its session is still running.
func (r *Registry) Sweep() int {
	now := r.cfg.Clock.Now()

	r.mu.RLock()
	var stale []string
	for id, page := range r.pages {
		idle, watched, ended := page.idleSince(now)
		if idle > r.cfg.IdleTTL && (!watched || ended) {
			stale = append(stale, id)
		}
	}
	r.mu.RUnlock()

	closed := 0
	for _, id := range stale {
		if err := r.Close(id); err == nil {
			closed++
		}
	}
	if closed > 0 {
		r.log.Info("idle booking pages closed", zap.Int("count", closed))
	}
	return closed
}

// StartJanitor sweeps at interval until the returned timer is stopped.
func (r *Registry) StartJanitor(interval time.Duration) reservation.Timer {
	if interval <= 0 {
		interval = time.Minute
	}
	return r.cfg.Clock.Every(interval, func() { r.Sweep() })
}

// Shutdown closes every page.
func (r *Registry) Shutdown() {
	r.mu.RLock()
	ids := make([]string, 0, len(r.pages))
	for id := range r.pages {
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	for _, id := range ids {
		_ = r.Close(id)
	}
}

// mirrorFor returns the page's snapshot writer. Snapshots published concurrently may
// arrive out of order, so older versions are dropped.
func (r *Registry) mirrorFor(id string) func(models.PageSnapshot) {
	store := r.cfg.Snapshots
	if store == nil {
		return nil
	}
	var (
		mu   sync.Mutex
		last int64
	)
	return func(snap models.PageSnapshot) {
		mu.Lock()
		defer mu.Unlock()
		if snap.Version <= last {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), mirrorTimeout)
		defer cancel()
		if err := store.Save(ctx, snap); err != nil {
			r.log.Warn("failed to mirror page snapshot", zap.String("page_id", id), zap.Error(err))
			if r.cfg.Observer != nil {
				r.cfg.Observer.SnapshotMirrorFailed()
			}
			return
		}
		last = snap.Version
	}
}

// outcomesFor fans a page's terminal outcome out to the configured sinks and queues the
// receipt of a confirmed booking.
func (r *Registry) outcomesFor(page *Page) reservation.OutcomeRecorder {
	return reservation.OutcomeFunc(func(ctx context.Context, outcome models.SessionOutcome) {
		for _, sink := range r.cfg.Outcomes {
			sink.RecordOutcome(ctx, outcome)
		}
		if outcome.State != models.StateConfirmed || page.deviceToken == "" || r.cfg.Receipts == nil {
			return
		}

		qctx, cancel := context.WithTimeout(ctx, receiptTimeout)
		defer cancel()
		err := r.cfg.Receipts.EnqueueReceipt(qctx, models.ReceiptPayload{
			DeviceToken:   page.deviceToken,
			BookingID:     outcome.BookingID,
			BookingNumber: outcome.BookingNumber,
			UnitLabel:     page.unitLabel,
			DevoteeName:   outcome.DevoteeName,
			Amount:        outcome.Amount,
			PaymentMode:   string(outcome.PaymentMode),
		})
		if err != nil {
			r.log.Error("failed to queue receipt", zap.String("booking_id", outcome.BookingID), zap.Error(err))
			return
		}
		if r.cfg.Observer != nil {
			r.cfg.Observer.ReceiptQueued()
		}
	})
}
