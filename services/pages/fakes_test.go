package pages

import (
	"context"
	"errors"
	"sync"
	"time"

	"pagoda/database/repository/snapshot"
	"pagoda/models"
	"pagoda/services/reservation"
)

var testStart = time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)

type stubBackend struct {
	mu         sync.Mutex
	until      time.Time
	reserveErr error
	confirmErr error
	reserved   []models.ReserveRequest
}

func (b *stubBackend) Reserve(ctx context.Context, req models.ReserveRequest, key string) (*models.Reservation, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.reserved = append(b.reserved, req)
	if b.reserveErr != nil {
		return nil, b.reserveErr
	}
	return &models.Reservation{
		Booking:       models.ReservedBooking{BookingID: "b-1", BookingNumber: "LB0001"},
		ReservedUntil: b.until,
	}, nil
}

func (b *stubBackend) Confirm(ctx context.Context, bookingID string, req models.ConfirmRequest, key string) error {
	return b.confirmErr
}

type memSnapshots struct {
	mu    sync.Mutex
	snaps map[string]models.PageSnapshot
	saves int
	err   error
}

func newMemSnapshots() *memSnapshots {
	return &memSnapshots{snaps: map[string]models.PageSnapshot{}}
}

func (m *memSnapshots) Save(ctx context.Context, snap models.PageSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.saves++
	m.snaps[snap.PageID] = snap
	return nil
}

func (m *memSnapshots) Load(ctx context.Context, pageID string) (*models.PageSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap, ok := m.snaps[pageID]
	if !ok {
		return nil, snapshotRepo.ErrNotFound
	}
	return &snap, nil
}

func (m *memSnapshots) Delete(ctx context.Context, pageID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.snaps, pageID)
	return nil
}

func (m *memSnapshots) get(pageID string) (models.PageSnapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap, ok := m.snaps[pageID]
	return snap, ok
}

type receiptLog struct {
	mu       sync.Mutex
	payloads []models.ReceiptPayload
	err      error
}

func (r *receiptLog) EnqueueReceipt(ctx context.Context, p models.ReceiptPayload) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.payloads = append(r.payloads, p)
	return nil
}

type countingObserver struct {
	mu                             sync.Mutex
	opened, closed, mirrorFailures int
	receipts                       int
}

func (o *countingObserver) PageOpened()           { o.mu.Lock(); o.opened++; o.mu.Unlock() }
func (o *countingObserver) PageClosed()           { o.mu.Lock(); o.closed++; o.mu.Unlock() }
func (o *countingObserver) SnapshotMirrorFailed() { o.mu.Lock(); o.mirrorFailures++; o.mu.Unlock() }
func (o *countingObserver) ReceiptQueued()        { o.mu.Lock(); o.receipts++; o.mu.Unlock() }

type outcomeSink struct {
	mu       sync.Mutex
	outcomes []models.SessionOutcome
}

func (s *outcomeSink) RecordOutcome(ctx context.Context, o models.SessionOutcome) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outcomes = append(s.outcomes, o)
}

func (s *outcomeSink) states() []models.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.SessionState
	for _, o := range s.outcomes {
		out = append(out, o.State)
	}
	return out
}

var errBoom = errors.New("boom")

type fixture struct {
	reg       *Registry
	clock     *reservation.ManualClock
	backend   *stubBackend
	snapshots *memSnapshots
	receipts  *receiptLog
	observer  *countingObserver
	sink      *outcomeSink
}

func newFixture(listEnabled bool) *fixture {
	f := &fixture{
		clock:     reservation.NewManualClock(testStart),
		backend:   &stubBackend{until: testStart.Add(10 * time.Minute)},
		snapshots: newMemSnapshots(),
		receipts:  &receiptLog{},
		observer:  &countingObserver{},
		sink:      &outcomeSink{},
	}
	n := 0
	reg, err := NewRegistry(Config{
		Backend:             f.backend,
		Outcomes:            []reservation.OutcomeRecorder{f.sink},
		Snapshots:           f.snapshots,
		Receipts:            f.receipts,
		Observer:            f.observer,
		Clock:               f.clock,
		IdleTTL:             30 * time.Minute,
		BookingsListEnabled: listEnabled,
		NewID: func() string {
			n++
			return "page-" + string(rune('0'+n))
		},
	})
	if err != nil {
		panic(err)
	}
	f.reg = reg
	return f
}

func openRequest() models.OpenPageRequest {
	return models.OpenPageRequest{
		UnitReference: "unit-42",
		UnitLabel:     "Tower A / Block 3 / #42",
		Amount:        88,
		DeviceToken:   "device-token",
	}
}

func filledForm() models.BookingForm {
	return models.BookingForm{
		DevoteeName:  "Tan Ah Kow",
		DevoteePhone: "0123456789",
		DevoteeEmail: "tan@example.com",
		DateFrom:     "2025-01-01",
		DateTo:       "2025-01-05",
	}
}

// drain reads ch until it is closed and returns the last snapshot received.
func drain(ch <-chan models.PageSnapshot) models.PageSnapshot {
	var last models.PageSnapshot
	for snap := range ch {
		last = snap
	}
	return last
}
