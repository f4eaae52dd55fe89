package reservation

import (
	"sort"
	"sync"
	"time"
)

// Timer is a handle on a scheduled callback. Stop reports whether the call stopped it.
type Timer interface {
	Stop() bool
}

// Clock is the wall-clock and timer source the controller runs against.
type Clock interface {
	Now() time.Time
	// Every calls fn every d until the returned Timer is stopped.
	Every(d time.Duration, fn func()) Timer
	// AfterFunc calls fn once after d unless the returned Timer is stopped first.
	AfterFunc(d time.Duration, fn func()) Timer
}

// SystemClock is the real-time Clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

func (SystemClock) AfterFunc(d time.Duration, fn func()) Timer {
	return time.AfterFunc(d, fn)
}

func (SystemClock) Every(d time.Duration, fn func()) Timer {
	t := &tickerTimer{stop: make(chan struct{})}
	ticker := time.NewTicker(d)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-t.stop:
				return
			case <-ticker.C:
				fn()
			}
		}
	}()
	return t
}

type tickerTimer struct {
	once sync.Once
	stop chan struct{}
}

func (t *tickerTimer) Stop() bool {
	stopped := false
	t.once.Do(func() {
		close(t.stop)
		stopped = true
	})
	return stopped
}

// ManualClock is a Clock whose time only moves when Advance or Set is called. Due callbacks
// run synchronously on the caller's goroutine, in time order, which makes countdown
// behaviour reproducible in tests.
type ManualClock struct {
	mu      sync.Mutex
	now     time.Time
	nextID  int64
	entries map[int64]*manualEntry
}

type manualEntry struct {
	id     int64
	at     time.Time
	period time.Duration
	fn     func()
	clock  *ManualClock
}

// NewManualClock returns a ManualClock reading start.
func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{now: start, entries: make(map[int64]*manualEntry)}
}

func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *ManualClock) Every(d time.Duration, fn func()) Timer {
	if d <= 0 {
		panic("reservation: non-positive interval for ManualClock.Every")
	}
	return c.schedule(d, d, fn)
}

func (c *ManualClock) AfterFunc(d time.Duration, fn func()) Timer {
	return c.schedule(d, 0, fn)
}

func (c *ManualClock) schedule(d, period time.Duration, fn func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	e := &manualEntry{id: c.nextID, at: c.now.Add(d), period: period, fn: fn, clock: c}
	c.entries[e.id] = e
	return e
}

func (e *manualEntry) Stop() bool {
	e.clock.mu.Lock()
	defer e.clock.mu.Unlock()
	if _, ok := e.clock.entries[e.id]; !ok {
		return false
	}
	delete(e.clock.entries, e.id)
	return true
}

// Pending returns the number of scheduled callbacks that have not fired or been stopped.
func (c *ManualClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Set moves the clock to t, firing everything due on the way. Moving backwards only
// changes what Now returns.
func (c *ManualClock) Set(t time.Time) {
	c.mu.Lock()
	if t.Before(c.now) {
		c.now = t
		c.mu.Unlock()
		return
	}
	d := t.Sub(c.now)
	c.mu.Unlock()
	c.Advance(d)
}

// Advance moves the clock forward by d, firing every callback that falls due.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	c.mu.Unlock()

	for {
		c.mu.Lock()
		e := c.nextDueLocked(target)
		if e == nil {
			c.now = target
			c.mu.Unlock()
			return
		}
		c.now = e.at
		if e.period > 0 {
			e.at = e.at.Add(e.period)
		} else {
			delete(c.entries, e.id)
		}
		fn := e.fn
		c.mu.Unlock()

		fn()
	}
}

func (c *ManualClock) nextDueLocked(target time.Time) *manualEntry {
	due := make([]*manualEntry, 0, len(c.entries))
	for _, e := range c.entries {
		if !e.at.After(target) {
			due = append(due, e)
		}
	}
	if len(due) == 0 {
		return nil
	}
	sort.Slice(due, func(i, j int) bool {
		if due[i].at.Equal(due[j].at) {
			return due[i].id < due[j].id
		}
		return due[i].at.Before(due[j].at)
	})
	return due[0]
}
