package gps

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"

	"github.com/mswcd/fieldkit/internal/timeutil"
)

// ErrNoFix is returned by Current when no position has been received or the
// receiver has gone quiet for longer than the stale limit.
var ErrNoFix = errors.New("no GPS fix")

// TrackerOptions configures update filtering. A new position is published
// only when at least MinInterval has passed and the receiver has moved at
// least MinDistanceM since the last published fix.
type TrackerOptions struct {
	MinInterval  time.Duration
	MinDistanceM float64
	// StaleAfter is how long without any valid sentence before the fix is
	// considered lost. Zero disables the check.
	StaleAfter time.Duration
	Clock      timeutil.Clock
}

// Stats counts sentences seen by a Tracker.
type Stats struct {
	Sentences int `json:"sentences"`
	Errors    int `json:"errors"`
	Fixes     int `json:"fixes"`
	Published int `json:"published"`
}

// Tracker keeps the latest published fix.
type Tracker struct {
	opts TrackerOptions

	mu        sync.Mutex
	latest    Fix
	published Fix
	have      bool
	lastSeen  time.Time
	stats     Stats
}

func NewTracker(opts TrackerOptions) *Tracker {
	if opts.Clock == nil {
		opts.Clock = timeutil.RealClock{}
	}
	return &Tracker{opts: opts}
}

// Run consumes sentences from src until ctx is done or src closes the
// subscription.
func (t *Tracker) Run(ctx context.Context, src Source) error {
	id, lines := src.Subscribe()
	defer src.Unsubscribe(id)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			t.HandleLine(line)
		}
	}
}

// HandleLine parses one sentence and feeds any fix it carries to Update.
func (t *Tracker) HandleLine(line string) {
	fix, ok, err := ParseSentence(line)

	t.mu.Lock()
	t.stats.Sentences++
	if err != nil {
		t.stats.Errors++
		// log the first few so a misconfigured baud rate is visible
		if t.stats.Errors <= 3 {
			log.Printf("gps: %v", err)
		}
	}
	t.mu.Unlock()

	if ok {
		t.Update(fix)
	}
}

// Update merges fix into the running state and reports whether it was
// published.
func (t *Tracker) Update(fix Fix) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.opts.Clock.Now()
	t.stats.Fixes++
	t.lastSeen = now

	t.latest.Lat, t.latest.Lon = fix.Lat, fix.Lon
	if fix.HasAltitude {
		t.latest.AltitudeM = fix.AltitudeM
		t.latest.AccuracyM = fix.AccuracyM
		t.latest.Satellites = fix.Satellites
		t.latest.HasAltitude = true
	}
	if fix.HasSpeed {
		t.latest.SpeedMPS = fix.SpeedMPS
		t.latest.HasSpeed = true
	}
	t.latest.Time = now

	if t.have {
		if now.Sub(t.published.Time) < t.opts.MinInterval {
			return false
		}
		moved := geo.DistanceHaversine(
			orb.Point{t.published.Lon, t.published.Lat},
			orb.Point{t.latest.Lon, t.latest.Lat},
		)
		if moved < t.opts.MinDistanceM {
			return false
		}
	}

	t.published = t.latest
	t.have = true
	t.stats.Published++
	return true
}

// Current returns the last published fix.
func (t *Tracker) Current() (Fix, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.have {
		return Fix{}, ErrNoFix
	}
	if t.opts.StaleAfter > 0 && t.opts.Clock.Since(t.lastSeen) > t.opts.StaleAfter {
		return Fix{}, ErrNoFix
	}
	return t.published, nil
}

func (t *Tracker) Stats() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stats
}
