package poller

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/homecloud/thinqd/thinq"
	"github.com/homecloud/thinqd/thinq/devices"
)

// Poller runs one poll loop per device. A global semaphore bounds
// concurrent gateway calls; a per-device mutex serializes a device's
// polls against its commands.
type Poller struct {
	source   Source
	interval time.Duration
	sem      *semaphore.Weighted

	// OnStatus receives every successful poll result. Optional.
	OnStatus func(deviceID string, status devices.Status)

	// OnAuthExpired fires when the refresh token is rejected and the
	// user has to log in again. Optional.
	OnAuthExpired func(err error)

	mu     sync.Mutex
	locks  map[string]*sync.Mutex
	latest map[string]devices.Status

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

func New(source Source, interval time.Duration, maxConcurrent int) *Poller {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &Poller{
		source:   source,
		interval: interval,
		sem:      semaphore.NewWeighted(int64(maxConcurrent)),
		locks:    make(map[string]*sync.Mutex),
		latest:   make(map[string]devices.Status),
	}
}

// Run starts one loop per device and blocks until Stop or ctx cancel.
func (p *Poller) Run(ctx context.Context, deviceIDs []string) {
	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	for _, deviceID := range deviceIDs {
		p.wg.Add(1)
		go p.loop(ctx, deviceID)
	}
	p.wg.Wait()
}

// Stop cancels all loops and waits for them to drain.
func (p *Poller) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
}

func (p *Poller) loop(ctx context.Context, deviceID string) {
	defer p.wg.Done()

	// Immediate first poll so the daemon has data before the first tick.
	p.pollOnce(ctx, deviceID)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.pollOnce(ctx, deviceID)
		}
	}
}

func (p *Poller) pollOnce(ctx context.Context, deviceID string) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return
	}
	defer p.sem.Release(1)

	lock := p.deviceLock(deviceID)
	lock.Lock()
	defer lock.Unlock()

	start := time.Now()
	status, err := p.source.Poll(ctx, deviceID)
	pollLatency.WithLabelValues(deviceID).Observe(time.Since(start).Seconds())

	switch {
	case err == nil:
		pollSuccess.WithLabelValues(deviceID).Inc()
		lastSuccess.WithLabelValues(deviceID).SetToCurrentTime()
		p.record(deviceID, status)
	case errors.Is(err, thinq.ErrNotReady):
		// No data in the window. Not a failure, keep the last snapshot.
	case errors.Is(err, context.Canceled):
	default:
		pollFailure.WithLabelValues(deviceID).Inc()
		log.Printf("poller: %s: %v", deviceID, err)
		if thinq.AuthErrorOfKind(err, thinq.AuthRefreshExpired) && p.OnAuthExpired != nil {
			p.OnAuthExpired(err)
		}
	}
}

func (p *Poller) record(deviceID string, status devices.Status) {
	p.mu.Lock()
	p.latest[deviceID] = status
	p.mu.Unlock()

	if p.OnStatus != nil {
		p.OnStatus(deviceID, status)
	}
}

// Command validates and sends an intent, serialized against the
// device's poll loop so the next poll observes the new state.
func (p *Poller) Command(ctx context.Context, deviceID string, intent devices.Intent) error {
	lock := p.deviceLock(deviceID)
	lock.Lock()
	defer lock.Unlock()
	return p.source.Send(ctx, deviceID, intent)
}

func (p *Poller) deviceLock(deviceID string) *sync.Mutex {
	p.mu.Lock()
	defer p.mu.Unlock()
	lock, ok := p.locks[deviceID]
	if !ok {
		lock = &sync.Mutex{}
		p.locks[deviceID] = lock
	}
	return lock
}

// Snapshot returns the latest decoded status per device.
func (p *Poller) Snapshot() map[string]any {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[string]any, len(p.latest))
	for id, status := range p.latest {
		out[id] = status
	}
	return out
}

// SnapshotFor returns the latest status for one device.
func (p *Poller) SnapshotFor(deviceID string) (any, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	status, ok := p.latest[deviceID]
	if !ok {
		return nil, false
	}
	return status, true
}
