package poller

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/homecloud/thinqd/thinq"
	"github.com/homecloud/thinqd/thinq/devices"
)

type fakeStatus struct {
	value string
}

func (fakeStatus) StatusKind() devices.Kind { return devices.KindGeneric }

// fakeSource tracks concurrency and per-device interleaving.
type fakeSource struct {
	mu       sync.Mutex
	inFlight int32
	peak     int32
	polls    map[string]int
	pollErr  error
	sendErr  error
	sends    []devices.Intent
	delay    time.Duration
}

func newFakeSource() *fakeSource {
	return &fakeSource{polls: make(map[string]int)}
}

func (f *fakeSource) Poll(_ context.Context, deviceID string) (devices.Status, error) {
	current := atomic.AddInt32(&f.inFlight, 1)
	defer atomic.AddInt32(&f.inFlight, -1)
	for {
		peak := atomic.LoadInt32(&f.peak)
		if current <= peak || atomic.CompareAndSwapInt32(&f.peak, peak, current) {
			break
		}
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	f.mu.Lock()
	f.polls[deviceID]++
	f.mu.Unlock()

	if f.pollErr != nil {
		return nil, f.pollErr
	}
	return fakeStatus{value: deviceID}, nil
}

func (f *fakeSource) Send(_ context.Context, _ string, intent devices.Intent) error {
	f.mu.Lock()
	f.sends = append(f.sends, intent)
	f.mu.Unlock()
	return f.sendErr
}

func TestPollerDeliversStatus(t *testing.T) {
	source := newFakeSource()
	loop := New(source, 10*time.Millisecond, 4)

	var mu sync.Mutex
	seen := make(map[string]int)
	loop.OnStatus = func(deviceID string, _ devices.Status) {
		mu.Lock()
		seen[deviceID]++
		mu.Unlock()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	loop.Run(ctx, []string{"dev-1", "dev-2"})

	mu.Lock()
	defer mu.Unlock()
	if seen["dev-1"] == 0 || seen["dev-2"] == 0 {
		t.Fatalf("expected status for both devices, got %+v", seen)
	}

	snapshot := loop.Snapshot()
	if len(snapshot) != 2 {
		t.Fatalf("snapshot: %+v", snapshot)
	}
	if _, ok := loop.SnapshotFor("dev-1"); !ok {
		t.Fatal("expected dev-1 snapshot")
	}
	if _, ok := loop.SnapshotFor("absent"); ok {
		t.Fatal("unknown devices have no snapshot")
	}
}

func TestPollerBoundsConcurrency(t *testing.T) {
	source := newFakeSource()
	source.delay = 20 * time.Millisecond
	loop := New(source, 5*time.Millisecond, 2)

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()
	loop.Run(ctx, []string{"a", "b", "c", "d", "e", "f"})

	if peak := atomic.LoadInt32(&source.peak); peak > 2 {
		t.Fatalf("concurrency bound violated: peak %d", peak)
	}
}

func TestPollerNotReadyIsNotFailure(t *testing.T) {
	source := newFakeSource()
	source.pollErr = thinq.ErrNotReady
	loop := New(source, 10*time.Millisecond, 2)

	var statuses int32
	loop.OnStatus = func(string, devices.Status) { atomic.AddInt32(&statuses, 1) }

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()
	loop.Run(ctx, []string{"dev-1"})

	if atomic.LoadInt32(&statuses) != 0 {
		t.Fatal("pending polls must not emit status")
	}
}

func TestPollerSurfacesAuthExpiry(t *testing.T) {
	source := newFakeSource()
	source.pollErr = &thinq.AuthError{Kind: thinq.AuthRefreshExpired, Message: "refresh rejected"}
	loop := New(source, time.Hour, 2)

	var expired int32
	loop.OnAuthExpired = func(error) { atomic.AddInt32(&expired, 1) }

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()
	loop.Run(ctx, []string{"dev-1"})

	if atomic.LoadInt32(&expired) == 0 {
		t.Fatal("expected the relogin hook to fire")
	}
}

func TestPollerCommand(t *testing.T) {
	source := newFakeSource()
	loop := New(source, time.Hour, 2)

	intent := devices.Intent{Key: "Operation", Label: "Start"}
	if err := loop.Command(context.Background(), "dev-1", intent); err != nil {
		t.Fatalf("command: %v", err)
	}
	if len(source.sends) != 1 || source.sends[0].Key != "Operation" {
		t.Fatalf("sends: %+v", source.sends)
	}

	source.sendErr = errors.New("offline")
	if err := loop.Command(context.Background(), "dev-1", intent); err == nil {
		t.Fatal("send failures must surface")
	}
}
