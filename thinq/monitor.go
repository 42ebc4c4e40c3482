package thinq

import (
	"context"
	"errors"
	"sync"
	"time"
)

// MonitorSession is the polling handle for one device. Owned exclusively
// by the Monitor; callers treat it as opaque.
type MonitorSession struct {
	DeviceID   string
	WorkID     string
	StartedAt  time.Time
	LastPollAt time.Time
}

// Monitor keeps one logical monitoring session per device so repeated
// status polls reuse a handle instead of re-subscribing every cycle.
// Per device the lifecycle is Idle -> Started -> Polling -> Stopped.
type Monitor struct {
	client *Client

	mu       sync.Mutex
	sessions map[string]*MonitorSession
}

func NewMonitor(client *Client) *Monitor {
	return &Monitor{
		client:   client,
		sessions: make(map[string]*MonitorSession),
	}
}

// Start opens a monitor session for a device. Idempotent: starting an
// already-started device returns the existing session.
func (m *Monitor) Start(ctx context.Context, deviceID string) (*MonitorSession, error) {
	m.mu.Lock()
	if session, exists := m.sessions[deviceID]; exists {
		m.mu.Unlock()
		return session, nil
	}
	m.mu.Unlock()

	workID, err := m.client.StartMonitor(ctx, deviceID)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	// Lost a start race; keep the first handle and release ours.
	if session, exists := m.sessions[deviceID]; exists {
		go func() { _ = m.client.StopMonitor(context.Background(), deviceID, workID) }()
		return session, nil
	}
	session := &MonitorSession{DeviceID: deviceID, WorkID: workID, StartedAt: time.Now()}
	m.sessions[deviceID] = session
	monitorSessions.Inc()
	return session, nil
}

// Poll reads one raw snapshot. ErrNotReady means the vendor has nothing
// fresh yet and the caller should retry on its next tick. An expired
// vendor-side handle is replaced transparently, once.
func (m *Monitor) Poll(ctx context.Context, session *MonitorSession) (RawPayload, error) {
	if session == nil {
		return RawPayload{}, ErrNotStarted
	}

	m.mu.Lock()
	registered, exists := m.sessions[session.DeviceID]
	m.mu.Unlock()
	if !exists || registered != session {
		return RawPayload{}, ErrNotStarted
	}

	payload, err := m.client.PollMonitor(ctx, session.DeviceID, session.WorkID)
	if errors.Is(err, errMonitorGone) {
		if err = m.restart(ctx, session); err != nil {
			return RawPayload{}, err
		}
		payload, err = m.client.PollMonitor(ctx, session.DeviceID, session.WorkID)
	}
	if err != nil {
		return RawPayload{}, err
	}

	m.mu.Lock()
	session.LastPollAt = time.Now()
	m.mu.Unlock()
	return payload, nil
}

func (m *Monitor) restart(ctx context.Context, session *MonitorSession) error {
	workID, err := m.client.StartMonitor(ctx, session.DeviceID)
	if err != nil {
		return err
	}
	m.mu.Lock()
	session.WorkID = workID
	session.StartedAt = time.Now()
	m.mu.Unlock()
	return nil
}

// Stop releases the vendor-side handle. Safe to call for a device that
// was never started or was already stopped.
func (m *Monitor) Stop(ctx context.Context, deviceID string) error {
	m.mu.Lock()
	session, exists := m.sessions[deviceID]
	if exists {
		delete(m.sessions, deviceID)
		monitorSessions.Dec()
	}
	m.mu.Unlock()
	if !exists {
		return nil
	}
	return m.client.StopMonitor(ctx, deviceID, session.WorkID)
}

// StopAll tears down every open session, e.g. on shutdown.
func (m *Monitor) StopAll(ctx context.Context) {
	m.mu.Lock()
	ids := make([]string, 0, len(m.sessions))
	for deviceID := range m.sessions {
		ids = append(ids, deviceID)
	}
	m.mu.Unlock()
	for _, deviceID := range ids {
		_ = m.Stop(ctx, deviceID)
	}
}
