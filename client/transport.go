/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package client holds everything that runs in a participant process:
// the transport shim that talks to the relay, the read-only state
// mirror every player maintains, and the authoritative host driver.
package client

import (
	"context"
	"sync"
	"time"

	"github.com/Seednode/junta/protocol"
	"github.com/gorilla/websocket"
)

type ShimState int

const (
	StateUnconnected ShimState = iota
	StateConnecting
	StateConnected
	StateReconnecting
	StateDegraded
)

func (s ShimState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateDegraded:
		return "degraded"
	}
	return "unconnected"
}

// Handler receives every inbound envelope, in arrival order.
type Handler func(protocol.Envelope)

const (
	defaultRetryBudget = 5
	defaultRetryDelay  = 2 * time.Second
)

// Shim wraps one connection to the relay. Send is fire-and-forget with
// at-most-once delivery; reliability lives in application-level
// reconciliation, not here. When no endpoint is configured or the
// retry budget runs out, the shim degrades to a process-local bus:
// reduced functionality (no cross-device visibility), not an error.
type Shim struct {
	url     string
	handler Handler
	bus     *LocalBus

	mu          sync.Mutex
	conn        *websocket.Conn
	state       ShimState
	unsubscribe func()

	retryBudget int
	retryDelay  time.Duration
}

func NewShim(url string, bus *LocalBus, handler Handler) *Shim {
	if bus == nil {
		bus = DefaultBus
	}

	return &Shim{
		url:         url,
		handler:     handler,
		bus:         bus,
		state:       StateUnconnected,
		retryBudget: defaultRetryBudget,
		retryDelay:  defaultRetryDelay,
	}
}

func (s *Shim) State() ShimState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Run owns the connection lifecycle until ctx is cancelled: dial,
// read, reconnect, and finally degrade. It returns once the shim is
// degraded or the context ends.
func (s *Shim) Run(ctx context.Context) {
	if s.url == "" {
		s.degrade()
		return
	}

	attempts := 0

	for {
		if ctx.Err() != nil {
			return
		}

		s.setState(StateConnecting)
		if attempts > 0 {
			s.setState(StateReconnecting)
		}

		conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.url, nil)
		if err != nil {
			attempts++
			if attempts >= s.retryBudget {
				s.degrade()
				return
			}

			select {
			case <-ctx.Done():
				return
			case <-time.After(s.retryDelay):
			}
			continue
		}

		s.mu.Lock()
		s.conn = conn
		s.state = StateConnected
		s.mu.Unlock()
		attempts = 0

		s.readLoop(conn)

		s.mu.Lock()
		s.conn = nil
		s.mu.Unlock()
	}
}

func (s *Shim) readLoop(conn *websocket.Conn) {
	for {
		var env protocol.Envelope
		if err := conn.ReadJSON(&env); err != nil {
			_ = conn.Close()
			return
		}

		if s.handler != nil {
			s.handler(env)
		}
	}
}

// Send is fire-and-forget: delivery is at most once and errors are not
// surfaced per message.
func (s *Shim) Send(env protocol.Envelope) {
	s.mu.Lock()
	conn := s.conn
	state := s.state
	s.mu.Unlock()

	if state == StateDegraded {
		s.bus.Publish(env)
		return
	}

	if conn != nil {
		_ = conn.WriteJSON(env)
	}
}

func (s *Shim) degrade() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateDegraded {
		return
	}
	s.state = StateDegraded

	if s.handler != nil {
		s.unsubscribe = s.bus.Subscribe(s.handler)
	}
}

func (s *Shim) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn != nil {
		_ = s.conn.Close()
		s.conn = nil
	}
	if s.unsubscribe != nil {
		s.unsubscribe()
		s.unsubscribe = nil
	}
	s.state = StateUnconnected
}

func (s *Shim) setState(state ShimState) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

// LocalBus is the same-process fallback transport: every published
// envelope is delivered to all subscribers, the publisher included,
// mimicking the relay's echo-to-self behavior.
type LocalBus struct {
	mu   sync.Mutex
	subs map[int]Handler
	next int
}

// DefaultBus backs all shims that are not given an explicit bus.
var DefaultBus = NewLocalBus()

func NewLocalBus() *LocalBus {
	return &LocalBus{subs: make(map[int]Handler)}
}

func (b *LocalBus) Subscribe(h Handler) (cancel func()) {
	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = h
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}
}

func (b *LocalBus) Publish(env protocol.Envelope) {
	b.mu.Lock()
	handlers := make([]Handler, 0, len(b.subs))
	for _, h := range b.subs {
		handlers = append(handlers, h)
	}
	b.mu.Unlock()

	for _, h := range handlers {
		h(env)
	}
}
