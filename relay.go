/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/Seednode/junta/protocol"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Client is one websocket connection. Everything beyond the send
// channel and conn is owned by the relay loop.
type Client struct {
	conn   *websocket.Conn
	send   chan protocol.Envelope
	id     string
	closed bool
}

type inboundMsg struct {
	client *Client
	env    protocol.Envelope
}

type graceExpiry struct {
	code string
}

// Relay routes envelopes between connections. A single run loop owns
// the registry and all client bookkeeping; handlers run to completion,
// so the shared state needs no locking. Timers never mutate state
// directly, they post back into the loop and are guard-checked at fire
// time, since a stale timer must detect staleness and no-op.
type Relay struct {
	cfg *Config
	reg *Registry

	register   chan *Client
	unregister chan *Client
	inbound    chan inboundMsg
	expired    chan graceExpiry

	// inspect runs a closure inside the loop, for callers that need a
	// consistent view of the registry.
	inspect chan func(*Registry)
}

func newRelay(cfg *Config) *Relay {
	return &Relay{
		cfg:        cfg,
		reg:        newRegistry(),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		inbound:    make(chan inboundMsg),
		expired:    make(chan graceExpiry),
		inspect:    make(chan func(*Registry)),
	}
}

func (r *Relay) run(ctx context.Context) {
	reaper := time.NewTicker(r.cfg.reapInterval)
	defer reaper.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case c := <-r.register:
			logf(r.cfg, "RELAY: Client %s connected", c.id)

		case c := <-r.unregister:
			r.handleDisconnect(c)

		case msg := <-r.inbound:
			r.handleEnvelope(msg.client, msg.env)

		case exp := <-r.expired:
			// Skip teardown if a new host claimed the code in time.
			session, ok := r.reg.sessions[exp.code]
			if !ok || session.Host != nil {
				break
			}
			logf(r.cfg, "RELAY: Session %s removed (host disconnected)", exp.code)
			r.teardown(exp.code)

		case fn := <-r.inspect:
			fn(r.reg)

		case <-reaper.C:
			for _, session := range r.reg.Expired(r.cfg.sessionMaxAge) {
				logf(r.cfg, "RELAY: Cleaned up old session %s", session.Code)
				r.teardown(session.Code)
			}
		}
	}
}

// handleEnvelope dispatches one inbound event. Recover per event so a
// malformed message cannot crash the loop or sever other sessions.
func (r *Relay) handleEnvelope(c *Client, env protocol.Envelope) {
	defer func() {
		if rec := recover(); rec != nil {
			logf(r.cfg, "RELAY: Recovered from handler panic: %v", rec)
		}
	}()

	switch env.Event {
	case protocol.EventCreateSession:
		r.handleCreate(c, env)
	case protocol.EventJoinRequest:
		r.handleJoin(c, env)
	case protocol.EventGameMessage:
		r.handleGameMessage(c, env)
	case protocol.EventPing:
		r.trySend(c, protocol.Envelope{Event: protocol.EventPong})
	default:
		// Unknown events are dropped, not errors.
	}
}

func (r *Relay) handleCreate(c *Client, env protocol.Envelope) {
	var req protocol.CreateSession
	if env.Data != nil {
		if err := decodePayload(env.Data, &req); err != nil {
			r.sendError(c, ErrMissingField)
			return
		}
	}

	session, err := r.reg.Create(req.Code, c)
	if err != nil {
		r.sendError(c, err)
		return
	}

	logf(r.cfg, "RELAY: Session %s created by %s", session.Code, c.id)
	r.trySend(c, protocol.MustEnvelope(protocol.EventSessionCreate, protocol.SessionCreated{Code: session.Code}))
}

func (r *Relay) handleJoin(c *Client, env protocol.Envelope) {
	var req protocol.JoinRequest
	if err := decodePayload(env.Data, &req); err != nil || req.Code == "" || req.Name == "" {
		r.sendError(c, ErrMissingField)
		return
	}

	session, err := r.reg.Join(req.Code, req.Name, c)
	if err != nil {
		r.sendError(c, err)
		return
	}

	logf(r.cfg, "RELAY: Player %q joined session %s", req.Name, session.Code)
	r.trySend(c, protocol.MustEnvelope(protocol.EventJoinSuccess, protocol.JoinSuccess{Name: req.Name}))
	r.broadcastState(session)
}

// handleGameMessage stamps the sender's display name and rebroadcasts
// to the whole session, sender included. The echo to self is part of
// the contract: the host applies its own broadcasts the same way every
// other client does. A connection with no session is a silent no-op.
func (r *Relay) handleGameMessage(c *Client, env protocol.Envelope) {
	session := r.reg.SessionOf(c)
	if session == nil {
		return
	}

	msg, err := protocol.DecodeGameMessage(env.Data)
	if err != nil {
		return
	}

	if name := r.reg.NameOf(c); name != "" {
		msg["sender"] = name
	}

	out := protocol.MustEnvelope(protocol.EventGameMessage, msg)
	r.broadcast(session, out)
}

func (r *Relay) handleDisconnect(c *Client) {
	r.closeClient(c)

	session, name, wasHost := r.reg.Leave(c)
	if session == nil {
		return
	}

	if wasHost {
		// Grace period covers host page reloads; the timer posts back
		// into the loop rather than touching state itself.
		code := session.Code
		time.AfterFunc(r.cfg.hostGrace, func() {
			r.expired <- graceExpiry{code: code}
		})
		logf(r.cfg, "RELAY: Host left session %s, teardown in %s", code, r.cfg.hostGrace)
		return
	}

	if name != "" {
		logf(r.cfg, "RELAY: Player %q left session %s", name, session.Code)
	}
	r.broadcastState(session)
}

// broadcastState sends the roster (count plus ordered names) to every
// member and the host.
func (r *Relay) broadcastState(session *Session) {
	update := protocol.StateUpdate{
		Type:        protocol.EventStateUpdate,
		PlayerCount: len(session.Members),
		Players:     session.names(),
		SessionCode: session.Code,
	}
	r.broadcast(session, protocol.MustEnvelope(protocol.EventStateUpdate, update))
}

func (r *Relay) broadcast(session *Session, env protocol.Envelope) {
	// Snapshot recipients first: a slow client dropped mid-broadcast
	// mutates the member list.
	recipients := make([]*Client, 0, len(session.Members)+1)
	if session.Host != nil {
		recipients = append(recipients, session.Host)
	}
	for _, m := range session.Members {
		recipients = append(recipients, m.Client)
	}

	for _, c := range recipients {
		r.trySend(c, env)
	}
}

// trySend drops clients that cannot keep up rather than blocking the
// loop.
func (r *Relay) trySend(c *Client, env protocol.Envelope) {
	if c.closed {
		return
	}

	select {
	case c.send <- env:
	default:
		r.closeClient(c)
		r.reg.Leave(c)
	}
}

func (r *Relay) closeClient(c *Client) {
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

func (r *Relay) teardown(code string) {
	session := r.reg.Remove(code)
	if session == nil {
		return
	}

	if session.Host != nil {
		r.closeClient(session.Host)
	}
	for _, m := range session.Members {
		r.closeClient(m.Client)
	}
}

func (r *Relay) sendError(c *Client, err error) {
	r.trySend(c, protocol.MustEnvelope(protocol.EventError, protocol.ErrorMessage{Message: err.Error()}))
}

func decodePayload(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

// serveWS upgrades the connection and hands it to the relay loop.
func serveWS(cfg *Config, r *Relay) httprouter.Handle {
	return func(w http.ResponseWriter, req *http.Request, _ httprouter.Params) {
		conn, err := upgrader.Upgrade(w, req, nil)
		if err != nil {
			logf(cfg, "RELAY: Upgrade error from %s: %v", realIP(req), err)
			return
		}

		client := &Client{
			conn: conn,
			send: make(chan protocol.Envelope, 8),
			id:   uuid.NewString(),
		}

		r.register <- client

		go client.writePump()
		client.readPump(r)
	}
}

func (c *Client) readPump(r *Relay) {
	defer func() {
		r.unregister <- c
		_ = c.conn.Close()
	}()

	for {
		var env protocol.Envelope
		if err := c.conn.ReadJSON(&env); err != nil {
			return
		}

		r.inbound <- inboundMsg{client: c, env: env}
	}
}

func (c *Client) writePump() {
	defer c.conn.Close()

	for env := range c.send {
		if err := c.conn.WriteJSON(env); err != nil {
			return
		}
	}
}
