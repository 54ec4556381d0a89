/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"crypto/rand"
	"strings"
	"time"
)

const sessionCodeLength = 4

// Member ties a display name to the connection currently holding it.
// Names are the game-level identity; connections are transport-level.
type Member struct {
	Name   string
	Client *Client
}

// Session is one game instance. The host connection is not a member;
// it owns the authoritative game state client-side and the registry
// only tracks it for lifecycle purposes.
type Session struct {
	Code      string
	CreatedAt time.Time
	Host      *Client
	Members   []Member
}

func (s *Session) names() []string {
	names := make([]string, 0, len(s.Members))
	for _, m := range s.Members {
		names = append(names, m.Name)
	}
	return names
}

func (s *Session) hasName(name string) bool {
	for _, m := range s.Members {
		if m.Name == name {
			return true
		}
	}
	return false
}

// Registry owns the session map. It is only ever touched from the
// relay's run loop, so it carries no locks; every method assumes
// run-to-completion semantics.
type Registry struct {
	sessions map[string]*Session
	byClient map[*Client]*Session
}

func newRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		byClient: make(map[*Client]*Session),
	}
}

// newSessionCode generates a random 4-character uppercase code,
// retrying internally until it does not collide with a live session.
func (reg *Registry) newSessionCode() string {
	const letters = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	for {
		buf := make([]byte, sessionCodeLength)
		if _, err := rand.Read(buf); err != nil {
			panic("crypto/rand failure: " + err.Error())
		}
		out := make([]byte, sessionCodeLength)
		for i := range out {
			out[i] = letters[int(buf[i])%len(letters)]
		}
		code := string(out)

		if _, exists := reg.sessions[code]; !exists {
			return code
		}
	}
}

// Create registers a session under the given code (generated when
// empty) with the caller as host. A code that is live with a connected
// host is rejected; a live code whose host has dropped is rebound to
// the new host, cancelling the grace teardown (covers host reloads).
func (reg *Registry) Create(code string, host *Client) (*Session, error) {
	if code == "" {
		code = reg.newSessionCode()
	}
	code = strings.ToUpper(code)

	if existing, ok := reg.sessions[code]; ok {
		if existing.Host != nil {
			return nil, ErrCodeTaken
		}
		existing.Host = host
		reg.byClient[host] = existing
		return existing, nil
	}

	session := &Session{
		Code:      code,
		CreatedAt: time.Now(),
		Host:      host,
	}
	reg.sessions[code] = session
	reg.byClient[host] = session

	return session, nil
}

// Join adds a member under a display name. A name may be claimed by at
// most one concurrent connection.
func (reg *Registry) Join(code, name string, c *Client) (*Session, error) {
	session, ok := reg.sessions[strings.ToUpper(code)]
	if !ok {
		return nil, ErrSessionNotFound
	}

	if session.hasName(name) {
		return nil, ErrNameTaken
	}

	session.Members = append(session.Members, Member{Name: name, Client: c})
	reg.byClient[c] = session

	return session, nil
}

// Leave detaches a connection from its session, if any. It reports the
// session, the departing member's name, and whether the connection was
// the session's host.
func (reg *Registry) Leave(c *Client) (session *Session, name string, wasHost bool) {
	session, ok := reg.byClient[c]
	if !ok {
		return nil, "", false
	}
	delete(reg.byClient, c)

	if session.Host == c {
		session.Host = nil
		return session, "", true
	}

	for i, m := range session.Members {
		if m.Client == c {
			name = m.Name
			session.Members = append(session.Members[:i], session.Members[i+1:]...)
			break
		}
	}

	return session, name, false
}

// SessionOf resolves the session a connection has joined or hosts.
func (reg *Registry) SessionOf(c *Client) *Session {
	return reg.byClient[c]
}

// NameOf resolves a connection's display name within its session.
func (reg *Registry) NameOf(c *Client) string {
	session, ok := reg.byClient[c]
	if !ok {
		return ""
	}
	for _, m := range session.Members {
		if m.Client == c {
			return m.Name
		}
	}
	return ""
}

// Remove drops a session and unbinds every attached connection.
func (reg *Registry) Remove(code string) *Session {
	session, ok := reg.sessions[code]
	if !ok {
		return nil
	}
	delete(reg.sessions, code)

	if session.Host != nil {
		delete(reg.byClient, session.Host)
	}
	for _, m := range session.Members {
		delete(reg.byClient, m.Client)
	}

	return session
}

// Expired returns sessions older than maxAge, regardless of activity.
// The absolute ceiling bounds memory even when clients never leave.
func (reg *Registry) Expired(maxAge time.Duration) []*Session {
	cutoff := time.Now().Add(-maxAge)

	var expired []*Session
	for _, session := range reg.sessions {
		if session.CreatedAt.Before(cutoff) {
			expired = append(expired, session)
		}
	}
	return expired
}

func (reg *Registry) Len() int {
	return len(reg.sessions)
}
