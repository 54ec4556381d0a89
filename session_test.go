/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"errors"
	"testing"
	"time"

	"github.com/Seednode/junta/protocol"
)

func testClient() *Client {
	return &Client{send: make(chan protocol.Envelope, 8), id: "test"}
}

func TestRegistryCreate(t *testing.T) {
	reg := newRegistry()
	host := testClient()

	session, err := reg.Create("", host)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if len(session.Code) != sessionCodeLength {
		t.Errorf("code length = %d, want %d", len(session.Code), sessionCodeLength)
	}
	for _, c := range session.Code {
		if c < 'A' || c > 'Z' {
			t.Errorf("code %q contains non-uppercase character", session.Code)
		}
	}
	if session.Host != host {
		t.Error("host not bound to session")
	}
	if reg.SessionOf(host) != session {
		t.Error("SessionOf(host) did not resolve")
	}
}

func TestRegistryCreateExplicitCode(t *testing.T) {
	reg := newRegistry()

	session, err := reg.Create("abcd", testClient())
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if session.Code != "ABCD" {
		t.Errorf("code = %q, want uppercased ABCD", session.Code)
	}
}

func TestRegistryCreateCodeTaken(t *testing.T) {
	reg := newRegistry()

	if _, err := reg.Create("GAME", testClient()); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if _, err := reg.Create("GAME", testClient()); !errors.Is(err, ErrCodeTaken) {
		t.Errorf("Create() error = %v, want ErrCodeTaken", err)
	}
}

func TestRegistryHostRebind(t *testing.T) {
	reg := newRegistry()
	first := testClient()

	session, err := reg.Create("GAME", first)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if _, _, wasHost := reg.Leave(first); !wasHost {
		t.Fatal("Leave(host) did not report host departure")
	}
	if session.Host != nil {
		t.Fatal("host still bound after leave")
	}

	second := testClient()
	rebound, err := reg.Create("GAME", second)
	if err != nil {
		t.Fatalf("Create() after host loss error = %v", err)
	}
	if rebound != session {
		t.Error("rebind created a new session instead of reclaiming")
	}
	if session.Host != second {
		t.Error("new host not bound")
	}
}

func TestRegistryJoin(t *testing.T) {
	reg := newRegistry()
	if _, err := reg.Create("GAME", testClient()); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	player := testClient()
	session, err := reg.Join("game", "Alice", player)
	if err != nil {
		t.Fatalf("Join() error = %v", err)
	}
	if got := reg.NameOf(player); got != "Alice" {
		t.Errorf("NameOf() = %q, want Alice", got)
	}
	if names := session.names(); len(names) != 1 || names[0] != "Alice" {
		t.Errorf("names() = %v, want [Alice]", names)
	}

	if _, err := reg.Join("GAME", "Alice", testClient()); !errors.Is(err, ErrNameTaken) {
		t.Errorf("duplicate name error = %v, want ErrNameTaken", err)
	}
	if _, err := reg.Join("NOPE", "Bob", testClient()); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("missing session error = %v, want ErrSessionNotFound", err)
	}
}

func TestRegistryJoinOrderStable(t *testing.T) {
	reg := newRegistry()
	if _, err := reg.Create("GAME", testClient()); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	players := []string{"Alice", "Bob", "Carol"}
	clients := make(map[string]*Client)
	for _, name := range players {
		c := testClient()
		clients[name] = c
		if _, err := reg.Join("GAME", name, c); err != nil {
			t.Fatalf("Join(%s) error = %v", name, err)
		}
	}

	session, _, _ := reg.Leave(clients["Bob"])
	if names := session.names(); len(names) != 2 || names[0] != "Alice" || names[1] != "Carol" {
		t.Errorf("names() after leave = %v, want [Alice Carol]", names)
	}
}

func TestRegistryLeaveUnknown(t *testing.T) {
	reg := newRegistry()

	if session, _, _ := reg.Leave(testClient()); session != nil {
		t.Error("Leave() of unbound client returned a session")
	}
}

func TestRegistryRemove(t *testing.T) {
	reg := newRegistry()
	host := testClient()
	player := testClient()

	if _, err := reg.Create("GAME", host); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if _, err := reg.Join("GAME", "Alice", player); err != nil {
		t.Fatalf("Join() error = %v", err)
	}

	if session := reg.Remove("GAME"); session == nil {
		t.Fatal("Remove() returned nil for live session")
	}
	if reg.Len() != 0 {
		t.Errorf("Len() = %d, want 0", reg.Len())
	}
	if reg.SessionOf(host) != nil || reg.SessionOf(player) != nil {
		t.Error("clients still bound after removal")
	}
	if reg.Remove("GAME") != nil {
		t.Error("second Remove() returned a session")
	}
}

func TestRegistryExpired(t *testing.T) {
	reg := newRegistry()

	old, err := reg.Create("OLDY", testClient())
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	old.CreatedAt = time.Now().Add(-2 * time.Hour)

	if _, err := reg.Create("FRSH", testClient()); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	expired := reg.Expired(time.Hour)
	if len(expired) != 1 || expired[0].Code != "OLDY" {
		t.Errorf("Expired() = %v, want only OLDY", expired)
	}
}
