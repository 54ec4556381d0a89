/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package client

import (
	"encoding/json"
	"os"
	"regexp"
	"strconv"
	"sync"

	"github.com/Seednode/junta/protocol"
)

// ChatMessage is one deduplicated chat broadcast.
type ChatMessage struct {
	ID     string `json:"id"`
	Sender string `json:"sender"`
	Text   string `json:"text"`
}

// NameStore persists the first-seen name cache across reconnects.
type NameStore interface {
	Load() ([]string, error)
	Save([]string) error
}

// FileNameStore keeps the cache in a JSON file.
type FileNameStore struct {
	Path string
}

func (f FileNameStore) Load() ([]string, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return nil, err
	}
	return names, nil
}

func (f FileNameStore) Save(names []string) error {
	data, err := json.Marshal(names)
	if err != nil {
		return err
	}
	return os.WriteFile(f.Path, data, 0o644)
}

var genericName = regexp.MustCompile(`^Player \d+$`)

// Mirror reconstructs a read-only projection of the round state from
// broadcasts alone. It never mutates authoritative state; it only
// interprets what the host and relay send.
//
// The known-name cache papers over rosters that arrive with generic
// placeholder names: names are remembered in first-seen order and
// substituted positionally. That mapping is best-effort, not
// guaranteed; the real fix is carrying verified names end-to-end,
// which the relay does whenever it can.
type Mirror struct {
	mu sync.Mutex

	Self string

	sessionCode  string
	joined       bool
	phase        string
	playerCount  int
	players      []string
	roles        map[string]string
	allocation   map[string]int
	eliminated   map[string]bool
	protestLevel int
	chat         []ChatMessage
	seen         map[string]bool
	lastError    string

	knownNames []string
	store      NameStore
}

func NewMirror(self string, store NameStore) *Mirror {
	m := &Mirror{
		Self:       self,
		phase:      "LOBBY",
		roles:      make(map[string]string),
		eliminated: make(map[string]bool),
		seen:       make(map[string]bool),
		store:      store,
	}

	if store != nil {
		if names, err := store.Load(); err == nil {
			m.knownNames = names
		}
	}

	return m
}

// Handle folds one inbound envelope into the projection.
func (m *Mirror) Handle(env protocol.Envelope) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch env.Event {
	case protocol.EventJoinSuccess:
		m.joined = true

	case protocol.EventError:
		var e protocol.ErrorMessage
		if json.Unmarshal(env.Data, &e) == nil {
			m.lastError = e.Message
		}

	case protocol.EventStateUpdate:
		var update protocol.StateUpdate
		if json.Unmarshal(env.Data, &update) != nil {
			return
		}
		if update.SessionCode != "" {
			m.sessionCode = update.SessionCode
		}
		m.playerCount = update.PlayerCount
		m.players = m.repairRoster(update.Players, update.PlayerCount)

	case protocol.EventGameMessage:
		msg, err := protocol.DecodeGameMessage(env.Data)
		if err != nil {
			return
		}
		m.handleGameMessage(msg)
	}
}

func (m *Mirror) handleGameMessage(msg protocol.GameMessage) {
	switch msg.Type() {
	case protocol.TypeNameAnnounce:
		if name := msg.String("name"); name != "" {
			m.remember(name)
			m.players = m.repairRoster(m.players, m.playerCount)
		}

	case protocol.TypeRolesAssigned:
		roles, ok := msg["roles"].(map[string]any)
		if !ok {
			return
		}
		m.roles = make(map[string]string, len(roles))
		for name, role := range roles {
			if s, ok := role.(string); ok {
				m.roles[name] = s
			}
		}

	case protocol.TypeRoleAssignment:
		if target := msg.String("target"); target != "" {
			if role := msg.String("role"); role != "" {
				m.roles[target] = role
			}
		}

	case protocol.TypeStartRound:
		m.phase = "ALLOCATION"
		m.allocation = nil
		m.protestLevel = 0

	case protocol.TypeAllocationSubmit:
		alloc, ok := msg["allocation"].(map[string]any)
		if !ok {
			return
		}
		m.allocation = make(map[string]int, len(alloc))
		for bucket, v := range alloc {
			if f, ok := v.(float64); ok {
				m.allocation[bucket] = int(f)
			}
		}
		m.phase = "VOTING"

	case protocol.TypeProtestLevel:
		if level, ok := msg["level"].(float64); ok {
			m.protestLevel = int(level)
		}

	case protocol.TypeGameResult:
		m.phase = "JUDGMENT"
		for _, name := range msg.Strings("purged") {
			m.eliminated[name] = true
		}

	case protocol.TypeExecutionOrder:
		for _, name := range msg.Strings("targets") {
			m.eliminated[name] = true
		}

	case protocol.TypeGameOver:
		m.phase = "GAME_OVER"

	case protocol.TypeChatMessage:
		// The relay echoes chat back to its sender; the id keeps the
		// transcript free of duplicates anyway.
		id := msg.ID()
		if id != "" && m.seen[id] {
			return
		}
		if id != "" {
			m.seen[id] = true
		}
		m.chat = append(m.chat, ChatMessage{
			ID:     id,
			Sender: msg.Sender(),
			Text:   msg.String("text"),
		})
	}
}

// remember appends a name to the first-seen-order cache and persists.
func (m *Mirror) remember(name string) {
	for _, known := range m.knownNames {
		if known == name {
			return
		}
	}
	m.knownNames = append(m.knownNames, name)

	if m.store != nil {
		_ = m.store.Save(m.knownNames)
	}
}

// repairRoster restores real names on rosters that lost them. Only
// generic placeholders are replaced, by position in first-seen order;
// rosters that already carry real names pass through untouched.
func (m *Mirror) repairRoster(players []string, count int) []string {
	if len(players) == 0 && count > 0 {
		rebuilt := make([]string, 0, count)
		for i := 0; i < count; i++ {
			if i < len(m.knownNames) {
				rebuilt = append(rebuilt, m.knownNames[i])
			} else {
				rebuilt = append(rebuilt, genericPlaceholder(i))
			}
		}
		return rebuilt
	}

	repaired := make([]string, len(players))
	for i, name := range players {
		if genericName.MatchString(name) && i < len(m.knownNames) {
			repaired[i] = m.knownNames[i]
		} else {
			repaired[i] = name
		}
	}
	return repaired
}

func genericPlaceholder(i int) string {
	return "Player " + strconv.Itoa(i+1)
}

// Accessors copy state out under the lock; handlers may be mid-update
// on another goroutine.

func (m *Mirror) SessionCode() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessionCode
}

func (m *Mirror) Joined() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.joined
}

func (m *Mirror) Phase() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.phase
}

func (m *Mirror) Players() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.players))
	copy(out, m.players)
	return out
}

func (m *Mirror) Role(name string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.roles[name]
}

func (m *Mirror) Allocation() map[string]int {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]int, len(m.allocation))
	for k, v := range m.allocation {
		out[k] = v
	}
	return out
}

func (m *Mirror) Eliminated(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.eliminated[name]
}

func (m *Mirror) ProtestLevel() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.protestLevel
}

func (m *Mirror) Chat() []ChatMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ChatMessage, len(m.chat))
	copy(out, m.chat)
	return out
}

func (m *Mirror) LastError() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastError
}
