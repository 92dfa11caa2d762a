// Package session tracks "what is this user currently doing": one live
// state per user plus string attributes. State lives in-process, like the
// rest of the conversational flow; durable data belongs to storage.
package session

import "sync"

type State int

const (
	StateNone State = iota
	StateAwaitingRelayText
	StateAwaitingBroadcastPayload
	StateAwaitingGroupBroadcast
	StateAwaitingContentEdit
	StateAwaitingAdminReply
)

func (s State) String() string {
	switch s {
	case StateNone:
		return "none"
	case StateAwaitingRelayText:
		return "awaiting_relay_text"
	case StateAwaitingBroadcastPayload:
		return "awaiting_broadcast_payload"
	case StateAwaitingGroupBroadcast:
		return "awaiting_group_broadcast"
	case StateAwaitingContentEdit:
		return "awaiting_content_edit"
	case StateAwaitingAdminReply:
		return "awaiting_admin_reply"
	default:
		return "unknown"
	}
}

// Common attribute keys.
const (
	AttrKind    = "kind"    // relay section: bots, vserv, free, chat, call
	AttrSection = "section" // content edit target
	AttrSub     = "sub"
	AttrTarget  = "target" // admin reply target user id (decimal)
)

type entry struct {
	state State
	attrs map[string]string
}

// Store holds per-user sessions. The zero value is not usable; call New.
type Store struct {
	mu sync.RWMutex
	m  map[int64]entry
}

func New() *Store {
	return &Store{m: make(map[int64]entry)}
}

// Set replaces the user's session outright. Attributes are copied; a new
// state never merges with the attributes of a prior one.
func (s *Store) Set(userID int64, state State, attrs map[string]string) {
	cp := make(map[string]string, len(attrs))
	for k, v := range attrs {
		cp[k] = v
	}
	s.mu.Lock()
	s.m[userID] = entry{state: state, attrs: cp}
	s.mu.Unlock()
}

// Get returns the user's current state and a copy of its attributes.
// Unknown users read as (StateNone, empty map), never an error.
func (s *Store) Get(userID int64) (State, map[string]string) {
	s.mu.RLock()
	e, ok := s.m[userID]
	s.mu.RUnlock()
	if !ok {
		return StateNone, map[string]string{}
	}
	cp := make(map[string]string, len(e.attrs))
	for k, v := range e.attrs {
		cp[k] = v
	}
	return e.state, cp
}

// Clear resets the user to StateNone. Clearing an absent user is a no-op.
func (s *Store) Clear(userID int64) {
	s.mu.Lock()
	delete(s.m, userID)
	s.mu.Unlock()
}
