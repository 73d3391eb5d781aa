package app

import (
	"sync"

	"quizroom-service/internal/domain"
)

// Hub tracks live connections, the identity behind each connection, and
// room transport groups. It is the single fan-out point: room-wide
// broadcasts, per-identity delivery (every tab/device of one email) and
// single-connection delivery all go through here.
//
// A connection belongs to at most one room group at a time; one identity
// may own any number of connections.
type Hub struct {
	mu           sync.RWMutex
	conns        map[string]chan domain.Event
	connIdentity map[string]domain.Identity
	identities   map[string]map[string]struct{} // email -> conn IDs
	rooms        map[string]map[string]struct{} // room code -> conn IDs
	connRoom     map[string]string
}

func NewHub() *Hub {
	return &Hub{
		conns:        make(map[string]chan domain.Event),
		connIdentity: make(map[string]domain.Identity),
		identities:   make(map[string]map[string]struct{}),
		rooms:        make(map[string]map[string]struct{}),
		connRoom:     make(map[string]string),
	}
}

// Register adds a connection and returns its outbound event channel. The
// channel is closed by Unregister.
func (h *Hub) Register(connID string) <-chan domain.Event {
	ch := make(chan domain.Event, 16)
	h.mu.Lock()
	h.conns[connID] = ch
	h.mu.Unlock()
	return ch
}

// Unregister drops the connection from its room group and identity set and
// closes its channel. Idempotent.
func (h *Hub) Unregister(connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch, ok := h.conns[connID]
	if !ok {
		return
	}
	delete(h.conns, connID)
	close(ch)
	h.releaseIdentityLocked(connID)
	h.leaveRoomLocked(connID)
}

// Declare binds an identity to a connection. Re-declaring moves the
// connection between identity sets.
func (h *Hub) Declare(connID string, identity domain.Identity) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.conns[connID]; !ok {
		return
	}
	if prev, ok := h.connIdentity[connID]; ok && prev.Email != identity.Email {
		h.releaseIdentityLocked(connID)
	}
	h.connIdentity[connID] = identity
	set, ok := h.identities[identity.Email]
	if !ok {
		set = make(map[string]struct{})
		h.identities[identity.Email] = set
	}
	set[connID] = struct{}{}
}

// Identity returns the identity declared on a connection.
func (h *Hub) Identity(connID string) (domain.Identity, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	identity, ok := h.connIdentity[connID]
	return identity, ok
}

// ConnectionsFor returns the live connection IDs owned by an email.
func (h *Hub) ConnectionsFor(email string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]string, 0, len(h.identities[email]))
	for id := range h.identities[email] {
		out = append(out, id)
	}
	return out
}

// JoinRoom moves the connection into a room group, leaving any previous
// group first. Returns the previous room code, "" if none.
func (h *Hub) JoinRoom(connID, code string) string {
	h.mu.Lock()
	defer h.mu.Unlock()

	prev := h.connRoom[connID]
	if prev == code {
		return prev
	}
	h.leaveRoomLocked(connID)
	set, ok := h.rooms[code]
	if !ok {
		set = make(map[string]struct{})
		h.rooms[code] = set
	}
	set[connID] = struct{}{}
	h.connRoom[connID] = code
	return prev
}

// LeaveRoom removes the connection from its current room group.
func (h *Hub) LeaveRoom(connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveRoomLocked(connID)
}

// RoomOf returns the room group the connection currently belongs to.
func (h *Hub) RoomOf(connID string) string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.connRoom[connID]
}

// OnlineCount returns the number of live connections in a room group.
func (h *Hub) OnlineCount(code string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[code])
}

// RoomConnectionsFor counts the connections an email holds inside one room
// group. Used to decide whether an identity has fully left a room.
func (h *Hub) RoomConnectionsFor(code, email string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for connID := range h.rooms[code] {
		if identity, ok := h.connIdentity[connID]; ok && identity.Email == email {
			n++
		}
	}
	return n
}

// ToRoom delivers an event to every connection in a room group.
func (h *Hub) ToRoom(code string, event domain.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for connID := range h.rooms[code] {
		h.sendLocked(connID, event)
	}
}

// ToRoomExcept delivers to every connection in a room group except one,
// used for member-joined/member-left so the actor is not echoed at.
func (h *Hub) ToRoomExcept(code, exceptConnID string, event domain.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for connID := range h.rooms[code] {
		if connID == exceptConnID {
			continue
		}
		h.sendLocked(connID, event)
	}
}

// ToIdentity delivers to every live connection of an email, regardless of
// room membership.
func (h *Hub) ToIdentity(email string, event domain.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for connID := range h.identities[email] {
		h.sendLocked(connID, event)
	}
}

// ToConnection delivers to exactly one connection.
func (h *Hub) ToConnection(connID string, event domain.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	h.sendLocked(connID, event)
}

func (h *Hub) sendLocked(connID string, event domain.Event) {
	ch, ok := h.conns[connID]
	if !ok {
		return
	}
	select {
	case ch <- event:
	default:
		// Drop the oldest queued event so a slow client never blocks fan-out.
		select {
		case <-ch:
		default:
		}
		ch <- event
	}
}

func (h *Hub) releaseIdentityLocked(connID string) {
	identity, ok := h.connIdentity[connID]
	if !ok {
		return
	}
	delete(h.connIdentity, connID)
	if set, ok := h.identities[identity.Email]; ok {
		delete(set, connID)
		if len(set) == 0 {
			delete(h.identities, identity.Email)
		}
	}
}

func (h *Hub) leaveRoomLocked(connID string) {
	code, ok := h.connRoom[connID]
	if !ok {
		return
	}
	delete(h.connRoom, connID)
	if set, ok := h.rooms[code]; ok {
		delete(set, connID)
		if len(set) == 0 {
			delete(h.rooms, code)
		}
	}
}
