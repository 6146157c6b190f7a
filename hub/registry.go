// Package hub keeps track of connected clients and delivers events to them.
package hub

import (
	"encoding/json"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// Channel is a live, ordered message pipe to one client. Send transmits one complete message.
type Channel interface {
	Send(data []byte) error
	IsOpen() bool
	Close() error
}

// ClientInfo - метаданные подключения.
type ClientInfo struct {
	UserID      int       `json:"user_id"`
	Nickname    string    `json:"nickname,omitempty"`
	SessionID   string    `json:"session_id"`
	ConnectedAt time.Time `json:"connected_at"`
}

// Message is the envelope of every frame: {"type": ..., "payload": ...}.
type Message struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

type entry struct {
	channel Channel
	info    ClientInfo
}

// Registry maps client ids to their current channel. A client has at most one channel; rooms group clients.
type Registry struct {
	mu      sync.RWMutex
	clients map[int]*entry
	rooms   map[string]map[int]struct{}
	logger  *slog.Logger
}

func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		clients: make(map[int]*entry),
		rooms:   make(map[string]map[int]struct{}),
		logger:  logger,
	}
}

// Register stores the channel for clientID, closing any channel it replaces.
func (r *Registry) Register(clientID int, ch Channel, info ClientInfo) {
	r.mu.Lock()
	old, exists := r.clients[clientID]
	r.clients[clientID] = &entry{channel: ch, info: info}
	total := len(r.clients)
	r.mu.Unlock()

	if exists && old.channel != ch {
		_ = old.channel.Close()
		r.logger.Info("client connection replaced", slog.Int("client_id", clientID))
	}
	r.logger.Info("client registered", slog.Int("client_id", clientID), slog.Int("clients", total))
}

// Remove drops the client and its room memberships. Unknown ids are ignored.
func (r *Registry) Remove(clientID int) {
	r.mu.Lock()
	e, ok := r.clients[clientID]
	if ok {
		r.dropLocked(clientID)
	}
	r.mu.Unlock()

	if ok {
		_ = e.channel.Close()
	}
}

// Unregister removes the client only while ch is still its current channel,
// so a closing socket never evicts the connection that replaced it.
func (r *Registry) Unregister(clientID int, ch Channel) bool {
	r.mu.Lock()
	e, ok := r.clients[clientID]
	if !ok || e.channel != ch {
		r.mu.Unlock()
		return false
	}
	r.dropLocked(clientID)
	r.mu.Unlock()

	_ = ch.Close()
	r.logger.Info("client unregistered", slog.Int("client_id", clientID))
	return true
}

func (r *Registry) dropLocked(clientID int) {
	delete(r.clients, clientID)
	for roomID, members := range r.rooms {
		delete(members, clientID)
		if len(members) == 0 {
			delete(r.rooms, roomID)
		}
	}
}

// Send delivers one event. It returns false, dropping the entry, when the client is gone or the write fails.
func (r *Registry) Send(clientID int, eventType string, payload any) bool {
	data, err := encode(eventType, payload)
	if err != nil {
		r.logger.Error("failed to encode event", slog.String("type", eventType), slog.Any("error", err))
		return false
	}
	return r.sendRaw(clientID, data, eventType)
}

// SendToMany sends the same event to each client independently.
func (r *Registry) SendToMany(clientIDs []int, eventType string, payload any) {
	if len(clientIDs) == 0 {
		return
	}
	data, err := encode(eventType, payload)
	if err != nil {
		r.logger.Error("failed to encode event", slog.String("type", eventType), slog.Any("error", err))
		return
	}
	for _, id := range clientIDs {
		r.sendRaw(id, data, eventType)
	}
}

func (r *Registry) sendRaw(clientID int, data []byte, eventType string) bool {
	r.mu.RLock()
	e, ok := r.clients[clientID]
	r.mu.RUnlock()
	if !ok {
		return false
	}

	if !e.channel.IsOpen() {
		r.Unregister(clientID, e.channel)
		return false
	}
	if err := e.channel.Send(data); err != nil {
		r.logger.Warn("failed to send event, dropping client",
			slog.Int("client_id", clientID), slog.String("type", eventType), slog.Any("error", err))
		r.Unregister(clientID, e.channel)
		return false
	}
	return true
}

func encode(eventType string, payload any) ([]byte, error) {
	return json.Marshal(Message{Type: eventType, Payload: payload})
}

// Broadcast sends the event to every connected client except the excluded ones.
func (r *Registry) Broadcast(eventType string, payload any, exclude ...int) {
	r.mu.RLock()
	ids := make([]int, 0, len(r.clients))
	for id := range r.clients {
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	r.SendToMany(without(ids, exclude), eventType, payload)
}

// JoinRoom adds a connected client to a room, creating the room on first use.
func (r *Registry) JoinRoom(roomID string, clientID int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.clients[clientID]; !ok {
		return
	}
	members, ok := r.rooms[roomID]
	if !ok {
		members = make(map[int]struct{})
		r.rooms[roomID] = members
	}
	members[clientID] = struct{}{}
}

// LeaveRoom removes the client from the room; the room disappears once empty.
func (r *Registry) LeaveRoom(roomID string, clientID int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	members, ok := r.rooms[roomID]
	if !ok {
		return
	}
	delete(members, clientID)
	if len(members) == 0 {
		delete(r.rooms, roomID)
	}
}

// MembersOf returns the sorted client ids in the room.
func (r *Registry) MembersOf(roomID string) []int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members := r.rooms[roomID]
	ids := make([]int, 0, len(members))
	for id := range members {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

func (r *Registry) SendToRoom(roomID string, eventType string, payload any, exclude ...int) {
	r.SendToMany(without(r.MembersOf(roomID), exclude), eventType, payload)
}

func (r *Registry) IsConnected(clientID int) bool {
	r.mu.RLock()
	e, ok := r.clients[clientID]
	r.mu.RUnlock()
	return ok && e.channel.IsOpen()
}

func (r *Registry) ClientCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

func (r *Registry) Metadata(clientID int) (ClientInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.clients[clientID]
	if !ok {
		return ClientInfo{}, false
	}
	return e.info, true
}

func (r *Registry) UpdateMetadata(clientID int, update func(info *ClientInfo)) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.clients[clientID]
	if !ok {
		return false
	}
	update(&e.info)
	return true
}

// Close closes every channel and forgets all clients and rooms.
func (r *Registry) Close() {
	r.mu.Lock()
	channels := make([]Channel, 0, len(r.clients))
	for _, e := range r.clients {
		channels = append(channels, e.channel)
	}
	r.clients = make(map[int]*entry)
	r.rooms = make(map[string]map[int]struct{})
	r.mu.Unlock()

	for _, ch := range channels {
		_ = ch.Close()
	}
	r.logger.Info("registry closed", slog.Int("closed_channels", len(channels)))
}

func without(ids []int, exclude []int) []int {
	if len(exclude) == 0 {
		return ids
	}
	skip := make(map[int]struct{}, len(exclude))
	for _, id := range exclude {
		skip[id] = struct{}{}
	}
	out := ids[:0:0]
	for _, id := range ids {
		if _, ok := skip[id]; !ok {
			out = append(out, id)
		}
	}
	return out
}
