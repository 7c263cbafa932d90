package realtime

import (
	"sync"

	"github.com/rs/zerolog"
)

const sessionSendBufferSize = 32

// Session is one live gateway connection. A user may hold several sessions
// at once (multi-device); room operations always enumerate all of them.
type Session struct {
	UserID string

	send   chan Event
	closed chan struct{}
	once   sync.Once
}

// NewSession creates a session for a freshly upgraded connection.
func NewSession(userID string) *Session {
	return &Session{
		UserID: userID,
		send:   make(chan Event, sessionSendBufferSize),
		closed: make(chan struct{}),
	}
}

// Send is the buffered outbound event queue drained by the write pump.
func (s *Session) Send() <-chan Event { return s.send }

// Closed is closed once the session is shut down.
func (s *Session) Closed() <-chan struct{} { return s.closed }

// Close marks the session closed. Safe to call more than once.
func (s *Session) Close() {
	s.once.Do(func() { close(s.closed) })
}

// Push queues an event without blocking, dropping it when the consumer is
// too slow to keep up.
func (s *Session) Push(event Event) bool {
	select {
	case <-s.closed:
		return false
	default:
	}
	select {
	case s.send <- event:
		return true
	default:
		return false
	}
}

// Registry is the process-wide index of live sessions and their room
// subscriptions: session -> rooms, room -> sessions, user -> sessions. It is
// populated at connect, pruned at disconnect and never persisted.
type Registry struct {
	mu       sync.RWMutex
	rooms    map[string]map[*Session]struct{}
	sessions map[*Session]map[string]struct{}
	users    map[string]map[*Session]struct{}
	logger   zerolog.Logger
}

// NewRegistry creates an empty connection registry.
func NewRegistry(logger zerolog.Logger) *Registry {
	return &Registry{
		rooms:    make(map[string]map[*Session]struct{}),
		sessions: make(map[*Session]map[string]struct{}),
		users:    make(map[string]map[*Session]struct{}),
		logger:   logger.With().Str("component", "gateway_registry").Logger(),
	}
}

// Register records a new live session under its user id.
func (r *Registry) Register(session *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sessions[session] = make(map[string]struct{})
	if _, ok := r.users[session.UserID]; !ok {
		r.users[session.UserID] = make(map[*Session]struct{})
	}
	r.users[session.UserID][session] = struct{}{}
	r.logger.Debug().Str("user_id", session.UserID).Msg("gateway session registered")
}

// Unregister removes a session from every room and from the user index.
func (r *Registry) Unregister(session *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for room := range r.sessions[session] {
		r.dropFromRoom(room, session)
	}
	delete(r.sessions, session)

	if sessions, ok := r.users[session.UserID]; ok {
		delete(sessions, session)
		if len(sessions) == 0 {
			delete(r.users, session.UserID)
		}
	}
	r.logger.Debug().Str("user_id", session.UserID).Msg("gateway session unregistered")
}

// Join subscribes a single session to the given rooms.
func (r *Registry) Join(session *Session, rooms ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	subscribed, ok := r.sessions[session]
	if !ok {
		return
	}
	for _, room := range rooms {
		if _, exists := r.rooms[room]; !exists {
			r.rooms[room] = make(map[*Session]struct{})
		}
		r.rooms[room][session] = struct{}{}
		subscribed[room] = struct{}{}
	}
}

// Leave unsubscribes a single session from the given rooms.
func (r *Registry) Leave(session *Session, rooms ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	subscribed, ok := r.sessions[session]
	if !ok {
		return
	}
	for _, room := range rooms {
		r.dropFromRoom(room, session)
		delete(subscribed, room)
	}
}

// JoinUser subscribes every live session of a user to the given rooms.
// Sessions opening mid-call self-heal via connect-time room resolution.
func (r *Registry) JoinUser(userID string, rooms ...string) {
	for _, session := range r.userSessions(userID) {
		r.Join(session, rooms...)
	}
}

// LeaveUser unsubscribes every live session of a user from the given rooms.
func (r *Registry) LeaveUser(userID string, rooms ...string) {
	for _, session := range r.userSessions(userID) {
		r.Leave(session, rooms...)
	}
}

// Emit pushes an event to every session currently subscribed to the room.
func (r *Registry) Emit(room string, event Event) {
	r.mu.RLock()
	sessions := make([]*Session, 0, len(r.rooms[room]))
	for session := range r.rooms[room] {
		sessions = append(sessions, session)
	}
	r.mu.RUnlock()

	for _, session := range sessions {
		if !session.Push(event) {
			r.logger.Warn().
				Str("room", room).
				Str("user_id", session.UserID).
				Str("event", event.Name).
				Msg("dropping gateway event for slow session")
		}
	}
}

// IsOnline reports whether the user has at least one live session.
func (r *Registry) IsOnline(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users[userID]) > 0
}

// SessionCount returns the number of live sessions across all users.
func (r *Registry) SessionCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// RoomSize returns how many sessions are subscribed to a room.
func (r *Registry) RoomSize(room string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms[room])
}

func (r *Registry) userSessions(userID string) []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sessions := make([]*Session, 0, len(r.users[userID]))
	for session := range r.users[userID] {
		sessions = append(sessions, session)
	}
	return sessions
}

func (r *Registry) dropFromRoom(room string, session *Session) {
	if members, ok := r.rooms[room]; ok {
		delete(members, session)
		if len(members) == 0 {
			delete(r.rooms, room)
		}
	}
}
