package websocket

import (
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Socket is a live client connection as seen by a registry.
type Socket interface {
	ID() string
	UserID() uuid.UUID
	// Send queues a frame without blocking. It fails when the socket is
	// closed or its queue is full.
	Send(frame []byte) error
	Close(code int, reason string)
}

type Registration struct {
	UserID uuid.UUID
	Socket Socket
}

// Registry maps a channel key (room id or user id) to the sockets attached
// to it on this process. It is safe for concurrent use; lookups return a
// snapshot so no lock is held while frames are written.
type Registry struct {
	name string
	// exclusive allows one socket per user and key. A newer socket displaces
	// the older one.
	exclusive bool

	mu       sync.RWMutex
	channels map[string]map[Socket]uuid.UUID
}

func NewRegistry(name string, exclusive bool) *Registry {
	return &Registry{
		name:      name,
		exclusive: exclusive,
		channels:  make(map[string]map[Socket]uuid.UUID),
	}
}

func (r *Registry) Name() string {
	return r.name
}

// Register attaches socket to key and returns sockets it displaced. The
// caller closes displaced sockets outside the lock.
func (r *Registry) Register(key string, userID uuid.UUID, socket Socket) []Socket {
	r.mu.Lock()
	defer r.mu.Unlock()

	sockets, ok := r.channels[key]
	if !ok {
		sockets = make(map[Socket]uuid.UUID)
		r.channels[key] = sockets
	}

	var displaced []Socket
	if r.exclusive {
		for s, uid := range sockets {
			if uid == userID && s != socket {
				delete(sockets, s)
				displaced = append(displaced, s)
			}
		}
	}
	sockets[socket] = userID
	return displaced
}

// Unregister detaches socket from key. The key disappears with its last
// socket. Unknown pairs are ignored, so it is safe on every exit path.
func (r *Registry) Unregister(key string, userID uuid.UUID, socket Socket) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sockets, ok := r.channels[key]
	if !ok {
		return
	}
	if uid, ok := sockets[socket]; ok && uid == userID {
		delete(sockets, socket)
	}
	if len(sockets) == 0 {
		delete(r.channels, key)
	}
}

func (r *Registry) LocalSocketsFor(key string) []Registration {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sockets := r.channels[key]
	out := make([]Registration, 0, len(sockets))
	for s, uid := range sockets {
		out = append(out, Registration{UserID: uid, Socket: s})
	}
	return out
}

// ChannelCount returns the number of keys with at least one socket.
func (r *Registry) ChannelCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.channels)
}

func (r *Registry) all() []Socket {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Socket
	for _, sockets := range r.channels {
		for s := range sockets {
			out = append(out, s)
		}
	}
	return out
}

// Registries groups the three per-process registries.
type Registries struct {
	Rooms         *Registry
	Updates       *Registry
	Notifications *Registry
}

func NewRegistries() *Registries {
	return &Registries{
		Rooms:         NewRegistry("rooms", false),
		Updates:       NewRegistry("chat_updates", true),
		Notifications: NewRegistry("notifications", true),
	}
}

// CloseAll closes every local socket with going-away. Used on shutdown so
// clients reconnect to another instance.
func (r *Registries) CloseAll(reason string) {
	for _, reg := range []*Registry{r.Rooms, r.Updates, r.Notifications} {
		for _, s := range reg.all() {
			s.Close(websocket.CloseGoingAway, reason)
		}
	}
}
