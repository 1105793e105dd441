// Package presence tracks which users are reachable over the real-time channel.
package presence

import (
	"errors"
	"fmt"
	"sync"

	v1 "github.com/PaulBabatuyi/tumatch-chat/api/chat/v1"
	"github.com/hashicorp/go-multierror"
	"github.com/op/go-logging"
)

var log = logging.MustGetLogger("presence")

// ErrUnreachable is returned by Emit when the user has no registered connection.
var ErrUnreachable = errors.New("user not reachable")

// Sender is the minimal interface the registry needs from a connection: the ability
// to push a ServerEvent to the connected client.
type Sender interface {
	Send(*v1.ServerEvent) error
}

type entry struct {
	userID string
	sender Sender
}

// Registry maps connection ids to user ids. Each user has a "room": the set of
// connections currently registered for that user id.
//
// A Registry is safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]entry
	rooms map[string]map[string]Sender
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		conns: make(map[string]entry),
		rooms: make(map[string]map[string]Sender),
	}
}

// Register records that connID belongs to userID. A connection that was registered
// before is moved to the new user's room. Empty ids and a nil sender are rejected
// and nothing is registered.
func (r *Registry) Register(connID, userID string, s Sender) bool {
	if connID == "" || userID == "" || s == nil {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if old, ok := r.conns[connID]; ok {
		r.leaveLocked(old.userID, connID)
	}
	r.conns[connID] = entry{userID: userID, sender: s}

	room, ok := r.rooms[userID]
	if !ok {
		room = make(map[string]Sender)
		r.rooms[userID] = room
	}
	room[connID] = s
	return true
}

// Unregister removes connID. Unknown connections are ignored.
func (r *Registry) Unregister(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.conns[connID]
	if !ok {
		return
	}
	delete(r.conns, connID)
	r.leaveLocked(e.userID, connID)
}

func (r *Registry) leaveLocked(userID, connID string) {
	if room, ok := r.rooms[userID]; ok {
		delete(room, connID)
		if len(room) == 0 {
			delete(r.rooms, userID)
		}
	}
}

// IsReachable reports whether at least one connection is registered for userID.
func (r *Registry) IsReachable(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms[userID]) > 0
}

// UserOf returns the user registered for connID.
func (r *Registry) UserOf(connID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.conns[connID]
	return e.userID, ok
}

// Len returns the number of registered connections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// Emit sends ev to every connection in userID's room. Delivery is best-effort and
// at-most-once: nothing is queued for offline users. Connections whose Send fails are
// unregistered; their errors are returned together.
func (r *Registry) Emit(userID string, ev *v1.ServerEvent) error {
	r.mu.RLock()
	room := r.rooms[userID]
	targets := make(map[string]Sender, len(room))
	for id, s := range room {
		targets[id] = s
	}
	r.mu.RUnlock()

	if len(targets) == 0 {
		return ErrUnreachable
	}

	// Send outside the lock: a slow client must not block registration of others.
	var result *multierror.Error
	var failed []string
	for id, s := range targets {
		if err := s.Send(ev); err != nil {
			result = multierror.Append(result, fmt.Errorf("connection %s: %w", id, err))
			failed = append(failed, id)
		}
	}

	for _, id := range failed {
		log.Debugf("dropping broken connection %s of user %s", id, userID)
		r.Unregister(id)
	}

	return result.ErrorOrNil()
}
