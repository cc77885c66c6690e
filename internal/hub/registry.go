package hub

import (
	"crypto/sha1"
	"encoding/binary"
	"sync"
)

const (
	shardCount = 64 // tune: 16/64/128 depending on load
)

func getShard(key string) uint32 {
	if key == "" {
		return 0
	}

	h := sha1.Sum([]byte(key))
	return binary.BigEndian.Uint32(h[:4]) % shardCount
}

type userBucket struct {
	sync.RWMutex
	users map[string]map[string]Endpoint // userID -> endpointID -> endpoint
}

// Registry maps a user id to every live endpoint of that user.
type Registry struct {
	shards [shardCount]*userBucket
}

func NewRegistry() *Registry {
	r := &Registry{}
	for i := 0; i < shardCount; i++ {
		r.shards[i] = &userBucket{users: make(map[string]map[string]Endpoint)}
	}
	return r
}

// Registration is the handle returned by Register. Release removes exactly
// the registered endpoint, at most once.
type Registration struct {
	registry *Registry
	endpoint Endpoint
	once     sync.Once
}

// Register adds ep under its user. first is true when the user had no live
// endpoint before this call. Registering the same endpoint twice is a no-op.
func (r *Registry) Register(ep Endpoint) (*Registration, bool) {
	b := r.shards[getShard(ep.UserID())]
	b.Lock()
	defer b.Unlock()

	conns, ok := b.users[ep.UserID()]
	if !ok {
		conns = make(map[string]Endpoint)
		b.users[ep.UserID()] = conns
	}

	_, exists := conns[ep.ID()]
	first := len(conns) == 0
	if !exists {
		conns[ep.ID()] = ep
	}

	return &Registration{registry: r, endpoint: ep}, first && !exists
}

// Release reports whether this removed the user's last endpoint.
func (reg *Registration) Release() bool {
	last := false
	reg.once.Do(func() {
		last = reg.registry.remove(reg.endpoint)
	})
	return last
}

func (r *Registry) remove(ep Endpoint) bool {
	b := r.shards[getShard(ep.UserID())]
	b.Lock()
	defer b.Unlock()

	conns, ok := b.users[ep.UserID()]
	if !ok {
		return false
	}
	if current, exists := conns[ep.ID()]; !exists || current != ep {
		return false
	}

	delete(conns, ep.ID())
	if len(conns) == 0 {
		delete(b.users, ep.UserID())
		return true
	}
	return false
}

// Resolve returns a snapshot of userID's live endpoints, empty when offline.
func (r *Registry) Resolve(userID string) []Endpoint {
	b := r.shards[getShard(userID)]
	b.RLock()
	defer b.RUnlock()

	conns := b.users[userID]
	eps := make([]Endpoint, 0, len(conns))
	for _, ep := range conns {
		eps = append(eps, ep)
	}
	return eps
}

func (r *Registry) IsOnline(userID string) bool {
	b := r.shards[getShard(userID)]
	b.RLock()
	defer b.RUnlock()
	return len(b.users[userID]) > 0
}

func (r *Registry) OnlineUsers() []string {
	users := make([]string, 0)
	for _, b := range r.shards {
		b.RLock()
		for userID := range b.users {
			users = append(users, userID)
		}
		b.RUnlock()
	}
	return users
}

// All returns every live endpoint.
func (r *Registry) All() []Endpoint {
	eps := make([]Endpoint, 0)
	for _, b := range r.shards {
		b.RLock()
		for _, conns := range b.users {
			for _, ep := range conns {
				eps = append(eps, ep)
			}
		}
		b.RUnlock()
	}
	return eps
}

// Count returns (connections, users).
func (r *Registry) Count() (int, int) {
	connections, users := 0, 0
	for _, b := range r.shards {
		b.RLock()
		users += len(b.users)
		for _, conns := range b.users {
			connections += len(conns)
		}
		b.RUnlock()
	}
	return connections, users
}
