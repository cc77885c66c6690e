package hub

import "sync"

func ConversationRoom(conversationID string) string { return "conversation:" + conversationID }
func UserRoom(userID string) string                 { return "user:" + userID }
func NotificationRoom(userID string) string         { return "notifications:" + userID }

type roomBucket struct {
	sync.RWMutex
	rooms map[string]map[string]Endpoint // room -> endpointID -> endpoint
}

// Rooms tracks room membership per endpoint. Only tracked endpoints can
// join, so a late Join racing a disconnect cannot leave a dead endpoint behind.
type Rooms struct {
	shards [shardCount]*roomBucket

	// lock order: joinedMu before any shard lock
	joinedMu sync.Mutex
	joined   map[string]map[string]struct{} // endpointID -> rooms
}

func NewRooms() *Rooms {
	r := &Rooms{joined: make(map[string]map[string]struct{})}
	for i := 0; i < shardCount; i++ {
		r.shards[i] = &roomBucket{rooms: make(map[string]map[string]Endpoint)}
	}
	return r
}

// Track makes ep eligible to join rooms.
func (r *Rooms) Track(ep Endpoint) {
	r.joinedMu.Lock()
	defer r.joinedMu.Unlock()
	if _, ok := r.joined[ep.ID()]; !ok {
		r.joined[ep.ID()] = make(map[string]struct{})
	}
}

// Join is idempotent and reports whether ep newly joined room.
func (r *Rooms) Join(ep Endpoint, room string) bool {
	r.joinedMu.Lock()
	defer r.joinedMu.Unlock()

	set, tracked := r.joined[ep.ID()]
	if !tracked {
		return false
	}
	if _, ok := set[room]; ok {
		return false
	}
	set[room] = struct{}{}

	b := r.shards[getShard(room)]
	b.Lock()
	members, ok := b.rooms[room]
	if !ok {
		members = make(map[string]Endpoint)
		b.rooms[room] = members
	}
	members[ep.ID()] = ep
	b.Unlock()
	return true
}

func (r *Rooms) Leave(ep Endpoint, room string) {
	r.joinedMu.Lock()
	defer r.joinedMu.Unlock()

	if set, ok := r.joined[ep.ID()]; ok {
		delete(set, room)
	}
	r.removeMember(ep.ID(), room)
}

// LeaveAll removes ep from every room and stops tracking it.
func (r *Rooms) LeaveAll(ep Endpoint) {
	r.joinedMu.Lock()
	defer r.joinedMu.Unlock()

	for room := range r.joined[ep.ID()] {
		r.removeMember(ep.ID(), room)
	}
	delete(r.joined, ep.ID())
}

func (r *Rooms) removeMember(endpointID, room string) {
	b := r.shards[getShard(room)]
	b.Lock()
	defer b.Unlock()

	if members, ok := b.rooms[room]; ok {
		delete(members, endpointID)
		if len(members) == 0 {
			delete(b.rooms, room)
		}
	}
}

// Members returns a snapshot of the endpoints in room.
func (r *Rooms) Members(room string) []Endpoint {
	b := r.shards[getShard(room)]
	b.RLock()
	defer b.RUnlock()

	members := b.rooms[room]
	eps := make([]Endpoint, 0, len(members))
	for _, ep := range members {
		eps = append(eps, ep)
	}
	return eps
}

func (r *Rooms) IsMember(endpointID, room string) bool {
	b := r.shards[getShard(room)]
	b.RLock()
	defer b.RUnlock()

	_, ok := b.rooms[room][endpointID]
	return ok
}

func (r *Rooms) RoomsOf(endpointID string) []string {
	r.joinedMu.Lock()
	defer r.joinedMu.Unlock()

	rooms := make([]string, 0, len(r.joined[endpointID]))
	for room := range r.joined[endpointID] {
		rooms = append(rooms, room)
	}
	return rooms
}

// each calls fn for every non-empty room with its member snapshot.
func (r *Rooms) each(fn func(room string, members []Endpoint)) {
	for _, b := range r.shards {
		b.RLock()
		snapshot := make(map[string][]Endpoint, len(b.rooms))
		for room, members := range b.rooms {
			eps := make([]Endpoint, 0, len(members))
			for _, ep := range members {
				eps = append(eps, ep)
			}
			snapshot[room] = eps
		}
		b.RUnlock()

		for room, eps := range snapshot {
			fn(room, eps)
		}
	}
}
