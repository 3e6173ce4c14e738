package signaling

import "sort"

// Room is a named rendezvous group. Members are connection ids.
type Room struct {
	ID      string
	members map[string]struct{}
}

func (r *Room) MemberCount() int {
	return len(r.members)
}

// MemberIDs returns the member connection ids in stable order.
func (r *Room) MemberIDs() []string {
	ids := make([]string, 0, len(r.members))
	for id := range r.members {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// RoomRegistry indexes rooms by id. Rooms exist exactly as long as they have
// members: creation is lazy and removal of the last member deletes the room.
// Like ConnectionRegistry it is confined to the core's event loop.
type RoomRegistry struct {
	rooms map[string]*Room
}

func NewRoomRegistry() *RoomRegistry {
	return &RoomRegistry{rooms: make(map[string]*Room)}
}

// EnsureRoom returns the room, creating it if absent. The second return
// reports whether a new room was created.
func (r *RoomRegistry) EnsureRoom(id string) (*Room, bool) {
	if room, ok := r.rooms[id]; ok {
		return room, false
	}
	room := &Room{ID: id, members: make(map[string]struct{})}
	r.rooms[id] = room
	return room, true
}

func (r *RoomRegistry) Lookup(id string) (*Room, bool) {
	room, ok := r.rooms[id]
	return room, ok
}

// AddMember is idempotent; it reports whether the membership is new.
func (r *RoomRegistry) AddMember(roomID, connID string) bool {
	room, ok := r.rooms[roomID]
	if !ok {
		return false
	}
	if _, ok := room.members[connID]; ok {
		return false
	}
	room.members[connID] = struct{}{}
	return true
}

// RemoveMember removes connID from the room. The room is deleted in the same
// call when its last member leaves, so empty rooms are never observable.
func (r *RoomRegistry) RemoveMember(roomID, connID string) (removed, deleted bool) {
	room, ok := r.rooms[roomID]
	if !ok {
		return false, false
	}
	if _, ok := room.members[connID]; !ok {
		return false, false
	}
	delete(room.members, connID)
	if len(room.members) == 0 {
		delete(r.rooms, roomID)
		return true, true
	}
	return true, false
}

// Drop removes a room unconditionally, regardless of membership. Callers are
// responsible for detaching the members first.
func (r *RoomRegistry) Drop(id string) bool {
	if _, ok := r.rooms[id]; !ok {
		return false
	}
	delete(r.rooms, id)
	return true
}

// All returns every room in stable order by id.
func (r *RoomRegistry) All() []*Room {
	rooms := make([]*Room, 0, len(r.rooms))
	for _, room := range r.rooms {
		rooms = append(rooms, room)
	}
	sort.Slice(rooms, func(i, j int) bool { return rooms[i].ID < rooms[j].ID })
	return rooms
}

func (r *RoomRegistry) Count() int {
	return len(r.rooms)
}
