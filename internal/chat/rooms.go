package chat

// RoomIndex maps room ids to the set of connection ids currently occupying
// them. A room exists only while it has members; removing the last member
// deletes the entry. The index carries no locking of its own: the owning
// Registry's mutex guards every mutation, so room membership and connection
// metadata can never disagree.
type RoomIndex struct {
	rooms map[string]map[string]struct{}
}

func NewRoomIndex() *RoomIndex {
	return &RoomIndex{rooms: make(map[string]map[string]struct{})}
}

func (ri *RoomIndex) AddToRoom(roomID, connID string) {
	members, ok := ri.rooms[roomID]
	if !ok {
		members = make(map[string]struct{})
		ri.rooms[roomID] = members
	}
	members[connID] = struct{}{}
}

func (ri *RoomIndex) RemoveFromRoom(roomID, connID string) {
	members, ok := ri.rooms[roomID]
	if !ok {
		return
	}
	delete(members, connID)
	if len(members) == 0 {
		delete(ri.rooms, roomID)
	}
}

// MembersOf returns the connection ids in a room. Unknown rooms yield an
// empty slice, never an error.
func (ri *RoomIndex) MembersOf(roomID string) []string {
	members := ri.rooms[roomID]
	ids := make([]string, 0, len(members))
	for id := range members {
		ids = append(ids, id)
	}
	return ids
}

func (ri *RoomIndex) Count(roomID string) int {
	return len(ri.rooms[roomID])
}

func (ri *RoomIndex) RoomCount() int {
	return len(ri.rooms)
}
