package auth

import (
	"chat-relay/domain"
)

// Policy is the production Authorizer. Admins may post and read in any
// room; users everywhere except rooms named in the restricted set,
// which stands in for the external membership metadata this core does
// not own.
type Policy struct {
	restricted map[domain.RoomID]struct{}
}

func NewPolicy(restrictedRooms []string) Policy {
	restricted := make(map[domain.RoomID]struct{}, len(restrictedRooms))
	for _, room := range restrictedRooms {
		if room == "" {
			continue
		}
		restricted[domain.RoomID(room)] = struct{}{}
	}
	return Policy{restricted: restricted}
}

func (p Policy) CanPost(id domain.Identity, room domain.RoomID) bool {
	return p.allowed(id, room)
}

func (p Policy) CanRead(id domain.Identity, room domain.RoomID) bool {
	return p.allowed(id, room)
}

func (p Policy) allowed(id domain.Identity, room domain.RoomID) bool {
	switch id.Role {
	case domain.RoleAdmin:
		return true
	case domain.RoleUser:
		_, locked := p.restricted[room]
		return !locked
	default:
		return false
	}
}
