package domain

// RoomID names a channel grouping connections that exchange messages.
// Rooms are created implicitly on first join; the registry entry is
// evicted when the last connection leaves, while the room's history
// persists independently in the message store.
type RoomID string
