package domain

// ConnectionID identifies one live bidirectional session.
// A connection belongs to exactly one room for its whole lifetime.
type ConnectionID string
