// Package narrator models the conversation exchanged with the generative
// game-master backend.
//
// A History is an append-only value: Append returns a new log rather than
// mutating the receiver, so each retry attempt can extend its own view of
// the conversation without affecting what the caller holds.
package narrator

// Role identifies the author of a conversation turn.
type Role string

const (
	// RoleUser marks turns written by the player (or synthesized on their behalf).
	RoleUser Role = "user"
	// RoleModel marks turns produced by the generative backend.
	RoleModel Role = "model"
)

// Turn is one entry in a conversation.
type Turn struct {
	Role    Role
	Content string
}

// History is an ordered conversation log.
type History []Turn

// Append returns a new history with the turn added. The receiver is never
// modified; the returned value owns its own backing storage.
func (h History) Append(role Role, content string) History {
	extended := make(History, len(h), len(h)+1)
	copy(extended, h)
	return append(extended, Turn{Role: role, Content: content})
}
