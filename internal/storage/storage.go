// Package storage defines the persistence contracts for adventures:
// characters, their conversation logs, and character-sheet history.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/louisbranch/loreweaver/internal/narrator"
)

// ErrNotFound indicates a requested record is missing.
var ErrNotFound = errors.New("record not found")

// Character is one playable character with its current sheet and recap.
type Character struct {
	ID       string
	Name     string
	GameName string
	// Sheet is the latest full character sheet as opaque JSON fields.
	Sheet map[string]json.RawMessage
	// Recap caches the last generated adventure summary. It stays valid
	// while LastRecapMessageID still matches the newest message.
	Recap              string
	LastRecapMessageID int64
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Message is one persisted conversation turn. Hidden turns carry setup
// context that is sent to the backend but never shown to the player.
type Message struct {
	ID          int64
	CharacterID string
	Role        narrator.Role
	Content     string
	Hidden      bool
	CreatedAt   time.Time
}

// SheetRevision is one historical character-sheet snapshot, recorded each
// time the sheet is replaced.
type SheetRevision struct {
	ID          int64
	CharacterID string
	Sheet       map[string]json.RawMessage
	CreatedAt   time.Time
}

// CharacterStore persists characters and their sheets.
type CharacterStore interface {
	CreateCharacter(ctx context.Context, character Character) (Character, error)
	GetCharacter(ctx context.Context, id string) (Character, error)
	ListCharacters(ctx context.Context) ([]Character, error)
	// ReplaceSheet swaps the stored sheet for a full replacement and records
	// the replacement as a new revision.
	ReplaceSheet(ctx context.Context, characterID string, sheet map[string]json.RawMessage) error
	ListSheetRevisions(ctx context.Context, characterID string) ([]SheetRevision, error)
	// SaveRecap caches a generated recap together with the newest message it
	// covers.
	SaveRecap(ctx context.Context, characterID, recap string, lastMessageID int64) error
}

// MessageStore persists conversation turns in insertion order.
type MessageStore interface {
	AppendMessage(ctx context.Context, message Message) (Message, error)
	ListMessages(ctx context.Context, characterID string) ([]Message, error)
}

// Store is the full persistence surface the application wires together.
type Store interface {
	CharacterStore
	MessageStore
	Close() error
}
