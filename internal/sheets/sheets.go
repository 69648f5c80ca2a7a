// Package sheets applies character-sheet updates emitted by the narrator.
package sheets

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/louisbranch/loreweaver/internal/storage"
)

// Service persists narrator-emitted character sheets. Each update replaces
// the whole stored sheet; partial diffs are not supported, so the narrator
// is instructed to always emit the full sheet.
type Service struct {
	characters storage.CharacterStore
}

// New builds a sheet service over character storage.
func New(characters storage.CharacterStore) *Service {
	return &Service{characters: characters}
}

// UpdateSheet replaces a character's sheet with the supplied payload.
func (s *Service) UpdateSheet(ctx context.Context, characterID string, sheet map[string]json.RawMessage) error {
	if s == nil || s.characters == nil {
		return fmt.Errorf("character storage is not configured")
	}
	if len(sheet) == 0 {
		return fmt.Errorf("sheet payload is empty")
	}
	if err := s.characters.ReplaceSheet(ctx, characterID, sheet); err != nil {
		return fmt.Errorf("replace sheet for %s: %w", characterID, err)
	}
	return nil
}
