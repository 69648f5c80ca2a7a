// Package sqlite provides a SQLite-backed adventure storage implementation.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/louisbranch/loreweaver/internal/narrator"
	"github.com/louisbranch/loreweaver/internal/platform/storage/sqlitemigrate"
	"github.com/louisbranch/loreweaver/internal/storage"
	"github.com/louisbranch/loreweaver/internal/storage/sqlite/migrations"
)

// Store persists adventure state in SQLite.
type Store struct {
	sqlDB *sql.DB
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens a SQLite adventure store and applies embedded migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := sqlitemigrate.ApplyMigrations(sqlDB, migrations.FS, ""); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// CreateCharacter inserts one character record. A missing ID is generated;
// missing timestamps default to now.
func (s *Store) CreateCharacter(ctx context.Context, character storage.Character) (storage.Character, error) {
	if err := ctx.Err(); err != nil {
		return storage.Character{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.Character{}, fmt.Errorf("storage is not configured")
	}
	character.Name = strings.TrimSpace(character.Name)
	character.GameName = strings.TrimSpace(character.GameName)
	if character.Name == "" {
		return storage.Character{}, fmt.Errorf("character name is required")
	}
	if character.GameName == "" {
		return storage.Character{}, fmt.Errorf("game name is required")
	}
	if character.ID == "" {
		id, err := storage.NewID()
		if err != nil {
			return storage.Character{}, fmt.Errorf("generate character id: %w", err)
		}
		character.ID = id
	}
	if character.CreatedAt.IsZero() {
		character.CreatedAt = time.Now().UTC()
	}
	character.UpdatedAt = character.CreatedAt

	sheet, err := encodeSheet(character.Sheet)
	if err != nil {
		return storage.Character{}, err
	}

	_, err = s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO characters (
		   id, name, game_name, sheet, recap, last_recap_message_id,
		   created_at, updated_at
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		character.ID,
		character.Name,
		character.GameName,
		sheet,
		character.Recap,
		character.LastRecapMessageID,
		toMillis(character.CreatedAt),
		toMillis(character.UpdatedAt),
	)
	if err != nil {
		return storage.Character{}, fmt.Errorf("create character: %w", err)
	}
	return character, nil
}

// GetCharacter returns one character by ID.
func (s *Store) GetCharacter(ctx context.Context, id string) (storage.Character, error) {
	if err := ctx.Err(); err != nil {
		return storage.Character{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.Character{}, fmt.Errorf("storage is not configured")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return storage.Character{}, fmt.Errorf("character id is required")
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT id, name, game_name, sheet, recap, last_recap_message_id,
		        created_at, updated_at
		   FROM characters
		  WHERE id = ?`,
		id,
	)
	return scanCharacter(row.Scan)
}

// ListCharacters returns every character ordered by creation time.
func (s *Store) ListCharacters(ctx context.Context) ([]storage.Character, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT id, name, game_name, sheet, recap, last_recap_message_id,
		        created_at, updated_at
		   FROM characters
		  ORDER BY created_at ASC, id ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list characters: %w", err)
	}
	defer rows.Close()

	var characters []storage.Character
	for rows.Next() {
		character, err := scanCharacter(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("list characters: %w", err)
		}
		characters = append(characters, character)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list characters: %w", err)
	}
	return characters, nil
}

// ReplaceSheet swaps the stored sheet for a full replacement and records
// the replacement as a new revision, atomically.
func (s *Store) ReplaceSheet(ctx context.Context, characterID string, sheet map[string]json.RawMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	characterID = strings.TrimSpace(characterID)
	if characterID == "" {
		return fmt.Errorf("character id is required")
	}

	encoded, err := encodeSheet(sheet)
	if err != nil {
		return err
	}
	now := toMillis(time.Now())

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("replace sheet: %w", err)
	}

	result, err := tx.ExecContext(
		ctx,
		`UPDATE characters SET sheet = ?, updated_at = ? WHERE id = ?`,
		encoded, now, characterID,
	)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("replace sheet: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("replace sheet: %w", err)
	}
	if affected == 0 {
		_ = tx.Rollback()
		return storage.ErrNotFound
	}

	if _, err := tx.ExecContext(
		ctx,
		`INSERT INTO sheet_revisions (character_id, sheet, created_at) VALUES (?, ?, ?)`,
		characterID, encoded, now,
	); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("record sheet revision: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("replace sheet: %w", err)
	}
	return nil
}

// ListSheetRevisions returns a character's sheet history, oldest first.
func (s *Store) ListSheetRevisions(ctx context.Context, characterID string) ([]storage.SheetRevision, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	characterID = strings.TrimSpace(characterID)
	if characterID == "" {
		return nil, fmt.Errorf("character id is required")
	}

	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT id, character_id, sheet, created_at
		   FROM sheet_revisions
		  WHERE character_id = ?
		  ORDER BY id ASC`,
		characterID,
	)
	if err != nil {
		return nil, fmt.Errorf("list sheet revisions: %w", err)
	}
	defer rows.Close()

	var revisions []storage.SheetRevision
	for rows.Next() {
		var revision storage.SheetRevision
		var sheet string
		var createdAt int64
		if err := rows.Scan(&revision.ID, &revision.CharacterID, &sheet, &createdAt); err != nil {
			return nil, fmt.Errorf("list sheet revisions: %w", err)
		}
		if err := json.Unmarshal([]byte(sheet), &revision.Sheet); err != nil {
			return nil, fmt.Errorf("decode sheet revision %d: %w", revision.ID, err)
		}
		revision.CreatedAt = fromMillis(createdAt)
		revisions = append(revisions, revision)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list sheet revisions: %w", err)
	}
	return revisions, nil
}

// SaveRecap caches a generated recap and the newest message it covers.
func (s *Store) SaveRecap(ctx context.Context, characterID, recap string, lastMessageID int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	characterID = strings.TrimSpace(characterID)
	if characterID == "" {
		return fmt.Errorf("character id is required")
	}

	result, err := s.sqlDB.ExecContext(
		ctx,
		`UPDATE characters
		    SET recap = ?, last_recap_message_id = ?, updated_at = ?
		  WHERE id = ?`,
		recap, lastMessageID, toMillis(time.Now()), characterID,
	)
	if err != nil {
		return fmt.Errorf("save recap: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("save recap: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// AppendMessage inserts one conversation turn and returns it with its
// assigned ID.
func (s *Store) AppendMessage(ctx context.Context, message storage.Message) (storage.Message, error) {
	if err := ctx.Err(); err != nil {
		return storage.Message{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.Message{}, fmt.Errorf("storage is not configured")
	}
	message.CharacterID = strings.TrimSpace(message.CharacterID)
	if message.CharacterID == "" {
		return storage.Message{}, fmt.Errorf("character id is required")
	}
	if message.Role != narrator.RoleUser && message.Role != narrator.RoleModel {
		return storage.Message{}, fmt.Errorf("unknown message role %q", message.Role)
	}
	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now().UTC()
	}

	result, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO messages (character_id, role, content, hidden, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		message.CharacterID,
		string(message.Role),
		message.Content,
		message.Hidden,
		toMillis(message.CreatedAt),
	)
	if err != nil {
		return storage.Message{}, fmt.Errorf("append message: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return storage.Message{}, fmt.Errorf("append message: %w", err)
	}
	message.ID = id
	return message, nil
}

// ListMessages returns a character's conversation, oldest first.
func (s *Store) ListMessages(ctx context.Context, characterID string) ([]storage.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	characterID = strings.TrimSpace(characterID)
	if characterID == "" {
		return nil, fmt.Errorf("character id is required")
	}

	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT id, character_id, role, content, hidden, created_at
		   FROM messages
		  WHERE character_id = ?
		  ORDER BY id ASC`,
		characterID,
	)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var messages []storage.Message
	for rows.Next() {
		var message storage.Message
		var role string
		var createdAt int64
		if err := rows.Scan(
			&message.ID,
			&message.CharacterID,
			&role,
			&message.Content,
			&message.Hidden,
			&createdAt,
		); err != nil {
			return nil, fmt.Errorf("list messages: %w", err)
		}
		message.Role = narrator.Role(role)
		message.CreatedAt = fromMillis(createdAt)
		messages = append(messages, message)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return messages, nil
}

type scanFunc func(dest ...any) error

func scanCharacter(scan scanFunc) (storage.Character, error) {
	var character storage.Character
	var sheet string
	var createdAt int64
	var updatedAt int64
	err := scan(
		&character.ID,
		&character.Name,
		&character.GameName,
		&sheet,
		&character.Recap,
		&character.LastRecapMessageID,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.Character{}, storage.ErrNotFound
		}
		return storage.Character{}, fmt.Errorf("get character: %w", err)
	}
	if err := json.Unmarshal([]byte(sheet), &character.Sheet); err != nil {
		return storage.Character{}, fmt.Errorf("decode character sheet: %w", err)
	}
	character.CreatedAt = fromMillis(createdAt)
	character.UpdatedAt = fromMillis(updatedAt)
	return character, nil
}

func encodeSheet(sheet map[string]json.RawMessage) (string, error) {
	if sheet == nil {
		return "{}", nil
	}
	encoded, err := json.Marshal(sheet)
	if err != nil {
		return "", fmt.Errorf("encode character sheet: %w", err)
	}
	return string(encoded), nil
}

var _ storage.Store = (*Store)(nil)
