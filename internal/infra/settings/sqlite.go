// Package settings provides SQLite-backed per-guild bot settings.
package settings

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
	"github.com/rs/zerolog/log"
)

const (
	// CurrentSchemaVersion is the current database schema version.
	CurrentSchemaVersion = "1"

	// DefaultDBPath is the default path for the settings database.
	DefaultDBPath = "data/radiobot.db"
)

// ErrNotOpen is returned when the store is used before Open.
var ErrNotOpen = errors.New("database not open")

// GuildSetup holds the configured channels of a guild.
type GuildSetup struct {
	GuildID       string    `json:"guildId"`
	TextChannelID string    `json:"textChannelId"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Store persists guild settings in SQLite.
type Store struct {
	mu   sync.RWMutex
	db   *sql.DB
	path string
}

// NewStore creates a new settings store instance.
func NewStore(path string) *Store {
	if path == "" {
		path = DefaultDBPath
	}
	return &Store{
		path: path,
	}
}

// Open opens the database and initializes the schema.
func (s *Store) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create settings directory: %w", err)
	}

	db, err := sql.Open("sqlite3", s.path+"?_journal=WAL&_busy_timeout=5000")
	if err != nil {
		return fmt.Errorf("failed to open settings database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite only supports one writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	s.db = db

	if err := s.initSchema(); err != nil {
		s.db.Close()
		s.db = nil
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	log.Info().Str("path", s.path).Msg("Settings database opened")
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != nil {
		err := s.db.Close()
		s.db = nil
		return err
	}
	return nil
}

func (s *Store) initSchema() error {
	currentVersion := s.getSchemaVersion()

	if currentVersion == "" {
		if err := s.createSchema(); err != nil {
			return err
		}
		return s.setMeta("schema_version", CurrentSchemaVersion)
	}

	if currentVersion != CurrentSchemaVersion {
		log.Info().
			Str("current", currentVersion).
			Str("target", CurrentSchemaVersion).
			Msg("Migrating settings schema")
		return s.setMeta("schema_version", CurrentSchemaVersion)
	}

	return nil
}

func (s *Store) createSchema() error {
	schema := `
	-- Channel where now-playing notices are posted, per guild
	CREATE TABLE IF NOT EXISTS guild_setup (
		guild_id TEXT PRIMARY KEY,
		text_channel_id TEXT NOT NULL,
		updated_at TEXT DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS settings_meta (
		key TEXT PRIMARY KEY,
		value TEXT,
		updated_at TEXT DEFAULT CURRENT_TIMESTAMP
	);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	log.Info().Msg("Settings schema created")
	return nil
}

func (s *Store) getSchemaVersion() string {
	var version string
	err := s.db.QueryRow("SELECT value FROM settings_meta WHERE key = 'schema_version'").Scan(&version)
	if err != nil {
		return ""
	}
	return version
}

func (s *Store) setMeta(key, value string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.Exec(`
		INSERT INTO settings_meta (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value, now)
	return err
}

// SetAnnounceChannel stores the channel now-playing notices go to.
func (s *Store) SetAnnounceChannel(ctx context.Context, guildID, channelID string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return ErrNotOpen
	}

	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO guild_setup (guild_id, text_channel_id, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(guild_id) DO UPDATE SET text_channel_id = excluded.text_channel_id, updated_at = excluded.updated_at
	`, guildID, channelID, now)
	if err != nil {
		return fmt.Errorf("save guild setup: %w", err)
	}
	return nil
}

// AnnounceChannel returns the configured channel of a guild, or "" if none.
func (s *Store) AnnounceChannel(ctx context.Context, guildID string) (string, error) {
	setup, err := s.GuildSetup(ctx, guildID)
	if err != nil || setup == nil {
		return "", err
	}
	return setup.TextChannelID, nil
}

// GuildSetup returns the stored setup of a guild, or nil if none.
func (s *Store) GuildSetup(ctx context.Context, guildID string) (*GuildSetup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return nil, ErrNotOpen
	}

	var setup GuildSetup
	var updated string
	err := s.db.QueryRowContext(ctx,
		"SELECT guild_id, text_channel_id, updated_at FROM guild_setup WHERE guild_id = ?", guildID,
	).Scan(&setup.GuildID, &setup.TextChannelID, &updated)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load guild setup: %w", err)
	}
	setup.UpdatedAt, _ = time.Parse(time.RFC3339, updated)
	return &setup, nil
}

// ClearAnnounceChannel removes a guild's setup.
func (s *Store) ClearAnnounceChannel(ctx context.Context, guildID string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return ErrNotOpen
	}

	if _, err := s.db.ExecContext(ctx, "DELETE FROM guild_setup WHERE guild_id = ?", guildID); err != nil {
		return fmt.Errorf("delete guild setup: %w", err)
	}
	return nil
}
