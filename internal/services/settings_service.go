// Package services holds the small persistence services that sit between the
// HTTP layer and the database.
package services

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/scrypster/keepsake/internal/store"
	"github.com/scrypster/keepsake/pkg/types"
)

const settingsSchema = `
CREATE TABLE IF NOT EXISTS settings (
	user_id    TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// SettingsService persists the per-user settings document.
type SettingsService struct {
	db *sql.DB
}

// NewSettingsService opens (and if needed creates) the settings table in the
// sqlite database at path.
func NewSettingsService(path string) (*SettingsService, error) {
	db, err := store.OpenDB(path, settingsSchema)
	if err != nil {
		return nil, err
	}
	return &SettingsService{db: db}, nil
}

// Get returns the settings for userID, normalized. A user with no stored
// settings gets the defaults.
func (s *SettingsService) Get(userID string) (types.Settings, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM settings WHERE user_id = ?", userID).Scan(&value)
	if err == sql.ErrNoRows {
		return types.DefaultSettings(), nil
	}
	if err != nil {
		return types.Settings{}, fmt.Errorf("services: failed to load settings: %w", err)
	}

	var settings types.Settings
	if err := json.Unmarshal([]byte(value), &settings); err != nil {
		return types.Settings{}, fmt.Errorf("services: failed to decode settings: %w", err)
	}
	settings.Normalize()
	return settings, nil
}

// Save normalizes and upserts the settings document for userID.
func (s *SettingsService) Save(userID string, settings types.Settings) error {
	settings.Normalize()
	value, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("services: failed to encode settings: %w", err)
	}

	_, err = s.db.Exec(
		`INSERT INTO settings (user_id, value, updated_at)
		 VALUES (?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at`,
		userID, string(value), time.Now(),
	)
	if err != nil {
		return fmt.Errorf("services: failed to save settings: %w", err)
	}
	return nil
}

// Update applies patch to the stored settings: empty strings and zero values
// in patch leave the stored field untouched, except APIKey where the masking
// placeholder also means "unchanged".
func (s *SettingsService) Update(userID string, patch types.Settings) (types.Settings, error) {
	current, err := s.Get(userID)
	if err != nil {
		return types.Settings{}, err
	}

	if patch.Provider != "" {
		current.Provider = patch.Provider
	}
	if patch.BaseURL != "" {
		current.BaseURL = patch.BaseURL
	}
	if patch.APIKey != "" && patch.APIKey != "********" {
		current.APIKey = patch.APIKey
	}
	if patch.Model != "" {
		current.Model = patch.Model
	}
	if patch.SystemPrompt != "" {
		current.SystemPrompt = patch.SystemPrompt
	}
	if patch.MaxInputTokens > 0 {
		current.MaxInputTokens = patch.MaxInputTokens
	}
	if patch.MaxOutputTokens > 0 {
		current.MaxOutputTokens = patch.MaxOutputTokens
	}
	if patch.Temperature > 0 {
		current.Temperature = patch.Temperature
	}
	if patch.HistoryStrategy != "" {
		current.HistoryStrategy = patch.HistoryStrategy
	}
	if patch.CompressionThreshold > 0 {
		current.CompressionThreshold = patch.CompressionThreshold
	}
	if patch.CompressionTarget > 0 {
		current.CompressionTarget = patch.CompressionTarget
	}

	if err := s.Save(userID, current); err != nil {
		return types.Settings{}, err
	}
	return current, nil
}

// Close releases the database handle.
func (s *SettingsService) Close() error { return s.db.Close() }
