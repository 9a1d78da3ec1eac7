// Package prefs persists per-visitor presentation preferences. Only the
// theme choice exists today: a single key per visitor that survives
// reloads.
package prefs

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Theme is the visitor's colour scheme choice.
type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

// Valid reports whether t is a known theme.
func (t Theme) Valid() bool {
	return t == ThemeLight || t == ThemeDark
}

// Store keeps theme preferences in Redis, one key per visitor.
type Store struct {
	redis *redis.Client
}

// NewStore creates a preference store.
func NewStore(client *redis.Client) *Store {
	if client == nil {
		panic("prefs: redis client cannot be nil")
	}
	return &Store{redis: client}
}

// SaveTheme persists the visitor's theme.
func (s *Store) SaveTheme(ctx context.Context, visitorID string, theme Theme) error {
	if !theme.Valid() {
		return fmt.Errorf("prefs: unknown theme %q", theme)
	}
	if err := s.redis.Set(ctx, themeKey(visitorID), string(theme), 0).Err(); err != nil {
		return fmt.Errorf("prefs: persist theme: %w", err)
	}
	return nil
}

// LoadTheme returns the visitor's theme, defaulting to light when none
// was ever saved.
func (s *Store) LoadTheme(ctx context.Context, visitorID string) (Theme, error) {
	val, err := s.redis.Get(ctx, themeKey(visitorID)).Result()
	if err != nil {
		if err == redis.Nil {
			return ThemeLight, nil
		}
		return "", fmt.Errorf("prefs: load theme: %w", err)
	}
	theme := Theme(val)
	if !theme.Valid() {
		return ThemeLight, nil
	}
	return theme, nil
}

func themeKey(visitorID string) string {
	return fmt.Sprintf("theme:%s", visitorID)
}
