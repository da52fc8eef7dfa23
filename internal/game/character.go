package game

import (
	"fmt"
	"time"
)

// Stats tracks character progression. HP is clamped to [0, MaxHP] by the
// gameplay-effect application, not here.
type Stats struct {
	HP           int `json:"hp"`
	MaxHP        int `json:"max_hp"`
	XP           int `json:"xp"`
	Level        int `json:"level"`
	Strength     int `json:"strength"`
	Intelligence int `json:"intelligence"`
	Agility      int `json:"agility"`
}

// DefaultStats matches the server-side defaults for a fresh character.
func DefaultStats() Stats {
	return Stats{HP: 100, MaxHP: 100, XP: 0, Level: 1, Strength: 10, Intelligence: 10, Agility: 10}
}

// Character is owned by the player and read-only for the session
// orchestrator once created.
type Character struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Name        string    `json:"name"`
	Gender      Gender    `json:"gender"`
	PortraitURL string    `json:"portrait_url"`
	FullBodyURL string    `json:"full_body_url"`
	BuildType   BuildType `json:"build_type"`
	Stats       Stats     `json:"stats"`
	Inventory   []string  `json:"inventory"`
	CreatedAt   time.Time `json:"created_at"`
}

// Validate checks the fields required before any backend call is issued.
func (c Character) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("character: missing id")
	}
	if c.Name == "" {
		return fmt.Errorf("character: missing name")
	}
	if !c.Gender.Validate() {
		return fmt.Errorf("character: invalid gender %q", c.Gender)
	}
	if !c.BuildType.Validate() {
		return fmt.Errorf("character: invalid build type %q", c.BuildType)
	}
	return nil
}

// FallbackImageURL is the asset shown when scene media generation fails:
// the full-body render if present, otherwise the portrait.
func (c Character) FallbackImageURL() string {
	if c.FullBodyURL != "" {
		return c.FullBodyURL
	}
	return c.PortraitURL
}

// Session identifies one playthrough and correlates server-side state.
// It references exactly one character for its lifetime.
type Session struct {
	ID              string    `json:"session_id"`
	CharacterID     string    `json:"character_id"`
	CurrentScene    string    `json:"current_scene"`
	TotalXP         int       `json:"total_xp"`
	PlayTimeSeconds int       `json:"play_time_seconds"`
	IsActive        bool      `json:"is_active"`
	CreatedAt       time.Time `json:"created_at"`
}
