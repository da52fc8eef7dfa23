package api

import (
	"encoding/json"

	"github.com/fableweaver/fableweaver/internal/game"
)

// The backend's response shapes drifted across versions: scene ids arrive as
// scene_id or id, images as a scene_image object or a bare image_url /
// imageUrl string, and so on. All of that variance is folded here, at the
// boundary, so the rest of the program only ever sees game.Scene.

type choiceEnvelope struct {
	ID              string `json:"id"`
	ChoiceID        string `json:"choice_id"`
	Text            string `json:"text"`
	Label           string `json:"label"`
	Preview         string `json:"preview"`
	ConsequenceHint string `json:"consequence_hint"`
}

type sceneEnvelope struct {
	SceneID      string           `json:"scene_id"`
	ID           string           `json:"id"`
	Narration    string           `json:"narration"`
	Text         string           `json:"text"`
	SceneImage   json.RawMessage  `json:"scene_image"`
	ImageURL     string           `json:"image_url"`
	ImageURLAlt  string           `json:"imageUrl"`
	AudioURL     string           `json:"audio_url"`
	AudioURLAlt  string           `json:"audioUrl"`
	Choices      []choiceEnvelope `json:"choices"`
	IsCombat     bool             `json:"is_combat"`
	IsCheckpoint bool             `json:"is_checkpoint"`
	IsFinal      bool             `json:"is_final"`
	Final        bool             `json:"final"`
}

type sessionEnvelope struct {
	SessionID       string `json:"session_id"`
	ID              string `json:"id"`
	CharacterID     string `json:"character_id"`
	CurrentScene    string `json:"current_scene"`
	TotalXP         int    `json:"total_xp"`
	PlayTimeSeconds int    `json:"play_time_seconds"`
	IsActive        bool   `json:"is_active"`
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// imageURLFrom accepts either a bare URL string or an object with a url
// field, the two shapes the backend has been seen emitting.
func imageURLFrom(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var obj struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		return obj.URL
	}
	return ""
}

// Scene builds the canonical scene. Missing optional fields collapse to zero
// values; this never fails.
func (e sceneEnvelope) Scene() game.Scene {
	s := game.Scene{
		ID:           firstNonEmpty(e.SceneID, e.ID),
		Narration:    firstNonEmpty(e.Narration, e.Text),
		ImageURL:     firstNonEmpty(imageURLFrom(e.SceneImage), e.ImageURL, e.ImageURLAlt),
		AudioURL:     firstNonEmpty(e.AudioURL, e.AudioURLAlt),
		Choices:      make([]game.Choice, 0, len(e.Choices)),
		IsCombat:     e.IsCombat,
		IsCheckpoint: e.IsCheckpoint,
		IsFinal:      e.IsFinal || e.Final,
	}
	for _, c := range e.Choices {
		s.Choices = append(s.Choices, game.Choice{
			ID:              firstNonEmpty(c.ID, c.ChoiceID),
			Text:            firstNonEmpty(c.Text, c.Label),
			Preview:         c.Preview,
			ConsequenceHint: c.ConsequenceHint,
		})
	}
	return s
}

func (e sessionEnvelope) Session() game.Session {
	return game.Session{
		ID:              firstNonEmpty(e.SessionID, e.ID),
		CharacterID:     e.CharacterID,
		CurrentScene:    e.CurrentScene,
		TotalXP:         e.TotalXP,
		PlayTimeSeconds: e.PlayTimeSeconds,
		IsActive:        e.IsActive,
	}
}
