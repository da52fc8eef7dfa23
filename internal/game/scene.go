package game

import "time"

// Choice exists only as a child of a Scene and is referenced by id when
// resolving the next scene.
type Choice struct {
	ID              string `json:"id"`
	Text            string `json:"text"`
	Preview         string `json:"preview,omitempty"`
	ConsequenceHint string `json:"consequence_hint,omitempty"`
}

// Scene is the unit of narrative state. Scenes are immutable once produced:
// producers hand out clones, and a new scene replaces the current one instead
// of mutating it.
type Scene struct {
	ID           string   `json:"scene_id"`
	Narration    string   `json:"narration"`
	ImageURL     string   `json:"image_url,omitempty"`
	AudioURL     string   `json:"audio_url,omitempty"`
	Choices      []Choice `json:"choices"`
	IsCombat     bool     `json:"is_combat,omitempty"`
	IsCheckpoint bool     `json:"is_checkpoint,omitempty"`
	IsFinal      bool     `json:"is_final,omitempty"`
}

// Terminal reports whether the narrative ends at this scene.
func (s Scene) Terminal() bool { return s.IsFinal || len(s.Choices) == 0 }

// Choice returns the choice with the given id, if present.
func (s Scene) Choice(id string) (Choice, bool) {
	for _, c := range s.Choices {
		if c.ID == id {
			return c, true
		}
	}
	return Choice{}, false
}

// Clone returns a deep copy. The choice slice is the only reference field.
func (s Scene) Clone() Scene {
	out := s
	if s.Choices != nil {
		out.Choices = append([]Choice{}, s.Choices...)
	}
	return out
}

// ChoiceRecord is one entry of the append-only choice audit trail.
type ChoiceRecord struct {
	SceneID    string    `json:"scene_id"`
	ChoiceID   string    `json:"choice_id"`
	ChoiceText string    `json:"choice_text"`
	At         time.Time `json:"at"`
}
