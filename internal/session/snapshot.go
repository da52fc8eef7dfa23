package session

import (
	"time"

	"github.com/fableweaver/fableweaver/internal/game"
)

// SnapshotName is the fixed key the active adventure persists under. A single
// row carries the whole session; starting a new game overwrites it.
const SnapshotName = "adventure-session"

// Snapshot is the durable form of the session. Speculative prefetch results
// and cached media deliberately stay out: they are transient and regenerate.
type Snapshot struct {
	Character     game.Character      `json:"character"`
	Session       game.Session        `json:"session"`
	CurrentScene  string              `json:"current_scene"`
	SceneHistory  []game.Scene        `json:"scene_history"`
	ChoiceHistory []game.ChoiceRecord `json:"choice_history"`
	SavedAt       time.Time           `json:"saved_at"`
}
