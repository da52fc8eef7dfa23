package game

const (
	// NavigationCap bounds the visited-scene list; oldest entries are evicted.
	NavigationCap = 10
	// ChoiceLogCap bounds the choice audit trail the same way.
	ChoiceLogCap = 20
)

// NavigationHistory is the append-only, size-bounded record of visited
// scenes. The currently displayed scene is always the last element.
type NavigationHistory struct {
	scenes []Scene
	cap    int
}

func NewNavigationHistory() *NavigationHistory {
	return &NavigationHistory{cap: NavigationCap}
}

// Push appends a scene, evicting the oldest entry past the cap.
func (h *NavigationHistory) Push(s Scene) {
	h.scenes = append(h.scenes, s.Clone())
	if len(h.scenes) > h.cap {
		h.scenes = h.scenes[len(h.scenes)-h.cap:]
	}
}

// Current returns the last pushed scene.
func (h *NavigationHistory) Current() (Scene, bool) {
	if len(h.scenes) == 0 {
		return Scene{}, false
	}
	return h.scenes[len(h.scenes)-1].Clone(), true
}

func (h *NavigationHistory) Len() int        { return len(h.scenes) }
func (h *NavigationHistory) CanGoBack() bool { return len(h.scenes) > 1 }

// Rewind truncates history to index+1 and returns that scene as the new
// current scene. Scenes after the index are discarded, not hidden.
func (h *NavigationHistory) Rewind(index int) (Scene, bool) {
	if index < 0 || index >= len(h.scenes) {
		return Scene{}, false
	}
	h.scenes = h.scenes[:index+1]
	return h.scenes[index].Clone(), true
}

// Scenes returns a copy of the visited-scene list, oldest first.
func (h *NavigationHistory) Scenes() []Scene {
	out := make([]Scene, len(h.scenes))
	for i, s := range h.scenes {
		out[i] = s.Clone()
	}
	return out
}

// Restore replaces the history contents from a persisted snapshot,
// re-applying the cap.
func (h *NavigationHistory) Restore(scenes []Scene) {
	h.scenes = h.scenes[:0]
	for _, s := range scenes {
		h.Push(s)
	}
}

func (h *NavigationHistory) Clear() { h.scenes = nil }

// ChoiceLog is the append-only audit trail of made choices. It is never
// rewound; navigation rewinds do not touch it.
type ChoiceLog struct {
	records []ChoiceRecord
	cap     int
}

func NewChoiceLog() *ChoiceLog {
	return &ChoiceLog{cap: ChoiceLogCap}
}

func (l *ChoiceLog) Append(r ChoiceRecord) {
	l.records = append(l.records, r)
	if len(l.records) > l.cap {
		l.records = l.records[len(l.records)-l.cap:]
	}
}

func (l *ChoiceLog) Len() int { return len(l.records) }

// Records returns a copy, oldest first.
func (l *ChoiceLog) Records() []ChoiceRecord {
	return append([]ChoiceRecord{}, l.records...)
}

func (l *ChoiceLog) Restore(records []ChoiceRecord) {
	l.records = l.records[:0]
	for _, r := range records {
		l.Append(r)
	}
}

func (l *ChoiceLog) Clear() { l.records = nil }
