package session

// State is the lifecycle phase of the local session store.
type State string

const (
	// StateIdle means no adventure is loaded.
	StateIdle State = "idle"
	// StateLoading covers initial session creation and opening scene generation.
	StateLoading State = "loading"
	// StateActive means a scene is displayed and awaiting a choice.
	StateActive State = "active"
	// StateChoicePending means a committed choice is resolving into its next scene.
	StateChoicePending State = "choice_pending"
	// StateEnded means the current scene is terminal.
	StateEnded State = "ended"
	// StateErrored means the last operation failed; the player may retry or exit.
	StateErrored State = "errored"
)

func (s State) String() string { return string(s) }

// Busy reports whether an operation is in flight and new ones must be refused.
func (s State) Busy() bool { return s == StateLoading || s == StateChoicePending }
