// Package session holds the authoritative local game state and drives every
// transition: starting an adventure, committing choices, rewinding, restoring
// from the snapshot row. All mutation goes through one Store so readers never
// observe a half-applied transition.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/fableweaver/fableweaver/internal/api"
	"github.com/fableweaver/fableweaver/internal/game"
	"github.com/fableweaver/fableweaver/internal/media"
)

var (
	ErrBusy           = errors.New("session: an operation is already in flight")
	ErrNotActive      = errors.New("session: no scene awaiting a choice")
	ErrUnknownChoice  = errors.New("session: choice does not belong to the current scene")
	ErrNothingToRetry = errors.New("session: nothing to retry")
	ErrNoSnapshot     = errors.New("session: no saved adventure")
	ErrBadIndex       = errors.New("session: history index out of range")
)

// Client is the slice of the backend client the store drives.
type Client interface {
	GenerateScene(ctx context.Context, req api.GenerateSceneRequest) (game.Scene, error)
	CreateSession(ctx context.Context, characterID string) (game.Session, error)
	UpdateSession(ctx context.Context, sessionID string, upd api.SessionUpdate) error
	MergeCharacterScene(ctx context.Context, req api.MergeRequest) (api.MediaResult, error)
	GenerateConsequenceImage(ctx context.Context, req api.ConsequenceRequest) (api.MediaResult, error)
}

// Prefetcher speculatively resolves the scene behind each displayed choice.
type Prefetcher interface {
	Prefetch(ctx context.Context, scene game.Scene, ch game.Character)
	Consume(choiceID string) (game.Scene, bool)
	Reset()
}

// SnapshotStore persists the session payload under a fixed name. Load returns
// (nil, nil) when no snapshot exists.
type SnapshotStore interface {
	Save(ctx context.Context, name string, payload json.RawMessage) error
	Load(ctx context.Context, name string) (json.RawMessage, error)
	Delete(ctx context.Context, name string) error
}

// Journal durably mirrors the in-memory choice audit trail. Optional.
type Journal interface {
	Append(ctx context.Context, sessionID string, rec game.ChoiceRecord) error
}

// Deps wires the store's collaborators. Media, Snapshots and Journal may be
// nil; the store degrades to in-memory-only operation without them.
type Deps struct {
	Client         Client
	Prefetch       Prefetcher
	Media          *media.Cache
	Snapshots      SnapshotStore
	Journal        Journal
	Log            zerolog.Logger
	AutoRetryDelay time.Duration
}

// Store is the session state machine. Guards and commits happen under the
// mutex; network calls run outside it so readers stay responsive while a
// scene resolves. Re-entrancy is refused through the Busy states.
type Store struct {
	client    Client
	prefetch  Prefetcher
	media     *media.Cache
	snapshots SnapshotStore
	journal   Journal
	log       zerolog.Logger

	autoRetryDelay time.Duration
	sleep          func(ctx context.Context, d time.Duration) error

	mu        sync.Mutex
	state     State
	lastErr   error
	character game.Character
	session   game.Session
	history   *game.NavigationHistory
	choices   *game.ChoiceLog
	pending   *game.Choice
}

func New(d Deps) *Store {
	if d.AutoRetryDelay <= 0 {
		d.AutoRetryDelay = 2 * time.Second
	}
	return &Store{
		client:         d.Client,
		prefetch:       d.Prefetch,
		media:          d.Media,
		snapshots:      d.Snapshots,
		journal:        d.Journal,
		log:            d.Log,
		autoRetryDelay: d.AutoRetryDelay,
		sleep:          sleepCtx,
		state:          StateIdle,
		history:        game.NewNavigationHistory(),
		choices:        game.NewChoiceLog(),
	}
}

// StartNewGame creates a backend session for the character, generates the
// opening scene and replaces any previous adventure.
func (s *Store) StartNewGame(ctx context.Context, ch game.Character) error {
	if ch.ID == "" {
		ch.ID = uuid.NewString()
	}
	if err := ch.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	if s.state.Busy() {
		s.mu.Unlock()
		return ErrBusy
	}
	s.resetLocked()
	s.character = ch
	s.state = StateLoading
	s.mu.Unlock()
	s.prefetch.Reset()
	if s.media != nil {
		s.media.Clear()
	}

	sess, err := s.client.CreateSession(ctx, ch.ID)
	if err != nil {
		return s.fail(err)
	}
	scene, err := s.client.GenerateScene(ctx, api.GenerateSceneRequest{CharacterID: ch.ID})
	if err != nil {
		return s.fail(err)
	}
	if scene.ID == "" {
		scene.ID = uuid.NewString()
	}
	if err := s.illustrateOpening(ctx, &scene, ch); err != nil {
		return s.fail(err)
	}

	s.mu.Lock()
	s.session = sess
	s.session.CurrentScene = scene.ID
	s.history.Push(scene)
	if scene.Terminal() {
		s.state = StateEnded
	} else {
		s.state = StateActive
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.persist(ctx, snap)
	if !scene.Terminal() {
		s.prefetch.Prefetch(context.WithoutCancel(ctx), scene, ch)
	}
	s.log.Info().Str("session", sess.ID).Str("scene", scene.ID).Msg("adventure started")
	return nil
}

// SelectChoice journals the choice, then resolves it into the next scene,
// preferring the speculative result when it landed in time. A network failure
// during on-demand generation is retried once, silently, before surfacing.
func (s *Store) SelectChoice(ctx context.Context, choiceID string) error {
	s.mu.Lock()
	if s.state != StateActive {
		s.mu.Unlock()
		if s.state.Busy() {
			return ErrBusy
		}
		return ErrNotActive
	}
	cur, ok := s.history.Current()
	if !ok {
		s.mu.Unlock()
		return ErrNotActive
	}
	choice, ok := cur.Choice(choiceID)
	if !ok {
		s.mu.Unlock()
		return ErrUnknownChoice
	}
	// The choice is recorded before its outcome exists; a crash mid-resolve
	// still leaves the audit trail truthful.
	rec := game.ChoiceRecord{SceneID: cur.ID, ChoiceID: choice.ID, ChoiceText: choice.Text, At: time.Now().UTC()}
	s.choices.Append(rec)
	s.pending = &choice
	s.state = StateChoicePending
	s.lastErr = nil
	snap := s.snapshotLocked()
	sessID := s.session.ID
	ch := s.character
	s.mu.Unlock()

	if s.journal != nil {
		if err := s.journal.Append(ctx, sessID, rec); err != nil {
			s.log.Warn().Err(err).Msg("choice journal append failed")
		}
	}
	s.persist(ctx, snap)
	return s.resolvePending(ctx, choice, ch)
}

// Retry re-runs the operation that left the store errored: the pending choice
// when one exists, otherwise the opening generation for the same character.
func (s *Store) Retry(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateErrored {
		s.mu.Unlock()
		return ErrNothingToRetry
	}
	if s.pending == nil {
		ch := s.character
		s.mu.Unlock()
		if ch.Name == "" {
			return ErrNothingToRetry
		}
		return s.StartNewGame(ctx, ch)
	}
	choice := *s.pending
	ch := s.character
	s.state = StateChoicePending
	s.lastErr = nil
	s.mu.Unlock()
	return s.resolvePending(ctx, choice, ch)
}

func (s *Store) resolvePending(ctx context.Context, choice game.Choice, ch game.Character) error {
	next, hit := s.prefetch.Consume(choice.ID)
	if !hit {
		var err error
		next, err = s.generateNext(ctx, choice, ch)
		if err != nil && api.IsNetwork(err) {
			if serr := s.sleep(ctx, s.autoRetryDelay); serr != nil {
				return s.fail(serr)
			}
			s.log.Debug().Str("choice", choice.ID).Msg("retrying choice resolution after network failure")
			next, err = s.generateNext(ctx, choice, ch)
		}
		if err != nil {
			return s.fail(err)
		}
	}
	if next.ID == "" {
		next.ID = uuid.NewString()
	}
	if err := s.illustrateConsequence(ctx, &next, choice, ch); err != nil {
		return s.fail(err)
	}

	s.mu.Lock()
	s.pending = nil
	s.history.Push(next)
	s.session.CurrentScene = next.ID
	if next.Terminal() {
		s.session.IsActive = false
		s.state = StateEnded
	} else {
		s.state = StateActive
	}
	snap := s.snapshotLocked()
	sessID := s.session.ID
	s.mu.Unlock()

	s.persist(ctx, snap)
	s.syncServer(ctx, sessID, next)
	if !next.Terminal() {
		s.prefetch.Prefetch(context.WithoutCancel(ctx), next, ch)
	}
	return nil
}

func (s *Store) generateNext(ctx context.Context, choice game.Choice, ch game.Character) (game.Scene, error) {
	s.mu.Lock()
	cur, _ := s.history.Current()
	s.mu.Unlock()
	return s.client.GenerateScene(ctx, api.GenerateSceneRequest{
		CharacterID:    ch.ID,
		PreviousChoice: choice.Text,
		SceneContext:   map[string]any{"scene_id": cur.ID, "choice_id": choice.ID},
	})
}

// illustrateOpening composites the character into the opening scene. Skipped
// when the backend already shipped an illustration with the scene.
func (s *Store) illustrateOpening(ctx context.Context, scene *game.Scene, ch game.Character) error {
	if s.media == nil || scene.ImageURL != "" {
		return nil
	}
	fp := media.Fingerprint(ch.ID, scene.ID)
	asset, err := s.media.GetOrGenerate(ctx, fp, ch.FallbackImageURL(), func(ctx context.Context) (string, time.Duration, error) {
		res, err := s.client.MergeCharacterScene(ctx, api.MergeRequest{
			CharacterImage:   ch.FallbackImageURL(),
			SceneDescription: scene.Narration,
		})
		return res.URL, res.GenerationTime, err
	})
	if err != nil {
		return err
	}
	scene.ImageURL = asset.URL
	return nil
}

// illustrateConsequence resolves the image for a committed choice. The batch
// preview prefetch seeds the same fingerprint, so this is usually a cache hit.
func (s *Store) illustrateConsequence(ctx context.Context, scene *game.Scene, choice game.Choice, ch game.Character) error {
	if s.media == nil || scene.ImageURL != "" {
		return nil
	}
	fp := media.Fingerprint(ch.ID, choice.ID)
	asset, err := s.media.GetOrGenerate(ctx, fp, ch.FallbackImageURL(), func(ctx context.Context) (string, time.Duration, error) {
		res, err := s.client.GenerateConsequenceImage(ctx, api.ConsequenceRequest{
			CharacterImage: ch.FallbackImageURL(),
			ChoiceText:     choice.Text,
			SceneContext:   choice.ConsequenceHint,
		})
		return res.URL, res.GenerationTime, err
	})
	if err != nil {
		return err
	}
	scene.ImageURL = asset.URL
	return nil
}

// syncServer pushes the new scene pointer to the backend session. Best
// effort: the local snapshot is authoritative for resume.
func (s *Store) syncServer(ctx context.Context, sessionID string, scene game.Scene) {
	if sessionID == "" {
		return
	}
	if err := s.client.UpdateSession(ctx, sessionID, api.SessionUpdate{SceneID: scene.ID}); err != nil {
		s.log.Warn().Err(err).Str("session", sessionID).Msg("server session update failed")
	}
}

// GoBack rewinds the navigation history to index and resumes play from that
// scene. Scenes past the index are discarded; the choice log is untouched.
func (s *Store) GoBack(ctx context.Context, index int) error {
	s.mu.Lock()
	if s.state != StateActive && s.state != StateEnded {
		s.mu.Unlock()
		return ErrNotActive
	}
	scene, ok := s.history.Rewind(index)
	if !ok {
		s.mu.Unlock()
		return ErrBadIndex
	}
	s.pending = nil
	s.lastErr = nil
	s.session.CurrentScene = scene.ID
	if scene.Terminal() {
		s.state = StateEnded
	} else {
		s.state = StateActive
	}
	snap := s.snapshotLocked()
	ch := s.character
	s.mu.Unlock()

	s.prefetch.Reset()
	s.persist(ctx, snap)
	if !scene.Terminal() {
		s.prefetch.Prefetch(context.WithoutCancel(ctx), scene, ch)
	}
	return nil
}

// Reset abandons the adventure and deletes its snapshot.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	s.resetLocked()
	s.mu.Unlock()
	s.prefetch.Reset()
	if s.media != nil {
		s.media.Clear()
	}
	if s.snapshots == nil {
		return nil
	}
	return s.snapshots.Delete(ctx, SnapshotName)
}

// Restore loads the persisted adventure and resumes from its current scene.
func (s *Store) Restore(ctx context.Context) error {
	if s.snapshots == nil {
		return ErrNoSnapshot
	}
	payload, err := s.snapshots.Load(ctx, SnapshotName)
	if err != nil {
		return err
	}
	if len(payload) == 0 {
		return ErrNoSnapshot
	}
	var snap Snapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		return err
	}

	s.mu.Lock()
	s.resetLocked()
	s.character = snap.Character
	s.session = snap.Session
	s.history.Restore(snap.SceneHistory)
	s.choices.Restore(snap.ChoiceHistory)
	cur, ok := s.history.Current()
	switch {
	case !ok:
		s.state = StateIdle
	case cur.Terminal():
		s.state = StateEnded
	default:
		s.state = StateActive
	}
	ch := s.character
	state := s.state
	s.mu.Unlock()

	if state == StateActive {
		s.prefetch.Prefetch(context.WithoutCancel(ctx), cur, ch)
	}
	s.log.Info().Str("session", snap.Session.ID).Str("scene", snap.CurrentScene).Msg("adventure restored")
	return nil
}

func (s *Store) fail(err error) error {
	s.mu.Lock()
	s.state = StateErrored
	s.lastErr = err
	s.mu.Unlock()
	s.log.Error().Err(err).Msg("session operation failed")
	return err
}

func (s *Store) resetLocked() {
	s.state = StateIdle
	s.lastErr = nil
	s.character = game.Character{}
	s.session = game.Session{}
	s.history.Clear()
	s.choices.Clear()
	s.pending = nil
}

func (s *Store) snapshotLocked() Snapshot {
	cur, _ := s.history.Current()
	return Snapshot{
		Character:     s.character,
		Session:       s.session,
		CurrentScene:  cur.ID,
		SceneHistory:  s.history.Scenes(),
		ChoiceHistory: s.choices.Records(),
		SavedAt:       time.Now().UTC(),
	}
}

func (s *Store) persist(ctx context.Context, snap Snapshot) {
	if s.snapshots == nil {
		return
	}
	payload, err := json.Marshal(snap)
	if err != nil {
		s.log.Error().Err(err).Msg("snapshot encode failed")
		return
	}
	if err := s.snapshots.Save(ctx, SnapshotName, payload); err != nil {
		s.log.Error().Err(err).Msg("snapshot save failed")
	}
}

// State reports the current lifecycle phase.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Err returns the error that moved the store into StateErrored.
func (s *Store) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// ErrMessage returns the user-facing description of the last failure.
func (s *Store) ErrMessage() string {
	err := s.Err()
	if err == nil {
		return ""
	}
	var ae *api.Error
	if errors.As(err, &ae) {
		return ae.Message()
	}
	return err.Error()
}

func (s *Store) Character() game.Character {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.character
}

func (s *Store) Session() game.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session
}

// CurrentScene returns the displayed scene, if any.
func (s *Store) CurrentScene() (game.Scene, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.Current()
}

// History returns the visited scenes, oldest first.
func (s *Store) History() []game.Scene {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.Scenes()
}

// Choices returns the audit trail of made choices, oldest first.
func (s *Store) Choices() []game.ChoiceRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.choices.Records()
}

// Pending returns the choice currently resolving or awaiting retry.
func (s *Store) Pending() (game.Choice, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == nil {
		return game.Choice{}, false
	}
	return *s.pending, true
}

func (s *Store) CanGoBack() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.CanGoBack()
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
