package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/fableweaver/fableweaver/internal/game"
)

// Client talks to the story backend. It is stateless across calls: retry
// accounting lives inside each call, never on the struct.
type Client struct {
	baseURL    string
	httpClient *http.Client
	retry      RetryPolicy
	log        zerolog.Logger
}

// Config for the backend client. Zero values fall back to defaults.
type Config struct {
	BaseURL    string
	HTTPClient *http.Client
	Retry      RetryPolicy
	Logger     zerolog.Logger
}

func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:8000"
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry = DefaultRetryPolicy()
	}
	return &Client{
		baseURL:    cfg.BaseURL,
		httpClient: cfg.HTTPClient,
		retry:      cfg.Retry,
		log:        cfg.Logger,
	}
}

// GenerateSceneRequest carries the inputs of a scene generation call.
// SceneContext and PreviousChoice are optional.
type GenerateSceneRequest struct {
	CharacterID    string         `json:"character_id"`
	SceneContext   map[string]any `json:"scene_context,omitempty"`
	PreviousChoice string         `json:"previous_choice,omitempty"`
}

// SessionUpdate is a partial state delta recorded against the server-side
// session. Nil pointer fields are omitted.
type SessionUpdate struct {
	HP        *int           `json:"hp,omitempty"`
	XP        *int           `json:"xp,omitempty"`
	Inventory []string       `json:"inventory,omitempty"`
	SceneID   string         `json:"scene_id,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// MergeRequest composites the character into a scene background.
type MergeRequest struct {
	CharacterImage   string `json:"character_image"`
	SceneDescription string `json:"scene_description"`
}

// ConsequenceRequest illustrates the outcome of a choice.
type ConsequenceRequest struct {
	CharacterImage string `json:"character_image"`
	ChoiceText     string `json:"choice_text"`
	SceneContext   string `json:"scene_context,omitempty"`
}

// BatchImageRequest generates preview illustrations for all choices of a
// scene in one call.
type BatchImageRequest struct {
	CharacterID string        `json:"character_id"`
	SceneID     string        `json:"scene_id"`
	Choices     []game.Choice `json:"choices"`
}

// MediaResult is the outcome of an image generation call.
type MediaResult struct {
	URL            string
	GenerationTime time.Duration
}

type mediaEnvelope struct {
	ImageURL       string  `json:"image_url"`
	CompositeURL   string  `json:"composite_url"`
	URL            string  `json:"url"`
	GenerationTime float64 `json:"generation_time"`
}

func (e mediaEnvelope) result() MediaResult {
	return MediaResult{
		URL:            firstNonEmpty(e.ImageURL, e.CompositeURL, e.URL),
		GenerationTime: time.Duration(e.GenerationTime * float64(time.Second)),
	}
}

// GenerateScene produces the next scene for a character, normalized into the
// canonical shape.
func (c *Client) GenerateScene(ctx context.Context, req GenerateSceneRequest) (game.Scene, error) {
	if req.CharacterID == "" {
		return game.Scene{}, &Error{Kind: KindValidation, Op: "generate scene", Err: fmt.Errorf("missing character id")}
	}
	var env sceneEnvelope
	err := c.retry.Do(ctx, func() error {
		return c.doJSON(ctx, http.MethodPost, "/api/stories/generate", req, &env)
	})
	if err != nil {
		return game.Scene{}, err
	}
	return env.Scene(), nil
}

// CreateSession starts a playthrough for the character.
func (c *Client) CreateSession(ctx context.Context, characterID string) (game.Session, error) {
	if characterID == "" {
		return game.Session{}, &Error{Kind: KindValidation, Op: "create session", Err: fmt.Errorf("missing character id")}
	}
	body := map[string]string{"character_id": characterID}
	var env sessionEnvelope
	err := c.retry.Do(ctx, func() error {
		return c.doJSON(ctx, http.MethodPost, "/api/stories/session/create", body, &env)
	})
	if err != nil {
		return game.Session{}, err
	}
	sess := env.Session()
	if sess.CharacterID == "" {
		sess.CharacterID = characterID
	}
	return sess, nil
}

// GetSession fetches server-side session state.
func (c *Client) GetSession(ctx context.Context, sessionID string) (game.Session, error) {
	if sessionID == "" {
		return game.Session{}, &Error{Kind: KindValidation, Op: "get session", Err: fmt.Errorf("missing session id")}
	}
	var env sessionEnvelope
	err := c.retry.Do(ctx, func() error {
		return c.doJSON(ctx, http.MethodGet, "/api/stories/session/"+sessionID, nil, &env)
	})
	if err != nil {
		return game.Session{}, err
	}
	return env.Session(), nil
}

// UpdateSession records state deltas (hp/xp/inventory/scene metadata).
func (c *Client) UpdateSession(ctx context.Context, sessionID string, upd SessionUpdate) error {
	if sessionID == "" {
		return &Error{Kind: KindValidation, Op: "update session", Err: fmt.Errorf("missing session id")}
	}
	return c.retry.Do(ctx, func() error {
		return c.doJSON(ctx, http.MethodPost, "/api/stories/session/"+sessionID+"/update", upd, nil)
	})
}

// MergeCharacterScene composites the character into the scene background.
func (c *Client) MergeCharacterScene(ctx context.Context, req MergeRequest) (MediaResult, error) {
	var env mediaEnvelope
	err := c.retry.Do(ctx, func() error {
		return c.doJSON(ctx, http.MethodPost, "/api/images/merge-character-scene", req, &env)
	})
	if err != nil {
		return MediaResult{}, err
	}
	return env.result(), nil
}

// GenerateConsequenceImage illustrates the outcome of a choice.
func (c *Client) GenerateConsequenceImage(ctx context.Context, req ConsequenceRequest) (MediaResult, error) {
	var env mediaEnvelope
	err := c.retry.Do(ctx, func() error {
		return c.doJSON(ctx, http.MethodPost, "/api/images/generate-consequence", req, &env)
	})
	if err != nil {
		return MediaResult{}, err
	}
	return env.result(), nil
}

// BatchGenerateImages produces preview illustrations for every choice of a
// scene in a single call, keyed by choice id.
func (c *Client) BatchGenerateImages(ctx context.Context, req BatchImageRequest) (map[string]MediaResult, error) {
	var env struct {
		Images map[string]mediaEnvelope `json:"images"`
	}
	err := c.retry.Do(ctx, func() error {
		return c.doJSON(ctx, http.MethodPost, "/api/images/batch-generate", req, &env)
	})
	if err != nil {
		return nil, err
	}
	out := make(map[string]MediaResult, len(env.Images))
	for id, m := range env.Images {
		out[id] = m.result()
	}
	return out, nil
}

// doJSON issues one request and classifies its failure. Retrying is the
// caller's job so that each operation keeps a single classified error path.
func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	op := method + " " + path
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return &Error{Kind: KindValidation, Op: op, Err: err}
		}
		reader = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return &Error{Kind: KindValidation, Op: op, Err: err}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Warn().Err(err).Str("op", op).Msg("transport failure")
		return &Error{Kind: KindNetwork, Op: op, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &Error{Kind: KindNetwork, Op: op, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		kind := classifyStatus(resp.StatusCode)
		c.log.Warn().Int("status", resp.StatusCode).Str("op", op).Str("kind", string(kind)).Msg("backend rejected call")
		return &Error{Kind: kind, Status: resp.StatusCode, Op: op}
	}
	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return &Error{Kind: KindServer, Status: resp.StatusCode, Op: op, Err: err}
	}
	return nil
}
