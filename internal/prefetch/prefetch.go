// Package prefetch speculatively generates the scene behind every displayed
// choice so that whichever one the player picks resolves instantly.
package prefetch

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/fableweaver/fableweaver/internal/api"
	"github.com/fableweaver/fableweaver/internal/game"
	"github.com/fableweaver/fableweaver/internal/media"
)

// SceneGenerator is the slice of the service client the pregenerator needs.
type SceneGenerator interface {
	GenerateScene(ctx context.Context, req api.GenerateSceneRequest) (game.Scene, error)
}

// ImageBatcher produces preview illustrations for all choices in one call.
type ImageBatcher interface {
	BatchGenerateImages(ctx context.Context, req api.BatchImageRequest) (map[string]api.MediaResult, error)
}

type branch struct {
	scene game.Scene
	ready bool
	done  bool
}

// Pregenerator fans one GenerateScene call out per displayed choice. Results
// land in a side cache consumed optionally at choice-commit time; the
// authoritative current scene is never touched from here. Cancellation is
// advisory: work for abandoned scenes keeps running but its results are
// discarded by the epoch check, never surfaced.
type Pregenerator struct {
	gen    SceneGenerator
	images ImageBatcher // optional
	cache  *media.Cache // optional, seeded with batch previews
	log    zerolog.Logger

	mu       sync.Mutex
	epoch    uint64
	branches map[string]branch
}

func New(gen SceneGenerator, images ImageBatcher, cache *media.Cache, log zerolog.Logger) *Pregenerator {
	return &Pregenerator{
		gen:      gen,
		images:   images,
		cache:    cache,
		log:      log,
		branches: make(map[string]branch),
	}
}

// Prefetch fires one speculative generation per choice of scene and returns
// immediately. Failures are recorded as permanently not-ready for this scene;
// the service client already did its own retrying, and the player's actual
// pick falls through to on-demand generation.
func (p *Pregenerator) Prefetch(ctx context.Context, scene game.Scene, ch game.Character) {
	p.mu.Lock()
	p.epoch++
	epoch := p.epoch
	p.branches = make(map[string]branch, len(scene.Choices))
	for _, c := range scene.Choices {
		p.branches[c.ID] = branch{}
	}
	p.mu.Unlock()

	if len(scene.Choices) == 0 {
		return
	}

	go func() {
		g, gctx := errgroup.WithContext(ctx)
		for _, c := range scene.Choices {
			c := c
			g.Go(func() error {
				next, err := p.gen.GenerateScene(gctx, api.GenerateSceneRequest{
					CharacterID:    ch.ID,
					PreviousChoice: c.Text,
					SceneContext:   map[string]any{"scene_id": scene.ID, "choice_id": c.ID},
				})
				p.record(epoch, c.ID, next, err)
				return nil // speculative failures never abort the siblings
			})
		}
		if p.images != nil && p.cache != nil {
			g.Go(func() error {
				p.prefetchPreviews(gctx, scene, ch)
				return nil
			})
		}
		_ = g.Wait()
	}()
}

func (p *Pregenerator) record(epoch uint64, choiceID string, scene game.Scene, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if epoch != p.epoch {
		return // stale speculative result for an abandoned scene
	}
	if _, tracked := p.branches[choiceID]; !tracked {
		return
	}
	if err != nil {
		p.log.Debug().Err(err).Str("choice", choiceID).Msg("speculative generation failed")
		p.branches[choiceID] = branch{done: true}
		return
	}
	p.branches[choiceID] = branch{scene: scene.Clone(), ready: true, done: true}
}

// prefetchPreviews seeds the media cache with choice preview illustrations
// from one batch call. Failures are soft; previews regenerate on demand.
func (p *Pregenerator) prefetchPreviews(ctx context.Context, scene game.Scene, ch game.Character) {
	results, err := p.images.BatchGenerateImages(ctx, api.BatchImageRequest{
		CharacterID: ch.ID,
		SceneID:     scene.ID,
		Choices:     append([]game.Choice{}, scene.Choices...),
	})
	if err != nil {
		p.log.Debug().Err(err).Str("scene", scene.ID).Msg("batch preview generation failed")
		return
	}
	for _, c := range scene.Choices {
		res, ok := results[c.ID]
		if !ok || res.URL == "" {
			continue
		}
		fp := media.Fingerprint(ch.ID, c.ID)
		_, _ = p.cache.GetOrGenerate(ctx, fp, "", func(context.Context) (string, time.Duration, error) {
			return res.URL, res.GenerationTime, nil
		})
	}
}

// Consume hands over the speculative scene for the committed choice, if it
// resolved in time. Committing discards every sibling entry and bumps the
// epoch so in-flight stragglers can never land.
func (p *Pregenerator) Consume(choiceID string) (game.Scene, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	b, ok := p.branches[choiceID]
	p.epoch++
	p.branches = make(map[string]branch)
	if !ok || !b.ready {
		return game.Scene{}, false
	}
	return b.scene.Clone(), true
}

// Ready reports whether the speculative scene for choiceID has resolved.
func (p *Pregenerator) Ready(choiceID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.branches[choiceID].ready
}

// Progress returns the per-choice readiness map.
func (p *Pregenerator) Progress() map[string]bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[string]bool, len(p.branches))
	for id, b := range p.branches {
		out[id] = b.ready
	}
	return out
}

// Reset drops all speculative state. Called on session end and rewind.
func (p *Pregenerator) Reset() {
	p.mu.Lock()
	p.epoch++
	p.branches = make(map[string]branch)
	p.mu.Unlock()
}
