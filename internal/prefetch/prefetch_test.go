package prefetch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fableweaver/fableweaver/internal/api"
	"github.com/fableweaver/fableweaver/internal/game"
	"github.com/fableweaver/fableweaver/internal/media"
)

type fakeGenerator struct {
	mu      sync.Mutex
	delay   time.Duration
	failFor map[string]bool // keyed by previous choice text
	block   chan struct{}   // when set, calls wait here
	calls   int
}

func (f *fakeGenerator) GenerateScene(ctx context.Context, req api.GenerateSceneRequest) (game.Scene, error) {
	f.mu.Lock()
	f.calls++
	block := f.block
	f.mu.Unlock()
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return game.Scene{}, ctx.Err()
		}
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.failFor[req.PreviousChoice] {
		return game.Scene{}, &api.Error{Kind: api.KindServer, Op: "generate scene"}
	}
	return game.Scene{
		ID:        "next-after-" + req.PreviousChoice,
		Narration: "The path continues.",
		Choices:   []game.Choice{{ID: "c1", Text: "onward"}},
	}, nil
}

func (f *fakeGenerator) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func fourChoiceScene() game.Scene {
	return game.Scene{
		ID:        "s1",
		Narration: "You wake in a forest.",
		Choices: []game.Choice{
			{ID: "c1", Text: "stand"},
			{ID: "c2", Text: "call out"},
			{ID: "c3", Text: "check gear"},
			{ID: "c4", Text: "listen"},
		},
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition never became true")
}

func TestPrefetchResolvesAllBranches(t *testing.T) {
	gen := &fakeGenerator{}
	p := New(gen, nil, nil, zerolog.Nop())
	p.Prefetch(context.Background(), fourChoiceScene(), game.Character{ID: "ch1"})

	waitFor(t, func() bool {
		for _, ready := range p.Progress() {
			if !ready {
				return false
			}
		}
		return len(p.Progress()) == 4
	})
	assert.Equal(t, 4, gen.callCount(), "one parallel call per displayed choice")

	scene, ok := p.Consume("c2")
	require.True(t, ok)
	assert.Equal(t, "next-after-call out", scene.ID)
}

func TestConsumeDiscardsSiblings(t *testing.T) {
	gen := &fakeGenerator{}
	p := New(gen, nil, nil, zerolog.Nop())
	p.Prefetch(context.Background(), fourChoiceScene(), game.Character{ID: "ch1"})
	waitFor(t, func() bool { return p.Ready("c1") && p.Ready("c3") })

	_, ok := p.Consume("c1")
	require.True(t, ok)
	// every sibling entry is gone after a commit
	assert.Empty(t, p.Progress())
	if _, ok := p.Consume("c3"); ok {
		t.Fatal("sibling entries must not survive a commit")
	}
}

func TestConsumeBeforeResolutionFallsThrough(t *testing.T) {
	block := make(chan struct{})
	gen := &fakeGenerator{block: block}
	p := New(gen, nil, nil, zerolog.Nop())
	p.Prefetch(context.Background(), fourChoiceScene(), game.Character{ID: "ch1"})

	if _, ok := p.Consume("c2"); ok {
		t.Fatal("unresolved branch must report not ready")
	}
	close(block)
	// stragglers from the abandoned epoch never land
	time.Sleep(30 * time.Millisecond)
	assert.Empty(t, p.Progress())
}

func TestFailedBranchStaysNotReady(t *testing.T) {
	gen := &fakeGenerator{failFor: map[string]bool{"call out": true}}
	p := New(gen, nil, nil, zerolog.Nop())
	p.Prefetch(context.Background(), fourChoiceScene(), game.Character{ID: "ch1"})

	waitFor(t, func() bool { return p.Ready("c1") && p.Ready("c3") && p.Ready("c4") })
	assert.False(t, p.Ready("c2"), "failures are recorded not-ready, no retry at this layer")
	if _, ok := p.Consume("c2"); ok {
		t.Fatal("failed branch must fall through to on-demand generation")
	}
}

type fakeBatcher struct {
	err error
}

func (f *fakeBatcher) BatchGenerateImages(ctx context.Context, req api.BatchImageRequest) (map[string]api.MediaResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make(map[string]api.MediaResult, len(req.Choices))
	for _, c := range req.Choices {
		out[c.ID] = api.MediaResult{URL: "https://cdn/preview-" + c.ID + ".jpg", GenerationTime: time.Second}
	}
	return out, nil
}

func TestPrefetchSeedsPreviewCache(t *testing.T) {
	gen := &fakeGenerator{}
	cache := media.NewCache(zerolog.Nop())
	p := New(gen, &fakeBatcher{}, cache, zerolog.Nop())
	ch := game.Character{ID: "ch1"}
	p.Prefetch(context.Background(), fourChoiceScene(), ch)

	waitFor(t, func() bool {
		count, _ := cache.Stats()
		return count == 4
	})
	asset, err := cache.GetOrGenerate(context.Background(), media.Fingerprint("ch1", "c1"), "", nil)
	require.NoError(t, err)
	assert.True(t, asset.Cached)
	assert.Equal(t, "https://cdn/preview-c1.jpg", asset.URL)
}

func TestBatchFailureIsSoft(t *testing.T) {
	gen := &fakeGenerator{}
	cache := media.NewCache(zerolog.Nop())
	p := New(gen, &fakeBatcher{err: errors.New("image service down")}, cache, zerolog.Nop())
	p.Prefetch(context.Background(), fourChoiceScene(), game.Character{ID: "ch1"})

	waitFor(t, func() bool { return p.Ready("c1") })
	count, _ := cache.Stats()
	assert.Zero(t, count, "preview failure must not poison the cache")
}

func TestResetDropsEverything(t *testing.T) {
	gen := &fakeGenerator{}
	p := New(gen, nil, nil, zerolog.Nop())
	p.Prefetch(context.Background(), fourChoiceScene(), game.Character{ID: "ch1"})
	waitFor(t, func() bool { return p.Ready("c1") })
	p.Reset()
	assert.Empty(t, p.Progress())
}
