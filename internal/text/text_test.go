package text

import (
	"strings"
	"testing"

	"github.com/fableweaver/fableweaver/internal/game"
)

func sampleScene() game.Scene {
	return game.Scene{
		ID:        "s1",
		Narration: "The gate groans open.\n\nBeyond it, torchlight flickers across wet stone.",
		Choices: []game.Choice{
			{ID: "c1", Text: "Step through", Preview: "the courtyard", ConsequenceHint: "no way back"},
			{ID: "c2", Text: "Wait and listen"},
		},
	}
}

func TestParseDensity(t *testing.T) {
	cases := map[string]Density{
		"concise":  DensityConcise,
		"RICH":     DensityRich,
		"standard": DensityStandard,
		"":         DensityStandard,
		"bogus":    DensityStandard,
	}
	for in, want := range cases {
		if got := ParseDensity(in); got != want {
			t.Fatalf("ParseDensity(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestDensityCycle(t *testing.T) {
	d := DensityConcise
	seen := map[Density]bool{}
	for i := 0; i < 3; i++ {
		seen[d] = true
		d = d.Cycle()
	}
	if d != DensityConcise || len(seen) != 3 {
		t.Fatalf("cycle must visit all three densities and wrap, got %v", seen)
	}
}

func TestSceneMarkdownDensities(t *testing.T) {
	sc := sampleScene()

	concise := SceneMarkdown(sc, DensityConcise)
	if strings.Contains(concise, "torchlight") {
		t.Fatal("concise must keep only the first paragraph")
	}
	if strings.Contains(concise, "the courtyard") {
		t.Fatal("concise must drop previews")
	}

	standard := SceneMarkdown(sc, DensityStandard)
	if !strings.Contains(standard, "torchlight") || !strings.Contains(standard, "the courtyard") {
		t.Fatal("standard keeps full narration and previews")
	}
	if strings.Contains(standard, "no way back") {
		t.Fatal("consequence hints are rich-only")
	}

	rich := SceneMarkdown(sc, DensityRich)
	if !strings.Contains(rich, "no way back") {
		t.Fatal("rich includes consequence hints")
	}
	if !strings.Contains(rich, "1. Step through") || !strings.Contains(rich, "2. Wait and listen") {
		t.Fatal("choices are numbered in display order")
	}
}

func TestSceneMarkdownFinal(t *testing.T) {
	sc := game.Scene{ID: "end", Narration: "Dawn breaks.", IsFinal: true}
	out := SceneMarkdown(sc, DensityStandard)
	if !strings.Contains(out, "The End") {
		t.Fatal("terminal scenes get an ending marker")
	}
	if strings.Contains(out, "What do you do?") {
		t.Fatal("no choice header without choices")
	}
}

func TestRecap(t *testing.T) {
	long := strings.Repeat("a word ", 60)
	r := Recap(long)
	if len(r) > 144 {
		t.Fatalf("recap too long: %d", len(r))
	}
	if strings.Contains(r, "\n") {
		t.Fatal("recap must be a single line")
	}
}
