// Package text composes the markdown shown for a scene and trims it to the
// configured density.
package text

import (
	"fmt"
	"strings"

	"github.com/fableweaver/fableweaver/internal/game"
)

// Density controls how much prose and choice detail is rendered.
type Density string

const (
	DensityConcise  Density = "concise"
	DensityStandard Density = "standard"
	DensityRich     Density = "rich"
)

// ParseDensity normalizes a configured density, defaulting to standard.
func ParseDensity(s string) Density {
	switch Density(strings.ToLower(strings.TrimSpace(s))) {
	case DensityConcise:
		return DensityConcise
	case DensityRich:
		return DensityRich
	default:
		return DensityStandard
	}
}

// Cycle returns the next density in concise -> standard -> rich order.
func (d Density) Cycle() Density {
	switch d {
	case DensityConcise:
		return DensityStandard
	case DensityStandard:
		return DensityRich
	default:
		return DensityConcise
	}
}

// SceneMarkdown renders the scene narration and choice list as markdown.
// Concise keeps the first paragraph only; rich adds previews and hints.
func SceneMarkdown(scene game.Scene, d Density) string {
	var b strings.Builder
	narration := scene.Narration
	if d == DensityConcise {
		narration = firstParagraph(narration)
	}
	b.WriteString(narration)
	if len(scene.Choices) > 0 {
		b.WriteString("\n\n## What do you do?\n\n")
		for i, c := range scene.Choices {
			b.WriteString(fmt.Sprintf("%d. %s", i+1, c.Text))
			if d != DensityConcise && c.Preview != "" {
				b.WriteString(" — " + c.Preview)
			}
			if d == DensityRich && c.ConsequenceHint != "" {
				b.WriteString(fmt.Sprintf(" *(%s)*", c.ConsequenceHint))
			}
			b.WriteString("\n")
		}
	}
	if scene.IsFinal {
		b.WriteString("\n\n---\n*The End*\n")
	}
	return b.String()
}

// Recap flattens narration into a single journal-sized line.
func Recap(narration string) string {
	clean := strings.Join(strings.Fields(narration), " ")
	if len(clean) > 140 {
		clean = clean[:140] + "..."
	}
	return clean
}

func firstParagraph(s string) string {
	if i := strings.Index(s, "\n\n"); i > 0 {
		return s[:i]
	}
	return s
}
