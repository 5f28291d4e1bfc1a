package engine

import (
	"context"
	"log/slog"
	"sync"

	"github.com/talgya/deus-ex/internal/llm"
	"github.com/talgya/deus-ex/internal/world"
)

// Portraits generates figure portraits best-effort, deduplicating
// concurrent requests for the same person id. Results are additive-only:
// the caller writes the returned URL onto Person.PortraitURL, and the
// merge preserves it from then on.
type Portraits struct {
	images llm.ImageGenerator

	mu       sync.Mutex
	inFlight map[string]struct{}
}

// NewPortraits creates the portrait pipeline. A nil generator disables it.
func NewPortraits(images llm.ImageGenerator) *Portraits {
	return &Portraits{
		images:   images,
		inFlight: make(map[string]struct{}),
	}
}

// Generate returns an image reference for the person, or "" when the
// person already has one, another request for the same id is in flight,
// the generator is absent, or generation fails. It never returns an
// error: portraits are enrichment, not state.
func (p *Portraits) Generate(ctx context.Context, person world.Person) string {
	if p.images == nil || person.PortraitURL != "" {
		return ""
	}

	p.mu.Lock()
	if _, busy := p.inFlight[person.ID]; busy {
		p.mu.Unlock()
		return ""
	}
	p.inFlight[person.ID] = struct{}{}
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		delete(p.inFlight, person.ID)
		p.mu.Unlock()
	}()

	url, err := p.images.GenerateImage(ctx, llm.PortraitPrompt(person))
	if err != nil {
		slog.Warn("portrait generation failed", "person", person.ID, "error", err)
		return ""
	}
	return url
}
