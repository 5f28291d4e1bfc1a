package llm

import (
	"context"
	"fmt"

	"github.com/talgya/deus-ex/internal/world"
)

// ImageGenerator is the optional side-channel for illustrations and
// portraits. Implementations return "" without error when they cannot
// produce an image; the turn pipeline treats any failure here as a
// skipped enrichment, never as a turn failure.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, prompt string) (string, error)
}

// IllustrationPrompt frames a delta's visual prompt for the image model.
func IllustrationPrompt(visualPrompt string) string {
	return "Fantasy concept art, masterpiece, oil painting style. " + visualPrompt
}

// PortraitPrompt frames a figure for the image model.
func PortraitPrompt(p world.Person) string {
	return fmt.Sprintf("Fantasy portrait of %s, %s, %s. %s. Oil painting style.",
		p.Name, p.Role, p.FactionName, p.Description)
}
