package llm

import (
	"encoding/json"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	"github.com/talgya/deus-ex/internal/world"
)

// Normalizer turns a raw model reply into a well-typed world.Delta. This
// stage only defaults, never rejects: an un-parseable payload was already
// classified MalformedResponse by the invoker, so whatever reaches here
// is coerced field by field, with missing or mistyped collections
// becoming empty slices.
type Normalizer struct {
	entropy *rand.Rand
	now     func() time.Time
}

// NewNormalizer creates a normalizer with time-seeded ULID entropy.
func NewNormalizer() *Normalizer {
	return &Normalizer{
		entropy: rand.New(rand.NewSource(time.Now().UnixNano())),
		now:     time.Now,
	}
}

// rawDelta mirrors the output contract with collections held as raw JSON
// so one mistyped list cannot sink the others.
type rawDelta struct {
	NewYear          int             `json:"newYear"`
	PopulationChange int             `json:"populationChange"`
	NewTechLevel     string          `json:"newTechLevel"`
	NewCulturalVibe  string          `json:"newCulturalVibe"`
	Logs             json.RawMessage `json:"logs"`
	Factions         json.RawMessage `json:"factions"`
	UpdatedFigures   json.RawMessage `json:"updatedFigures"`
	PendingDecision  json.RawMessage `json:"pendingDecision"`
	VisualPrompt     string          `json:"visualPrompt"`
}

type rawLog struct {
	Type             string   `json:"type"`
	Content          string   `json:"content"`
	Flavor           string   `json:"flavor"`
	RelatedFigureIDs []string `json:"relatedFigureIds"`
}

// Normalize produces the canonical delta. Every list field of the result
// is non-nil; absent top-level scalars stay zero-valued so the merge can
// fall back to the previous state's values.
func (n *Normalizer) Normalize(raw json.RawMessage) *world.Delta {
	var rd rawDelta
	// Best-effort decode: a type mismatch on one field must not discard
	// the fields that did decode.
	_ = json.Unmarshal(raw, &rd)

	delta := &world.Delta{
		NewYear:          rd.NewYear,
		PopulationChange: rd.PopulationChange,
		NewTechLevel:     rd.NewTechLevel,
		NewCulturalVibe:  rd.NewCulturalVibe,
		VisualPrompt:     rd.VisualPrompt,
		Logs:             n.normalizeLogs(rd.Logs, rd.NewYear),
		Factions:         listOrEmpty[world.Faction](rd.Factions),
		UpdatedFigures:   n.normalizeFigures(rd.UpdatedFigures),
		PendingDecision:  n.normalizeDecision(rd.PendingDecision),
	}
	return delta
}

// normalizeLogs assigns each entry a fresh monotonic-style id and stamps
// it with the turn's new year.
func (n *Normalizer) normalizeLogs(raw json.RawMessage, newYear int) []world.LogEntry {
	rawLogs := listOrEmpty[rawLog](raw)
	logs := make([]world.LogEntry, 0, len(rawLogs))
	for _, rl := range rawLogs {
		logs = append(logs, world.LogEntry{
			ID:               n.newLogID(),
			Year:             newYear,
			Type:             world.LogType(rl.Type),
			Content:          rl.Content,
			Flavor:           rl.Flavor,
			RelatedFigureIDs: rl.RelatedFigureIDs,
		})
	}
	return logs
}

func (n *Normalizer) normalizeFigures(raw json.RawMessage) []world.Person {
	figures := listOrEmpty[world.Person](raw)
	for i := range figures {
		if figures[i].Traits == nil {
			figures[i].Traits = []string{}
		}
		if figures[i].Relationships == nil {
			figures[i].Relationships = []world.Relationship{}
		}
		if figures[i].Secrets == nil {
			figures[i].Secrets = []world.Secret{}
		}
		for j := range figures[i].Secrets {
			if figures[i].Secrets[j].ID == "" {
				figures[i].Secrets[j].ID = uuid.NewString()
			}
		}
	}
	return figures
}

func (n *Normalizer) normalizeDecision(raw json.RawMessage) *world.PendingDecision {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var d world.PendingDecision
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil
	}
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.Options == nil {
		d.Options = []world.DecisionOption{}
	}
	return &d
}

// listOrEmpty decodes raw as a []T, returning an empty slice when the
// field is absent, null, or not a list.
func listOrEmpty[T any](raw json.RawMessage) []T {
	if len(raw) == 0 {
		return []T{}
	}
	var out []T
	// Best-effort: a type error on one element leaves the elements that
	// did decode in place.
	_ = json.Unmarshal(raw, &out)
	if out == nil {
		return []T{}
	}
	return out
}

func (n *Normalizer) newLogID() string {
	return ulid.MustNew(ulid.Timestamp(n.now()), n.entropy).String()
}
