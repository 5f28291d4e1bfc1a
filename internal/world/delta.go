package world

// Delta is one turn's normalized update, produced by the llm layer and
// applied onto prior state by the engine's merge. Every slice field is
// non-nil after normalization; absent scalar fields stay zero-valued and
// fall back to the previous value at merge time.
type Delta struct {
	NewYear          int              `json:"newYear"`
	PopulationChange int              `json:"populationChange"`
	NewTechLevel     string           `json:"newTechLevel,omitempty"`
	NewCulturalVibe  string           `json:"newCulturalVibe,omitempty"`
	Logs             []LogEntry       `json:"logs"`
	Factions         []Faction        `json:"factions"`
	UpdatedFigures   []Person         `json:"updatedFigures"`
	PendingDecision  *PendingDecision `json:"pendingDecision"`
	VisualPrompt     string           `json:"visualPrompt,omitempty"`
}

// Snapshot is the full persisted game state, the unit the store reads
// and writes. The engine itself is stateless per call; the scheduler
// owns the live snapshot.
type Snapshot struct {
	Stats           WorldStats       `json:"stats"`
	Factions        []Faction        `json:"factions"`
	Figures         []Person         `json:"figures"`
	Logs            []LogEntry       `json:"logs"`
	PendingDecision *PendingDecision `json:"pendingDecision"`
	SavedAt         int64            `json:"lastSaved"` // unix millis
}

// Clone returns a deep copy of the snapshot so a turn can work on its
// own state while the scheduler keeps serving reads.
func (s *Snapshot) Clone() *Snapshot {
	out := &Snapshot{
		Stats:   s.Stats,
		SavedAt: s.SavedAt,
	}
	out.Factions = append([]Faction(nil), s.Factions...)
	out.Logs = append([]LogEntry(nil), s.Logs...)
	out.Figures = make([]Person, len(s.Figures))
	for i, f := range s.Figures {
		c := f
		c.Traits = append([]string(nil), f.Traits...)
		c.Relationships = append([]Relationship(nil), f.Relationships...)
		c.Secrets = append([]Secret(nil), f.Secrets...)
		out.Figures[i] = c
	}
	if s.PendingDecision != nil {
		d := *s.PendingDecision
		d.Options = append([]DecisionOption(nil), s.PendingDecision.Options...)
		out.PendingDecision = &d
	}
	return out
}
