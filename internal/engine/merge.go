// Package engine orchestrates turn advancement: merging model deltas into
// world state, retrying the unreliable model boundary with classified
// backoff, and scheduling autonomous turns.
package engine

import "github.com/talgya/deus-ex/internal/world"

// MergeStats applies a delta to the world headline numbers. Year is taken
// from the delta; population is floor-clamped at zero; tech level and
// cultural vibe keep their previous values when the delta left them empty.
func MergeStats(prev world.WorldStats, delta *world.Delta) world.WorldStats {
	next := prev
	next.Year = delta.NewYear
	next.Population = prev.Population + delta.PopulationChange
	if next.Population < 0 {
		next.Population = 0
	}
	if delta.NewTechLevel != "" {
		next.TechnologicalLevel = delta.NewTechLevel
	}
	if delta.NewCulturalVibe != "" {
		next.CulturalVibe = delta.NewCulturalVibe
	}
	return next
}

// MergeFactions replaces the roster wholesale when the delta carries a
// non-empty list; an omitted or empty roster retains the previous one
// unchanged, never emptied.
func MergeFactions(prev []world.Faction, delta *world.Delta) []world.Faction {
	if len(delta.Factions) == 0 {
		return prev
	}
	return delta.Factions
}

// MergeFigures is a superset merge by person id. Updated entries replace
// every field except PortraitURL, which the model is not authoritative
// for: once a person has a portrait it survives every merge. New ids are
// appended; persons absent from the delta are retained unmodified.
func MergeFigures(prev []world.Person, delta *world.Delta) []world.Person {
	next := make([]world.Person, len(prev))
	copy(next, prev)

	index := make(map[string]int, len(next))
	for i, p := range next {
		index[p.ID] = i
	}

	for _, updated := range delta.UpdatedFigures {
		if i, ok := index[updated.ID]; ok {
			if next[i].PortraitURL != "" {
				updated.PortraitURL = next[i].PortraitURL
			}
			next[i] = updated
			continue
		}
		index[updated.ID] = len(next)
		next = append(next, updated)
	}
	return next
}

// MergeLogs appends the delta's entries in the order supplied. The log is
// append-only; prior entries are never edited or removed.
func MergeLogs(prev []world.LogEntry, delta *world.Delta) []world.LogEntry {
	next := make([]world.LogEntry, 0, len(prev)+len(delta.Logs))
	next = append(next, prev...)
	next = append(next, delta.Logs...)
	return next
}

// Merge applies a normalized delta onto a snapshot, producing the next
// snapshot. Inputs are not mutated. The pending decision is replaced when
// the delta carries one, else cleared; the caller's lifecycle decides
// whether that pauses time.
func Merge(prev *world.Snapshot, delta *world.Delta) *world.Snapshot {
	return &world.Snapshot{
		Stats:           MergeStats(prev.Stats, delta),
		Factions:        MergeFactions(prev.Factions, delta),
		Figures:         MergeFigures(prev.Figures, delta),
		Logs:            MergeLogs(prev.Logs, delta),
		PendingDecision: delta.PendingDecision,
	}
}
