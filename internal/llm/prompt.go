package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/talgya/deus-ex/internal/world"
)

// SilenceAnswer is the sentinel decision answer meaning the god let the
// decision timeout expire without speaking.
const SilenceAnswer = "IGNORE_SILENCE"

// maxRecentLogs caps how much chronicle tail goes into the prompt.
const maxRecentLogs = 5

// Prompt is a built instruction payload: a system framing plus the user
// turn that triggers generation.
type Prompt struct {
	System string
	User   string
}

// PromptInput is everything the builder needs for one turn.
type PromptInput struct {
	Stats          world.WorldStats
	Factions       []world.Faction
	ActiveFigures  []world.Person // caller pre-filters to status Alive
	RecentLogs     []world.LogEntry
	PlayerCommand  string // empty = none
	DecisionAnswer string // empty = none; SilenceAnswer = explicit silence
	YearsToAdvance int
}

// BuildSimulationPrompt assembles the turn prompt. Pure function of its
// input: identical inputs produce identical payloads.
func BuildSimulationPrompt(in PromptInput) Prompt {
	var b strings.Builder

	b.WriteString("Role: You are the \"Deus Ex Machina Engine\", simulating a world whose user is a real god.\n")
	b.WriteString("Style: solemn scriptural prose, readable and declarative.\n")
	b.WriteString("Mechanics: the butterfly effect is real, and silence is itself a choice.\n\n")

	fmt.Fprintf(&b, "Current State: Year %d, Population %s, %s, %s.\n",
		in.Stats.Year, humanize.Comma(int64(in.Stats.Population)),
		in.Stats.TechnologicalLevel, in.Stats.CulturalVibe)
	fmt.Fprintf(&b, "Factions: %s\n", factionContext(in.Factions))
	fmt.Fprintf(&b, "Key Figures (Context): %s\n", figureContext(in.ActiveFigures))
	fmt.Fprintf(&b, "Recent History:\n%s\n\n", logSummary(in.RecentLogs))

	fmt.Fprintf(&b, "Instruction: Advance the world by %d years.\n\n", in.YearsToAdvance)

	b.WriteString("CRITICAL: Social Dynamics & Secrets\n")
	b.WriteString("1. Simulate observation of observation: generate secrets (gossip, scandals, hidden agendas) for some figures.\n")
	b.WriteString("2. Update relationships: figures develop rivals, lovers, nemeses. Use existing figure IDs for targetId.\n")
	b.WriteString("3. Secrets range from trivial gossip to fatal heresy.\n\n")

	if in.PlayerCommand != "" {
		fmt.Fprintf(&b, "Input: GOD SPOKE: %q\n", in.PlayerCommand)
	} else {
		b.WriteString("Input: None\n")
	}
	switch in.DecisionAnswer {
	case "":
		b.WriteString("Decision: None\n")
	case SilenceAnswer:
		b.WriteString("Decision: God answered with silence.\n")
	default:
		fmt.Fprintf(&b, "Decision: God answered: %q\n", in.DecisionAnswer)
	}

	b.WriteString("\n")
	b.WriteString(responseContract)

	return Prompt{
		System: b.String(),
		User:   "Advance the simulation now.",
	}
}

// factionContext serializes the roster as compact JSON: name, power,
// tenets. Marshal of plain structs cannot fail; fall back to empty list.
func factionContext(factions []world.Faction) string {
	type entry struct {
		Name   string   `json:"name"`
		Power  float64  `json:"power"`
		Tenets []string `json:"tenets"`
	}
	entries := make([]entry, 0, len(factions))
	for _, f := range factions {
		entries = append(entries, entry{Name: f.Name, Power: f.Power, Tenets: f.Tenets})
	}
	out, err := json.Marshal(entries)
	if err != nil {
		return "[]"
	}
	return string(out)
}

// figureContext serializes alive figures down to id/name/faction/role so
// the model can wire relationships by ID without the full biographies.
func figureContext(figures []world.Person) string {
	type entry struct {
		ID      string `json:"id"`
		Name    string `json:"name"`
		Faction string `json:"faction"`
		Role    string `json:"role"`
	}
	entries := make([]entry, 0, len(figures))
	for _, f := range figures {
		entries = append(entries, entry{ID: f.ID, Name: f.Name, Faction: f.FactionName, Role: f.Role})
	}
	out, err := json.Marshal(entries)
	if err != nil {
		return "[]"
	}
	return string(out)
}

// logSummary condenses the chronicle tail to its last maxRecentLogs lines.
func logSummary(logs []world.LogEntry) string {
	if len(logs) > maxRecentLogs {
		logs = logs[len(logs)-maxRecentLogs:]
	}
	lines := make([]string, 0, len(logs))
	for _, l := range logs {
		lines = append(lines, fmt.Sprintf("[%s] %s", l.Type, l.Content))
	}
	if len(lines) == 0 {
		return "(no prior history)"
	}
	return strings.Join(lines, "\n")
}
