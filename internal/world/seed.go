package world

import "strings"

// Seed returns the world at year 1: six founding philosophies, their
// founders, and the genesis log entry.
func Seed() *Snapshot {
	return &Snapshot{
		Stats: WorldStats{
			Year:               1,
			Population:         5000,
			TechnologicalLevel: "Age of Myth",
			CulturalVibe:       "First Dawn",
			DominantReligion:   "Polytheism",
		},
		Factions: seedFactions(),
		Figures:  seedFigures(),
		Logs: []LogEntry{
			{
				ID:      "init",
				Year:    0,
				Type:    LogSystem,
				Content: "The land split and the seas were filled. Six philosophies begin their civilizations.",
			},
		},
	}
}

func seedFactions() []Faction {
	return []Faction{
		{Name: "Aurean Curia", Power: 45, Attitude: 80, Tenets: []string{"Divine Bureaucracy", "Absolute Order"}, Color: "#F59E0B", Region: "Center"},
		{Name: "Silent Wardens", Power: 30, Attitude: 10, Tenets: []string{"Entropy", "Preservation of Records"}, Color: "#06B6D4", Region: "North"},
		{Name: "Glass Alchemy Society", Power: 25, Attitude: -10, Tenets: []string{"Transmutation", "Sun Worship"}, Color: "#DC2626", Region: "South"},
		{Name: "Ironroot Grove", Power: 35, Attitude: 30, Tenets: []string{"Living Craft", "Nature's Wrath"}, Color: "#166534", Region: "West"},
		{Name: "Deepsea Trade League", Power: 40, Attitude: 50, Tenets: []string{"Pragmatism", "Abyssal Exploration"}, Color: "#3B82F6", Region: "Coast"},
		{Name: "Weavers of the Void", Power: 20, Attitude: -50, Tenets: []string{"Nihilism", "Astronomy"}, Color: "#7C3AED", Region: "East"},
	}
}

type seedFigure struct {
	name, role, faction string
	birthYear           int
}

func seedFigures() []Person {
	founders := []seedFigure{
		{"Archon Severin", "High Pontifex", "Aurean Curia", -34},
		{"Chronicler Yse", "Keeper of the First Vault", "Silent Wardens", -28},
		{"Maedra of the Kiln", "Prime Transmuter", "Glass Alchemy Society", -25},
		{"Thornwarden Bram", "Voice of the Grove", "Ironroot Grove", -31},
		{"Captain Ilos Marr", "Guildmaster of the Deep Routes", "Deepsea Trade League", -22},
		{"Sister Nocta", "Star-Reader", "Weavers of the Void", -27},
	}

	people := make([]Person, 0, len(founders))
	for _, f := range founders {
		people = append(people, Person{
			ID:          "init-" + strings.ReplaceAll(f.name, " ", "-"),
			Name:        f.name,
			FactionName: f.faction,
			Role:        f.role,
			Description: "A founding figure of the " + f.faction + ", leading the faction as its " + f.role + ".",
			Biography: f.name + " has shaped the " + f.faction + " since its earliest days, " +
				"laying the foundations of the faction and guiding it through the first years of the world.",
			BirthYear:     f.birthYear,
			Status:        StatusAlive,
			Traits:        []string{"Founder", "Loyal"},
			Relationships: []Relationship{},
			Secrets:       []Secret{},
		})
	}
	return people
}
