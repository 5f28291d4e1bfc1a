// Package world defines the canonical world state: simulation time,
// population, factions, notable figures, and the chronological log.
// Everything here is plain data; mutation happens only through the
// engine's merge step.
package world

// LogType classifies a chronicle entry.
type LogType string

const (
	LogScripture  LogType = "SCRIPTURE"  // divine narration
	LogHistorical LogType = "HISTORICAL" // kingdoms rise and fall
	LogChat       LogType = "CHAT"       // the god's raw command
	LogSystem     LogType = "SYSTEM"     // engine messages, failures
	LogCultural   LogType = "CULTURAL"   // renaissances, heresies
)

// LogEntry is one line of the chronicle. The log is append-only: a turn
// may add entries but never edits or removes prior ones.
type LogEntry struct {
	ID               string   `json:"id"`
	Year             int      `json:"year"`
	Type             LogType  `json:"type"`
	Content          string   `json:"content"`
	Flavor           string   `json:"flavor,omitempty"` // citation-style annotation, e.g. "Book of Dawn 3:14"
	ImageURL         string   `json:"imageUrl,omitempty"`
	RelatedFigureIDs []string `json:"relatedFigureIds,omitempty"`
}

// Faction is one power bloc. The roster is keyed by Name; the model
// re-emits the complete list each turn and the merge replaces it
// wholesale when non-empty.
type Faction struct {
	Name     string   `json:"name"`
	Power    float64  `json:"power"`    // intended 0-100
	Attitude float64  `json:"attitude"` // -100 (hate) .. 100 (worship)
	Tenets   []string `json:"tenets"`
	Color    string   `json:"color"`
	Region   string   `json:"region,omitempty"`
}

// PersonStatus is a figure's life state.
type PersonStatus string

const (
	StatusAlive    PersonStatus = "Alive"
	StatusDead     PersonStatus = "Dead"
	StatusMissing  PersonStatus = "Missing"
	StatusAscended PersonStatus = "Ascended"
)

// Relationship is a soft link from one figure to another.
type Relationship struct {
	TargetID    string  `json:"targetId"`
	TargetName  string  `json:"targetName"`
	Value       float64 `json:"value"` // -100 .. 100
	Type        string  `json:"type"`  // "Rival", "Lover", "Nemesis", ...
	Description string  `json:"description,omitempty"`
}

// SecretSeverity grades how damaging a secret is.
type SecretSeverity string

const (
	SeverityGossip  SecretSeverity = "Gossip"
	SeverityScandal SecretSeverity = "Scandal"
	SeverityFatal   SecretSeverity = "Fatal"
)

// Secret is hidden knowledge attached to a figure.
type Secret struct {
	ID          string         `json:"id"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Severity    SecretSeverity `json:"severity"`
	KnownBy     []string       `json:"knownBy,omitempty"` // Person IDs
}

// Person is a notable figure. Identity is the ID; FactionName is a soft
// reference with no integrity enforcement. PortraitURL is owned by the
// portrait pipeline, never by the model: once set it survives every merge.
type Person struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	FactionName   string         `json:"factionName"`
	Role          string         `json:"role"`
	Description   string         `json:"description"`
	Biography     string         `json:"biography"`
	BirthYear     int            `json:"birthYear"` // may be negative: before year 0
	DeathYear     *int           `json:"deathYear,omitempty"`
	Status        PersonStatus   `json:"status"`
	Traits        []string       `json:"traits"`
	PortraitURL   string         `json:"portraitUrl,omitempty"`
	Relationships []Relationship `json:"relationships"`
	Secrets       []Secret       `json:"secrets"`
}

// WorldStats is the headline state of the simulation.
type WorldStats struct {
	Year               int    `json:"year"`
	Population         int    `json:"population"`
	TechnologicalLevel string `json:"technologicalLevel"`
	CulturalVibe       string `json:"culturalVibe"`
	DominantReligion   string `json:"dominantReligion"`
}

// DecisionOption is one choice offered by a pending decision.
type DecisionOption struct {
	ID              string `json:"id"`
	Text            string `json:"text"`
	ConsequenceHint string `json:"consequenceHint,omitempty"`
}

// PendingDecision is a blocking narrative prompt from a figure in the
// world. At most one is outstanding; automatic advancement pauses until
// it is answered or times out to silence.
type PendingDecision struct {
	ID         string           `json:"id"`
	SenderName string           `json:"senderName"`
	SenderRole string           `json:"senderRole"`
	Message    string           `json:"message"`
	Options    []DecisionOption `json:"options"`
}

// AliveFigures filters figures to those with StatusAlive, the subset the
// prompt builder is given as model context.
func AliveFigures(figures []Person) []Person {
	alive := make([]Person, 0, len(figures))
	for _, f := range figures {
		if f.Status == StatusAlive {
			alive = append(alive, f)
		}
	}
	return alive
}
