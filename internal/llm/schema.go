package llm

// The model is held to a strict JSON output contract. The contract lives
// in two forms: a prose block appended to every prompt (both providers),
// and a machine-checkable response schema sent to providers that support
// constrained decoding.

// responseContract is the output-shape description embedded in every
// simulation prompt. The invoker's correctness depends on the model being
// told the exact shape, so the prompt builder must never omit it.
const responseContract = `RETURN JSON ONLY. No markdown fences. Structure:
{
  "newYear": int,
  "populationChange": int,
  "newTechLevel": string,
  "newCulturalVibe": string,
  "logs": [{ "type": "SCRIPTURE"|"HISTORICAL"|"CULTURAL"|"SYSTEM", "content": string, "flavor": string }],
  "factions": [{ "name": string, "power": number, "attitude": number, "tenets": [string], "color": string, "region": string }],
  "updatedFigures": [{
     "id": string,
     "name": string,
     "factionName": string,
     "role": string,
     "description": string,
     "biography": string,
     "birthYear": int,
     "deathYear": int|null,
     "status": "Alive"|"Dead"|"Missing"|"Ascended",
     "traits": [string],
     "relationships": [{ "targetId": string, "targetName": string, "value": int (-100 to 100), "type": string, "description": string }],
     "secrets": [{ "id": string, "title": string, "description": string, "severity": "Gossip"|"Scandal"|"Fatal", "knownBy": [string] }]
  }],
  "pendingDecision": null | { "senderName": string, "senderRole": string, "message": string, "options": [{ "id": string, "text": string, "consequenceHint": string }] },
  "visualPrompt": string
}`

// schemaNode is the provider-neutral schema form the Gemini invoker
// sends as its responseSchema wire format.
type schemaNode struct {
	Type       string                `json:"type"`
	Enum       []string              `json:"enum,omitempty"`
	Items      *schemaNode           `json:"items,omitempty"`
	Properties map[string]schemaNode `json:"properties,omitempty"`
	Nullable   bool                  `json:"nullable,omitempty"`
}

// responseSchema is the machine-checkable descriptor for the reply.
func responseSchema() schemaNode {
	str := schemaNode{Type: "STRING"}
	num := schemaNode{Type: "NUMBER"}
	integer := schemaNode{Type: "INTEGER"}
	strList := schemaNode{Type: "ARRAY", Items: &str}

	logEntry := schemaNode{
		Type: "OBJECT",
		Properties: map[string]schemaNode{
			"type":    {Type: "STRING", Enum: []string{"SCRIPTURE", "HISTORICAL", "CULTURAL", "SYSTEM"}},
			"content": str,
			"flavor":  str,
		},
	}

	faction := schemaNode{
		Type: "OBJECT",
		Properties: map[string]schemaNode{
			"name": str, "power": num, "attitude": num,
			"tenets": strList, "color": str, "region": str,
		},
	}

	relationship := schemaNode{
		Type: "OBJECT",
		Properties: map[string]schemaNode{
			"targetId": str, "targetName": str, "value": num,
			"type": str, "description": str,
		},
	}

	secret := schemaNode{
		Type: "OBJECT",
		Properties: map[string]schemaNode{
			"id": str, "title": str, "description": str,
			"severity": {Type: "STRING", Enum: []string{"Gossip", "Scandal", "Fatal"}},
			"knownBy":  strList,
		},
	}

	figure := schemaNode{
		Type: "OBJECT",
		Properties: map[string]schemaNode{
			"id": str, "name": str, "factionName": str, "role": str,
			"description": str, "biography": str,
			"birthYear":     integer,
			"deathYear":     {Type: "INTEGER", Nullable: true},
			"status":        {Type: "STRING", Enum: []string{"Alive", "Dead", "Missing", "Ascended"}},
			"traits":        strList,
			"relationships": {Type: "ARRAY", Items: &relationship},
			"secrets":       {Type: "ARRAY", Items: &secret},
		},
	}

	option := schemaNode{
		Type: "OBJECT",
		Properties: map[string]schemaNode{
			"id": str, "text": str, "consequenceHint": str,
		},
	}

	decision := schemaNode{
		Type:     "OBJECT",
		Nullable: true,
		Properties: map[string]schemaNode{
			"senderName": str, "senderRole": str, "message": str,
			"options": {Type: "ARRAY", Items: &option},
		},
	}

	return schemaNode{
		Type: "OBJECT",
		Properties: map[string]schemaNode{
			"newYear":          integer,
			"populationChange": integer,
			"newTechLevel":     str,
			"newCulturalVibe":  str,
			"logs":             {Type: "ARRAY", Items: &logEntry},
			"factions":         {Type: "ARRAY", Items: &faction},
			"updatedFigures":   {Type: "ARRAY", Items: &figure},
			"pendingDecision":  decision,
			"visualPrompt":     str,
		},
	}
}
