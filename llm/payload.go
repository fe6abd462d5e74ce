package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sat8bit/janus/world"
)

// Payload is the narrative answer expected from the backend.
type Payload struct {
	Narrative     string          `json:"narrative"`
	Choices       []string        `json:"choices"`
	VisualClue    string          `json:"visual_clue"`
	ArtifactFound *world.Artifact `json:"artifact_found"`
	LoreUnlocked  *string         `json:"lore_unlocked"`
	EntropyShift  *float64        `json:"entropy_shift"`
}

// Outcome returns the state change carried by the payload.
func (p *Payload) Outcome() world.Outcome {
	o := world.Outcome{
		Narrative:    p.Narrative,
		EntropyShift: world.DefaultEntropyShift,
	}
	if p.ArtifactFound != nil && strings.TrimSpace(p.ArtifactFound.Name) != "" {
		a := *p.ArtifactFound
		a.Name = strings.TrimSpace(a.Name)
		o.Artifact = &a
	}
	if p.LoreUnlocked != nil {
		o.Lore = strings.TrimSpace(*p.LoreUnlocked)
	}
	if p.EntropyShift != nil {
		o.EntropyShift = *p.EntropyShift
	}
	return o
}

// ParsePayload extracts the payload from raw model text. Code fences are
// removed, the first balanced JSON object is decoded and anything after it
// is ignored.
func ParsePayload(raw string) (*Payload, error) {
	text := strings.ReplaceAll(raw, "```json", "")
	text = strings.ReplaceAll(text, "```", "")

	obj, ok := firstObject(text)
	if !ok {
		return nil, fmt.Errorf("%w: no JSON object in response", ErrMalformed)
	}
	var p Payload
	if err := json.Unmarshal([]byte(obj), &p); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	p.Narrative = strings.TrimSpace(p.Narrative)
	if p.Narrative == "" {
		return nil, fmt.Errorf("%w: empty narrative", ErrMalformed)
	}
	return &p, nil
}

// firstObject returns the first balanced {...} span of text, honouring
// braces inside JSON strings.
func firstObject(text string) (string, bool) {
	start := strings.IndexByte(text, '{')
	if start == -1 {
		return "", false
	}
	depth := 0
	inString, escaped := false, false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}
	return "", false
}
