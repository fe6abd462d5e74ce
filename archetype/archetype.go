package archetype

// ID identifies a narrator archetype.
type ID string

const (
	Father ID = "father" // orderly
	Son    ID = "son"    // visionary
	Spirit ID = "spirit" // transformative
	Jester ID = "jester" // chaotic
)

// Archetype is the narrator persona of a turn. Its style and temperature
// shape the request sent to the generation backend.
type Archetype struct {
	ID          ID      `yaml:"id"`
	DisplayName string  `yaml:"displayName"`
	Icon        string  `yaml:"icon"`
	Temperature float32 `yaml:"temperature"`
	Style       string  `yaml:"style"`
}
