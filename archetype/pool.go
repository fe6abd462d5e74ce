package archetype

import (
	"fmt"

	"github.com/sat8bit/janus/configs"
	"gopkg.in/yaml.v3"
)

// NewPool loads the archetypes from the embedded resources. Every ID the
// selector can return must be present.
func NewPool() (*Pool, error) {
	var p Pool
	if err := yaml.Unmarshal(configs.Archetypes, &p); err != nil {
		return nil, fmt.Errorf("failed to unmarshal embedded archetypes: %w", err)
	}
	for _, id := range []ID{Father, Son, Spirit, Jester} {
		if _, err := p.Get(id); err != nil {
			return nil, err
		}
	}
	return &p, nil
}

type Pool struct {
	Archetypes []*Archetype `yaml:"archetypes"`
}

func (p *Pool) Get(id ID) (*Archetype, error) {
	for _, a := range p.Archetypes {
		if a.ID == id {
			return a, nil
		}
	}
	return nil, fmt.Errorf("archetype with id '%s' not found", id)
}

func (p *Pool) mustGet(id ID) *Archetype {
	a, err := p.Get(id)
	if err != nil {
		panic(err)
	}
	return a
}
