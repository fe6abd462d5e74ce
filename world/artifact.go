package world

import (
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Artifact is an inventory item. Models describe artifacts either as a bare
// name or as an object with a name, and both shapes are accepted.
// An artifact without a description is written back as a bare name. A null
// decodes as a nameless artifact, which State.Normalize drops.
type Artifact struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

func (a Artifact) String() string {
	return a.Name
}

type artifactObject Artifact

func (a Artifact) MarshalJSON() ([]byte, error) {
	if a.Description == "" {
		return json.Marshal(a.Name)
	}
	return json.Marshal(artifactObject(a))
}

func (a *Artifact) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	switch {
	case trimmed == "null":
		*a = Artifact{}
		return nil
	case strings.HasPrefix(trimmed, `"`):
		var name string
		if err := json.Unmarshal(data, &name); err != nil {
			return fmt.Errorf("artifact name: %w", err)
		}
		*a = Artifact{Name: name}
		return nil
	}
	var obj artifactObject
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("artifact object: %w", err)
	}
	*a = Artifact(obj)
	return nil
}

func (a Artifact) MarshalYAML() (any, error) {
	if a.Description == "" {
		return a.Name, nil
	}
	return artifactObject(a), nil
}

func (a *Artifact) UnmarshalYAML(node *yaml.Node) error {
	if node.ShortTag() == "!!null" {
		*a = Artifact{}
		return nil
	}
	if node.Kind == yaml.ScalarNode {
		*a = Artifact{Name: node.Value}
		return nil
	}
	var obj artifactObject
	if err := node.Decode(&obj); err != nil {
		return fmt.Errorf("artifact object: %w", err)
	}
	*a = Artifact(obj)
	return nil
}
