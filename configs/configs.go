// Package configs holds the embedded YAML resources of the engine.
package configs

import _ "embed"

// Archetypes defines the narrator personas.
//
//go:embed archetypes.yaml
var Archetypes []byte

// Lexicon defines the keyword sets of the profile analyzer.
//
//go:embed lexicon.yaml
var Lexicon []byte
