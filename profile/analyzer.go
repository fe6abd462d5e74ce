package profile

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/sat8bit/janus/configs"
	"github.com/sat8bit/janus/world"
	"gopkg.in/yaml.v3"
)

const (
	DefaultStep         = 0.05
	DefaultEchoLimit    = 10
	DefaultEchoMinRunes = 12
)

// Axis names one of the three psychological metrics.
type Axis string

const (
	AxisDominance   Axis = "dominance"
	AxisInsight     Axis = "insight"
	AxisInstability Axis = "instability"
)

// Lexicon is the keyword set of every axis. Entries are stems matched as
// substrings of the case-folded input.
type Lexicon struct {
	Dominance   []string `yaml:"dominance"`
	Insight     []string `yaml:"insight"`
	Instability []string `yaml:"instability"`
}

// LoadLexicon decodes the embedded lexicon.
func LoadLexicon() (*Lexicon, error) {
	var l Lexicon
	if err := yaml.Unmarshal(configs.Lexicon, &l); err != nil {
		return nil, fmt.Errorf("failed to unmarshal embedded lexicon: %w", err)
	}
	return &l, nil
}

// Signal reports which axes an input touched.
type Signal struct {
	Axes []Axis
	Echo bool
}

// Analyzer turns raw player text into metric increments.
type Analyzer struct {
	Lexicon      *Lexicon
	Step         float64
	EchoLimit    int
	EchoMinRunes int
}

// NewAnalyzer returns an analyzer with the default step and echo bounds.
func NewAnalyzer(l *Lexicon) *Analyzer {
	return &Analyzer{
		Lexicon:      l,
		Step:         DefaultStep,
		EchoLimit:    DefaultEchoLimit,
		EchoMinRunes: DefaultEchoMinRunes,
	}
}

// Update adds Step to every axis whose keyword set matches raw, clamping at
// 1.0. Long enough inputs are archived as shadow echoes.
func (a *Analyzer) Update(s *world.State, raw string) Signal {
	var sig Signal
	text := strings.ToLower(strings.TrimSpace(raw))

	bump := func(axis Axis, words []string, v *float64) {
		if containsAny(text, words) {
			*v = min(1, *v+a.Step)
			sig.Axes = append(sig.Axes, axis)
		}
	}
	bump(AxisDominance, a.Lexicon.Dominance, &s.Metrics.Dominance)
	bump(AxisInsight, a.Lexicon.Insight, &s.Metrics.Insight)
	bump(AxisInstability, a.Lexicon.Instability, &s.Metrics.Instability)
	s.Metrics = s.Metrics.Clamp()

	if a.EchoMinRunes > 0 && utf8.RuneCountInString(strings.TrimSpace(raw)) >= a.EchoMinRunes {
		s.RememberEcho(strings.TrimSpace(raw), a.EchoLimit)
		sig.Echo = a.EchoLimit > 0
	}
	return sig
}

func containsAny(text string, words []string) bool {
	for _, w := range words {
		if w != "" && strings.Contains(text, strings.ToLower(w)) {
			return true
		}
	}
	return false
}
