package archetype

import "math/rand"

// Policy holds the thresholds of the selector.
type Policy struct {
	// ChaosInstability and ChaosEntropy force the chaotic archetype when
	// either is exceeded.
	ChaosInstability float64
	ChaosEntropy     float64

	// OrderBelow and VisionBelow split the remaining entropy range into
	// orderly, visionary and transformative tiers.
	OrderBelow  float64
	VisionBelow float64

	// OverrideChance is the probability that a transformative turn is
	// promoted to the chaotic archetype. Zero disables the override.
	OverrideChance float64
}

// DefaultPolicy returns the standard thresholds.
func DefaultPolicy() Policy {
	return Policy{
		ChaosInstability: 0.7,
		ChaosEntropy:     0.8,
		OrderBelow:       0.3,
		VisionBelow:      0.7,
		OverrideChance:   0.3,
	}
}

// Selector maps (entropy, instability) to an archetype. Apart from the
// override roll it is a pure function of its inputs, and the roll draws from
// the injected source only.
type Selector struct {
	pool   *Pool
	policy Policy
	rng    *rand.Rand
}

func NewSelector(pool *Pool, policy Policy, rng *rand.Rand) *Selector {
	return &Selector{pool: pool, policy: policy, rng: rng}
}

func (s *Selector) Select(entropy, instability float64) *Archetype {
	return s.pool.mustGet(s.selectID(entropy, instability))
}

func (s *Selector) selectID(entropy, instability float64) ID {
	p := s.policy
	switch {
	case instability > p.ChaosInstability || entropy > p.ChaosEntropy:
		return Jester
	case entropy < p.OrderBelow:
		return Father
	case entropy < p.VisionBelow:
		return Son
	}
	if p.OverrideChance > 0 && s.rng != nil && s.rng.Float64() < p.OverrideChance {
		return Jester
	}
	return Spirit
}
