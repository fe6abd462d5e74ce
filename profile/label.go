package profile

import "github.com/sat8bit/janus/world"

// Label is the single-word psychological profile shown to the player.
type Label string

const (
	Neutral    Label = "Neutral"
	Aggressive Label = "Aggressive"
	Anxious    Label = "Anxious"
	Analytical Label = "Analytical"
)

// labelFloor is the weakest signal that still earns a label.
const labelFloor = 0.1

// LabelOf derives the profile label from the cumulative metrics: the
// strongest axis wins, ties resolved in the order aggressive, anxious,
// analytical.
func LabelOf(m world.Metrics) Label {
	label, best := Neutral, labelFloor
	for _, c := range []struct {
		label Label
		value float64
	}{
		{Aggressive, m.Dominance},
		{Anxious, m.Instability},
		{Analytical, m.Insight},
	} {
		if c.value >= best && (label == Neutral || c.value > best) {
			label, best = c.label, c.value
		}
	}
	return label
}
