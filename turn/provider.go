package turn

// Provider exposes the turn count of the running session.
type Provider interface {
	CurrentTurn() int
	MaxTurns() int
}
