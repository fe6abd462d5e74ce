package turn

import (
	"context"
)

// Manager grants the single right to mutate the world. A turn and the
// session shutdown both hold it, so they never overlap.
type Manager interface {
	Acquire(ctx context.Context) error
	Release()
}
