//go:generate mockgen -source enabler.go -destination ../../internal/mocks/mock_enabler.go -package mocks Enabler
package experiment

import (
	"context"
)

// Enabler is the global policy deciding whether an experiment runs its
// candidates. See package featureflags for implementations.
type Enabler interface {
	Enabled(ctx context.Context, experiment string) (bool, error)
}

// EnablerFunc adapts a function to the Enabler interface.
type EnablerFunc func(ctx context.Context, experiment string) (bool, error)

func (f EnablerFunc) Enabled(ctx context.Context, experiment string) (bool, error) {
	return f(ctx, experiment)
}
