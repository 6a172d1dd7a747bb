package backend

import (
	"context"
	"errors"
	"fmt"

	"icongen/internal/backend/replicate"
)

// replicateClient is the slice of the Replicate client the executor needs.
type replicateClient interface {
	Generate(ctx context.Context, model string, input any) ([][]byte, error)
	HasCredentials() bool
}

// Executor routes Execute calls to the remote Replicate client or the local
// synthetic renderer depending on the backend id.
type Executor struct {
	remote replicateClient
}

// NewExecutor wires the standard backend port. The remote client may be nil
// when only the synthetic backend is configured.
func NewExecutor(remote *replicate.Client) *Executor {
	if remote == nil {
		return &Executor{}
	}
	return &Executor{remote: remote}
}

var _ Port = (*Executor)(nil)

// Execute runs one generation call against the named backend and returns the
// raw image payloads in variation order.
func (e *Executor) Execute(ctx context.Context, id ID, params Params) ([][]byte, error) {
	caps, err := Lookup(id)
	if err != nil {
		return nil, err
	}

	if id == Synthetic {
		variations := params.NumOutputs
		if variations <= 0 {
			variations = 1
		}
		return renderSyntheticImages(params, variations), nil
	}

	if e.remote == nil {
		return nil, fmt.Errorf("backend: %s requires a configured replicate client", id)
	}
	if !e.remote.HasCredentials() {
		return nil, replicate.ErrMissingAPIToken
	}

	images, err := e.remote.Generate(ctx, caps.ModelID, params)
	if err != nil {
		return nil, err
	}
	if len(images) == 0 {
		return nil, errors.New("backend: empty generation output")
	}
	return images, nil
}
