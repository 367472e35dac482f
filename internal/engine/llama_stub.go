//go:build !llama

package engine

// This file provides a no-CGO stub for the llama backend. It is compiled when
// the 'llama' build tag is NOT set, keeping default builds and CI CGO-free.
// The real backend lives in llama.go (tagged 'llama').

import "context"

var llamaBuilt = false

type stubEngine struct{}

// NewEngine returns a backend that refuses to load models without the 'llama'
// build tag. This avoids any mocked inference in production binaries built
// without CGO support.
func NewEngine() Engine { return stubEngine{} }

func (stubEngine) Load(ctx context.Context, spec LoadSpec) (Model, error) {
	return nil, ErrEngineUnavailable("llama support not built (missing 'llama' build tag)")
}
