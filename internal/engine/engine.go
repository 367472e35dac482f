// Package engine defines the boundary to the tensor runtime that owns weight
// loading, the forward pass, and sampling. The worker and its sessions only
// ever touch these interfaces; concrete backends live behind build tags so
// default builds stay CGO-free.
package engine

import (
	"context"
	"errors"
)

// ErrEngineUnavailable reports that no real backend was compiled in. The HTTP
// layer maps it to 503 instead of 500.
type engineUnavailableError struct{ msg string }

func (e engineUnavailableError) Error() string { return e.msg }

// ErrEngineUnavailable constructs an engine-unavailable error.
func ErrEngineUnavailable(msg string) error { return engineUnavailableError{msg: msg} }

// IsEngineUnavailable reports whether err indicates a missing runtime backend.
func IsEngineUnavailable(err error) bool {
	var e engineUnavailableError
	return errors.As(err, &e)
}

// LoadSpec is everything a backend needs to bring a model up.
type LoadSpec struct {
	ModelPath string
	Adapters  []AdapterSpec
	Quant     int
	Precision string
	// TokenChunkSize caps prompt tokens per forward chunk; 0 means backend default.
	TokenChunkSize int
	MaxBatch       int
	TokenizerPath  string
}

// AdapterSpec selects one LoRA adapter and its blend factor.
type AdapterSpec struct {
	Path  string
	Alpha float32
}

// ModelInfo is the metadata snapshot published in runtime info.
type ModelInfo struct {
	Name         string `json:"name"`
	Architecture string `json:"architecture"`
	NumLayer     int    `json:"num_layer"`
	NumEmbed     int    `json:"num_embed"`
	NumVocab     int    `json:"num_vocab"`
	ContextLen   int    `json:"context_len"`
	SizeBytes    int64  `json:"size_bytes"`
	Quantization string `json:"quantization,omitempty"`
}

// Sampling carries per-request sampling parameters.
type Sampling struct {
	Temperature float32
	TopP        float32
	TopK        int
	Seed        int
}

// Tokenizer converts text to token ids. Sessions use it for prompt token
// accounting; the backend keeps its own copy for the forward pass.
type Tokenizer interface {
	Encode(text string) ([]int, error)
}

// State is loaded initial-state tensor data. It lives as long as the model
// instance that loaded it.
type State interface {
	Close() error
}

// TokenStream is one generation pass. Next blocks until the next token is
// produced, returning io.EOF when the model stops on its own. Embedding is
// only valid after the prompt pass, i.e. after the first Next call or on a
// stream started for embedding extraction.
type TokenStream interface {
	Next(ctx context.Context) (string, error)
	Embedding(layer int) ([]float32, error)
	PromptTokens() int
	Close() error
}

// StreamOptions configure one generation pass.
type StreamOptions struct {
	Sampling Sampling
	// InitialState resumes generation from a registered state; nil starts empty.
	InitialState State
	// EmbedOnly runs the prompt pass only, for embedding extraction.
	EmbedOnly bool
}

// Model is one loaded model instance, exclusively owned by the worker.
// Streams opened from it are read-only borrows; the worker guarantees Close
// is never called while a stream is live.
type Model interface {
	Info() ModelInfo
	Tokenizer() Tokenizer
	Stream(ctx context.Context, prompt string, opts StreamOptions) (TokenStream, error)
	LoadState(path string) (State, error)
	// Save persists the weights plus merged adapters as one prefab artifact.
	Save(path string) error
	Close() error
}

// Engine creates model instances. Load performs all blocking I/O and device
// upload before returning; a failed load leaves nothing allocated.
type Engine interface {
	Load(ctx context.Context, spec LoadSpec) (Model, error)
}
