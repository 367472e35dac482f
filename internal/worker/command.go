package worker

import (
	"context"

	"inferd/internal/engine"
	"inferd/pkg/types"
)

// Command is the closed set of requests the worker accepts. Variants that
// need a reply carry a required result channel (buffer at least 1); the reply
// is delivered exactly once, or the channel is closed if the worker cannot
// answer. Unload is the only fire-and-forget variant: completion is observed
// by polling TryRequestInfo until it fails.
type Command interface{ isCommand() }

// ReloadCommand replaces the current model, adapters, and initial states.
type ReloadCommand struct {
	Request *types.ReloadRequest
	Result  chan<- error
}

// UnloadCommand releases the model and returns the worker to the empty state.
type UnloadCommand struct{}

// GenerateCommand starts a generation session. Output receives the session's
// token events in production order and is closed after the terminal event.
// Context is the consumer's lifetime: cancelling it is the cancellation
// signal, observed within one token.
type GenerateCommand struct {
	Context   context.Context
	Request   GenerateRequest
	Tokenizer engine.Tokenizer
	Output    chan<- Token
}

// StateLoadCommand registers a named initial state from a sandboxed path.
type StateLoadCommand struct {
	Request types.StateSpec
	Result  chan<- error
}

// SaveCommand persists the loaded model plus merged adapters as a prefab.
type SaveCommand struct {
	Request types.SaveRequest
	Result  chan<- error
}

// QueryInfoCommand requests a one-shot runtime snapshot. The worker closes
// Result without replying while no model is loaded.
type QueryInfoCommand struct {
	Result chan<- RuntimeInfo
}

func (ReloadCommand) isCommand()    {}
func (UnloadCommand) isCommand()    {}
func (GenerateCommand) isCommand()  {}
func (StateLoadCommand) isCommand() {}
func (SaveCommand) isCommand()      {}
func (QueryInfoCommand) isCommand() {}

// GenerateRequest is one generation request, immutable once submitted.
type GenerateRequest struct {
	Prompt    string
	MaxTokens int
	Stop      []string
	// Embed short-circuits generation to a single Embed event after the
	// prompt pass; no Content events are emitted.
	Embed      bool
	EmbedLayer int
	// StateID resumes from a registered initial state; empty starts fresh.
	StateID  string
	Sampling engine.Sampling
}

// RuntimeInfo is an immutable snapshot of the worker's published state,
// produced fresh on every query and after every mutating command.
type RuntimeInfo struct {
	Reload    types.ReloadRequest
	Model     engine.ModelInfo
	States    []types.StateInfo
	Tokenizer engine.Tokenizer
}

// Token is one element of a session's event stream. The sequence is ordered
// and terminates with exactly one StopToken, EmbedToken, or ErrorToken.
type Token interface{ isToken() }

// ContentToken carries one generated text fragment.
type ContentToken struct {
	Text string
}

// EmbedToken carries the embedding vector of an embed-mode session, plus the
// prompt-pass token accounting. Terminal.
type EmbedToken struct {
	Embedding []float32
	Counter   types.TokenCounter
}

// StopToken ends a session and finalizes its token accounting. Terminal.
type StopToken struct {
	Reason  StopReason
	Counter types.TokenCounter
}

// ErrorToken ends a session that failed mid-stream. Terminal.
type ErrorToken struct {
	Err error
}

func (ContentToken) isToken() {}
func (EmbedToken) isToken()   {}
func (StopToken) isToken()    {}
func (ErrorToken) isToken()   {}

// StopReason says why a session stopped. Values follow the OpenAI
// finish_reason vocabulary, with "interrupted" added for cancellation.
type StopReason string

const (
	StopFinish      StopReason = "stop"
	StopLength      StopReason = "length"
	StopInterrupted StopReason = "interrupted"
)
