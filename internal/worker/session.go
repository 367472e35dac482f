package worker

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"inferd/internal/engine"
	"inferd/pkg/types"
)

// defaultMaxTokens bounds sessions that did not specify max_tokens.
const defaultMaxTokens = 256

// session produces the ordered token-event stream for one GenerateRequest.
// It holds a read-only borrow of the model; the worker's drain policy
// guarantees the model outlives it.
type session struct {
	ctx     context.Context
	log     zerolog.Logger
	model   engine.Model
	tok     engine.Tokenizer
	req     GenerateRequest
	out     chan<- Token
	initial engine.State
}

// run streams until a terminal event. Exactly one terminal event is emitted
// (Stop, Embed, or Error), then the output channel is closed.
func (s *session) run() {
	defer close(s.out)

	var counter types.TokenCounter
	ts, err := s.model.Stream(s.ctx, s.req.Prompt, engine.StreamOptions{
		Sampling:     s.req.Sampling,
		InitialState: s.initial,
		EmbedOnly:    s.req.Embed,
	})
	if err != nil {
		s.log.Error().Err(err).Msg("session could not open stream")
		s.emit(ErrorToken{Err: err})
		return
	}
	defer ts.Close()
	counter.PromptTokens = s.promptTokens(ts)

	if s.req.Embed {
		vec, err := ts.Embedding(s.req.EmbedLayer)
		if err != nil {
			s.emit(ErrorToken{Err: err})
			return
		}
		counter.TotalTokens = counter.PromptTokens
		s.emit(EmbedToken{Embedding: vec, Counter: counter})
		return
	}

	maxTokens := s.req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	hold := holdbackLen(s.req.Stop)
	reason := StopLength
	var pending string

	for counter.CompletionTokens < maxTokens {
		tok, err := ts.Next(s.ctx)
		if errors.Is(err, io.EOF) {
			reason = StopFinish
			break
		}
		if err != nil {
			if s.ctx.Err() != nil {
				s.interrupted(counter)
				return
			}
			s.log.Error().Err(err).Msg("session failed mid-stream")
			s.emit(ErrorToken{Err: err})
			return
		}
		counter.CompletionTokens++
		pending += tok

		if at, ok := findStop(pending, s.req.Stop); ok {
			if at > 0 && !s.emit(ContentToken{Text: pending[:at]}) {
				s.interrupted(counter)
				return
			}
			pending = ""
			reason = StopFinish
			break
		}
		// Hold back any suffix that could still grow into a stop string.
		if cut := len(pending) - hold; cut > 0 {
			if !s.emit(ContentToken{Text: pending[:cut]}) {
				s.interrupted(counter)
				return
			}
			pending = pending[cut:]
		}
	}

	if pending != "" && !s.emit(ContentToken{Text: pending}) {
		s.interrupted(counter)
		return
	}
	counter.TotalTokens = counter.PromptTokens + counter.CompletionTokens
	s.emit(StopToken{Reason: reason, Counter: counter})
}

func (s *session) interrupted(counter types.TokenCounter) {
	counter.TotalTokens = counter.PromptTokens + counter.CompletionTokens
	s.emitFinal(StopToken{Reason: StopInterrupted, Counter: counter})
}

// emit pushes one event, giving up when the consumer departs. Returning
// false means the session must abort promptly.
func (s *session) emit(t Token) bool {
	if _, ok := t.(ContentToken); ok {
		tokensEmitted.Inc()
	}
	select {
	case s.out <- t:
		return true
	case <-s.ctx.Done():
		return false
	}
}

// emitFinal delivers a terminal event after cancellation. The consumer is
// usually gone by then; give it one short window and otherwise drop the
// event rather than linger.
func (s *session) emitFinal(t Token) {
	select {
	case s.out <- t:
	case <-time.After(50 * time.Millisecond):
	}
}

func (s *session) promptTokens(ts engine.TokenStream) int {
	if n := ts.PromptTokens(); n > 0 {
		return n
	}
	if s.tok != nil {
		if ids, err := s.tok.Encode(s.req.Prompt); err == nil {
			return len(ids)
		}
	}
	return 0
}

// findStop reports the first occurrence of any stop string.
func findStop(text string, stops []string) (int, bool) {
	at := -1
	for _, stop := range stops {
		if stop == "" {
			continue
		}
		if i := strings.Index(text, stop); i >= 0 && (at < 0 || i < at) {
			at = i
		}
	}
	return at, at >= 0
}

// holdbackLen is the longest prefix of any stop string that must be withheld
// until the match either completes or falls through.
func holdbackLen(stops []string) int {
	n := 0
	for _, stop := range stops {
		if len(stop)-1 > n {
			n = len(stop) - 1
		}
	}
	return n
}
