package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"inferd/internal/engine"
	"inferd/internal/worker"

	"inferd/pkg/types"
)

// sessionBuffer sizes the token channel between a session and its handler;
// big enough to smooth flushes, small enough to keep cancellation prompt.
const sessionBuffer = 64

func (s *Server) oaiRoutes(r chi.Router) {
	r.Get("/models", s.handleOAIModels)
	r.Post("/completions", s.handleCompletions)
	r.Post("/chat/completions", s.handleChat)
	r.Post("/embeddings", s.handleEmbeddings)
}

// generate starts a session and returns its event channel. The channel is
// closed by the session after its terminal event.
func (s *Server) generate(r *http.Request, req worker.GenerateRequest) (<-chan worker.Token, error) {
	out := make(chan worker.Token, sessionBuffer)
	err := s.rt.Submit(worker.GenerateCommand{
		Context: r.Context(),
		Request: req,
		Output:  out,
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// loadedModelName resolves the model name reported in responses. A missing
// model is reported before any session is started.
func (s *Server) loadedModelName(r *http.Request) (string, error) {
	info, err := s.rt.RequestInfo(r.Context(), infoTimeout)
	if err != nil && !errors.Is(err, worker.ErrInfoStale) {
		return "", err
	}
	return info.Model.Name, nil
}

// handleOAIModels godoc
// @Summary  OpenAI-compatible model list
// @Produce  json
// @Success  200 {object} types.ModelListResponse
// @Router   /api/oai/models [get]
func (s *Server) handleOAIModels(w http.ResponseWriter, r *http.Request) {
	resp := types.ModelListResponse{Object: "list", Data: []types.ModelEntry{}}
	info, err := s.rt.RequestInfo(r.Context(), infoTimeout)
	if err == nil || errors.Is(err, worker.ErrInfoStale) {
		resp.Data = append(resp.Data, types.ModelEntry{
			ID:      info.Model.Name,
			Object:  "model",
			OwnedBy: "inferd",
		})
	}
	writeJSON(w, resp)
}

// handleCompletions godoc
// @Summary  OpenAI-compatible text completion
// @Accept   json
// @Produce  json
// @Param    request body types.CompletionRequest true "completion request"
// @Success  200 {object} types.CompletionResponse
// @Router   /api/oai/completions [post]
func (s *Server) handleCompletions(w http.ResponseWriter, r *http.Request) {
	var req types.CompletionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	model, err := s.loadedModelName(r)
	if err != nil {
		writeWorkerError(w, err)
		return
	}
	gen := worker.GenerateRequest{
		Prompt:    req.Prompt.Join(),
		MaxTokens: req.MaxTokens,
		Stop:      req.Stop,
		Sampling: engine.Sampling{
			Temperature: req.Temperature,
			TopP:        req.TopP,
			TopK:        req.TopK,
			Seed:        req.Seed,
		},
	}
	out, err := s.generate(r, gen)
	if err != nil {
		writeWorkerError(w, err)
		return
	}

	if req.Stream {
		s.streamEvents(w, r, out, func(ev worker.Token) (any, bool) {
			switch t := ev.(type) {
			case worker.ContentToken:
				return types.CompletionResponse{
					Object:  "text_completion.chunk",
					Model:   model,
					Choices: []types.CompletionChoice{{Text: t.Text}},
				}, true
			case worker.StopToken:
				return types.CompletionResponse{
					Object:  "text_completion.chunk",
					Model:   model,
					Choices: []types.CompletionChoice{{FinishReason: string(t.Reason)}},
					Usage:   &t.Counter,
				}, true
			case worker.ErrorToken:
				return types.CompletionResponse{
					Object:  "text_completion.chunk",
					Model:   model,
					Choices: []types.CompletionChoice{{FinishReason: "error"}},
				}, true
			}
			return nil, false
		})
		return
	}

	text, stop, err := drainSession(out)
	if err != nil {
		writeWorkerError(w, err)
		return
	}
	writeJSON(w, types.CompletionResponse{
		Object: "text_completion",
		Model:  model,
		Choices: []types.CompletionChoice{{
			Text:         text,
			FinishReason: string(stop.Reason),
		}},
		Usage: &stop.Counter,
	})
}

// handleChat godoc
// @Summary  OpenAI-compatible chat completion
// @Accept   json
// @Produce  json
// @Param    request body types.ChatRequest true "chat request"
// @Success  200 {object} types.ChatResponse
// @Router   /api/oai/chat/completions [post]
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req types.ChatRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if len(req.Messages) == 0 {
		writeJSONError(w, http.StatusBadRequest, "messages is required")
		return
	}
	model, err := s.loadedModelName(r)
	if err != nil {
		writeWorkerError(w, err)
		return
	}
	gen := worker.GenerateRequest{
		Prompt:    chatPrompt(req.Messages),
		MaxTokens: req.MaxTokens,
		Stop:      append([]string{"\n\nUser:", "\n\nSystem:"}, req.Stop...),
		Sampling: engine.Sampling{
			Temperature: req.Temperature,
			TopP:        req.TopP,
			TopK:        req.TopK,
			Seed:        req.Seed,
		},
	}
	out, err := s.generate(r, gen)
	if err != nil {
		writeWorkerError(w, err)
		return
	}

	if req.Stream {
		first := true
		s.streamEvents(w, r, out, func(ev worker.Token) (any, bool) {
			switch t := ev.(type) {
			case worker.ContentToken:
				delta := &types.ChatMessage{Content: t.Text}
				if first {
					delta.Role = "assistant"
					first = false
				}
				return types.ChatResponse{
					Object:  "chat.completion.chunk",
					Model:   model,
					Choices: []types.ChatChoice{{Delta: delta}},
				}, true
			case worker.StopToken:
				return types.ChatResponse{
					Object:  "chat.completion.chunk",
					Model:   model,
					Choices: []types.ChatChoice{{Delta: &types.ChatMessage{}, FinishReason: string(t.Reason)}},
					Usage:   &t.Counter,
				}, true
			case worker.ErrorToken:
				return types.ChatResponse{
					Object:  "chat.completion.chunk",
					Model:   model,
					Choices: []types.ChatChoice{{Delta: &types.ChatMessage{}, FinishReason: "error"}},
				}, true
			}
			return nil, false
		})
		return
	}

	text, stop, err := drainSession(out)
	if err != nil {
		writeWorkerError(w, err)
		return
	}
	writeJSON(w, types.ChatResponse{
		Object: "chat.completion",
		Model:  model,
		Choices: []types.ChatChoice{{
			Message:      &types.ChatMessage{Role: "assistant", Content: strings.TrimSpace(text)},
			FinishReason: string(stop.Reason),
		}},
		Usage: &stop.Counter,
	})
}

// handleEmbeddings godoc
// @Summary  OpenAI-compatible embeddings
// @Accept   json
// @Produce  json
// @Param    request body types.EmbeddingRequest true "embedding request"
// @Success  200 {object} types.EmbeddingResponse
// @Router   /api/oai/embeddings [post]
func (s *Server) handleEmbeddings(w http.ResponseWriter, r *http.Request) {
	var req types.EmbeddingRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if len(req.Input) == 0 {
		writeJSONError(w, http.StatusBadRequest, "input is required")
		return
	}
	model, err := s.loadedModelName(r)
	if err != nil {
		writeWorkerError(w, err)
		return
	}
	resp := types.EmbeddingResponse{Object: "list", Model: model}
	for i, input := range req.Input {
		// One embed-mode session per input: prompt pass only, single Embed
		// event, no content.
		out, err := s.generate(r, worker.GenerateRequest{
			Prompt:     input,
			MaxTokens:  1,
			Embed:      true,
			EmbedLayer: req.EmbedLayer,
		})
		if err != nil {
			writeWorkerError(w, err)
			return
		}
		var vec []float32
		for ev := range out {
			switch t := ev.(type) {
			case worker.EmbedToken:
				vec = t.Embedding
				resp.Usage.PromptTokens += t.Counter.PromptTokens
				resp.Usage.TotalTokens += t.Counter.TotalTokens
			case worker.ErrorToken:
				writeWorkerError(w, t.Err)
				return
			}
		}
		resp.Data = append(resp.Data, types.EmbeddingData{
			Object:    "embedding",
			Index:     i,
			Embedding: vec,
		})
	}
	writeJSON(w, resp)
}

// streamEvents relays session events as SSE data lines, ending with the
// OpenAI [DONE] marker. convert returns false for events that produce no chunk.
func (s *Server) streamEvents(w http.ResponseWriter, r *http.Request, out <-chan worker.Token, convert func(worker.Token) (any, bool)) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSONError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for ev := range out {
		if errTok, ok := ev.(worker.ErrorToken); ok {
			// Headers are out; mark the truncation with a terminal error
			// chunk before ending the stream.
			s.log.Error().Err(errTok.Err).Msg("session failed mid-stream")
			if chunk, ok := convert(ev); ok {
				if err := writeSSE(w, chunk); err != nil {
					return
				}
				flusher.Flush()
			}
			break
		}
		chunk, ok := convert(ev)
		if !ok {
			continue
		}
		if err := writeSSE(w, chunk); err != nil {
			return
		}
		flusher.Flush()
	}
	fmt.Fprint(w, "data: [DONE]\n\n")
	flusher.Flush()
}

// drainSession consumes a non-streaming session to completion.
func drainSession(out <-chan worker.Token) (string, worker.StopToken, error) {
	var sb strings.Builder
	var stop worker.StopToken
	for ev := range out {
		switch t := ev.(type) {
		case worker.ContentToken:
			sb.WriteString(t.Text)
		case worker.StopToken:
			stop = t
		case worker.ErrorToken:
			return "", worker.StopToken{}, t.Err
		}
	}
	return sb.String(), stop, nil
}

// chatPrompt flattens a conversation into the plain-text format the base
// model was tuned on, leaving the assistant turn open.
func chatPrompt(msgs []types.ChatMessage) string {
	var sb strings.Builder
	for _, m := range msgs {
		switch strings.ToLower(m.Role) {
		case "system":
			sb.WriteString("System: ")
		case "assistant":
			sb.WriteString("Assistant: ")
		default:
			sb.WriteString("User: ")
		}
		sb.WriteString(strings.TrimSpace(m.Content))
		sb.WriteString("\n\n")
	}
	sb.WriteString("Assistant:")
	return sb.String()
}
