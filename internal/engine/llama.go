//go:build llama

package engine

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"

	llama "github.com/go-skynet/go-llama.cpp"
)

// llamaBuilt indicates this binary was compiled with real llama support.
var llamaBuilt = true

type llamaEngine struct{}

// NewEngine returns the in-process llama.cpp backend.
func NewEngine() Engine { return llamaEngine{} }

func (llamaEngine) Load(ctx context.Context, spec LoadSpec) (Model, error) {
	if strings.TrimSpace(spec.ModelPath) == "" {
		return nil, errors.New("model path is empty")
	}
	info, err := ProbeInfo(spec.ModelPath)
	if err != nil {
		return nil, err
	}
	ctxSize := info.ContextLen
	if spec.TokenChunkSize > 0 && spec.TokenChunkSize < ctxSize {
		ctxSize = spec.TokenChunkSize
	}
	if ctxSize <= 0 {
		ctxSize = 2048
	}
	mo := []llama.ModelOption{
		llama.SetContext(ctxSize),
		llama.EnableEmbeddings,
	}
	// go-llama.cpp applies a single adapter; merging several happens at save time
	// upstream, so only the first is honored here.
	if len(spec.Adapters) > 0 {
		mo = append(mo, llama.SetLoraAdapter(spec.Adapters[0].Path))
	}
	l, err := llama.New(spec.ModelPath, mo...)
	if err != nil {
		return nil, err
	}
	return &llamaModel{l: l, info: info}, nil
}

type llamaModel struct {
	// llama.cpp keeps the token callback on the model, so passes serialize here.
	mu   sync.Mutex
	l    *llama.LLama
	info ModelInfo
}

func (m *llamaModel) Info() ModelInfo      { return m.info }
func (m *llamaModel) Tokenizer() Tokenizer { return llamaTokenizer{m: m} }

func (m *llamaModel) LoadState(path string) (State, error) {
	if !strings.HasSuffix(path, ".state") && !strings.HasSuffix(path, ".bin") {
		return nil, errors.New("unsupported state file: " + path)
	}
	return llamaState{path: path}, nil
}

func (m *llamaModel) Save(path string) error {
	return ErrEngineUnavailable("prefab save is not supported by the llama backend")
}

func (m *llamaModel) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.l != nil {
		m.l.Free()
		m.l = nil
	}
	return nil
}

type llamaState struct{ path string }

func (llamaState) Close() error { return nil }

type llamaTokenizer struct{ m *llamaModel }

func (t llamaTokenizer) Encode(text string) ([]int, error) {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	if t.m.l == nil {
		return nil, errors.New("model is closed")
	}
	n, toks, err := t.m.l.TokenizeString(text, llama.SetTokens(0))
	if err != nil {
		return nil, err
	}
	out := make([]int, 0, n)
	for _, tk := range toks[:n] {
		out = append(out, int(tk))
	}
	return out, nil
}

func (m *llamaModel) Stream(ctx context.Context, prompt string, opts StreamOptions) (TokenStream, error) {
	promptTokens := 0
	if toks, err := (llamaTokenizer{m: m}).Encode(prompt); err == nil {
		promptTokens = len(toks)
	}
	st := &llamaStream{
		m:            m,
		prompt:       prompt,
		promptTokens: promptTokens,
		toks:         make(chan string),
		errc:         make(chan error, 1),
	}
	if opts.EmbedOnly {
		return st, nil
	}
	sctx, cancel := context.WithCancel(ctx)
	st.cancel = cancel
	go st.predict(sctx, opts)
	return st, nil
}

type llamaStream struct {
	m            *llamaModel
	prompt       string
	promptTokens int
	toks         chan string
	errc         chan error
	cancel       context.CancelFunc
}

func (s *llamaStream) predict(ctx context.Context, opts StreamOptions) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	defer close(s.toks)
	if s.m.l == nil {
		s.errc <- errors.New("model is closed")
		return
	}
	if ls, ok := opts.InitialState.(llamaState); ok {
		if err := s.m.l.LoadState(ls.path); err != nil {
			s.errc <- err
			return
		}
	}
	s.m.l.SetTokenCallback(func(tok string) bool {
		select {
		case s.toks <- tok:
			return true
		case <-ctx.Done():
			return false
		}
	})
	po := []llama.PredictOption{
		llama.SetTokens(0), // bounded by the session, not the backend
		llama.SetTemperature(opts.Sampling.Temperature),
		llama.SetTopP(opts.Sampling.TopP),
		llama.SetTopK(opts.Sampling.TopK),
	}
	if opts.Sampling.Seed != 0 {
		po = append(po, llama.SetSeed(opts.Sampling.Seed))
	}
	if _, err := s.m.l.Predict(s.prompt, po...); err != nil && ctx.Err() == nil {
		s.errc <- err
	}
}

func (s *llamaStream) Next(ctx context.Context) (string, error) {
	select {
	case tok, ok := <-s.toks:
		if !ok {
			select {
			case err := <-s.errc:
				return "", err
			default:
				return "", io.EOF
			}
		}
		return tok, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (s *llamaStream) Embedding(layer int) ([]float32, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if s.m.l == nil {
		return nil, errors.New("model is closed")
	}
	// layer selection is not exposed by llama.cpp embeddings; the final
	// hidden state is returned for any layer.
	return s.m.l.Embeddings(s.prompt)
}

func (s *llamaStream) PromptTokens() int { return s.promptTokens }

func (s *llamaStream) Close() error {
	if s.cancel != nil {
		s.cancel()
	}
	return nil
}
