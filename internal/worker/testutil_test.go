package worker

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"inferd/internal/engine"
	"inferd/pkg/types"
)

// fakeEngine is a deterministic in-memory backend for worker tests. Streams
// yield single-character tokens from script, looping unless loop is false.
type fakeEngine struct {
	mu    sync.Mutex
	loads []string
	saved map[string]engine.ModelInfo

	failPaths  map[string]bool
	panicPaths map[string]bool
	// Load blocks on the mapped channel for these paths
	slowPaths map[string]chan struct{}

	script []string
	loop   bool
	// when set, every Next blocks for one tick
	gate chan struct{}
	// when set, Save blocks until the channel closes
	saveGate chan struct{}
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{
		saved:      map[string]engine.ModelInfo{},
		failPaths:  map[string]bool{},
		panicPaths: map[string]bool{},
		slowPaths:  map[string]chan struct{}{},
		script:     []string{"a", "b", "c", "d", "e", "f", "g", "h"},
		loop:       true,
	}
}

func (e *fakeEngine) Load(ctx context.Context, spec engine.LoadSpec) (engine.Model, error) {
	if e.failPaths[spec.ModelPath] {
		return nil, errors.New("corrupt weights")
	}
	if e.panicPaths[spec.ModelPath] {
		panic("engine exploded")
	}
	if gate, ok := e.slowPaths[spec.ModelPath]; ok {
		<-gate
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	info, ok := e.saved[spec.ModelPath]
	if !ok {
		info = engine.ModelInfo{
			Name:         filepath.Base(spec.ModelPath),
			Architecture: "rwkv",
			NumLayer:     24,
			NumEmbed:     8,
			NumVocab:     65536,
			ContextLen:   4096,
		}
	}
	e.loads = append(e.loads, spec.ModelPath)
	return &fakeModel{eng: e, info: info}, nil
}

type fakeModel struct {
	eng    *fakeEngine
	info   engine.ModelInfo
	closed bool
}

func (m *fakeModel) Info() engine.ModelInfo      { return m.info }
func (m *fakeModel) Tokenizer() engine.Tokenizer { return fakeTokenizer{} }

func (m *fakeModel) LoadState(path string) (engine.State, error) {
	if strings.Contains(path, "missing") {
		return nil, errors.New("state file not found")
	}
	return &fakeState{}, nil
}

func (m *fakeModel) Save(path string) error {
	if m.eng.saveGate != nil {
		<-m.eng.saveGate
	}
	m.eng.mu.Lock()
	defer m.eng.mu.Unlock()
	m.eng.saved[path] = m.info
	return nil
}

func (m *fakeModel) Close() error {
	m.closed = true
	return nil
}

func (m *fakeModel) Stream(ctx context.Context, prompt string, opts engine.StreamOptions) (engine.TokenStream, error) {
	return &fakeStream{eng: m.eng, dim: m.info.NumEmbed, prompt: prompt}, nil
}

type fakeState struct{ closed bool }

func (s *fakeState) Close() error {
	s.closed = true
	return nil
}

type fakeTokenizer struct{}

func (fakeTokenizer) Encode(text string) ([]int, error) {
	words := strings.Fields(text)
	ids := make([]int, len(words))
	return ids, nil
}

type fakeStream struct {
	eng    *fakeEngine
	dim    int
	prompt string
	pos    int
}

func (s *fakeStream) Next(ctx context.Context) (string, error) {
	if s.eng.gate != nil {
		select {
		case <-s.eng.gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	} else if ctx.Err() != nil {
		return "", ctx.Err()
	}
	if !s.eng.loop && s.pos >= len(s.eng.script) {
		return "", io.EOF
	}
	tok := s.eng.script[s.pos%len(s.eng.script)]
	s.pos++
	return tok, nil
}

func (s *fakeStream) Embedding(layer int) ([]float32, error) {
	return make([]float32, s.dim), nil
}

func (s *fakeStream) PromptTokens() int { return len(strings.Fields(s.prompt)) }
func (s *fakeStream) Close() error      { return nil }

func startWorker(t *testing.T, eng engine.Engine) *Worker {
	t.Helper()
	w := New(eng, zerolog.Nop())
	go w.Run()
	t.Cleanup(func() {
		w.Close()
		select {
		case <-w.Done():
		case <-time.After(2 * time.Second):
			t.Errorf("worker did not stop")
		}
	})
	return w
}

func mustReload(t *testing.T, w *Worker, path string) {
	t.Helper()
	if err := reload(t, w, path); err != nil {
		t.Fatalf("reload %s: %v", path, err)
	}
}

func reload(t *testing.T, w *Worker, path string) error {
	t.Helper()
	res := make(chan error, 1)
	if err := w.Submit(ReloadCommand{Request: reloadRequest(path), Result: res}); err != nil {
		t.Fatalf("submit reload: %v", err)
	}
	select {
	case err := <-res:
		return err
	case <-time.After(2 * time.Second):
		t.Fatalf("reload %s did not resolve", path)
		return nil
	}
}

func reloadRequest(path string) *types.ReloadRequest {
	return &types.ReloadRequest{ModelPath: path}
}

// collect drains a session's output channel to completion.
func collect(t *testing.T, out <-chan Token) []Token {
	t.Helper()
	var events []Token
	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev, ok := <-out:
			if !ok {
				return events
			}
			events = append(events, ev)
		case <-deadline:
			t.Fatalf("session did not terminate, got %d events", len(events))
		}
	}
}
