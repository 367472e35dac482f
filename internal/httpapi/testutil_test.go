package httpapi

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"inferd/internal/worker"

	"inferd/pkg/types"
)

// mockRuntime answers commands inline, without a real worker goroutine.
type mockRuntime struct {
	mu   sync.Mutex
	cmds []worker.Command

	loaded bool
	info   worker.RuntimeInfo

	submitErr error
	reloadErr error
	stateErr  error
	saveErr   error

	// script is the event sequence delivered to non-embed sessions.
	script []worker.Token
}

func newMockRuntime(loaded bool) *mockRuntime {
	m := &mockRuntime{loaded: loaded}
	m.info = worker.RuntimeInfo{
		Reload: types.ReloadRequest{ModelPath: "models/a.gguf"},
		States: []types.StateInfo{},
	}
	m.info.Model.Name = "a.gguf"
	m.info.Model.NumEmbed = 4
	m.script = []worker.Token{
		worker.ContentToken{Text: "he"},
		worker.ContentToken{Text: "llo"},
		worker.StopToken{
			Reason:  worker.StopFinish,
			Counter: types.TokenCounter{PromptTokens: 2, CompletionTokens: 2, TotalTokens: 4},
		},
	}
	return m
}

func (m *mockRuntime) commands() []worker.Command {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]worker.Command(nil), m.cmds...)
}

func (m *mockRuntime) Submit(cmd worker.Command) error {
	if m.submitErr != nil {
		return m.submitErr
	}
	m.mu.Lock()
	m.cmds = append(m.cmds, cmd)
	m.mu.Unlock()
	switch c := cmd.(type) {
	case worker.ReloadCommand:
		if m.reloadErr != nil {
			c.Result <- m.reloadErr
			return nil
		}
		m.mu.Lock()
		m.loaded = true
		m.mu.Unlock()
		c.Result <- nil
	case worker.UnloadCommand:
		m.mu.Lock()
		m.loaded = false
		m.mu.Unlock()
	case worker.StateLoadCommand:
		c.Result <- m.stateErr
	case worker.SaveCommand:
		c.Result <- m.saveErr
	case worker.GenerateCommand:
		go m.runSession(c)
	}
	return nil
}

func (m *mockRuntime) runSession(c worker.GenerateCommand) {
	defer close(c.Output)
	m.mu.Lock()
	loaded := m.loaded
	script := m.script
	m.mu.Unlock()
	if !loaded {
		c.Output <- worker.ErrorToken{Err: worker.ErrNoModelLoaded}
		return
	}
	if c.Request.Embed {
		n := len(strings.Fields(c.Request.Prompt))
		c.Output <- worker.EmbedToken{
			Embedding: []float32{0.1, 0.2, 0.3, 0.4},
			Counter:   types.TokenCounter{PromptTokens: n, TotalTokens: n},
		}
		return
	}
	for _, ev := range script {
		select {
		case c.Output <- ev:
		case <-c.Context.Done():
			return
		}
	}
}

func (m *mockRuntime) RequestInfo(ctx context.Context, timeout time.Duration) (worker.RuntimeInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.loaded {
		return worker.RuntimeInfo{}, worker.ErrNoModelLoaded
	}
	return m.info, nil
}

func (m *mockRuntime) TryRequestInfo(ctx context.Context) (worker.RuntimeInfo, error) {
	return m.RequestInfo(ctx, 0)
}

func (m *mockRuntime) RequestInfoStream(ctx context.Context, interval time.Duration, out chan worker.RuntimeInfo) {
	defer close(out)
	for i := 0; i < 2; i++ {
		select {
		case out <- m.info:
		case <-ctx.Done():
			return
		}
	}
	<-ctx.Done()
}

func newTestServer(rt Runtime, root, cfgPath string) http.Handler {
	return NewServer(rt, root, cfgPath, zerolog.Nop()).Routes()
}
