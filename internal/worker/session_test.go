package worker

import (
	"context"
	"strings"
	"testing"
	"time"
)

func startSession(t *testing.T, w *Worker, ctx context.Context, req GenerateRequest) <-chan Token {
	t.Helper()
	out := make(chan Token, 16)
	if err := w.Submit(GenerateCommand{Context: ctx, Request: req, Output: out}); err != nil {
		t.Fatalf("submit generate: %v", err)
	}
	return out
}

func TestGenerateExactTokenBudget(t *testing.T) {
	w := startWorker(t, newFakeEngine())
	mustReload(t, w, "models/a.gguf")

	const k = 5
	out := startSession(t, w, context.Background(), GenerateRequest{
		Prompt:    "one two three",
		MaxTokens: k,
	})
	events := collect(t, out)

	content := 0
	for _, ev := range events[:len(events)-1] {
		if _, ok := ev.(ContentToken); !ok {
			t.Fatalf("non-content event before terminal: %T", ev)
		}
		content++
	}
	if content != k {
		t.Fatalf("content events = %d, want %d", content, k)
	}
	stop, ok := events[len(events)-1].(StopToken)
	if !ok {
		t.Fatalf("terminal event = %T, want StopToken", events[len(events)-1])
	}
	if stop.Reason != StopLength {
		t.Fatalf("reason = %q, want %q", stop.Reason, StopLength)
	}
	if stop.Counter.CompletionTokens != k {
		t.Fatalf("completion_tokens = %d, want %d", stop.Counter.CompletionTokens, k)
	}
	if stop.Counter.PromptTokens != 3 {
		t.Fatalf("prompt_tokens = %d, want 3", stop.Counter.PromptTokens)
	}
	if stop.Counter.TotalTokens != k+3 {
		t.Fatalf("total_tokens = %d, want %d", stop.Counter.TotalTokens, k+3)
	}
}

func TestGenerateNaturalEnd(t *testing.T) {
	eng := newFakeEngine()
	eng.script = []string{"x", "y"}
	eng.loop = false
	w := startWorker(t, eng)
	mustReload(t, w, "models/a.gguf")

	out := startSession(t, w, context.Background(), GenerateRequest{Prompt: "p", MaxTokens: 100})
	events := collect(t, out)
	stop, ok := events[len(events)-1].(StopToken)
	if !ok {
		t.Fatalf("terminal event = %T", events[len(events)-1])
	}
	if stop.Reason != StopFinish {
		t.Fatalf("reason = %q, want %q", stop.Reason, StopFinish)
	}
	if stop.Counter.CompletionTokens != 2 {
		t.Fatalf("completion_tokens = %d, want 2", stop.Counter.CompletionTokens)
	}
}

func TestGenerateStopString(t *testing.T) {
	eng := newFakeEngine()
	eng.script = strings.Split("Hello STOP never", "")
	eng.loop = false
	w := startWorker(t, eng)
	mustReload(t, w, "models/a.gguf")

	out := startSession(t, w, context.Background(), GenerateRequest{
		Prompt:    "p",
		MaxTokens: 100,
		Stop:      []string{"STOP"},
	})
	events := collect(t, out)

	var text strings.Builder
	for _, ev := range events[:len(events)-1] {
		c, ok := ev.(ContentToken)
		if !ok {
			t.Fatalf("unexpected event %T", ev)
		}
		text.WriteString(c.Text)
	}
	if got := text.String(); got != "Hello " {
		t.Fatalf("content = %q, want %q", got, "Hello ")
	}
	stop, ok := events[len(events)-1].(StopToken)
	if !ok {
		t.Fatalf("terminal event = %T", events[len(events)-1])
	}
	if stop.Reason != StopFinish {
		t.Fatalf("reason = %q, want %q", stop.Reason, StopFinish)
	}
}

func TestGenerateEmbed(t *testing.T) {
	w := startWorker(t, newFakeEngine())
	mustReload(t, w, "models/a.gguf")

	out := startSession(t, w, context.Background(), GenerateRequest{
		Prompt:    "some prompt",
		MaxTokens: 1,
		Embed:     true,
	})
	events := collect(t, out)
	if len(events) != 1 {
		t.Fatalf("events = %d, want exactly one Embed", len(events))
	}
	emb, ok := events[0].(EmbedToken)
	if !ok {
		t.Fatalf("event = %T, want EmbedToken", events[0])
	}
	// fake model embedding dimension
	if len(emb.Embedding) != 8 {
		t.Fatalf("embedding dim = %d, want 8", len(emb.Embedding))
	}
	if emb.Counter.PromptTokens != 2 {
		t.Fatalf("prompt_tokens = %d, want 2", emb.Counter.PromptTokens)
	}
	if emb.Counter.TotalTokens != 2 {
		t.Fatalf("total_tokens = %d, want 2", emb.Counter.TotalTokens)
	}
}

func TestReloadDrainsActiveSession(t *testing.T) {
	eng := newFakeEngine()
	eng.gate = make(chan struct{})
	w := startWorker(t, eng)
	mustReload(t, w, "models/a.gguf")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	out := startSession(t, w, ctx, GenerateRequest{Prompt: "p", MaxTokens: 1000})

	// Let the session produce a couple of tokens so it is mid-stream.
	terminal := make(chan Token, 1)
	go func() {
		var last Token
		for ev := range out {
			last = ev
		}
		terminal <- last
	}()
	eng.gate <- struct{}{}
	eng.gate <- struct{}{}

	reloadRes := make(chan error, 1)
	if err := w.Submit(ReloadCommand{Request: reloadRequest("models/b.gguf"), Result: reloadRes}); err != nil {
		t.Fatalf("submit reload: %v", err)
	}

	// Drain-then-swap: the reload must not resolve while the session is live.
	select {
	case err := <-reloadRes:
		t.Fatalf("reload resolved mid-session (err=%v)", err)
	case <-time.After(150 * time.Millisecond):
	}

	// The consumer departs; the session must terminate within one token and
	// only then may the reload resolve.
	cancel()
	select {
	case last := <-terminal:
		stop, ok := last.(StopToken)
		if !ok {
			t.Fatalf("terminal event = %T, want StopToken", last)
		}
		if stop.Reason != StopInterrupted {
			t.Fatalf("reason = %q, want %q", stop.Reason, StopInterrupted)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("session did not terminate after cancel")
	}
	select {
	case err := <-reloadRes:
		if err != nil {
			t.Fatalf("reload: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("reload did not resolve after drain")
	}

	info, err := w.RequestInfo(context.Background(), time.Second)
	if err != nil {
		t.Fatalf("RequestInfo: %v", err)
	}
	if info.Model.Name != "b.gguf" {
		t.Fatalf("model = %q, want b.gguf", info.Model.Name)
	}
}

func TestConcurrentSessions(t *testing.T) {
	w := startWorker(t, newFakeEngine())
	mustReload(t, w, "models/a.gguf")

	const n = 8
	outs := make([]<-chan Token, n)
	for i := range outs {
		outs[i] = startSession(t, w, context.Background(), GenerateRequest{Prompt: "p", MaxTokens: 16})
	}
	for i, out := range outs {
		events := collect(t, out)
		if _, ok := events[len(events)-1].(StopToken); !ok {
			t.Fatalf("session %d terminal = %T", i, events[len(events)-1])
		}
	}
}
