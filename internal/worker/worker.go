package worker

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"inferd/internal/engine"
	"inferd/pkg/types"
)

// Worker is the single consumer of the command queue and the only writer of
// model state. Everything below the "owned by the run goroutine" comment is
// touched exclusively from Run; no locking is needed beyond that discipline.
type Worker struct {
	eng  engine.Engine
	log  zerolog.Logger
	q    *queue
	done chan struct{}

	// lastInfo caches the most recent snapshot for timeout fallbacks.
	lastInfo atomic.Pointer[RuntimeInfo]

	// Owned by the run goroutine.
	model    engine.Model
	reload   types.ReloadRequest
	states   []initState
	sessions sync.WaitGroup
}

// New constructs a Worker around an engine. Call Run on its own goroutine to
// start draining commands.
func New(eng engine.Engine, log zerolog.Logger) *Worker {
	return &Worker{
		eng:  eng,
		log:  log.With().Str("component", "worker").Logger(),
		q:    newQueue(),
		done: make(chan struct{}),
	}
}

// Submit enqueues a command. It never blocks; commands are processed in
// strict arrival order.
func (w *Worker) Submit(cmd Command) error {
	if !w.q.push(cmd) {
		return ErrWorkerClosed
	}
	return nil
}

// Close stops accepting commands. Already queued commands are still processed;
// Run returns once the queue drains and all sessions have finished.
func (w *Worker) Close() {
	w.q.close()
}

// Done is closed when the run loop has exited.
func (w *Worker) Done() <-chan struct{} { return w.done }

// Run drains the command queue until Close. It must be called exactly once.
func (w *Worker) Run() {
	defer close(w.done)
	w.log.Info().Msg("model worker started")
	for {
		cmd, ok := w.q.pop()
		if !ok {
			break
		}
		w.dispatch(cmd)
	}
	w.sessions.Wait()
	w.dropModel()
	w.log.Info().Msg("model worker stopped")
}

// dispatch runs one command, recovering from panics so a single bad request
// can never take the worker down. On panic the command's reply channel is
// closed, which callers observe as a rejection rather than a hang.
func (w *Worker) dispatch(cmd Command) {
	defer func() {
		if r := recover(); r != nil {
			w.log.Error().Interface("panic", r).Msgf("command %T panicked", cmd)
			commandsTotal.WithLabelValues(kindOf(cmd), "panic").Inc()
			closeReply(cmd)
		}
	}()
	switch c := cmd.(type) {
	case ReloadCommand:
		w.handleReload(c)
	case UnloadCommand:
		w.handleUnload()
	case GenerateCommand:
		w.handleGenerate(c)
	case StateLoadCommand:
		w.handleStateLoad(c)
	case SaveCommand:
		w.handleSave(c)
	case QueryInfoCommand:
		w.handleQueryInfo(c)
	default:
		w.log.Error().Msgf("unknown command %T", cmd)
	}
}

func (w *Worker) handleReload(c ReloadCommand) {
	start := time.Now()
	req := c.Request
	w.log.Info().Str("model", req.ModelPath).Msg("reload requested")

	spec := engine.LoadSpec{
		ModelPath:      req.ModelPath,
		Quant:          req.Quant,
		Precision:      req.Precision,
		TokenChunkSize: req.TokenChunkSize,
		MaxBatch:       req.MaxBatch,
		TokenizerPath:  req.TokenizerPath,
	}
	for _, l := range req.Lora {
		spec.Adapters = append(spec.Adapters, engine.AdapterSpec{Path: l.Path, Alpha: l.Alpha})
	}

	// Load before draining so a failure leaves the prior model untouched and
	// in-flight sessions keep streaming while the replacement comes up.
	next, err := w.eng.Load(context.Background(), spec)
	if err != nil {
		w.log.Error().Err(err).Str("model", req.ModelPath).Msg("reload failed")
		commandsTotal.WithLabelValues("reload", "error").Inc()
		reply(c.Result, modelLoadError{path: req.ModelPath, err: err})
		return
	}

	// Drain-then-swap: no session may observe the swap.
	w.sessions.Wait()
	w.dropModel()
	w.model = next
	w.reload = *req
	for _, s := range req.State {
		if err := w.registerState(s); err != nil {
			w.log.Warn().Err(err).Str("state", s.Path).Msg("initial state skipped")
		}
	}
	w.publishInfo()

	reloadDuration.Observe(time.Since(start).Seconds())
	commandsTotal.WithLabelValues("reload", "ok").Inc()
	w.log.Info().Str("model", req.ModelPath).Dur("dur", time.Since(start)).Msg("reload complete")
	reply(c.Result, nil)
}

func (w *Worker) handleUnload() {
	w.log.Info().Msg("unload requested")
	w.sessions.Wait()
	w.dropModel()
	commandsTotal.WithLabelValues("unload", "ok").Inc()
	w.log.Info().Msg("model unloaded")
}

func (w *Worker) handleGenerate(c GenerateCommand) {
	if w.model == nil {
		commandsTotal.WithLabelValues("generate", "no_model").Inc()
		emitAndClose(c.Output, ErrorToken{Err: ErrNoModelLoaded})
		return
	}
	var initial engine.State
	if c.Request.StateID != "" {
		st, ok := w.findState(c.Request.StateID)
		if !ok {
			commandsTotal.WithLabelValues("generate", "bad_state").Inc()
			emitAndClose(c.Output, ErrorToken{Err: fmt.Errorf("unknown state id %q", c.Request.StateID)})
			return
		}
		initial = st.state
	} else if st, ok := w.defaultState(); ok {
		initial = st.state
	}
	tok := c.Tokenizer
	if tok == nil {
		tok = w.model.Tokenizer()
	}
	s := &session{
		ctx:     c.Context,
		log:     w.log,
		model:   w.model,
		tok:     tok,
		req:     c.Request,
		out:     c.Output,
		initial: initial,
	}
	// Registering before returning to the loop is what sequences a later
	// reload/unload behind this session.
	w.sessions.Add(1)
	activeSessions.Inc()
	commandsTotal.WithLabelValues("generate", "ok").Inc()
	go func() {
		defer w.sessions.Done()
		defer activeSessions.Dec()
		s.run()
	}()
}

func (w *Worker) handleStateLoad(c StateLoadCommand) {
	if w.model == nil {
		commandsTotal.WithLabelValues("state_load", "no_model").Inc()
		reply(c.Result, ErrNoModelLoaded)
		return
	}
	if err := w.registerState(c.Request); err != nil {
		commandsTotal.WithLabelValues("state_load", "error").Inc()
		reply(c.Result, err)
		return
	}
	w.publishInfo()
	commandsTotal.WithLabelValues("state_load", "ok").Inc()
	reply(c.Result, nil)
}

func (w *Worker) handleSave(c SaveCommand) {
	if w.model == nil {
		commandsTotal.WithLabelValues("save", "no_model").Inc()
		reply(c.Result, ErrNoModelLoaded)
		return
	}
	w.log.Info().Str("path", c.Request.Path).Msg("saving prefab")
	if err := w.model.Save(c.Request.Path); err != nil {
		commandsTotal.WithLabelValues("save", "error").Inc()
		reply(c.Result, modelLoadError{path: c.Request.Path, err: err})
		return
	}
	commandsTotal.WithLabelValues("save", "ok").Inc()
	reply(c.Result, nil)
}

func (w *Worker) handleQueryInfo(c QueryInfoCommand) {
	if w.model == nil {
		close(c.Result)
		return
	}
	info := w.snapshot()
	select {
	case c.Result <- info:
	default:
		// consumer vanished or passed an unbuffered channel; never block the worker
	}
}

// snapshot builds a fresh immutable RuntimeInfo and refreshes the cache.
func (w *Worker) snapshot() RuntimeInfo {
	states := make([]types.StateInfo, 0, len(w.states))
	for _, s := range w.states {
		states = append(states, types.StateInfo{ID: s.id, Name: s.name})
	}
	info := RuntimeInfo{
		Reload:    w.reload,
		Model:     w.model.Info(),
		States:    states,
		Tokenizer: w.model.Tokenizer(),
	}
	w.lastInfo.Store(&info)
	return info
}

func (w *Worker) publishInfo() {
	if w.model != nil {
		w.snapshot()
	}
}

// dropModel frees the model instance and every state it owns. The cached
// snapshot dies with the model; stale-info fallbacks must never report a
// model that is already gone.
func (w *Worker) dropModel() {
	w.releaseStates()
	w.lastInfo.Store(nil)
	if w.model != nil {
		if err := w.model.Close(); err != nil {
			w.log.Warn().Err(err).Msg("model close")
		}
		w.model = nil
		w.reload = types.ReloadRequest{}
	}
}

// reply delivers a command result without ever blocking the worker. Callers
// pass buffered channels; an abandoned channel just drops the reply.
func reply(ch chan<- error, err error) {
	if ch == nil {
		return
	}
	select {
	case ch <- err:
	default:
	}
}

// closeReply closes whatever reply channel a command carries, so waiting
// callers fail fast instead of hanging after a worker-side panic. Commands
// may arrive with a nil channel; closing nil would panic inside the recovery
// path and unwind Run.
func closeReply(cmd Command) {
	switch c := cmd.(type) {
	case ReloadCommand:
		closeErrChan(c.Result)
	case StateLoadCommand:
		closeErrChan(c.Result)
	case SaveCommand:
		closeErrChan(c.Result)
	case QueryInfoCommand:
		if c.Result != nil {
			close(c.Result)
		}
	case GenerateCommand:
		emitAndClose(c.Output, ErrorToken{Err: fmt.Errorf("generate rejected")})
	}
}

func closeErrChan(ch chan<- error) {
	if ch != nil {
		close(ch)
	}
}

func emitAndClose(out chan<- Token, t Token) {
	if out == nil {
		return
	}
	select {
	case out <- t:
	default:
	}
	close(out)
}

func kindOf(cmd Command) string {
	switch cmd.(type) {
	case ReloadCommand:
		return "reload"
	case UnloadCommand:
		return "unload"
	case GenerateCommand:
		return "generate"
	case StateLoadCommand:
		return "state_load"
	case SaveCommand:
		return "save"
	case QueryInfoCommand:
		return "query_info"
	}
	return "unknown"
}
