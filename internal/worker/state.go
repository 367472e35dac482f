package worker

import (
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"inferd/internal/engine"
	"inferd/pkg/types"
)

// initState is one registered initial state. The registry lives and dies with
// the owning model instance; ids are never reused across reloads.
type initState struct {
	id        string
	name      string
	path      string
	state     engine.State
	isDefault bool
}

// registerState loads state tensor data through the engine and registers it
// under a fresh opaque id. The path has already passed the sandbox.
func (w *Worker) registerState(spec types.StateSpec) error {
	st, err := w.model.LoadState(spec.Path)
	if err != nil {
		return modelLoadError{path: spec.Path, err: err}
	}
	name := spec.Name
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(spec.Path), filepath.Ext(spec.Path))
	}
	w.states = append(w.states, initState{
		id:        uuid.NewString(),
		name:      name,
		path:      spec.Path,
		state:     st,
		isDefault: spec.Default,
	})
	w.log.Info().Str("name", name).Str("path", spec.Path).Msg("initial state registered")
	return nil
}

func (w *Worker) findState(id string) (initState, bool) {
	for _, s := range w.states {
		if s.id == id {
			return s, true
		}
	}
	return initState{}, false
}

// defaultState returns the state flagged as default, if any.
func (w *Worker) defaultState() (initState, bool) {
	for _, s := range w.states {
		if s.isDefault {
			return s, true
		}
	}
	return initState{}, false
}

func (w *Worker) releaseStates() {
	for _, s := range w.states {
		if err := s.state.Close(); err != nil {
			w.log.Warn().Err(err).Str("name", s.name).Msg("state close")
		}
	}
	w.states = nil
}
