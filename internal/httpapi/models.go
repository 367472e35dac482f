package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"inferd/internal/common/fsutil"
	"inferd/internal/engine"
	"inferd/internal/registry"
	"inferd/internal/worker"

	"inferd/pkg/types"
)

// unloadPollInterval paces TryRequestInfo polling while waiting for the
// worker to report the empty state.
const unloadPollInterval = 10 * time.Millisecond

// InfoResponse is the payload of GET /api/models/info. Pointers stay nil while
// no model is loaded.
type InfoResponse struct {
	Reload *types.ReloadRequest `json:"reload"`
	Model  *engine.ModelInfo    `json:"model"`
	States []types.StateInfo    `json:"states"`
}

func infoResponse(info worker.RuntimeInfo) InfoResponse {
	resp := InfoResponse{
		Reload: &info.Reload,
		Model:  &info.Model,
		States: info.States,
	}
	if resp.States == nil {
		resp.States = []types.StateInfo{}
	}
	return resp
}

// handleInfo godoc
// @Summary  Current runtime info
// @Produce  json
// @Success  200 {object} httpapi.InfoResponse
// @Router   /api/models/info [get]
func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	info, err := s.rt.RequestInfo(r.Context(), infoTimeout)
	switch {
	case err == nil, errors.Is(err, worker.ErrInfoStale):
		writeJSON(w, infoResponse(info))
	case errors.Is(err, worker.ErrNoModelLoaded):
		writeJSON(w, InfoResponse{States: []types.StateInfo{}})
	default:
		writeWorkerError(w, err)
	}
}

// handleStateStream godoc
// @Summary  Runtime info as a live SSE stream
// @Produce  text/event-stream
// @Success  200
// @Router   /api/models/state [get]
func (s *Server) handleStateStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSONError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	out := make(chan worker.RuntimeInfo, 1)
	go s.rt.RequestInfoStream(r.Context(), worker.DefaultInfoInterval, out)
	for info := range out {
		if err := writeSSE(w, infoResponse(info)); err != nil {
			return
		}
		flusher.Flush()
	}
}

// handleModelList godoc
// @Summary  List model and prefab files under the models root
// @Produce  json
// @Success  200 {object} map[string][]types.FileInfo
// @Router   /api/models/list [get]
func (s *Server) handleModelList(w http.ResponseWriter, r *http.Request) {
	files, err := registry.ScanModels(s.root)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, map[string]any{"models": files})
}

// handleAdapters godoc
// @Summary  List adapter files under the models root
// @Produce  json
// @Success  200 {object} map[string][]types.FileInfo
// @Router   /api/adapters [get]
func (s *Server) handleAdapters(w http.ResponseWriter, r *http.Request) {
	files, err := registry.ScanAdapters(s.root)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, map[string]any{"adapters": files})
}

// sandboxReload resolves every path field of a reload request against the
// sandbox root, rewriting them to absolute paths.
func (s *Server) sandboxReload(req *types.ReloadRequest) error {
	p, err := fsutil.BuildPath(s.root, req.ModelPath)
	if err != nil {
		return err
	}
	req.ModelPath = p
	for i := range req.Lora {
		if req.Lora[i].Path, err = fsutil.BuildPath(s.root, req.Lora[i].Path); err != nil {
			return err
		}
	}
	for i := range req.State {
		if req.State[i].Path, err = fsutil.BuildPath(s.root, req.State[i].Path); err != nil {
			return err
		}
	}
	if req.TokenizerPath != "" {
		if req.TokenizerPath, err = fsutil.BuildPath(s.root, req.TokenizerPath); err != nil {
			return err
		}
	}
	return nil
}

// handleLoad godoc
// @Summary  Load or replace the model
// @Accept   json
// @Produce  json
// @Param    request body types.ReloadRequest true "reload request"
// @Success  200 {object} map[string]bool
// @Failure  404 {object} types.ErrorResponse
// @Failure  500 {object} types.ErrorResponse
// @Router   /api/models/load [post]
func (s *Server) handleLoad(w http.ResponseWriter, r *http.Request) {
	var req types.ReloadRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.ModelPath == "" {
		writeJSONError(w, http.StatusBadRequest, "model_path is required")
		return
	}
	if err := s.sandboxReload(&req); err != nil {
		writeWorkerError(w, err)
		return
	}
	res := make(chan error, 1)
	if err := s.rt.Submit(worker.ReloadCommand{Request: &req, Result: res}); err != nil {
		writeWorkerError(w, err)
		return
	}
	select {
	case err, ok := <-res:
		if !ok {
			writeJSONError(w, http.StatusInternalServerError, "load rejected")
			return
		}
		if err != nil {
			writeWorkerError(w, err)
			return
		}
	case <-r.Context().Done():
		return
	}
	writeJSON(w, map[string]bool{"ok": true})
}

// handleUnload godoc
// @Summary  Unload the model
// @Produce  json
// @Success  200 {object} map[string]bool
// @Router   /api/models/unload [get]
func (s *Server) handleUnload(w http.ResponseWriter, r *http.Request) {
	if err := s.rt.Submit(worker.UnloadCommand{}); err != nil {
		writeWorkerError(w, err)
		return
	}
	// Unload is fire-and-forget; completion is observed when the info query
	// starts failing. FIFO ordering usually makes the first poll conclusive.
	ctx := r.Context()
	deadline := time.After(30 * time.Second)
	for {
		_, err := s.rt.TryRequestInfo(ctx)
		if errors.Is(err, worker.ErrNoModelLoaded) || errors.Is(err, worker.ErrWorkerClosed) {
			writeJSON(w, map[string]bool{"ok": true})
			return
		}
		if ctx.Err() != nil {
			return
		}
		select {
		case <-time.After(unloadPollInterval):
		case <-ctx.Done():
			return
		case <-deadline:
			writeJSONError(w, http.StatusInternalServerError, "unload did not complete")
			return
		}
	}
}

// handleStateLoad godoc
// @Summary  Register a named initial state
// @Accept   json
// @Produce  json
// @Param    request body types.StateSpec true "state spec"
// @Success  200 {object} map[string]bool
// @Failure  404 {object} types.ErrorResponse
// @Router   /api/models/state/load [post]
func (s *Server) handleStateLoad(w http.ResponseWriter, r *http.Request) {
	var req types.StateSpec
	if !decodeJSON(w, r, &req) {
		return
	}
	p, err := fsutil.BuildPath(s.root, req.Path)
	if err != nil {
		writeWorkerError(w, err)
		return
	}
	req.Path = p
	s.roundTrip(w, r, func(res chan<- error) worker.Command {
		return worker.StateLoadCommand{Request: req, Result: res}
	})
}

// handleSave godoc
// @Summary  Save the loaded model plus merged adapters as a prefab
// @Accept   json
// @Produce  json
// @Param    request body types.SaveRequest true "save request"
// @Success  200 {object} map[string]bool
// @Failure  404 {object} types.ErrorResponse
// @Router   /api/models/save [post]
func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	var req types.SaveRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	p, err := fsutil.BuildPath(s.root, req.Path)
	if err != nil {
		writeWorkerError(w, err)
		return
	}
	req.Path = p
	s.roundTrip(w, r, func(res chan<- error) worker.Command {
		return worker.SaveCommand{Request: req, Result: res}
	})
}

// roundTrip submits a command with an error reply and maps the outcome.
func (s *Server) roundTrip(w http.ResponseWriter, r *http.Request, build func(chan<- error) worker.Command) {
	res := make(chan error, 1)
	if err := s.rt.Submit(build(res)); err != nil {
		writeWorkerError(w, err)
		return
	}
	select {
	case err, ok := <-res:
		if !ok {
			writeJSONError(w, http.StatusInternalServerError, "command rejected")
			return
		}
		if err != nil {
			writeWorkerError(w, err)
			return
		}
	case <-r.Context().Done():
		return
	}
	writeJSON(w, map[string]bool{"ok": true})
}

// writeSSE writes one server-sent event carrying v as JSON.
func writeSSE(w http.ResponseWriter, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", b)
	return err
}
