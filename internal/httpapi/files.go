package httpapi

import (
	"io"
	"net/http"
	"os"

	"inferd/internal/common/fsutil"

	"inferd/pkg/types"
)

// handleDir godoc
// @Summary  List a directory inside the sandbox
// @Accept   json
// @Produce  json
// @Param    request body types.DirRequest true "directory request"
// @Success  200 {array} types.FileInfo
// @Failure  404 {object} types.ErrorResponse
// @Router   /api/files/dir [post]
func (s *Server) handleDir(w http.ResponseWriter, r *http.Request) {
	var req types.DirRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	dir, err := fsutil.BuildPath(s.root, req.Path)
	if err != nil {
		writeWorkerError(w, err)
		return
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		// Missing and rejected look the same from outside.
		writeJSONError(w, http.StatusNotFound, "not found")
		return
	}
	files := make([]types.FileInfo, 0, len(entries))
	for _, e := range entries {
		fi := types.FileInfo{Name: e.Name(), IsDir: e.IsDir()}
		if info, err := e.Info(); err == nil {
			fi.Size = info.Size()
		}
		files = append(files, fi)
	}
	writeJSON(w, files)
}

// handleConfigLoad godoc
// @Summary  Read the daemon config file
// @Produce  plain
// @Success  200 {string} string
// @Failure  404 {object} types.ErrorResponse
// @Router   /api/files/config/load [post]
func (s *Server) handleConfigLoad(w http.ResponseWriter, r *http.Request) {
	if s.cfgPath == "" {
		writeJSONError(w, http.StatusNotFound, "not found")
		return
	}
	b, err := os.ReadFile(s.cfgPath)
	if err != nil {
		writeJSONError(w, http.StatusNotFound, "not found")
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write(b)
}

// handleConfigSave godoc
// @Summary  Overwrite the daemon config file with the request body
// @Accept   plain
// @Produce  json
// @Success  200 {object} map[string]bool
// @Failure  404 {object} types.ErrorResponse
// @Router   /api/files/config/save [post]
func (s *Server) handleConfigSave(w http.ResponseWriter, r *http.Request) {
	if s.cfgPath == "" {
		writeJSONError(w, http.StatusNotFound, "not found")
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "body too large")
		return
	}
	if err := os.WriteFile(s.cfgPath, body, 0o644); err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, map[string]bool{"ok": true})
}
