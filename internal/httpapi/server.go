// Package httpapi exposes the native model-management API, the
// OpenAI-compatible endpoints, and the sandboxed files API over chi. Handlers
// never touch the model directly; everything goes through the worker's
// command queue.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"inferd/internal/worker"
)

// infoTimeout bounds how long synchronous handlers wait for a runtime
// snapshot before falling back to the cached one.
const infoTimeout = 5 * time.Second

// Runtime is the worker surface the HTTP layer depends on.
type Runtime interface {
	Submit(cmd worker.Command) error
	RequestInfo(ctx context.Context, timeout time.Duration) (worker.RuntimeInfo, error)
	TryRequestInfo(ctx context.Context) (worker.RuntimeInfo, error)
	RequestInfoStream(ctx context.Context, interval time.Duration, out chan worker.RuntimeInfo)
}

// Server holds the handler dependencies: the worker, the sandbox root every
// inbound path is resolved against, and the config file served by the files API.
type Server struct {
	rt      Runtime
	root    string
	cfgPath string
	log     zerolog.Logger
}

// NewServer wires the handlers to a runtime. root is the models sandbox root;
// cfgPath may be empty when no config file is in play.
func NewServer(rt Runtime, root, cfgPath string, log zerolog.Logger) *Server {
	return &Server{
		rt:      rt,
		root:    root,
		cfgPath: cfgPath,
		log:     log.With().Str("component", "httpapi").Logger(),
	}
}

// Routes builds the full router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	r.Use(MetricsMiddleware)
	if corsEnabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsAllowedOrigins,
			AllowedMethods: corsAllowedMethods,
			AllowedHeaders: corsAllowedHeaders,
		}))
	}
	// Security headers
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})

	r.Route("/api", func(api chi.Router) {
		api.Route("/models", func(m chi.Router) {
			m.Get("/info", s.handleInfo)
			m.Get("/state", s.handleStateStream)
			m.Get("/list", s.handleModelList)
			m.Post("/load", s.handleLoad)
			m.Get("/unload", s.handleUnload)
			m.Post("/state/load", s.handleStateLoad)
			m.Post("/save", s.handleSave)
		})
		api.Get("/adapters", s.handleAdapters)
		api.Route("/oai", s.oaiRoutes)
		api.Route("/files", func(f chi.Router) {
			f.Post("/dir", s.handleDir)
			f.Post("/ls", s.handleDir)
			f.Post("/config/load", s.handleConfigLoad)
			f.Post("/config/save", s.handleConfigSave)
		})
	})
	// OpenAI clients expect the bare /v1 prefix.
	r.Route("/v1", s.oaiRoutes)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	MountSwagger(r)

	return r
}

// decodeJSON enforces the content type and body limit shared by all JSON
// endpoints, reporting malformed input as 400.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	ct := r.Header.Get("Content-Type")
	if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return false
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}
