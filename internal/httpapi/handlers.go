// Package httpapi is the HTTP surface of the objective lifecycle service.
// It translates requests into engine calls and engine errors into status
// codes; all domain rules live behind the okr.Service interface.
package httpapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"time"

	"alignhq.org/internal/obs"
	"alignhq.org/internal/okr"
	"alignhq.org/internal/stream"
)

// ReadyProbe reports whether the service can take traffic. With no database
// configured it always passes.
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// API wires the engine and its collaborators into an http.Handler.
type API struct {
	mux        *http.ServeMux
	okr        okr.Service
	stream     *stream.Stream
	readyProbe ReadyProbe
	version    string
}

// Option configures the API.
type Option func(*API)

// WithStream enables the live event feed on /v1/events.
func WithStream(s *stream.Stream) Option {
	return func(a *API) { a.stream = s }
}

func New(svc okr.Service, rp ReadyProbe, version string, opts ...Option) *API {
	a := &API{
		mux:        http.NewServeMux(),
		okr:        svc,
		readyProbe: rp,
		version:    version,
	}
	for _, opt := range opts {
		opt(a)
	}

	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.HandleFunc("/v1/info", a.Info)
	a.mux.Handle("/metrics", obs.Handler())

	a.mux.HandleFunc("/v1/auth/token", a.handleAuthToken)

	a.mux.HandleFunc("/v1/objectives", a.handleObjectivesCollection)
	a.mux.HandleFunc("/v1/objectives/", a.handleObjectiveResource)

	a.mux.HandleFunc("/v1/events", a.StreamEvents)

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Handler returns the fully wrapped handler: metrics instrumentation on the
// outside, then security headers, CORS, request ids, and authentication.
func (a *API) Handler() http.Handler {
	return obs.Instrument(SecurityHeaders(CORS(RequestID(a.withAuth(a.mux)))))
}

// --- Handlers ---

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "alignhq-api",
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		obs.SetReady(false)
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	obs.SetReady(true)
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "alignhq-api",
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
