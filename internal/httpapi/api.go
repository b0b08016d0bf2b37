package httpapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"votaciones.org/internal/obs"
	"votaciones.org/internal/stream"
	"votaciones.org/internal/votacion"
)

// ReadyProbe pings the backing database when one is configured.
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// API is the HTTP layer over the coordinator and the store.
type API struct {
	mux        *http.ServeMux
	readyProbe ReadyProbe
	version    string

	svc    *votacion.Coordinator
	store  votacion.Store
	stream *stream.Stream

	rateBurst  int
	ratePerSec int
	maxBody    int64
}

func New(rp ReadyProbe, version string, svc *votacion.Coordinator, store votacion.Store, st *stream.Stream) *API {
	a := &API{
		mux:        http.NewServeMux(),
		readyProbe: rp,
		version:    version,
		svc:        svc,
		store:      store,
		stream:     st,
		rateBurst:  30,
		ratePerSec: 15,
		maxBody:    10 << 20, // roster uploads
	}

	// health/ready/info
	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.HandleFunc("/api/info", a.Info)

	// Prometheus metrics
	a.mux.Handle("/metrics", obs.Handler())

	// sessions
	a.mux.HandleFunc("/api/auth/login", a.handleLogin)

	// polling-table protocol
	a.mux.HandleFunc("/api/votos/habilitar", a.handleHabilitar)
	a.mux.HandleFunc("/api/votos/estado/", a.handleEstado)
	a.mux.HandleFunc("/api/votos/registrar", a.handleRegistrar)
	a.mux.HandleFunc("/api/votos/stream/", a.Stream)

	// ballot for the urn screen
	a.mux.HandleFunc("/api/candidatos", a.handleCandidatos)

	// administration
	a.mux.HandleFunc("/api/admin/config", a.requireAdmin(a.handleConfig))
	a.mux.HandleFunc("/api/admin/candidatos", a.requireAdmin(a.handleCandidatosAdmin))
	a.mux.HandleFunc("/api/admin/candidatos/", a.requireAdmin(a.handleCandidatoResource))
	a.mux.HandleFunc("/api/admin/acta", a.requireAdmin(a.handleActa))
	a.mux.HandleFunc("/api/admin/mesas/reset", a.requireAdmin(a.handleMesaReset))
	a.mux.HandleFunc("/api/estudiantes/cargar", a.requireAdmin(a.handleCargarPadron))

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Handler returns the full middleware chain around the mux.
func (a *API) Handler() http.Handler {
	h := a.withAuth(a.mux)
	h = RateLimit(h, a.rateBurst, a.ratePerSec)
	h = MaxBodyBytes(h, a.maxBody)
	h = CORS(h)
	h = SecurityHeaders(h)
	h = Logging(h)
	h = RequestID(h)
	return obs.Instrument(h)
}

// --- Handlers ---

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "votaciones-api",
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "votaciones-api",
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

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	payload := map[string]any{
		"error": msg,
	}
	if rid := RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, code, payload)
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	reader := http.MaxBytesReader(w, r.Body, 1<<20)
	defer reader.Close()
	dec := json.NewDecoder(reader)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected data after JSON body")
		}
		return err
	}
	return nil
}

// handleVotacionError maps domain errors to HTTP statuses. Messages stay
// user-presentable: the juror reads them straight off the screen.
func handleVotacionError(w http.ResponseWriter, r *http.Request, err error) {
	var mesaErr *votacion.MesaEquivocadaError
	switch {
	case errors.As(err, &mesaErr):
		writeError(w, r, http.StatusForbidden, mesaErr.Error())
	case errors.Is(err, votacion.ErrVentanaCerrada):
		writeError(w, r, http.StatusForbidden, err.Error())
	case errors.Is(err, votacion.ErrNoAutorizado):
		writeError(w, r, http.StatusForbidden, err.Error())
	case errors.Is(err, votacion.ErrEstudianteNoEncontrado):
		writeError(w, r, http.StatusNotFound, err.Error())
	case errors.Is(err, votacion.ErrYaVoto), errors.Is(err, votacion.ErrVotoDuplicado):
		writeError(w, r, http.StatusConflict, err.Error())
	default:
		writeError(w, r, http.StatusInternalServerError, "error interno")
	}
}
