package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	"votaciones.org/internal/audit"
	"votaciones.org/internal/auth"
	"votaciones.org/internal/obs"
	"votaciones.org/internal/votacion"
)

type habilitarRequest struct {
	Documento string `json:"documento"`
	Usuario   string `json:"usuario,omitempty"`
}

type habilitarResponse struct {
	Success bool   `json:"success"`
	Nombre  string `json:"nombre"`
	Mensaje string `json:"mensaje"`
	NumMesa int    `json:"num_mesa"`
}

type registrarRequest struct {
	Documento string `json:"documento"`
	Personero string `json:"candidatoPersonero"`
	Contralor string `json:"candidatoContralor"`
	NumMesa   int    `json:"numMesa,omitempty"`
}

func (a *API) handleHabilitar(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	var req habilitarRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Documento) == "" {
		writeError(w, r, http.StatusBadRequest, "documento es requerido")
		return
	}

	// Identity comes from the token; a usuario field in the body is accepted
	// for older juror consoles but must agree with the session.
	usuario, _ := auth.UserIDFromContext(r.Context())
	if body := strings.TrimSpace(req.Usuario); body != "" {
		if usuario != "" && body != usuario {
			writeError(w, r, http.StatusForbidden, votacion.ErrNoAutorizado.Error())
			return
		}
		usuario = body
	}

	hab, err := a.svc.Habilitar(r.Context(), req.Documento, usuario)
	if err != nil {
		handleVotacionError(w, r, err)
		return
	}

	obs.MesaHabilitada()
	_ = audit.LogEvent(r.Context(), "votos.habilitar", map[string]any{
		"documento": hab.Documento,
		"num_mesa":  hab.NumMesa,
	})

	writeJSON(w, http.StatusOK, habilitarResponse{
		Success: true,
		Nombre:  hab.Nombre,
		Mensaje: "Estudiante habilitado para votar",
		NumMesa: hab.NumMesa,
	})
}

func (a *API) handleEstado(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}

	numMesa, err := mesaFromPath(r.URL.Path, "/api/votos/estado/")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "número de mesa inválido")
		return
	}

	detalle, err := a.svc.Estado(r.Context(), numMesa)
	if err != nil {
		handleVotacionError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, detalle)
}

func (a *API) handleRegistrar(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	var req registrarRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Documento) == "" {
		writeError(w, r, http.StatusBadRequest, "documento es requerido")
		return
	}
	if strings.TrimSpace(req.Personero) == "" || strings.TrimSpace(req.Contralor) == "" {
		writeError(w, r, http.StatusBadRequest, "debe seleccionar ambos candidatos")
		return
	}

	// The urn terminal authenticates with the table's juror token; a table
	// number in the body may not point at someone else's mesa.
	numMesa := req.NumMesa
	if tokenMesa, ok := auth.MesaFromContext(r.Context()); ok {
		if numMesa == 0 {
			numMesa = tokenMesa
		} else if numMesa != tokenMesa {
			writeError(w, r, http.StatusForbidden, votacion.ErrNoAutorizado.Error())
			return
		}
	}

	err := a.svc.RegistrarVoto(r.Context(), votacion.RegistroVoto{
		Documento: req.Documento,
		Personero: req.Personero,
		Contralor: req.Contralor,
		NumMesa:   numMesa,
	})
	if err != nil {
		handleVotacionError(w, r, err)
		return
	}

	obs.VotoRegistrado()
	// The audit entry carries the document, never the chosen candidates:
	// ballots stay secret outside the votos table.
	_ = audit.LogEvent(r.Context(), "votos.registrar", map[string]any{
		"documento": strings.TrimSpace(req.Documento),
		"num_mesa":  numMesa,
	})

	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (a *API) handleCandidatos(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	candidatos, err := a.store.Candidatos(r.Context())
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "error interno")
		return
	}
	if candidatos == nil {
		candidatos = []votacion.Candidato{}
	}
	writeJSON(w, http.StatusOK, candidatos)
}

func mesaFromPath(path, prefix string) (int, error) {
	raw := strings.TrimSuffix(strings.TrimPrefix(path, prefix), "/")
	numMesa, err := strconv.Atoi(raw)
	if err != nil {
		return 0, err
	}
	if numMesa <= 0 {
		return 0, strconv.ErrRange
	}
	return numMesa, nil
}
