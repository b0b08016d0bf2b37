package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	"votaciones.org/internal/audit"
	"votaciones.org/internal/votacion"
)

type configRequest struct {
	Habilitada bool   `json:"votacion_habilitada"`
	Fecha      string `json:"fecha"`
	HoraInicio string `json:"hora_inicio"`
	HoraFin    string `json:"hora_fin"`
}

type candidatoRequest struct {
	Nombre string `json:"nombre"`
	Cargo  string `json:"cargo"`
	Imagen string `json:"imagen,omitempty"`
}

type mesaResetRequest struct {
	NumMesa int `json:"num_mesa"`
}

func (a *API) handleConfig(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		cfg, err := a.store.Configuracion(r.Context())
		if err != nil {
			writeError(w, r, http.StatusInternalServerError, "error interno")
			return
		}
		writeJSON(w, http.StatusOK, cfg)
	case http.MethodPost:
		var req configRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		if err := validarHorario(req.Fecha, req.HoraInicio, req.HoraFin); err != "" {
			writeError(w, r, http.StatusBadRequest, err)
			return
		}
		cfg := votacion.ConfiguracionVotacion{
			Habilitada: req.Habilitada,
			Fecha:      strings.TrimSpace(req.Fecha),
			HoraInicio: strings.TrimSpace(req.HoraInicio),
			HoraFin:    strings.TrimSpace(req.HoraFin),
		}
		if err := a.store.GuardarConfiguracion(r.Context(), cfg); err != nil {
			writeError(w, r, http.StatusInternalServerError, "error interno")
			return
		}
		_ = audit.LogEvent(r.Context(), "admin.config.update", map[string]any{
			"votacion_habilitada": cfg.Habilitada,
			"fecha":               cfg.Fecha,
			"hora_inicio":         cfg.HoraInicio,
			"hora_fin":            cfg.HoraFin,
		})
		writeJSON(w, http.StatusOK, cfg)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func validarHorario(fecha, inicio, fin string) string {
	fecha = strings.TrimSpace(fecha)
	inicio = strings.TrimSpace(inicio)
	fin = strings.TrimSpace(fin)
	if fecha != "" && !esFecha(fecha) {
		return "fecha debe tener formato AAAA-MM-DD"
	}
	if inicio != "" && !esHora(inicio) {
		return "hora_inicio debe tener formato HH:MM"
	}
	if fin != "" && !esHora(fin) {
		return "hora_fin debe tener formato HH:MM"
	}
	if inicio != "" && fin != "" && fin < inicio {
		return "hora_fin debe ser posterior a hora_inicio"
	}
	return ""
}

func esFecha(s string) bool {
	if len(s) != 10 || s[4] != '-' || s[7] != '-' {
		return false
	}
	for i, r := range s {
		if i == 4 || i == 7 {
			continue
		}
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func esHora(s string) bool {
	if len(s) != 5 || s[2] != ':' {
		return false
	}
	for i, r := range s {
		if i == 2 {
			continue
		}
		if r < '0' || r > '9' {
			return false
		}
	}
	return s <= "23:59"
}

func (a *API) handleCandidatosAdmin(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		a.handleCandidatos(w, r)
	case http.MethodPost:
		var req candidatoRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		nombre := strings.TrimSpace(req.Nombre)
		cargo := strings.TrimSpace(req.Cargo)
		if nombre == "" {
			writeError(w, r, http.StatusBadRequest, "nombre es requerido")
			return
		}
		if cargo != votacion.CargoPersonero && cargo != votacion.CargoContralor {
			writeError(w, r, http.StatusBadRequest, "cargo inválido")
			return
		}
		c, err := a.store.CrearCandidato(r.Context(), votacion.Candidato{
			Nombre: nombre,
			Cargo:  cargo,
			Imagen: strings.TrimSpace(req.Imagen),
		})
		if err != nil {
			writeError(w, r, http.StatusInternalServerError, "error interno")
			return
		}
		_ = audit.LogEvent(r.Context(), "admin.candidato.create", map[string]any{
			"id":     c.ID,
			"nombre": c.Nombre,
			"cargo":  c.Cargo,
		})
		writeJSON(w, http.StatusCreated, c)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleCandidatoResource(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		methodNotAllowed(w, r, http.MethodDelete)
		return
	}
	raw := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/api/admin/candidatos/"), "/")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		writeError(w, r, http.StatusBadRequest, "id inválido")
		return
	}
	if err := a.store.EliminarCandidato(r.Context(), id); err != nil {
		writeError(w, r, http.StatusInternalServerError, "error interno")
		return
	}
	_ = audit.LogEvent(r.Context(), "admin.candidato.delete", map[string]any{"id": id})
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (a *API) handleActa(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	acta, err := a.store.Resultados(r.Context())
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "error interno")
		return
	}
	writeJSON(w, http.StatusOK, acta)
}

// handleMesaReset clears a table armed for a student who walked away without
// voting. The document keeps its right to vote.
func (a *API) handleMesaReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req mesaResetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.NumMesa <= 0 {
		writeError(w, r, http.StatusBadRequest, "número de mesa inválido")
		return
	}
	if err := a.svc.LiberarMesa(r.Context(), req.NumMesa); err != nil {
		handleVotacionError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "admin.mesa.reset", map[string]any{"num_mesa": req.NumMesa})
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}
