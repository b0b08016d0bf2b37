package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"votaciones.org/internal/audit"
	"votaciones.org/internal/auth"
	"votaciones.org/internal/votacion"
)

type loginRequest struct {
	Usuario string `json:"usuario"`
	Pass    string `json:"pass"`
}

type loginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	Nombre    string    `json:"nombre"`
	Rol       string    `json:"rol"`
	NumMesa   int       `json:"nummesa,omitempty"`
}

// Tokens live through a whole election day.
const tokenTTL = 12 * time.Hour

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	usuario := strings.TrimSpace(req.Usuario)
	if usuario == "" || req.Pass == "" {
		writeError(w, r, http.StatusBadRequest, "usuario y pass son requeridos")
		return
	}

	u, err := a.store.BuscarUsuario(r.Context(), usuario)
	if err != nil {
		if errors.Is(err, votacion.ErrNoAutorizado) {
			writeError(w, r, http.StatusUnauthorized, "usuario o contraseña incorrectos")
			return
		}
		writeError(w, r, http.StatusInternalServerError, "error interno")
		return
	}
	if err := auth.VerifyPassword(u.PassHash, req.Pass); err != nil {
		writeError(w, r, http.StatusUnauthorized, "usuario o contraseña incorrectos")
		return
	}

	token, err := auth.GenerateToken(u.Usuario, u.Nombre, u.Rol, u.NumMesa, tokenTTL)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "token generation failed")
		return
	}

	expiresAt := time.Now().UTC().Add(tokenTTL)
	_ = audit.LogEvent(r.Context(), "auth.login", map[string]any{
		"usuario":    u.Usuario,
		"rol":        u.Rol,
		"expires_at": expiresAt.Format(time.RFC3339),
	})

	writeJSON(w, http.StatusOK, loginResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		Nombre:    u.Nombre,
		Rol:       u.Rol,
		NumMesa:   u.NumMesa,
	})
}
