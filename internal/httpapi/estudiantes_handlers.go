package httpapi

import (
	"errors"
	"math/rand"
	"net/http"
	"strconv"
	"strings"
	"time"

	"votaciones.org/internal/audit"
	"votaciones.org/internal/padron"
)

// handleCargarPadron replaces the roster from an uploaded CSV, assigns each
// student to a table and provisions one juror account per table. Votes
// already recorded survive a re-import.
func (a *API) handleCargarPadron(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	if err := r.ParseMultipartForm(a.maxBody); err != nil {
		writeError(w, r, http.StatusBadRequest, "formulario multipart inválido")
		return
	}

	numMesas, err := strconv.Atoi(strings.TrimSpace(r.FormValue("num_mesas")))
	if err != nil || numMesas <= 0 {
		writeError(w, r, http.StatusBadRequest, "num_mesas debe ser un entero positivo")
		return
	}

	file, _, err := r.FormFile("archivo")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "archivo es requerido")
		return
	}
	defer file.Close()

	estudiantes, err := padron.Parse(file)
	if err != nil {
		if errors.Is(err, padron.ErrPadronVacio) {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, r, http.StatusBadRequest, "no se pudo leer el archivo: "+err.Error())
		return
	}

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	if err := padron.Asignar(estudiantes, numMesas, rng); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	jurados, err := padron.GenerarJurados(numMesas)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "error interno")
		return
	}

	if err := a.store.CargarPadron(r.Context(), estudiantes, jurados); err != nil {
		writeError(w, r, http.StatusInternalServerError, "error interno")
		return
	}

	_ = audit.LogEvent(r.Context(), "padron.importar", map[string]any{
		"estudiantes": len(estudiantes),
		"num_mesas":   numMesas,
	})

	writeJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"estudiantes": len(estudiantes),
		"mesas":       numMesas,
	})
}
