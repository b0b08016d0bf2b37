package votacion

import (
	"fmt"
	"time"
)

// Configuration keys as stored in the configuracion table.
const (
	ClaveHabilitada = "votacion_habilitada"
	ClaveFecha      = "fecha"
	ClaveHoraInicio = "hora_inicio"
	ClaveHoraFin    = "hora_fin"
)

// ConfiguracionVotacion is the typed voting-window configuration. Empty date
// or hour fields impose no constraint. Date and hours are wall-clock strings
// ("2006-01-02" and "15:04") compared in the server's local timezone; the
// deployment is assumed to run in the school's single timezone.
type ConfiguracionVotacion struct {
	Habilitada bool   `json:"votacion_habilitada"`
	Fecha      string `json:"fecha"`
	HoraInicio string `json:"hora_inicio"`
	HoraFin    string `json:"hora_fin"`
}

// DefaultConfiguracion mirrors the behavior of an unconfigured system: voting
// is allowed until the administrator constrains it.
func DefaultConfiguracion() ConfiguracionVotacion {
	return ConfiguracionVotacion{Habilitada: true}
}

// Evaluar decides whether new votes may be accepted at the given instant.
// The first violated constraint wins; motivo is user-presentable. It is a
// pure function: callers must reload the configuration on every habilitar
// and registrar so an administrator toggle takes effect immediately.
func (c ConfiguracionVotacion) Evaluar(now time.Time) (abierta bool, motivo string) {
	if !c.Habilitada {
		return false, "Las mesas fueron cerradas por administración."
	}
	hoy := now.Format("2006-01-02")
	if c.Fecha != "" && c.Fecha != hoy {
		return false, "La votación solo está habilitada en la fecha configurada."
	}
	hhmm := now.Format("15:04")
	if c.HoraInicio != "" && hhmm < c.HoraInicio {
		return false, "La jornada aún no inicia."
	}
	if c.HoraFin != "" && hhmm > c.HoraFin {
		return false, "La jornada de votación ya cerró."
	}
	return true, ""
}

// ErrSiCerrada returns a wrapped ErrVentanaCerrada carrying the motivo, or
// nil when the window is open.
func (c ConfiguracionVotacion) ErrSiCerrada(now time.Time) error {
	abierta, motivo := c.Evaluar(now)
	if abierta {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrVentanaCerrada, motivo)
}
