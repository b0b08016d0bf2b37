package votacion

import (
	"errors"
	"fmt"
)

var (
	// ErrVentanaCerrada covers every closed-window sub-reason (disabled,
	// wrong date, too early, too late). The wrapped message carries the
	// user-presentable motivo.
	ErrVentanaCerrada = errors.New("votación no habilitada")

	// ErrNoAutorizado means the requesting account does not resolve to a
	// table-assigned juror.
	ErrNoAutorizado = errors.New("usuario no autorizado")

	// ErrEstudianteNoEncontrado means the document is not in the roster.
	ErrEstudianteNoEncontrado = errors.New("estudiante no encontrado")

	// ErrYaVoto rejects habilitation for a document that already voted.
	ErrYaVoto = errors.New("el estudiante ya votó")

	// ErrVotoDuplicado rejects a second submission racing or following a
	// first. The unique index on votos.documento is the sole authority.
	ErrVotoDuplicado = errors.New("voto duplicado")

	// ErrAlmacenamiento wraps storage failures not otherwise classified.
	ErrAlmacenamiento = errors.New("error de almacenamiento")
)

// MesaEquivocadaError reports that the student belongs to a different table
// than the requesting juror. The correct table number is part of the message.
type MesaEquivocadaError struct {
	Mesa int
}

func (e *MesaEquivocadaError) Error() string {
	return fmt.Sprintf("el estudiante pertenece a la mesa %d", e.Mesa)
}
