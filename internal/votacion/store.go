package votacion

import "context"

// Store describes the persistence operations the coordinator and the admin
// surface depend on. Two invariants are load-bearing and must be enforced by
// the implementation, not by callers:
//
//   - votos.documento is unique: concurrent InsertarVoto calls for the same
//     document must have exactly one succeed and the rest fail with
//     ErrVotoDuplicado.
//   - usuarios.usuario and estudiantes.documento are unique keys.
type Store interface {
	// BuscarUsuario resolves an account by username. ErrNoAutorizado when
	// the account does not exist.
	BuscarUsuario(ctx context.Context, usuario string) (Usuario, error)

	// BuscarEstudiante resolves a roster row by document.
	// ErrEstudianteNoEncontrado when absent.
	BuscarEstudiante(ctx context.Context, documento string) (Estudiante, error)

	// YaVoto reports whether a vote row exists for the document.
	YaVoto(ctx context.Context, documento string) (bool, error)

	// InsertarVoto appends one ballot. ErrVotoDuplicado when a vote for the
	// document already exists; the uniqueness check is atomic with the
	// insert.
	InsertarVoto(ctx context.Context, v Voto) error

	// EstadoMesa reads the coordination row. An unknown table returns the
	// zero EstadoMesa (estado 0) and no error.
	EstadoMesa(ctx context.Context, numMesa int) (EstadoMesa, error)

	// ArmarMesa binds the document to the table (insert or replace).
	// A second habilitation before a vote completes replaces the first.
	ArmarMesa(ctx context.Context, numMesa int, documento, nombre string) error

	// LiberarMesa resets the table to idle, clearing the armed document.
	LiberarMesa(ctx context.Context, numMesa int) error

	// Configuracion loads the voting-window settings. Never cached by
	// callers.
	Configuracion(ctx context.Context) (ConfiguracionVotacion, error)
	GuardarConfiguracion(ctx context.Context, cfg ConfiguracionVotacion) error

	// Candidate management for the ballot.
	Candidatos(ctx context.Context) ([]Candidato, error)
	CrearCandidato(ctx context.Context, c Candidato) (Candidato, error)
	EliminarCandidato(ctx context.Context, id int64) error

	// Resultados tallies both offices plus the total from the votos table.
	Resultados(ctx context.Context) (Acta, error)

	// CargarPadron replaces the roster and the per-table juror accounts in
	// a single transaction and provisions one idle control row per table.
	// Existing votes are left untouched.
	CargarPadron(ctx context.Context, estudiantes []Estudiante, jurados []Usuario) error

	// CrearUsuario inserts an account if the username is not taken.
	CrearUsuario(ctx context.Context, u Usuario) error
}
