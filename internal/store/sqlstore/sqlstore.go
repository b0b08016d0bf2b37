// Package sqlstore implements votacion.Store over database/sql. Two drivers
// are supported: pgx for a networked PostgreSQL deployment and modernc
// sqlite for the single-file offline deployment used on election day.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"votaciones.org/internal/votacion"
)

// Driver names accepted by Open.
const (
	DriverPgx    = "pgx"
	DriverSQLite = "sqlite"
)

const fechaLayout = time.RFC3339Nano

type Store struct {
	db     *sql.DB
	driver string
}

var _ votacion.Store = (*Store)(nil)

// Open connects using the given driver. SQLite keeps a single connection
// because the file engine serializes writers anyway.
func Open(driver, dsn string) (*Store, error) {
	switch driver {
	case DriverPgx, DriverSQLite:
	default:
		return nil, fmt.Errorf("unsupported driver %q", driver)
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, err
	}
	if driver == DriverSQLite {
		db.SetMaxOpenConns(1)
	} else {
		// Tuned pool defaults; adjust under load tests
		db.SetMaxOpenConns(50)
		db.SetMaxIdleConns(25)
		db.SetConnMaxLifetime(15 * time.Minute)
		db.SetConnMaxIdleTime(5 * time.Minute)
	}
	return &Store{db: db, driver: driver}, nil
}

// NewWithDB wraps an existing connection. Used by tests (sqlmock) and by
// cmd/migrate which owns the *sql.DB.
func NewWithDB(db *sql.DB, driver string) *Store {
	return &Store{db: db, driver: driver}
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

// q rewrites $N placeholders to ? for the sqlite driver. Queries are written
// in the $1..$N form and must use ascending placeholders without reuse so
// positional rebinding stays valid.
func (s *Store) q(query string) string {
	if s.driver != DriverSQLite {
		return query
	}
	var b strings.Builder
	for i := 0; i < len(query); i++ {
		if query[i] == '$' && i+1 < len(query) && query[i+1] >= '0' && query[i+1] <= '9' {
			b.WriteByte('?')
			for i+1 < len(query) && query[i+1] >= '0' && query[i+1] <= '9' {
				i++
			}
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

func (s *Store) BuscarUsuario(ctx context.Context, usuario string) (votacion.Usuario, error) {
	var u votacion.Usuario
	var numMesa sql.NullInt64
	err := s.db.QueryRowContext(ctx, s.q(`
		select usuario, nombre, pass, rol, nummesa from usuarios where usuario=$1
	`), usuario).Scan(&u.Usuario, &u.Nombre, &u.PassHash, &u.Rol, &numMesa)
	if errors.Is(err, sql.ErrNoRows) {
		return votacion.Usuario{}, votacion.ErrNoAutorizado
	}
	if err != nil {
		return votacion.Usuario{}, err
	}
	u.NumMesa = int(numMesa.Int64)
	return u, nil
}

func (s *Store) BuscarEstudiante(ctx context.Context, documento string) (votacion.Estudiante, error) {
	var e votacion.Estudiante
	err := s.db.QueryRowContext(ctx, s.q(`
		select documento, primer_apellido, segundo_apellido, primer_nombre, segundo_nombre, grado, sede_educativa, mesa
		from estudiantes where documento=$1
	`), documento).Scan(&e.Documento, &e.PrimerApellido, &e.SegundoApellido, &e.PrimerNombre, &e.SegundoNombre, &e.Grado, &e.Sede, &e.Mesa)
	if errors.Is(err, sql.ErrNoRows) {
		return votacion.Estudiante{}, votacion.ErrEstudianteNoEncontrado
	}
	if err != nil {
		return votacion.Estudiante{}, err
	}
	return e, nil
}

func (s *Store) YaVoto(ctx context.Context, documento string) (bool, error) {
	var id string
	err := s.db.QueryRowContext(ctx, s.q(`select id from votos where documento=$1`), documento).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// InsertarVoto relies on the unique index on votos.documento: two concurrent
// inserts for the same document reach the engine and exactly one wins. A
// failed insert is classified as a duplicate by re-checking existence, which
// keeps the classification driver-portable.
func (s *Store) InsertarVoto(ctx context.Context, v votacion.Voto) error {
	_, err := s.db.ExecContext(ctx, s.q(`
		insert into votos(id, documento, candidato_personero, candidato_contralor, fecha_voto)
		values ($1,$2,$3,$4,$5)
	`), v.ID, v.Documento, v.Personero, v.Contralor, v.Fecha.UTC().Format(fechaLayout))
	if err == nil {
		return nil
	}
	if existe, checkErr := s.YaVoto(ctx, v.Documento); checkErr == nil && existe {
		return votacion.ErrVotoDuplicado
	}
	return err
}

func (s *Store) EstadoMesa(ctx context.Context, numMesa int) (votacion.EstadoMesa, error) {
	var m votacion.EstadoMesa
	var documento, nombre sql.NullString
	err := s.db.QueryRowContext(ctx, s.q(`
		select num_mesa, estado, documento_actual, nombre_estudiante from control_mesas where num_mesa=$1
	`), numMesa).Scan(&m.NumMesa, &m.Estado, &documento, &nombre)
	if errors.Is(err, sql.ErrNoRows) {
		return votacion.EstadoMesa{NumMesa: numMesa, Estado: votacion.MesaLibre}, nil
	}
	if err != nil {
		return votacion.EstadoMesa{}, err
	}
	m.Documento = documento.String
	m.Nombre = nombre.String
	return m, nil
}

func (s *Store) ArmarMesa(ctx context.Context, numMesa int, documento, nombre string) error {
	_, err := s.db.ExecContext(ctx, s.q(`
		insert into control_mesas(num_mesa, estado, documento_actual, nombre_estudiante)
		values ($1,1,$2,$3)
		on conflict (num_mesa) do update
		set estado = 1,
		    documento_actual = excluded.documento_actual,
		    nombre_estudiante = excluded.nombre_estudiante
	`), numMesa, documento, nombre)
	return err
}

func (s *Store) LiberarMesa(ctx context.Context, numMesa int) error {
	_, err := s.db.ExecContext(ctx, s.q(`
		update control_mesas set estado = 0, documento_actual = null, nombre_estudiante = null
		where num_mesa=$1
	`), numMesa)
	return err
}

func (s *Store) Configuracion(ctx context.Context) (votacion.ConfiguracionVotacion, error) {
	rows, err := s.db.QueryContext(ctx, s.q(`select clave, valor from configuracion`))
	if err != nil {
		return votacion.ConfiguracionVotacion{}, err
	}
	defer rows.Close()

	cfg := votacion.DefaultConfiguracion()
	for rows.Next() {
		var clave, valor string
		if err := rows.Scan(&clave, &valor); err != nil {
			return votacion.ConfiguracionVotacion{}, err
		}
		switch clave {
		case votacion.ClaveHabilitada:
			cfg.Habilitada = valor != "0"
		case votacion.ClaveFecha:
			cfg.Fecha = valor
		case votacion.ClaveHoraInicio:
			cfg.HoraInicio = valor
		case votacion.ClaveHoraFin:
			cfg.HoraFin = valor
		}
	}
	return cfg, rows.Err()
}

func (s *Store) GuardarConfiguracion(ctx context.Context, cfg votacion.ConfiguracionVotacion) error {
	habilitada := "1"
	if !cfg.Habilitada {
		habilitada = "0"
	}
	valores := []struct{ clave, valor string }{
		{votacion.ClaveHabilitada, habilitada},
		{votacion.ClaveFecha, cfg.Fecha},
		{votacion.ClaveHoraInicio, cfg.HoraInicio},
		{votacion.ClaveHoraFin, cfg.HoraFin},
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, v := range valores {
		if _, err := tx.ExecContext(ctx, s.q(`
			insert into configuracion(clave, valor) values ($1,$2)
			on conflict (clave) do update set valor = excluded.valor
		`), v.clave, v.valor); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *Store) Candidatos(ctx context.Context) ([]votacion.Candidato, error) {
	rows, err := s.db.QueryContext(ctx, s.q(`
		select id, nombre, cargo, imagen from candidatos order by cargo, nombre
	`))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []votacion.Candidato
	for rows.Next() {
		var c votacion.Candidato
		var imagen sql.NullString
		if err := rows.Scan(&c.ID, &c.Nombre, &c.Cargo, &imagen); err != nil {
			return nil, err
		}
		c.Imagen = imagen.String
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) CrearCandidato(ctx context.Context, c votacion.Candidato) (votacion.Candidato, error) {
	err := s.db.QueryRowContext(ctx, s.q(`
		insert into candidatos(nombre, cargo, imagen) values ($1,$2,$3) returning id
	`), c.Nombre, c.Cargo, c.Imagen).Scan(&c.ID)
	if err != nil {
		return votacion.Candidato{}, err
	}
	return c, nil
}

func (s *Store) EliminarCandidato(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, s.q(`delete from candidatos where id=$1`), id)
	return err
}

func (s *Store) Resultados(ctx context.Context) (votacion.Acta, error) {
	cfg, err := s.Configuracion(ctx)
	if err != nil {
		return votacion.Acta{}, err
	}
	acta := votacion.Acta{Config: cfg}

	acta.Personero, err = s.conteo(ctx, "candidato_personero")
	if err != nil {
		return votacion.Acta{}, err
	}
	acta.Contralor, err = s.conteo(ctx, "candidato_contralor")
	if err != nil {
		return votacion.Acta{}, err
	}

	if err := s.db.QueryRowContext(ctx, s.q(`select count(*) from votos`)).Scan(&acta.Total); err != nil {
		return votacion.Acta{}, err
	}
	return acta, nil
}

func (s *Store) conteo(ctx context.Context, columna string) ([]votacion.ConteoCandidato, error) {
	// columna is one of two fixed identifiers, never user input.
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		select %s as candidato, count(*) as votos from votos
		group by %s order by votos desc, candidato asc
	`, columna, columna))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []votacion.ConteoCandidato
	for rows.Next() {
		var c votacion.ConteoCandidato
		if err := rows.Scan(&c.Candidato, &c.Votos); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// CargarPadron replaces the roster inside one transaction: previous juror
// accounts, students and control rows go away; votes are left untouched so a
// re-import cannot erase recorded ballots.
func (s *Store) CargarPadron(ctx context.Context, estudiantes []votacion.Estudiante, jurados []votacion.Usuario) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, s.q(`delete from usuarios where rol=$1`), votacion.RolMesa); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, s.q(`delete from estudiantes`)); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, s.q(`delete from control_mesas`)); err != nil {
		return err
	}

	for _, j := range jurados {
		if _, err := tx.ExecContext(ctx, s.q(`
			insert into usuarios(usuario, nombre, pass, rol, nummesa) values ($1,$2,$3,$4,$5)
		`), j.Usuario, j.Nombre, j.PassHash, j.Rol, j.NumMesa); err != nil {
			return err
		}
		if j.NumMesa > 0 {
			if _, err := tx.ExecContext(ctx, s.q(`
				insert into control_mesas(num_mesa, estado) values ($1,0)
				on conflict (num_mesa) do nothing
			`), j.NumMesa); err != nil {
				return err
			}
		}
	}

	for _, e := range estudiantes {
		if _, err := tx.ExecContext(ctx, s.q(`
			insert into estudiantes(documento, primer_apellido, segundo_apellido, primer_nombre, segundo_nombre, grado, sede_educativa, mesa)
			values ($1,$2,$3,$4,$5,$6,$7,$8)
		`), e.Documento, e.PrimerApellido, e.SegundoApellido, e.PrimerNombre, e.SegundoNombre, e.Grado, e.Sede, e.Mesa); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (s *Store) CrearUsuario(ctx context.Context, u votacion.Usuario) error {
	var numMesa any
	if u.NumMesa > 0 {
		numMesa = u.NumMesa
	}
	_, err := s.db.ExecContext(ctx, s.q(`
		insert into usuarios(usuario, nombre, pass, rol, nummesa) values ($1,$2,$3,$4,$5)
		on conflict (usuario) do nothing
	`), u.Usuario, u.Nombre, u.PassHash, u.Rol, numMesa)
	return err
}
