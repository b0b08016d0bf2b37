package votacion

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"votaciones.org/internal/ids"
)

// Notificador receives a table-state event on every ARMED/IDLE transition.
// Implemented by the SSE stream; optional.
type Notificador interface {
	Publicar(EstadoMesa)
}

// Coordinator serializes the juror-validation → ballot-display →
// vote-submission cycle for every polling table. It owns the control_mesas
// rows; roster, accounts and votes are reached through the Store.
//
// Requests interleave arbitrarily: the coordinator never blocks one
// operation on another, and the double-vote guarantee rests entirely on the
// storage-level uniqueness of votos.documento, not on the armed state.
type Coordinator struct {
	store    Store
	notifier Notificador
	now      func() time.Time
}

// Option configures the Coordinator.
type Option func(*Coordinator)

// WithNotificador publishes table transitions to the given sink.
func WithNotificador(n Notificador) Option {
	return func(c *Coordinator) { c.notifier = n }
}

// WithClock overrides the time source (useful for window tests).
func WithClock(fn func() time.Time) Option {
	return func(c *Coordinator) {
		if fn != nil {
			c.now = fn
		}
	}
}

// NewCoordinator constructs a Coordinator over the given store.
func NewCoordinator(store Store, opts ...Option) *Coordinator {
	c := &Coordinator{store: store, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Habilitar validates the student document against the juror's table and arms
// the table so the urn may present the ballot. Preconditions are checked in
// order and the first failure wins: open window, authorized juror, known
// student, matching table, no previous vote.
//
// Arming is a replace: a second habilitation for the same table before a vote
// completes overwrites the first (last write wins). The armed state is only a
// UI gate; single-vote correctness does not depend on it.
func (c *Coordinator) Habilitar(ctx context.Context, documento, usuario string) (Habilitacion, error) {
	documento = strings.TrimSpace(documento)
	usuario = strings.TrimSpace(usuario)
	if documento == "" || usuario == "" {
		return Habilitacion{}, ErrNoAutorizado
	}

	cfg, err := c.store.Configuracion(ctx)
	if err != nil {
		return Habilitacion{}, fmt.Errorf("%w: %v", ErrAlmacenamiento, err)
	}
	if err := cfg.ErrSiCerrada(c.now()); err != nil {
		return Habilitacion{}, err
	}

	jurado, err := c.store.BuscarUsuario(ctx, usuario)
	if err != nil {
		if errors.Is(err, ErrNoAutorizado) {
			return Habilitacion{}, ErrNoAutorizado
		}
		return Habilitacion{}, fmt.Errorf("%w: %v", ErrAlmacenamiento, err)
	}
	if jurado.NumMesa <= 0 {
		return Habilitacion{}, ErrNoAutorizado
	}

	est, err := c.store.BuscarEstudiante(ctx, documento)
	if err != nil {
		if errors.Is(err, ErrEstudianteNoEncontrado) {
			return Habilitacion{}, ErrEstudianteNoEncontrado
		}
		return Habilitacion{}, fmt.Errorf("%w: %v", ErrAlmacenamiento, err)
	}
	if est.Mesa != jurado.NumMesa {
		return Habilitacion{}, &MesaEquivocadaError{Mesa: est.Mesa}
	}

	voto, err := c.store.YaVoto(ctx, documento)
	if err != nil {
		return Habilitacion{}, fmt.Errorf("%w: %v", ErrAlmacenamiento, err)
	}
	if voto {
		return Habilitacion{}, ErrYaVoto
	}

	nombre := est.NombreCorto()
	if err := c.store.ArmarMesa(ctx, jurado.NumMesa, documento, nombre); err != nil {
		return Habilitacion{}, fmt.Errorf("%w: %v", ErrAlmacenamiento, err)
	}

	c.publicar(EstadoMesa{
		NumMesa:   jurado.NumMesa,
		Estado:    MesaArmada,
		Documento: documento,
		Nombre:    nombre,
	})

	return Habilitacion{NumMesa: jurado.NumMesa, Documento: documento, Nombre: nombre}, nil
}

// Estado is the urn's polling target. It has no preconditions; an unknown
// table reads as idle. The window signal rides along so a terminal can stop
// polling once the election closes.
func (c *Coordinator) Estado(ctx context.Context, numMesa int) (EstadoDetalle, error) {
	mesa, err := c.store.EstadoMesa(ctx, numMesa)
	if err != nil {
		return EstadoDetalle{}, fmt.Errorf("%w: %v", ErrAlmacenamiento, err)
	}
	mesa.NumMesa = numMesa

	detalle := EstadoDetalle{EstadoMesa: mesa}
	cfg, err := c.store.Configuracion(ctx)
	if err != nil {
		return EstadoDetalle{}, fmt.Errorf("%w: %v", ErrAlmacenamiento, err)
	}
	if abierta, motivo := cfg.Evaluar(c.now()); !abierta {
		detalle.Cerrada = true
		detalle.Motivo = motivo
	}
	return detalle, nil
}

// RegistrarVoto appends one ballot and releases the table. Whatever happens
// after the window check (success, duplicate, storage failure) the table is
// reset to idle so the terminal is never left wedged; the juror simply
// re-habilitates to retry.
func (c *Coordinator) RegistrarVoto(ctx context.Context, reg RegistroVoto) error {
	cfg, err := c.store.Configuracion(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrAlmacenamiento, err)
	}
	if err := cfg.ErrSiCerrada(c.now()); err != nil {
		c.liberar(ctx, reg.NumMesa)
		return err
	}

	voto := Voto{
		ID:        ids.New(),
		Documento: strings.TrimSpace(reg.Documento),
		Personero: strings.TrimSpace(reg.Personero),
		Contralor: strings.TrimSpace(reg.Contralor),
		Fecha:     c.now().UTC(),
	}

	insertErr := c.store.InsertarVoto(ctx, voto)
	c.liberar(ctx, reg.NumMesa)

	if insertErr != nil {
		if errors.Is(insertErr, ErrVotoDuplicado) {
			return ErrVotoDuplicado
		}
		return fmt.Errorf("%w: %v", ErrAlmacenamiento, insertErr)
	}
	return nil
}

// LiberarMesa is the administrator escape hatch for a table armed for a
// student who walked away.
func (c *Coordinator) LiberarMesa(ctx context.Context, numMesa int) error {
	if err := c.store.LiberarMesa(ctx, numMesa); err != nil {
		return fmt.Errorf("%w: %v", ErrAlmacenamiento, err)
	}
	c.publicar(EstadoMesa{NumMesa: numMesa, Estado: MesaLibre})
	return nil
}

func (c *Coordinator) liberar(ctx context.Context, numMesa int) {
	if numMesa <= 0 {
		return
	}
	// Best effort: a release failure must not mask the vote outcome.
	if err := c.store.LiberarMesa(ctx, numMesa); err == nil {
		c.publicar(EstadoMesa{NumMesa: numMesa, Estado: MesaLibre})
	}
}

func (c *Coordinator) publicar(mesa EstadoMesa) {
	if c.notifier != nil {
		c.notifier.Publicar(mesa)
	}
}
