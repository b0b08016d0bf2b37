package votacion

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// InMemory implements Store with in-process concurrency safety. It backs the
// tests and the demo mode; production runs on internal/store/sqlstore.
type InMemory struct {
	mu          sync.RWMutex
	usuarios    map[string]Usuario
	estudiantes map[string]Estudiante
	votos       map[string]Voto
	mesas       map[int]EstadoMesa
	candidatos  []Candidato
	nextCand    int64
	cfg         ConfiguracionVotacion
	cfgSet      bool
}

var _ Store = (*InMemory)(nil)

// NewInMemory creates an empty store with the default (open) configuration.
func NewInMemory() *InMemory {
	return &InMemory{
		usuarios:    make(map[string]Usuario),
		estudiantes: make(map[string]Estudiante),
		votos:       make(map[string]Voto),
		mesas:       make(map[int]EstadoMesa),
	}
}

func (s *InMemory) BuscarUsuario(ctx context.Context, usuario string) (Usuario, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.usuarios[strings.TrimSpace(usuario)]
	if !ok {
		return Usuario{}, ErrNoAutorizado
	}
	return u, nil
}

func (s *InMemory) BuscarEstudiante(ctx context.Context, documento string) (Estudiante, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.estudiantes[strings.TrimSpace(documento)]
	if !ok {
		return Estudiante{}, ErrEstudianteNoEncontrado
	}
	return e, nil
}

func (s *InMemory) YaVoto(ctx context.Context, documento string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.votos[documento]
	return ok, nil
}

func (s *InMemory) InsertarVoto(ctx context.Context, v Voto) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	// The map key plays the role of the unique index: check and insert under
	// one critical section so exactly one concurrent insert can win.
	if _, ok := s.votos[v.Documento]; ok {
		return ErrVotoDuplicado
	}
	s.votos[v.Documento] = v
	return nil
}

func (s *InMemory) EstadoMesa(ctx context.Context, numMesa int) (EstadoMesa, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	mesa, ok := s.mesas[numMesa]
	if !ok {
		return EstadoMesa{NumMesa: numMesa, Estado: MesaLibre}, nil
	}
	return mesa, nil
}

func (s *InMemory) ArmarMesa(ctx context.Context, numMesa int, documento, nombre string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mesas[numMesa] = EstadoMesa{
		NumMesa:   numMesa,
		Estado:    MesaArmada,
		Documento: documento,
		Nombre:    nombre,
	}
	return nil
}

func (s *InMemory) LiberarMesa(ctx context.Context, numMesa int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mesas[numMesa] = EstadoMesa{NumMesa: numMesa, Estado: MesaLibre}
	return nil
}

func (s *InMemory) Configuracion(ctx context.Context) (ConfiguracionVotacion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.cfgSet {
		return DefaultConfiguracion(), nil
	}
	return s.cfg, nil
}

func (s *InMemory) GuardarConfiguracion(ctx context.Context, cfg ConfiguracionVotacion) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = cfg
	s.cfgSet = true
	return nil
}

func (s *InMemory) Candidatos(ctx context.Context) ([]Candidato, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Candidato, len(s.candidatos))
	copy(out, s.candidatos)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Cargo != out[j].Cargo {
			return out[i].Cargo < out[j].Cargo
		}
		return out[i].Nombre < out[j].Nombre
	})
	return out, nil
}

func (s *InMemory) CrearCandidato(ctx context.Context, c Candidato) (Candidato, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextCand++
	c.ID = s.nextCand
	s.candidatos = append(s.candidatos, c)
	return c, nil
}

func (s *InMemory) EliminarCandidato(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, c := range s.candidatos {
		if c.ID == id {
			s.candidatos = append(s.candidatos[:i], s.candidatos[i+1:]...)
			return nil
		}
	}
	return nil
}

func (s *InMemory) Resultados(ctx context.Context) (Acta, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	personero := map[string]int{}
	contralor := map[string]int{}
	for _, v := range s.votos {
		personero[v.Personero]++
		contralor[v.Contralor]++
	}

	cfg := s.cfg
	if !s.cfgSet {
		cfg = DefaultConfiguracion()
	}
	return Acta{
		Config:    cfg,
		Personero: conteoOrdenado(personero),
		Contralor: conteoOrdenado(contralor),
		Total:     len(s.votos),
	}, nil
}

func conteoOrdenado(counts map[string]int) []ConteoCandidato {
	out := make([]ConteoCandidato, 0, len(counts))
	for nombre, n := range counts {
		out = append(out, ConteoCandidato{Candidato: nombre, Votos: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Votos != out[j].Votos {
			return out[i].Votos > out[j].Votos
		}
		return out[i].Candidato < out[j].Candidato
	})
	return out
}

func (s *InMemory) CargarPadron(ctx context.Context, estudiantes []Estudiante, jurados []Usuario) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for usuario, u := range s.usuarios {
		if u.Rol == RolMesa {
			delete(s.usuarios, usuario)
		}
	}
	s.estudiantes = make(map[string]Estudiante, len(estudiantes))
	s.mesas = make(map[int]EstadoMesa)

	for _, j := range jurados {
		s.usuarios[j.Usuario] = j
		if j.NumMesa > 0 {
			s.mesas[j.NumMesa] = EstadoMesa{NumMesa: j.NumMesa, Estado: MesaLibre}
		}
	}
	for _, e := range estudiantes {
		s.estudiantes[e.Documento] = e
	}
	return nil
}

func (s *InMemory) CrearUsuario(ctx context.Context, u Usuario) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.usuarios[u.Usuario]; ok {
		return nil
	}
	s.usuarios[u.Usuario] = u
	return nil
}
