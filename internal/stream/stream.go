package stream

import (
	"context"
	"sync"
	"time"

	"votaciones.org/internal/votacion"
)

// MesaEvent is one table transition pushed to subscribed urn terminals. It
// carries the same fields the polling endpoint returns so a terminal can
// switch from waiting to ballot without a follow-up request.
type MesaEvent struct {
	NumMesa   int       `json:"num_mesa"`
	Estado    int       `json:"estado"`
	Documento string    `json:"documento_actual,omitempty"`
	Nombre    string    `json:"nombre_estudiante,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type subscriber struct {
	numMesa int // 0 subscribes to every table
	ch      chan MesaEvent
}

// Stream fan-outs table transitions to all active subscribers (SSE clients).
type Stream struct {
	mu   sync.RWMutex
	subs map[int]subscriber
	next int
}

var _ votacion.Notificador = (*Stream)(nil)

// New initialises an empty stream.
func New() *Stream {
	return &Stream{subs: make(map[int]subscriber)}
}

// Subscribe registers a subscriber for one table (or all tables when numMesa
// is zero) and returns the channel events arrive on. The channel is closed
// when the provided context ends.
func (s *Stream) Subscribe(ctx context.Context, numMesa int) <-chan MesaEvent {
	ch := make(chan MesaEvent, 16)

	s.mu.Lock()
	id := s.next
	s.next++
	s.subs[id] = subscriber{numMesa: numMesa, ch: ch}
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(s.subs, id)
		close(ch)
		s.mu.Unlock()
	}()

	return ch
}

// Publicar fan-outs a table transition to matching subscribers. It satisfies
// votacion.Notificador so the coordinator can publish on every transition.
func (s *Stream) Publicar(mesa votacion.EstadoMesa) {
	evt := MesaEvent{
		NumMesa:   mesa.NumMesa,
		Estado:    mesa.Estado,
		Documento: mesa.Documento,
		Nombre:    mesa.Nombre,
		Timestamp: time.Now().UTC(),
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, sub := range s.subs {
		if sub.numMesa != 0 && sub.numMesa != evt.NumMesa {
			continue
		}
		select {
		case sub.ch <- evt:
		default:
			// Drop when subscriber is slow to avoid blocking.
		}
	}
}
