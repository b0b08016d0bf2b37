package votacion

import (
	"errors"
	"testing"
	"time"
)

func TestEvaluarVentana(t *testing.T) {
	base := ConfiguracionVotacion{
		Habilitada: true,
		Fecha:      "2026-03-10",
		HoraInicio: "08:00",
		HoraFin:    "16:00",
	}
	enFecha := func(hora, min int) time.Time {
		return time.Date(2026, 3, 10, hora, min, 0, 0, time.Local)
	}

	cases := []struct {
		name    string
		cfg     ConfiguracionVotacion
		now     time.Time
		abierta bool
	}{
		{"dentro de la jornada", base, enFecha(10, 30), true},
		{"limite inicio", base, enFecha(8, 0), true},
		{"limite fin", base, enFecha(16, 0), true},
		{"deshabilitada", ConfiguracionVotacion{Habilitada: false}, enFecha(10, 0), false},
		{"fecha equivocada", base, time.Date(2026, 3, 11, 10, 0, 0, 0, time.Local), false},
		{"muy temprano", base, enFecha(7, 59), false},
		{"muy tarde", base, enFecha(16, 1), false},
		{"sin restricciones", ConfiguracionVotacion{Habilitada: true}, enFecha(23, 59), true},
		{"por defecto", DefaultConfiguracion(), enFecha(3, 0), true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			abierta, motivo := tc.cfg.Evaluar(tc.now)
			if abierta != tc.abierta {
				t.Fatalf("Evaluar=%v motivo=%q, want abierta=%v", abierta, motivo, tc.abierta)
			}
			if !abierta && motivo == "" {
				t.Fatal("closed window must carry a motivo")
			}
		})
	}
}

func TestErrSiCerradaEnvuelveMotivo(t *testing.T) {
	cfg := ConfiguracionVotacion{Habilitada: false}
	err := cfg.ErrSiCerrada(time.Now())
	if !errors.Is(err, ErrVentanaCerrada) {
		t.Fatalf("expected ErrVentanaCerrada, got %v", err)
	}
	if err.Error() == ErrVentanaCerrada.Error() {
		t.Fatal("expected wrapped motivo in error message")
	}
}

func TestNombreCorto(t *testing.T) {
	cases := []struct {
		est  Estudiante
		want string
	}{
		{Estudiante{Documento: "1", PrimerNombre: "ANA", PrimerApellido: "GOMEZ"}, "ANA GOMEZ"},
		{Estudiante{Documento: "2", PrimerNombre: "ANA"}, "ANA"},
		{Estudiante{Documento: "3", PrimerApellido: "GOMEZ"}, "GOMEZ"},
		{Estudiante{Documento: "4"}, "4"},
	}
	for _, tc := range cases {
		if got := tc.est.NombreCorto(); got != tc.want {
			t.Fatalf("NombreCorto(%+v)=%q, want %q", tc.est, got, tc.want)
		}
	}
}
