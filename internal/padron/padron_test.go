package padron

import (
	"errors"
	"math/rand"
	"strings"
	"testing"

	"votaciones.org/internal/auth"
	"votaciones.org/internal/votacion"
)

const ejemploCSV = `documento,primer_apellido,segundo_apellido,primer_nombre,segundo_nombre,grado,sede
12345678,GOMEZ,RIOS,ANA,MARIA,11A,PRINCIPAL
87654321,PEREZ,,LUIS,,10B,PRINCIPAL
,IGNORADA,,FILA,, ,
11223344,LOPEZ,DIAZ,EVA,,9C,ANEXA
`

func TestParse(t *testing.T) {
	estudiantes, err := Parse(strings.NewReader(ejemploCSV))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(estudiantes) != 3 {
		t.Fatalf("expected 3 students, got %d", len(estudiantes))
	}
	if estudiantes[0].Documento != "12345678" || estudiantes[0].PrimerNombre != "ANA" || estudiantes[0].PrimerApellido != "GOMEZ" {
		t.Fatalf("unexpected first row: %+v", estudiantes[0])
	}
	if estudiantes[1].SegundoApellido != "" {
		t.Fatalf("expected empty segundo apellido, got %q", estudiantes[1].SegundoApellido)
	}
}

func TestParseRejectsDuplicates(t *testing.T) {
	csv := "documento\n111\n111\n"
	if _, err := Parse(strings.NewReader(csv)); err == nil {
		t.Fatal("expected duplicate-document error")
	}
}

func TestParseEmpty(t *testing.T) {
	if _, err := Parse(strings.NewReader("documento,nombre\n")); !errors.Is(err, ErrPadronVacio) {
		t.Fatalf("expected ErrPadronVacio, got %v", err)
	}
}

func TestAsignarBalanceaMesas(t *testing.T) {
	estudiantes := make([]votacion.Estudiante, 25)
	for i := range estudiantes {
		estudiantes[i].Documento = strings.Repeat("1", i+1)
	}
	rng := rand.New(rand.NewSource(42))
	if err := Asignar(estudiantes, 4, rng); err != nil {
		t.Fatalf("Asignar: %v", err)
	}

	porMesa := map[int]int{}
	for _, e := range estudiantes {
		if e.Mesa < 1 || e.Mesa > 4 {
			t.Fatalf("table out of range: %d", e.Mesa)
		}
		porMesa[e.Mesa]++
	}
	min, max := len(estudiantes), 0
	for mesa := 1; mesa <= 4; mesa++ {
		n := porMesa[mesa]
		if n < min {
			min = n
		}
		if n > max {
			max = n
		}
	}
	if max-min > 1 {
		t.Fatalf("unbalanced assignment: %v", porMesa)
	}
}

func TestAsignarRechazaMesasInvalidas(t *testing.T) {
	if err := Asignar(nil, 0, rand.New(rand.NewSource(1))); err == nil {
		t.Fatal("expected error for zero tables")
	}
}

func TestGenerarJurados(t *testing.T) {
	jurados, err := GenerarJurados(3)
	if err != nil {
		t.Fatalf("GenerarJurados: %v", err)
	}
	if len(jurados) != 3 {
		t.Fatalf("expected 3 jurors, got %d", len(jurados))
	}
	j := jurados[1]
	if j.Usuario != "mesa.2" || j.NumMesa != 2 || j.Rol != votacion.RolMesa {
		t.Fatalf("unexpected juror: %+v", j)
	}
	if err := auth.VerifyPassword(j.PassHash, "mesa.2"); err != nil {
		t.Fatalf("credential mismatch: %v", err)
	}
}
