// Package padron parses the student roster file and distributes students
// across polling tables at import time.
package padron

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"strings"

	"votaciones.org/internal/auth"
	"votaciones.org/internal/votacion"
)

// ErrPadronVacio means the file contained no usable rows.
var ErrPadronVacio = errors.New("el archivo no contiene estudiantes")

// Parse reads a roster CSV with the columns documento, primer_apellido,
// segundo_apellido, primer_nombre, segundo_nombre, grado, sede. The first
// row is treated as a header and skipped. Rows without a document are
// ignored, matching the legacy import behavior.
func Parse(r io.Reader) ([]votacion.Estudiante, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("leer archivo: %w", err)
	}
	if len(records) > 0 {
		records = records[1:] // header
	}

	var estudiantes []votacion.Estudiante
	seen := make(map[string]struct{})
	for _, row := range records {
		doc := strings.TrimSpace(field(row, 0))
		if doc == "" {
			continue
		}
		if _, dup := seen[doc]; dup {
			return nil, fmt.Errorf("documento duplicado en el archivo: %s", doc)
		}
		seen[doc] = struct{}{}
		estudiantes = append(estudiantes, votacion.Estudiante{
			Documento:       doc,
			PrimerApellido:  strings.TrimSpace(field(row, 1)),
			SegundoApellido: strings.TrimSpace(field(row, 2)),
			PrimerNombre:    strings.TrimSpace(field(row, 3)),
			SegundoNombre:   strings.TrimSpace(field(row, 4)),
			Grado:           strings.TrimSpace(field(row, 5)),
			Sede:            strings.TrimSpace(field(row, 6)),
		})
	}
	if len(estudiantes) == 0 {
		return nil, ErrPadronVacio
	}
	return estudiantes, nil
}

func field(row []string, i int) string {
	if i < len(row) {
		return row[i]
	}
	return ""
}

// Asignar distributes students across numMesas tables: shuffled order, then
// round-robin, so assignment is random but table sizes never differ by more
// than one. The table number is fixed from this point on.
func Asignar(estudiantes []votacion.Estudiante, numMesas int, rng *rand.Rand) error {
	if numMesas < 1 {
		return errors.New("número de mesas inválido")
	}
	rng.Shuffle(len(estudiantes), func(i, j int) {
		estudiantes[i], estudiantes[j] = estudiantes[j], estudiantes[i]
	})
	for i := range estudiantes {
		estudiantes[i].Mesa = i%numMesas + 1
	}
	return nil
}

// GenerarJurados creates the per-table juror accounts (mesa.1, mesa.2, ...)
// with a bcrypt-hashed password equal to the username, matching the
// credentials handed to each table on election day.
func GenerarJurados(numMesas int) ([]votacion.Usuario, error) {
	if numMesas < 1 {
		return nil, errors.New("número de mesas inválido")
	}
	jurados := make([]votacion.Usuario, 0, numMesas)
	for i := 1; i <= numMesas; i++ {
		usuario := fmt.Sprintf("mesa.%d", i)
		hash, err := auth.HashPassword(usuario)
		if err != nil {
			return nil, fmt.Errorf("hash jurado %s: %w", usuario, err)
		}
		jurados = append(jurados, votacion.Usuario{
			Usuario:  usuario,
			Nombre:   fmt.Sprintf("MESA %d", i),
			PassHash: hash,
			Rol:      votacion.RolMesa,
			NumMesa:  i,
		})
	}
	return jurados, nil
}
