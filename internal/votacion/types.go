package votacion

import "time"

// Roles stored in the usuarios table. One administrator account plus one
// juror account per polling table.
const (
	RolAdministrador = "ADMINISTRADOR"
	RolMesa          = "MVOTACION"
)

// Table states as persisted in control_mesas. An armed table has exactly one
// document bound to it and may legally receive a ballot for that document.
const (
	MesaLibre  = 0
	MesaArmada = 1
)

// Offices on the ballot.
const (
	CargoPersonero = "Personero"
	CargoContralor = "Contralor"
)

// Usuario is an account: the administrator or a table juror. NumMesa is zero
// for the administrator.
type Usuario struct {
	Usuario  string `json:"usuario"`
	Nombre   string `json:"nombre"`
	PassHash string `json:"-"`
	Rol      string `json:"rol"`
	NumMesa  int    `json:"nummesa,omitempty"`
}

// Estudiante is one roster row. Mesa is fixed at import time.
type Estudiante struct {
	Documento       string `json:"documento"`
	PrimerApellido  string `json:"primer_apellido"`
	SegundoApellido string `json:"segundo_apellido"`
	PrimerNombre    string `json:"primer_nombre"`
	SegundoNombre   string `json:"segundo_nombre"`
	Grado           string `json:"grado"`
	Sede            string `json:"sede_educativa"`
	Mesa            int    `json:"mesa"`
}

// NombreCorto composes the display name shown to the juror and on the urn
// screen: first name plus first surname.
func (e Estudiante) NombreCorto() string {
	switch {
	case e.PrimerNombre == "" && e.PrimerApellido == "":
		return e.Documento
	case e.PrimerNombre == "":
		return e.PrimerApellido
	case e.PrimerApellido == "":
		return e.PrimerNombre
	}
	return e.PrimerNombre + " " + e.PrimerApellido
}

// Voto is one recorded ballot. At most one row may ever exist per documento;
// the storage layer enforces this with a unique index.
type Voto struct {
	ID        string    `json:"id"`
	Documento string    `json:"documento"`
	Personero string    `json:"candidatoPersonero"`
	Contralor string    `json:"candidatoContralor"`
	Fecha     time.Time `json:"fecha_voto"`
}

// RegistroVoto is the submit request coming from the urn terminal.
type RegistroVoto struct {
	Documento string
	Personero string
	Contralor string
	NumMesa   int
}

// EstadoMesa is the coordination row for one table.
type EstadoMesa struct {
	NumMesa   int    `json:"num_mesa"`
	Estado    int    `json:"estado"`
	Documento string `json:"documento_actual,omitempty"`
	Nombre    string `json:"nombre_estudiante,omitempty"`
}

// EstadoDetalle is what the urn polls: the table state plus the voting-window
// signal so a terminal can show a closed-election message instead of waiting
// forever.
type EstadoDetalle struct {
	EstadoMesa
	Cerrada bool   `json:"cerrada,omitempty"`
	Motivo  string `json:"motivo,omitempty"`
}

// Habilitacion is the successful outcome of arming a table for a student.
type Habilitacion struct {
	NumMesa   int    `json:"num_mesa"`
	Documento string `json:"documento"`
	Nombre    string `json:"nombre"`
}

// Candidato is a ballot option for one office.
type Candidato struct {
	ID     int64  `json:"id"`
	Nombre string `json:"nombre"`
	Cargo  string `json:"cargo"`
	Imagen string `json:"imagen,omitempty"`
}

// ConteoCandidato is one tally line.
type ConteoCandidato struct {
	Candidato string `json:"candidato"`
	Votos     int    `json:"votos"`
}

// Acta aggregates the election results for the closing report.
type Acta struct {
	Config    ConfiguracionVotacion `json:"config"`
	Personero []ConteoCandidato     `json:"personero"`
	Contralor []ConteoCandidato     `json:"contralor"`
	Total     int                   `json:"total"`
}
