package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"votaciones.org/internal/auth"
	"votaciones.org/internal/stream"
	"votaciones.org/internal/votacion"
)

type apiClient struct {
	baseURL string
	client  *http.Client
	t       *testing.T
	store   *votacion.InMemory
}

func newTestAPI(t *testing.T) *apiClient {
	t.Helper()

	t.Setenv("VOTACIONES_AUTH_SECRET", "test-secret")
	auth.ResetSecretForTests()
	t.Cleanup(auth.ResetSecretForTests)

	store := votacion.NewInMemory()
	seedStore(t, store)

	st := stream.New()
	svc := votacion.NewCoordinator(store, votacion.WithNotificador(st))

	api := New(ReadyProbe{}, "test", svc, store, st)
	api.rateBurst = 1000
	api.ratePerSec = 1000

	srv := httptest.NewServer(api.Handler())
	t.Cleanup(srv.Close)

	return &apiClient{
		baseURL: srv.URL,
		client:  srv.Client(),
		t:       t,
		store:   store,
	}
}

func seedStore(t *testing.T, store *votacion.InMemory) {
	t.Helper()
	ctx := context.Background()

	jurados := make([]votacion.Usuario, 0, 2)
	for i, usuario := range []string{"mesa.1", "mesa.2"} {
		hash, err := auth.HashPassword(usuario)
		if err != nil {
			t.Fatalf("hash juror password: %v", err)
		}
		jurados = append(jurados, votacion.Usuario{
			Usuario:  usuario,
			Nombre:   strings.ToUpper(usuario),
			PassHash: hash,
			Rol:      votacion.RolMesa,
			NumMesa:  i + 1,
		})
	}
	estudiantes := []votacion.Estudiante{
		{Documento: "12345678", PrimerNombre: "ANA", PrimerApellido: "GOMEZ", Grado: "11A", Mesa: 1},
		{Documento: "87654321", PrimerNombre: "LUIS", PrimerApellido: "RIOS", Grado: "10B", Mesa: 2},
	}
	if err := store.CargarPadron(ctx, estudiantes, jurados); err != nil {
		t.Fatalf("seed roster: %v", err)
	}

	adminHash, err := auth.HashPassword("admin-pass")
	if err != nil {
		t.Fatalf("hash admin password: %v", err)
	}
	if err := store.CrearUsuario(ctx, votacion.Usuario{
		Usuario:  "rafael.perez",
		Nombre:   "RAFAEL PEREZ",
		PassHash: adminHash,
		Rol:      votacion.RolAdministrador,
	}); err != nil {
		t.Fatalf("seed admin: %v", err)
	}
}

func (c *apiClient) post(path string, body any, headers map[string]string) *http.Response {
	c.t.Helper()
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			c.t.Fatalf("marshal body: %v", err)
		}
	}
	req, err := http.NewRequest(http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.t.Fatalf("do request: %v", err)
	}
	return resp
}

func (c *apiClient) get(path string, headers map[string]string) *http.Response {
	c.t.Helper()
	req, err := http.NewRequest(http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.t.Fatalf("get request: %v", err)
	}
	return resp
}

func (c *apiClient) del(path string, headers map[string]string) *http.Response {
	c.t.Helper()
	req, err := http.NewRequest(http.MethodDelete, c.baseURL+path, nil)
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.t.Fatalf("delete request: %v", err)
	}
	return resp
}

func (c *apiClient) login(usuario, pass string) string {
	c.t.Helper()
	resp := c.post("/api/auth/login", map[string]any{
		"usuario": usuario,
		"pass":    pass,
	}, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		c.t.Fatalf("unexpected login status for %s: %d", usuario, resp.StatusCode)
	}
	var payload loginResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		c.t.Fatalf("decode login response: %v", err)
	}
	if payload.Token == "" {
		c.t.Fatalf("empty token issued")
	}
	return payload.Token
}

func bearerHeader(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

func decode[T any](t *testing.T, r *http.Response) T {
	t.Helper()
	defer r.Body.Close()
	var v T
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func TestFlujoCompletoDeVotacion(t *testing.T) {
	c := newTestAPI(t)
	juror := c.login("mesa.1", "mesa.1")

	// juror validates the document; the table arms
	resp := c.post("/api/votos/habilitar", map[string]any{"documento": "12345678"}, bearerHeader(juror))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("habilitar status: %d", resp.StatusCode)
	}
	hab := decode[habilitarResponse](t, resp)
	if !hab.Success || hab.Nombre != "ANA GOMEZ" || hab.NumMesa != 1 {
		t.Fatalf("unexpected habilitar response: %+v", hab)
	}

	// the urn polls and sees the armed table with the student name
	resp = c.get("/api/votos/estado/1", bearerHeader(juror))
	estado := decode[votacion.EstadoDetalle](t, resp)
	if estado.Estado != votacion.MesaArmada || estado.Nombre != "ANA GOMEZ" {
		t.Fatalf("unexpected estado: %+v", estado)
	}

	// the student votes
	resp = c.post("/api/votos/registrar", map[string]any{
		"documento":          "12345678",
		"candidatoPersonero": "CandidateA",
		"candidatoContralor": "CandidateB",
		"numMesa":            1,
	}, bearerHeader(juror))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("registrar status: %d", resp.StatusCode)
	}
	resp.Body.Close()

	// the table returns to idle
	resp = c.get("/api/votos/estado/1", bearerHeader(juror))
	estado = decode[votacion.EstadoDetalle](t, resp)
	if estado.Estado != votacion.MesaLibre {
		t.Fatalf("expected idle table, got %+v", estado)
	}

	// a second habilitation for the same document is rejected
	resp = c.post("/api/votos/habilitar", map[string]any{"documento": "12345678"}, bearerHeader(juror))
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 for voted student, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestHabilitarMesaEquivocada(t *testing.T) {
	c := newTestAPI(t)
	juror := c.login("mesa.1", "mesa.1")

	// student 87654321 belongs to table 2
	resp := c.post("/api/votos/habilitar", map[string]any{"documento": "87654321"}, bearerHeader(juror))
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}
	payload := decode[map[string]any](t, resp)
	msg, _ := payload["error"].(string)
	if !strings.Contains(msg, "mesa 2") {
		t.Fatalf("error must name the correct table, got %q", msg)
	}
}

func TestHabilitarEstudianteDesconocido(t *testing.T) {
	c := newTestAPI(t)
	juror := c.login("mesa.1", "mesa.1")

	resp := c.post("/api/votos/habilitar", map[string]any{"documento": "00000000"}, bearerHeader(juror))
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestHabilitarRequiereToken(t *testing.T) {
	c := newTestAPI(t)
	resp := c.post("/api/votos/habilitar", map[string]any{"documento": "12345678"}, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestRegistrarEnMesaAjena(t *testing.T) {
	c := newTestAPI(t)
	juror := c.login("mesa.1", "mesa.1")

	resp := c.post("/api/votos/registrar", map[string]any{
		"documento":          "87654321",
		"candidatoPersonero": "CandidateA",
		"candidatoContralor": "CandidateB",
		"numMesa":            2,
	}, bearerHeader(juror))
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for foreign table, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestLoginCredencialesInvalidas(t *testing.T) {
	c := newTestAPI(t)
	for _, tc := range []map[string]any{
		{"usuario": "mesa.1", "pass": "wrong"},
		{"usuario": "nadie", "pass": "mesa.1"},
	} {
		resp := c.post("/api/auth/login", tc, nil)
		if resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("expected 401 for %v, got %d", tc, resp.StatusCode)
		}
		resp.Body.Close()
	}
}

func TestAdminRequiereRol(t *testing.T) {
	c := newTestAPI(t)
	juror := c.login("mesa.1", "mesa.1")

	resp := c.get("/api/admin/config", bearerHeader(juror))
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestConfigCierraLaJornada(t *testing.T) {
	c := newTestAPI(t)
	admin := c.login("rafael.perez", "admin-pass")
	juror := c.login("mesa.1", "mesa.1")

	resp := c.post("/api/admin/config", map[string]any{
		"votacion_habilitada": false,
		"fecha":               "",
		"hora_inicio":         "",
		"hora_fin":            "",
	}, bearerHeader(admin))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("config update status: %d", resp.StatusCode)
	}
	resp.Body.Close()

	// habilitar is rejected while the window is closed
	resp = c.post("/api/votos/habilitar", map[string]any{"documento": "12345678"}, bearerHeader(juror))
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 with closed window, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// the polling endpoint reports the closure so urns can stop waiting
	resp = c.get("/api/votos/estado/1", bearerHeader(juror))
	estado := decode[votacion.EstadoDetalle](t, resp)
	if !estado.Cerrada || estado.Motivo == "" {
		t.Fatalf("expected closed window signal, got %+v", estado)
	}

	// reopening restores service
	resp = c.post("/api/admin/config", map[string]any{
		"votacion_habilitada": true,
		"fecha":               "",
		"hora_inicio":         "",
		"hora_fin":            "",
	}, bearerHeader(admin))
	resp.Body.Close()
	resp = c.post("/api/votos/habilitar", map[string]any{"documento": "12345678"}, bearerHeader(juror))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected habilitar after reopen, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestConfigValidaFormato(t *testing.T) {
	c := newTestAPI(t)
	admin := c.login("rafael.perez", "admin-pass")

	for _, tc := range []map[string]any{
		{"votacion_habilitada": true, "fecha": "10-03-2026", "hora_inicio": "", "hora_fin": ""},
		{"votacion_habilitada": true, "fecha": "", "hora_inicio": "8am", "hora_fin": ""},
		{"votacion_habilitada": true, "fecha": "", "hora_inicio": "16:00", "hora_fin": "08:00"},
	} {
		resp := c.post("/api/admin/config", tc, bearerHeader(admin))
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("expected 400 for %v, got %d", tc, resp.StatusCode)
		}
		resp.Body.Close()
	}
}

func TestCandidatosCRUD(t *testing.T) {
	c := newTestAPI(t)
	admin := c.login("rafael.perez", "admin-pass")
	juror := c.login("mesa.1", "mesa.1")

	resp := c.post("/api/admin/candidatos", map[string]any{
		"nombre": "CandidateA",
		"cargo":  votacion.CargoPersonero,
	}, bearerHeader(admin))
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create candidate status: %d", resp.StatusCode)
	}
	created := decode[votacion.Candidato](t, resp)
	if created.ID == 0 {
		t.Fatalf("candidate id not assigned: %+v", created)
	}

	resp = c.post("/api/admin/candidatos", map[string]any{
		"nombre": "CandidateB",
		"cargo":  "Alcalde",
	}, bearerHeader(admin))
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown office, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// the ballot is readable with a juror session too
	resp = c.get("/api/candidatos", bearerHeader(juror))
	lista := decode[[]votacion.Candidato](t, resp)
	if len(lista) != 1 || lista[0].Nombre != "CandidateA" {
		t.Fatalf("unexpected ballot: %+v", lista)
	}

	resp = c.del("/api/admin/candidatos/1", bearerHeader(admin))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete candidate status: %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = c.get("/api/candidatos", bearerHeader(juror))
	lista = decode[[]votacion.Candidato](t, resp)
	if len(lista) != 0 {
		t.Fatalf("candidate not removed: %+v", lista)
	}
}

func TestActa(t *testing.T) {
	c := newTestAPI(t)
	admin := c.login("rafael.perez", "admin-pass")
	juror := c.login("mesa.1", "mesa.1")

	resp := c.post("/api/votos/habilitar", map[string]any{"documento": "12345678"}, bearerHeader(juror))
	resp.Body.Close()
	resp = c.post("/api/votos/registrar", map[string]any{
		"documento":          "12345678",
		"candidatoPersonero": "CandidateA",
		"candidatoContralor": "CandidateB",
		"numMesa":            1,
	}, bearerHeader(juror))
	resp.Body.Close()

	resp = c.get("/api/admin/acta", bearerHeader(admin))
	acta := decode[votacion.Acta](t, resp)
	if acta.Total != 1 {
		t.Fatalf("unexpected total: %d", acta.Total)
	}
	if len(acta.Personero) != 1 || acta.Personero[0].Candidato != "CandidateA" || acta.Personero[0].Votos != 1 {
		t.Fatalf("unexpected personero tally: %+v", acta.Personero)
	}
}

func TestMesaReset(t *testing.T) {
	c := newTestAPI(t)
	admin := c.login("rafael.perez", "admin-pass")
	juror := c.login("mesa.1", "mesa.1")

	resp := c.post("/api/votos/habilitar", map[string]any{"documento": "12345678"}, bearerHeader(juror))
	resp.Body.Close()

	resp = c.post("/api/admin/mesas/reset", map[string]any{"num_mesa": 1}, bearerHeader(admin))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("reset status: %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = c.get("/api/votos/estado/1", bearerHeader(juror))
	estado := decode[votacion.EstadoDetalle](t, resp)
	if estado.Estado != votacion.MesaLibre {
		t.Fatalf("expected idle table after reset, got %+v", estado)
	}

	// the student did not vote and can be habilitated again
	resp = c.post("/api/votos/habilitar", map[string]any{"documento": "12345678"}, bearerHeader(juror))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected habilitar after reset, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestEstadoMesaInvalida(t *testing.T) {
	c := newTestAPI(t)
	juror := c.login("mesa.1", "mesa.1")

	for _, path := range []string{"/api/votos/estado/abc", "/api/votos/estado/0", "/api/votos/estado/"} {
		resp := c.get(path, bearerHeader(juror))
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("expected 400 for %s, got %d", path, resp.StatusCode)
		}
		resp.Body.Close()
	}
}

func TestCargarPadron(t *testing.T) {
	c := newTestAPI(t)
	admin := c.login("rafael.perez", "admin-pass")

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("num_mesas", "2"); err != nil {
		t.Fatalf("write field: %v", err)
	}
	fw, err := mw.CreateFormFile("archivo", "padron.csv")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	csvBody := "documento,primer_apellido,segundo_apellido,primer_nombre,segundo_nombre,grado,sede\n" +
		"11111111,PEREZ,LOPEZ,JUAN,CARLOS,11A,PRINCIPAL\n" +
		"22222222,DIAZ,MORA,SARA,,10B,PRINCIPAL\n" +
		"33333333,RUIZ,,PEDRO,,9C,PRINCIPAL\n"
	if _, err := fw.Write([]byte(csvBody)); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}

	req, err := http.NewRequest(http.MethodPost, c.baseURL+"/api/estudiantes/cargar", &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+admin)
	resp, err := c.client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	payload := decode[map[string]any](t, resp)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("import status: %d (%v)", resp.StatusCode, payload)
	}
	if n, _ := payload["estudiantes"].(float64); int(n) != 3 {
		t.Fatalf("expected 3 imported students, got %v", payload["estudiantes"])
	}

	// the freshly provisioned juror accounts can log in
	token := c.login("mesa.2", "mesa.2")
	if token == "" {
		t.Fatal("juror login failed after import")
	}

	// previously seeded students are gone
	resp = c.post("/api/votos/habilitar", map[string]any{"documento": "12345678"}, bearerHeader(token))
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for replaced roster, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestHealthEndpointsSonPublicos(t *testing.T) {
	c := newTestAPI(t)
	for _, path := range []string{"/healthz", "/readyz", "/metrics"} {
		resp := c.get(path, nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected 200 for %s, got %d", path, resp.StatusCode)
		}
		resp.Body.Close()
	}
}
