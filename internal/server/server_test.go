package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"sgc/internal/config"
	"sgc/internal/db"
	"sgc/internal/domain"
	"sgc/internal/engine"
	"sgc/internal/migrate"
	"sgc/internal/notify"
)

const testSecret = "test-secret"

type testServer struct {
	URL    string
	client *http.Client
	close  func()
}

func (s *testServer) Client() *http.Client { return s.client }
func (s *testServer) Close()               { s.close() }

func newTestServer(t *testing.T) (*testServer, func()) {
	t.Helper()
	workspace := t.TempDir()
	if _, err := db.EnsureWorkspace(workspace); err != nil {
		t.Fatalf("ensure workspace: %v", err)
	}
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(context.Background(), conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	e, err := engine.New(conn, config.Default(), logger)
	if err != nil {
		t.Fatalf("engine: %v", err)
	}
	e.Notify = &notify.Dispatcher{Notifier: &notify.Recorder{}, Logger: logger}
	handler, err := New(Config{
		Engine:   e,
		BasePath: "/v0",
		Auth:     AuthConfig{JWTSecret: testSecret, AllowDevLogin: true, Logger: logger},
	})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	testSrv := &testServer{
		URL:    "http://" + ln.Addr().String(),
		client: &http.Client{},
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			conn.Close()
		},
	}
	return testSrv, func() { testSrv.Close() }
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res, data
}

func bearer(t *testing.T, actor string, perfil domain.Perfil, unidade string) map[string]string {
	t.Helper()
	token, err := SignToken(testSecret, actor, perfil, unidade, time.Hour)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return map[string]string{"Authorization": "Bearer " + token}
}

func decode[T any](t *testing.T, data []byte) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		t.Fatalf("unmarshal %s: %v", string(data), err)
	}
	return v
}

func errorCode(t *testing.T, data []byte) string {
	t.Helper()
	return decode[apiError](t, data).Body.Code
}

func TestHealthIsOpenAndAPIRequiresToken(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	res, body := doJSON(t, client, http.MethodGet, srv.URL+"/v0/health", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("health status %d: %s", res.StatusCode, string(body))
	}
	if res.Header.Get("X-Request-Id") == "" {
		t.Fatalf("expected request id header")
	}

	res, body = doJSON(t, client, http.MethodGet, srv.URL+"/v0/processos", nil, nil)
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d: %s", res.StatusCode, string(body))
	}

	res, body = doJSON(t, client, http.MethodGet, srv.URL+"/v0/processos", nil, map[string]string{"Authorization": "Bearer garbage"})
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad token, got %d: %s", res.StatusCode, string(body))
	}
	if code := errorCode(t, body); code != "invalid_credentials" {
		t.Fatalf("unexpected code %s", code)
	}
}

func TestDevLoginAndMe(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	res, body := doJSON(t, client, http.MethodPost, srv.URL+"/v0/auth/dev/login", map[string]any{
		"actor_id": "chefe.stic",
		"perfil":   "CHEFE",
		"unidade":  "STIC",
	}, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("dev login status %d: %s", res.StatusCode, string(body))
	}
	token := decode[DevLoginResponse](t, body).Token

	res, body = doJSON(t, client, http.MethodGet, srv.URL+"/v0/me", nil, map[string]string{"Authorization": "Bearer " + token})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("me status %d: %s", res.StatusCode, string(body))
	}
	me := decode[MeResponse](t, body)
	if me.ActorID != "chefe.stic" || me.Perfil != domain.PerfilChefe || me.Unidade != "STIC" {
		t.Fatalf("unexpected principal %+v", me)
	}
	found := false
	for _, p := range me.Permissions {
		if p == "cadastro.publish" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected cadastro.publish in %v", me.Permissions)
	}
}

func TestCadastroFlowOverHTTP(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()
	admin := bearer(t, "admin", domain.PerfilAdmin, "SEDOC")
	chefe := bearer(t, "chefe.stic", domain.PerfilChefe, "STIC")
	gestor := bearer(t, "gestor.sgp", domain.PerfilGestor, "SGP")

	res, body := doJSON(t, client, http.MethodPost, srv.URL+"/v0/processos", map[string]any{
		"descricao":   "Mapeamento 2025",
		"tipo":        "MAPEAMENTO",
		"data_limite": "2025-12-31T00:00:00Z",
		"unidades":    []string{"STIC"},
	}, admin)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create processo status %d: %s", res.StatusCode, string(body))
	}
	proc := decode[domain.Processo](t, body)
	base := fmt.Sprintf("%s/v0/processos/%d", srv.URL, proc.ID)

	res, body = doJSON(t, client, http.MethodPost, base+"/iniciar", nil, chefe)
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("chefe cannot start processo, got %d: %s", res.StatusCode, string(body))
	}
	res, body = doJSON(t, client, http.MethodPost, base+"/iniciar", nil, admin)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("iniciar status %d: %s", res.StatusCode, string(body))
	}
	if got := decode[domain.Processo](t, body).Situacao; got != domain.ProcessoEmAndamento {
		t.Fatalf("expected EM_ANDAMENTO, got %s", got)
	}

	// acting for another unit is refused
	res, body = doJSON(t, client, http.MethodPost, base+"/unidades/SGP/cadastro/disponibilizar", map[string]any{}, chefe)
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for foreign unit, got %d: %s", res.StatusCode, string(body))
	}

	res, body = doJSON(t, client, http.MethodPost, base+"/unidades/STIC/cadastro/disponibilizar", map[string]any{}, chefe)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("disponibilizar status %d: %s", res.StatusCode, string(body))
	}
	sp := decode[domain.Subprocesso](t, body)
	if sp.Situacao != domain.CadastroDisponibilizado || sp.UnidadeAtual != "SGP" {
		t.Fatalf("unexpected subprocesso %s at %s", sp.Situacao, sp.UnidadeAtual)
	}

	res, body = doJSON(t, client, http.MethodPost, base+"/unidades/SGP/cadastro/aceitar", map[string]any{"observacoes": "ok"}, gestor)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("aceitar status %d: %s", res.StatusCode, string(body))
	}
	sp = decode[domain.Subprocesso](t, body)
	if sp.UnidadeAtual != "SEDOC" || len(sp.Analises) != 1 {
		t.Fatalf("expected SEDOC with one analise, got %s with %d", sp.UnidadeAtual, len(sp.Analises))
	}

	res, body = doJSON(t, client, http.MethodPost, base+"/unidades/SEDOC/cadastro/homologar", map[string]any{}, admin)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("homologar status %d: %s", res.StatusCode, string(body))
	}
	sp = decode[domain.Subprocesso](t, body)
	if sp.Situacao != domain.CadastroHomologado || len(sp.Analises) != 0 {
		t.Fatalf("unexpected homologado state %+v", sp)
	}

	// skipping the map stages is an invalid transition
	res, body = doJSON(t, client, http.MethodPost, base+"/unidades/SEDOC/mapa/aceitar", map[string]any{}, admin)
	if res.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", res.StatusCode, string(body))
	}
	if code := errorCode(t, body); code != "invalid_transition" {
		t.Fatalf("unexpected code %s", code)
	}

	res, body = doJSON(t, client, http.MethodGet, srv.URL+"/v0/alertas", nil, chefe)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("alertas status %d: %s", res.StatusCode, string(body))
	}
	for _, a := range decode[[]domain.Alerta](t, body) {
		if a.UnidadeDestino != "STIC" {
			t.Fatalf("chefe should only see STIC alertas, got %+v", a)
		}
	}

	res, body = doJSON(t, client, http.MethodGet, fmt.Sprintf("%s/v0/events?processo_id=%d&limit=2", srv.URL, proc.ID), nil, admin)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("events status %d: %s", res.StatusCode, string(body))
	}
	page := decode[paginatedEvents](t, body)
	if len(page.Items) != 2 || page.NextCursor == "" {
		t.Fatalf("expected a full page with cursor, got %d items cursor=%q", len(page.Items), page.NextCursor)
	}
}

func TestErrorMapping(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()
	admin := bearer(t, "admin", domain.PerfilAdmin, "SEDOC")

	res, body := doJSON(t, client, http.MethodPost, srv.URL+"/v0/processos/999/unidades/STIC/data-limite", map[string]any{
		"etapa":            1,
		"nova_data_limite": "2026-01-31T00:00:00Z",
	}, admin)
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", res.StatusCode, string(body))
	}

	res, body = doJSON(t, client, http.MethodPost, srv.URL+"/v0/processos", map[string]any{
		"descricao":   "Unidade inexistente",
		"tipo":        "MAPEAMENTO",
		"data_limite": "2025-12-31T00:00:00Z",
		"unidades":    []string{"NOPE"},
	}, admin)
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", res.StatusCode, string(body))
	}

	res, body = doJSON(t, client, http.MethodPost, srv.URL+"/v0/processos/999/finalizar", nil, admin)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("finalizar unknown status %d: %s", res.StatusCode, string(body))
	}
	if decode[FinalizarResponse](t, body).Encontrado {
		t.Fatalf("unknown processo reported as found")
	}

	res, body = doJSON(t, client, http.MethodDelete, srv.URL+"/v0/processos/999", nil, admin)
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 on delete, got %d: %s", res.StatusCode, string(body))
	}
}

func TestOpenAPIDeclaresBearerAuth(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	res, body := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/openapi.json", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("openapi status %d: %s", res.StatusCode, string(body))
	}
	var doc map[string]any
	if err := json.Unmarshal(body, &doc); err != nil {
		t.Fatalf("unmarshal openapi: %v", err)
	}
	schemes := doc["components"].(map[string]any)["securitySchemes"].(map[string]any)
	if _, ok := schemes["bearerAuth"]; !ok {
		t.Fatalf("bearerAuth missing: %v", schemes)
	}
}
