package server

import (
	"fmt"
	"net/http"
	"strings"
	"testing"

	"sgc/internal/domain"
	"sgc/internal/engine"
)

func criarProcesso(t *testing.T, client *http.Client, url string, headers map[string]string, unidades ...string) domain.Processo {
	t.Helper()
	res, body := doJSON(t, client, http.MethodPost, url+"/v0/processos", map[string]any{
		"descricao":   "Mapeamento 2025",
		"tipo":        "MAPEAMENTO",
		"data_limite": "2025-12-31T00:00:00Z",
		"unidades":    unidades,
	}, headers)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create processo status %d: %s", res.StatusCode, string(body))
	}
	return decode[domain.Processo](t, body)
}

func TestForceRequiresPermission(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()
	admin := bearer(t, "admin", domain.PerfilAdmin, "SEDOC")
	chefe := bearer(t, "chefe.sesel", domain.PerfilChefe, "SESEL")

	proc := criarProcesso(t, client, srv.URL, admin, "SESEL")
	base := fmt.Sprintf("%s/v0/processos/%d", srv.URL, proc.ID)

	res, body := doJSON(t, client, http.MethodPost, base+"/unidades/SESEL/mapa/validar", map[string]any{}, chefe)
	if res.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", res.StatusCode, string(body))
	}

	res, body = doJSON(t, client, http.MethodPost, base+"/unidades/SESEL/mapa/validar", map[string]any{"force": true}, chefe)
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for forced validation, got %d: %s", res.StatusCode, string(body))
	}
	e := decode[apiError](t, body)
	if e.Body.Code != "forbidden" || e.Body.Details["permission"] != engine.PermForce {
		t.Fatalf("unexpected error %+v", e.Body)
	}

	res, body = doJSON(t, client, http.MethodGet, base+"/unidades/SESEL", nil, chefe)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("get subprocesso status %d: %s", res.StatusCode, string(body))
	}
	if sp := decode[domain.Subprocesso](t, body); sp.Situacao != domain.NaoIniciado {
		t.Fatalf("refused force still moved the subprocesso to %s", sp.Situacao)
	}

	res, body = doJSON(t, client, http.MethodPost, base+"/unidades/SEDOC/mapa/aceitar", map[string]any{
		"unidade_subprocesso": "SESEL",
		"force":               true,
	}, admin)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("admin forced homologation status %d: %s", res.StatusCode, string(body))
	}
	if sp := decode[domain.Subprocesso](t, body); sp.Situacao != domain.MapaHomologado {
		t.Fatalf("expected MAPA_HOMOLOGADO, got %s", sp.Situacao)
	}
}

func TestAmbiguousActingUnit(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()
	admin := bearer(t, "admin", domain.PerfilAdmin, "SEDOC")
	chefe := bearer(t, "chefe.sesel", domain.PerfilChefe, "SESEL")
	gestor := bearer(t, "gestor.cosis", domain.PerfilGestor, "COSIS")

	proc := criarProcesso(t, client, srv.URL, admin, "SESEL", "COSIS")
	base := fmt.Sprintf("%s/v0/processos/%d", srv.URL, proc.ID)
	if res, body := doJSON(t, client, http.MethodPost, base+"/iniciar", nil, admin); res.StatusCode != http.StatusOK {
		t.Fatalf("iniciar status %d: %s", res.StatusCode, string(body))
	}
	res, body := doJSON(t, client, http.MethodPost, base+"/unidades/SEDOC/mapa/disponibilizar", map[string]any{
		"unidade_subprocesso": "SESEL",
		"data_limite":         "2026-01-31T00:00:00Z",
		"force":               true,
	}, admin)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("disponibilizar status %d: %s", res.StatusCode, string(body))
	}
	res, body = doJSON(t, client, http.MethodPost, base+"/unidades/SESEL/mapa/validar", map[string]any{}, chefe)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("validar status %d: %s", res.StatusCode, string(body))
	}
	if sp := decode[domain.Subprocesso](t, body); sp.UnidadeAtual != "COSIS" {
		t.Fatalf("expected COSIS to hold the subprocesso, got %s", sp.UnidadeAtual)
	}

	res, body = doJSON(t, client, http.MethodPost, base+"/unidades/COSIS/mapa/rejeitar", map[string]any{"observacoes": "ajustar"}, gestor)
	if res.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", res.StatusCode, string(body))
	}
	if code := errorCode(t, body); code != "ambiguous_subprocesso" {
		t.Fatalf("unexpected code %s", code)
	}

	res, body = doJSON(t, client, http.MethodPost, base+"/unidades/COSIS/mapa/rejeitar", map[string]any{
		"observacoes":         "ajustar",
		"unidade_subprocesso": "SESEL",
	}, gestor)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("rejeitar status %d: %s", res.StatusCode, string(body))
	}
	sp := decode[domain.Subprocesso](t, body)
	if sp.Unidade != "SESEL" || sp.Situacao != domain.MapaDisponibilizado || sp.UnidadeAtual != "SESEL" {
		t.Fatalf("unexpected subprocesso %s %s at %s", sp.Unidade, sp.Situacao, sp.UnidadeAtual)
	}
}

func TestLembreteBloqueioAndMapaBloco(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()
	admin := bearer(t, "admin", domain.PerfilAdmin, "SEDOC")
	chefe := bearer(t, "chefe.sesel", domain.PerfilChefe, "SESEL")

	proc := criarProcesso(t, client, srv.URL, admin, "SESEL")
	base := fmt.Sprintf("%s/v0/processos/%d", srv.URL, proc.ID)
	if res, body := doJSON(t, client, http.MethodPost, base+"/iniciar", nil, admin); res.StatusCode != http.StatusOK {
		t.Fatalf("iniciar status %d: %s", res.StatusCode, string(body))
	}

	res, body := doJSON(t, client, http.MethodPost, base+"/unidades/SESEL/lembrete", nil, admin)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("lembrete status %d: %s", res.StatusCode, string(body))
	}
	a := decode[domain.Alerta](t, body)
	if a.UnidadeDestino != "SESEL" || !strings.HasPrefix(a.Descricao, "Lembrete: Prazo do processo") {
		t.Fatalf("unexpected alerta %+v", a)
	}
	res, body = doJSON(t, client, http.MethodPost, base+"/unidades/SEMARE/lembrete", nil, admin)
	if res.StatusCode != http.StatusUnprocessableEntity || errorCode(t, body) != "unidade_nao_participante" {
		t.Fatalf("expected 422 unidade_nao_participante, got %d: %s", res.StatusCode, string(body))
	}
	res, body = doJSON(t, client, http.MethodPost, base+"/unidades/SESEL/lembrete", nil, chefe)
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for chefe, got %d: %s", res.StatusCode, string(body))
	}

	res, body = doJSON(t, client, http.MethodGet, srv.URL+"/v0/processos/unidades-bloqueadas?tipo=MAPEAMENTO", nil, chefe)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("unidades-bloqueadas status %d: %s", res.StatusCode, string(body))
	}
	if got := decode[[]string](t, body); len(got) != 1 || got[0] != "SESEL" {
		t.Fatalf("expected [SESEL], got %v", got)
	}
	res, body = doJSON(t, client, http.MethodPost, srv.URL+"/v0/processos", map[string]any{
		"descricao":   "Outro mapeamento",
		"tipo":        "MAPEAMENTO",
		"data_limite": "2025-12-31T00:00:00Z",
		"unidades":    []string{"SESEL"},
	}, admin)
	if res.StatusCode != http.StatusConflict || errorCode(t, body) != "unidade_bloqueada" {
		t.Fatalf("expected 409 unidade_bloqueada, got %d: %s", res.StatusCode, string(body))
	}

	bloco := map[string]any{
		"tipo_acao":   "disponibilizar",
		"unidades":    []string{"SESEL"},
		"data_limite": "2026-01-31T00:00:00Z",
	}
	res, body = doJSON(t, client, http.MethodPost, base+"/mapa/bloco", bloco, admin)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("mapa bloco status %d: %s", res.StatusCode, string(body))
	}
	out := decode[engine.ResultadoBloco](t, body)
	if len(out.Processadas) != 0 || len(out.Ignoradas) != 1 {
		t.Fatalf("cadastro still open, expected SESEL skipped: %+v", out)
	}

	bloco["force"] = true
	res, body = doJSON(t, client, http.MethodPost, base+"/mapa/bloco", bloco, admin)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("forced mapa bloco status %d: %s", res.StatusCode, string(body))
	}
	out = decode[engine.ResultadoBloco](t, body)
	if len(out.Processadas) != 1 || out.Processadas[0].Situacao != domain.MapaDisponibilizado {
		t.Fatalf("expected SESEL published, got %+v", out)
	}
}
