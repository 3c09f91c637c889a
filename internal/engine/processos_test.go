package engine_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sgc/internal/domain"
	"sgc/internal/engine"
	"sgc/internal/engine/auth"
	"sgc/internal/repo"
	"sgc/internal/workflow"
)

var admin = auth.Ator{ID: "adm", Perfil: domain.PerfilAdmin, Unidade: "SEDOC"}

func TestProcessarMapaBloco(t *testing.T) {
	env := newTestEnv(t)
	proc := env.criar(t, domain.TipoMapeamento, "SESEL", "SEDESENV", "SEMARE")
	_, err := env.Engine.IniciarProcesso(env.Ctx, local, proc.ID)
	require.NoError(t, err)
	env.forcar(t, proc.ID, "SESEL", domain.MapaCriado, nil)
	env.forcar(t, proc.ID, "SEDESENV", domain.MapaCriado, nil)

	_, err = env.Engine.ProcessarMapaBloco(env.Ctx, admin, workflow.MapaBlocoParams{
		IDProcesso: proc.ID, Unidades: []string{"SESEL"}, TipoAcao: workflow.MapaBlocoDisponibilizar, UnidadeUsuario: "SEDOC",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DataLimite")

	res, err := env.Engine.ProcessarMapaBloco(env.Ctx, admin, workflow.MapaBlocoParams{
		IDProcesso:     proc.ID,
		Unidades:       []string{"SESEL", "SEDESENV", "SEMARE"},
		TipoAcao:       workflow.MapaBlocoDisponibilizar,
		UnidadeUsuario: "SEDOC",
		DataLimite:     dataLimite,
	})
	require.NoError(t, err)
	require.Len(t, res.Processadas, 2)
	for _, sp := range res.Processadas {
		assert.Equal(t, domain.MapaDisponibilizado, sp.Situacao)
		assert.Equal(t, sp.Unidade, sp.UnidadeAtual)
		require.NotNil(t, sp.DataLimiteEtapa2)
		assert.True(t, sp.DataLimiteEtapa2.Equal(dataLimite))
	}
	require.Len(t, res.Ignoradas, 1)
	assert.Equal(t, "SEMARE", res.Ignoradas[0].Unidade)

	for _, u := range []string{"SESEL", "SEDESENV"} {
		sp, err := env.Engine.ValidarMapa(env.Ctx, local, workflow.ValidarMapaParams{Chave: chave(proc.ID, u)})
		require.NoError(t, err)
		assert.Equal(t, "COSIS", sp.UnidadeAtual)
	}

	gestor := auth.Ator{ID: "g1", Perfil: domain.PerfilGestor, Unidade: "COSIS"}
	aceitar := workflow.MapaBlocoParams{
		IDProcesso:     proc.ID,
		Unidades:       []string{"SESEL", "SEDESENV"},
		TipoAcao:       workflow.MapaBlocoAceitar,
		UnidadeUsuario: "COSIS",
	}
	res, err = env.Engine.ProcessarMapaBloco(env.Ctx, gestor, aceitar)
	require.NoError(t, err)
	require.Len(t, res.Processadas, 2)
	assert.Empty(t, res.Ignoradas)
	for _, sp := range res.Processadas {
		assert.Equal(t, domain.MapaValidado, sp.Situacao)
		assert.Equal(t, "STIC", sp.UnidadeAtual)
		last := sp.Movimentacoes[len(sp.Movimentacoes)-1]
		assert.Equal(t, "COSIS", last.UnidadeOrigem)
		assert.Equal(t, "STIC", last.UnidadeDestino)
		assert.Equal(t, "Validação do mapa de competências aceita em bloco", last.Descricao)
	}

	// both now sit with STIC
	res, err = env.Engine.ProcessarMapaBloco(env.Ctx, gestor, aceitar)
	require.NoError(t, err)
	assert.Empty(t, res.Processadas)
	require.Len(t, res.Ignoradas, 2)
	assert.Contains(t, res.Ignoradas[0].Motivo, workflow.ErrSubprocessoEmOutraUnidade.Error())

	homologar := workflow.MapaBlocoParams{
		IDProcesso:     proc.ID,
		Unidades:       []string{"SESEL", "SEDESENV"},
		TipoAcao:       workflow.MapaBlocoHomologar,
		UnidadeUsuario: "SEDOC",
	}
	_, err = env.Engine.ProcessarMapaBloco(env.Ctx, gestor, homologar)
	var fe auth.ForbiddenError
	require.True(t, errors.As(err, &fe), "got %v", err)
	assert.Equal(t, "mapa.homologate", fe.Permission)

	res, err = env.Engine.ProcessarMapaBloco(env.Ctx, admin, homologar)
	require.NoError(t, err)
	require.Len(t, res.Processadas, 2)
	for _, sp := range res.Processadas {
		assert.Equal(t, domain.MapaHomologado, sp.Situacao)
		assert.Empty(t, sp.Analises)
		last := sp.Movimentacoes[len(sp.Movimentacoes)-1]
		assert.Equal(t, "SEDOC", last.UnidadeOrigem)
		assert.Equal(t, "SEDOC", last.UnidadeDestino)
	}

	evts, err := env.Engine.LatestEvents(env.Ctx, local, 1, proc.ID, "")
	require.NoError(t, err)
	require.Len(t, evts, 1)
	assert.Equal(t, "mapa.bloco.homologar", evts[0].Type)
}

func TestEnviarLembrete(t *testing.T) {
	env := newTestEnv(t)
	proc := env.criar(t, domain.TipoMapeamento, "SESEL")

	a, err := env.Engine.EnviarLembrete(env.Ctx, admin, proc.ID, "SESEL")
	require.NoError(t, err)
	assert.NotZero(t, a.ID)
	assert.Equal(t, proc.ID, a.ProcessoID)
	assert.Equal(t, "SEDOC", a.UnidadeOrigem)
	assert.Equal(t, "SESEL", a.UnidadeDestino)
	assert.Equal(t, "Lembrete: Prazo do processo Processo de teste encerra em 31/12/2025", a.Descricao)

	alertas, err := env.Engine.ListAlertas(env.Ctx, local, repo.AlertaFilters{ProcessoID: proc.ID})
	require.NoError(t, err)
	require.Len(t, alertas, 1)
	assert.Equal(t, a.ID, alertas[0].ID)
	evts, err := env.Engine.LatestEvents(env.Ctx, local, 1, proc.ID, "processo.lembrete")
	require.NoError(t, err)
	assert.Len(t, evts, 1)

	_, err = env.Engine.EnviarLembrete(env.Ctx, admin, proc.ID, "SEMARE")
	require.ErrorIs(t, err, workflow.ErrUnidadeNaoParticipante)
	_, err = env.Engine.EnviarLembrete(env.Ctx, admin, 999, "SESEL")
	require.ErrorIs(t, err, workflow.ErrProcessoNaoEncontrado)

	chefe := auth.Ator{ID: "c1", Perfil: domain.PerfilChefe, Unidade: "SESEL"}
	_, err = env.Engine.EnviarLembrete(env.Ctx, chefe, proc.ID, "SESEL")
	var fe auth.ForbiddenError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, "processo.remind", fe.Permission)

	alertas, err = env.Engine.ListAlertas(env.Ctx, local, repo.AlertaFilters{ProcessoID: proc.ID})
	require.NoError(t, err)
	assert.Len(t, alertas, 1)
}

func TestUnidadesEmProcessoAtivoFicamBloqueadas(t *testing.T) {
	env := newTestEnv(t)
	ativo := env.criar(t, domain.TipoMapeamento, "SESEL", "SEDESENV")
	pendente := env.criar(t, domain.TipoMapeamento, "SESEL")
	_, err := env.Engine.IniciarProcesso(env.Ctx, local, ativo.ID)
	require.NoError(t, err)

	bloqueadas, err := env.Engine.UnidadesBloqueadas(env.Ctx, local, domain.TipoMapeamento)
	require.NoError(t, err)
	assert.Equal(t, []string{"SEDESENV", "SESEL"}, bloqueadas)
	bloqueadas, err = env.Engine.UnidadesBloqueadas(env.Ctx, local, domain.TipoRevisao)
	require.NoError(t, err)
	assert.Empty(t, bloqueadas)

	_, err = env.Engine.CriarProcesso(env.Ctx, local, engine.ProcessoParams{
		Descricao: "Outro", Tipo: domain.TipoMapeamento, DataLimite: dataLimite, Unidades: []string{"SEMARE", "SESEL"},
	})
	require.ErrorIs(t, err, workflow.ErrUnidadeBloqueada)
	assert.Contains(t, err.Error(), "SESEL")
	assert.NotContains(t, err.Error(), "SEMARE")

	// another tipo is free to use the same units
	env.criar(t, domain.TipoRevisao, "SESEL")

	livre := env.criar(t, domain.TipoMapeamento, "SEMARE")
	_, err = env.Engine.EditarProcesso(env.Ctx, local, livre.ID, engine.ProcessoParams{
		Descricao: "Editado", Tipo: domain.TipoMapeamento, DataLimite: dataLimite, Unidades: []string{"SEMARE", "SEDESENV"},
	})
	require.ErrorIs(t, err, workflow.ErrUnidadeBloqueada)

	_, err = env.Engine.IniciarProcesso(env.Ctx, local, pendente.ID)
	require.ErrorIs(t, err, workflow.ErrUnidadeBloqueada)
	got, err := env.Engine.GetProcesso(env.Ctx, local, pendente.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ProcessoCriado, got.Situacao)

	_, ok, err := env.Engine.FinalizarProcesso(env.Ctx, local, ativo.ID)
	require.NoError(t, err)
	require.True(t, ok)
	got, err = env.Engine.IniciarProcesso(env.Ctx, local, pendente.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ProcessoEmAndamento, got.Situacao)
}

func TestListAlertasScopedByPerfil(t *testing.T) {
	env := newTestEnv(t)
	proc := env.criar(t, domain.TipoMapeamento, "SESEL", "SEMARE")
	_, err := env.Engine.IniciarProcesso(env.Ctx, local, proc.ID)
	require.NoError(t, err)

	todos, err := env.Engine.ListAlertas(env.Ctx, admin, repo.AlertaFilters{})
	require.NoError(t, err)
	assert.Len(t, todos, 2)

	gestor := auth.Ator{ID: "g1", Perfil: domain.PerfilGestor, Unidade: "STIC"}
	alertas, err := env.Engine.ListAlertas(env.Ctx, gestor, repo.AlertaFilters{})
	require.NoError(t, err)
	require.Len(t, alertas, 1)
	assert.Equal(t, "SESEL", alertas[0].UnidadeDestino)

	alertas, err = env.Engine.ListAlertas(env.Ctx, gestor, repo.AlertaFilters{Unidade: "SESEL"})
	require.NoError(t, err)
	assert.Len(t, alertas, 1)
	alertas, err = env.Engine.ListAlertas(env.Ctx, gestor, repo.AlertaFilters{Unidade: "SEMARE"})
	require.NoError(t, err)
	assert.Empty(t, alertas)

	raiz := auth.Ator{ID: "g2", Perfil: domain.PerfilGestor, Unidade: "SGP"}
	alertas, err = env.Engine.ListAlertas(env.Ctx, raiz, repo.AlertaFilters{})
	require.NoError(t, err)
	assert.Len(t, alertas, 2)

	chefe := auth.Ator{ID: "c1", Perfil: domain.PerfilChefe, Unidade: "COSIS"}
	alertas, err = env.Engine.ListAlertas(env.Ctx, chefe, repo.AlertaFilters{})
	require.NoError(t, err)
	assert.Empty(t, alertas)
	alertas, err = env.Engine.ListAlertas(env.Ctx, chefe, repo.AlertaFilters{Unidade: "SESEL"})
	require.NoError(t, err)
	assert.Empty(t, alertas)
}
