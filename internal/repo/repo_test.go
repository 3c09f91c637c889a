package repo

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sgc/internal/db"
	"sgc/internal/domain"
	"sgc/internal/migrate"
)

func openRepo(t *testing.T) Repo {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	require.NoError(t, migrate.Migrate(context.Background(), conn))
	return Repo{DB: conn}
}

func withTx(t *testing.T, r Repo, fn func(tx *sql.Tx)) {
	t.Helper()
	tx, err := r.DB.BeginTx(context.Background(), nil)
	require.NoError(t, err)
	defer tx.Rollback()
	fn(tx)
	require.NoError(t, tx.Commit())
}

func seed(t *testing.T, r Repo) (int64, map[string]int64) {
	t.Helper()
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	var procID int64
	ids := map[string]int64{}
	withTx(t, r, func(tx *sql.Tx) {
		var err error
		procID, err = r.InsertProcesso(ctx, tx, domain.Processo{
			Descricao:  "Mapeamento 2026",
			Tipo:       domain.TipoMapeamento,
			Situacao:   domain.ProcessoCriado,
			DataLimite: now.AddDate(0, 1, 0),
			CreatedAt:  now,
		})
		require.NoError(t, err)
		for _, u := range []string{"STIC", "SESEL"} {
			ids[u], err = r.InsertSubprocesso(ctx, tx, domain.Subprocesso{
				ProcessoID:   procID,
				Unidade:      u,
				UnidadeAtual: u,
				Situacao:     domain.NaoIniciado,
			})
			require.NoError(t, err)
		}
	})
	return procID, ids
}

func TestProcessoRoundTrip(t *testing.T) {
	r := openRepo(t)
	ctx := context.Background()
	procID, _ := seed(t, r)

	p, err := r.GetProcesso(ctx, procID)
	require.NoError(t, err)
	assert.Equal(t, "Mapeamento 2026", p.Descricao)
	assert.Equal(t, domain.ProcessoCriado, p.Situacao)
	assert.Nil(t, p.DataFinalizacao)

	list, err := r.ListProcessos(ctx, ProcessoFilters{Tipo: domain.TipoMapeamento})
	require.NoError(t, err)
	assert.Len(t, list, 1)
	list, err = r.ListProcessos(ctx, ProcessoFilters{Tipo: domain.TipoRevisao})
	require.NoError(t, err)
	assert.Empty(t, list)

	unidades, err := r.UnidadesDoProcesso(ctx, procID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"STIC", "SESEL"}, unidades)

	_, err = r.GetProcesso(ctx, procID+100)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLocalizarReportsAmbiguousUnit(t *testing.T) {
	r := openRepo(t)
	ctx := context.Background()
	procID, ids := seed(t, r)

	withTx(t, r, func(tx *sql.Tx) {
		sp, err := r.GetSubprocessoTx(ctx, tx, ids["SESEL"])
		require.NoError(t, err)
		sp.UnidadeAtual = "STIC"
		require.NoError(t, r.UpdateSubprocesso(ctx, tx, sp))
	})

	withTx(t, r, func(tx *sql.Tx) {
		// STIC owns one subprocesso and holds the other
		_, err := r.LocalizarSubprocessoTx(ctx, tx, procID, "STIC", false)
		assert.ErrorIs(t, err, ErrAmbiguous)

		sp, err := r.LocalizarSubprocessoTx(ctx, tx, procID, "STIC", true)
		require.NoError(t, err)
		assert.Equal(t, ids["STIC"], sp.ID)

		sp, err = r.LocalizarSubprocessoTx(ctx, tx, procID, "SESEL", true)
		require.NoError(t, err)
		assert.Equal(t, "STIC", sp.UnidadeAtual)

		// SESEL no longer holds its own subprocesso but still owns it
		sp, err = r.LocalizarSubprocessoTx(ctx, tx, procID, "SESEL", false)
		require.NoError(t, err)
		assert.Equal(t, ids["SESEL"], sp.ID)

		_, err = r.LocalizarSubprocessoTx(ctx, tx, procID, "COSIS", false)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestUnidadesEmAndamento(t *testing.T) {
	r := openRepo(t)
	ctx := context.Background()
	procID, _ := seed(t, r)

	unidades, err := r.UnidadesEmAndamento(ctx, domain.TipoMapeamento, 0)
	require.NoError(t, err)
	assert.Empty(t, unidades)

	withTx(t, r, func(tx *sql.Tx) {
		p, err := r.GetProcessoTx(ctx, tx, procID)
		require.NoError(t, err)
		p.Situacao = domain.ProcessoEmAndamento
		require.NoError(t, r.UpdateProcesso(ctx, tx, p))
	})

	unidades, err = r.UnidadesEmAndamento(ctx, domain.TipoMapeamento, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"SESEL", "STIC"}, unidades)
	unidades, err = r.UnidadesEmAndamento(ctx, domain.TipoMapeamento, procID)
	require.NoError(t, err)
	assert.Empty(t, unidades)
	unidades, err = r.UnidadesEmAndamento(ctx, domain.TipoDiagnostico, 0)
	require.NoError(t, err)
	assert.Empty(t, unidades)
}

func TestDeleteProcessoRemovesDependents(t *testing.T) {
	r := openRepo(t)
	ctx := context.Background()
	procID, ids := seed(t, r)
	now := time.Now().UTC()

	withTx(t, r, func(tx *sql.Tx) {
		_, err := r.InsertMovimentacao(ctx, tx, domain.Movimentacao{SubprocessoID: ids["STIC"], UnidadeOrigem: "STIC", UnidadeDestino: "SGP", Descricao: "x", DataHora: now})
		require.NoError(t, err)
		_, err = r.InsertAnalise(ctx, tx, domain.Analise{SubprocessoID: ids["STIC"], Unidade: "SGP", Acao: domain.AnaliseAceite, DataHora: now})
		require.NoError(t, err)
		_, err = r.InsertAlerta(ctx, tx, domain.Alerta{ProcessoID: procID, UnidadeOrigem: "SEDOC", UnidadeDestino: "STIC", Descricao: "y", DataHora: now})
		require.NoError(t, err)
	})
	n, err := r.CountMovimentacoes(ctx, []int64{ids["STIC"], ids["SESEL"]})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	withTx(t, r, func(tx *sql.Tx) {
		require.NoError(t, r.DeleteProcesso(ctx, tx, procID))
	})
	n, err = r.CountMovimentacoes(ctx, []int64{ids["STIC"], ids["SESEL"]})
	require.NoError(t, err)
	assert.Zero(t, n)
	alertas, err := r.ListAlertas(ctx, AlertaFilters{ProcessoID: procID})
	require.NoError(t, err)
	assert.Empty(t, alertas)
	subs, err := r.ListSubprocessos(ctx, procID)
	require.NoError(t, err)
	assert.Empty(t, subs)

	withTx(t, r, func(tx *sql.Tx) {
		assert.ErrorIs(t, r.DeleteProcesso(ctx, tx, procID), ErrNotFound)
	})
}

func TestLatestEventsPaging(t *testing.T) {
	r := openRepo(t)
	ctx := context.Background()
	withTx(t, r, func(tx *sql.Tx) {
		for i, typ := range []string{"a", "b", "a", "b"} {
			_, err := tx.ExecContext(ctx, `INSERT INTO events(ts,type,processo_id,entity_kind,actor_id,payload_json) VALUES (?,?,?,?,?,?)`,
				time.Now().UTC().Format(time.RFC3339), typ, int64(i%2+1), "processo", "t", "{}")
			require.NoError(t, err)
		}
	})

	all, err := r.LatestEvents(ctx, 10, 0, "")
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Greater(t, all[0].ID, all[1].ID)

	page, err := r.LatestEventsFrom(ctx, 2, all[1].ID, 0, "")
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, all[2].ID, page[0].ID)

	onlyA, err := r.LatestEvents(ctx, 10, 0, "a")
	require.NoError(t, err)
	assert.Len(t, onlyA, 2)
	byProc, err := r.LatestEvents(ctx, 10, 2, "")
	require.NoError(t, err)
	require.Len(t, byProc, 2)
	require.NotNil(t, byProc[0].ProcessoID)
	assert.Equal(t, int64(2), *byProc[0].ProcessoID)
}
