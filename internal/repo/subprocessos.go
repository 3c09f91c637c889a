package repo

import (
	"context"
	"database/sql"
	"errors"

	"sgc/internal/domain"
)

const subprocessoCols = `id,processo_id,unidade,unidade_atual,unidade_anterior,situacao,data_limite_etapa1,data_limite_etapa2,data_fim_etapa1,data_fim_etapa2,sugestoes,observacoes,mapa_copiado_id`

func scanSubprocesso(row rowScanner) (domain.Subprocesso, error) {
	var sp domain.Subprocesso
	var anterior, lim1, lim2, fim1, fim2, sugestoes, obs sql.NullString
	var mapa sql.NullInt64
	err := row.Scan(&sp.ID, &sp.ProcessoID, &sp.Unidade, &sp.UnidadeAtual, &anterior, &sp.Situacao,
		&lim1, &lim2, &fim1, &fim2, &sugestoes, &obs, &mapa)
	if errors.Is(err, sql.ErrNoRows) {
		return sp, ErrNotFound
	}
	if err != nil {
		return sp, err
	}
	sp.UnidadeAnterior = stringPtr(anterior)
	sp.Sugestoes = stringPtr(sugestoes)
	sp.Observacoes = stringPtr(obs)
	if mapa.Valid {
		v := mapa.Int64
		sp.MapaCopiadoID = &v
	}
	if sp.DataLimiteEtapa1, err = timePtr(lim1); err != nil {
		return sp, err
	}
	if sp.DataLimiteEtapa2, err = timePtr(lim2); err != nil {
		return sp, err
	}
	if sp.DataFimEtapa1, err = timePtr(fim1); err != nil {
		return sp, err
	}
	if sp.DataFimEtapa2, err = timePtr(fim2); err != nil {
		return sp, err
	}
	sp.Analises = []domain.Analise{}
	sp.Movimentacoes = []domain.Movimentacao{}
	return sp, nil
}

func (r Repo) InsertSubprocesso(ctx context.Context, tx *sql.Tx, sp domain.Subprocesso) (int64, error) {
	res, err := tx.ExecContext(ctx, `INSERT INTO subprocessos(processo_id,unidade,unidade_atual,unidade_anterior,situacao,data_limite_etapa1,data_limite_etapa2,data_fim_etapa1,data_fim_etapa2,sugestoes,observacoes,mapa_copiado_id)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
		sp.ProcessoID, sp.Unidade, sp.UnidadeAtual, nullableStringPtr(sp.UnidadeAnterior), sp.Situacao,
		nullableTimePtr(sp.DataLimiteEtapa1), nullableTimePtr(sp.DataLimiteEtapa2),
		nullableTimePtr(sp.DataFimEtapa1), nullableTimePtr(sp.DataFimEtapa2),
		sp.Sugestoes, sp.Observacoes, nullableInt64Ptr(sp.MapaCopiadoID))
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// UpdateSubprocesso writes the mutable fields. Unidade and ProcessoID never
// change after creation.
func (r Repo) UpdateSubprocesso(ctx context.Context, tx *sql.Tx, sp domain.Subprocesso) error {
	res, err := tx.ExecContext(ctx, `UPDATE subprocessos SET unidade_atual=?, unidade_anterior=?, situacao=?, data_limite_etapa1=?, data_limite_etapa2=?, data_fim_etapa1=?, data_fim_etapa2=?, sugestoes=?, observacoes=?, mapa_copiado_id=? WHERE id=?`,
		sp.UnidadeAtual, nullableStringPtr(sp.UnidadeAnterior), sp.Situacao,
		nullableTimePtr(sp.DataLimiteEtapa1), nullableTimePtr(sp.DataLimiteEtapa2),
		nullableTimePtr(sp.DataFimEtapa1), nullableTimePtr(sp.DataFimEtapa2),
		sp.Sugestoes, sp.Observacoes, nullableInt64Ptr(sp.MapaCopiadoID), sp.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetSubprocesso loads a subprocesso with its análises and movimentações.
func (r Repo) GetSubprocesso(ctx context.Context, id int64) (domain.Subprocesso, error) {
	return getSubprocesso(ctx, r.DB, id)
}

func (r Repo) GetSubprocessoTx(ctx context.Context, tx *sql.Tx, id int64) (domain.Subprocesso, error) {
	return getSubprocesso(ctx, tx, id)
}

func getSubprocesso(ctx context.Context, q querier, id int64) (domain.Subprocesso, error) {
	sp, err := scanSubprocesso(q.QueryRowContext(ctx, `SELECT `+subprocessoCols+` FROM subprocessos WHERE id=?`, id))
	if err != nil {
		return sp, err
	}
	return withHistory(ctx, q, sp)
}

func withHistory(ctx context.Context, q querier, sp domain.Subprocesso) (domain.Subprocesso, error) {
	var err error
	if sp.Analises, err = listAnalises(ctx, q, sp.ID); err != nil {
		return sp, err
	}
	if sp.Movimentacoes, err = listMovimentacoes(ctx, q, sp.ID); err != nil {
		return sp, err
	}
	return sp, nil
}

// LocalizarSubprocessoTx resolves the (processo, unidade) key. Without exato
// the key matches the subprocesso whose home unit is unidade or the one
// currently held by unidade; when both exist, or unidade holds several,
// ErrAmbiguous is returned and no row is picked. With exato only the home
// unit matches.
func (r Repo) LocalizarSubprocessoTx(ctx context.Context, tx *sql.Tx, processoID int64, unidade string, exato bool) (domain.Subprocesso, error) {
	if exato {
		sp, err := scanSubprocesso(tx.QueryRowContext(ctx, `SELECT `+subprocessoCols+` FROM subprocessos WHERE processo_id=? AND unidade=?`, processoID, unidade))
		if err != nil {
			return sp, err
		}
		return withHistory(ctx, tx, sp)
	}
	rows, err := tx.QueryContext(ctx, `SELECT `+subprocessoCols+` FROM subprocessos WHERE processo_id=? AND (unidade=? OR unidade_atual=?) ORDER BY id LIMIT 2`,
		processoID, unidade, unidade)
	if err != nil {
		return domain.Subprocesso{}, err
	}
	var found []domain.Subprocesso
	for rows.Next() {
		sp, err := scanSubprocesso(rows)
		if err != nil {
			rows.Close()
			return domain.Subprocesso{}, err
		}
		found = append(found, sp)
	}
	if err := rows.Close(); err != nil {
		return domain.Subprocesso{}, err
	}
	if err := rows.Err(); err != nil {
		return domain.Subprocesso{}, err
	}
	switch len(found) {
	case 0:
		return domain.Subprocesso{}, ErrNotFound
	case 1:
		return withHistory(ctx, tx, found[0])
	default:
		return domain.Subprocesso{}, ErrAmbiguous
	}
}

// ListSubprocessos returns the subprocessos of a processo without history.
func (r Repo) ListSubprocessos(ctx context.Context, processoID int64) ([]domain.Subprocesso, error) {
	return listSubprocessos(ctx, r.DB, processoID)
}

func (r Repo) ListSubprocessosTx(ctx context.Context, tx *sql.Tx, processoID int64) ([]domain.Subprocesso, error) {
	return listSubprocessos(ctx, tx, processoID)
}

func listSubprocessos(ctx context.Context, q querier, processoID int64) ([]domain.Subprocesso, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+subprocessoCols+` FROM subprocessos WHERE processo_id=? ORDER BY id`, processoID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Subprocesso
	for rows.Next() {
		sp, err := scanSubprocesso(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, sp)
	}
	return res, rows.Err()
}

// UnidadesDoProcesso lists the home units of a processo's subprocessos.
func (r Repo) UnidadesDoProcesso(ctx context.Context, processoID int64) ([]string, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT unidade FROM subprocessos WHERE processo_id=? ORDER BY unidade`, processoID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []string{}
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, err
		}
		res = append(res, u)
	}
	return res, rows.Err()
}

// UnidadesEmAndamento lists the units taking part in a processo of tipo
// that is EM_ANDAMENTO, leaving out processo exceto.
func (r Repo) UnidadesEmAndamento(ctx context.Context, tipo domain.TipoProcesso, exceto int64) ([]string, error) {
	return unidadesEmAndamento(ctx, r.DB, tipo, exceto)
}

func (r Repo) UnidadesEmAndamentoTx(ctx context.Context, tx *sql.Tx, tipo domain.TipoProcesso, exceto int64) ([]string, error) {
	return unidadesEmAndamento(ctx, tx, tipo, exceto)
}

func unidadesEmAndamento(ctx context.Context, q querier, tipo domain.TipoProcesso, exceto int64) ([]string, error) {
	rows, err := q.QueryContext(ctx, `SELECT DISTINCT s.unidade FROM subprocessos s JOIN processos p ON p.id=s.processo_id
WHERE p.situacao=? AND p.tipo=? AND p.id<>? ORDER BY s.unidade`, domain.ProcessoEmAndamento, tipo, exceto)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []string{}
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, err
		}
		res = append(res, u)
	}
	return res, rows.Err()
}

// DeleteSubprocessosDoProcesso cascades by hand: movimentações and análises
// of every subprocesso first, then the subprocessos.
func (r Repo) DeleteSubprocessosDoProcesso(ctx context.Context, tx *sql.Tx, processoID int64) error {
	rows, err := tx.QueryContext(ctx, `SELECT id FROM subprocessos WHERE processo_id=?`, processoID)
	if err != nil {
		return err
	}
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}
	if len(ids) > 0 {
		in := placeholders(len(ids))
		if _, err := tx.ExecContext(ctx, `DELETE FROM movimentacoes WHERE subprocesso_id IN (`+in+`)`, int64Args(ids)...); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM analises WHERE subprocesso_id IN (`+in+`)`, int64Args(ids)...); err != nil {
			return err
		}
	}
	_, err = tx.ExecContext(ctx, `DELETE FROM subprocessos WHERE processo_id=?`, processoID)
	return err
}
