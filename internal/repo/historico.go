package repo

import (
	"context"
	"database/sql"

	"sgc/internal/domain"
)

func (r Repo) InsertMovimentacao(ctx context.Context, tx *sql.Tx, m domain.Movimentacao) (int64, error) {
	res, err := tx.ExecContext(ctx, `INSERT INTO movimentacoes(subprocesso_id,unidade_origem,unidade_destino,descricao,data_hora) VALUES (?,?,?,?,?)`,
		m.SubprocessoID, m.UnidadeOrigem, m.UnidadeDestino, m.Descricao, formatTime(m.DataHora))
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// ListMovimentacoes returns the audit trail of a subprocesso, oldest first.
func (r Repo) ListMovimentacoes(ctx context.Context, subprocessoID int64) ([]domain.Movimentacao, error) {
	return listMovimentacoes(ctx, r.DB, subprocessoID)
}

func listMovimentacoes(ctx context.Context, q querier, subprocessoID int64) ([]domain.Movimentacao, error) {
	rows, err := q.QueryContext(ctx, `SELECT id,subprocesso_id,unidade_origem,unidade_destino,descricao,data_hora FROM movimentacoes WHERE subprocesso_id=? ORDER BY id`, subprocessoID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.Movimentacao{}
	for rows.Next() {
		var m domain.Movimentacao
		var ts string
		if err := rows.Scan(&m.ID, &m.SubprocessoID, &m.UnidadeOrigem, &m.UnidadeDestino, &m.Descricao, &ts); err != nil {
			return nil, err
		}
		if m.DataHora, err = parseTime(ts); err != nil {
			return nil, err
		}
		res = append(res, m)
	}
	return res, rows.Err()
}

// CountMovimentacoes counts audit rows referencing any of the given
// subprocesso ids.
func (r Repo) CountMovimentacoes(ctx context.Context, subprocessoIDs []int64) (int, error) {
	if len(subprocessoIDs) == 0 {
		return 0, nil
	}
	var n int
	err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM movimentacoes WHERE subprocesso_id IN (`+placeholders(len(subprocessoIDs))+`)`,
		int64Args(subprocessoIDs)...).Scan(&n)
	return n, err
}

func (r Repo) InsertAnalise(ctx context.Context, tx *sql.Tx, a domain.Analise) (int64, error) {
	res, err := tx.ExecContext(ctx, `INSERT INTO analises(subprocesso_id,unidade,acao,observacoes,data_hora) VALUES (?,?,?,?,?)`,
		a.SubprocessoID, a.Unidade, a.Acao, nullable(a.Observacoes), formatTime(a.DataHora))
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// ClearAnalises ends the current review cycle of a subprocesso.
func (r Repo) ClearAnalises(ctx context.Context, tx *sql.Tx, subprocessoID int64) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM analises WHERE subprocesso_id=?`, subprocessoID)
	return err
}

func listAnalises(ctx context.Context, q querier, subprocessoID int64) ([]domain.Analise, error) {
	rows, err := q.QueryContext(ctx, `SELECT id,subprocesso_id,unidade,acao,COALESCE(observacoes,''),data_hora FROM analises WHERE subprocesso_id=? ORDER BY id`, subprocessoID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.Analise{}
	for rows.Next() {
		var a domain.Analise
		var ts string
		if err := rows.Scan(&a.ID, &a.SubprocessoID, &a.Unidade, &a.Acao, &a.Observacoes, &ts); err != nil {
			return nil, err
		}
		if a.DataHora, err = parseTime(ts); err != nil {
			return nil, err
		}
		res = append(res, a)
	}
	return res, rows.Err()
}

func (r Repo) InsertAlerta(ctx context.Context, tx *sql.Tx, a domain.Alerta) (int64, error) {
	res, err := tx.ExecContext(ctx, `INSERT INTO alertas(processo_id,unidade_origem,unidade_destino,descricao,data_hora) VALUES (?,?,?,?,?)`,
		a.ProcessoID, a.UnidadeOrigem, a.UnidadeDestino, a.Descricao, formatTime(a.DataHora))
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

type AlertaFilters struct {
	Unidade string
	// Unidades restricts the destination to any of the listed units.
	Unidades   []string
	ProcessoID int64
	Limit      int
}

// ListAlertas returns alertas newest first.
func (r Repo) ListAlertas(ctx context.Context, f AlertaFilters) ([]domain.Alerta, error) {
	query := `SELECT id,processo_id,unidade_origem,unidade_destino,descricao,data_hora FROM alertas WHERE 1=1`
	var args []any
	if f.Unidade != "" {
		query += ` AND unidade_destino=?`
		args = append(args, f.Unidade)
	}
	if len(f.Unidades) > 0 {
		query += ` AND unidade_destino IN (` + placeholders(len(f.Unidades)) + `)`
		for _, u := range f.Unidades {
			args = append(args, u)
		}
	}
	if f.ProcessoID > 0 {
		query += ` AND processo_id=?`
		args = append(args, f.ProcessoID)
	}
	query += ` ORDER BY data_hora DESC, id DESC`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.Alerta{}
	for rows.Next() {
		var a domain.Alerta
		var ts string
		if err := rows.Scan(&a.ID, &a.ProcessoID, &a.UnidadeOrigem, &a.UnidadeDestino, &a.Descricao, &ts); err != nil {
			return nil, err
		}
		if a.DataHora, err = parseTime(ts); err != nil {
			return nil, err
		}
		res = append(res, a)
	}
	return res, rows.Err()
}
