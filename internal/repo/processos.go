package repo

import (
	"context"
	"database/sql"
	"errors"

	"sgc/internal/domain"
)

const processoCols = `id,descricao,tipo,situacao,data_limite,data_finalizacao,created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProcesso(row rowScanner) (domain.Processo, error) {
	var p domain.Processo
	var limite, criado string
	var fim sql.NullString
	if err := row.Scan(&p.ID, &p.Descricao, &p.Tipo, &p.Situacao, &limite, &fim, &criado); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return p, ErrNotFound
		}
		return p, err
	}
	var err error
	if p.DataLimite, err = parseTime(limite); err != nil {
		return p, err
	}
	if p.CreatedAt, err = parseTime(criado); err != nil {
		return p, err
	}
	if p.DataFinalizacao, err = timePtr(fim); err != nil {
		return p, err
	}
	return p, nil
}

// InsertProcesso stores p and returns its new id.
func (r Repo) InsertProcesso(ctx context.Context, tx *sql.Tx, p domain.Processo) (int64, error) {
	res, err := tx.ExecContext(ctx, `INSERT INTO processos(descricao,tipo,situacao,data_limite,data_finalizacao,created_at) VALUES (?,?,?,?,?,?)`,
		p.Descricao, p.Tipo, p.Situacao, formatTime(p.DataLimite), nullableTimePtr(p.DataFinalizacao), formatTime(p.CreatedAt))
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (r Repo) UpdateProcesso(ctx context.Context, tx *sql.Tx, p domain.Processo) error {
	res, err := tx.ExecContext(ctx, `UPDATE processos SET descricao=?, tipo=?, situacao=?, data_limite=?, data_finalizacao=? WHERE id=?`,
		p.Descricao, p.Tipo, p.Situacao, formatTime(p.DataLimite), nullableTimePtr(p.DataFinalizacao), p.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) GetProcesso(ctx context.Context, id int64) (domain.Processo, error) {
	return scanProcesso(r.DB.QueryRowContext(ctx, `SELECT `+processoCols+` FROM processos WHERE id=?`, id))
}

func (r Repo) GetProcessoTx(ctx context.Context, tx *sql.Tx, id int64) (domain.Processo, error) {
	return scanProcesso(tx.QueryRowContext(ctx, `SELECT `+processoCols+` FROM processos WHERE id=?`, id))
}

type ProcessoFilters struct {
	Situacao domain.SituacaoProcesso
	Tipo     domain.TipoProcesso
}

func (r Repo) ListProcessos(ctx context.Context, f ProcessoFilters) ([]domain.Processo, error) {
	query := `SELECT ` + processoCols + ` FROM processos WHERE 1=1`
	var args []any
	if f.Situacao != "" {
		query += ` AND situacao=?`
		args = append(args, f.Situacao)
	}
	if f.Tipo != "" {
		query += ` AND tipo=?`
		args = append(args, f.Tipo)
	}
	query += ` ORDER BY id`
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Processo
	for rows.Next() {
		p, err := scanProcesso(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

// DeleteProcesso removes the processo and everything hanging off it:
// subprocessos, their movimentações and análises, and the processo alertas.
func (r Repo) DeleteProcesso(ctx context.Context, tx *sql.Tx, id int64) error {
	if err := r.DeleteSubprocessosDoProcesso(ctx, tx, id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM alertas WHERE processo_id=?`, id); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM processos WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
