package events

import (
	"context"
	"database/sql"
	"fmt"

	"sgc/internal/repo"
	"sgc/internal/workflow"
)

// Applier persists the storable part of a transition's effects. Notificações
// are left to the caller, which dispatches them after commit.
type Applier struct {
	Repo repo.Repo
}

// Apply writes effects in order: análises reset, movimentações, new análises,
// alertas. Ids assigned by the database are written back into ef.
func (a Applier) Apply(ctx context.Context, tx *sql.Tx, subprocessoID int64, ef *workflow.Efeitos) error {
	if ef.LimparAnalises {
		if err := a.Repo.ClearAnalises(ctx, tx, subprocessoID); err != nil {
			return fmt.Errorf("clear analises: %w", err)
		}
	}
	for i := range ef.Movimentacoes {
		ef.Movimentacoes[i].SubprocessoID = subprocessoID
		id, err := a.Repo.InsertMovimentacao(ctx, tx, ef.Movimentacoes[i])
		if err != nil {
			return fmt.Errorf("insert movimentacao: %w", err)
		}
		ef.Movimentacoes[i].ID = id
	}
	for i := range ef.Analises {
		ef.Analises[i].SubprocessoID = subprocessoID
		id, err := a.Repo.InsertAnalise(ctx, tx, ef.Analises[i])
		if err != nil {
			return fmt.Errorf("insert analise: %w", err)
		}
		ef.Analises[i].ID = id
	}
	for i := range ef.Alertas {
		id, err := a.Repo.InsertAlerta(ctx, tx, ef.Alertas[i])
		if err != nil {
			return fmt.Errorf("insert alerta: %w", err)
		}
		ef.Alertas[i].ID = id
	}
	return nil
}
