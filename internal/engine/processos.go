package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"sgc/internal/domain"
	"sgc/internal/engine/auth"
	"sgc/internal/events"
	"sgc/internal/repo"
	"sgc/internal/workflow"
)

// ProcessoParams describes a processo and its participating units.
type ProcessoParams struct {
	Descricao  string              `validate:"required"`
	Tipo       domain.TipoProcesso `validate:"required,oneof=MAPEAMENTO REVISAO DIAGNOSTICO"`
	DataLimite time.Time           `validate:"required"`
	Unidades   []string            `validate:"required,min=1,unique,dive,required"`
}

func (e Engine) checkUnidades(unidades []string) error {
	for _, u := range unidades {
		if !e.Arvore.Existe(u) {
			return fmt.Errorf("%w: %s", workflow.ErrUnidadeDesconhecida, u)
		}
	}
	return nil
}

// checkBloqueio refuses units already taking part in another processo of the
// same tipo that is EM_ANDAMENTO.
func (e Engine) checkBloqueio(ctx context.Context, tx *sql.Tx, tipo domain.TipoProcesso, unidades []string, exceto int64) error {
	ativas, err := e.Repo.UnidadesEmAndamentoTx(ctx, tx, tipo, exceto)
	if err != nil {
		return err
	}
	emUso := make(map[string]bool, len(ativas))
	for _, u := range ativas {
		emUso[u] = true
	}
	var bloqueadas []string
	for _, u := range unidades {
		if emUso[u] {
			bloqueadas = append(bloqueadas, u)
		}
	}
	if len(bloqueadas) > 0 {
		return fmt.Errorf("%w: %s", workflow.ErrUnidadeBloqueada, strings.Join(bloqueadas, ", "))
	}
	return nil
}

func novoSubprocesso(processoID int64, u string, limite time.Time) domain.Subprocesso {
	l := limite
	return domain.Subprocesso{
		ProcessoID:       processoID,
		Unidade:          u,
		UnidadeAtual:     u,
		Situacao:         domain.NaoIniciado,
		DataLimiteEtapa1: &l,
	}
}

func (e Engine) CriarProcesso(ctx context.Context, ator auth.Ator, p ProcessoParams) (domain.Processo, error) {
	if err := workflow.Validate(p); err != nil {
		return domain.Processo{}, err
	}
	if err := e.Auth.Require(ator, "processo.create"); err != nil {
		return domain.Processo{}, err
	}
	if err := e.checkUnidades(p.Unidades); err != nil {
		return domain.Processo{}, err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Processo{}, err
	}
	defer tx.Rollback()
	if err := e.checkBloqueio(ctx, tx, p.Tipo, p.Unidades, 0); err != nil {
		return domain.Processo{}, err
	}

	proc := domain.Processo{
		Descricao:  p.Descricao,
		Tipo:       p.Tipo,
		Situacao:   domain.ProcessoCriado,
		DataLimite: p.DataLimite.UTC(),
		CreatedAt:  e.now().UTC(),
	}
	if proc.ID, err = e.Repo.InsertProcesso(ctx, tx, proc); err != nil {
		return proc, fmt.Errorf("insert processo: %w", err)
	}
	for _, u := range p.Unidades {
		if _, err := e.Repo.InsertSubprocesso(ctx, tx, novoSubprocesso(proc.ID, u, proc.DataLimite)); err != nil {
			return proc, fmt.Errorf("insert subprocesso %s: %w", u, err)
		}
	}
	if err := e.appendEvent(ctx, tx, "processo.criado", proc.ID, "processo", proc.ID, ator, events.EventPayload{
		"tipo":     proc.Tipo,
		"unidades": p.Unidades,
	}); err != nil {
		return proc, err
	}
	if err := tx.Commit(); err != nil {
		return proc, err
	}
	e.logger().WithFields(logrus.Fields{"processo": proc.ID, "tipo": proc.Tipo}).Info("processo criado")
	return proc, nil
}

// EditarProcesso rewrites the processo and replaces its whole subprocesso
// set, discarding their situação and history. Callers only edit processos
// that were not started.
func (e Engine) EditarProcesso(ctx context.Context, ator auth.Ator, id int64, p ProcessoParams) (domain.Processo, error) {
	if err := workflow.Validate(p); err != nil {
		return domain.Processo{}, err
	}
	if err := e.Auth.Require(ator, "processo.update"); err != nil {
		return domain.Processo{}, err
	}
	if err := e.checkUnidades(p.Unidades); err != nil {
		return domain.Processo{}, err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Processo{}, err
	}
	defer tx.Rollback()

	proc, err := e.Repo.GetProcessoTx(ctx, tx, id)
	if errors.Is(err, repo.ErrNotFound) {
		return proc, fmt.Errorf("%w: %d", workflow.ErrProcessoNaoEncontrado, id)
	}
	if err != nil {
		return proc, err
	}
	if err := e.checkBloqueio(ctx, tx, p.Tipo, p.Unidades, id); err != nil {
		return proc, err
	}
	proc.Descricao = p.Descricao
	proc.Tipo = p.Tipo
	proc.DataLimite = p.DataLimite.UTC()
	if err := e.Repo.UpdateProcesso(ctx, tx, proc); err != nil {
		return proc, err
	}
	if err := e.Repo.DeleteSubprocessosDoProcesso(ctx, tx, id); err != nil {
		return proc, fmt.Errorf("delete subprocessos: %w", err)
	}
	for _, u := range p.Unidades {
		if _, err := e.Repo.InsertSubprocesso(ctx, tx, novoSubprocesso(id, u, proc.DataLimite)); err != nil {
			return proc, fmt.Errorf("insert subprocesso %s: %w", u, err)
		}
	}
	if err := e.appendEvent(ctx, tx, "processo.editado", id, "processo", id, ator, events.EventPayload{
		"tipo":     proc.Tipo,
		"unidades": p.Unidades,
	}); err != nil {
		return proc, err
	}
	if err := tx.Commit(); err != nil {
		return proc, err
	}
	return proc, nil
}

// IniciarProcesso moves the processo to EM_ANDAMENTO and opens the cadastro
// stage of every subprocesso.
func (e Engine) IniciarProcesso(ctx context.Context, ator auth.Ator, id int64) (domain.Processo, error) {
	if err := e.Auth.Require(ator, "processo.start"); err != nil {
		return domain.Processo{}, err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Processo{}, err
	}
	defer tx.Rollback()

	proc, err := e.Repo.GetProcessoTx(ctx, tx, id)
	if errors.Is(err, repo.ErrNotFound) {
		return proc, fmt.Errorf("%w: %d", workflow.ErrProcessoNaoEncontrado, id)
	}
	if err != nil {
		return proc, err
	}
	if err := workflow.EnsureProcessoTransicao(proc.Situacao, domain.ProcessoEmAndamento); err != nil {
		return proc, err
	}
	subs, err := e.Repo.ListSubprocessosTx(ctx, tx, id)
	if err != nil {
		return proc, err
	}
	unidades := make([]string, 0, len(subs))
	for _, sp := range subs {
		unidades = append(unidades, sp.Unidade)
	}
	if err := e.checkBloqueio(ctx, tx, proc.Tipo, unidades, id); err != nil {
		return proc, err
	}
	m := e.maquina()
	now := e.now().UTC()
	var notificacoes []domain.Notificacao
	for _, sp := range subs {
		r, err := m.Iniciar(proc, sp, now)
		if err != nil {
			return proc, fmt.Errorf("subprocesso %s: %w", sp.Unidade, err)
		}
		if err := e.persistir(ctx, tx, proc, sp, &r, "iniciado", ator); err != nil {
			return proc, err
		}
		notificacoes = append(notificacoes, r.Efeitos.Notificacoes...)
	}
	de := proc.Situacao
	proc.Situacao = domain.ProcessoEmAndamento
	if err := e.Repo.UpdateProcesso(ctx, tx, proc); err != nil {
		return proc, err
	}
	if err := e.appendEvent(ctx, tx, "processo.iniciado", id, "processo", id, ator, events.EventPayload{
		"de": de, "para": proc.Situacao, "subprocessos": len(subs),
	}); err != nil {
		return proc, err
	}
	if err := tx.Commit(); err != nil {
		return proc, err
	}
	e.Notify.Dispatch(notificacoes)
	e.logger().WithFields(logrus.Fields{"processo": id, "subprocessos": len(subs)}).Info("processo iniciado")
	return proc, nil
}

// RemoverProcesso deletes the processo with its subprocessos, their
// movimentações and análises, and its alertas.
func (e Engine) RemoverProcesso(ctx context.Context, ator auth.Ator, id int64) error {
	if err := e.Auth.Require(ator, "processo.delete"); err != nil {
		return err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Repo.DeleteProcesso(ctx, tx, id); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return fmt.Errorf("%w: %d", workflow.ErrProcessoNaoEncontrado, id)
		}
		return err
	}
	if err := e.appendEvent(ctx, tx, "processo.removido", 0, "processo", id, ator, nil); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	e.logger().WithField("processo", id).Info("processo removido")
	return nil
}

// FinalizarProcesso closes a processo in EM_ANDAMENTO and stamps its
// completion date. An unknown id is a no-op and returns ok=false.
func (e Engine) FinalizarProcesso(ctx context.Context, ator auth.Ator, id int64) (proc domain.Processo, ok bool, err error) {
	if err := e.Auth.Require(ator, "processo.finish"); err != nil {
		return proc, false, err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return proc, false, err
	}
	defer tx.Rollback()

	proc, err = e.Repo.GetProcessoTx(ctx, tx, id)
	if errors.Is(err, repo.ErrNotFound) {
		return proc, false, nil
	}
	if err != nil {
		return proc, false, err
	}
	if err := workflow.EnsureProcessoTransicao(proc.Situacao, domain.ProcessoFinalizado); err != nil {
		return proc, true, err
	}
	de := proc.Situacao
	fim := e.now().UTC()
	proc.Situacao = domain.ProcessoFinalizado
	proc.DataFinalizacao = &fim
	if err := e.Repo.UpdateProcesso(ctx, tx, proc); err != nil {
		return proc, true, err
	}
	if err := e.appendEvent(ctx, tx, "processo.finalizado", id, "processo", id, ator, events.EventPayload{"de": de, "para": proc.Situacao}); err != nil {
		return proc, true, err
	}
	if err := tx.Commit(); err != nil {
		return proc, true, err
	}
	e.logger().WithField("processo", id).Info("processo finalizado")
	return proc, true, nil
}

func (e Engine) GetProcesso(ctx context.Context, ator auth.Ator, id int64) (domain.Processo, error) {
	if err := e.Auth.Require(ator, "processo.read"); err != nil {
		return domain.Processo{}, err
	}
	proc, err := e.Repo.GetProcesso(ctx, id)
	if errors.Is(err, repo.ErrNotFound) {
		return proc, fmt.Errorf("%w: %d", workflow.ErrProcessoNaoEncontrado, id)
	}
	return proc, err
}

func (e Engine) ListProcessos(ctx context.Context, ator auth.Ator, f repo.ProcessoFilters) ([]domain.Processo, error) {
	if err := e.Auth.Require(ator, "processo.read"); err != nil {
		return nil, err
	}
	return e.Repo.ListProcessos(ctx, f)
}

// ListAlertas returns alertas newest first. A GESTOR sees the alertas of its
// unit and every unit below it; CHEFE and SERVIDOR only see their own unit.
func (e Engine) ListAlertas(ctx context.Context, ator auth.Ator, f repo.AlertaFilters) ([]domain.Alerta, error) {
	if err := e.Auth.Require(ator, "alerta.read"); err != nil {
		return nil, err
	}
	if ator.Local() || ator.Perfil == domain.PerfilAdmin {
		return e.Repo.ListAlertas(ctx, f)
	}
	escopo := []string{ator.Unidade}
	if ator.Perfil == domain.PerfilGestor {
		if sub := e.Arvore.Subordinadas(ator.Unidade); len(sub) > 0 {
			escopo = sub
		}
	}
	if f.Unidade != "" {
		if !slices.Contains(escopo, f.Unidade) {
			return []domain.Alerta{}, nil
		}
	} else {
		f.Unidades = escopo
	}
	return e.Repo.ListAlertas(ctx, f)
}

// UnidadesBloqueadas lists the units that cannot join a new processo of tipo
// because they take part in one that is EM_ANDAMENTO.
func (e Engine) UnidadesBloqueadas(ctx context.Context, ator auth.Ator, tipo domain.TipoProcesso) ([]string, error) {
	if err := e.Auth.Require(ator, "processo.read"); err != nil {
		return nil, err
	}
	if !tipo.Valid() {
		return nil, fmt.Errorf("tipo de processo inválido: %q", tipo)
	}
	return e.Repo.UnidadesEmAndamento(ctx, tipo, 0)
}

// EnviarLembrete sends the admin unit's deadline reminder to a participating
// unit as an alerta.
func (e Engine) EnviarLembrete(ctx context.Context, ator auth.Ator, id int64, unidade string) (domain.Alerta, error) {
	if err := e.Auth.Require(ator, "processo.remind"); err != nil {
		return domain.Alerta{}, err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Alerta{}, err
	}
	defer tx.Rollback()

	proc, err := e.Repo.GetProcessoTx(ctx, tx, id)
	if errors.Is(err, repo.ErrNotFound) {
		return domain.Alerta{}, fmt.Errorf("%w: %d", workflow.ErrProcessoNaoEncontrado, id)
	}
	if err != nil {
		return domain.Alerta{}, err
	}
	if _, err := e.Repo.LocalizarSubprocessoTx(ctx, tx, id, unidade, true); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return domain.Alerta{}, fmt.Errorf("%w: %s", workflow.ErrUnidadeNaoParticipante, unidade)
		}
		return domain.Alerta{}, err
	}
	a := workflow.Lembrete(proc, e.Config.UnidadeAdmin, unidade, e.now().UTC())
	if a.ID, err = e.Repo.InsertAlerta(ctx, tx, a); err != nil {
		return a, fmt.Errorf("insert alerta: %w", err)
	}
	if err := e.appendEvent(ctx, tx, "processo.lembrete", id, "processo", id, ator, events.EventPayload{"unidade": unidade}); err != nil {
		return a, err
	}
	if err := tx.Commit(); err != nil {
		return a, err
	}
	e.logger().WithFields(logrus.Fields{"processo": id, "unidade": unidade}).Info("lembrete enviado")
	return a, nil
}

func (e Engine) LatestEvents(ctx context.Context, ator auth.Ator, limit int, processoID int64, evtType string) ([]domain.Event, error) {
	if err := e.Auth.Require(ator, "events.read"); err != nil {
		return nil, err
	}
	return e.Repo.LatestEvents(ctx, limit, processoID, evtType)
}
