package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"sgc/internal/config"
	"sgc/internal/domain"
	"sgc/internal/engine/auth"
	"sgc/internal/events"
	"sgc/internal/notify"
	"sgc/internal/repo"
	"sgc/internal/unidade"
	"sgc/internal/workflow"
)

type Engine struct {
	DB      *sql.DB
	Repo    repo.Repo
	Events  events.Writer
	Efeitos events.Applier
	Config  *config.Config
	Arvore  *unidade.Arvore
	Auth    auth.Service
	Notify  *notify.Dispatcher
	Log     *logrus.Logger
	Now     func() time.Time
}

// New wires an engine over an already migrated database. Notifications go
// to the notifier configured in cfg and are dispatched asynchronously.
func New(db *sql.DB, cfg *config.Config, logger *logrus.Logger) (Engine, error) {
	if cfg == nil {
		return Engine{}, errors.New("config not loaded")
	}
	arv, err := unidade.FromConfig(cfg)
	if err != nil {
		return Engine{}, err
	}
	if logger == nil {
		logger = cfg.NewLogger(nil)
	}
	r := repo.Repo{DB: db}
	return Engine{
		DB:      db,
		Repo:    r,
		Events:  events.Writer{DB: db},
		Efeitos: events.Applier{Repo: r},
		Config:  cfg,
		Arvore:  arv,
		Auth:    auth.Service{Config: cfg},
		Notify:  &notify.Dispatcher{Notifier: notify.FromConfig(cfg, logger), Logger: logger, Async: true},
		Log:     logger,
		Now:     time.Now,
	}, nil
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) logger() *logrus.Logger {
	if e.Log != nil {
		return e.Log
	}
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func (e Engine) maquina() workflow.Maquina {
	return workflow.Maquina{
		Hierarquia:   e.Arvore,
		UnidadeAdmin: e.Config.UnidadeAdmin,
		Estrita:      e.Config.Workflow.TransicoesEstritas,
	}
}

func (e Engine) appendEvent(ctx context.Context, tx *sql.Tx, evtType string, processoID int64, kind string, entityID int64, ator auth.Ator, payload events.EventPayload) error {
	e.Events.Now = e.Now
	return e.Events.Append(ctx, tx, evtType, processoID, kind, strconv.FormatInt(entityID, 10), ator.ID, payload)
}

// localizar resolves a Chave to a subprocesso inside tx.
func (e Engine) localizar(ctx context.Context, tx *sql.Tx, k workflow.Chave) (domain.Processo, domain.Subprocesso, error) {
	proc, err := e.Repo.GetProcessoTx(ctx, tx, k.IDProcesso)
	if errors.Is(err, repo.ErrNotFound) {
		return proc, domain.Subprocesso{}, fmt.Errorf("%w: processo %d", workflow.ErrSubprocessoNaoEncontrado, k.IDProcesso)
	}
	if err != nil {
		return proc, domain.Subprocesso{}, err
	}
	unidadeChave, exato := k.Unidade, false
	if k.UnidadeSubprocesso != "" {
		unidadeChave, exato = k.UnidadeSubprocesso, true
	}
	sp, err := e.Repo.LocalizarSubprocessoTx(ctx, tx, k.IDProcesso, unidadeChave, exato)
	switch {
	case errors.Is(err, repo.ErrNotFound):
		return proc, sp, fmt.Errorf("%w: processo %d unidade %s", workflow.ErrSubprocessoNaoEncontrado, k.IDProcesso, unidadeChave)
	case errors.Is(err, repo.ErrAmbiguous):
		return proc, sp, fmt.Errorf("%w: processo %d unidade %s", workflow.ErrSubprocessoAmbiguo, k.IDProcesso, unidadeChave)
	}
	return proc, sp, err
}

// PermForce lets a caller bypass the transition table.
const PermForce = "workflow.force"

func (e Engine) requireForce(ator auth.Ator, force bool) error {
	if !force {
		return nil
	}
	return e.Auth.Require(ator, PermForce)
}

type transicao func(m workflow.Maquina, proc domain.Processo, sp domain.Subprocesso, now time.Time) (workflow.Resultado, error)

// transicionar runs one subprocesso transition: validation and permission
// check, lookup, the pure state change, then a single transaction writing
// the new state, its effects and an audit event. Notifications go out only
// after commit.
func (e Engine) transicionar(ctx context.Context, ator auth.Ator, perm, acao string, params any, k workflow.Chave, fn transicao) (domain.Subprocesso, error) {
	if err := workflow.Validate(params); err != nil {
		return domain.Subprocesso{}, err
	}
	if err := e.Auth.Require(ator, perm); err != nil {
		return domain.Subprocesso{}, err
	}
	if err := e.requireForce(ator, k.Force); err != nil {
		return domain.Subprocesso{}, err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Subprocesso{}, err
	}
	defer tx.Rollback()

	proc, sp, err := e.localizar(ctx, tx, k)
	if err != nil {
		return sp, err
	}
	now := e.now().UTC()
	res, err := fn(e.maquina(), proc, sp, now)
	if err != nil {
		return sp, err
	}
	if err := e.persistir(ctx, tx, proc, sp, &res, acao, ator); err != nil {
		return sp, err
	}
	if err := tx.Commit(); err != nil {
		return sp, err
	}
	e.Notify.Dispatch(res.Efeitos.Notificacoes)
	e.logger().WithFields(logrus.Fields{
		"processo": proc.ID,
		"unidade":  sp.Unidade,
		"acao":     acao,
		"situacao": res.Subprocesso.Situacao,
	}).Info("transicao aplicada")
	return e.Repo.GetSubprocesso(ctx, sp.ID)
}

func (e Engine) persistir(ctx context.Context, tx *sql.Tx, proc domain.Processo, antes domain.Subprocesso, res *workflow.Resultado, acao string, ator auth.Ator) error {
	if err := e.Repo.UpdateSubprocesso(ctx, tx, res.Subprocesso); err != nil {
		return fmt.Errorf("update subprocesso: %w", err)
	}
	if err := e.Efeitos.Apply(ctx, tx, antes.ID, &res.Efeitos); err != nil {
		return err
	}
	return e.appendEvent(ctx, tx, "subprocesso."+acao, proc.ID, "subprocesso", antes.ID, ator, events.EventPayload{
		"unidade":       antes.Unidade,
		"de":            antes.Situacao,
		"para":          res.Subprocesso.Situacao,
		"unidade_atual": res.Subprocesso.UnidadeAtual,
		"movimentacoes": len(res.Efeitos.Movimentacoes),
		"alertas":       len(res.Efeitos.Alertas),
		"notificacoes":  len(res.Efeitos.Notificacoes),
	})
}

// Wait blocks until pending notification batches are delivered.
func (e Engine) Wait() {
	e.Notify.Wait()
}
