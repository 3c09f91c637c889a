package engine

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"sgc/internal/domain"
	"sgc/internal/engine/auth"
	"sgc/internal/events"
	"sgc/internal/repo"
	"sgc/internal/workflow"
)

type UnidadeIgnorada struct {
	Unidade string `json:"unidade"`
	Motivo  string `json:"motivo"`
}

// ResultadoBloco reports what a batch action did per unit.
type ResultadoBloco struct {
	Processadas []domain.Subprocesso `json:"processadas"`
	Ignoradas   []UnidadeIgnorada    `json:"ignoradas"`
}

type passoBloco func(m workflow.Maquina, proc domain.Processo, sp domain.Subprocesso, now time.Time) (workflow.Resultado, error)

// ProcessarCadastroBloco accepts or homologates the cadastro of several units
// in one transaction. Units without a subprocesso, or whose subprocesso
// refuses the transition, are skipped and reported; they never abort the
// batch.
func (e Engine) ProcessarCadastroBloco(ctx context.Context, ator auth.Ator, p workflow.CadastroBlocoParams) (ResultadoBloco, error) {
	if err := workflow.Validate(p); err != nil {
		return novoResultadoBloco(), err
	}
	if err := e.Auth.Require(ator, "cadastro.batch"); err != nil {
		return novoResultadoBloco(), err
	}
	if err := e.requireForce(ator, p.Force); err != nil {
		return novoResultadoBloco(), err
	}
	return e.processarBloco(ctx, ator, "cadastro.bloco."+string(p.TipoAcao), p.IDProcesso, p.Unidades,
		func(m workflow.Maquina, _ domain.Processo, sp domain.Subprocesso, now time.Time) (workflow.Resultado, error) {
			if p.TipoAcao == workflow.BlocoAceitar {
				return m.AceitarCadastroBloco(sp, p.UnidadeUsuario, now), nil
			}
			return m.HomologarCadastroBloco(sp, p.Force, now)
		})
}

var permMapaBloco = map[workflow.TipoAcaoMapaBloco]string{
	workflow.MapaBlocoDisponibilizar: "mapa.publish",
	workflow.MapaBlocoAceitar:        "mapa.accept",
	workflow.MapaBlocoHomologar:      "mapa.homologate",
}

// ProcessarMapaBloco publishes, accepts the validation of, or homologates the
// map of several units in one transaction, with the same skip rules as
// ProcessarCadastroBloco.
func (e Engine) ProcessarMapaBloco(ctx context.Context, ator auth.Ator, p workflow.MapaBlocoParams) (ResultadoBloco, error) {
	if err := workflow.Validate(p); err != nil {
		return novoResultadoBloco(), err
	}
	if err := e.Auth.Require(ator, "mapa.batch"); err != nil {
		return novoResultadoBloco(), err
	}
	if err := e.Auth.Require(ator, permMapaBloco[p.TipoAcao]); err != nil {
		return novoResultadoBloco(), err
	}
	if err := e.requireForce(ator, p.Force); err != nil {
		return novoResultadoBloco(), err
	}
	return e.processarBloco(ctx, ator, "mapa.bloco."+string(p.TipoAcao), p.IDProcesso, p.Unidades,
		func(m workflow.Maquina, proc domain.Processo, sp domain.Subprocesso, now time.Time) (workflow.Resultado, error) {
			return m.MapaBloco(proc, sp, p, now)
		})
}

func novoResultadoBloco() ResultadoBloco {
	return ResultadoBloco{Processadas: []domain.Subprocesso{}, Ignoradas: []UnidadeIgnorada{}}
}

func (e Engine) processarBloco(ctx context.Context, ator auth.Ator, acao string, processoID int64, unidades []string, passo passoBloco) (ResultadoBloco, error) {
	res := novoResultadoBloco()
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return res, err
	}
	defer tx.Rollback()

	proc, err := e.Repo.GetProcessoTx(ctx, tx, processoID)
	if errors.Is(err, repo.ErrNotFound) {
		for _, u := range unidades {
			res.Ignoradas = append(res.Ignoradas, UnidadeIgnorada{Unidade: u, Motivo: workflow.ErrProcessoNaoEncontrado.Error()})
		}
		return res, nil
	}
	if err != nil {
		return res, err
	}

	m := e.maquina()
	now := e.now().UTC()
	var ids []int64
	var notificacoes []domain.Notificacao
	for _, u := range unidades {
		sp, err := e.Repo.LocalizarSubprocessoTx(ctx, tx, processoID, u, true)
		if errors.Is(err, repo.ErrNotFound) {
			res.Ignoradas = append(res.Ignoradas, UnidadeIgnorada{Unidade: u, Motivo: workflow.ErrSubprocessoNaoEncontrado.Error()})
			continue
		}
		if err != nil {
			return res, err
		}
		r, err := passo(m, proc, sp, now)
		if err != nil {
			res.Ignoradas = append(res.Ignoradas, UnidadeIgnorada{Unidade: u, Motivo: err.Error()})
			continue
		}
		if err := e.persistir(ctx, tx, proc, sp, &r, acao, ator); err != nil {
			return res, err
		}
		ids = append(ids, sp.ID)
		notificacoes = append(notificacoes, r.Efeitos.Notificacoes...)
	}
	if err := e.appendEvent(ctx, tx, acao, proc.ID, "processo", proc.ID, ator, events.EventPayload{
		"unidades":  unidades,
		"ignoradas": len(res.Ignoradas),
	}); err != nil {
		return res, err
	}
	if err := tx.Commit(); err != nil {
		return res, err
	}
	e.Notify.Dispatch(notificacoes)
	e.logger().WithFields(logrus.Fields{
		"processo":    proc.ID,
		"acao":        acao,
		"processadas": len(ids),
		"ignoradas":   len(res.Ignoradas),
	}).Info("acao em bloco")

	for _, id := range ids {
		sp, err := e.Repo.GetSubprocesso(ctx, id)
		if err != nil {
			return res, err
		}
		res.Processadas = append(res.Processadas, sp)
	}
	return res, nil
}
