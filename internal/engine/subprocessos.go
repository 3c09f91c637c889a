package engine

import (
	"context"
	"time"

	"sgc/internal/domain"
	"sgc/internal/engine/auth"
	"sgc/internal/workflow"
)

// AceitarMapa homologates the map for ADMIN and forwards a validation to the
// superior unit for every other perfil.
func (e Engine) AceitarMapa(ctx context.Context, ator auth.Ator, p workflow.AceitarMapaParams) (domain.Subprocesso, error) {
	return e.transicionar(ctx, ator, "mapa.accept", "mapa.aceito", p, p.Chave,
		func(m workflow.Maquina, proc domain.Processo, sp domain.Subprocesso, now time.Time) (workflow.Resultado, error) {
			return m.AceitarMapa(proc, sp, p, now)
		})
}

func (e Engine) ValidarMapa(ctx context.Context, ator auth.Ator, p workflow.ValidarMapaParams) (domain.Subprocesso, error) {
	return e.transicionar(ctx, ator, "mapa.validate", "mapa.validado", p, p.Chave,
		func(m workflow.Maquina, proc domain.Processo, sp domain.Subprocesso, now time.Time) (workflow.Resultado, error) {
			return m.ValidarMapa(proc, sp, p, now)
		})
}

func (e Engine) RejeitarMapa(ctx context.Context, ator auth.Ator, p workflow.RejeitarMapaParams) (domain.Subprocesso, error) {
	return e.transicionar(ctx, ator, "mapa.reject", "mapa.devolvido", p, p.Chave,
		func(m workflow.Maquina, proc domain.Processo, sp domain.Subprocesso, now time.Time) (workflow.Resultado, error) {
			return m.RejeitarMapa(proc, sp, p, now)
		})
}

func (e Engine) ApresentarSugestoes(ctx context.Context, ator auth.Ator, p workflow.ApresentarSugestoesParams) (domain.Subprocesso, error) {
	return e.transicionar(ctx, ator, "mapa.suggest", "mapa.sugestoes", p, p.Chave,
		func(m workflow.Maquina, proc domain.Processo, sp domain.Subprocesso, now time.Time) (workflow.Resultado, error) {
			return m.ApresentarSugestoes(proc, sp, p, now)
		})
}

// AlterarDataLimite changes a stage deadline. An etapa other than 1 or 2
// only checks that the subprocesso exists and changes nothing.
func (e Engine) AlterarDataLimite(ctx context.Context, ator auth.Ator, p workflow.AlterarDataLimiteParams) (domain.Subprocesso, error) {
	if p.Etapa != 1 && p.Etapa != 2 {
		if err := workflow.Validate(p); err != nil {
			return domain.Subprocesso{}, err
		}
		if err := e.Auth.Require(ator, "subprocesso.deadline"); err != nil {
			return domain.Subprocesso{}, err
		}
		tx, err := e.DB.BeginTx(ctx, nil)
		if err != nil {
			return domain.Subprocesso{}, err
		}
		defer tx.Rollback()
		_, sp, err := e.localizar(ctx, tx, p.Chave)
		return sp, err
	}
	return e.transicionar(ctx, ator, "subprocesso.deadline", "prazo.alterado", p, p.Chave,
		func(m workflow.Maquina, proc domain.Processo, sp domain.Subprocesso, now time.Time) (workflow.Resultado, error) {
			return m.AlterarDataLimite(proc, sp, p, now)
		})
}

func (e Engine) DisponibilizarCadastro(ctx context.Context, ator auth.Ator, p workflow.DisponibilizarCadastroParams) (domain.Subprocesso, error) {
	return e.transicionar(ctx, ator, "cadastro.publish", "cadastro.disponibilizado", p, p.Chave,
		func(m workflow.Maquina, proc domain.Processo, sp domain.Subprocesso, now time.Time) (workflow.Resultado, error) {
			return m.DisponibilizarCadastro(proc, sp, p, now)
		})
}

func (e Engine) DevolverCadastro(ctx context.Context, ator auth.Ator, p workflow.DevolverCadastroParams) (domain.Subprocesso, error) {
	return e.transicionar(ctx, ator, "cadastro.return", "cadastro.devolvido", p, p.Chave,
		func(m workflow.Maquina, proc domain.Processo, sp domain.Subprocesso, now time.Time) (workflow.Resultado, error) {
			return m.DevolverCadastro(proc, sp, p, now)
		})
}

func (e Engine) AceitarCadastro(ctx context.Context, ator auth.Ator, p workflow.AceitarCadastroParams) (domain.Subprocesso, error) {
	return e.transicionar(ctx, ator, "cadastro.accept", "cadastro.aceito", p, p.Chave,
		func(m workflow.Maquina, proc domain.Processo, sp domain.Subprocesso, now time.Time) (workflow.Resultado, error) {
			return m.AceitarCadastro(proc, sp, p, now)
		})
}

func (e Engine) HomologarCadastro(ctx context.Context, ator auth.Ator, p workflow.HomologarCadastroParams) (domain.Subprocesso, error) {
	return e.transicionar(ctx, ator, "cadastro.homologate", "cadastro.homologado", p, p.Chave,
		func(m workflow.Maquina, proc domain.Processo, sp domain.Subprocesso, now time.Time) (workflow.Resultado, error) {
			return m.HomologarCadastro(proc, sp, p, now)
		})
}

func (e Engine) ReabrirCadastro(ctx context.Context, ator auth.Ator, p workflow.ReabrirCadastroParams) (domain.Subprocesso, error) {
	return e.transicionar(ctx, ator, "cadastro.reopen", "cadastro.reaberto", p, p.Chave,
		func(m workflow.Maquina, proc domain.Processo, sp domain.Subprocesso, now time.Time) (workflow.Resultado, error) {
			return m.ReabrirCadastro(proc, sp, p, now)
		})
}

func (e Engine) CriarMapa(ctx context.Context, ator auth.Ator, p workflow.CriarMapaParams) (domain.Subprocesso, error) {
	return e.transicionar(ctx, ator, "mapa.create", "mapa.criado", p, p.Chave,
		func(m workflow.Maquina, proc domain.Processo, sp domain.Subprocesso, now time.Time) (workflow.Resultado, error) {
			return m.CriarMapa(proc, sp, p, now)
		})
}

func (e Engine) DisponibilizarMapa(ctx context.Context, ator auth.Ator, p workflow.DisponibilizarMapaParams) (domain.Subprocesso, error) {
	return e.transicionar(ctx, ator, "mapa.publish", "mapa.disponibilizado", p, p.Chave,
		func(m workflow.Maquina, proc domain.Processo, sp domain.Subprocesso, now time.Time) (workflow.Resultado, error) {
			return m.DisponibilizarMapa(proc, sp, p, now)
		})
}

// GetSubprocesso loads a subprocesso by its key, with history.
func (e Engine) GetSubprocesso(ctx context.Context, ator auth.Ator, k workflow.Chave) (domain.Subprocesso, error) {
	if err := workflow.Validate(k); err != nil {
		return domain.Subprocesso{}, err
	}
	if err := e.Auth.Require(ator, "subprocesso.read"); err != nil {
		return domain.Subprocesso{}, err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Subprocesso{}, err
	}
	defer tx.Rollback()
	_, sp, err := e.localizar(ctx, tx, k)
	return sp, err
}

func (e Engine) ListSubprocessos(ctx context.Context, ator auth.Ator, processoID int64) ([]domain.Subprocesso, error) {
	if err := e.Auth.Require(ator, "subprocesso.read"); err != nil {
		return nil, err
	}
	return e.Repo.ListSubprocessos(ctx, processoID)
}

// UnidadesDoProcesso lists the units participating in a processo.
func (e Engine) UnidadesDoProcesso(ctx context.Context, ator auth.Ator, processoID int64) ([]string, error) {
	if err := e.Auth.Require(ator, "processo.read"); err != nil {
		return nil, err
	}
	return e.Repo.UnidadesDoProcesso(ctx, processoID)
}
