package workflow

import (
	"fmt"
	"time"

	"sgc/internal/domain"
)

// Iniciar opens the cadastro stage of a subprocess when its processo starts.
func (m Maquina) Iniciar(proc domain.Processo, sp domain.Subprocesso, now time.Time) (Resultado, error) {
	para := domain.ParaTipo(proc.Tipo, domain.CadastroEmAndamento)
	if err := m.verificar(sp, para, false); err != nil {
		return Resultado{}, err
	}
	r := novo(sp)
	r.mover(m.UnidadeAdmin, sp.Unidade, "Processo iniciado", now)
	r.Subprocesso.Situacao = para
	r.encaminhar(m.UnidadeAdmin, sp.Unidade)
	r.notificar(m.Hierarquia.Email(sp.Unidade),
		fmt.Sprintf("SGC: Início de processo de %s", tipoLabel(proc.Tipo)),
		fmt.Sprintf("Comunicamos o início do processo %s para a unidade %s. O prazo para conclusão da etapa de cadastro é %s.",
			proc.Descricao, sp.Unidade, proc.DataLimite.Format("02/01/2006")))
	r.alertar(m.UnidadeAdmin, sp.Unidade, fmt.Sprintf("Início do processo %s", proc.Descricao), now)
	return *r, nil
}

func (m Maquina) DisponibilizarCadastro(proc domain.Processo, sp domain.Subprocesso, p DisponibilizarCadastroParams, now time.Time) (Resultado, error) {
	sup, err := m.superior(p.Unidade)
	if err != nil {
		return Resultado{}, err
	}
	para := domain.ParaTipo(proc.Tipo, domain.CadastroDisponibilizado)
	if err := m.verificar(sp, para, p.Force); err != nil {
		return Resultado{}, err
	}
	r := novo(sp)
	r.mover(p.Unidade, sup, "Disponibilização do cadastro de atividades", now)
	r.Subprocesso.Situacao = para
	r.Subprocesso.DataFimEtapa1 = tp(now)
	r.encaminhar(p.Unidade, sup)
	r.limparAnalises()
	r.notificar(m.Hierarquia.Email(sup),
		fmt.Sprintf("SGC: Cadastro de atividades da unidade %s disponibilizado para análise", sp.Unidade),
		fmt.Sprintf("O cadastro de atividades da unidade %s no processo %s foi disponibilizado para análise.", sp.Unidade, proc.Descricao))
	r.alertar(p.Unidade, sup, fmt.Sprintf("Cadastro de atividades da unidade %s disponibilizado para análise", sp.Unidade), now)
	return *r, nil
}

// DevolverCadastro sends the cadastro back to the home unit for adjustments.
func (m Maquina) DevolverCadastro(proc domain.Processo, sp domain.Subprocesso, p DevolverCadastroParams, now time.Time) (Resultado, error) {
	para := domain.ParaTipo(proc.Tipo, domain.CadastroEmAndamento)
	if err := m.verificar(sp, para, p.Force); err != nil {
		return Resultado{}, err
	}
	r := novo(sp)
	r.mover(p.Unidade, sp.Unidade, "Devolução do cadastro de atividades", now)
	r.analisar(p.Unidade, domain.AnaliseDevolucao, p.Observacoes, now)
	r.Subprocesso.Situacao = para
	r.Subprocesso.DataFimEtapa1 = nil
	r.encaminhar(p.Unidade, sp.Unidade)
	r.notificar(m.Hierarquia.Email(sp.Unidade),
		fmt.Sprintf("SGC: Cadastro de atividades da unidade %s devolvido para ajustes", sp.Unidade),
		fmt.Sprintf("O cadastro de atividades da unidade %s no processo %s foi devolvido pela unidade %s.", sp.Unidade, proc.Descricao, p.Unidade))
	r.alertar(p.Unidade, sp.Unidade, fmt.Sprintf("Cadastro de atividades da unidade %s devolvido para ajustes", sp.Unidade), now)
	return *r, nil
}

// AceitarCadastro forwards the cadastro one level up; situação stays
// disponibilizado until homologation.
func (m Maquina) AceitarCadastro(proc domain.Processo, sp domain.Subprocesso, p AceitarCadastroParams, now time.Time) (Resultado, error) {
	sup, err := m.superior(p.Unidade)
	if err != nil {
		return Resultado{}, err
	}
	para := domain.ParaTipo(proc.Tipo, domain.CadastroDisponibilizado)
	if err := m.verificar(sp, para, p.Force); err != nil {
		return Resultado{}, err
	}
	r := novo(sp)
	r.mover(p.Unidade, sup, "Cadastro de atividades aceito", now)
	r.analisar(p.Unidade, domain.AnaliseAceite, p.Observacoes, now)
	r.Subprocesso.Situacao = para
	r.encaminhar(p.Unidade, sup)
	r.notificar(m.Hierarquia.Email(sup),
		fmt.Sprintf("SGC: Cadastro de atividades da unidade %s submetido para análise", sp.Unidade),
		fmt.Sprintf("O cadastro de atividades da unidade %s no processo %s foi aceito pela unidade %s e aguarda análise.", sp.Unidade, proc.Descricao, p.Unidade))
	r.alertar(p.Unidade, sup, fmt.Sprintf("Cadastro de atividades da unidade %s submetido para análise", sp.Unidade), now)
	return *r, nil
}

func (m Maquina) HomologarCadastro(proc domain.Processo, sp domain.Subprocesso, p HomologarCadastroParams, now time.Time) (Resultado, error) {
	para := domain.ParaTipo(proc.Tipo, domain.CadastroHomologado)
	if err := m.verificar(sp, para, p.Force); err != nil {
		return Resultado{}, err
	}
	r := novo(sp)
	r.mover(m.UnidadeAdmin, m.UnidadeAdmin, "Cadastro de atividades homologado", now)
	r.Subprocesso.Situacao = para
	r.limparAnalises()
	return *r, nil
}

// ReabrirCadastro returns a subprocess past the cadastro stage to the home
// unit. Every ancestor of the home unit is alerted.
func (m Maquina) ReabrirCadastro(proc domain.Processo, sp domain.Subprocesso, p ReabrirCadastroParams, now time.Time) (Resultado, error) {
	if !sp.Situacao.PosCadastro() && !p.Force {
		return Resultado{}, TransicaoInvalidaError{De: sp.Situacao, Para: domain.ParaTipo(proc.Tipo, domain.CadastroEmAndamento)}
	}
	para := domain.ParaTipo(proc.Tipo, domain.CadastroEmAndamento)
	r := novo(sp)
	r.mover(m.UnidadeAdmin, sp.Unidade, "Reabertura do cadastro de atividades: "+p.Justificativa, now)
	r.Subprocesso.Situacao = para
	r.Subprocesso.DataFimEtapa1 = nil
	r.encaminhar(m.UnidadeAdmin, sp.Unidade)
	r.notificar(m.Hierarquia.Email(sp.Unidade),
		"SGC: Cadastro de atividades reaberto",
		fmt.Sprintf("O cadastro de atividades da unidade %s no processo %s foi reaberto. Justificativa: %s", sp.Unidade, proc.Descricao, p.Justificativa))
	r.alertar(m.UnidadeAdmin, sp.Unidade, "Cadastro de atividades reaberto", now)
	for _, anc := range m.Hierarquia.Ancestrais(sp.Unidade) {
		if anc == m.UnidadeAdmin {
			continue
		}
		r.alertar(m.UnidadeAdmin, anc, fmt.Sprintf("Cadastro de atividades da unidade %s reaberto", sp.Unidade), now)
	}
	return *r, nil
}

// CriarMapa has no side effects besides the situação change.
func (m Maquina) CriarMapa(proc domain.Processo, sp domain.Subprocesso, p CriarMapaParams, now time.Time) (Resultado, error) {
	para := domain.ParaTipo(proc.Tipo, domain.MapaCriado)
	if err := m.verificar(sp, para, p.Force); err != nil {
		return Resultado{}, err
	}
	r := novo(sp)
	r.Subprocesso.Situacao = para
	return *r, nil
}

func (m Maquina) DisponibilizarMapa(proc domain.Processo, sp domain.Subprocesso, p DisponibilizarMapaParams, now time.Time) (Resultado, error) {
	para := domain.ParaTipo(proc.Tipo, domain.MapaDisponibilizado)
	if err := m.verificar(sp, para, p.Force); err != nil {
		return Resultado{}, err
	}
	r := novo(sp)
	r.mover(m.UnidadeAdmin, sp.Unidade, "Disponibilização do mapa de competências", now)
	r.Subprocesso.Situacao = para
	limite := p.DataLimite
	r.Subprocesso.DataLimiteEtapa2 = &limite
	r.Subprocesso.Sugestoes = nil
	if p.Observacoes != "" {
		obs := p.Observacoes
		r.Subprocesso.Observacoes = &obs
	}
	if r.Subprocesso.DataFimEtapa1 == nil {
		r.Subprocesso.DataFimEtapa1 = tp(now)
	}
	r.encaminhar(m.UnidadeAdmin, sp.Unidade)
	r.limparAnalises()
	r.notificar(m.Hierarquia.Email(sp.Unidade),
		"SGC: Mapa de competências disponibilizado para validação",
		fmt.Sprintf("O mapa de competências da unidade %s no processo %s foi disponibilizado para validação até %s.",
			sp.Unidade, proc.Descricao, limite.Format("02/01/2006")))
	r.alertar(m.UnidadeAdmin, sp.Unidade, "Mapa de competências disponibilizado para validação", now)
	return *r, nil
}

func tipoLabel(t domain.TipoProcesso) string {
	switch t {
	case domain.TipoRevisao:
		return "revisão"
	case domain.TipoDiagnostico:
		return "diagnóstico"
	default:
		return "mapeamento"
	}
}
