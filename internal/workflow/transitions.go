package workflow

import "sgc/internal/domain"

// transicoes lists, per base situação, the situações a subprocess may move to.
// Revisão states are checked through their base counterpart.
var transicoes = map[domain.SituacaoSubprocesso][]domain.SituacaoSubprocesso{
	domain.NaoIniciado:             {domain.CadastroEmAndamento},
	domain.CadastroEmAndamento:     {domain.CadastroDisponibilizado},
	domain.CadastroDisponibilizado: {domain.CadastroDisponibilizado, domain.CadastroEmAndamento, domain.CadastroHomologado},
	domain.CadastroHomologado:      {domain.MapaCriado, domain.CadastroEmAndamento},
	domain.MapaCriado:              {domain.MapaDisponibilizado, domain.CadastroEmAndamento},
	domain.MapaDisponibilizado: {
		domain.MapaValidado, domain.MapaComSugestoes, domain.MapaHomologado,
		domain.MapaCriado, domain.CadastroEmAndamento,
	},
	domain.MapaComSugestoes: {
		domain.MapaValidado, domain.MapaHomologado, domain.MapaDisponibilizado,
		domain.MapaCriado, domain.CadastroEmAndamento,
	},
	domain.MapaValidado: {
		domain.MapaValidado, domain.MapaHomologado, domain.MapaDisponibilizado,
		domain.MapaCriado, domain.CadastroEmAndamento,
	},
	domain.MapaHomologado: {domain.CadastroEmAndamento},
}

// EnsureTransicao fails when de -> para is not in the table, unless forced.
func EnsureTransicao(de, para domain.SituacaoSubprocesso, force bool) error {
	if force {
		return nil
	}
	for _, s := range transicoes[de.Base()] {
		if s == para.Base() {
			return nil
		}
	}
	return TransicaoInvalidaError{De: de, Para: para}
}

// EnsureProcessoTransicao enforces CRIADO -> EM_ANDAMENTO -> FINALIZADO.
func EnsureProcessoTransicao(de, para domain.SituacaoProcesso) error {
	switch de {
	case domain.ProcessoCriado:
		if para == domain.ProcessoEmAndamento {
			return nil
		}
	case domain.ProcessoEmAndamento:
		if para == domain.ProcessoFinalizado {
			return nil
		}
	}
	return ProcessoTransicaoError{De: de, Para: para}
}
