package workflow

import (
	"fmt"
	"time"

	"sgc/internal/domain"
)

// MapaBloco applies one map batch action to a single subprocesso. Each unit
// goes through the same routine as its single-unit counterpart.
func (m Maquina) MapaBloco(proc domain.Processo, sp domain.Subprocesso, p MapaBlocoParams, now time.Time) (Resultado, error) {
	k := Chave{IDProcesso: proc.ID, Unidade: sp.Unidade, UnidadeSubprocesso: sp.Unidade, Force: p.Force}
	switch p.TipoAcao {
	case MapaBlocoDisponibilizar:
		return m.DisponibilizarMapa(proc, sp, DisponibilizarMapaParams{Chave: k, DataLimite: p.DataLimite, Observacoes: p.Observacoes}, now)
	case MapaBlocoAceitar:
		if sp.UnidadeAtual != p.UnidadeUsuario {
			return Resultado{}, fmt.Errorf("%w: %s está com %s", ErrSubprocessoEmOutraUnidade, sp.Unidade, sp.UnidadeAtual)
		}
		k.Unidade = p.UnidadeUsuario
		return m.encaminharValidacao(proc, sp, k, "Validação do mapa de competências aceita em bloco", now)
	case MapaBlocoHomologar:
		return m.AceitarMapa(proc, sp, AceitarMapaParams{Chave: k, Perfil: domain.PerfilAdmin}, now)
	}
	return Resultado{}, fmt.Errorf("tipo de ação em bloco desconhecido: %q", p.TipoAcao)
}
