package workflow

import (
	"errors"
	"fmt"

	"sgc/internal/domain"
)

var (
	ErrSubprocessoNaoEncontrado     = errors.New("subprocesso não encontrado")
	ErrUnidadeSuperiorNaoEncontrada = errors.New("unidade superior não encontrada")
	ErrUnidadeAnteriorIndisponivel  = errors.New("unidade anterior indisponível para devolução")
	ErrProcessoNaoEncontrado        = errors.New("processo não encontrado")
	ErrUnidadeDesconhecida          = errors.New("unidade desconhecida")
	ErrSubprocessoAmbiguo           = errors.New("mais de um subprocesso corresponde à unidade; informe unidade_subprocesso")
	ErrUnidadeNaoParticipante       = errors.New("unidade não participa deste processo")
	ErrUnidadeBloqueada             = errors.New("unidades já participam de outro processo ativo")
	ErrSubprocessoEmOutraUnidade    = errors.New("subprocesso não está com a unidade do usuário")
)

// TransicaoInvalidaError reports a subprocess transition outside the table.
type TransicaoInvalidaError struct {
	De   domain.SituacaoSubprocesso
	Para domain.SituacaoSubprocesso
}

func (e TransicaoInvalidaError) Error() string {
	return fmt.Sprintf("invalid subprocesso transition %s -> %s", e.De, e.Para)
}

// ProcessoTransicaoError reports a process situação regression or skip.
type ProcessoTransicaoError struct {
	De   domain.SituacaoProcesso
	Para domain.SituacaoProcesso
}

func (e ProcessoTransicaoError) Error() string {
	return fmt.Sprintf("invalid processo transition %s -> %s", e.De, e.Para)
}
