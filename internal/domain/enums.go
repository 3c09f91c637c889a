package domain

import "strings"

type TipoProcesso string

const (
	TipoMapeamento  TipoProcesso = "MAPEAMENTO"
	TipoRevisao     TipoProcesso = "REVISAO"
	TipoDiagnostico TipoProcesso = "DIAGNOSTICO"
)

func (t TipoProcesso) Valid() bool {
	switch t {
	case TipoMapeamento, TipoRevisao, TipoDiagnostico:
		return true
	}
	return false
}

type SituacaoProcesso string

const (
	ProcessoCriado      SituacaoProcesso = "CRIADO"
	ProcessoEmAndamento SituacaoProcesso = "EM_ANDAMENTO"
	ProcessoFinalizado  SituacaoProcesso = "FINALIZADO"
)

type Perfil string

const (
	PerfilAdmin    Perfil = "ADMIN"
	PerfilGestor   Perfil = "GESTOR"
	PerfilChefe    Perfil = "CHEFE"
	PerfilServidor Perfil = "SERVIDOR"
)

func (p Perfil) Valid() bool {
	switch p {
	case PerfilAdmin, PerfilGestor, PerfilChefe, PerfilServidor:
		return true
	}
	return false
}

type AcaoAnalise string

const (
	AnaliseAceite    AcaoAnalise = "ACEITE"
	AnaliseDevolucao AcaoAnalise = "DEVOLUCAO"
)

// SituacaoSubprocesso is the state tag of a Subprocesso. The base family is
// used by Mapeamento and Diagnóstico processes; Revisão processes walk the
// REVISAO_* mirror of the same states.
type SituacaoSubprocesso string

const (
	NaoIniciado             SituacaoSubprocesso = "NAO_INICIADO"
	CadastroEmAndamento     SituacaoSubprocesso = "CADASTRO_EM_ANDAMENTO"
	CadastroDisponibilizado SituacaoSubprocesso = "CADASTRO_DISPONIBILIZADO"
	CadastroHomologado      SituacaoSubprocesso = "CADASTRO_HOMOLOGADO"
	MapaCriado              SituacaoSubprocesso = "MAPA_CRIADO"
	MapaDisponibilizado     SituacaoSubprocesso = "MAPA_DISPONIBILIZADO"
	MapaComSugestoes        SituacaoSubprocesso = "MAPA_COM_SUGESTOES"
	MapaValidado            SituacaoSubprocesso = "MAPA_VALIDADO"
	MapaHomologado          SituacaoSubprocesso = "MAPA_HOMOLOGADO"

	RevisaoCadastroEmAndamento     SituacaoSubprocesso = "REVISAO_CADASTRO_EM_ANDAMENTO"
	RevisaoCadastroDisponibilizada SituacaoSubprocesso = "REVISAO_CADASTRO_DISPONIBILIZADA"
	RevisaoCadastroHomologada      SituacaoSubprocesso = "REVISAO_CADASTRO_HOMOLOGADA"
	RevisaoMapaAjustado            SituacaoSubprocesso = "REVISAO_MAPA_AJUSTADO"
	RevisaoMapaDisponibilizado     SituacaoSubprocesso = "REVISAO_MAPA_DISPONIBILIZADO"
	RevisaoMapaComSugestoes        SituacaoSubprocesso = "REVISAO_MAPA_COM_SUGESTOES"
	RevisaoMapaValidado            SituacaoSubprocesso = "REVISAO_MAPA_VALIDADO"
	RevisaoMapaHomologado          SituacaoSubprocesso = "REVISAO_MAPA_HOMOLOGADO"
)

var revisaoDe = map[SituacaoSubprocesso]SituacaoSubprocesso{
	CadastroEmAndamento:     RevisaoCadastroEmAndamento,
	CadastroDisponibilizado: RevisaoCadastroDisponibilizada,
	CadastroHomologado:      RevisaoCadastroHomologada,
	MapaCriado:              RevisaoMapaAjustado,
	MapaDisponibilizado:     RevisaoMapaDisponibilizado,
	MapaComSugestoes:        RevisaoMapaComSugestoes,
	MapaValidado:            RevisaoMapaValidado,
	MapaHomologado:          RevisaoMapaHomologado,
}

var baseDe = func() map[SituacaoSubprocesso]SituacaoSubprocesso {
	m := make(map[SituacaoSubprocesso]SituacaoSubprocesso, len(revisaoDe))
	for base, rev := range revisaoDe {
		m[rev] = base
	}
	return m
}()

// Valid reports whether s belongs to the closed set.
func (s SituacaoSubprocesso) Valid() bool {
	if s == NaoIniciado {
		return true
	}
	if _, ok := revisaoDe[s]; ok {
		return true
	}
	_, ok := baseDe[s]
	return ok
}

// IsRevisao reports whether s is one of the REVISAO_* states.
func (s SituacaoSubprocesso) IsRevisao() bool {
	return strings.HasPrefix(string(s), "REVISAO_")
}

// Base maps a Revisão state to its base counterpart.
func (s SituacaoSubprocesso) Base() SituacaoSubprocesso {
	if b, ok := baseDe[s]; ok {
		return b
	}
	return s
}

// ParaTipo returns the variant of base used by processes of type t.
func ParaTipo(t TipoProcesso, base SituacaoSubprocesso) SituacaoSubprocesso {
	base = base.Base()
	if t != TipoRevisao {
		return base
	}
	if rev, ok := revisaoDe[base]; ok {
		return rev
	}
	return base
}

// PosCadastro reports whether s is beyond the cadastro editing stage.
func (s SituacaoSubprocesso) PosCadastro() bool {
	switch s.Base() {
	case NaoIniciado, CadastroEmAndamento:
		return false
	}
	return true
}
