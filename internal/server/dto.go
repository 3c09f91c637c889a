package server

import (
	"time"

	"sgc/internal/domain"
	"sgc/internal/engine"
)

// Request payloads

type ProcessoRequest struct {
	Descricao  string              `json:"descricao" minLength:"1"`
	Tipo       domain.TipoProcesso `json:"tipo" enum:"MAPEAMENTO,REVISAO,DIAGNOSTICO"`
	DataLimite time.Time           `json:"data_limite" format:"date-time"`
	Unidades   []string            `json:"unidades" minItems:"1"`
}

func (r ProcessoRequest) params() engine.ProcessoParams {
	return engine.ProcessoParams{
		Descricao:  r.Descricao,
		Tipo:       r.Tipo,
		DataLimite: r.DataLimite,
		Unidades:   r.Unidades,
	}
}

// TransicaoBase carries the fields shared by every subprocesso action.
type TransicaoBase struct {
	UnidadeSubprocesso string `json:"unidade_subprocesso,omitempty" doc:"Home unit of the subprocesso when it differs from the acting unit"`
	Force              bool   `json:"force,omitempty" doc:"Bypass the transition table; needs workflow.force"`
}

type ObservacoesRequest struct {
	TransicaoBase
	Observacoes string `json:"observacoes,omitempty"`
}

type SugestoesRequest struct {
	TransicaoBase
	Sugestoes string `json:"sugestoes"`
}

type DataLimiteRequest struct {
	TransicaoBase
	Etapa          int       `json:"etapa" doc:"1 (cadastro) or 2 (mapa); other values change nothing"`
	NovaDataLimite time.Time `json:"nova_data_limite" format:"date-time"`
}

type ReabrirRequest struct {
	TransicaoBase
	Justificativa string `json:"justificativa" minLength:"1"`
}

type DisponibilizarMapaRequest struct {
	TransicaoBase
	DataLimite  time.Time `json:"data_limite" format:"date-time"`
	Observacoes string    `json:"observacoes,omitempty"`
}

type CadastroBlocoRequest struct {
	Unidades []string `json:"unidades" minItems:"1"`
	TipoAcao string   `json:"tipo_acao" enum:"aceitar,homologar"`
	Force    bool     `json:"force,omitempty"`
}

type MapaBlocoRequest struct {
	Unidades    []string  `json:"unidades" minItems:"1"`
	TipoAcao    string    `json:"tipo_acao" enum:"disponibilizar,aceitar,homologar"`
	DataLimite  time.Time `json:"data_limite,omitempty" format:"date-time" required:"false" doc:"Stage 2 deadline; required to disponibilizar"`
	Observacoes string    `json:"observacoes,omitempty"`
	Force       bool      `json:"force,omitempty"`
}

type DevLoginRequest struct {
	ActorID string        `json:"actor_id"`
	Perfil  domain.Perfil `json:"perfil" enum:"ADMIN,GESTOR,CHEFE,SERVIDOR"`
	Unidade string        `json:"unidade"`
}

// Response payloads

type DevLoginResponse struct {
	Token string `json:"token"`
}

type MeResponse struct {
	ActorID     string        `json:"actor_id"`
	Perfil      domain.Perfil `json:"perfil"`
	Unidade     string        `json:"unidade"`
	Permissions []string      `json:"permissions"`
}

type FinalizarResponse struct {
	Encontrado bool             `json:"encontrado"`
	Processo   *domain.Processo `json:"processo,omitempty"`
}

type UnidadeNode struct {
	Sigla  string        `json:"sigla"`
	Nome   string        `json:"nome,omitempty"`
	Filhas []UnidadeNode `json:"filhas,omitempty"`
}

type paginatedEvents struct {
	Items      []domain.Event `json:"items"`
	NextCursor string         `json:"next_cursor,omitempty"`
}
