package domain

import "time"

type Processo struct {
	ID              int64            `json:"id"`
	Descricao       string           `json:"descricao"`
	Tipo            TipoProcesso     `json:"tipo" enum:"MAPEAMENTO,REVISAO,DIAGNOSTICO"`
	Situacao        SituacaoProcesso `json:"situacao" enum:"CRIADO,EM_ANDAMENTO,FINALIZADO"`
	DataLimite      time.Time        `json:"data_limite" format:"date-time"`
	DataFinalizacao *time.Time       `json:"data_finalizacao,omitempty" format:"date-time"`
	CreatedAt       time.Time        `json:"created_at" format:"date-time"`
}

// Subprocesso is the per-unit instance of a Processo. Unidade never changes;
// UnidadeAtual is whoever must act next.
type Subprocesso struct {
	ID               int64               `json:"id"`
	ProcessoID       int64               `json:"processo_id"`
	Unidade          string              `json:"unidade"`
	UnidadeAtual     string              `json:"unidade_atual"`
	UnidadeAnterior  *string             `json:"unidade_anterior,omitempty"`
	Situacao         SituacaoSubprocesso `json:"situacao"`
	DataLimiteEtapa1 *time.Time          `json:"data_limite_etapa1,omitempty" format:"date-time"`
	DataLimiteEtapa2 *time.Time          `json:"data_limite_etapa2,omitempty" format:"date-time"`
	DataFimEtapa1    *time.Time          `json:"data_fim_etapa1,omitempty" format:"date-time"`
	DataFimEtapa2    *time.Time          `json:"data_fim_etapa2,omitempty" format:"date-time"`
	Sugestoes        *string             `json:"sugestoes,omitempty"`
	Observacoes      *string             `json:"observacoes,omitempty"`
	MapaCopiadoID    *int64              `json:"mapa_copiado_id,omitempty"`
	Analises         []Analise           `json:"analises"`
	Movimentacoes    []Movimentacao      `json:"movimentacoes"`
}

type Movimentacao struct {
	ID             int64     `json:"id"`
	SubprocessoID  int64     `json:"subprocesso_id"`
	UnidadeOrigem  string    `json:"unidade_origem"`
	UnidadeDestino string    `json:"unidade_destino"`
	Descricao      string    `json:"descricao"`
	DataHora       time.Time `json:"data_hora" format:"date-time"`
}

type Analise struct {
	ID            int64       `json:"id"`
	SubprocessoID int64       `json:"subprocesso_id"`
	Unidade       string      `json:"unidade"`
	Acao          AcaoAnalise `json:"acao" enum:"ACEITE,DEVOLUCAO"`
	Observacoes   string      `json:"observacoes,omitempty"`
	DataHora      time.Time   `json:"data_hora" format:"date-time"`
}

type Alerta struct {
	ID             int64     `json:"id"`
	ProcessoID     int64     `json:"processo_id"`
	UnidadeOrigem  string    `json:"unidade_origem"`
	UnidadeDestino string    `json:"unidade_destino"`
	Descricao      string    `json:"descricao"`
	DataHora       time.Time `json:"data_hora" format:"date-time"`
}

// Notificacao is an outbound e-mail. It is never stored.
type Notificacao struct {
	ID           string `json:"id"`
	Assunto      string `json:"assunto"`
	Destinatario string `json:"destinatario"`
	Corpo        string `json:"corpo"`
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	ProcessoID *int64 `json:"processo_id,omitempty"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}
