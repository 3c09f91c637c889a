package workflow

import (
	"time"

	"github.com/go-playground/validator/v10"

	"sgc/internal/domain"
)

// Chave locates a subprocess. Unidade is the acting unit; it also selects
// the subprocess whose home unit is Unidade or the one Unidade currently
// holds. When Unidade matches more than one subprocess, UnidadeSubprocesso
// must name the home unit. Force skips the transition table and needs the
// workflow.force permission.
type Chave struct {
	IDProcesso         int64  `validate:"required,gt=0"`
	Unidade            string `validate:"required"`
	UnidadeSubprocesso string
	Force              bool
}

type AceitarMapaParams struct {
	Chave
	Perfil domain.Perfil `validate:"required,oneof=ADMIN GESTOR CHEFE SERVIDOR"`
}

type ValidarMapaParams struct {
	Chave
}

type RejeitarMapaParams struct {
	Chave
	Observacoes string
}

type ApresentarSugestoesParams struct {
	Chave
	Sugestoes string
}

type AlterarDataLimiteParams struct {
	Chave
	Etapa          int
	NovaDataLimite time.Time `validate:"required"`
}

type DisponibilizarCadastroParams struct {
	Chave
}

type DevolverCadastroParams struct {
	Chave
	Observacoes string
}

type AceitarCadastroParams struct {
	Chave
	Observacoes string
}

type HomologarCadastroParams struct {
	Chave
	Observacoes string
}

type ReabrirCadastroParams struct {
	Chave
	Justificativa string `validate:"required"`
}

type CriarMapaParams struct {
	Chave
}

type DisponibilizarMapaParams struct {
	Chave
	DataLimite  time.Time `validate:"required"`
	Observacoes string
}

type TipoAcaoBloco string

const (
	BlocoAceitar   TipoAcaoBloco = "aceitar"
	BlocoHomologar TipoAcaoBloco = "homologar"
)

type CadastroBlocoParams struct {
	IDProcesso     int64         `validate:"required,gt=0"`
	Unidades       []string      `validate:"required,min=1,dive,required"`
	TipoAcao       TipoAcaoBloco `validate:"required,oneof=aceitar homologar"`
	UnidadeUsuario string        `validate:"required"`
	Force          bool
}

type TipoAcaoMapaBloco string

const (
	MapaBlocoDisponibilizar TipoAcaoMapaBloco = "disponibilizar"
	MapaBlocoAceitar        TipoAcaoMapaBloco = "aceitar"
	MapaBlocoHomologar      TipoAcaoMapaBloco = "homologar"
)

// MapaBlocoParams drives a map action over several units. DataLimite is
// only read by disponibilizar.
type MapaBlocoParams struct {
	IDProcesso     int64             `validate:"required,gt=0"`
	Unidades       []string          `validate:"required,min=1,dive,required"`
	TipoAcao       TipoAcaoMapaBloco `validate:"required,oneof=disponibilizar aceitar homologar"`
	UnidadeUsuario string            `validate:"required"`
	DataLimite     time.Time         `validate:"required_if=TipoAcao disponibilizar"`
	Observacoes    string
	Force          bool
}

var validate = validator.New()

// Validate checks the struct tags of any params value.
func Validate(p any) error {
	return validate.Struct(p)
}
