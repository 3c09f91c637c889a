package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"sgc/internal/domain"
	"sgc/internal/engine"
	"sgc/internal/engine/auth"
	"sgc/internal/workflow"
)

type transicaoInput[B any] struct {
	ID      int64  `path:"id"`
	Unidade string `path:"unidade" doc:"Acting unit"`
	Body    B      `json:"body" required:"false"`
}

type subprocessoOutput struct {
	Body domain.Subprocesso `json:"body"`
}

// chaveDe builds the subprocesso key for the caller. Only ADMIN may act on
// behalf of a unit other than its own. Force is checked by the engine.
func chaveDe(ator auth.Ator, id int64, unidade string, b TransicaoBase) (workflow.Chave, huma.StatusError) {
	if ator.Perfil != domain.PerfilAdmin && ator.Unidade != unidade {
		return workflow.Chave{}, newAPIError(http.StatusForbidden, "forbidden_unidade", "caller cannot act for unidade "+unidade,
			map[string]any{"unidade": ator.Unidade})
	}
	return workflow.Chave{
		IDProcesso:         id,
		Unidade:            unidade,
		UnidadeSubprocesso: b.UnidadeSubprocesso,
		Force:              b.Force,
	}, nil
}

type acaoFunc[B any] func(ctx context.Context, ator auth.Ator, k workflow.Chave, body B) (domain.Subprocesso, error)

func registerTransicao[B any](api huma.API, opID, route, summary string, base func(B) TransicaoBase, run acaoFunc[B]) {
	huma.Register(api, huma.Operation{
		OperationID: opID,
		Method:      http.MethodPost,
		Path:        "/processos/{id}/unidades/{unidade}/" + route,
		Summary:     summary,
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound, http.StatusConflict, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *transicaoInput[B]) (*subprocessoOutput, error) {
		ator, authErr := atorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		k, keyErr := chaveDe(ator, input.ID, input.Unidade, base(input.Body))
		if keyErr != nil {
			return nil, keyErr
		}
		sp, err := run(ctx, ator, k, input.Body)
		if err != nil {
			return nil, handleError(err)
		}
		return &subprocessoOutput{Body: sp}, nil
	})
}

func registerTransicoes(api huma.API, e engine.Engine) {
	baseOf := func(b TransicaoBase) TransicaoBase { return b }
	obsBase := func(b ObservacoesRequest) TransicaoBase { return b.TransicaoBase }

	registerTransicao(api, "aceitar-mapa", "mapa/aceitar", "Accept the map; ADMIN homologates it", baseOf,
		func(ctx context.Context, ator auth.Ator, k workflow.Chave, _ TransicaoBase) (domain.Subprocesso, error) {
			return e.AceitarMapa(ctx, ator, workflow.AceitarMapaParams{Chave: k, Perfil: ator.Perfil})
		})
	registerTransicao(api, "validar-mapa", "mapa/validar", "Validate the map and forward it upward", baseOf,
		func(ctx context.Context, ator auth.Ator, k workflow.Chave, _ TransicaoBase) (domain.Subprocesso, error) {
			return e.ValidarMapa(ctx, ator, workflow.ValidarMapaParams{Chave: k})
		})
	registerTransicao(api, "rejeitar-mapa", "mapa/rejeitar", "Return the map to the previous unit", obsBase,
		func(ctx context.Context, ator auth.Ator, k workflow.Chave, b ObservacoesRequest) (domain.Subprocesso, error) {
			return e.RejeitarMapa(ctx, ator, workflow.RejeitarMapaParams{Chave: k, Observacoes: b.Observacoes})
		})
	registerTransicao(api, "apresentar-sugestoes", "mapa/sugestoes", "Record suggestions on the map",
		func(b SugestoesRequest) TransicaoBase { return b.TransicaoBase },
		func(ctx context.Context, ator auth.Ator, k workflow.Chave, b SugestoesRequest) (domain.Subprocesso, error) {
			return e.ApresentarSugestoes(ctx, ator, workflow.ApresentarSugestoesParams{Chave: k, Sugestoes: b.Sugestoes})
		})
	registerTransicao(api, "criar-mapa", "mapa/criar", "Create the competency map", baseOf,
		func(ctx context.Context, ator auth.Ator, k workflow.Chave, _ TransicaoBase) (domain.Subprocesso, error) {
			return e.CriarMapa(ctx, ator, workflow.CriarMapaParams{Chave: k})
		})
	registerTransicao(api, "disponibilizar-mapa", "mapa/disponibilizar", "Publish the map for validation",
		func(b DisponibilizarMapaRequest) TransicaoBase { return b.TransicaoBase },
		func(ctx context.Context, ator auth.Ator, k workflow.Chave, b DisponibilizarMapaRequest) (domain.Subprocesso, error) {
			return e.DisponibilizarMapa(ctx, ator, workflow.DisponibilizarMapaParams{Chave: k, DataLimite: b.DataLimite, Observacoes: b.Observacoes})
		})
	registerTransicao(api, "disponibilizar-cadastro", "cadastro/disponibilizar", "Submit the cadastro for review", baseOf,
		func(ctx context.Context, ator auth.Ator, k workflow.Chave, _ TransicaoBase) (domain.Subprocesso, error) {
			return e.DisponibilizarCadastro(ctx, ator, workflow.DisponibilizarCadastroParams{Chave: k})
		})
	registerTransicao(api, "devolver-cadastro", "cadastro/devolver", "Return the cadastro to the previous unit", obsBase,
		func(ctx context.Context, ator auth.Ator, k workflow.Chave, b ObservacoesRequest) (domain.Subprocesso, error) {
			return e.DevolverCadastro(ctx, ator, workflow.DevolverCadastroParams{Chave: k, Observacoes: b.Observacoes})
		})
	registerTransicao(api, "aceitar-cadastro", "cadastro/aceitar", "Accept the cadastro and forward it upward", obsBase,
		func(ctx context.Context, ator auth.Ator, k workflow.Chave, b ObservacoesRequest) (domain.Subprocesso, error) {
			return e.AceitarCadastro(ctx, ator, workflow.AceitarCadastroParams{Chave: k, Observacoes: b.Observacoes})
		})
	registerTransicao(api, "homologar-cadastro", "cadastro/homologar", "Homologate the cadastro", obsBase,
		func(ctx context.Context, ator auth.Ator, k workflow.Chave, b ObservacoesRequest) (domain.Subprocesso, error) {
			return e.HomologarCadastro(ctx, ator, workflow.HomologarCadastroParams{Chave: k, Observacoes: b.Observacoes})
		})
	registerTransicao(api, "reabrir-cadastro", "cadastro/reabrir", "Reopen a cadastro past its stage",
		func(b ReabrirRequest) TransicaoBase { return b.TransicaoBase },
		func(ctx context.Context, ator auth.Ator, k workflow.Chave, b ReabrirRequest) (domain.Subprocesso, error) {
			return e.ReabrirCadastro(ctx, ator, workflow.ReabrirCadastroParams{Chave: k, Justificativa: b.Justificativa})
		})
	registerTransicao(api, "alterar-data-limite", "data-limite", "Change a stage deadline",
		func(b DataLimiteRequest) TransicaoBase { return b.TransicaoBase },
		func(ctx context.Context, ator auth.Ator, k workflow.Chave, b DataLimiteRequest) (domain.Subprocesso, error) {
			return e.AlterarDataLimite(ctx, ator, workflow.AlterarDataLimiteParams{Chave: k, Etapa: b.Etapa, NovaDataLimite: b.NovaDataLimite})
		})
}

func registerSubprocessos(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-subprocessos",
		Method:      http.MethodGet,
		Path:        "/processos/{id}/subprocessos",
		Summary:     "List the subprocessos of a processo",
	}, func(ctx context.Context, input *processoPath) (*struct {
		Body []domain.Subprocesso `json:"body"`
	}, error) {
		ator, authErr := atorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		items, err := e.ListSubprocessos(ctx, ator, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		if items == nil {
			items = []domain.Subprocesso{}
		}
		return &struct {
			Body []domain.Subprocesso `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-subprocesso",
		Method:      http.MethodGet,
		Path:        "/processos/{id}/unidades/{unidade}",
		Summary:     "Get a subprocesso with its history",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID                 int64  `path:"id"`
		Unidade            string `path:"unidade"`
		UnidadeSubprocesso string `query:"unidade_subprocesso"`
	}) (*subprocessoOutput, error) {
		ator, authErr := atorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		sp, err := e.GetSubprocesso(ctx, ator, workflow.Chave{
			IDProcesso:         input.ID,
			Unidade:            input.Unidade,
			UnidadeSubprocesso: input.UnidadeSubprocesso,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &subprocessoOutput{Body: sp}, nil
	})
}

func registerCadastroBloco(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "cadastro-bloco",
		Method:      http.MethodPost,
		Path:        "/processos/{id}/cadastro/bloco",
		Summary:     "Accept or homologate the cadastro of several units",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		ID   int64                `path:"id"`
		Body CadastroBlocoRequest `json:"body"`
	}) (*struct {
		Body engine.ResultadoBloco `json:"body"`
	}, error) {
		ator, authErr := atorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		res, err := e.ProcessarCadastroBloco(ctx, ator, workflow.CadastroBlocoParams{
			IDProcesso:     input.ID,
			Unidades:       input.Body.Unidades,
			TipoAcao:       workflow.TipoAcaoBloco(input.Body.TipoAcao),
			UnidadeUsuario: ator.Unidade,
			Force:          input.Body.Force,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body engine.ResultadoBloco `json:"body"`
		}{Body: res}, nil
	})
}

func registerMapaBloco(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "mapa-bloco",
		Method:      http.MethodPost,
		Path:        "/processos/{id}/mapa/bloco",
		Summary:     "Publish, accept or homologate the map of several units",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		ID   int64            `path:"id"`
		Body MapaBlocoRequest `json:"body"`
	}) (*struct {
		Body engine.ResultadoBloco `json:"body"`
	}, error) {
		ator, authErr := atorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		res, err := e.ProcessarMapaBloco(ctx, ator, workflow.MapaBlocoParams{
			IDProcesso:     input.ID,
			Unidades:       input.Body.Unidades,
			TipoAcao:       workflow.TipoAcaoMapaBloco(input.Body.TipoAcao),
			UnidadeUsuario: ator.Unidade,
			DataLimite:     input.Body.DataLimite,
			Observacoes:    input.Body.Observacoes,
			Force:          input.Body.Force,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body engine.ResultadoBloco `json:"body"`
		}{Body: res}, nil
	})
}
