package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"sgc/internal/domain"
	"sgc/internal/engine"
	"sgc/internal/repo"
)

type processoPath struct {
	ID int64 `path:"id"`
}

func registerProcessos(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-processo",
		Method:        http.MethodPost,
		Path:          "/processos",
		Summary:       "Create a processo with its participating units",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		Body ProcessoRequest `json:"body"`
	}) (*struct {
		Body domain.Processo `json:"body"`
	}, error) {
		ator, authErr := atorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		proc, err := e.CriarProcesso(ctx, ator, input.Body.params())
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Processo `json:"body"`
		}{Body: proc}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-processos",
		Method:      http.MethodGet,
		Path:        "/processos",
		Summary:     "List processos",
	}, func(ctx context.Context, input *struct {
		Situacao string `query:"situacao" enum:"CRIADO,EM_ANDAMENTO,FINALIZADO"`
		Tipo     string `query:"tipo" enum:"MAPEAMENTO,REVISAO,DIAGNOSTICO"`
	}) (*struct {
		Body []domain.Processo `json:"body"`
	}, error) {
		ator, authErr := atorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		items, err := e.ListProcessos(ctx, ator, repo.ProcessoFilters{
			Situacao: domain.SituacaoProcesso(input.Situacao),
			Tipo:     domain.TipoProcesso(input.Tipo),
		})
		if err != nil {
			return nil, handleError(err)
		}
		if items == nil {
			items = []domain.Processo{}
		}
		return &struct {
			Body []domain.Processo `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-processo",
		Method:      http.MethodGet,
		Path:        "/processos/{id}",
		Summary:     "Get a processo",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *processoPath) (*struct {
		Body domain.Processo `json:"body"`
	}, error) {
		ator, authErr := atorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		proc, err := e.GetProcesso(ctx, ator, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Processo `json:"body"`
		}{Body: proc}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-processo",
		Method:      http.MethodPut,
		Path:        "/processos/{id}",
		Summary:     "Rewrite a processo and replace its units",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID   int64           `path:"id"`
		Body ProcessoRequest `json:"body"`
	}) (*struct {
		Body domain.Processo `json:"body"`
	}, error) {
		ator, authErr := atorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		proc, err := e.EditarProcesso(ctx, ator, input.ID, input.Body.params())
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Processo `json:"body"`
		}{Body: proc}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-processo",
		Method:        http.MethodDelete,
		Path:          "/processos/{id}",
		Summary:       "Delete a processo with its subprocessos and history",
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{http.StatusNotFound},
	}, func(ctx context.Context, input *processoPath) (*struct{}, error) {
		ator, authErr := atorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.RemoverProcesso(ctx, ator, input.ID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "start-processo",
		Method:      http.MethodPost,
		Path:        "/processos/{id}/iniciar",
		Summary:     "Start a processo",
		Errors:      []int{http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *processoPath) (*struct {
		Body domain.Processo `json:"body"`
	}, error) {
		ator, authErr := atorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		proc, err := e.IniciarProcesso(ctx, ator, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Processo `json:"body"`
		}{Body: proc}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "finish-processo",
		Method:      http.MethodPost,
		Path:        "/processos/{id}/finalizar",
		Summary:     "Finish a processo; unknown ids are reported, not rejected",
		Errors:      []int{http.StatusConflict},
	}, func(ctx context.Context, input *processoPath) (*struct {
		Body FinalizarResponse `json:"body"`
	}, error) {
		ator, authErr := atorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		proc, ok, err := e.FinalizarProcesso(ctx, ator, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		resp := FinalizarResponse{Encontrado: ok}
		if ok {
			resp.Processo = &proc
		}
		return &struct {
			Body FinalizarResponse `json:"body"`
		}{Body: resp}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-processo-unidades",
		Method:      http.MethodGet,
		Path:        "/processos/{id}/unidades",
		Summary:     "Units participating in a processo",
	}, func(ctx context.Context, input *processoPath) (*struct {
		Body []string `json:"body"`
	}, error) {
		ator, authErr := atorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		items, err := e.UnidadesDoProcesso(ctx, ator, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []string `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-unidades-bloqueadas",
		Method:      http.MethodGet,
		Path:        "/processos/unidades-bloqueadas",
		Summary:     "Units already in an active processo of the given tipo",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Tipo string `query:"tipo" required:"true" enum:"MAPEAMENTO,REVISAO,DIAGNOSTICO"`
	}) (*struct {
		Body []string `json:"body"`
	}, error) {
		ator, authErr := atorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		items, err := e.UnidadesBloqueadas(ctx, ator, domain.TipoProcesso(input.Tipo))
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []string `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "send-lembrete",
		Method:        http.MethodPost,
		Path:          "/processos/{id}/unidades/{unidade}/lembrete",
		Summary:       "Send a deadline reminder to a participating unit",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusForbidden, http.StatusNotFound, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		ID      int64  `path:"id"`
		Unidade string `path:"unidade"`
	}) (*struct {
		Body domain.Alerta `json:"body"`
	}, error) {
		ator, authErr := atorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		a, err := e.EnviarLembrete(ctx, ator, input.ID, input.Unidade)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Alerta `json:"body"`
		}{Body: a}, nil
	})
}
