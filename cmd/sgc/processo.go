package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"sgc/internal/domain"
	"sgc/internal/engine"
	"sgc/internal/repo"
)

func processoCmd() *cobra.Command {
	p := &cobra.Command{Use: "processo", Short: "Manage processos"}
	p.AddCommand(processoCriarCmd())
	p.AddCommand(processoEditarCmd())
	p.AddCommand(processoListarCmd())
	p.AddCommand(processoMostrarCmd())
	p.AddCommand(processoIniciarCmd())
	p.AddCommand(processoFinalizarCmd())
	p.AddCommand(processoRemoverCmd())
	p.AddCommand(processoLembreteCmd())
	p.AddCommand(processoBloqueadasCmd())
	return p
}

type processoFlags struct {
	descricao  string
	tipo       string
	dataLimite string
	unidades   []string
}

func (f *processoFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.descricao, "descricao", "", "description")
	cmd.Flags().StringVar(&f.tipo, "tipo", string(domain.TipoMapeamento), "MAPEAMENTO, REVISAO or DIAGNOSTICO")
	cmd.Flags().StringVar(&f.dataLimite, "data-limite", "", "cadastro deadline (YYYY-MM-DD)")
	cmd.Flags().StringSliceVar(&f.unidades, "unidades", nil, "participating units (comma separated)")
	_ = cmd.MarkFlagRequired("descricao")
	_ = cmd.MarkFlagRequired("data-limite")
	_ = cmd.MarkFlagRequired("unidades")
}

func (f *processoFlags) params() (engine.ProcessoParams, error) {
	limite, err := parseData(f.dataLimite)
	if err != nil {
		return engine.ProcessoParams{}, err
	}
	return engine.ProcessoParams{
		Descricao:  f.descricao,
		Tipo:       domain.TipoProcesso(strings.ToUpper(f.tipo)),
		DataLimite: limite,
		Unidades:   f.unidades,
	}, nil
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid processo id %q", s)
	}
	return id, nil
}

func processoCriarCmd() *cobra.Command {
	var f processoFlags
	cmd := &cobra.Command{
		Use:   "criar",
		Short: "Create a processo",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := f.params()
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				proc, err := e.CriarProcesso(ctx, atorAtual(), p)
				if err != nil {
					return err
				}
				return printProcesso(proc)
			})
		},
	}
	f.bind(cmd)
	return cmd
}

func processoEditarCmd() *cobra.Command {
	var f processoFlags
	cmd := &cobra.Command{
		Use:   "editar <id>",
		Short: "Rewrite a processo and replace its units",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			p, err := f.params()
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				proc, err := e.EditarProcesso(ctx, atorAtual(), id, p)
				if err != nil {
					return err
				}
				return printProcesso(proc)
			})
		},
	}
	f.bind(cmd)
	return cmd
}

func processoListarCmd() *cobra.Command {
	var situacao, tipo string
	cmd := &cobra.Command{
		Use:   "listar",
		Short: "List processos",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.ListProcessos(ctx, atorAtual(), repo.ProcessoFilters{
					Situacao: domain.SituacaoProcesso(strings.ToUpper(situacao)),
					Tipo:     domain.TipoProcesso(strings.ToUpper(tipo)),
				})
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := newTable("ID", "Descrição", "Tipo", "Situação", "Data limite")
				for _, p := range items {
					tw.AppendRow(table.Row{p.ID, p.Descricao, p.Tipo, p.Situacao, p.DataLimite.Format("02/01/2006")})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&situacao, "situacao", "", "situação filter")
	cmd.Flags().StringVar(&tipo, "tipo", "", "tipo filter")
	return cmd
}

func processoMostrarCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mostrar <id>",
		Short: "Show a processo and its subprocessos",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				proc, err := e.GetProcesso(ctx, atorAtual(), id)
				if err != nil {
					return err
				}
				subs, err := e.ListSubprocessos(ctx, atorAtual(), id)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]any{"processo": proc, "subprocessos": subs})
				}
				if err := printProcesso(proc); err != nil {
					return err
				}
				printSubprocessos(subs)
				return nil
			})
		},
	}
}

func processoIniciarCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "iniciar <id>",
		Short: "Start a processo and open the cadastro stage of every unit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				proc, err := e.IniciarProcesso(ctx, atorAtual(), id)
				if err != nil {
					return err
				}
				return printProcesso(proc)
			})
		},
	}
}

func processoFinalizarCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "finalizar <id>",
		Short: "Finish a processo",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				proc, ok, err := e.FinalizarProcesso(ctx, atorAtual(), id)
				if err != nil {
					return err
				}
				if !ok {
					fmt.Printf("processo %d not found; nothing to do\n", id)
					return nil
				}
				return printProcesso(proc)
			})
		},
	}
}

func processoRemoverCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remover <id>",
		Short: "Delete a processo with its subprocessos, history and alertas",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if err := e.RemoverProcesso(ctx, atorAtual(), id); err != nil {
					return err
				}
				fmt.Printf("processo %d removed\n", id)
				return nil
			})
		},
	}
}

func processoLembreteCmd() *cobra.Command {
	var unidade string
	cmd := &cobra.Command{
		Use:   "lembrete <id>",
		Short: "Send a deadline reminder alerta to a participating unit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				a, err := e.EnviarLembrete(ctx, atorAtual(), id, unidade)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(a)
				}
				fmt.Printf("alerta %d sent to %s: %s\n", a.ID, a.UnidadeDestino, a.Descricao)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&unidade, "unidade", "", "destination unit")
	_ = cmd.MarkFlagRequired("unidade")
	return cmd
}

func processoBloqueadasCmd() *cobra.Command {
	var tipo string
	cmd := &cobra.Command{
		Use:   "bloqueadas",
		Short: "List units already in an active processo of a tipo",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.UnidadesBloqueadas(ctx, atorAtual(), domain.TipoProcesso(strings.ToUpper(tipo)))
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				for _, u := range items {
					fmt.Println(u)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&tipo, "tipo", string(domain.TipoMapeamento), "MAPEAMENTO, REVISAO or DIAGNOSTICO")
	return cmd
}

func printProcesso(p domain.Processo) error {
	if viper.GetBool("json") {
		return printJSON(p)
	}
	tw := newTable("ID", "Descrição", "Tipo", "Situação", "Data limite", "Finalizado em")
	tw.AppendRow(table.Row{p.ID, p.Descricao, p.Tipo, p.Situacao, p.DataLimite.Format("02/01/2006"), formatData(p.DataFinalizacao)})
	tw.Render()
	return nil
}
