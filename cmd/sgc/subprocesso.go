package main

import (
	"context"
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"sgc/internal/domain"
	"sgc/internal/engine"
	"sgc/internal/engine/auth"
	"sgc/internal/repo"
	"sgc/internal/unidade"
	"sgc/internal/workflow"
)

func subprocessoCmd() *cobra.Command {
	sp := &cobra.Command{
		Use:     "subprocesso",
		Aliases: []string{"sp"},
		Short:   "Inspect and move subprocessos",
	}
	sp.AddCommand(subprocessoListarCmd())
	sp.AddCommand(subprocessoMostrarCmd())
	for _, c := range acaoCmds() {
		sp.AddCommand(c)
	}
	sp.AddCommand(blocoCmd())
	sp.AddCommand(blocoMapaCmd())
	return sp
}

// chaveFlags locate a subprocesso: the acting unit, optionally with the home
// unit when they differ.
type chaveFlags struct {
	processo           int64
	unidade            string
	unidadeSubprocesso string
}

func (f *chaveFlags) bind(cmd *cobra.Command) {
	cmd.Flags().Int64Var(&f.processo, "processo", 0, "processo id")
	cmd.Flags().StringVar(&f.unidade, "unidade", "", "acting unit")
	cmd.Flags().StringVar(&f.unidadeSubprocesso, "unidade-subprocesso", "", "home unit of the subprocesso, when not the acting unit")
	_ = cmd.MarkFlagRequired("processo")
	_ = cmd.MarkFlagRequired("unidade")
}

func (f chaveFlags) chave() workflow.Chave {
	return workflow.Chave{
		IDProcesso:         f.processo,
		Unidade:            f.unidade,
		UnidadeSubprocesso: f.unidadeSubprocesso,
		Force:              viper.GetBool("force"),
	}
}

type acaoFunc func(ctx context.Context, e engine.Engine, ator auth.Ator, k workflow.Chave) (domain.Subprocesso, error)

func acaoCmd(use, short string, extra func(*cobra.Command), run acaoFunc) *cobra.Command {
	var f chaveFlags
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				sp, err := run(ctx, e, atorAtual(), f.chave())
				if err != nil {
					return err
				}
				return printSubprocesso(sp)
			})
		},
	}
	f.bind(cmd)
	if extra != nil {
		extra(cmd)
	}
	return cmd
}

func acaoCmds() []*cobra.Command {
	var observacoes, sugestoes, justificativa, data string
	var etapa int
	obs := func(cmd *cobra.Command) {
		cmd.Flags().StringVar(&observacoes, "observacoes", "", "observations")
	}
	return []*cobra.Command{
		acaoCmd("disponibilizar-cadastro", "Submit the cadastro to the superior unit", nil,
			func(ctx context.Context, e engine.Engine, a auth.Ator, k workflow.Chave) (domain.Subprocesso, error) {
				return e.DisponibilizarCadastro(ctx, a, workflow.DisponibilizarCadastroParams{Chave: k})
			}),
		acaoCmd("devolver-cadastro", "Return the cadastro to its unit", obs,
			func(ctx context.Context, e engine.Engine, a auth.Ator, k workflow.Chave) (domain.Subprocesso, error) {
				return e.DevolverCadastro(ctx, a, workflow.DevolverCadastroParams{Chave: k, Observacoes: observacoes})
			}),
		acaoCmd("aceitar-cadastro", "Accept the cadastro and forward it upward", obs,
			func(ctx context.Context, e engine.Engine, a auth.Ator, k workflow.Chave) (domain.Subprocesso, error) {
				return e.AceitarCadastro(ctx, a, workflow.AceitarCadastroParams{Chave: k, Observacoes: observacoes})
			}),
		acaoCmd("homologar-cadastro", "Homologate the cadastro", obs,
			func(ctx context.Context, e engine.Engine, a auth.Ator, k workflow.Chave) (domain.Subprocesso, error) {
				return e.HomologarCadastro(ctx, a, workflow.HomologarCadastroParams{Chave: k, Observacoes: observacoes})
			}),
		acaoCmd("reabrir-cadastro", "Reopen the cadastro",
			func(cmd *cobra.Command) {
				cmd.Flags().StringVar(&justificativa, "justificativa", "", "reason for reopening")
				_ = cmd.MarkFlagRequired("justificativa")
			},
			func(ctx context.Context, e engine.Engine, a auth.Ator, k workflow.Chave) (domain.Subprocesso, error) {
				return e.ReabrirCadastro(ctx, a, workflow.ReabrirCadastroParams{Chave: k, Justificativa: justificativa})
			}),
		acaoCmd("criar-mapa", "Create the competency map", nil,
			func(ctx context.Context, e engine.Engine, a auth.Ator, k workflow.Chave) (domain.Subprocesso, error) {
				return e.CriarMapa(ctx, a, workflow.CriarMapaParams{Chave: k})
			}),
		acaoCmd("disponibilizar-mapa", "Publish the map for validation",
			func(cmd *cobra.Command) {
				cmd.Flags().StringVar(&data, "data-limite", "", "validation deadline (YYYY-MM-DD)")
				cmd.Flags().StringVar(&observacoes, "observacoes", "", "observations")
				_ = cmd.MarkFlagRequired("data-limite")
			},
			func(ctx context.Context, e engine.Engine, a auth.Ator, k workflow.Chave) (domain.Subprocesso, error) {
				limite, err := parseData(data)
				if err != nil {
					return domain.Subprocesso{}, err
				}
				return e.DisponibilizarMapa(ctx, a, workflow.DisponibilizarMapaParams{Chave: k, DataLimite: limite, Observacoes: observacoes})
			}),
		acaoCmd("apresentar-sugestoes", "Record suggestions on the map",
			func(cmd *cobra.Command) {
				cmd.Flags().StringVar(&sugestoes, "sugestoes", "", "suggestions text")
			},
			func(ctx context.Context, e engine.Engine, a auth.Ator, k workflow.Chave) (domain.Subprocesso, error) {
				return e.ApresentarSugestoes(ctx, a, workflow.ApresentarSugestoesParams{Chave: k, Sugestoes: sugestoes})
			}),
		acaoCmd("validar-mapa", "Validate the map and forward it upward", nil,
			func(ctx context.Context, e engine.Engine, a auth.Ator, k workflow.Chave) (domain.Subprocesso, error) {
				return e.ValidarMapa(ctx, a, workflow.ValidarMapaParams{Chave: k})
			}),
		acaoCmd("aceitar-mapa", "Accept the map; with --perfil ADMIN it is homologated", nil,
			func(ctx context.Context, e engine.Engine, a auth.Ator, k workflow.Chave) (domain.Subprocesso, error) {
				if a.Perfil == "" {
					return domain.Subprocesso{}, fmt.Errorf("--perfil is required to accept a map")
				}
				return e.AceitarMapa(ctx, a, workflow.AceitarMapaParams{Chave: k, Perfil: a.Perfil})
			}),
		acaoCmd("rejeitar-mapa", "Return the map to the previous unit", obs,
			func(ctx context.Context, e engine.Engine, a auth.Ator, k workflow.Chave) (domain.Subprocesso, error) {
				return e.RejeitarMapa(ctx, a, workflow.RejeitarMapaParams{Chave: k, Observacoes: observacoes})
			}),
		acaoCmd("alterar-data-limite", "Change the deadline of stage 1 or 2",
			func(cmd *cobra.Command) {
				cmd.Flags().IntVar(&etapa, "etapa", 1, "stage (1 cadastro, 2 mapa)")
				cmd.Flags().StringVar(&data, "data-limite", "", "new deadline (YYYY-MM-DD)")
				_ = cmd.MarkFlagRequired("data-limite")
			},
			func(ctx context.Context, e engine.Engine, a auth.Ator, k workflow.Chave) (domain.Subprocesso, error) {
				nova, err := parseData(data)
				if err != nil {
					return domain.Subprocesso{}, err
				}
				return e.AlterarDataLimite(ctx, a, workflow.AlterarDataLimiteParams{Chave: k, Etapa: etapa, NovaDataLimite: nova})
			}),
	}
}

func blocoCmd() *cobra.Command {
	var processo int64
	var unidades []string
	var tipo string
	cmd := &cobra.Command{
		Use:   "bloco",
		Short: "Accept or homologate the cadastro of several units at once",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				ator := atorAtual()
				usuario := ator.Unidade
				if usuario == "" {
					usuario = e.Config.UnidadeAdmin
				}
				res, err := e.ProcessarCadastroBloco(ctx, ator, workflow.CadastroBlocoParams{
					IDProcesso:     processo,
					Unidades:       unidades,
					TipoAcao:       workflow.TipoAcaoBloco(tipo),
					UnidadeUsuario: usuario,
					Force:          viper.GetBool("force"),
				})
				if err != nil {
					return err
				}
				return printResultadoBloco(res)
			})
		},
	}
	cmd.Flags().Int64Var(&processo, "processo", 0, "processo id")
	cmd.Flags().StringSliceVar(&unidades, "unidades", nil, "units (comma separated)")
	cmd.Flags().StringVar(&tipo, "acao", string(workflow.BlocoAceitar), "aceitar or homologar")
	_ = cmd.MarkFlagRequired("processo")
	_ = cmd.MarkFlagRequired("unidades")
	return cmd
}

func printResultadoBloco(res engine.ResultadoBloco) error {
	if viper.GetBool("json") {
		return printJSON(res)
	}
	printSubprocessos(res.Processadas)
	for _, ig := range res.Ignoradas {
		fmt.Printf("skipped %s: %s\n", ig.Unidade, ig.Motivo)
	}
	return nil
}

func blocoMapaCmd() *cobra.Command {
	var processo int64
	var unidades []string
	var tipo, data, observacoes string
	cmd := &cobra.Command{
		Use:   "bloco-mapa",
		Short: "Publish, accept or homologate the map of several units at once",
		RunE: func(cmd *cobra.Command, args []string) error {
			p := workflow.MapaBlocoParams{
				IDProcesso:  processo,
				Unidades:    unidades,
				TipoAcao:    workflow.TipoAcaoMapaBloco(tipo),
				Observacoes: observacoes,
				Force:       viper.GetBool("force"),
			}
			if data != "" {
				limite, err := parseData(data)
				if err != nil {
					return err
				}
				p.DataLimite = limite
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				ator := atorAtual()
				p.UnidadeUsuario = ator.Unidade
				if p.UnidadeUsuario == "" {
					p.UnidadeUsuario = e.Config.UnidadeAdmin
				}
				res, err := e.ProcessarMapaBloco(ctx, ator, p)
				if err != nil {
					return err
				}
				return printResultadoBloco(res)
			})
		},
	}
	cmd.Flags().Int64Var(&processo, "processo", 0, "processo id")
	cmd.Flags().StringSliceVar(&unidades, "unidades", nil, "units (comma separated)")
	cmd.Flags().StringVar(&tipo, "acao", string(workflow.MapaBlocoDisponibilizar), "disponibilizar, aceitar or homologar")
	cmd.Flags().StringVar(&data, "data-limite", "", "stage 2 deadline (YYYY-MM-DD), required to disponibilizar")
	cmd.Flags().StringVar(&observacoes, "observacoes", "", "observations")
	_ = cmd.MarkFlagRequired("processo")
	_ = cmd.MarkFlagRequired("unidades")
	return cmd
}

func subprocessoListarCmd() *cobra.Command {
	var processo int64
	cmd := &cobra.Command{
		Use:   "listar",
		Short: "List the subprocessos of a processo",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				subs, err := e.ListSubprocessos(ctx, atorAtual(), processo)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(subs)
				}
				printSubprocessos(subs)
				return nil
			})
		},
	}
	cmd.Flags().Int64Var(&processo, "processo", 0, "processo id")
	_ = cmd.MarkFlagRequired("processo")
	return cmd
}

func subprocessoMostrarCmd() *cobra.Command {
	var f chaveFlags
	cmd := &cobra.Command{
		Use:   "mostrar",
		Short: "Show a subprocesso with its history",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				sp, err := e.GetSubprocesso(ctx, atorAtual(), f.chave())
				if err != nil {
					return err
				}
				return printSubprocesso(sp)
			})
		},
	}
	f.bind(cmd)
	return cmd
}

func alertaCmd() *cobra.Command {
	al := &cobra.Command{Use: "alerta", Short: "In-app alertas"}
	var f repo.AlertaFilters
	listar := &cobra.Command{
		Use:   "listar",
		Short: "List alertas, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.ListAlertas(ctx, atorAtual(), f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := newTable("ID", "Processo", "De", "Para", "Descrição", "Data")
				for _, a := range items {
					tw.AppendRow(table.Row{a.ID, a.ProcessoID, a.UnidadeOrigem, a.UnidadeDestino, a.Descricao, a.DataHora.Format("02/01/2006 15:04")})
				}
				tw.Render()
				return nil
			})
		},
	}
	listar.Flags().StringVar(&f.Unidade, "unidade", "", "destination unit")
	listar.Flags().Int64Var(&f.ProcessoID, "processo", 0, "processo id")
	listar.Flags().IntVar(&f.Limit, "limit", 50, "max alertas")
	al.AddCommand(listar)
	return al
}

func unidadeCmd() *cobra.Command {
	u := &cobra.Command{Use: "unidade", Short: "Organizational units"}
	u.AddCommand(&cobra.Command{
		Use:   "arvore",
		Short: "Print the unit tree",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				for _, r := range e.Arvore.Raizes() {
					raiz, _ := e.Arvore.Get(r)
					fmt.Printf("%s %s\n", raiz.Sigla, raiz.Nome)
					filhas := e.Arvore.Filhas(r)
					for i, f := range filhas {
						printArvore(e.Arvore, f, "", i == len(filhas)-1)
					}
				}
				return nil
			})
		},
	})
	return u
}

func printArvore(a *unidade.Arvore, sigla, prefix string, last bool) {
	connector := "├── "
	newPrefix := prefix + "│   "
	if last {
		connector = "└── "
		newPrefix = prefix + "    "
	}
	u, _ := a.Get(sigla)
	fmt.Printf("%s%s%s %s\n", prefix, connector, u.Sigla, u.Nome)
	filhas := a.Filhas(sigla)
	for i, f := range filhas {
		printArvore(a, f, newPrefix, i == len(filhas)-1)
	}
}

func printSubprocessos(subs []domain.Subprocesso) {
	tw := newTable("ID", "Unidade", "Situação", "Unidade atual", "Unidade anterior", "Limite etapa 1", "Limite etapa 2")
	for _, sp := range subs {
		tw.AppendRow(table.Row{sp.ID, sp.Unidade, sp.Situacao, sp.UnidadeAtual, optionalString(sp.UnidadeAnterior),
			formatData(sp.DataLimiteEtapa1), formatData(sp.DataLimiteEtapa2)})
	}
	tw.Render()
}

func printSubprocesso(sp domain.Subprocesso) error {
	if viper.GetBool("json") {
		return printJSON(sp)
	}
	printSubprocessos([]domain.Subprocesso{sp})
	if len(sp.Movimentacoes) > 0 {
		tw := newTable("Data", "Origem", "Destino", "Movimentação")
		for _, m := range sp.Movimentacoes {
			tw.AppendRow(table.Row{m.DataHora.Format("02/01/2006 15:04"), m.UnidadeOrigem, m.UnidadeDestino, m.Descricao})
		}
		tw.Render()
	}
	if len(sp.Analises) > 0 {
		tw := newTable("Data", "Unidade", "Ação", "Observações")
		for _, a := range sp.Analises {
			tw.AppendRow(table.Row{a.DataHora.Format("02/01/2006 15:04"), a.Unidade, a.Acao, a.Observacoes})
		}
		tw.Render()
	}
	return nil
}
