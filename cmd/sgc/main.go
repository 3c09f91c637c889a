package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"sgc/internal/app"
	"sgc/internal/config"
	"sgc/internal/domain"
	"sgc/internal/engine"
	"sgc/internal/engine/auth"
	"sgc/internal/migrate"
	"sgc/internal/repo"
	"sgc/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "sgc",
	Short: "SGC workflow CLI",
	Long: `SGC drives competency-mapping processos through their subprocessos, one per
participating unit.
- Processo: a mapeamento, revisão or diagnóstico campaign over a set of units.
- Subprocesso: the per-unit record; moves through cadastro and mapa stages.
- Movimentação: every hand-off between units, kept as history.
- Alerta: an in-app notice addressed to a unit.
- Log: audit diary of every change, view with 'sgc log tail'.
Without --perfil the CLI acts as the local operator and skips permission checks.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// A workspace .env supplies SGC_* values such as SGC_JWT_SECRET;
		// variables already set in the environment win.
		envPath := filepath.Join(viper.GetString("workspace"), ".env")
		if err := godotenv.Load(envPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", envPath, err)
		}
		return nil
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("SGC")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("actor-id", "operador", "actor identifier")
	rootCmd.PersistentFlags().String("perfil", "", "act with this perfil (ADMIN, GESTOR, CHEFE, SERVIDOR)")
	rootCmd.PersistentFlags().String("unidade-usuario", "", "unit of the acting user")
	rootCmd.PersistentFlags().Bool("force", false, "bypass the transition table")
	for _, name := range []string{"workspace", "json", "actor-id", "perfil", "unidade-usuario", "force"} {
		_ = viper.BindPFlag(name, rootCmd.PersistentFlags().Lookup(name))
	}
}

func registerCommands() {
	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(processoCmd())
	rootCmd.AddCommand(subprocessoCmd())
	rootCmd.AddCommand(alertaCmd())
	rootCmd.AddCommand(unidadeCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(tokenCmd())
	rootCmd.AddCommand(serveCmd())
}

func initCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create sgc.yml and the workspace database",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := app.Init(cmd.Context(), viper.GetString("workspace"), force)
			if err != nil {
				return err
			}
			fmt.Printf("Workspace ready; config at %s\n", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "overwrite", false, "overwrite an existing sgc.yml")
	return cmd
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show schema version and processo counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				version, err := migrate.Version(ctx, a.DB)
				if err != nil {
					return err
				}
				latest, err := migrate.Latest()
				if err != nil {
					return err
				}
				procs, err := a.Engine.ListProcessos(ctx, atorAtual(), repo.ProcessoFilters{})
				if err != nil {
					return err
				}
				counts := map[domain.SituacaoProcesso]int{}
				for _, p := range procs {
					counts[p.Situacao]++
				}
				out := map[string]any{
					"schema_version": version,
					"schema_latest":  latest,
					"unidade_admin":  a.Config.UnidadeAdmin,
					"processos":      counts,
				}
				if viper.GetBool("json") {
					return printJSON(out)
				}
				fmt.Printf("Schema: %d/%d\n", version, latest)
				fmt.Printf("Unidade admin: %s\n", a.Config.UnidadeAdmin)
				fmt.Println("Processos:")
				for _, s := range []domain.SituacaoProcesso{domain.ProcessoCriado, domain.ProcessoEmAndamento, domain.ProcessoFinalizado} {
					fmt.Printf("  %s: %d\n", s, counts[s])
				}
				return nil
			})
		},
	}
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{Use: "config", Short: "Inspect sgc.yml"}
	cfg.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective config",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, _, err := app.ResolveConfig(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			return printJSON(c)
		},
	})
	cfg.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate sgc.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := config.Load(viper.GetString("workspace")); err != nil {
				return err
			}
			fmt.Println("config ok")
			return nil
		},
	})
	return cfg
}

func logCmd() *cobra.Command {
	lg := &cobra.Command{Use: "log", Short: "Audit log"}
	lg.AddCommand(logTailCmd())
	return lg
}

func logTailCmd() *cobra.Command {
	var n int
	var processoID int64
	var evtType string
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Tail events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				events, err := e.LatestEvents(ctx, atorAtual(), n, processoID, evtType)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(events)
				}
				tw := newTable("ID", "TS", "Type", "Entity", "Actor")
				for _, ev := range events {
					tw.AppendRow(table.Row{ev.ID, ev.TS, ev.Type, ev.EntityKind + ":" + ev.EntityID, ev.ActorID})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of events")
	cmd.Flags().Int64Var(&processoID, "processo", 0, "processo filter")
	cmd.Flags().StringVar(&evtType, "type", "", "event type filter")
	return cmd
}

func tokenCmd() *cobra.Command {
	var actor, perfil, unidade string
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for the HTTP API (needs SGC_JWT_SECRET)",
		RunE: func(cmd *cobra.Command, args []string) error {
			secret := viper.GetString("jwt-secret")
			if secret == "" {
				return fmt.Errorf("SGC_JWT_SECRET is required")
			}
			token, err := server.SignToken(secret, actor, domain.Perfil(strings.ToUpper(perfil)), unidade, ttl)
			if err != nil {
				return err
			}
			fmt.Println(token)
			return nil
		},
	}
	cmd.Flags().StringVar(&actor, "actor", "", "token subject")
	cmd.Flags().StringVar(&perfil, "as", "", "perfil claim")
	cmd.Flags().StringVar(&unidade, "unidade", "", "unidade claim")
	cmd.Flags().DurationVar(&ttl, "ttl", server.DefaultTokenTTL, "token lifetime")
	_ = cmd.MarkFlagRequired("actor")
	_ = cmd.MarkFlagRequired("as")
	_ = cmd.MarkFlagRequired("unidade")
	return cmd
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	var devLogin bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				authCfg := server.AuthConfig{
					JWTSecret:     viper.GetString("jwt-secret"),
					AllowDevLogin: devLogin,
					Logger:        a.Log,
				}
				if authCfg.JWTSecret == "" {
					return fmt.Errorf("SGC_JWT_SECRET is required for bearer auth")
				}
				if addr == "" {
					addr = a.Config.Servidor.Addr
				}
				if basePath == "" {
					basePath = a.Config.Servidor.BasePath
				}
				handler, err := server.New(server.Config{Engine: a.Engine, BasePath: basePath, Auth: authCfg})
				if err != nil {
					return err
				}
				srv := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}
				go func() {
					<-ctx.Done()
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					srv.Shutdown(shutdownCtx)
				}()
				a.Log.WithField("addr", addr).WithField("base_path", basePath).Info("serving SGC API (Swagger UI at /docs)")
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from sgc.yml)")
	cmd.Flags().StringVar(&basePath, "base-path", "", "API base path (default from sgc.yml)")
	cmd.Flags().BoolVar(&devLogin, "dev-login", false, "expose POST /auth/dev/login")
	return cmd
}

// --- helpers ---

// atorAtual is the local operator unless --perfil is given.
func atorAtual() auth.Ator {
	return auth.Ator{
		ID:      viper.GetString("actor-id"),
		Perfil:  domain.Perfil(strings.ToUpper(viper.GetString("perfil"))),
		Unidade: viper.GetString("unidade-usuario"),
	}
}

func withApp(ctx context.Context, fn func(context.Context, *app.App) error) error {
	a, err := app.Open(ctx, viper.GetString("workspace"), os.Stderr)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

func withEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	return withApp(ctx, func(ctx context.Context, a *app.App) error {
		return fn(ctx, a.Engine)
	})
}

func newTable(header ...any) table.Writer {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row(header))
	return tw
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// parseData accepts 2006-01-02 or RFC 3339.
func parseData(s string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (use YYYY-MM-DD)", s)
	}
	return t.UTC(), nil
}

func optionalString(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func formatData(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("02/01/2006")
}
