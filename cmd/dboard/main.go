package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"demandboard/internal/app"
	"demandboard/internal/board"
	"demandboard/internal/config"
	"demandboard/internal/db"
	"demandboard/internal/domain"
	"demandboard/internal/logger"
	"demandboard/internal/server"
	"demandboard/internal/tui"
	demandsdk "demandboard/sdk/go"
)

var rootCmd = &cobra.Command{
	Use:   "dboard",
	Short: "Weekly demand board CLI",
	Long: `dboard keeps a team's weekly demands on a three-column board.
- Columns: last_week (Semana Passada), this_week (Semana Atual) and stalled (Parados).
- Demands: a description, a priority (high, medium, low), one or more sub-groups and
  responsibles, an optional observation and a DD/MM/YYYY delivery date.
- The API: 'dboard serve' runs the record store over HTTP; every other command talks to it
  through --api-url (DEMANDBOARD_API_URL).
- The board: 'dboard board' opens the interactive terminal board; move, delete, observe and
  present do the same things from scripts.
- Event log: every change the store accepts, view with 'dboard log tail'.`,
	SilenceUsage: true,
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("DEMANDBOARD")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("api-url", demandsdk.DefaultBaseURL, "record store API base URL")
	rootCmd.PersistentFlags().String("config", "", "config file (defaults to <workspace>/demandboard.yml)")
	rootCmd.PersistentFlags().String("log-mode", "quiet", "log mode (dev, prod, quiet)")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("api-url", rootCmd.PersistentFlags().Lookup("api-url"))
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("log-mode", rootCmd.PersistentFlags().Lookup("log-mode"))
}

func registerCommands() {
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(listCmd())
	rootCmd.AddCommand(createCmd())
	rootCmd.AddCommand(editCmd())
	rootCmd.AddCommand(moveCmd())
	rootCmd.AddCommand(observeCmd())
	rootCmd.AddCommand(deleteCmd())
	rootCmd.AddCommand(presentCmd())
	rootCmd.AddCommand(boardCmd())
	rootCmd.AddCommand(logCmd())
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the record store HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			if _, err := db.EnsureWorkspace(workspace); err != nil {
				return err
			}
			log, err := newLogger(viper.GetString("log-mode"), "dev")
			if err != nil {
				return err
			}
			defer log.Sync()
			store, err := app.OpenStore(cmd.Context(), workspace)
			if err != nil {
				return err
			}
			defer store.Close()
			settings := store.Config
			if path := viper.GetString("config"); path != "" {
				if settings, err = config.FromFile(path); err != nil {
					return err
				}
				store.Engine.Rules = app.Rules(settings)
			}
			handler, err := server.New(server.Config{Engine: store.Engine, BasePath: basePath, Logger: log, Settings: settings})
			if err != nil {
				return err
			}
			srv := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = srv.Shutdown(ctx)
			}()
			log.Info("serving demand API", "addr", addr, "base_path", basePath, "workspace", workspace)
			fmt.Printf("Serving demand API on http://%s%s (OpenAPI at /openapi.json, docs at %s/docs)\n", displayAddr(addr), basePath, basePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":8001", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/api", "API base path")
	return cmd
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{
		Use:   "config",
		Short: "Manage demandboard.yml",
		Long:  "Config holds the board and column titles, the sub-group and people catalogs, whether a delivery date is required, and server options (CORS origins, joined list output).",
	}
	cfg.AddCommand(configInitCmd())
	cfg.AddCommand(configShowCmd())
	cfg.AddCommand(configValidateCmd())
	return cfg
}

func configInitCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default config to the workspace",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path(viper.GetString("workspace"))
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault()), 0o644); err != nil {
				return err
			}
			fmt.Printf("Wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config")
	return cmd
}

func configShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the effective config",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadSettings()
			if err != nil {
				return err
			}
			return printJSONOrTable(cfg)
		},
	}
	return cmd
}

func configValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate the config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := viper.GetString("config")
			if path == "" {
				path = config.Path(viper.GetString("workspace"))
			}
			_, err := config.FromFile(path)
			if viper.GetBool("json") {
				return printJSON(map[string]any{"ok": err == nil, "error": fmt.Sprint(err)})
			}
			if err != nil {
				return err
			}
			fmt.Println("config OK")
			return nil
		},
	}
	return cmd
}

func listCmd() *cobra.Command {
	var priority, subgroup, responsible, category string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List demands",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBoard(cmd.Context(), func(ctx context.Context, b *board.Board) error {
				b.SetFilter(board.Filter{Priority: priority, Subgroup: subgroup, Responsible: responsible})
				items := b.Filtered()
				if category != "" && category != board.All {
					cat, err := domain.ParseCategory(category)
					if err != nil {
						return err
					}
					items = b.Column(cat)
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Category", "Priority", "Description", "Subgroups", "Responsibles", "Delivery"})
				for _, d := range items {
					tw.AppendRow(table.Row{d.ID, d.Category, d.Priority, d.Description, domain.JoinList(d.Subgroups), domain.JoinList(d.Responsibles), d.DeliveryDate})
				}
				tw.AppendFooter(table.Row{"", "", "", fmt.Sprintf("%d demand(s)", len(items))})
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&priority, "priority", board.All, "priority filter")
	cmd.Flags().StringVar(&subgroup, "subgroup", board.All, "sub-group filter")
	cmd.Flags().StringVar(&responsible, "responsible", board.All, "responsible filter")
	cmd.Flags().StringVar(&category, "category", "", "only this column")
	return cmd
}

type draftFlags struct {
	description  string
	priority     string
	subgroups    []string
	responsibles []string
	observation  string
	date         string
	category     string
}

func (f *draftFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.description, "description", "", "description")
	cmd.Flags().StringVar(&f.priority, "priority", string(domain.PriorityMedium), "priority (high, medium, low)")
	cmd.Flags().StringSliceVar(&f.subgroups, "subgroup", nil, "sub-group (repeatable or comma separated)")
	cmd.Flags().StringSliceVar(&f.responsibles, "responsible", nil, "responsible (repeatable or comma separated)")
	cmd.Flags().StringVar(&f.observation, "observation", "", "observation")
	cmd.Flags().StringVar(&f.date, "date", "", "delivery date, DD/MM/YYYY or digits")
	cmd.Flags().StringVar(&f.category, "category", string(domain.CategoryThisWeek), "column (last_week, this_week, stalled)")
}

// apply copies the flags the user set onto d.
func (f *draftFlags) apply(cmd *cobra.Command, d *domain.Draft) error {
	changed := cmd.Flags().Changed
	if changed("description") {
		d.Description = f.description
	}
	if changed("priority") {
		p, err := domain.ParsePriority(f.priority)
		if err != nil {
			return err
		}
		d.Priority = p
	}
	if changed("subgroup") {
		d.Subgroups = domain.CleanList(f.subgroups)
	}
	if changed("responsible") {
		d.Responsibles = domain.CleanList(f.responsibles)
	}
	if changed("observation") {
		d.Observation = f.observation
	}
	if changed("date") {
		d.DeliveryDate = domain.MaskDeliveryDate(f.date)
	}
	if changed("category") {
		c, err := domain.ParseCategory(f.category)
		if err != nil {
			return err
		}
		d.Category = c
	}
	return nil
}

func createCmd() *cobra.Command {
	var f draftFlags
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a demand",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBoard(cmd.Context(), func(ctx context.Context, b *board.Board) error {
				b.OpenCreate()
				draft := b.State().Form.Draft
				if err := f.apply(cmd, &draft); err != nil {
					return err
				}
				d, err := b.SaveForm(ctx, draft)
				if err != nil {
					return err
				}
				return printJSONOrTable(d)
			})
		},
	}
	f.register(cmd)
	_ = cmd.MarkFlagRequired("description")
	return cmd
}

func editCmd() *cobra.Command {
	var f draftFlags
	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Edit a demand",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			return withBoard(cmd.Context(), func(ctx context.Context, b *board.Board) error {
				if err := b.OpenEdit(id); err != nil {
					return err
				}
				draft := b.State().Form.Draft
				if err := f.apply(cmd, &draft); err != nil {
					return err
				}
				d, err := b.SaveForm(ctx, draft)
				if err != nil {
					return err
				}
				return printJSONOrTable(d)
			})
		},
	}
	f.register(cmd)
	return cmd
}

func moveCmd() *cobra.Command {
	var to string
	cmd := &cobra.Command{
		Use:   "move <id>...",
		Short: "Move demands to another column",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := domain.ParseCategory(to)
			if err != nil {
				return err
			}
			return withBoard(cmd.Context(), func(ctx context.Context, b *board.Board) error {
				var g errgroup.Group
				for _, id := range args {
					p, err := b.MoveCard(ctx, id, target)
					if err != nil {
						return err
					}
					g.Go(p.Wait)
				}
				if err := g.Wait(); err != nil {
					return err
				}
				moved := make([]domain.Demand, 0, len(args))
				for _, id := range args {
					if d, ok := b.Repository().Get(id); ok {
						moved = append(moved, d)
					}
				}
				return printJSONOrTable(moved)
			})
		},
	}
	cmd.Flags().StringVar(&to, "to", "", "target column (last_week, this_week, stalled)")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func observeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "observe <id> <text>",
		Short: "Set a demand's observation",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBoard(cmd.Context(), func(ctx context.Context, b *board.Board) error {
				seq, err := b.PresentDemand(args[0])
				if err != nil {
					return err
				}
				seq.BeginEdit()
				seq.SetDraft(args[1])
				if err := seq.Save(ctx); err != nil {
					return err
				}
				return printJSONOrTable(seq.Current())
			})
		},
	}
	return cmd
}

func deleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <id>...",
		Short: "Delete demands",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBoard(cmd.Context(), func(ctx context.Context, b *board.Board) error {
				b.EnterDeleteMode()
				for _, id := range args {
					if _, err := b.ToggleSelect(id); err != nil {
						b.ExitDeleteMode()
						return err
					}
				}
				n, err := b.ConfirmDelete(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]any{"deleted": n})
				}
				return nil
			})
		},
	}
	return cmd
}

func presentCmd() *cobra.Command {
	var priority, subgroup, responsible string
	cmd := &cobra.Command{
		Use:   "present <category>",
		Short: "Print a column one demand at a time, as in a review meeting",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := domain.ParseCategory(args[0])
			if err != nil {
				return err
			}
			return withBoard(cmd.Context(), func(ctx context.Context, b *board.Board) error {
				b.SetFilter(board.Filter{Priority: priority, Subgroup: subgroup, Responsible: responsible})
				seq, err := b.Present(cat)
				if err != nil {
					return err
				}
				var items []domain.Demand
				for {
					items = append(items, seq.Current())
					if !viper.GetBool("json") {
						printSlide(seq.Position(), seq.Current())
					}
					if !seq.HasNext() {
						break
					}
					seq.Next()
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&priority, "priority", board.All, "priority filter")
	cmd.Flags().StringVar(&subgroup, "subgroup", board.All, "sub-group filter")
	cmd.Flags().StringVar(&responsible, "responsible", board.All, "responsible filter")
	return cmd
}

func boardCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "board",
		Short: "Open the interactive board",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadSettings()
			if err != nil {
				return err
			}
			// The alt screen owns stdout and stderr, so only warnings are logged.
			log, err := newLogger(viper.GetString("log-mode"), "quiet")
			if err != nil {
				return err
			}
			defer log.Sync()
			repo := board.NewRepository(demandsdk.New(viper.GetString("api-url")), app.Rules(cfg), log)
			return tui.Run(cmd.Context(), repo, cfg.DomainCatalog(), cfg.Board.Title, log)
		},
	}
	return cmd
}

func logCmd() *cobra.Command {
	log := &cobra.Command{
		Use:   "log",
		Short: "Event log",
		Long:  "Every create, update and delete the store accepted, newest first.",
	}
	log.AddCommand(logTailCmd())
	return log
}

func logTailCmd() *cobra.Command {
	var n int
	var evtType, entityID string
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Tail events",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := app.OpenStore(cmd.Context(), viper.GetString("workspace"))
			if err != nil {
				return err
			}
			defer store.Close()
			events, err := store.Engine.Repo.LatestEvents(cmd.Context(), n, evtType, entityID)
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(events)
			}
			tw := table.NewWriter()
			tw.SetOutputMirror(os.Stdout)
			tw.AppendHeader(table.Row{"#", "Time", "Type", "Demand", "Payload"})
			for _, e := range events {
				tw.AppendRow(table.Row{e.ID, e.TS, e.Type, e.EntityID, e.Payload})
			}
			tw.Render()
			return nil
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of events")
	cmd.Flags().StringVar(&evtType, "type", "", "event type filter")
	cmd.Flags().StringVar(&entityID, "demand", "", "demand id")
	return cmd
}

// --- helpers ---

// withBoard loads the record set from the API into a fresh board and hands
// it to fn. Notices go to stderr so stdout stays parseable.
func withBoard(ctx context.Context, fn func(context.Context, *board.Board) error) error {
	cfg, err := loadSettings()
	if err != nil {
		return err
	}
	log, err := newLogger(viper.GetString("log-mode"), "quiet")
	if err != nil {
		return err
	}
	defer log.Sync()
	client := demandsdk.New(viper.GetString("api-url"))
	repo := board.NewRepository(client, app.Rules(cfg), log)
	b := board.New(repo, board.Options{Logger: log, Notifier: board.NotifierFunc(printNotice)})
	if err := b.Reload(ctx); err != nil {
		return err
	}
	return fn(ctx, b)
}

func loadSettings() (*config.Config, error) {
	if path := viper.GetString("config"); path != "" {
		return config.FromFile(path)
	}
	return config.LoadOptional(viper.GetString("workspace"))
}

func newLogger(mode, fallback string) (*logger.Logger, error) {
	if strings.TrimSpace(mode) == "" {
		mode = fallback
	}
	return logger.New(mode)
}

func printNotice(n board.Notice) {
	if n.Level == board.NoticeError && n.Err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", n.Message, n.Err)
		return
	}
	fmt.Fprintln(os.Stderr, n.Message)
}

func printSlide(position string, d domain.Demand) {
	fmt.Printf("[%s] %s  %s\n", position, d.ID, d.Description)
	fmt.Printf("  Prioridade:   %s\n", d.Priority)
	fmt.Printf("  Subgrupos:    %s\n", domain.JoinList(d.Subgroups))
	fmt.Printf("  Responsáveis: %s\n", domain.JoinList(d.Responsibles))
	fmt.Printf("  Entrega:      %s\n", d.DeliveryDate)
	if d.Observation != "" {
		fmt.Printf("  Observação:   %s\n", d.Observation)
	}
	fmt.Println()
}

func displayAddr(addr string) string {
	if strings.HasPrefix(addr, ":") {
		return "localhost" + addr
	}
	return addr
}

func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
