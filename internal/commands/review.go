package commands

import (
	"context"
	"fmt"
	"io"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/jwulff/stmtimport/internal/api"
	"github.com/jwulff/stmtimport/internal/app"
	"github.com/jwulff/stmtimport/internal/config"
	"github.com/jwulff/stmtimport/internal/history"
	"github.com/jwulff/stmtimport/internal/logger"
	"github.com/jwulff/stmtimport/internal/workflow"
)

type reviewFlags struct {
	apiURL    string
	accountID string
	method    string
	aiModel   string
	tableType string
	scale     float64
	noHistory bool
}

func newReviewCommand(g *globalOptions) *cobra.Command {
	var f reviewFlags

	cmd := &cobra.Command{
		Use:   "review [file]",
		Short: "Upload a statement and review its transactions before importing",
		Long: `Upload a PDF or image statement, check the automatically parsed tables,
draw regions around any tables the parser missed, and import the transactions
that are not already in the account.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.load()
			if err != nil {
				return err
			}
			f.apply(cmd, cfg)
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration:\n%w", err)
			}

			var file string
			if len(args) > 0 {
				file = args[0]
			}
			return runReview(cmd.Context(), cmd.OutOrStdout(), cfg, file)
		},
	}

	cmd.Flags().StringVar(&f.apiURL, "api-url", "", "finance backend API root")
	cmd.Flags().StringVar(&f.accountID, "account", "", "account to import into")
	cmd.Flags().StringVar(&f.method, "method", "", "processing method: auto, ocr, ai or hybrid")
	cmd.Flags().StringVar(&f.aiModel, "ai-model", "", "model for AI and hybrid processing")
	cmd.Flags().StringVar(&f.tableType, "table-type", "", "table type sent with manual extractions")
	cmd.Flags().Float64Var(&f.scale, "scale", 0, "page render scale")
	cmd.Flags().BoolVar(&f.noHistory, "no-history", false, "do not record the import locally")

	return cmd
}

// apply overrides cfg with the flags given on the command line.
func (f reviewFlags) apply(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("api-url") {
		cfg.API.URL = f.apiURL
	}
	if flags.Changed("account") {
		cfg.Import.AccountID = f.accountID
	}
	if flags.Changed("method") {
		cfg.Import.Method = f.method
	}
	if flags.Changed("ai-model") {
		cfg.Import.AIModel = f.aiModel
	}
	if flags.Changed("table-type") {
		cfg.Import.TableType = f.tableType
	}
	if flags.Changed("scale") {
		cfg.Display.PageScale = f.scale
	}
	if f.noHistory {
		cfg.History.Disabled = true
	}
}

func runReview(ctx context.Context, out io.Writer, cfg *config.Config, file string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	method, err := cfg.ProcessingMethod()
	if err != nil {
		return err
	}

	logPath := cfg.Log.File
	if logPath == "" {
		logPath = logger.DefaultPath()
	}
	log, closer, err := logger.NewFile(logPath, cfg.Log.Level)
	if err != nil {
		return err
	}
	defer closer.Close()
	ctx = logger.WithContext(ctx, log)

	client, err := api.New(api.Options{
		BaseURL:              cfg.API.URL,
		Token:                cfg.API.Token,
		PageFetchesPerSecond: cfg.API.PageFetchesPerSecond,
		PageFetchBurst:       cfg.API.PageFetchBurst,
		Logger:               &log,
	})
	if err != nil {
		return err
	}

	var rec app.Recorder
	if path := cfg.HistoryPath(history.DefaultDBPath()); path != "" {
		store, err := history.Open(path)
		if err != nil {
			log.Warn().Err(err).Str("path", path).Msg("import history unavailable")
		} else {
			defer store.Close()
			rec = store
		}
	}

	m := app.New(app.Options{
		Backend: client,
		History: rec,
		Settings: workflow.Settings{
			AccountID:      cfg.Import.AccountID,
			AIModel:        cfg.Import.AIModel,
			TableType:      cfg.Import.TableType,
			PageScale:      cfg.Display.PageScale,
			SkipDuplicates: cfg.Import.SkipDuplicates,
			AddTag:         cfg.Import.AddTag,
		},
		Method:         method,
		File:           file,
		MaxUploadBytes: cfg.Import.MaxUploadBytes,
		NoticeTTL:      time.Duration(cfg.Display.NoticeSeconds) * time.Second,
		Logger:         log,
	})
	defer m.Close()

	log.Info().Str("api", cfg.API.URL).Str("method", method.String()).Str("file", file).Msg("starting review")
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion(), tea.WithContext(ctx))
	final, err := p.Run()
	if err != nil {
		return fmt.Errorf("running ui: %w", err)
	}

	if fm, ok := final.(app.Model); ok {
		summarize(out, fm.Machine(), logger.FromContext(ctx))
	}
	return nil
}

// summarize prints the outcome once the terminal is back to normal.
func summarize(out io.Writer, mach workflow.Machine, log zerolog.Logger) {
	switch mach.Phase() {
	case workflow.PhaseDone:
		r, _ := mach.Result()
		fmt.Fprintf(out, "Imported %d transactions from %s.\n", r.Created, mach.Session().FileName)
		if r.SkippedDuplicates > 0 || r.Failed > 0 {
			fmt.Fprintf(out, "%d skipped as duplicates, %d failed.\n", r.SkippedDuplicates, r.Failed)
		}
		log.Info().Int("created", r.Created).Int("failed", r.Failed).Msg("import finished")
	case workflow.PhaseAborted:
		fmt.Fprintln(out, "Import abandoned. Nothing was saved.")
	}
}
