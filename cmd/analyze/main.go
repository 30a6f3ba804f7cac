package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/commercebatola-sys/Outil1/internal/analysis"
	"github.com/commercebatola-sys/Outil1/internal/config"
	"github.com/commercebatola-sys/Outil1/internal/extract"
	"github.com/commercebatola-sys/Outil1/internal/logging"
	"github.com/commercebatola-sys/Outil1/internal/providers"
	"github.com/commercebatola-sys/Outil1/internal/reports"
	"github.com/commercebatola-sys/Outil1/internal/session"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	cfgFile string
	v       = config.NewViper()
)

var rootCmd = &cobra.Command{
	Use:           "analyze",
	Short:         "Summarize and question financial PDF reports from the command line",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		if cfgFile != "" {
			v.SetConfigFile(cfgFile)
			if err := v.ReadInConfig(); err != nil {
				return fmt.Errorf("read config file %s: %w", cfgFile, err)
			}
		}
		return nil
	},
}

func main() {
	_ = godotenv.Load(".env")
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, userMessage(err))
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "YAML config file (default: FINANALYST_CONFIG or none)")
	pf.String("providers", "", "provider list, e.g. ollama|openrouter:team|mock")
	pf.StringP("provider", "p", "", "provider to use (default: first configured non-mock provider)")
	pf.StringP("model", "m", "", "model override")
	pf.Int("max-chars", 0, "text budget in characters (50000-200000)")
	pf.String("engine", "", "extraction engine: native, docconv or chain")
	pf.String("log-level", "warn", "log level")

	// Flags only win when set; otherwise env, config file and defaults apply.
	_ = v.BindPFlag("llm.providers", pf.Lookup("providers"))
	_ = v.BindPFlag("extract.max_chars", pf.Lookup("max-chars"))
	_ = v.BindPFlag("extract.engine", pf.Lookup("engine"))
	_ = v.BindPFlag("log.level", pf.Lookup("log-level"))
	v.SetDefault("log.level", "warn")

	rootCmd.AddCommand(summarizeCmd, askCmd, extractCmd)
}

// app is the service stack shared by the subcommands. Nothing is persisted:
// reports go to --out and no audit log is kept.
type app struct {
	cfg       config.Config
	log       *zap.Logger
	svc       *analysis.Service
	providers *providers.Manager
	sessionID string
}

func newApp(cmd *cobra.Command) (*app, error) {
	if f := cmd.Flags().Lookup("max-chars"); f != nil && f.Changed {
		n, _ := cmd.Flags().GetInt("max-chars")
		v.Set("extract.max_chars", config.ClampMaxChars(n))
	}
	cfg, err := config.FromViper(v)
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	ex, err := extract.New(cfg.Extractor)
	if err != nil {
		return nil, err
	}
	pm, err := providers.NewManager(cfg)
	if err != nil {
		return nil, err
	}
	svc := analysis.NewService(cfg, analysis.Deps{
		Extractor: ex,
		Providers: pm,
		Sessions:  session.NewStore(0),
		Reports:   reports.NopStore{},
		Logger:    logger,
	})
	provider, _ := cmd.Flags().GetString("provider")
	model, _ := cmd.Flags().GetString("model")
	settings := session.Settings{Provider: provider, Model: model}
	if sector, err := cmd.Flags().GetString("sector"); err == nil {
		settings.Sector = sector
	}
	sess, err := svc.CreateSession(settings)
	if err != nil {
		_ = pm.Close()
		return nil, err
	}
	return &app{cfg: cfg, log: logger, svc: svc, providers: pm, sessionID: sess.ID}, nil
}

func (a *app) close() {
	_ = a.providers.Close()
	_ = a.log.Sync()
}

// load uploads path into the app session and reports truncation on stderr.
func (a *app) load(ctx context.Context, path string) (analysis.UploadResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return analysis.UploadResult{}, fmt.Errorf("read %s: %w", path, err)
	}
	res, err := a.svc.Upload(ctx, a.sessionID, filepath.Base(path), data)
	if err != nil {
		return analysis.UploadResult{}, err
	}
	if res.Warning != "" {
		fmt.Fprintln(os.Stderr, res.Warning)
	}
	return res, nil
}

func userMessage(err error) string {
	var ae *analysis.Error
	if errors.As(err, &ae) {
		return ae.Message
	}
	return "error: " + err.Error()
}
