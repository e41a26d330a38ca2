package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/embernet/tapestry-sub001/internal/config"
	"github.com/embernet/tapestry-sub001/internal/graph"
	"github.com/embernet/tapestry-sub001/internal/logging"
	"github.com/embernet/tapestry-sub001/internal/metrics"
	"github.com/embernet/tapestry-sub001/internal/session"
	"github.com/embernet/tapestry-sub001/internal/storage"
	"github.com/embernet/tapestry-sub001/internal/tools"
)

var (
	configFile string
	v          *viper.Viper
)

var rootCmd = &cobra.Command{
	Use:           "tapestry",
	Short:         "Knowledge graph editor driven by a language model",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		v = config.NewViper(configFile)
		return bindFlags(cmd)
	},
	RunE: func(cmd *cobra.Command, _ []string) error {
		return cmd.Help()
	},
}

// flagKeys maps command-line flags to config keys.
var flagKeys = map[string]string{
	"data-dir":  "data_dir",
	"log-level": "log.level",
	"log-json":  "log.json",
	"transport": "server.transport",
	"addr":      "server.addr",
	"token":     "server.token",
	"provider":  "ai.provider",
	"model":     "ai.model",
	"mode":      "ai.mode",
}

// bindFlags lets explicitly set flags override the file and environment.
func bindFlags(cmd *cobra.Command) error {
	for flag, key := range flagKeys {
		if f := cmd.Flags().Lookup(flag); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return err
			}
		}
	}
	return nil
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configFile, "config", "", "Config file (default ./tapestry.yaml or ~/.tapestry/tapestry.yaml)")
	pf.String("data-dir", "./data", "Directory for SQLite databases")
	pf.String("log-level", "info", "Log level: debug, info, warn, error")
	pf.Bool("log-json", false, "Emit JSON logs")

	rootCmd.AddCommand(serveCmd, chatCmd, workspaceCmd, toolsCmd)
}

// app is the wiring shared by every command.
type app struct {
	cfg        *config.Config
	logger     *zap.Logger
	metrics    *metrics.Collector
	meta       *storage.MetaStore
	store      *graph.Store
	session    *session.Session
	dispatcher *tools.Dispatcher
}

func newApp(opts ...tools.Option) (*app, error) {
	cfg, err := config.Load(v)
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(cfg.Log.Level, cfg.Log.JSON)
	if err != nil {
		return nil, err
	}

	meta, err := storage.OpenMeta(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("open meta store: %w", err)
	}

	m := metrics.New()
	store := graph.New()
	opts = append([]tools.Option{
		tools.WithEnabledGroups(cfg.Tools.Enabled),
		tools.WithRecorder(m),
		tools.WithLogger(logger.Named("tools")),
	}, opts...)

	return &app{
		cfg:        cfg,
		logger:     logger,
		metrics:    m,
		meta:       meta,
		store:      store,
		session:    session.New(meta, store, logger.Named("session")),
		dispatcher: tools.NewDispatcher(store, opts...),
	}, nil
}

func (a *app) Close() {
	if err := a.session.Close(); err != nil {
		a.logger.Error("save on shutdown failed", zap.Error(err))
	}
	a.meta.Close()
	a.logger.Sync()
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
