package main

import (
	"context"
	"fmt"
	"os"

	"github.com/dvloznov/qbo-converter/internal/config"
	"github.com/dvloznov/qbo-converter/internal/ingest"
	"github.com/dvloznov/qbo-converter/internal/logger"
	"github.com/dvloznov/qbo-converter/internal/storage"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// app holds what every subcommand shares. It is filled in by the root
// command's pre-run once flags are parsed.
type app struct {
	cfgFile string
	verbose bool

	cfg *config.Config
	log zerolog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:           "qbo-converter",
		Short:         "Convert bank CSV exports to QuickBooks QBO files",
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&a.cfgFile, "config", "c", os.Getenv("QBO_CONFIG"), "set the config file path")
	rootCmd.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "log at debug level")

	rootCmd.AddCommand(newConvertCmd(a))
	rootCmd.AddCommand(newUploadCmd(a))
	rootCmd.AddCommand(newStatusCmd(a))
	rootCmd.AddCommand(newDownloadCmd(a))
	rootCmd.AddCommand(newProcessCmd(a))
	rootCmd.AddCommand(newParsePDFCmd(a))

	return rootCmd
}

func (a *app) init() error {
	cfg, err := config.Load(a.cfgFile)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if a.verbose {
		cfg.Log.Level = "debug"
	}

	log, err := logger.NewFromConfig(cfg.Log, os.Stderr)
	if err != nil {
		return err
	}

	a.cfg = cfg
	a.log = log
	return nil
}

// openStatements connects to the configured bucket. The caller closes the
// returned store.
func (a *app) openStatements(ctx context.Context) (*ingest.Service, storage.ObjectStore, error) {
	if a.cfg.Storage.Backend == storage.BackendMemory {
		a.log.Warn().Msg("Memory storage does not outlive this command; set storage.backend to gcs")
	}
	store, err := storage.New(ctx, a.cfg.Storage)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open storage: %w", err)
	}
	svc := ingest.NewService(store, a.log, ingest.WithMaxBytes(a.cfg.Upload.MaxBytes))
	return svc, store, nil
}
