package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"finetrail/internal/cli"
	"finetrail/internal/config"
	"finetrail/internal/log"
)

// env is shared by every subcommand; PersistentPreRunE fills it.
type env struct {
	userID   string
	logLevel string
	cfg      *config.Config
	logger   *log.Logger
	app      *cli.App
}

func newRootCmd() *cobra.Command {
	e := &env{}
	root := &cobra.Command{
		Use:           "finetrail-admin",
		Short:         "Administer finetrail ledgers",
		Long:          `Seed, report on and export the ledger of a single finetrail user.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return e.open(cmd.Context())
		},
		PersistentPostRunE: func(_ *cobra.Command, _ []string) error {
			return e.close()
		},
	}

	root.PersistentFlags().StringVarP(&e.userID, "user", "u", "", "user id whose ledger is administered")
	root.PersistentFlags().StringVar(&e.logLevel, "log-level", "", "log level (debug, info, warn, error); defaults to LOG_LEVEL")
	_ = root.MarkPersistentFlagRequired("user")

	root.AddCommand(seedCmd(e))
	root.AddCommand(reportCmd(e))
	root.AddCommand(exportCmd(e))
	return root
}

func (e *env) open(ctx context.Context) error {
	e.userID = strings.TrimSpace(e.userID)
	if e.userID == "" {
		return fmt.Errorf("--user must not be empty")
	}

	cli.LoadEnvFile()
	e.cfg = config.Load()
	level := e.logLevel
	if level == "" {
		level = e.cfg.LogLevel
	}
	lcfg := log.DefaultConfig()
	lcfg.Level = log.ParseLevel(level)
	lcfg.Component = log.ComponentAdmin
	lcfg.Output = os.Stderr
	e.logger = log.New(lcfg)

	if err := e.cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	app, err := cli.OpenApp(ctx, e.cfg, e.logger, false)
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	e.app = app
	return nil
}

func (e *env) close() error {
	if e.app == nil {
		return nil
	}
	err := e.app.Close()
	e.app = nil
	return err
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	root := newRootCmd()
	err := root.ExecuteContext(ctx)
	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
