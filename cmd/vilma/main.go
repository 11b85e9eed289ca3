// Command vilma plays the coupling host for the VILMA solid-earth component:
// it loads the project configuration, resolves the component and runs one
// exchange at a time.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kingrea/vilma/internal/config"
	"github.com/kingrea/vilma/internal/logging"
)

type app struct {
	projectDir string
	verbose    bool

	logger  *zap.Logger
	closeFn func() error
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "vilma",
		Short:         "Run VILMA solid-earth coupling exchanges",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.close()
		},
	}
	root.PersistentFlags().StringVarP(&a.projectDir, "project", "p", "", "path to the project directory (defaults to cwd)")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(newInitCmd(a))
	root.AddCommand(newInfoCmd(a))
	root.AddCommand(newRequirementsCmd(a))
	root.AddCommand(newReceiveCmd(a))
	root.AddCommand(newSendCmd(a))
	return root
}

func (a *app) setup() error {
	project := a.projectDir
	if project == "" {
		wd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("determine working directory: %w", err)
		}
		project = wd
	}
	abs, err := filepath.Abs(project)
	if err != nil {
		return fmt.Errorf("resolve project dir: %w", err)
	}
	a.projectDir = abs
	if a.logger != nil {
		return nil
	}
	logger, err := logging.New(abs, a.verbose)
	if err != nil {
		return err
	}
	a.logger = logger.Logger
	a.closeFn = logger.Close
	return nil
}

func (a *app) close() error {
	if a.closeFn == nil {
		return nil
	}
	err := a.closeFn()
	a.closeFn = nil
	return err
}

func (a *app) loadConfig() (*config.Config, error) {
	cfg, err := config.NewConfig(a.projectDir)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	a := &app{}
	err := newRootCmd(a).ExecuteContext(ctx)
	stop()
	_ = a.close()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
