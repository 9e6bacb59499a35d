// Command lazytree drives a lazily loaded tree from the command line: it
// loads a tree from the configured repository, applies edits and prints the
// result as an outline or JSON.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/vanderheijden86/lazytree/pkg/config"
	"github.com/vanderheijden86/lazytree/pkg/logging"
	"github.com/vanderheijden86/lazytree/pkg/outline"
	"github.com/vanderheijden86/lazytree/pkg/tree"
)

// app is the state shared by every subcommand once flags are parsed.
type app struct {
	configPath string
	debug      bool
	noColor    bool

	cfg    config.Config
	logger *zap.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{logger: zap.NewNop()}

	root := &cobra.Command{
		Use:   "lazytree",
		Short: "Load, edit and print lazily loaded trees",
		Long: `lazytree keeps a single-rooted tree whose children are fetched on demand
from a repository (the built-in demo data, a JSON/YAML fixture file or a
SQLite database) and prints it as an outline.

Settings are read from --config, or from .lazytree/config.yaml found by
walking up from the working directory.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = a.logger.Sync()
		},
	}

	root.PersistentFlags().StringVar(&a.configPath, "config", "", "config file (default: discover .lazytree/config.yaml)")
	root.PersistentFlags().BoolVar(&a.debug, "debug", false, "enable debug logging")
	root.PersistentFlags().BoolVar(&a.noColor, "no-color", false, "disable coloured output")

	root.AddCommand(newShowCmd(a), newRunCmd(a), newInitCmd(a))
	return root
}

func (a *app) setup() error {
	var err error
	if a.configPath != "" {
		a.cfg, err = config.Load(a.configPath)
	} else {
		a.cfg, _, err = config.Discover()
	}
	if err != nil {
		return err
	}

	level := a.cfg.Log.Level
	if a.debug {
		level = "debug"
	}
	a.logger, err = logging.New(level, a.cfg.Log.Development)
	return err
}

// openStore builds the store described by the config. The returned function
// releases the repository.
func (a *app) openStore(ctx context.Context) (*tree.Store, func(), error) {
	store, closeFn, err := a.cfg.NewStore(ctx, a.logger)
	if err != nil {
		_ = closeFn()
		return nil, nil, err
	}
	return store, func() {
		if err := closeFn(); err != nil {
			a.logger.Warn("close repository", zap.Error(err))
		}
	}, nil
}

// outlineOptions styles output only for terminals, and fits it to the
// terminal width.
func (a *app) outlineOptions(w io.Writer, showIDs bool) outline.Options {
	opts := outline.Options{ShowIDs: showIDs}
	f, ok := w.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return opts
	}
	opts.Styled = !a.noColor
	if width, _, err := term.GetSize(int(f.Fd())); err == nil {
		opts.Width = width
	}
	return opts
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}
