package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vanderheijden86/lazytree/pkg/outline"
	"github.com/vanderheijden86/lazytree/pkg/session"
)

func newShowCmd(a *app) *cobra.Command {
	var (
		depth   int
		asJSON  bool
		showIDs bool
		noState bool
	)
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Load the tree to a depth and print it",
		Long: `Loads the root and every node down to --depth levels below it, fetching
siblings concurrently, then prints the expanded outline or a JSON snapshot.

Nodes expanded by an earlier show are remembered in session-state.json next
to the config file and are loaded and expanded again, whatever --depth is.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("depth") {
				depth = a.cfg.Load.Depth
			}
			if depth < 0 {
				return fmt.Errorf("--depth must not be negative")
			}

			store, release, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer release()

			opts := []session.Option{session.WithLogger(a.logger.Named("session"))}
			persist := !noState && a.cfg.Dir() != ""
			if persist {
				opts = append(opts, session.WithStatePath(session.StatePath(a.cfg.Dir())))
			}
			sess := session.New(store, opts...)
			if persist {
				if err := sess.Restore(cmd.Context()); err != nil {
					a.logger.Warn("restore session state", zap.Error(err))
				}
			}
			if err := sess.ExpandAll(cmd.Context(), depth); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				return outline.WriteJSON(out, store.Snapshot())
			}
			_, err = fmt.Fprint(out, outline.Render(sess.Rows(), a.outlineOptions(out, showIDs)))
			return err
		},
	}
	cmd.Flags().IntVar(&depth, "depth", 1, "levels to load below the root (default from config)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the snapshot as JSON")
	cmd.Flags().BoolVar(&showIDs, "ids", false, "print node ids in the outline")
	cmd.Flags().BoolVar(&noState, "no-state", false, "neither restore nor save the expanded set")
	return cmd
}
