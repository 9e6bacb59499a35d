package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/vanderheijden86/lazytree/pkg/config"
	"github.com/vanderheijden86/lazytree/pkg/repository"
)

func newInitCmd(a *app) *cobra.Command {
	var (
		force    bool
		importFx string
		dbPath   string
	)
	cmd := &cobra.Command{
		Use:   "init [DIR]",
		Short: "Create .lazytree/config.yaml in DIR (default: current directory)",
		Long: `Writes a default config to DIR/.lazytree/config.yaml and adds the local
session state file to DIR/.gitignore.

With --import FIXTURE the fixture (JSON or YAML) is copied into a SQLite
database (--db, default .lazytree/tree.db) and the config points at it.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}
			path := filepath.Join(dir, config.DirName, config.FileName)
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}

			cfg := config.Default()
			if importFx != "" {
				fx, err := repository.LoadFixture(importFx)
				if err != nil {
					return err
				}
				if dbPath == "" {
					dbPath = filepath.Join(dir, config.DirName, "tree.db")
				}
				if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
					return err
				}
				db, err := repository.OpenSQLite(cmd.Context(), dbPath)
				if err != nil {
					return err
				}
				importErr := db.ImportFixture(cmd.Context(), fx)
				if err := db.Close(); err != nil && importErr == nil {
					importErr = err
				}
				if importErr != nil {
					return importErr
				}

				abs, err := filepath.Abs(dbPath)
				if err != nil {
					return err
				}
				cfg.Repository.Kind = config.KindSQLite
				cfg.Repository.Path = abs
				cfg.Repository.LatencyMin, cfg.Repository.LatencyMax = 0, 0
			}

			if err := config.Write(path, cfg); err != nil {
				return err
			}
			if err := config.EnsureGitignored(dir, config.StateIgnorePattern); err != nil {
				return fmt.Errorf("update .gitignore: %w", err)
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
			return err
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config")
	cmd.Flags().StringVar(&importFx, "import", "", "fixture file to import into a SQLite repository")
	cmd.Flags().StringVar(&dbPath, "db", "", "SQLite database path for --import")
	return cmd
}
