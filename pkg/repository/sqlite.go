package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/vanderheijden86/lazytree/pkg/model"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS nodes (
	id        TEXT PRIMARY KEY,
	parent_id TEXT,
	name      TEXT NOT NULL,
	level     TEXT NOT NULL DEFAULT '',
	position  INTEGER NOT NULL DEFAULT 0,
	leaf      INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_nodes_parent ON nodes(parent_id, position);
`

// SQLite serves children from a nodes table keyed by parent id. Rows are
// returned in position order; a row flagged leaf is reported as loaded since
// it is known to have no children.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database at path and ensures
// the schema exists.
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	s, err := NewSQLite(ctx, db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewSQLite wraps an existing handle and ensures the schema exists.
func NewSQLite(ctx context.Context, db *sql.DB) (*SQLite, error) {
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

// Close releases the database handle.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// Root returns the single row without a parent.
func (s *SQLite) Root(ctx context.Context) (model.TreeNode, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, level, leaf FROM nodes WHERE parent_id IS NULL ORDER BY rowid LIMIT 1`)
	n, err := scanNode(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.TreeNode{}, fmt.Errorf("no root row: %w", ErrUnavailable)
	}
	return n, err
}

// FetchChildren returns the rows whose parent is id.
func (s *SQLite) FetchChildren(ctx context.Context, id string) ([]model.TreeNode, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, level, leaf FROM nodes WHERE parent_id = ? ORDER BY position, rowid`, id)
	if err != nil {
		return nil, fmt.Errorf("query children of %s: %w", id, err)
	}
	defer rows.Close()

	children := []model.TreeNode{}
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, fmt.Errorf("scan child of %s: %w", id, err)
		}
		children = append(children, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate children of %s: %w", id, err)
	}
	return children, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanNode(r rowScanner) (model.TreeNode, error) {
	var (
		n     model.TreeNode
		level string
		leaf  int64
	)
	if err := r.Scan(&n.ID, &n.Name, &level, &leaf); err != nil {
		return model.TreeNode{}, err
	}
	n.Level = model.Level(level)
	n.IsLoaded = leaf != 0
	return n, nil
}

// ImportFixture writes a fixture into the table in one transaction. Existing
// rows with the same ids are replaced.
func (s *SQLite) ImportFixture(ctx context.Context, fx *Fixture) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin import: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO nodes (id, parent_id, name, level, position, leaf) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare import: %w", err)
	}
	defer stmt.Close()

	var insert func(parent *string, n model.TreeNode, pos int) error
	insert = func(parent *string, n model.TreeNode, pos int) error {
		leaf := 0
		if n.IsLoaded && len(n.Children) == 0 && len(fx.Children[n.ID]) == 0 {
			leaf = 1
		}
		if _, err := stmt.ExecContext(ctx, n.ID, parent, n.Name, string(n.Level), pos, leaf); err != nil {
			return fmt.Errorf("insert %s: %w", n.ID, err)
		}
		for i, c := range n.Children {
			if err := insert(&n.ID, c, i); err != nil {
				return err
			}
		}
		return nil
	}

	if err := insert(nil, fx.Root, 0); err != nil {
		return err
	}
	for parentID, list := range fx.Children {
		for i, c := range list {
			if err := insert(&parentID, c, i); err != nil {
				return err
			}
		}
	}
	return tx.Commit()
}
