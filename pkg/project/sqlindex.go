package project

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/kadirpekel/roshni/pkg/workflow"
)

// createIndexTableSQL creates a rows-are-disposable summary table:
// every row is derived entirely from a project's registry/checkpoint
// state, so the table can always be dropped and rebuilt from Rebuild
// without losing anything: the SQL index is never authoritative.
const createIndexTableSQL = `
CREATE TABLE IF NOT EXISTS project_index (
    id VARCHAR(255) PRIMARY KEY,
    goal TEXT NOT NULL,
    status VARCHAR(32) NOT NULL,
    tags TEXT NOT NULL,
    updated_at TIMESTAMP NOT NULL
)`

const createIndexStatusIdxSQL = `
CREATE INDEX IF NOT EXISTS idx_project_index_status ON project_index(status)`

const createIndexUpdatedIdxSQL = `
CREATE INDEX IF NOT EXISTS idx_project_index_updated_at ON project_index(updated_at)`

// SQLIndex is an optional secondary index over the registry/workflow
// state; IndexedIDs answers status/tag queries from it without walking
// the registry directory. It is never the source of truth: Rebuild
// always wins over any prior content. Store.List does not consult the
// index and always walks the registry directory.
type SQLIndex struct {
	db *sql.DB
}

// OpenSQLIndex opens (creating if necessary) a SQLite-backed index at
// path.
func OpenSQLIndex(path string) (*SQLIndex, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("project: open sql index: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, stmt := range []string{createIndexTableSQL, createIndexStatusIdxSQL, createIndexUpdatedIdxSQL} {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("project: init sql index schema: %w", err)
		}
	}
	return &SQLIndex{db: db}, nil
}

// Close closes the underlying database handle.
func (idx *SQLIndex) Close() error { return idx.db.Close() }

// Rebuild replaces the entire index contents with projects, inside one
// transaction.
func (idx *SQLIndex) Rebuild(ctx context.Context, projects []*workflow.Project) error {
	tx, err := idx.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("project: begin index rebuild: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM project_index"); err != nil {
		return fmt.Errorf("project: clear index: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO project_index (id, goal, status, tags, updated_at) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("project: prepare index insert: %w", err)
	}
	defer stmt.Close()

	for _, p := range projects {
		if _, err := stmt.ExecContext(ctx, p.ID, p.Goal, string(p.Status), strings.Join(p.Tags, ","), p.UpdatedAt); err != nil {
			return fmt.Errorf("project: insert index row for %s: %w", p.ID, err)
		}
	}
	return tx.Commit()
}

// IndexedIDs returns ids matching status/tag filters, sorted by
// updated_at descending, without touching the filesystem — a caller
// still resolves each id via Store.Get for full state.
func (idx *SQLIndex) IndexedIDs(ctx context.Context, status workflow.Status, tag string, limit int) ([]string, error) {
	query := "SELECT id FROM project_index WHERE 1=1"
	var args []any
	if status != "" {
		query += " AND status = ?"
		args = append(args, string(status))
	}
	if tag != "" {
		query += " AND (',' || tags || ',') LIKE ?"
		args = append(args, "%,"+tag+",%")
	}
	query += " ORDER BY updated_at DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := idx.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("project: query index: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("project: scan index row: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
