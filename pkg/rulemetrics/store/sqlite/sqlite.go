package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/SDM-TIB/Behnoosh-Thesis/pkg/rulemetrics/internalerr"
	"github.com/SDM-TIB/Behnoosh-Thesis/pkg/rulemetrics/query"
	"github.com/SDM-TIB/Behnoosh-Thesis/pkg/rulemetrics/store"
)

// Store implements store.Store and store.Loader on SQLite.
type Store struct {
	db *sql.DB
}

// OpenSQLite opens a SQLite database with WAL mode enabled and creates the
// schema if needed.
func OpenSQLite(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", internalerr.ErrStoreUnavailable, err)
	}

	// Enable WAL mode for better concurrency
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %v", internalerr.ErrStoreUnavailable, err)
	}

	if err := initSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// initSchema creates tables if they don't exist
func initSchema(ctx context.Context, db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS facts (
	subject TEXT NOT NULL,
	predicate TEXT NOT NULL,
	object TEXT NOT NULL,
	PRIMARY KEY(subject, predicate, object)
);

CREATE INDEX IF NOT EXISTS idx_facts_po ON facts(predicate, object);

CREATE TABLE IF NOT EXISTS labels (
	entity TEXT PRIMARY KEY,
	label TEXT NOT NULL
);
`

	_, err := db.ExecContext(ctx, schema)
	return err
}

// AddFact inserts a triple; duplicates are ignored.
func (s *Store) AddFact(ctx context.Context, f store.Fact) error {
	return s.AddFacts(ctx, []store.Fact{f})
}

// AddFacts inserts triples in a single transaction.
func (s *Store) AddFacts(ctx context.Context, facts []store.Fact) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO facts (subject, predicate, object) VALUES (?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, f := range facts {
		if f.Subject == "" || f.Predicate == "" || f.Object == "" {
			continue
		}
		if _, err := stmt.ExecContext(ctx, f.Subject, f.Predicate, f.Object); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// SetLabel records the entity's label, replacing any previous one.
func (s *Store) SetLabel(ctx context.Context, entity string, l query.Label) error {
	const stmt = `
INSERT INTO labels (entity, label) VALUES (?, ?)
ON CONFLICT(entity) DO UPDATE SET label=excluded.label
`
	_, err := s.db.ExecContext(ctx, stmt, entity, string(l))
	return err
}

// Label returns the entity's label.
func (s *Store) Label(ctx context.Context, entity string) (query.Label, error) {
	var label string
	err := s.db.QueryRowContext(ctx, `SELECT label FROM labels WHERE entity = ?`, entity).Scan(&label)
	if err == sql.ErrNoRows {
		return query.LabelUnevaluated, nil
	}
	if err != nil {
		return "", err
	}
	return query.Label(label), nil
}

// Stats implements store.Store.
func (s *Store) Stats(ctx context.Context) (store.Stats, error) {
	st := store.Stats{Labels: make(map[query.Label]int64)}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM facts`).Scan(&st.Facts); err != nil {
		return store.Stats{}, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT label, COUNT(*) FROM labels GROUP BY label`)
	if err != nil {
		return store.Stats{}, err
	}
	defer rows.Close()

	for rows.Next() {
		var label string
		var n int64
		if err := rows.Scan(&label, &n); err != nil {
			return store.Stats{}, err
		}
		st.Labels[query.Label(label)] = n
	}
	return st, rows.Err()
}

// CountDistinct compiles p to a self-join over facts and runs it.
func (s *Store) CountDistinct(ctx context.Context, p query.Pattern) (int64, error) {
	stmt, args, err := buildCount(p)
	if err != nil {
		return 0, err
	}

	var n int64
	if err := s.db.QueryRowContext(ctx, stmt, args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

var columns = [3]string{"subject", "predicate", "object"}

// buildCount turns a pattern into one SELECT COUNT(DISTINCT ...) statement.
// Each Where atom is an aliased facts row; a variable's first occurrence names
// its column and later occurrences become equality joins. Absent atoms become
// NOT EXISTS subqueries correlated on the variables already bound.
func buildCount(p query.Pattern) (string, []any, error) {
	if err := p.Validate(); err != nil {
		return "", nil, err
	}

	bound := make(map[string]string)
	from := make([]string, 0, len(p.Where))
	var conds []string
	var args []any

	for i, a := range p.Where {
		alias := fmt.Sprintf("f%d", i)
		from = append(from, "facts AS "+alias)
		for j, t := range a.Terms() {
			col := alias + "." + columns[j]
			if !t.IsVariable() {
				conds = append(conds, col+" = ?")
				args = append(args, t.Key())
				continue
			}
			if ref, ok := bound[t.Value]; ok {
				conds = append(conds, col+" = "+ref)
				continue
			}
			bound[t.Value] = col
		}
	}

	entityCol := bound[p.Entity.Value]

	if p.Label != "" {
		conds = append(conds, "COALESCE((SELECT l.label FROM labels AS l WHERE l.entity = "+entityCol+"), ?) = ?")
		args = append(args, string(query.LabelUnevaluated), string(p.Label))
	}

	for k, a := range p.Absent {
		alias := fmt.Sprintf("n%d", k)
		local := make(map[string]string)
		sub := []string{"1 = 1"}
		for j, t := range a.Terms() {
			col := alias + "." + columns[j]
			if !t.IsVariable() {
				sub = append(sub, col+" = ?")
				args = append(args, t.Key())
				continue
			}
			if ref, ok := bound[t.Value]; ok {
				sub = append(sub, col+" = "+ref)
				continue
			}
			if ref, ok := local[t.Value]; ok {
				sub = append(sub, col+" = "+ref)
				continue
			}
			local[t.Value] = col
		}
		conds = append(conds, "NOT EXISTS (SELECT 1 FROM facts AS "+alias+" WHERE "+strings.Join(sub, " AND ")+")")
	}

	stmt := "SELECT COUNT(DISTINCT " + entityCol + ") FROM " + strings.Join(from, ", ")
	if len(conds) > 0 {
		stmt += " WHERE " + strings.Join(conds, " AND ")
	}
	return stmt, args, nil
}
