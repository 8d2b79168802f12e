package store

import (
	"database/sql"
	_ "embed"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/calyx-lang/calyx/internal/ir"
)

//go:embed schema.sql
var schemaSQL string

// Store provides durable storage for named finite relations: the
// "statically known finite collection" source behind Rel expressions,
// and the domain supplier for exhaustive fallback enumeration.
// Uses SQLite with WAL mode for concurrent read access.
type Store struct {
	db *sql.DB
}

// Open creates or opens a SQLite database at the given path.
// Use ":memory:" for an ephemeral store in tests.
//
// The database is configured with:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode (balance durability/performance)
//   - 5-second busy timeout for lock contention
//   - Foreign key enforcement
//
// This function is idempotent - safe to call multiple times.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time, so limit connections
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("%s: %w", pragma, err)
		}
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DefineRelation registers a relation in the catalog.
// Defining an existing relation with the same shape is a no-op;
// changing its shape is an error.
func (s *Store) DefineRelation(name string, arity int, finite bool) error {
	if arity < 1 {
		return fmt.Errorf("relation %q: arity must be >= 1, got %d", name, arity)
	}
	existing, err := s.Relation(name)
	if err != nil {
		return err
	}
	if existing != nil {
		if existing.Arity != arity || existing.Finite != finite {
			return fmt.Errorf("relation %q already defined with arity %d finite %t",
				name, existing.Arity, existing.Finite)
		}
		return nil
	}

	finiteInt := 0
	if finite {
		finiteInt = 1
	}
	_, err = s.db.Exec(
		"INSERT INTO relations (name, arity, finite) VALUES (?, ?, ?)",
		name, arity, finiteInt)
	if err != nil {
		return fmt.Errorf("define relation %q: %w", name, err)
	}
	return nil
}

// Relation returns the catalog entry for a relation, or nil if absent.
func (s *Store) Relation(name string) (*ir.RelationInfo, error) {
	row := s.db.QueryRow("SELECT arity, finite FROM relations WHERE name = ?", name)
	var arity, finite int
	if err := row.Scan(&arity, &finite); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("lookup relation %q: %w", name, err)
	}
	return &ir.RelationInfo{Name: name, Arity: arity, Finite: finite == 1}, nil
}

// InsertTuples adds elements to a finite relation. Elements must match
// the relation's arity: scalars for arity 1, tuples otherwise.
// Duplicate elements are ignored; relations are sets.
func (s *Store) InsertTuples(name string, vals []ir.Value) error {
	info, err := s.Relation(name)
	if err != nil {
		return err
	}
	if info == nil {
		return fmt.Errorf("relation %q is not defined", name)
	}
	if !info.Finite {
		return fmt.Errorf("relation %q is unbounded; it cannot hold tuples", name)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("insert into %q: %w", name, err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(
		"INSERT OR IGNORE INTO tuples (relation, hash, encoding) VALUES (?, ?, ?)")
	if err != nil {
		return fmt.Errorf("insert into %q: %w", name, err)
	}
	defer stmt.Close()

	for _, v := range vals {
		if err := checkArity(v, info.Arity); err != nil {
			return fmt.Errorf("insert into %q: %w", name, err)
		}
		hash, err := ir.HashValue(v)
		if err != nil {
			return fmt.Errorf("insert into %q: %w", name, err)
		}
		encoding, err := ir.MarshalCanonical(v)
		if err != nil {
			return fmt.Errorf("insert into %q: %w", name, err)
		}
		if _, err := stmt.Exec(name, hash, string(encoding)); err != nil {
			return fmt.Errorf("insert into %q: %w", name, err)
		}
	}
	return tx.Commit()
}

func checkArity(v ir.Value, arity int) error {
	if arity == 1 {
		if _, isTuple := v.(ir.VTuple); isTuple {
			return fmt.Errorf("arity-1 relation holds scalars, got %s", ir.FormatValue(v))
		}
		return nil
	}
	tuple, ok := v.(ir.VTuple)
	if !ok || len(tuple) != arity {
		return fmt.Errorf("element %s does not match arity %d", ir.FormatValue(v), arity)
	}
	return nil
}

// EnumerateRelation returns the distinct elements of a finite relation
// in insertion order. Implements eval.RelationSource.
//
// CRITICAL: the ORDER BY makes enumeration deterministic across runs;
// generators built over relations must enumerate reproducibly for
// golden tests to hold.
func (s *Store) EnumerateRelation(name string) ([]ir.Value, error) {
	info, err := s.Relation(name)
	if err != nil {
		return nil, err
	}
	if info == nil {
		return nil, fmt.Errorf("relation %q is not defined", name)
	}
	if !info.Finite {
		return nil, fmt.Errorf("relation %q is unbounded and cannot be enumerated", name)
	}

	rows, err := s.db.Query(
		"SELECT encoding FROM tuples WHERE relation = ? ORDER BY rowid ASC", name)
	if err != nil {
		return nil, fmt.Errorf("enumerate %q: %w", name, err)
	}
	defer rows.Close()

	var out []ir.Value
	for rows.Next() {
		var encoding string
		if err := rows.Scan(&encoding); err != nil {
			return nil, fmt.Errorf("enumerate %q: %w", name, err)
		}
		v, err := ir.UnmarshalCanonical([]byte(encoding))
		if err != nil {
			return nil, fmt.Errorf("enumerate %q: corrupt element: %w", name, err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("enumerate %q: %w", name, err)
	}
	return out, nil
}

// Count returns the number of distinct elements in a relation.
func (s *Store) Count(name string) (int, error) {
	row := s.db.QueryRow("SELECT COUNT(*) FROM tuples WHERE relation = ?", name)
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, fmt.Errorf("count %q: %w", name, err)
	}
	return n, nil
}

// Catalog returns every relation in the catalog, ordered by name.
func (s *Store) Catalog() ([]*ir.RelationInfo, error) {
	rows, err := s.db.Query("SELECT name, arity, finite FROM relations ORDER BY name ASC")
	if err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}
	defer rows.Close()

	var out []*ir.RelationInfo
	for rows.Next() {
		var info ir.RelationInfo
		var finite int
		if err := rows.Scan(&info.Name, &info.Arity, &finite); err != nil {
			return nil, fmt.Errorf("catalog: %w", err)
		}
		info.Finite = finite == 1
		out = append(out, &info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}
	return out, nil
}
