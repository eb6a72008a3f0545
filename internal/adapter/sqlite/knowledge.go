// Package sqlite implements the knowledge base port on an embedded
// SQLite database, for single-binary deployments without PostgreSQL.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/kalkwerk/konsil/internal/domain/consult"
	"github.com/kalkwerk/konsil/internal/port/knowledge"
)

// Store implements knowledge.Base using SQLite.
type Store struct {
	db *sql.DB
}

// New opens (or creates) the database at path, applies the schema and
// seeds the fact table on first use.
func New(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	// Enable WAL mode for concurrent read/write access and set a busy
	// timeout so writers retry instead of immediately returning SQLITE_BUSY.
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return nil, fmt.Errorf("exec %s: %w", p, err)
		}
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS knowledge_facts (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			domain     TEXT NOT NULL,
			topic      TEXT NOT NULL,
			statement  TEXT NOT NULL,
			source     TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_knowledge_facts_domain ON knowledge_facts(domain, topic, id)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("exec migration: %w", err)
		}
	}

	return s.seed()
}

// seed fills an empty fact table with the normative baseline facts.
func (s *Store) seed() error {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM knowledge_facts`).Scan(&n); err != nil {
		return fmt.Errorf("count facts: %w", err)
	}
	if n > 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin seed tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, f := range seedFacts {
		if _, err := tx.Exec(
			`INSERT INTO knowledge_facts (domain, topic, statement, source) VALUES (?, ?, ?, ?)`,
			f.domain, f.topic, f.statement, f.source,
		); err != nil {
			return fmt.Errorf("seed fact %q: %w", f.topic, err)
		}
	}

	return tx.Commit()
}

// Lookup returns up to limit facts whose domain is among the given ones.
// Results are ordered by domain, topic and id so the same classification
// always yields the same fact set.
func (s *Store) Lookup(ctx context.Context, domains []consult.Domain, limit int) ([]knowledge.Fact, error) {
	if len(domains) == 0 || limit <= 0 {
		return nil, nil
	}

	placeholders := make([]string, len(domains))
	args := make([]any, 0, len(domains)+1)
	for i, d := range domains {
		placeholders[i] = "?"
		args = append(args, string(d))
	}
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, domain, topic, statement, source
		 FROM knowledge_facts WHERE domain IN (`+strings.Join(placeholders, ",")+`)
		 ORDER BY domain ASC, topic ASC, id ASC
		 LIMIT ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("lookup facts: %w", err)
	}
	defer rows.Close()

	var facts []knowledge.Fact
	for rows.Next() {
		var f knowledge.Fact
		var domain string
		if err := rows.Scan(&f.ID, &domain, &f.Topic, &f.Statement, &f.Source); err != nil {
			return nil, fmt.Errorf("scan fact: %w", err)
		}
		f.Domain = consult.Domain(domain)
		facts = append(facts, f)
	}
	return facts, rows.Err()
}

// Healthy pings the database.
func (s *Store) Healthy(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
