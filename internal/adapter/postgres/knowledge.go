package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kalkwerk/konsil/internal/domain/consult"
	"github.com/kalkwerk/konsil/internal/port/knowledge"
)

// Store implements knowledge.Base using PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a new Store backed by the given connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Lookup returns up to limit facts whose domain is among the given ones.
// Results are ordered by domain, topic and id so the same classification
// always yields the same fact set.
func (s *Store) Lookup(ctx context.Context, domains []consult.Domain, limit int) ([]knowledge.Fact, error) {
	if len(domains) == 0 || limit <= 0 {
		return nil, nil
	}

	names := make([]string, len(domains))
	for i, d := range domains {
		names[i] = string(d)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, domain, topic, statement, source
		 FROM knowledge_facts WHERE domain = ANY($1)
		 ORDER BY domain ASC, topic ASC, id ASC
		 LIMIT $2`, names, limit)
	if err != nil {
		return nil, fmt.Errorf("lookup facts: %w", err)
	}
	defer rows.Close()

	var facts []knowledge.Fact
	for rows.Next() {
		var f knowledge.Fact
		if err := rows.Scan(&f.ID, &f.Domain, &f.Topic, &f.Statement, &f.Source); err != nil {
			return nil, fmt.Errorf("scan fact: %w", err)
		}
		facts = append(facts, f)
	}
	return facts, rows.Err()
}

// Healthy pings the database.
func (s *Store) Healthy(ctx context.Context) error {
	return s.pool.Ping(ctx)
}
