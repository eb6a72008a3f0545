// Package knowledge defines the port for the engineering knowledge base,
// an external collaborator that supplies normative facts to role prompts.
package knowledge

import (
	"context"

	"github.com/kalkwerk/konsil/internal/domain/consult"
)

// Fact is one normative statement the knowledge base holds, attributed to
// its source standard (e.g. "EN 1992-1-1").
type Fact struct {
	ID        int64          `json:"id"`
	Domain    consult.Domain `json:"domain"`
	Topic     string         `json:"topic"`
	Statement string         `json:"statement"`
	Source    string         `json:"source"`
}

// Base is the lookup interface the engine consults once per consultation.
// Lookups are advisory: a failing knowledge base degrades a consultation
// with a warning, it never fails one.
type Base interface {
	// Lookup returns up to limit facts relevant to the given domains.
	Lookup(ctx context.Context, domains []consult.Domain, limit int) ([]Fact, error)

	// Healthy reports whether the backing store is reachable.
	Healthy(ctx context.Context) error
}
