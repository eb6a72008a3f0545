package service

import (
	"encoding/hex"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/blake2b"
	"gopkg.in/yaml.v3"

	"github.com/kalkwerk/konsil/internal/domain"
	"github.com/kalkwerk/konsil/internal/domain/consult"
	"github.com/kalkwerk/konsil/internal/domain/role"
)

// Registry manages the consultant role catalog (built-in + custom).
type Registry struct {
	mu       sync.RWMutex
	roles    map[string]role.Role
	revision string
}

// NewRegistry creates a Registry pre-loaded with the built-in roles.
func NewRegistry() *Registry {
	r := &Registry{roles: make(map[string]role.Role)}
	for _, b := range role.Builtins() {
		r.roles[b.ID] = b
	}
	r.revision = r.computeRevision()
	return r
}

// List returns all roles sorted by ID.
func (r *Registry) List() []role.Role {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]role.Role, 0, len(r.roles))
	for _, rl := range r.roles {
		result = append(result, rl)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

// Get returns a role by ID.
func (r *Registry) Get(id string) (*role.Role, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rl, ok := r.roles[id]
	if !ok {
		return nil, fmt.Errorf("%w: role %q", domain.ErrNotFound, id)
	}
	return &rl, nil
}

// Register adds a custom role. Built-in roles cannot be overwritten.
func (r *Registry) Register(rl *role.Role) error {
	if err := rl.Validate(); err != nil {
		return fmt.Errorf("%w: role %q: %v", domain.ErrValidation, rl.ID, err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.roles[rl.ID]; ok && existing.Builtin {
		return fmt.Errorf("%w: cannot overwrite built-in role %q", domain.ErrValidation, rl.ID)
	}
	r.roles[rl.ID] = *rl
	r.revision = r.computeRevision()
	return nil
}

// AuthorityFor returns the single role holding decision authority for the
// given kind among the given role IDs, or nil when none or several do.
func (r *Registry) AuthorityFor(kind consult.DecisionKind, among []string) *role.Role {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var found *role.Role
	for _, id := range among {
		rl, ok := r.roles[id]
		if !ok || !rl.IsAuthorityFor(kind) {
			continue
		}
		if found != nil {
			return nil
		}
		cp := rl
		found = &cp
	}
	return found
}

// Revision returns a content hash of the catalog. It goes into cache keys so
// a tuned catalog never serves results computed under the old one.
func (r *Registry) Revision() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.revision
}

// computeRevision hashes the behavioral fields of every role in ID order.
// Caller must hold at least the read lock.
func (r *Registry) computeRevision() string {
	ids := make([]string, 0, len(r.roles))
	for id := range r.roles {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	h, _ := blake2b.New256(nil)
	for _, id := range ids {
		rl := r.roles[id]
		auth := make([]string, 0, len(rl.AuthorityFor))
		for _, k := range rl.AuthorityFor {
			auth = append(auth, string(k))
		}
		fmt.Fprintf(h, "%s|%.2f|%s|%s|%s\n",
			rl.ID, rl.Temperature, rl.Timeout, strings.Join(auth, ","), rl.SystemPrompt)
	}
	return hex.EncodeToString(h.Sum(nil))[:16]
}

// catalogFile is the on-disk shape of a role catalog overlay.
type catalogFile struct {
	Roles []catalogRole `yaml:"roles"`
}

type catalogRole struct {
	ID             string   `yaml:"id"`
	Name           string   `yaml:"name"`
	Description    string   `yaml:"description"`
	Domains        []string `yaml:"domains"`
	AuthorityFor   []string `yaml:"authority_for"`
	Temperature    *float64 `yaml:"temperature"`
	TimeoutSeconds int      `yaml:"timeout_seconds"`
	SystemPrompt   string   `yaml:"system_prompt"`
}

// LoadCatalog overlays roles from a YAML file. New IDs are registered as
// custom roles; known non-builtin IDs are replaced. Builtins are immutable.
func (r *Registry) LoadCatalog(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read role catalog: %w", err)
	}

	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return 0, fmt.Errorf("parse role catalog: %w", err)
	}

	loaded := 0
	for _, cr := range file.Roles {
		rl := role.Role{
			ID:           cr.ID,
			Name:         cr.Name,
			Description:  cr.Description,
			SystemPrompt: cr.SystemPrompt,
			Timeout:      time.Duration(cr.TimeoutSeconds) * time.Second,
		}
		if cr.Temperature != nil {
			rl.Temperature = *cr.Temperature
		}
		for _, d := range cr.Domains {
			rl.Domains = append(rl.Domains, consult.Domain(d))
		}
		for _, k := range cr.AuthorityFor {
			rl.AuthorityFor = append(rl.AuthorityFor, consult.DecisionKind(k))
		}
		if err := r.Register(&rl); err != nil {
			return loaded, fmt.Errorf("role catalog entry %q: %w", cr.ID, err)
		}
		loaded++
	}
	return loaded, nil
}
