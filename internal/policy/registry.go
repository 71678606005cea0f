package policy

import (
	"sync"
	"time"

	"github.com/kestrelops/kestrel/internal/apperrors"
)

// Registry is the authoritative, in-memory set of policies. Readers never
// block writers' progress waiting on them and vice versa beyond the
// duration of the RWMutex critical section itself; list/get observe a
// point-in-time snapshot copied out under lock. order tracks insertion
// order explicitly since map iteration order is not stable, and evaluation
// requires evaluation to walk policies in a fixed, reproducible sequence.
type Registry struct {
	mu       sync.RWMutex
	policies map[string]Policy
	order    []string
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{policies: make(map[string]Policy)}
}

// Insert adds a new policy. Fails with Conflict if the name is taken, or
// Validation if the policy is structurally invalid.
func (r *Registry) Insert(p Policy) error {
	if err := p.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.policies[p.Name]; exists {
		return apperrors.Conflictf("policy %q already exists", p.Name)
	}
	p.CreatedAt = time.Now()
	r.policies[p.Name] = p
	r.order = append(r.order, p.Name)
	return nil
}

// Update merges patch into the named policy and validates the result
// before publishing it. Update never changes insertion order.
func (r *Registry) Update(name string, patch Patch) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.policies[name]
	if !ok {
		return apperrors.NotFoundf("policy %q not found", name)
	}
	existing.applyPatch(patch)
	if err := existing.Validate(); err != nil {
		return err
	}
	r.policies[name] = existing
	return nil
}

// Delete removes a policy. Fails with NotFound if absent; delete is not
// idempotent.
func (r *Registry) Delete(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.policies[name]; !ok {
		return apperrors.NotFoundf("policy %q not found", name)
	}
	delete(r.policies, name)
	r.removeFromOrder(name)
	return nil
}

func (r *Registry) removeFromOrder(name string) {
	for i, n := range r.order {
		if n == name {
			r.order = append(r.order[:i], r.order[i+1:]...)
			return
		}
	}
}

// Get returns an immutable snapshot of the named policy.
func (r *Registry) Get(name string) (Policy, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.policies[name]
	if !ok {
		return Policy{}, apperrors.NotFoundf("policy %q not found", name)
	}
	return p, nil
}

// List returns a snapshot of every policy in insertion order.
func (r *Registry) List() []Policy {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Policy, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.policies[name])
	}
	return out
}

// Enable atomically sets a policy's enabled flag to true.
func (r *Registry) Enable(name string) error { return r.setEnabled(name, true) }

// Disable atomically sets a policy's enabled flag to false.
func (r *Registry) Disable(name string) error { return r.setEnabled(name, false) }

func (r *Registry) setEnabled(name string, enabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.policies[name]
	if !ok {
		return apperrors.NotFoundf("policy %q not found", name)
	}
	p.Enabled = enabled
	r.policies[name] = p
	return nil
}

// BySeverity returns a snapshot, in insertion order, of every policy at the
// given severity.
func (r *Registry) BySeverity(s Severity) []Policy {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Policy, 0)
	for _, name := range r.order {
		if p := r.policies[name]; p.Severity == s {
			out = append(out, p)
		}
	}
	return out
}

// Reload replaces the registry contents transactionally: every candidate is
// validated first (including intra-set name collisions); if any entry
// fails, the registry is left unchanged and the offending names are
// reported. The candidate slice's order becomes the new insertion order.
func (r *Registry) Reload(candidates []Policy) error {
	seen := make(map[string]bool, len(candidates))
	var bad []string
	for _, p := range candidates {
		if err := p.Validate(); err != nil {
			bad = append(bad, p.Name)
			continue
		}
		if seen[p.Name] {
			bad = append(bad, p.Name)
			continue
		}
		seen[p.Name] = true
	}
	if len(bad) > 0 {
		return apperrors.Invalid("reload rejected, invalid or duplicate entries", bad...)
	}

	now := time.Now()
	next := make(map[string]Policy, len(candidates))
	order := make([]string, 0, len(candidates))
	for _, p := range candidates {
		p.CreatedAt = now
		next[p.Name] = p
		order = append(order, p.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.policies = next
	r.order = order
	return nil
}

// snapshotEnabled returns enabled policies in insertion order, for
// Engine.Evaluate.
func (r *Registry) snapshotEnabled() []Policy {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Policy, 0, len(r.order))
	for _, name := range r.order {
		if p := r.policies[name]; p.Enabled {
			out = append(out, p)
		}
	}
	return out
}
