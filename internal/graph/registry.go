package graph

import (
	"fmt"

	"github.com/loqalabs/loqa-coordinator/internal/errors"
)

// Registry holds the repository dependency graph. The graph is validated
// at construction: edges must reference known repositories and must form a
// DAG. A cycle is a fatal configuration error, never a traversal error.
type Registry struct {
	nodes      map[string]*RepositoryNode
	order      []string            // insertion order, for deterministic iteration
	dependents map[string][]string // derived from DependsOn edges
}

// NewRegistry builds a registry from the given nodes and validates the graph.
func NewRegistry(nodes []RepositoryNode) (*Registry, error) {
	r := &Registry{
		nodes:      make(map[string]*RepositoryNode, len(nodes)),
		dependents: make(map[string][]string),
	}

	for i := range nodes {
		n := nodes[i]
		if n.ID == "" {
			return nil, errors.New(errors.ErrCodeConfigInvalid, "repository node with empty identifier")
		}
		if _, exists := r.nodes[n.ID]; exists {
			return nil, errors.New(errors.ErrCodeGraphDuplicate, fmt.Sprintf("duplicate repository: %s", n.ID))
		}
		r.nodes[n.ID] = &n
		r.order = append(r.order, n.ID)
	}

	// Validate edges and derive dependents.
	for _, id := range r.order {
		for _, dep := range r.nodes[id].DependsOn {
			if _, ok := r.nodes[dep]; !ok {
				return nil, errors.New(errors.ErrCodeGraphMissingDep,
					fmt.Sprintf("repository %s depends on unknown repository %s", id, dep))
			}
			r.dependents[dep] = append(r.dependents[dep], id)
		}
	}

	// A full ordering pass proves the graph is acyclic.
	if _, err := r.DependencyOrder(); err != nil {
		return nil, err
	}

	return r, nil
}

// Default returns a registry over the static table of known repositories.
func Default() *Registry {
	r, err := NewRegistry(DefaultNodes())
	if err != nil {
		// The built-in table is validated by tests; reaching this is a bug.
		panic(fmt.Sprintf("graph: invalid built-in repository table: %v", err))
	}
	return r
}

// Get returns the node for the given repository identifier.
func (r *Registry) Get(id string) (*RepositoryNode, error) {
	n, ok := r.nodes[id]
	if !ok {
		return nil, errors.NewUnknownRepoError(id)
	}
	return n, nil
}

// Has reports whether the repository is known.
func (r *Registry) Has(id string) bool {
	_, ok := r.nodes[id]
	return ok
}

// IDs returns all known repository identifiers in insertion order.
func (r *Registry) IDs() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// ByCategory returns the identifiers of repositories in the given category,
// in insertion order.
func (r *Registry) ByCategory(c Category) []string {
	var out []string
	for _, id := range r.order {
		if r.nodes[id].Category == c {
			out = append(out, id)
		}
	}
	return out
}

// Dependents returns the repositories that directly depend on id,
// in insertion order of the dependents.
func (r *Registry) Dependents(id string) []string {
	deps := r.dependents[id]
	out := make([]string, len(deps))
	copy(out, deps)
	return out
}

// TransitiveDependents returns every repository that directly or indirectly
// depends on id, in breadth-first order.
func (r *Registry) TransitiveDependents(id string) []string {
	seen := map[string]bool{id: true}
	var out []string

	queue := append([]string(nil), r.dependents[id]...)
	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]
		if seen[next] {
			continue
		}
		seen[next] = true
		out = append(out, next)
		queue = append(queue, r.dependents[next]...)
	}

	return out
}

// DependencyOrder returns a topological ordering of the requested subset of
// repositories (all repositories when subset is empty): every dependency
// precedes its dependents. Dependencies outside the subset are skipped.
// Returns a cycle error naming the offending repository if a node is
// revisited while still being visited.
func (r *Registry) DependencyOrder(subset ...string) ([]string, error) {
	requested := subset
	if len(requested) == 0 {
		requested = r.order
	}

	inSubset := make(map[string]bool, len(requested))
	for _, id := range requested {
		if _, ok := r.nodes[id]; !ok {
			return nil, errors.NewUnknownRepoError(id)
		}
		inSubset[id] = true
	}

	var (
		ordered  []string
		visited  = make(map[string]bool)
		visiting = make(map[string]bool)
	)

	var visit func(id string) error
	visit = func(id string) error {
		if visited[id] {
			return nil
		}
		if visiting[id] {
			return errors.NewCycleError(id)
		}
		visiting[id] = true

		for _, dep := range r.nodes[id].DependsOn {
			if !inSubset[dep] {
				continue
			}
			if err := visit(dep); err != nil {
				return err
			}
		}

		visiting[id] = false
		visited[id] = true
		ordered = append(ordered, id)
		return nil
	}

	for _, id := range requested {
		if err := visit(id); err != nil {
			return nil, err
		}
	}

	return ordered, nil
}
