package impact

import (
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/loqalabs/loqa-coordinator/internal/errors"
	"github.com/loqalabs/loqa-coordinator/internal/graph"
)

// Analyzer derives change impact from the repository dependency graph.
type Analyzer struct {
	registry *graph.Registry
}

// NewAnalyzer creates an analyzer over the given registry.
func NewAnalyzer(registry *graph.Registry) *Analyzer {
	return &Analyzer{registry: registry}
}

// Analyze classifies a change and derives the affected repositories and
// required follow-up actions. commitMessage may be empty.
func (a *Analyzer) Analyze(repoID string, changedFiles []string, commitMessage string) (*ChangeImpact, error) {
	node, err := a.registry.Get(repoID)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeImpactUnknownRepo, "cannot analyze change", err)
	}

	impactType := a.classify(node, changedFiles, commitMessage)
	affected := a.affectedRepos(node, impactType)
	actions := a.deriveActions(node, affected, impactType)
	complexity := classifyComplexity(affected, actions)

	return &ChangeImpact{
		Repository:      repoID,
		Type:            impactType,
		AffectedRepos:   affected,
		Actions:         actions,
		Complexity:      complexity,
		EstimatedEffort: estimateEffort(complexity, actions),
	}, nil
}

// classify applies the classification policy in priority order.
func (a *Analyzer) classify(node *graph.RepositoryNode, changedFiles []string, message string) Type {
	lower := strings.ToLower(message)

	// 1. Explicit breaking markers in the commit message.
	if strings.Contains(lower, "breaking") || hasMajorVersionMarker(message) {
		return TypeBreaking
	}

	// 2. Protocol definition changes break every consumer.
	if node.Category == graph.CategoryProtocol && touchesProtocolDefinition(changedFiles) {
		return TypeBreaking
	}

	// 3. API surface changes in the core service: additive messages are
	// features, everything else is treated as breaking.
	if node.Category == graph.CategoryCoreService && touchesAPISurface(changedFiles) {
		if indicatesAddition(lower) {
			return TypeFeature
		}
		return TypeBreaking
	}

	// 4. Additive change.
	if indicatesAddition(lower) {
		return TypeFeature
	}

	// 5. Fix.
	if indicatesFix(lower) {
		return TypeBugfix
	}

	// 6. Default: internal change with no downstream effect.
	return TypeInternal
}

// affectedRepos derives the affected set per the impact type.
func (a *Analyzer) affectedRepos(node *graph.RepositoryNode, impactType Type) []string {
	switch impactType {
	case TypeBreaking, TypeFeature:
		var affected []string
		if node.Category == graph.CategoryProtocol {
			// Protocol changes reach every transitive consumer.
			affected = a.registry.TransitiveDependents(node.ID)
		} else {
			affected = a.registry.Dependents(node.ID)
		}

		// The frontend consumes the core service's HTTP API; that
		// relationship is not a declared dependency edge.
		if node.Category == graph.CategoryCoreService {
			for _, frontend := range a.registry.ByCategory(graph.CategoryFrontend) {
				if !contains(affected, frontend) {
					affected = append(affected, frontend)
				}
			}
		}
		return affected

	case TypeBugfix:
		deps := a.registry.Dependents(node.ID)
		if len(deps) > 0 {
			return deps[:1]
		}
		return nil

	default:
		return nil
	}
}

// deriveActions generates follow-up actions deterministically from the
// (changed repository, affected repository, impact type) tuples.
func (a *Analyzer) deriveActions(origin *graph.RepositoryNode, affected []string, impactType Type) []RepositoryAction {
	var actions []RepositoryAction

	for _, id := range affected {
		target, err := a.registry.Get(id)
		if err != nil {
			continue // affected sets come from the registry itself
		}

		switch {
		case origin.Category == graph.CategoryProtocol && target.Language == "go":
			actions = append(actions, RepositoryAction{
				Repository:  id,
				Kind:        ActionRegenerateBindings,
				Priority:    PriorityHigh,
				Automatable: true,
				Effort:      "15-30 minutes",
			})
		case origin.Category == graph.CategoryCoreService && target.Category == graph.CategoryFrontend:
			priority := PriorityMedium
			if impactType == TypeBreaking {
				priority = PriorityHigh
			}
			actions = append(actions, RepositoryAction{
				Repository: id,
				Kind:       ActionUpdateAPICalls,
				Priority:   priority,
				Effort:     "1-2 hours",
			})
		case impactType == TypeBreaking:
			actions = append(actions, RepositoryAction{
				Repository: id,
				Kind:       ActionUpdateTypes,
				Priority:   PriorityHigh,
				Effort:     "1-2 hours",
			})
		}

		// Every affected repository re-validates its tests.
		actions = append(actions, RepositoryAction{
			Repository: id,
			Kind:       ActionUpdateTests,
			Priority:   PriorityMedium,
			Effort:     "30-60 minutes",
		})

		if impactType == TypeBreaking {
			actions = append(actions, RepositoryAction{
				Repository: id,
				Kind:       ActionUpdateDocs,
				Priority:   PriorityLow,
				Effort:     "15-30 minutes",
			})
		}
	}

	return actions
}

// classifyComplexity tiers the coordination effort: simple (nothing
// affected), moderate (small blast radius, mostly automatable), complex
// (everything else).
func classifyComplexity(affected []string, actions []RepositoryAction) Complexity {
	if len(affected) == 0 {
		return ComplexitySimple
	}

	manual := 0
	for _, action := range actions {
		if !action.Automatable {
			manual++
		}
	}

	if len(affected) <= 2 && manual <= 2 {
		return ComplexityModerate
	}
	return ComplexityComplex
}

func estimateEffort(complexity Complexity, actions []RepositoryAction) string {
	switch complexity {
	case ComplexitySimple:
		return "0"
	case ComplexityModerate:
		if len(actions) <= 3 {
			return "1-2 hours"
		}
		return "0.5-1 day"
	default:
		return "1-3 days"
	}
}

// hasMajorVersionMarker reports whether the message carries a major version
// tag such as "v2.0.0" or "3.0.0".
func hasMajorVersionMarker(message string) bool {
	for _, field := range strings.Fields(message) {
		field = strings.Trim(field, "():,;.")
		v, err := semver.StrictNewVersion(strings.TrimPrefix(field, "v"))
		if err != nil {
			continue
		}
		if v.Major() >= 1 && v.Minor() == 0 && v.Patch() == 0 {
			return true
		}
	}
	return false
}

func touchesProtocolDefinition(files []string) bool {
	for _, f := range files {
		if strings.HasSuffix(f, ".proto") || strings.HasPrefix(f, "proto/") {
			return true
		}
	}
	return false
}

func touchesAPISurface(files []string) bool {
	for _, f := range files {
		lower := strings.ToLower(f)
		if strings.Contains(lower, "/api/") || strings.HasPrefix(lower, "api/") ||
			strings.Contains(lower, "handler") || strings.Contains(lower, "endpoint") {
			return true
		}
	}
	return false
}

func indicatesAddition(lowerMessage string) bool {
	for _, marker := range []string{"add", "new", "feat", "implement", "introduce"} {
		if strings.Contains(lowerMessage, marker) {
			return true
		}
	}
	return false
}

func indicatesFix(lowerMessage string) bool {
	for _, marker := range []string{"fix", "patch", "bugfix", "resolve", "correct"} {
		if strings.Contains(lowerMessage, marker) {
			return true
		}
	}
	return false
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
