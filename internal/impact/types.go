package impact

// Type classifies how disruptive a change is to downstream repositories
type Type string

const (
	TypeBreaking Type = "breaking"
	TypeFeature  Type = "feature"
	TypeBugfix   Type = "bugfix"
	TypeInternal Type = "internal"
)

// Complexity tiers the coordination effort a change demands
type Complexity string

const (
	ComplexitySimple   Complexity = "simple"
	ComplexityModerate Complexity = "moderate"
	ComplexityComplex  Complexity = "complex"
)

// ActionKind identifies a follow-up action required in an affected repository
type ActionKind string

const (
	ActionUpdateTypes        ActionKind = "update-types"
	ActionUpdateAPICalls     ActionKind = "update-api-calls"
	ActionRegenerateBindings ActionKind = "regenerate-bindings"
	ActionUpdateTests        ActionKind = "update-tests"
	ActionUpdateDocs         ActionKind = "update-docs"
)

// Priority orders follow-up actions
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// RepositoryAction is one required follow-up in an affected repository
type RepositoryAction struct {
	Repository  string     `json:"repository"`
	Kind        ActionKind `json:"kind"`
	Priority    Priority   `json:"priority"`
	Automatable bool       `json:"automatable"`
	Effort      string     `json:"effort"`
}

// ChangeImpact is the result of analyzing one change. It is created fresh
// per analysis call, immutable once returned, and never persisted.
type ChangeImpact struct {
	Repository      string             `json:"repository"`
	Type            Type               `json:"type"`
	AffectedRepos   []string           `json:"affected_repositories"`
	Actions         []RepositoryAction `json:"actions"`
	Complexity      Complexity         `json:"complexity"`
	EstimatedEffort string             `json:"estimated_effort"`
}
