package graph

// Category classifies a repository's role in the ecosystem
type Category string

const (
	CategoryCoreService   Category = "core-service"
	CategoryFrontend      Category = "frontend"
	CategoryProtocol      Category = "protocol"
	CategoryPlugins       Category = "plugins"
	CategoryOrchestration Category = "orchestration"
	CategoryConfig        Category = "config"
	CategoryWebsite       Category = "website"
)

// RepositoryNode describes one repository in the dependency graph.
// DependsOn lists declared upstream dependencies in order; dependents are
// derived by the Registry and kept consistent with these edges.
type RepositoryNode struct {
	ID         string   `yaml:"id"`
	Category   Category `yaml:"category"`
	DependsOn  []string `yaml:"depends_on"`
	Language   string   `yaml:"language"`
	BuildCmd   string   `yaml:"build_cmd"`
	TestCmd    string   `yaml:"test_cmd"`
	QualityCmd string   `yaml:"quality_cmd"`
}

// DefaultNodes returns the static table of known repositories.
// loqa-commander consumes the hub's HTTP API rather than linking against
// it, so that relationship is not expressed as a dependency edge.
func DefaultNodes() []RepositoryNode {
	return []RepositoryNode{
		{
			ID:         "loqa-proto",
			Category:   CategoryProtocol,
			Language:   "protobuf",
			BuildCmd:   "./generate.sh",
			TestCmd:    "buf lint",
			QualityCmd: "buf breaking --against '.git#branch=main'",
		},
		{
			ID:         "loqa-hub",
			Category:   CategoryCoreService,
			DependsOn:  []string{"loqa-proto"},
			Language:   "go",
			BuildCmd:   "go build ./...",
			TestCmd:    "go test ./...",
			QualityCmd: "make quality-check",
		},
		{
			ID:         "loqa-skills",
			Category:   CategoryPlugins,
			DependsOn:  []string{"loqa-proto", "loqa-hub"},
			Language:   "go",
			BuildCmd:   "make build",
			TestCmd:    "go test ./...",
			QualityCmd: "make quality-check",
		},
		{
			ID:         "loqa-commander",
			Category:   CategoryFrontend,
			Language:   "typescript",
			BuildCmd:   "npm run build",
			TestCmd:    "npm run test:unit",
			QualityCmd: "npm run lint",
		},
		{
			ID:         "loqa",
			Category:   CategoryOrchestration,
			DependsOn:  []string{"loqa-hub", "loqa-skills"},
			Language:   "shell",
			BuildCmd:   "docker-compose build",
			TestCmd:    "./tools/run-smoke-tests.sh",
			QualityCmd: "shellcheck tools/*.sh",
		},
		{
			ID:         "loqalabs-github-config",
			Category:   CategoryConfig,
			Language:   "yaml",
			BuildCmd:   "",
			TestCmd:    "",
			QualityCmd: "yamllint .",
		},
		{
			ID:         "www-loqalabs-com",
			Category:   CategoryWebsite,
			Language:   "typescript",
			BuildCmd:   "npm run build",
			TestCmd:    "npm run test",
			QualityCmd: "npm run lint",
		},
	}
}
