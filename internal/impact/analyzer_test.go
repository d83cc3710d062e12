package impact

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loqalabs/loqa-coordinator/internal/errors"
	"github.com/loqalabs/loqa-coordinator/internal/graph"
)

func newTestAnalyzer(t *testing.T) *Analyzer {
	t.Helper()
	return NewAnalyzer(graph.Default())
}

func TestClassification(t *testing.T) {
	analyzer := newTestAnalyzer(t)

	tests := []struct {
		name    string
		repo    string
		files   []string
		message string
		want    Type
	}{
		{
			name:    "breaking keyword in message",
			repo:    "loqa-hub",
			files:   []string{"internal/store/store.go"},
			message: "BREAKING: rename event stream topics",
			want:    TypeBreaking,
		},
		{
			name:    "major version marker",
			repo:    "loqa-hub",
			files:   []string{"internal/store/store.go"},
			message: "release v2.0.0",
			want:    TypeBreaking,
		},
		{
			name:    "minor version is not a major marker",
			repo:    "loqa-hub",
			files:   []string{"internal/store/store.go"},
			message: "release v2.1.0 with cleanups",
			want:    TypeInternal,
		},
		{
			name:  "proto file in protocol repo",
			repo:  "loqa-proto",
			files: []string{"audio/audio.proto"},
			want:  TypeBreaking,
		},
		{
			name:    "api surface change with additive message",
			repo:    "loqa-hub",
			files:   []string{"internal/api/timeline.go"},
			message: "add timeline pagination endpoint",
			want:    TypeFeature,
		},
		{
			name:    "api surface change without additive message",
			repo:    "loqa-hub",
			files:   []string{"internal/api/timeline.go"},
			message: "rework timeline pagination",
			want:    TypeBreaking,
		},
		{
			name:    "feature keyword",
			repo:    "loqa-skills",
			files:   []string{"homeassistant/skill.go"},
			message: "implement device discovery",
			want:    TypeFeature,
		},
		{
			name:    "fix keyword",
			repo:    "loqa-hub",
			files:   []string{"internal/store/store.go"},
			message: "fix nil deref on empty transcript",
			want:    TypeBugfix,
		},
		{
			name:    "default internal",
			repo:    "loqa-hub",
			files:   []string{"README.md"},
			message: "clarify setup docs",
			want:    TypeInternal,
		},
		{
			name: "empty message defaults to internal",
			repo: "loqa-commander",
			want: TypeInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := analyzer.Analyze(tt.repo, tt.files, tt.message)
			require.NoError(t, err)
			assert.Equal(t, tt.want, result.Type)
		})
	}
}

func TestProtocolBreakingReachesAllConsumers(t *testing.T) {
	analyzer := newTestAnalyzer(t)

	result, err := analyzer.Analyze("loqa-proto", []string{"audio/audio.proto"}, "")
	require.NoError(t, err)

	assert.Equal(t, TypeBreaking, result.Type)
	// Every transitive protocol consumer is affected.
	assert.Contains(t, result.AffectedRepos, "loqa-hub")
	assert.Contains(t, result.AffectedRepos, "loqa-skills")
	assert.Contains(t, result.AffectedRepos, "loqa")

	// Go consumers of the protocol always regenerate bindings.
	regen := map[string]bool{}
	for _, action := range result.Actions {
		if action.Kind == ActionRegenerateBindings {
			assert.True(t, action.Automatable)
			regen[action.Repository] = true
		}
	}
	assert.True(t, regen["loqa-hub"])
	assert.True(t, regen["loqa-skills"])
}

func TestCoreServiceIncludesFrontend(t *testing.T) {
	analyzer := newTestAnalyzer(t)

	result, err := analyzer.Analyze("loqa-hub", []string{"internal/api/timeline.go"}, "add new timeline endpoint")
	require.NoError(t, err)

	assert.Equal(t, TypeFeature, result.Type)
	// loqa-commander consumes the hub API without a declared edge.
	assert.Contains(t, result.AffectedRepos, "loqa-commander")

	var sawAPICalls bool
	for _, action := range result.Actions {
		if action.Repository == "loqa-commander" && action.Kind == ActionUpdateAPICalls {
			sawAPICalls = true
		}
	}
	assert.True(t, sawAPICalls, "frontend should receive an update-api-calls action")
}

func TestBugfixAffectsFirstDependentOnly(t *testing.T) {
	analyzer := newTestAnalyzer(t)

	result, err := analyzer.Analyze("loqa-proto", []string{"README.md"}, "fix typo in field comment")
	require.NoError(t, err)

	assert.Equal(t, TypeBugfix, result.Type)
	assert.Len(t, result.AffectedRepos, 1)
	assert.Equal(t, "loqa-hub", result.AffectedRepos[0])
}

func TestInternalAffectsNothing(t *testing.T) {
	analyzer := newTestAnalyzer(t)

	result, err := analyzer.Analyze("loqa-hub", []string{"Makefile"}, "tidy build flags")
	require.NoError(t, err)

	assert.Equal(t, TypeInternal, result.Type)
	assert.Empty(t, result.AffectedRepos)
	assert.Empty(t, result.Actions)
	assert.Equal(t, ComplexitySimple, result.Complexity)
	assert.Equal(t, "0", result.EstimatedEffort)
}

func TestEveryAffectedRepoGetsUpdateTests(t *testing.T) {
	analyzer := newTestAnalyzer(t)

	result, err := analyzer.Analyze("loqa-proto", []string{"audio/audio.proto"}, "")
	require.NoError(t, err)

	tested := map[string]bool{}
	for _, action := range result.Actions {
		if action.Kind == ActionUpdateTests {
			tested[action.Repository] = true
		}
	}
	for _, repo := range result.AffectedRepos {
		assert.True(t, tested[repo], "affected repo %s should receive update-tests", repo)
	}
}

func TestComplexityTiers(t *testing.T) {
	analyzer := newTestAnalyzer(t)

	// Breaking protocol change fans out to three consumers with manual
	// follow-ups: complex.
	breaking, err := analyzer.Analyze("loqa-proto", []string{"audio/audio.proto"}, "")
	require.NoError(t, err)
	assert.Equal(t, ComplexityComplex, breaking.Complexity)
	assert.Equal(t, "1-3 days", breaking.EstimatedEffort)

	// A bugfix touching a single dependent stays moderate.
	bugfix, err := analyzer.Analyze("loqa-hub", []string{"internal/store/store.go"}, "fix event replay")
	require.NoError(t, err)
	assert.Equal(t, ComplexityModerate, bugfix.Complexity)
}

func TestAnalyzeUnknownRepo(t *testing.T) {
	analyzer := newTestAnalyzer(t)

	_, err := analyzer.Analyze("ghost", nil, "")
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeImpactUnknownRepo, errors.CodeOf(err))
}
