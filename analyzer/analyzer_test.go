package analyzer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/klappe-pm/lattice-orchestrator/types"
)

const samplePatterns = `
order: [debugging, code_generation, reasoning]
patterns:
  debugging:
    - pattern: "\\b(fix|debug|stack trace|traceback|exception)\\b"
      weight: 0.9
  code_generation:
    - pattern: "\\b(write|implement|generate)\\b.*\\b(function|code|class)\\b"
      weight: 0.8
  reasoning:
    - pattern: "\\b(explain|why|how does)\\b"
      weight: 0.7
`

func TestAnalyzeClassifiesHighestWeightMatch(t *testing.T) {
	a, err := Load([]byte(samplePatterns))
	require.NoError(t, err)

	req := a.Analyze("Please fix this stack trace in my code")
	assert.Equal(t, types.TaskDebugging, req.TaskType)
	assert.Equal(t, 0.9, req.Confidence)
}

func TestAnalyzeFallsBackToGeneral(t *testing.T) {
	a, err := Load([]byte(samplePatterns))
	require.NoError(t, err)

	req := a.Analyze("What's for lunch today")
	assert.Equal(t, types.TaskGeneral, req.TaskType)
	assert.Equal(t, 0.1, req.Confidence)
}

func TestAnalyzeDerivesFunctionCallingAndVision(t *testing.T) {
	a, err := New()
	require.NoError(t, err)

	req := a.Analyze("Please call the weather tool to check the forecast")
	assert.True(t, req.NeedsFunctionCalling)

	req2 := a.Analyze("Can you describe what's in this screenshot")
	assert.True(t, req2.NeedsVision)
}

func TestAnalyzeContextWindowHeuristicRoundsToBucket(t *testing.T) {
	a, err := New()
	require.NoError(t, err)

	longPrompt := strings.Repeat("word ", 5000)
	req := a.Analyze(longPrompt)
	assert.Equal(t, 0, req.MinContextWindow%8192)
	assert.Greater(t, req.MinContextWindow, 0)
}

func TestAnalyzeCachesByPromptHash(t *testing.T) {
	a, err := Load([]byte(samplePatterns))
	require.NoError(t, err)

	prompt := "fix this exception please"
	first := a.Analyze(prompt)
	second := a.Analyze(prompt)
	assert.Equal(t, first, second)
}

func TestLoadFileFallsBackToIdentityWhenAbsent(t *testing.T) {
	a, err := LoadFile("/nonexistent/path/patterns.yaml")
	require.NoError(t, err)

	req := a.Analyze("anything at all")
	assert.Equal(t, types.TaskGeneral, req.TaskType)
	assert.Equal(t, 0.1, req.Confidence)
}

func TestReloadClearsCache(t *testing.T) {
	a, err := Load([]byte(samplePatterns))
	require.NoError(t, err)

	a.Analyze("fix this bug")

	// Reload against a nonexistent path falls back to the identity pattern
	// rather than erroring, per LoadFile's contract.
	err = a.Reload("/nonexistent/patterns.yaml")
	assert.NoError(t, err) // LoadFile falls back to identity rather than erroring
	req := a.Analyze("fix this bug")
	assert.Equal(t, types.TaskGeneral, req.TaskType)
}

func TestReloadIsSafeUnderConcurrentAnalyze(t *testing.T) {
	a, err := Load([]byte(samplePatterns))
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 50; i++ {
			a.Analyze("fix this bug")
		}
	}()

	for i := 0; i < 50; i++ {
		require.NoError(t, a.Reload("/nonexistent/patterns.yaml"))
	}
	<-done
}
