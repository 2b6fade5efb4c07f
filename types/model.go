package types

// Provider is a registered upstream LLM vendor.
type Provider string

const (
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
	ProviderGoogle    Provider = "google"
	ProviderXAI       Provider = "xai"
	ProviderAzure     Provider = "azure"
	ProviderBedrock   Provider = "bedrock"
	ProviderDial      Provider = "dial"
	ProviderLocal     Provider = "local"
)

// Valid reports whether p is one of the eight registered provider tags.
func (p Provider) Valid() bool {
	switch p {
	case ProviderOpenAI, ProviderAnthropic, ProviderGoogle, ProviderXAI,
		ProviderAzure, ProviderBedrock, ProviderDial, ProviderLocal:
		return true
	default:
		return false
	}
}

// Capability is a tag describing something a model can do.
type Capability string

const (
	CapReasoning       Capability = "reasoning"
	CapCoding          Capability = "coding"
	CapVision          Capability = "vision"
	CapFunctionCalling Capability = "function_calling"
	CapStreaming       Capability = "streaming"
	CapLongContext     Capability = "long_context"
)

// CostTier buckets a model's relative price for the scorer's cost sub-score.
type CostTier string

const (
	CostPremium  CostTier = "premium"
	CostStandard CostTier = "standard"
	CostBudget   CostTier = "budget"
	CostFree     CostTier = "free"
)

// ModelScores are 0-100 ratings used by the scorer.
type ModelScores struct {
	Reasoning int `yaml:"reasoning" json:"reasoning"`
	Coding    int `yaml:"coding" json:"coding"`
	Speed     int `yaml:"speed" json:"speed"`
	Quality   int `yaml:"quality" json:"quality"`
}

// ModelDescriptor is the immutable identity of one registered model.
type ModelDescriptor struct {
	ID             string       `yaml:"id" json:"id"`
	APIName        string       `yaml:"api_name" json:"api_name"`
	Provider       Provider     `yaml:"provider" json:"provider"`
	ContextWindow  int          `yaml:"context_window" json:"context_window"`
	Capabilities   []Capability `yaml:"capabilities" json:"capabilities"`
	Scores         ModelScores  `yaml:"scores" json:"scores"`
	CostTier       CostTier     `yaml:"cost_tier" json:"cost_tier"`
	Aliases        []string     `yaml:"aliases" json:"aliases"`
}

// HasCapability reports whether the descriptor advertises cap.
func (m ModelDescriptor) HasCapability(cap Capability) bool {
	for _, c := range m.Capabilities {
		if c == cap {
			return true
		}
	}
	return false
}

// TaskType is the closed classification set produced by the Task Analyzer.
type TaskType string

const (
	TaskCodeGeneration     TaskType = "code_generation"
	TaskDebugging          TaskType = "debugging"
	TaskReasoning          TaskType = "reasoning"
	TaskArchitecturalDesign TaskType = "architectural_design"
	TaskDocumentation      TaskType = "documentation"
	TaskTesting            TaskType = "testing"
	TaskDataAnalysis       TaskType = "data_analysis"
	TaskCreativeWriting    TaskType = "creative_writing"
	TaskTranslation        TaskType = "translation"
	TaskGeneral            TaskType = "general"
)

// Priority steers the scorer's weighting of sub-scores.
type Priority string

const (
	PriorityQuality  Priority = "quality"
	PrioritySpeed    Priority = "speed"
	PriorityCost     Priority = "cost"
	PriorityBalanced Priority = "balanced"
)

// TaskRequirements is the output of task analysis and the input to selection.
type TaskRequirements struct {
	TaskType             TaskType `json:"task_type"`
	Confidence           float64  `json:"confidence"`
	MinContextWindow     int      `json:"min_context_window,omitempty"`
	NeedsFunctionCalling bool     `json:"needs_function_calling"`
	NeedsVision          bool     `json:"needs_vision"`
	Priority             Priority `json:"priority,omitempty"`
}

// RequiredCapabilities maps the boolean requirement flags onto the
// capability tags the scorer and selector's hard filters check against.
func (r TaskRequirements) RequiredCapabilities() []Capability {
	var caps []Capability
	if r.NeedsFunctionCalling {
		caps = append(caps, CapFunctionCalling)
	}
	if r.NeedsVision {
		caps = append(caps, CapVision)
	}
	return caps
}
