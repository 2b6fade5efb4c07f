package testutil

// SampleRegistryYAML is a small two-provider model registry, grounded on
// the teacher's testutil/fixtures pattern of canned, reusable test data
// rather than ad-hoc literals scattered across _test.go files.
const SampleRegistryYAML = `
models:
  - id: gpt-4o-primary
    api_name: gpt-4o
    provider: openai
    context_window: 128000
    capabilities: [reasoning, coding, function_calling, vision]
    scores: {reasoning: 90, coding: 88, speed: 70, quality: 92}
    cost_tier: premium
    aliases: [gpt-4o]
  - id: claude-sonnet-primary
    api_name: claude-sonnet-4
    provider: anthropic
    context_window: 200000
    capabilities: [reasoning, coding, function_calling]
    scores: {reasoning: 93, coding: 91, speed: 65, quality: 94}
    cost_tier: premium
    aliases: [claude-sonnet]
  - id: llama-local
    api_name: llama3
    provider: local
    context_window: 8192
    capabilities: [coding]
    scores: {reasoning: 60, coding: 65, speed: 95, quality: 55}
    cost_tier: free
    aliases: [llama3-local]
`

// SamplePricingYAML prices the two paid models from SampleRegistryYAML.
// llama-local is free-tier and deliberately has no entry.
const SamplePricingYAML = `
providers:
  openai:
    gpt-4o:
      input_per_1k: "0.00500000"
      output_per_1k: "0.01500000"
  anthropic:
    claude-sonnet-4:
      input_per_1k: "0.00300000"
      output_per_1k: "0.01500000"
`

// SampleAnalyzerPatternsYAML classifies prompts into two task types plus
// the general fallback.
const SampleAnalyzerPatternsYAML = `
order: [code_generation, debugging]
patterns:
  code_generation:
    - pattern: "(?i)\\bwrite\\s+(a\\s+)?function\\b"
      weight: 0.9
    - pattern: "(?i)\\bimplement\\b"
      weight: 0.6
  debugging:
    - pattern: "(?i)\\b(fix|debug)\\b"
      weight: 0.9
`

// SampleSelectorGuideYAML recommends the primary reasoning model for
// architectural_design tasks and blocks the local model from it.
const SampleSelectorGuideYAML = `
guide:
  architectural_design:
    recommended: [claude-sonnet-primary]
    blocked: [llama-local]
    fallback_chain: [gpt-4o-primary]
`
