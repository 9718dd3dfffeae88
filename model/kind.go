package model

// ProviderKind is the closed set of supported provider families. The
// engine and UI consult Capabilities rather than re-deriving support
// per call site.
type ProviderKind string

const (
	KindOllama     ProviderKind = "ollama"
	KindOpenAI     ProviderKind = "openai"
	KindOpenRouter ProviderKind = "openrouter"
	KindAnthropic  ProviderKind = "anthropic"
)

// Capability describes what a provider family can do.
type Capability struct {
	SupportsReasoning bool // thinking/redacted-thinking blocks
	SupportsWebSearch bool // inline search activity events
	SupportsVision    bool // image content parts
}

var capabilities = map[ProviderKind]Capability{
	KindOllama:     {SupportsReasoning: true, SupportsWebSearch: false, SupportsVision: true},
	KindOpenAI:     {SupportsReasoning: false, SupportsWebSearch: true, SupportsVision: true},
	KindOpenRouter: {SupportsReasoning: true, SupportsWebSearch: true, SupportsVision: true},
	KindAnthropic:  {SupportsReasoning: true, SupportsWebSearch: true, SupportsVision: true},
}

// Capabilities returns the capability table entry for a kind. Unknown
// kinds report no capabilities.
func Capabilities(kind ProviderKind) Capability {
	return capabilities[kind]
}
