package observer

import "go.opentelemetry.io/otel/attribute"

// Attribute keys for LLM, operator, and iteration observability spans and
// metrics.
var (
	AttrLLMModel    = attribute.Key("llm.model")
	AttrLLMProvider = attribute.Key("llm.provider")
	AttrLLMMethod   = attribute.Key("llm.method")

	AttrTokensInput  = attribute.Key("llm.tokens.input")
	AttrTokensOutput = attribute.Key("llm.tokens.output")
	AttrCostUSD      = attribute.Key("llm.cost_usd")

	AttrOperatorName   = attribute.Key("operator.name")
	AttrOperatorFamily = attribute.Key("operator.family")
	AttrOperatorStatus = attribute.Key("operator.status")

	AttrIterationNumber = attribute.Key("iteration.number")
	AttrIterationStatus = attribute.Key("iteration.status")

	AttrInstanceName = attribute.Key("instance.name")

	AttrPoolPath      = attribute.Key("pool.path")
	AttrPoolFallback  = attribute.Key("pool.fallback")
)
