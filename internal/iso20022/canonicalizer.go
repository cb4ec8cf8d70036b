package iso20022

import "github.com/ocx/paygate/internal/core"

// Canonicalizer is the stateless entry point component E drives: parse raw
// bytes, validate structural requirements, and either run a built-in
// transformation or hand a validated message to the mapping engine.
type Canonicalizer struct{}

// NewCanonicalizer returns a ready-to-use Canonicalizer; it holds no state.
func NewCanonicalizer() *Canonicalizer {
	return &Canonicalizer{}
}

func (c *Canonicalizer) Parse(kind core.MessageKind, raw []byte) (core.Message, error) {
	return Parse(kind, raw)
}

func (c *Canonicalizer) Validate(kind core.MessageKind, msg core.Message) ValidationResult {
	return Validate(kind, msg)
}

func (c *Canonicalizer) Emit(msg core.Message, kind core.MessageKind, flow *core.FlowContext, agents AgentBlock, nbOfTxs int) core.Message {
	return Emit(msg, kind, flow, agents, nbOfTxs)
}

func (c *Canonicalizer) Transform(ingressKind core.MessageKind, source core.Message, flow *core.FlowContext) (core.Message, bool) {
	fn, ok := Builtin(ingressKind)
	if !ok {
		return nil, false
	}
	return fn(source, flow), true
}
