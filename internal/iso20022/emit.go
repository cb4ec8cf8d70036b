package iso20022

import (
	"time"

	"github.com/google/uuid"

	"github.com/ocx/paygate/internal/core"
)

// AgentBlock carries the instructing/instructed agent identifiers every
// emitted message stamps onto its group header.
type AgentBlock struct {
	InstgAgt string
	InstdAgt string
}

// Emit stamps the fields every generated message must carry: MsgId,
// CreDtTm, NbOfTxs, the agent block, and a _metadata subtree recording
// originalMessageId, correlationId, direction, and the generation
// timestamp. It mutates and returns msg.
func Emit(msg core.Message, kind core.MessageKind, flow *core.FlowContext, agents AgentBlock, nbOfTxs int) core.Message {
	now := time.Now().UTC()

	hdrPath := groupHeaderPath(kind)
	msg.Set(hdrPath+".MsgId", uuid.NewString())
	msg.Set(hdrPath+".CreDtTm", now.Format(time.RFC3339))
	msg.Set(hdrPath+".NbOfTxs", nbOfTxs)
	if agents.InstgAgt != "" {
		msg.Set(hdrPath+".InstgAgt", agents.InstgAgt)
	}
	if agents.InstdAgt != "" {
		msg.Set(hdrPath+".InstdAgt", agents.InstdAgt)
	}

	meta := msg.Metadata()
	meta["originalMessageId"] = flow.MessageID
	meta["correlationId"] = flow.CorrelationID
	meta["direction"] = directionFor(kind)
	meta["generatedAt"] = now.Format(time.RFC3339)

	return msg
}

// MessageID extracts the ingress message's own identifier from its group
// header, for use as the orchestrator's duplicate-suppression key before a
// FlowContext (and therefore a generated MsgId) exists.
func MessageID(kind core.MessageKind, msg core.Message) (string, bool) {
	v, ok := msg.Get(groupHeaderPath(kind) + ".MsgId")
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok && s != ""
}

// groupHeaderPath names the group-header-equivalent block per kind: most
// kinds use GrpHdr, the camt.029/055/056 assignment-carrying kinds use
// Assgnmt instead.
func groupHeaderPath(kind core.MessageKind) string {
	switch kind {
	case core.KindCamt029, core.KindCamt055, core.KindCamt056:
		return "Assgnmt"
	default:
		return "GrpHdr"
	}
}

func directionFor(kind core.MessageKind) core.Direction {
	switch kind {
	case core.KindPain002, core.KindPacs002, core.KindCamt029, core.KindCamt053:
		return core.DirectionResponse
	default:
		return core.DirectionRequest
	}
}
