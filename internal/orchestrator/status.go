package orchestrator

import (
	"github.com/ocx/paygate/internal/core"
	"github.com/ocx/paygate/internal/iso20022"
)

// statusFromAck extracts the GroupStatus/ReasonCode a clearing-system
// acknowledgment reports for the whole message, checking the group-level
// field first (OrgnlGrpInfAndSts.GrpSts) and falling back to the first
// transaction-level field (TxInfAndSts.TxSts). A successful dispatch whose
// envelope carried no explicit status is treated as accepted.
func statusFromAck(ack core.Message) (core.GroupStatus, core.ReasonCode) {
	if ack == nil {
		return core.StatusACSC, core.ReasonNone
	}

	if v, ok := ack.Get("OrgnlGrpInfAndSts.GrpSts"); ok {
		if s, ok := v.(string); ok && s != "" {
			return core.GroupStatus(s), reasonFromAck(ack)
		}
	}
	if v, ok := ack.Get("TxInfAndSts.TxSts"); ok {
		if s, ok := v.(string); ok && s != "" {
			return core.GroupStatus(s), reasonFromAck(ack)
		}
	}
	return core.StatusACSC, core.ReasonNone
}

func reasonFromAck(ack core.Message) core.ReasonCode {
	if v, ok := ack.Get("OrgnlGrpInfAndSts.StsRsnInf.Rsn"); ok {
		if s, ok := v.(string); ok && s != "" {
			return core.ReasonCode(s)
		}
	}
	if v, ok := ack.Get("TxInfAndSts.StsRsnInf.Rsn"); ok {
		if s, ok := v.(string); ok && s != "" {
			return core.ReasonCode(s)
		}
	}
	return core.ReasonNone
}

// negativeAck synthesizes a client-facing acknowledgment for a flow that
// never reached a clearing system — validation failure, duplicate
// suppression, fraud reject/review, or an internal error. It stamps the
// minimum OrgnlGrpInfAndSts block every pain.002/pacs.002-shaped ack
// carries, then runs it through the normal Emit stamping so it carries a
// MsgId/CreDtTm/_metadata like any other emitted message. flow may be nil
// only when no route could be resolved at all, in which case there is
// nothing to stamp and nil is returned.
func (o *Orchestrator) negativeAck(flow *core.FlowContext, route core.FlowRoute, status core.GroupStatus, reason core.ReasonCode) core.Message {
	if flow == nil || route.ClientAckKind == "" {
		return nil
	}
	out := core.NewMessage()
	out.Set("OrgnlGrpInfAndSts.OrgnlMsgId", flow.MessageID)
	out.Set("OrgnlGrpInfAndSts.GrpSts", string(status))
	out.Set("OrgnlGrpInfAndSts.StsRsnInf.Rsn", string(reason))
	return o.canonicalizer.Emit(out, route.ClientAckKind, flow, iso20022.AgentBlock{}, 1)
}
