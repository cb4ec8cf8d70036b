package iso20022

import (
	"github.com/ocx/paygate/internal/core"
)

// TransformFunc is a pure function of a source message plus the effective
// FlowContext; it must never perform I/O. Built-in transformations are
// used only when no MappingDocument is effective for a coordinate.
type TransformFunc func(source core.Message, flow *core.FlowContext) core.Message

// builtins maps each ingress kind to its single built-in transformation;
// the target kind is fixed by the function (pain.001 to pacs.008, etc.).
var builtins = map[core.MessageKind]TransformFunc{
	core.KindPain001: transformPain001ToPacs008,
	core.KindPacs002: transformPacs002ToPain002,
	core.KindPacs004: transformPacs004ToPain002,
	core.KindCamt054: transformCamt054ToCamt053,
	core.KindCamt055: transformCamt055ToPacs007,
	core.KindCamt056: transformCamt056ToPacs028,
	core.KindCamt029: transformCamt029ToPain002,
	core.KindPacs028: transformPacs028ToPain002,
}

// Builtin returns the built-in transformation registered for an ingress
// kind, if any.
func Builtin(ingressKind core.MessageKind) (TransformFunc, bool) {
	fn, ok := builtins[ingressKind]
	return fn, ok
}

func transformPain001ToPacs008(source core.Message, flow *core.FlowContext) core.Message {
	out := core.NewMessage()

	endToEndID, _ := source.Get("PmtInf.CdtTrfTxInf.PmtId.EndToEndId")
	amount, _ := source.Get("PmtInf.CdtTrfTxInf.Amt.InstdAmt")
	dbtrName, _ := source.Get("PmtInf.Dbtr.Nm")
	cdtrName, _ := source.Get("PmtInf.CdtTrfTxInf.Cdtr.Nm")

	out.Set("CdtTrfTxInf.PmtId.EndToEndId", endToEndID)
	out.Set("CdtTrfTxInf.IntrBkSttlmAmt", amount)
	out.Set("CdtTrfTxInf.Dbtr.Nm", dbtrName)
	out.Set("CdtTrfTxInf.Cdtr.Nm", cdtrName)

	return Emit(out, core.KindPacs008, flow, AgentBlock{}, 1)
}

func transformPacs002ToPain002(source core.Message, flow *core.FlowContext) core.Message {
	out := core.NewMessage()

	orgnlEndToEndID, _ := source.Get("TxInfAndSts.OrgnlEndToEndId")
	txSts, _ := source.Get("TxInfAndSts.TxSts")

	out.Set("OrgnlGrpInfAndSts.OrgnlMsgId", flow.MessageID)
	out.Set("OrgnlGrpInfAndSts.GrpSts", txSts)
	out.Set("TxInfAndSts.OrgnlEndToEndId", orgnlEndToEndID)
	out.Set("TxInfAndSts.TxSts", txSts)

	return Emit(out, core.KindPain002, flow, AgentBlock{}, 1)
}

func transformPacs004ToPain002(source core.Message, flow *core.FlowContext) core.Message {
	out := core.NewMessage()

	orgnlEndToEndID, _ := source.Get("TxInf.OrgnlEndToEndId")
	reason, _ := source.Get("TxInf.RtrRsnInf.Rsn")

	out.Set("OrgnlGrpInfAndSts.OrgnlMsgId", flow.MessageID)
	out.Set("OrgnlGrpInfAndSts.GrpSts", string(core.StatusRJCT))
	out.Set("TxInfAndSts.OrgnlEndToEndId", orgnlEndToEndID)
	out.Set("TxInfAndSts.StsRsnInf.Rsn", reason)

	return Emit(out, core.KindPain002, flow, AgentBlock{}, 1)
}

func transformCamt054ToCamt053(source core.Message, flow *core.FlowContext) core.Message {
	out := core.NewMessage()

	id, _ := source.Get("Ntfctn.Id")
	entries, _ := source.Get("Ntfctn.Ntry")

	out.Set("Stmt.Id", id)
	if entries != nil {
		out.Set("Stmt.Ntry", entries)
	}

	return Emit(out, core.KindCamt053, flow, AgentBlock{}, 0)
}

func transformCamt055ToPacs007(source core.Message, flow *core.FlowContext) core.Message {
	out := core.NewMessage()

	orgnlEndToEndID, _ := source.Get("Undrlyg.OrgnlEndToEndId")

	out.Set("TxInf.OrgnlEndToEndId", orgnlEndToEndID)
	out.Set("TxInf.CxlRsnInf.Rsn", "CUST")

	return Emit(out, core.KindPacs007, flow, AgentBlock{}, 1)
}

func transformCamt056ToPacs028(source core.Message, flow *core.FlowContext) core.Message {
	out := core.NewMessage()

	orgnlEndToEndID, _ := source.Get("Undrlyg.OrgnlEndToEndId")

	out.Set("TxInfAndSts.OrgnlEndToEndId", orgnlEndToEndID)

	return Emit(out, core.KindPacs028, flow, AgentBlock{}, 1)
}

// transformCamt029ToPain002 handles an inbound resolution-of-investigation
// pushed by a clearing system: internal processing only, surfaced to the
// client as a pain.002 status update.
func transformCamt029ToPain002(source core.Message, flow *core.FlowContext) core.Message {
	out := core.NewMessage()

	orgnlEndToEndID, _ := source.Get("CxlDtls.OrgnlEndToEndId")

	out.Set("OrgnlGrpInfAndSts.OrgnlMsgId", flow.MessageID)
	out.Set("TxInfAndSts.OrgnlEndToEndId", orgnlEndToEndID)

	return Emit(out, core.KindPain002, flow, AgentBlock{}, 1)
}

// transformPacs028ToPain002 handles an inbound, unsolicited pacs.028
// status request pushed by a clearing system: internal processing only,
// surfaced to the client as a pain.002 status update.
func transformPacs028ToPain002(source core.Message, flow *core.FlowContext) core.Message {
	out := core.NewMessage()

	orgnlEndToEndID, _ := source.Get("TxInfAndSts.OrgnlEndToEndId")

	out.Set("OrgnlGrpInfAndSts.OrgnlMsgId", flow.MessageID)
	out.Set("TxInfAndSts.OrgnlEndToEndId", orgnlEndToEndID)

	return Emit(out, core.KindPain002, flow, AgentBlock{}, 1)
}
