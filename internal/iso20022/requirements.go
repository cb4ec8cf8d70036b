// Package iso20022 implements the ISO 20022 Canonicalizer: it parses wire
// payloads into the shared core.Message tree, validates the group header
// and payment information blocks required per message kind, and emits
// outbound messages stamped with the fields every generated message must
// carry. It also holds the built-in kind-to-kind transformations used
// when no MappingDocument is effective for a coordinate.
package iso20022

import "github.com/ocx/paygate/internal/core"

// requirement enumerates the dotted paths a message of a given kind must
// carry for Validate to consider it structurally sound. Paths are
// evaluated with core.Message.Get, so "[]" list markers are supported.
type requirement struct {
	path     string
	optional bool // present in warnings, not errors, when absent
}

// requirements lists the required group-header and payment-information
// paths per supported kind. This is a presence/shape check, not XSD
// conformance — deliberately out of scope.
var requirements = map[core.MessageKind][]requirement{
	core.KindPain001: {
		{path: "GrpHdr.MsgId"},
		{path: "GrpHdr.CreDtTm"},
		{path: "GrpHdr.NbOfTxs"},
		{path: "PmtInf.PmtInfId"},
		{path: "PmtInf.CdtTrfTxInf.PmtId.EndToEndId"},
		{path: "PmtInf.CdtTrfTxInf.Amt.InstdAmt"},
		{path: "PmtInf.CdtTrfTxInf.Cdtr.Nm"},
		{path: "PmtInf.Dbtr.Nm", optional: true},
	},
	core.KindPain002: {
		{path: "GrpHdr.MsgId"},
		{path: "GrpHdr.CreDtTm"},
		{path: "OrgnlGrpInfAndSts.OrgnlMsgId"},
		{path: "OrgnlGrpInfAndSts.GrpSts"},
	},
	core.KindPacs002: {
		{path: "GrpHdr.MsgId"},
		{path: "GrpHdr.CreDtTm"},
		{path: "TxInfAndSts.OrgnlEndToEndId"},
		{path: "TxInfAndSts.TxSts"},
	},
	core.KindPacs004: {
		{path: "GrpHdr.MsgId"},
		{path: "GrpHdr.CreDtTm"},
		{path: "TxInf.OrgnlEndToEndId"},
		{path: "TxInf.RtrdInstdAmt"},
		{path: "TxInf.RtrRsnInf.Rsn", optional: true},
	},
	core.KindPacs007: {
		{path: "GrpHdr.MsgId"},
		{path: "GrpHdr.CreDtTm"},
		{path: "TxInf.OrgnlEndToEndId"},
		{path: "TxInf.CxlRsnInf.Rsn", optional: true},
	},
	core.KindPacs008: {
		{path: "GrpHdr.MsgId"},
		{path: "GrpHdr.CreDtTm"},
		{path: "GrpHdr.NbOfTxs"},
		{path: "CdtTrfTxInf.PmtId.EndToEndId"},
		{path: "CdtTrfTxInf.IntrBkSttlmAmt"},
		{path: "CdtTrfTxInf.Dbtr.Nm"},
		{path: "CdtTrfTxInf.Cdtr.Nm"},
		{path: "CdtTrfTxInf.DbtrAgt", optional: true},
		{path: "CdtTrfTxInf.CdtrAgt", optional: true},
	},
	core.KindPacs028: {
		{path: "GrpHdr.MsgId"},
		{path: "GrpHdr.CreDtTm"},
		{path: "TxInfAndSts.OrgnlEndToEndId"},
	},
	core.KindCamt029: {
		{path: "Assgnmt.MsgId"},
		{path: "Assgnmt.CreDtTm"},
		{path: "CxlDtls.OrgnlEndToEndId", optional: true},
	},
	core.KindCamt053: {
		{path: "GrpHdr.MsgId"},
		{path: "GrpHdr.CreDtTm"},
		{path: "Stmt.Id"},
	},
	core.KindCamt054: {
		{path: "GrpHdr.MsgId"},
		{path: "GrpHdr.CreDtTm"},
		{path: "Ntfctn.Id"},
	},
	core.KindCamt055: {
		{path: "Assgnmt.MsgId"},
		{path: "Assgnmt.CreDtTm"},
		{path: "Undrlyg.OrgnlEndToEndId"},
	},
	core.KindCamt056: {
		{path: "Assgnmt.MsgId"},
		{path: "Assgnmt.CreDtTm"},
		{path: "Undrlyg.OrgnlEndToEndId"},
	},
}
