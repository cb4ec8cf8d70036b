package iso20022

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ocx/paygate/internal/core"
)

func newFlow(msgID string) *core.FlowContext {
	return core.NewFlowContext(context.Background(), "corr-"+msgID, msgID, "tenant-a",
		core.PolicyCoordinate{TenantID: "tenant-a"}, core.RouteCustomerCredit, core.ResponseModeSync, 30*time.Second)
}

func TestParse_DecodesNestedJSONIntoMessageTree(t *testing.T) {
	raw := []byte(`{"GrpHdr":{"MsgId":"MSG-001","NbOfTxs":1},"PmtInf":{"CdtTrfTxInf":[{"PmtId":{"EndToEndId":"E2E-1"}}]}}`)
	msg, err := Parse(core.KindPain001, raw)
	require.NoError(t, err)

	v, ok := msg.Get("GrpHdr.MsgId")
	require.True(t, ok)
	assert.Equal(t, "MSG-001", v)

	list, ok := msg.Get("PmtInf.CdtTrfTxInf")
	require.True(t, ok)
	assert.Len(t, list, 1)
}

func TestParse_InvalidJSONReturnsValidationError(t *testing.T) {
	_, err := Parse(core.KindPain001, []byte(`not json`))
	require.Error(t, err)
	assert.Equal(t, core.KindValidation, core.KindOf(err))
}

func TestValidate_Pain001_MissingRequiredFieldFails(t *testing.T) {
	msg := core.NewMessage()
	msg.Set("GrpHdr.MsgId", "MSG-001")
	msg.Set("GrpHdr.CreDtTm", "2026-07-31T10:00:00Z")
	msg.Set("GrpHdr.NbOfTxs", 1)

	result := Validate(core.KindPain001, msg)
	assert.False(t, result.Valid)
	assert.NotEmpty(t, result.Errors)
}

func TestValidate_Pain001_MissingOptionalFieldIsWarningOnly(t *testing.T) {
	msg := core.NewMessage()
	msg.Set("GrpHdr.MsgId", "MSG-001")
	msg.Set("GrpHdr.CreDtTm", "2026-07-31T10:00:00Z")
	msg.Set("GrpHdr.NbOfTxs", 1)
	msg.Set("PmtInf.PmtInfId", "PMT-1")
	msg.Set("PmtInf.CdtTrfTxInf.PmtId.EndToEndId", "E2E-1")
	msg.Set("PmtInf.CdtTrfTxInf.Amt.InstdAmt", "100.00")
	msg.Set("PmtInf.CdtTrfTxInf.Cdtr.Nm", "Acme Corp")

	result := Validate(core.KindPain001, msg)
	assert.True(t, result.Valid)
	assert.Empty(t, result.Errors)
	assert.NotEmpty(t, result.Warnings, "missing optional Dbtr.Nm should warn, not fail")
}

func TestValidate_UnknownKindFails(t *testing.T) {
	result := Validate(core.MessageKind("bogus.999"), core.NewMessage())
	assert.False(t, result.Valid)
	assert.NotEmpty(t, result.Errors)
}

func TestEmit_StampsHeaderAndMetadata(t *testing.T) {
	flow := newFlow("MSG-ORIG")
	msg := core.NewMessage()
	msg = Emit(msg, core.KindPacs008, flow, AgentBlock{InstgAgt: "BANKAUS33", InstdAgt: "BANKGB22"}, 1)

	msgID, ok := msg.Get("GrpHdr.MsgId")
	require.True(t, ok)
	assert.NotEmpty(t, msgID)

	instgAgt, _ := msg.Get("GrpHdr.InstgAgt")
	assert.Equal(t, "BANKAUS33", instgAgt)

	corrID, ok := msg.Get("_metadata.correlationId")
	require.True(t, ok)
	assert.Equal(t, flow.CorrelationID, corrID)

	origID, _ := msg.Get("_metadata.originalMessageId")
	assert.Equal(t, "MSG-ORIG", origID)
}

func TestEmit_UsesAssignmentHeaderForCamtKinds(t *testing.T) {
	flow := newFlow("MSG-ORIG")
	msg := Emit(core.NewMessage(), core.KindCamt029, flow, AgentBlock{}, 0)

	_, ok := msg.Get("Assgnmt.MsgId")
	assert.True(t, ok)
	_, ok = msg.Get("GrpHdr.MsgId")
	assert.False(t, ok)
}

func TestMessageID_ExtractsFromGroupHeader(t *testing.T) {
	msg := core.NewMessage()
	msg.Set("GrpHdr.MsgId", "MSG-001")
	id, ok := MessageID(core.KindPain001, msg)
	require.True(t, ok)
	assert.Equal(t, "MSG-001", id)

	_, ok = MessageID(core.KindPain001, core.NewMessage())
	assert.False(t, ok)
}

func TestBuiltin_Pain001ToPacs008(t *testing.T) {
	fn, ok := Builtin(core.KindPain001)
	require.True(t, ok)

	source := core.NewMessage()
	source.Set("PmtInf.CdtTrfTxInf.PmtId.EndToEndId", "E2E-1")
	source.Set("PmtInf.CdtTrfTxInf.Amt.InstdAmt", "250.00")
	source.Set("PmtInf.Dbtr.Nm", "Alice")
	source.Set("PmtInf.CdtTrfTxInf.Cdtr.Nm", "Bob")

	flow := newFlow("MSG-001")
	out := fn(source, flow)

	v, _ := out.Get("CdtTrfTxInf.IntrBkSttlmAmt")
	assert.Equal(t, "250.00", v)
	v, _ = out.Get("CdtTrfTxInf.Dbtr.Nm")
	assert.Equal(t, "Alice", v)
	result := Validate(core.KindPacs008, out)
	assert.True(t, result.Valid, "builtin transform output must validate: %v", result.Errors)
}

func TestBuiltin_Pacs004ToPain002SetsRejectedStatus(t *testing.T) {
	fn, ok := Builtin(core.KindPacs004)
	require.True(t, ok)

	source := core.NewMessage()
	source.Set("TxInf.OrgnlEndToEndId", "E2E-1")
	source.Set("TxInf.RtrRsnInf.Rsn", "AC04")

	flow := newFlow("MSG-001")
	out := fn(source, flow)

	grpSts, _ := out.Get("OrgnlGrpInfAndSts.GrpSts")
	assert.Equal(t, string(core.StatusRJCT), grpSts)
	rsn, _ := out.Get("TxInfAndSts.StsRsnInf.Rsn")
	assert.Equal(t, "AC04", rsn)
}

func TestBuiltin_UnknownKindNotFound(t *testing.T) {
	_, ok := Builtin(core.KindPacs008)
	assert.False(t, ok, "pacs.008 has no registered ingress-side transformation")
}

func TestBuiltin_Camt029ToPain002CarriesOriginalEndToEndId(t *testing.T) {
	fn, ok := Builtin(core.KindCamt029)
	require.True(t, ok)

	source := core.NewMessage()
	source.Set("CxlDtls.OrgnlEndToEndId", "E2E-9")

	flow := newFlow("MSG-009")
	out := fn(source, flow)

	orgnlEndToEndID, _ := out.Get("TxInfAndSts.OrgnlEndToEndId")
	assert.Equal(t, "E2E-9", orgnlEndToEndID)
}

func TestBuiltin_Pacs028ToPain002CarriesOriginalEndToEndId(t *testing.T) {
	fn, ok := Builtin(core.KindPacs028)
	require.True(t, ok)

	source := core.NewMessage()
	source.Set("TxInfAndSts.OrgnlEndToEndId", "E2E-10")

	flow := newFlow("MSG-010")
	out := fn(source, flow)

	orgnlEndToEndID, _ := out.Get("TxInfAndSts.OrgnlEndToEndId")
	assert.Equal(t, "E2E-10", orgnlEndToEndID)
}
