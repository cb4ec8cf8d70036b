package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessage_GetSet_NestedPath(t *testing.T) {
	m := NewMessage()
	m.Set("GrpHdr.MsgId", "MSG-001")
	m.Set("GrpHdr.CreDtTm", "2026-07-31T10:00:00Z")

	v, ok := m.Get("GrpHdr.MsgId")
	require.True(t, ok)
	assert.Equal(t, "MSG-001", v)

	_, ok = m.Get("GrpHdr.Missing")
	assert.False(t, ok)
}

func TestMessage_Set_ListFanOut(t *testing.T) {
	m := NewMessage()
	m.Set("CdtTrfTxInf", []interface{}{
		Message{"PmtId": Message{"EndToEndId": "E2E-1"}},
		Message{"PmtId": Message{"EndToEndId": "E2E-2"}},
	})

	m.Set("CdtTrfTxInf[].Status", "ACSC")

	list, ok := m.Get("CdtTrfTxInf")
	require.True(t, ok)
	txs := list.([]interface{})
	require.Len(t, txs, 2)
	for _, tx := range txs {
		status, ok := tx.(Message).Get("Status")
		require.True(t, ok)
		assert.Equal(t, "ACSC", status)
	}
}

func TestMessage_Set_FanOutOnMissingListIsNoop(t *testing.T) {
	m := NewMessage()
	m.Set("CdtTrfTxInf[].Status", "ACSC")
	_, ok := m.Get("CdtTrfTxInf")
	assert.False(t, ok)
}

func TestMessage_Metadata_StrippedByWithoutMetadata(t *testing.T) {
	m := NewMessage()
	m.Set("GrpHdr.MsgId", "MSG-001")
	m.Metadata().Set("tenantId", "tenant-a")

	wire := m.WithoutMetadata()
	_, hasMetadata := wire[metadataKey]
	assert.False(t, hasMetadata)

	_, ok := m.Get("_metadata.tenantId")
	assert.True(t, ok, "original message still carries metadata")
}

func TestMessage_Clone_DeepCopyDoesNotAlias(t *testing.T) {
	m := NewMessage()
	m.Set("A.B", "original")

	clone := m.Clone()
	clone.Set("A.B", "mutated")

	v, _ := m.Get("A.B")
	assert.Equal(t, "original", v)

	cv, _ := clone.Get("A.B")
	assert.Equal(t, "mutated", cv)
}

func TestMessage_Has(t *testing.T) {
	m := NewMessage()
	m.Set("A.B", nil)
	assert.True(t, m.Has("A.B"))
	assert.False(t, m.Has("A.C"))
}
