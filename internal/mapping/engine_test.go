package mapping

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ocx/paygate/internal/core"
)

func newSourceMessage() core.Message {
	m := core.NewMessage()
	m.Set("GrpHdr.MsgId", "  msg-001  ")
	m.Set("CdtTrfTxInf.Amt.InstdAmt", "100.50")
	return m
}

func TestEngine_FieldMappingAndValueAssignment(t *testing.T) {
	doc := &Document{
		Name: "pain001-to-pacs008",
		Clauses: []Clause{
			FieldMapping{SourcePath: "CdtTrfTxInf.Amt.InstdAmt", TargetPath: "FIToFICstmrCdtTrf.Amt.InstdAmt"},
			ValueAssignment{TargetPath: "FIToFICstmrCdtTrf.GrpHdr.MsgId", Template: "${source.GrpHdr.MsgId}"},
		},
	}
	require.NoError(t, doc.Validate())

	e := NewEngine(nil)
	target, err := e.Apply(context.Background(), doc, "tenant-a", newSourceMessage())
	require.NoError(t, err)

	amt, ok := target.Get("FIToFICstmrCdtTrf.Amt.InstdAmt")
	require.True(t, ok)
	assert.Equal(t, "100.50", amt)

	msgID, ok := target.Get("FIToFICstmrCdtTrf.GrpHdr.MsgId")
	require.True(t, ok)
	assert.Equal(t, "  msg-001  ", msgID)
}

func TestEngine_TransformationRunsAfterValueAssignment(t *testing.T) {
	doc := &Document{
		Clauses: []Clause{
			ValueAssignment{TargetPath: "Out.MsgId", Template: "${source.GrpHdr.MsgId}"},
			Transformation{TargetPath: "Out.MsgId", Func: TransformTrim},
			Transformation{TargetPath: "Out.MsgId", Func: TransformUppercase},
		},
	}
	require.NoError(t, doc.Validate())

	e := NewEngine(nil)
	target, err := e.Apply(context.Background(), doc, "tenant-a", newSourceMessage())
	require.NoError(t, err)

	v, _ := target.Get("Out.MsgId")
	assert.Equal(t, "MSG-001", v)
}

func TestEngine_DefaultValueOnlyAppliesWhenAbsent(t *testing.T) {
	doc := &Document{
		Clauses: []Clause{
			ValueAssignment{TargetPath: "Out.Status", Template: `"ACSC"`},
			DefaultValue{TargetPath: "Out.Status", Template: `"PDNG"`},
			DefaultValue{TargetPath: "Out.Reason", Template: `"NONE"`},
		},
	}
	require.NoError(t, doc.Validate())

	e := NewEngine(nil)
	target, err := e.Apply(context.Background(), doc, "tenant-a", newSourceMessage())
	require.NoError(t, err)

	status, _ := target.Get("Out.Status")
	assert.Equal(t, "ACSC", status, "default must not override an already-set value")

	reason, _ := target.Get("Out.Reason")
	assert.Equal(t, "NONE", reason)
}

func TestEngine_AutoGeneration_Sequential_PadsAndPrefixes(t *testing.T) {
	doc := &Document{
		Name: "seq-doc",
		Clauses: []Clause{
			AutoGeneration{TargetPath: "Out.Seq", Generator: GeneratorSequential, Prefix: "SEQ-", Length: 4},
		},
	}
	require.NoError(t, doc.Validate())

	e := NewEngine(NewInMemorySequenceStore())

	target1, err := e.Apply(context.Background(), doc, "tenant-a", newSourceMessage())
	require.NoError(t, err)
	v1, _ := target1.Get("Out.Seq")
	assert.Equal(t, "SEQ-0001", v1)

	target2, err := e.Apply(context.Background(), doc, "tenant-a", newSourceMessage())
	require.NoError(t, err)
	v2, _ := target2.Get("Out.Seq")
	assert.Equal(t, "SEQ-0002", v2)
}

func TestEngine_ConditionalOnlyWritesWhenPredicateTrue(t *testing.T) {
	doc := &Document{
		Clauses: []Clause{
			Conditional{Predicate: `source.GrpHdr.MsgId != ""`, TargetPath: "Out.Flag", ValueExpression: `"present"`},
			Conditional{Predicate: `source.GrpHdr.Missing != ""`, TargetPath: "Out.ShouldNotExist", ValueExpression: `"present"`},
		},
	}
	require.NoError(t, doc.Validate())

	e := NewEngine(nil)
	target, err := e.Apply(context.Background(), doc, "tenant-a", newSourceMessage())
	require.NoError(t, err)

	v, ok := target.Get("Out.Flag")
	require.True(t, ok)
	assert.Equal(t, "present", v)

	_, ok = target.Get("Out.ShouldNotExist")
	assert.False(t, ok)
}

func TestDocument_Validate_RejectsEmptyTargetPath(t *testing.T) {
	doc := &Document{Clauses: []Clause{FieldMapping{SourcePath: "A", TargetPath: ""}}}
	assert.Error(t, doc.Validate())
}

func TestDocument_Validate_RejectsUnknownGenerator(t *testing.T) {
	doc := &Document{Clauses: []Clause{AutoGeneration{TargetPath: "A", Generator: "BOGUS"}}}
	assert.Error(t, doc.Validate())
}
