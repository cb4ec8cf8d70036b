package mapping

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ocx/paygate/internal/core"
)

// Engine applies a Document to a source Message. It is stateless beyond
// the expression evaluator and the sequence store, and safe for
// concurrent use across flows.
type Engine struct {
	eval *Evaluator
	seq  SequenceStore
}

// NewEngine wires an evaluator and a sequence store (in-memory by
// default; callers may pass a RedisSequenceStore for cross-replica
// monotonicity).
func NewEngine(seq SequenceStore) *Engine {
	if seq == nil {
		seq = NewInMemorySequenceStore()
	}
	return &Engine{eval: NewEvaluator(), seq: seq}
}

// Apply runs every clause kind in the fixed order the mapping engine
// requires, against a clone of source, and returns the resulting target
// message. Individual clause failures are logged and skipped; they never
// abort the document (that is MAPPING_FAILED territory, reserved for a
// bug in the engine itself).
func (e *Engine) Apply(ctx context.Context, doc *Document, tenantID string, source core.Message) (core.Message, error) {
	target := core.NewMessage()
	src := source.Clone()

	for _, c := range doc.Clauses {
		if fm, ok := c.(FieldMapping); ok {
			e.applyFieldMapping(src, target, fm)
		}
	}
	for _, c := range doc.Clauses {
		if va, ok := c.(ValueAssignment); ok {
			e.applyValueAssignment(src, target, va, doc.Name)
		}
	}
	for _, c := range doc.Clauses {
		if dv, ok := c.(DerivedValue); ok {
			e.applyDerivedValue(src, target, dv, doc.Name)
		}
	}
	for _, c := range doc.Clauses {
		if ag, ok := c.(AutoGeneration); ok {
			e.applyAutoGeneration(ctx, target, ag, tenantID, doc.Name)
		}
	}
	for _, c := range doc.Clauses {
		if cond, ok := c.(Conditional); ok {
			e.applyConditional(src, target, cond, doc.Name)
		}
	}
	for _, c := range doc.Clauses {
		if tr, ok := c.(Transformation); ok {
			e.applyTransformation(target, tr, doc.Name)
		}
	}
	for _, c := range doc.Clauses {
		if dfl, ok := c.(DefaultValue); ok {
			e.applyDefaultValue(src, target, dfl, doc.Name)
		}
	}

	return target, nil
}

func (e *Engine) applyFieldMapping(src, target core.Message, c FieldMapping) {
	v, ok := src.Get(c.SourcePath)
	if !ok {
		return
	}
	target.Set(c.TargetPath, v)
}

func (e *Engine) applyValueAssignment(src, target core.Message, c ValueAssignment, docName string) {
	v, err := e.eval.EvalTemplate(c.Template, src)
	if err != nil {
		slog.Warn("mapping: value assignment clause skipped", "document", docName, "target", c.TargetPath, "error", err)
		return
	}
	target.Set(c.TargetPath, v)
}

func (e *Engine) applyDerivedValue(src, target core.Message, c DerivedValue, docName string) {
	v, err := e.eval.EvalValue(c.Expression, src)
	if err != nil {
		slog.Warn("mapping: derived value clause skipped", "document", docName, "target", c.TargetPath, "error", err)
		return
	}
	target.Set(c.TargetPath, v)
}

func (e *Engine) applyAutoGeneration(ctx context.Context, target core.Message, c AutoGeneration, tenantID, docName string) {
	switch c.Generator {
	case GeneratorUUID:
		target.Set(c.TargetPath, uuid.New().String())
	case GeneratorTimestamp:
		target.Set(c.TargetPath, time.Now().UTC().Format("2006-01-02T15:04:05.000Z07:00"))
	case GeneratorSequential:
		n, err := e.seq.Next(ctx, tenantID, docName)
		if err != nil {
			slog.Warn("mapping: sequential generator skipped", "document", docName, "target", c.TargetPath, "error", err)
			return
		}
		width := c.Length
		if width <= 0 {
			width = 1
		}
		padded := fmt.Sprintf("%0*d", width, n)
		if len(padded) > width {
			// The numeric space for this width is exhausted; wrap.
			padded = padded[len(padded)-width:]
		}
		target.Set(c.TargetPath, c.Prefix+padded+c.Suffix)
	}
}

func (e *Engine) applyConditional(src, target core.Message, c Conditional, docName string) {
	pred, err := e.eval.EvalValue(c.Predicate, src)
	if err != nil {
		slog.Warn("mapping: conditional predicate skipped", "document", docName, "target", c.TargetPath, "error", err)
		return
	}
	truthy, ok := pred.(bool)
	if !ok || !truthy {
		return
	}
	v, err := e.eval.EvalValue(c.ValueExpression, src)
	if err != nil {
		slog.Warn("mapping: conditional value skipped", "document", docName, "target", c.TargetPath, "error", err)
		return
	}
	target.Set(c.TargetPath, v)
}

func (e *Engine) applyTransformation(target core.Message, c Transformation, docName string) {
	raw, ok := target.Get(c.TargetPath)
	if !ok {
		return
	}
	s, ok := raw.(string)
	if !ok {
		s = fmt.Sprint(raw)
	}

	switch c.Func {
	case TransformUppercase:
		target.Set(c.TargetPath, strings.ToUpper(s))
	case TransformLowercase:
		target.Set(c.TargetPath, strings.ToLower(s))
	case TransformTrim:
		target.Set(c.TargetPath, strings.TrimSpace(s))
	case TransformPad:
		if len(c.Args) < 2 {
			return
		}
		width, err := strconv.Atoi(c.Args[0])
		if err != nil {
			return
		}
		padChar := c.Args[1]
		for len(s) < width {
			s = padChar + s
		}
		target.Set(c.TargetPath, s)
	case TransformSubstring:
		if len(c.Args) < 2 {
			return
		}
		start, err1 := strconv.Atoi(c.Args[0])
		end, err2 := strconv.Atoi(c.Args[1])
		if err1 != nil || err2 != nil || start < 0 || end > len(s) || start > end {
			return
		}
		target.Set(c.TargetPath, s[start:end])
	case TransformRegexReplace:
		if len(c.Args) < 2 {
			return
		}
		re, err := regexp.Compile(c.Args[0])
		if err != nil {
			slog.Warn("mapping: regex-replace clause skipped, bad pattern", "document", docName, "target", c.TargetPath, "error", err)
			return
		}
		target.Set(c.TargetPath, re.ReplaceAllString(s, c.Args[1]))
	}
}

func (e *Engine) applyDefaultValue(src, target core.Message, c DefaultValue, docName string) {
	if target.Has(c.TargetPath) {
		return
	}
	v, err := e.eval.EvalTemplate(c.Template, src)
	if err != nil {
		slog.Warn("mapping: default value clause skipped", "document", docName, "target", c.TargetPath, "error", err)
		return
	}
	target.Set(c.TargetPath, v)
}
