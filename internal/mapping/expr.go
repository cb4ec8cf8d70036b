package mapping

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/PaesslerAG/gval"
	"github.com/google/uuid"

	"github.com/ocx/paygate/internal/core"
)

var (
	errEmptyPath    = errors.New("mapping: clause has an empty path")
	errBadGenerator = errors.New("mapping: unknown generator type")
)

// Evaluator runs the small expression language used by DerivedValue,
// ValueAssignment templates, and Conditional predicates/values:
// "${source.path}" substitution, arithmetic/comparison operators, and a
// handful of built-in functions, implemented on top of gval's expression
// evaluator.
type Evaluator struct {
	lang gval.Language
}

// NewEvaluator builds the expression language once; it is immutable and
// safe for concurrent use across documents.
func NewEvaluator() *Evaluator {
	lang := gval.NewLanguage(
		gval.Full(),
		gval.Function("uuid", func(args ...interface{}) (interface{}, error) {
			return uuid.New().String(), nil
		}),
		gval.Function("timestamp", func(args ...interface{}) (interface{}, error) {
			return time.Now().UTC().Format(time.RFC3339), nil
		}),
		gval.Function("upper", func(args ...interface{}) (interface{}, error) {
			if len(args) != 1 {
				return nil, errors.New("upper() takes exactly one argument")
			}
			return strings.ToUpper(fmt.Sprint(args[0])), nil
		}),
		gval.Function("lower", func(args ...interface{}) (interface{}, error) {
			if len(args) != 1 {
				return nil, errors.New("lower() takes exactly one argument")
			}
			return strings.ToLower(fmt.Sprint(args[0])), nil
		}),
		gval.Function("substring", func(args ...interface{}) (interface{}, error) {
			if len(args) != 3 {
				return nil, errors.New("substring() takes (value, start, end)")
			}
			s := fmt.Sprint(args[0])
			start, end, err := asIntPair(args[1], args[2])
			if err != nil {
				return nil, err
			}
			if start < 0 {
				start = 0
			}
			if end > len(s) {
				end = len(s)
			}
			if start > end {
				return "", nil
			}
			return s[start:end], nil
		}),
	)
	return &Evaluator{lang: lang}
}

func asIntPair(a, b interface{}) (int, int, error) {
	ai, err := toInt(a)
	if err != nil {
		return 0, 0, err
	}
	bi, err := toInt(b)
	if err != nil {
		return 0, 0, err
	}
	return ai, bi, nil
}

func toInt(v interface{}) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case float64:
		return int(n), nil
	case string:
		i, err := strconv.Atoi(n)
		return i, err
	default:
		return 0, fmt.Errorf("cannot coerce %T to int", v)
	}
}

// substitutePlaceholders rewrites every "${source.<path>}" occurrence in
// raw into the bare accessor "source.<path>" that gval resolves against
// the evaluation parameters. Unresolved placeholders still parse — they
// resolve to nil (JSON null) at evaluation time rather than erroring,
// per the "evaluation must be total" rule.
func substitutePlaceholders(raw string) string {
	var b strings.Builder
	i := 0
	for i < len(raw) {
		if raw[i] == '$' && i+1 < len(raw) && raw[i+1] == '{' {
			end := strings.IndexByte(raw[i+2:], '}')
			if end < 0 {
				b.WriteByte(raw[i])
				i++
				continue
			}
			inner := raw[i+2 : i+2+end]
			b.WriteString(inner)
			i = i + 2 + end + 1
			continue
		}
		b.WriteByte(raw[i])
		i++
	}
	return b.String()
}

func (e *Evaluator) parse(raw string) (gval.Evaluable, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, errors.New("mapping: empty expression")
	}
	return e.lang.NewEvaluable(substitutePlaceholders(raw))
}

// EvalValue evaluates raw (a template or a full expression) against
// source, returning the resolved value as-is — a string, number, bool, or
// nil. Used by DerivedValue and Conditional, which may legitimately
// produce a non-string result. Evaluation errors are the caller's signal
// to skip the clause — they are never fatal to the document.
func (e *Evaluator) EvalValue(raw string, source core.Message) (interface{}, error) {
	eval, err := e.parse(raw)
	if err != nil {
		return nil, err
	}
	params := map[string]interface{}{"source": toPlainMap(source)}
	return eval(nil, params)
}

// EvalTemplate evaluates raw and stringifies the result, for
// ValueAssignment and DefaultValue clauses whose target is always a
// string-shaped literal-or-template.
func (e *Evaluator) EvalTemplate(raw string, source core.Message) (string, error) {
	v, err := e.EvalValue(raw, source)
	if err != nil {
		return "", err
	}
	if v == nil {
		return "", nil
	}
	if s, ok := v.(string); ok {
		return s, nil
	}
	return fmt.Sprint(v), nil
}

// toPlainMap converts a core.Message (whose subtrees are themselves
// core.Message) into nested map[string]interface{}/[]interface{}, the
// shape gval's selector evaluator expects.
func toPlainMap(m core.Message) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = plainValue(v)
	}
	return out
}

func plainValue(v interface{}) interface{} {
	switch val := v.(type) {
	case core.Message:
		return toPlainMap(val)
	case map[string]interface{}:
		return toPlainMap(core.Message(val))
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, e := range val {
			out[i] = plainValue(e)
		}
		return out
	default:
		return v
	}
}
