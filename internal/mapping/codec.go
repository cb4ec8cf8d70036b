package mapping

import (
	"encoding/json"
	"fmt"
)

// clauseJSON is the wire representation persisted for every clause
// variant: Kind discriminates which of the remaining fields are
// meaningful, mirroring how the configuration rows store a tagged union
// in a single JSON column.
type clauseJSON struct {
	Kind            ClauseKind    `json:"kind"`
	SourcePath      string        `json:"sourcePath,omitempty"`
	TargetPath      string        `json:"targetPath,omitempty"`
	Template        string        `json:"template,omitempty"`
	Expression      string        `json:"expression,omitempty"`
	Generator       GeneratorType `json:"generator,omitempty"`
	Prefix          string        `json:"prefix,omitempty"`
	Suffix          string        `json:"suffix,omitempty"`
	Length          int           `json:"length,omitempty"`
	Predicate       string        `json:"predicate,omitempty"`
	ValueExpression string        `json:"valueExpression,omitempty"`
	Func            TransformFunc `json:"func,omitempty"`
	Args            []string      `json:"args,omitempty"`
}

// MarshalClauses encodes a document's clauses to their JSON wire form.
func MarshalClauses(clauses []Clause) ([]byte, error) {
	out := make([]clauseJSON, 0, len(clauses))
	for _, c := range clauses {
		cj, err := toClauseJSON(c)
		if err != nil {
			return nil, err
		}
		out = append(out, cj)
	}
	return json.Marshal(out)
}

// UnmarshalClauses decodes a document's clauses from their JSON wire form.
func UnmarshalClauses(raw []byte) ([]Clause, error) {
	var decoded []clauseJSON
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("mapping: decode clauses: %w", err)
	}
	out := make([]Clause, 0, len(decoded))
	for _, cj := range decoded {
		c, err := fromClauseJSON(cj)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func toClauseJSON(c Clause) (clauseJSON, error) {
	switch cl := c.(type) {
	case FieldMapping:
		return clauseJSON{Kind: ClauseFieldMapping, SourcePath: cl.SourcePath, TargetPath: cl.TargetPath}, nil
	case ValueAssignment:
		return clauseJSON{Kind: ClauseValueAssignment, TargetPath: cl.TargetPath, Template: cl.Template}, nil
	case DerivedValue:
		return clauseJSON{Kind: ClauseDerivedValue, TargetPath: cl.TargetPath, Expression: cl.Expression}, nil
	case AutoGeneration:
		return clauseJSON{Kind: ClauseAutoGeneration, TargetPath: cl.TargetPath, Generator: cl.Generator, Prefix: cl.Prefix, Suffix: cl.Suffix, Length: cl.Length}, nil
	case Conditional:
		return clauseJSON{Kind: ClauseConditional, Predicate: cl.Predicate, TargetPath: cl.TargetPath, ValueExpression: cl.ValueExpression}, nil
	case Transformation:
		return clauseJSON{Kind: ClauseTransformation, TargetPath: cl.TargetPath, Func: cl.Func, Args: cl.Args}, nil
	case DefaultValue:
		return clauseJSON{Kind: ClauseDefaultValue, TargetPath: cl.TargetPath, Template: cl.Template}, nil
	default:
		return clauseJSON{}, fmt.Errorf("mapping: unknown clause type %T", c)
	}
}

func fromClauseJSON(cj clauseJSON) (Clause, error) {
	switch cj.Kind {
	case ClauseFieldMapping:
		return FieldMapping{SourcePath: cj.SourcePath, TargetPath: cj.TargetPath}, nil
	case ClauseValueAssignment:
		return ValueAssignment{TargetPath: cj.TargetPath, Template: cj.Template}, nil
	case ClauseDerivedValue:
		return DerivedValue{TargetPath: cj.TargetPath, Expression: cj.Expression}, nil
	case ClauseAutoGeneration:
		return AutoGeneration{TargetPath: cj.TargetPath, Generator: cj.Generator, Prefix: cj.Prefix, Suffix: cj.Suffix, Length: cj.Length}, nil
	case ClauseConditional:
		return Conditional{Predicate: cj.Predicate, TargetPath: cj.TargetPath, ValueExpression: cj.ValueExpression}, nil
	case ClauseTransformation:
		return Transformation{TargetPath: cj.TargetPath, Func: cj.Func, Args: cj.Args}, nil
	case ClauseDefaultValue:
		return DefaultValue{TargetPath: cj.TargetPath, Template: cj.Template}, nil
	default:
		return nil, fmt.Errorf("mapping: unknown clause kind %q", cj.Kind)
	}
}
