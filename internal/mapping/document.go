// Package mapping implements the declarative payload mapping engine: a
// MappingDocument of typed clauses applied to a source Message to produce
// a target Message, in the fixed clause-kind order the scheme processing
// pipeline requires.
package mapping

import "github.com/ocx/paygate/internal/core"

// ClauseKind tags which of the seven clause variants a Clause is.
type ClauseKind string

const (
	ClauseFieldMapping    ClauseKind = "FIELD_MAPPING"
	ClauseValueAssignment ClauseKind = "VALUE_ASSIGNMENT"
	ClauseDerivedValue    ClauseKind = "DERIVED_VALUE"
	ClauseAutoGeneration  ClauseKind = "AUTO_GENERATION"
	ClauseConditional     ClauseKind = "CONDITIONAL"
	ClauseTransformation  ClauseKind = "TRANSFORMATION"
	ClauseDefaultValue    ClauseKind = "DEFAULT_VALUE"
)

// Clause is the tagged-variant interface every mapping clause satisfies.
// Concrete types are never used polymorphically beyond Kind(); the engine
// type-switches on the concrete struct within each clause-kind pass.
type Clause interface {
	Kind() ClauseKind
}

// FieldMapping copies (renames) the value found at SourcePath to TargetPath.
type FieldMapping struct {
	SourcePath string
	TargetPath string
}

func (FieldMapping) Kind() ClauseKind { return ClauseFieldMapping }

// ValueAssignment writes a literal or a "${source.path}"-templated string
// at TargetPath.
type ValueAssignment struct {
	TargetPath string
	Template   string
}

func (ValueAssignment) Kind() ClauseKind { return ClauseValueAssignment }

// DerivedValue writes the result of evaluating Expression (the full
// expression language, not just a template) at TargetPath.
type DerivedValue struct {
	TargetPath string
	Expression string
}

func (DerivedValue) Kind() ClauseKind { return ClauseDerivedValue }

// GeneratorType selects an AutoGeneration strategy.
type GeneratorType string

const (
	GeneratorUUID       GeneratorType = "UUID"
	GeneratorTimestamp  GeneratorType = "TIMESTAMP"
	GeneratorSequential GeneratorType = "SEQUENTIAL"
)

// AutoGeneration writes a generated value at TargetPath. Prefix/Suffix/
// Length apply only to GeneratorSequential.
type AutoGeneration struct {
	TargetPath string
	Generator  GeneratorType
	Prefix     string
	Suffix     string
	Length     int
}

func (AutoGeneration) Kind() ClauseKind { return ClauseAutoGeneration }

// Conditional writes a value at TargetPath only when Predicate evaluates
// truthy. ValueExpression may itself be a literal, a template, or an
// expression; it is evaluated identically to DerivedValue.
type Conditional struct {
	Predicate       string
	TargetPath      string
	ValueExpression string
}

func (Conditional) Kind() ClauseKind { return ClauseConditional }

// TransformFunc enumerates the string-shaping functions a Transformation
// clause may apply.
type TransformFunc string

const (
	TransformUppercase    TransformFunc = "uppercase"
	TransformLowercase    TransformFunc = "lowercase"
	TransformTrim         TransformFunc = "trim"
	TransformPad          TransformFunc = "pad"
	TransformSubstring    TransformFunc = "substring"
	TransformRegexReplace TransformFunc = "regex-replace"
)

// Transformation applies Func to whatever already exists at TargetPath.
// Args carries function-specific parameters (pad width/char, substring
// start/end, regex pattern/replacement).
type Transformation struct {
	TargetPath string
	Func       TransformFunc
	Args       []string
}

func (Transformation) Kind() ClauseKind { return ClauseTransformation }

// DefaultValue writes Template at TargetPath only if nothing is present
// there after every other clause kind has run.
type DefaultValue struct {
	TargetPath string
	Template   string
}

func (DefaultValue) Kind() ClauseKind { return ClauseDefaultValue }

// Document is an ordered collection of clauses applied to a source
// payload. At most one Document is effective per (coordinate, direction);
// ties between active candidates break on Priority desc, then Name asc.
type Document struct {
	Name       string
	Coordinate core.PolicyCoordinate
	Direction  core.Direction
	Priority   int
	Active     bool
	Version    int
	Clauses    []Clause
}

// Validate type-checks the document's paths and expressions without
// applying it, per the "invalid documents are rejected at publish time"
// invariant. It does not evaluate expressions against real data — it only
// confirms they parse.
func (d *Document) Validate() error {
	ev := NewEvaluator()
	for _, c := range d.Clauses {
		switch cl := c.(type) {
		case FieldMapping:
			if cl.SourcePath == "" || cl.TargetPath == "" {
				return errEmptyPath
			}
		case ValueAssignment:
			if cl.TargetPath == "" {
				return errEmptyPath
			}
			if _, err := ev.parse(cl.Template); err != nil {
				return err
			}
		case DerivedValue:
			if cl.TargetPath == "" {
				return errEmptyPath
			}
			if _, err := ev.parse(cl.Expression); err != nil {
				return err
			}
		case AutoGeneration:
			if cl.TargetPath == "" {
				return errEmptyPath
			}
			switch cl.Generator {
			case GeneratorUUID, GeneratorTimestamp, GeneratorSequential:
			default:
				return errBadGenerator
			}
		case Conditional:
			if cl.TargetPath == "" {
				return errEmptyPath
			}
			if _, err := ev.parse(cl.Predicate); err != nil {
				return err
			}
			if _, err := ev.parse(cl.ValueExpression); err != nil {
				return err
			}
		case Transformation:
			if cl.TargetPath == "" {
				return errEmptyPath
			}
		case DefaultValue:
			if cl.TargetPath == "" {
				return errEmptyPath
			}
		}
	}
	return nil
}
