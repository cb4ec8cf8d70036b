package iso20022

import (
	"fmt"
	"time"

	"github.com/ocx/paygate/internal/core"
)

// ValidationResult is returned by Validate; Valid is false only when Errors
// is non-empty. Warnings never fail validation.
type ValidationResult struct {
	Valid     bool
	Errors    []string
	Warnings  []string
	Timestamp time.Time
}

// Validate checks a message's group-header and payment-information blocks
// for the required paths of its kind. It is strict about presence and
// type shape, not full XSD conformance.
func Validate(kind core.MessageKind, msg core.Message) ValidationResult {
	result := ValidationResult{Valid: true, Timestamp: time.Now().UTC()}

	reqs, known := requirements[kind]
	if !known {
		result.Valid = false
		result.Errors = append(result.Errors, fmt.Sprintf("unsupported message kind %q", kind))
		return result
	}

	for _, r := range reqs {
		v, ok := msg.Get(r.path)
		if !ok || isEmptyValue(v) {
			msgText := fmt.Sprintf("missing required field %q", r.path)
			if r.optional {
				result.Warnings = append(result.Warnings, msgText)
				continue
			}
			result.Errors = append(result.Errors, msgText)
			result.Valid = false
		}
	}

	return result
}

func isEmptyValue(v interface{}) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return val == ""
	default:
		return false
	}
}
