package fraud

import (
	"regexp"
	"strconv"

	"github.com/ocx/paygate/internal/core"
)

// Template is an optional, tenant-configured request shape: each value
// may contain "${fieldName}" placeholders resolved against the assessment
// record (messageId, tenantId, transactionReference, paymentType, source,
// assessment type) or the inbound message. paymentType always resolves to
// the empty string: BuildRequest is given no coordinate to take it from.
type Template map[string]string

var placeholderRE = regexp.MustCompile(`\$\{([A-Za-z0-9_.]+)\}`)

// BuildRequest assembles the fraud-engine request body. When tmpl is nil,
// a default shape is used containing transaction identifiers, amounts,
// parties, and context pulled from well-known ISO 20022 paths if present.
func BuildRequest(tmpl Template, msg core.Message, assessment core.FraudAssessment, transactionReference string) map[string]interface{} {
	fields := map[string]string{
		"messageId":            assessment.MessageID,
		"tenantId":             assessment.TenantID,
		"transactionReference": transactionReference,
		"paymentType":          "",
		"source":               string(assessment.Source),
		"assessmentType":       string(assessment.Type),
	}

	if tmpl != nil {
		out := make(map[string]interface{}, len(tmpl))
		for k, v := range tmpl {
			out[k] = resolvePlaceholders(v, msg, fields)
		}
		return out
	}

	return defaultShape(msg, fields)
}

func resolvePlaceholders(raw string, msg core.Message, fields map[string]string) string {
	return placeholderRE.ReplaceAllStringFunc(raw, func(token string) string {
		name := token[2 : len(token)-1]
		if v, ok := fields[name]; ok {
			return v
		}
		if v, ok := msg.Get(name); ok {
			return stringify(v)
		}
		return ""
	})
}

func stringify(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	case bool:
		return strconv.FormatBool(val)
	case nil:
		return ""
	default:
		return ""
	}
}

// defaultShape is used when the tenant has no configured request
// template: a generic envelope carrying identifiers, amount, parties,
// and the message kind for context.
func defaultShape(msg core.Message, fields map[string]string) map[string]interface{} {
	body := map[string]interface{}{
		"messageId":            fields["messageId"],
		"tenantId":             fields["tenantId"],
		"transactionReference": fields["transactionReference"],
		"source":               fields["source"],
		"assessmentType":       fields["assessmentType"],
	}
	for _, path := range []string{
		"GrpHdr.MsgId",
		"CdtTrfTxInf.Amt.InstdAmt",
		"CdtTrfTxInf.Dbtr.Nm",
		"CdtTrfTxInf.Cdtr.Nm",
		"CdtTrfTxInf.PmtId.EndToEndId",
	} {
		if v, ok := msg.Get(path); ok {
			body[path] = v
		}
	}
	return body
}
