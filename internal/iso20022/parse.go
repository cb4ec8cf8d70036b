package iso20022

import (
	"encoding/json"
	"fmt"

	"github.com/ocx/paygate/internal/core"
)

// Parse decodes a JSON wire payload into a core.Message tree. Only JSON
// is decoded: an XML payload fails to decode and is reported as a
// VALIDATION error.
func Parse(kind core.MessageKind, raw []byte) (core.Message, error) {
	var decoded map[string]interface{}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, core.NewError(core.KindValidation, core.StageParse, fmt.Errorf("iso20022: decode %s: %w", kind, err))
	}
	return toMessage(decoded), nil
}

func toMessage(raw map[string]interface{}) core.Message {
	out := core.NewMessage()
	for k, v := range raw {
		out[k] = normalize(v)
	}
	return out
}

func normalize(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		return toMessage(val)
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, e := range val {
			out[i] = normalize(e)
		}
		return out
	default:
		return val
	}
}
