package core

import "strings"

// Message is a structured tree: string keys mapping to a scalar, a nested
// Message, or an ordered list of values. It is the wire-independent
// representation the canonicalizer parses into and the mapping engine
// operates on. The "_metadata" top-level key is orchestrator-owned and is
// stripped before anything is put on the wire.
type Message map[string]interface{}

const metadataKey = "_metadata"

// NewMessage returns an empty message tree.
func NewMessage() Message {
	return Message{}
}

// Metadata returns the _metadata subtree, creating it if absent.
func (m Message) Metadata() Message {
	existing, ok := m[metadataKey]
	if ok {
		if sub, ok := existing.(Message); ok {
			return sub
		}
	}
	sub := Message{}
	m[metadataKey] = sub
	return sub
}

// WithoutMetadata returns a shallow copy with the _metadata subtree
// removed, suitable for serializing onto the wire.
func (m Message) WithoutMetadata() Message {
	out := make(Message, len(m))
	for k, v := range m {
		if k == metadataKey {
			continue
		}
		out[k] = v
	}
	return out
}

// splitPath tokenizes a dotted path, separating "[]" list markers from
// their preceding key: "A.B[].C" -> ["A", "B", "[]", "C"].
func splitPath(path string) []string {
	var tokens []string
	for _, part := range strings.Split(path, ".") {
		if strings.HasSuffix(part, "[]") {
			tokens = append(tokens, strings.TrimSuffix(part, "[]"), "[]")
			continue
		}
		tokens = append(tokens, part)
	}
	return tokens
}

// Get resolves a dotted path against the message tree. It returns
// (value, true) on success; (nil, false) when any intermediate segment is
// absent or of the wrong shape. A trailing "[]" segment returns the list
// found at that path, not an individual element.
func (m Message) Get(path string) (interface{}, bool) {
	tokens := splitPath(path)
	var cur interface{} = m
	for _, tok := range tokens {
		if tok == "[]" {
			continue
		}
		switch node := cur.(type) {
		case Message:
			v, ok := node[tok]
			if !ok {
				return nil, false
			}
			cur = v
		case map[string]interface{}:
			v, ok := node[tok]
			if !ok {
				return nil, false
			}
			cur = v
		default:
			return nil, false
		}
	}
	return cur, true
}

// Set writes value at a dotted path, creating intermediate Message
// subtrees as needed. A trailing "[]" segment means "for each existing
// element of the list at that path, set the remaining sub-path on it";
// if the list does not exist yet, Set is a no-op for that clause (there is
// nothing to iterate), matching the "assignment creates intermediate
// subtrees, but list fan-out requires an existing list" path model.
func (m Message) Set(path string, value interface{}) {
	tokens := splitPath(path)
	setRecursive(m, tokens, value)
}

func setRecursive(node Message, tokens []string, value interface{}) {
	if len(tokens) == 0 {
		return
	}
	key := tokens[0]
	rest := tokens[1:]

	if len(rest) > 0 && rest[0] == "[]" {
		// key addresses a list; fan out the remaining path to each element.
		listRaw, ok := node[key]
		if !ok {
			return
		}
		list, ok := listRaw.([]interface{})
		if !ok {
			return
		}
		innerTokens := rest[1:]
		for i, elem := range list {
			sub, ok := elem.(Message)
			if !ok {
				m, ok := elem.(map[string]interface{})
				if !ok {
					continue
				}
				sub = Message(m)
				list[i] = sub
			}
			if len(innerTokens) == 0 {
				list[i] = value
				continue
			}
			setRecursive(sub, innerTokens, value)
		}
		node[key] = list
		return
	}

	if len(rest) == 0 {
		node[key] = value
		return
	}

	child, ok := node[key]
	if !ok {
		next := Message{}
		node[key] = next
		setRecursive(next, rest, value)
		return
	}

	switch sub := child.(type) {
	case Message:
		setRecursive(sub, rest, value)
	case map[string]interface{}:
		m := Message(sub)
		node[key] = m
		setRecursive(m, rest, value)
	default:
		// Path collides with a scalar; overwrite with a fresh subtree.
		next := Message{}
		node[key] = next
		setRecursive(next, rest, value)
	}
}

// Has reports whether a path resolves to any value, including an explicit
// null/nil.
func (m Message) Has(path string) bool {
	_, ok := m.Get(path)
	return ok
}

// Clone deep-copies the message tree so mutations during mapping never
// alias the source payload.
func (m Message) Clone() Message {
	return cloneValue(m).(Message)
}

func cloneValue(v interface{}) interface{} {
	switch val := v.(type) {
	case Message:
		out := make(Message, len(val))
		for k, e := range val {
			out[k] = cloneValue(e)
		}
		return out
	case map[string]interface{}:
		out := make(Message, len(val))
		for k, e := range val {
			out[k] = cloneValue(e)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, e := range val {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}
