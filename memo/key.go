package memo

import (
	"bytes"
	"encoding/json"
	"maps"
	"slices"
)

// defaultKey derives the default logical key: the target name, a
// separator, and the canonical JSON of the argument.
func defaultKey[A any](name string) func(A) (string, error) {
	return func(arg A) (string, error) {
		raw, err := canonicalize(arg)
		if err != nil {
			return "", err
		}
		return name + ":" + string(raw), nil
	}
}

// canonicalize renders the argument as JSON with object keys sorted at
// every nesting level, so logically equal arguments serialize
// identically regardless of map iteration order.
//
// The argument is marshaled once to flatten structs and typed maps
// into generic JSON values, then re-encoded in canonical order.
// UseNumber keeps numeric text exact across the round trip.
func canonicalize(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var generic any
	if err := dec.Decode(&generic); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := writeCanonical(&buf, generic); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// writeCanonical appends the canonical encoding of a decoded JSON value.
func writeCanonical(buf *bytes.Buffer, v any) error {
	switch val := v.(type) {
	case map[string]any:
		buf.WriteByte('{')
		for i, k := range slices.Sorted(maps.Keys(val)) {
			if i > 0 {
				buf.WriteByte(',')
			}
			name, err := json.Marshal(k)
			if err != nil {
				return err
			}
			buf.Write(name)
			buf.WriteByte(':')
			if err := writeCanonical(buf, val[k]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')

	case []any:
		buf.WriteByte('[')
		for i, elem := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeCanonical(buf, elem); err != nil {
				return err
			}
		}
		buf.WriteByte(']')

	case json.Number:
		buf.WriteString(val.String())

	default:
		enc, err := json.Marshal(val)
		if err != nil {
			return err
		}
		buf.Write(enc)
	}
	return nil
}
