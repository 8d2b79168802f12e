package ir

import (
	"bytes"
	"encoding/json"
	"fmt"

	"golang.org/x/text/unicode/norm"
)

// MarshalCanonical produces the canonical byte encoding of a value.
// CRITICAL: This is the ONLY serialization that should be used for
// value-identity computation (deduplication keys, memo keys).
//
// Properties:
//  1. Strings are NFC normalized before encoding
//  2. No HTML escaping (< > & are NOT escaped)
//  3. Tuples and lists carry a kind tag, so ("a") and ["a"] never collide
//  4. No floats and no null exist in the value model at all
func MarshalCanonical(v Value) ([]byte, error) {
	var buf bytes.Buffer
	if err := marshalCanonical(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func marshalCanonical(buf *bytes.Buffer, v Value) error {
	switch val := v.(type) {
	case VString:
		return marshalCanonicalString(buf, string(val))
	case VInt:
		fmt.Fprintf(buf, "%d", int64(val))
		return nil
	case VBool:
		if val {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
		return nil
	case VTuple:
		return marshalCanonicalSeq(buf, "t", []Value(val))
	case VList:
		return marshalCanonicalSeq(buf, "l", []Value(val))
	default:
		return fmt.Errorf("unknown Value type: %T", v)
	}
}

// marshalCanonicalString encodes a string with NFC normalization and
// without HTML escaping.
func marshalCanonicalString(buf *bytes.Buffer, s string) error {
	normalized := norm.NFC.String(s)

	var b bytes.Buffer
	enc := json.NewEncoder(&b)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(normalized); err != nil {
		return fmt.Errorf("canonical string encode: %w", err)
	}

	// json.Encoder appends a trailing newline; strip it.
	buf.Write(bytes.TrimRight(b.Bytes(), "\n"))
	return nil
}

// marshalCanonicalSeq encodes a tagged sequence: ["t",e1,...] or ["l",e1,...].
// The kind tag keeps tuple and list identities disjoint.
func marshalCanonicalSeq(buf *bytes.Buffer, tag string, vals []Value) error {
	buf.WriteByte('[')
	buf.WriteByte('"')
	buf.WriteString(tag)
	buf.WriteByte('"')
	for _, v := range vals {
		buf.WriteByte(',')
		if err := marshalCanonical(buf, v); err != nil {
			return err
		}
	}
	buf.WriteByte(']')
	return nil
}

// UnmarshalCanonical decodes a canonical encoding back into a Value with
// strict validation. CRITICAL: rejects floats and null - the value model
// has neither, and accepting them here would smuggle nondeterminism into
// stored relations.
func UnmarshalCanonical(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("canonical decode: %w", err)
	}
	return convertCanonical(raw)
}

func convertCanonical(raw any) (Value, error) {
	switch v := raw.(type) {
	case nil:
		return nil, fmt.Errorf("null is forbidden in the value model")
	case bool:
		return VBool(v), nil
	case string:
		return VString(v), nil
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return nil, fmt.Errorf("floats are forbidden in the value model: %s", v)
		}
		return VInt(n), nil
	case []any:
		if len(v) == 0 {
			return nil, fmt.Errorf("canonical sequence missing kind tag")
		}
		tag, ok := v[0].(string)
		if !ok || (tag != "t" && tag != "l") {
			return nil, fmt.Errorf("canonical sequence has invalid kind tag %v", v[0])
		}
		elems := make([]Value, len(v)-1)
		for i, rawElem := range v[1:] {
			elem, err := convertCanonical(rawElem)
			if err != nil {
				return nil, fmt.Errorf("sequence[%d]: %w", i, err)
			}
			elems[i] = elem
		}
		if tag == "t" {
			return VTuple(elems), nil
		}
		return VList(elems), nil
	default:
		return nil, fmt.Errorf("unsupported canonical type %T", raw)
	}
}
