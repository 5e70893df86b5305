// Package codec provides the injected (encode, decode) pair that converts
// between jsonvalue.Value and the byte strings persisted as blobs. The
// codec is a construction-time dependency of the repository manager,
// never a hard-coded choice.
package codec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/foldline/jsongit/internal/jsonvalue"
)

// Codec converts JSON documents to and from bytes.
type Codec interface {
	Encode(v jsonvalue.Value) ([]byte, error)
	Decode(data []byte) (jsonvalue.Value, error)
}

// ErrNotJson is returned when a value cannot be encoded, or bytes cannot
// be parsed as JSON.
var ErrNotJson = fmt.Errorf("jsongit: not a JSON document")

type ordered struct{}

// Default returns the order-preserving codec: decoding keeps object field
// order as it appeared in the source bytes (via an ordered map), and
// encoding always emits sorted keys so two semantically-equal documents
// produce byte-identical blobs for stable content hashing.
func Default() Codec { return ordered{} }

func (ordered) Decode(data []byte) (jsonvalue.Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	v, err := decodeValue(dec)
	if err != nil {
		return jsonvalue.Value{}, fmt.Errorf("%w: %v", ErrNotJson, err)
	}
	// Reject trailing garbage: a well-formed document is exactly one value.
	if _, err := dec.Token(); err != io.EOF {
		return jsonvalue.Value{}, fmt.Errorf("%w: trailing data after JSON value", ErrNotJson)
	}
	return v, nil
}

func decodeValue(dec *json.Decoder) (jsonvalue.Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return jsonvalue.Value{}, err
	}
	return decodeToken(dec, tok)
}

func decodeToken(dec *json.Decoder, tok json.Token) (jsonvalue.Value, error) {
	switch t := tok.(type) {
	case nil:
		return jsonvalue.Null(), nil
	case bool:
		return jsonvalue.Bool(t), nil
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return jsonvalue.Value{}, err
		}
		return jsonvalue.Number(f), nil
	case string:
		return jsonvalue.String(t), nil
	case json.Delim:
		switch t {
		case '[':
			var items []jsonvalue.Value
			for dec.More() {
				item, err := decodeValue(dec)
				if err != nil {
					return jsonvalue.Value{}, err
				}
				items = append(items, item)
			}
			if _, err := dec.Token(); err != nil { // consume ']'
				return jsonvalue.Value{}, err
			}
			return jsonvalue.Array(items), nil
		case '{':
			obj := jsonvalue.NewObject()
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return jsonvalue.Value{}, err
				}
				key, ok := keyTok.(string)
				if !ok {
					return jsonvalue.Value{}, fmt.Errorf("expected object key, got %v", keyTok)
				}
				val, err := decodeValue(dec)
				if err != nil {
					return jsonvalue.Value{}, err
				}
				obj.Set(key, val)
			}
			if _, err := dec.Token(); err != nil { // consume '}'
				return jsonvalue.Value{}, err
			}
			return jsonvalue.Object_(obj), nil
		}
	}
	return jsonvalue.Value{}, fmt.Errorf("unexpected token %v", tok)
}

func (ordered) Encode(v jsonvalue.Value) ([]byte, error) {
	var buf bytes.Buffer
	if err := encodeValue(&buf, v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotJson, err)
	}
	return buf.Bytes(), nil
}

func encodeValue(buf *bytes.Buffer, v jsonvalue.Value) error {
	switch v.Kind() {
	case jsonvalue.KindNull:
		buf.WriteString("null")
	case jsonvalue.KindBool:
		if v.BoolValue() {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case jsonvalue.KindNumber:
		b, err := json.Marshal(v.NumberValue())
		if err != nil {
			return err
		}
		buf.Write(b)
	case jsonvalue.KindString:
		b, err := json.Marshal(v.StringValue())
		if err != nil {
			return err
		}
		buf.Write(b)
	case jsonvalue.KindArray:
		buf.WriteByte('[')
		for i, item := range v.ArrayItems() {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := encodeValue(buf, item); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case jsonvalue.KindObject:
		keys := v.Keys()
		sort.Strings(keys)
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			kb, err := json.Marshal(k)
			if err != nil {
				return err
			}
			buf.Write(kb)
			buf.WriteByte(':')
			child, _ := v.Get(k)
			if err := encodeValue(buf, child); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	default:
		return fmt.Errorf("unknown value kind %v", v.Kind())
	}
	return nil
}

type stdlibJSON struct{}

// StdlibJSON wraps encoding/json directly: Encode marshals a Value's
// Native() form (encoding/json writes map keys in sorted order), Decode
// unmarshals into `any` and lifts the result through jsonvalue.FromNative,
// so the source bytes' object key order is not kept. Use Default() when
// decoded values must keep that order.
func StdlibJSON() Codec { return stdlibJSON{} }

func (stdlibJSON) Encode(v jsonvalue.Value) ([]byte, error) {
	b, err := json.Marshal(v.Native())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotJson, err)
	}
	return b, nil
}

func (stdlibJSON) Decode(data []byte) (jsonvalue.Value, error) {
	var n any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&n); err != nil {
		return jsonvalue.Value{}, fmt.Errorf("%w: %v", ErrNotJson, err)
	}
	return fromNativeNumbers(n), nil
}

// fromNativeNumbers is like jsonvalue.FromNative but also accepts
// json.Number, which dec.UseNumber() produces instead of float64.
func fromNativeNumbers(n any) jsonvalue.Value {
	switch t := n.(type) {
	case json.Number:
		f, _ := t.Float64()
		return jsonvalue.Number(f)
	case map[string]any:
		obj := jsonvalue.NewObject()
		for k, v := range t {
			obj.Set(k, fromNativeNumbers(v))
		}
		return jsonvalue.Object_(obj)
	case []any:
		items := make([]jsonvalue.Value, len(t))
		for i, v := range t {
			items[i] = fromNativeNumbers(v)
		}
		return jsonvalue.Array(items)
	default:
		return jsonvalue.FromNative(n)
	}
}
