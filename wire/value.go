package wire

import (
	"encoding/json"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// ValueKind enumerates the closed set of wire value shapes.
type ValueKind int

const (
	KindNull ValueKind = iota
	KindBool
	KindNumber
	KindString
	KindList
	KindStruct
)

func (k ValueKind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindList:
		return "list"
	case KindStruct:
		return "struct"
	default:
		return fmt.Sprintf("ValueKind(%d)", int(k))
	}
}

// Value is a closed tagged union over the JSON-compatible wire shapes:
// null, bool, number, string, list, and struct. It exists so frame
// payloads can be transcoded between JSON and MessagePack with
// exhaustive matching instead of runtime type probing.
//
// The zero value is null.
type Value struct {
	kind ValueKind
	b    bool
	n    float64
	s    string
	l    []Value
	m    map[string]Value
}

// Null returns the null value.
func Null() Value { return Value{kind: KindNull} }

// Bool returns a boolean value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Number returns a numeric value. All wire numbers are float64, like
// JSON's.
func Number(n float64) Value { return Value{kind: KindNumber, n: n} }

// String returns a string value.
func String(s string) Value { return Value{kind: KindString, s: s} }

// List returns a list value.
func List(elems ...Value) Value { return Value{kind: KindList, l: elems} }

// Struct returns a struct value with the given fields.
func Struct(fields map[string]Value) Value { return Value{kind: KindStruct, m: fields} }

// Kind returns the value's shape tag.
func (v Value) Kind() ValueKind { return v.kind }

// AsBool returns the boolean and true when the value is a bool.
func (v Value) AsBool() (bool, bool) { return v.b, v.kind == KindBool }

// AsNumber returns the number and true when the value is numeric.
func (v Value) AsNumber() (float64, bool) { return v.n, v.kind == KindNumber }

// AsString returns the string and true when the value is a string.
func (v Value) AsString() (string, bool) { return v.s, v.kind == KindString }

// AsList returns the elements and true when the value is a list.
func (v Value) AsList() ([]Value, bool) { return v.l, v.kind == KindList }

// AsStruct returns the fields and true when the value is a struct.
func (v Value) AsStruct() (map[string]Value, bool) { return v.m, v.kind == KindStruct }

// FromAny converts a decoded Go value into the union. Only the shapes a
// JSON or MessagePack decoder produces are accepted; anything else is
// an error rather than a guess.
func FromAny(raw any) (Value, error) {
	switch x := raw.(type) {
	case nil:
		return Null(), nil
	case Value:
		return x, nil
	case bool:
		return Bool(x), nil
	case float64:
		return Number(x), nil
	case float32:
		return Number(float64(x)), nil
	case int:
		return Number(float64(x)), nil
	case int8:
		return Number(float64(x)), nil
	case int16:
		return Number(float64(x)), nil
	case int32:
		return Number(float64(x)), nil
	case int64:
		return Number(float64(x)), nil
	case uint:
		return Number(float64(x)), nil
	case uint8:
		return Number(float64(x)), nil
	case uint16:
		return Number(float64(x)), nil
	case uint32:
		return Number(float64(x)), nil
	case uint64:
		return Number(float64(x)), nil
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return Value{}, fmt.Errorf("wire: convert number %q: %w", x, err)
		}
		return Number(f), nil
	case string:
		return String(x), nil
	case []byte:
		return String(string(x)), nil
	case []any:
		elems := make([]Value, len(x))
		for i, e := range x {
			v, err := FromAny(e)
			if err != nil {
				return Value{}, err
			}
			elems[i] = v
		}
		return List(elems...), nil
	case map[string]any:
		fields := make(map[string]Value, len(x))
		for k, e := range x {
			v, err := FromAny(e)
			if err != nil {
				return Value{}, err
			}
			fields[k] = v
		}
		return Struct(fields), nil
	default:
		return Value{}, fmt.Errorf("wire: cannot convert %T to Value", raw)
	}
}

// Any converts the value back to the plain Go shape a JSON decoder
// would produce.
func (v Value) Any() any {
	switch v.kind {
	case KindNull:
		return nil
	case KindBool:
		return v.b
	case KindNumber:
		return v.n
	case KindString:
		return v.s
	case KindList:
		elems := make([]any, len(v.l))
		for i, e := range v.l {
			elems[i] = e.Any()
		}
		return elems
	case KindStruct:
		fields := make(map[string]any, len(v.m))
		for k, e := range v.m {
			fields[k] = e.Any()
		}
		return fields
	default:
		panic(fmt.Sprintf("wire: invalid value kind %d", v.kind))
	}
}

// MarshalJSON implements json.Marshaler.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Any())
}

// UnmarshalJSON implements json.Unmarshaler.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := FromAny(raw)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// EncodeMsgpack implements msgpack.CustomEncoder, writing the union as
// native MessagePack types.
func (v Value) EncodeMsgpack(enc *msgpack.Encoder) error {
	switch v.kind {
	case KindNull:
		return enc.EncodeNil()
	case KindBool:
		return enc.EncodeBool(v.b)
	case KindNumber:
		return enc.EncodeFloat64(v.n)
	case KindString:
		return enc.EncodeString(v.s)
	case KindList:
		if err := enc.EncodeArrayLen(len(v.l)); err != nil {
			return err
		}
		for _, e := range v.l {
			if err := e.EncodeMsgpack(enc); err != nil {
				return err
			}
		}
		return nil
	case KindStruct:
		if err := enc.EncodeMapLen(len(v.m)); err != nil {
			return err
		}
		for k, e := range v.m {
			if err := enc.EncodeString(k); err != nil {
				return err
			}
			if err := e.EncodeMsgpack(enc); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("wire: invalid value kind %d", v.kind)
	}
}

// DecodeMsgpack implements msgpack.CustomDecoder.
func (v *Value) DecodeMsgpack(dec *msgpack.Decoder) error {
	raw, err := dec.DecodeInterfaceLoose()
	if err != nil {
		return err
	}
	parsed, err := FromAny(raw)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}
