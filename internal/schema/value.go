package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
)

// Kind identifies which variant a Value holds.
type Kind uint8

const (
	NullKind Kind = iota
	BoolKind
	NumberKind
	StringKind
	ArrayKind
	ObjectKind
)

func (k Kind) String() string {
	switch k {
	case NullKind:
		return "null"
	case BoolKind:
		return "bool"
	case NumberKind:
		return "number"
	case StringKind:
		return "string"
	case ArrayKind:
		return "array"
	case ObjectKind:
		return "object"
	default:
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Value is a JSON value. A nil *Value and the zero Value are both null.
type Value struct {
	kind Kind
	b    bool
	s    string // string contents, or the literal text of a number
	arr  []*Value
	obj  *Object
}

func Null() *Value {
	return &Value{}
}

func Bool(b bool) *Value {
	return &Value{kind: BoolKind, b: b}
}

// Number wraps a number literal. The literal is written out verbatim.
func Number(n json.Number) *Value {
	return &Value{kind: NumberKind, s: string(n)}
}

func String(s string) *Value {
	return &Value{kind: StringKind, s: s}
}

// Array builds an array value from a copy of items.
func Array(items ...*Value) *Value {
	arr := make([]*Value, len(items))
	copy(arr, items)
	return &Value{kind: ArrayKind, arr: arr}
}

// Strings builds an array of string values.
func Strings(items ...string) *Value {
	arr := make([]*Value, 0, len(items))
	for _, item := range items {
		arr = append(arr, String(item))
	}
	return &Value{kind: ArrayKind, arr: arr}
}

func ObjectValue(o *Object) *Value {
	if o == nil {
		o = NewObject()
	}
	return &Value{kind: ObjectKind, obj: o}
}

func (v *Value) Kind() Kind {
	if v == nil {
		return NullKind
	}
	return v.kind
}

func (v *Value) AsString() (string, bool) {
	if v.Kind() != StringKind {
		return "", false
	}
	return v.s, true
}

// AsArray returns the elements of an array value. The slice is shared with v.
func (v *Value) AsArray() ([]*Value, bool) {
	if v.Kind() != ArrayKind {
		return nil, false
	}
	return v.arr, true
}

// AsObject returns the object held by v. The object is shared with v.
func (v *Value) AsObject() (*Object, bool) {
	if v.Kind() != ObjectKind {
		return nil, false
	}
	return v.obj, true
}

func (v *Value) DeepCopy() *Value {
	if v == nil {
		return nil
	}
	out := &Value{kind: v.kind, b: v.b, s: v.s}
	switch v.kind {
	case ArrayKind:
		out.arr = make([]*Value, len(v.arr))
		for i, item := range v.arr {
			out.arr[i] = item.DeepCopy()
		}
	case ObjectKind:
		out.obj = v.obj.DeepCopy()
	}
	return out
}

// canonical returns the encoded form of v, used as an identity key when
// comparing values.
func (v *Value) canonical() string {
	var buf bytes.Buffer
	if err := v.encode(&buf); err != nil {
		return v.Kind().String() + ":" + v.s
	}
	return buf.String()
}

func (v *Value) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := v.encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (v *Value) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	parsed, err := decodeValue(dec)
	if err != nil {
		return err
	}
	if _, err := dec.Token(); err != io.EOF {
		return fmt.Errorf("unexpected data after JSON value")
	}

	*v = *parsed
	return nil
}

func (v *Value) encode(buf *bytes.Buffer) error {
	switch v.Kind() {
	case NullKind:
		buf.WriteString("null")
	case BoolKind:
		buf.WriteString(strconv.FormatBool(v.b))
	case NumberKind:
		if v.s == "" {
			return fmt.Errorf("empty number literal")
		}
		buf.WriteString(v.s)
	case StringKind:
		b, err := json.Marshal(v.s)
		if err != nil {
			return err
		}
		buf.Write(b)
	case ArrayKind:
		buf.WriteByte('[')
		for i, item := range v.arr {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := item.encode(buf); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case ObjectKind:
		return v.obj.encode(buf)
	default:
		return fmt.Errorf("cannot encode value of %s", v.kind)
	}
	return nil
}

func decodeValue(dec *json.Decoder) (*Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}

	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			obj := NewObject()
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return nil, err
				}
				key, ok := keyTok.(string)
				if !ok {
					return nil, fmt.Errorf("unexpected object key %v", keyTok)
				}
				item, err := decodeValue(dec)
				if err != nil {
					return nil, err
				}
				obj.Set(key, item)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return ObjectValue(obj), nil
		case '[':
			arr := []*Value{}
			for dec.More() {
				item, err := decodeValue(dec)
				if err != nil {
					return nil, err
				}
				arr = append(arr, item)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return &Value{kind: ArrayKind, arr: arr}, nil
		default:
			return nil, fmt.Errorf("unexpected delimiter %q", rune(t))
		}
	case bool:
		return Bool(t), nil
	case json.Number:
		return Number(t), nil
	case string:
		return String(t), nil
	case nil:
		return Null(), nil
	default:
		return nil, fmt.Errorf("unexpected token %T", tok)
	}
}
