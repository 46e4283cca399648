package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
)

// Object is a JSON object that remembers the order keys were first set in.
type Object struct {
	keys   []string
	values map[string]*Value
}

func NewObject() *Object {
	return &Object{values: make(map[string]*Value)}
}

func (o *Object) Len() int {
	if o == nil {
		return 0
	}
	return len(o.keys)
}

// Keys returns a copy of the keys in insertion order.
func (o *Object) Keys() []string {
	if o == nil {
		return nil
	}
	return slices.Clone(o.keys)
}

func (o *Object) Get(key string) (*Value, bool) {
	if o == nil {
		return nil, false
	}
	v, ok := o.values[key]
	return v, ok
}

func (o *Object) Has(key string) bool {
	_, ok := o.Get(key)
	return ok
}

func (o *Object) GetObject(key string) (*Object, bool) {
	v, ok := o.Get(key)
	if !ok {
		return nil, false
	}
	return v.AsObject()
}

func (o *Object) GetString(key string) (string, bool) {
	v, ok := o.Get(key)
	if !ok {
		return "", false
	}
	return v.AsString()
}

// Set stores v under key. An existing key keeps its position.
func (o *Object) Set(key string, v *Value) {
	if v == nil {
		v = Null()
	}
	if _, ok := o.values[key]; !ok {
		o.keys = append(o.keys, key)
	}
	o.values[key] = v
}

// Delete removes key and reports whether it was present.
func (o *Object) Delete(key string) bool {
	if _, ok := o.values[key]; !ok {
		return false
	}
	delete(o.values, key)
	o.keys = slices.DeleteFunc(o.keys, func(k string) bool { return k == key })
	return true
}

// Range calls fn for every entry in insertion order until fn returns false.
// fn must not add or delete keys of o.
func (o *Object) Range(fn func(key string, v *Value) bool) {
	if o == nil {
		return
	}
	for _, key := range o.keys {
		if !fn(key, o.values[key]) {
			return
		}
	}
}

func (o *Object) DeepCopy() *Object {
	if o == nil {
		return nil
	}
	out := &Object{
		keys:   slices.Clone(o.keys),
		values: make(map[string]*Value, len(o.values)),
	}
	for key, v := range o.values {
		out.values[key] = v.DeepCopy()
	}
	return out
}

func (o *Object) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := o.encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (o *Object) UnmarshalJSON(data []byte) error {
	var v Value
	if err := v.UnmarshalJSON(data); err != nil {
		return err
	}
	obj, ok := v.AsObject()
	if !ok {
		return fmt.Errorf("expected JSON object, got %s", v.Kind())
	}
	*o = *obj
	return nil
}

func (o *Object) encode(buf *bytes.Buffer) error {
	buf.WriteByte('{')
	for i, key := range o.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(key)
		if err != nil {
			return err
		}
		buf.Write(k)
		buf.WriteByte(':')
		if err := o.values[key].encode(buf); err != nil {
			return err
		}
	}
	buf.WriteByte('}')
	return nil
}
