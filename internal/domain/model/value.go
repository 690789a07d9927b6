package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
)

// Value is a JSON value as returned by the court data provider. Object members
// keep the order in which they were decoded; a nil Value means "absent".
type Value interface {
	jsonValue()
}

// Null is the JSON null literal.
type Null struct{}

// Bool is a JSON boolean.
type Bool bool

// Number is a JSON number kept in its literal form.
type Number string

// String is a JSON string.
type String string

// Array is a JSON array. Element order is significant.
type Array []Value

// Member is a single key/value pair of an Object.
type Member struct {
	Key   string
	Value Value
}

// Object is a JSON object with ordered members and unique keys.
type Object struct {
	members []Member
}

func (Null) jsonValue()    {}
func (Bool) jsonValue()    {}
func (Number) jsonValue()  {}
func (String) jsonValue()  {}
func (Array) jsonValue()   {}
func (*Object) jsonValue() {}

// NewObject builds an Object from members. Later duplicates replace earlier ones.
func NewObject(members ...Member) *Object {
	o := &Object{}
	for _, m := range members {
		o.Set(m.Key, m.Value)
	}
	return o
}

// Len returns the number of members.
func (o *Object) Len() int {
	if o == nil {
		return 0
	}
	return len(o.members)
}

// Get returns the value stored under key.
func (o *Object) Get(key string) (Value, bool) {
	if o == nil {
		return nil, false
	}
	for _, m := range o.members {
		if m.Key == key {
			return m.Value, true
		}
	}
	return nil, false
}

// Set replaces the value under key, or appends a new member.
func (o *Object) Set(key string, v Value) {
	for i := range o.members {
		if o.members[i].Key == key {
			o.members[i].Value = v
			return
		}
	}
	o.members = append(o.members, Member{Key: key, Value: v})
}

// Keys returns the member keys in object order.
func (o *Object) Keys() []string {
	if o == nil {
		return nil
	}
	keys := make([]string, 0, len(o.members))
	for _, m := range o.members {
		keys = append(keys, m.Key)
	}
	return keys
}

// Members returns a copy of the members in object order.
func (o *Object) Members() []Member {
	if o == nil {
		return nil
	}
	out := make([]Member, len(o.members))
	copy(out, o.members)
	return out
}

// StringField returns the member under key as text. Strings are returned as-is
// and numbers in their literal form; anything else yields "".
func (o *Object) StringField(key string) string {
	v, ok := o.Get(key)
	if !ok {
		return ""
	}
	switch t := v.(type) {
	case String:
		return strings.TrimSpace(string(t))
	case Number:
		return string(t)
	default:
		return ""
	}
}

// AsObject reports whether v is a non-nil Object.
func AsObject(v Value) (*Object, bool) {
	o, ok := v.(*Object)
	return o, ok && o != nil
}

// ParseValue decodes a single JSON document, preserving object member order.
func ParseValue(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	v, err := decodeValue(dec)
	if err != nil {
		return nil, err
	}

	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("unexpected data after top-level value")
	}
	return v, nil
}

func decodeValue(dec *json.Decoder) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}

	switch t := tok.(type) {
	case nil:
		return Null{}, nil
	case bool:
		return Bool(t), nil
	case json.Number:
		return Number(t), nil
	case string:
		return String(t), nil
	case json.Delim:
		switch t {
		case '[':
			arr := Array{}
			for dec.More() {
				elem, err := decodeValue(dec)
				if err != nil {
					return nil, err
				}
				arr = append(arr, elem)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return arr, nil
		case '{':
			obj := &Object{}
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return nil, err
				}
				key, ok := keyTok.(string)
				if !ok {
					return nil, fmt.Errorf("object key is %T, want string", keyTok)
				}
				elem, err := decodeValue(dec)
				if err != nil {
					return nil, err
				}
				obj.Set(key, elem)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return obj, nil
		}
	}

	return nil, fmt.Errorf("unexpected JSON token %v", tok)
}

// Normalize returns a deep copy of v in which every object has its members
// sorted by key. Arrays keep their element order.
func Normalize(v Value) Value {
	switch t := v.(type) {
	case Array:
		out := make(Array, len(t))
		for i, elem := range t {
			out[i] = Normalize(elem)
		}
		return out
	case *Object:
		if t == nil {
			return nil
		}
		members := t.Members()
		sort.Slice(members, func(i, j int) bool { return members[i].Key < members[j].Key })
		for i := range members {
			members[i].Value = Normalize(members[i].Value)
		}
		return &Object{members: members}
	default:
		return v
	}
}

// Canonical returns the canonical JSON encoding of v: object keys sorted,
// numbers in a single textual form, no insignificant whitespace. An absent
// value encodes as the empty string so it never equals JSON null.
func Canonical(v Value) string {
	if v == nil {
		return ""
	}
	var b strings.Builder
	writeCanonical(&b, Normalize(v))
	return b.String()
}

func writeCanonical(b *strings.Builder, v Value) {
	switch t := v.(type) {
	case nil, Null:
		b.WriteString("null")
	case Bool:
		b.WriteString(strconv.FormatBool(bool(t)))
	case Number:
		b.WriteString(canonicalNumber(t))
	case String:
		b.Write(quote(string(t)))
	case Array:
		b.WriteByte('[')
		for i, elem := range t {
			if i > 0 {
				b.WriteByte(',')
			}
			writeCanonical(b, elem)
		}
		b.WriteByte(']')
	case *Object:
		b.WriteByte('{')
		for i, m := range t.Members() {
			if i > 0 {
				b.WriteByte(',')
			}
			b.Write(quote(m.Key))
			b.WriteByte(':')
			writeCanonical(b, m.Value)
		}
		b.WriteByte('}')
	}
}

// canonicalNumber maps equivalent literals such as 1, 1.0 and 1e0 to one form.
func canonicalNumber(n Number) string {
	s := string(n)
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return strconv.FormatInt(i, 10)
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
	return s
}

func quote(s string) []byte {
	data, _ := json.Marshal(s)
	return data
}

// MarshalJSON implements json.Marshaler.
func (Null) MarshalJSON() ([]byte, error) { return []byte("null"), nil }

// MarshalJSON implements json.Marshaler.
func (n Number) MarshalJSON() ([]byte, error) {
	if n == "" {
		return []byte("0"), nil
	}
	return []byte(n), nil
}

// MarshalJSON implements json.Marshaler. Members are written in object order.
func (o *Object) MarshalJSON() ([]byte, error) {
	if o == nil {
		return []byte("null"), nil
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, m := range o.members {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.Write(quote(m.Key))
		buf.WriteByte(':')
		data, err := MarshalValue(m.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(data)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON implements json.Unmarshaler for objects.
func (o *Object) UnmarshalJSON(data []byte) error {
	v, err := ParseValue(data)
	if err != nil {
		return err
	}
	obj, ok := AsObject(v)
	if !ok {
		return errors.New("JSON value is not an object")
	}
	o.members = obj.members
	return nil
}

// MarshalValue encodes v, writing nil as JSON null.
func MarshalValue(v Value) ([]byte, error) {
	if v == nil {
		return []byte("null"), nil
	}
	return json.Marshal(v)
}
