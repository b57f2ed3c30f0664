package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Kind enumerates the value types allowed in item metadata.
type Kind int

const (
	KindNull Kind = iota
	KindString
	KindInt
	KindFloat
	KindBool
	KindStrings
)

// Value is a single metadata value. The zero Value is null.
type Value struct {
	kind Kind
	s    string
	i    int64
	f    float64
	b    bool
	ss   []string
}

func String(s string) Value {
	return Value{kind: KindString, s: s}
}

func Int(i int64) Value {
	return Value{kind: KindInt, i: i}
}

func Float(f float64) Value {
	return Value{kind: KindFloat, f: f}
}

func Bool(b bool) Value {
	return Value{kind: KindBool, b: b}
}

func Strings(ss ...string) Value {
	return Value{kind: KindStrings, ss: append([]string(nil), ss...)}
}

func (v Value) Kind() Kind {
	return v.kind
}

func (v Value) IsNull() bool {
	return v.kind == KindNull
}

func (v Value) Str() string {
	return v.s
}

func (v Value) Int64() int64 {
	return v.i
}

func (v Value) Float() float64 {
	return v.f
}

func (v Value) Bool() bool {
	return v.b
}

func (v Value) List() []string {
	return v.ss
}

// String renders the value for display.
func (v Value) String() string {
	switch v.kind {
	case KindString:
		return v.s
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'f', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindStrings:
		return strings.Join(v.ss, ", ")
	default:
		return ""
	}
}

func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindString:
		return json.Marshal(v.s)
	case KindInt:
		return json.Marshal(v.i)
	case KindFloat:
		return json.Marshal(v.f)
	case KindBool:
		return json.Marshal(v.b)
	case KindStrings:
		if v.ss == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(v.ss)
	default:
		return []byte("null"), nil
	}
}

func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*v = Value{}
		return nil
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = String(s)
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return err
		}
		*v = Bool(b)
	case '[':
		var ss []string
		if err := json.Unmarshal(data, &ss); err != nil {
			return fmt.Errorf("metadata: only string lists are supported: %w", err)
		}
		*v = Strings(ss...)
	default:
		if i, err := strconv.ParseInt(string(data), 10, 64); err == nil {
			*v = Int(i)
			return nil
		}
		f, err := strconv.ParseFloat(string(data), 64)
		if err != nil {
			return fmt.Errorf("metadata: unsupported value %s", data)
		}
		*v = Float(f)
	}
	return nil
}

// Metadata is a flat map of typed values attached to an item.
type Metadata map[string]Value

// Get returns the value for key, or null.
func (m Metadata) Get(key string) Value {
	if m == nil {
		return Value{}
	}
	return m[key]
}
