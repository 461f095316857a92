package record

import (
	"bytes"
	"cmp"
	"encoding/json"
	"fmt"
	"strconv"
)

// Kind tags the branch of a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindString
	KindLong
	KindDouble
	KindBool
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindString:
		return "string"
	case KindLong:
		return "long"
	case KindDouble:
		return "double"
	case KindBool:
		return "boolean"
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Value is one field value of an Observation. Only the member named by Kind
// is meaningful; constructors keep the rest zero so that == compares values.
type Value struct {
	Kind   Kind
	Str    string
	Long   int64
	Double float64
	Bool   bool
}

func Null() Value { return Value{} }

func StringValue(s string) Value { return Value{Kind: KindString, Str: s} }

func LongValue(n int64) Value { return Value{Kind: KindLong, Long: n} }

func DoubleValue(f float64) Value { return Value{Kind: KindDouble, Double: f} }

func BoolValue(b bool) Value { return Value{Kind: KindBool, Bool: b} }

func (v Value) IsNull() bool { return v.Kind == KindNull }

// String renders the value without its type tag.
func (v Value) String() string {
	switch v.Kind {
	case KindString:
		return v.Str
	case KindLong:
		return strconv.FormatInt(v.Long, 10)
	case KindDouble:
		return strconv.FormatFloat(v.Double, 'g', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.Bool)
	}
	return "null"
}

// Compare orders values by kind, then by value.
func Compare(a, b Value) int {
	if c := cmp.Compare(a.Kind, b.Kind); c != 0 {
		return c
	}
	switch a.Kind {
	case KindString:
		return cmp.Compare(a.Str, b.Str)
	case KindLong:
		return cmp.Compare(a.Long, b.Long)
	case KindDouble:
		return cmp.Compare(a.Double, b.Double)
	case KindBool:
		switch {
		case a.Bool == b.Bool:
			return 0
		case !a.Bool:
			return -1
		}
		return 1
	}
	return 0
}

// MarshalJSON uses the tagged union form: null, or a single-key object
// naming the branch, e.g. {"long":5}.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case KindNull:
		return []byte("null"), nil
	case KindString:
		return json.Marshal(map[string]string{"string": v.Str})
	case KindLong:
		return json.Marshal(map[string]int64{"long": v.Long})
	case KindDouble:
		return json.Marshal(map[string]float64{"double": v.Double})
	case KindBool:
		return json.Marshal(map[string]bool{"boolean": v.Bool})
	}
	return nil, fmt.Errorf("marshaling value of unknown %s", v.Kind)
}

func (v *Value) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*v = Null()
		return nil
	}
	var branch map[string]json.RawMessage
	if err := json.Unmarshal(data, &branch); err != nil {
		return fmt.Errorf("value must be null or a tagged object: %w", err)
	}
	if len(branch) != 1 {
		return fmt.Errorf("value object must have exactly one branch, got %d", len(branch))
	}
	for tag, raw := range branch {
		switch tag {
		case "string":
			var s string
			if err := json.Unmarshal(raw, &s); err != nil {
				return err
			}
			*v = StringValue(s)
		case "long":
			var n int64
			if err := json.Unmarshal(raw, &n); err != nil {
				return err
			}
			*v = LongValue(n)
		case "double":
			var f float64
			if err := json.Unmarshal(raw, &f); err != nil {
				return err
			}
			*v = DoubleValue(f)
		case "boolean":
			var b bool
			if err := json.Unmarshal(raw, &b); err != nil {
				return err
			}
			*v = BoolValue(b)
		default:
			return fmt.Errorf("unknown value branch %q", tag)
		}
	}
	return nil
}

func optString(p *string) Value {
	if p == nil {
		return Null()
	}
	return StringValue(*p)
}

func optLong(p *int64) Value {
	if p == nil {
		return Null()
	}
	return LongValue(*p)
}

func optInt(p *int32) Value {
	if p == nil {
		return Null()
	}
	return LongValue(int64(*p))
}

func optDouble(p *float64) Value {
	if p == nil {
		return Null()
	}
	return DoubleValue(*p)
}

func optBool(p *bool) Value {
	if p == nil {
		return Null()
	}
	return BoolValue(*p)
}
