package chain

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
)

// Kind tags the variant held by a Value.
type Kind int

const (
	KindNull Kind = iota
	KindText
	KindNumber
	KindBool
	KindList
	KindRecord
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	case KindList:
		return "list"
	case KindRecord:
		return "record"
	default:
		return "null"
	}
}

// Value is a context value: text, number, bool, list or record. The zero
// Value is null.
type Value struct {
	kind   Kind
	text   string
	number float64
	flag   bool
	list   []Value
	record map[string]Value
}

func Null() Value               { return Value{} }
func Text(s string) Value       { return Value{kind: KindText, text: s} }
func Number(f float64) Value    { return Value{kind: KindNumber, number: f} }
func Bool(b bool) Value         { return Value{kind: KindBool, flag: b} }
func List(items ...Value) Value { return Value{kind: KindList, list: items} }

func Record(fields map[string]Value) Value {
	if fields == nil {
		fields = map[string]Value{}
	}
	return Value{kind: KindRecord, record: fields}
}

func (v Value) Kind() Kind     { return v.kind }
func (v Value) IsNull() bool   { return v.kind == KindNull }
func (v Value) Items() []Value { return v.list }

// Text returns the string for text values and ok=false for everything else.
func (v Value) Text() (string, bool) {
	return v.text, v.kind == KindText
}

// Field returns a record field.
func (v Value) Field(name string) (Value, bool) {
	f, ok := v.record[name]
	return f, ok
}

// String renders text values verbatim and every other kind as JSON, which
// is what a spreadsheet cell or a template placeholder receives.
func (v Value) String() string {
	switch v.kind {
	case KindText:
		return v.text
	case KindNull:
		return ""
	case KindNumber:
		return strconv.FormatFloat(v.number, 'f', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.flag)
	}

	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v.Any())
	}
	return string(data)
}

// Any converts v into plain Go values (string, float64, int, bool, []any,
// map[string]any) for template rendering and serialisation. Whole numbers
// come back as int so templates print 3 rather than 3.0.
func (v Value) Any() any {
	switch v.kind {
	case KindText:
		return v.text
	case KindNumber:
		if v.number == math.Trunc(v.number) && math.Abs(v.number) < 1<<53 {
			return int(v.number)
		}
		return v.number
	case KindBool:
		return v.flag
	case KindList:
		out := make([]any, len(v.list))
		for i, item := range v.list {
			out[i] = item.Any()
		}
		return out
	case KindRecord:
		out := make(map[string]any, len(v.record))
		for k, f := range v.record {
			out[k] = f.Any()
		}
		return out
	default:
		return nil
	}
}

func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Any())
}

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

// FromAny converts decoded YAML or JSON data into a Value.
func FromAny(raw any) (Value, error) {
	switch x := raw.(type) {
	case nil:
		return Null(), nil
	case Value:
		return x, nil
	case string:
		return Text(x), nil
	case bool:
		return Bool(x), nil
	case int:
		return Number(float64(x)), nil
	case int64:
		return Number(float64(x)), nil
	case uint64:
		return Number(float64(x)), nil
	case float32:
		return Number(float64(x)), nil
	case float64:
		return Number(x), nil
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return Value{}, fmt.Errorf("convert number %q: %w", x, err)
		}
		return Number(f), nil
	case []any:
		items := make([]Value, len(x))
		for i, item := range x {
			v, err := FromAny(item)
			if err != nil {
				return Value{}, fmt.Errorf("item %d: %w", i, err)
			}
			items[i] = v
		}
		return List(items...), nil
	case []string:
		items := make([]Value, len(x))
		for i, item := range x {
			items[i] = Text(item)
		}
		return List(items...), nil
	case map[string]any:
		fields := make(map[string]Value, len(x))
		for k, item := range x {
			v, err := FromAny(item)
			if err != nil {
				return Value{}, fmt.Errorf("field %q: %w", k, err)
			}
			fields[k] = v
		}
		return Record(fields), nil
	case map[any]any:
		fields := make(map[string]Value, len(x))
		for k, item := range x {
			v, err := FromAny(item)
			if err != nil {
				return Value{}, fmt.Errorf("field %v: %w", k, err)
			}
			fields[fmt.Sprint(k)] = v
		}
		return Record(fields), nil
	default:
		return Value{}, fmt.Errorf("unsupported value type %T", raw)
	}
}

// Keys returns the record's field names in sorted order.
func (v Value) Keys() []string {
	keys := make([]string, 0, len(v.record))
	for k := range v.record {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
