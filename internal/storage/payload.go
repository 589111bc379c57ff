package storage

import (
	"fmt"
	"strconv"
	"time"

	"github.com/qdrant/go-client/qdrant"
)

// toPayload converts a plain map into Qdrant values.
func toPayload(m map[string]any) (map[string]*qdrant.Value, error) {
	out := make(map[string]*qdrant.Value, len(m))
	for k, v := range m {
		val, err := toValue(v)
		if err != nil {
			return nil, fmt.Errorf("payload field %q: %w", k, err)
		}
		out[k] = val
	}
	return out, nil
}

func toValue(v any) (*qdrant.Value, error) {
	switch x := v.(type) {
	case nil:
		return &qdrant.Value{Kind: &qdrant.Value_NullValue{NullValue: qdrant.NullValue_NULL_VALUE}}, nil
	case *qdrant.Value:
		return x, nil
	case string:
		return stringValue(x), nil
	case bool:
		return &qdrant.Value{Kind: &qdrant.Value_BoolValue{BoolValue: x}}, nil
	case int:
		return intValue(int64(x)), nil
	case int32:
		return intValue(int64(x)), nil
	case int64:
		return intValue(x), nil
	case uint32:
		return intValue(int64(x)), nil
	case float32:
		return doubleValue(float64(x)), nil
	case float64:
		return doubleValue(x), nil
	case time.Time:
		return stringValue(x.UTC().Format(time.RFC3339)), nil
	case *time.Time:
		if x == nil {
			return toValue(nil)
		}
		return toValue(*x)
	case *float64:
		if x == nil {
			return toValue(nil)
		}
		return doubleValue(*x), nil
	case *int:
		if x == nil {
			return toValue(nil)
		}
		return intValue(int64(*x)), nil
	case *bool:
		if x == nil {
			return toValue(nil)
		}
		return toValue(*x)
	case []string:
		values := make([]*qdrant.Value, len(x))
		for i, s := range x {
			values[i] = stringValue(s)
		}
		return listValue(values), nil
	case []any:
		values := make([]*qdrant.Value, len(x))
		for i, item := range x {
			val, err := toValue(item)
			if err != nil {
				return nil, fmt.Errorf("index %d: %w", i, err)
			}
			values[i] = val
		}
		return listValue(values), nil
	case map[string]string:
		fields := make(map[string]*qdrant.Value, len(x))
		for k, s := range x {
			fields[k] = stringValue(s)
		}
		return &qdrant.Value{Kind: &qdrant.Value_StructValue{StructValue: &qdrant.Struct{Fields: fields}}}, nil
	case map[string]any:
		fields, err := toPayload(x)
		if err != nil {
			return nil, err
		}
		return &qdrant.Value{Kind: &qdrant.Value_StructValue{StructValue: &qdrant.Struct{Fields: fields}}}, nil
	default:
		return nil, fmt.Errorf("%w: unsupported payload type %T", ErrInvalidInput, v)
	}
}

func stringValue(s string) *qdrant.Value {
	return &qdrant.Value{Kind: &qdrant.Value_StringValue{StringValue: s}}
}

func intValue(i int64) *qdrant.Value {
	return &qdrant.Value{Kind: &qdrant.Value_IntegerValue{IntegerValue: i}}
}

func doubleValue(f float64) *qdrant.Value {
	return &qdrant.Value{Kind: &qdrant.Value_DoubleValue{DoubleValue: f}}
}

func listValue(values []*qdrant.Value) *qdrant.Value {
	return &qdrant.Value{Kind: &qdrant.Value_ListValue{ListValue: &qdrant.ListValue{Values: values}}}
}

// fromPayload converts Qdrant values back into plain Go values:
// string, int64, float64, bool, nil, []any and map[string]any.
func fromPayload(m map[string]*qdrant.Value) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = fromValue(v)
	}
	return out
}

func fromValue(v *qdrant.Value) any {
	switch kind := v.GetKind().(type) {
	case *qdrant.Value_StringValue:
		return kind.StringValue
	case *qdrant.Value_IntegerValue:
		return kind.IntegerValue
	case *qdrant.Value_DoubleValue:
		return kind.DoubleValue
	case *qdrant.Value_BoolValue:
		return kind.BoolValue
	case *qdrant.Value_ListValue:
		values := kind.ListValue.GetValues()
		out := make([]any, len(values))
		for i, item := range values {
			out[i] = fromValue(item)
		}
		return out
	case *qdrant.Value_StructValue:
		return fromPayload(kind.StructValue.GetFields())
	default:
		return nil
	}
}

// toFilter converts a Filter into Qdrant conditions.
func toFilter(f *Filter) (*qdrant.Filter, error) {
	if f == nil || f.IsEmpty() {
		return nil, nil
	}

	must := make([]*qdrant.Condition, 0, len(f.Must))
	for _, m := range f.Must {
		if m.Key == "" {
			return nil, fmt.Errorf("%w: filter key is empty", ErrInvalidInput)
		}
		switch v := m.Value.(type) {
		case string:
			must = append(must, qdrant.NewMatch(m.Key, v))
		case int:
			must = append(must, qdrant.NewMatchInt(m.Key, int64(v)))
		case int64:
			must = append(must, qdrant.NewMatchInt(m.Key, v))
		case bool:
			must = append(must, qdrant.NewMatchBool(m.Key, v))
		default:
			return nil, fmt.Errorf("%w: unsupported match value %T for %q", ErrInvalidInput, m.Value, m.Key)
		}
	}
	return &qdrant.Filter{Must: must}, nil
}

// pointIDString renders UUID and numeric ids alike.
func pointIDString(id *qdrant.PointId) string {
	if u := id.GetUuid(); u != "" {
		return u
	}
	return strconv.FormatUint(id.GetNum(), 10)
}
