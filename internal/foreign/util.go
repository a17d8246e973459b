package foreign

import (
	"fmt"
	"sort"
	"time"

	"comp/internal/number"
	"comp/internal/shape"
	"comp/internal/value"
)

func textField(name string) shape.FieldSpec {
	return shape.FieldSpec{Name: name, Shape: &shape.Shape{Kind: shape.PrimText}}
}

func optField(name string, def value.Value) shape.FieldSpec {
	return shape.FieldSpec{Name: name, Shape: shape.AnyShape, Default: def, HasDefault: true}
}

func fieldsShape(specs ...shape.FieldSpec) *shape.Shape {
	return &shape.Shape{Kind: shape.Fields, Fields: specs}
}

func handleShape(path string) *shape.Shape {
	return &shape.Shape{Kind: shape.Handle, HandlePath: path}
}

func textArg(args *value.Struct, name string) (string, *value.Fail) {
	v, ok := args.GetNamed(name)
	if !ok {
		return "", value.NewFail(value.FailNotFound, "missing argument %s", name)
	}
	t, ok := v.(*value.Text)
	if !ok {
		return "", value.NewFail(value.FailType, "argument %s must be text, got %s", name, v.Kind())
	}
	return t.Value, nil
}

// sqlParam converts a language value into a driver-friendly parameter.
func sqlParam(v value.Value) any {
	switch v := v.(type) {
	case *value.Nil:
		return nil
	case *value.Number:
		if v.Value.IsInt() {
			return v.Value.Int64()
		}
		return v.Value.String()
	case *value.Text:
		return v.Value
	case *value.TagRef:
		switch v.Path {
		case "true":
			return true
		case "false":
			return false
		}
		return v.Path
	default:
		return v.Inspect()
	}
}

// fromGo lifts a native Go value (database cell, decoded document) into a
// language value.
func fromGo(v any) value.Value {
	switch v := v.(type) {
	case nil:
		return value.NIL
	case bool:
		return value.Bool(v)
	case string:
		return value.Str(v)
	case []byte:
		return value.Str(string(v))
	case int:
		return value.Num(int64(v))
	case int64:
		return value.Num(v)
	case float64:
		d, err := number.Parse(fmt.Sprintf("%g", v))
		if err != nil {
			return value.Str(fmt.Sprintf("%g", v))
		}
		return &value.Number{Value: d}
	case time.Time:
		return value.Str(v.Format(time.RFC3339))
	case map[string]any:
		s := value.NewStruct()
		for _, k := range sortedKeys(v) {
			s.PutNamed(k, fromGo(v[k]))
		}
		return s
	case []any:
		s := value.NewStruct()
		for _, el := range v {
			s.Append(fromGo(el))
		}
		return s
	default:
		return value.Str(fmt.Sprintf("%v", v))
	}
}

// toGo lowers a language value for encoding. Named struct fields become map
// entries, purely positional structs become slices, mixed structs keep
// positional fields under their index rendered as a key.
func toGo(v value.Value) any {
	switch v := v.(type) {
	case *value.Nil:
		return nil
	case *value.Number:
		if v.Value.IsInt() {
			return v.Value.Int64()
		}
		f := 0.0
		fmt.Sscanf(v.Value.String(), "%g", &f)
		return f
	case *value.Text:
		return v.Value
	case *value.TagRef:
		switch v.Path {
		case "true":
			return true
		case "false":
			return false
		}
		return "#" + v.Path
	case *value.Struct:
		allUnnamed := true
		for _, f := range v.Fields() {
			if f.Named {
				allUnnamed = false
				break
			}
		}
		if allUnnamed {
			out := make([]any, 0, v.Len())
			for _, f := range v.Fields() {
				out = append(out, toGo(f.Value))
			}
			return out
		}
		out := map[string]any{}
		for i, f := range v.Fields() {
			key := fmt.Sprintf("#%d", i)
			if f.Named {
				key = keyText(f.Key)
			}
			out[key] = toGo(f.Value)
		}
		return out
	case *value.Fail:
		return toGo(v.AsStruct())
	default:
		return v.Inspect()
	}
}

// keyText renders a field key for use as a map key. Computed keys may be
// numbers or tags, not just text.
func keyText(k value.Value) string {
	if t, ok := k.(*value.Text); ok {
		return t.Value
	}
	return k.Inspect()
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
