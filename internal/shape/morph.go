package shape

// Morph coerces a value into one conforming to a target shape; mask is its
// read-only sibling that filters a value down to the fields a shape declares.
// Both report problems as fail values so they compose with the fallback
// operator; only shape resolution errors are fatal.

import (
	"comp/internal/tags"
	"comp/internal/value"
)

// Morph converts v into a value conforming to s, filling defaults and failing
// on missing or mismatched required fields. The weak form drops extra source
// fields silently.
func Morph(v value.Value, s *Shape) value.Value {
	return morph(v, s, false)
}

// MorphStrong additionally rejects source fields the target does not declare.
func MorphStrong(v value.Value, s *Shape) value.Value {
	return morph(v, s, true)
}

// Accepts reports whether v satisfies s under weak morph.
func Accepts(v value.Value, s *Shape) bool {
	if value.IsFail(v) {
		return false
	}
	return !value.IsFail(morph(v, s, false))
}

func morph(v value.Value, s *Shape, strong bool) value.Value {
	if f, ok := v.(*value.Fail); ok {
		return f
	}
	if s == nil || s.Kind == Any {
		return v
	}

	switch s.Kind {
	case PrimNumber:
		if _, ok := v.(*value.Number); ok {
			return v
		}
		return typeFail(v, s)

	case PrimText:
		if _, ok := v.(*value.Text); ok {
			return v
		}
		return typeFail(v, s)

	case PrimTag:
		t, ok := v.(*value.TagRef)
		if !ok {
			return typeFail(v, s)
		}
		if s.TagPath != "" && tags.PathDistance(t.Path, s.TagPath) == tags.NotRelated {
			return value.NewFail(value.FailType, "wrong type, expected %s, got #%s", s.Inspect(), t.Path)
		}
		return v

	case Handle:
		h, ok := v.(*value.HandleInstance)
		if !ok {
			return typeFail(v, s)
		}
		if h.Dropped {
			return value.NewFail(value.FailDropped, "handle %s is dropped", h.Inspect())
		}
		if tags.PathDistance(h.Path, s.HandlePath) == tags.NotRelated {
			return value.NewFail(value.FailType, "incompatible handle !%s, expected %s", h.Path, s.Inspect())
		}
		return v

	case Block:
		switch b := v.(type) {
		case *value.Block:
			return v
		case *value.RawBlock:
			return &value.Block{Raw: b, Shape: s}
		default:
			return typeFail(v, s)
		}

	case Union:
		for _, alt := range s.Alts {
			if out := morph(v, alt, strong); !value.IsFail(out) {
				return out
			}
		}
		return value.NewFail(value.FailType, "no union alternative of %s matched %s", s.Inspect(), v.Kind())

	default:
		return morphFields(v, s, strong)
	}
}

func typeFail(v value.Value, s *Shape) *value.Fail {
	return value.NewFail(value.FailType, "wrong type, expected %s, got %s", s.Inspect(), v.Kind())
}

func morphFields(v value.Value, s *Shape, strong bool) value.Value {
	src, ok := v.(*value.Struct)
	if !ok {
		// A bare scalar matches a single-field target by wrapping.
		if len(s.Fields) != 1 {
			return typeFail(v, s)
		}
		spec := s.Fields[0]
		inner := morph(v, spec.Shape, strong)
		if f, isFail := inner.(*value.Fail); isFail {
			return f
		}
		out := value.NewStruct()
		putSpec(out, spec, inner)
		return out
	}

	consumed := make([]bool, src.Len())
	out := value.NewStruct()

	for _, spec := range s.Fields {
		idx := -1
		if spec.Name != "" {
			if i := src.IndexOf(value.Str(spec.Name)); i >= 0 && !consumed[i] {
				idx = i
			}
		}
		if idx < 0 {
			// next unconsumed positional source field
			for i, f := range src.Fields() {
				if !f.Named && !consumed[i] {
					idx = i
					break
				}
			}
		}

		if idx < 0 {
			if spec.HasDefault {
				putSpec(out, spec, spec.Default)
				continue
			}
			fieldName := spec.Name
			if fieldName == "" {
				fieldName = "<positional>"
			}
			return value.NewFail(value.FailType, "missing required field %s", fieldName).
				WithField("field", value.Str(fieldName)).
				WithField("expected", value.Str(s.Inspect()))
		}

		consumed[idx] = true
		f, _ := src.At(idx)
		inner := morph(f.Value, spec.Shape, strong)
		if fv, isFail := inner.(*value.Fail); isFail {
			return fv
		}
		putSpec(out, spec, inner)
	}

	if strong {
		for i, f := range src.Fields() {
			if consumed[i] {
				continue
			}
			name := f.Key.Inspect()
			if t, ok := f.Key.(*value.Text); ok {
				name = t.Value
			}
			return value.NewFail(value.FailType, "extra field %s not allowed", name).
				WithField("field", value.Str(name))
		}
	}
	return out
}

func putSpec(out *value.Struct, spec FieldSpec, v value.Value) {
	if spec.Name != "" {
		out.PutNamed(spec.Name, v)
	} else {
		out.Append(v)
	}
}

// Mask filters v down to the fields s declares. Named specs match by name,
// positional specs consume unnamed source fields in order. It never invents
// values for absent fields and, in its permissive form, never fails; the
// strict form requires every shape field to be present, after applying field
// defaults. Shapes other than field lists pass the value through untouched.
func Mask(v value.Value, s *Shape, strict bool) value.Value {
	if f, ok := v.(*value.Fail); ok {
		return f
	}
	if s == nil || s.Kind == Any {
		return v
	}
	if s.Kind == Union {
		var last value.Value
		for _, alt := range s.Alts {
			last = Mask(v, alt, strict)
			if !value.IsFail(last) {
				return last
			}
		}
		if last == nil {
			return value.NewFail(value.FailType, "no union alternative of %s matched", s.Inspect())
		}
		return last
	}
	if s.Kind != Fields {
		return v
	}

	src, ok := v.(*value.Struct)
	if !ok {
		if strict {
			return typeFail(v, s)
		}
		return value.NewStruct()
	}

	out := value.NewStruct()
	nextPos := 0
	for _, spec := range s.Fields {
		var fv value.Value
		present := false
		if spec.Name != "" {
			fv, present = src.GetNamed(spec.Name)
		} else {
			// positional specs consume unnamed source fields in order
			for i := nextPos; i < src.Len(); i++ {
				if f, _ := src.At(i); !f.Named {
					fv, present, nextPos = f.Value, true, i+1
					break
				}
			}
		}
		if !present {
			if strict {
				if spec.HasDefault {
					putSpec(out, spec, spec.Default)
					continue
				}
				fieldName := spec.Name
				if fieldName == "" {
					fieldName = "<positional>"
				}
				return value.NewFail(value.FailType, "missing required field %s", fieldName).
					WithField("field", value.Str(fieldName))
			}
			continue
		}
		if spec.Shape != nil && spec.Shape.Kind == Fields {
			fv = Mask(fv, spec.Shape, strict)
			if f, isFail := fv.(*value.Fail); isFail {
				return f
			}
		}
		putSpec(out, spec, fv)
	}
	return out
}
