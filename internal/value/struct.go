package value

// Struct is the ordered-field container. Field keys are resolved values:
// synthetic position indexes for unnamed fields, text for named fields, or
// whatever a computed key expression produced. Keys stay unique: writing an
// existing key updates the field in place, a new key appends.

import (
	"bytes"
	"strings"
)

type Field struct {
	Key   Value
	Named bool // named or computed key, as opposed to a synthetic index
	Value Value
}

type Struct struct {
	fields []Field
}

func NewStruct() *Struct {
	return &Struct{}
}

// StructOf builds a struct of unnamed fields, keyed by insertion position.
func StructOf(vs ...Value) *Struct {
	s := NewStruct()
	for _, v := range vs {
		s.Append(v)
	}
	return s
}

// StructFields builds a struct of named fields in the given order.
// Pairs alternate name, value.
func StructFields(pairs ...any) *Struct {
	s := NewStruct()
	for i := 0; i+1 < len(pairs); i += 2 {
		s.Put(Str(pairs[i].(string)), true, pairs[i+1].(Value))
	}
	return s
}

func (s *Struct) Kind() Kind { return STRUCT_VALUE }

func (s *Struct) Inspect() string {
	var out bytes.Buffer
	out.WriteString("{")
	parts := make([]string, len(s.fields))
	for i, f := range s.fields {
		if f.Named {
			key := f.Key.Inspect()
			if t, ok := f.Key.(*Text); ok {
				key = t.Value
			}
			parts[i] = key + "=" + f.Value.Inspect()
		} else {
			parts[i] = f.Value.Inspect()
		}
	}
	out.WriteString(strings.Join(parts, " "))
	out.WriteString("}")
	return out.String()
}

func (s *Struct) Len() int { return len(s.fields) }

// At returns the field at ordinal position i.
func (s *Struct) At(i int) (Field, bool) {
	if i < 0 || i >= len(s.fields) {
		return Field{}, false
	}
	return s.fields[i], true
}

// IndexOf locates the field whose key equals key, or -1.
func (s *Struct) IndexOf(key Value) int {
	for i, f := range s.fields {
		if Equal(f.Key, key) {
			return i
		}
	}
	return -1
}

func (s *Struct) Get(key Value) (Value, bool) {
	if i := s.IndexOf(key); i >= 0 {
		return s.fields[i].Value, true
	}
	return nil, false
}

// GetNamed looks up a field by name.
func (s *Struct) GetNamed(name string) (Value, bool) {
	return s.Get(Str(name))
}

// Put writes a field. An existing key keeps its original position; a new key
// appends to the end.
func (s *Struct) Put(key Value, named bool, v Value) {
	if i := s.IndexOf(key); i >= 0 {
		s.fields[i].Value = v
		if named {
			s.fields[i].Named = true
		}
		return
	}
	s.fields = append(s.fields, Field{Key: key, Named: named, Value: v})
}

// PutNamed writes a named field.
func (s *Struct) PutNamed(name string, v Value) {
	s.Put(Str(name), true, v)
}

// Append adds an unnamed field keyed by its insertion position.
func (s *Struct) Append(v Value) {
	s.Put(Num(int64(len(s.fields))), false, v)
}

// SetAt replaces the value at ordinal position i, keeping its key.
func (s *Struct) SetAt(i int, v Value) bool {
	if i < 0 || i >= len(s.fields) {
		return false
	}
	s.fields[i].Value = v
	return true
}

// Fields returns the fields in insertion order. The slice is shared; callers
// must not modify it.
func (s *Struct) Fields() []Field {
	return s.fields
}

// Clone returns a shallow copy sharing field values.
func (s *Struct) Clone() *Struct {
	c := &Struct{fields: make([]Field, len(s.fields))}
	copy(c.fields, s.fields)
	return c
}

// Merge spreads the fields of o into s: named and computed keys override,
// unnamed fields append with fresh position keys.
func (s *Struct) Merge(o *Struct) {
	for _, f := range o.fields {
		if f.Named {
			s.Put(f.Key, true, f.Value)
		} else {
			s.Append(f.Value)
		}
	}
}
