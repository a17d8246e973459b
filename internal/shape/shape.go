package shape

// Structural type descriptors. A Shape is a closed variant: primitive,
// named/positional fields, union of alternatives, or block shape. Shapes are
// immutable after resolution; spread targets are flattened in at definition
// time and an undefined target is a permanent resolution error.

import (
	"bytes"
	"fmt"
	"strings"

	"comp/internal/ast"
	"comp/internal/value"
)

type Kind int

const (
	Any Kind = iota
	PrimNumber
	PrimText
	PrimTag
	Fields
	Union
	Block
	Handle
)

type FieldSpec struct {
	Name       string // "" for positional fields
	Shape      *Shape // nil means unconstrained
	Default    value.Value
	HasDefault bool
}

type Shape struct {
	Kind       Kind
	Name       string // registered name, "" for anonymous shapes
	TagPath    string // Kind == PrimTag: optional subtree constraint
	HandlePath string // Kind == Handle: compatible definition subtree
	Fields     []FieldSpec
	Alts       []*Shape // Kind == Union, tried in declaration order
	In         *Shape   // Kind == Block: expected input shape
}

// AnyShape accepts every value.
var AnyShape = &Shape{Kind: Any}

func (s *Shape) Inspect() string {
	if s == nil {
		return "~any"
	}
	if s.Name != "" {
		return "~" + s.Name
	}
	switch s.Kind {
	case Any:
		return "~any"
	case PrimNumber:
		return "~num"
	case PrimText:
		return "~text"
	case PrimTag:
		if s.TagPath != "" {
			return "~#" + s.TagPath
		}
		return "~tag"
	case Handle:
		return "~!" + s.HandlePath
	case Union:
		parts := make([]string, len(s.Alts))
		for i, a := range s.Alts {
			parts[i] = a.Inspect()
		}
		return strings.Join(parts, "|")
	case Block:
		return "~:" + s.In.Inspect()
	default:
		var out bytes.Buffer
		out.WriteString("~{")
		parts := make([]string, len(s.Fields))
		for i, f := range s.Fields {
			var b strings.Builder
			b.WriteString(f.Name)
			if f.Shape != nil {
				if f.Name != "" {
					b.WriteString(" ")
				}
				b.WriteString(f.Shape.Inspect())
			}
			if f.HasDefault {
				b.WriteString(" = " + f.Default.Inspect())
			}
			parts[i] = b.String()
		}
		out.WriteString(strings.Join(parts, " "))
		out.WriteString("}")
		return out.String()
	}
}

// FieldNamed locates a field descriptor by name.
func (s *Shape) FieldNamed(name string) (FieldSpec, bool) {
	for _, f := range s.Fields {
		if f.Name != "" && f.Name == name {
			return f, true
		}
	}
	return FieldSpec{}, false
}

// Resolver supplies a named-shape table and default-value evaluation to
// shape resolution; the module layer implements it.
type Resolver interface {
	LookupShape(name string) (*Shape, bool)
	EvalDefault(expr ast.Expression) (value.Value, error)
}

// Resolve turns a syntactic shape expression into an immutable Shape.
// Errors here are fatal module-preparation errors, not runtime fails.
func Resolve(expr *ast.ShapeExpr, r Resolver) (*Shape, error) {
	if expr == nil {
		return AnyShape, nil
	}
	switch {
	case expr.HandlePath != "":
		return &Shape{Kind: Handle, HandlePath: expr.HandlePath}, nil
	case expr.Prim != "":
		switch expr.Prim {
		case "any":
			return AnyShape, nil
		case "num":
			return &Shape{Kind: PrimNumber}, nil
		case "text", "str":
			return &Shape{Kind: PrimText}, nil
		case "tag":
			return &Shape{Kind: PrimTag, TagPath: expr.TagPath}, nil
		default:
			return nil, fmt.Errorf("unknown primitive shape ~%s", expr.Prim)
		}
	case expr.Ref != "":
		s, ok := r.LookupShape(expr.Ref)
		if !ok {
			return nil, fmt.Errorf("undefined shape ~%s", expr.Ref)
		}
		return s, nil
	case len(expr.Alts) > 0:
		alts := make([]*Shape, len(expr.Alts))
		for i, a := range expr.Alts {
			s, err := Resolve(a, r)
			if err != nil {
				return nil, err
			}
			alts[i] = s
		}
		return &Shape{Kind: Union, Alts: alts}, nil
	case expr.Block != nil:
		in, err := Resolve(expr.Block, r)
		if err != nil {
			return nil, err
		}
		return &Shape{Kind: Block, In: in}, nil
	default:
		return resolveFields(expr, r)
	}
}

func resolveFields(expr *ast.ShapeExpr, r Resolver) (*Shape, error) {
	out := &Shape{Kind: Fields}
	for _, f := range expr.Fields {
		if f.SpreadRef != "" {
			target, ok := r.LookupShape(f.SpreadRef)
			if !ok {
				return nil, fmt.Errorf("undefined spread target ~%s", f.SpreadRef)
			}
			if target.Kind != Fields {
				return nil, fmt.Errorf("spread target ~%s is not a field shape", f.SpreadRef)
			}
			for _, inherited := range target.Fields {
				putField(out, inherited)
			}
			continue
		}

		spec := FieldSpec{Name: f.Name}
		if f.Shape != nil {
			nested, err := Resolve(f.Shape, r)
			if err != nil {
				return nil, err
			}
			spec.Shape = nested
		}
		if f.Default != nil {
			dv, err := r.EvalDefault(f.Default)
			if err != nil {
				return nil, fmt.Errorf("default for field %s: %w", f.Name, err)
			}
			spec.Default = dv
			spec.HasDefault = true
		}
		putField(out, spec)
	}
	return out, nil
}

// putField appends, or overrides an earlier field with the same name at its
// original position (later explicit fields win over inherited ones).
func putField(s *Shape, f FieldSpec) {
	if f.Name != "" {
		for i, existing := range s.Fields {
			if existing.Name == f.Name {
				s.Fields[i] = f
				return
			}
		}
	}
	s.Fields = append(s.Fields, f)
}

// Subsumes reports whether a constrains at least everything b constrains, so
// preferring a over b in dispatch is an ordering rather than a guess. Field
// shapes compare by named-field coverage: a subsumes b only when every named
// field b requires appears in a. Two field shapes with distinct field sets
// are incomparable in both directions.
func Subsumes(a, b *Shape) bool {
	if b == nil || b.Kind == Any {
		return true
	}
	if a == nil || a.Kind == Any {
		return false
	}
	switch {
	case a.Kind == Union:
		for _, alt := range a.Alts {
			if !Subsumes(alt, b) {
				return false
			}
		}
		return true
	case b.Kind == Union:
		for _, alt := range b.Alts {
			if Subsumes(a, alt) {
				return true
			}
		}
		return false
	case a.Kind == Fields && b.Kind == Fields:
		for _, bf := range b.Fields {
			if bf.Name == "" {
				continue
			}
			if !hasNamedField(a, bf.Name) {
				return false
			}
		}
		return true
	}
	return a.Kind == b.Kind
}

func hasNamedField(s *Shape, name string) bool {
	for _, f := range s.Fields {
		if f.Name == name {
			return true
		}
	}
	return false
}

// Score is the specificity of a shape: the number of concrete constraints it
// imposes. Wildcards contribute nothing, every concrete constraint one, and
// nested shapes count recursively. Unions score as their least specific
// alternative.
func Score(s *Shape) int {
	if s == nil {
		return 0
	}
	switch s.Kind {
	case Any:
		return 0
	case PrimNumber, PrimText:
		return 1
	case PrimTag:
		if s.TagPath != "" {
			return 2
		}
		return 1
	case Handle, Block:
		return 1
	case Union:
		best := -1
		for _, a := range s.Alts {
			if sc := Score(a); best < 0 || sc < best {
				best = sc
			}
		}
		if best < 0 {
			return 0
		}
		return best
	default:
		total := 0
		for _, f := range s.Fields {
			total += 1 + Score(f.Shape)
		}
		return total
	}
}
