package value

// The universal runtime datum. Values are immutable once constructed;
// the only sanctioned mutation is a frame writing fields of its own
// output or local struct.

import (
	"fmt"

	"comp/internal/ast"
	"comp/internal/number"
)

const (
	NIL_VALUE       = "NIL"
	NUMBER_VALUE    = "NUMBER"
	TEXT_VALUE      = "TEXT"
	TAG_VALUE       = "TAG"
	STRUCT_VALUE    = "STRUCT"
	FUNC_VALUE      = "FUNCTION"
	RAW_BLOCK_VALUE = "RAW_BLOCK"
	BLOCK_VALUE     = "BLOCK"
	HANDLE_VALUE    = "HANDLE"
	FAIL_VALUE      = "FAIL"
)

type Kind string

type Value interface {
	Kind() Kind
	Inspect() string
}

type Nil struct{}

func (n *Nil) Kind() Kind      { return NIL_VALUE }
func (n *Nil) Inspect() string { return "nil" }

var NIL = &Nil{}

type Number struct {
	Value number.Dec
}

func (n *Number) Kind() Kind      { return NUMBER_VALUE }
func (n *Number) Inspect() string { return n.Value.String() }

func Num(v int64) *Number { return &Number{Value: number.FromInt64(v)} }

type Text struct {
	Value string
}

func (t *Text) Kind() Kind      { return TEXT_VALUE }
func (t *Text) Inspect() string { return fmt.Sprintf("%q", t.Value) }

func Str(s string) *Text { return &Text{Value: s} }

// TagRef references a registry tag by its full path, optionally wrapping a
// payload value. Tag identity is the path; associated values and hierarchy
// questions go through the registry.
type TagRef struct {
	Path    string
	Payload Value
}

func (t *TagRef) Kind() Kind { return TAG_VALUE }
func (t *TagRef) Inspect() string {
	if t.Payload != nil {
		return "#" + t.Path + "(" + t.Payload.Inspect() + ")"
	}
	return "#" + t.Path
}

// Booleans are the builtin tags #true and #false.
var (
	TRUE  = &TagRef{Path: "true"}
	FALSE = &TagRef{Path: "false"}
)

func Bool(b bool) *TagRef {
	if b {
		return TRUE
	}
	return FALSE
}

// Truthy reports how a value reads in a boolean position: nil, #false and
// fail values are false, everything else is true.
func Truthy(v Value) bool {
	switch v := v.(type) {
	case *Nil:
		return false
	case *Fail:
		return false
	case *TagRef:
		return v.Path != "false"
	default:
		return v != nil
	}
}

// FuncDef is implemented by the module layer's function object; declared here
// so function references can be values without a dependency cycle.
type FuncDef interface {
	FuncName() string
}

type FuncRef struct {
	Def FuncDef
}

func (f *FuncRef) Kind() Kind      { return FUNC_VALUE }
func (f *FuncRef) Inspect() string { return "|" + f.Def.FuncName() }

// BlockShape is implemented by the shape layer's block-shape descriptor.
type BlockShape interface {
	Inspect() string
}

// RawBlock is an unexecuted body capturing its defining frame by arena id.
type RawBlock struct {
	Body    *ast.BlockLiteral
	FrameID int
}

func (b *RawBlock) Kind() Kind      { return RAW_BLOCK_VALUE }
func (b *RawBlock) Inspect() string { return b.Body.String() }

// Block is a raw block matched against a block shape; it records the expected
// input shape and delegates execution to the original raw block.
type Block struct {
	Raw   *RawBlock
	Shape BlockShape
}

func (b *Block) Kind() Kind { return BLOCK_VALUE }
func (b *Block) Inspect() string {
	return b.Shape.Inspect() + " " + b.Raw.Inspect()
}

// HandleInstance is an acquired external resource. State transitions are
// owned by the handle arena; the value itself is just the token.
type HandleInstance struct {
	ID       int
	Path     string // handle definition path
	Dropped  bool
	Resource any // native resource, nil for pure language handles
}

func (h *HandleInstance) Kind() Kind { return HANDLE_VALUE }
func (h *HandleInstance) Inspect() string {
	if h.Dropped {
		return fmt.Sprintf("!%s<%d dropped>", h.Path, h.ID)
	}
	return fmt.Sprintf("!%s<%d>", h.Path, h.ID)
}

// Equal compares two values structurally. Handles are equal when they share
// a definition and dropped state; functions and blocks by identity.
func Equal(a, b Value) bool {
	switch a := a.(type) {
	case *Nil:
		_, ok := b.(*Nil)
		return ok
	case *Number:
		o, ok := b.(*Number)
		return ok && a.Value.Equal(o.Value)
	case *Text:
		o, ok := b.(*Text)
		return ok && a.Value == o.Value
	case *TagRef:
		o, ok := b.(*TagRef)
		if !ok || a.Path != o.Path {
			return false
		}
		if a.Payload == nil || o.Payload == nil {
			return a.Payload == nil && o.Payload == nil
		}
		return Equal(a.Payload, o.Payload)
	case *Struct:
		o, ok := b.(*Struct)
		if !ok || a.Len() != o.Len() {
			return false
		}
		for i := 0; i < a.Len(); i++ {
			fa, _ := a.At(i)
			fb, _ := o.At(i)
			if fa.Named != fb.Named || !Equal(fa.Key, fb.Key) || !Equal(fa.Value, fb.Value) {
				return false
			}
		}
		return true
	case *HandleInstance:
		o, ok := b.(*HandleInstance)
		return ok && a.Path == o.Path && a.Dropped == o.Dropped
	case *Fail:
		o, ok := b.(*Fail)
		return ok && a.Tag == o.Tag && a.Message == o.Message
	default:
		return a == b
	}
}

// IsFail reports whether a value is a failure.
func IsFail(v Value) bool {
	_, ok := v.(*Fail)
	return ok
}
