package ast

// Syntax-tree node vocabulary consumed by the evaluator. The parser that
// produces these nodes lives outside this repository; embedders and tests
// construct nodes directly. Every node unparses back to source text via
// String(), which the runtime uses in diagnostics.

import (
	"bytes"
	"fmt"
	"strings"
)

// The base Node interface
type Node interface {
	String() string
}

type Expression interface {
	Node
	expressionNode()
}

type Statement interface {
	Node
	statementNode()
}

// ScopeKind marks which scope an identifier resolves against.
type ScopeKind int

const (
	ScopeDefault ScopeKind = iota // unqualified: $out first, then $in
	ScopeIn
	ScopeOut
	ScopeCtx
	ScopeMod
	ScopeArg
	ScopeLocal // @
	ScopeChain // ^: $arg, then $ctx, then $mod
)

var scopeMarkers = [...]string{"", "$in", "$out", "$ctx", "$mod", "$arg", "@", "^"}

func (s ScopeKind) Marker() string { return scopeMarkers[s] }

type StepKind int

const (
	StepNamed StepKind = iota
	StepIndex
	StepComputed
)

// Step is one field-access element of an identifier path.
type Step struct {
	Kind  StepKind
	Name  string     // StepNamed
	Index int        // StepIndex, zero-based ordinal
	Expr  Expression // StepComputed
}

func (s Step) String() string {
	switch s.Kind {
	case StepIndex:
		return fmt.Sprintf("#%d", s.Index)
	case StepComputed:
		return "(" + s.Expr.String() + ")"
	default:
		return s.Name
	}
}

// Identifier is a scope marker plus an ordered list of field-access steps.
// A bare scope reference (e.g. spreading `^`) has no steps.
type Identifier struct {
	Scope ScopeKind
	Steps []Step
}

func (i *Identifier) expressionNode() {}
func (i *Identifier) String() string {
	var out bytes.Buffer
	out.WriteString(i.Scope.Marker())
	for n, s := range i.Steps {
		if n > 0 || (i.Scope != ScopeDefault && i.Scope != ScopeLocal && i.Scope != ScopeChain) {
			out.WriteString(".")
		}
		out.WriteString(s.String())
	}
	return out.String()
}

// Name builds an unqualified single-step identifier.
func Name(name string) *Identifier {
	return &Identifier{Steps: []Step{{Kind: StepNamed, Name: name}}}
}

// ScopedName builds a single-step identifier against an explicit scope.
func ScopedName(scope ScopeKind, name string) *Identifier {
	return &Identifier{Scope: scope, Steps: []Step{{Kind: StepNamed, Name: name}}}
}

type NumberLiteral struct {
	Text string // literal text, parsed by the evaluator
}

func (n *NumberLiteral) expressionNode() {}
func (n *NumberLiteral) String() string  { return n.Text }

func Num(text string) *NumberLiteral { return &NumberLiteral{Text: text} }

type TextLiteral struct {
	Value string
}

func (t *TextLiteral) expressionNode() {}
func (t *TextLiteral) String() string  { return fmt.Sprintf("%q", t.Value) }

func Text(v string) *TextLiteral { return &TextLiteral{Value: v} }

// TagLiteral references a tag by (possibly partial) path, optionally
// wrapping a payload value.
type TagLiteral struct {
	Path    string
	Payload Expression
}

func (t *TagLiteral) expressionNode() {}
func (t *TagLiteral) String() string {
	if t.Payload != nil {
		return "#" + t.Path + "(" + t.Payload.String() + ")"
	}
	return "#" + t.Path
}

func Tag(path string) *TagLiteral { return &TagLiteral{Path: path} }

// StructEntry is one field of a structure literal. Exactly one of the
// addressing forms applies: Name for named fields, Key for computed keys,
// neither for unnamed (positional) fields. Spread inlines another struct.
type StructEntry struct {
	Name   string
	Key    Expression
	Value  Expression
	Spread bool
}

func (e StructEntry) String() string {
	if e.Spread {
		return ".." + e.Value.String()
	}
	if e.Name != "" {
		return e.Name + "=" + e.Value.String()
	}
	if e.Key != nil {
		return "(" + e.Key.String() + ")=" + e.Value.String()
	}
	return e.Value.String()
}

type StructLiteral struct {
	Entries []StructEntry
}

func (s *StructLiteral) expressionNode() {}
func (s *StructLiteral) String() string {
	parts := make([]string, len(s.Entries))
	for i, e := range s.Entries {
		parts[i] = e.String()
	}
	return "{" + strings.Join(parts, " ") + "}"
}

type UnaryExpression struct {
	Op      string // "-" or "!"
	Operand Expression
}

func (u *UnaryExpression) expressionNode() {}
func (u *UnaryExpression) String() string  { return "(" + u.Op + u.Operand.String() + ")" }

type BinaryExpression struct {
	Op    string
	Left  Expression
	Right Expression
}

func (b *BinaryExpression) expressionNode() {}
func (b *BinaryExpression) String() string {
	return "(" + b.Left.String() + " " + b.Op + " " + b.Right.String() + ")"
}

func Bin(op string, left, right Expression) *BinaryExpression {
	return &BinaryExpression{Op: op, Left: left, Right: right}
}

// TemplateLiteral interleaves text parts with embedded expressions; evaluation
// renders each part and concatenates.
type TemplateLiteral struct {
	Parts []Expression
}

func (t *TemplateLiteral) expressionNode() {}
func (t *TemplateLiteral) String() string {
	var out bytes.Buffer
	out.WriteString("'")
	for _, p := range t.Parts {
		if txt, ok := p.(*TextLiteral); ok {
			out.WriteString(txt.Value)
		} else {
			out.WriteString("$(" + p.String() + ")")
		}
	}
	out.WriteString("'")
	return out.String()
}

// BlockLiteral is an unexecuted body; evaluating it captures the defining
// frame and yields a raw block value.
type BlockLiteral struct {
	Body []Statement
}

func (b *BlockLiteral) expressionNode() {}
func (b *BlockLiteral) String() string {
	parts := make([]string, len(b.Body))
	for i, s := range b.Body {
		parts[i] = s.String()
	}
	return ":{" + strings.Join(parts, "; ") + "}"
}

// Pipeline is a seed value followed by an ordered list of stages.
type Pipeline struct {
	Seed   Expression
	Stages []Stage
}

func (p *Pipeline) expressionNode() {}
func (p *Pipeline) String() string {
	var out bytes.Buffer
	out.WriteString("[")
	out.WriteString(p.Seed.String())
	for _, s := range p.Stages {
		out.WriteString(" ")
		out.WriteString(s.String())
	}
	out.WriteString("]")
	return out.String()
}

type Stage interface {
	Node
	stageNode()
}

// InvokeStage passes the running value as call input to a named function.
type InvokeStage struct {
	Target *Identifier
	Args   *StructLiteral // optional explicit arguments
}

func (s *InvokeStage) stageNode() {}
func (s *InvokeStage) String() string {
	out := "|" + s.Target.String()
	if s.Args != nil {
		out += " " + s.Args.String()
	}
	return out
}

// BlockStage passes the running value as input to a block value.
type BlockStage struct {
	Block Expression
}

func (s *BlockStage) stageNode()     {}
func (s *BlockStage) String() string { return "|" + s.Block.String() }

// MergeStage merges literal fields over the running struct value.
type MergeStage struct {
	Fields *StructLiteral
}

func (s *MergeStage) stageNode()     {}
func (s *MergeStage) String() string { return ".." + s.Fields.String() }

// RecoverStage substitutes its expression for a failed running value.
type RecoverStage struct {
	Expr Expression
}

func (s *RecoverStage) stageNode()     {}
func (s *RecoverStage) String() string { return "?? " + s.Expr.String() }

// GrabExpression acquires an instance of a handle definition.
type GrabExpression struct {
	Path string     // handle definition path, possibly partial
	Init Expression // optional payload passed to native acquisition
}

func (g *GrabExpression) expressionNode() {}
func (g *GrabExpression) String() string {
	if g.Init != nil {
		return "grab !" + g.Path + " " + g.Init.String()
	}
	return "grab !" + g.Path
}

// DropExpression releases a handle instance; idempotent at run time.
type DropExpression struct {
	Target Expression
}

func (d *DropExpression) expressionNode() {}
func (d *DropExpression) String() string  { return "drop " + d.Target.String() }

// AssignStatement writes a value through an identifier path. Top-level
// unqualified targets mutate the frame's output struct.
type AssignStatement struct {
	Target *Identifier
	Value  Expression
}

func (a *AssignStatement) statementNode() {}
func (a *AssignStatement) String() string {
	return a.Target.String() + " = " + a.Value.String()
}

func Assign(target *Identifier, v Expression) *AssignStatement {
	return &AssignStatement{Target: target, Value: v}
}

type ExpressionStatement struct {
	Expression Expression
}

func (e *ExpressionStatement) statementNode() {}
func (e *ExpressionStatement) String() string { return e.Expression.String() }

func Expr(e Expression) *ExpressionStatement { return &ExpressionStatement{Expression: e} }

// ---- shape expressions ----

// ShapeExpr is the syntactic form of a structural type. Exactly one of the
// variants applies: Prim, Ref, Fields, Alts, or Block.
type ShapeExpr struct {
	Prim       string // "num", "text", "tag", "any"
	TagPath    string // optional subtree constraint when Prim == "tag"
	HandlePath string // constrains to a handle definition subtree
	Ref        string // reference to a named shape
	Fields     []ShapeField
	Alts       []*ShapeExpr // union of alternatives, tried in order
	Block      *ShapeExpr   // block shape: expected input shape
}

func (s *ShapeExpr) String() string {
	switch {
	case s == nil:
		return "~any"
	case s.HandlePath != "":
		return "~!" + s.HandlePath
	case s.Prim == "tag" && s.TagPath != "":
		return "~#" + s.TagPath
	case s.Prim != "":
		return "~" + s.Prim
	case s.Ref != "":
		return "~" + s.Ref
	case len(s.Alts) > 0:
		parts := make([]string, len(s.Alts))
		for i, a := range s.Alts {
			parts[i] = a.String()
		}
		return strings.Join(parts, "|")
	case s.Block != nil:
		return "~:" + s.Block.String()
	default:
		parts := make([]string, len(s.Fields))
		for i, f := range s.Fields {
			parts[i] = f.String()
		}
		return "~{" + strings.Join(parts, " ") + "}"
	}
}

type ShapeField struct {
	Name      string // "" for positional fields
	Shape     *ShapeExpr
	Default   Expression
	SpreadRef string // inherit fields of another named shape
}

func (f ShapeField) String() string {
	if f.SpreadRef != "" {
		return "..~" + f.SpreadRef
	}
	var out bytes.Buffer
	out.WriteString(f.Name)
	if f.Shape != nil {
		if f.Name != "" {
			out.WriteString(" ")
		}
		out.WriteString(f.Shape.String())
	}
	if f.Default != nil {
		out.WriteString(" = " + f.Default.String())
	}
	return out.String()
}

// ---- module-level definitions ----

type Module struct {
	Name string
	Defs []Def
}

func (m *Module) String() string {
	var out bytes.Buffer
	for _, d := range m.Defs {
		out.WriteString(d.String())
		out.WriteString("\n")
	}
	return out.String()
}

type Def interface {
	Node
	defNode()
}

type TagDecl struct {
	Path  string
	Value Expression // optional associated value
}

func (t *TagDecl) defNode() {}
func (t *TagDecl) String() string {
	if t.Value != nil {
		return "#" + t.Path + " = " + t.Value.String()
	}
	return "#" + t.Path
}

type ShapeDecl struct {
	Name  string
	Shape *ShapeExpr
}

func (s *ShapeDecl) defNode()       {}
func (s *ShapeDecl) String() string { return "~" + s.Name + " = " + s.Shape.String() }

// FuncDecl declares one implementation of a function; repeated declarations
// with the same name form the overload list in declaration order.
type FuncDecl struct {
	Name  string
	Input *ShapeExpr // input shape, nil accepts anything
	Args  *ShapeExpr // explicit-argument shape, nil for none
	Body  *BlockLiteral
}

func (f *FuncDecl) defNode() {}
func (f *FuncDecl) String() string {
	var out bytes.Buffer
	out.WriteString("|" + f.Name)
	if f.Input != nil {
		out.WriteString(" " + f.Input.String())
	}
	if f.Args != nil {
		out.WriteString(" ^" + f.Args.String())
	}
	out.WriteString(" = " + f.Body.String())
	return out.String()
}

type HandleDecl struct {
	Path     string
	Shape    *ShapeExpr    // optional structural shape of the handle
	DropBody *BlockLiteral // optional drop block
}

func (h *HandleDecl) defNode() {}
func (h *HandleDecl) String() string {
	var out bytes.Buffer
	out.WriteString("!" + h.Path)
	if h.Shape != nil {
		out.WriteString(" " + h.Shape.String())
	}
	if h.DropBody != nil {
		out.WriteString(" drop " + h.DropBody.String())
	}
	return out.String()
}

type ImportDecl struct {
	Name string // local namespace name
	Path string // module path handed to the embedder's loader
}

func (i *ImportDecl) defNode()       {}
func (i *ImportDecl) String() string { return "import " + i.Name + " " + fmt.Sprintf("%q", i.Path) }
