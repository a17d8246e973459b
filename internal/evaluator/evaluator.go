package evaluator

// The tree-walk core: a recursive, single-threaded walk over the syntax tree.
// Struct field expressions and pipeline stages evaluate strictly in
// declaration order; a fail value short-circuits whatever field list or
// pipeline is currently executing, up to the nearest fallback or dispatch
// boundary.

import (
	"errors"
	"log/slog"
	"strings"

	"comp/internal/ast"
	"comp/internal/config"
	"comp/internal/handles"
	"comp/internal/module"
	"comp/internal/number"
	"comp/internal/scope"
	"comp/internal/tags"
	"comp/internal/value"
)

type Evaluator struct {
	Mod     *module.Module
	Frames  *scope.Arena
	Handles *handles.Arena
	Cfg     config.Configuration

	// Loader resolves import paths to prepared modules; supplied by the
	// embedder, nil when imports are not available.
	Loader func(path string) (*module.Module, error)

	root    *scope.Frame
	current *scope.Frame // frame active while a native function runs
}

func New(cfg config.Configuration) *Evaluator {
	mod := module.New("main")
	e := &Evaluator{
		Mod:     mod,
		Frames:  scope.NewArena(),
		Handles: handles.NewArena(),
		Cfg:     cfg,
	}
	e.root = e.Frames.New(scope.NoFrame, value.NIL, nil, nil, mod.State)
	return e
}

// Root is the module-preparation frame; its $mod scope is the module state.
func (e *Evaluator) Root() *scope.Frame { return e.root }

func (e *Evaluator) Eval(node ast.Node, f *scope.Frame) value.Value {
	switch node := node.(type) {

	case *ast.NumberLiteral:
		d, err := number.Parse(node.Text)
		if err != nil {
			return value.NewFail(value.FailType, "invalid number literal %s", node.Text)
		}
		return &value.Number{Value: d}

	case *ast.TextLiteral:
		return value.Str(node.Value)

	case *ast.TagLiteral:
		return e.evalTag(node, f)

	case *ast.Identifier:
		return e.evalIdentifier(node, f)

	case *ast.StructLiteral:
		return e.evalStructLiteral(node, f)

	case *ast.UnaryExpression:
		return e.evalUnary(node, f)

	case *ast.BinaryExpression:
		return e.evalBinary(node, f)

	case *ast.TemplateLiteral:
		return e.evalTemplate(node, f)

	case *ast.BlockLiteral:
		return &value.RawBlock{Body: node, FrameID: f.ID}

	case *ast.Pipeline:
		return e.evalPipeline(node, f)

	case *ast.GrabExpression:
		return e.evalGrab(node, f)

	case *ast.DropExpression:
		return e.evalDrop(node, f)

	case *ast.AssignStatement:
		return e.evalAssign(node, f)

	case *ast.ExpressionStatement:
		return e.Eval(node.Expression, f)
	}

	return value.NewFail(value.FailType, "unsupported syntax node %T", node)
}

func (e *Evaluator) evalTag(t *ast.TagLiteral, f *scope.Frame) value.Value {
	def, err := e.Mod.ResolveTag(t.Path)
	if err != nil {
		var amb *tags.AmbiguousError
		if errors.As(err, &amb) {
			return value.NewFail(value.FailAmbiguous, "%s", amb.Error())
		}
		return value.NewFail(value.FailNotFound, "%s", err.Error())
	}
	ref := &value.TagRef{Path: def.Path}
	if t.Payload != nil {
		p := e.Eval(t.Payload, f)
		if value.IsFail(p) {
			return p
		}
		ref.Payload = p
	}
	return ref
}

// evalIdentifier resolves a scope marker plus field-access steps.
// Unqualified names resolve against $out first, then $in, then the module's
// function namespace.
func (e *Evaluator) evalIdentifier(id *ast.Identifier, f *scope.Frame) value.Value {
	base, rest, failv := e.identifierBase(id, f)
	if failv != nil {
		return failv
	}
	cur := base
	for _, st := range rest {
		cur = e.step(cur, st, f)
		if value.IsFail(cur) {
			return cur
		}
	}
	return cur
}

func (e *Evaluator) identifierBase(id *ast.Identifier, f *scope.Frame) (value.Value, []ast.Step, value.Value) {
	switch id.Scope {
	case ast.ScopeIn:
		return f.In, id.Steps, nil
	case ast.ScopeOut:
		return f.Out, id.Steps, nil
	case ast.ScopeCtx:
		return f.Ctx, id.Steps, nil
	case ast.ScopeMod:
		return f.Mod, id.Steps, nil
	case ast.ScopeArg:
		return f.Args, id.Steps, nil
	case ast.ScopeLocal:
		return f.Local, id.Steps, nil

	case ast.ScopeChain:
		if len(id.Steps) == 0 {
			return f.ChainMerged(), nil, nil
		}
		if first := id.Steps[0]; first.Kind == ast.StepNamed {
			v, ok := f.ChainLookup(value.Str(first.Name))
			if !ok {
				return nil, nil, value.NewFail(value.FailNotFound, "^%s is not defined in $arg, $ctx or $mod", first.Name)
			}
			return v, id.Steps[1:], nil
		}
		return f.ChainMerged(), id.Steps, nil

	default: // unqualified
		if len(id.Steps) == 0 || id.Steps[0].Kind != ast.StepNamed {
			return nil, nil, value.NewFail(value.FailType, "malformed identifier %s", id.String())
		}
		name := id.Steps[0].Name
		if v, ok := f.Out.GetNamed(name); ok {
			return v, id.Steps[1:], nil
		}
		if in, ok := f.In.(*value.Struct); ok {
			if v, ok := in.GetNamed(name); ok {
				return v, id.Steps[1:], nil
			}
		}
		if dotted, ok := dottedName(id); ok {
			if fn, found := e.Mod.LookupFunction(dotted); found {
				return &value.FuncRef{Def: fn}, nil, nil
			}
		}
		return nil, nil, value.NewFail(value.FailNotFound, "identifier %s not found", name)
	}
}

// dottedName flattens an all-named unqualified identifier into a dotted path.
func dottedName(id *ast.Identifier) (string, bool) {
	if id.Scope != ast.ScopeDefault {
		return "", false
	}
	parts := make([]string, 0, len(id.Steps))
	for _, st := range id.Steps {
		if st.Kind != ast.StepNamed {
			return "", false
		}
		parts = append(parts, st.Name)
	}
	return strings.Join(parts, "."), true
}

func (e *Evaluator) step(base value.Value, st ast.Step, f *scope.Frame) value.Value {
	if fv, ok := base.(*value.Fail); ok {
		return fv
	}
	switch st.Kind {
	case ast.StepIndex:
		s, ok := base.(*value.Struct)
		if !ok {
			return value.NewFail(value.FailType, "cannot index %s by position", base.Kind())
		}
		fld, ok := s.At(st.Index)
		if !ok {
			return value.NewFail(value.FailBounds, "index #%d out of bounds (%d fields)", st.Index, s.Len())
		}
		return fld.Value

	case ast.StepComputed:
		key := e.Eval(st.Expr, f)
		if value.IsFail(key) {
			return key
		}
		s, ok := base.(*value.Struct)
		if !ok {
			return value.NewFail(value.FailType, "cannot access keyed field of %s", base.Kind())
		}
		v, found := s.Get(key)
		if !found {
			return value.NewFail(value.FailNotFound, "key %s not found", key.Inspect())
		}
		return v

	default:
		s, ok := base.(*value.Struct)
		if !ok {
			return value.NewFail(value.FailType, "cannot access field %s of %s", st.Name, base.Kind())
		}
		v, found := s.GetNamed(st.Name)
		if !found {
			return value.NewFail(value.FailNotFound, "field %s not found", st.Name)
		}
		return v
	}
}

func (e *Evaluator) evalStructLiteral(lit *ast.StructLiteral, f *scope.Frame) value.Value {
	out := value.NewStruct()
	for _, entry := range lit.Entries {
		if entry.Spread {
			sv := e.Eval(entry.Value, f)
			if value.IsFail(sv) {
				return sv
			}
			src, ok := sv.(*value.Struct)
			if !ok {
				return value.NewFail(value.FailType, "cannot spread %s", sv.Kind())
			}
			out.Merge(src)
			continue
		}

		v := e.Eval(entry.Value, f)
		if value.IsFail(v) {
			return v
		}
		switch {
		case entry.Name != "":
			out.PutNamed(entry.Name, v)
		case entry.Key != nil:
			key := e.Eval(entry.Key, f)
			if value.IsFail(key) {
				return key
			}
			out.Put(key, true, v)
		default:
			out.Append(v)
		}
	}
	return out
}

// evalAssign writes through an identifier path. Top-level unqualified
// assignments build the frame's $out struct and are visible to every later
// statement in the same body.
func (e *Evaluator) evalAssign(a *ast.AssignStatement, f *scope.Frame) value.Value {
	v := e.Eval(a.Value, f)
	if value.IsFail(v) {
		return v
	}

	var target *value.Struct
	switch a.Target.Scope {
	case ast.ScopeDefault, ast.ScopeOut:
		target = f.Out
	case ast.ScopeLocal:
		target = f.Local
	case ast.ScopeCtx:
		target = f.Ctx
	case ast.ScopeMod:
		target = f.Mod
	case ast.ScopeArg:
		target = f.Args
	case ast.ScopeIn:
		return value.NewFail(value.FailType, "$in is immutable")
	default:
		return value.NewFail(value.FailType, "cannot assign through %s", a.Target.Scope.Marker())
	}

	steps := a.Target.Steps
	if len(steps) == 0 {
		return value.NewFail(value.FailType, "missing assignment target field in %s", a.Target.String())
	}

	cur := target
	for _, st := range steps[:len(steps)-1] {
		next := e.step(cur, st, f)
		if value.IsFail(next) {
			return next
		}
		s, ok := next.(*value.Struct)
		if !ok {
			return value.NewFail(value.FailType, "cannot assign into %s", next.Kind())
		}
		cur = s
	}

	last := steps[len(steps)-1]
	switch last.Kind {
	case ast.StepNamed:
		cur.PutNamed(last.Name, v)
	case ast.StepIndex:
		if !cur.SetAt(last.Index, v) {
			return value.NewFail(value.FailBounds, "index #%d out of bounds (%d fields)", last.Index, cur.Len())
		}
	case ast.StepComputed:
		key := e.Eval(last.Expr, f)
		if value.IsFail(key) {
			return key
		}
		cur.Put(key, true, v)
	}

	// A handle copied into an outer scope stays reachable from every frame
	// that can see that scope.
	if a.Target.Scope == ast.ScopeCtx || a.Target.Scope == ast.ScopeMod {
		e.escapeHandles(v, f)
	}
	return v
}

func (e *Evaluator) escapeHandles(v value.Value, f *scope.Frame) {
	hs := handles.Collect(v)
	if len(hs) == 0 {
		return
	}
	for fr := f; fr != nil; {
		for _, h := range hs {
			e.Handles.AddReach(h.ID, fr.ID)
			fr.Touch(h.ID)
		}
		if fr.Caller == scope.NoFrame {
			break
		}
		next, ok := e.Frames.Get(fr.Caller)
		if !ok {
			break
		}
		fr = next
	}
}

// runBody executes a function or block body in its frame. The result is the
// final $out struct, or the last statement's value when the body never wrote
// an output field.
func (e *Evaluator) runBody(body *ast.BlockLiteral, f *scope.Frame) value.Value {
	var last value.Value = value.NIL
	for _, stmt := range body.Body {
		last = e.Eval(stmt, f)
		if value.IsFail(last) {
			slog.Debug("body short-circuited",
				slog.String("statement", stmt.String()),
				slog.String("fail", last.Inspect()))
			return last
		}
	}
	if f.Out.Len() > 0 {
		return f.Out
	}
	if last == nil {
		return value.NIL
	}
	return last
}
