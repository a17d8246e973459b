package evaluator

// Overload selection and the calling convention. A call is described by four
// inputs (input value, argument struct, context struct, module state) and
// produces one value. Dispatch picks the most specific accepting
// implementation; ties are a dispatch failure, never a silent choice.

import (
	"log/slog"

	"comp/internal/ast"
	"comp/internal/handles"
	"comp/internal/module"
	"comp/internal/number"
	"comp/internal/scope"
	"comp/internal/shape"
	"comp/internal/value"
)

// InvokeFunction performs a full call: overload selection, input morph,
// argument masking, body execution in a fresh frame.
func (e *Evaluator) InvokeFunction(name string, in value.Value, args *value.Struct, caller *scope.Frame) value.Value {
	fn, ok := e.Mod.LookupFunction(name)
	if !ok {
		return value.NewFail(value.FailNotFound, "function %s not found", name)
	}
	return e.invoke(fn, in, args, caller)
}

func (e *Evaluator) invoke(fn *module.Function, in value.Value, args *value.Struct, caller *scope.Frame) value.Value {
	impl, failv := selectImpl(fn, in)
	if failv != nil {
		return failv
	}

	if impl.Input != nil {
		in = shape.Morph(in, impl.Input)
		if value.IsFail(in) {
			return in
		}
	}

	// With a declared argument shape, the supplied arguments are strictly
	// masked (defaults applied, every field required) and the ambient scopes
	// are permissively filtered to the same shape. Without one the caller's
	// scopes pass through untouched.
	ctx, mod := caller.Ctx, caller.Mod
	if impl.Args != nil {
		mv := shape.Mask(structOrEmpty(args), impl.Args, true)
		if value.IsFail(mv) {
			return mv
		}
		args = mv.(*value.Struct)
		ctx = maskScope(caller.Ctx, impl.Args)
		mod = maskScope(caller.Mod, impl.Args)
	}

	f := e.Frames.New(caller.ID, in, args, ctx, mod)
	for _, h := range handles.Collect(in) {
		f.Touch(h.ID)
		e.Handles.AddReach(h.ID, f.ID)
	}
	defer e.returnFrame(f)

	if impl.Native != nil {
		prev := e.current
		e.current = f
		res := impl.Native(e, in, f.Args)
		e.current = prev
		return res
	}

	slog.Debug("invoke", slog.String("function", fn.Name), slog.Int("frame", f.ID))
	return e.runBody(impl.Body, f)
}

// selectImpl scores every implementation whose input shape accepts the input
// and returns the single best one. A shared top score, an empty candidate
// set, or a winner whose shape does not subsume every other accepting shape
// is a dispatch failure.
func selectImpl(fn *module.Function, in value.Value) (*module.Implementation, *value.Fail) {
	type candidate struct {
		impl  *module.Implementation
		shape *shape.Shape
		score int
	}
	var cands []candidate
	for _, impl := range fn.Impls {
		s := impl.Input
		if s == nil {
			s = shape.AnyShape
		}
		if !shape.Accepts(in, s) {
			continue
		}
		cands = append(cands, candidate{impl, s, shape.Score(s)})
	}
	if len(cands) == 0 {
		return nil, value.NewFail(value.FailDispatch, "no overload of %s matches input", fn.Name)
	}
	best := cands[0]
	for _, c := range cands[1:] {
		if c.score > best.score {
			best = c
		}
	}
	for _, c := range cands {
		if c.impl == best.impl {
			continue
		}
		if c.score == best.score {
			return nil, value.NewFail(value.FailDispatch, "ambiguous call to %s: multiple overloads match equally", fn.Name)
		}
		if !shape.Subsumes(best.shape, c.shape) {
			return nil, value.NewFail(value.FailDispatch, "ambiguous call to %s: no overload is most specific", fn.Name)
		}
	}
	return best.impl, nil
}

func maskScope(s *value.Struct, argShape *shape.Shape) *value.Struct {
	mv := shape.Mask(s, argShape, false)
	if ms, ok := mv.(*value.Struct); ok {
		return ms
	}
	return value.NewStruct()
}

func structOrEmpty(s *value.Struct) *value.Struct {
	if s == nil {
		return value.NewStruct()
	}
	return s
}

func (e *Evaluator) morphForBlock(b *value.Block, in value.Value) value.Value {
	if s, ok := b.Shape.(*shape.Shape); ok {
		return shape.Morph(in, s)
	}
	return in
}

// returnFrame retires a call frame: its handle-reachability entries go away
// and the arena slot is cleared.
func (e *Evaluator) returnFrame(f *scope.Frame) {
	e.Handles.ReleaseFrame(f.ID)
	e.Frames.Release(f)
}

// evalGrab acquires a handle instance. The optional init expression becomes
// the instance's resource for source-level handles; native definitions
// acquire through their registered grab function instead.
func (e *Evaluator) evalGrab(g *ast.GrabExpression, f *scope.Frame) value.Value {
	def, err := e.Mod.LookupHandle(g.Path)
	if err != nil {
		return handleLookupFail(err)
	}

	var res any
	if g.Init != nil {
		iv := e.Eval(g.Init, f)
		if value.IsFail(iv) {
			return iv
		}
		res = iv
	}

	inst := e.Handles.Grab(def, res, f.ID)
	f.Touch(inst.ID)
	slog.Debug("grab", slog.String("handle", def.Path), slog.Int("instance", inst.ID))
	return inst
}

// evalDrop releases a handle. The first drop marks the instance dropped, then
// runs the definition's drop block if one exists, otherwise a dispatchable
// "drop" function when the module provides one, and finally closes any native
// resource. Later drops are no-ops.
func (e *Evaluator) evalDrop(d *ast.DropExpression, f *scope.Frame) value.Value {
	tv := e.Eval(d.Target, f)
	if value.IsFail(tv) {
		return tv
	}
	h, ok := tv.(*value.HandleInstance)
	if !ok {
		return value.NewFail(value.FailType, "cannot drop %s", tv.Kind())
	}
	if !e.Handles.MarkDropped(h) {
		return h
	}

	def := e.Handles.DefinitionOf(h)
	switch {
	case def != nil && def.DropBody != nil:
		df := e.Frames.New(f.ID, h, f.Args, f.Ctx, f.Mod)
		df.Local = f.Local
		out := e.runBody(def.DropBody, df)
		e.returnFrame(df)
		if value.IsFail(out) {
			slog.Warn("drop block failed",
				slog.String("handle", h.Path),
				slog.String("fail", out.Inspect()))
		}

	case e.hasDropFunction():
		payload := dropPayload(h)
		out := e.InvokeFunction("drop", payload, nil, f)
		if fv, isf := out.(*value.Fail); isf && fv.Tag != value.FailDispatch {
			slog.Warn("drop function failed",
				slog.String("handle", h.Path),
				slog.String("fail", fv.Inspect()))
		}
	}

	if err := e.Handles.CloseResource(h); err != nil {
		slog.Warn("closing handle resource",
			slog.String("handle", h.Path),
			slog.String("error", err.Error()))
	}
	return h
}

func (e *Evaluator) hasDropFunction() bool {
	_, ok := e.Mod.LookupFunction("drop")
	return ok
}

// dropPayload is what generic cleanup code receives: the stored resource when
// it is a language value, otherwise a descriptor struct naming the handle.
func dropPayload(h *value.HandleInstance) value.Value {
	if v, ok := h.Resource.(value.Value); ok {
		return v
	}
	s := value.NewStruct()
	s.PutNamed("handle", value.Str(h.Path))
	return s
}

// --- ForeignContext ---

func (e *Evaluator) Module() *module.Module { return e.Mod }

func (e *Evaluator) GrabResource(defPath string, res any) (*value.HandleInstance, error) {
	def, err := e.Mod.LookupHandle(defPath)
	if err != nil {
		return nil, err
	}
	f := e.current
	if f == nil {
		f = e.root
	}
	inst := e.Handles.Grab(def, res, f.ID)
	f.Touch(inst.ID)
	return inst, nil
}

func (e *Evaluator) Live(h *value.HandleInstance) (any, *value.Fail) {
	if h.Dropped {
		return nil, value.NewFail(value.FailDropped, "handle %s already dropped", h.Path)
	}
	if h.Resource == nil {
		return nil, value.NewFail(value.FailType, "handle %s carries no native resource", h.Path)
	}
	return h.Resource, nil
}

func (e *Evaluator) DivPrecision() int {
	if e.Cfg.DivPrecision > 0 {
		return e.Cfg.DivPrecision
	}
	return number.DefaultDivPrecision
}

func handleLookupFail(err error) value.Value {
	switch err.(type) {
	case *handles.AmbiguousError:
		return value.NewFail(value.FailAmbiguous, "%s", err.Error())
	case *handles.NotFoundError:
		return value.NewFail(value.FailNotFound, "%s", err.Error())
	}
	return value.NewFail(value.FailNotFound, "%s", err.Error())
}
