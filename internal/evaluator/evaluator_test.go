package evaluator

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"comp/internal/ast"
	"comp/internal/config"
	"comp/internal/module"
	"comp/internal/value"
)

func newTestEvaluator(t *testing.T) *Evaluator {
	t.Helper()
	return New(config.Default())
}

func body(stmts ...ast.Statement) *ast.BlockLiteral {
	return &ast.BlockLiteral{Body: stmts}
}

func numFieldShape(names ...string) *ast.ShapeExpr {
	s := &ast.ShapeExpr{}
	for _, n := range names {
		s.Fields = append(s.Fields, ast.ShapeField{Name: n, Shape: &ast.ShapeExpr{Prim: "num"}})
	}
	return s
}

func inField(name string) *ast.Identifier {
	return ast.ScopedName(ast.ScopeIn, name)
}

func mustPrepare(t *testing.T, e *Evaluator, defs ...ast.Def) {
	t.Helper()
	if err := e.Prepare(&ast.Module{Name: "t", Defs: defs}); err != nil {
		t.Fatalf("prepare: %v", err)
	}
}

func evalIn(t *testing.T, e *Evaluator, expr ast.Expression) value.Value {
	t.Helper()
	f := e.Frames.New(e.Root().ID, value.NIL, nil, nil, e.Mod.State)
	return e.Eval(expr, f)
}

func wantFail(t *testing.T, v value.Value, tag string) *value.Fail {
	t.Helper()
	fv, ok := v.(*value.Fail)
	if !ok {
		t.Fatalf("got %s, want a %s fail", v.Inspect(), tag)
	}
	if fv.Tag != tag {
		t.Fatalf("got fail %s, want %s", fv.Tag, tag)
	}
	return fv
}

func TestPipelineInvokesFunction(t *testing.T) {
	e := newTestEvaluator(t)
	mustPrepare(t, e, &ast.FuncDecl{
		Name:  "double",
		Input: numFieldShape("x"),
		Body: body(
			ast.Assign(ast.Name("result"), ast.Bin("*", inField("x"), ast.Num("2"))),
		),
	})

	seed := &ast.StructLiteral{Entries: []ast.StructEntry{{Name: "x", Value: ast.Num("5")}}}
	pipe := &ast.Pipeline{
		Seed:   seed,
		Stages: []ast.Stage{&ast.InvokeStage{Target: ast.Name("double")}},
	}

	out := evalIn(t, e, pipe)
	st, ok := out.(*value.Struct)
	if !ok {
		t.Fatalf("got %s, want struct", out.Inspect())
	}
	got, _ := st.GetNamed("result")
	if diff := cmp.Diff("10", got.Inspect()); diff != "" {
		t.Errorf("result mismatch (-want +got):\n%s", diff)
	}
}

func TestPositionalIndexAccess(t *testing.T) {
	e := newTestEvaluator(t)
	f := e.Frames.New(e.Root().ID, value.NIL, nil, nil, e.Mod.State)

	data := value.NewStruct()
	data.Append(value.Num(10))
	data.Append(value.Num(20))
	f.Out.PutNamed("data", data)

	id := &ast.Identifier{Steps: []ast.Step{
		{Kind: ast.StepNamed, Name: "data"},
		{Kind: ast.StepIndex, Index: 1},
	}}
	if got := e.Eval(id, f); !value.Equal(got, value.Num(20)) {
		t.Errorf("data.#1 = %s, want 20", got.Inspect())
	}

	id.Steps[1].Index = 9
	wantFail(t, e.Eval(id, f), value.FailBounds)
}

func TestFallbackShortCircuits(t *testing.T) {
	e := newTestEvaluator(t)
	calls := 0
	e.Mod.RegisterForeign("bump", nil, nil,
		func(module.ForeignContext, value.Value, *value.Struct) value.Value {
			calls++
			return value.Num(int64(calls))
		})

	bump := &ast.Pipeline{Seed: &ast.StructLiteral{},
		Stages: []ast.Stage{&ast.InvokeStage{Target: ast.Name("bump")}}}

	// Healthy left operand: the right side must not run at all.
	out := evalIn(t, e, ast.Bin("??", ast.Num("5"), bump))
	if !value.Equal(out, value.Num(5)) {
		t.Fatalf("got %s, want 5", out.Inspect())
	}
	if calls != 0 {
		t.Fatalf("fallback evaluated its right operand %d times", calls)
	}

	// Failing left operand: the right side runs exactly once.
	out = evalIn(t, e, ast.Bin("??", ast.Bin("/", ast.Num("1"), ast.Num("0")), bump))
	if !value.Equal(out, value.Num(1)) {
		t.Fatalf("got %s, want recovery value 1", out.Inspect())
	}
	if calls != 1 {
		t.Fatalf("recovery ran %d times, want 1", calls)
	}
}

func TestDivisionByZeroFails(t *testing.T) {
	e := newTestEvaluator(t)
	wantFail(t, evalIn(t, e, ast.Bin("/", ast.Num("1"), ast.Num("0"))), value.FailDivZero)
}

func TestFailTransparentOperators(t *testing.T) {
	e := newTestEvaluator(t)
	div := ast.Bin("/", ast.Num("1"), ast.Num("0"))
	wantFail(t, evalIn(t, e, ast.Bin("+", div, ast.Num("3"))), value.FailDivZero)
	wantFail(t, evalIn(t, e, ast.Bin("<", ast.Num("3"), div)), value.FailDivZero)
	wantFail(t, evalIn(t, e, &ast.UnaryExpression{Op: "!", Operand: div}), value.FailDivZero)
	wantFail(t, evalIn(t, e, &ast.UnaryExpression{Op: "-", Operand: div}), value.FailDivZero)
	if got := evalIn(t, e, &ast.UnaryExpression{Op: "!", Operand: ast.Tag("false")}); !value.Equal(got, value.TRUE) {
		t.Errorf("!#false = %s, want #true", got.Inspect())
	}
}

func TestFallbackKeepsRightFail(t *testing.T) {
	e := newTestEvaluator(t)
	left := ast.Bin("/", ast.Num("1"), ast.Num("0"))
	right := ast.Bin("+", ast.Text("a"), ast.Num("1"))
	wantFail(t, evalIn(t, e, ast.Bin("??", left, right)), value.FailType)
}

func TestDispatchPrefersSpecificOverload(t *testing.T) {
	e := newTestEvaluator(t)
	mustPrepare(t, e,
		&ast.FuncDecl{Name: "describe", Body: body(
			ast.Assign(ast.Name("kind"), ast.Text("anything")),
		)},
		&ast.FuncDecl{Name: "describe", Input: numFieldShape("x"), Body: body(
			ast.Assign(ast.Name("kind"), ast.Text("point")),
		)},
	)

	seed := &ast.StructLiteral{Entries: []ast.StructEntry{{Name: "x", Value: ast.Num("1")}}}
	out := evalIn(t, e, &ast.Pipeline{Seed: seed,
		Stages: []ast.Stage{&ast.InvokeStage{Target: ast.Name("describe")}}})
	if got, _ := out.(*value.Struct).GetNamed("kind"); !value.Equal(got, value.Str("point")) {
		t.Errorf("dispatch chose %s, want the specific overload", got.Inspect())
	}

	out = evalIn(t, e, &ast.Pipeline{Seed: ast.Text("hello"),
		Stages: []ast.Stage{&ast.InvokeStage{Target: ast.Name("describe")}}})
	if got, _ := out.(*value.Struct).GetNamed("kind"); !value.Equal(got, value.Str("anything")) {
		t.Errorf("dispatch chose %s, want the general overload", got.Inspect())
	}
}

func TestDispatchTieFails(t *testing.T) {
	e := newTestEvaluator(t)
	mustPrepare(t, e,
		&ast.FuncDecl{Name: "f", Input: numFieldShape("x"), Body: body(ast.Expr(ast.Num("1")))},
		&ast.FuncDecl{Name: "f", Input: numFieldShape("y"), Body: body(ast.Expr(ast.Num("2")))},
	)
	seed := &ast.StructLiteral{Entries: []ast.StructEntry{
		{Name: "x", Value: ast.Num("1")},
		{Name: "y", Value: ast.Num("2")},
	}}
	out := evalIn(t, e, &ast.Pipeline{Seed: seed,
		Stages: []ast.Stage{&ast.InvokeStage{Target: ast.Name("f")}}})
	wantFail(t, out, value.FailDispatch)
}

func TestDispatchIncomparableOverloadsFail(t *testing.T) {
	e := newTestEvaluator(t)
	mixed := &ast.ShapeExpr{Fields: []ast.ShapeField{
		{Name: "y", Shape: &ast.ShapeExpr{Prim: "text"}},
		{Name: "z"},
	}}
	mustPrepare(t, e,
		&ast.FuncDecl{Name: "g", Input: numFieldShape("x"), Body: body(ast.Expr(ast.Num("1")))},
		&ast.FuncDecl{Name: "g", Input: mixed, Body: body(ast.Expr(ast.Num("2")))},
	)

	// Both overloads accept, neither field set covers the other: the higher
	// score must not win silently.
	seed := &ast.StructLiteral{Entries: []ast.StructEntry{
		{Name: "x", Value: ast.Num("1")},
		{Name: "y", Value: ast.Text("a")},
		{Name: "z", Value: ast.Num("2")},
	}}
	out := evalIn(t, e, &ast.Pipeline{Seed: seed,
		Stages: []ast.Stage{&ast.InvokeStage{Target: ast.Name("g")}}})
	wantFail(t, out, value.FailDispatch)

	// With only x present the single accepting overload still wins.
	seed = &ast.StructLiteral{Entries: []ast.StructEntry{{Name: "x", Value: ast.Num("1")}}}
	out = evalIn(t, e, &ast.Pipeline{Seed: seed,
		Stages: []ast.Stage{&ast.InvokeStage{Target: ast.Name("g")}}})
	if !value.Equal(out, value.Num(1)) {
		t.Errorf("got %s, want 1", out.Inspect())
	}
}

func TestPipelineRecoverStage(t *testing.T) {
	e := newTestEvaluator(t)
	pipe := &ast.Pipeline{
		Seed: ast.Bin("/", ast.Num("1"), ast.Num("0")),
		Stages: []ast.Stage{
			&ast.MergeStage{Fields: &ast.StructLiteral{}}, // skipped
			&ast.RecoverStage{Expr: ast.Num("42")},
		},
	}
	if got := evalIn(t, e, pipe); !value.Equal(got, value.Num(42)) {
		t.Errorf("recover produced %s, want 42", got.Inspect())
	}
}

func TestPipelineMergeStage(t *testing.T) {
	e := newTestEvaluator(t)
	seed := &ast.StructLiteral{Entries: []ast.StructEntry{
		{Name: "a", Value: ast.Num("1")},
		{Name: "b", Value: ast.Num("2")},
	}}
	pipe := &ast.Pipeline{Seed: seed, Stages: []ast.Stage{
		&ast.MergeStage{Fields: &ast.StructLiteral{Entries: []ast.StructEntry{
			{Name: "b", Value: ast.Num("9")},
			{Name: "c", Value: ast.Num("3")},
		}}},
	}}
	out := evalIn(t, e, pipe).(*value.Struct)
	want := value.NewStruct()
	want.PutNamed("a", value.Num(1))
	want.PutNamed("b", value.Num(9))
	want.PutNamed("c", value.Num(3))
	if !value.Equal(out, want) {
		t.Errorf("merge produced %s, want %s", out.Inspect(), want.Inspect())
	}
}

func TestOutReadYourWrites(t *testing.T) {
	e := newTestEvaluator(t)
	mustPrepare(t, e, &ast.FuncDecl{
		Name: "seq",
		Body: body(
			ast.Assign(ast.Name("a"), ast.Num("1")),
			ast.Assign(ast.Name("b"), ast.Bin("+", ast.Name("a"), ast.Num("1"))),
		),
	})
	out := evalIn(t, e, &ast.Pipeline{Seed: &ast.StructLiteral{},
		Stages: []ast.Stage{&ast.InvokeStage{Target: ast.Name("seq")}}})
	if got, _ := out.(*value.Struct).GetNamed("b"); !value.Equal(got, value.Num(2)) {
		t.Errorf("b = %s, want 2", got.Inspect())
	}
}

func TestChainedScopePriority(t *testing.T) {
	e := newTestEvaluator(t)
	args := value.NewStruct()
	args.PutNamed("x", value.Num(1))
	ctx := value.NewStruct()
	ctx.PutNamed("x", value.Num(2))
	ctx.PutNamed("y", value.Num(20))
	mod := value.NewStruct()
	mod.PutNamed("x", value.Num(3))
	mod.PutNamed("z", value.Num(30))
	f := e.Frames.New(e.Root().ID, value.NIL, args, ctx, mod)

	if got := e.Eval(ast.ScopedName(ast.ScopeChain, "x"), f); !value.Equal(got, value.Num(1)) {
		t.Errorf("^x = %s, want the $arg value 1", got.Inspect())
	}
	if got := e.Eval(ast.ScopedName(ast.ScopeChain, "y"), f); !value.Equal(got, value.Num(20)) {
		t.Errorf("^y = %s, want the $ctx value 20", got.Inspect())
	}
	if got := e.Eval(ast.ScopedName(ast.ScopeChain, "z"), f); !value.Equal(got, value.Num(30)) {
		t.Errorf("^z = %s, want the $mod value 30", got.Inspect())
	}
	wantFail(t, e.Eval(ast.ScopedName(ast.ScopeChain, "missing"), f), value.FailNotFound)
}

func TestStrictArgMaskAppliesDefaults(t *testing.T) {
	e := newTestEvaluator(t)
	mustPrepare(t, e, &ast.FuncDecl{
		Name: "greet",
		Args: &ast.ShapeExpr{Fields: []ast.ShapeField{
			{Name: "name", Shape: &ast.ShapeExpr{Prim: "text"}, Default: ast.Text("world")},
		}},
		Body: body(
			ast.Assign(ast.Name("msg"), ast.ScopedName(ast.ScopeArg, "name")),
		),
	})
	out := evalIn(t, e, &ast.Pipeline{Seed: &ast.StructLiteral{},
		Stages: []ast.Stage{&ast.InvokeStage{Target: ast.Name("greet"),
			Args: &ast.StructLiteral{}}}})
	if got, _ := out.(*value.Struct).GetNamed("msg"); !value.Equal(got, value.Str("world")) {
		t.Errorf("msg = %s, want the argument default", got.Inspect())
	}
}

func TestBlockStageRunsClosure(t *testing.T) {
	e := newTestEvaluator(t)
	f := e.Frames.New(e.Root().ID, value.NIL, nil, nil, e.Mod.State)
	f.Local.PutNamed("offset", value.Num(100))

	// $in with no steps is the whole input value.
	wholeIn := &ast.Identifier{Scope: ast.ScopeIn}
	pipe := &ast.Pipeline{
		Seed: ast.Num("5"),
		Stages: []ast.Stage{&ast.BlockStage{Block: &ast.BlockLiteral{Body: []ast.Statement{
			ast.Expr(ast.Bin("+", wholeIn, ast.ScopedName(ast.ScopeLocal, "offset"))),
		}}}},
	}

	if got := e.Eval(pipe, f); !value.Equal(got, value.Num(105)) {
		t.Errorf("block produced %s, want 105", got.Inspect())
	}
}

func TestDropRunsDropBlockOnce(t *testing.T) {
	e := newTestEvaluator(t)
	calls := 0
	e.Mod.RegisterForeign("record", nil, nil,
		func(module.ForeignContext, value.Value, *value.Struct) value.Value {
			calls++
			return value.NIL
		})
	mustPrepare(t, e, &ast.HandleDecl{
		Path: "file",
		DropBody: body(ast.Expr(&ast.Pipeline{Seed: &ast.StructLiteral{},
			Stages: []ast.Stage{&ast.InvokeStage{Target: ast.Name("record")}}})),
	})

	f := e.Frames.New(e.Root().ID, value.NIL, nil, nil, e.Mod.State)
	h := e.Eval(&ast.GrabExpression{Path: "file"}, f)
	inst, ok := h.(*value.HandleInstance)
	if !ok {
		t.Fatalf("grab produced %s", h.Inspect())
	}

	f.Local.PutNamed("h", inst)
	dropIt := &ast.DropExpression{Target: ast.ScopedName(ast.ScopeLocal, "h")}
	e.Eval(dropIt, f)
	e.Eval(dropIt, f)

	if calls != 1 {
		t.Errorf("drop block ran %d times, want exactly once", calls)
	}
	if !inst.Dropped {
		t.Errorf("instance not marked dropped")
	}
}

func TestHandleEscapingViaCtxStaysReachable(t *testing.T) {
	e := newTestEvaluator(t)
	mustPrepare(t, e,
		&ast.HandleDecl{Path: "conn"},
		&ast.FuncDecl{Name: "acquire", Body: body(
			ast.Assign(ast.ScopedName(ast.ScopeCtx, "conn"), &ast.GrabExpression{Path: "conn"}),
		)},
	)

	outer := e.Frames.New(e.Root().ID, value.NIL, nil, value.NewStruct(), e.Mod.State)
	e.InvokeFunction("acquire", value.NIL, nil, outer)

	hv, ok := outer.Ctx.GetNamed("conn")
	if !ok {
		t.Fatalf("handle did not escape into $ctx")
	}
	h := hv.(*value.HandleInstance)
	if h.Dropped {
		t.Fatalf("handle dropped on frame return")
	}
	reaching := e.Handles.Reaching(h.ID)
	found := false
	for _, id := range reaching {
		if id == outer.ID {
			found = true
		}
	}
	if !found {
		t.Errorf("outer frame %d not in reachability set %v", outer.ID, reaching)
	}
}

func TestMorphRejectsDroppedHandle(t *testing.T) {
	e := newTestEvaluator(t)
	mustPrepare(t, e,
		&ast.HandleDecl{Path: "conn"},
		&ast.FuncDecl{
			Name:  "use",
			Input: &ast.ShapeExpr{HandlePath: "conn"},
			Body:  body(ast.Assign(ast.Name("ok"), ast.Tag("true"))),
		},
	)
	f := e.Frames.New(e.Root().ID, value.NIL, nil, nil, e.Mod.State)
	h := e.Eval(&ast.GrabExpression{Path: "conn"}, f).(*value.HandleInstance)

	out := e.InvokeFunction("use", h, nil, f)
	if value.IsFail(out) {
		t.Fatalf("live handle rejected: %s", out.Inspect())
	}

	e.Handles.MarkDropped(h)
	wantFail(t, e.InvokeFunction("use", h, nil, f), value.FailDropped)
}

func TestTemplateRendering(t *testing.T) {
	e := newTestEvaluator(t)
	tmpl := &ast.TemplateLiteral{Parts: []ast.Expression{
		ast.Text("total: "),
		ast.Bin("+", ast.Num("2"), ast.Num("3")),
	}}
	got := evalIn(t, e, tmpl)
	if diff := cmp.Diff(`"total: 5"`, got.Inspect()); diff != "" {
		t.Errorf("template mismatch (-want +got):\n%s", diff)
	}
}

func TestTagResolutionAmbiguity(t *testing.T) {
	e := newTestEvaluator(t)
	mustPrepare(t, e,
		&ast.TagDecl{Path: "net.timeout"},
		&ast.TagDecl{Path: "db.timeout"},
	)
	wantFail(t, evalIn(t, e, ast.Tag("timeout")), value.FailAmbiguous)
	got := evalIn(t, e, ast.Tag("net.timeout"))
	if ref, ok := got.(*value.TagRef); !ok || ref.Path != "net.timeout" {
		t.Errorf("got %s, want #net.timeout", got.Inspect())
	}
}

func TestSpreadStructLiteral(t *testing.T) {
	e := newTestEvaluator(t)
	f := e.Frames.New(e.Root().ID, value.NIL, nil, nil, e.Mod.State)
	base := value.NewStruct()
	base.PutNamed("a", value.Num(1))
	f.Out.PutNamed("base", base)

	lit := &ast.StructLiteral{Entries: []ast.StructEntry{
		{Value: ast.Name("base"), Spread: true},
		{Name: "b", Value: ast.Num("2")},
	}}
	out := e.Eval(lit, f).(*value.Struct)
	if got, _ := out.GetNamed("a"); !value.Equal(got, value.Num(1)) {
		t.Errorf("spread lost field a: %s", out.Inspect())
	}
	if out.Len() != 2 {
		t.Errorf("got %d fields, want 2: %s", out.Len(), out.Inspect())
	}
}
