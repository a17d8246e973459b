package scope

import (
	"testing"

	"comp/internal/value"
)

func TestChainLookupPriority(t *testing.T) {
	args := value.NewStruct()
	args.PutNamed("x", value.Num(1))
	ctx := value.NewStruct()
	ctx.PutNamed("x", value.Num(2))
	ctx.PutNamed("y", value.Num(20))
	mod := value.NewStruct()
	mod.PutNamed("x", value.Num(3))
	mod.PutNamed("z", value.Num(30))

	a := NewArena()
	f := a.New(NoFrame, value.NIL, args, ctx, mod)

	if v, _ := f.ChainLookup(value.Str("x")); !value.Equal(v, value.Num(1)) {
		t.Errorf("^x = %s, want the $arg value", v.Inspect())
	}
	if v, _ := f.ChainLookup(value.Str("y")); !value.Equal(v, value.Num(20)) {
		t.Errorf("^y = %s, want the $ctx value", v.Inspect())
	}
	if v, _ := f.ChainLookup(value.Str("z")); !value.Equal(v, value.Num(30)) {
		t.Errorf("^z = %s, want the $mod value", v.Inspect())
	}
	if _, ok := f.ChainLookup(value.Str("missing")); ok {
		t.Errorf("^missing should not resolve")
	}
}

func TestChainMergedPriority(t *testing.T) {
	args := value.NewStruct()
	args.PutNamed("x", value.Num(1))
	ctx := value.NewStruct()
	ctx.PutNamed("x", value.Num(2))
	ctx.PutNamed("y", value.Num(20))
	mod := value.NewStruct()
	mod.PutNamed("z", value.Num(30))

	a := NewArena()
	f := a.New(NoFrame, value.NIL, args, ctx, mod)

	m := f.ChainMerged()
	if v, _ := m.GetNamed("x"); !value.Equal(v, value.Num(1)) {
		t.Errorf("spread ^ must let $arg win ties, got %s", v.Inspect())
	}
	if v, _ := m.GetNamed("y"); !value.Equal(v, value.Num(20)) {
		t.Errorf("spread ^ lost $ctx field")
	}
	if v, _ := m.GetNamed("z"); !value.Equal(v, value.Num(30)) {
		t.Errorf("spread ^ lost $mod field")
	}
}

func TestArenaReleaseClearsSlot(t *testing.T) {
	a := NewArena()
	f := a.New(NoFrame, value.NIL, nil, nil, nil)
	if _, ok := a.Get(f.ID); !ok {
		t.Fatalf("frame should be live after allocation")
	}
	a.Release(f)
	if _, ok := a.Get(f.ID); ok {
		t.Fatalf("released frame must not be reachable")
	}
}

func TestDeriveSharesAmbientScopes(t *testing.T) {
	a := NewArena()
	ctx := value.NewStruct()
	ctx.PutNamed("k", value.Num(9))
	parent := a.New(NoFrame, value.NIL, nil, ctx, nil)
	child := a.Derive(parent, value.Num(1))

	if child.Ctx != parent.Ctx {
		t.Errorf("derived frame must share $ctx with its defining frame")
	}
	if child.Out == parent.Out || child.Local == parent.Local {
		t.Errorf("derived frame must get fresh $out and locals")
	}
	if !value.Equal(child.In, value.Num(1)) {
		t.Errorf("derived frame input not replaced")
	}
}

func TestTouchRecordsHandles(t *testing.T) {
	a := NewArena()
	f := a.New(NoFrame, value.NIL, nil, nil, nil)
	f.Touch(3)
	f.Touch(3)
	if len(f.Handles) != 1 {
		t.Errorf("expected one reachable handle, got %d", len(f.Handles))
	}
}
