// Package comp is the embedding surface of the Comp runtime: prepare parsed
// modules, then invoke their functions. A call is described by four inputs
// (input value, argument struct, context struct, and the runtime's persistent
// module state) and produces one value, possibly a fail.
package comp

import (
	"comp/internal/ast"
	"comp/internal/config"
	"comp/internal/evaluator"
	"comp/internal/foreign"
	"comp/internal/log"
	"comp/internal/module"
	"comp/internal/shape"
	"comp/internal/value"
)

// IsFail reports whether an invocation result is a failure value.
func IsFail(v value.Value) bool { return value.IsFail(v) }

type Runtime struct {
	cfg  config.Configuration
	eval *evaluator.Evaluator
}

// NewRuntime builds a runtime with the configured native modules attached.
func NewRuntime(cfg config.Configuration) *Runtime {
	log.Setup(cfg.LogLevel, cfg.LogFile)
	e := evaluator.New(cfg)
	for name, m := range foreign.Modules(cfg.Foreign) {
		e.Mod.Imports[name] = m
	}
	return &Runtime{cfg: cfg, eval: e}
}

// SetLoader installs the import resolver used by module preparation.
func (r *Runtime) SetLoader(load func(path string) (*module.Module, error)) {
	r.eval.Loader = load
}

// Prepare loads a parsed module's definitions into the runtime.
func (r *Runtime) Prepare(src *ast.Module) error {
	return r.eval.Prepare(src)
}

// Invoke calls a prepared function. The context struct is what the callee
// sees as $ctx; module state persists inside the runtime across calls. A nil
// input or context is treated as empty.
func (r *Runtime) Invoke(name string, in value.Value, args, ctx *value.Struct) value.Value {
	f := r.eval.Frames.New(r.eval.Root().ID, value.NIL, nil, ctx, r.eval.Mod.State)
	defer func() {
		r.eval.Handles.ReleaseFrame(f.ID)
		r.eval.Frames.Release(f)
	}()
	return r.eval.InvokeFunction(name, in, args, f)
}

// Eval evaluates a single expression against the runtime's module state,
// outside any function body. Intended for embedder snippets and tests.
func (r *Runtime) Eval(expr ast.Expression) value.Value {
	f := r.eval.Frames.New(r.eval.Root().ID, value.NIL, nil, nil, r.eval.Mod.State)
	defer func() {
		r.eval.Handles.ReleaseFrame(f.ID)
		r.eval.Frames.Release(f)
	}()
	return r.eval.Eval(expr, f)
}

// Module is the prepared main module, exposed for embedders that register
// native functions of their own.
func (r *Runtime) Module() *module.Module {
	return r.eval.Mod
}

// RegisterForeign installs a native function on the main module under a
// dotted name. Shapes may be nil to accept anything.
func (r *Runtime) RegisterForeign(name string, input, args *shape.Shape, fn module.ForeignFunc) {
	r.eval.Mod.RegisterForeign(name, input, args, fn)
}
