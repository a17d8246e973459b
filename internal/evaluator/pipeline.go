package evaluator

// Pipeline execution. The seed value flows left to right through the stages;
// a fail skips every following stage except a recovery stage, which replaces
// the failed running value and resumes normal flow.

import (
	"log/slog"

	"comp/internal/ast"
	"comp/internal/scope"
	"comp/internal/value"
)

func (e *Evaluator) evalPipeline(p *ast.Pipeline, f *scope.Frame) value.Value {
	cur := e.Eval(p.Seed, f)
	for _, stage := range p.Stages {
		if value.IsFail(cur) {
			if rec, ok := stage.(*ast.RecoverStage); ok {
				slog.Debug("pipeline recovering",
					slog.String("fail", cur.Inspect()),
					slog.String("stage", rec.String()))
				cur = e.Eval(rec.Expr, f)
			}
			continue
		}
		cur = e.evalStage(stage, cur, f)
	}
	return cur
}

func (e *Evaluator) evalStage(stage ast.Stage, cur value.Value, f *scope.Frame) value.Value {
	switch stage := stage.(type) {

	case *ast.InvokeStage:
		return e.evalInvokeStage(stage, cur, f)

	case *ast.BlockStage:
		bv := e.Eval(stage.Block, f)
		if value.IsFail(bv) {
			return bv
		}
		return e.invokeBlockValue(bv, cur, f)

	case *ast.MergeStage:
		fields := e.evalStructLiteral(stage.Fields, f)
		if value.IsFail(fields) {
			return fields
		}
		base, ok := cur.(*value.Struct)
		if !ok {
			return value.NewFail(value.FailType, "cannot merge fields into %s", cur.Kind())
		}
		merged := base.Clone()
		merged.Merge(fields.(*value.Struct))
		return merged

	case *ast.RecoverStage:
		// Running value is healthy, the recovery arm is not evaluated.
		return cur
	}

	return value.NewFail(value.FailType, "unsupported pipeline stage %T", stage)
}

// evalInvokeStage runs a named-function stage: resolve the target, evaluate
// the explicit arguments in the caller's frame, invoke.
func (e *Evaluator) evalInvokeStage(stage *ast.InvokeStage, cur value.Value, f *scope.Frame) value.Value {
	target := e.evalIdentifier(stage.Target, f)
	if value.IsFail(target) {
		return target
	}

	var args *value.Struct
	if stage.Args != nil {
		av := e.evalStructLiteral(stage.Args, f)
		if value.IsFail(av) {
			return av
		}
		args = av.(*value.Struct)
	}

	switch target := target.(type) {
	case *value.FuncRef:
		return e.InvokeFunction(target.Def.FuncName(), cur, args, f)
	case *value.RawBlock, *value.Block:
		return e.invokeBlockValue(target, cur, f)
	default:
		return value.NewFail(value.FailType, "cannot invoke %s", target.Kind())
	}
}

// invokeBlockValue executes a raw or shaped block with the running value as
// input. Shaped blocks morph the input first.
func (e *Evaluator) invokeBlockValue(bv value.Value, in value.Value, caller *scope.Frame) value.Value {
	switch bv := bv.(type) {
	case *value.RawBlock:
		return e.runBlock(bv, in, caller)
	case *value.Block:
		m := e.morphForBlock(bv, in)
		if value.IsFail(m) {
			return m
		}
		return e.runBlock(bv.Raw, m, caller)
	default:
		return value.NewFail(value.FailType, "cannot run %s as a block", bv.Kind())
	}
}

// runBlock derives a frame from the block's defining frame so the block sees
// the ambient scopes and locals of where it was written, not where it runs.
// If the defining frame is gone the caller's frame stands in.
func (e *Evaluator) runBlock(raw *value.RawBlock, in value.Value, caller *scope.Frame) value.Value {
	defining, ok := e.Frames.Get(raw.FrameID)
	if !ok {
		defining = caller
	}
	f := e.Frames.Derive(defining, in)
	f.Local = defining.Local
	defer e.returnFrame(f)
	return e.runBody(raw.Body, f)
}
