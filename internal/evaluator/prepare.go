package evaluator

// Module preparation: a single pass over the definition list that populates
// the tag, shape, function and handle registries. Preparation errors are Go
// errors and abort loading; only runtime evaluation produces fail values.

import (
	"fmt"
	"log/slog"

	"comp/internal/ast"
	"comp/internal/handles"
	"comp/internal/module"
	"comp/internal/shape"
	"comp/internal/value"
)

// Prepare loads a parsed module into the evaluator. Definitions are processed
// in order, so shapes may reference earlier shapes and tag defaults may use
// earlier tags.
func (e *Evaluator) Prepare(src *ast.Module) error {
	if src.Name != "" {
		e.Mod.Name = src.Name
		e.Mod.Tags.Namespace = src.Name
	}
	res := &prepResolver{e: e}

	for _, def := range src.Defs {
		switch def := def.(type) {

		case *ast.ImportDecl:
			if e.Loader == nil {
				return fmt.Errorf("import %q: no module loader configured", def.Path)
			}
			imp, err := e.Loader(def.Path)
			if err != nil {
				return fmt.Errorf("import %q: %w", def.Path, err)
			}
			e.Mod.Imports[def.Name] = imp
			slog.Debug("imported module", slog.String("name", def.Name), slog.String("path", def.Path))

		case *ast.TagDecl:
			var assoc value.Value
			if def.Value != nil {
				assoc = e.Eval(def.Value, e.root)
				if fv, ok := assoc.(*value.Fail); ok {
					return fmt.Errorf("tag #%s: associated value: %s", def.Path, fv.Message)
				}
			}
			e.Mod.Tags.Define(def.Path, assoc)

		case *ast.ShapeDecl:
			s, err := shape.Resolve(def.Shape, res)
			if err != nil {
				return fmt.Errorf("shape ~%s: %w", def.Name, err)
			}
			// Referenced shapes are shared; naming one must not rename the
			// shape it aliases.
			if s.Name != "" && s.Name != def.Name {
				cp := *s
				s = &cp
			}
			s.Name = def.Name
			e.Mod.Shapes[def.Name] = s

		case *ast.FuncDecl:
			input, err := shape.Resolve(def.Input, res)
			if err != nil {
				return fmt.Errorf("function %s: input shape: %w", def.Name, err)
			}
			impl := &module.Implementation{Input: input, Body: def.Body}
			if def.Args != nil {
				args, err := shape.Resolve(def.Args, res)
				if err != nil {
					return fmt.Errorf("function %s: argument shape: %w", def.Name, err)
				}
				impl.Args = args
			}
			e.Mod.DefineFunction(def.Name, impl)

		case *ast.HandleDecl:
			d := &handles.Definition{Path: def.Path, DropBody: def.DropBody}
			if def.Shape != nil {
				s, err := shape.Resolve(def.Shape, res)
				if err != nil {
					return fmt.Errorf("handle !%s: %w", def.Path, err)
				}
				d.Shape = s
			}
			e.Mod.Handles.Define(d)

		default:
			return fmt.Errorf("unsupported definition %T", def)
		}
	}
	return nil
}

// prepResolver adapts the evaluator to shape resolution: named shapes come
// from the module table, field defaults are evaluated in the root frame.
type prepResolver struct {
	e *Evaluator
}

func (r *prepResolver) LookupShape(name string) (*shape.Shape, bool) {
	return r.e.Mod.LookupShape(name)
}

func (r *prepResolver) EvalDefault(expr ast.Expression) (value.Value, error) {
	v := r.e.Eval(expr, r.e.root)
	if fv, ok := v.(*value.Fail); ok {
		return nil, fmt.Errorf("default expression %s: %s", expr.String(), fv.Message)
	}
	return v, nil
}
