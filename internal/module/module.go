package module

// A prepared module: tag/shape/function/handle namespaces keyed by dotted
// path, an optional imported-namespace table, and the persistent $mod scope
// struct that outlives any single invocation. Registries are built once
// during preparation and read-only afterward.

import (
	"strings"

	"comp/internal/ast"
	"comp/internal/handles"
	"comp/internal/shape"
	"comp/internal/tags"
	"comp/internal/value"
)

// Implementation is one overload of a function: an input shape, an optional
// argument shape, and either a source body or a native function.
type Implementation struct {
	Input  *shape.Shape
	Args   *shape.Shape
	Body   *ast.BlockLiteral
	Native ForeignFunc
}

// Function owns an ordered list of implementations; dispatch selects among
// them by input-shape specificity.
type Function struct {
	Name  string
	Impls []*Implementation
}

func (f *Function) FuncName() string { return f.Name }

// ForeignContext is the bridge native Go functions get into the runtime.
// The evaluator implements it.
type ForeignContext interface {
	Module() *Module
	// GrabResource acquires a handle instance of the named definition,
	// owning the given native resource.
	GrabResource(defPath string, res any) (*value.HandleInstance, error)
	// Live reports a handle usable and returns its resource; dropped or
	// foreign handles produce a fail.
	Live(h *value.HandleInstance) (any, *value.Fail)
	// DivPrecision is the configured decimal division precision.
	DivPrecision() int
}

// ForeignFunc is a plain synchronous native function: it receives the call
// input and the masked argument struct and returns one value, possibly a
// fail. It must not block on runtime re-entry.
type ForeignFunc func(ctx ForeignContext, in value.Value, args *value.Struct) value.Value

type Module struct {
	Name    string
	Tags    *tags.Registry
	Shapes  map[string]*shape.Shape
	Funcs   map[string]*Function
	Handles *handles.Registry
	Imports map[string]*Module
	State   *value.Struct // $mod, persistent across invocations
}

func New(name string) *Module {
	return &Module{
		Name:    name,
		Tags:    tags.NewRegistry(name),
		Shapes:  map[string]*shape.Shape{},
		Funcs:   map[string]*Function{},
		Handles: handles.NewRegistry(),
		Imports: map[string]*Module{},
		State:   value.NewStruct(),
	}
}

// LookupShape resolves a possibly namespaced shape name, local definitions
// taking precedence over imported namespaces of the same name.
func (m *Module) LookupShape(name string) (*shape.Shape, bool) {
	if s, ok := m.Shapes[name]; ok {
		return s, true
	}
	if ns, rest, ok := splitNamespace(name); ok {
		if imp, found := m.Imports[ns]; found {
			return imp.LookupShape(rest)
		}
	}
	return nil, false
}

// LookupFunction resolves a possibly namespaced function name.
func (m *Module) LookupFunction(name string) (*Function, bool) {
	if f, ok := m.Funcs[name]; ok {
		return f, true
	}
	if ns, rest, ok := splitNamespace(name); ok {
		if imp, found := m.Imports[ns]; found {
			return imp.LookupFunction(rest)
		}
	}
	return nil, false
}

// LookupHandle resolves a handle definition through local and imported
// registries; local suffix matches win over imports.
func (m *Module) LookupHandle(path string) (*handles.Definition, error) {
	if ns, rest, ok := splitNamespace(path); ok {
		if imp, found := m.Imports[ns]; found {
			return imp.LookupHandle(rest)
		}
	}
	d, err := m.Handles.Resolve(path)
	if err == nil {
		return d, nil
	}
	for _, imp := range m.Imports {
		if di, e := imp.Handles.Resolve(path); e == nil {
			return di, nil
		}
	}
	return nil, err
}

// ResolveTag resolves a tag path through the local registry first, then
// imported namespaces.
func (m *Module) ResolveTag(path string) (*tags.Def, error) {
	if ns, rest, ok := splitNamespace(path); ok {
		if imp, found := m.Imports[ns]; found {
			if d, err := imp.ResolveTag(rest); err == nil {
				return d, nil
			}
		}
	}
	d, err := m.Tags.Resolve(path)
	if err == nil {
		return d, nil
	}
	for _, imp := range m.Imports {
		if di, e := imp.Tags.Resolve(path); e == nil {
			return di, nil
		}
	}
	return nil, err
}

func splitNamespace(name string) (ns, rest string, ok bool) {
	i := strings.IndexByte(name, '.')
	if i < 0 {
		return "", "", false
	}
	return name[:i], name[i+1:], true
}

// DefineFunction appends an implementation to the named function's overload
// list, creating the function on first use.
func (m *Module) DefineFunction(name string, impl *Implementation) *Function {
	f, ok := m.Funcs[name]
	if !ok {
		f = &Function{Name: name}
		m.Funcs[name] = f
	}
	f.Impls = append(f.Impls, impl)
	return f
}

// RegisterForeign installs a native implementation under a dotted name.
func (m *Module) RegisterForeign(name string, input, args *shape.Shape, fn ForeignFunc) {
	m.DefineFunction(name, &Implementation{Input: input, Args: args, Native: fn})
}
