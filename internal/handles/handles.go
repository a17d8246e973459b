package handles

// Acquisition and release tracking for opaque external resources. Instances
// live in an arena and reference frames only by id; frames reference
// instances the same way, so neither side owns the other.

import (
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"

	"comp/internal/ast"
	"comp/internal/shape"
	"comp/internal/value"
)

// Definition describes a grabbable resource kind. Definitions are
// hierarchical; an instance of a descendant path satisfies an ancestor
// constraint, the same rule tags use.
type Definition struct {
	Path     string
	Shape    *shape.Shape      // optional structural shape, for cleanup dispatch
	DropBody *ast.BlockLiteral // optional drop block
}

type Registry struct {
	defs map[string]*Definition
}

func NewRegistry() *Registry {
	return &Registry{defs: map[string]*Definition{}}
}

func (r *Registry) Define(def *Definition) {
	r.defs[def.Path] = def
}

func (r *Registry) Lookup(path string) (*Definition, bool) {
	d, ok := r.defs[path]
	return d, ok
}

type NotFoundError struct {
	Suffix string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("handle definition !%s not found", e.Suffix)
}

type AmbiguousError struct {
	Suffix  string
	Matches []string
}

func (e *AmbiguousError) Error() string {
	return fmt.Sprintf("ambiguous handle reference !%s: matches %s", e.Suffix, strings.Join(e.Matches, ", "))
}

// Resolve finds the single definition whose path ends in the given suffix.
func (r *Registry) Resolve(suffix string) (*Definition, error) {
	if d, ok := r.defs[suffix]; ok {
		return d, nil
	}
	var matches []string
	for path := range r.defs {
		if strings.HasSuffix(path, "."+suffix) {
			matches = append(matches, path)
		}
	}
	switch len(matches) {
	case 0:
		return nil, &NotFoundError{Suffix: suffix}
	case 1:
		return r.defs[matches[0]], nil
	default:
		sort.Strings(matches)
		return nil, &AmbiguousError{Suffix: suffix, Matches: matches}
	}
}

// Arena tracks every live instance and the set of frames that can reach it.
type Arena struct {
	instances []*value.HandleInstance
	defs      []*Definition
	reach     []map[int]struct{}
}

func NewArena() *Arena {
	return &Arena{}
}

// Grab acquires a new instance of a definition, optionally owning a native
// resource, and records the grabbing frame as reaching it.
func (a *Arena) Grab(def *Definition, res any, frameID int) *value.HandleInstance {
	inst := &value.HandleInstance{
		ID:       len(a.instances),
		Path:     def.Path,
		Resource: res,
	}
	a.instances = append(a.instances, inst)
	a.defs = append(a.defs, def)
	a.reach = append(a.reach, map[int]struct{}{frameID: {}})
	slog.Debug("handle grabbed",
		slog.String("path", def.Path),
		slog.Int("id", inst.ID),
		slog.Int("frame", frameID))
	return inst
}

// DefinitionOf returns the definition an instance was grabbed from.
func (a *Arena) DefinitionOf(inst *value.HandleInstance) *Definition {
	return a.defs[inst.ID]
}

// MarkDropped transitions an instance to dropped. It reports whether this
// call performed the transition; drop is idempotent and later calls are
// no-ops.
func (a *Arena) MarkDropped(inst *value.HandleInstance) bool {
	if inst.Dropped {
		return false
	}
	inst.Dropped = true
	slog.Debug("handle dropped", slog.String("path", inst.Path), slog.Int("id", inst.ID))
	return true
}

// CloseResource closes a native resource if the instance owns one.
func (a *Arena) CloseResource(inst *value.HandleInstance) error {
	if c, ok := inst.Resource.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// AddReach records that a frame can reach an instance.
func (a *Arena) AddReach(instID, frameID int) {
	if instID < 0 || instID >= len(a.reach) {
		return
	}
	a.reach[instID][frameID] = struct{}{}
}

// ReleaseFrame removes a returning frame from every reachability set.
// Instances that escaped through the return value must be re-registered by
// the caller before this runs.
func (a *Arena) ReleaseFrame(frameID int) {
	for _, set := range a.reach {
		delete(set, frameID)
	}
}

// Reaching reports the frames currently reaching an instance, sorted.
func (a *Arena) Reaching(instID int) []int {
	if instID < 0 || instID >= len(a.reach) {
		return nil
	}
	out := make([]int, 0, len(a.reach[instID]))
	for id := range a.reach[instID] {
		out = append(out, id)
	}
	sort.Ints(out)
	return out
}

// Collect walks a value and returns every handle instance reachable through
// it: handles themselves, struct fields, and tag payloads.
func Collect(v value.Value) []*value.HandleInstance {
	var out []*value.HandleInstance
	seen := map[int]struct{}{}
	var walk func(v value.Value)
	walk = func(v value.Value) {
		switch v := v.(type) {
		case *value.HandleInstance:
			if _, dup := seen[v.ID]; !dup {
				seen[v.ID] = struct{}{}
				out = append(out, v)
			}
		case *value.Struct:
			for _, f := range v.Fields() {
				walk(f.Value)
			}
		case *value.TagRef:
			if v.Payload != nil {
				walk(v.Payload)
			}
		case *value.Fail:
			if v.Fields != nil {
				walk(v.Fields)
			}
		}
	}
	walk(v)
	return out
}
