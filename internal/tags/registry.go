package tags

// Hierarchical named constants. Tags live in a dot-separated namespace;
// defining #a.b.c implicitly creates #a and #a.b as valueless parents.
// Lookup by partial path resolves a suffix against every defined tag and
// refuses to guess between ambiguous matches.

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"comp/internal/value"
)

// NotRelated is the sentinel returned by hierarchy tests for unrelated tags.
const NotRelated = -1

type Def struct {
	Path      string
	Namespace string
	Value     value.Value // optional associated value, nil if none
	Parent    *Def
	children  map[string]*Def
}

func (d *Def) Children() []*Def {
	out := make([]*Def, 0, len(d.children))
	for _, c := range d.children {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

type NotFoundError struct {
	Suffix string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("tag #%s not found", e.Suffix)
}

type AmbiguousError struct {
	Suffix  string
	Matches []string
}

func (e *AmbiguousError) Error() string {
	return fmt.Sprintf("ambiguous tag reference #%s: matches %s", e.Suffix, strings.Join(e.Matches, ", "))
}

type Registry struct {
	Namespace string
	roots     map[string]*Def
	all       map[string]*Def
}

func NewRegistry(namespace string) *Registry {
	r := &Registry{
		Namespace: namespace,
		roots:     map[string]*Def{},
		all:       map[string]*Def{},
	}
	r.seedBuiltins()
	return r
}

func (r *Registry) seedBuiltins() {
	for _, path := range []string{
		"true", "false",
		value.FailType, value.FailNotFound, value.FailDivZero,
		value.FailAmbiguous, value.FailBounds, value.FailDispatch,
		value.FailDropped,
	} {
		r.Define(path, nil)
	}
}

// Define registers a tag path, creating valueless parents as needed.
// Redefining a path replaces its value without touching its children.
func (r *Registry) Define(path string, v value.Value) *Def {
	if existing, ok := r.all[path]; ok {
		if existing.Value != nil || v != nil {
			slog.Debug("tag redefined", slog.String("path", path))
		}
		existing.Value = v
		return existing
	}

	var parent *Def
	if i := strings.LastIndexByte(path, '.'); i >= 0 {
		parent = r.Define(path[:i], r.valueOf(path[:i]))
	}

	def := &Def{
		Path:      path,
		Namespace: r.Namespace,
		Value:     v,
		Parent:    parent,
		children:  map[string]*Def{},
	}
	r.all[path] = def
	if parent == nil {
		r.roots[path] = def
	} else {
		parent.children[path] = def
	}
	return def
}

func (r *Registry) valueOf(path string) value.Value {
	if d, ok := r.all[path]; ok {
		return d.Value
	}
	return nil
}

// Lookup finds a tag by exact path.
func (r *Registry) Lookup(path string) (*Def, bool) {
	d, ok := r.all[path]
	return d, ok
}

// Resolve finds the single tag whose full path ends in the given suffix.
// Zero matches or more than one are reported as errors, never guessed.
func (r *Registry) Resolve(suffix string) (*Def, error) {
	if d, ok := r.all[suffix]; ok {
		return d, nil
	}

	var matches []string
	for path := range r.all {
		if strings.HasSuffix(path, "."+suffix) {
			matches = append(matches, path)
		}
	}
	switch len(matches) {
	case 0:
		return nil, &NotFoundError{Suffix: suffix}
	case 1:
		return r.all[matches[0]], nil
	default:
		sort.Strings(matches)
		return nil, &AmbiguousError{Suffix: suffix, Matches: matches}
	}
}

// All returns every defined path, sorted. Used by module introspection.
func (r *Registry) All() []string {
	out := make([]string, 0, len(r.all))
	for p := range r.all {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// IsA walks from child toward the root and returns the number of levels
// between it and the claimed ancestor (0 when identical), or NotRelated.
// It never errors, so it composes with the fallback operator.
func IsA(child, ancestor *Def) int {
	levels := 0
	for d := child; d != nil; d = d.Parent {
		if d.Path == ancestor.Path {
			return levels
		}
		levels++
	}
	return NotRelated
}

// PathDistance applies the same ancestry rule to bare dotted paths; it is
// shared with handle-definition compatibility checks.
func PathDistance(child, ancestor string) int {
	if child == ancestor {
		return 0
	}
	if !strings.HasPrefix(child, ancestor+".") {
		return NotRelated
	}
	return strings.Count(child[len(ancestor):], ".")
}
