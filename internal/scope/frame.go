package scope

// Frame is the live state of one function invocation: the scopes visible to
// the body, the handles reachable through it, and a link to the invoking
// frame. Frames live in an arena and refer to each other by id, never by
// owning pointer.

import (
	"log/slog"

	"comp/internal/value"
)

// NoFrame is the caller id of the root frame.
const NoFrame = -1

type Frame struct {
	ID     int
	Caller int

	In    value.Value   // immutable call input
	Out   *value.Struct // result under construction; later statements see earlier writes
	Ctx   *value.Struct // ambient context, read from the caller
	Mod   *value.Struct // module state
	Args  *value.Struct // explicit call arguments
	Local *value.Struct // ephemeral scope, never part of the result

	Handles map[int]struct{} // handle instance ids reachable through this frame

	released bool
}

type Arena struct {
	frames []*Frame
}

func NewArena() *Arena {
	return &Arena{}
}

// New allocates a frame seeded with the given scopes and an empty output.
// Nil scope structs are replaced with empty ones.
func (a *Arena) New(caller int, in value.Value, args, ctx, mod *value.Struct) *Frame {
	if in == nil {
		in = value.NIL
	}
	f := &Frame{
		ID:      len(a.frames),
		Caller:  caller,
		In:      in,
		Out:     value.NewStruct(),
		Ctx:     orEmpty(ctx),
		Mod:     orEmpty(mod),
		Args:    orEmpty(args),
		Local:   value.NewStruct(),
		Handles: map[int]struct{}{},
	}
	a.frames = append(a.frames, f)
	slog.Debug("new frame", slog.Int("id", f.ID), slog.Int("caller", caller))
	return f
}

// Derive allocates a frame for block execution: fresh output and locals, the
// remaining scopes shared with the defining frame, input replaced.
func (a *Arena) Derive(defining *Frame, in value.Value) *Frame {
	f := a.New(defining.ID, in, defining.Args, defining.Ctx, defining.Mod)
	return f
}

func (a *Arena) Get(id int) (*Frame, bool) {
	if id < 0 || id >= len(a.frames) {
		return nil, false
	}
	f := a.frames[id]
	if f == nil || f.released {
		return nil, false
	}
	return f, true
}

// Release marks a frame dead once its call has returned. The slot is cleared
// so surviving values cannot resurrect the frame's scopes.
func (a *Arena) Release(f *Frame) {
	f.released = true
	a.frames[f.ID] = nil
}

func orEmpty(s *value.Struct) *value.Struct {
	if s == nil {
		return value.NewStruct()
	}
	return s
}

// Touch records that a handle instance is reachable through this frame.
func (f *Frame) Touch(handleID int) {
	f.Handles[handleID] = struct{}{}
}

// ChainLookup reads a field through the chained view: $arg first, then $ctx,
// then $mod, first hit wins.
func (f *Frame) ChainLookup(key value.Value) (value.Value, bool) {
	for _, s := range []*value.Struct{f.Args, f.Ctx, f.Mod} {
		if v, ok := s.Get(key); ok {
			return v, true
		}
	}
	return nil, false
}

// ChainMerged materializes the chained view for spreading: all three scopes
// merged with $arg winning overlapping keys.
func (f *Frame) ChainMerged() *value.Struct {
	out := value.NewStruct()
	out.Merge(f.Mod)
	out.Merge(f.Ctx)
	out.Merge(f.Args)
	return out
}

// ScopeStruct returns the mutable struct behind a writable scope marker.
func (f *Frame) ScopeStruct(marker string) (*value.Struct, bool) {
	switch marker {
	case "$out":
		return f.Out, true
	case "$ctx":
		return f.Ctx, true
	case "$mod":
		return f.Mod, true
	case "$arg":
		return f.Args, true
	case "@":
		return f.Local, true
	}
	return nil, false
}
