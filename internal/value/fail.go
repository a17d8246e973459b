package value

// Failures are ordinary values: a struct tagged with a hierarchical failure
// kind and a human-readable message, optionally carrying extra diagnostic
// fields. The evaluator's operators are fail-transparent; only the fallback
// forms intercept these.

import "fmt"

// Builtin failure kinds. Each is a tag under #fail in every registry.
const (
	FailType      = "fail.type"
	FailNotFound  = "fail.not_found"
	FailDivZero   = "fail.div_zero"
	FailAmbiguous = "fail.ambiguous"
	FailBounds    = "fail.bounds"
	FailDispatch  = "fail.dispatch"
	FailDropped   = "fail.dropped"
)

type Fail struct {
	Tag     string // hierarchical kind, e.g. "fail.type"
	Message string
	Fields  *Struct // optional diagnostics (offending field, expected shape)
}

func (f *Fail) Kind() Kind { return FAIL_VALUE }

func (f *Fail) Inspect() string {
	return fmt.Sprintf("fail(#%s %q)", f.Tag, f.Message)
}

func NewFail(tag, format string, a ...any) *Fail {
	return &Fail{Tag: tag, Message: fmt.Sprintf(format, a...)}
}

// WithField attaches a diagnostic field and returns the fail for chaining.
func (f *Fail) WithField(name string, v Value) *Fail {
	if f.Fields == nil {
		f.Fields = NewStruct()
	}
	f.Fields.PutNamed(name, v)
	return f
}

// AsStruct renders the fail in its struct form: a #fail-kind tag plus the
// message and any diagnostic fields.
func (f *Fail) AsStruct() *Struct {
	s := NewStruct()
	s.PutNamed("kind", &TagRef{Path: f.Tag})
	s.PutNamed("message", Str(f.Message))
	if f.Fields != nil {
		s.Merge(f.Fields)
	}
	return s
}
