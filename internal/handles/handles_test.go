package handles

import (
	"strings"
	"testing"

	"comp/internal/value"
)

type closeCounter struct {
	closed int
}

func (c *closeCounter) Close() error {
	c.closed++
	return nil
}

func TestGrabRegistersFrame(t *testing.T) {
	a := NewArena()
	def := &Definition{Path: "db.sqlite"}
	inst := a.Grab(def, nil, 7)

	if inst.Path != "db.sqlite" || inst.Dropped {
		t.Fatalf("unexpected instance state: %s", inst.Inspect())
	}
	if got := a.Reaching(inst.ID); len(got) != 1 || got[0] != 7 {
		t.Errorf("reaching = %v, want [7]", got)
	}
}

func TestMarkDroppedIdempotent(t *testing.T) {
	a := NewArena()
	inst := a.Grab(&Definition{Path: "file"}, nil, 0)

	transitions := 0
	for i := 0; i < 3; i++ {
		if a.MarkDropped(inst) {
			transitions++
		}
	}
	if transitions != 1 {
		t.Errorf("drop transitioned %d times, want exactly once", transitions)
	}
	if !inst.Dropped {
		t.Errorf("instance should be dropped")
	}
}

func TestCloseResource(t *testing.T) {
	a := NewArena()
	c := &closeCounter{}
	inst := a.Grab(&Definition{Path: "file"}, c, 0)
	if err := a.CloseResource(inst); err != nil {
		t.Fatal(err)
	}
	if c.closed != 1 {
		t.Errorf("resource closed %d times, want 1", c.closed)
	}
}

func TestReleaseFrame(t *testing.T) {
	a := NewArena()
	inst := a.Grab(&Definition{Path: "file"}, nil, 1)
	a.AddReach(inst.ID, 2)
	a.ReleaseFrame(1)
	if got := a.Reaching(inst.ID); len(got) != 1 || got[0] != 2 {
		t.Errorf("reaching = %v, want [2]", got)
	}
}

func TestRegistryResolve(t *testing.T) {
	r := NewRegistry()
	r.Define(&Definition{Path: "db.sqlite"})
	r.Define(&Definition{Path: "db.mysql"})

	d, err := r.Resolve("sqlite")
	if err != nil {
		t.Fatal(err)
	}
	if d.Path != "db.sqlite" {
		t.Errorf("resolved %s", d.Path)
	}

	if _, err := r.Resolve("missing"); err == nil {
		t.Errorf("expected not-found error")
	}

	r.Define(&Definition{Path: "cache.sqlite"})
	_, err = r.Resolve("sqlite")
	if err == nil || !strings.Contains(err.Error(), "ambiguous") {
		t.Errorf("expected ambiguity, got %v", err)
	}
}

func TestCollectWalksValues(t *testing.T) {
	a := NewArena()
	h1 := a.Grab(&Definition{Path: "db"}, nil, 0)
	h2 := a.Grab(&Definition{Path: "file"}, nil, 0)

	s := value.NewStruct()
	s.PutNamed("conn", h1)
	inner := value.NewStruct()
	inner.PutNamed("f", h2)
	inner.PutNamed("again", h2)
	s.PutNamed("nested", inner)

	got := Collect(s)
	if len(got) != 2 {
		t.Fatalf("collected %d handles, want 2 (deduplicated)", len(got))
	}
}
