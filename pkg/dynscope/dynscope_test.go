package dynscope

import (
	"testing"

	"github.com/strada-lang/runtime/pkg/value"
)

type fakeGlobals struct {
	vars map[string]*value.Value
}

func newFakeGlobals() *fakeGlobals { return &fakeGlobals{vars: map[string]*value.Value{}} }

func (g *fakeGlobals) Get(name string) *value.Value {
	v, ok := g.vars[name]
	if !ok {
		return value.UndefSingleton
	}
	return v
}

func (g *fakeGlobals) Set(name string, v *value.Value) {
	g.vars[name] = v
}

func TestSaveRestoreRoundTrip(t *testing.T) {
	const key = 1
	g := newFakeGlobals()
	g.Set("x", value.NewInt(10))

	Save(key, g, "x")
	g.Set("x", value.NewInt(20))
	if g.Get("x").ToInt() != 20 {
		t.Fatalf("expected x==20 inside scope")
	}
	Restore(key, g)
	if g.Get("x").ToInt() != 10 {
		t.Fatalf("expected x restored to 10, got %d", g.Get("x").ToInt())
	}
}

func TestRestoreToUnwindsNested(t *testing.T) {
	const key = 2
	g := newFakeGlobals()
	g.Set("x", value.NewInt(1))

	depth0 := Depth(key)
	Save(key, g, "x")
	g.Set("x", value.NewInt(2))
	Save(key, g, "x")
	g.Set("x", value.NewInt(3))

	RestoreTo(key, g, depth0)
	if g.Get("x").ToInt() != 1 {
		t.Fatalf("expected fully unwound to original value 1, got %d", g.Get("x").ToInt())
	}
	if Depth(key) != depth0 {
		t.Fatalf("expected depth restored to %d, got %d", depth0, Depth(key))
	}
}

func TestGrowsPastInitialCapacity(t *testing.T) {
	const key = 3
	g := newFakeGlobals()
	g.Set("x", value.NewInt(0))
	depth0 := Depth(key)
	for i := 0; i < defaultCapacity+10; i++ {
		Save(key, g, "x")
	}
	if Depth(key) != depth0+defaultCapacity+10 {
		t.Fatalf("expected save stack to grow without dropping saves")
	}
	RestoreTo(key, g, depth0)
}
