package oop

import (
	"testing"

	"github.com/strada-lang/runtime/pkg/value"
)

func TestBasicDispatchAndInheritance(t *testing.T) {
	r := NewRegistry()
	animal := r.DefinePackage("Animal")
	animal.AddMethod("speak", func(recv *value.Value, args []*value.Value) *value.Value {
		return value.NewStr("...")
	})
	dog := r.DefinePackage("Dog")
	dog.SetParents("Animal")

	v := value.NewUndef()
	Bless(v, "Dog")
	got := r.Call(v, "speak", nil)
	if got.ToStr() != "..." {
		t.Fatalf("expected inherited speak, got %q", got.ToStr())
	}
}

func TestMethodCacheDoesNotCacheMisses(t *testing.T) {
	r := NewRegistry()
	pkg := r.DefinePackage("Empty")
	if fn, _ := r.FindMethod("Empty", "missing"); fn != nil {
		t.Fatalf("expected miss")
	}
	pkg.AddMethod("missing", func(recv *value.Value, args []*value.Value) *value.Value {
		return value.NewInt(1)
	})
	fn, _ := r.FindMethod("Empty", "missing")
	if fn == nil {
		t.Fatalf("expected method found after late registration, since misses aren't cached")
	}
}

func TestIsaCycleSafe(t *testing.T) {
	r := NewRegistry()
	a := r.DefinePackage("A")
	b := r.DefinePackage("B")
	a.SetParents("B")
	b.SetParents("A") // cycle
	if r.Isa("A", "NotThere") {
		t.Fatalf("expected false for unrelated package despite cycle")
	}
	if !r.Isa("A", "B") {
		t.Fatalf("expected A isa B")
	}
}

func TestAutoloadFallback(t *testing.T) {
	r := NewRegistry()
	p := r.DefinePackage("Proxy")
	var capturedName string
	p.SetAutoload(func(recv *value.Value, args []*value.Value) *value.Value {
		capturedName = args[0].ToStr()
		return value.NewInt(42)
	})
	v := value.NewUndef()
	Bless(v, "Proxy")
	got := r.Call(v, "whatever", nil)
	if got.ToInt() != 42 || capturedName != "whatever" {
		t.Fatalf("expected autoload invoked with method name, got %q", capturedName)
	}
}

func TestSuperResolvesFromParentOnly(t *testing.T) {
	r := NewRegistry()
	base := r.DefinePackage("Base")
	base.AddMethod("greet", func(recv *value.Value, args []*value.Value) *value.Value {
		return value.NewStr("base")
	})
	child := r.DefinePackage("Child")
	child.SetParents("Base")
	child.AddMethod("greet", func(recv *value.Value, args []*value.Value) *value.Value {
		return value.NewStr("child")
	})

	fn := r.Super("Child", "greet")
	if fn == nil {
		t.Fatalf("expected SUPER:: to resolve")
	}
	if got := fn(nil, nil).ToStr(); got != "base" {
		t.Fatalf("expected SUPER:: to find Base's greet, got %q", got)
	}
}

// Scenario E from spec.md §8: method modifier order is before*, around
// (wrapping original), after*.
func TestMethodModifierOrder(t *testing.T) {
	r := NewRegistry()
	var order []string
	p := r.DefinePackage("Widget")
	p.AddMethod("render", func(recv *value.Value, args []*value.Value) *value.Value {
		order = append(order, "original")
		return value.NewStr("rendered")
	})
	p.AddModifier("render", Before, func(recv *value.Value, args []*value.Value) *value.Value {
		order = append(order, "before")
		return nil
	}, nil)
	p.AddModifier("render", After, func(recv *value.Value, args []*value.Value) *value.Value {
		order = append(order, "after")
		return nil
	}, nil)
	p.AddModifier("render", Around, nil, func(original Method, recv *value.Value, args []*value.Value) *value.Value {
		order = append(order, "around-pre")
		result := original(recv, args)
		order = append(order, "around-post")
		return result
	})

	v := value.NewUndef()
	Bless(v, "Widget")
	got := r.Call(v, "render", nil)

	want := []string{"before", "around-pre", "original", "around-post", "after"}
	if len(order) != len(want) {
		t.Fatalf("expected order %v, got %v", want, order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("expected order %v, got %v", want, order)
		}
	}
	if got.ToStr() != "rendered" {
		t.Fatalf("expected result from original through around, got %q", got.ToStr())
	}
}

func TestOperatorOverloadLeftThenRight(t *testing.T) {
	r := Global
	left := r.DefinePackage("LeftType")
	left.SetOverload("+", func(recv *value.Value, args []*value.Value) *value.Value {
		return value.NewStr("left-handled")
	})

	a := value.NewUndef()
	Bless(a, "LeftType")
	b := value.NewInt(5)

	result, handled := BinaryOp("+", a, b)
	if !handled || result.ToStr() != "left-handled" {
		t.Fatalf("expected left operand overload to win")
	}
}

func TestDestroyRunsOnceGuarded(t *testing.T) {
	count := 0
	p := Global.DefinePackage("Guarded")
	p.SetDestroy(func(recv *value.Value, args []*value.Value) *value.Value {
		count++
		return nil
	})
	v := value.NewTagged(value.CPointer, "probe")
	Bless(v, "Guarded")
	value.Decref(v)
	if count != 1 {
		t.Fatalf("expected DESTROY to run exactly once, got %d", count)
	}
}

func TestDestroyWalksInheritanceChain(t *testing.T) {
	count := 0
	parent := Global.DefinePackage("DestroyParent")
	parent.SetDestroy(func(recv *value.Value, args []*value.Value) *value.Value {
		count++
		return nil
	})
	child := Global.DefinePackage("DestroyChild")
	child.SetParents("DestroyParent")

	v := value.NewTagged(value.CPointer, "probe")
	Bless(v, "DestroyChild")
	value.Decref(v)
	if count != 1 {
		t.Fatalf("expected inherited DESTROY to run once, got %d", count)
	}
}

func TestDestroyPrefersOwnOverInherited(t *testing.T) {
	parentRan, childRan := false, false
	parent := Global.DefinePackage("OverrideParent")
	parent.SetDestroy(func(recv *value.Value, args []*value.Value) *value.Value {
		parentRan = true
		return nil
	})
	child := Global.DefinePackage("OverrideChild")
	child.SetParents("OverrideParent")
	child.SetDestroy(func(recv *value.Value, args []*value.Value) *value.Value {
		childRan = true
		return nil
	})

	v := value.NewTagged(value.CPointer, "probe")
	Bless(v, "OverrideChild")
	value.Decref(v)
	if !childRan || parentRan {
		t.Fatalf("expected only the child's own DESTROY to run, childRan=%v parentRan=%v", childRan, parentRan)
	}
}

func TestStringifyOverload(t *testing.T) {
	p := Global.DefinePackage("Stringable")
	p.SetOverload(`""`, func(recv *value.Value, args []*value.Value) *value.Value {
		return value.NewStr("custom-string")
	})
	v := value.NewUndef()
	Bless(v, "Stringable")
	if got := Stringify(v); got != "custom-string" {
		t.Fatalf("expected overloaded stringify, got %q", got)
	}
}
