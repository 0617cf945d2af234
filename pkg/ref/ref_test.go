package ref

import (
	"testing"

	"github.com/strada-lang/runtime/pkg/hashmap"
	"github.com/strada-lang/runtime/pkg/value"
)

func TestCreateDerefRefcount(t *testing.T) {
	target := value.NewInt(1000)
	r := Create(target)
	if target.Refcount() != 2 {
		t.Fatalf("expected target refcount 2 after Create, got %d", target.Refcount())
	}
	got := Deref(r)
	if got.ToInt() != 1000 {
		t.Fatalf("expected deref to yield 1000")
	}
	if target.Refcount() != 3 {
		t.Fatalf("expected Deref to incref, got %d", target.Refcount())
	}
}

func TestCreateTakeDoesNotIncref(t *testing.T) {
	target := value.NewInt(1007)
	before := target.Refcount()
	r := CreateTake(target)
	if target.Refcount() != before {
		t.Fatalf("expected CreateTake not to incref")
	}
	value.Decref(r)
}

func TestDerefSetMutatesSharedTarget(t *testing.T) {
	target := value.NewInt(1)
	r := Create(target)
	DerefSet(r, value.NewStr("hello"))
	if target.ToStr() != "hello" {
		t.Fatalf("expected target mutated in place, got %q", target.ToStr())
	}
}

func TestWeakenSharedClonesInsteadOfMutating(t *testing.T) {
	target := value.NewInt(5)
	r := Create(target)
	value.Incref(r) // simulate a second holder of r
	w := Weaken(r)
	if w == r {
		t.Fatalf("expected weaken on a shared cell to clone")
	}
	if !w.IsWeak() {
		t.Fatalf("expected clone to be weak")
	}
	if r.IsWeak() {
		t.Fatalf("original shared cell should remain strong")
	}
}

func TestWeakenUnsharedConvertsInPlace(t *testing.T) {
	target := value.NewInt(500)
	r := Create(target)
	before := target.Refcount()
	w := Weaken(r)
	if w != r {
		t.Fatalf("expected in-place conversion for refcount-1 cell")
	}
	if !r.IsWeak() {
		t.Fatalf("expected cell to be weak after Weaken")
	}
	if target.Refcount() != before-1 {
		t.Fatalf("expected target refcount decremented by Weaken, before=%d after=%d", before, target.Refcount())
	}
}

// Scenario B from spec.md §8: cycle break via weak ref.
// a = {}; b = {}; a.parent = b; b.child = a; weaken(b.child).
// Dropping the external handle to a must free both a and b.
func TestCycleBreakViaWeakRef(t *testing.T) {
	freedA, freedB := false, false
	a := hashmap.New()
	b := hashmap.New()

	aMap := hashmap.Payload(a)
	bMap := hashmap.Payload(b)

	// a.parent = b (strong)
	aMap.Set("parent", b)
	// b.child = a (weak, created via a fresh ref cell over a)
	childRef := Create(a)
	weakChild := Weaken(childRef)
	bMap.SetTake("child", weakChild)
	// keep the weak cell itself alive past b's free so it can be inspected
	value.Incref(weakChild)

	value.RegisterPreFreeHook(func(v *value.Value) {
		if v == a {
			freedA = true
		}
		if v == b {
			freedB = true
		}
	})

	// Drop the external handle to a: the weak ref does not count, so a is
	// freed now, and freeing a releases its "parent" entry's hold on b.
	value.Decref(a)
	// Now drop the external handle to b, which is b's last strong holder.
	value.Decref(b)

	if !freedA || !freedB {
		t.Fatalf("expected both a and b freed: freedA=%v freedB=%v", freedA, freedB)
	}
	if weakChild.Payload().(*Cell).target != nil {
		t.Fatalf("expected weak cell's target nulled after a was freed")
	}
}
