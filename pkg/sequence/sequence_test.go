package sequence

import (
	"testing"

	"github.com/strada-lang/runtime/pkg/value"
)

func strs(v *value.Value) []string {
	s := from(v)
	out := make([]string, 0, s.Length())
	for i := 0; i < s.Length(); i++ {
		out = append(out, s.Get(i).ToStr())
	}
	return out
}

func eqStrSlice(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Scenario A from spec.md §8: deque wraparound.
func TestDequeWraparound(t *testing.T) {
	v := New()
	s := from(v)

	s.Push(value.NewStr("a"))
	s.Push(value.NewStr("b"))
	if got := s.Shift().ToStr(); got != "a" {
		t.Fatalf("expected shift to yield \"a\", got %q", got)
	}
	s.Unshift(value.NewStr("c"))

	if got := strs(v); !eqStrSlice(got, []string{"c", "b"}) {
		t.Fatalf("expected [c b], got %v", got)
	}
}

func TestPushPopRefcountBalanced(t *testing.T) {
	v := New()
	s := from(v)
	x := value.NewTagged(value.CPointer, "x")
	before := x.Refcount()
	s.Push(x)
	popped := s.Pop()
	if popped != x {
		t.Fatalf("expected pop to return the pushed value")
	}
	value.Decref(x) // undo Push's increment since Pop doesn't decrement
	if x.Refcount() != before {
		t.Fatalf("push/pop should leave refcount unchanged net: before=%d after=%d", before, x.Refcount())
	}
}

func TestNegativeIndexing(t *testing.T) {
	v := Of(value.NewInt(1), value.NewInt(2), value.NewInt(3))
	s := from(v)
	if got := s.Get(-1).ToInt(); got != 3 {
		t.Fatalf("expected Get(-1)==3, got %d", got)
	}
	if !value.IsUndef(s.Get(99)) {
		t.Fatalf("expected out-of-range Get to return undef")
	}
}

func TestSetExtendsWithUndef(t *testing.T) {
	v := New()
	s := from(v)
	s.Set(2, value.NewInt(9))
	if s.Length() != 3 {
		t.Fatalf("expected length 3 after Set(2, ...), got %d", s.Length())
	}
	if !value.IsUndef(s.Get(0)) || !value.IsUndef(s.Get(1)) {
		t.Fatalf("expected gap positions to be undef")
	}
	if s.Get(2).ToInt() != 9 {
		t.Fatalf("expected Get(2)==9")
	}
}

func TestReverse(t *testing.T) {
	v := Of(value.NewInt(1), value.NewInt(2), value.NewInt(3))
	s := from(v)
	s.Reverse()
	got := []int64{s.Get(0).ToInt(), s.Get(1).ToInt(), s.Get(2).ToInt()}
	if got[0] != 3 || got[1] != 2 || got[2] != 1 {
		t.Fatalf("expected reversed [3 2 1], got %v", got)
	}
}

func TestRange(t *testing.T) {
	asc := from(Range(1, 3))
	if asc.Length() != 3 || asc.Get(0).ToInt() != 1 || asc.Get(2).ToInt() != 3 {
		t.Fatalf("ascending range wrong: len=%d", asc.Length())
	}
	desc := from(Range(3, 1))
	if desc.Length() != 3 || desc.Get(0).ToInt() != 3 || desc.Get(2).ToInt() != 1 {
		t.Fatalf("descending range wrong: len=%d", desc.Length())
	}
}

func TestSplice(t *testing.T) {
	v := Of(value.NewInt(1), value.NewInt(2), value.NewInt(3), value.NewInt(4))
	s := from(v)
	removed := from(s.Splice(1, 2, []*value.Value{value.NewInt(20), value.NewInt(21)}))
	if removed.Length() != 2 || removed.Get(0).ToInt() != 2 || removed.Get(1).ToInt() != 3 {
		t.Fatalf("expected removed=[2 3], got len=%d", removed.Length())
	}
	want := []int64{1, 20, 21, 4}
	for i, w := range want {
		if s.Get(i).ToInt() != w {
			t.Fatalf("splice result mismatch at %d: want %d got %d", i, w, s.Get(i).ToInt())
		}
	}
}

func TestSortStringAndNumeric(t *testing.T) {
	v := Of(value.NewInt(30), value.NewInt(4), value.NewInt(100))
	s := from(v)
	s.SortString()
	got := strs(v)
	if !eqStrSlice(got, []string{"100", "30", "4"}) {
		t.Fatalf("lexicographic sort wrong: %v", got)
	}

	v2 := Of(value.NewInt(30), value.NewInt(4), value.NewInt(100))
	s2 := from(v2)
	s2.SortNumeric()
	nums := []int64{s2.Get(0).ToInt(), s2.Get(1).ToInt(), s2.Get(2).ToInt()}
	if nums[0] != 4 || nums[1] != 30 || nums[2] != 100 {
		t.Fatalf("numeric sort wrong: %v", nums)
	}
}
