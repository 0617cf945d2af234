package exception

import (
	"testing"

	"github.com/strada-lang/runtime/pkg/value"
)

func TestNormalExitKeepsValuesAlive(t *testing.T) {
	const key = 1
	mark := TryEnter(key)
	v := value.NewTagged(value.CPointer, "x")
	RegisterCleanup(key, v)
	TryExit(key, mark)
	if v.Refcount() != 1 {
		t.Fatalf("expected normal exit not to decref escaping values, got refcount %d", v.Refcount())
	}
}

func TestUnwindDrainsCleanupStack(t *testing.T) {
	const key = 2
	freed := false
	value.RegisterDestructor(value.Socket, func(v *value.Value) { freed = true })
	mark := TryEnter(key)
	v := value.NewTagged(value.Socket, "probe")
	RegisterCleanup(key, v)
	TryUnwind(key, mark)
	if !freed {
		t.Fatalf("expected unwind to decref and free registered cleanup values")
	}
}

func TestThrowCatchRoundTrip(t *testing.T) {
	const key = 3
	thrown, ok := Try(func() {
		Throw(key, value.NewStr("boom"))
	})
	if !ok {
		t.Fatalf("expected to catch thrown value")
	}
	if thrown.Value.ToStr() != "boom" {
		t.Fatalf("expected thrown value \"boom\", got %q", thrown.Value.ToStr())
	}
}

func TestTryWithoutThrowReportsNoCatch(t *testing.T) {
	thrown, ok := Try(func() {})
	if ok || thrown != nil {
		t.Fatalf("expected no catch when fn doesn't throw")
	}
}

func TestNestedTryMarksRestoreCorrectly(t *testing.T) {
	const key = 4
	outer := TryEnter(key)
	a := value.NewTagged(value.CPointer, "a")
	RegisterCleanup(key, a)

	inner := TryEnter(key)
	b := value.NewTagged(value.CPointer, "b")
	RegisterCleanup(key, b)
	TryExit(key, inner) // inner exits normally, b escapes to outer scope

	TryExit(key, outer)
	if a.Refcount() != 1 || b.Refcount() != 1 {
		t.Fatalf("expected both a and b to escape untouched")
	}
}
