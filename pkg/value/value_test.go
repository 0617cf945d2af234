package value

import "testing"

func TestImmortalRefcountNoop(t *testing.T) {
	v := NewInt(5)
	if !v.IsImmortal() {
		t.Fatalf("expected small int 5 to be immortal")
	}
	before := v.Refcount()
	Incref(v)
	Decref(v)
	Decref(v)
	if v.Refcount() != before {
		t.Fatalf("immortal refcount changed: before=%d after=%d", before, v.Refcount())
	}
}

func TestIncrefDecrefRoundtrip(t *testing.T) {
	v := NewInt(100000)
	if v.IsImmortal() {
		t.Fatalf("expected large int to be heap allocated, not immortal")
	}
	before := v.Refcount()
	Incref(v)
	if v.Refcount() != before+1 {
		t.Fatalf("expected refcount to increment")
	}
	Decref(v)
	if v.Refcount() != before {
		t.Fatalf("expected refcount to return to prior value")
	}
}

func TestDecrefToZeroFrees(t *testing.T) {
	freed := false
	RegisterDestructor(CPointer, func(v *Value) { freed = true })
	v := NewTagged(CPointer, "probe")
	Decref(v)
	if !freed {
		t.Fatalf("expected destructor to run when refcount reaches zero")
	}
}

func TestStrBinarySafe(t *testing.T) {
	s := NewStr("a\x00b")
	if s.Size() != 3 {
		t.Fatalf("expected stored length 3, got %d", s.Size())
	}
	if string(s.Bytes()) != "a\x00b" {
		t.Fatalf("embedded NUL not preserved")
	}
}

func TestCoercions(t *testing.T) {
	if NewUndef().ToBool() {
		t.Fatalf("undef should be falsy")
	}
	if NewStr("0").ToBool() {
		t.Fatalf("\"0\" should be falsy")
	}
	if NewStr("").ToBool() {
		t.Fatalf("empty string should be falsy")
	}
	if !NewStr("0.0").ToBool() {
		t.Fatalf("\"0.0\" should be truthy (only exact \"0\" and \"\" are falsy)")
	}
	if got := NewStr("42abc").ToInt(); got != 42 {
		t.Fatalf("expected leading-prefix parse 42, got %d", got)
	}
	if got := NewStr("  -3.5xyz").ToNum(); got != -3.5 {
		t.Fatalf("expected leading-prefix parse -3.5, got %v", got)
	}
}

func TestBlessAndWeakMeta(t *testing.T) {
	v := NewTagged(Ref, nil)
	if v.BlessedPackage() != "" {
		t.Fatalf("fresh value should be unblessed")
	}
	v.SetBlessedPackage("Dog")
	if v.BlessedPackage() != "Dog" {
		t.Fatalf("expected blessed package Dog")
	}
	v.SetBlessedPackage("Cat")
	if v.BlessedPackage() != "Cat" {
		t.Fatalf("rebless should overwrite in place")
	}
	if v.IsWeak() {
		t.Fatalf("fresh REF should not be weak")
	}
	v.SetWeak(true)
	if !v.IsWeak() {
		t.Fatalf("expected weak flag set")
	}
}
