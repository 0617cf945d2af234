package oop

import (
	"log"
	"sync"
	"unicode"

	"github.com/strada-lang/runtime/pkg/value"
)

// destroying guards against DESTROY reentrancy per blessed value: the
// same cell should never run its own DESTROY twice, and a DESTROY that
// (directly or via a dropped reference) triggers another free of the same
// cell must not recurse.
var (
	destroyingMu sync.Mutex
	destroying   = map[*value.Value]bool{}
)

// sanePackageName rejects the corruption signatures called out in
// spec.md §4.6: empty, absurdly long, or non-printable-leading names —
// the kind of garbage a stomped-on pointer would produce in the original
// C implementation. In Go the string itself can't be a wild pointer, but
// a blessed package field can still be corrupted by misuse of SetPayload
// on a value whose Meta was recycled elsewhere; the check is kept as the
// same defensive boundary the spec documents.
func sanePackageName(pkg string) bool {
	if pkg == "" || len(pkg) > 4096 {
		return false
	}
	r := rune(pkg[0])
	return unicode.IsPrint(r)
}

func runDestroy(v *value.Value) {
	pkg := v.BlessedPackage()
	if pkg == "" {
		return
	}
	if !sanePackageName(pkg) {
		log.Printf("oop: skipping DESTROY on corrupted package name for %s value", v.Tag())
		return
	}

	destroyingMu.Lock()
	if destroying[v] {
		destroyingMu.Unlock()
		return
	}
	destroying[v] = true
	destroyingMu.Unlock()
	defer func() {
		destroyingMu.Lock()
		delete(destroying, v)
		destroyingMu.Unlock()
	}()

	if fn := findDestroy(pkg); fn != nil {
		fn(v, nil)
	}
}

// findDestroy searches pkgName's isa chain, depth-first left-to-right,
// for the nearest defined DESTROY — the same MRO order findMethodRaw
// uses for ordinary methods, since spec.md §4.1 step 4 requires DESTROY
// to walk the inheritance chain rather than only firing for the exact
// blessed package.
func findDestroy(pkgName string) Method {
	visited := map[string]bool{}
	var walk func(string) Method
	walk = func(name string) Method {
		if visited[name] {
			return nil
		}
		visited[name] = true
		p := Global.lookupPackage(name)
		if p == nil {
			return nil
		}
		if p.destroy != nil {
			return p.destroy
		}
		for _, parent := range p.isaList {
			if fn := walk(parent); fn != nil {
				return fn
			}
		}
		return nil
	}
	return walk(pkgName)
}

func init() {
	value.RegisterPreFreeHook(runDestroy)
}

// Stringify invokes the `""` overload for a blessed value if one is
// registered anywhere in its inheritance graph, falling back to the
// value's default ToStr otherwise. Generated code calls this instead of
// Value.ToStr whenever a value might be blessed.
func Stringify(v *value.Value) string {
	pkg := v.BlessedPackage()
	if pkg == "" {
		return v.ToStr()
	}
	if fn := findOverload(pkg, `""`); fn != nil {
		return fn(v, nil).ToStr()
	}
	return v.ToStr()
}

func findOverload(pkgName, symbol string) Method {
	visited := map[string]bool{}
	var walk func(string) Method
	walk = func(name string) Method {
		if visited[name] {
			return nil
		}
		visited[name] = true
		p := Global.lookupPackage(name)
		if p == nil {
			return nil
		}
		if fn, ok := p.overloads[symbol]; ok {
			return fn
		}
		for _, parent := range p.isaList {
			if fn := walk(parent); fn != nil {
				return fn
			}
		}
		return nil
	}
	return walk(pkgName)
}

// BinaryOp dispatches a two-operand operator overload: the left operand's
// package is checked first (reversed=false), then the right
// (reversed=true), matching spec.md §4.6. Returns (result, true) on a
// handled dispatch, or (nil, false) if neither operand overloads symbol.
func BinaryOp(symbol string, left, right *value.Value) (*value.Value, bool) {
	if pkg := left.BlessedPackage(); pkg != "" {
		if fn := findOverload(pkg, symbol); fn != nil {
			return fn(left, []*value.Value{right, value.NewInt(0)}), true
		}
	}
	if pkg := right.BlessedPackage(); pkg != "" {
		if fn := findOverload(pkg, symbol); fn != nil {
			return fn(right, []*value.Value{left, value.NewInt(1)}), true
		}
	}
	return nil, false
}

// UnaryOp dispatches a single-operand operator overload (e.g. "neg", "!").
func UnaryOp(symbol string, operand *value.Value) (*value.Value, bool) {
	pkg := operand.BlessedPackage()
	if pkg == "" {
		return nil, false
	}
	if fn := findOverload(pkg, symbol); fn != nil {
		return fn(operand, nil), true
	}
	return nil, false
}
