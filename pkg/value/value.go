// Package value implements the tagged heap cell (C1) at the center of the
// runtime: every dynamically-typed value generated code touches is a
// *Value. Hot fields (tag, refcount, size, numeric/pointer payload) are
// inline; cold fields (blessed package, tied delegate, weak flag) live
// behind a lazily-allocated *Meta so that the common untagged/unblessed
// case stays small.
//
// Tag-specific teardown (the ARRAY/HASH/REF/... cases of the free cascade
// in spec.md §4.1) is dispatched through RegisterDestructor rather than a
// hard switch over concrete types: pkg/value cannot import pkg/sequence,
// pkg/hashmap, pkg/ref, etc., since those packages hold a *Value in their
// own payloads, so the owning package registers its teardown function in
// an init(). This generalizes the spec's own "regex cache free function is
// late-bound so programs without regex never link it" rule (§4.1 step 5)
// to every container/coordination tag.
package value

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/strada-lang/runtime/pkg/pool"
)

// Tag identifies the payload a Value carries.
type Tag uint8

const (
	Undef Tag = iota
	Int
	Num
	Str
	Array
	Hash
	Ref
	FileHandle
	Regex
	Socket
	CStruct
	CPointer
	Closure
	Future
	Channel
	Atomic
)

func (t Tag) String() string {
	switch t {
	case Undef:
		return "UNDEF"
	case Int:
		return "INT"
	case Num:
		return "NUM"
	case Str:
		return "STR"
	case Array:
		return "ARRAY"
	case Hash:
		return "HASH"
	case Ref:
		return "REF"
	case FileHandle:
		return "FILEHANDLE"
	case Regex:
		return "REGEX"
	case Socket:
		return "SOCKET"
	case CStruct:
		return "CSTRUCT"
	case CPointer:
		return "CPOINTER"
	case Closure:
		return "CLOSURE"
	case Future:
		return "FUTURE"
	case Channel:
		return "CHANNEL"
	case Atomic:
		return "ATOMIC"
	default:
		return "UNKNOWN"
	}
}

// immortalCount is the refcount sentinel used by singletons and the
// small-integer pool. Any count at or above this value is treated as
// immortal: Incref/Decref become no-ops.
const immortalCount int32 = 1_000_000_000

// Meta carries the cold fields of a Value. A nil *Meta means every cold
// field reads as its zero value ("field unset"); all accessors below go
// through ensureMeta/metaOrNil so callers never see that distinction.
type Meta struct {
	BlessedPackage string // interned package name, or "" when unblessed
	StructName     string // C-struct / tagged-pointer subtype name
	IsTied         bool
	TiedObj        *Value // delegate object for a tied container
	IsWeak         bool   // this cell is a weak REF
}

var metaFreelist = pool.NewFreelist[Meta](4096)

func newMeta() *Meta { return metaFreelist.Get(func() *Meta { return &Meta{} }) }

func recycleMeta(m *Meta) {
	*m = Meta{}
	metaFreelist.Put(m)
}

// Value is the tagged heap cell (C1).
type Value struct {
	tag      Tag
	refcount int32
	size     int64 // string byte length, or struct size for CSTRUCT
	ival     int64
	fval     float64
	payload  any // owning pointer for ARRAY/HASH/REF/STR/FILEHANDLE/... tags
	meta     *Meta
}

var cellFreelist = pool.NewFreelist[Value](16384)

// threadingActive is flipped exactly once, from false to true, the first
// time a thread pool or raw thread is spawned (see pkg/taskpool). Once
// true, refcount updates use sequentially-consistent atomics; it never
// flips back (§5 of spec.md).
var threadingActive atomic.Bool

// ActivateThreading flips the global refcount mode to atomic. Idempotent.
func ActivateThreading() { threadingActive.Store(true) }

// ThreadingActive reports whether the atomic refcount path is in effect.
func ThreadingActive() bool { return threadingActive.Load() }

func alloc() *Value {
	if threadingActive.Load() {
		return &Value{}
	}
	return cellFreelist.Get(func() *Value { return &Value{} })
}

// Tag returns the value's type tag.
func (v *Value) Tag() Tag { return v.tag }

// Refcount returns the current reference count (diagnostic/test use only).
func (v *Value) Refcount() int32 {
	if threadingActive.Load() {
		return atomic.LoadInt32(&v.refcount)
	}
	return v.refcount
}

// IsImmortal reports whether v is a pool/singleton cell exempt from
// refcounting.
func (v *Value) IsImmortal() bool { return v.Refcount() >= immortalCount }

// Incref bumps the reference count. No-op on immortal cells.
func Incref(v *Value) {
	if v == nil || v.IsImmortal() {
		return
	}
	if threadingActive.Load() {
		atomic.AddInt32(&v.refcount, 1)
		return
	}
	v.refcount++
}

// Decref drops the reference count, freeing v when it reaches zero.
// No-op on immortal cells.
func Decref(v *Value) {
	if v == nil || v.IsImmortal() {
		return
	}
	var n int32
	if threadingActive.Load() {
		n = atomic.AddInt32(&v.refcount, -1)
	} else {
		v.refcount--
		n = v.refcount
	}
	if n == 0 {
		free(v)
	}
}

// destructors holds the late-bound per-tag teardown hooks. Every entry
// beyond the tags value.go itself understands (STR) is registered by the
// owning package's init(), mirroring the regex-cache late binding called
// out in spec.md §4.1 step 5.
var destructors [16]func(*Value)

// RegisterDestructor installs the teardown function invoked when a cell
// tagged t reaches refcount zero, after every pre-free hook (weak-registry
// notify, DESTROY) common to every tag has already run. Intended to
// be called from an owning package's init(); panics on double
// registration since that would silently mask one destructor.
func RegisterDestructor(t Tag, fn func(*Value)) {
	if destructors[t] != nil {
		panic(fmt.Sprintf("value: destructor already registered for tag %s", t))
	}
	destructors[t] = fn
}

// preFreeHooks run for every cell regardless of tag, in registration
// order, before the tag's destructor. Packages that need a hook at every
// free (pkg/ref for weak-registry notify, pkg/oop for DESTROY) append here
// from init(). Weak-cell unregistration happens in pkg/ref's REF
// destructor, and no hook releases a tied delegate.
var preFreeHooks []func(*Value)

// RegisterPreFreeHook appends a hook invoked for every value immediately
// before tag-specific teardown.
func RegisterPreFreeHook(fn func(*Value)) {
	preFreeHooks = append(preFreeHooks, fn)
}

func free(v *Value) {
	for _, hook := range preFreeHooks {
		hook(v)
	}
	if fn := destructors[v.tag]; fn != nil {
		fn(v)
	}
	// STR payloads are plain []byte: Go's GC reclaims the backing array,
	// no destructor registration needed.
	v.recycleMetaIfAny()
	*v = Value{}
	if !threadingActive.Load() {
		cellFreelist.Put(v)
	}
}

// --- construction ---

func newCell(tag Tag) *Value {
	v := alloc()
	v.tag = tag
	v.refcount = 1
	return v
}

// NewUndef returns a fresh UNDEF cell. Prefer the shared UndefSingleton
// where a borrowed (non-owned) undef is acceptable.
func NewUndef() *Value { return newCell(Undef) }

// NewInt returns an INT cell. Values in the immortal small-integer range
// are served from the shared pool (see smallInt) rather than allocated.
func NewInt(n int64) *Value {
	if iv, ok := smallInt(n); ok {
		return iv
	}
	v := newCell(Int)
	v.ival = n
	return v
}

// NewNum returns a NUM cell.
func NewNum(f float64) *Value {
	v := newCell(Num)
	v.fval = f
	return v
}

// NewStr returns a STR cell from a Go string (binary-safe: embedded NULs
// are preserved via the stored length).
func NewStr(s string) *Value {
	v := newCell(Str)
	buf := append([]byte(nil), s...)
	v.payload = buf
	v.size = int64(len(buf))
	return v
}

// NewStrLen returns a STR cell from an explicit byte slice and length,
// for binary-safe construction from C-style buffers.
func NewStrLen(b []byte, n int) *Value {
	v := newCell(Str)
	buf := append([]byte(nil), b[:n]...)
	v.payload = buf
	v.size = int64(n)
	return v
}

// NewTagged returns a cell of the given container/coordination tag owning
// payload. Used by pkg/sequence, pkg/hashmap, pkg/ref, pkg/filehandle,
// pkg/rtchan (CHANNEL), and pkg/atomic (ATOMIC) so construction stays in
// one place while ownership
// stays in the specialized package.
func NewTagged(tag Tag, payload any) *Value {
	v := newCell(tag)
	v.payload = payload
	return v
}

// --- accessors ---

// Payload returns the tag-specific owning pointer (nil for scalar tags).
func (v *Value) Payload() any { return v.payload }

// SetPayload replaces the owning pointer without touching refcount.
func (v *Value) SetPayload(p any) { v.payload = p }

// IntVal returns the raw int64 payload (valid only when Tag()==Int).
func (v *Value) IntVal() int64 { return v.ival }

// NumVal returns the raw float64 payload (valid only when Tag()==Num).
func (v *Value) NumVal() float64 { return v.fval }

// SetNumVal overwrites the NUM payload in place.
func (v *Value) SetNumVal(f float64) { v.fval = f }

// SetIntVal overwrites the INT payload in place.
func (v *Value) SetIntVal(n int64) { v.ival = n }

// Bytes returns the STR payload's bytes (valid only when Tag()==Str).
func (v *Value) Bytes() []byte {
	b, _ := v.payload.([]byte)
	return b
}

// SetBytes replaces the STR payload in place and updates the stored length.
func (v *Value) SetBytes(b []byte) {
	v.payload = b
	v.size = int64(len(b))
}

// Size returns the stored length slot (string byte length, or CSTRUCT size).
func (v *Value) Size() int64 { return v.size }

// SetSize overwrites the stored length slot.
func (v *Value) SetSize(n int64) { v.size = n }

// --- metadata ---

func (v *Value) ensureMeta() *Meta {
	if v.meta == nil {
		v.meta = newMeta()
	}
	return v.meta
}

// Meta exposes the cold-field record, allocating it on first use.
func (v *Value) Meta() *Meta { return v.ensureMeta() }

// MetaOrNil returns the cold-field record without allocating one.
func (v *Value) MetaOrNil() *Meta { return v.meta }

func (v *Value) recycleMetaIfAny() {
	if v.meta != nil {
		recycleMeta(v.meta)
		v.meta = nil
	}
}

// BlessedPackage returns the blessed package name, or "" if unblessed.
func (v *Value) BlessedPackage() string {
	if v.meta == nil {
		return ""
	}
	return v.meta.BlessedPackage
}

// SetBlessedPackage blesses (or idempotently rebless) v.
func (v *Value) SetBlessedPackage(pkg string) { v.ensureMeta().BlessedPackage = pkg }

// IsWeak reports whether this REF cell is weak.
func (v *Value) IsWeak() bool {
	return v.meta != nil && v.meta.IsWeak
}

// SetWeak marks/unmarks this REF cell as weak.
func (v *Value) SetWeak(weak bool) { v.ensureMeta().IsWeak = weak }

// IsTied reports whether this container cell is tied to a delegate.
func (v *Value) IsTied() bool {
	return v.meta != nil && v.meta.IsTied
}

// TiedObj returns the delegate object, or nil if untied.
func (v *Value) TiedObj() *Value {
	if v.meta == nil {
		return nil
	}
	return v.meta.TiedObj
}

// SetTied ties v to delegate (delegate==nil unties).
func (v *Value) SetTied(delegate *Value) {
	m := v.ensureMeta()
	m.IsTied = delegate != nil
	m.TiedObj = delegate
}

// CopyInto overwrites dst's scalar/payload representation with src's,
// without touching either cell's identity or refcount. Used by pkg/ref's
// deref_set to mimic lvalue assignment through a reference: every other
// holder of dst sees the new value because dst itself is mutated in place,
// not replaced.
func CopyInto(dst, src *Value) {
	dst.tag = src.tag
	dst.size = src.size
	dst.ival = src.ival
	dst.fval = src.fval
	dst.payload = src.payload
}

// --- coercions (§6, documented) ---

// ToBool implements UNDEF/ARRAY/HASH truthiness and the usual
// zero/empty-string falsiness for scalars: ARRAY and HASH are true when
// non-empty. Every other tag is true; a REF is true whatever its target
// holds (the target is not consulted).
func (v *Value) ToBool() bool {
	switch v.tag {
	case Undef:
		return false
	case Array:
		if s, ok := v.payload.(interface{ Length() int }); ok {
			return s.Length() != 0
		}
		return true
	case Hash:
		if m, ok := v.payload.(interface{ Len() int }); ok {
			return m.Len() != 0
		}
		return true
	case Int:
		return v.ival != 0
	case Num:
		return v.fval != 0
	case Str:
		b := v.Bytes()
		return len(b) != 0 && !(len(b) == 1 && b[0] == '0')
	default:
		return true
	}
}

// ToInt coerces to an integer. STR parses a leading numeric prefix (0 on
// failure); ARRAY/HASH/REF are not numeric tags and return 0.
func (v *Value) ToInt() int64 {
	switch v.tag {
	case Undef:
		return 0
	case Int:
		return v.ival
	case Num:
		return int64(v.fval)
	case Str:
		return parseLeadingInt(string(v.Bytes()))
	default:
		return 0
	}
}

// ToNum coerces to a double, with the same STR leading-prefix parse as ToInt.
func (v *Value) ToNum() float64 {
	switch v.tag {
	case Undef:
		return 0
	case Int:
		return float64(v.ival)
	case Num:
		return v.fval
	case Str:
		return parseLeadingFloat(string(v.Bytes()))
	default:
		return 0
	}
}

// ToStr stringifies the scalar tags. Non-scalar tags return a debug form;
// pkg/oop overrides this behavior for blessed values via stringify
// overload before generated code ever calls ToStr on a REF.
func (v *Value) ToStr() string {
	switch v.tag {
	case Undef:
		return ""
	case Int:
		return strconv.FormatInt(v.ival, 10)
	case Num:
		return formatNum(v.fval)
	case Str:
		return string(v.Bytes())
	default:
		return fmt.Sprintf("%s(0x%x)", v.tag, fmt.Sprintf("%p", v))
	}
}

func formatNum(f float64) string {
	if math.IsInf(f, 1) {
		return "Inf"
	}
	if math.IsInf(f, -1) {
		return "-Inf"
	}
	if math.IsNaN(f) {
		return "NaN"
	}
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

func parseLeadingInt(s string) int64 {
	s = strings.TrimLeft(s, " \t\n\r")
	i := 0
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		i++
	}
	start := i
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	if i == start {
		return 0
	}
	n, _ := strconv.ParseInt(s[:i], 10, 64)
	return n
}

func parseLeadingFloat(s string) float64 {
	s = strings.TrimLeft(s, " \t\n\r")
	i := 0
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		i++
	}
	sawDigit := false
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
		sawDigit = true
	}
	if i < len(s) && s[i] == '.' {
		i++
		for i < len(s) && s[i] >= '0' && s[i] <= '9' {
			i++
			sawDigit = true
		}
	}
	if !sawDigit {
		return 0
	}
	if i < len(s) && (s[i] == 'e' || s[i] == 'E') {
		j := i + 1
		if j < len(s) && (s[j] == '+' || s[j] == '-') {
			j++
		}
		k := j
		for k < len(s) && s[k] >= '0' && s[k] <= '9' {
			k++
		}
		if k > j {
			i = k
		}
	}
	n, _ := strconv.ParseFloat(s[:i], 64)
	return n
}
