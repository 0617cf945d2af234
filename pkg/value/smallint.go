package value

// Immortal small-integer pool (C2) and the shared singletons named in
// spec.md §4.14 (C14): small integers in [smallIntMin, smallIntMax] and the
// static UNDEF cell never hit the allocator.

const (
	smallIntMin = -1
	smallIntMax = 255
)

var smallIntPool [smallIntMax - smallIntMin + 1]Value

// UndefSingleton is the shared immortal UNDEF cell returned by container
// misses (Sequence.Get out of range, Map.Get miss) per spec.md §4.2/§4.3.
var UndefSingleton = &Value{tag: Undef, refcount: immortalCount}

func init() {
	for i := range smallIntPool {
		smallIntPool[i].tag = Int
		smallIntPool[i].refcount = immortalCount
		smallIntPool[i].ival = int64(i + smallIntMin)
	}
}

// smallInt returns the immortal cell for n if n falls in the pooled range.
func smallInt(n int64) (*Value, bool) {
	if n < smallIntMin || n > smallIntMax {
		return nil, false
	}
	return &smallIntPool[n-smallIntMin], true
}

// IsUndef reports whether v is the shared undef singleton or any other
// UNDEF-tagged cell.
func IsUndef(v *Value) bool { return v == nil || v.Tag() == Undef }
