// Package oop implements blessed-reference dispatch (C7): a package
// registry, depth-first multi-parent method lookup with a cache, an isa
// cache, method modifiers (before/after/around), AUTOLOAD fallback,
// SUPER:: resolution, guarded DESTROY, and operator/stringify overload
// dispatch. The registry-plus-direct-mapped-hash-index shape mirrors the
// teacher's pkg/sorted key-value store registry (a fixed table of
// implementations looked up by name, linear-scan fallback on collision).
package oop

import (
	"fmt"
	"log"
	"sync"

	"github.com/google/uuid"

	"github.com/strada-lang/runtime/pkg/value"
)

// isaCycleWarnDepth is how many distinct packages a single method lookup
// can visit before it's treated as a suspiciously deep (likely cyclic or
// pathologically wide) inheritance graph worth logging.
const isaCycleWarnDepth = 64

// Method is a bound callable: it receives the blessed receiver and
// argument values and returns a result (or a thrown value via panic, the
// same convention pkg/exception's try/catch machinery expects).
type Method func(receiver *value.Value, args []*value.Value) *value.Value

// ModifierKind distinguishes before/after/around method modifiers.
type ModifierKind int

const (
	Before ModifierKind = iota
	After
	Around
)

// AroundMethod receives a callable for the original method (or the next
// around in the chain) alongside the receiver/args.
type AroundMethod func(original Method, receiver *value.Value, args []*value.Value) *value.Value

type modifierSet struct {
	before []Method
	after  []Method
	around []AroundMethod
}

// Package is one blessable package's method table and inheritance list.
type Package struct {
	name      string
	methods   map[string]Method
	isaList   []string // parent package names, in MRO search order
	modifiers map[string]*modifierSet
	autoload  Method
	destroy   Method
	overloads map[string]Method // operator symbol -> handler, e.g. "+", "==", "\"\""

	// epoch is a uuid stamped at registration time. It has no role in
	// cache invalidation (InvalidateCaches is the real mechanism); it
	// exists only for diagnostics: Epoch() exposes it and the deep-isa-chain
	// warning in findMethodRaw prints it, naming which registration of a
	// package (by name reuse across redefinition) is involved.
	epoch uuid.UUID
}

// Epoch returns p's registration-time diagnostic id.
func (p *Package) Epoch() uuid.UUID { return p.epoch }

// Registry holds every registered package plus the method and isa caches.
// Mirrors spec.md's "fixed table + direct-mapped hash index, linear scan
// on collision" shape with a plain Go map, which gives the same amortized
// behavior without hand-rolling open addressing.
type Registry struct {
	mu       sync.RWMutex
	packages map[string]*Package

	methodCacheMu sync.RWMutex
	methodCache   map[methodCacheKey]Method // misses are never cached

	isaCacheMu sync.RWMutex
	isaCache   map[isaCacheKey]bool
}

type methodCacheKey struct {
	pkg    string
	method string
}

type isaCacheKey struct {
	pkg    string
	target string
}

// Global is the process-wide package registry. Generated code blesses into
// and dispatches through this instance; it is safe for concurrent use once
// threading is activated (see pkg/value.ActivateThreading).
var Global = NewRegistry()

func NewRegistry() *Registry {
	return &Registry{
		packages:    make(map[string]*Package),
		methodCache: make(map[methodCacheKey]Method),
		isaCache:    make(map[isaCacheKey]bool),
	}
}

// DefinePackage registers (or returns the existing) package record for name.
func (r *Registry) DefinePackage(name string) *Package {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.packages[name]; ok {
		return p
	}
	p := &Package{
		name:      name,
		methods:   make(map[string]Method),
		modifiers: make(map[string]*modifierSet),
		overloads: make(map[string]Method),
		epoch:     uuid.New(),
	}
	r.packages[name] = p
	return p
}

func (r *Registry) lookupPackage(name string) *Package {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.packages[name]
}

// AddMethod installs fn as name's implementation in p.
func (p *Package) AddMethod(name string, fn Method) { p.methods[name] = fn }

// SetParents sets p's direct parent list (search order left-to-right).
func (p *Package) SetParents(parents ...string) { p.isaList = parents }

// SetAutoload installs the AUTOLOAD fallback.
func (p *Package) SetAutoload(fn Method) { p.autoload = fn }

// SetDestroy installs the DESTROY method.
func (p *Package) SetDestroy(fn Method) { p.destroy = fn }

// SetOverload installs an operator overload handler (symbol is e.g. "+",
// "==", `""` for stringify).
func (p *Package) SetOverload(symbol string, fn Method) { p.overloads[symbol] = fn }

// AddModifier attaches a before/after/around modifier to (p, methodName).
func (p *Package) AddModifier(methodName string, kind ModifierKind, fn Method, around AroundMethod) {
	ms, ok := p.modifiers[methodName]
	if !ok {
		ms = &modifierSet{}
		p.modifiers[methodName] = ms
	}
	switch kind {
	case Before:
		ms.before = append(ms.before, fn)
	case After:
		ms.after = append(ms.after, fn)
	case Around:
		ms.around = append(ms.around, around)
	}
}

// findMethodRaw performs the depth-first, left-to-right, cycle-safe
// search described in spec.md §4.6, without touching the cache.
func (r *Registry) findMethodRaw(pkgName, methodName string, visited map[string]bool) (Method, string) {
	if visited[pkgName] {
		return nil, ""
	}
	visited[pkgName] = true
	p := r.lookupPackage(pkgName)
	if p == nil {
		return nil, ""
	}
	if len(visited) > isaCycleWarnDepth {
		log.Printf("oop: deep isa chain resolving %q on package %q (epoch %s), possible cycle", methodName, pkgName, p.epoch)
	}
	if fn, ok := p.methods[methodName]; ok {
		return fn, pkgName
	}
	for _, parent := range p.isaList {
		if fn, owner := r.findMethodRaw(parent, methodName, visited); fn != nil {
			return fn, owner
		}
	}
	return nil, ""
}

// FindMethod resolves methodName starting from pkgName, consulting and
// populating the method cache. Misses are never cached (spec.md §4.6 step
// 3), since a later mixin/AddMethod call could change the answer.
func (r *Registry) FindMethod(pkgName, methodName string) (Method, string) {
	key := methodCacheKey{pkg: pkgName, method: methodName}
	r.methodCacheMu.RLock()
	fn, ok := r.methodCache[key]
	r.methodCacheMu.RUnlock()
	if ok {
		return fn, pkgName
	}
	found, owner := r.findMethodRaw(pkgName, methodName, map[string]bool{})
	if found == nil {
		return nil, ""
	}
	r.methodCacheMu.Lock()
	r.methodCache[key] = found
	r.methodCacheMu.Unlock()
	return found, owner
}

// Isa reports whether pkgName's inheritance graph includes target,
// consulting and populating the isa cache.
func (r *Registry) Isa(pkgName, target string) bool {
	if pkgName == target {
		return true
	}
	key := isaCacheKey{pkg: pkgName, target: target}
	r.isaCacheMu.RLock()
	v, ok := r.isaCache[key]
	r.isaCacheMu.RUnlock()
	if ok {
		return v
	}
	result := r.isaRaw(pkgName, target, map[string]bool{})
	r.isaCacheMu.Lock()
	r.isaCache[key] = result
	r.isaCacheMu.Unlock()
	return result
}

func (r *Registry) isaRaw(pkgName, target string, visited map[string]bool) bool {
	if visited[pkgName] {
		return false
	}
	visited[pkgName] = true
	if pkgName == target {
		return true
	}
	p := r.lookupPackage(pkgName)
	if p == nil {
		return false
	}
	for _, parent := range p.isaList {
		if r.isaRaw(parent, target, visited) {
			return true
		}
	}
	return false
}

// InvalidateCaches clears both caches; call after any AddMethod/SetParents
// mutation that could change a previously cached answer (e.g. dynamic
// mixin at runtime, rather than at package-definition time).
func (r *Registry) InvalidateCaches() {
	r.methodCacheMu.Lock()
	r.methodCache = make(map[methodCacheKey]Method)
	r.methodCacheMu.Unlock()
	r.isaCacheMu.Lock()
	r.isaCache = make(map[isaCacheKey]bool)
	r.isaCacheMu.Unlock()
}

// Bless marks v as an instance of pkgName.
func Bless(v *value.Value, pkgName string) {
	v.SetBlessedPackage(pkgName)
}

// Can implements the universal "can" method: returns the resolved Method
// (nil if none), short-circuited ahead of normal dispatch per spec.md.
func (r *Registry) Can(pkgName, methodName string) Method {
	fn, _ := r.FindMethod(pkgName, methodName)
	return fn
}

// errNoSuchMethod is raised (via panic, caught by pkg/exception) when
// dispatch finds neither a method nor an AUTOLOAD.
type errNoSuchMethod struct {
	pkg    string
	method string
}

func (e *errNoSuchMethod) Error() string {
	return fmt.Sprintf("Can't locate object method %q via package %q", e.method, e.pkg)
}

// Call dispatches methodName on receiver with args, per spec.md §4.6:
// isa/can are short-circuited, AUTOLOAD is the miss fallback, and
// modifiers wrap the resolved method when present.
func (r *Registry) Call(receiver *value.Value, methodName string, args []*value.Value) *value.Value {
	pkgName := receiver.BlessedPackage()
	switch methodName {
	case "isa":
		if len(args) == 1 {
			return boolValue(r.Isa(pkgName, args[0].ToStr()))
		}
	case "can":
		if len(args) == 1 {
			return boolValue(r.Can(pkgName, args[0].ToStr()) != nil)
		}
	}

	fn, owner := r.FindMethod(pkgName, methodName)
	if fn == nil {
		p := r.lookupPackage(pkgName)
		if p != nil && p.autoload != nil {
			autoloadArgs := append([]*value.Value{value.NewStr(methodName)}, args...)
			return p.autoload(receiver, autoloadArgs)
		}
		panic(&errNoSuchMethod{pkg: pkgName, method: methodName})
	}

	return r.invokeWithModifiers(owner, methodName, fn, receiver, args)
}

func (r *Registry) invokeWithModifiers(owner, methodName string, fn Method, receiver *value.Value, args []*value.Value) *value.Value {
	p := r.lookupPackage(owner)
	if p == nil {
		return fn(receiver, args)
	}
	ms := p.modifiers[methodName]
	if ms == nil {
		return fn(receiver, args)
	}
	for _, before := range ms.before {
		before(receiver, args)
	}
	var result *value.Value
	if len(ms.around) > 0 {
		result = chainArounds(ms.around, fn, receiver, args)
	} else {
		result = fn(receiver, args)
	}
	for _, after := range ms.after {
		after(receiver, args)
	}
	return result
}

// chainArounds builds the around chain right-to-left so the first
// registered around is the outermost wrapper, matching the order modifiers
// are typically declared in.
func chainArounds(arounds []AroundMethod, original Method, receiver *value.Value, args []*value.Value) *value.Value {
	next := original
	for i := len(arounds) - 1; i >= 0; i-- {
		around := arounds[i]
		captured := next
		next = func(r *value.Value, a []*value.Value) *value.Value {
			return around(captured, r, a)
		}
	}
	return next(receiver, args)
}

// Super resolves methodName starting from callingPkg's parents only (not
// callingPkg itself), for SUPER:: calls.
func (r *Registry) Super(callingPkg, methodName string) Method {
	p := r.lookupPackage(callingPkg)
	if p == nil {
		return nil
	}
	visited := map[string]bool{callingPkg: true}
	for _, parent := range p.isaList {
		if fn, _ := r.findMethodRaw(parent, methodName, visited); fn != nil {
			return fn
		}
	}
	return nil
}

func boolValue(b bool) *value.Value {
	if b {
		return value.NewInt(1)
	}
	return value.NewInt(0)
}
