package core

import (
	"context"
	"fmt"
	"sync"
)

// VTableKey names one callable/typed entry point inside a published
// package: a module and a function or type name.
type VTableKey struct {
	Package  ObjectID
	Module   string
	Name     string
}

// packageEntry caches one package's modules and resolved members behind
// its own RWMutex, so resolving a type in package A never blocks a
// concurrent resolution in package B — the per-package locking §5 calls
// for, grounded in contracts.go's ContractRegistry (a package-keyed map
// behind one shared lock, generalized here to one lock per key so
// lookups across unrelated packages don't contend).
type packageEntry struct {
	mu      sync.RWMutex
	pkg     *Object
	modules map[string]ModuleBytecode
	types   map[string]MoveTypeTag
}

// TypeCache is the C4 component: a memoizing loader over published
// package objects, resolving module/function/type lookups through the
// ReadThroughStore exactly once per package per process lifetime (until
// an Upgrade invalidates it).
type TypeCache struct {
	store *ReadThroughStore

	mu       sync.RWMutex
	packages map[ObjectID]*packageEntry
}

func NewTypeCache(store *ReadThroughStore) *TypeCache {
	return &TypeCache{store: store, packages: make(map[ObjectID]*packageEntry)}
}

func (c *TypeCache) entryFor(pkg ObjectID) *packageEntry {
	c.mu.RLock()
	e, ok := c.packages[pkg]
	c.mu.RUnlock()
	if ok {
		return e
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.packages[pkg]; ok {
		return e
	}
	e = &packageEntry{}
	c.packages[pkg] = e
	return e
}

// LoadPackage resolves and caches pkg's modules, reading through the
// store on first use.
func (c *TypeCache) LoadPackage(ctx context.Context, pkg ObjectID) (*packageEntry, error) {
	e := c.entryFor(pkg)

	e.mu.RLock()
	if e.pkg != nil {
		defer e.mu.RUnlock()
		return e, nil
	}
	e.mu.RUnlock()

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pkg != nil {
		return e, nil
	}

	obj, ok, err := c.store.GetObject(ctx, pkg, 0)
	if err != nil {
		return nil, wrapRemote("type_cache_load_package", err)
	}
	if !ok {
		return nil, wrapUserInput("type_cache_package_not_found", fmt.Errorf("package %s not found", pkg))
	}
	if !obj.IsPackage() {
		return nil, wrapUserInput("type_cache_not_a_package", fmt.Errorf("%s is not a package object", pkg))
	}

	modules := make(map[string]ModuleBytecode, len(obj.Modules))
	for _, m := range obj.Modules {
		modules[m.Name] = m
	}

	e.pkg = obj
	e.modules = modules
	e.types = make(map[string]MoveTypeTag)
	return e, nil
}

// ResolveFunction checks that module/function names a real entry point
// within pkg, returning the module's bytecode blob for the VM to
// dispatch against.
func (c *TypeCache) ResolveFunction(ctx context.Context, pkg ObjectID, module, function string) (ModuleBytecode, error) {
	e, err := c.LoadPackage(ctx, pkg)
	if err != nil {
		return ModuleBytecode{}, err
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	m, ok := e.modules[module]
	if !ok {
		return ModuleBytecode{}, wrapUserInput("type_cache_unknown_module",
			fmt.Errorf("module %s not found in package %s", module, pkg))
	}
	if !hasNativeFunction(module, function) {
		return ModuleBytecode{}, wrapUserInput("type_cache_unknown_function",
			fmt.Errorf("function %s::%s not found", module, function))
	}
	return m, nil
}

// ResolveType memoizes and returns the MoveTypeTag for name within
// module of pkg; tags are cached per-package so repeated object
// decoding within a busy transaction doesn't repeatedly reconstruct
// them.
func (c *TypeCache) ResolveType(ctx context.Context, pkg ObjectID, module, name string) (MoveTypeTag, error) {
	e, err := c.LoadPackage(ctx, pkg)
	if err != nil {
		return MoveTypeTag{}, err
	}

	key := module + "::" + name
	e.mu.RLock()
	if t, ok := e.types[key]; ok {
		e.mu.RUnlock()
		return t, nil
	}
	e.mu.RUnlock()

	e.mu.Lock()
	defer e.mu.Unlock()
	if t, ok := e.types[key]; ok {
		return t, nil
	}
	if _, ok := e.modules[module]; !ok {
		return MoveTypeTag{}, wrapUserInput("type_cache_unknown_module",
			fmt.Errorf("module %s not found in package %s", module, pkg))
	}
	t := MoveTypeTag{Address: pkg.AsAddress(), Module: module, Name: name}
	e.types[key] = t
	return t, nil
}

// Invalidate drops a package's cache entry, used after Upgrade installs
// a new package object at a fresh id (the old id's entry simply becomes
// unreachable garbage; the new id gets a fresh entry on first use).
func (c *TypeCache) Invalidate(pkg ObjectID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.packages, pkg)
}
