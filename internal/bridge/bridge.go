// Package bridge resolves script references to undefined names into
// host-provided values. Resolution is lazy: nothing is pre-populated into
// the JavaScript global namespace; a name is looked up on first access,
// installed as a true global binding, and memoized for the rest of the
// session so the engine's own fast-path lookup serves later references.
package bridge

import (
	"regexp"
	"strings"

	"github.com/dop251/goja"
	"go.uber.org/zap"

	"github.com/SkyrimScriptingBeta/JavaScriptPapyrusExperiment/internal/console"
)

// Lookup answers "what does this name refer to in the host". A false
// return means the host has no binding for the name.
type Lookup func(name string) (any, bool)

// builtins are bridge-defined reserved names with fixed values, resolved
// ahead of the host lookup.
var builtins = map[string]any{
	"MyString": "I am a string!",
}

// Bridge owns the resolution cache for one runtime. It is not safe for
// concurrent use; the session's synchronous line protocol guarantees
// evaluation is serial against a single runtime.
type Bridge struct {
	vm     *goja.Runtime
	lookup Lookup
	out    *console.OutputAdapter
	logger *zap.Logger
	cache  map[string]goja.Value
}

// New creates a Bridge bound to vm. The bridge is inert until Install.
//
// Precondition: vm, lookup, out, and logger must be non-nil.
func New(vm *goja.Runtime, lookup Lookup, out *console.OutputAdapter, logger *zap.Logger) *Bridge {
	if vm == nil || lookup == nil || out == nil || logger == nil {
		panic("bridge: nil dependency")
	}
	return &Bridge{
		vm:     vm,
		lookup: lookup,
		out:    out,
		logger: logger,
		cache:  make(map[string]goja.Value),
	}
}

// Install wires the bridge into the runtime: a resolve-on-miss layer over
// the global namespace, and a console object whose log function routes to
// the output adapter. Called once per runtime, before any user script runs.
//
// Postcondition: Reads of absent-but-resolvable globals invoke Resolve;
// writes and existing-name reads are untouched.
func (b *Bridge) Install() error {
	proto := b.vm.NewDynamicObject(&globalFallback{b: b})
	if err := b.vm.GlobalObject().SetPrototype(proto); err != nil {
		return err
	}

	consoleObj := b.vm.NewObject()
	if err := consoleObj.Set("log", b.jsLog); err != nil {
		return err
	}
	return b.vm.GlobalObject().Set("console", consoleObj)
}

// Resolve returns the value bound to name, resolving and caching it on
// first access. The default rule: reserved built-ins first, then the host
// lookup, then undefined. The derived value is installed as a true global
// binding so future reads bypass interception entirely.
//
// Postcondition: Resolve(name) returns the identical value on every call
// within one runtime's lifetime, even if the host binding changes.
func (b *Bridge) Resolve(name string) goja.Value {
	if v, ok := b.cache[name]; ok {
		return v
	}

	var value goja.Value
	if bv, ok := builtins[name]; ok {
		value = b.vm.ToValue(bv)
	} else if hv, ok := b.lookup(name); ok {
		value = b.vm.ToValue(hv)
	} else {
		value = goja.Undefined()
	}
	return b.install(name, value)
}

// canResolve reports whether name resolves to something other than the
// fallback undefined, materializing the binding on a host hit so the
// read that follows is served from the cache. Unknown names are left to
// the engine's native ReferenceError so the evaluation retry path can
// handle them.
func (b *Bridge) canResolve(name string) bool {
	if _, ok := b.cache[name]; ok {
		return true
	}
	if _, ok := builtins[name]; ok {
		return true
	}
	hv, ok := b.lookup(name)
	if !ok {
		return false
	}
	b.install(name, b.vm.ToValue(hv))
	return true
}

// install caches the resolved value and writes it as a true global
// binding so future direct lookups bypass interception entirely.
func (b *Bridge) install(name string, value goja.Value) goja.Value {
	if err := b.vm.GlobalObject().Set(name, value); err != nil {
		b.logger.Warn("bridge: installing global binding",
			zap.String("name", name),
			zap.Error(err),
		)
	}
	b.cache[name] = value
	b.logger.Debug("bridge: resolved name", zap.String("name", name))
	return value
}

// jsLog implements console.log: arguments are converted to display text,
// joined with single spaces in order, shown on the console, and echoed to
// the diagnostic log.
func (b *Bridge) jsLog(call goja.FunctionCall) goja.Value {
	parts := make([]string, len(call.Arguments))
	for i, arg := range call.Arguments {
		parts[i] = arg.String()
	}
	text := strings.Join(parts, " ")

	b.out.Display(text)
	b.logger.Debug("bridge: console.log", zap.String("text", text))
	return goja.Undefined()
}

// globalFallback is the interception layer installed as the global
// object's prototype. Native own-property lookups win; only absent names
// reach it.
type globalFallback struct {
	b *Bridge
}

func (g *globalFallback) Get(key string) goja.Value {
	if !g.b.canResolve(key) {
		return goja.Undefined()
	}
	return g.b.Resolve(key)
}

// Set installs the write as a true global binding, keeping assignment
// semantics untouched by interception.
func (g *globalFallback) Set(key string, val goja.Value) bool {
	if err := g.b.vm.GlobalObject().Set(key, val); err != nil {
		return false
	}
	return true
}

func (g *globalFallback) Has(key string) bool {
	return g.b.canResolve(key)
}

func (g *globalFallback) Delete(key string) bool {
	return false
}

func (g *globalFallback) Keys() []string {
	return nil
}

// referenceErrPattern matches goja's undefined-reference message shape.
// This is a heuristic tied to the engine's wording, used only to drive
// the single automatic evaluation retry.
var referenceErrPattern = regexp.MustCompile(`ReferenceError:\s+([$A-Za-z_][$0-9A-Za-z_]*) is not defined`)

// MissingName extracts the missing identifier from an undefined-reference
// evaluation error.
//
// Postcondition: Returns (name, true) if err has the expected shape,
// or ("", false) otherwise.
func MissingName(err error) (string, bool) {
	if err == nil {
		return "", false
	}
	m := referenceErrPattern.FindStringSubmatch(err.Error())
	if m == nil {
		return "", false
	}
	return m[1], true
}
