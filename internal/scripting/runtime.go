// Package scripting provides a resource-limited goja JavaScript runtime
// for one console session. It has no dependency on the session state
// machine; host interactions flow through the bridge installed at creation.
package scripting

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/dop251/goja"
	"go.uber.org/zap"

	"github.com/SkyrimScriptingBeta/JavaScriptPapyrusExperiment/internal/bridge"
	"github.com/SkyrimScriptingBeta/JavaScriptPapyrusExperiment/internal/config"
	"github.com/SkyrimScriptingBeta/JavaScriptPapyrusExperiment/internal/console"
)

// Default resource ceilings applied when the configuration leaves them unset.
// DefaultMaxCallStack approximates a 1 MiB stack budget in call frames; goja
// exposes no allocation ceiling, so DefaultEvalTimeout bounds runaway units
// in place of a memory limit.
const (
	DefaultMaxCallStack = 4096
	DefaultEvalTimeout  = 5 * time.Second
)

// ErrRuntimeInit reports that engine or bridge setup failed during creation.
var ErrRuntimeInit = errors.New("scripting: runtime initialization failed")

// Result is the outcome of a completed evaluation. Empty means the unit
// completed with the engine's no-value sentinel (undefined) and there is
// nothing to display.
type Result struct {
	Text  string
	Empty bool
}

// ScriptError is a parse or evaluation failure in user-submitted text.
// It never escapes as a panic or host-level fault.
type ScriptError struct {
	Message string
}

func (e *ScriptError) Error() string {
	return e.Message
}

// Runtime owns one engine instance and its execution context. It is not
// safe for concurrent use; the session's synchronous line protocol keeps
// at most one evaluation in flight.
type Runtime struct {
	vm      *goja.Runtime
	bridge  *bridge.Bridge
	timeout time.Duration
	logger  *zap.Logger
	closed  bool
}

// NewRuntime allocates an engine with the configured ceilings and installs
// the host bridge over its global namespace.
//
// Precondition: lookup, out, and logger must be non-nil.
// Postcondition: Returns a live Runtime, or an error wrapping ErrRuntimeInit
// with no resources retained.
func NewRuntime(cfg config.ScriptingConfig, lookup bridge.Lookup, out *console.OutputAdapter, logger *zap.Logger) (*Runtime, error) {
	maxStack := cfg.MaxCallStack
	if maxStack <= 0 {
		maxStack = DefaultMaxCallStack
	}
	timeout := cfg.EvalTimeout
	if timeout <= 0 {
		timeout = DefaultEvalTimeout
	}

	vm := goja.New()
	vm.SetMaxCallStackSize(maxStack)

	b := bridge.New(vm, lookup, out, logger)
	if err := b.Install(); err != nil {
		return nil, fmt.Errorf("%w: installing host bridge: %v", ErrRuntimeInit, err)
	}

	return &Runtime{
		vm:      vm,
		bridge:  b,
		timeout: timeout,
		logger:  logger,
	}, nil
}

// Evaluate compiles and runs sourceText as one top-level unit. Top-level
// declarations persist in the execution context for later units.
//
// If the unit fails with an undefined-reference error whose missing name
// can be extracted, that one name is pre-resolved through the bridge and
// the identical source is re-run exactly once; a second failure of any
// kind is returned as the terminal *ScriptError.
//
// Precondition: the Runtime must not have been closed.
func (r *Runtime) Evaluate(sourceText string) (Result, error) {
	if r.closed {
		panic("scripting: Evaluate called after Close")
	}

	res, err := r.run(sourceText)
	if err == nil {
		return res, nil
	}

	name, ok := bridge.MissingName(err)
	if !ok {
		return Result{}, asScriptError(err)
	}

	r.logger.Debug("scripting: retrying unit after resolving missing name",
		zap.String("name", name),
	)
	r.bridge.Resolve(name)

	res, err = r.run(sourceText)
	if err != nil {
		return Result{}, asScriptError(err)
	}
	return res, nil
}

// RunDir evaluates every *.js file in dir in lexicographic order,
// discarding results. Used for session startup scripts.
//
// Postcondition: Returns the first load or evaluation error, if any.
func (r *Runtime) RunDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("scripting: reading script dir %q: %w", dir, err)
	}

	var files []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".js" {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)

	for _, path := range files {
		src, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("scripting: reading %q: %w", path, err)
		}
		if _, err := r.Evaluate(string(src)); err != nil {
			return fmt.Errorf("scripting: loading %q: %w", path, err)
		}
	}
	return nil
}

// Close releases the execution context and engine. Idempotent; the
// Runtime must not be evaluated against afterwards.
func (r *Runtime) Close() {
	if r.closed {
		return
	}
	r.closed = true
	r.vm.ClearInterrupt()
	r.vm = nil
	r.bridge = nil
}

// run executes one unit under the evaluation watchdog and converts the
// completion value.
func (r *Runtime) run(src string) (Result, error) {
	timer := time.AfterFunc(r.timeout, func() {
		r.vm.Interrupt("evaluation timed out")
	})
	value, err := r.vm.RunString(src)
	timer.Stop()
	r.vm.ClearInterrupt()

	if err != nil {
		return Result{}, err
	}
	if value == nil || goja.IsUndefined(value) {
		return Result{Empty: true}, nil
	}
	return Result{Text: value.String()}, nil
}

// asScriptError converts an engine failure into a single-line ScriptError.
func asScriptError(err error) *ScriptError {
	msg := err.Error()
	if ex, ok := err.(*goja.Exception); ok {
		msg = ex.String()
	}
	msg = strings.TrimSpace(strings.SplitN(msg, "\n", 2)[0])
	return &ScriptError{Message: msg}
}
