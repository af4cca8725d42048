// Package repl implements the interactive scripting session: the line
// protocol that decides when to evaluate, and the state machine that
// claims console input, owns the runtime, and routes results to output.
package repl

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/SkyrimScriptingBeta/JavaScriptPapyrusExperiment/internal/bridge"
	"github.com/SkyrimScriptingBeta/JavaScriptPapyrusExperiment/internal/config"
	"github.com/SkyrimScriptingBeta/JavaScriptPapyrusExperiment/internal/console"
	"github.com/SkyrimScriptingBeta/JavaScriptPapyrusExperiment/internal/scripting"
)

// ErrAlreadyRunning reports a start attempt while a session is active.
// The running session and its runtime are left untouched.
var ErrAlreadyRunning = errors.New("repl: session already running")

const (
	bannerText   = "JavaScript console session started. Submit a unit with two blank lines; 'end' to finish."
	teardownText = "JavaScript console session ended."
)

// Session is the top-level controller for one interactive scripting
// session. It is created inert once at process start and cycles between
// idle and running; at most one runtime is live at a time.
type Session struct {
	console *console.Console
	out     *console.OutputAdapter
	lookup  bridge.Lookup
	cfg     config.ScriptingConfig
	logger  *zap.Logger

	// running is read from both the console input path and any external
	// teardown trigger, so it must stay concurrency-safe.
	running atomic.Bool

	mu  sync.Mutex
	rt  *scripting.Runtime
	buf LineBuffer
	id  string
}

// NewSession creates an idle Session.
//
// Precondition: c, out, lookup, and logger must be non-nil.
func NewSession(c *console.Console, out *console.OutputAdapter, lookup bridge.Lookup, cfg config.ScriptingConfig, logger *zap.Logger) *Session {
	if c == nil || out == nil || lookup == nil || logger == nil {
		panic("repl: nil dependency")
	}
	return &Session{
		console: c,
		out:     out,
		lookup:  lookup,
		cfg:     cfg,
		logger:  logger,
	}
}

// Start transitions the session to running: creates a fresh runtime with
// its bridge, resets the pending unit, claims exclusive console input, and
// emits the banner. Startup scripts, if configured, run last; their
// failures are reported but do not abort the session.
//
// Postcondition: Returns ErrAlreadyRunning (leaving the active session
// untouched), an ErrRuntimeInit-wrapped error (session stays idle), or nil.
func (s *Session) Start() error {
	if !s.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}

	rt, err := scripting.NewRuntime(s.cfg, s.lookup, s.out, s.logger)
	if err != nil {
		s.running.Store(false)
		return err
	}

	if err := s.console.Claim(s.HandleLine); err != nil {
		rt.Close()
		s.running.Store(false)
		return fmt.Errorf("repl: claiming console input: %w", err)
	}

	s.mu.Lock()
	s.rt = rt
	s.buf.Reset()
	s.id = uuid.NewString()
	id := s.id
	s.mu.Unlock()

	s.logger.Info("repl: session started", zap.String("session_id", id))
	s.out.Display(bannerText)

	if s.cfg.InitDir != "" {
		if err := rt.RunDir(s.cfg.InitDir); err != nil {
			s.out.DisplayError(err.Error())
		}
	}
	return nil
}

// HandleLine consumes one raw console line while running. It reports
// whether the line was handled; SentinelQuit is declined so the host's
// own command handling can see it.
//
// Evaluation is synchronous: the call does not return until the unit,
// including its single automatic retry, has completed.
func (s *Session) HandleLine(line string) bool {
	if !s.running.Load() {
		// Defensive: input is not routed here once ownership is released.
		s.logger.Debug("repl: line delivered while idle", zap.String("line", line))
		return false
	}

	s.mu.Lock()
	action := s.buf.Feed(line)
	id := s.id
	s.mu.Unlock()

	switch action {
	case ActionPassthrough:
		return false
	case ActionEnd:
		s.Stop()
		return true
	case ActionEvaluate:
		s.evaluatePending()
		return true
	default:
		s.logger.Debug("repl: buffered line",
			zap.String("session_id", id),
			zap.String("line", line),
		)
		return true
	}
}

// Stop tears the session down: destroys the runtime, clears the pending
// unit, releases console input, and confirms on the console. No-op when
// already idle.
func (s *Session) Stop() {
	if !s.running.CompareAndSwap(true, false) {
		return
	}

	s.mu.Lock()
	rt := s.rt
	s.rt = nil
	s.buf.Reset()
	id := s.id
	s.mu.Unlock()

	if rt != nil {
		rt.Close()
	}
	s.console.Release()
	s.out.Display(teardownText)
	s.logger.Info("repl: session ended", zap.String("session_id", id))
}

// Running reports whether a session is currently active.
func (s *Session) Running() bool {
	return s.running.Load()
}

func (s *Session) evaluatePending() {
	s.mu.Lock()
	src := s.buf.Take()
	rt := s.rt
	s.mu.Unlock()

	if rt == nil || strings.TrimSpace(src) == "" {
		return
	}

	res, err := rt.Evaluate(src)
	if err != nil {
		s.out.DisplayError(err.Error())
		return
	}
	if !res.Empty {
		s.out.DisplayResult(res.Text)
	}
}
