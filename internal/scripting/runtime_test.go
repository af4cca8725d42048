package scripting_test

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/SkyrimScriptingBeta/JavaScriptPapyrusExperiment/internal/config"
	"github.com/SkyrimScriptingBeta/JavaScriptPapyrusExperiment/internal/console"
	"github.com/SkyrimScriptingBeta/JavaScriptPapyrusExperiment/internal/scripting"
)

type lineSink struct {
	mu    sync.Mutex
	lines []string
}

func (s *lineSink) WriteLine(text string) {
	s.mu.Lock()
	s.lines = append(s.lines, text)
	s.mu.Unlock()
}

func (s *lineSink) all() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.lines...)
}

func testConfig() config.ScriptingConfig {
	return config.ScriptingConfig{
		MaxCallStack: 512,
		EvalTimeout:  2 * time.Second,
	}
}

func newTestRuntime(t testing.TB, cfg config.ScriptingConfig, values map[string]any) (*scripting.Runtime, *lineSink) {
	t.Helper()
	sink := &lineSink{}
	out := console.NewOutputAdapter(sink, zap.NewNop())
	lookup := func(name string) (any, bool) {
		v, ok := values[name]
		return v, ok
	}
	rt, err := scripting.NewRuntime(cfg, lookup, out, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(rt.Close)
	return rt, sink
}

func TestEvaluateExpression(t *testing.T) {
	rt, _ := newTestRuntime(t, testConfig(), nil)
	res, err := rt.Evaluate("1+1")
	require.NoError(t, err)
	assert.False(t, res.Empty)
	assert.Equal(t, "2", res.Text)
}

func TestEvaluateNoValue(t *testing.T) {
	rt, _ := newTestRuntime(t, testConfig(), nil)
	res, err := rt.Evaluate("var x = 5")
	require.NoError(t, err)
	assert.True(t, res.Empty)
}

func TestEvaluateStatePersistsAcrossUnits(t *testing.T) {
	rt, _ := newTestRuntime(t, testConfig(), nil)

	_, err := rt.Evaluate("a = 1")
	require.NoError(t, err)

	res, err := rt.Evaluate("a + 1")
	require.NoError(t, err)
	assert.Equal(t, "2", res.Text)
}

func TestEvaluateSyntaxError(t *testing.T) {
	rt, _ := newTestRuntime(t, testConfig(), nil)
	_, err := rt.Evaluate("this is not javascript @@@@")
	require.Error(t, err)

	var scriptErr *scripting.ScriptError
	assert.True(t, errors.As(err, &scriptErr))
}

func TestEvaluateThrownErrorIsScriptError(t *testing.T) {
	rt, _ := newTestRuntime(t, testConfig(), nil)
	_, err := rt.Evaluate(`throw new Error("boom")`)
	require.Error(t, err)

	var scriptErr *scripting.ScriptError
	require.True(t, errors.As(err, &scriptErr))
	assert.Contains(t, scriptErr.Message, "boom")
}

func TestEvaluateReservedName(t *testing.T) {
	rt, _ := newTestRuntime(t, testConfig(), nil)
	res, err := rt.Evaluate("MyString")
	require.NoError(t, err)
	assert.Equal(t, "I am a string!", res.Text)
}

func TestEvaluateHostValue(t *testing.T) {
	rt, _ := newTestRuntime(t, testConfig(), map[string]any{"Version": "1.2.3"})
	res, err := rt.Evaluate("Version")
	require.NoError(t, err)
	assert.Equal(t, "1.2.3", res.Text)
}

func TestEvaluateRetriesOnceForMissingName(t *testing.T) {
	rt, _ := newTestRuntime(t, testConfig(), nil)

	// The name resolves to undefined on retry; the identical unit then
	// completes with no value.
	res, err := rt.Evaluate("missingThing")
	require.NoError(t, err)
	assert.True(t, res.Empty)

	// The retry installed a real global binding.
	res, err = rt.Evaluate("typeof missingThing")
	require.NoError(t, err)
	assert.Equal(t, "undefined", res.Text)
}

func TestEvaluateSecondMissingNameIsTerminal(t *testing.T) {
	rt, _ := newTestRuntime(t, testConfig(), nil)

	_, err := rt.Evaluate("firstMissing + secondMissing")
	require.Error(t, err)

	var scriptErr *scripting.ScriptError
	require.True(t, errors.As(err, &scriptErr))
	assert.Contains(t, scriptErr.Message, "secondMissing")
}

func TestEvaluateConsoleLog(t *testing.T) {
	rt, sink := newTestRuntime(t, testConfig(), nil)

	res, err := rt.Evaluate(`console.log("hi")`)
	require.NoError(t, err)
	assert.True(t, res.Empty)
	assert.Equal(t, []string{"hi"}, sink.all())
}

func TestEvaluateWatchdogInterruptsRunawayUnit(t *testing.T) {
	cfg := testConfig()
	cfg.EvalTimeout = 50 * time.Millisecond
	rt, _ := newTestRuntime(t, cfg, nil)

	start := time.Now()
	_, err := rt.Evaluate("while (true) {}")
	require.Error(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestEvaluateStackCeiling(t *testing.T) {
	rt, _ := newTestRuntime(t, testConfig(), nil)
	_, err := rt.Evaluate("function f() { return f(); } f()")
	require.Error(t, err)

	var scriptErr *scripting.ScriptError
	assert.True(t, errors.As(err, &scriptErr))
}

func TestCloseIsIdempotent(t *testing.T) {
	rt, _ := newTestRuntime(t, testConfig(), nil)
	rt.Close()
	assert.NotPanics(t, rt.Close)
}

func TestEvaluateAfterClosePanics(t *testing.T) {
	rt, _ := newTestRuntime(t, testConfig(), nil)
	rt.Close()
	assert.Panics(t, func() {
		rt.Evaluate("1") //nolint:errcheck
	})
}

func TestRunDirOrderedByName(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.js"), []byte("base = 10"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.js"), []byte("derived = base + 5"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("not a script"), 0644))

	rt, _ := newTestRuntime(t, testConfig(), nil)
	require.NoError(t, rt.RunDir(dir))

	res, err := rt.Evaluate("derived")
	require.NoError(t, err)
	assert.Equal(t, "15", res.Text)
}

func TestRunDirMissingDirectory(t *testing.T) {
	rt, _ := newTestRuntime(t, testConfig(), nil)
	assert.Error(t, rt.RunDir(filepath.Join(t.TempDir(), "nope")))
}

func TestRunDirBadScript(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.js"), []byte("not valid @@@@"), 0644))

	rt, _ := newTestRuntime(t, testConfig(), nil)
	assert.Error(t, rt.RunDir(dir))
}
