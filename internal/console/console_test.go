package console_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/SkyrimScriptingBeta/JavaScriptPapyrusExperiment/internal/console"
)

func newTestConsole(t testing.TB) (*console.Console, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	return console.New(&buf, zap.NewNop()), &buf
}

func outputLines(buf *bytes.Buffer) []string {
	text := strings.TrimRight(buf.String(), "\n")
	if text == "" {
		return nil
	}
	return strings.Split(text, "\n")
}

func TestRegisterAndDispatch(t *testing.T) {
	con, _ := newTestConsole(t)

	var gotArgs []string
	require.NoError(t, con.Register(console.Command{
		Name: "greet",
		Help: "greets",
		Run:  func(args []string) { gotArgs = args },
	}))

	con.Dispatch("greet world again")
	assert.Equal(t, []string{"world", "again"}, gotArgs)
}

func TestDispatchCaseInsensitiveCommand(t *testing.T) {
	con, _ := newTestConsole(t)

	called := false
	require.NoError(t, con.Register(console.Command{
		Name: "Quit",
		Run:  func([]string) { called = true },
	}))

	con.Dispatch("QUIT")
	assert.True(t, called)
}

func TestRegisterDuplicateName(t *testing.T) {
	con, _ := newTestConsole(t)
	noop := func([]string) {}

	require.NoError(t, con.Register(console.Command{Name: "js", Run: noop}))
	assert.Error(t, con.Register(console.Command{Name: "js", Run: noop}))
	assert.Error(t, con.Register(console.Command{Name: "JS", Run: noop}))
}

func TestRegisterInvalidCommand(t *testing.T) {
	con, _ := newTestConsole(t)
	assert.Error(t, con.Register(console.Command{Name: "", Run: func([]string) {}}))
	assert.Error(t, con.Register(console.Command{Name: "broken"}))
}

func TestDispatchUnknownCommand(t *testing.T) {
	con, buf := newTestConsole(t)
	con.Dispatch("frobnicate")
	require.Len(t, outputLines(buf), 1)
	assert.Contains(t, outputLines(buf)[0], "Unknown command")
}

func TestDispatchEmptyLineIgnored(t *testing.T) {
	con, buf := newTestConsole(t)
	con.Dispatch("")
	con.Dispatch("   ")
	assert.Empty(t, outputLines(buf))
}

func TestClaimReceivesLinesFirst(t *testing.T) {
	con, _ := newTestConsole(t)

	commandCalled := false
	require.NoError(t, con.Register(console.Command{
		Name: "js",
		Run:  func([]string) { commandCalled = true },
	}))

	var claimedLines []string
	require.NoError(t, con.Claim(func(line string) bool {
		claimedLines = append(claimedLines, line)
		return true
	}))

	con.Dispatch("js")
	con.Dispatch("anything at all")

	assert.False(t, commandCalled, "claimed input must bypass command dispatch")
	assert.Equal(t, []string{"js", "anything at all"}, claimedLines)
}

func TestClaimUnconsumedLineFallsThrough(t *testing.T) {
	con, _ := newTestConsole(t)

	called := false
	require.NoError(t, con.Register(console.Command{
		Name: "qqq",
		Run:  func([]string) { called = true },
	}))
	require.NoError(t, con.Claim(func(line string) bool {
		return line != "qqq"
	}))

	con.Dispatch("qqq")
	assert.True(t, called, "declined line must reach command dispatch")
}

func TestClaimConflict(t *testing.T) {
	con, _ := newTestConsole(t)
	require.NoError(t, con.Claim(func(string) bool { return true }))
	assert.Error(t, con.Claim(func(string) bool { return true }))
}

func TestReleaseRestoresDispatch(t *testing.T) {
	con, _ := newTestConsole(t)

	called := false
	require.NoError(t, con.Register(console.Command{
		Name: "ping",
		Run:  func([]string) { called = true },
	}))
	require.NoError(t, con.Claim(func(string) bool { return true }))
	con.Release()
	con.Release() // idempotent

	con.Dispatch("ping")
	assert.True(t, called)

	// A fresh claim succeeds after release.
	assert.NoError(t, con.Claim(func(string) bool { return true }))
}

func TestWriteLine(t *testing.T) {
	con, buf := newTestConsole(t)
	con.WriteLine("hello")
	con.WriteLine("world")
	assert.Equal(t, []string{"hello", "world"}, outputLines(buf))
}

func TestCommandsRegistrationOrder(t *testing.T) {
	con, _ := newTestConsole(t)
	noop := func([]string) {}
	require.NoError(t, con.Register(console.Command{Name: "js", Help: "a", Run: noop}))
	require.NoError(t, con.Register(console.Command{Name: "help", Help: "b", Run: noop}))

	cmds := con.Commands()
	require.Len(t, cmds, 2)
	assert.Equal(t, "js", cmds[0].Name)
	assert.Equal(t, "help", cmds[1].Name)
}

func TestNewPanicsOnNilDeps(t *testing.T) {
	assert.Panics(t, func() { console.New(nil, zap.NewNop()) })
	assert.Panics(t, func() { console.New(&bytes.Buffer{}, nil) })
}
