// Package console implements the host console collaborator: a command
// registry, an exclusive claim on raw input lines, and line-oriented output.
// The scripting session talks to it only through Register, Claim/Release,
// and WriteLine; the host binary drives it through Dispatch.
package console

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Handler executes a registered console command.
type Handler func(args []string)

// Command defines a host-invocable console command.
type Command struct {
	// Name is the canonical command name (matched case-insensitively).
	Name string
	// Help is the short help text displayed by the help command.
	Help string
	// Run executes the command.
	Run Handler
}

// LineFunc receives a raw input line while input is claimed. It reports
// whether the line was consumed; an unconsumed line falls through to
// normal command dispatch.
type LineFunc func(line string) bool

// Console owns command registration, output, and the exclusive-input claim.
// All methods are safe for concurrent use.
type Console struct {
	mu       sync.Mutex
	out      io.Writer
	logger   *zap.Logger
	commands map[string]*Command
	order    []string
	claimed  LineFunc
}

// New creates a Console writing lines to out.
//
// Precondition: out and logger must be non-nil.
// Postcondition: Returns a non-nil Console with an empty command registry.
func New(out io.Writer, logger *zap.Logger) *Console {
	if out == nil {
		panic("console: nil output writer")
	}
	if logger == nil {
		panic("console: nil logger")
	}
	return &Console{
		out:      out,
		logger:   logger,
		commands: make(map[string]*Command),
	}
}

// Register adds a command to the registry.
//
// Precondition: cmd.Name must be non-empty and cmd.Run non-nil.
// Postcondition: The command is dispatchable, or an error on a name collision.
func (c *Console) Register(cmd Command) error {
	if cmd.Name == "" {
		return fmt.Errorf("console: command name must not be empty")
	}
	if cmd.Run == nil {
		return fmt.Errorf("console: command %q has no handler", cmd.Name)
	}
	name := strings.ToLower(cmd.Name)

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.commands[name]; exists {
		return fmt.Errorf("console: duplicate command name: %q", name)
	}
	reg := cmd
	c.commands[name] = &reg
	c.order = append(c.order, name)
	return nil
}

// Claim grants fn exclusive first look at every subsequent input line,
// ahead of command dispatch.
//
// Postcondition: Returns an error if input is already claimed.
func (c *Console) Claim(fn LineFunc) error {
	if fn == nil {
		return fmt.Errorf("console: nil line handler")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.claimed != nil {
		return fmt.Errorf("console: input already claimed")
	}
	c.claimed = fn
	return nil
}

// Release returns input handling to normal command dispatch. Safe to call
// when no claim is held.
func (c *Console) Release() {
	c.mu.Lock()
	c.claimed = nil
	c.mu.Unlock()
}

// WriteLine writes one line to the console output.
func (c *Console) WriteLine(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.out, text)
}

// Dispatch routes one raw input line: the exclusive claimant first, then
// command lookup. Empty lines with no claimant are ignored.
func (c *Console) Dispatch(line string) {
	c.mu.Lock()
	claimed := c.claimed
	c.mu.Unlock()

	if claimed != nil && claimed(line) {
		return
	}

	name, args := parse(line)
	if name == "" {
		return
	}

	c.mu.Lock()
	cmd, ok := c.commands[name]
	c.mu.Unlock()

	if !ok {
		c.logger.Debug("console: unknown command", zap.String("command", name))
		c.WriteLine(fmt.Sprintf("Unknown command: %q", name))
		return
	}
	cmd.Run(args)
}

// Commands returns the registered commands in registration order.
func (c *Console) Commands() []Command {
	c.mu.Lock()
	defer c.mu.Unlock()
	result := make([]Command, 0, len(c.order))
	for _, name := range c.order {
		result = append(result, *c.commands[name])
	}
	return result
}

// parse splits a line into a lowercased command word and its arguments.
func parse(line string) (string, []string) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return "", nil
	}
	return strings.ToLower(fields[0]), fields[1:]
}
