package repl

import "strings"

// Action is the signal the line protocol produces for one received line.
type Action int

const (
	// ActionContinue means the line was buffered (or armed the trigger);
	// keep reading.
	ActionContinue Action = iota
	// ActionEvaluate means the caller must take the pending unit and
	// evaluate it.
	ActionEvaluate
	// ActionEnd means the caller must tear the session down.
	ActionEnd
	// ActionPassthrough means the line is not consumed and must fall
	// through to host command handling unmodified.
	ActionPassthrough
)

// Sentinel input lines. Matched case-sensitively against the raw line.
const (
	// SentinelEnd terminates the session.
	SentinelEnd = "end"
	// SentinelQuit is never consumed by the session; it belongs to the host.
	SentinelQuit = "qqq"
)

// LineBuffer accumulates console input lines into a pending script unit
// and detects the evaluate trigger: two consecutive blank lines. A single
// blank line inside a unit is preserved as an ordinary newline so
// multi-line constructs can be entered naturally.
type LineBuffer struct {
	pending  string
	sawBlank bool
}

// Feed processes one raw line and returns the resulting Action. Sentinels
// take precedence over buffering and never alter buffer state.
func (b *LineBuffer) Feed(line string) Action {
	if line == SentinelQuit {
		return ActionPassthrough
	}
	if line == SentinelEnd {
		return ActionEnd
	}

	if strings.TrimSpace(line) == "" {
		if b.sawBlank {
			return ActionEvaluate
		}
		b.sawBlank = true
		return ActionContinue
	}

	// Content line. A deferred single blank becomes part of the unit text.
	if b.pending != "" {
		if b.sawBlank {
			b.pending += "\n"
		}
		b.pending += "\n"
	}
	b.pending += line
	b.sawBlank = false
	return ActionContinue
}

// Take returns the pending unit text and clears all buffer state.
func (b *LineBuffer) Take() string {
	text := b.pending
	b.Reset()
	return text
}

// Pending returns the accumulated unit text without clearing it.
func (b *LineBuffer) Pending() string {
	return b.pending
}

// Reset clears the pending unit and the blank-line trigger state.
func (b *LineBuffer) Reset() {
	b.pending = ""
	b.sawBlank = false
}
