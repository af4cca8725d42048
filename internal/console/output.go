package console

import "go.uber.org/zap"

// LineWriter is the console output primitive used by the OutputAdapter.
type LineWriter interface {
	WriteLine(text string)
}

// OutputAdapter formats evaluation results and errors for display. Each
// call is a single unbuffered write to the underlying console.
type OutputAdapter struct {
	w      LineWriter
	logger *zap.Logger
}

// NewOutputAdapter creates an OutputAdapter.
//
// Precondition: w and logger must be non-nil.
func NewOutputAdapter(w LineWriter, logger *zap.Logger) *OutputAdapter {
	if w == nil {
		panic("console: nil line writer")
	}
	if logger == nil {
		panic("console: nil logger")
	}
	return &OutputAdapter{w: w, logger: logger}
}

// Display writes one plain line to the console.
func (o *OutputAdapter) Display(line string) {
	o.w.WriteLine(line)
}

// DisplayResult writes a distinguished "=> text" line for a successful
// evaluation that produced a value.
func (o *OutputAdapter) DisplayResult(text string) {
	o.w.WriteLine("=> " + text)
}

// DisplayError writes an "Error: msg" line and records the failure on the
// diagnostic channel.
func (o *OutputAdapter) DisplayError(msg string) {
	o.logger.Warn("console: script error", zap.String("message", msg))
	o.w.WriteLine("Error: " + msg)
}
