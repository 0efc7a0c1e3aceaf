package pipeline

import "fmt"

// assertf panics when cond is false. The pipeline treats a small, fixed
// set of conditions as programmer errors: an undeclared
// message kind, PCM audio before any decoded stream, a zero
// sample-rate/channel decoded stream, sample counter overflow, and
// DIDL-Lite duration bounds. The message primitives also use it for
// their own misuse checks: unbalanced reference counts, a split point
// past the end of a message, and a sample rate that does not divide
// JiffiesPerSecond. Everything else is an expected, recoverable
// condition and must never reach this helper.
func assertf(cond bool, format string, args ...any) {
	if !cond {
		panic(fmt.Sprintf(format, args...))
	}
}
