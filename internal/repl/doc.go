// Package repl implements the interactive chat loop.
//
// Invariants:
// - Exactly one turn is in flight; the next line is read only after the
//   previous turn's events are drained or its error is reported.
// - Events authored by the user are never printed.
// - "exit" (any case, surrounding whitespace ignored) or end of input closes
//   the tool connector once and ends the loop.
// - A failed turn is reported and the loop continues.
package repl
