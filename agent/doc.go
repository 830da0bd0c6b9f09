// Package agent implements a goal-directed, tool-using agent loop.
//
// An Agent is configured with prioritized Goals, a Registry of Actions, a
// Language that renders prompts and parses model output, and an Oracle that
// decides what to do next. Each call to Run creates a fresh Memory, then
// repeatedly asks the oracle for a Decision, executes the chosen Action
// through the Environment, and records the outcome until a terminal action
// runs or the iteration bound is reached.
//
// Tool and decision failures never abort a run; they are recorded in Memory
// so the oracle can correct course. Only an oracle failure ends a run with an
// error.
package agent
