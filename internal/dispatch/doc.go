// Package dispatch implements the dashboard's user-triggered operations.
//
// Every operation follows the same cycle: DispatchStarted, one backend
// call, then the outcome recorded in the store (replacement data and a
// success Result, or a failure Result), and DispatchFinished on every path.
// Failures are logged and recorded but never crash the caller. The
// returned error only serves synchronous callers such as the CLI.
package dispatch
