// Package worker implements the command-dispatch core of the daemon: a single
// goroutine that exclusively owns the loaded model and drains a multi-producer
// queue of typed commands in strict arrival order. It is structured into small
// files by concern:
//
//   - worker.go: Worker type, run loop, command handlers, drain policy.
//   - command.go: the closed Command union and session token events.
//   - queue.go: unbounded multi-producer/single-consumer FIFO.
//   - session.go: per-request generation sessions and stop-condition handling.
//   - state.go: registry of named initial states owned by the model instance.
//   - info.go: one-shot and periodic runtime-info queries.
//   - errors.go: error types and helpers (IsModelLoadFailed, ...).
//   - metrics.go: Prometheus collectors.
//
// Concurrency model: mutating commands (reload, unload, state-load, save) are
// true critical sections processed to completion on the worker goroutine.
// Generation commands only register a session and hand it a read-only borrow
// of the model; token production runs on its own goroutine. A later reload or
// unload waits for every active session to emit its terminal event before the
// model is swapped or freed (drain-then-swap), so sessions never observe a
// torn model. Nothing outside the run loop ever touches the model, the
// adapter set, or the state registry.
package worker
