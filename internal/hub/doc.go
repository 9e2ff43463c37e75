// Package hub is the in-process command/event dispatch backbone. Components
// never call each other directly: they register handlers on a Hub and send
// messages through it.
//
//   - hub.go: Hub type, registrations, Handle/Subscribe helpers, Verify.
//   - dispatch.go: Execute/ExecuteWait for commands, Publish for events.
//   - uictx.go: the UI marshaller hook and UI context marking.
//   - errors.go: sentinel errors and IsXxx helpers.
//   - metrics.go: per-message Prometheus counters.
//   - recorder.go: Recorder, an event sink used by tests and diagnostics.
//
// Commands have exactly one handler and may fail. Events have any number of
// subscribers, are delivered in registration order, and subscriber failures
// never reach the publisher. A Hub is constructed once per process and passed
// explicitly to every component that needs it.
package hub
