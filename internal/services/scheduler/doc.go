// Package scheduler is cronhub's cron service: job CRUD on top of a
// storage.Store plus a polling loop that dispatches due jobs to a Handler.
//
// The store is the only shared state. Every CRUD call and every tick is a
// full reload/save against it, so several Service instances (in one process
// or many) may point at the same store; a running loop observes external
// edits on its next tick.
//
// Loop contract:
//   - Start/Stop are control operations and never wait for handlers.
//   - Each tick reloads the store after the tick fires and before deciding
//     what to dispatch, so a disable committed before a tick prevents the
//     dispatch on that tick and every later one.
//   - Each due job runs on its own goroutine; a job already in flight is not
//     dispatched again until its run-state has been recorded.
//   - Handler errors and panics are recorded on the job and logged; they
//     never stop the loop.
package scheduler
