// Package engine implements the alarm lifecycle engine.
//
// An Engine owns the working set of alarms loaded for the session, executes
// CRUD with validation, ownership and rate-limit guards, runs the periodic
// trigger scan and drives every alarm through its lifecycle states:
//
//	scheduled -> triggered -> dismissed | snoozed -> triggered ...
//
// In-memory mutations complete under the working-set lock before any
// repository, notification or battle call is issued. Adapter I/O of
// mutating operations runs in mutation order so a later snapshot never
// reaches storage before an earlier one.
package engine
