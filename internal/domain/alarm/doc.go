// Package alarm contains core domain types for the alarm lifecycle.
//
// It defines the Alarm record with its snooze policy, the append-only
// AlarmEvent history entry, the per-alarm lifecycle State, the pure validator
// and the day-of-week/time-of-day schedule math used by the trigger scan.
package alarm
