// Package battle connects battle-linked alarms to the competitive-mode service.
//
// The engine only knows the Adapter contract: it asks the service to build
// battle alarm records and reports trigger, dismissal, snooze and unlink of
// linked alarms.
package battle
