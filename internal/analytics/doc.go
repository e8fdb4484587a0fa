// Package analytics records lifecycle milestones of alarms.
//
// Emitters are fire-and-forget: Track never blocks on I/O and never fails.
package analytics
