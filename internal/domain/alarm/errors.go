package alarm

import "errors"

var (
	// ErrInvalidAlarmData is returned when a record fails validation on create, update or toggle.
	ErrInvalidAlarmData = errors.New("invalid alarm data")
	// ErrInvalidBattleAlarmData is returned when the battle subsystem builds an invalid record.
	ErrInvalidBattleAlarmData = errors.New("invalid battle alarm data")
	// ErrAlarmNotFound is returned when an operation references an unknown id.
	ErrAlarmNotFound = errors.New("alarm not found")
	// ErrAccessDenied is returned when the requester does not own the alarm.
	ErrAccessDenied = errors.New("access denied")
	// ErrRateLimitExceeded is returned when an operation class exhausted its budget.
	ErrRateLimitExceeded = errors.New("too many attempts, please try again later")
	// ErrStorageFailure wraps repository write failures.
	ErrStorageFailure = errors.New("storage failure")
)
