// Package clock provides the time source used by the trigger scan.
//
// Real reads the wall clock in a fixed location; Fake is a settable clock for
// deterministic tests.
package clock
