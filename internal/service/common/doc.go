// Package common holds helpers shared by the engine CLI commands.
//
// It provides a typed AlarmService client with call timeouts and optional
// bearer tokens, and detects the OS user as the default requester.
//
//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common
