// Package client implements the alarm CLI commands.
//
// A Session connects to the engine over gRPC and prints every response as
// indented JSON.
package client
