// Package guard refuses to start a second engine process on the same host.
package guard
