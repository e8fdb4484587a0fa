// Package server runs the alarm engine process.
//
// Run wires the configured storage, rate limiter, notification scheduler and
// battle client into the engine, exposes it over gRPC and serves Prometheus
// metrics until the context is canceled.
package server
