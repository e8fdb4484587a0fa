// Package logger wraps zap to offer:
//   - a global sugared logger with console or JSON encoding,
//   - context helpers (ToContext/FromContext/WithName/WithKV),
//   - level parsing and a per-logger level option,
//   - leveled convenience functions (Infof, ErrorKV, etc.).
//
// Services accept a context and extract the logger from it, so every log line
// carries the scope it was produced in.
package logger
