// Package alarm implements the gRPC transport of the alarm engine.
//
// The AlarmService uses google.protobuf.Struct messages. Request and response
// shapes are the JSON-tagged types of this package; Encode and Decode convert
// between them and Struct values on both ends of the connection.
package alarm
