// Package transport owns a single tool-server child process and speaks
// newline-delimited JSON-RPC 2.0 with it over stdin/stdout.
//
// A [Conn] correlates responses to pending requests by numeric id, applies a
// per-request timeout, and surfaces everything that is not a response
// (inbound notifications, malformed lines, stderr output, process exit) as
// [Event] values on a buffered channel. Event delivery never blocks request
// correlation: when the channel is full, events are dropped.
package transport
