package transport

import (
	"encoding/json"
	"fmt"
)

const jsonrpcVersion = "2.0"

// Message is one JSON-RPC 2.0 frame. Requests carry ID and Method,
// notifications carry only Method, responses carry ID and Result or Error.
type Message struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *int64          `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// RPCError is the error object of a JSON-RPC response.
type RPCError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("rpc error %d", e.Code)
	}
	return e.Message
}

// EventKind classifies an out-of-band event.
type EventKind int

const (
	// EventNotification is an inbound message with a method.
	EventNotification EventKind = iota
	// EventError is a malformed line, stderr output or a read failure.
	EventError
	// EventClose is emitted once when the child's stdout closes.
	EventClose
)

func (k EventKind) String() string {
	switch k {
	case EventNotification:
		return "notification"
	case EventError:
		return "error"
	case EventClose:
		return "close"
	default:
		return "unknown"
	}
}

// Event is something the child sent that was not a response to a request.
type Event struct {
	Kind   EventKind
	Method string
	Params json.RawMessage
	Err    error
}

func encodeParams(params any) (json.RawMessage, error) {
	if params == nil {
		return nil, nil
	}
	if raw, ok := params.(json.RawMessage); ok {
		return raw, nil
	}
	b, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("marshaling params: %w", err)
	}
	return b, nil
}
