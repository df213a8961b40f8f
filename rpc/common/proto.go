package common

import (
	"encoding/json"
	"fmt"
)

// --------------------------------------------------------------------------
// Message Structure
// --------------------------------------------------------------------------

// Message represents a single message used for both requests and responses.
// Which fields are used depends on the type of message.
type Message struct {
	// Type of message
	MsgType MessageType `json:"msg_type"`

	// Request fields
	Operation string `json:"operation,omitempty"` // Name of the query or mutation
	Variables []byte `json:"variables,omitempty"` // Canonical encoded variables payload

	// Response fields
	Result []byte `json:"result,omitempty"` // Raw structured result (response only)
	Err    string `json:"err,omitempty"`    // Empty if no error, otherwise contains the error message

	// Meta information
	Meta []byte `json:"meta,omitempty"` // Unused, can be used for additional adapters
}

// --------------------------------------------------------------------------
// Message Factory Functions
// --------------------------------------------------------------------------

// NewQueryRequest creates a new Query request
func NewQueryRequest(operation string, variables []byte) *Message {
	return &Message{
		MsgType:   MsgTQuery,
		Operation: operation,
		Variables: variables,
	}
}

// NewQueryResponse creates a new Query response
func NewQueryResponse(operation string, result []byte, err error) *Message {
	msg := &Message{
		MsgType:   MsgTQuery,
		Operation: operation,
		Result:    result,
	}
	if err != nil {
		msg.Err = err.Error()
	}
	return msg
}

// NewMutationRequest creates a new Mutation request
func NewMutationRequest(operation string, variables []byte) *Message {
	return &Message{
		MsgType:   MsgTMutation,
		Operation: operation,
		Variables: variables,
	}
}

// NewMutationResponse creates a new Mutation response
func NewMutationResponse(operation string, result []byte, err error) *Message {
	msg := &Message{
		MsgType:   MsgTMutation,
		Operation: operation,
		Result:    result,
	}
	if err != nil {
		msg.Err = err.Error()
	}
	return msg
}

// NewPingRequest creates a new Ping request
func NewPingRequest() *Message {
	return &Message{
		MsgType: MsgTPing,
	}
}

// NewPingResponse creates a new Ping response
func NewPingResponse() *Message {
	return &Message{
		MsgType: MsgTPing,
	}
}

// NewErrorResponse creates a new Error response
func NewErrorResponse(err string) *Message {
	return &Message{
		MsgType: MsgTError,
		Err:     err,
	}
}

// --------------------------------------------------------------------------
// Message Type Definition
// --------------------------------------------------------------------------

// MessageType defines the type of message used in RPC communication.
type MessageType uint8

// String returns the string representation of a MessageType.
func (t MessageType) String() string {
	switch t {
	case MsgTQuery:
		return "query"
	case MsgTMutation:
		return "mutation"
	case MsgTPing:
		return "ping"
	case MsgTError:
		return "error"
	case MsgTSuccess:
		return "success"
	default:
		return "unknown"
	}
}

// MarshalJSON implements the json.Marshaller interface for MessageType.
// This allows MessageType to be serialized as a string in JSON.
func (t MessageType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON implements the json.Unmarshaler interface for MessageType.
// This allows MessageType to be deserialized from a string in JSON.
func (t *MessageType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	// Convert string back to MessageType
	switch s {
	case "query":
		*t = MsgTQuery
	case "mutation":
		*t = MsgTMutation
	case "ping":
		*t = MsgTPing
	case "error":
		*t = MsgTError
	case "success":
		*t = MsgTSuccess
	default:
		return fmt.Errorf("unknown message type: %s", s)
	}

	return nil
}

// --------------------------------------------------------------------------
// Message Type Constants
// --------------------------------------------------------------------------

const (
	// General message types

	MsgTUnknown MessageType = iota
	MsgTSuccess             // Indicates a successful operation
	MsgTError               // Indicates an error occurred

	// Operation message types

	MsgTQuery    // Execute a named query
	MsgTMutation // Execute a named mutation

	// Connection management

	MsgTPing // Liveness probe
)
