package serializer

import (
	"reflect"
	"testing"

	"github.com/ValentinKolb/liveQ/rpc/common"
)

// testSerializers is a map of serializer name to factory function
var testSerializers = map[string]func() IRPCSerializer{
	"JSON":   NewJSONSerializer,
	"GOB":    NewGOBSerializer,
	"Binary": NewBinarySerializer,
}

// testMessages creates a set of test messages with different fields filled
func testMessages() []common.Message {
	return []common.Message{
		// Basic message with just a type
		{MsgType: common.MsgTSuccess},

		// Query request
		{
			MsgType:   common.MsgTQuery,
			Operation: "listMovies",
			Variables: []byte(`{"genre":"scifi","limit":10}`),
		},

		// Query response
		{
			MsgType:   common.MsgTQuery,
			Operation: "listMovies",
			Result:    []byte(`[{"title":"Solaris"},{"title":"Stalker"}]`),
		},

		// Mutation request
		{
			MsgType:   common.MsgTMutation,
			Operation: "addMovie",
			Variables: []byte(`{"title":"Alphaville"}`),
		},

		// Error response
		{
			MsgType: common.MsgTError,
			Err:     "test error message",
		},

		// Ping
		{MsgType: common.MsgTPing},

		// Message with all fields filled
		{
			MsgType:   common.MsgTQuery,
			Operation: "getMovie",
			Variables: []byte(`{"id":42}`),
			Result:    []byte(`{"title":"Brazil"}`),
			Err:       "",
			Meta:      []byte("test-meta-data"),
		},
	}
}

// TestSerializerRoundTrip tests that messages can be serialized and deserialized correctly
func TestSerializerRoundTrip(t *testing.T) {
	messages := testMessages()

	for name, factory := range testSerializers {
		t.Run(name, func(t *testing.T) {
			serializer := factory()

			for i, msg := range messages {
				// Serialize
				data, err := serializer.Serialize(msg)
				if err != nil {
					t.Errorf("Failed to serialize message %d: %v", i, err)
					continue
				}

				// Deserialize
				var result common.Message
				err = serializer.Deserialize(data, &result)
				if err != nil {
					t.Errorf("Failed to deserialize message %d: %v", i, err)
					continue
				}

				// Compare
				if !reflect.DeepEqual(msg, result) {
					t.Errorf("Message %d doesn't match after round trip:\nOriginal: %+v\nResult: %+v",
						i, msg, result)
				}
			}
		})
	}
}

// TestMessageTypes tests each message type with each serializer
func TestMessageTypes(t *testing.T) {
	for name, factory := range testSerializers {
		t.Run(name, func(t *testing.T) {
			serializer := factory()

			// Test each message type (don't test for MsgTUnknown since this should raise an error)
			for msgType := common.MsgTSuccess; msgType <= common.MsgTPing; msgType++ {
				msg := common.Message{MsgType: msgType}

				data, err := serializer.Serialize(msg)
				if err != nil {
					t.Errorf("Failed to serialize message type %s: %v", msgType, err)
					continue
				}

				var result common.Message
				if err := serializer.Deserialize(data, &result); err != nil {
					t.Errorf("Failed to deserialize message type %s: %v", msgType, err)
					continue
				}

				if result.MsgType != msgType {
					t.Errorf("Message type mismatch: expected %s, got %s", msgType, result.MsgType)
				}
			}
		})
	}
}

// TestDeserializeInvalidData verifies broken input is rejected instead of
// producing a half-filled message
func TestDeserializeInvalidData(t *testing.T) {
	invalid := map[string][]byte{
		"JSON":   []byte(`{"msg_type":`),
		"GOB":    []byte{0x01},
		"Binary": {byte(common.MsgTQuery), hasOperation, 0x00}, // truncated length
	}

	for name, factory := range testSerializers {
		t.Run(name, func(t *testing.T) {
			var msg common.Message
			if err := factory().Deserialize(invalid[name], &msg); err == nil {
				t.Errorf("Expected error for invalid input")
			}
		})
	}
}
