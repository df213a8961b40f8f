package serializer

import (
	"encoding/binary"
	"fmt"

	"github.com/ValentinKolb/liveQ/rpc/common"
)

// NewBinarySerializer creates a new serializer using a custom binary format
// optimized for speed and efficiency
func NewBinarySerializer() IRPCSerializer {
	return &binarySerializerImpl{}
}

// binarySerializerImpl implements IRPCSerializer using a custom binary format
type binarySerializerImpl struct {
}

// Bit flags to indicate which optional fields are present
const (
	hasOperation byte = 1 << 0
	hasVariables byte = 1 << 1
	hasResult    byte = 1 << 2
	hasErr       byte = 1 << 3
	hasMeta      byte = 1 << 4
)

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.IRPCSerializer)
// --------------------------------------------------------------------------

func (b binarySerializerImpl) Serialize(msg common.Message) ([]byte, error) {
	// Calculate total size needed
	totalSize := b.sizeBytes(msg)
	result := make([]byte, totalSize)

	// Write message type
	result[0] = byte(msg.MsgType)

	// Initialize flags byte
	var flags byte = 0

	// Set position for writing
	pos := 2 // Start after MsgType and flags

	// Handle Operation
	if msg.Operation != "" {
		flags |= hasOperation
		opBytes := []byte(msg.Operation)
		opLen := len(opBytes)

		// Write operation length
		binary.BigEndian.PutUint32(result[pos:pos+4], uint32(opLen))
		pos += 4

		// Write operation data
		copy(result[pos:pos+opLen], opBytes)
		pos += opLen
	}

	// Handle Variables
	if msg.Variables != nil {
		flags |= hasVariables
		varLen := len(msg.Variables)

		// Write variables length
		binary.BigEndian.PutUint32(result[pos:pos+4], uint32(varLen))
		pos += 4

		// Write variables data
		if varLen > 0 {
			copy(result[pos:pos+varLen], msg.Variables)
			pos += varLen
		}
	}

	// Handle Result
	if msg.Result != nil {
		flags |= hasResult
		resLen := len(msg.Result)

		// Write result length
		binary.BigEndian.PutUint32(result[pos:pos+4], uint32(resLen))
		pos += 4

		// Write result data
		if resLen > 0 {
			copy(result[pos:pos+resLen], msg.Result)
			pos += resLen
		}
	}

	// Handle Err
	if msg.Err != "" {
		flags |= hasErr
		errBytes := []byte(msg.Err)
		errLen := len(errBytes)

		// Write error length
		binary.BigEndian.PutUint32(result[pos:pos+4], uint32(errLen))
		pos += 4

		// Write error data
		copy(result[pos:pos+errLen], errBytes)
		pos += errLen
	}

	// Handle Meta
	if msg.Meta != nil {
		flags |= hasMeta
		metaLen := len(msg.Meta)

		// Write meta length
		binary.BigEndian.PutUint32(result[pos:pos+4], uint32(metaLen))
		pos += 4

		// Write meta data
		if metaLen > 0 {
			copy(result[pos:pos+metaLen], msg.Meta)
			pos += metaLen
		}
	}

	// Set flags byte after knowing which fields are present
	result[1] = flags

	return result, nil
}

func (b binarySerializerImpl) Deserialize(data []byte, msg *common.Message) error {
	// Check minimum size (MsgType + flags)
	if len(data) < 2 {
		return fmt.Errorf("data too short for message header")
	}

	// Read message type
	msg.MsgType = common.MessageType(data[0])

	// Read flags
	flags := data[1]

	// Initialize read position
	pos := 2

	// Read Operation if present
	if flags&hasOperation != 0 {
		if pos+4 > len(data) {
			return fmt.Errorf("data too short for operation length")
		}

		// Read operation length
		opLen := binary.BigEndian.Uint32(data[pos : pos+4])
		pos += 4

		if pos+int(opLen) > len(data) {
			return fmt.Errorf("data too short for operation data")
		}

		// Read operation data
		msg.Operation = string(data[pos : pos+int(opLen)])
		pos += int(opLen)
	} else {
		msg.Operation = ""
	}

	// Read Variables if present
	if flags&hasVariables != 0 {
		if pos+4 > len(data) {
			return fmt.Errorf("data too short for variables length")
		}

		// Read variables length
		varLen := binary.BigEndian.Uint32(data[pos : pos+4])
		pos += 4

		if pos+int(varLen) > len(data) {
			return fmt.Errorf("data too short for variables data")
		}

		// Read variables data - create an empty slice (not nil) if length is 0
		// Allocate only if needed
		if msg.Variables == nil || cap(msg.Variables) < int(varLen) {
			msg.Variables = make([]byte, varLen)
		} else {
			msg.Variables = msg.Variables[:varLen]
		}

		if varLen > 0 {
			copy(msg.Variables, data[pos:pos+int(varLen)])
		}
		pos += int(varLen)
	} else {
		msg.Variables = nil
	}

	// Read Result if present
	if flags&hasResult != 0 {
		if pos+4 > len(data) {
			return fmt.Errorf("data too short for result length")
		}

		// Read result length
		resLen := binary.BigEndian.Uint32(data[pos : pos+4])
		pos += 4

		if pos+int(resLen) > len(data) {
			return fmt.Errorf("data too short for result data")
		}

		// Read result data - create an empty slice (not nil) if length is 0
		// Allocate only if needed
		if msg.Result == nil || cap(msg.Result) < int(resLen) {
			msg.Result = make([]byte, resLen)
		} else {
			msg.Result = msg.Result[:resLen]
		}

		if resLen > 0 {
			copy(msg.Result, data[pos:pos+int(resLen)])
		}
		pos += int(resLen)
	} else {
		msg.Result = nil
	}

	// Read Err if present
	if flags&hasErr != 0 {
		if pos+4 > len(data) {
			return fmt.Errorf("data too short for error length")
		}

		// Read error length
		errLen := binary.BigEndian.Uint32(data[pos : pos+4])
		pos += 4

		if pos+int(errLen) > len(data) {
			return fmt.Errorf("data too short for error data")
		}

		// Read error data
		msg.Err = string(data[pos : pos+int(errLen)])
		pos += int(errLen)
	} else {
		msg.Err = ""
	}

	// Read Meta if present
	if flags&hasMeta != 0 {
		if pos+4 > len(data) {
			return fmt.Errorf("data too short for meta length")
		}

		// Read meta length
		metaLen := binary.BigEndian.Uint32(data[pos : pos+4])
		pos += 4

		if pos+int(metaLen) > len(data) {
			return fmt.Errorf("data too short for meta data")
		}

		// Read metadata - create an empty slice (not nil) if length is 0
		// Allocate only if needed
		if msg.Meta == nil || cap(msg.Meta) < int(metaLen) {
			msg.Meta = make([]byte, metaLen)
		} else {
			msg.Meta = msg.Meta[:metaLen]
		}

		if metaLen > 0 {
			copy(msg.Meta, data[pos:pos+int(metaLen)])
		}
		pos += int(metaLen)
	} else {
		msg.Meta = nil
	}

	return nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// sizeBytes calculates the total size needed for serialization
func (b binarySerializerImpl) sizeBytes(msg common.Message) int {
	// 1 byte for MsgType + 1 byte for flags
	size := 2

	// Add sizes for fields that require length encoding
	if msg.Operation != "" {
		size += 4 + len(msg.Operation) // 4 bytes for length + operation string
	}
	if msg.Variables != nil {
		size += 4 + len(msg.Variables) // 4 bytes for length + variables bytes
	}
	if msg.Result != nil {
		size += 4 + len(msg.Result) // 4 bytes for length + result bytes
	}
	if msg.Err != "" {
		size += 4 + len(msg.Err) // 4 bytes for length + error string
	}
	if msg.Meta != nil {
		size += 4 + len(msg.Meta) // 4 bytes for length + meta bytes
	}

	return size
}
