package wire

import (
	"fmt"
)

// CBOR map keys for message encoding.
const (
	KeyMessageID  = 1
	KeyOpOrStatus = 2 // Operation (request) or Status (response)
	KeyEndpointID = 3
	KeyFeatureID  = 4
	KeyPayload    = 5
)

// Request is a Read or Write request for one feature.
//
// CBOR encoding:
//
//	{
//	  1: messageId,    // uint32, never 0
//	  2: operation,    // uint8: 1=Read, 2=Write
//	  3: endpointId,   // uint8
//	  4: featureId,    // uint8
//	  5: payload       // Read: array of attribute IDs, Write: attribute map
//	}
type Request struct {
	MessageID  uint32    `cbor:"1,keyasint"`
	Operation  Operation `cbor:"2,keyasint"`
	EndpointID uint8     `cbor:"3,keyasint"`
	FeatureID  uint8     `cbor:"4,keyasint"`
	Payload    any       `cbor:"5,keyasint,omitempty"`
}

// Validate checks if the request is valid.
func (r *Request) Validate() error {
	if r.MessageID == 0 {
		return fmt.Errorf("messageId 0 is reserved")
	}
	if !r.Operation.IsValid() {
		return fmt.Errorf("invalid operation: %d", r.Operation)
	}
	return nil
}

// Response answers a Request.
//
// CBOR encoding:
//
//	{
//	  1: messageId,    // uint32: matches request
//	  2: status,       // uint8: 0=success, or error code
//	  3: payload       // attribute map on success, ErrorPayload otherwise
//	}
type Response struct {
	MessageID uint32 `cbor:"1,keyasint"`
	Status    Status `cbor:"2,keyasint"`
	Payload   any    `cbor:"3,keyasint,omitempty"`
}

// IsSuccess returns true if the response indicates success.
func (r *Response) IsSuccess() bool {
	return r.Status.IsSuccess()
}

// ErrorPayload carries a human-readable message in an error response.
//
// CBOR encoding:
//
//	{
//	  1: message  // string
//	}
type ErrorPayload struct {
	Message string `cbor:"1,keyasint,omitempty"`
}

// AttributeIDs extracts the attribute IDs of a Read payload. Both the typed
// form and the []any produced by CBOR decoding are accepted. A nil or empty
// result means all attributes.
func AttributeIDs(payload any) []uint16 {
	switch p := payload.(type) {
	case nil:
		return nil
	case []uint16:
		return p
	case []any:
		ids := make([]uint16, 0, len(p))
		for _, item := range p {
			if id, ok := toAttributeID(item); ok {
				ids = append(ids, id)
			}
		}
		return ids
	default:
		return nil
	}
}

// AttributeMap extracts an attribute map from a payload. ok is false if the
// payload is not a map.
func AttributeMap(payload any) (map[uint16]any, bool) {
	switch p := payload.(type) {
	case map[uint16]any:
		return p, true
	case map[any]any:
		result := make(map[uint16]any, len(p))
		for k, v := range p {
			if id, ok := toAttributeID(k); ok {
				result[id] = v
			}
		}
		return result, true
	case map[uint64]any:
		result := make(map[uint16]any, len(p))
		for k, v := range p {
			result[uint16(k)] = v
		}
		return result, true
	default:
		return nil, false
	}
}

// ErrorMessage extracts the message of an error payload.
func ErrorMessage(payload any) string {
	switch p := payload.(type) {
	case *ErrorPayload:
		return p.Message
	case ErrorPayload:
		return p.Message
	case map[any]any:
		msg, _ := p[uint64(1)].(string)
		return msg
	default:
		return ""
	}
}

func toAttributeID(v any) (uint16, bool) {
	switch n := v.(type) {
	case uint16:
		return n, true
	case uint64:
		return uint16(n), true
	case int64:
		return uint16(n), true
	default:
		return 0, false
	}
}
