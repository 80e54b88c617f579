package wire

// Operation is a request operation.
type Operation uint8

const (
	// OpRead gets current attribute values.
	OpRead Operation = 1

	// OpWrite sets attribute values.
	OpWrite Operation = 2
)

// String returns the operation name.
func (o Operation) String() string {
	switch o {
	case OpRead:
		return "Read"
	case OpWrite:
		return "Write"
	default:
		return "Unknown"
	}
}

// IsValid returns true if the operation is supported.
func (o Operation) IsValid() bool {
	return o == OpRead || o == OpWrite
}
