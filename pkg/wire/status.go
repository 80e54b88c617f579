package wire

// Status is a response status code.
type Status uint8

const (
	// StatusSuccess indicates the operation completed successfully.
	StatusSuccess Status = 0

	// StatusInvalidEndpoint indicates the endpoint doesn't exist.
	StatusInvalidEndpoint Status = 1

	// StatusInvalidFeature indicates the feature doesn't exist on the endpoint.
	StatusInvalidFeature Status = 2

	// StatusInvalidAttribute indicates the attribute doesn't exist.
	StatusInvalidAttribute Status = 3

	// StatusInvalidParameter indicates a malformed payload.
	StatusInvalidParameter Status = 5

	// StatusReadOnly indicates an attempt to write a read-only attribute.
	StatusReadOnly Status = 6

	// StatusWriteOnly indicates an attempt to read a write-only attribute.
	StatusWriteOnly Status = 7

	// StatusBusy indicates the device cannot serve requests right now.
	StatusBusy Status = 9

	// StatusUnsupported indicates the operation is not supported.
	StatusUnsupported Status = 10
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "SUCCESS"
	case StatusInvalidEndpoint:
		return "INVALID_ENDPOINT"
	case StatusInvalidFeature:
		return "INVALID_FEATURE"
	case StatusInvalidAttribute:
		return "INVALID_ATTRIBUTE"
	case StatusInvalidParameter:
		return "INVALID_PARAMETER"
	case StatusReadOnly:
		return "READ_ONLY"
	case StatusWriteOnly:
		return "WRITE_ONLY"
	case StatusBusy:
		return "BUSY"
	case StatusUnsupported:
		return "UNSUPPORTED"
	default:
		return "UNKNOWN"
	}
}

// IsSuccess returns true if the status indicates success.
func (s Status) IsSuccess() bool {
	return s == StatusSuccess
}
