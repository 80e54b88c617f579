package log

import (
	"time"

	"github.com/oklog/ulid/v2"
)

// Event records one executed download or upload cycle.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// ID is a time-ordered cycle identifier (ULID).
	ID string `cbor:"1,keyasint"`

	// Timestamp is when the cycle started (nanosecond precision).
	Timestamp time.Time `cbor:"2,keyasint"`

	// Scope identifies the connection whose cycle ran ("root" for a coordinator).
	Scope string `cbor:"3,keyasint"`

	// Direction is download or upload.
	Direction Direction `cbor:"4,keyasint"`

	// Outcome classifies the cycle result.
	Outcome Outcome `cbor:"5,keyasint"`

	// NodeCount is the number of nodes in the cycle.
	NodeCount int `cbor:"6,keyasint"`

	// LinkCount is the number of data links in the cycle.
	LinkCount int `cbor:"7,keyasint,omitempty"`

	// CallbackCount is the number of callbacks dispatched.
	CallbackCount int `cbor:"8,keyasint,omitempty"`

	// Duration is the wall time of the cycle. Stored as nanoseconds.
	Duration time.Duration `cbor:"9,keyasint"`

	// Error is the batch I/O error text (failure outcome only).
	Error string `cbor:"10,keyasint,omitempty"`
}

// NewEventID returns a fresh time-ordered event identifier.
func NewEventID() string {
	return ulid.Make().String()
}

// Direction indicates whether a cycle read or wrote.
type Direction uint8

const (
	// DirectionDownload indicates a batched read.
	DirectionDownload Direction = 0
	// DirectionUpload indicates a batched write.
	DirectionUpload Direction = 1
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionDownload:
		return "DOWNLOAD"
	case DirectionUpload:
		return "UPLOAD"
	default:
		return "UNKNOWN"
	}
}

// Outcome classifies the result of a cycle.
type Outcome uint8

const (
	// OutcomeSuccess indicates the batch I/O succeeded.
	OutcomeSuccess Outcome = 0
	// OutcomeFailure indicates the batch I/O failed.
	OutcomeFailure Outcome = 1
	// OutcomeRecovered indicates the first success after one or more failures.
	OutcomeRecovered Outcome = 2
)

// String returns the outcome name.
func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "SUCCESS"
	case OutcomeFailure:
		return "FAILURE"
	case OutcomeRecovered:
		return "RECOVERED"
	default:
		return "UNKNOWN"
	}
}
