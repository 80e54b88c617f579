package log

import (
	"errors"
	"io"
	"os"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// Filter specifies criteria for filtering cycle events.
// Empty/nil fields match all events for that criterion.
type Filter struct {
	// Scope filters by exact scope match.
	Scope string

	// Direction filters by cycle direction.
	Direction *Direction

	// Outcome filters by cycle outcome.
	Outcome *Outcome

	// TimeStart filters events at or after this time.
	TimeStart *time.Time

	// TimeEnd filters events before this time.
	TimeEnd *time.Time
}

// matches returns true if the event matches all filter criteria.
func (f *Filter) matches(event Event) bool {
	if f.Scope != "" && event.Scope != f.Scope {
		return false
	}
	if f.Direction != nil && event.Direction != *f.Direction {
		return false
	}
	if f.Outcome != nil && event.Outcome != *f.Outcome {
		return false
	}
	if f.TimeStart != nil && event.Timestamp.Before(*f.TimeStart) {
		return false
	}
	if f.TimeEnd != nil && !event.Timestamp.Before(*f.TimeEnd) {
		return false
	}
	return true
}

// Reader reads cycle events from a CBOR-encoded file.
// It provides an iterator interface for streaming large files.
type Reader struct {
	file    *os.File
	decoder *cbor.Decoder
	filter  Filter
}

// NewReader creates a Reader that reads all events from the specified log file.
func NewReader(path string) (*Reader, error) {
	return NewFilteredReader(path, Filter{})
}

// NewFilteredReader creates a Reader that reads events matching the filter.
func NewFilteredReader(path string, filter Filter) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return &Reader{
		file:    f,
		decoder: NewDecoder(f),
		filter:  filter,
	}, nil
}

// Next returns the next event that matches the filter.
// Returns io.EOF when no more events are available.
func (r *Reader) Next() (Event, error) {
	for {
		var event Event
		if err := r.decoder.Decode(&event); err != nil {
			if errors.Is(err, io.EOF) {
				return Event{}, io.EOF
			}
			return Event{}, err
		}

		if r.filter.matches(event) {
			return event, nil
		}
	}
}

// Close closes the underlying file.
func (r *Reader) Close() error {
	return r.file.Close()
}

// Stats summarizes a sequence of events.
type Stats struct {
	Cycles     int
	Failures   int
	Recoveries int
	ByScope    map[string]int
	Total      time.Duration
	Max        time.Duration
}

// Add accounts for one event.
func (s *Stats) Add(event Event) {
	if s.ByScope == nil {
		s.ByScope = make(map[string]int)
	}
	s.Cycles++
	s.ByScope[event.Scope]++
	switch event.Outcome {
	case OutcomeFailure:
		s.Failures++
	case OutcomeRecovered:
		s.Recoveries++
	}
	s.Total += event.Duration
	if event.Duration > s.Max {
		s.Max = event.Duration
	}
}

// Mean returns the mean cycle duration.
func (s *Stats) Mean() time.Duration {
	if s.Cycles == 0 {
		return 0
	}
	return s.Total / time.Duration(s.Cycles)
}
