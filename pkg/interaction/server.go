package interaction

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/mash-protocol/mash-exchange/pkg/wire"
)

// Server answers Read and Write requests against an AttributeTable.
type Server struct {
	mu sync.RWMutex

	table  AttributeTable
	logger *slog.Logger

	// busy makes every request fail with StatusBusy.
	busy bool
}

// NewServer creates a new interaction server for the given table.
func NewServer(table AttributeTable) *Server {
	return &Server{table: table}
}

// SetLogger sets the optional logger for debug output.
func (s *Server) SetLogger(logger *slog.Logger) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logger = logger
}

// SetBusy makes the server refuse every request with StatusBusy until
// cleared. It simulates an unreachable device.
func (s *Server) SetBusy(busy bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.busy = busy
}

// Busy reports whether the server refuses requests.
func (s *Server) Busy() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.busy
}

// HandleRequest processes an incoming request and returns a response.
func (s *Server) HandleRequest(ctx context.Context, req *wire.Request) *wire.Response {
	s.mu.RLock()
	busy := s.busy
	s.mu.RUnlock()

	s.debugLog("request received",
		"messageID", req.MessageID,
		"operation", req.Operation.String(),
		"endpoint", req.EndpointID,
		"feature", req.FeatureID)

	if busy {
		return errorResponse(req.MessageID, wire.StatusBusy, "device busy")
	}

	switch req.Operation {
	case wire.OpRead:
		return s.handleRead(ctx, req)
	case wire.OpWrite:
		return s.handleWrite(ctx, req)
	default:
		return errorResponse(req.MessageID, wire.StatusUnsupported, "unknown operation")
	}
}

// handleRead processes a Read request. Unknown or unreadable attributes
// are left out of the response.
func (s *Server) handleRead(_ context.Context, req *wire.Request) *wire.Response {
	feature, resp := s.feature(req)
	if resp != nil {
		return resp
	}

	attrIDs := wire.AttributeIDs(req.Payload)

	var values map[uint16]any
	if len(attrIDs) == 0 {
		values = feature.ReadAllAttributes()
	} else {
		values = make(map[uint16]any, len(attrIDs))
		for _, id := range attrIDs {
			val, err := feature.ReadAttribute(id)
			if err != nil {
				continue
			}
			values[id] = val
		}
	}

	return &wire.Response{
		MessageID: req.MessageID,
		Status:    wire.StatusSuccess,
		Payload:   values,
	}
}

// handleWrite processes a Write request. Every attribute is checked before
// any is written, so a rejected write leaves the feature unchanged.
func (s *Server) handleWrite(_ context.Context, req *wire.Request) *wire.Response {
	feature, resp := s.feature(req)
	if resp != nil {
		return resp
	}

	attrs, ok := wire.AttributeMap(req.Payload)
	if !ok {
		return errorResponse(req.MessageID, wire.StatusInvalidParameter, "invalid payload format")
	}
	if len(attrs) == 0 {
		return errorResponse(req.MessageID, wire.StatusInvalidParameter, "no attributes to write")
	}

	for id := range attrs {
		if err := feature.CheckWrite(id); err != nil {
			return errorResponse(req.MessageID, statusFor(err), err.Error())
		}
	}

	results := make(map[uint16]any, len(attrs))
	for id, val := range attrs {
		if err := feature.WriteAttribute(id, val); err != nil {
			return errorResponse(req.MessageID, statusFor(err), err.Error())
		}
		results[id] = val
	}

	return &wire.Response{
		MessageID: req.MessageID,
		Status:    wire.StatusSuccess,
		Payload:   results,
	}
}

func (s *Server) feature(req *wire.Request) (FeatureAttributes, *wire.Response) {
	feature, err := s.table.Feature(req.EndpointID, req.FeatureID)
	if err != nil {
		return nil, errorResponse(req.MessageID, statusFor(err), err.Error())
	}
	return feature, nil
}

// debugLog logs a debug message if logging is enabled.
func (s *Server) debugLog(msg string, args ...any) {
	s.mu.RLock()
	logger := s.logger
	s.mu.RUnlock()
	if logger != nil {
		logger.Debug(msg, args...)
	}
}

// statusFor maps a table error to a response status.
func statusFor(err error) wire.Status {
	switch {
	case errors.Is(err, ErrEndpointNotFound):
		return wire.StatusInvalidEndpoint
	case errors.Is(err, ErrFeatureNotFound):
		return wire.StatusInvalidFeature
	case errors.Is(err, ErrAttributeNotFound):
		return wire.StatusInvalidAttribute
	case errors.Is(err, ErrReadOnly):
		return wire.StatusReadOnly
	case errors.Is(err, ErrWriteOnly):
		return wire.StatusWriteOnly
	default:
		return wire.StatusInvalidParameter
	}
}

// errorResponse creates an error response.
func errorResponse(msgID uint32, status wire.Status, message string) *wire.Response {
	return &wire.Response{
		MessageID: msgID,
		Status:    status,
		Payload:   &wire.ErrorPayload{Message: message},
	}
}
