package interaction

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mash-protocol/mash-exchange/pkg/node"
	"github.com/mash-protocol/mash-exchange/pkg/wire"
)

const (
	testEndpoint    uint8 = 1
	testMeasurement uint8 = 4
	testControl     uint8 = 5
)

func createTestTable() *Table {
	table := NewTable()
	table.Define(testEndpoint, testMeasurement, 1, node.AccessRead, int64(11000000))
	table.Define(testEndpoint, testMeasurement, 2, node.AccessRead, uint64(400))
	table.Define(testEndpoint, testControl, 21, node.AccessReadWrite, int64(6000))
	table.Define(testEndpoint, testControl, 22, node.AccessWrite, nil)
	return table
}

func TestServerRead(t *testing.T) {
	server := NewServer(createTestTable())

	t.Run("ReadAll", func(t *testing.T) {
		req := &wire.Request{
			MessageID:  1,
			Operation:  wire.OpRead,
			EndpointID: testEndpoint,
			FeatureID:  testMeasurement,
		}

		resp := server.HandleRequest(context.Background(), req)

		if resp.MessageID != 1 {
			t.Errorf("expected messageId 1, got %d", resp.MessageID)
		}
		if !resp.Status.IsSuccess() {
			t.Fatalf("expected success, got %s", resp.Status)
		}
		values, _ := wire.AttributeMap(resp.Payload)
		if len(values) != 2 {
			t.Errorf("expected 2 attributes, got %d", len(values))
		}
	})

	t.Run("ReadSpecific", func(t *testing.T) {
		req := &wire.Request{
			MessageID:  2,
			Operation:  wire.OpRead,
			EndpointID: testEndpoint,
			FeatureID:  testMeasurement,
			Payload:    []uint16{1},
		}

		resp := server.HandleRequest(context.Background(), req)

		values, _ := wire.AttributeMap(resp.Payload)
		if len(values) != 1 || values[1] != int64(11000000) {
			t.Errorf("unexpected values: %v", values)
		}
	})

	t.Run("SkipsWriteOnly", func(t *testing.T) {
		req := &wire.Request{
			MessageID:  3,
			Operation:  wire.OpRead,
			EndpointID: testEndpoint,
			FeatureID:  testControl,
			Payload:    []uint16{21, 22, 99},
		}

		resp := server.HandleRequest(context.Background(), req)

		values, _ := wire.AttributeMap(resp.Payload)
		if _, ok := values[22]; ok {
			t.Errorf("write-only attribute should not be read")
		}
		if _, ok := values[99]; ok {
			t.Errorf("unknown attribute should not be read")
		}
		if values[21] != int64(6000) {
			t.Errorf("attr 21: got %v", values[21])
		}
	})

	t.Run("InvalidEndpoint", func(t *testing.T) {
		req := &wire.Request{MessageID: 4, Operation: wire.OpRead, EndpointID: 99, FeatureID: testMeasurement}

		resp := server.HandleRequest(context.Background(), req)

		if resp.Status != wire.StatusInvalidEndpoint {
			t.Errorf("expected InvalidEndpoint, got %s", resp.Status)
		}
	})

	t.Run("InvalidFeature", func(t *testing.T) {
		req := &wire.Request{MessageID: 5, Operation: wire.OpRead, EndpointID: testEndpoint, FeatureID: 99}

		resp := server.HandleRequest(context.Background(), req)

		if resp.Status != wire.StatusInvalidFeature {
			t.Errorf("expected InvalidFeature, got %s", resp.Status)
		}
	})
}

func TestServerWrite(t *testing.T) {
	table := createTestTable()
	server := NewServer(table)

	t.Run("WriteSuccess", func(t *testing.T) {
		req := &wire.Request{
			MessageID:  1,
			Operation:  wire.OpWrite,
			EndpointID: testEndpoint,
			FeatureID:  testControl,
			Payload:    map[uint16]any{21: int64(4000), 22: true},
		}

		resp := server.HandleRequest(context.Background(), req)

		if !resp.Status.IsSuccess() {
			t.Fatalf("expected success, got %s", resp.Status)
		}
		if v, _ := table.Value(testEndpoint, testControl, 21); v != int64(4000) {
			t.Errorf("attr 21: got %v", v)
		}
		if v, _ := table.Value(testEndpoint, testControl, 22); v != true {
			t.Errorf("attr 22: got %v", v)
		}
	})

	t.Run("ReadOnlyRejectsWholeWrite", func(t *testing.T) {
		req := &wire.Request{
			MessageID:  2,
			Operation:  wire.OpWrite,
			EndpointID: testEndpoint,
			FeatureID:  testMeasurement,
			Payload:    map[uint16]any{1: int64(0)},
		}

		resp := server.HandleRequest(context.Background(), req)

		if resp.Status != wire.StatusReadOnly {
			t.Errorf("expected ReadOnly, got %s", resp.Status)
		}
		if v, _ := table.Value(testEndpoint, testMeasurement, 1); v != int64(11000000) {
			t.Errorf("read-only attribute changed: %v", v)
		}
	})

	t.Run("UnknownAttribute", func(t *testing.T) {
		req := &wire.Request{
			MessageID:  3,
			Operation:  wire.OpWrite,
			EndpointID: testEndpoint,
			FeatureID:  testControl,
			Payload:    map[uint16]any{21: int64(1), 99: int64(1)},
		}

		resp := server.HandleRequest(context.Background(), req)

		if resp.Status != wire.StatusInvalidAttribute {
			t.Errorf("expected InvalidAttribute, got %s", resp.Status)
		}
		if v, _ := table.Value(testEndpoint, testControl, 21); v != int64(4000) {
			t.Errorf("attr 21 changed by rejected write: %v", v)
		}
	})

	t.Run("InvalidPayload", func(t *testing.T) {
		req := &wire.Request{
			MessageID:  4,
			Operation:  wire.OpWrite,
			EndpointID: testEndpoint,
			FeatureID:  testControl,
			Payload:    "not a map",
		}

		resp := server.HandleRequest(context.Background(), req)

		if resp.Status != wire.StatusInvalidParameter {
			t.Errorf("expected InvalidParameter, got %s", resp.Status)
		}
	})
}

func TestServerBusy(t *testing.T) {
	server := NewServer(createTestTable())
	server.SetBusy(true)
	if !server.Busy() {
		t.Fatal("expected busy")
	}

	req := &wire.Request{MessageID: 1, Operation: wire.OpRead, EndpointID: testEndpoint, FeatureID: testMeasurement}
	if resp := server.HandleRequest(context.Background(), req); resp.Status != wire.StatusBusy {
		t.Errorf("expected Busy, got %s", resp.Status)
	}

	server.SetBusy(false)
	if resp := server.HandleRequest(context.Background(), req); !resp.IsSuccess() {
		t.Errorf("expected success, got %s", resp.Status)
	}
}

func TestLoopbackClient(t *testing.T) {
	table := createTestTable()
	client := NewLoopbackClient(NewServer(table))
	ctx := context.Background()

	values, err := client.Read(ctx, testEndpoint, testMeasurement, []uint16{1, 2})
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	// Non-negative integers come back as uint64 after the CBOR round trip
	if values[1] != uint64(11000000) || values[2] != uint64(400) {
		t.Errorf("unexpected values: %v", values)
	}

	written, err := client.Write(ctx, testEndpoint, testControl, map[uint16]any{21: int64(-250)})
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if written[21] != int64(-250) {
		t.Errorf("unexpected write result: %v", written)
	}

	_, err = client.Write(ctx, testEndpoint, testMeasurement, map[uint16]any{1: int64(0)})
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if statusErr.Status != wire.StatusReadOnly || statusErr.Message != ErrReadOnly.Error() {
		t.Errorf("unexpected status error: %+v", statusErr)
	}
}

func TestClientClosed(t *testing.T) {
	client := NewClient(&mockSender{})
	if err := client.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	_, err := client.Read(context.Background(), 1, 1, nil)
	if !errors.Is(err, ErrClientClosed) {
		t.Errorf("expected ErrClientClosed, got %v", err)
	}
}

func TestClientTimeout(t *testing.T) {
	sender := &mockSender{}
	client := NewClient(sender)
	client.SetTimeout(10 * time.Millisecond)

	_, err := client.Read(context.Background(), 1, 1, []uint16{1})
	if !errors.Is(err, ErrRequestTimeout) {
		t.Errorf("expected ErrRequestTimeout, got %v", err)
	}
	if len(sender.sent) != 1 {
		t.Errorf("expected 1 sent request, got %d", len(sender.sent))
	}
}

func TestClientContextCancel(t *testing.T) {
	client := NewClient(&mockSender{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Write(ctx, 1, 1, map[uint16]any{1: int64(1)})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestUnexpectedReply(t *testing.T) {
	client := NewClient(&mockSender{})
	if err := client.HandleResponse(&wire.Response{MessageID: 42}); !errors.Is(err, ErrUnexpectedReply) {
		t.Errorf("expected ErrUnexpectedReply, got %v", err)
	}
}

func TestStatusError(t *testing.T) {
	err := &StatusError{Status: wire.StatusInvalidParameter, Message: "value out of range"}
	if err.Error() != "INVALID_PARAMETER: value out of range" {
		t.Errorf("unexpected message: %s", err.Error())
	}

	err2 := &StatusError{Status: wire.StatusInvalidEndpoint}
	if err2.Error() != wire.StatusInvalidEndpoint.String() {
		t.Errorf("expected status string, got %s", err2.Error())
	}
}

type mockSender struct {
	sent [][]byte
}

func (m *mockSender) Send(data []byte) error {
	m.sent = append(m.sent, data)
	return nil
}
