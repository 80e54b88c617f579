package interaction

import (
	"context"

	"github.com/mash-protocol/mash-exchange/pkg/wire"
)

// Loopback is a RequestSender that hands every request to a local Server
// and routes the response back to a Client. Both directions go through the
// CBOR codec, so values arrive in their decoded wire form.
type Loopback struct {
	server *Server
	client *Client
}

// NewLoopbackClient creates a Client whose requests are served by server.
func NewLoopbackClient(server *Server) *Client {
	lb := &Loopback{server: server}
	lb.client = NewClient(lb)
	return lb.client
}

// Send implements RequestSender.
func (l *Loopback) Send(data []byte) error {
	req, err := wire.DecodeRequest(data)
	if err != nil {
		return err
	}

	resp := l.server.HandleRequest(context.Background(), req)

	encoded, err := wire.EncodeResponse(resp)
	if err != nil {
		return err
	}
	decoded, err := wire.DecodeResponse(encoded)
	if err != nil {
		return err
	}

	// Deliver asynchronously, like a real transport would
	go l.client.HandleResponse(decoded)
	return nil
}
