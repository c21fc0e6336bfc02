package client

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/chorus-fhe/ppcnn/protocol"
	"github.com/chorus-fhe/ppcnn/queue"
	"github.com/chorus-fhe/ppcnn/registry"
)

// DefaultRetryInterval mirrors PPCNN_RETRY_INTERVAL_USEC (2s) from the
// original's connect-retry loop.
const DefaultRetryInterval = 2 * time.Second

// DefaultConnectTimeout mirrors PPCNN_TIMEOUT_SEC.
const DefaultConnectTimeout = 60 * time.Second

// Client is one TCP connection to a ppcnn server plus the key material it
// uses to register and submit queries.
type Client struct {
	conn net.Conn
	Keys *KeyContainer
}

// Dial connects to addr, retrying every retryInterval until it succeeds or
// timeout elapses (spec §5: "Client connect has a retry interval and a
// total timeout").
func Dial(ctx context.Context, addr string, timeout, retryInterval time.Duration, keys *KeyContainer) (*Client, error) {
	if timeout <= 0 {
		timeout = DefaultConnectTimeout
	}
	if retryInterval <= 0 {
		retryInterval = DefaultRetryInterval
	}
	deadline := time.Now().Add(timeout)
	var lastErr error
	for {
		dialer := net.Dialer{}
		conn, err := dialer.DialContext(ctx, "tcp", addr)
		if err == nil {
			return &Client{conn: conn, Keys: keys}, nil
		}
		lastErr = err
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("client: dial %s: timed out: %w", addr, lastErr)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(retryInterval):
		}
	}
}

// Close closes the underlying connection.
func (c *Client) Close() error { return c.conn.Close() }

// RegisterKeys sends the client's key material to the server under its
// own key-id (CodeDataEncKeys, no reply expected).
func (c *Client) RegisterKeys() error {
	payload, err := protocol.EncodeEncKeys(c.Keys.KeyID(), registry.KeyBundle{
		Params: c.Keys.Params(),
		Pubkey: c.Keys.PublicKey(),
		Relin:  c.Keys.RelinearizationKey(),
	})
	if err != nil {
		return err
	}
	return protocol.WriteFrame(c.conn, protocol.Frame{Code: protocol.CodeDataEncKeys, Payload: payload})
}

// SendQuery submits q and returns the server-assigned query-id
// (CodeUpDownloadQuery request/reply).
func (c *Client) SendQuery(q queue.Query) (int64, error) {
	payload, err := protocol.EncodeQuery(q)
	if err != nil {
		return 0, err
	}
	if err := protocol.WriteFrame(c.conn, protocol.Frame{Code: protocol.CodeUpDownloadQuery, Payload: payload}); err != nil {
		return 0, err
	}
	reply, err := protocol.ReadFrame(c.conn)
	if err != nil {
		return 0, err
	}
	if reply.Code != protocol.CodeDataQueryID {
		return 0, fmt.Errorf("client: unexpected reply code 0x%x for query submission", uint64(reply.Code))
	}
	return protocol.DecodeQueryID(reply.Payload)
}

// PollResult blocks (server-side) for queryID's result and returns it
// (CodeUpDownloadResult request/reply).
func (c *Client) PollResult(queryID int64) (queue.Result, error) {
	payload, err := protocol.EncodeResultRequest(queryID)
	if err != nil {
		return queue.Result{}, err
	}
	if err := protocol.WriteFrame(c.conn, protocol.Frame{Code: protocol.CodeUpDownloadResult, Payload: payload}); err != nil {
		return queue.Result{}, err
	}
	reply, err := protocol.ReadFrame(c.conn)
	if err != nil {
		return queue.Result{}, err
	}
	if reply.Code != protocol.CodeDataResult {
		return queue.Result{}, fmt.Errorf("client: unexpected reply code 0x%x for result poll", uint64(reply.Code))
	}
	return protocol.DecodeResult(reply.Payload)
}
