package chain

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// RPC is a Reader holding a connection that must be closed.
type RPC interface {
	Reader
	Close()
}

// DialFunc opens an RPC connection to rawURL.
type DialFunc func(ctx context.Context, rawURL string) (RPC, error)

// Client verifies transfers over a JSON-RPC connection that is dialed on
// first use. A failed dial is retried by the next call, so a node that was
// down at startup is picked up once it comes back.
type Client struct {
	rawURL      string
	chainID     int64
	dialTimeout time.Duration
	dial        DialFunc

	mu       sync.Mutex
	rpc      RPC
	verifier *Verifier
}

// NewClient returns a Client for rawURL. Nothing is dialed until Connect or
// the first verification.
func NewClient(rawURL string, chainID int64, dialTimeout time.Duration) *Client {
	return &Client{rawURL: rawURL, chainID: chainID, dialTimeout: dialTimeout, dial: dialEthclient}
}

func dialEthclient(ctx context.Context, rawURL string) (RPC, error) {
	c, err := Dial(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Connect dials the node unless a connection is already open.
func (c *Client) Connect(ctx context.Context) error {
	_, err := c.current(ctx)
	return err
}

// Connected reports whether a connection is open.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rpc != nil
}

func (c *Client) current(ctx context.Context) (*Verifier, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.verifier != nil {
		return c.verifier, nil
	}

	if c.dialTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.dialTimeout)
		defer cancel()
	}
	rpc, err := c.dial(ctx, c.rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	c.rpc = rpc
	c.verifier = NewVerifier(rpc, c.chainID)
	return c.verifier, nil
}

// VerifyTransfer dials the node if needed and verifies hash against exp.
func (c *Client) VerifyTransfer(ctx context.Context, hash string, exp Expectation) (*Result, error) {
	v, err := c.current(ctx)
	if err != nil {
		return nil, err
	}
	return v.VerifyTransfer(ctx, hash, exp)
}

// BlockNumber returns the node's head block.
func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	v, err := c.current(ctx)
	if err != nil {
		return 0, err
	}
	n, err := v.reader.BlockNumber(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return n, nil
}

// Close drops the connection. A later call dials again.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.rpc != nil {
		c.rpc.Close()
	}
	c.rpc = nil
	c.verifier = nil
}
