package ipc

import (
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"time"
)

// Client provides RPC access to the daemon.
type Client struct {
	conn   net.Conn
	client *rpc.Client
}

// Dial connects to the IPC server at the given socket path.
func Dial(path string) (*Client, error) {
	conn, err := net.DialTimeout("unix", path, 2*time.Second)
	if err != nil {
		return nil, err
	}
	rpcClient := rpc.NewClientWithCodec(jsonrpc.NewClientCodec(conn))
	return &Client{conn: conn, client: rpcClient}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	if c.client != nil {
		_ = c.client.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// Start requests the daemon to start queue processing.
func (c *Client) Start() (*StartResponse, error) {
	var resp StartResponse
	if err := c.client.Call("Clipflow.Start", StartRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Stop requests the daemon to stop queue processing.
func (c *Client) Stop() (*StopResponse, error) {
	var resp StopResponse
	if err := c.client.Call("Clipflow.Stop", StopRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Status retrieves the daemon status.
func (c *Client) Status() (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.client.Call("Clipflow.Status", StatusRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// QueueList returns the queued URLs in order.
func (c *Client) QueueList() (*QueueListResponse, error) {
	var resp QueueListResponse
	if err := c.client.Call("Clipflow.QueueList", QueueListRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// QueueAdd appends a URL to the queue.
func (c *Client) QueueAdd(url string) (*QueueAddResponse, error) {
	var resp QueueAddResponse
	if err := c.client.Call("Clipflow.QueueAdd", QueueAddRequest{URL: url}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// QueueRemove removes a URL from the queue.
func (c *Client) QueueRemove(url string) (*QueueRemoveResponse, error) {
	var resp QueueRemoveResponse
	if err := c.client.Call("Clipflow.QueueRemove", QueueRemoveRequest{URL: url}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SweepClaims reclaims stale claim markers now.
func (c *Client) SweepClaims() (*SweepClaimsResponse, error) {
	var resp SweepClaimsResponse
	if err := c.client.Call("Clipflow.SweepClaims", SweepClaimsRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// RunLogTail returns the newest finished-run records.
func (c *Client) RunLogTail(limit int) (*RunLogTailResponse, error) {
	var resp RunLogTailResponse
	if err := c.client.Call("Clipflow.RunLogTail", RunLogTailRequest{Limit: limit}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
