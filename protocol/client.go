package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"
)

// ErrClosed is returned for operations on a closed client.
var ErrClosed = errors.New("protocol client closed")

// DefaultRequestTimeout bounds one round trip. The bridge performs no
// retries; callers retry at their discretion.
const DefaultRequestTimeout = 5 * time.Second

// Client is the agent side of the bridge: strictly one outstanding request at
// a time, each matched to a single response, with pushes delivered out of
// band to the push handler.
type Client struct {
	conn   net.Conn
	pushFn func(Message)

	wmu    sync.Mutex // serializes frame writes
	reqMu  sync.Mutex // serializes round trips
	respCh chan Frame

	timeout time.Duration
	closed  chan struct{}
	once    sync.Once
}

// Dial connects to the authority. pushFn receives push messages; it may be
// nil when the caller does not subscribe.
func Dial(addr string, pushFn func(Message)) (*Client, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial authority: %w", err)
	}
	c := &Client{
		conn:    conn,
		pushFn:  pushFn,
		respCh:  make(chan Frame, 1),
		timeout: DefaultRequestTimeout,
		closed:  make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

func (c *Client) readLoop() {
	defer c.Close()
	for {
		f, err := ReadFrame(c.conn)
		if err != nil {
			return
		}
		switch f.Type {
		case FrameResponse, FrameError:
			select {
			case c.respCh <- f:
			default:
				// response with no waiter, drop
			}
		case FramePush:
			if c.pushFn == nil {
				continue
			}
			var m Message
			if err := json.Unmarshal(f.Payload, &m); err != nil || !m.Valid() {
				continue
			}
			c.pushFn(m)
		}
	}
}

// Login authorizes the connection with an authority-issued token.
func (c *Client) Login(agentID, token string) error {
	b, err := json.Marshal(LoginPayload{AgentID: agentID, Token: token})
	if err != nil {
		return err
	}
	resp, err := c.roundTrip(Frame{Type: FrameLogin, Payload: b})
	if err != nil {
		return err
	}
	if !resp.Success {
		return fmt.Errorf("login refused: %s", resp.Error)
	}
	return nil
}

// Request performs one round trip. The message is validated before it leaves
// the process; a malformed response surfaces as an error with prior state
// untouched.
func (c *Client) Request(m Message) (Response, error) {
	if !m.Valid() {
		return Response{}, fmt.Errorf("%w: %q", ErrUnknownKind, m.Type)
	}
	b, err := json.Marshal(m)
	if err != nil {
		return Response{}, fmt.Errorf("encode message: %w", err)
	}
	return c.roundTrip(Frame{Type: FrameRequest, Payload: b})
}

func (c *Client) roundTrip(f Frame) (Response, error) {
	c.reqMu.Lock()
	defer c.reqMu.Unlock()

	select {
	case <-c.closed:
		return Response{}, ErrClosed
	default:
	}

	// A round trip that timed out may have left its late response in the
	// channel. Drop it so it is never matched to this request.
	select {
	case <-c.respCh:
	default:
	}

	c.wmu.Lock()
	err := WriteFrame(c.conn, f)
	c.wmu.Unlock()
	if err != nil {
		return Response{}, fmt.Errorf("send frame: %w", err)
	}

	select {
	case resp := <-c.respCh:
		var r Response
		if err := json.Unmarshal(resp.Payload, &r); err != nil {
			return Response{}, fmt.Errorf("malformed response: %w", err)
		}
		return r, nil
	case <-time.After(c.timeout):
		return Response{}, errors.New("request timed out")
	case <-c.closed:
		return Response{}, ErrClosed
	}
}

// Close tears the connection down. Safe to call more than once.
func (c *Client) Close() error {
	c.once.Do(func() {
		close(c.closed)
		c.conn.Close()
	})
	return nil
}
