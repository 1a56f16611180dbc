package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/rs/zerolog"
)

// Handler is implemented by the authority's protocol controller.
type Handler interface {
	// HandleLogin verifies a login payload. On success the connection is
	// considered authorized for the returned agent id.
	HandleLogin(conn *Conn, p LoginPayload) (agentID string, resp Response)
	// HandleRequest processes one validated message from an authorized (or,
	// for PING, any) connection and returns the single response.
	HandleRequest(conn *Conn, m Message) Response
	// HandleDisconnect is called once when a connection goes away.
	HandleDisconnect(conn *Conn)
}

// Conn is one accepted agent connection. Writes are serialized so responses
// and pushes never interleave mid-frame.
type Conn struct {
	conn net.Conn
	wmu  sync.Mutex

	mu      sync.Mutex
	agentID string
}

// AgentID returns the authorized agent id, empty before login.
func (c *Conn) AgentID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.agentID
}

func (c *Conn) setAgentID(id string) {
	c.mu.Lock()
	c.agentID = id
	c.mu.Unlock()
}

// Push sends a push message to the agent.
func (c *Conn) Push(m Message) error {
	b, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return c.writeFrame(Frame{Type: FramePush, Payload: b})
}

func (c *Conn) writeFrame(f Frame) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	return WriteFrame(c.conn, f)
}

func (c *Conn) respond(r Response) {
	b, err := json.Marshal(r)
	if err != nil {
		b = []byte(`{"success":false,"error":"encode response"}`)
	}
	_ = c.writeFrame(Frame{Type: FrameResponse, Payload: b})
}

// Server accepts agent connections and dispatches frames to the handler.
type Server struct {
	ln  net.Listener
	h   Handler
	log zerolog.Logger

	mu    sync.Mutex
	conns map[*Conn]struct{}

	wg   sync.WaitGroup
	once sync.Once
}

// Listen starts serving on addr. Use addr ":0" plus Addr() in tests.
func Listen(addr string, h Handler, log zerolog.Logger) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen: %w", err)
	}
	s := &Server{ln: ln, h: h, log: log, conns: make(map[*Conn]struct{})}
	s.wg.Add(1)
	go s.acceptLoop()
	return s, nil
}

// Addr returns the bound listen address.
func (s *Server) Addr() string { return s.ln.Addr().String() }

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				s.log.Error().Err(err).Msg("accept failed")
			}
			return
		}
		c := &Conn{conn: conn}
		s.mu.Lock()
		s.conns[c] = struct{}{}
		s.mu.Unlock()
		s.wg.Add(1)
		go s.serveConn(c)
	}
}

func (s *Server) serveConn(c *Conn) {
	defer s.wg.Done()
	defer func() {
		c.conn.Close()
		s.mu.Lock()
		delete(s.conns, c)
		s.mu.Unlock()
		s.h.HandleDisconnect(c)
	}()
	for {
		f, err := ReadFrame(c.conn)
		if err != nil {
			return
		}
		switch f.Type {
		case FrameLogin:
			var p LoginPayload
			if err := json.Unmarshal(f.Payload, &p); err != nil {
				c.respond(Failf("malformed login"))
				continue
			}
			id, resp := s.h.HandleLogin(c, p)
			if resp.Success {
				c.setAgentID(id)
			}
			c.respond(resp)
		case FrameRequest:
			var m Message
			if err := json.Unmarshal(f.Payload, &m); err != nil {
				c.respond(Failf("malformed message"))
				continue
			}
			// Reject unknown kinds before touching the payload.
			if !m.Valid() {
				c.respond(Failf("unknown message kind %q", m.Type))
				continue
			}
			s.log.Debug().Str("kind", string(m.Type)).Str("agent", c.AgentID()).
				Int("payload_len", len(m.Payload)).Msg("frame received")
			c.respond(s.h.HandleRequest(c, m))
		default:
			c.respond(Failf("unexpected frame type 0x%02x", uint8(f.Type)))
		}
	}
}

// Close stops accepting and waits for connection goroutines to finish.
func (s *Server) Close() error {
	s.once.Do(func() {
		s.ln.Close()
		s.mu.Lock()
		for c := range s.conns {
			c.conn.Close()
		}
		s.mu.Unlock()
	})
	s.wg.Wait()
	return nil
}
