package protocol

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// testHandler authorizes the token "good" and answers PING for anyone,
// everything else only after login.
type testHandler struct {
	mu           sync.Mutex
	conns        []*Conn
	disconnects  int
	requestsSeen []Kind
}

func (h *testHandler) HandleLogin(conn *Conn, p LoginPayload) (string, Response) {
	if p.Token != "good" {
		return "", Failf("invalid token")
	}
	h.mu.Lock()
	h.conns = append(h.conns, conn)
	h.mu.Unlock()
	return p.AgentID, OK(nil)
}

func (h *testHandler) HandleRequest(conn *Conn, m Message) Response {
	h.mu.Lock()
	h.requestsSeen = append(h.requestsSeen, m.Type)
	h.mu.Unlock()
	if m.Type == KindPing {
		return OK(map[string]string{"status": "ok"})
	}
	if conn.AgentID() == "" {
		return Failf("not authorized")
	}
	switch m.Type {
	case KindWhitelistAdd:
		var p WhitelistAddPayload
		if err := m.Decode(&p); err != nil {
			return Fail(err)
		}
		return OK(map[string]string{"value": p.Value})
	default:
		return OK(nil)
	}
}

func (h *testHandler) HandleDisconnect(conn *Conn) {
	h.mu.Lock()
	h.disconnects++
	h.mu.Unlock()
}

func (h *testHandler) firstConn() *Conn {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.conns) == 0 {
		return nil
	}
	return h.conns[0]
}

func startTestServer(t *testing.T) (*Server, *testHandler) {
	t.Helper()
	h := &testHandler{}
	srv, err := Listen("127.0.0.1:0", h, zerolog.Nop())
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { srv.Close() })
	return srv, h
}

func TestLoginAndRequest(t *testing.T) {
	srv, _ := startTestServer(t)

	pushes := make(chan Message, 4)
	cli, err := Dial(srv.Addr(), func(m Message) { pushes <- m })
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer cli.Close()

	// PING works without login.
	m, _ := NewMessage(KindPing, nil)
	resp, err := cli.Request(m)
	if err != nil {
		t.Fatalf("ping: %v", err)
	}
	if !resp.Success {
		t.Fatalf("ping refused: %s", resp.Error)
	}

	// Anything else is login-gated.
	m, _ = NewMessage(KindGetSettings, nil)
	resp, err = cli.Request(m)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.Success {
		t.Fatal("pre-login request should be refused")
	}

	if err := cli.Login("agent-1", "good"); err != nil {
		t.Fatalf("login: %v", err)
	}
	resp, err = cli.Request(m)
	if err != nil {
		t.Fatalf("request after login: %v", err)
	}
	if !resp.Success {
		t.Fatalf("post-login request refused: %s", resp.Error)
	}
}

func TestLoginRefusedForBadToken(t *testing.T) {
	srv, _ := startTestServer(t)
	cli, err := Dial(srv.Addr(), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer cli.Close()

	if err := cli.Login("agent-1", "bad"); err == nil {
		t.Fatal("login with a bad token should fail")
	}
}

func TestRequestPayloadRoundTripOverTCP(t *testing.T) {
	srv, _ := startTestServer(t)
	cli, err := Dial(srv.Addr(), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer cli.Close()
	if err := cli.Login("agent-1", "good"); err != nil {
		t.Fatalf("login: %v", err)
	}

	m, err := NewMessage(KindWhitelistAdd, WhitelistAddPayload{Value: "@Test", Type: "channel", Platform: "youtube"})
	if err != nil {
		t.Fatal(err)
	}
	resp, err := cli.Request(m)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	var data map[string]string
	if err := resp.Decode(&data); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if data["value"] != "@Test" {
		t.Errorf("echoed value = %q, want @Test", data["value"])
	}
}

func TestClientRejectsUnknownKindLocally(t *testing.T) {
	srv, h := startTestServer(t)
	cli, err := Dial(srv.Addr(), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer cli.Close()

	_, err = cli.Request(Message{Type: "INVALID_TYPE"})
	if err == nil {
		t.Fatal("unknown kind should be rejected before sending")
	}
	time.Sleep(20 * time.Millisecond)
	h.mu.Lock()
	seen := len(h.requestsSeen)
	h.mu.Unlock()
	if seen != 0 {
		t.Error("invalid message must never reach the server")
	}
}

func TestServerRejectsUnknownKindOnWire(t *testing.T) {
	srv, _ := startTestServer(t)
	cli, err := Dial(srv.Addr(), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer cli.Close()

	// Bypass client validation with a raw frame.
	raw, _ := json.Marshal(Message{Type: "INVALID_TYPE"})
	resp, err := cli.roundTrip(Frame{Type: FrameRequest, Payload: raw})
	if err != nil {
		t.Fatalf("round trip: %v", err)
	}
	if resp.Success {
		t.Error("server should refuse unknown kinds")
	}
}

func TestPushDelivery(t *testing.T) {
	srv, h := startTestServer(t)

	pushes := make(chan Message, 1)
	cli, err := Dial(srv.Addr(), func(m Message) { pushes <- m })
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer cli.Close()
	if err := cli.Login("agent-1", "good"); err != nil {
		t.Fatalf("login: %v", err)
	}

	conn := h.firstConn()
	if conn == nil {
		t.Fatal("server never saw the login")
	}
	if conn.AgentID() != "agent-1" {
		t.Errorf("agent id = %q, want agent-1", conn.AgentID())
	}

	m, _ := NewMessage(KindSettingsChanged, map[string]bool{"enabled": true})
	if err := conn.Push(m); err != nil {
		t.Fatalf("push: %v", err)
	}

	select {
	case got := <-pushes:
		if got.Type != KindSettingsChanged {
			t.Errorf("push type = %q, want SETTINGS_CHANGED", got.Type)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("push never delivered")
	}
}

// laggyHandler answers GET_LOGS only after a delay, everything else at once.
type laggyHandler struct {
	delay time.Duration
}

func (h *laggyHandler) HandleLogin(conn *Conn, p LoginPayload) (string, Response) {
	return p.AgentID, OK(nil)
}

func (h *laggyHandler) HandleRequest(conn *Conn, m Message) Response {
	if m.Type == KindGetLogs {
		time.Sleep(h.delay)
		return OK(map[string]string{"answer": "slow"})
	}
	return OK(map[string]string{"answer": "fast"})
}

func (h *laggyHandler) HandleDisconnect(conn *Conn) {}

func TestLateResponseNeverMatchesNextRequest(t *testing.T) {
	srv, err := Listen("127.0.0.1:0", &laggyHandler{delay: 200 * time.Millisecond}, zerolog.Nop())
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer srv.Close()

	cli, err := Dial(srv.Addr(), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer cli.Close()
	cli.timeout = 50 * time.Millisecond

	m, _ := NewMessage(KindGetLogs, nil)
	if _, err := cli.Request(m); err == nil {
		t.Fatal("slow request should time out")
	}

	// Let the late response land before the next round trip begins.
	time.Sleep(300 * time.Millisecond)

	cli.timeout = DefaultRequestTimeout
	m, _ = NewMessage(KindPing, nil)
	resp, err := cli.Request(m)
	if err != nil {
		t.Fatalf("second request: %v", err)
	}
	var data map[string]string
	if err := resp.Decode(&data); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if data["answer"] != "fast" {
		t.Errorf("answer = %q, the second request must never see the first request's response", data["answer"])
	}
}

func TestServerCloseDisconnectsClients(t *testing.T) {
	srv, h := startTestServer(t)
	cli, err := Dial(srv.Addr(), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer cli.Close()
	if err := cli.Login("agent-1", "good"); err != nil {
		t.Fatalf("login: %v", err)
	}

	srv.Close()

	// The client read loop sees EOF and closes; further requests fail fast.
	deadline := time.Now().Add(2 * time.Second)
	for {
		m, _ := NewMessage(KindPing, nil)
		if _, err := cli.Request(m); err != nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("requests still succeed after server close")
		}
		time.Sleep(10 * time.Millisecond)
	}

	h.mu.Lock()
	d := h.disconnects
	h.mu.Unlock()
	if d == 0 {
		t.Error("disconnect hook never fired")
	}
}
