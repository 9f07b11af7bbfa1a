package main

import (
	"errors"
	"net"
	"testing"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
)

func testWebsocketOptions() WebsocketOptions {
	return WebsocketOptions{
		PingInterval:   time.Hour,
		PingTimeout:    time.Minute,
		MaxMessageSize: 1024,
		SendQueueSize:  8,
	}
}

func newPipeWebsocket(t *testing.T, opts WebsocketOptions) (*PeerWebsocket, net.Conn) {
	client, server := net.Pipe()
	peerWs := NewPeerWebsocket(server, "pipe", opts)
	t.Cleanup(func() {
		peerWs.Close()
		client.Close()
	})
	return peerWs, client
}

func TestPeerWebsocketSend(t *testing.T) {
	peerWs, client := newPipeWebsocket(t, testWebsocketOptions())

	if err := peerWs.Send([]byte(`{"type":"registered","peerId":"abc"}`)); err != nil {
		t.Fatalf("send failed: %v", err)
	}
	if err := peerWs.Send([]byte(`{"type":"hosted","room":"ROOM"}`)); err != nil {
		t.Fatalf("send failed: %v", err)
	}

	for _, expected := range []string{`{"type":"registered","peerId":"abc"}`, `{"type":"hosted","room":"ROOM"}`} {
		data, err := wsutil.ReadServerText(client)
		if err != nil {
			t.Fatalf("read failed: %v", err)
		}
		if string(data) != expected {
			t.Errorf("wrong frame expected: %v got: %v", expected, string(data))
		}
	}
	if peerWs.RemoteAddr() != "pipe" {
		t.Errorf("wrong remote addr: %v", peerWs.RemoteAddr())
	}
}

func TestPeerWebsocketReadMessage(t *testing.T) {
	peerWs, client := newPipeWebsocket(t, testWebsocketOptions())

	go wsutil.WriteClientText(client, []byte(`{"type":"register"}`))

	data, err := peerWs.ReadMessage()
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if string(data) != `{"type":"register"}` {
		t.Errorf("wrong message: %v", string(data))
	}
}

func TestPeerWebsocketSkipsBinaryAndAnswersPing(t *testing.T) {
	peerWs, client := newPipeWebsocket(t, testWebsocketOptions())

	go func() {
		wsutil.WriteClientBinary(client, []byte{1, 2, 3})
		wsutil.WriteClientMessage(client, ws.OpPing, []byte("hi"))
		wsutil.WriteClientText(client, []byte(`{"type":"leave"}`))
	}()

	result := make(chan []byte, 1)
	go func() {
		data, _ := peerWs.ReadMessage()
		result <- data
	}()

	frame, err := ws.ReadFrame(client)
	if err != nil {
		t.Fatalf("reading pong failed: %v", err)
	}
	if frame.Header.OpCode != ws.OpPong || string(frame.Payload) != "hi" {
		t.Errorf("expected pong with payload hi, got %v %q", frame.Header.OpCode, frame.Payload)
	}

	select {
	case data := <-result:
		if string(data) != `{"type":"leave"}` {
			t.Errorf("wrong message: %v", string(data))
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for text message")
	}
}

func TestPeerWebsocketRejectsOversizedMessage(t *testing.T) {
	opts := testWebsocketOptions()
	opts.MaxMessageSize = 4
	peerWs, client := newPipeWebsocket(t, opts)

	go wsutil.WriteClientText(client, []byte("too long"))

	if _, err := peerWs.ReadMessage(); !errors.Is(err, ErrMessageTooLarge) {
		t.Errorf("expected ErrMessageTooLarge, got %v", err)
	}
}

func TestPeerWebsocketClientClose(t *testing.T) {
	peerWs, client := newPipeWebsocket(t, testWebsocketOptions())

	reply := make(chan ws.Frame, 1)
	go func() {
		wsutil.WriteClientMessage(client, ws.OpClose, ws.NewCloseFrameBody(ws.StatusNormalClosure, "bye"))
		frame, _ := ws.ReadFrame(client)
		reply <- frame
	}()

	_, err := peerWs.ReadMessage()
	var closed wsutil.ClosedError
	if !errors.As(err, &closed) {
		t.Fatalf("expected ClosedError, got %v", err)
	}
	if closed.Code != ws.StatusNormalClosure || closed.Reason != "bye" {
		t.Errorf("wrong close frame: %+v", closed)
	}
	if frame := <-reply; frame.Header.OpCode != ws.OpClose {
		t.Errorf("expected close reply, got %v", frame.Header.OpCode)
	}
}

func TestPeerWebsocketSendAfterClose(t *testing.T) {
	peerWs, _ := newPipeWebsocket(t, testWebsocketOptions())

	peerWs.Close()
	peerWs.Close()
	if err := peerWs.Send([]byte("late")); !errors.Is(err, ErrConnClosed) {
		t.Errorf("expected ErrConnClosed, got %v", err)
	}
}

func TestPeerWebsocketFullQueueClosesConnection(t *testing.T) {
	opts := testWebsocketOptions()
	opts.SendQueueSize = 1
	peerWs, _ := newPipeWebsocket(t, opts)

	// Nobody reads the client side, so the writer stalls on its first frame.
	var err error
	for i := 0; i < 3 && err == nil; i++ {
		err = peerWs.Send([]byte("frame"))
	}
	if !errors.Is(err, ErrSendQueueFull) || !errors.Is(err, ErrConnClosed) {
		t.Fatalf("expected a full queue error, got %v", err)
	}
	if err := peerWs.Send([]byte("frame")); !errors.Is(err, ErrConnClosed) {
		t.Errorf("connection should be closed, got %v", err)
	}
}
