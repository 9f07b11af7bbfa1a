package main

import (
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
)

const (
	writeWait = 10 * time.Second

	defaultPingInterval   = 30 * time.Second
	defaultPingTimeout    = 10 * time.Second
	defaultMaxMessageSize = 64 * 1024
	defaultSendQueueSize  = 256
)

var (
	ErrMessageTooLarge = errors.New("message exceeds size limit")
	ErrSendQueueFull   = errors.New("send queue full")
)

type WebsocketOptions struct {
	PingInterval   time.Duration
	PingTimeout    time.Duration
	MaxMessageSize int64
	SendQueueSize  int
}

func (o WebsocketOptions) withDefaults() WebsocketOptions {
	if o.PingInterval <= 0 {
		o.PingInterval = defaultPingInterval
	}
	if o.PingTimeout <= 0 {
		o.PingTimeout = defaultPingTimeout
	}
	if o.MaxMessageSize <= 0 {
		o.MaxMessageSize = defaultMaxMessageSize
	}
	if o.SendQueueSize <= 0 {
		o.SendQueueSize = defaultSendQueueSize
	}
	return o
}

// PeerWebsocket is the server side of one client WebSocket. Outbound frames
// go through a queue drained by a single writer goroutine, which also sends
// keep-alive pings. ReadMessage must be called from one goroutine only.
type PeerWebsocket struct {
	conn net.Conn
	addr string
	opts WebsocketOptions

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once

	writeLock sync.Mutex
	closeSent bool
}

func NewPeerWebsocket(conn net.Conn, addr string, opts WebsocketOptions) *PeerWebsocket {
	opts = opts.withDefaults()
	p := &PeerWebsocket{
		conn: conn,
		addr: addr,
		opts: opts,
		send: make(chan []byte, opts.SendQueueSize),
		done: make(chan struct{}),
	}
	go p.writeLoop()
	return p
}

func (p *PeerWebsocket) RemoteAddr() string {
	return p.addr
}

// Send queues message without blocking. A peer that cannot keep up with its
// queue is treated as gone and closed.
func (p *PeerWebsocket) Send(message []byte) error {
	select {
	case <-p.done:
		return ErrConnClosed
	default:
	}
	select {
	case p.send <- message:
		return nil
	default:
		p.Close()
		return fmt.Errorf("%w: %w", ErrConnClosed, ErrSendQueueFull)
	}
}

// Close stops the writer, which flushes what is queued, sends a close frame
// and closes the underlying connection.
func (p *PeerWebsocket) Close() error {
	p.closeOnce.Do(func() {
		close(p.done)
	})
	return nil
}

// ReadMessage returns the next text message. Control frames are answered in
// place and binary messages are skipped.
func (p *PeerWebsocket) ReadMessage() ([]byte, error) {
	rd := wsutil.Reader{
		Source:         p.conn,
		State:          ws.StateServerSide,
		CheckUTF8:      true,
		OnIntermediate: p.handleControl,
	}
	for {
		p.extendReadDeadline()
		hdr, err := rd.NextFrame()
		if err != nil {
			return nil, err
		}
		if hdr.OpCode.IsControl() {
			if err := p.handleControl(hdr, &rd); err != nil {
				return nil, err
			}
			continue
		}
		if hdr.OpCode != ws.OpText {
			if err := rd.Discard(); err != nil {
				return nil, err
			}
			continue
		}
		if hdr.Length > p.opts.MaxMessageSize {
			return nil, ErrMessageTooLarge
		}
		data, err := io.ReadAll(io.LimitReader(&rd, p.opts.MaxMessageSize+1))
		if err != nil {
			return nil, err
		}
		if int64(len(data)) > p.opts.MaxMessageSize {
			return nil, ErrMessageTooLarge
		}
		return data, nil
	}
}

func (p *PeerWebsocket) handleControl(hdr ws.Header, r io.Reader) error {
	payload, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	switch hdr.OpCode {
	case ws.OpPing:
		return p.write(ws.OpPong, payload)
	case ws.OpPong:
		p.extendReadDeadline()
	case ws.OpClose:
		code, reason := ws.ParseCloseFrameData(payload)
		var body []byte
		if !code.Empty() {
			body = ws.NewCloseFrameBody(code, "")
		}
		p.write(ws.OpClose, body)
		return wsutil.ClosedError{Code: code, Reason: reason}
	}
	return nil
}

func (p *PeerWebsocket) extendReadDeadline() {
	p.conn.SetReadDeadline(time.Now().Add(p.opts.PingInterval + p.opts.PingTimeout))
}

func (p *PeerWebsocket) write(op ws.OpCode, payload []byte) error {
	p.writeLock.Lock()
	defer p.writeLock.Unlock()
	if p.closeSent {
		return ErrConnClosed
	}
	if op == ws.OpClose {
		p.closeSent = true
	}
	p.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return wsutil.WriteServerMessage(p.conn, op, payload)
}

func (p *PeerWebsocket) writeLoop() {
	ticker := time.NewTicker(p.opts.PingInterval)
	defer func() {
		ticker.Stop()
		p.conn.Close()
	}()

	for {
		select {
		case msg := <-p.send:
			if err := p.write(ws.OpText, msg); err != nil {
				p.Close()
				return
			}
		case <-ticker.C:
			if err := p.write(ws.OpPing, nil); err != nil {
				p.Close()
				return
			}
		case <-p.done:
			p.flush()
			p.write(ws.OpClose, ws.NewCloseFrameBody(ws.StatusNormalClosure, ""))
			return
		}
	}
}

func (p *PeerWebsocket) flush() {
	for {
		select {
		case msg := <-p.send:
			if err := p.write(ws.OpText, msg); err != nil {
				return
			}
		default:
			return
		}
	}
}
