package main

import "errors"

var ErrConnClosed = errors.New("connection already closed")

// PeerConn is the part of a transport connection the server writes to.
// Send must not block and must return ErrConnClosed once the connection is
// gone.
type PeerConn interface {
	Send(message []byte) error
	Close() error
	RemoteAddr() string
}

// MessageConn is a PeerConn that can also be read from. ReadMessage blocks
// until the next text message arrives or the connection ends.
type MessageConn interface {
	PeerConn
	ReadMessage() ([]byte, error)
}

type Peer struct {
	ID       string
	Username string
	// Room is the code of the room the peer is in, empty when roomless.
	Room string
	conn PeerConn
}

func NewPeer(id string, username string, conn PeerConn) *Peer {
	return &Peer{ID: id, Username: username, conn: conn}
}
