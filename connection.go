package main

// HandleConnection reads conn until it ends, dispatching every message. A bad
// message is answered with an error envelope and never ends the loop. When
// the connection ends the peer it last resolved to is cleaned up.
func (s *Server) HandleConnection(conn MessageConn) {
	logger := GetConnLogger(conn.RemoteAddr())
	logger.Connected()

	var peerID string
	defer func() {
		if peerID != "" {
			s.Disconnect(conn, peerID)
		}
	}()

	for {
		msg, err := conn.ReadMessage()
		if err != nil {
			logger.Closed(err)
			return
		}
		if resolved := s.HandleMessage(conn, msg); resolved != peerID {
			peerID = resolved
			logger = logger.WithPeer(peerID)
		}
	}
}
