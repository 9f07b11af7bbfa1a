package main

import (
	"testing"
	"time"
)

func runConnection(s *Server, conn MessageConn) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		s.HandleConnection(conn)
		close(done)
	}()
	return done
}

func waitFor(t *testing.T, what string, condition func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !condition() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func waitClosed(t *testing.T, done <-chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("connection handler did not return")
	}
}

func TestHandleConnectionCleansUpOnClose(t *testing.T) {
	s := NewServer()
	conn := newFakeConn("host-addr")
	done := runConnection(s, conn)

	conn.inbox <- []byte(`{"type":"register","peerId":"a","username":"alice"}`)
	conn.inbox <- []byte(`{"type":"host","room":"ROOM"}`)
	waitFor(t, "room creation", func() bool {
		_, ok := s.Room("ROOM")
		return ok
	})

	member := registerPeer(t, s, "b", "bob")
	sendJSON(t, s, member, map[string]any{"type": "join", "room": "ROOM"})
	member.drain(t)

	conn.Close()
	waitClosed(t, done)

	messages := member.drain(t)
	expectTypes(t, "b", messages, TypePeerLeft, TypeRoomClosed)
	if messages[1]["reason"] != ReasonHostLeft {
		t.Errorf("wrong reason: %v", messages[1])
	}
	if stats := s.Stats(); stats.Peers != 1 || stats.Rooms != 0 {
		t.Errorf("wrong stats after close: %+v", stats)
	}
}

func TestHandleConnectionSurvivesBadMessages(t *testing.T) {
	s := NewServer()
	conn := newFakeConn("addr")
	done := runConnection(s, conn)

	conn.inbox <- []byte(`garbage`)
	conn.inbox <- []byte(`{"type":"nope"}`)
	conn.inbox <- []byte(`{"type":"register","peerId":"a"}`)
	waitFor(t, "registration", func() bool {
		return s.Stats().Peers == 1
	})

	conn.Close()
	waitClosed(t, done)

	expectTypes(t, "conn", conn.drain(t), TypeError, TypeError, TypeRegistered)
	if stats := s.Stats(); stats.Peers != 0 {
		t.Errorf("peer should be cleaned up on close: %+v", stats)
	}
}

func TestHandleConnectionCleanupAfterLeaveIsNoop(t *testing.T) {
	s := NewServer()
	conns := setupRoom(t, s, "ROOM", "host", "b")
	conn := newFakeConn("a-addr")
	done := runConnection(s, conn)

	conn.inbox <- []byte(`{"type":"register","peerId":"a"}`)
	conn.inbox <- []byte(`{"type":"join","room":"ROOM"}`)
	conn.inbox <- []byte(`{"type":"leave"}`)
	waitFor(t, "leave", func() bool {
		return conns["b"].sentCount() == 2
	})

	conn.Close()
	waitClosed(t, done)

	// One peer-joined and one peer-left for a, nothing from the closure.
	for _, id := range []string{"host", "b"} {
		expectTypes(t, id, conns[id].drain(t), TypePeerJoined, TypePeerLeft)
	}
}

func TestHandleConnectionEvictedConnectionLeavesSuccessor(t *testing.T) {
	s := NewServer()
	first := newFakeConn("first")
	done := runConnection(s, first)

	first.inbox <- []byte(`{"type":"register","peerId":"a"}`)
	waitFor(t, "registration", func() bool {
		return s.Stats().Peers == 1
	})

	successor := registerPeer(t, s, "a", "alice")
	waitClosed(t, done)

	s.lock.Lock()
	peer := s.peers["a"]
	s.lock.Unlock()
	if peer == nil || peer.conn != successor {
		t.Errorf("closing the evicted connection removed its successor")
	}
}
