package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"peer-signaling/code"
)

// Server owns the peer registry, the connection index and the room
// directory. Every dispatched message runs under lock, so a message observes
// and leaves the three maps consistent with each other.
type Server struct {
	peers map[string]*Peer
	conns map[PeerConn]string
	rooms map[string]*Room
	lock  sync.Mutex
}

func NewServer() *Server {
	return &Server{
		peers: make(map[string]*Peer),
		conns: make(map[PeerConn]string),
		rooms: make(map[string]*Room),
	}
}

// HandleMessage decodes and dispatches one inbound frame from conn and
// returns the peer id now associated with conn, empty if none.
func (s *Server) HandleMessage(conn PeerConn, raw []byte) (peerID string) {
	s.lock.Lock()
	defer s.lock.Unlock()

	peerID = s.conns[conn]
	defer func() {
		if r := recover(); r != nil {
			LogHandlingFailed(peerID, r)
			s.send(conn, NewErrorMessage(fmt.Sprint(r)))
		}
	}()

	msg, err := ParseInboundMessage(raw)
	if errors.Is(err, ErrInvalidJSON) {
		s.send(conn, NewErrorMessage(msgInvalidJSON))
		return peerID
	}
	if err != nil {
		LogHandlingFailed(peerID, err)
		s.send(conn, NewErrorMessage(err.Error()))
		return peerID
	}
	return s.dispatch(conn, peerID, msg)
}

// Disconnect runs cleanup for peerID when conn closes. It does nothing if
// peerID is no longer registered to conn, which happens after a leave or
// after another connection took over the id.
func (s *Server) Disconnect(conn PeerConn, peerID string) {
	s.lock.Lock()
	defer s.lock.Unlock()
	peer, ok := s.peers[peerID]
	if !ok || peer.conn != conn {
		return
	}
	s.disconnect(peerID)
}

func (s *Server) Room(roomCode string) (RoomInfo, bool) {
	s.lock.Lock()
	defer s.lock.Unlock()
	room, ok := s.rooms[roomCode]
	if !ok {
		return RoomInfo{}, false
	}
	return RoomInfo{Room: room.Code, HostID: room.HostID, Peers: s.peerInfos(room)}, true
}

func (s *Server) Stats() Stats {
	s.lock.Lock()
	defer s.lock.Unlock()
	return Stats{Peers: len(s.peers), Rooms: len(s.rooms)}
}

// CloseAll closes every registered connection. Their handlers then run the
// usual cleanup.
func (s *Server) CloseAll() {
	s.lock.Lock()
	conns := make([]PeerConn, 0, len(s.conns))
	for conn := range s.conns {
		conns = append(conns, conn)
	}
	s.lock.Unlock()

	for _, conn := range conns {
		conn.Close()
	}
}

func (s *Server) dispatch(conn PeerConn, peerID string, msg InboundMessage) string {
	switch msg.Type {
	case TypeRegister:
		return s.register(conn, msg)
	case TypeHost:
		s.host(conn, peerID, msg)
	case TypeJoin:
		s.join(conn, peerID, msg)
	case TypeSignal:
		s.signal(peerID, msg)
	case TypeBroadcast:
		s.broadcast(peerID, msg)
	case TypeMessage:
		s.directMessage(peerID, msg)
	case TypeLeave:
		if peerID != "" {
			s.disconnect(peerID)
		}
	default:
		s.send(conn, NewErrorMessage(fmt.Sprintf(msgUnknownTypeFormat, msg.Type)))
	}
	return peerID
}

func (s *Server) register(conn PeerConn, msg InboundMessage) string {
	peerID := msg.PeerID
	if peerID == "" {
		peerID = code.GeneratePeerID()
	}

	// The connection drops its previous identity before taking a new one.
	if current, ok := s.conns[conn]; ok && current != peerID {
		s.disconnect(current)
	}

	if old, ok := s.peers[peerID]; ok {
		LogPeerEvicted(peerID)
		s.disconnect(peerID)
		if old.conn != conn {
			old.conn.Close()
		}
	}

	s.peers[peerID] = NewPeer(peerID, msg.Username, conn)
	s.conns[conn] = peerID
	LogPeerRegistered(peerID, msg.Username)

	s.send(conn, RegisteredMessage{Type: TypeRegistered, PeerID: peerID})
	return peerID
}

func (s *Server) host(conn PeerConn, peerID string, msg InboundMessage) {
	if peerID == "" {
		s.send(conn, NewErrorMessage(msgMustRegister))
		return
	}
	if msg.Room == "" {
		s.send(conn, NewErrorMessage(msgRoomCodeRequired))
		return
	}
	if _, exists := s.rooms[msg.Room]; exists {
		s.send(conn, NewDomainErrorMessage(ErrorCodeRoomExists, msgRoomExists))
		return
	}

	peer := s.peers[peerID]
	if peer.Room != "" {
		s.leaveRoom(peer)
	}
	s.rooms[msg.Room] = NewRoom(msg.Room, peerID)
	peer.Room = msg.Room
	LogCreatedRoom(msg.Room, peerID)

	s.send(conn, HostedMessage{Type: TypeHosted, Room: msg.Room})
}

func (s *Server) join(conn PeerConn, peerID string, msg InboundMessage) {
	if peerID == "" {
		s.send(conn, NewErrorMessage(msgMustRegister))
		return
	}
	if msg.Room == "" {
		s.send(conn, NewErrorMessage(msgRoomCodeRequired))
		return
	}
	room, ok := s.rooms[msg.Room]
	if !ok {
		s.send(conn, NewDomainErrorMessage(ErrorCodeRoomNotFound, msgRoomNotFound))
		return
	}

	peer := s.peers[peerID]
	if peer.Room != "" {
		s.leaveRoom(peer)
		// Leaving may have closed the very room being joined.
		if room, ok = s.rooms[msg.Room]; !ok {
			s.send(conn, NewDomainErrorMessage(ErrorCodeRoomNotFound, msgRoomNotFound))
			return
		}
	}

	existing := s.peerInfos(room)
	for _, info := range existing {
		s.sendTo(s.peers[info.PeerID], PeerJoinedMessage{Type: TypePeerJoined, PeerID: peerID, Username: peer.Username})
	}
	room.Join(peerID)
	peer.Room = room.Code
	LogJoinedRoom(room.Code, peerID)

	s.send(conn, JoinedMessage{Type: TypeJoined, Room: room.Code, Peers: existing, HostID: room.HostID})
}

func (s *Server) signal(peerID string, msg InboundMessage) {
	if peerID == "" || msg.To == "" || isFalsyJSON(msg.Data) {
		return
	}
	target, ok := s.peers[msg.To]
	if !ok {
		LogSignalTargetNotFound(peerID, msg.To)
		return
	}
	s.sendTo(target, RelayMessage{Type: TypeSignal, From: peerID, Data: msg.Data})
}

func (s *Server) directMessage(peerID string, msg InboundMessage) {
	if peerID == "" || msg.To == "" || isNullJSON(msg.Data) {
		return
	}
	target, ok := s.peers[msg.To]
	if !ok {
		return
	}
	s.sendTo(target, RelayMessage{Type: TypeMessage, From: peerID, Data: msg.Data})
}

func (s *Server) broadcast(peerID string, msg InboundMessage) {
	peer, ok := s.peers[peerID]
	if !ok || peer.Room == "" {
		return
	}
	room, ok := s.rooms[peer.Room]
	if !ok {
		return
	}
	relay := RelayMessage{Type: TypeBroadcast, From: peerID, Data: msg.Data}
	for _, memberID := range room.Members() {
		if memberID != peerID {
			s.sendTo(s.peers[memberID], relay)
		}
	}
}

// disconnect is the single teardown path for leave, transport closure and
// eviction. Unknown ids are ignored.
func (s *Server) disconnect(peerID string) {
	peer, ok := s.peers[peerID]
	if !ok {
		return
	}
	if peer.Room != "" {
		s.leaveRoom(peer)
	}
	if s.conns[peer.conn] == peerID {
		delete(s.conns, peer.conn)
	}
	delete(s.peers, peerID)
	LogPeerDisconnected(peerID)
}

// leaveRoom removes peer from its room, notifies the rest and closes the
// room when the host left or nobody remains.
func (s *Server) leaveRoom(peer *Peer) {
	roomCode := peer.Room
	peer.Room = ""
	room, ok := s.rooms[roomCode]
	if !ok {
		return
	}
	room.Leave(peer.ID)

	remaining := room.Members()
	for _, memberID := range remaining {
		s.sendTo(s.peers[memberID], PeerLeftMessage{Type: TypePeerLeft, PeerID: peer.ID})
	}

	hostLeft := room.IsHost(peer.ID)
	if !hostLeft && len(remaining) > 0 {
		return
	}
	reason := ReasonEmpty
	if hostLeft {
		reason = ReasonHostLeft
	}
	for _, memberID := range remaining {
		member, ok := s.peers[memberID]
		if !ok {
			continue
		}
		s.sendTo(member, RoomClosedMessage{Type: TypeRoomClosed, Reason: reason})
		member.Room = ""
	}
	delete(s.rooms, roomCode)
	LogClosedRoom(roomCode, reason)
}

func (s *Server) peerInfos(room *Room) []PeerInfo {
	infos := make([]PeerInfo, 0, room.Len())
	for _, memberID := range room.Members() {
		member, ok := s.peers[memberID]
		if !ok {
			continue
		}
		infos = append(infos, PeerInfo{PeerID: memberID, Username: member.Username, IsHost: room.IsHost(memberID)})
	}
	return infos
}

func (s *Server) sendTo(peer *Peer, message any) {
	if peer == nil {
		return
	}
	s.send(peer.conn, message)
}

// send never reports failure: a recipient that went away is simply skipped.
func (s *Server) send(conn PeerConn, message any) {
	encoded, err := json.Marshal(message)
	if err != nil {
		LogSendFailed(err)
		return
	}
	if err := conn.Send(encoded); err != nil {
		LogSendFailed(err)
	}
}
