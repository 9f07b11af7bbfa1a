package main

import (
	"encoding/json"
	"errors"
	"fmt"
)

const (
	TypeRegister   = "register"
	TypeRegistered = "registered"
	TypeHost       = "host"
	TypeHosted     = "hosted"
	TypeJoin       = "join"
	TypeJoined     = "joined"
	TypeSignal     = "signal"
	TypeBroadcast  = "broadcast"
	TypeMessage    = "message"
	TypeLeave      = "leave"
	TypePeerJoined = "peer-joined"
	TypePeerLeft   = "peer-left"
	TypeRoomClosed = "room-closed"
	TypeError      = "error"
)

const (
	ErrorCodeRoomExists   = "room-exists"
	ErrorCodeRoomNotFound = "room-not-found"

	ReasonHostLeft = "host-left"
	ReasonEmpty    = "empty"

	defaultUsername = "Inconnu"
)

const (
	msgInvalidJSON       = "Invalid JSON"
	msgMustRegister      = "Must register first"
	msgRoomCodeRequired  = "Room code required"
	msgRoomExists        = "Ce code serveur est déjà utilisé"
	msgRoomNotFound      = "Serveur introuvable"
	msgUnknownTypeFormat = "Unknown message type: %s"
)

var ErrInvalidJSON = errors.New("invalid JSON")

// InboundMessage is a decoded client envelope. String fields are empty when
// the key is absent, null or not a string.
type InboundMessage struct {
	Type     string
	PeerID   string
	Username string
	Room     string
	To       string
	Data     json.RawMessage
}

func ParseInboundMessage(raw []byte) (InboundMessage, error) {
	if !json.Valid(raw) {
		return InboundMessage{}, ErrInvalidJSON
	}
	fields, err := UnmarshalJSON[map[string]json.RawMessage](raw)
	if err != nil {
		return InboundMessage{}, fmt.Errorf("envelope must be a JSON object: %w", err)
	}

	msg := InboundMessage{
		Type:     typeField(fields["type"]),
		PeerID:   stringField(fields["peerId"]),
		Username: defaultUsername,
		Room:     stringField(fields["room"]),
		To:       stringField(fields["to"]),
		Data:     fields["data"],
	}
	if username, ok := fields["username"]; ok {
		if s, err := UnmarshalJSON[string](username); err == nil && !isNullJSON(username) {
			msg.Username = s
		}
	}
	return msg, nil
}

// typeField keeps non-string type values verbatim so they can be echoed back
// in the unknown-type error.
func typeField(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	if s, err := UnmarshalJSON[string](raw); err == nil {
		return s
	}
	return string(raw)
}

func stringField(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	s, _ := UnmarshalJSON[string](raw)
	return s
}

type RegisteredMessage struct {
	Type   string `json:"type"`
	PeerID string `json:"peerId"`
}

type HostedMessage struct {
	Type string `json:"type"`
	Room string `json:"room"`
}

type PeerInfo struct {
	PeerID   string `json:"peerId"`
	Username string `json:"username"`
	IsHost   bool   `json:"isHost"`
}

type JoinedMessage struct {
	Type   string     `json:"type"`
	Room   string     `json:"room"`
	Peers  []PeerInfo `json:"peers"`
	HostID string     `json:"hostId"`
}

type PeerJoinedMessage struct {
	Type     string `json:"type"`
	PeerID   string `json:"peerId"`
	Username string `json:"username"`
}

type PeerLeftMessage struct {
	Type   string `json:"type"`
	PeerID string `json:"peerId"`
}

type RoomClosedMessage struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
}

// RelayMessage carries an opaque payload for signal, message and broadcast.
type RelayMessage struct {
	Type string          `json:"type"`
	From string          `json:"from"`
	Data json.RawMessage `json:"data"`
}

type ErrorMessage struct {
	Type    string `json:"type"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message"`
}

func NewErrorMessage(message string) ErrorMessage {
	return ErrorMessage{Type: TypeError, Message: message}
}

func NewDomainErrorMessage(code string, message string) ErrorMessage {
	return ErrorMessage{Type: TypeError, Error: code, Message: message}
}

type RoomInfo struct {
	Room   string     `json:"room"`
	HostID string     `json:"hostId"`
	Peers  []PeerInfo `json:"peers"`
}

type Stats struct {
	Peers int `json:"peers"`
	Rooms int `json:"rooms"`
}
