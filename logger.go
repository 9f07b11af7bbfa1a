package main

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func init() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
}

func SetupLogger(cfg *Config) {
	zerolog.SetGlobalLevel(cfg.LogLevel)
	var out io.Writer = os.Stderr
	if cfg.LogPretty {
		out = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	}
	log.Logger = zerolog.New(out).With().Timestamp().Logger()
}

// ConnLogger tags every line with the remote address and, once the
// connection registered, the peer id.
type ConnLogger struct {
	ip      string
	zerolog zerolog.Logger
}

func GetConnLogger(ip string) ConnLogger {
	return ConnLogger{ip, log.With().Str("ip", ip).Logger()}
}

func (l ConnLogger) WithPeer(peerID string) ConnLogger {
	if peerID == "" {
		return GetConnLogger(l.ip)
	}
	return ConnLogger{l.ip, log.With().Str("ip", l.ip).Str("peer-id", peerID).Logger()}
}

func (l ConnLogger) Connected() {
	l.zerolog.Debug().Msg("Connection opened")
}

func (l ConnLogger) Closed(err error) {
	l.zerolog.Info().Err(err).Msg("Connection closed")
}

func LogHandlingFailed(peerID string, reason any) {
	log.Error().Str("peer-id", peerID).Interface("reason", reason).Msg("Error handling message")
}

func LogPeerRegistered(peerID string, username string) {
	log.Info().Str("peer-id", peerID).Str("username", username).Msg("Peer registered")
}

func LogPeerEvicted(peerID string) {
	log.Info().Str("peer-id", peerID).Msg("Evicting previous registration")
}

func LogPeerDisconnected(peerID string) {
	log.Info().Str("peer-id", peerID).Msg("Peer disconnected")
}

func LogCreatedRoom(roomCode string, hostID string) {
	log.Info().Str("room-code", roomCode).Str("host-id", hostID).Msg("Created")
}

func LogJoinedRoom(roomCode string, peerID string) {
	log.Info().Str("room-code", roomCode).Str("peer-id", peerID).Msg("Joined room")
}

func LogClosedRoom(roomCode string, reason string) {
	log.Info().Str("room-code", roomCode).Str("reason", reason).Msg("Room closed")
}

func LogSignalTargetNotFound(from string, to string) {
	log.Warn().Str("peer-id", from).Str("target", to).Msg("Signal target not found")
}

func LogSendFailed(err error) {
	log.Debug().Err(err).Msg("Dropping outbound message")
}

func LogStartedServer(addr string) {
	log.Info().Msgf("Starting signaling server on %v", addr)
}

func LogErrorWhileUpgradingHTTP(err error) {
	log.Error().Err(err).Msg("Error while upgrading HTTP")
}

func LogShuttingDown() {
	log.Info().Msg("Shutting down")
}
