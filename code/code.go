package code

import "github.com/google/uuid"

const PeerIDLength = 8

// GeneratePeerID is not checked against any registry; collisions over eight
// hex characters are treated as negligible.
func GeneratePeerID() string {
	return uuid.NewString()[:PeerIDLength]
}
