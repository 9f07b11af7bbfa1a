package main

import (
	"slices"
)

// Room is not safe for concurrent use; the owning Server serialises access.
type Room struct {
	Code    string
	HostID  string
	members []string
}

func NewRoom(code string, hostID string) *Room {
	return &Room{Code: code, HostID: hostID, members: []string{hostID}}
}

func (r *Room) Join(peerID string) {
	if r.Has(peerID) {
		return
	}
	r.members = append(r.members, peerID)
}

// Leave reports whether peerID was a member.
func (r *Room) Leave(peerID string) bool {
	for i, member := range r.members {
		if member == peerID {
			r.members = slices.Delete(r.members, i, i+1)
			return true
		}
	}
	return false
}

func (r *Room) Has(peerID string) bool {
	return slices.Contains(r.members, peerID)
}

func (r *Room) IsHost(peerID string) bool {
	return r.HostID == peerID
}

// Members returns a copy in join order.
func (r *Room) Members() []string {
	return slices.Clone(r.members)
}

func (r *Room) Len() int {
	return len(r.members)
}
