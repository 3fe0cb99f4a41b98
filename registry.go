package main

import (
	"crypto/rand"
	"strings"
	"sync"
	"time"
)

// codeAlphabet omits easily-confused characters (0/O, 1/I/L).
const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// RoomRegistry owns the set of live rooms keyed by join code. Each
// `$code` is its own isolated session.
type RoomRegistry struct {
	mu          sync.Mutex
	rooms       map[string]*Room
	codeLength  int
	idleTimeout time.Duration
}

func newRoomRegistry(codeLength int, idleTimeout time.Duration) *RoomRegistry {
	rg := &RoomRegistry{
		rooms:       make(map[string]*Room),
		codeLength:  codeLength,
		idleTimeout: idleTimeout,
	}
	if idleTimeout > 0 {
		go rg.reaperLoop()
	}
	return rg
}

func randomCode(length int) string {
	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		panic("crypto/rand failure: " + err.Error())
	}

	out := make([]byte, length)
	for i := range out {
		out[i] = codeAlphabet[int(buf[i])%len(codeAlphabet)]
	}

	return string(out)
}

// createRoom constructs a lobby-state room for the given host and
// stores it under a crypto-random code, re-drawing on collision with
// any live room. The host is subscribed to broadcasts but is not a
// player.
func (rg *RoomRegistry) createRoom(winningScore int, host *Client) *Room {
	rg.mu.Lock()
	defer rg.mu.Unlock()

	code := randomCode(rg.codeLength)
	for {
		if _, exists := rg.rooms[code]; !exists {
			break
		}
		code = randomCode(rg.codeLength)
	}

	room := newRoom(code, host.id, winningScore)
	room.clients[host] = true
	rg.rooms[code] = room

	return room
}

// lookup resolves a join code, case-insensitively.
func (rg *RoomRegistry) lookup(code string) (*Room, bool) {
	rg.mu.Lock()
	defer rg.mu.Unlock()

	room, ok := rg.rooms[strings.ToUpper(strings.TrimSpace(code))]

	return room, ok
}

// destroy removes a room from the registry. Idempotent.
func (rg *RoomRegistry) destroy(code string) {
	rg.mu.Lock()
	defer rg.mu.Unlock()

	delete(rg.rooms, code)
}

func (rg *RoomRegistry) liveRooms() []*Room {
	rg.mu.Lock()
	defer rg.mu.Unlock()

	rooms := make([]*Room, 0, len(rg.rooms))
	for _, room := range rg.rooms {
		rooms = append(rooms, room)
	}

	return rooms
}

// reaperLoop periodically removes rooms that have been idle longer than
// idleTimeout.
func (rg *RoomRegistry) reaperLoop() {
	ticker := time.NewTicker(rg.idleTimeout / 2)
	for range ticker.C {
		cutoff := time.Now().Add(-rg.idleTimeout)

		var stale []*Room

		rg.mu.Lock()
		for code, room := range rg.rooms {
			room.mu.Lock()
			last := room.lastActive
			room.mu.Unlock()

			if last.Before(cutoff) {
				delete(rg.rooms, code)
				stale = append(stale, room)
			}
		}
		rg.mu.Unlock()

		for _, room := range stale {
			go room.closeAll()
		}
	}
}
