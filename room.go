package main

import (
	"sync"
	"time"
)

type roomStatus string

const (
	statusLobby    roomStatus = "lobby"
	statusRound    roomStatus = "round"
	statusReveal   roomStatus = "reveal"
	statusFinished roomStatus = "finished"
)

const (
	defaultWinningScore = 10
	minWinningScore     = 1
	maxWinningScore     = 50
	maxNameLength       = 20
)

// Player holds the data we store server-side for one joined connection.
// Records persist for the life of the room, even after the connection
// drops; scores only ever increase.
type Player struct {
	name      string
	score     int
	connected bool
}

// RoundState tracks one prompt-and-vote cycle. votes maps voter
// connection id to target connection id; a voter changing their mind
// simply overwrites their earlier entry.
type RoundState struct {
	promptIndex int
	votes       map[string]string
}

// Room is an isolated game session identified by a short join code.
// All mutation happens under mu, so commands touching the same room
// never interleave.
type Room struct {
	mu sync.Mutex

	code         string
	hostID       string
	prompts      []string
	usedPrompts  map[int]struct{}
	players      map[string]*Player
	order        []string // player ids in join order, for stable snapshots
	status       roomStatus
	round        *RoundState // non-nil iff status is round or reveal
	winningScore int

	clients    map[*Client]bool
	lastActive time.Time
}

func clampWinningScore(n int) int {
	switch {
	case n == 0:
		return defaultWinningScore
	case n < minWinningScore:
		return minWinningScore
	case n > maxWinningScore:
		return maxWinningScore
	}
	return n
}

func newRoom(code, hostID string, winningScore int) *Room {
	return &Room{
		code:         code,
		hostID:       hostID,
		usedPrompts:  make(map[int]struct{}),
		players:      make(map[string]*Player),
		status:       statusLobby,
		winningScore: clampWinningScore(winningScore),
		clients:      make(map[*Client]bool),
		lastActive:   time.Now(),
	}
}

func (r *Room) touchLocked() {
	r.lastActive = time.Now()
}

func (r *Room) connectedCountLocked() int {
	count := 0
	for _, p := range r.players {
		if p.connected {
			count++
		}
	}
	return count
}

// broadcastLocked fans a message out to every subscriber, dropping any
// client that is already closed or whose send buffer is full.
func (r *Room) broadcastLocked(msg any) {
	for client := range r.clients {
		if !client.deliver(msg) {
			delete(r.clients, client)
			client.close()
		}
	}
}

func (r *Room) sendLocked(c *Client, msg any) {
	if !c.deliver(msg) {
		delete(r.clients, c)
		c.close()
	}
}

// setPrompts replaces the prompt list wholesale and forgets which
// prompts have been used. Host only. An in-flight round keeps running
// against its old prompt index; the snapshot guards the bounds.
func (r *Room) setPrompts(requesterID, raw string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.touchLocked()

	if requesterID != r.hostID {
		return
	}

	r.prompts = parsePrompts(raw)
	r.usedPrompts = make(map[int]struct{})

	r.broadcastLocked(RoomUpdateMessage{
		Type:     msgRoomUpdate,
		Snapshot: r.snapshotLocked(),
	})
}

// join adds the connection as a player and subscribes it to this room's
// broadcasts. A rejoining connection id keeps its score.
func (r *Room) join(c *Client, name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.touchLocked()

	r.clients[c] = true

	if p, ok := r.players[c.id]; ok {
		p.name = name
		p.connected = true
	} else {
		r.players[c.id] = &Player{
			name:      name,
			connected: true,
		}
		r.order = append(r.order, c.id)
	}

	snapshot := r.snapshotLocked()

	r.sendLocked(c, JoinResultMessage{
		Type:     msgJoinResult,
		OK:       true,
		Code:     r.code,
		Name:     name,
		Snapshot: &snapshot,
	})

	r.broadcastLocked(RoomUpdateMessage{
		Type:     msgRoomUpdate,
		Snapshot: snapshot,
	})
}

// dropConnection handles a closed websocket. Reports whether this
// connection hosted the room, in which case the caller tears the whole
// room down. A dropped player is marked disconnected but never removed,
// and the round-completion check re-runs against the shrunken count.
func (r *Room) dropConnection(c *Client) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.clients, c)

	if c.id == r.hostID {
		r.broadcastLocked(HostDisconnectedMessage{Type: msgHostDisconnected})
		return true
	}

	if p, ok := r.players[c.id]; ok && p.connected {
		r.touchLocked()
		p.connected = false

		r.broadcastLocked(RoomUpdateMessage{
			Type:     msgRoomUpdate,
			Snapshot: r.snapshotLocked(),
		})

		r.maybeCloseRoundLocked()
	}

	return false
}

// closeAll disconnects every subscriber of this room (host teardown and
// the idle reaper).
func (r *Room) closeAll() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for c := range r.clients {
		c.close()
		delete(r.clients, c)
	}
}

// PlayerView is the client-visible slice of a player record.
type PlayerView struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Score     int    `json:"score"`
	Connected bool   `json:"connected"`
}

// Snapshot is the read-only projection of room state sent to clients.
// Raw voter→target pairs never appear here; only aggregated tallies are
// ever broadcast while a round is open.
type Snapshot struct {
	Code            string       `json:"code"`
	Status          string       `json:"status"`
	WinningScore    int          `json:"winning_score"`
	Players         []PlayerView `json:"players"`
	UsedPromptCount int          `json:"used_prompt_count"`
	TotalPrompts    int          `json:"total_prompts"`
	CurrentPrompt   string       `json:"current_prompt,omitempty"`
}

func (r *Room) snapshotLocked() Snapshot {
	players := make([]PlayerView, 0, len(r.order))
	for _, id := range r.order {
		p := r.players[id]
		players = append(players, PlayerView{
			ID:        id,
			Name:      p.name,
			Score:     p.score,
			Connected: p.connected,
		})
	}

	// The prompt list can shrink under an active round, so the index
	// has to be checked before use.
	currentPrompt := ""
	if r.round != nil && r.round.promptIndex < len(r.prompts) {
		currentPrompt = r.prompts[r.round.promptIndex]
	}

	return Snapshot{
		Code:            r.code,
		Status:          string(r.status),
		WinningScore:    r.winningScore,
		Players:         players,
		UsedPromptCount: len(r.usedPrompts),
		TotalPrompts:    len(r.prompts),
		CurrentPrompt:   currentPrompt,
	}
}
