// More Likely
//
// A host opens a room and pastes in a list of "who's more likely to..."
// prompts. Players join with a four-character code, and each round every
// connected player anonymously votes for another player. Votes are
// tallied live (counts only, never who voted for whom), one point per
// vote received, and the game ends as soon as anyone reaches the
// room's winning score.
//
// Features:
// - Single WebSocket endpoint: /ws, JSON frames with a "type" field
// - Rooms keyed by short random codes via crypto/rand, collision-checked
// - Host-only commands: set_prompts, start_round, next_round
// - Prompts are drawn uniformly without repeats until the list is replaced
// - Rounds close automatically once every connected player has voted,
//   re-checked when a player disconnects mid-round
// - Scores and winners are recomputed server-side; ties all win together
// - Host disconnect tears the room down immediately
// - Rooms auto-reaped after a configurable idle timeout
// - In-browser QR button to share the join link, backed by go-qrcode

package main

import (
	_ "embed"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/skip2/go-qrcode"
)

const (
	msgRoomCreated      = "room_created"
	msgRoomUpdate       = "room_update"
	msgJoinResult       = "join_result"
	msgRoundStarted     = "round_started"
	msgNotice           = "notice"
	msgVoteProgress     = "vote_progress"
	msgRoundResults     = "round_results"
	msgGameFinished     = "game_finished"
	msgHostDisconnected = "host_disconnected"
)

// ClientMessage covers every inbound command.
type ClientMessage struct {
	Type         string `json:"type"`                    // "create_room", "set_prompts", "join", "start_round", "vote", "next_round"
	WinningScore int    `json:"winning_score,omitempty"` // create_room
	Code         string `json:"code,omitempty"`          // everything except create_room
	Raw          string `json:"raw,omitempty"`           // set_prompts, newline-separated
	Name         string `json:"name,omitempty"`          // join
	TargetID     string `json:"target_id,omitempty"`     // vote
}

// RoomCreatedMessage is sent only to the requesting host.
type RoomCreatedMessage struct {
	Type     string   `json:"type"`
	Code     string   `json:"code"`
	Snapshot Snapshot `json:"snapshot"`
}

type RoomUpdateMessage struct {
	Type     string   `json:"type"`
	Snapshot Snapshot `json:"snapshot"`
}

// JoinResultMessage is sent only to the joining client.
type JoinResultMessage struct {
	Type     string    `json:"type"`
	OK       bool      `json:"ok"`
	Error    string    `json:"error,omitempty"`
	Code     string    `json:"code,omitempty"`
	Name     string    `json:"name,omitempty"`
	Snapshot *Snapshot `json:"snapshot,omitempty"`
}

type RoundStartedMessage struct {
	Type     string   `json:"type"`
	Snapshot Snapshot `json:"snapshot"`
}

// NoticeMessage is for generic notifications ("no prompts left", etc.)
type NoticeMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// VoteProgressMessage carries the live tally while a round is open:
// votes received per target id, no voter identities.
type VoteProgressMessage struct {
	Type  string         `json:"type"`
	Tally map[string]int `json:"tally"`
}

type RoundResultsMessage struct {
	Type     string         `json:"type"`
	Snapshot Snapshot       `json:"snapshot"`
	Tally    map[string]int `json:"tally"`
	Winners  []string       `json:"winners"`
}

type GameFinishedMessage struct {
	Type     string   `json:"type"`
	Winners  []string `json:"winners"`
	Snapshot Snapshot `json:"snapshot"`
}

type HostDisconnectedMessage struct {
	Type string `json:"type"`
}

type Client struct {
	conn *websocket.Conn
	send chan any
	id   string

	mu     sync.Mutex
	closed bool
}

// close shuts the send channel exactly once. A client can be subscribed
// to several rooms at a time, so close and deliver synchronize on the
// client itself rather than on any one room's lock.
func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// deliver queues msg for the write pump. Reports false when the client
// is already closed or its buffer is full, in which case the caller
// should drop the client.
func (c *Client) deliver(msg any) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}

	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

func (c *Client) trySend(msg any) {
	if !c.deliver(msg) {
		c.close()
	}
}

// gameServer owns the room registry and handles dispatched commands.
// There is no ambient global; web.go constructs one per process.
type gameServer struct {
	cfg      *Config
	registry *RoomRegistry
}

func newGameServer(cfg *Config) *gameServer {
	return &gameServer{
		cfg:      cfg,
		registry: newRoomRegistry(cfg.codeLength, cfg.sessionTimeout),
	}
}

func (s *gameServer) handleCreateRoom(c *Client, msg ClientMessage) {
	room := s.registry.createRoom(msg.WinningScore, c)

	room.mu.Lock()
	room.sendLocked(c, RoomCreatedMessage{
		Type:     msgRoomCreated,
		Code:     room.code,
		Snapshot: room.snapshotLocked(),
	})
	room.mu.Unlock()

	logf(s.cfg, "GAMES: Created room %s (winning score %d)", room.code, room.winningScore)
}

func (s *gameServer) handleSetPrompts(c *Client, msg ClientMessage) {
	room, ok := s.registry.lookup(msg.Code)
	if !ok {
		return
	}

	room.setPrompts(c.id, msg.Raw)
}

func (s *gameServer) handleJoin(c *Client, msg ClientMessage) {
	name := strings.TrimSpace(msg.Name)
	if runes := []rune(name); len(runes) > maxNameLength {
		name = string(runes[:maxNameLength])
	}

	room, ok := s.registry.lookup(msg.Code)
	if !ok || name == "" {
		c.trySend(JoinResultMessage{
			Type:  msgJoinResult,
			OK:    false,
			Error: "Invalid code or name.",
		})
		return
	}

	room.join(c, name)

	logf(s.cfg, "GAMES: Player %q joined %s", name, room.code)
}

func (s *gameServer) handleStartRound(c *Client, msg ClientMessage) {
	room, ok := s.registry.lookup(msg.Code)
	if !ok {
		return
	}

	room.startRound(c.id)
}

func (s *gameServer) handleVote(c *Client, msg ClientMessage) {
	room, ok := s.registry.lookup(msg.Code)
	if !ok {
		return
	}

	room.submitVote(c.id, msg.TargetID)
}

func (s *gameServer) handleNextRound(c *Client, msg ClientMessage) {
	room, ok := s.registry.lookup(msg.Code)
	if !ok {
		return
	}

	room.nextRound(c.id)
}

// handleDisconnect walks every live room: a hosted room is torn down
// outright, a joined room keeps the player record with connected=false.
func (s *gameServer) handleDisconnect(c *Client) {
	for _, room := range s.registry.liveRooms() {
		if room.dropConnection(c) {
			s.registry.destroy(room.code)
			room.closeAll()
			logf(s.cfg, "GAMES: Host left, room %s closed", room.code)
		}
	}

	c.close()
}

func (c *Client) readPump(s *gameServer) {
	defer func() {
		s.handleDisconnect(c)
		_ = c.conn.Close()
	}()

	for {
		var msg ClientMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}

		switch msg.Type {
		case "create_room":
			s.handleCreateRoom(c, msg)
		case "set_prompts":
			s.handleSetPrompts(c, msg)
		case "join":
			s.handleJoin(c, msg)
		case "start_round":
			s.handleStartRound(c, msg)
		case "vote":
			s.handleVote(c, msg)
		case "next_round":
			s.handleNextRound(c, msg)
		default:
			// ignore unknown types
		}
	}
}

func (c *Client) writePump() {
	defer c.conn.Close()

	for msg := range c.send {
		if err := c.conn.WriteJSON(msg); err != nil {
			return
		}
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

func serveWS(s *gameServer) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Println("upgrade error:", err)
			return
		}

		client := &Client{
			conn: conn,
			send: make(chan any, 8),
			id:   uuid.NewString(),
		}

		go client.writePump()
		client.readPump(s)
	}
}

// QR handler: generates a PNG QR code for the join URL of :code.
func qrHandler(cfg *Config) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		code := strings.ToUpper(ps.ByName("code"))
		if code == "" {
			http.Error(w, "missing room code", http.StatusBadRequest)
			return
		}

		// Derive scheme (respecting TLS and X-Forwarded-Proto if present).
		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
			scheme = proto
		}

		url := scheme + "://" + r.Host + cfg.prefix + "/?code=" + code

		const qrSize = 320 // mobile-friendly size
		png, err := qrcode.Encode(url, qrcode.Medium, qrSize)
		if err != nil {
			http.Error(w, "qr generation failed", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(png)
	}
}

// ---- Static file paths ----

//go:embed morelikely/index.html
var indexHTML []byte

//go:embed morelikely/app.css
var appCSS []byte

//go:embed morelikely/app.js
var appJS []byte

func getIndexHandler(cfg *Config) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "public, max-age=3600")
		w.Header().Set("Expires", time.Now().Add(time.Hour).UTC().Format(http.TimeFormat))
		securityHeaders(cfg, w)

		_, _ = w.Write(indexHTML)
	}
}

func getCssHandler(cfg *Config) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		w.Header().Set("Content-Type", "text/css; charset=utf-8")
		w.Header().Set("Cache-Control", "public, max-age=3600")
		w.Header().Set("Expires", time.Now().Add(time.Hour).UTC().Format(http.TimeFormat))
		securityHeaders(cfg, w)

		_, _ = w.Write(appCSS)
	}
}

func getJsHandler(cfg *Config) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
		w.Header().Set("Cache-Control", "public, max-age=3600")
		w.Header().Set("Expires", time.Now().Add(time.Hour).UTC().Format(http.TimeFormat))
		securityHeaders(cfg, w)

		_, _ = w.Write(appJS)
	}
}

// registerMoreLikely sets up routes so that:
//   - /                   → HTML client (host and player views)
//   - /ws                 → WebSocket carrying all game commands
//   - /qr/:code           → PNG QR code linking to the join URL
func registerMoreLikely(cfg *Config, mux *httprouter.Router) {
	s := newGameServer(cfg)

	mux.GET(cfg.prefix+"/", getIndexHandler(cfg))

	// Shared assets
	mux.GET(cfg.prefix+"/assets/morelikely/app.css", getCssHandler(cfg))
	mux.GET(cfg.prefix+"/assets/morelikely/app.js", getJsHandler(cfg))

	mux.GET(cfg.prefix+"/ws", serveWS(s))

	mux.GET(cfg.prefix+"/qr/:code", qrHandler(cfg))
}
