package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(id string) *Client {
	return &Client{
		send: make(chan any, 64),
		id:   id,
	}
}

func newTestRoom(winningScore int) (*Room, *Client) {
	host := newTestClient("host")
	r := newRoom("ABCD", host.id, winningScore)
	r.clients[host] = true
	return r, host
}

func joinPlayer(r *Room, id, name string) *Client {
	c := newTestClient(id)
	r.join(c, name)
	return c
}

// drain empties a client's send buffer and returns everything received
// so far.
func drain(c *Client) []any {
	var msgs []any
	for {
		select {
		case m, ok := <-c.send:
			if !ok {
				return msgs
			}
			msgs = append(msgs, m)
		default:
			return msgs
		}
	}
}

func messagesOfType[T any](msgs []any) []T {
	var out []T
	for _, m := range msgs {
		if v, ok := m.(T); ok {
			out = append(out, v)
		}
	}
	return out
}

func TestFullGame(t *testing.T) {
	r, host := newTestRoom(2)

	a := joinPlayer(r, "conn-a", "Alice")
	b := joinPlayer(r, "conn-b", "Bob")

	r.setPrompts(host.id, "is more likely to oversleep\nis more likely to forget a birthday\nis more likely to go viral")

	drain(host)
	drain(a)
	drain(b)

	// Round 1: one vote each, no winner yet.
	r.startRound(host.id)
	assert.Equal(t, statusRound, r.status)
	require.NotNil(t, r.round)

	r.submitVote(a.id, b.id)
	assert.Equal(t, statusRound, r.status, "round must stay open until every connected player voted")

	r.submitVote(b.id, a.id)
	assert.Equal(t, statusReveal, r.status)
	assert.Equal(t, 1, r.players[a.id].score)
	assert.Equal(t, 1, r.players[b.id].score)

	results := messagesOfType[RoundResultsMessage](drain(host))
	require.Len(t, results, 1)
	assert.Equal(t, map[string]int{a.id: 1, b.id: 1}, results[0].Tally)
	assert.Empty(t, results[0].Winners)

	// Back to the lobby, round state discarded.
	r.nextRound(host.id)
	assert.Equal(t, statusLobby, r.status)
	assert.Nil(t, r.round)

	// Round 2: both players hit the winning score together.
	r.startRound(host.id)
	r.submitVote(a.id, b.id)
	r.submitVote(b.id, a.id)

	assert.Equal(t, statusFinished, r.status)
	assert.Equal(t, 2, r.players[a.id].score)
	assert.Equal(t, 2, r.players[b.id].score)

	msgs := drain(a)
	results = messagesOfType[RoundResultsMessage](msgs)
	require.Len(t, results, 1)
	assert.Equal(t, []string{"Alice", "Bob"}, results[0].Winners, "every qualifier wins, ties included")

	finished := messagesOfType[GameFinishedMessage](msgs)
	require.Len(t, finished, 1)
	assert.Equal(t, []string{"Alice", "Bob"}, finished[0].Winners)

	// finished is terminal.
	r.nextRound(host.id)
	assert.Equal(t, statusFinished, r.status)
	r.startRound(host.id)
	assert.Equal(t, statusFinished, r.status)
}

func TestStartRoundWithoutPrompts(t *testing.T) {
	r, host := newTestRoom(10)
	joinPlayer(r, "conn-a", "Alice")
	drain(host)

	r.startRound(host.id)

	assert.Equal(t, statusLobby, r.status)
	assert.Nil(t, r.round)

	notices := messagesOfType[NoticeMessage](drain(host))
	require.Len(t, notices, 1)
	assert.Contains(t, notices[0].Message, "No prompts left")
}

func TestDisconnectClosesRound(t *testing.T) {
	r, host := newTestRoom(10)
	a := joinPlayer(r, "conn-a", "Alice")
	b := joinPlayer(r, "conn-b", "Bob")
	c := joinPlayer(r, "conn-c", "Carol")

	r.setPrompts(host.id, "is more likely to be late")
	r.startRound(host.id)

	r.submitVote(a.id, c.id)
	r.submitVote(b.id, c.id)
	assert.Equal(t, statusRound, r.status, "two of three connected voters is not enough")

	// The third player disconnecting shrinks the denominator to two and
	// must close the round right away.
	r.dropConnection(c)

	assert.Equal(t, statusReveal, r.status)
	assert.Equal(t, 2, r.players[c.id].score)
	assert.False(t, r.players[c.id].connected)
}

func TestVoteOfDisconnectedPlayerStillCounts(t *testing.T) {
	r, host := newTestRoom(10)
	a := joinPlayer(r, "conn-a", "Alice")
	b := joinPlayer(r, "conn-b", "Bob")
	c := joinPlayer(r, "conn-c", "Carol")

	r.setPrompts(host.id, "is more likely to be late")
	r.startRound(host.id)

	r.submitVote(a.id, b.id)
	r.dropConnection(a)
	assert.Equal(t, statusRound, r.status, "one voter of two connected is not enough")

	// Alice's vote plus Carol's satisfies the check against the two
	// remaining connected players, even though Bob never voted.
	r.submitVote(c.id, b.id)

	assert.Equal(t, statusReveal, r.status)
	assert.Equal(t, 2, r.players[b.id].score, "Alice's vote counts even though she left")
	assert.Equal(t, 0, r.players[c.id].score)
}

func TestAllPlayersGoneClosesRound(t *testing.T) {
	r, host := newTestRoom(10)
	a := joinPlayer(r, "conn-a", "Alice")
	b := joinPlayer(r, "conn-b", "Bob")

	r.setPrompts(host.id, "is more likely to be late")
	r.startRound(host.id)

	r.dropConnection(a)
	assert.Equal(t, statusRound, r.status)

	r.dropConnection(b)
	assert.Equal(t, statusReveal, r.status, "zero voters equals zero connected")
	assert.Equal(t, 0, r.players[a.id].score)
	assert.Equal(t, 0, r.players[b.id].score)
}

func TestVoteOverwrites(t *testing.T) {
	r, host := newTestRoom(10)
	a := joinPlayer(r, "conn-a", "Alice")
	b := joinPlayer(r, "conn-b", "Bob")

	r.setPrompts(host.id, "is more likely to be late")
	r.startRound(host.id)

	r.submitVote(a.id, b.id)
	r.submitVote(a.id, a.id)
	assert.Len(t, r.round.votes, 1, "a voter changing their mind replaces the earlier vote")

	r.submitVote(b.id, a.id)

	assert.Equal(t, statusReveal, r.status)
	assert.Equal(t, 2, r.players[a.id].score)
	assert.Equal(t, 0, r.players[b.id].score)
}

func TestVoteGuards(t *testing.T) {
	r, host := newTestRoom(10)
	a := joinPlayer(r, "conn-a", "Alice")
	b := joinPlayer(r, "conn-b", "Bob")
	c := joinPlayer(r, "conn-c", "Carol")

	// Not in a round yet.
	r.submitVote(a.id, b.id)
	assert.Equal(t, statusLobby, r.status)

	r.setPrompts(host.id, "is more likely to be late")
	r.startRound(host.id)

	// Unknown voter and unknown target are dropped.
	r.submitVote("stranger", b.id)
	r.submitVote(a.id, "stranger")
	assert.Empty(t, r.round.votes)

	// Disconnected players can no longer vote.
	r.dropConnection(c)
	r.submitVote(c.id, a.id)
	assert.Empty(t, r.round.votes)

	r.submitVote(a.id, b.id)
	r.submitVote(b.id, a.id)
	assert.Equal(t, statusReveal, r.status)

	// A straggler vote after closure changes nothing.
	r.submitVote(a.id, a.id)
	assert.Equal(t, 1, r.players[a.id].score)
	assert.Equal(t, 1, r.players[b.id].score)
}

func TestHostOnlyCommands(t *testing.T) {
	r, host := newTestRoom(10)
	a := joinPlayer(r, "conn-a", "Alice")

	r.setPrompts(a.id, "should not stick")
	assert.Empty(t, r.prompts)

	r.setPrompts(host.id, "is more likely to be late")
	require.Len(t, r.prompts, 1)

	r.startRound(a.id)
	assert.Equal(t, statusLobby, r.status)

	r.startRound(host.id)
	assert.Equal(t, statusRound, r.status)

	r.submitVote(a.id, a.id)
	assert.Equal(t, statusReveal, r.status)

	r.nextRound(a.id)
	assert.Equal(t, statusReveal, r.status)

	r.nextRound(host.id)
	assert.Equal(t, statusLobby, r.status)
}

func TestScoresMatchVotesReceived(t *testing.T) {
	r, host := newTestRoom(50)
	ids := []string{"conn-a", "conn-b", "conn-c", "conn-d"}
	names := []string{"Alice", "Bob", "Carol", "Dave"}
	for i, id := range ids {
		joinPlayer(r, id, names[i])
	}

	r.setPrompts(host.id, "is more likely to be late")
	r.startRound(host.id)

	// Everyone piles onto Bob except Bob.
	r.submitVote("conn-a", "conn-b")
	r.submitVote("conn-b", "conn-a")
	r.submitVote("conn-c", "conn-b")
	r.submitVote("conn-d", "conn-b")

	assert.Equal(t, statusReveal, r.status)
	assert.Equal(t, 3, r.players["conn-b"].score)
	assert.Equal(t, 1, r.players["conn-a"].score)
	assert.Equal(t, 0, r.players["conn-c"].score)
	assert.Equal(t, 0, r.players["conn-d"].score)
}
