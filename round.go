package main

// Round lifecycle: lobby → round → reveal → lobby, or reveal → finished
// once any player reaches the winning score. finished is terminal for
// the room. Every transition either applies cleanly or is a silent
// no-op, so stale or duplicate commands are safe to resend.

// startRound picks an unused prompt and opens voting. Host only, and
// never after the game has finished. An exhausted prompt pool leaves
// state untouched and tells the room so.
func (r *Room) startRound(requesterID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.touchLocked()

	if requesterID != r.hostID || r.status == statusFinished {
		return
	}

	idx, ok := r.pickUnusedPromptLocked()
	if !ok {
		r.broadcastLocked(NoticeMessage{
			Type:    msgNotice,
			Message: "No prompts left. Add more to continue!",
		})
		return
	}

	r.usedPrompts[idx] = struct{}{}
	r.round = &RoundState{
		promptIndex: idx,
		votes:       make(map[string]string),
	}
	r.status = statusRound

	r.broadcastLocked(RoundStartedMessage{
		Type:     msgRoundStarted,
		Snapshot: r.snapshotLocked(),
	})
}

// submitVote records or overwrites one player's vote. Voter and target
// must both be known to the room and the voter still connected;
// anything else is dropped. Each accepted vote broadcasts the live
// anonymized tally and re-checks completion.
func (r *Room) submitVote(voterID, targetID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.touchLocked()

	if r.status != statusRound || r.round == nil {
		return
	}

	voter, ok := r.players[voterID]
	if !ok || !voter.connected {
		return
	}
	if _, ok := r.players[targetID]; !ok {
		return
	}

	r.round.votes[voterID] = targetID

	r.broadcastLocked(VoteProgressMessage{
		Type:  msgVoteProgress,
		Tally: r.tallyLocked(),
	})

	r.maybeCloseRoundLocked()
}

// tallyLocked recomputes votes received per target id. Voter identities
// never leave the round state.
func (r *Room) tallyLocked() map[string]int {
	tally := make(map[string]int)
	if r.round == nil {
		return tally
	}

	for _, target := range r.round.votes {
		tally[target]++
	}

	return tally
}

// maybeCloseRoundLocked closes the round once every currently-connected
// player has voted. The connected count is taken now rather than at
// round start, so a disconnect can be the event that closes a round,
// and a vote cast before disconnecting still counts. On close each vote
// received is worth one point, and any player at or above the winning
// score ends the game.
func (r *Room) maybeCloseRoundLocked() {
	if r.status != statusRound || r.round == nil {
		return
	}
	if len(r.round.votes) < r.connectedCountLocked() {
		return
	}

	for _, target := range r.round.votes {
		if p, ok := r.players[target]; ok {
			p.score++
		}
	}
	r.status = statusReveal

	tally := r.tallyLocked()
	winners := r.winnersLocked()

	r.broadcastLocked(RoundResultsMessage{
		Type:     msgRoundResults,
		Snapshot: r.snapshotLocked(),
		Tally:    tally,
		Winners:  winners,
	})

	if len(winners) > 0 {
		r.status = statusFinished
		r.broadcastLocked(GameFinishedMessage{
			Type:     msgGameFinished,
			Winners:  winners,
			Snapshot: r.snapshotLocked(),
		})
	}
}

// winnersLocked returns the names of every player at or above the
// winning score, not just whoever was targeted by the closing vote.
func (r *Room) winnersLocked() []string {
	winners := []string{}
	for _, id := range r.order {
		if r.players[id].score >= r.winningScore {
			winners = append(winners, r.players[id].name)
		}
	}

	return winners
}

// nextRound discards the revealed round and returns the room to the
// lobby. Host only, and only from reveal.
func (r *Room) nextRound(requesterID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.touchLocked()

	if requesterID != r.hostID || r.status != statusReveal {
		return
	}

	r.round = nil
	r.status = statusLobby

	r.broadcastLocked(RoomUpdateMessage{
		Type:     msgRoomUpdate,
		Snapshot: r.snapshotLocked(),
	})
}
