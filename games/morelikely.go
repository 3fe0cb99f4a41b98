package games

// The host creates a room, receives a short code, and pastes in a list of
// "who's more likely to..." prompts, one per line
// Players join from their phones with the code (or the QR link) and a display name
// Each round, one unused prompt is drawn at random and every connected player
// votes anonymously for another player
// Only vote counts are shown while the round is open, never who voted for whom
// The round closes by itself once everyone connected has voted; each vote
// received is worth one point
// First player to reach the room's winning score ends the game; ties all win

// Display formats:
// Host screen: code + QR, prompt, player list with scores, live tally bars
// Player screen: prompt and one button per player

// Implementation details:
// - One websocket per client, all commands multiplexed over it by type
// - A dropped player stays on the scoreboard, greyed out, and keeps their score
// - If the host drops, the room closes immediately
