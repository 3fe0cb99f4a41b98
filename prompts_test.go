package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePrompts(t *testing.T) {
	raw := "  first prompt  \n\nsecond prompt\r\n   \nthird prompt"

	prompts := parsePrompts(raw)

	assert.Equal(t, []string{"first prompt", "second prompt", "third prompt"}, prompts)
}

func TestParsePromptsEmpty(t *testing.T) {
	assert.Empty(t, parsePrompts(""))
	assert.Empty(t, parsePrompts("\n \n\t\n"))
}

func TestPickUnusedNeverRepeats(t *testing.T) {
	r, host := newTestRoom(10)
	r.setPrompts(host.id, "one\ntwo\nthree\nfour\nfive")

	seen := make(map[int]bool)
	for i := 0; i < 5; i++ {
		idx, ok := r.pickUnusedPromptLocked()
		require.True(t, ok)
		assert.False(t, seen[idx], "index %d drawn twice", idx)
		seen[idx] = true
		r.usedPrompts[idx] = struct{}{}
	}

	_, ok := r.pickUnusedPromptLocked()
	assert.False(t, ok, "exhausted pool must report none")
}

func TestPickUnusedEmptyList(t *testing.T) {
	r, _ := newTestRoom(10)

	_, ok := r.pickUnusedPromptLocked()

	assert.False(t, ok)
}

func TestReplacePromptsResetsUsed(t *testing.T) {
	r, host := newTestRoom(10)
	joinPlayer(r, "conn-a", "Alice")

	r.setPrompts(host.id, "one\ntwo")
	r.startRound(host.id)
	require.Len(t, r.usedPrompts, 1)

	// Replacing mid-round is allowed and always clears the used set.
	r.setPrompts(host.id, "uno\ndos\ntres")

	assert.Empty(t, r.usedPrompts)
	assert.Len(t, r.prompts, 3)
	assert.Equal(t, statusRound, r.status, "the in-flight round keeps running")
}
