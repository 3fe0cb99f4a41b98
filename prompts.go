/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package main

import (
	"crypto/rand"
	"math/big"
	"strings"
)

// parsePrompts splits newline-separated free text into one prompt per
// non-blank trimmed line, preserving order.
func parsePrompts(raw string) []string {
	lines := strings.Split(raw, "\n")

	prompts := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		prompts = append(prompts, line)
	}

	return prompts
}

// pickUnusedPromptLocked returns a prompt index chosen uniformly among
// the ones not yet used in this pool's lifetime, or false when the list
// is empty or exhausted. Indices are only forgotten when the prompt
// list is replaced.
func (r *Room) pickUnusedPromptLocked() (int, bool) {
	unused := make([]int, 0, len(r.prompts))
	for i := range r.prompts {
		if _, used := r.usedPrompts[i]; !used {
			unused = append(unused, i)
		}
	}

	if len(unused) == 0 {
		return 0, false
	}

	return unused[randomIndex(len(unused))], true
}

// randomIndex returns a uniform int in [0, n) using crypto/rand.
func randomIndex(n int) int {
	if n <= 1 {
		return 0
	}

	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0
	}

	return int(v.Int64())
}
