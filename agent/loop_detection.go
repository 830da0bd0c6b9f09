package agent

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
)

// decisionSignature identifies a tool call by name and a hash of its
// arguments. encoding/json sorts map keys, so equal arguments hash equally.
func decisionSignature(d *Decision) string {
	data, _ := json.Marshal(d.Args)
	h := sha256.Sum256(data)
	return fmt.Sprintf("%s:%x", d.Action, h[:8])
}

// recentSignatures returns up to count signatures of the latest tool call
// decisions, oldest first.
func recentSignatures(entries []MemoryEntry, count int) []string {
	var sigs []string
	for i := len(entries) - 1; i >= 0 && len(sigs) < count; i-- {
		e := entries[i]
		if e.Type == EntryAssistant && e.Decision != nil && e.Decision.Kind == DecisionToolCall {
			sigs = append(sigs, decisionSignature(e.Decision))
		}
	}
	for i, j := 0, len(sigs)-1; i < j; i, j = i+1, j-1 {
		sigs[i], sigs[j] = sigs[j], sigs[i]
	}
	return sigs
}

// DetectLoop reports whether the last window tool call decisions repeat a
// pattern of length 1, 2, or 3.
func DetectLoop(entries []MemoryEntry, window int) bool {
	if window <= 1 {
		return false
	}
	sigs := recentSignatures(entries, window)
	if len(sigs) < window {
		return false
	}

	for patternLen := 1; patternLen <= 3; patternLen++ {
		if window%patternLen != 0 || patternLen == window {
			continue
		}
		match := true
		for i := patternLen; i < window && match; i++ {
			if sigs[i] != sigs[i%patternLen] {
				match = false
			}
		}
		if match {
			return true
		}
	}
	return false
}
