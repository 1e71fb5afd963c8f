package mailbox

import (
	"regexp"
	"sort"
	"strings"
)

var replyPrefix = regexp.MustCompile(`(?i)^\s*((re|fwd?|aw|sv)\s*(\[\d+\])?:\s*)+`)

// Thread is a group of messages that reply to each other, oldest first
type Thread struct {
	Subject  string
	Messages []*Message
}

// GroupThreads groups messages by their Message-ID, In-Reply-To and References headers.
// Messages without any linking header fall back to their normalized subject.
func GroupThreads(msgs []*Message) []Thread {
	parent := make([]int, len(msgs))
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(i int) int {
		for parent[i] != i {
			parent[i] = parent[parent[i]]
			i = parent[i]
		}
		return i
	}
	union := func(a, b int) {
		ra, rb := find(a), find(b)
		if ra != rb {
			parent[rb] = ra
		}
	}

	byID := make(map[string]int)
	for i, m := range msgs {
		if m.MessageID != "" {
			if j, ok := byID[m.MessageID]; ok {
				union(j, i)
			} else {
				byID[m.MessageID] = i
			}
		}
	}
	bySubject := make(map[string]int)
	for i, m := range msgs {
		linked := false
		for _, ref := range append(append([]string(nil), m.References...), m.InReplyTo) {
			if j, ok := byID[ref]; ok && ref != "" {
				union(j, i)
				linked = true
			}
		}
		if linked {
			continue
		}
		key := NormalizeSubject(m.Subject)
		if key == "" {
			continue
		}
		if j, ok := bySubject[key]; ok {
			union(j, i)
		} else {
			bySubject[key] = i
		}
	}

	groups := make(map[int][]*Message)
	var roots []int
	for i, m := range msgs {
		r := find(i)
		if _, ok := groups[r]; !ok {
			roots = append(roots, r)
		}
		groups[r] = append(groups[r], m)
	}

	threads := make([]Thread, 0, len(roots))
	for _, r := range roots {
		ms := groups[r]
		sort.SliceStable(ms, func(a, b int) bool { return ms[a].Date.Before(ms[b].Date) })
		threads = append(threads, Thread{Subject: NormalizeSubject(ms[0].Subject), Messages: ms})
	}
	return threads
}

// NormalizeSubject strips reply and forward prefixes
func NormalizeSubject(s string) string {
	return strings.TrimSpace(replyPrefix.ReplaceAllString(s, ""))
}
