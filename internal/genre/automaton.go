// USA Band Track - Live Music Event Aggregation
// Copyright 2026 The USA Band Track Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Pradervand/USA-BAND-TRACK

package genre

import "strings"

// automaton is a case-insensitive Aho-Corasick matcher over a fixed pattern
// list. It is built once and read-only afterwards, so it is safe for
// concurrent use without locking.
type automaton struct {
	root     *acNode
	patterns []string // lower-cased, in insertion order
}

type acNode struct {
	children map[rune]*acNode
	failure  *acNode
	output   []int // indices into patterns ending here
}

// match is one pattern occurrence in the searched text.
type match struct {
	index int // pattern index
	start int // byte offset in the lower-cased text
	end   int
}

func newACNode() *acNode {
	return &acNode{children: make(map[rune]*acNode)}
}

// newAutomaton builds the trie and failure links for patterns. Empty and
// duplicate patterns are ignored.
func newAutomaton(patterns []string) *automaton {
	a := &automaton{root: newACNode()}
	seen := make(map[string]bool, len(patterns))
	for _, p := range patterns {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		a.insert(len(a.patterns), p)
		a.patterns = append(a.patterns, p)
	}
	a.link()
	return a
}

func (a *automaton) insert(index int, pattern string) {
	node := a.root
	for _, ch := range pattern {
		next := node.children[ch]
		if next == nil {
			next = newACNode()
			node.children[ch] = next
		}
		node = next
	}
	node.output = append(node.output, index)
}

// link computes failure links breadth first.
func (a *automaton) link() {
	queue := make([]*acNode, 0, len(a.root.children))
	for _, child := range a.root.children {
		child.failure = a.root
		queue = append(queue, child)
	}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for ch, child := range current.children {
			queue = append(queue, child)

			fail := current.failure
			for fail != nil && fail.children[ch] == nil {
				fail = fail.failure
			}
			if fail == nil {
				child.failure = a.root
				continue
			}
			child.failure = fail.children[ch]
			child.output = append(child.output, child.failure.output...)
		}
	}
}

// search returns every pattern occurrence in text.
func (a *automaton) search(text string) []match {
	if len(a.patterns) == 0 {
		return nil
	}
	lower := strings.ToLower(text)

	var matches []match
	node := a.root
	for i, ch := range lower {
		for node != a.root && node.children[ch] == nil {
			node = node.failure
		}
		if next := node.children[ch]; next != nil {
			node = next
		}
		end := i + len(string(ch))
		for _, idx := range node.output {
			matches = append(matches, match{index: idx, start: end - len(a.patterns[idx]), end: end})
		}
	}
	return matches
}

// best returns the longest matching pattern, ties going to the earlier
// pattern in insertion order. ok is false when nothing matches.
func (a *automaton) best(text string) (pattern string, ok bool) {
	bestIdx := -1
	for _, m := range a.search(text) {
		if bestIdx < 0 ||
			len(a.patterns[m.index]) > len(a.patterns[bestIdx]) ||
			(len(a.patterns[m.index]) == len(a.patterns[bestIdx]) && m.index < bestIdx) {
			bestIdx = m.index
		}
	}
	if bestIdx < 0 {
		return "", false
	}
	return a.patterns[bestIdx], true
}
