// USA Band Track - Live Music Event Aggregation
// Copyright 2026 The USA Band Track Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Pradervand/USA-BAND-TRACK

package genre

// KeywordMatcher tests text for any of a fixed set of keywords,
// case-insensitively and as plain substrings.
type KeywordMatcher struct {
	ac *automaton
}

// NewKeywordMatcher compiles keywords. Blank and repeated entries are dropped.
func NewKeywordMatcher(keywords []string) *KeywordMatcher {
	return &KeywordMatcher{ac: newAutomaton(keywords)}
}

// Match reports the longest keyword found in any of texts.
func (m *KeywordMatcher) Match(texts ...string) (string, bool) {
	best := ""
	for _, t := range texts {
		if k, ok := m.ac.best(t); ok && len(k) > len(best) {
			best = k
		}
	}
	return best, best != ""
}

// Len returns the number of distinct keywords.
func (m *KeywordMatcher) Len() int {
	return len(m.ac.patterns)
}
