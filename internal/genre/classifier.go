// USA Band Track - Live Music Event Aggregation
// Copyright 2026 The USA Band Track Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Pradervand/USA-BAND-TRACK

/*
Package genre maps noisy upstream genre information to a curated label set.

Upstream sources describe genre inconsistently: Ticketmaster returns a
classification tree, SeatGeek attaches genres to performers, and the crawled
site publishes free-form style strings. The Classifier resolves them in a
fixed order:

 1. a structured hint that names a specific target genre wins outright
 2. otherwise an ordered regex table looks for subgenre evidence in the text
 3. a generic hint (rock, alternative, indie) that could not be refined is kept
 4. the free text is scanned for any vocabulary term, longest match first
 5. nothing matched; the caller decides between rejecting and "Unknown"

Classification is pure and deterministic: the same inputs always produce the
same Result, and a Classifier is safe for concurrent use.
*/
package genre

import (
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Stage records which rule produced a Result.
type Stage int

const (
	StageNone Stage = iota
	StageHint
	StageRefined
	StageGeneric
	StageText
)

func (s Stage) String() string {
	switch s {
	case StageHint:
		return "hint"
	case StageRefined:
		return "refined"
	case StageGeneric:
		return "generic"
	case StageText:
		return "text"
	default:
		return "none"
	}
}

// Result is the outcome of a classification.
type Result struct {
	Label   string
	Matched bool
	Stage   Stage
}

// Refinement is one row of the subgenre refinement table.
type Refinement struct {
	Label   string
	Pattern string
}

// DefaultTargets is the curated vocabulary the aggregator keeps.
var DefaultTargets = []string{
	"metal", "heavy metal", "black metal", "death metal", "thrash", "doom",
	"hard rock", "punk", "post-punk", "hardcore", "emo", "industrial", "ebm",
	"goth", "darkwave", "coldwave", "rock", "alternative", "indie",
}

// DefaultGeneric lists targets too broad to stand alone when better evidence
// may exist elsewhere in the text.
var DefaultGeneric = []string{"rock", "alternative", "indie"}

// DefaultRefinements is evaluated in order; the first hit wins.
var DefaultRefinements = []Refinement{
	{Label: "black metal", Pattern: `\bblack(ened)?\s*metal\b`},
	{Label: "death metal", Pattern: `\bdeath\s*metal\b`},
	{Label: "metal", Pattern: `\bmetal(lica|core|head)?\b`},
	{Label: "hard rock", Pattern: `\bhard\s*rock\b`},
	{Label: "hardcore", Pattern: `\bhardcore\b`},
	{Label: "punk", Pattern: `\b(punk|blink[- ]?182|green\s*day|bad\s*religion)\b`},
	{Label: "emo", Pattern: `\b(emo|my\s*chemical\s*romance|taking\s*back\s*sunday)\b`},
	{Label: "industrial", Pattern: `\b(industrial|nine\s*inch\s*nails|ministry)\b`},
	{Label: "goth", Pattern: `\b(goth(ic)?|bauhaus|sisters\s*of\s*mercy)\b`},
	{Label: "darkwave", Pattern: `\b(darkwave|cold\s*wave|dark\s*synth)\b`},
}

type refiner struct {
	label string
	re    *regexp.Regexp
}

// Classifier is immutable after construction.
type Classifier struct {
	targets  []string
	target   map[string]bool
	generic  map[string]bool
	specific *automaton // non-generic targets, for hint substring checks
	genericA *automaton
	all      *automaton
	refiners []refiner
}

// New returns a Classifier with the default vocabulary.
func New() *Classifier {
	c, err := NewWithVocabulary(DefaultTargets, DefaultGeneric, DefaultRefinements)
	if err != nil {
		// The defaults are compiled into the binary; failure is a programming error.
		panic(err)
	}
	return c
}

// NewWithVocabulary builds a Classifier from a custom vocabulary. Generic
// labels must also appear in targets.
func NewWithVocabulary(targets, generic []string, refinements []Refinement) (*Classifier, error) {
	c := &Classifier{
		target:  make(map[string]bool, len(targets)),
		generic: make(map[string]bool, len(generic)),
	}

	var specific []string
	for _, t := range targets {
		t = normalize(t)
		if t == "" || c.target[t] {
			continue
		}
		c.target[t] = true
		c.targets = append(c.targets, t)
	}
	for _, g := range generic {
		g = normalize(g)
		if g == "" {
			continue
		}
		if !c.target[g] {
			return nil, fmt.Errorf("generic label %q is not a target", g)
		}
		c.generic[g] = true
	}
	for _, t := range c.targets {
		if !c.generic[t] {
			specific = append(specific, t)
		}
	}

	genericList := make([]string, 0, len(c.generic))
	for _, t := range c.targets {
		if c.generic[t] {
			genericList = append(genericList, t)
		}
	}

	c.specific = newAutomaton(specific)
	c.genericA = newAutomaton(genericList)
	c.all = newAutomaton(c.targets)

	for _, r := range refinements {
		re, err := regexp.Compile(`(?i)` + r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("refinement %q: %w", r.Label, err)
		}
		c.refiners = append(c.refiners, refiner{label: normalize(r.Label), re: re})
	}

	return c, nil
}

// Classify resolves a label from free text (title, performer names) and
// structured hints, in the order documented on the package.
func (c *Classifier) Classify(freeText string, hints []string) Result {
	cleaned := cleanHints(hints)

	genericHint := ""
	for _, h := range cleaned {
		if c.target[h] && !c.generic[h] {
			return Result{Label: TitleCase(h), Matched: true, Stage: StageHint}
		}
	}
	for _, h := range cleaned {
		if _, ok := c.specific.best(h); ok {
			// "Death Metal" is more precise than the bare "metal" it contains.
			return Result{Label: TitleCase(h), Matched: true, Stage: StageHint}
		}
		if genericHint == "" {
			if c.generic[h] {
				genericHint = h
			} else if g, ok := c.genericA.best(h); ok {
				genericHint = g
			}
		}
	}

	blob := freeText
	if len(cleaned) > 0 {
		blob = freeText + " " + strings.Join(cleaned, " ")
	}
	for _, r := range c.refiners {
		if r.re.MatchString(blob) {
			return Result{Label: TitleCase(r.label), Matched: true, Stage: StageRefined}
		}
	}

	if genericHint != "" {
		return Result{Label: TitleCase(genericHint), Matched: true, Stage: StageGeneric}
	}

	if t, ok := c.all.best(freeText); ok {
		return Result{Label: TitleCase(t), Matched: true, Stage: StageText}
	}

	return Result{}
}

// TitleCase capitalizes each word of s using English rules.
// A fresh Caser is used per call because Casers carry state.
func TitleCase(s string) string {
	return cases.Title(language.English).String(strings.TrimSpace(s))
}

func normalize(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

func cleanHints(hints []string) []string {
	out := make([]string, 0, len(hints))
	seen := make(map[string]bool, len(hints))
	for _, h := range hints {
		h = normalize(h)
		if h == "" || seen[h] {
			continue
		}
		seen[h] = true
		out = append(out, h)
	}
	return out
}
