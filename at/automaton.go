package at

import (
	"errors"
	"fmt"
)

// ErrNoPatterns is returned when an Automaton is built from an empty set.
var ErrNoPatterns = errors.New("at: no patterns")

// Automaton recognizes a fixed set of byte literals inside an unbounded
// stream, one byte at a time. It is an Aho-Corasick machine with the failure
// links folded into a complete transition table, so every input byte costs
// exactly one table lookup and the only per-stream state is the current
// state number (see Matcher).
//
// An Automaton is immutable after construction.
type Automaton struct {
	next    [][256]int32
	out     []int
	lengths []int
}

// NewAutomaton builds an Automaton for the given literals. The position of a
// literal in the argument list is its priority: when several literals end on
// the same byte, Step reports the one with the lowest index.
func NewAutomaton(patterns ...string) (*Automaton, error) {
	if len(patterns) == 0 {
		return nil, ErrNoPatterns
	}

	a := &Automaton{
		next:    make([][256]int32, 1),
		out:     []int{-1},
		lengths: make([]int, len(patterns)),
	}

	// Trie. State 0 is the root and is never the target of a trie edge, so a
	// zero entry means "no edge" until the table is completed below.
	for i, p := range patterns {
		if p == "" {
			return nil, fmt.Errorf("at: pattern %d is empty", i)
		}
		a.lengths[i] = len(p)

		var s int32
		for j := 0; j < len(p); j++ {
			c := p[j]
			if a.next[s][c] == 0 {
				a.next = append(a.next, [256]int32{})
				a.out = append(a.out, -1)
				a.next[s][c] = int32(len(a.next) - 1)
			}
			s = a.next[s][c]
		}
		if a.out[s] == -1 {
			a.out[s] = i
		}
	}

	// Breadth-first pass: compute failure links, inherit outputs along them
	// and replace every missing edge with the edge of the failure state.
	fail := make([]int32, len(a.next))
	queue := make([]int32, 0, len(a.next))
	for c := 0; c < 256; c++ {
		if s := a.next[0][c]; s != 0 {
			queue = append(queue, s)
		}
	}
	for len(queue) > 0 {
		s := queue[0]
		queue = queue[1:]

		if o := a.out[fail[s]]; o != -1 && (a.out[s] == -1 || o < a.out[s]) {
			a.out[s] = o
		}

		for c := 0; c < 256; c++ {
			if t := a.next[s][c]; t != 0 {
				fail[t] = a.next[fail[s]][c]
				queue = append(queue, t)
			} else {
				a.next[s][c] = a.next[fail[s]][c]
			}
		}
	}

	return a, nil
}

// MustAutomaton is like NewAutomaton but panics on error. It is meant for
// package level tables built from constant literals.
func MustAutomaton(patterns ...string) *Automaton {
	a, err := NewAutomaton(patterns...)
	if err != nil {
		panic(err)
	}
	return a
}

// Len returns the number of literals recognized by a.
func (a *Automaton) Len() int { return len(a.lengths) }

// PatternLen returns the length in bytes of literal idx.
func (a *Automaton) PatternLen(idx int) int { return a.lengths[idx] }

// Matcher returns a fresh matcher positioned at the start state.
func (a *Automaton) Matcher() Matcher {
	return Matcher{a: a}
}

// Matcher is the per-stream state of an Automaton.
type Matcher struct {
	a     *Automaton
	state int32
}

// Step consumes one byte. It reports the index of the highest priority
// literal that ends at this byte, if any.
func (m *Matcher) Step(b byte) (int, bool) {
	m.state = m.a.next[m.state][b]
	idx := m.a.out[m.state]
	return idx, idx >= 0
}

// Reset returns the matcher to the start state.
func (m *Matcher) Reset() {
	m.state = 0
}
