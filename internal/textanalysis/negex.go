package textanalysis

// span is a half-open range of token indices.
type span struct {
	start int
	end   int
}

func (s span) overlaps(o span) bool {
	return s.start < o.end && o.start < s.end
}

// findPhrases returns every occurrence of every phrase in tokens, matched on
// the normalized surface form. Occurrences may overlap.
func findPhrases(tokens []Token, phrases [][]string) []span {
	var out []span
	for i := range tokens {
		for _, phrase := range phrases {
			if i+len(phrase) > len(tokens) {
				continue
			}
			matched := true
			for j, word := range phrase {
				if tokens[i+j].Lower != word {
					matched = false
					break
				}
			}
			if matched {
				out = append(out, span{start: i, end: i + len(phrase)})
			}
		}
	}
	return out
}

func withoutOverlaps(spans []span, blockers ...[]span) []span {
	out := spans[:0:0]
	for _, s := range spans {
		blocked := false
		for _, group := range blockers {
			for _, b := range group {
				if s.overlaps(b) {
					blocked = true
					break
				}
			}
			if blocked {
				break
			}
		}
		if !blocked {
			out = append(out, s)
		}
	}
	return out
}

// detectNegations decides, for each entity span, whether it is negated. A
// scope runs from the start of a sentence or of a boundary cue up to the
// next one. Within its scope an entity is negated by a preceding cue that
// starts before it or by a following cue that ends after it.
//
// A cue that can both precede and follow, sitting directly after one entity
// and directly before another, binds to the side not cut off by
// punctuation: in "температуры нет, кашель" it only negates the first
// mention. An affirmation cue directly after an entity overrides preceding
// cues.
func (c compiledTermset) detectNegations(tokens []Token, entities []span) []bool {
	negated := make([]bool, len(entities))
	if len(entities) == 0 {
		return negated
	}

	pseudo := findPhrases(tokens, c.pseudo)
	bounds := findPhrases(tokens, c.boundaries)
	affirmed := findPhrases(tokens, c.affirmation)
	preceding := withoutOverlaps(findPhrases(tokens, c.preceding), pseudo, bounds)
	following := withoutOverlaps(findPhrases(tokens, c.following), pseudo, bounds)

	ends := make(map[int]bool, len(entities))
	starts := make(map[int]bool, len(entities))
	for _, e := range entities {
		ends[e.end] = true
		starts[e.start] = true
	}
	bidirectional := func(s span) bool {
		return containsSpan(preceding, s) && containsSpan(following, s)
	}
	// bindsBackward reports whether cue s belongs to the entity ending
	// right before it.
	bindsBackward := func(s span) bool {
		if !bidirectional(s) || !ends[s.start] || tokens[s.start].AfterPunct {
			return false
		}
		return s.end == len(tokens) || tokens[s.end].AfterPunct || tokens[s.end].Sentence != tokens[s.start].Sentence
	}
	// bindsForward reports whether cue s belongs to the entity starting
	// right after it.
	bindsForward := func(s span) bool {
		if !bidirectional(s) || s.end >= len(tokens) || !starts[s.end] || tokens[s.end].AfterPunct {
			return false
		}
		return s.start > 0 && tokens[s.start].AfterPunct && tokens[s.start-1].Sentence == tokens[s.start].Sentence
	}

	for i, e := range entities {
		lo, hi := sentenceRange(tokens, e.start)
		for _, b := range bounds {
			if b.start <= e.start && b.start > lo {
				lo = b.start
			}
			if b.start > e.start && b.start < hi {
				hi = b.start
			}
		}

		if !affirmedAfter(tokens, affirmed, e) {
			for _, p := range preceding {
				if p.start >= lo && p.start < e.start && !bindsBackward(p) {
					negated[i] = true
					break
				}
			}
		}
		if negated[i] {
			continue
		}
		for _, f := range following {
			if f.start >= lo && f.end <= hi && f.end > e.end && !bindsForward(f) {
				negated[i] = true
				break
			}
		}
	}
	return negated
}

func containsSpan(spans []span, s span) bool {
	for _, o := range spans {
		if o == s {
			return true
		}
	}
	return false
}

// affirmedAfter reports whether an affirmation cue directly follows e in the
// same clause.
func affirmedAfter(tokens []Token, affirmed []span, e span) bool {
	if e.end >= len(tokens) || tokens[e.end].AfterPunct || tokens[e.end].Sentence != tokens[e.start].Sentence {
		return false
	}
	for _, a := range affirmed {
		if a.start == e.end {
			return true
		}
	}
	return false
}

// sentenceRange returns the token range of the sentence containing token at.
func sentenceRange(tokens []Token, at int) (int, int) {
	sentence := tokens[at].Sentence
	lo := at
	for lo > 0 && tokens[lo-1].Sentence == sentence {
		lo--
	}
	hi := at + 1
	for hi < len(tokens) && tokens[hi].Sentence == sentence {
		hi++
	}
	return lo, hi
}
