package textanalysis

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Token is one word of the analysed text.
type Token struct {
	Text     string
	Lower    string
	Lemma    string
	Start    int
	End      int
	Sentence int
	// AfterPunct is set when punctuation separates the token from the
	// previous one within its sentence.
	AfterPunct bool
}

// Tokenize splits text into word tokens. Words are runs of letters, digits
// and inner hyphens; sentence numbers advance after '.', '!', '?', '…' and
// line breaks. Lemmas are left empty.
func Tokenize(text string) []Token {
	var tokens []Token
	sentence := 0
	sawWord := false
	sawPunct := false

	i := 0
	for i < len(text) {
		r, size := utf8.DecodeRuneInString(text[i:])
		if isWordRune(r) {
			start := i
			for i < len(text) {
				r, size = utf8.DecodeRuneInString(text[i:])
				if isWordRune(r) {
					i += size
					continue
				}
				if r == '-' && i+size < len(text) {
					next, _ := utf8.DecodeRuneInString(text[i+size:])
					if isWordRune(next) {
						i += size
						continue
					}
				}
				break
			}
			word := text[start:i]
			tokens = append(tokens, Token{
				Text:       word,
				Lower:      normalize(word),
				Start:      start,
				End:        i,
				Sentence:   sentence,
				AfterPunct: sawPunct && sawWord,
			})
			sawWord = true
			sawPunct = false
			continue
		}
		switch {
		case isSentenceEnd(r):
			if sawWord {
				sentence++
				sawWord = false
			}
			sawPunct = false
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			sawPunct = true
		}
		i += size
	}
	return tokens
}

// SplitSentences splits text into trimmed, non-empty sentences using the
// same boundaries as Tokenize.
func SplitSentences(text string) []string {
	var out []string
	start := 0
	for i, r := range text {
		if isSentenceEnd(r) {
			if s := strings.TrimSpace(text[start:i]); s != "" && hasWord(s) {
				out = append(out, s)
			}
			start = i + utf8.RuneLen(r)
		}
	}
	if s := strings.TrimSpace(text[start:]); s != "" && hasWord(s) {
		out = append(out, s)
	}
	return out
}

// normalize lower-cases a word and folds 'ё' into 'е'.
func normalize(word string) string {
	return strings.ReplaceAll(strings.ToLower(word), "ё", "е")
}

// phraseWords tokenizes a term or pattern phrase into normalized words.
func phraseWords(phrase string) []string {
	tokens := Tokenize(phrase)
	out := make([]string, len(tokens))
	for i, t := range tokens {
		out[i] = t.Lower
	}
	return out
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

func isSentenceEnd(r rune) bool {
	switch r {
	case '.', '!', '?', '…', '\n', '\r':
		return true
	}
	return false
}

func hasWord(s string) bool {
	for _, r := range s {
		if isWordRune(r) {
			return true
		}
	}
	return false
}
