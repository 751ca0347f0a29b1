// Package tokenizer provides the text normalisation shared by indexing,
// querying and answer scoring. It lower-cases input, splits on whitespace and
// keeps only the letters and digits of every whitespace-delimited unit.
package tokenizer

import (
	"strings"
	"unicode"
)

// Tokenize breaks text into lower-cased alphanumeric terms. Units that are
// empty once punctuation is stripped are dropped. The same input always
// yields the same sequence.
func Tokenize(text string) []string {
	words := strings.Fields(strings.ToLower(text))
	tokens := make([]string, 0, len(words))
	for _, word := range words {
		term := strip(word)
		if term == "" {
			continue
		}
		tokens = append(tokens, term)
	}
	return tokens
}

// TermSet returns the distinct terms of text.
func TermSet(text string) map[string]struct{} {
	tokens := Tokenize(text)
	set := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		set[t] = struct{}{}
	}
	return set
}

// strip removes every rune that is neither a letter nor a digit.
func strip(word string) string {
	clean := true
	for _, r := range word {
		if !isAlnum(r) {
			clean = false
			break
		}
	}
	if clean {
		return word
	}
	var sb strings.Builder
	sb.Grow(len(word))
	for _, r := range word {
		if isAlnum(r) {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

func isAlnum(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsNumber(r)
}
