package store

import (
	"regexp"
	"strings"
)

// LegalStopWords is the standard English stop-word set minus "not" and
// "no", which carry legal meaning.
var LegalStopWords = []string{
	"a", "an", "and", "are", "as", "at", "be", "been", "being", "but", "by",
	"can", "could", "did", "do", "does", "doing", "done", "down", "during",
	"each", "few", "for", "from", "further", "get", "got", "had", "has",
	"have", "having", "he", "her", "here", "hers", "herself", "him",
	"himself", "his", "how", "i", "if", "in", "into", "is", "it", "its",
	"itself", "just", "let", "may", "me", "might", "more", "most", "much",
	"must", "my", "myself", "nor", "of", "off", "on", "once", "only", "or",
	"other", "ought", "our", "ours", "ourselves", "out", "over", "own",
	"same", "shall", "she", "should", "so", "some", "such", "than", "that",
	"the", "their", "theirs", "them", "themselves", "then", "there", "these",
	"they", "this", "those", "through", "to", "too", "under", "until", "up",
	"upon", "us", "very", "was", "we", "were", "what", "when", "where",
	"which", "while", "who", "whom", "why", "will", "with", "would", "yet",
	"you", "your", "yours", "yourself", "yourselves",
	"about", "above", "after", "again", "against", "all", "am", "any",
	"because", "before", "below", "between", "both", "also",
}

var legalStopWordSet = BuildStopWordMap(LegalStopWords)

// Merge parenthetical statute subsections: 87103(a) -> 87103a
var parenSub = regexp.MustCompile(`(\d+)\(([a-zA-Z0-9])\)`)

// Replace non-alphanumeric (except hyphens) with space
var nonAlnum = regexp.MustCompile(`[^a-z0-9\-]+`)

// splitLegal lowercases, merges parenthetical subsections, and splits on
// anything that is not alphanumeric or a hyphen. Stop words are kept;
// the analyzer's stop filter removes them at index time.
func splitLegal(text string) []string {
	text = strings.ToLower(text)
	text = parenSub.ReplaceAllString(text, "${1}${2}")
	text = nonAlnum.ReplaceAllString(text, " ")
	return strings.Fields(text)
}

// TokenizeLegal tokenizes text for lexical indexing and querying:
// lowercase, merge statute subsections ("87103(a)" becomes "87103a"),
// split on non-alphanumerics, drop stop words.
func TokenizeLegal(text string) []string {
	words := splitLegal(text)
	tokens := make([]string, 0, len(words))
	for _, w := range words {
		if _, stop := legalStopWordSet[w]; !stop {
			tokens = append(tokens, w)
		}
	}
	return tokens
}

// BuildStopWordMap converts a slice of stop words to a map for efficient lookup.
func BuildStopWordMap(stopWords []string) map[string]struct{} {
	m := make(map[string]struct{}, len(stopWords))
	for _, word := range stopWords {
		m[strings.ToLower(word)] = struct{}{}
	}
	return m
}
