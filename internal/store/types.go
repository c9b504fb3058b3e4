// Package store provides the lexical (bleve) and vector indexes backing
// the fusion strategies.
package store

// Document is one opinion's indexable text.
type Document struct {
	ID      string
	Content string
}

// ScoredDoc pairs a document id with a score.
type ScoredDoc struct {
	ID    string
	Score float64
}
