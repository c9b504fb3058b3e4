package citation

import (
	"encoding/gob"
	"math"
	"os"
	"path/filepath"
	"regexp"

	oserrors "github.com/fppclabs/opinionsearch/internal/errors"
)

// IDSet is a set of opinion identifiers.
type IDSet map[string]bool

// DocumentCitations is one opinion's structured citation metadata, supplied
// by the corpus loader when the index is built.
type DocumentCitations struct {
	ID             string
	GovernmentCode []string
	Regulations    []string
	Topic          string
}

// Index holds the four inverted citation maps. Built once per corpus
// snapshot and read-only thereafter; safe for concurrent reads.
type Index struct {
	// GCExact maps a raw government-code citation ("87103(a)") to the
	// opinions whose metadata cites it exactly.
	GCExact map[string]IDSet
	// GCBase maps a base statute number ("87103") to opinions citing any
	// subsection of it.
	GCBase map[string]IDSet
	// RegExact maps a regulation number ("18702.2") to citing opinions.
	RegExact map[string]IDSet
	// Topic maps a topic label to the opinions tagged with it.
	Topic map[string]IDSet
	// DocCount is the corpus size used for IDF.
	DocCount int
}

var reLeadingDigits = regexp.MustCompile(`^\d+`)

// BuildIndex constructs the inverted maps from corpus citation metadata.
// Topic labels "None" and "other" are not indexed.
func BuildIndex(docs []DocumentCitations) *Index {
	ix := &Index{
		GCExact:  make(map[string]IDSet),
		GCBase:   make(map[string]IDSet),
		RegExact: make(map[string]IDSet),
		Topic:    make(map[string]IDSet),
		DocCount: len(docs),
	}

	for _, doc := range docs {
		for _, gc := range doc.GovernmentCode {
			addTo(ix.GCExact, gc, doc.ID)
			if base := reLeadingDigits.FindString(gc); base != "" {
				addTo(ix.GCBase, base, doc.ID)
			}
		}
		for _, reg := range doc.Regulations {
			addTo(ix.RegExact, reg, doc.ID)
		}
		if doc.Topic != "" && doc.Topic != "None" && doc.Topic != "other" {
			addTo(ix.Topic, doc.Topic, doc.ID)
		}
	}

	return ix
}

func addTo(m map[string]IDSet, key, id string) {
	set, ok := m[key]
	if !ok {
		set = make(IDSet)
		m[key] = set
	}
	set[id] = true
}

// IDF returns ln(DocCount / df) for a citation matched by df opinions.
// Rarer citations receive a larger boost. Returns 0 when df is 0 or the
// index is empty.
func (ix *Index) IDF(df int) float64 {
	if df <= 0 || ix.DocCount <= 0 {
		return 0
	}
	return math.Log(float64(ix.DocCount) / float64(df))
}

// Save persists the index with gob.
func (ix *Index) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return oserrors.Wrap(oserrors.ErrCodeIndexWrite, err)
	}
	f, err := os.Create(path)
	if err != nil {
		return oserrors.Wrap(oserrors.ErrCodeIndexWrite, err)
	}
	defer f.Close()

	if err := gob.NewEncoder(f).Encode(ix); err != nil {
		return oserrors.Wrap(oserrors.ErrCodeIndexWrite, err)
	}
	return f.Sync()
}

// Load reads a gob-persisted index.
func Load(path string) (*Index, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, oserrors.New(oserrors.ErrCodeFileNotFound,
			"citation index not found: "+path, err).
			WithSuggestion("run `opinionsearch index` to build indexes")
	}
	defer f.Close()

	var ix Index
	if err := gob.NewDecoder(f).Decode(&ix); err != nil {
		return nil, oserrors.New(oserrors.ErrCodeCorruptIndex,
			"citation index corrupt: "+path, err)
	}
	return &ix, nil
}
