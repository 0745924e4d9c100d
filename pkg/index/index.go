// Package index holds the semantic index: versioned, immutable vector
// snapshots over schema and glossary text. A version is built fully
// before it becomes visible; readers acquire a version for the length
// of one retrieval and never observe partial state.
package index

import (
	"math"
	"sort"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/askdb-inc/askdb-engine/pkg/models"
)

// Entry is one indexed item.
type Entry struct {
	Identifier string
	Snippet    string
	Source     string // models.ContextSourceSemantic or a glossary tag
	Vector     []float32
}

// Match is a search hit with its cosine similarity score.
type Match struct {
	Entry Entry
	Score float64
}

// Version is an immutable snapshot of the index. All fields are fixed
// at construction; the reference count tracks in-flight readers so a
// superseded version survives until they finish.
type Version struct {
	id            uuid.UUID
	schemaVersion models.SchemaVersion
	dimension     int
	entries       []Entry

	refs atomic.Int64
}

func newVersion(schemaVersion models.SchemaVersion, dimension int, entries []Entry) *Version {
	return &Version{
		id:            uuid.New(),
		schemaVersion: schemaVersion,
		dimension:     dimension,
		entries:       entries,
	}
}

func (v *Version) ID() uuid.UUID { return v.id }

func (v *Version) SchemaVersion() models.SchemaVersion { return v.schemaVersion }

func (v *Version) Dimension() int { return v.dimension }

func (v *Version) Len() int { return len(v.entries) }

// Search returns the top k entries by cosine similarity. Ordering is
// deterministic: score descending, then shorter identifier, then
// lexical.
func (v *Version) Search(vector []float32, k int) []Match {
	if k <= 0 || len(v.entries) == 0 || len(vector) != v.dimension {
		return nil
	}

	matches := make([]Match, 0, len(v.entries))
	for _, e := range v.entries {
		matches = append(matches, Match{Entry: e, Score: cosineSimilarity(vector, e.Vector)})
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		li, lj := len(matches[i].Entry.Identifier), len(matches[j].Entry.Identifier)
		if li != lj {
			return li < lj
		}
		return matches[i].Entry.Identifier < matches[j].Entry.Identifier
	})

	if k > len(matches) {
		k = len(matches)
	}
	return matches[:k]
}

// cosineSimilarity computes the cosine of the angle between two
// equal-length vectors. Zero vectors score zero.
func cosineSimilarity(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
