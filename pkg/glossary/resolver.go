// Package glossary resolves business vocabulary to canonical schema
// elements. The resolver is read-only after construction, so lookups
// never take a lock.
package glossary

import (
	"sort"
	"strings"

	"github.com/jinzhu/inflection"

	"github.com/askdb-inc/askdb-engine/pkg/models"
)

// Resolution is one glossary hit for a phrase.
type Resolution struct {
	Term models.GlossaryTerm
	// Matched is the phrase text that produced the hit.
	Matched string
	// Exact is true for term/alias matches; false for token-overlap
	// matches.
	Exact bool
	// Score is the term confidence for exact hits, confidence scaled
	// by token overlap for fuzzy hits.
	Score float64
}

// Resolver performs exact and fuzzy glossary lookups. Exact matches on
// a term or one of its aliases (case-insensitive, singular/plural
// normalized) always beat fuzzy token-overlap matches.
type Resolver struct {
	exact      map[string][]models.GlossaryTerm
	terms      []models.GlossaryTerm
	maxWords   int
	minOverlap float64
}

// minFuzzyOverlap is the token-overlap floor below which a fuzzy
// candidate is discarded.
const minFuzzyOverlap = 0.5

func NewResolver(terms []models.GlossaryTerm) *Resolver {
	r := &Resolver{
		exact:      make(map[string][]models.GlossaryTerm),
		terms:      terms,
		minOverlap: minFuzzyOverlap,
	}

	for _, term := range terms {
		phrases := append([]string{term.Term}, term.Aliases...)
		for _, phrase := range phrases {
			key := normalizePhrase(phrase)
			if key == "" {
				continue
			}
			r.exact[key] = append(r.exact[key], term)
			if n := len(strings.Fields(key)); n > r.maxWords {
				r.maxWords = n
			}
		}
	}
	return r
}

// Resolve returns glossary hits for a phrase. All exact matches are
// returned when the phrase is a known term or alias; otherwise fuzzy
// token-overlap candidates above the floor. Ties on confidence are all
// returned, ordered deterministically (score descending, then target,
// then term).
func (r *Resolver) Resolve(phrase string) []Resolution {
	key := normalizePhrase(phrase)
	if key == "" {
		return nil
	}

	if terms, ok := r.exact[key]; ok {
		resolutions := make([]Resolution, 0, len(terms))
		for _, term := range terms {
			resolutions = append(resolutions, Resolution{
				Term:    term,
				Matched: phrase,
				Exact:   true,
				Score:   term.Confidence,
			})
		}
		sortResolutions(resolutions)
		return resolutions
	}

	return r.fuzzy(phrase, key)
}

func (r *Resolver) fuzzy(phrase, key string) []Resolution {
	phraseTokens := tokenSet(key)
	if len(phraseTokens) == 0 {
		return nil
	}

	var resolutions []Resolution
	for _, term := range r.terms {
		overlap := bestOverlap(phraseTokens, term)
		if overlap < r.minOverlap {
			continue
		}
		resolutions = append(resolutions, Resolution{
			Term:    term,
			Matched: phrase,
			Exact:   false,
			Score:   overlap * term.Confidence,
		})
	}
	sortResolutions(resolutions)
	return resolutions
}

// ResolveIn scans a question for glossary phrases, longest match
// first. Words consumed by a match are not reused by shorter ones.
func (r *Resolver) ResolveIn(question string) []Resolution {
	words := strings.Fields(question)
	if len(words) == 0 || r.maxWords == 0 {
		return nil
	}

	var resolutions []Resolution
	i := 0
	for i < len(words) {
		matched := false
		maxLen := r.maxWords
		if rest := len(words) - i; rest < maxLen {
			maxLen = rest
		}
		for n := maxLen; n >= 1; n-- {
			candidate := strings.Join(words[i:i+n], " ")
			key := normalizePhrase(candidate)
			if terms, ok := r.exact[key]; ok {
				for _, term := range terms {
					resolutions = append(resolutions, Resolution{
						Term:    term,
						Matched: candidate,
						Exact:   true,
						Score:   term.Confidence,
					})
				}
				i += n
				matched = true
				break
			}
		}
		if !matched {
			i++
		}
	}
	return resolutions
}

func sortResolutions(resolutions []Resolution) {
	sort.Slice(resolutions, func(i, j int) bool {
		if resolutions[i].Score != resolutions[j].Score {
			return resolutions[i].Score > resolutions[j].Score
		}
		if resolutions[i].Term.Target != resolutions[j].Term.Target {
			return resolutions[i].Term.Target < resolutions[j].Term.Target
		}
		return resolutions[i].Term.Term < resolutions[j].Term.Term
	})
}

// normalizePhrase lowercases, strips punctuation at word edges, and
// singularizes each word so "Top Customers" matches "top customer".
func normalizePhrase(phrase string) string {
	words := strings.Fields(strings.ToLower(phrase))
	out := make([]string, 0, len(words))
	for _, w := range words {
		w = strings.Trim(w, ".,;:!?'\"()")
		if w == "" {
			continue
		}
		out = append(out, inflection.Singular(w))
	}
	return strings.Join(out, " ")
}

func tokenSet(key string) map[string]bool {
	set := make(map[string]bool)
	for _, w := range strings.Fields(key) {
		set[w] = true
	}
	return set
}

// bestOverlap computes the best Jaccard overlap between the phrase
// tokens and the term plus each of its aliases.
func bestOverlap(phraseTokens map[string]bool, term models.GlossaryTerm) float64 {
	best := 0.0
	for _, candidate := range append([]string{term.Term}, term.Aliases...) {
		candidateTokens := tokenSet(normalizePhrase(candidate))
		if len(candidateTokens) == 0 {
			continue
		}
		intersection := 0
		for tok := range candidateTokens {
			if phraseTokens[tok] {
				intersection++
			}
		}
		union := len(candidateTokens) + len(phraseTokens) - intersection
		if union == 0 {
			continue
		}
		if j := float64(intersection) / float64(union); j > best {
			best = j
		}
	}
	return best
}
