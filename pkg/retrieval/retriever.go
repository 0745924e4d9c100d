// Package retrieval assembles the context bundle for one question:
// nearest-neighbor hits from the active index version, glossary alias
// rewrites, and one-hop foreign-key neighbors, packed greedily into a
// token budget. Retrieval is read-only and deterministic for a fixed
// index version and glossary.
package retrieval

import (
	"context"
	"errors"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/askdb-inc/askdb-engine/pkg/apperrors"
	"github.com/askdb-inc/askdb-engine/pkg/catalog"
	"github.com/askdb-inc/askdb-engine/pkg/config"
	"github.com/askdb-inc/askdb-engine/pkg/glossary"
	"github.com/askdb-inc/askdb-engine/pkg/index"
	"github.com/askdb-inc/askdb-engine/pkg/llm"
	"github.com/askdb-inc/askdb-engine/pkg/models"
	"github.com/askdb-inc/askdb-engine/pkg/retry"
)

const (
	// aliasBoost lifts glossary rewrites above plain similarity hits.
	// An exact vocabulary match is stronger evidence than embedding
	// distance, so the boost lets a confident term displace a
	// mediocre semantic hit for the same element.
	aliasBoost = 0.15

	// neighborDiscount scores a one-hop FK neighbor relative to the
	// table that sponsored it. Neighbors exist to keep joins possible,
	// not to compete with direct hits.
	neighborDiscount = 0.5
)

// Retriever builds context bundles. It embeds the question once per
// call and holds the index version for exactly the duration of the
// search, so a concurrent republish never invalidates an in-flight
// retrieval.
type Retriever struct {
	client   llm.Client
	store    *index.Store
	resolver *glossary.Resolver
	catalog  *catalog.Catalog
	cfg      config.RetrievalConfig
	logger   *zap.Logger
}

func NewRetriever(client llm.Client, store *index.Store, resolver *glossary.Resolver, cat *catalog.Catalog, cfg config.RetrievalConfig, logger *zap.Logger) *Retriever {
	return &Retriever{
		client:   client,
		store:    store,
		resolver: resolver,
		catalog:  cat,
		cfg:      cfg,
		logger:   logger.Named("retriever"),
	}
}

// Retrieve assembles the bundle for a question. A bundle with no items
// means nothing cleared the similarity threshold; that is a valid
// terminal state for the caller, not an error. budget <= 0 falls back
// to the configured token budget.
func (r *Retriever) Retrieve(ctx context.Context, question string, budget int) (*models.ContextBundle, error) {
	if budget <= 0 {
		budget = r.cfg.TokenBudget
	}

	version := r.store.Acquire()
	if version == nil {
		return nil, apperrors.NewIndexing("no index version has been published", nil)
	}
	defer r.store.Release(version)

	vectors, err := r.client.Embed(ctx, []string{question})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, apperrors.NewTimeout("retrieve", err)
		}
		classified := llm.ClassifyError(err)
		appErr := apperrors.NewGenerationUnavailable("embed question", classified)
		if !retry.IsRetryable(classified) {
			appErr.Retryable = false
		}
		return nil, appErr
	}
	if len(vectors) != 1 {
		return nil, apperrors.NewGenerationUnavailable("embedding service returned wrong vector count", nil)
	}

	candidates := make(map[string]models.ContextItem)
	var glossaryMatches []index.Match

	for _, m := range version.Search(vectors[0], r.cfg.TopK) {
		if m.Score < r.cfg.MinSimilarity {
			continue
		}
		if m.Entry.Source == models.ContextSourceGlossary {
			glossaryMatches = append(glossaryMatches, m)
			continue
		}
		r.offer(candidates, models.ContextItem{
			Identifier: m.Entry.Identifier,
			Score:      m.Score,
			Snippet:    m.Entry.Snippet,
			Source:     models.ContextSourceSemantic,
		})
	}

	// Glossary rewrites and neighbor expansion read the catalog. When
	// the catalog has moved ahead of the index, its elements belong to a
	// schema generation the index has not seen, so these steps are
	// skipped rather than mixing versions in one bundle.
	snap := r.catalog.Active()
	if snap != nil && snap.Version() != version.SchemaVersion() {
		r.logger.Warn("catalog and index schema versions diverge",
			zap.String("catalog_version", string(snap.Version())),
			zap.String("index_version", string(version.SchemaVersion())))
		snap = nil
	}
	r.mergeGlossaryHits(candidates, snap, glossaryMatches)
	r.mergeAliases(candidates, snap, question)
	r.expandNeighbors(candidates, snap)

	bundle := r.pack(candidates, version.SchemaVersion(), budget)

	r.logger.Debug("context bundle assembled",
		zap.String("schema_version", string(bundle.SchemaVersion)),
		zap.Int("candidates", len(candidates)),
		zap.Int("packed", len(bundle.Items)),
		zap.Int("tokens_used", bundle.TokensUsed))

	return bundle, nil
}

// offer records an item, keeping the highest score per canonical
// identifier. Equal scores go to preferOnTie.
func (r *Retriever) offer(candidates map[string]models.ContextItem, item models.ContextItem) {
	key := strings.ToLower(item.Identifier)
	existing, ok := candidates[key]
	if !ok || item.Score > existing.Score ||
		(item.Score == existing.Score && preferOnTie(item, existing)) {
		candidates[key] = item
	}
}

// preferOnTie breaks equal-score dedupe ties: term-carrying items beat
// plain hits so defining filters survive, and a verbatim alias match
// beats a similarity-surfaced glossary hit.
func preferOnTie(item, existing models.ContextItem) bool {
	if (item.Term != nil) != (existing.Term != nil) {
		return item.Term != nil
	}
	return item.Source == models.ContextSourceAlias && existing.Source == models.ContextSourceGlossary
}

// mergeGlossaryHits rewrites glossary index entries surfaced by
// embedding similarity to their target elements. The rewritten item
// keeps the hit's similarity score; mergeAliases may still raise it
// when the phrase also appears verbatim in the question.
func (r *Retriever) mergeGlossaryHits(candidates map[string]models.ContextItem, snap *catalog.Snapshot, matches []index.Match) {
	if r.resolver == nil || snap == nil {
		return
	}

	for _, m := range matches {
		phrase := strings.TrimPrefix(m.Entry.Identifier, index.GlossaryIdentifierPrefix)
		for _, res := range r.resolver.Resolve(phrase) {
			if !res.Exact {
				continue
			}
			r.offerTerm(candidates, snap, res.Term, m.Score, models.ContextSourceGlossary)
		}
	}
}

// mergeAliases rewrites glossary phrases found in the question to their
// canonical elements. Alias hits skip the similarity floor; an exact
// vocabulary match needs no embedding evidence.
func (r *Retriever) mergeAliases(candidates map[string]models.ContextItem, snap *catalog.Snapshot, question string) {
	if r.resolver == nil || snap == nil {
		return
	}

	for _, res := range r.resolver.ResolveIn(question) {
		score := res.Score + aliasBoost
		if score > 1 {
			score = 1
		}
		r.offerTerm(candidates, snap, res.Term, score, models.ContextSourceAlias)
	}
}

// offerTerm rewrites one glossary term to its target element and offers
// it at the given score. Table-local terms are dropped unless their
// table is already among the candidates.
func (r *Retriever) offerTerm(candidates map[string]models.ContextItem, snap *catalog.Snapshot, term models.GlossaryTerm, score float64, source string) {
	if !scopeSatisfied(candidates, term) {
		return
	}
	el, ok := snap.Lookup(term.Target)
	if !ok {
		r.logger.Warn("glossary term targets unknown element",
			zap.String("term", term.Term),
			zap.String("target", term.Target))
		return
	}
	t := term
	r.offer(candidates, models.ContextItem{
		Identifier: el.Identifier(),
		Score:      score,
		Snippet:    el.EmbeddingText(),
		Source:     source,
		Term:       &t,
	})
}

// scopeSatisfied reports whether a table-local term may enter the
// bundle: the table it is scoped to must already be present among the
// candidates. Global terms always pass.
func scopeSatisfied(candidates map[string]models.ContextItem, term models.GlossaryTerm) bool {
	if term.Scope != models.GlossaryScopeTable || term.ScopeTable == "" {
		return true
	}
	scoped := strings.ToLower(term.ScopeTable)
	for key := range candidates {
		if tableOf(key) == scoped {
			return true
		}
	}
	return false
}

// expandNeighbors adds the FK-adjacent tables of every candidate table
// so the generator can still join out of the retrieved set.
func (r *Retriever) expandNeighbors(candidates map[string]models.ContextItem, snap *catalog.Snapshot) {
	if snap == nil {
		return
	}

	// Sponsor tables in a stable order so equal-score neighbors get
	// deterministic sponsors.
	sponsors := make([]models.ContextItem, 0, len(candidates))
	for _, c := range candidates {
		sponsors = append(sponsors, c)
	}
	sort.Slice(sponsors, func(i, j int) bool {
		if sponsors[i].Score != sponsors[j].Score {
			return sponsors[i].Score > sponsors[j].Score
		}
		return sponsors[i].Identifier < sponsors[j].Identifier
	})

	for _, sponsor := range sponsors {
		table := tableOf(sponsor.Identifier)
		for _, neighbor := range snap.Neighbors(table) {
			if _, ok := candidates[strings.ToLower(neighbor)]; ok {
				continue
			}
			el, ok := snap.Lookup(neighbor)
			if !ok {
				continue
			}
			r.offer(candidates, models.ContextItem{
				Identifier: el.Identifier(),
				Score:      sponsor.Score * neighborDiscount,
				Snippet:    el.EmbeddingText(),
				Source:     models.ContextSourceNeighbor,
			})
		}
	}
}

// pack greedily fills the token budget in descending score order. An
// item that does not fit is skipped, not a stopping point; a smaller
// snippet further down may still fit.
func (r *Retriever) pack(candidates map[string]models.ContextItem, version models.SchemaVersion, budget int) *models.ContextBundle {
	items := make([]models.ContextItem, 0, len(candidates))
	for _, c := range candidates {
		items = append(items, c)
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].Score != items[j].Score {
			return items[i].Score > items[j].Score
		}
		li, lj := len(items[i].Identifier), len(items[j].Identifier)
		if li != lj {
			return li < lj
		}
		return items[i].Identifier < items[j].Identifier
	})

	bundle := &models.ContextBundle{
		SchemaVersion: version,
		TokenBudget:   budget,
	}
	for _, item := range items {
		cost := models.EstimateTokens(item.Snippet)
		if bundle.TokensUsed+cost > budget {
			continue
		}
		bundle.Items = append(bundle.Items, item)
		bundle.TokensUsed += cost
	}
	return bundle
}

// tableOf strips the column part of a canonical identifier.
func tableOf(identifier string) string {
	if i := strings.IndexByte(identifier, '.'); i >= 0 {
		return identifier[:i]
	}
	return identifier
}
