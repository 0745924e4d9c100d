package index

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/askdb-inc/askdb-engine/pkg/apperrors"
	"github.com/askdb-inc/askdb-engine/pkg/config"
	"github.com/askdb-inc/askdb-engine/pkg/llm"
	"github.com/askdb-inc/askdb-engine/pkg/models"
)

// Item is one thing to index: the text that gets embedded plus the
// snippet retrieval will place into prompts.
type Item struct {
	Identifier string
	Text       string
	Snippet    string
	Source     string
}

// ItemsFromSchema converts catalog elements into index items.
func ItemsFromSchema(elements []models.SchemaElement) []Item {
	items := make([]Item, 0, len(elements))
	for _, el := range elements {
		items = append(items, Item{
			Identifier: el.Identifier(),
			Text:       el.EmbeddingText(),
			Snippet:    el.EmbeddingText(),
			Source:     models.ContextSourceSemantic,
		})
	}
	return items
}

// GlossaryIdentifierPrefix marks index entries that stand for glossary
// terms rather than schema elements. The retriever rewrites hits on
// these entries to the term's target element.
const GlossaryIdentifierPrefix = "glossary:"

// ItemsFromGlossary converts glossary terms into index items, so a
// question phrased like a term's definition can surface the term by
// similarity alone.
func ItemsFromGlossary(terms []models.GlossaryTerm) []Item {
	items := make([]Item, 0, len(terms))
	for _, t := range terms {
		if t.Term == "" || t.Target == "" {
			continue
		}
		items = append(items, Item{
			Identifier: GlossaryIdentifierPrefix + strings.ToLower(t.Term),
			Text:       t.EmbeddingText(),
			Snippet:    t.EmbeddingText(),
			Source:     models.ContextSourceGlossary,
		})
	}
	return items
}

// Indexer builds index versions by embedding item text in batches with
// bounded parallelism. A version with any failed or mismatched batch
// is never returned, so partial indexes cannot be published.
type Indexer struct {
	client        llm.Client
	dimension     int
	batchSize     int
	maxConcurrent int
	logger        *zap.Logger
}

func NewIndexer(client llm.Client, cfg config.EmbeddingConfig, logger *zap.Logger) *Indexer {
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 64
	}
	maxConcurrent := cfg.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &Indexer{
		client:        client,
		dimension:     cfg.Dimension,
		batchSize:     batchSize,
		maxConcurrent: maxConcurrent,
		logger:        logger.Named("indexer"),
	}
}

// Index embeds all items and returns a complete, unpublished version.
func (ix *Indexer) Index(ctx context.Context, schemaVersion models.SchemaVersion, items []Item) (*Version, error) {
	if len(items) == 0 {
		return nil, apperrors.NewIndexing("no items to index", nil)
	}

	entries := make([]Entry, len(items))

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(ix.maxConcurrent)

	for start := 0; start < len(items); start += ix.batchSize {
		end := start + ix.batchSize
		if end > len(items) {
			end = len(items)
		}
		batch := items[start:end]
		offset := start

		group.Go(func() error {
			texts := make([]string, len(batch))
			for i, item := range batch {
				texts[i] = item.Text
			}

			vectors, err := ix.client.Embed(groupCtx, texts)
			if err != nil {
				return apperrors.NewIndexing("embedding batch failed", err)
			}
			if len(vectors) != len(batch) {
				return apperrors.NewIndexing(
					fmt.Sprintf("embedding count mismatch: sent %d texts, got %d vectors", len(batch), len(vectors)), nil)
			}

			for i, vec := range vectors {
				if len(vec) != ix.dimension {
					return apperrors.NewIndexing(
						fmt.Sprintf("dimension mismatch for %q: got %d, want %d",
							batch[i].Identifier, len(vec), ix.dimension), nil)
				}
				entries[offset+i] = Entry{
					Identifier: batch[i].Identifier,
					Snippet:    batch[i].Snippet,
					Source:     batch[i].Source,
					Vector:     vec,
				}
			}
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		ix.logger.Error("indexing failed",
			zap.String("schema_version", string(schemaVersion)),
			zap.Error(err))
		return nil, err
	}

	ix.logger.Info("index built",
		zap.String("schema_version", string(schemaVersion)),
		zap.Int("entries", len(entries)))

	return newVersion(schemaVersion, ix.dimension, entries), nil
}
