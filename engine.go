// Package engine composes the catalog, semantic index, retriever,
// generator, validator, and sandbox into a ready-to-ask engine over a
// single datasource adapter. Callers that need a different composition
// can wire the pkg packages directly.
package engine

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/askdb-inc/askdb-engine/pkg/adapters/datasource"
	"github.com/askdb-inc/askdb-engine/pkg/catalog"
	"github.com/askdb-inc/askdb-engine/pkg/config"
	"github.com/askdb-inc/askdb-engine/pkg/generator"
	"github.com/askdb-inc/askdb-engine/pkg/glossary"
	"github.com/askdb-inc/askdb-engine/pkg/index"
	"github.com/askdb-inc/askdb-engine/pkg/llm"
	"github.com/askdb-inc/askdb-engine/pkg/models"
	"github.com/askdb-inc/askdb-engine/pkg/retrieval"
	"github.com/askdb-inc/askdb-engine/pkg/sandbox"
	"github.com/askdb-inc/askdb-engine/pkg/services"
	enginesql "github.com/askdb-inc/askdb-engine/pkg/sql"
)

// Engine answers natural-language questions against one datasource.
// RefreshSchema must succeed at least once before Ask can retrieve
// context.
type Engine struct {
	catalog *catalog.Catalog
	indexer *index.Indexer
	store   *index.Store
	adapter datasource.Adapter
	terms   []models.GlossaryTerm
	service *services.QuestionService
	logger  *zap.Logger
}

// New builds an engine with the default stack: provider clients from
// configuration, in-memory catalog and index, and the adapter serving
// as schema extractor, dialect, and executor.
func New(cfg *config.Config, adapter datasource.Adapter, terms []models.GlossaryTerm, logger *zap.Logger) (*Engine, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	chatClient, err := llm.NewClient(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("build completion client: %w", err)
	}
	embedClient, err := llm.NewEmbeddingClient(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("build embedding client: %w", err)
	}

	return newEngine(cfg, chatClient, embedClient, adapter, terms, logger), nil
}

// newEngine wires the components around injected model clients, for
// tests against mocked providers.
func newEngine(cfg *config.Config, chatClient, embedClient llm.Client, adapter datasource.Adapter, terms []models.GlossaryTerm, logger *zap.Logger) *Engine {
	cat := catalog.New(logger)
	store := index.NewStore(logger)
	indexer := index.NewIndexer(embedClient, cfg.Embedding, logger)

	retriever := retrieval.NewRetriever(embedClient, store, glossary.NewResolver(terms), cat, cfg.Retrieval, logger)
	gen := generator.New(chatClient, cfg.LLM, cfg.Loop, logger)
	validator := enginesql.NewValidator(logger)
	sb := sandbox.New(cfg.Execution, logger)

	svc := services.NewQuestionService(
		retriever, gen, validator, sb,
		cat, adapter, adapter,
		cfg.Loop, cfg.Cache, logger,
	)

	return &Engine{
		catalog: cat,
		indexer: indexer,
		store:   store,
		adapter: adapter,
		terms:   terms,
		service: svc,
		logger:  logger.Named("engine"),
	}
}

// RefreshSchema introspects the datasource, swaps in a new catalog
// snapshot, and publishes a semantic index built from the same
// snapshot plus the glossary. The catalog is replaced only after
// introspection succeeds; in-flight questions keep the version they
// acquired.
func (e *Engine) RefreshSchema(ctx context.Context, version models.SchemaVersion) error {
	snap, err := e.catalog.Sync(ctx, version, e.adapter)
	if err != nil {
		return fmt.Errorf("sync catalog: %w", err)
	}

	items := index.ItemsFromSchema(snap.Elements())
	items = append(items, index.ItemsFromGlossary(e.terms)...)

	indexed, err := e.indexer.Index(ctx, version, items)
	if err != nil {
		return fmt.Errorf("index schema: %w", err)
	}
	e.store.Publish(indexed)

	e.logger.Info("schema refreshed",
		zap.String("version", string(version)),
		zap.Int("elements", len(snap.Elements())),
		zap.Int("glossary_terms", len(e.terms)),
	)
	return nil
}

// Ask answers a natural-language question. See services.QuestionService.
func (e *Engine) Ask(ctx context.Context, question string) (*services.Answer, error) {
	return e.service.Ask(ctx, question)
}

// Close releases the underlying datasource connection.
func (e *Engine) Close() error {
	return e.adapter.Close()
}
