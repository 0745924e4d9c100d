// Package services wires the engine's components into the question
// answering loop: retrieve context, generate SQL, validate it, execute
// it, and feed every failure back into the next generation attempt
// under a shared retry budget.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/askdb-inc/askdb-engine/pkg/adapters/datasource"
	"github.com/askdb-inc/askdb-engine/pkg/apperrors"
	"github.com/askdb-inc/askdb-engine/pkg/catalog"
	"github.com/askdb-inc/askdb-engine/pkg/config"
	"github.com/askdb-inc/askdb-engine/pkg/models"
	"github.com/askdb-inc/askdb-engine/pkg/prompts"
	enginesql "github.com/askdb-inc/askdb-engine/pkg/sql"
)

// State names one position of the question state machine.
type State string

const (
	StateRetrieving State = "RETRIEVING"
	StateGenerating State = "GENERATING"
	StateValidating State = "VALIDATING"
	StateExecuting  State = "EXECUTING"
	StateSucceeded  State = "SUCCEEDED"
	StateFailed     State = "FAILED"
)

// ContextRetriever assembles the context bundle for a question.
type ContextRetriever interface {
	Retrieve(ctx context.Context, question string, budget int) (*models.ContextBundle, error)
}

// SQLGenerator produces one candidate statement per call.
type SQLGenerator interface {
	Generate(ctx context.Context, question string, bundle *models.ContextBundle, priors []prompts.PriorError) (string, error)
}

// SQLValidator statically validates a candidate statement against a
// schema and returns its logical plan.
type SQLValidator interface {
	Validate(sqlQuery string, schema enginesql.Schema) (*enginesql.LogicalPlan, error)
}

// StatementSandbox runs a translated statement under resource bounds.
type StatementSandbox interface {
	Execute(ctx context.Context, exec datasource.QueryExecutor, stmt string, params []any) (*models.ExecutionResult, error)
}

// Answer is the outcome of one question. Failed answers still carry
// the full attempt history for diagnosability.
type Answer struct {
	Question      string                     `json:"question"`
	SchemaVersion models.SchemaVersion       `json:"schema_version"`
	State         State                      `json:"state"`
	SQL           string                     `json:"sql,omitempty"`
	Result        *models.ExecutionResult    `json:"result,omitempty"`
	Attempts      []models.GenerationAttempt `json:"attempts"`
	FromCache     bool                       `json:"from_cache,omitempty"`
}

// QuestionService is the generation-validation orchestrator. Each
// question is an independent unit of work; the only shared state is
// the read-mostly catalog, index, and the answer cache.
type QuestionService struct {
	retriever ContextRetriever
	generator SQLGenerator
	validator SQLValidator
	sandbox   StatementSandbox
	catalog   *catalog.Catalog
	dialect   datasource.Dialect
	executor  datasource.QueryExecutor

	loopCfg config.LoopConfig
	cache   *answerCache

	logger *zap.Logger
}

func NewQuestionService(
	retriever ContextRetriever,
	gen SQLGenerator,
	validator SQLValidator,
	sb StatementSandbox,
	cat *catalog.Catalog,
	dialect datasource.Dialect,
	executor datasource.QueryExecutor,
	loopCfg config.LoopConfig,
	cacheCfg config.CacheConfig,
	logger *zap.Logger,
) *QuestionService {
	return &QuestionService{
		retriever: retriever,
		generator: gen,
		validator: validator,
		sandbox:   sb,
		catalog:   cat,
		dialect:   dialect,
		executor:  executor,
		loopCfg:   loopCfg,
		cache:     newAnswerCache(cacheCfg),
		logger:    logger.Named("question-service"),
	}
}

// Ask answers one natural language question. A Failed answer is
// returned alongside the final error so callers always see the
// attempt history. Duplicate concurrent questions with the same
// fingerprint collapse to one generation when caching is enabled.
func (s *QuestionService) Ask(ctx context.Context, question string) (*Answer, error) {
	fp := Fingerprint(question, s.schemaVersion())

	if answer, ok := s.cache.get(fp); ok {
		s.logger.Debug("answer served from cache", zap.String("fingerprint", fp))
		return answer, nil
	}

	if !s.cache.enabled() {
		return s.ask(ctx, question)
	}

	v, err, _ := s.cache.group.Do(fp, func() (any, error) {
		answer, err := s.ask(ctx, question)
		if err == nil && answer.State == StateSucceeded {
			s.cache.put(fp, answer)
		}
		return answer, err
	})
	answer, _ := v.(*Answer)
	return answer, err
}

func (s *QuestionService) schemaVersion() models.SchemaVersion {
	if snap := s.catalog.Active(); snap != nil {
		return snap.Version()
	}
	return ""
}

func (s *QuestionService) ask(ctx context.Context, question string) (*Answer, error) {
	if s.loopCfg.WallClock > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.loopCfg.WallClock)
		defer cancel()
	}

	snap := s.catalog.Active()
	if snap == nil {
		return nil, fmt.Errorf("no catalog snapshot: %w", apperrors.ErrNotFound)
	}

	answer := &Answer{
		Question:      question,
		SchemaVersion: snap.Version(),
		State:         StateRetrieving,
	}

	bundle, err := s.retriever.Retrieve(ctx, question, 0)
	if err != nil {
		answer.State = StateFailed
		return answer, fmt.Errorf("retrieve context: %w", err)
	}
	if bundle.Empty() {
		answer.State = StateFailed
		return answer, apperrors.ErrInsufficientContext
	}

	budget := s.loopCfg.SemanticRetries
	if budget <= 0 {
		budget = 3
	}

	var priors []prompts.PriorError
	var lastErr error

	for attempt := 0; attempt < budget; attempt++ {
		if err := s.checkDeadline(ctx); err != nil {
			answer.State = StateFailed
			return answer, err
		}

		answer.State = StateGenerating
		started := time.Now()
		sqlText, err := s.generator.Generate(ctx, question, bundle, priors)
		if err != nil {
			lastErr = err
			s.record(answer, attempt, sqlText, models.AttemptStatusError, err, started)
			if !apperrors.IsRetryable(err) || apperrors.KindOf(err) == apperrors.KindGenerationUnavailable {
				// The generator already spent the transport budget;
				// an unavailable model will not heal within this
				// question.
				answer.State = StateFailed
				return answer, err
			}
			priors = appendPrior(priors, sqlText, err)
			continue
		}

		answer.State = StateValidating
		plan, err := s.validator.Validate(sqlText, snap)
		if err != nil {
			lastErr = err
			s.record(answer, attempt, sqlText, models.AttemptStatusInvalid, err, started)
			if !apperrors.IsRetryable(err) {
				answer.State = StateFailed
				return answer, err
			}
			priors = appendPrior(priors, sqlText, err)
			continue
		}

		stmt, params, err := s.dialect.Translate(plan)
		if err != nil {
			lastErr = err
			s.record(answer, attempt, sqlText, models.AttemptStatusInvalid, err, started)
			if !apperrors.IsRetryable(err) {
				answer.State = StateFailed
				return answer, err
			}
			priors = appendPrior(priors, sqlText, err)
			continue
		}

		if err := s.checkDeadline(ctx); err != nil {
			answer.State = StateFailed
			return answer, err
		}

		answer.State = StateExecuting
		result, err := s.executeStatement(ctx, stmt, params)
		if err != nil {
			lastErr = err
			s.record(answer, attempt, sqlText, models.AttemptStatusError, err, started)
			if !apperrors.IsRetryable(err) || apperrors.KindOf(err) == apperrors.KindTimeout {
				// A statement that times out repeatedly will not get
				// faster by being regenerated, and the timeout message
				// teaches the model nothing.
				answer.State = StateFailed
				return answer, err
			}
			priors = appendPrior(priors, sqlText, err)
			continue
		}

		s.record(answer, attempt, sqlText, models.AttemptStatusValid, nil, started)
		answer.State = StateSucceeded
		answer.SQL = sqlText
		answer.Result = result
		s.logger.Info("question answered",
			zap.Int("attempts", attempt+1),
			zap.Int("rows", result.RowCount))
		return answer, nil
	}

	answer.State = StateFailed
	s.logger.Warn("retry budget exhausted",
		zap.Int("budget", budget),
		zap.NamedError("last_error", lastErr))
	return answer, fmt.Errorf("%w after %d attempts: %w", apperrors.ErrRetryBudgetExhausted, budget, lastErr)
}

// executeStatement dispatches to the sandbox, retrying statement
// timeouts like transport failures: the same SQL is re-dispatched
// under the wall clock without spending the semantic budget or feeding
// the model a prior. Any other sandbox error returns immediately.
func (s *QuestionService) executeStatement(ctx context.Context, stmt string, params []any) (*models.ExecutionResult, error) {
	retries := s.loopCfg.TransportRetries
	if retries < 0 {
		retries = 0
	}

	var lastErr error
	for try := 0; try <= retries; try++ {
		if err := s.checkDeadline(ctx); err != nil {
			return nil, err
		}
		result, err := s.sandbox.Execute(ctx, s.executor, stmt, params)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if apperrors.KindOf(err) != apperrors.KindTimeout {
			return nil, err
		}
	}
	return nil, lastErr
}

// checkDeadline enforces cancellation at suspension points: the loop
// aborts before the next generator or sandbox call, never mid-call.
func (s *QuestionService) checkDeadline(ctx context.Context) error {
	err := ctx.Err()
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", apperrors.ErrWallClockExceeded, err)
	}
	return err
}

// record appends one immutable attempt to the answer's history.
func (s *QuestionService) record(answer *Answer, index int, sqlText, status string, err error, started time.Time) {
	attempt := models.GenerationAttempt{
		ID:            uuid.New(),
		Question:      answer.Question,
		SchemaVersion: answer.SchemaVersion,
		Index:         index,
		SQL:           sqlText,
		Status:        status,
		Elapsed:       time.Since(started),
		CreatedAt:     time.Now(),
	}
	if err != nil {
		attempt.ErrorKind = string(apperrors.KindOf(err))
		var appErr *apperrors.Error
		if errors.As(err, &appErr) {
			attempt.ErrorDetail = appErr.Feedback()
		} else {
			attempt.ErrorDetail = err.Error()
		}
	}
	answer.Attempts = append(answer.Attempts, attempt)
}

// appendPrior adds one failure to the correction history handed to the
// next generation attempt.
func appendPrior(priors []prompts.PriorError, sqlText string, err error) []prompts.PriorError {
	prior := prompts.PriorError{SQL: sqlText}
	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		prior.Message = appErr.Message
		prior.Detail = appErr.Detail
	} else {
		prior.Message = err.Error()
	}
	return append(priors, prior)
}
