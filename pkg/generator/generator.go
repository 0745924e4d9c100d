// Package generator turns a question plus its context bundle into a
// candidate SQL statement. The generator is stateless between calls;
// everything an attempt needs, including the history of earlier
// failures, arrives as arguments.
package generator

import (
	"context"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/askdb-inc/askdb-engine/pkg/apperrors"
	"github.com/askdb-inc/askdb-engine/pkg/config"
	"github.com/askdb-inc/askdb-engine/pkg/llm"
	"github.com/askdb-inc/askdb-engine/pkg/models"
	"github.com/askdb-inc/askdb-engine/pkg/prompts"
	"github.com/askdb-inc/askdb-engine/pkg/retry"
)

// Generator invokes the generation model with bounded transport
// retries. Semantic retries are the orchestrator's concern; this
// package only distinguishes "the model answered" from "the model was
// unreachable".
type Generator struct {
	client   llm.Client
	retryCfg *retry.Config
	timeout  time.Duration
	logger   *zap.Logger
}

func New(client llm.Client, llmCfg config.LLMConfig, loopCfg config.LoopConfig, logger *zap.Logger) *Generator {
	retryCfg := retry.DefaultConfig()
	if loopCfg.TransportRetries > 0 {
		retryCfg.MaxRetries = loopCfg.TransportRetries
	}
	return &Generator{
		client:   client,
		retryCfg: retryCfg,
		timeout:  llmCfg.Timeout,
		logger:   logger.Named("generator"),
	}
}

// Generate produces one candidate SQL statement. priors holds every
// earlier failure for this question so each retry prompt is strictly
// more informed than the last. Transport failures surface as
// GenerationUnavailable after the transport retry budget is spent.
func (g *Generator) Generate(ctx context.Context, question string, bundle *models.ContextBundle, priors []prompts.PriorError) (string, error) {
	prompt := prompts.BuildSQLGenerationPrompt(question, bundle, priors)

	callCtx := ctx
	if g.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	completion, err := retry.DoWithResult(callCtx, g.retryCfg, func() (string, error) {
		out, err := g.client.Complete(callCtx, prompts.SQLGenerationSystemMessage, prompt)
		if err != nil {
			return "", llm.ClassifyError(err)
		}
		return out, nil
	})
	if err != nil {
		g.logger.Warn("generation call failed",
			zap.Int("prior_errors", len(priors)),
			zap.Error(err))
		appErr := apperrors.NewGenerationUnavailable("generation model unavailable", err)
		// Auth and config failures will not heal on retry; carrying
		// the cause's retryability stops the orchestrator from
		// burning its budget on them.
		if !retry.IsRetryable(err) {
			appErr.Retryable = false
		}
		return "", appErr
	}

	sql := ExtractSQL(completion)
	if sql == "" {
		// The model answered but produced nothing usable. This is a
		// semantic failure: replaying it in the next prompt gives the
		// model a chance to correct itself.
		return "", apperrors.NewValidation("generation returned no SQL statement",
			truncateForDetail(completion))
	}

	g.logger.Debug("sql generated",
		zap.Int("prior_errors", len(priors)),
		zap.Int("sql_len", len(sql)))
	return sql, nil
}

// fencedBlock matches a fenced code block with an optional language
// tag. The first block wins; models that narrate around the fence are
// still usable.
var fencedBlock = regexp.MustCompile("(?s)```(?:sql|SQL)?\\s*\\n?(.*?)```")

// statementStart finds the first SELECT or WITH keyword in a bare
// completion.
var statementStart = regexp.MustCompile(`(?i)\b(?:SELECT|WITH)\b`)

// ExtractSQL pulls the SQL statement out of a model completion:
// fenced block first, then a bare statement starting at the first
// SELECT or WITH keyword.
func ExtractSQL(completion string) string {
	if m := fencedBlock.FindStringSubmatch(completion); m != nil {
		return strings.TrimSpace(m[1])
	}

	trimmed := strings.TrimSpace(completion)
	if loc := statementStart.FindStringIndex(trimmed); loc != nil {
		return strings.TrimSpace(trimmed[loc[0]:])
	}
	return ""
}

func truncateForDetail(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > 200 {
		return s[:200] + "..."
	}
	return s
}
