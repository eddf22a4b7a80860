// File: internal/infra/adapters/ai/evaluator.go
package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"classroom-ai-grading/internal/domain"
	"classroom-ai-grading/internal/domain/model"
	"classroom-ai-grading/internal/domain/ports/adapter"
	"classroom-ai-grading/internal/infra/metrics"
)

var _ adapter.Evaluator = (*Client)(nil)

// Client is the networked Evaluator. It rotates across the credential pool,
// retries quota responses on other slots, and falls through the configured
// model list on availability errors. Callers never see a rate-limit error
// unless every slot is exhausted within the retry ceiling.
type Client struct {
	gen         Generator
	pool        *Pool
	models      []string
	maxAttempts int
	reqTimeout  time.Duration
	log         *zerolog.Logger
}

func NewClient(gen Generator, pool *Pool, models []string, maxAttempts int, reqTimeout time.Duration, log *zerolog.Logger) *Client {
	return &Client{
		gen:         gen,
		pool:        pool,
		models:      models,
		maxAttempts: maxAttempts,
		reqTimeout:  reqTimeout,
		log:         log,
	}
}

func (c *Client) DetectGeneration(ctx context.Context, text string) (adapter.Detection, error) {
	resp, err := c.generate(ctx, detectionPrompt(text))
	if err != nil {
		return adapter.Detection{Confidence: model.ConfidenceNone}, err
	}
	det, ok := parseDetection(resp)
	if !ok {
		c.log.Warn().Msg("detector response carried no usable JSON")
		return det, fmt.Errorf("parse detection: %w", domain.ErrEmptyResponse)
	}
	return det, nil
}

func (c *Client) Evaluate(ctx context.Context, req adapter.EvalRequest) (adapter.Evaluation, error) {
	resp, err := c.generate(ctx, evaluationPrompt(req))
	if err != nil {
		return adapter.Evaluation{}, err
	}
	return parseEvaluation(resp), nil
}

// generate runs one prompt to completion over the slot pool and model list.
func (c *Client) generate(ctx context.Context, prompt string) (string, error) {
	var lastErr error

	for _, mdl := range c.models {
		nextModel := false
		for attempt := 1; attempt <= c.maxAttempts && !nextModel; attempt++ {
			slot, err := c.pool.Acquire(ctx)
			if err != nil {
				if errors.Is(err, domain.ErrQuotaExhausted) {
					return "", err
				}
				return "", fmt.Errorf("acquire credential: %w", err)
			}

			callCtx, cancel := context.WithTimeout(ctx, c.reqTimeout)
			start := time.Now()
			out, err := c.gen.Generate(callCtx, slot.Key, mdl, prompt)
			cancel()
			latency := int(time.Since(start) / time.Millisecond)
			metrics.ObserveAICall(mdl, latency, err == nil)

			switch {
			case err == nil && strings.TrimSpace(out) != "":
				c.pool.ReleaseSuccess(slot)
				return out, nil
			case err == nil:
				c.pool.ReleaseSuccess(slot)
				lastErr = domain.ErrEmptyResponse
				c.log.Warn().Str("model", mdl).Int("attempt", attempt).Msg("empty model response, retrying")
			case isQuota(err):
				c.pool.ReleaseQuota(slot)
				metrics.IncRotation()
				lastErr = err
				c.log.Warn().Str("model", mdl).Int("attempt", attempt).Err(err).Msg("quota response, rotating credential")
			case isModelNotFound(err):
				c.pool.ReleaseFailure(slot)
				lastErr = fmt.Errorf("%w: %s", domain.ErrModelNotFound, mdl)
				c.log.Warn().Str("model", mdl).Msg("model unavailable, advancing to next model")
				nextModel = true
			case ctx.Err() != nil:
				c.pool.ReleaseFailure(slot)
				return "", ctx.Err()
			default:
				c.pool.ReleaseFailure(slot)
				lastErr = err
				c.log.Warn().Str("model", mdl).Int("attempt", attempt).Err(err).Msg("model call failed, retrying")
			}
		}
	}

	if lastErr == nil {
		lastErr = domain.ErrEmptyResponse
	}
	return "", fmt.Errorf("all models failed: %w", lastErr)
}
