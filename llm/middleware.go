package llm

import (
	"context"
	"time"

	"github.com/go-logr/logr"
	"golang.org/x/time/rate"
)

// RateLimitMiddleware blocks each call until the limiter grants a token.
// A cancelled context while waiting is reported as an AbortError.
func RateLimitMiddleware(limiter *rate.Limiter) Middleware {
	return func(ctx context.Context, req Request, next CompleteFunc) (*Response, error) {
		if err := limiter.Wait(ctx); err != nil {
			return nil, &AbortError{SDKError: SDKError{Message: "rate limiter wait aborted", Cause: err}}
		}
		return next(ctx, req)
	}
}

// LoggingMiddleware logs every provider call at V(1) and failures at error level.
func LoggingMiddleware(log logr.Logger) Middleware {
	return func(ctx context.Context, req Request, next CompleteFunc) (*Response, error) {
		start := time.Now()
		resp, err := next(ctx, req)
		elapsed := time.Since(start)
		if err != nil {
			log.Error(err, "model call failed",
				"provider", req.Provider,
				"model", req.Model,
				"duration_ms", elapsed.Milliseconds(),
			)
			return nil, err
		}
		log.V(1).Info("model call",
			"provider", resp.Provider,
			"model", resp.Model,
			"finish_reason", resp.FinishReason.Reason,
			"input_tokens", resp.Usage.InputTokens,
			"output_tokens", resp.Usage.OutputTokens,
			"duration_ms", elapsed.Milliseconds(),
		)
		return resp, nil
	}
}
