package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bluesky-social/postwatch/riskmod/engine"
	"github.com/bluesky-social/postwatch/riskmod/ratelimit"
	"github.com/bluesky-social/postwatch/riskmod/resultcache"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("riskmod/service")

type Account struct {
	ID   string
	Tier string
}

type AccountDirectory interface {
	LookupAccount(ctx context.Context, userID string) (*Account, error)
}

type Evaluator interface {
	Evaluate(ctx context.Context, userID string, includeHistory bool) (*engine.EvaluationResult, error)
}

var _ Evaluator = (*engine.Engine)(nil)

type Request struct {
	UserID         string
	IncludeHistory bool
	Refresh        bool
}

type RateLimitInfo struct {
	Limit     int       `json:"limit"`
	Remaining int       `json:"remaining"`
	ResetAt   time.Time `json:"resetAt"`
}

type Response struct {
	Success   bool                     `json:"success"`
	Cached    bool                     `json:"cached"`
	Data      *engine.EvaluationResult `json:"data,omitempty"`
	RateLimit RateLimitInfo            `json:"rateLimit"`
	Error     string                   `json:"error,omitempty"`
}

// Sequences one evaluation request: account lookup, rate limit, result cache, and the evaluator itself.
type Service struct {
	Logger    *slog.Logger
	Accounts  AccountDirectory
	Limiter   *ratelimit.Limiter
	Cache     *resultcache.Cache
	Evaluator Evaluator
}

// Builds a Request from raw transport values. Flags accept "true", "false", "1", "0", or empty (false).
func ParseRequest(userID, includeHistory, refresh string) (Request, error) {
	var fields []FieldError
	if userID == "" {
		fields = append(fields, FieldError{Field: "userId", Message: "required"})
	}
	hist, err := parseFlag(includeHistory)
	if err != nil {
		fields = append(fields, FieldError{Field: "includeHistory", Message: err.Error()})
	}
	ref, err := parseFlag(refresh)
	if err != nil {
		fields = append(fields, FieldError{Field: "refresh", Message: err.Error()})
	}
	if len(fields) > 0 {
		return Request{}, &ValidationError{Fields: fields}
	}
	return Request{UserID: userID, IncludeHistory: hist, Refresh: ref}, nil
}

func parseFlag(raw string) (bool, error) {
	switch raw {
	case "", "false", "0":
		return false, nil
	case "true", "1":
		return true, nil
	}
	return false, fmt.Errorf("expected a boolean, got %q", raw)
}

// A rate-limited request is a normal response with Success false, not an error. Errors are reserved for unknown accounts (ErrAccountNotFound) and upstream failures.
func (s *Service) Evaluate(ctx context.Context, req Request) (*Response, error) {
	ctx, span := tracer.Start(ctx, "Evaluate")
	defer span.End()
	span.SetAttributes(
		attribute.String("user", req.UserID),
		attribute.Bool("history", req.IncludeHistory),
		attribute.Bool("refresh", req.Refresh),
	)

	acct, err := s.Accounts.LookupAccount(ctx, req.UserID)
	if err != nil {
		return nil, err
	}

	decision, err := s.Limiter.Consume(ctx, acct.ID, acct.Tier)
	if err != nil {
		return nil, err
	}
	rl := RateLimitInfo{
		Limit:     decision.Limit,
		Remaining: decision.Remaining,
		ResetAt:   decision.ResetAt,
	}
	if !decision.Allowed {
		span.SetAttributes(attribute.Bool("ratelimited", true))
		return &Response{
			Success:   false,
			RateLimit: rl,
			Error:     "RateLimitExceeded",
		}, nil
	}

	if !req.Refresh {
		cached, err := s.Cache.Get(ctx, acct.ID, req.IncludeHistory)
		if err != nil {
			return nil, err
		}
		if cached != nil {
			span.SetAttributes(attribute.Bool("cached", true))
			return &Response{
				Success:   true,
				Cached:    true,
				Data:      cached,
				RateLimit: rl,
			}, nil
		}
	}

	res, err := s.Evaluator.Evaluate(ctx, acct.ID, req.IncludeHistory)
	if err != nil {
		return nil, err
	}
	if err := s.Cache.Set(ctx, acct.ID, req.IncludeHistory, res); err != nil {
		return nil, err
	}
	return &Response{
		Success:   true,
		Cached:    false,
		Data:      res,
		RateLimit: rl,
	}, nil
}
