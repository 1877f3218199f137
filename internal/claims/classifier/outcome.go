// Package classifier decides whether a flushed batch proves the evidence a
// claim is waiting for. Results are a closed set of variants so a failure
// can never be mistaken for a rejection.
package classifier

import (
	"context"

	"cashback_backend/internal/claims/domain"
)

// Outcome is one of Matched, NotMatched or Failed.
type Outcome interface {
	outcome()
}

// Matched means the batch proves the requested evidence.
type Matched struct{}

// NotMatched means the batch was understood but does not prove the evidence.
type NotMatched struct {
	Reason string
}

// Failed means no verdict could be reached.
type Failed struct {
	Err error
}

func (Matched) outcome()    {}
func (NotMatched) outcome() {}
func (Failed) outcome()     {}

// Task is the input for one classification call.
type Task struct {
	Stage     domain.Stage
	ProductID int64
	Text      string
	MediaRef  string
}

// Classifier is called once per flushed batch and never retried by callers.
type Classifier interface {
	Classify(ctx context.Context, task Task) Outcome
}

// Func adapts a plain function to Classifier.
type Func func(ctx context.Context, task Task) Outcome

func (f Func) Classify(ctx context.Context, task Task) Outcome {
	return f(ctx, task)
}

// ManualReview never matches; every claim is advanced by seller override.
// It stands in when no model is configured.
var ManualReview = Func(func(context.Context, Task) Outcome {
	return NotMatched{Reason: "it needs a manual check by our team"}
})
