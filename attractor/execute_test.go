// ABOUTME: Tests for ExecuteNodeWithRetry's retry/backoff loop and safeExecute's panic recovery.
package attractor

import (
	"context"
	"testing"
	"time"
)

type flakyHandler struct {
	failures int
	calls    int
}

func (h *flakyHandler) Type() string { return "flaky" }

func (h *flakyHandler) Execute(ctx context.Context, node *Node, pctx *Context, graph *Graph) (*Outcome, error) {
	h.calls++
	if h.calls <= h.failures {
		return NewOutcome(StatusFail), nil
	}
	return NewOutcome(StatusSuccess), nil
}

type panickyHandler struct{}

func (h *panickyHandler) Type() string { return "panicky" }

func (h *panickyHandler) Execute(ctx context.Context, node *Node, pctx *Context, graph *Graph) (*Outcome, error) {
	panic("boom")
}

func TestExecuteNodeWithRetrySucceedsAfterFailures(t *testing.T) {
	h := &flakyHandler{failures: 2}
	policy := RetryPolicy{MaxAttempts: 3, RetryOnFail: true, Backoff: BackoffConfig{Base: time.Millisecond, Multiplier: 1, Max: time.Millisecond}}

	outcome, err := ExecuteNodeWithRetry(context.Background(), h, &Node{ID: "a"}, NewContext(), &Graph{}, policy, nil)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if outcome.Status != StatusSuccess {
		t.Errorf("expected eventual success, got %s", outcome.Status)
	}
	if h.calls != 3 {
		t.Errorf("expected 3 calls (2 failures + 1 success), got %d", h.calls)
	}
}

func TestExecuteNodeWithRetryStopsAtMaxAttempts(t *testing.T) {
	h := &flakyHandler{failures: 10}
	policy := RetryPolicy{MaxAttempts: 2, RetryOnFail: true, Backoff: BackoffConfig{Base: time.Millisecond, Multiplier: 1, Max: time.Millisecond}}

	outcome, err := ExecuteNodeWithRetry(context.Background(), h, &Node{ID: "a"}, NewContext(), &Graph{}, policy, nil)
	if err != nil {
		t.Fatalf("expected no Go error (FAIL is a terminal outcome, not an error), got %v", err)
	}
	if outcome.Status != StatusFail {
		t.Errorf("expected FAIL after exhausting attempts, got %s", outcome.Status)
	}
	if h.calls != 2 {
		t.Errorf("expected exactly MaxAttempts calls, got %d", h.calls)
	}
}

func TestExecuteNodeWithRetryInvokesOnRetryCallback(t *testing.T) {
	h := &flakyHandler{failures: 1}
	policy := RetryPolicy{MaxAttempts: 2, RetryOnFail: true, Backoff: BackoffConfig{Base: time.Millisecond, Multiplier: 1, Max: time.Millisecond}}

	var retriedAttempt int
	onRetry := func(attempt int, delay time.Duration, reason string) {
		retriedAttempt = attempt
	}

	if _, err := ExecuteNodeWithRetry(context.Background(), h, &Node{ID: "a"}, NewContext(), &Graph{}, policy, onRetry); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if retriedAttempt != 1 {
		t.Errorf("expected onRetry invoked after attempt 1, got %d", retriedAttempt)
	}
}

func TestExecuteNodeWithRetryNotRetryableWithoutRetryOnFail(t *testing.T) {
	h := &flakyHandler{failures: 10}
	policy := RetryPolicy{MaxAttempts: 5, RetryOnFail: false, Backoff: DefaultBackoff()}

	outcome, err := ExecuteNodeWithRetry(context.Background(), h, &Node{ID: "a"}, NewContext(), &Graph{}, policy, nil)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if outcome.Status != StatusFail {
		t.Errorf("expected FAIL, got %s", outcome.Status)
	}
	if h.calls != 1 {
		t.Errorf("expected only 1 call since FAIL is not retryable without RetryOnFail, got %d", h.calls)
	}
}

func TestSafeExecuteRecoversFromPanic(t *testing.T) {
	_, err := safeExecute(context.Background(), &panickyHandler{}, &Node{ID: "a"}, NewContext(), &Graph{})
	if err == nil {
		t.Fatal("expected an error converted from the recovered panic")
	}
}

func TestSleepWithContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if sleepWithContext(ctx, time.Second) {
		t.Error("expected sleepWithContext to return false on an already-cancelled context")
	}
}

func TestSleepWithContextNonPositiveDelay(t *testing.T) {
	if !sleepWithContext(context.Background(), 0) {
		t.Error("expected sleepWithContext to return true immediately for non-positive delay")
	}
}
