package apperr

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestRateLimitError_MatchesGeneration(t *testing.T) {
	err := error(&RateLimitError{RetryAfter: 30 * time.Second})

	if !errors.Is(err, ErrGeneration) {
		t.Error("rate limit error must match ErrGeneration")
	}

	var rateErr *RateLimitError
	if !errors.As(err, &rateErr) {
		t.Fatal("errors.As must recover the concrete type")
	}
	if rateErr.RetryAfter != 30*time.Second {
		t.Errorf("unexpected RetryAfter: %s", rateErr.RetryAfter)
	}
}

func TestWrappedSentinelsSurviveFormatting(t *testing.T) {
	err := fmt.Errorf("%w: status is processing", ErrNotIndexed)
	if !errors.Is(err, ErrNotIndexed) {
		t.Error("wrapped sentinel must still match")
	}
}
