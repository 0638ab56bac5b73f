package journey

import (
	"errors"
	"testing"
	"time"

	pkgerrors "github.com/yungbote/journeys-backend/internal/pkg/errors"
)

func TestCircuitBreaker_TripsAtThresholdAndRecoversAfterCooldown(t *testing.T) {
	clock := newFakeClock()
	b := NewCircuitBreaker(3, 30*time.Second, clock.Now)

	for i := 0; i < 2; i++ {
		b.Failure()
		if err := b.Allow(); err != nil {
			t.Fatalf("open after %d failures", i+1)
		}
	}
	b.Failure()
	if err := b.Allow(); !errors.Is(err, pkgerrors.ErrServiceUnavailable) {
		t.Fatalf("expected ErrServiceUnavailable, got %v", err)
	}
	if st := b.State(); !st.Open || st.ConsecutiveFailures != 3 {
		t.Fatalf("state: %+v", st)
	}

	clock.Advance(29 * time.Second)
	if err := b.Allow(); err == nil {
		t.Fatalf("allowed before cooldown elapsed")
	}
	clock.Advance(time.Second)
	if err := b.Allow(); err != nil {
		t.Fatalf("still open after cooldown: %v", err)
	}
	if st := b.State(); st.Open || st.ConsecutiveFailures != 0 {
		t.Fatalf("expected reset state, got %+v", st)
	}
}

func TestCircuitBreaker_SuccessResetsCount(t *testing.T) {
	b := NewCircuitBreaker(2, time.Minute, nil)
	b.Failure()
	b.Success()
	b.Failure()
	if err := b.Allow(); err != nil {
		t.Fatalf("failures should not accumulate across a success: %v", err)
	}
}
