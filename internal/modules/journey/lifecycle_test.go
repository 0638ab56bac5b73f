package journey

import (
	"context"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
)

type recordingInvalidator struct {
	mu  sync.Mutex
	ids []uuid.UUID
}

func (r *recordingInvalidator) ClearJourneyCache(journeyID uuid.UUID) {
	r.mu.Lock()
	r.ids = append(r.ids, journeyID)
	r.mu.Unlock()
}

func (r *recordingInvalidator) cleared() []uuid.UUID {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]uuid.UUID(nil), r.ids...)
}

func TestDeleteJourneyCompletely_InvalidatesCache(t *testing.T) {
	fs := newFakeStore()
	j, steps := fs.addJourney("a", "b")
	user := uuid.New()
	fs.complete(user, j.ID, steps[0].ID, 10)
	clock := newFakeClock()
	cache := newTestCache(t, fs, clock, nil)
	l := NewLifecycle(testLogger(t), fs.Store(), cache, clock.Now, nil)
	ctx := context.Background()

	before, err := cache.FetchJourney(ctx, j.ID, user, "fr")
	if err != nil {
		t.Fatalf("warm: %v", err)
	}
	if len(before.CompletedSteps) != 1 {
		t.Fatalf("warm view: %+v", before)
	}

	out := l.DeleteJourneyCompletely(ctx, user, j.ID)
	want := DeleteOutcome{Success: true, DeletedSteps: 1, DeletedProgress: 1, PointsRemoved: 10}
	if diff := cmp.Diff(want, out); diff != "" {
		t.Fatalf("delete outcome (-want +got):\n%s", diff)
	}

	calls := fs.journeyCalls.Load()
	after, err := cache.FetchJourney(ctx, j.ID, user, "fr")
	if err != nil {
		t.Fatalf("refetch: %v", err)
	}
	if fs.journeyCalls.Load() != calls+1 {
		t.Fatalf("delete did not force a fresh assembly")
	}
	if len(after.CompletedSteps) != 0 || after.TotalPointsEarned != 0 {
		t.Fatalf("stale view after delete: %+v", after)
	}
}

func TestDeleteJourneyCompletely_FailureStillInvalidates(t *testing.T) {
	fs := newFakeStore()
	j, _ := fs.addJourney("a")
	fs.repairErr = errBackend
	inv := &recordingInvalidator{}
	l := NewLifecycle(testLogger(t), fs.Store(), inv, nil, nil)

	out := l.DeleteJourneyCompletely(context.Background(), uuid.New(), j.ID)
	if out.Success || out.Error == "" || out.DeletedSteps != 0 {
		t.Fatalf("outcome: %+v", out)
	}
	if diff := cmp.Diff([]uuid.UUID{j.ID}, inv.cleared()); diff != "" {
		t.Fatalf("invalidations (-want +got):\n%s", diff)
	}
}

func TestDeleteJourneyCompletely_RejectsNilIDs(t *testing.T) {
	fs := newFakeStore()
	inv := &recordingInvalidator{}
	l := NewLifecycle(testLogger(t), fs.Store(), inv, nil, nil)

	out := l.DeleteJourneyCompletely(context.Background(), uuid.Nil, uuid.New())
	if out.Success || out.Error == "" {
		t.Fatalf("outcome: %+v", out)
	}
	if fs.deleteCalls.Load() != 0 || len(inv.cleared()) != 0 {
		t.Fatalf("nil user reached the store")
	}
}

func TestResetJourneyForReplay(t *testing.T) {
	fs := newFakeStore()
	j, steps := fs.addJourney("a", "b")
	user := uuid.New()
	fs.complete(user, j.ID, steps[0].ID, 10)
	fs.complete(user, j.ID, steps[1].ID, 20)
	fs.setProgress(user, j.ID, 3, 0, 1)
	inv := &recordingInvalidator{}
	l := NewLifecycle(testLogger(t), fs.Store(), inv, nil, nil)

	out := l.ResetJourneyForReplay(context.Background(), user, j.ID)
	if !out.Success || out.DeletedSteps != 2 || out.PointsRemoved != 30 || out.ProgressID == nil {
		t.Fatalf("reset outcome: %+v", out)
	}
	if len(inv.cleared()) != 1 {
		t.Fatalf("reset did not invalidate")
	}

	fs.repairErr = errBackend
	failed := l.ResetJourneyForReplay(context.Background(), user, j.ID)
	if failed.Success || failed.Error == "" || failed.ProgressID != nil {
		t.Fatalf("failed reset outcome: %+v", failed)
	}
	if len(inv.cleared()) != 2 {
		t.Fatalf("failed reset did not invalidate")
	}
}

func TestAcquireCompletedJourney(t *testing.T) {
	fs := newFakeStore()
	j, _ := fs.addJourney("a")
	done, pending := uuid.New(), uuid.New()
	fs.setProgress(done, j.ID, 2).IsCompleted = true
	fs.setProgress(pending, j.ID, 1)
	clock := newFakeClock()
	inv := &recordingInvalidator{}
	l := NewLifecycle(testLogger(t), fs.Store(), inv, clock.Now, nil)

	if !l.AcquireCompletedJourney(context.Background(), done, j.ID) {
		t.Fatalf("completed journey should be acquired")
	}
	fs.mu.Lock()
	at := fs.progress[pair{done, j.ID}].AcquiredAt
	fs.mu.Unlock()
	if at == nil || !at.Equal(clock.Now()) {
		t.Fatalf("acquired_at: %v", at)
	}
	if l.AcquireCompletedJourney(context.Background(), pending, j.ID) {
		t.Fatalf("incomplete journey must not be acquired")
	}
	if l.AcquireCompletedJourney(context.Background(), uuid.New(), j.ID) {
		t.Fatalf("missing progress must not be acquired")
	}
	if diff := cmp.Diff([]uuid.UUID{j.ID}, inv.cleared()); diff != "" {
		t.Fatalf("invalidations (-want +got):\n%s", diff)
	}

	fs.progressErr = errBackend
	if l.AcquireCompletedJourney(context.Background(), done, j.ID) {
		t.Fatalf("store failure should report false")
	}
}

func TestValidateJourneyExists(t *testing.T) {
	fs := newFakeStore()
	active, _ := fs.addJourney("a")
	inactive, _ := fs.addJourney("b")
	inactive.IsActive = false
	l := NewLifecycle(testLogger(t), fs.Store(), nil, nil, nil)
	ctx := context.Background()

	if !l.ValidateJourneyExists(ctx, active.ID) {
		t.Fatalf("active journey should exist")
	}
	if l.ValidateJourneyExists(ctx, inactive.ID) || l.ValidateJourneyExists(ctx, uuid.New()) || l.ValidateJourneyExists(ctx, uuid.Nil) {
		t.Fatalf("inactive/missing journeys should not exist")
	}
	fs.journeyErr = errBackend
	if l.ValidateJourneyExists(ctx, active.ID) {
		t.Fatalf("store failure should fail open to false")
	}
}

func TestCheckForGhostValidations(t *testing.T) {
	fs := newFakeStore()
	j, steps := fs.addJourney("a", "b", "c")
	other, _ := fs.addJourney("x")
	user := uuid.New()
	// The user validated step b while it was part of another journey.
	fs.complete(user, other.ID, steps[1].ID, 20)
	l := NewLifecycle(testLogger(t), fs.Store(), nil, nil, nil)

	got := l.CheckForGhostValidations(context.Background(), user, j.ID)
	want := GhostCheck{HasConflicts: true, ConflictingSteps: []uuid.UUID{steps[1].ID}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("ghost check (-want +got):\n%s", diff)
	}

	clean := l.CheckForGhostValidations(context.Background(), uuid.New(), j.ID)
	if clean.HasConflicts || len(clean.ConflictingSteps) != 0 {
		t.Fatalf("fresh user: %+v", clean)
	}

	fs.completionErr = errBackend
	failOpen := l.CheckForGhostValidations(context.Background(), user, j.ID)
	if failOpen.HasConflicts {
		t.Fatalf("store failure should fail open: %+v", failOpen)
	}
}
