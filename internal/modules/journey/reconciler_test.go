package journey

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"

	pkgerrors "github.com/yungbote/journeys-backend/internal/pkg/errors"
)

func TestDiagnoseInconsistencies_DriftScenario(t *testing.T) {
	fs := newFakeStore()
	j, steps := fs.addJourney("a", "b", "c")
	user := uuid.New()
	fs.complete(user, j.ID, steps[0].ID, 10)
	fs.complete(user, j.ID, steps[2].ID, 30)
	fs.setProgress(user, j.ID, 1, 0, 1, 2)
	r := NewReconciler(testLogger(t), fs.Store(), nil, nil)

	d, err := r.DiagnoseInconsistencies(context.Background(), user, j.ID)
	if err != nil {
		t.Fatalf("diagnose: %v", err)
	}
	want := &Diagnostics{
		CompletionStepIndices:    []int{0, 2},
		QuizResponseStepIndices:  []int{0, 1, 2},
		MissingFromQuizResponses: []int{},
		ExtraInQuizResponses:     []int{1},
		TotalInconsistencies:     1,
	}
	if diff := cmp.Diff(want, d); diff != "" {
		t.Fatalf("diagnostics (-want +got):\n%s", diff)
	}

	res := r.SynchronizeJourneyData(context.Background(), user, j.ID)
	if !res.Success || res.InconsistenciesFound != 1 || res.InconsistenciesFixed != 1 {
		t.Fatalf("sync result: %+v", res)
	}

	d, err = r.DiagnoseInconsistencies(context.Background(), user, j.ID)
	if err != nil {
		t.Fatalf("re-diagnose: %v", err)
	}
	if d.TotalInconsistencies != 0 {
		t.Fatalf("drift remains after sync: %+v", d)
	}
}

func TestSynchronizeJourneyData_IsIdempotent(t *testing.T) {
	fs := newFakeStore()
	j, steps := fs.addJourney("a", "b")
	user := uuid.New()
	fs.complete(user, j.ID, steps[1].ID, 20)
	fs.setProgress(user, j.ID, 1)
	r := NewReconciler(testLogger(t), fs.Store(), nil, nil)

	first := r.SynchronizeJourneyData(context.Background(), user, j.ID)
	if !first.Success || first.InconsistenciesFound != 1 {
		t.Fatalf("first sync: %+v", first)
	}
	second := r.SynchronizeJourneyData(context.Background(), user, j.ID)
	if !second.Success || second.InconsistenciesFound != 0 || second.InconsistenciesFixed != 0 {
		t.Fatalf("second sync: %+v", second)
	}
	if got := fs.repairCalls.Load(); got != 1 {
		t.Fatalf("repair calls: got %d want 1", got)
	}
}

func TestSynchronizeJourneyData_RecomputesPointsAcrossJourneys(t *testing.T) {
	fs := newFakeStore()
	j, steps := fs.addJourney("a")
	other, otherSteps := fs.addJourney("x")
	user := uuid.New()
	fs.complete(user, j.ID, steps[0].ID, 10)
	fs.complete(user, other.ID, otherSteps[0].ID, 15)
	r := NewReconciler(testLogger(t), fs.Store(), nil, nil)

	res := r.SynchronizeJourneyData(context.Background(), user, j.ID)
	if !res.Success {
		t.Fatalf("sync: %+v", res)
	}
	fs.mu.Lock()
	total := fs.profiles[user]
	fs.mu.Unlock()
	if total != 25 {
		t.Fatalf("profile total: got %d want 25", total)
	}
}

func TestSynchronizeJourneyData_RepairFailureIsCaptured(t *testing.T) {
	fs := newFakeStore()
	j, steps := fs.addJourney("a")
	user := uuid.New()
	fs.complete(user, j.ID, steps[0].ID, 10)
	fs.repairErr = errBackend
	r := NewReconciler(testLogger(t), fs.Store(), nil, nil)

	res := r.SynchronizeJourneyData(context.Background(), user, j.ID)
	if res.Success || res.InconsistenciesFound != 1 || res.InconsistenciesFixed != 0 {
		t.Fatalf("result: %+v", res)
	}
	if len(res.Errors) != 1 || res.Errors[0].Stage != "repair" || res.Errors[0].Severity != SeverityError {
		t.Fatalf("errors: %+v", res.Errors)
	}
}

func TestSynchronizeJourneyData_ProfileFailureIsWarning(t *testing.T) {
	fs := newFakeStore()
	j, steps := fs.addJourney("a")
	user := uuid.New()
	fs.complete(user, j.ID, steps[0].ID, 10)
	fs.profileErr = errBackend
	r := NewReconciler(testLogger(t), fs.Store(), nil, nil)

	res := r.SynchronizeJourneyData(context.Background(), user, j.ID)
	if !res.Success || res.InconsistenciesFixed != 1 {
		t.Fatalf("result: %+v", res)
	}
	if len(res.Errors) != 1 || res.Errors[0].Severity != SeverityWarning {
		t.Fatalf("errors: %+v", res.Errors)
	}
}

func TestDiagnoseInconsistencies_ReadFailurePropagates(t *testing.T) {
	fs := newFakeStore()
	j, _ := fs.addJourney("a")
	user := uuid.New()
	fs.completionErr = errBackend
	r := NewReconciler(testLogger(t), fs.Store(), nil, nil)

	_, err := r.DiagnoseInconsistencies(context.Background(), user, j.ID)
	if !errors.Is(err, errBackend) || !pkgerrors.IsRemote(err) {
		t.Fatalf("expected remote failure, got %v", err)
	}
	if r.HasInconsistencies(context.Background(), user, j.ID) {
		t.Fatalf("HasInconsistencies should fail open")
	}
	res := r.SynchronizeJourneyData(context.Background(), user, j.ID)
	if res.Success || res.Errors[0].Stage != "diagnose" {
		t.Fatalf("sync with failing diagnosis: %+v", res)
	}
}

func TestQuizResponseIndices_SkipsMalformedEntries(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want []int
	}{
		{"empty", ``, []int{}},
		{"not an array", `{"stepIndex":1}`, []int{}},
		{"malformed", `[{"stepIndex":`, []int{}},
		{"mixed", `[{"stepIndex":"1"},{"other":1},{"stepIndex":1.5},{"stepIndex":-1},{"stepIndex":2},7,{"stepIndex":0},{"stepIndex":2}]`, []int{0, 2}},
		{"null entries", `[null,{"stepIndex":null},{"stepIndex":3.0}]`, []int{3}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if diff := cmp.Diff(tc.want, quizResponseIndices([]byte(tc.raw))); diff != "" {
				t.Fatalf("indices (-want +got):\n%s", diff)
			}
		})
	}
}

func TestCleanupGhostData_RemovesOnlyForeignSteps(t *testing.T) {
	fs := newFakeStore()
	j, steps := fs.addJourney("a", "b")
	user := uuid.New()
	valid := fs.complete(user, j.ID, steps[0].ID, 10)
	fs.complete(user, j.ID, uuid.New(), 5)
	fs.complete(user, j.ID, uuid.New(), 5)
	r := NewReconciler(testLogger(t), fs.Store(), nil, nil)

	res := r.CleanupGhostData(context.Background(), user, j.ID)
	if !res.Success || res.InconsistenciesFound != 2 || res.InconsistenciesFixed != 2 {
		t.Fatalf("cleanup: %+v", res)
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if len(fs.completions) != 1 || fs.completions[0].ID != valid.ID {
		t.Fatalf("remaining completions: %+v", fs.completions)
	}
}

func TestCleanupGhostData_NothingToDo(t *testing.T) {
	fs := newFakeStore()
	j, steps := fs.addJourney("a")
	user := uuid.New()
	fs.complete(user, j.ID, steps[0].ID, 10)
	r := NewReconciler(testLogger(t), fs.Store(), nil, nil)

	res := r.CleanupGhostData(context.Background(), user, j.ID)
	if !res.Success || res.InconsistenciesFound != 0 || len(res.Errors) != 0 {
		t.Fatalf("cleanup: %+v", res)
	}
}

func TestFullSynchronization_MergesCleanupAndSync(t *testing.T) {
	fs := newFakeStore()
	j, steps := fs.addJourney("a", "b")
	user := uuid.New()
	fs.complete(user, j.ID, steps[0].ID, 10)
	fs.complete(user, j.ID, uuid.New(), 5)
	fs.setProgress(user, j.ID, 1)
	r := NewReconciler(testLogger(t), fs.Store(), nil, nil)

	res := r.FullSynchronization(context.Background(), user, j.ID)
	// One ghost row plus one completion missing from quiz responses.
	if !res.Success || res.InconsistenciesFound != 2 || res.InconsistenciesFixed != 2 {
		t.Fatalf("full sync: %+v", res)
	}
	if fs.repairCalls.Load() != 1 {
		t.Fatalf("repair calls: %d", fs.repairCalls.Load())
	}
}

func TestFullSynchronization_StopsWhenCleanupFails(t *testing.T) {
	fs := newFakeStore()
	j, _ := fs.addJourney("a")
	fs.completionErr = errBackend
	r := NewReconciler(testLogger(t), fs.Store(), nil, nil)

	res := r.FullSynchronization(context.Background(), uuid.New(), j.ID)
	if res.Success || len(res.Errors) != 1 || res.Errors[0].Stage != "list_completions" {
		t.Fatalf("full sync: %+v", res)
	}
	if fs.repairCalls.Load() != 0 {
		t.Fatalf("repair ran after failed cleanup")
	}
}

func TestManualRepair_SkipsDiagnosis(t *testing.T) {
	fs := newFakeStore()
	j, _ := fs.addJourney("a")
	r := NewReconciler(testLogger(t), fs.Store(), nil, nil)

	res := r.ManualRepair(context.Background(), uuid.New(), j.ID)
	if !res.Success {
		t.Fatalf("manual repair: %+v", res)
	}
	if fs.repairCalls.Load() != 1 {
		t.Fatalf("repair calls: %d", fs.repairCalls.Load())
	}
	if fs.journeyCalls.Load() != 0 {
		t.Fatalf("manual repair should not diagnose")
	}

	bad := r.ManualRepair(context.Background(), uuid.Nil, j.ID)
	if bad.Success || len(bad.Errors) != 1 {
		t.Fatalf("nil user: %+v", bad)
	}
}
