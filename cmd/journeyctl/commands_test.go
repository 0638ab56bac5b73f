package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/journeys-backend/internal/modules/journey"
)

type stubReconciler struct {
	calls []string
	fail  bool
}

func (s *stubReconciler) DiagnoseInconsistencies(context.Context, uuid.UUID, uuid.UUID) (*journey.Diagnostics, error) {
	s.calls = append(s.calls, "diagnose")
	if s.fail {
		return nil, errors.New("store down")
	}
	return &journey.Diagnostics{TotalInconsistencies: 2}, nil
}

func (s *stubReconciler) result(op string) journey.SyncResult {
	s.calls = append(s.calls, op)
	return journey.SyncResult{Success: !s.fail, Errors: []journey.SyncError{}}
}

func (s *stubReconciler) FullSynchronization(context.Context, uuid.UUID, uuid.UUID) journey.SyncResult {
	return s.result("sync")
}

func (s *stubReconciler) CleanupGhostData(context.Context, uuid.UUID, uuid.UUID) journey.SyncResult {
	return s.result("cleanup")
}

func (s *stubReconciler) ManualRepair(context.Context, uuid.UUID, uuid.UUID) journey.SyncResult {
	return s.result("repair")
}

type stubLifecycle struct{}

func (stubLifecycle) DeleteJourneyCompletely(context.Context, uuid.UUID, uuid.UUID) journey.DeleteOutcome {
	return journey.DeleteOutcome{Success: true, DeletedSteps: 3}
}

func (stubLifecycle) ResetJourneyForReplay(context.Context, uuid.UUID, uuid.UUID) journey.ResetOutcome {
	return journey.ResetOutcome{Error: "procedure failed"}
}

func run(t *testing.T, r *stubReconciler, args ...string) (string, error) {
	t.Helper()
	closed := false
	open := func(context.Context) (backend, func(), error) {
		return backend{reconciler: r, lifecycle: stubLifecycle{}}, func() { closed = true }, nil
	}
	cmd := newRootCommand(open)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	if err == nil || errors.Is(err, errFailed) {
		require.True(t, closed, "backend was not closed")
	}
	return out.String(), err
}

func TestCommandsPrintJSON(t *testing.T) {
	user, j := uuid.NewString(), uuid.NewString()
	r := &stubReconciler{}

	out, err := run(t, r, "diagnose", "--user", user, "--journey", j)
	require.NoError(t, err)
	var d journey.Diagnostics
	require.NoError(t, json.Unmarshal([]byte(out), &d))
	require.Equal(t, 2, d.TotalInconsistencies)

	for _, op := range []string{"sync", "cleanup", "repair"} {
		_, err := run(t, r, op, "--user", user, "--journey", j)
		require.NoError(t, err)
	}
	require.Equal(t, []string{"diagnose", "sync", "cleanup", "repair"}, r.calls)

	out, err = run(t, r, "delete", "--user", user, "--journey", j)
	require.NoError(t, err)
	require.Contains(t, out, `"deletedSteps": 3`)
}

func TestCommandsReportFailure(t *testing.T) {
	user, j := uuid.NewString(), uuid.NewString()

	out, err := run(t, &stubReconciler{}, "reset", "--user", user, "--journey", j)
	require.ErrorIs(t, err, errFailed)
	require.Contains(t, out, "procedure failed")

	_, err = run(t, &stubReconciler{fail: true}, "sync", "--user", user, "--journey", j)
	require.ErrorIs(t, err, errFailed)

	_, err = run(t, &stubReconciler{fail: true}, "diagnose", "--user", user, "--journey", j)
	require.ErrorContains(t, err, "store down")
}

func TestCommandsValidateIDs(t *testing.T) {
	r := &stubReconciler{}
	_, err := run(t, r, "sync", "--user", "nope", "--journey", uuid.NewString())
	require.ErrorContains(t, err, "invalid --user")

	_, err = run(t, r, "sync", "--user", uuid.NewString())
	require.Error(t, err)
	require.Empty(t, r.calls)
}
